package geostamp

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// findPNGChunk returns the payload of the first chunk of type typ.
func findPNGChunk(t *testing.T, data []byte, typ string) []byte {
	t.Helper()
	require.True(t, bytes.HasPrefix(data, pngSignature))
	for i := len(pngSignature); i+8 <= len(data); {
		n := int(binary.BigEndian.Uint32(data[i:]))
		if string(data[i+4:i+8]) == typ {
			return data[i+8 : i+8+n]
		}
		i += 12 + n
	}
	return nil
}

func roundTrip(t *testing.T, p *ExifProfile) *exif.Exif {
	t.Helper()
	block, err := p.Bytes()
	require.NoError(t, err)
	x, err := exif.Decode(bytes.NewReader(block))
	require.NoError(t, err)
	return x
}

// ── Orientation Tests ───────────────────────────────────────────────────────

func TestApplyOrientationDimensions(t *testing.T) {
	img := makeTestImage(40, 20)
	tests := []struct {
		orient Orientation
		w, h   int
	}{
		{OrientNormal, 40, 20},
		{OrientFlipH, 40, 20},
		{OrientRotate180, 40, 20},
		{OrientFlipV, 40, 20},
		{OrientTranspose, 20, 40},
		{OrientRotate90CW, 20, 40},
		{OrientTransverse, 20, 40},
		{OrientRotate270CW, 20, 40},
	}
	for _, tt := range tests {
		out := ApplyOrientation(img, tt.orient)
		assert.Equal(t, image.Pt(tt.w, tt.h), out.Bounds().Size(), "orientation %d", tt.orient)
	}
}

func TestApplyOrientationPixels(t *testing.T) {
	// 2x1: red, blue.
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	red := color.NRGBA{255, 0, 0, 255}
	blue := color.NRGBA{0, 0, 255, 255}
	img.SetNRGBA(0, 0, red)
	img.SetNRGBA(1, 0, blue)

	cw := ApplyOrientation(img, OrientRotate90CW)
	assert.Equal(t, red, cw.NRGBAAt(0, 0))
	assert.Equal(t, blue, cw.NRGBAAt(0, 1))

	ccw := ApplyOrientation(img, OrientRotate270CW)
	assert.Equal(t, blue, ccw.NRGBAAt(0, 0))
	assert.Equal(t, red, ccw.NRGBAAt(0, 1))

	flipped := ApplyOrientation(img, OrientFlipH)
	assert.Equal(t, blue, flipped.NRGBAAt(0, 0))

	r180 := ApplyOrientation(img, OrientRotate180)
	assert.Equal(t, blue, r180.NRGBAAt(0, 0))
}

// ── Profile Tests ───────────────────────────────────────────────────────────

func TestExifProfileRoundTrip(t *testing.T) {
	p := cameraProfile()
	p.SetShort(IFD0, TagOrientation, uint16(OrientRotate180))

	jpg := encodeTestJPEG(t, makeTestImage(32, 32))
	block, err := p.Bytes()
	require.NoError(t, err)
	withExif, err := EmbedJPEG(jpg, block)
	require.NoError(t, err)

	got, err := ReadExifProfile(bytes.NewReader(withExif))
	require.NoError(t, err)
	assert.Equal(t, OrientRotate180, got.Orientation())
	assert.True(t, got.HasIn(IFD0, 0x010F))
	assert.True(t, got.HasIn(IFD0, TagArtist))
	assert.True(t, got.HasIn(ExifIFD, 0x829A))
	assert.True(t, got.HasIn(ExifIFD, TagCameraOwnerName))
}

func TestReadExifProfileDropsOldGPS(t *testing.T) {
	src := NewExifProfile()
	src.SetASCII(IFD0, 0x010F, "Acme")
	ApplyGeoMetadata(src, Stamp{Location: guwahati, Timestamp: testTime})
	block, err := src.Bytes()
	require.NoError(t, err)

	got, err := ReadExifProfile(bytes.NewReader(block))
	require.NoError(t, err)
	assert.False(t, got.Has(TagGPSLatitude))
	assert.False(t, got.Has(0x8825), "sub-IFD pointers are rebuilt, never copied")
	assert.True(t, got.Has(0x010F))
}

func TestReadExifProfileNoExif(t *testing.T) {
	_, err := ReadExifProfile(bytes.NewReader(encodeTestJPEG(t, makeTestImage(8, 8))))
	assert.Error(t, err)
}

func TestExifProfileBigEndianPreserved(t *testing.T) {
	p := newProfile(binary.BigEndian)
	p.SetASCII(IFD0, 0x010F, "Acme")
	p.SetShort(IFD0, TagOrientation, 6)

	block, err := p.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "MM", string(block[:2]))

	got, err := ReadExifProfile(bytes.NewReader(block))
	require.NoError(t, err)
	assert.Equal(t, OrientRotate90CW, got.Orientation())
}

func TestOrientationDefaultsToNormal(t *testing.T) {
	p := NewExifProfile()
	assert.Equal(t, OrientNormal, p.Orientation())
	p.SetShort(IFD0, TagOrientation, 42)
	assert.Equal(t, OrientNormal, p.Orientation())
}

func TestExifProfileTooLarge(t *testing.T) {
	p := NewExifProfile()
	p.SetBytes(ExifIFD, 0x9286, true, make([]byte, 70000)) // UserComment
	_, err := p.Bytes()
	assert.ErrorIs(t, err, ErrExifTooLarge)
}

// ── ApplyGeoMetadata Tests ──────────────────────────────────────────────────

func TestApplyGeoMetadata(t *testing.T) {
	p := cameraProfile()
	ts := time.Date(2023, 12, 31, 23, 59, 58, 0, time.Local)
	ApplyGeoMetadata(p, Stamp{Location: guwahati, Timestamp: ts})

	x := roundTrip(t, p)
	lat, lon, err := x.LatLong()
	require.NoError(t, err)
	assert.InDelta(t, 26.187394, lat, 1e-6)
	assert.InDelta(t, 91.563845, lon, 1e-6)

	for _, name := range []exif.FieldName{exif.DateTime, exif.DateTimeOriginal, exif.DateTimeDigitized} {
		tag, err := x.Get(name)
		require.NoError(t, err, name)
		v, err := tag.StringVal()
		require.NoError(t, err)
		assert.Equal(t, "2023:12:31 23:59:58", v, name)
	}

	ref, err := x.Get(exif.GPSLatitudeRef)
	require.NoError(t, err)
	v, err := ref.StringVal()
	require.NoError(t, err)
	assert.Equal(t, "N", v)

	latTag, err := x.Get(exif.GPSLatitude)
	require.NoError(t, err)
	num, den, err := latTag.Rat2(2)
	require.NoError(t, err)
	assert.Equal(t, int64(146184), num)
	assert.Equal(t, int64(SecondsScale), den)

	ids := tagIDs(t, x)
	for _, id := range privateTags {
		assert.False(t, ids[id], "tag 0x%04X should be removed", id)
	}
}

func TestApplyGeoMetadataSouthWest(t *testing.T) {
	p := NewExifProfile()
	ApplyGeoMetadata(p, Stamp{Location: Location{Latitude: -33.8688, Longitude: -70.6693}, Timestamp: testTime})

	x := roundTrip(t, p)
	lat, lon, err := x.LatLong()
	require.NoError(t, err)
	assert.InDelta(t, -33.8688, lat, 1e-6)
	assert.InDelta(t, -70.6693, lon, 1e-6)

	ref, err := x.Get(exif.GPSLongitudeRef)
	require.NoError(t, err)
	v, err := ref.StringVal()
	require.NoError(t, err)
	assert.Equal(t, "W", v)
}

func TestApplyGeoMetadataReplacesGPS(t *testing.T) {
	p := NewExifProfile()
	p.SetASCII(GPSIFD, 0x001D, "2001:01:01") // GPSDateStamp from an earlier fix
	ApplyGeoMetadata(p, Stamp{Location: guwahati, Timestamp: testTime})
	assert.False(t, p.HasIn(GPSIFD, 0x001D))
	assert.True(t, p.HasIn(GPSIFD, TagGPSVersionID))
}

// ── Embedding Tests ─────────────────────────────────────────────────────────

func TestEmbedJPEGReplacesExistingExif(t *testing.T) {
	jpg := encodeTestJPEG(t, makeTestImage(16, 16))
	first, err := NewExifProfile().Bytes()
	require.NoError(t, err)
	once, err := EmbedJPEG(jpg, first)
	require.NoError(t, err)

	p := NewExifProfile()
	p.SetASCII(IFD0, 0x010F, "Second")
	second, err := p.Bytes()
	require.NoError(t, err)
	twice, err := EmbedJPEG(once, second)
	require.NoError(t, err)

	assert.Equal(t, 1, bytes.Count(twice, exifHeader))
	got, err := ReadExifProfile(bytes.NewReader(twice))
	require.NoError(t, err)
	assert.True(t, got.Has(0x010F))

	_, _, err = image.Decode(bytes.NewReader(twice))
	assert.NoError(t, err, "stream must still decode")
}

func TestEmbedJPEGRejectsNonJPEG(t *testing.T) {
	_, err := EmbedJPEG([]byte("GIF89a"), nil)
	assert.Error(t, err)
}

func TestEmbedPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, makeTestImage(16, 16)))
	p := NewExifProfile()
	ApplyGeoMetadata(p, Stamp{Location: guwahati, Timestamp: testTime})
	block, err := p.Bytes()
	require.NoError(t, err)

	out, err := EmbedPNG(buf.Bytes(), block)
	require.NoError(t, err)
	assert.Equal(t, block, findPNGChunk(t, out, "eXIf"))

	// Checksums are verified by the decoder.
	_, err = png.Decode(bytes.NewReader(out))
	require.NoError(t, err)

	again, err := EmbedPNG(out, block)
	require.NoError(t, err)
	assert.Equal(t, 1, bytes.Count(again, []byte("eXIf")))
}

func TestEmbedPNGRejectsGarbage(t *testing.T) {
	_, err := EmbedPNG([]byte("nope"), nil)
	assert.Error(t, err)

	_, err = EmbedPNG(pngSignature, nil)
	assert.Error(t, err, "no IDAT")
}
