package geostamp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

// Tag IDs written or removed by the metadata encoder.
const (
	TagOrientation       uint16 = 0x0112
	TagDateTime          uint16 = 0x0132
	TagArtist            uint16 = 0x013B
	TagHostComputer      uint16 = 0x013C
	TagExifVersion       uint16 = 0x9000
	TagDateTimeOriginal  uint16 = 0x9003
	TagDateTimeDigitized uint16 = 0x9004
	TagPixelXDimension   uint16 = 0xA002
	TagPixelYDimension   uint16 = 0xA003
	TagCameraOwnerName   uint16 = 0xA430
	// TagOwnerName is the pre-2.3 private tag some cameras still write.
	TagOwnerName uint16 = 0xFDE8

	TagGPSVersionID    uint16 = 0x0000
	TagGPSLatitudeRef  uint16 = 0x0001
	TagGPSLatitude     uint16 = 0x0002
	TagGPSLongitudeRef uint16 = 0x0003
	TagGPSLongitude    uint16 = 0x0004
)

// ExifDateLayout is the EXIF date/time format.
const ExifDateLayout = "2006:01:02 15:04:05"

// privateTags are removed from every stamped file.
var privateTags = []uint16{TagArtist, TagHostComputer, TagCameraOwnerName, TagOwnerName}

// ApplyGeoMetadata writes the stamp's timestamp and position into p and
// strips the identity fields. Any earlier GPS directory is replaced.
func ApplyGeoMetadata(p *ExifProfile, stamp Stamp) {
	ts := stamp.Timestamp.Format(ExifDateLayout)
	p.SetASCII(IFD0, TagDateTime, ts)
	p.SetASCII(ExifIFD, TagDateTimeOriginal, ts)
	p.SetASCII(ExifIFD, TagDateTimeDigitized, ts)
	if !p.HasIn(ExifIFD, TagExifVersion) {
		p.SetBytes(ExifIFD, TagExifVersion, true, []byte("0230"))
	}

	lat := ToSexagesimal(stamp.Location.Latitude).Rationals()
	lon := ToSexagesimal(stamp.Location.Longitude).Rationals()
	p.ClearGPS()
	p.SetBytes(GPSIFD, TagGPSVersionID, false, []byte{2, 3, 0, 0})
	p.SetASCII(GPSIFD, TagGPSLatitudeRef, LatitudeRef(stamp.Location.Latitude))
	p.SetRational(GPSIFD, TagGPSLatitude, lat[:]...)
	p.SetASCII(GPSIFD, TagGPSLongitudeRef, LongitudeRef(stamp.Location.Longitude))
	p.SetRational(GPSIFD, TagGPSLongitude, lon[:]...)

	for _, id := range privateTags {
		p.Remove(id)
	}
}

// SetRaster records that the pixels are upright and w x h.
func (p *ExifProfile) SetRaster(w, h int) {
	p.SetShort(IFD0, TagOrientation, uint16(OrientNormal))
	p.SetLong(ExifIFD, TagPixelXDimension, uint32(w))
	p.SetLong(ExifIFD, TagPixelYDimension, uint32(h))
}

var exifHeader = []byte("Exif\x00\x00")

// EmbedJPEG inserts tiff as an Exif APP1 segment right after SOI. Existing
// Exif APP1 segments ahead of the scan data are dropped.
func EmbedJPEG(jpg, tiff []byte) ([]byte, error) {
	if len(jpg) < 4 || jpg[0] != 0xFF || jpg[1] != 0xD8 {
		return nil, errors.New("geostamp: embed exif: not a JPEG stream")
	}
	if len(tiff) > maxTIFFLen {
		return nil, ErrExifTooLarge
	}

	var out bytes.Buffer
	out.Grow(len(jpg) + len(tiff) + 10)
	out.Write(jpg[:2])
	out.Write([]byte{0xFF, 0xE1})
	var n [2]byte
	binary.BigEndian.PutUint16(n[:], uint16(2+len(exifHeader)+len(tiff)))
	out.Write(n[:])
	out.Write(exifHeader)
	out.Write(tiff)

	i := 2
	for i+4 <= len(jpg) && jpg[i] == 0xFF {
		marker := jpg[i+1]
		if marker == 0xDA || marker == 0xD9 {
			break
		}
		segLen := int(binary.BigEndian.Uint16(jpg[i+2 : i+4]))
		end := i + 2 + segLen
		if segLen < 2 || end > len(jpg) {
			return nil, errors.New("geostamp: embed exif: truncated JPEG segment")
		}
		body := jpg[i+4 : end]
		if !(marker == 0xE1 && bytes.HasPrefix(body, exifHeader)) {
			out.Write(jpg[i:end])
		}
		i = end
	}
	out.Write(jpg[i:])
	return out.Bytes(), nil
}

var pngSignature = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

// EmbedPNG inserts tiff as an eXIf chunk before the first IDAT chunk,
// replacing any eXIf chunk already present.
func EmbedPNG(png, tiff []byte) ([]byte, error) {
	if !bytes.HasPrefix(png, pngSignature) {
		return nil, errors.New("geostamp: embed exif: not a PNG stream")
	}
	var out bytes.Buffer
	out.Grow(len(png) + len(tiff) + 12)
	out.Write(pngSignature)

	written := false
	i := len(pngSignature)
	for i+8 <= len(png) {
		n := int(binary.BigEndian.Uint32(png[i:]))
		typ := string(png[i+4 : i+8])
		end := i + 12 + n
		if n < 0 || end > len(png) {
			return nil, fmt.Errorf("geostamp: embed exif: truncated PNG chunk %q", typ)
		}
		switch {
		case typ == "eXIf":
		case typ == "IDAT" && !written:
			writePNGChunk(&out, "eXIf", tiff)
			written = true
			out.Write(png[i:end])
		default:
			out.Write(png[i:end])
		}
		i = end
	}
	if !written {
		return nil, errors.New("geostamp: embed exif: PNG has no IDAT chunk")
	}
	return out.Bytes(), nil
}

func writePNGChunk(w *bytes.Buffer, typ string, data []byte) {
	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[:4], uint32(len(data)))
	copy(hdr[4:], typ)
	w.Write(hdr[:])
	w.Write(data)

	crc := crc32.NewIEEE()
	crc.Write(hdr[4:])
	crc.Write(data)
	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], crc.Sum32())
	w.Write(sum[:])
}
