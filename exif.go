package geostamp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"
	"sort"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// Orientation describes an EXIF orientation tag value.
type Orientation int

const (
	OrientNormal      Orientation = 1
	OrientFlipH       Orientation = 2
	OrientRotate180   Orientation = 3
	OrientFlipV       Orientation = 4
	OrientTranspose   Orientation = 5 // Rotate 270 CW + flip H
	OrientRotate90CW  Orientation = 6
	OrientTransverse  Orientation = 7 // Rotate 90 CW + flip H
	OrientRotate270CW Orientation = 8
)

// ApplyOrientation applies EXIF orientation to an NRGBA image,
// producing a correctly-oriented image with orientation = 1.
func ApplyOrientation(img *image.NRGBA, orient Orientation) *image.NRGBA {
	switch orient {
	case OrientFlipH:
		return flipH(img)
	case OrientRotate180:
		return rotate180(img)
	case OrientFlipV:
		return flipV(img)
	case OrientTranspose:
		return flipH(rotate270(img))
	case OrientRotate90CW:
		return rotate90(img)
	case OrientTransverse:
		return flipH(rotate90(img))
	case OrientRotate270CW:
		return rotate270(img)
	default:
		return img
	}
}

// IFD names one of the three directories an ExifProfile writes.
type IFD int

const (
	IFD0 IFD = iota
	ExifIFD
	GPSIFD
)

// TIFF field types used when creating entries.
const (
	typeByte      uint16 = 1
	typeASCII     uint16 = 2
	typeShort     uint16 = 3
	typeLong      uint16 = 4
	typeRational  uint16 = 5
	typeUndefined uint16 = 7
)

var typeSize = map[uint16]int{1: 1, 2: 1, 3: 2, 4: 4, 5: 8, 6: 1, 7: 1, 8: 2, 9: 4, 10: 8, 11: 4, 12: 8}

type exifEntry struct {
	typ   uint16
	count uint32
	val   []byte // encoded in the profile's byte order
}

// ExifProfile is an editable EXIF block: IFD0, the Exif sub-IFD and the
// GPS IFD. Values keep the byte order of the block they were read from.
type ExifProfile struct {
	order binary.ByteOrder
	dirs  [3]map[uint16]exifEntry
}

// NewExifProfile returns an empty little-endian profile.
func NewExifProfile() *ExifProfile {
	return newProfile(binary.LittleEndian)
}

func newProfile(order binary.ByteOrder) *ExifProfile {
	p := &ExifProfile{order: order}
	for i := range p.dirs {
		p.dirs[i] = make(map[uint16]exifEntry)
	}
	return p
}

// Tags that never survive a rewrite: sub-IFD pointers, thumbnail pointers
// and the maker note, whose internal offsets would dangle.
var structuralTags = map[uint16]bool{
	0x0111: true, // StripOffsets
	0x0117: true, // StripByteCounts
	0x0201: true, // JPEGInterchangeFormat
	0x0202: true, // JPEGInterchangeFormatLength
	0x8769: true, // ExifIFDPointer
	0x8825: true, // GPSInfoIFDPointer
	0xA005: true, // InteroperabilityIFDPointer
	0x927C: true, // MakerNote
}

// ReadExifProfile decodes the EXIF block of a JPEG or TIFF stream.
// Prior GPS and interoperability tags are not carried over.
func ReadExifProfile(r io.Reader) (*ExifProfile, error) {
	x, err := exif.Decode(r)
	if err != nil && (x == nil || exif.IsCriticalError(err)) {
		return nil, fmt.Errorf("geostamp: decode exif: %w", err)
	}
	p := newProfile(x.Tiff.Order)
	if err := x.Walk(profileWalker{p}); err != nil {
		return nil, fmt.Errorf("geostamp: walk exif: %w", err)
	}
	return p, nil
}

type profileWalker struct{ p *ExifProfile }

func (w profileWalker) Walk(_ exif.FieldName, tag *tiff.Tag) error {
	id := tag.Id
	typ := uint16(tag.Type)
	if id < 0x0100 || structuralTags[id] || typeSize[typ] == 0 {
		return nil
	}
	if len(tag.Val) != int(tag.Count)*typeSize[typ] {
		return nil
	}
	w.p.dirs[classify(id)][id] = exifEntry{
		typ:   typ,
		count: tag.Count,
		val:   append([]byte(nil), tag.Val...),
	}
	return nil
}

// classify places a tag read from the flattened goexif map back into IFD0
// or the Exif sub-IFD. Baseline TIFF tags sit below 0x829A; the Windows XP
// tags are the only IFD0 tags above it.
func classify(id uint16) IFD {
	if id < 0x829A || (id >= 0x9C9B && id <= 0x9C9F) {
		return IFD0
	}
	return ExifIFD
}

// Has reports whether any directory holds the tag.
func (p *ExifProfile) Has(id uint16) bool {
	for _, d := range p.dirs {
		if _, ok := d[id]; ok {
			return true
		}
	}
	return false
}

// HasIn reports whether the given directory holds the tag.
func (p *ExifProfile) HasIn(ifd IFD, id uint16) bool {
	_, ok := p.dirs[ifd][id]
	return ok
}

// Remove deletes the tag from every directory.
func (p *ExifProfile) Remove(id uint16) {
	for _, d := range p.dirs {
		delete(d, id)
	}
}

// ClearGPS drops the whole GPS directory.
func (p *ExifProfile) ClearGPS() {
	p.dirs[GPSIFD] = make(map[uint16]exifEntry)
}

// SetASCII stores a NUL-terminated string.
func (p *ExifProfile) SetASCII(ifd IFD, id uint16, s string) {
	b := append([]byte(s), 0)
	p.dirs[ifd][id] = exifEntry{typ: typeASCII, count: uint32(len(b)), val: b}
}

// SetBytes stores raw bytes as BYTE or UNDEFINED.
func (p *ExifProfile) SetBytes(ifd IFD, id uint16, undefined bool, b []byte) {
	typ := typeByte
	if undefined {
		typ = typeUndefined
	}
	p.dirs[ifd][id] = exifEntry{typ: typ, count: uint32(len(b)), val: append([]byte(nil), b...)}
}

// SetShort stores one or more SHORT values.
func (p *ExifProfile) SetShort(ifd IFD, id uint16, vs ...uint16) {
	b := make([]byte, 2*len(vs))
	for i, v := range vs {
		p.order.PutUint16(b[2*i:], v)
	}
	p.dirs[ifd][id] = exifEntry{typ: typeShort, count: uint32(len(vs)), val: b}
}

// SetLong stores one or more LONG values.
func (p *ExifProfile) SetLong(ifd IFD, id uint16, vs ...uint32) {
	b := make([]byte, 4*len(vs))
	for i, v := range vs {
		p.order.PutUint32(b[4*i:], v)
	}
	p.dirs[ifd][id] = exifEntry{typ: typeLong, count: uint32(len(vs)), val: b}
}

// SetRational stores one or more RATIONAL values.
func (p *ExifProfile) SetRational(ifd IFD, id uint16, rs ...Rational) {
	b := make([]byte, 8*len(rs))
	for i, r := range rs {
		p.order.PutUint32(b[8*i:], r.Num)
		p.order.PutUint32(b[8*i+4:], r.Den)
	}
	p.dirs[ifd][id] = exifEntry{typ: typeRational, count: uint32(len(rs)), val: b}
}

// Orientation returns the IFD0 orientation, OrientNormal when absent.
func (p *ExifProfile) Orientation() Orientation {
	e, ok := p.dirs[IFD0][TagOrientation]
	if !ok || e.typ != typeShort || len(e.val) < 2 {
		return OrientNormal
	}
	o := Orientation(p.order.Uint16(e.val))
	if o < OrientNormal || o > OrientRotate270CW {
		return OrientNormal
	}
	return o
}

// ErrExifTooLarge is returned by Bytes when the block cannot fit in a
// single JPEG APP1 segment.
var ErrExifTooLarge = errors.New("geostamp: exif block exceeds 64 KiB")

// maxTIFFLen leaves room for the APP1 length field and the "Exif\0\0" header.
const maxTIFFLen = 0xFFFF - 2 - 6

// Bytes serializes the profile as a TIFF stream: header, IFD0, then the
// Exif and GPS directories when they hold any entries.
func (p *ExifProfile) Bytes() ([]byte, error) {
	ifd0 := cloneDir(p.dirs[IFD0])
	exifDir := p.dirs[ExifIFD]
	gpsDir := p.dirs[GPSIFD]

	// Pointers are placeholders here and patched once offsets are known.
	if len(exifDir) > 0 {
		ifd0[0x8769] = exifEntry{typ: typeLong, count: 1, val: make([]byte, 4)}
	}
	if len(gpsDir) > 0 {
		ifd0[0x8825] = exifEntry{typ: typeLong, count: 1, val: make([]byte, 4)}
	}

	off0 := uint32(8)
	offExif := off0 + dirSize(ifd0)
	offGPS := offExif + dirSize(exifDir)
	if len(exifDir) > 0 {
		p.order.PutUint32(ifd0[0x8769].val, offExif)
	}
	if len(gpsDir) > 0 {
		p.order.PutUint32(ifd0[0x8825].val, offGPS)
	}

	var buf bytes.Buffer
	if p.order == binary.BigEndian {
		buf.WriteString("MM")
	} else {
		buf.WriteString("II")
	}
	hdr := make([]byte, 6)
	p.order.PutUint16(hdr, 42)
	p.order.PutUint32(hdr[2:], off0)
	buf.Write(hdr)

	p.writeDir(&buf, ifd0, off0)
	if len(exifDir) > 0 {
		p.writeDir(&buf, exifDir, offExif)
	}
	if len(gpsDir) > 0 {
		p.writeDir(&buf, gpsDir, offGPS)
	}
	if buf.Len() > maxTIFFLen {
		return nil, ErrExifTooLarge
	}
	return buf.Bytes(), nil
}

func cloneDir(d map[uint16]exifEntry) map[uint16]exifEntry {
	out := make(map[uint16]exifEntry, len(d)+2)
	for k, v := range d {
		out[k] = v
	}
	return out
}

// dirSize is the byte size of a directory plus its out-of-line values.
// Values are padded to even length so every offset stays word aligned.
func dirSize(d map[uint16]exifEntry) uint32 {
	if len(d) == 0 {
		return 0
	}
	n := uint32(2 + 12*len(d) + 4)
	for _, e := range d {
		if len(e.val) > 4 {
			n += uint32(len(e.val) + len(e.val)%2)
		}
	}
	return n
}

func (p *ExifProfile) writeDir(buf *bytes.Buffer, d map[uint16]exifEntry, at uint32) {
	ids := make([]int, 0, len(d))
	for id := range d {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)

	dataOff := at + uint32(2+12*len(d)+4)
	var data bytes.Buffer
	ent := make([]byte, 12)

	cnt := make([]byte, 2)
	p.order.PutUint16(cnt, uint16(len(d)))
	buf.Write(cnt)
	for _, id := range ids {
		e := d[uint16(id)]
		clear(ent)
		p.order.PutUint16(ent[0:], uint16(id))
		p.order.PutUint16(ent[2:], e.typ)
		p.order.PutUint32(ent[4:], e.count)
		if len(e.val) <= 4 {
			copy(ent[8:], e.val)
		} else {
			p.order.PutUint32(ent[8:], dataOff+uint32(data.Len()))
			data.Write(e.val)
			if len(e.val)%2 == 1 {
				data.WriteByte(0)
			}
		}
		buf.Write(ent)
	}
	buf.Write([]byte{0, 0, 0, 0})
	buf.Write(data.Bytes())
}
