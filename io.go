package geostamp

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Format is an output encoding.
type Format int

const (
	JPEG Format = iota + 1
	PNG
)

func (f Format) String() string {
	switch f {
	case JPEG:
		return "JPEG"
	case PNG:
		return "PNG"
	default:
		return "unknown"
	}
}

// FormatFromPath picks the output format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".jpg", ".jpeg":
		return JPEG, nil
	case ".png":
		return PNG, nil
	default:
		return 0, fmt.Errorf("unsupported output extension %q (use .jpg, .jpeg or .png)", ext)
	}
}

// Open loads an image from a file path. JPEG, PNG, GIF, BMP, TIFF and WebP
// are recognised.
func Open(filename string) (image.Image, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("geostamp: open %q: %w: %w", filename, ErrIO, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("geostamp: decode %q: %w: %w", filename, ErrIO, err)
	}
	return img, nil
}

func decodeBytes(name string, data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("geostamp: decode %q: %w: %w", name, ErrIO, err)
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("geostamp: decode %q: empty image (%dx%d): %w", name, b.Dx(), b.Dy(), ErrIO)
	}
	return img, nil
}

// Encode writes img to w. quality applies to JPEG only.
func Encode(w io.Writer, img image.Image, format Format, quality int) error {
	src := toNRGBA(img)
	switch format {
	case JPEG:
		return encodeJPEG(w, src, quality)
	case PNG:
		return encodePNG(w, src)
	default:
		return fmt.Errorf("geostamp: unsupported format %v", format)
	}
}

// encodeWithExif encodes img and embeds the EXIF block when p is non-nil.
func encodeWithExif(img *image.NRGBA, format Format, quality int, p *ExifProfile) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case JPEG:
		err = encodeJPEG(&buf, img, quality)
	case PNG:
		err = encodePNG(&buf, img)
	default:
		err = fmt.Errorf("unsupported format %v", format)
	}
	if err != nil {
		return nil, fmt.Errorf("geostamp: %v encode: %w: %w", format, ErrIO, err)
	}
	if p == nil {
		return buf.Bytes(), nil
	}

	block, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("geostamp: serialize exif: %w", err)
	}
	if format == JPEG {
		return EmbedJPEG(buf.Bytes(), block)
	}
	return EmbedPNG(buf.Bytes(), block)
}

// writeFileAtomic writes data to a temporary file next to path and renames
// it into place, so a failed write never leaves a partial file at path.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("geostamp: create dir %q: %w: %w", dir, ErrIO, err)
	}
	tmp, err := os.CreateTemp(dir, ".geostamp-*"+filepath.Ext(path))
	if err != nil {
		return fmt.Errorf("geostamp: create temp in %q: %w: %w", dir, ErrIO, err)
	}
	name := tmp.Name()
	fail := func(err error) error {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("geostamp: write %q: %w: %w", path, ErrIO, err)
	}
	if _, err := tmp.Write(data); err != nil {
		return fail(err)
	}
	if err := tmp.Chmod(0644); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		return fail(err)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("geostamp: write %q: %w: %w", path, ErrIO, err)
	}
	return nil
}
