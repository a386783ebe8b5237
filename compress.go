package geostamp

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
)

// encodeJPEG handles JPEG encoding, using RGBA for opaque images (faster path).
func encodeJPEG(w io.Writer, img *image.NRGBA, quality int) error {
	if quality < 1 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	if isOpaque(img) {
		rgba := &image.RGBA{
			Pix:    img.Pix,
			Stride: img.Stride,
			Rect:   img.Rect,
		}
		return jpeg.Encode(w, rgba, &jpeg.Options{Quality: quality})
	}
	return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
}

// encodePNG writes the smallest lossless representation it can find:
// paletted when the image has at most 256 colors, gray when R == G == B,
// full NRGBA otherwise.
func encodePNG(w io.Writer, img *image.NRGBA) error {
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if p := tryPalettize(img, 256); p != nil {
		return enc.Encode(w, p)
	}
	if isOpaque(img) && isGrayscale(img) {
		return enc.Encode(w, toGray(img))
	}
	return enc.Encode(w, img)
}

// tryPalettize attempts to convert the image to an indexed palette.
// Returns nil if the image has too many colors.
func tryPalettize(img *image.NRGBA, maxColors int) *image.Paletted {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()

	index := make(map[[4]uint8]uint8, maxColors)
	palette := make(color.Palette, 0, maxColors)

	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for i := 0; i < len(row); i += 4 {
			key := [4]uint8{row[i], row[i+1], row[i+2], row[i+3]}
			if _, ok := index[key]; ok {
				continue
			}
			if len(palette) == maxColors {
				return nil
			}
			index[key] = uint8(len(palette))
			palette = append(palette, color.NRGBA{key[0], key[1], key[2], key[3]})
		}
	}

	out := image.NewPaletted(image.Rect(0, 0, w, h), palette)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < w; x++ {
			i := x * 4
			dst[x] = index[[4]uint8{row[i], row[i+1], row[i+2], row[i+3]}]
		}
	}
	return out
}
