package geostamp

import "image"

// CanvasSize returns the output size for a w x h background: the layout's
// landscape size when w > h, its portrait size otherwise.
func (l Layout) CanvasSize(w, h int) image.Point {
	if w > h {
		return l.Landscape
	}
	return l.Portrait
}

// BandOrigin returns where the band's top-left corner goes on a canvas of
// the given size: flush bottom, horizontally centered on landscape canvases
// and flush left on portrait ones.
func (l Layout) BandOrigin(canvas image.Point) image.Point {
	y := canvas.Y - l.BandHeight
	if canvas.X > canvas.Y {
		return image.Pt((canvas.X-l.BandWidth)/2, y)
	}
	return image.Pt(0, y)
}

// NormalizeCanvas crops bg to fill the canvas size chosen by its aspect.
func (c *Compositor) NormalizeCanvas(bg *image.NRGBA) *image.NRGBA {
	size := c.layout.CanvasSize(bg.Bounds().Dx(), bg.Bounds().Dy())
	return cropToFill(c.backend, bg, size.X, size.Y)
}

// Normalize crops bg to its canvas size and composites band at the bottom.
func (c *Compositor) Normalize(bg, band image.Image) *image.NRGBA {
	canvas := c.NormalizeCanvas(toNRGBA(bg))
	c.placeBand(canvas, toNRGBA(band))
	return canvas
}

func (c *Compositor) placeBand(canvas, band *image.NRGBA) {
	c.backend.Over(canvas, band, c.layout.BandOrigin(canvas.Bounds().Size()))
}
