package geostamp

import (
	"image"
	"image/color"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

var textColor = image.NewUniform(color.White)

// BuildOverlayBand renders the semi-transparent band: the map thumbnail with
// its marker on the left, title and coordinate/date lines on the right.
// The result is always exactly BandWidth x BandHeight.
func (c *Compositor) BuildOverlayBand(mapPath string, loc Location, at time.Time) (*image.NRGBA, error) {
	l := c.layout
	g, err := c.typesetter.Plan(l, loc, at)
	if err != nil {
		return nil, err
	}

	src, err := Open(mapPath)
	if err != nil {
		return nil, err
	}
	side := l.ThumbnailSize()
	thumb := cropToFill(c.backend, toNRGBA(src), side, side)

	marker := fitWithin(c.backend, c.marker, l.MarkerSize, l.MarkerSize)
	mw, mh := marker.Bounds().Dx(), marker.Bounds().Dy()
	c.backend.Over(thumb, marker, image.Pt(side/2-mw/2, side/2-mh+l.MarkerLift))

	layer := image.NewNRGBA(image.Rect(0, 0, g.TextLayer.Dx(), g.TextLayer.Dy()))
	if err := c.drawText(layer, g); err != nil {
		return nil, err
	}

	band := image.NewNRGBA(image.Rect(0, 0, l.BandWidth, l.BandHeight))
	fill := [4]uint8{0, 0, 0, l.BandAlpha}
	for i := 0; i < len(band.Pix); i += 4 {
		copy(band.Pix[i:i+4], fill[:])
	}
	c.backend.Over(band, thumb, g.Thumbnail.Min)
	c.backend.Over(band, layer, g.TextLayer.Min)
	return band, nil
}

func (c *Compositor) drawText(dst *image.NRGBA, g Geometry) error {
	runs := append([]TextRun{g.Title}, g.Runs...)
	for _, r := range runs {
		if r.Text == "" {
			continue
		}
		face, err := c.typesetter.Face(r.Weight, r.Size)
		if err != nil {
			return err
		}
		d := font.Drawer{
			Dst:  dst,
			Src:  textColor,
			Face: face,
			Dot:  fixed.P(r.At.X, r.At.Y+face.Metrics().Ascent.Ceil()),
		}
		d.DrawString(r.Text)
		face.Close()
	}
	return nil
}
