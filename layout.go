package geostamp

import (
	"fmt"
	"image"
	"strconv"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
)

// Weight selects one of the two loaded font faces.
type Weight int

const (
	Regular Weight = iota
	Bold
)

// Extent is the rendered size of a string: advance width and
// ascent+descent height, both rounded up.
type Extent struct {
	Width, Height int
}

// Typesetter measures text with a regular and a bold TrueType font.
// Faces are created per call, so a Typesetter is safe for concurrent use.
type Typesetter struct {
	regular *opentype.Font
	bold    *opentype.Font
}

// NewTypesetter parses the two font files.
func NewTypesetter(regular, bold []byte) (*Typesetter, error) {
	r, err := opentype.Parse(regular)
	if err != nil {
		return nil, fmt.Errorf("geostamp: parse regular font: %w", err)
	}
	b, err := opentype.Parse(bold)
	if err != nil {
		return nil, fmt.Errorf("geostamp: parse bold font: %w", err)
	}
	return &Typesetter{regular: r, bold: b}, nil
}

// Face returns a face of the given weight and pixel size. DPI is fixed at
// 72 so that size equals pixels. The caller closes it.
func (ts *Typesetter) Face(w Weight, size float64) (font.Face, error) {
	f := ts.regular
	if w == Bold {
		f = ts.bold
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("geostamp: font face %.1fpx: %w", size, err)
	}
	return face, nil
}

// Measure returns the extent of s at the given weight and size.
func (ts *Typesetter) Measure(w Weight, size float64, s string) (Extent, error) {
	face, err := ts.Face(w, size)
	if err != nil {
		return Extent{}, err
	}
	defer face.Close()
	return measureFace(face, s), nil
}

func measureFace(face font.Face, s string) Extent {
	m := face.Metrics()
	return Extent{
		Width:  font.MeasureString(face, s).Ceil(),
		Height: (m.Ascent + m.Descent).Ceil(),
	}
}

// Fitted is the outcome of Fit.
type Fitted struct {
	Text      string
	Size      float64
	Extent    Extent
	Truncated bool
}

// Fit shrinks s from start by step while it is wider than maxWidth and the
// size is above floor. If it still overflows at that point, the text is cut
// once to the first half of its runes plus "..."; the cut form is not
// measured again, Extent stays that of the last size tried.
func (ts *Typesetter) Fit(w Weight, s string, maxWidth int, start, floor, step float64) (Fitted, error) {
	size := start
	ext, err := ts.Measure(w, size, s)
	if err != nil {
		return Fitted{}, err
	}
	for step > 0 && ext.Width > maxWidth && size > floor {
		size -= step
		if ext, err = ts.Measure(w, size, s); err != nil {
			return Fitted{}, err
		}
	}
	out := Fitted{Text: s, Size: size, Extent: ext}
	if ext.Width > maxWidth {
		r := []rune(s)
		out.Text = string(r[:len(r)/2]) + "..."
		out.Truncated = true
	}
	return out, nil
}

// TextRun is one string placed in the text layer. At is the top-left corner
// of its line box.
type TextRun struct {
	Text   string
	Weight Weight
	Size   float64
	At     image.Point
}

// Geometry is the per-stamp placement of everything inside the band.
type Geometry struct {
	// Thumbnail is the map square in band coordinates.
	Thumbnail image.Rectangle
	// TextLayer is the text block in band coordinates.
	TextLayer image.Rectangle

	// Title and Runs are in text-layer coordinates.
	Title          TextRun
	TitleTruncated bool
	Runs           []TextRun

	FirstLineTop  int
	SecondLineTop int
	LineHeight    int
	SecondColumn  int
}

// Plan lays out the overlay text for one location and timestamp.
// Column 1 holds the title, latitude and longitude; column 2 holds date
// and time. Values are bold, captions regular.
func (ts *Typesetter) Plan(l Layout, loc Location, at time.Time) (Geometry, error) {
	thumb := l.ThumbnailSize()
	textW := l.TextWidth()

	title, err := ts.Fit(Bold, loc.DisplayName, textW, l.TitleSize, l.MinTitleSize, l.TitleStep)
	if err != nil {
		return Geometry{}, err
	}

	caption, err := ts.Face(Regular, l.TextSize)
	if err != nil {
		return Geometry{}, err
	}
	defer caption.Close()

	lat := strconv.FormatFloat(loc.Latitude, 'f', l.CoordinatePrecision, 64)
	lon := strconv.FormatFloat(loc.Longitude, 'f', l.CoordinatePrecision, 64)
	lineH := measureFace(caption, lat).Height
	if v, err := ts.Measure(Bold, l.TextSize, lat); err != nil {
		return Geometry{}, err
	} else if v.Height > lineH {
		lineH = v.Height
	}

	g := Geometry{
		Thumbnail:      image.Rect(l.Padding, l.Padding, l.Padding+thumb, l.Padding+thumb),
		Title:          TextRun{Text: title.Text, Weight: Bold, Size: title.Size},
		TitleTruncated: title.Truncated,
		LineHeight:     lineH,
		SecondColumn:   textW/2 - l.SecondColumnOffset,
	}
	g.FirstLineTop = title.Extent.Height + l.Padding
	g.SecondLineTop = g.FirstLineTop + lineH + l.LineGap
	layerH := g.SecondLineTop + lineH + l.Padding

	pair := func(x, y int, label, value string) {
		w := measureFace(caption, label).Width
		g.Runs = append(g.Runs,
			TextRun{Text: label, Weight: Regular, Size: l.TextSize, At: image.Pt(x, y)},
			TextRun{Text: value, Weight: Bold, Size: l.TextSize, At: image.Pt(x+w+l.CaptionGap, y)},
		)
	}
	pair(0, g.FirstLineTop, "Latitude:", lat)
	pair(0, g.SecondLineTop, "Longitude:", lon)
	pair(g.SecondColumn, g.FirstLineTop, "Date:", at.Format(l.DateLayout))
	pair(g.SecondColumn, g.SecondLineTop, "Time:", at.Format(l.TimeLayout))

	top := l.BandHeight/2 - layerH/2
	first := l.FirstColumn()
	g.TextLayer = image.Rect(first, top, first+textW, top+layerH)
	return g, nil
}
