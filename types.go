package geostamp

import (
	"image"
	"log/slog"
	"time"
)

// Version is the library version.
const Version = "1.0.0"

// Address is the structured part of a reverse-geocoding answer.
// Every field is optional.
type Address struct {
	Town          string `json:"town,omitempty"`
	County        string `json:"county,omitempty"`
	StateDistrict string `json:"state_district,omitempty"`
	State         string `json:"state,omitempty"`
	Postcode      string `json:"postcode,omitempty"`
	Country       string `json:"country,omitempty"`
	CountryCode   string `json:"country_code,omitempty"`
}

// Location is a point on the globe plus its human-readable name.
type Location struct {
	// Latitude in decimal degrees, [-90, 90]. Geocoders send it as a
	// JSON string.
	Latitude float64 `json:"lat,string"`
	// Longitude in decimal degrees, [-180, 180].
	Longitude float64 `json:"lon,string"`
	// DisplayName is rendered as the overlay title. It may be arbitrarily long.
	DisplayName string  `json:"display_name"`
	Address     Address `json:"address"`
}

// Stamp is one stamping request.
type Stamp struct {
	Location Location

	// MapImagePath points at the map thumbnail. The file is consumed:
	// it is deleted after the stamped image has been written.
	MapImagePath string

	// BackgroundImagePath is used when StampImage is called with an empty
	// background path.
	BackgroundImagePath string

	// Timestamp is written into the overlay and the EXIF date fields.
	Timestamp time.Time
}

// NewStamp returns a Stamp timestamped now.
func NewStamp(loc Location, backgroundPath, mapPath string) Stamp {
	return Stamp{
		Location:            loc,
		MapImagePath:        mapPath,
		BackgroundImagePath: backgroundPath,
		Timestamp:           time.Now(),
	}
}

// Layout holds every fixed dimension of the overlay band and the output canvas.
// Sizes are pixels; font sizes are pixels at 72 DPI.
type Layout struct {
	BandWidth  int
	BandHeight int

	// Padding surrounds the thumbnail and separates the title from the first line.
	Padding int
	// ThumbnailGap is added to the thumbnail width to get the first text column.
	ThumbnailGap int

	MarkerSize int
	// MarkerLift moves the marker tip below the thumbnail center.
	MarkerLift int

	LineGap    int
	CaptionGap int

	TitleSize    float64
	TextSize     float64
	MinTitleSize float64
	TitleStep    float64

	// SecondColumnOffset is subtracted from half the text width to place column 2.
	SecondColumnOffset int

	BandAlpha uint8

	Landscape image.Point
	Portrait  image.Point

	DateLayout string
	TimeLayout string
	// CoordinatePrecision is the number of decimals shown for latitude and longitude.
	CoordinatePrecision int
}

// DefaultLayout returns the reference layout: a 1080x180 band on a
// 1920x1080 or 1080x1920 canvas.
func DefaultLayout() Layout {
	return Layout{
		BandWidth:           1080,
		BandHeight:          180,
		Padding:             10,
		ThumbnailGap:        30,
		MarkerSize:          40,
		MarkerLift:          10,
		LineGap:             15,
		CaptionGap:          10,
		TitleSize:           30,
		TextSize:            22,
		MinTitleSize:        25,
		TitleStep:           5,
		SecondColumnOffset:  50,
		BandAlpha:           128,
		Landscape:           image.Pt(1920, 1080),
		Portrait:            image.Pt(1080, 1920),
		DateLayout:          "02-01-2006",
		TimeLayout:          "15:04",
		CoordinatePrecision: 6,
	}
}

// ThumbnailSize is the side of the square map thumbnail.
func (l Layout) ThumbnailSize() int {
	return l.BandHeight - 2*l.Padding
}

// FirstColumn is the x offset of the text block inside the band.
func (l Layout) FirstColumn() int {
	return l.ThumbnailSize() + l.ThumbnailGap
}

// TextWidth is the horizontal space left for text.
func (l Layout) TextWidth() int {
	return l.BandWidth - l.FirstColumn()
}

// Options configures a Compositor.
type Options struct {
	Layout Layout

	// Backend supplies resize and blend primitives. nil selects NativeBackend.
	Backend Backend

	// Assets supplies fonts and the marker glyph. nil selects EmbeddedAssets.
	Assets Assets

	// JPEGQuality is used for .jpg/.jpeg outputs, 1-100.
	JPEGQuality int

	// AutoOrient rotates the background upright using its EXIF orientation
	// before the landscape/portrait decision.
	AutoOrient bool

	// Logger receives warnings such as a thumbnail that could not be removed.
	// nil selects slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Layout:      DefaultLayout(),
		JPEGQuality: 92,
		AutoOrient:  true,
	}
}
