// Package geostamp stamps photos with where and when they were taken.
//
// A stamp is a 1080x180 semi-transparent band laid over the bottom of the
// photo: a map thumbnail with a marker on the left, the place name and the
// coordinates, date and time on the right. The photo is first cropped to
// fill a fixed 1920x1080 (landscape) or 1080x1920 (portrait) canvas, and the
// same position and timestamp are written into the output's EXIF block
// while the identity fields (Artist, HostComputer, owner names) are removed.
//
//   - Adaptive title fitting: shrink, then truncate, never overflow the band
//   - Crop-to-fill canvas normalization, no letterboxing
//   - EXIF GPS and dates for JPEG (APP1) and PNG (eXIf) outputs
//   - Collision-free output naming and atomic writes
//   - Two interchangeable imaging backends
package geostamp

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Stamper produces a stamped copy of a background photo and returns the
// path actually written, which may differ from outputPath when that name
// is already taken.
type Stamper interface {
	StampImage(backgroundPath string, stamp Stamp, outputPath string) (string, error)
}

// Compositor is the Stamper implementation. It is safe for concurrent use;
// jobs share only read-only state.
type Compositor struct {
	layout      Layout
	backend     Backend
	typesetter  *Typesetter
	marker      *image.NRGBA
	jpegQuality int
	autoOrient  bool
	logger      *slog.Logger
}

var _ Stamper = (*Compositor)(nil)

// NewCompositor loads fonts and the marker glyph. A missing asset fails
// here with ErrResourceMissing rather than in the middle of a job.
func NewCompositor(opts Options) (*Compositor, error) {
	c := &Compositor{
		layout:      opts.Layout,
		backend:     opts.Backend,
		jpegQuality: opts.JPEGQuality,
		autoOrient:  opts.AutoOrient,
		logger:      opts.Logger,
	}
	if c.layout == (Layout{}) {
		c.layout = DefaultLayout()
	}
	if c.backend == nil {
		c.backend = NativeBackend{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	assets := opts.Assets
	if assets == nil {
		assets = EmbeddedAssets()
	}

	regular, err := readAsset(assets, AssetRegularFont)
	if err != nil {
		return nil, err
	}
	bold, err := readAsset(assets, AssetBoldFont)
	if err != nil {
		return nil, err
	}
	if c.typesetter, err = NewTypesetter(regular, bold); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResourceMissing, err)
	}

	raw, err := readAsset(assets, AssetMarker)
	if err != nil {
		return nil, err
	}
	marker, err := decodeBytes(AssetMarker, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResourceMissing, err)
	}
	c.marker = toNRGBA(marker)
	return c, nil
}

// Layout returns the layout in use.
func (c *Compositor) Layout() Layout { return c.layout }

// Backend returns the imaging backend in use.
func (c *Compositor) Backend() Backend { return c.backend }

// StampImage renders the stamp onto the background, writes the result with
// updated EXIF metadata and deletes the consumed map thumbnail. When
// backgroundPath is empty, stamp.BackgroundImagePath is used; a zero
// Timestamp means now.
//
// The request is validated before any image is decoded; every problem found
// is reported together, wrapped in ErrInvalidInput.
func (c *Compositor) StampImage(backgroundPath string, stamp Stamp, outputPath string) (string, error) {
	if backgroundPath == "" {
		backgroundPath = stamp.BackgroundImagePath
	}
	stamp = stampedNow(stamp)
	format, err := validate(backgroundPath, stamp, outputPath)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(backgroundPath)
	if err != nil {
		return "", fmt.Errorf("geostamp: read %q: %w: %w", backgroundPath, ErrIO, err)
	}
	bg, err := decodeBytes(backgroundPath, data)
	if err != nil {
		return "", err
	}

	profile, err := ReadExifProfile(bytes.NewReader(data))
	if err != nil {
		c.logger.Debug("no usable exif in background, starting fresh", "path", backgroundPath, "err", err)
		profile = NewExifProfile()
	}

	canvas, err := c.render(toNRGBA(bg), profile.Orientation(), stamp)
	if err != nil {
		return "", err
	}

	ApplyGeoMetadata(profile, stamp)
	profile.SetRaster(canvas.Bounds().Dx(), canvas.Bounds().Dy())

	out, err := encodeWithExif(canvas, format, c.jpegQuality, profile)
	if err != nil {
		return "", err
	}

	final := UniquePath(outputPath)
	if err := writeFileAtomic(final, out); err != nil {
		return "", err
	}
	c.logger.Debug("stamped image written", "path", final, "size", len(out), "backend", c.backend.Name())

	c.consumeThumbnail(stamp.MapImagePath)
	return final, nil
}

// Render returns the stamped raster without touching the filesystem beyond
// reading the map thumbnail. orient is the background's EXIF orientation.
func (c *Compositor) Render(bg image.Image, orient Orientation, stamp Stamp) (*image.NRGBA, error) {
	if bg == nil {
		return nil, fmt.Errorf("geostamp: nil background: %w", ErrInvalidInput)
	}
	return c.render(toNRGBA(bg), orient, stampedNow(stamp))
}

// stampedNow fills a zero Timestamp with the current time.
func stampedNow(s Stamp) Stamp {
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}
	return s
}

func (c *Compositor) render(bg *image.NRGBA, orient Orientation, stamp Stamp) (*image.NRGBA, error) {
	if c.autoOrient {
		bg = ApplyOrientation(bg, orient)
	}

	var canvas, band *image.NRGBA
	var g errgroup.Group
	g.Go(func() error {
		canvas = c.NormalizeCanvas(bg)
		return nil
	})
	g.Go(func() error {
		b, err := c.BuildOverlayBand(stamp.MapImagePath, stamp.Location, stamp.Timestamp)
		band = b
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.placeBand(canvas, band)
	return canvas, nil
}

// consumeThumbnail removes the map file once it has been stamped. Failure
// is logged and otherwise ignored; the output is already written.
func (c *Compositor) consumeThumbnail(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := os.Remove(path); err != nil {
		c.logger.Warn("could not remove map thumbnail", "path", path, "err", err)
	}
}

func validate(backgroundPath string, stamp Stamp, outputPath string) (Format, error) {
	format, errs := checkPaths(backgroundPath, outputPath)
	if err := checkFile("map image", stamp.MapImagePath); err != nil {
		errs = append(errs, err)
	}

	lat, lon := stamp.Location.Latitude, stamp.Location.Longitude
	if !(lat >= -90 && lat <= 90) {
		errs = append(errs, fmt.Errorf("latitude %v out of range [-90, 90]", lat))
	}
	if !(lon >= -180 && lon <= 180) {
		errs = append(errs, fmt.Errorf("longitude %v out of range [-180, 180]", lon))
	}

	if len(errs) > 0 {
		return 0, fmt.Errorf("%w: %w", ErrInvalidInput, errors.Join(errs...))
	}
	return format, nil
}

// checkPaths validates the background and output sides of a request.
func checkPaths(backgroundPath, outputPath string) (Format, []error) {
	var errs []error
	var format Format
	if err := checkFile("background", backgroundPath); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(outputPath) == "" {
		errs = append(errs, errors.New("output path is empty"))
	} else if f, err := FormatFromPath(outputPath); err != nil {
		errs = append(errs, err)
	} else {
		format = f
		if err := checkOutputDir(filepath.Dir(outputPath)); err != nil {
			errs = append(errs, err)
		}
	}
	return format, errs
}

func checkFile(what, path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%s path is empty", what)
	}
	info, err := os.Stat(path)
	switch {
	case err != nil:
		return fmt.Errorf("%s %q: %w", what, path, err)
	case info.IsDir():
		return fmt.Errorf("%s %q is a directory", what, path)
	}
	return nil
}

// checkOutputDir walks up from dir to the nearest existing ancestor, which
// must be a directory. Missing levels are created at write time.
func checkOutputDir(dir string) error {
	for d := dir; ; {
		info, err := os.Stat(d)
		switch {
		case err == nil && info.IsDir():
			return nil
		case err == nil:
			return fmt.Errorf("output directory %q: %q is not a directory", dir, d)
		case !errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("output directory %q: %w", dir, err)
		}
		parent := filepath.Dir(d)
		if parent == d {
			return nil
		}
		d = parent
	}
}
