package geostamp

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
)

// Locator resolves a coordinate to a named place and fetches a static map
// centered on it. The returned map path is a file the caller owns.
type Locator interface {
	Location(ctx context.Context, lat, lon float64) (Location, error)
	MapImage(ctx context.Context, lat, lon float64, zoom, width, height int) (string, error)
}

// BatchItem is one photo to stamp.
type BatchItem struct {
	// Background is the input photo.
	Background string
	// Output is the requested output path; the written path may carry a
	// _n suffix.
	Output string
	// Stamp describes the overlay. A missing display name or map path is
	// filled in by BatchOptions.Locator when one is set.
	Stamp Stamp
}

// BatchResult holds the outcome of one item.
type BatchResult struct {
	Item BatchItem
	// Path is the file actually written.
	Path string
	// Size is the byte size of the written file.
	Size int64
	Err  error
	// Index is the position in the input slice.
	Index int
}

// BatchOptions configures RunBatch.
type BatchOptions struct {
	// Locator fills in missing place names and map thumbnails. Optional.
	Locator Locator
	// Zoom and MapWidth/MapHeight are passed to Locator.MapImage.
	// Zero values select 12 and 600x600.
	Zoom      int
	MapWidth  int
	MapHeight int

	Logger *slog.Logger

	// OnItem is called after each item completes (for progress reporting).
	OnItem func(completed, total int)
}

// RunBatch stamps items one after another. A failing item is recorded in its
// result and the loop moves on. ctx is checked between items only: once it
// is done, the remaining items fail with ctx.Err() and the item in progress
// still completes.
func RunBatch(ctx context.Context, s Stamper, items []BatchItem, opts BatchOptions) []BatchResult {
	if len(items) == 0 {
		return nil
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	logger := opts.Logger

	results := make([]BatchResult, len(items))
	for i, item := range items {
		results[i] = BatchResult{Item: item, Index: i}
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}

		results[i].Path, results[i].Size, results[i].Err = runItem(ctx, s, item, opts)
		if err := results[i].Err; err != nil {
			logger.Error("stamp failed", "index", i, "background", item.Background, "err", err)
		} else {
			logger.Info("stamped", "index", i, "path", results[i].Path, "size", humanize.Bytes(uint64(results[i].Size)))
		}

		if opts.OnItem != nil {
			opts.OnItem(i+1, len(items))
		}
	}
	return results
}

func runItem(ctx context.Context, s Stamper, item BatchItem, opts BatchOptions) (string, int64, error) {
	stamp := item.Stamp
	var fetched string
	if opts.Locator != nil {
		bg := item.Background
		if bg == "" {
			bg = stamp.BackgroundImagePath
		}
		// No request is spent on an item that cannot be stamped.
		if _, errs := checkPaths(bg, item.Output); len(errs) > 0 {
			return "", 0, fmt.Errorf("%w: %w", ErrInvalidInput, errors.Join(errs...))
		}
		var err error
		if fetched, err = resolve(ctx, opts, &stamp); err != nil {
			return "", 0, err
		}
	}

	path, err := s.StampImage(item.Background, stamp, item.Output)
	if err != nil {
		removeFetched(fetched, opts.Logger)
		return "", 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return path, 0, fmt.Errorf("geostamp: stat %q: %w: %w", path, ErrIO, err)
	}
	return path, info.Size(), nil
}

// removeFetched deletes a map the locator downloaded for an item that then
// failed.
func removeFetched(path string, logger *slog.Logger) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("could not remove downloaded map", "path", path, "err", err)
	}
}

// resolve asks the locator for whatever the stamp is missing. The caller's
// coordinates always win over the provider's. It returns the path of a map
// it downloaded, if any.
func resolve(ctx context.Context, opts BatchOptions, stamp *Stamp) (string, error) {
	lat, lon := stamp.Location.Latitude, stamp.Location.Longitude
	if stamp.Location.DisplayName == "" {
		loc, err := opts.Locator.Location(ctx, lat, lon)
		if err != nil {
			return "", err
		}
		loc.Latitude, loc.Longitude = lat, lon
		stamp.Location = loc
	}
	if stamp.MapImagePath != "" {
		return "", nil
	}
	zoom, w, h := opts.Zoom, opts.MapWidth, opts.MapHeight
	if zoom <= 0 {
		zoom = 12
	}
	if w <= 0 {
		w = 600
	}
	if h <= 0 {
		h = 600
	}
	path, err := opts.Locator.MapImage(ctx, lat, lon, zoom, w, h)
	if err != nil {
		return "", err
	}
	stamp.MapImagePath = path
	return path, nil
}

// BatchSummary provides aggregate statistics for a batch.
type BatchSummary struct {
	Total     int
	Succeeded int
	Failed    int
	Written   int64
}

// Summarize computes aggregate statistics from batch results.
func Summarize(results []BatchResult) BatchSummary {
	s := BatchSummary{Total: len(results)}
	for _, r := range results {
		if r.Err != nil {
			s.Failed++
			continue
		}
		s.Succeeded++
		s.Written += r.Size
	}
	return s
}

// String returns a human-readable batch summary.
func (s BatchSummary) String() string {
	return fmt.Sprintf("Batch: %d/%d stamped | %d failed | %s written",
		s.Succeeded, s.Total, s.Failed, humanize.Bytes(uint64(s.Written)))
}
