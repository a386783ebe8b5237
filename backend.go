package geostamp

import (
	"fmt"
	"image"
	"strings"

	xdraw "golang.org/x/image/draw"
)

// Backend supplies the two raster primitives the compositor needs.
// Implementations must return zero-origin images from Resize.
type Backend interface {
	Name() string
	// Resize scales src to exactly w x h.
	Resize(src *image.NRGBA, w, h int) *image.NRGBA
	// Over blends src onto dst with src's top-left corner at `at`.
	Over(dst, src *image.NRGBA, at image.Point)
}

// NativeBackend uses the package's Lanczos-3 resampler and a straight-alpha
// blend, both fanned out over GOMAXPROCS goroutines.
type NativeBackend struct{}

func (NativeBackend) Name() string { return "native" }

func (NativeBackend) Resize(src *image.NRGBA, w, h int) *image.NRGBA {
	return lanczosResize(src, w, h)
}

func (NativeBackend) Over(dst, src *image.NRGBA, at image.Point) {
	overNRGBA(dst, src, at)
}

// XDrawBackend uses golang.org/x/image/draw: Catmull-Rom scaling and
// Porter-Duff over.
type XDrawBackend struct{}

func (XDrawBackend) Name() string { return "xdraw" }

func (XDrawBackend) Resize(src *image.NRGBA, w, h int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

func (XDrawBackend) Over(dst, src *image.NRGBA, at image.Point) {
	r := image.Rectangle{Min: at, Max: at.Add(src.Bounds().Size())}
	xdraw.Draw(dst, r, src, src.Bounds().Min, xdraw.Over)
}

// BackendByName returns the backend registered under name ("native" or "xdraw").
// The empty string selects native.
func BackendByName(name string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "native":
		return NativeBackend{}, nil
	case "xdraw":
		return XDrawBackend{}, nil
	}
	return nil, fmt.Errorf("geostamp: unknown backend %q (use native or xdraw): %w", name, ErrInvalidInput)
}
