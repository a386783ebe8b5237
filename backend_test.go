package geostamp

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var backends = []Backend{NativeBackend{}, XDrawBackend{}}

func TestBackendResizeExactDimensions(t *testing.T) {
	src := makeTestImage(640, 480)
	for _, b := range backends {
		for _, sz := range []image.Point{{1920, 1080}, {160, 160}, {33, 7}, {1, 1}} {
			out := b.Resize(src, sz.X, sz.Y)
			assert.Equal(t, image.Rectangle{Max: sz}, out.Bounds(), "%s %v", b.Name(), sz)
		}
	}
}

func TestBackendResizeKeepsSolidColor(t *testing.T) {
	c := color.NRGBA{90, 160, 30, 255}
	src := makeSolidImage(300, 200, c)
	for _, b := range backends {
		out := b.Resize(src, 97, 61)
		for _, p := range []image.Point{{0, 0}, {48, 30}, {96, 60}} {
			assertNear(t, c, out.NRGBAAt(p.X, p.Y), 1)
		}
	}
}

func TestBackendOverClips(t *testing.T) {
	for _, b := range backends {
		dst := makeSolidImage(10, 10, color.NRGBA{0, 0, 0, 255})
		src := makeSolidImage(4, 4, color.NRGBA{255, 255, 255, 255})

		b.Over(dst, src, image.Pt(8, -2))
		assert.Equal(t, color.NRGBA{255, 255, 255, 255}, dst.NRGBAAt(9, 0), b.Name())
		assert.Equal(t, color.NRGBA{255, 255, 255, 255}, dst.NRGBAAt(8, 1), b.Name())
		assert.Equal(t, color.NRGBA{0, 0, 0, 255}, dst.NRGBAAt(8, 2), b.Name())
		assert.Equal(t, color.NRGBA{0, 0, 0, 255}, dst.NRGBAAt(7, 0), b.Name())

		// Entirely outside.
		b.Over(dst, src, image.Pt(20, 20))
	}
}

func TestBackendOverBlendsAlpha(t *testing.T) {
	for _, b := range backends {
		dst := makeSolidImage(2, 2, color.NRGBA{200, 200, 200, 255})
		src := makeSolidImage(2, 2, color.NRGBA{0, 0, 0, 128})
		b.Over(dst, src, image.Point{})
		p := dst.NRGBAAt(1, 1)
		assert.InDelta(t, 100, int(p.R), 2, b.Name())
		assert.Equal(t, uint8(255), p.A, b.Name())
	}
}

func TestBackendOverTransparentIsNoop(t *testing.T) {
	for _, b := range backends {
		dst := makeSolidImage(3, 3, color.NRGBA{12, 34, 56, 255})
		b.Over(dst, image.NewNRGBA(image.Rect(0, 0, 3, 3)), image.Point{})
		assert.Equal(t, color.NRGBA{12, 34, 56, 255}, dst.NRGBAAt(1, 1), b.Name())
	}
}

func TestBackendByName(t *testing.T) {
	for name, want := range map[string]string{"": "native", "native": "native", " XDraw ": "xdraw"} {
		b, err := BackendByName(name)
		require.NoError(t, err)
		assert.Equal(t, want, b.Name())
	}
	_, err := BackendByName("vips")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestFitSize(t *testing.T) {
	assert.Equal(t, image.Pt(30, 40), fitSize(image.Pt(96, 128), 40, 40))
	assert.Equal(t, image.Pt(40, 20), fitSize(image.Pt(10, 5), 40, 40))
	assert.Equal(t, image.Point{}, fitSize(image.Point{}, 40, 40))
}

func TestCoverRect(t *testing.T) {
	assert.Equal(t, image.Rect(50, 0, 250, 200), coverRect(300, 200, 160, 160))
	assert.Equal(t, image.Rect(0, 75, 800, 525), coverRect(800, 600, 1920, 1080))
	assert.Equal(t, image.Rect(0, 0, 1920, 1080), coverRect(1920, 1080, 1920, 1080))
}
