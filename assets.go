package geostamp

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

// Asset names understood by every Assets implementation.
const (
	AssetMarker      = "marker.png"
	AssetRegularFont = "fonts/regular.ttf"
	AssetBoldFont    = "fonts/bold.ttf"
)

//go:embed assets/marker.png
var bundled embed.FS

// Assets resolves named resources: the marker glyph and the two font weights.
type Assets interface {
	Open(name string) (io.ReadCloser, error)
}

type embeddedAssets struct{}

// EmbeddedAssets serves the bundled marker and the Go font family.
func EmbeddedAssets() Assets { return embeddedAssets{} }

func (embeddedAssets) Open(name string) (io.ReadCloser, error) {
	switch name {
	case AssetRegularFont:
		return io.NopCloser(bytes.NewReader(goregular.TTF)), nil
	case AssetBoldFont:
		return io.NopCloser(bytes.NewReader(gobold.TTF)), nil
	case AssetMarker:
		return bundled.Open("assets/" + AssetMarker)
	}
	return nil, fmt.Errorf("geostamp: asset %q: %w", name, ErrResourceMissing)
}

// DirAssets serves assets from a directory, e.g. dir/marker.png and
// dir/fonts/bold.ttf.
type DirAssets string

func (d DirAssets) Open(name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(string(d), filepath.FromSlash(name)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("geostamp: asset %q in %q: %w", name, string(d), ErrResourceMissing)
	}
	if err != nil {
		return nil, fmt.Errorf("geostamp: asset %q: %w", name, err)
	}
	return f, nil
}

// ChainAssets tries each provider in order and returns the first hit.
type ChainAssets []Assets

func (c ChainAssets) Open(name string) (io.ReadCloser, error) {
	for _, a := range c {
		rc, err := a.Open(name)
		if err == nil {
			return rc, nil
		}
		if !errors.Is(err, ErrResourceMissing) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("geostamp: asset %q: %w", name, ErrResourceMissing)
}

func readAsset(a Assets, name string) ([]byte, error) {
	rc, err := a.Open(name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("geostamp: read asset %q: %w", name, err)
	}
	return data, nil
}
