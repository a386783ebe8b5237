// Package locationiq talks to the LocationIQ reverse-geocoding and static
// map APIs. Client implements geostamp.Locator.
package locationiq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shamspias/geostamp"
)

const (
	DefaultBaseURL = "https://us1.locationiq.com/v1"
	DefaultMapsURL = "https://maps.locationiq.com/v3"

	DefaultZoom      = 8
	DefaultMapWidth  = 600
	DefaultMapHeight = 600

	// MapFileName is the base name of downloaded maps; repeats get a _n suffix.
	MapFileName = "static_map.jpg"
)

// ErrNoAPIKey is returned before any request is made when the client has
// no key configured.
var ErrNoAPIKey = errors.New("locationiq: api key is not configured")

// Client is a LocationIQ API client. The zero value is not usable; use New.
type Client struct {
	APIKey  string
	BaseURL string
	MapsURL string
	// SaveDir receives downloaded map images.
	SaveDir string
	HTTP    *http.Client
}

var _ geostamp.Locator = (*Client)(nil)

// New returns a client with production endpoints and a 30s timeout.
func New(apiKey, saveDir string) *Client {
	return &Client{
		APIKey:  apiKey,
		BaseURL: DefaultBaseURL,
		MapsURL: DefaultMapsURL,
		SaveDir: saveDir,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Location reverse-geocodes lat/lon.
func (c *Client) Location(ctx context.Context, lat, lon float64) (geostamp.Location, error) {
	if c.APIKey == "" {
		return geostamp.Location{}, ErrNoAPIKey
	}
	q := url.Values{}
	q.Set("key", c.APIKey)
	q.Set("lat", formatCoord(lat))
	q.Set("lon", formatCoord(lon))
	q.Set("format", "json")
	q.Set("normalizeaddress", "1")

	body, err := c.get(ctx, c.BaseURL+"/reverse?"+q.Encode())
	if err != nil {
		return geostamp.Location{}, err
	}
	defer body.Close()

	var loc geostamp.Location
	if err := json.NewDecoder(body).Decode(&loc); err != nil {
		return geostamp.Location{}, fmt.Errorf("locationiq: decode reverse response: %w: %w", geostamp.ErrTransport, err)
	}
	return loc, nil
}

// MapImage downloads a street map centered on lat/lon into SaveDir and
// returns its path.
func (c *Client) MapImage(ctx context.Context, lat, lon float64, zoom, width, height int) (string, error) {
	if c.APIKey == "" {
		return "", ErrNoAPIKey
	}
	q := url.Values{}
	q.Set("key", c.APIKey)
	q.Set("center", formatCoord(lat)+","+formatCoord(lon))
	q.Set("zoom", strconv.Itoa(zoom))
	q.Set("size", fmt.Sprintf("%dx%d", width, height))
	q.Set("format", "jpg")
	q.Set("maptype", "streets")

	body, err := c.get(ctx, c.MapsURL+"/staticmap?"+q.Encode())
	if err != nil {
		return "", err
	}
	defer body.Close()

	dir := c.SaveDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("locationiq: create %q: %w: %w", dir, geostamp.ErrIO, err)
	}
	path := geostamp.UniquePath(filepath.Join(dir, MapFileName))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("locationiq: create %q: %w: %w", path, geostamp.ErrIO, err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("locationiq: download map: %w: %w", geostamp.ErrTransport, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("locationiq: write %q: %w: %w", path, geostamp.ErrIO, err)
	}
	return path, nil
}

func (c *Client) get(ctx context.Context, u string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("locationiq: build request: %w", err)
	}
	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		// *url.Error repeats the URL, which carries the key.
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return nil, fmt.Errorf("locationiq: request: %w: %w", geostamp.ErrTransport, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("locationiq: unexpected status %d %s: %w",
			resp.StatusCode, http.StatusText(resp.StatusCode), geostamp.ErrTransport)
	}
	return resp.Body, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
