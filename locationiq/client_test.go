package locationiq

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shamspias/geostamp"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := New("test-key", t.TempDir())
	c.BaseURL = srv.URL + "/v1"
	c.MapsURL = srv.URL + "/v3"
	c.HTTP = srv.Client()
	return c, srv
}

func TestLocation(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/reverse", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "test-key", q.Get("key"))
		assert.Equal(t, "26.187394", q.Get("lat"))
		assert.Equal(t, "91.563845", q.Get("lon"))
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "1", q.Get("normalizeaddress"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"lat": "26.1874",
			"lon": "91.5638",
			"display_name": "Guwahati, Kamrup Metropolitan, Assam, India",
			"address": {"town": "Guwahati", "state": "Assam", "postcode": "781001", "country": "India", "country_code": "in"}
		}`))
	})

	loc, err := c.Location(context.Background(), 26.187394, 91.563845)
	require.NoError(t, err)
	assert.Equal(t, "Guwahati, Kamrup Metropolitan, Assam, India", loc.DisplayName)
	assert.InDelta(t, 26.1874, loc.Latitude, 1e-9)
	assert.InDelta(t, 91.5638, loc.Longitude, 1e-9)
	assert.Equal(t, "Assam", loc.Address.State)
	assert.Equal(t, "in", loc.Address.CountryCode)
}

func TestLocationStatusError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Invalid key"}`, http.StatusUnauthorized)
	})

	_, err := c.Location(context.Background(), 1, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, geostamp.ErrTransport))
	assert.Contains(t, err.Error(), "401")
}

func TestNoAPIKeyMakesNoRequest(t *testing.T) {
	called := false
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	c.APIKey = ""

	_, err := c.Location(context.Background(), 1, 2)
	assert.ErrorIs(t, err, ErrNoAPIKey)
	_, err = c.MapImage(context.Background(), 1, 2, DefaultZoom, DefaultMapWidth, DefaultMapHeight)
	assert.ErrorIs(t, err, ErrNoAPIKey)
	assert.False(t, called)
}

func TestMapImageSavesUniqueFiles(t *testing.T) {
	payload := []byte{0xFF, 0xD8, 0xFF, 0xD9}
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/staticmap", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "-33.8688,151.2093", q.Get("center"))
		assert.Equal(t, "12", q.Get("zoom"))
		assert.Equal(t, "320x240", q.Get("size"))
		assert.Equal(t, "jpg", q.Get("format"))
		assert.Equal(t, "streets", q.Get("maptype"))
		w.Write(payload)
	})

	first, err := c.MapImage(context.Background(), -33.8688, 151.2093, 12, 320, 240)
	require.NoError(t, err)
	second, err := c.MapImage(context.Background(), -33.8688, 151.2093, 12, 320, 240)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(c.SaveDir, MapFileName), first)
	assert.Equal(t, filepath.Join(c.SaveDir, "static_map_1.jpg"), second)

	got, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestMapImageServerError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.MapImage(context.Background(), 0, 0, DefaultZoom, DefaultMapWidth, DefaultMapHeight)
	assert.ErrorIs(t, err, geostamp.ErrTransport)

	entries, err := os.ReadDir(c.SaveDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
