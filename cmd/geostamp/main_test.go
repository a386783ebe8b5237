package main

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── Helpers ─────────────────────────────────────────────────────────────────

func writeJPEG(t *testing.T, path string, w, h int, c color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, jpeg.Encode(f, img, &jpeg.Options{Quality: 90}))
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"GEOSTAMP_API_KEY", "GEOSTAMP_MAPS_DIR", "GEOSTAMP_ASSETS_DIR",
		"GEOSTAMP_BACKEND", "GEOSTAMP_JPEG_QUALITY", "GEOSTAMP_LOG_LEVEL",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// ── Command Tests ───────────────────────────────────────────────────────────

func TestVersionCommand(t *testing.T) {
	clearEnv(t)
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "geostamp "), "got %q", out)
}

func TestStampCommand(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	bg := filepath.Join(dir, "photo.jpg")
	mp := filepath.Join(dir, "map.jpg")
	dst := filepath.Join(dir, "out.jpg")
	writeJPEG(t, bg, 400, 300, color.NRGBA{40, 120, 200, 255})
	writeJPEG(t, mp, 300, 300, color.NRGBA{230, 230, 210, 255})

	out, err := run(t, "stamp",
		"--lat", "26.187394", "--lon", "91.563845",
		"--map", mp, "--name", "Guwahati, Assam, India",
		"--time", "2024-03-15T10:30",
		"--log-level", "error",
		bg, dst)
	require.NoError(t, err)
	assert.Equal(t, dst, strings.TrimSpace(out))

	f, err := os.Open(dst)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := jpeg.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 1920, cfg.Width)
	assert.Equal(t, 1080, cfg.Height)

	_, err = os.Stat(mp)
	assert.True(t, os.IsNotExist(err), "map thumbnail should be consumed")
}

func TestStampCommandNeedsMapWithoutKey(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	bg := filepath.Join(dir, "photo.jpg")
	writeJPEG(t, bg, 64, 64, color.NRGBA{0, 0, 0, 255})

	_, err := run(t, "stamp", "--lat", "1", "--lon", "2", bg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--map")
}

func TestStampCommandRequiresCoordinates(t *testing.T) {
	clearEnv(t)
	_, err := run(t, "stamp", "--map", "m.jpg", "photo.jpg")
	require.Error(t, err)
}

func TestBatchCommandNeedsKey(t *testing.T) {
	clearEnv(t)
	_, err := run(t, "batch", "--lat", "1", "--lon", "2", "a.jpg", "b.jpg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestInvalidBackendRejected(t *testing.T) {
	clearEnv(t)
	_, err := run(t, "--backend", "cairo", "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cairo")
}

// ── Config Tests ────────────────────────────────────────────────────────────

func TestLoadConfigEnvFallbacks(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEOSTAMP_API_KEY", "k")
	t.Setenv("GEOSTAMP_BACKEND", "xdraw")
	t.Setenv("GEOSTAMP_JPEG_QUALITY", "75")

	cfg := loadConfig()
	assert.Equal(t, "k", cfg.APIKey)
	assert.Equal(t, "xdraw", cfg.Backend)
	assert.Equal(t, 75, cfg.JPEGQuality)
	assert.Equal(t, "info", cfg.LogLevel)
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{Backend: "native", JPEGQuality: 0, LogLevel: "loud", AssetsDir: filepath.Join(t.TempDir(), "nope")}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jpeg quality")
	assert.Contains(t, err.Error(), "log level")
	assert.Contains(t, err.Error(), "assets dir")
}

// ── Helper Tests ────────────────────────────────────────────────────────────

func TestDefaultOutput(t *testing.T) {
	assert.Equal(t, filepath.Join("in", "a_stamped.jpg"), defaultOutput(filepath.Join("in", "a.jpg"), ""))
	assert.Equal(t, filepath.Join("out", "b_stamped.png"), defaultOutput(filepath.Join("in", "b.png"), "out"))
	assert.Equal(t, filepath.Join("in", "c_stamped.jpg"), defaultOutput(filepath.Join("in", "c.webp"), ""))
}

func TestParseTime(t *testing.T) {
	ts, err := parseTime("")
	require.NoError(t, err)
	assert.True(t, ts.IsZero())

	ts, err = parseTime("2024-03-15T10:30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 10, 30, 0, 0, time.Local), ts)

	_, err = parseTime("yesterday")
	assert.Error(t, err)
}

func TestFormatDMS(t *testing.T) {
	assert.Equal(t, `33°52'07.6800" S (-33.868800)`, formatDMS(-33.8688, "S"))
}
