package main

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/shamspias/geostamp"
	"github.com/shamspias/geostamp/locationiq"
)

type app struct {
	cfg    Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{cfg: loadConfig(), logger: slog.Default()}

	root := &cobra.Command{
		Use:          "geostamp",
		Short:        "Stamp photos with location, time and a map thumbnail",
		Long:         `Overlay a location band (map thumbnail, place name, coordinates, date and time) onto photos and record the position in their EXIF metadata.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			a.logger = newLogger(&a.cfg)
			return nil
		},
	}
	bindGlobalFlags(root.PersistentFlags(), &a.cfg)

	root.AddCommand(
		a.newStampCmd(),
		a.newBatchCmd(),
		a.newLocateCmd(),
		newVersionCmd(),
	)
	return root
}

func bindGlobalFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.APIKey, "api-key", cfg.APIKey, "LocationIQ API key (env GEOSTAMP_API_KEY)")
	fs.StringVar(&cfg.MapsDir, "maps-dir", cfg.MapsDir, "Directory for downloaded map thumbnails (env GEOSTAMP_MAPS_DIR)")
	fs.StringVar(&cfg.AssetsDir, "assets", cfg.AssetsDir, "Directory overriding marker.png and fonts/{regular,bold}.ttf (env GEOSTAMP_ASSETS_DIR)")
	fs.StringVar(&cfg.Backend, "backend", cfg.Backend, "Imaging backend: native|xdraw (env GEOSTAMP_BACKEND)")
	fs.IntVar(&cfg.JPEGQuality, "jpeg-quality", cfg.JPEGQuality, "JPEG output quality 1-100 (env GEOSTAMP_JPEG_QUALITY)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug|info|warn|error (env GEOSTAMP_LOG_LEVEL)")
}

func (a *app) compositor() (*geostamp.Compositor, error) {
	opts := geostamp.DefaultOptions()
	backend, err := geostamp.BackendByName(a.cfg.Backend)
	if err != nil {
		return nil, err
	}
	opts.Backend = backend
	opts.JPEGQuality = a.cfg.JPEGQuality
	opts.Logger = a.logger
	if a.cfg.AssetsDir != "" {
		opts.Assets = geostamp.ChainAssets{geostamp.DirAssets(a.cfg.AssetsDir), geostamp.EmbeddedAssets()}
	}
	return geostamp.NewCompositor(opts)
}

// locator returns nil when no API key is configured.
func (a *app) locator() geostamp.Locator {
	if a.cfg.APIKey == "" {
		return nil
	}
	return locationiq.New(a.cfg.APIKey, a.cfg.MapsDir)
}

type stampFlags struct {
	lat, lon float64
	name     string
	when     string
	zoom     int
}

func (f *stampFlags) bind(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.lat, "lat", 0, "Latitude in decimal degrees")
	cmd.Flags().Float64Var(&f.lon, "lon", 0, "Longitude in decimal degrees")
	cmd.Flags().StringVar(&f.name, "name", "", "Place name for the title (looked up when empty and an API key is set)")
	cmd.Flags().StringVar(&f.when, "time", "", "Timestamp, RFC3339 or 2006-01-02T15:04[:05] local (default now)")
	cmd.Flags().IntVar(&f.zoom, "zoom", 12, "Map zoom level for downloaded thumbnails")
	cmd.MarkFlagRequired("lat")
	cmd.MarkFlagRequired("lon")
}

func (f *stampFlags) stamp(background, mapPath string) (geostamp.Stamp, error) {
	ts, err := parseTime(f.when)
	if err != nil {
		return geostamp.Stamp{}, err
	}
	s := geostamp.NewStamp(geostamp.Location{
		Latitude:    f.lat,
		Longitude:   f.lon,
		DisplayName: f.name,
	}, background, mapPath)
	if !ts.IsZero() {
		s.Timestamp = ts
	}
	return s, nil
}

func (a *app) newStampCmd() *cobra.Command {
	var f stampFlags
	var mapPath string

	cmd := &cobra.Command{
		Use:   "stamp <photo> [output]",
		Short: "Stamp a single photo",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc := a.locator()
			if mapPath == "" && loc == nil {
				return errors.New("--map is required when no API key is configured")
			}
			bg := args[0]
			out := defaultOutput(bg, "")
			if len(args) == 2 {
				out = args[1]
			}
			s, err := f.stamp(bg, mapPath)
			if err != nil {
				return err
			}
			c, err := a.compositor()
			if err != nil {
				return err
			}

			res := geostamp.RunBatch(cmd.Context(), c, []geostamp.BatchItem{{Background: bg, Output: out, Stamp: s}},
				geostamp.BatchOptions{Locator: loc, Zoom: f.zoom, Logger: a.logger})
			if err := res[0].Err; err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res[0].Path)
			return nil
		},
	}
	f.bind(cmd)
	cmd.Flags().StringVar(&mapPath, "map", "", "Map thumbnail image (consumed: deleted after stamping)")
	return cmd
}

func (a *app) newBatchCmd() *cobra.Command {
	var f stampFlags
	var outDir string

	cmd := &cobra.Command{
		Use:   "batch <photo>...",
		Short: "Stamp several photos taken at the same place",
		Long:  `Stamp every photo with the same coordinates. A fresh map thumbnail is downloaded for each photo, so an API key is required.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc := a.locator()
			if loc == nil {
				return errors.New("batch needs an API key (--api-key or GEOSTAMP_API_KEY)")
			}
			c, err := a.compositor()
			if err != nil {
				return err
			}

			items := make([]geostamp.BatchItem, 0, len(args))
			for _, bg := range args {
				s, err := f.stamp(bg, "")
				if err != nil {
					return err
				}
				items = append(items, geostamp.BatchItem{Background: bg, Output: defaultOutput(bg, outDir), Stamp: s})
			}

			results := geostamp.RunBatch(cmd.Context(), c, items, geostamp.BatchOptions{
				Locator: loc,
				Zoom:    f.zoom,
				Logger:  a.logger,
				OnItem: func(done, total int) {
					a.logger.Debug("progress", "done", done, "total", total)
				},
			})
			for _, r := range results {
				if r.Err == nil {
					fmt.Fprintln(cmd.OutOrStdout(), r.Path)
				}
			}
			summary := geostamp.Summarize(results)
			fmt.Fprintln(cmd.OutOrStdout(), summary)
			if summary.Failed > 0 {
				return fmt.Errorf("%d of %d photos failed", summary.Failed, summary.Total)
			}
			return nil
		},
	}
	f.bind(cmd)
	cmd.Flags().StringVarP(&outDir, "out-dir", "o", "", "Output directory (default: next to each photo)")
	return cmd
}

func (a *app) newLocateCmd() *cobra.Command {
	var lat, lon float64
	var zoom, width, height int
	var noMap bool

	cmd := &cobra.Command{
		Use:   "locate",
		Short: "Reverse-geocode a coordinate and download its map thumbnail",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loc := a.locator()
			if loc == nil {
				return errors.New("locate needs an API key (--api-key or GEOSTAMP_API_KEY)")
			}
			place, err := loc.Location(cmd.Context(), lat, lon)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Name:      %s\n", place.DisplayName)
			fmt.Fprintf(w, "Latitude:  %s\n", formatDMS(lat, geostamp.LatitudeRef(lat)))
			fmt.Fprintf(w, "Longitude: %s\n", formatDMS(lon, geostamp.LongitudeRef(lon)))
			if noMap {
				return nil
			}
			path, err := loc.MapImage(cmd.Context(), lat, lon, zoom, width, height)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "Map:       %s\n", path)
			return nil
		},
	}
	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude in decimal degrees")
	cmd.Flags().Float64Var(&lon, "lon", 0, "Longitude in decimal degrees")
	cmd.Flags().IntVar(&zoom, "zoom", locationiq.DefaultZoom, "Map zoom level")
	cmd.Flags().IntVar(&width, "width", locationiq.DefaultMapWidth, "Map width in pixels")
	cmd.Flags().IntVar(&height, "height", locationiq.DefaultMapHeight, "Map height in pixels")
	cmd.Flags().BoolVar(&noMap, "no-map", false, "Skip the map download")
	cmd.MarkFlagRequired("lat")
	cmd.MarkFlagRequired("lon")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "geostamp %s\n", geostamp.Version)
		},
	}
}

// defaultOutput names the stamped copy <name>_stamped<ext>, in dir when
// given. Inputs that cannot be written back in their own format get .jpg.
func defaultOutput(input, dir string) string {
	ext := filepath.Ext(input)
	base := strings.TrimSuffix(filepath.Base(input), ext)
	if _, err := geostamp.FormatFromPath(input); err != nil {
		ext = ".jpg"
	}
	if dir == "" {
		dir = filepath.Dir(input)
	}
	return filepath.Join(dir, base+"_stamped"+ext)
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// parseTime returns the zero time for an empty string.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q (use RFC3339 or 2006-01-02T15:04)", s)
}

func formatDMS(v float64, ref string) string {
	s := geostamp.ToSexagesimal(v)
	sec := float64(s.SecondsScaled) / geostamp.SecondsScale
	return fmt.Sprintf("%d°%02d'%07.4f\" %s (%.6f)", s.Degrees, s.Minutes, sec, ref, v)
}
