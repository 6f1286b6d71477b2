// Package main provides the entry point for the Spill Map viewer.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"spill-map/internal/app"
	"spill-map/internal/config"
	"spill-map/internal/cursor"
	"spill-map/internal/frames"
	"spill-map/internal/framesource"
	"spill-map/internal/logging"
	"spill-map/internal/mapview"
	"spill-map/internal/metrics"
	"spill-map/internal/version"
	"spill-map/ui/mainwindow"
	"spill-map/ui/prefs"

	fyneapp "fyne.io/fyne/v2/app"
	"github.com/spf13/cobra"
)

const appID = "org.spillmap.viewer"

var (
	configFile    string
	backgroundURL string
	framesDir     string
	frameLatency  time.Duration
	pollInterval  time.Duration
	spillsFile    string
	startMode     string
)

var rootCmd = &cobra.Command{
	Use:   "spill-map",
	Short: "Animated spill model viewer",
	Long:  `Shows model output frames over a georeferenced map, paced by how long each frame took to produce, and lets you draw new spills on it.`,
	RunE:  runViewer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("spill-map", version.String())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default ./config.yaml or ./configs/config.yaml)")

	rootCmd.Flags().StringVarP(&backgroundURL, "background", "b", "", "Map background image path or URL")
	rootCmd.Flags().StringVarP(&framesDir, "frames", "f", "", "Directory to watch for frame images")
	rootCmd.Flags().DurationVar(&frameLatency, "latency", 0, "Fixed production latency per frame (default: measured from file times)")
	rootCmd.Flags().DurationVar(&pollInterval, "poll", 250*time.Millisecond, "How often to look for new frames")
	rootCmd.Flags().StringVarP(&spillsFile, "spills", "s", "", "YAML file of spills to draw")
	rootCmd.Flags().StringVarP(&startMode, "mode", "m", "", "Initial cursor mode (zooming-in, zooming-out, resting, moving, spill)")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runViewer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)
	slog.Info("starting spill-map", "version", version.Version)

	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Addr)
	}

	view, err := mapview.New(mapview.Options{Config: cfg.Map})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go func() {
		if err := view.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("map view stopped", "error", err)
		}
	}()

	p := prefs.Load()
	session := p.Session()

	fyneApp := fyneapp.NewWithID(appID)
	fyneApp.Settings().SetTheme(&app.MapTheme{})

	win := mainwindow.New(fyneApp, view, p)

	mode := startMode
	if mode == "" {
		mode = session.Mode
	}
	if mode != "" {
		m, err := cursor.ParseMode(mode)
		if err != nil {
			return err
		}
		win.SelectMode(m)
	}

	if framesDir != "" {
		watcher, err := startFrames(view, framesDir)
		if err != nil {
			return err
		}
		defer watcher.Stop()
	}

	bg := backgroundURL
	if bg == "" {
		bg = session.Background
	}
	win.SetBackground(bg)

	spills := spillsFile
	if spills == "" {
		spills = session.Spills
	}
	if spills != "" {
		if err := win.LoadSpillsFile(spills); err != nil {
			slog.Warn("could not load spills", "file", spills, "error", err)
		}
	}

	win.SetOnClosed(func() {
		win.SavePreferences()
	})
	win.ShowAndRun()
	return nil
}

// startFrames feeds frames that appear in dir to the view once the map is
// ready, starting over on every new background. Frames go out one at a time:
// the next is produced only after the previous one was shown or failed.
func startFrames(view *mapview.View, dir string) (*framesource.Watcher, error) {
	watcher, err := framesource.NewWatcher(dir, pollInterval, nil)
	if err != nil {
		return nil, err
	}
	watcher.SetLatency(frameLatency)

	feed := framesource.NewFeed(view.ProduceFrame)
	watcher.OnFrame(func(f frames.Frame) {
		feed.Push(f)
	})

	bus := view.Bus()
	bus.On(app.EventReady, func(interface{}) {
		feed.Reset()
		watcher.Rewind()
		watcher.Start()
	})
	// These fire on the view loop; releasing the next frame posts back into
	// it, so hand that off.
	advance := func(interface{}) { go feed.Next() }
	bus.On(app.EventFrameChanged, advance)
	bus.On(app.EventFrameLoadFailed, advance)
	bus.On(app.EventAnimationError, advance)
	return watcher, nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	slog.Info("serving metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("metrics server failed", "error", err)
	}
}
