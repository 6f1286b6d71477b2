// Command spillrender draws a spill file over a map image and writes the
// result as a PNG, without opening a window.
package main

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"time"

	"spill-map/internal/app"
	"spill-map/internal/config"
	"spill-map/internal/drawing"
	"spill-map/internal/logging"
	"spill-map/internal/mapview"

	"github.com/spf13/cobra"
)

var (
	configFile string
	background string
	spillsFile string
	outFile    string
	wait       time.Duration
)

var rootCmd = &cobra.Command{
	Use:          "spillrender",
	Short:        "Render spills over a map image to PNG",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "Config file with the map bounds")
	rootCmd.Flags().StringVarP(&background, "background", "b", "", "Map background image path or URL")
	rootCmd.Flags().StringVarP(&spillsFile, "spills", "s", "", "YAML file of spills to draw")
	rootCmd.Flags().StringVarP(&outFile, "out", "o", "spills.png", "Output PNG")
	rootCmd.Flags().DurationVar(&wait, "wait", 30*time.Second, "How long to wait for the background")
	_ = rootCmd.MarkFlagRequired("background")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	var spills []drawing.Spill
	if spillsFile != "" {
		f, err := os.Open(spillsFile)
		if err != nil {
			return err
		}
		spills, err = drawing.LoadSpills(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", spillsFile, err)
		}
	}

	view, err := mapview.New(mapview.Options{Config: cfg.Map})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), wait)
	defer cancel()
	go view.Run(ctx)

	loaded := make(chan error, 1)
	view.Bus().On(app.EventReady, func(interface{}) {
		select {
		case loaded <- nil:
		default:
		}
	})
	view.Bus().On(app.EventBackgroundLoadFailed, func(data interface{}) {
		err := errors.New("background failed to load")
		if failed, ok := data.(app.LoadFailed); ok && failed.Err != nil {
			err = failed.Err
		}
		select {
		case loaded <- err:
		default:
		}
	})

	view.SetBackground(background)
	select {
	case err := <-loaded:
		if err != nil {
			return fmt.Errorf("%s: %w", background, err)
		}
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", background, ctx.Err())
	}

	if err := view.DrawSpills(ctx, spills); err != nil {
		return err
	}
	img, err := view.Render(ctx)
	if err != nil {
		return err
	}

	out, err := os.Create(outFile)
	if err != nil {
		return err
	}
	if err := png.Encode(out, img); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	slog.Info("rendered spills", "count", len(spills), "out", outFile)
	return nil
}
