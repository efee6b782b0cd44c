package cli

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"handvault/internal/importer"
	"handvault/internal/parser"
	"handvault/internal/watcher"
)

var watchSite string

var watchCmd = &cobra.Command{
	Use:   "watch [dirs...]",
	Short: "Monitor directories and import new hands as they arrive",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		im := importer.New(cfg, st, parser.NewRegistry())
		defer im.Close()

		window := time.Duration(cfg.ImportWindowHours) * time.Hour
		for _, dir := range args {
			im.AddImportDirectory(ctx, dir, true, watchSite, window)
		}
		if len(im.MonitoredDirs()) == 0 {
			return fmt.Errorf("no watchable directories")
		}

		if _, err := im.RunImport(ctx); err != nil {
			return err
		}

		// Updated passes run on the watcher goroutine; the importer's file
		// set is mutex-guarded so that is safe.
		w, err := watcher.New(im.MonitoredDirs(), watcher.Config{
			Interval: time.Duration(cfg.WatchIntervalSec) * time.Second,
			OnChange: func() {
				if _, err := im.RunUpdated(ctx); err != nil {
					slog.Error("updated import pass failed", "err", err)
				}
			},
			OnError: func(err error) {
				slog.Warn("watch error", "err", err)
			},
		})
		if err != nil {
			return err
		}
		w.Start()
		defer w.Stop()

		<-ctx.Done()
		return nil
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchSite, "site", "auto", "site format, or auto to probe each file")
}
