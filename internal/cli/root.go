// Package cli wires the cobra command tree for the importer.
package cli

import (
	"time"

	"github.com/spf13/cobra"

	"handvault/internal/applog"
	"handvault/internal/config"
	"handvault/internal/store"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	cfgPath string
	debug   bool
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:   "handvault",
	Short: "Poker hand history importer",
	Long: `handvault imports poker hand history files into a local sqlite
database, maintaining per-player aggregate caches, sessions, and
tournament records as it goes.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		applog.Init(debug)
		var err error
		cfg, err = config.Load(cfgPath)
		return err
	},
}

// SetVersion sets the version information
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func openStore() (*store.Store, error) {
	return store.Open(cfg.DBPath, store.Options{
		PublicDB:       cfg.PublicDB,
		BulkOptimized:  cfg.BulkEnabled(),
		SessionTimeout: time.Duration(cfg.SessionTimeoutMin) * time.Minute,
		DayStartOffset: time.Duration(cfg.DayStartOffsetMin) * time.Minute,
	})
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}
