// Package config loads application configuration from an optional YAML file
// and the environment. Environment variables win over file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds every tunable of the import pipeline.
type Config struct {
	// DBPath is the sqlite database file. Empty selects a per-user default.
	DBPath string `yaml:"db_path" env:"HANDVAULT_DB"`

	// SessionTimeoutMin is the inactivity window, in minutes, that bounds a
	// session of contiguous play.
	SessionTimeoutMin int `yaml:"session_timeout" env:"HANDVAULT_SESSION_TIMEOUT" env-default:"30"`

	// DayStartOffsetMin shifts day/week/month bucket boundaries, in minutes
	// east of UTC.
	DayStartOffsetMin int `yaml:"day_start_offset" env:"HANDVAULT_DAY_START_OFFSET" env-default:"0"`

	// PublicDB widens hand identity with the hero seat so multiple hero
	// perspectives of one physical hand can coexist.
	PublicDB bool `yaml:"public_db" env:"HANDVAULT_PUBLIC_DB" env-default:"false"`

	// HeroName marks the named player as hero when resolving player rows.
	HeroName string `yaml:"hero_name" env:"HANDVAULT_HERO"`

	// HUDAddr, when set, receives inserted hand ids as newline-terminated
	// decimal strings over TCP. Empty disables forwarding.
	HUDAddr string `yaml:"hud_addr" env:"HANDVAULT_HUD_ADDR"`

	// BulkOptimized enables the bulk write paths, including garbage
	// suppression of cache rows keyed by superseded ids. A pointer so an
	// explicit false in the file is distinguishable from unset; an
	// env-default would overwrite the bool zero value after the file read.
	BulkOptimized *bool `yaml:"bulk_optimized" env:"HANDVAULT_BULK_OPTIMIZED"`

	// WatchIntervalSec is the poll fallback period for monitored directories.
	WatchIntervalSec int `yaml:"watch_interval" env:"HANDVAULT_WATCH_INTERVAL" env-default:"5"`

	// ImportWindowHours limits the first scan of a monitored directory to
	// files modified within this many hours.
	ImportWindowHours int `yaml:"import_window_hours" env:"HANDVAULT_IMPORT_WINDOW" env-default:"12"`
}

// BulkEnabled reports whether the bulk write paths are on; unset means on.
func (c Config) BulkEnabled() bool {
	return c.BulkOptimized == nil || *c.BulkOptimized
}

// Load reads configuration from path (optional) and the environment.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return Config{}, fmt.Errorf("read env config: %w", err)
		}
	}
	if cfg.DBPath == "" {
		cfg.DBPath = defaultDBPath()
	}
	return cfg, nil
}

func defaultDBPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "handvault", "handvault.db")
}
