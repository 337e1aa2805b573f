package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/perflens/perflens/internal/coverage"
	"github.com/perflens/perflens/internal/shift"
)

//go:embed defaults.toml
var defaultsTOML []byte

// Config holds every tunable knob. Defaults are embedded; a user file
// at ~/.perflens/config.toml overrides individual keys.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Harness  HarnessConfig  `toml:"harness"`
	Coverage CoverageConfig `toml:"coverage"`
	Shift    ShiftConfig    `toml:"shift"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type HarnessConfig struct {
	Endpoint               string `toml:"endpoint"`
	NavigateTimeoutSeconds int    `toml:"navigate_timeout_seconds"`
	IdleTimeoutSeconds     int    `toml:"idle_timeout_seconds"`
}

type CoverageConfig struct {
	CriticalUnusedPercent  int   `toml:"critical_unused_percent"`
	OptimizeUnusedPercent  int   `toml:"optimize_unused_percent"`
	BreakdownUnusedPercent int   `toml:"breakdown_unused_percent"`
	HotPathMinCount        int64 `toml:"hot_path_min_count"`
	TopHotPaths            int   `toml:"top_hot_paths"`
	MaxUnitsListed         int   `toml:"max_units_listed"`
}

type ShiftConfig struct {
	FontSwapHeight     float64 `toml:"font_swap_height"`
	FontSwapWidthMax   float64 `toml:"font_swap_width_max"`
	InsertionTop       float64 `toml:"insertion_top"`
	InsertionHeightMax float64 `toml:"insertion_height_max"`
	MediaDelta         float64 `toml:"media_delta"`
	AnimationLeft      float64 `toml:"animation_left"`
}

// UserConfigPath returns the user override file location. The
// directory is not created here; Load tolerates its absence.
func UserConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".perflens", "config.toml"), nil
}

// Load returns the embedded defaults with the user file, if any,
// layered on top.
func Load() (*Config, error) {
	path, err := UserConfigPath()
	if err != nil {
		return LoadFile("")
	}
	return LoadFile(path)
}

// LoadFile builds a Config from defaults plus an optional override
// file. A missing file is not an error; a malformed one is.
func LoadFile(path string) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(defaultsTOML, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	return &cfg, nil
}

// ReportThresholds converts the coverage section for the reporter.
func (c *Config) ReportThresholds() coverage.ReportThresholds {
	return coverage.ReportThresholds{
		CriticalUnusedPercent:  c.Coverage.CriticalUnusedPercent,
		OptimizeUnusedPercent:  c.Coverage.OptimizeUnusedPercent,
		BreakdownUnusedPercent: c.Coverage.BreakdownUnusedPercent,
		HotPathMinCount:        c.Coverage.HotPathMinCount,
		TopHotPaths:            c.Coverage.TopHotPaths,
		MaxUnitsListed:         c.Coverage.MaxUnitsListed,
	}
}

// ShiftThresholds converts the shift section for the attributor.
func (c *Config) ShiftThresholds() shift.Thresholds {
	return shift.Thresholds{
		FontSwapHeight:     c.Shift.FontSwapHeight,
		FontSwapWidthMax:   c.Shift.FontSwapWidthMax,
		InsertionTop:       c.Shift.InsertionTop,
		InsertionHeightMax: c.Shift.InsertionHeightMax,
		MediaDelta:         c.Shift.MediaDelta,
		AnimationLeft:      c.Shift.AnimationLeft,
	}
}
