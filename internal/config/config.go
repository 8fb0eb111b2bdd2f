// Package config loads the console's JSON configuration. All fields are
// optional pointers so a partial file only overrides what it names; the
// Get* methods supply defaults for the rest. The core packages never
// read files or the environment themselves, they receive fully resolved
// config structs built here.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/driftline/sitscope/internal/fusion"
	"github.com/driftline/sitscope/internal/policy"
	"github.com/driftline/sitscope/internal/situation"
	"github.com/driftline/sitscope/internal/units"
)

// Config is the root configuration. The schema is shared between the
// startup file and replay tooling, so duration fields are strings like
// "500ms".
type Config struct {
	// Fusion params
	GateDistM     *float64 `json:"gate_dist_m,omitempty"`
	GateVelMps    *float64 `json:"gate_vel_mps,omitempty"`
	MinSupport    *int     `json:"min_support,omitempty"`
	MaxAge        *string  `json:"max_age,omitempty"`
	ConflictDistM *float64 `json:"conflict_dist_m,omitempty"`
	ConfirmFrames *int     `json:"confirm_frames,omitempty"`
	Cooldown      *string  `json:"cooldown,omitempty"`

	// Render policy params
	MaxTargets            *int      `json:"max_targets,omitempty"`
	FrameBudgetMs         *float64  `json:"frame_budget_ms,omitempty"`
	BitmapScales          []float64 `json:"bitmap_scales,omitempty"`
	DegradeConfirmFrames  *int      `json:"degrade_confirm_frames,omitempty"`
	RecoveryConfirmFrames *int      `json:"recovery_confirm_frames,omitempty"`
	DegradeCooldown       *string   `json:"degrade_cooldown,omitempty"`

	// Situation params
	CPAWarn               *string  `json:"cpa_warn,omitempty"`
	CPACrit               *string  `json:"cpa_crit,omitempty"`
	CPACritDistM          *float64 `json:"cpa_crit_dist_m,omitempty"`
	ClosingSpeedThreshold *float64 `json:"closing_speed_threshold,omitempty"`
	NearDistM             *float64 `json:"near_dist_m,omitempty"`
	NearRecent            *string  `json:"near_recent,omitempty"`
	SituationConfirm      *int     `json:"situation_confirm_frames,omitempty"`
	LostContactWindow     *string  `json:"lost_contact_window,omitempty"`
	AutoResolveAfterLost  *string  `json:"auto_resolve_after_lost,omitempty"`
	SituationCooldown     *string  `json:"situation_cooldown,omitempty"`

	// Console params
	Backend     *string `json:"backend,omitempty"` // unicode | kitty | sixel | auto
	Color       *bool   `json:"color,omitempty"`
	TrailLen    *int    `json:"trail_len,omitempty"`
	TrailMaxAge *string `json:"trail_max_age,omitempty"`
	TickRateHz  *int    `json:"tick_rate_hz,omitempty"`
	RecordPath  *string `json:"record_path,omitempty"` // SQLite telemetry recording
	SpeedUnits  *string `json:"speed_units,omitempty"` // mps | kph | mph | kt
}

// Empty returns a Config with every field unset.
func Empty() *Config {
	return &Config{}
}

// Load reads and validates a JSON config file. Fields missing from the
// file fall back to defaults through the Get* methods, so partial
// configs are safe.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks field ranges and duration syntax.
func (c *Config) Validate() error {
	if c.MinSupport != nil && *c.MinSupport < 1 {
		return fmt.Errorf("min_support must be at least 1, got %d", *c.MinSupport)
	}
	if c.GateDistM != nil && *c.GateDistM <= 0 {
		return fmt.Errorf("gate_dist_m must be positive, got %f", *c.GateDistM)
	}
	if c.MaxTargets != nil && *c.MaxTargets < 1 {
		return fmt.Errorf("max_targets must be at least 1, got %d", *c.MaxTargets)
	}
	for i, s := range c.BitmapScales {
		if s <= 0 || s > 1 {
			return fmt.Errorf("bitmap_scales[%d] must be in (0,1], got %f", i, s)
		}
	}
	if c.TickRateHz != nil && (*c.TickRateHz < 1 || *c.TickRateHz > 240) {
		return fmt.Errorf("tick_rate_hz must be between 1 and 240, got %d", *c.TickRateHz)
	}
	if c.Backend != nil {
		switch *c.Backend {
		case "unicode", "kitty", "sixel", "auto":
		default:
			return fmt.Errorf("unknown backend %q", *c.Backend)
		}
	}
	if c.SpeedUnits != nil && !units.IsValid(*c.SpeedUnits) {
		return fmt.Errorf("invalid speed_units %q, must be one of: %s", *c.SpeedUnits, units.GetValidUnitsString())
	}

	durations := map[string]*string{
		"max_age":                 c.MaxAge,
		"cooldown":                c.Cooldown,
		"degrade_cooldown":        c.DegradeCooldown,
		"cpa_warn":                c.CPAWarn,
		"cpa_crit":                c.CPACrit,
		"near_recent":             c.NearRecent,
		"lost_contact_window":     c.LostContactWindow,
		"auto_resolve_after_lost": c.AutoResolveAfterLost,
		"situation_cooldown":      c.SituationCooldown,
		"trail_max_age":           c.TrailMaxAge,
	}
	for name, v := range durations {
		if v == nil || *v == "" {
			continue
		}
		if _, err := time.ParseDuration(*v); err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
	}
	return nil
}

func duration(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}

// Fusion builds the resolved fusion configuration.
func (c *Config) Fusion() fusion.Config {
	cfg := fusion.DefaultConfig()
	if c.GateDistM != nil {
		cfg.GateDistM = *c.GateDistM
	}
	if c.GateVelMps != nil {
		cfg.GateVelMps = *c.GateVelMps
	}
	if c.MinSupport != nil {
		cfg.MinSupport = *c.MinSupport
	}
	cfg.MaxAge = duration(c.MaxAge, cfg.MaxAge)
	if c.ConflictDistM != nil {
		cfg.ConflictDistM = *c.ConflictDistM
	}
	if c.ConfirmFrames != nil {
		cfg.ConfirmFrames = *c.ConfirmFrames
	}
	cfg.Cooldown = duration(c.Cooldown, cfg.Cooldown)
	return cfg
}

// Policy builds the resolved render policy.
func (c *Config) Policy() policy.Policy {
	p := policy.Default()
	if c.MaxTargets != nil {
		p.MaxTargets = *c.MaxTargets
	}
	if c.FrameBudgetMs != nil {
		p.FrameBudgetMs = *c.FrameBudgetMs
	}
	if len(c.BitmapScales) > 0 {
		p.BitmapScales = append([]float64(nil), c.BitmapScales...)
	}
	if c.DegradeConfirmFrames != nil {
		p.DegradeConfirmFrames = *c.DegradeConfirmFrames
	}
	if c.RecoveryConfirmFrames != nil {
		p.RecoveryConfirmFrames = *c.RecoveryConfirmFrames
	}
	p.DegradeCooldown = duration(c.DegradeCooldown, p.DegradeCooldown)
	return p
}

// Situation builds the resolved situation analysis configuration.
func (c *Config) Situation() situation.Config {
	cfg := situation.DefaultConfig()
	cfg.CPAWarnT = duration(c.CPAWarn, cfg.CPAWarnT)
	cfg.CPACritT = duration(c.CPACrit, cfg.CPACritT)
	if c.CPACritDistM != nil {
		cfg.CPACritDist = *c.CPACritDistM
	}
	if c.ClosingSpeedThreshold != nil {
		cfg.ClosingSpeedThreshold = *c.ClosingSpeedThreshold
	}
	if c.NearDistM != nil {
		cfg.NearDist = *c.NearDistM
	}
	cfg.NearRecent = duration(c.NearRecent, cfg.NearRecent)
	if c.SituationConfirm != nil {
		cfg.ConfirmFrames = *c.SituationConfirm
	}
	cfg.LostContactWindow = duration(c.LostContactWindow, cfg.LostContactWindow)
	cfg.AutoResolveAfterLost = duration(c.AutoResolveAfterLost, cfg.AutoResolveAfterLost)
	cfg.Cooldown = duration(c.SituationCooldown, cfg.Cooldown)
	return cfg
}

// GetBackend returns the configured backend name or "auto".
func (c *Config) GetBackend() string {
	if c.Backend == nil || *c.Backend == "" {
		return "auto"
	}
	return *c.Backend
}

// GetColor returns whether colored output is enabled (default true).
func (c *Config) GetColor() bool {
	if c.Color == nil {
		return true
	}
	return *c.Color
}

// GetTrailLen returns the per-track trail bound or the default.
func (c *Config) GetTrailLen() int {
	if c.TrailLen == nil {
		return 32
	}
	return *c.TrailLen
}

// GetTrailMaxAge returns how long idle tracks keep their trails.
func (c *Config) GetTrailMaxAge() time.Duration {
	return duration(c.TrailMaxAge, 30*time.Second)
}

// GetTickRateHz returns the console tick rate or the default 10 Hz.
func (c *Config) GetTickRateHz() int {
	if c.TickRateHz == nil {
		return 10
	}
	return *c.TickRateHz
}

// GetRecordPath returns the SQLite recording path, empty when recording
// is disabled.
func (c *Config) GetRecordPath() string {
	if c.RecordPath == nil {
		return ""
	}
	return *c.RecordPath
}

// GetSpeedUnits returns the display unit for speed labels (default m/s).
func (c *Config) GetSpeedUnits() string {
	if c.SpeedUnits == nil || *c.SpeedUnits == "" {
		return units.MPS
	}
	return *c.SpeedUnits
}
