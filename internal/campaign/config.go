package campaign

import (
	"time"

	"golang.org/x/time/rate"
)

// Config defines configuration for a campaign run
type Config struct {
	// InputCSV is the worklist source
	InputCSV string `toml:"input_csv" yaml:"input_csv"`

	// ActionsPerMinute caps how many new profiles are started per minute.
	// Zero disables pacing.
	ActionsPerMinute float64 `toml:"actions_per_minute" yaml:"actions_per_minute"`

	// CyclePause is slept between cycles
	CyclePause time.Duration `toml:"cycle_pause" yaml:"cycle_pause"`

	// PassInterval is slept between passes over the worklist in loop mode
	PassInterval time.Duration `toml:"pass_interval" yaml:"pass_interval"`

	// SnapshotDir receives page captures of skipped profiles
	SnapshotDir string `toml:"snapshot_dir" yaml:"snapshot_dir"`

	// ConnectionsEnabled is the initial value of the connection switch
	ConnectionsEnabled bool `toml:"connections_enabled" yaml:"connections_enabled"`

	// MaxStepsPerProfile bounds how many steps one profile takes in a cycle
	MaxStepsPerProfile int `toml:"max_steps_per_profile" yaml:"max_steps_per_profile"`
}

// DefaultConfig returns default campaign configuration
func DefaultConfig() Config {
	return Config{
		InputCSV:           "assets/inputs/urls.csv",
		ActionsPerMinute:   6,
		CyclePause:         30 * time.Second,
		PassInterval:       30 * time.Minute,
		SnapshotDir:        "assets/snapshots",
		ConnectionsEnabled: true,
		MaxStepsPerProfile: 8,
	}
}

// Limiter builds the pacing limiter for the configured rate
func (c Config) Limiter() *rate.Limiter {
	if c.ActionsPerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(c.ActionsPerMinute/60.0), 1)
}
