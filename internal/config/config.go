package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/livinlefevreloca/outreach/internal/browser"
	"github.com/livinlefevreloca/outreach/internal/campaign"
	"github.com/livinlefevreloca/outreach/internal/classifier"
	"github.com/livinlefevreloca/outreach/internal/db"
	"github.com/livinlefevreloca/outreach/internal/logging"
	"github.com/livinlefevreloca/outreach/internal/message"
	"github.com/livinlefevreloca/outreach/internal/stats"
	"github.com/livinlefevreloca/outreach/internal/throttle"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings
const (
	EnvDatabaseDSN = "OUTREACH_DB_DSN"
	EnvLogLevel    = "OUTREACH_LOG_LEVEL"
	EnvInputCSV    = "OUTREACH_INPUT_CSV"
	EnvHeadless    = "OUTREACH_HEADLESS"
)

// Config represents the application configuration
type Config struct {
	Database   db.Config          `toml:"database" yaml:"database"`
	Campaign   campaign.Config    `toml:"campaign" yaml:"campaign"`
	Throttle   throttle.Config    `toml:"throttle" yaml:"throttle"`
	Classifier classifier.Markers `toml:"classifier" yaml:"classifier"`
	Browser    browser.Config     `toml:"browser" yaml:"browser"`
	Message    message.Config     `toml:"message" yaml:"message"`
	Stats      stats.Config       `toml:"stats" yaml:"stats"`
	Logging    logging.Config     `toml:"logging" yaml:"logging"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Database: db.Config{
			Driver:          "sqlite3",
			DSN:             "outreach.db",
			MaxOpenConns:    1,
			MaxIdleConns:    1,
			ConnMaxLifetime: 0,
			SkipMigrations:  false,
		},
		Campaign:   campaign.DefaultConfig(),
		Throttle:   throttle.DefaultConfig(),
		Classifier: classifier.DefaultMarkers(),
		Browser:    browser.DefaultConfig(),
		Message:    message.DefaultConfig(),
		Stats:      stats.DefaultConfig(),
		Logging:    logging.DefaultConfig(),
	}
}

// LoadFromFile loads configuration from a TOML or YAML file over the
// defaults. The format follows the file extension.
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()

	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.WithHintf(errors.Newf("config file does not exist: %s", path),
			"pass --config with the path to a .toml or .yaml file")
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read config file %s", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, config); err != nil {
			return nil, errors.Wrap(err, "failed to parse config file")
		}
	default:
		if _, err := toml.Decode(string(content), config); err != nil {
			return nil, errors.Wrap(err, "failed to parse config file")
		}
	}
	return config, nil
}

// LoadConfig loads configuration with the following precedence:
// 1. Default values
// 2. Config file (if specified)
// 3. Environment variables, including those from a .env file
// 4. Command-line flags (handled by caller)
func LoadConfig(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if configPath != "" {
		fileConfig, err := LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		config = fileConfig
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	return config, nil
}

// loadDotEnv reads path into the environment without overriding
// variables that are already set. A missing file is ignored.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return errors.Wrapf(err, "load %s", path)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvDatabaseDSN); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvInputCSV); v != "" {
		c.Campaign.InputCSV = v
	}
	if v := os.Getenv(EnvHeadless); v != "" {
		headless, err := strconv.ParseBool(v)
		if err != nil {
			return errors.WithHintf(errors.Wrapf(err, "invalid %s", EnvHeadless),
				"set %s to true or false", EnvHeadless)
		}
		c.Browser.Headless = headless
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Database validation
	if c.Database.Driver != "sqlite3" {
		return errors.WithHint(errors.Newf("unsupported database driver: %s", c.Database.Driver),
			"only sqlite3 is supported")
	}
	if c.Database.DSN == "" {
		return errors.WithHintf(errors.New("database DSN must be specified"),
			"set database.dsn or %s", EnvDatabaseDSN)
	}

	// Campaign validation
	if c.Campaign.InputCSV == "" {
		return errors.WithHintf(errors.New("campaign input_csv must be specified"),
			"set campaign.input_csv or %s", EnvInputCSV)
	}
	if c.Campaign.ActionsPerMinute < 0 {
		return errors.WithHint(errors.New("campaign actions_per_minute must not be negative"),
			"use 0 to disable pacing")
	}
	if c.Campaign.CyclePause < 0 {
		return errors.New("campaign cycle_pause must not be negative")
	}
	if c.Campaign.PassInterval <= 0 {
		return errors.New("campaign pass_interval must be positive")
	}
	if c.Campaign.MaxStepsPerProfile <= 0 {
		return errors.New("campaign max_steps_per_profile must be positive")
	}

	if c.Throttle.InitialBatch <= 0 {
		return errors.New("throttle initial_batch must be positive")
	}

	// Browser validation
	if c.Browser.NavigationTimeout <= 0 {
		return errors.New("browser navigation_timeout must be positive")
	}
	if c.Browser.ElementTimeout <= 0 {
		return errors.New("browser element_timeout must be positive")
	}

	if err := message.CheckKind(c.Message.TemplateKind); err != nil {
		return errors.Wrap(err, "message.template_kind")
	}

	if c.Stats.InboxBufferSize <= 0 {
		return errors.New("stats inbox_buffer_size must be positive")
	}
	if c.Stats.InboxSendTimeout <= 0 {
		return errors.New("stats inbox_send_timeout must be positive")
	}

	return c.Logging.Validate()
}
