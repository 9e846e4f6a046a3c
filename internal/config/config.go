// Package config loads beacon settings from a YAML file and the environment.
//
// Precedence: defaults, then the file, then BEACON_* environment variables.
// The merged result is checked against an embedded CUE schema.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "BEACON_"

// Queue backends.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
)

// Config holds every runtime setting.
type Config struct {
	APIKey              string        `yaml:"api_key" json:"api_key" env:"API_KEY"`
	Secret              string        `yaml:"secret" json:"secret" env:"SECRET"`
	Endpoint            string        `yaml:"endpoint" json:"endpoint" env:"ENDPOINT"`
	DataDir             string        `yaml:"data_dir" json:"data_dir" env:"DATA_DIR"`
	QueueBackend        string        `yaml:"queue_backend" json:"queue_backend" env:"QUEUE_BACKEND"`
	TickInterval        time.Duration `yaml:"tick_interval" json:"tick_interval" env:"TICK_INTERVAL"`
	CheckServerInterval time.Duration `yaml:"check_server_interval" json:"check_server_interval" env:"CHECK_SERVER_INTERVAL"`
	HeartbeatInterval   time.Duration `yaml:"heartbeat_interval" json:"heartbeat_interval" env:"HEARTBEAT_INTERVAL"`
	TestMode            string        `yaml:"test_mode" json:"test_mode" env:"TEST_MODE"`
	SimulationDelay     time.Duration `yaml:"simulation_delay" json:"simulation_delay" env:"SIMULATION_DELAY"`
	Payable             bool          `yaml:"payable" json:"payable" env:"PAYABLE"`
	Platform            string        `yaml:"platform" json:"platform" env:"PLATFORM"`
	CustomID            string        `yaml:"custom_id" json:"custom_id" env:"CUSTOM_ID"`
	MetricsAddr         string        `yaml:"metrics_addr" json:"metrics_addr" env:"METRICS_ADDR"`
	LogEnabled          bool          `yaml:"log_enabled" json:"log_enabled" env:"LOG_ENABLED"`
	Device              Device        `yaml:"device" json:"device" envPrefix:"DEVICE_"`
}

// Device describes the host for the simulated device resolver and the
// platform event.
type Device struct {
	ID                string  `yaml:"id" json:"id" env:"ID"`
	AdvertisingID     string  `yaml:"advertising_id" json:"advertising_id" env:"ADVERTISING_ID"`
	AdTrackingEnabled bool    `yaml:"ad_tracking_enabled" json:"ad_tracking_enabled" env:"AD_TRACKING_ENABLED"`
	Model             string  `yaml:"model" json:"model" env:"MODEL"`
	OSName            string  `yaml:"os_name" json:"os_name" env:"OS_NAME"`
	ScreenWidth       int     `yaml:"screen_width" json:"screen_width" env:"SCREEN_WIDTH"`
	ScreenHeight      int     `yaml:"screen_height" json:"screen_height" env:"SCREEN_HEIGHT"`
	ScreenDPI         float64 `yaml:"screen_dpi" json:"screen_dpi" env:"SCREEN_DPI"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Endpoint:            "https://tracker.iqugroup.com/v3/batch",
		DataDir:             ".beacon",
		QueueBackend:        BackendSQLite,
		TickInterval:        200 * time.Millisecond,
		CheckServerInterval: 2 * time.Second,
		HeartbeatInterval:   60 * time.Second,
		TestMode:            "none",
		SimulationDelay:     2 * time.Second,
		Payable:             true,
		Platform:            "generic",
		LogEnabled:          true,
		Device: Device{
			AdTrackingEnabled: true,
		},
	}
}

// Load builds the configuration. path may be empty, in which case only
// defaults and the environment apply. A named file that does not exist is an
// error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", filepath.Base(path), err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cfg against the CUE schema.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	v := ctx.Encode(c)
	if err := v.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ErrMissingCredentials is returned by RequireCredentials.
var ErrMissingCredentials = errors.New("api_key and secret are required")

// RequireCredentials fails when a live transport would have nothing to sign
// with.
func (c Config) RequireCredentials() error {
	if c.TestMode != "none" {
		return nil
	}
	if c.APIKey == "" || c.Secret == "" {
		return ErrMissingCredentials
	}
	return nil
}

// DatabasePath is the SQLite file inside DataDir.
func (c Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "beacon.db")
}
