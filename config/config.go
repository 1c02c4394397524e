// Package config loads the settings of a stepsim run. Settings come from
// defaults, then an optional YAML file, then a .env file, then STEPSIM_*
// environment variables. Command line flags are applied last by the CLI.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of the environment variables that override the
// configuration.
const EnvPrefix = "STEPSIM_"

// ErrInvalid is returned when a setting has an unusable value.
var ErrInvalid = errors.New("invalid configuration")

// Config contains all the settings of a run.
type Config struct {
	Run       RunConfig         `yaml:"run"`
	Results   ResultsConfig     `yaml:"results"`
	Recording RecordingConfig   `yaml:"recording"`
	Monitor   MonitorConfig     `yaml:"monitor"`
	Logging   LoggingConfig     `yaml:"logging"`
	Overrides map[string]string `yaml:"overrides,omitempty"`
}

// RunConfig controls the simulated run.
type RunConfig struct {
	// Duration is the simulated time to advance, in seconds.
	Duration float64 `yaml:"duration"`

	// DT is the step size of the default clock, in seconds.
	DT float64 `yaml:"dt"`

	// Seed seeds the random sources. A negative seed means OS entropy.
	Seed int64 `yaml:"seed"`

	// Contexts is the number of random sources, one per execution context.
	Contexts int `yaml:"contexts"`

	// ReportPeriod is the wall time between progress reports. Zero only
	// reports at the start and the end.
	ReportPeriod time.Duration `yaml:"report_period"`

	// Report enables progress lines on stderr.
	Report bool `yaml:"report"`
}

// ResultsConfig controls the results directory.
type ResultsConfig struct {
	Dir string `yaml:"dir"`
}

// RecordingConfig controls the SQLite data recorder.
type RecordingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Ticks   bool   `yaml:"ticks"`
}

// MonitorConfig controls the monitoring server.
type MonitorConfig struct {
	Enabled     bool `yaml:"enabled"`
	Port        int  `yaml:"port"`
	OpenBrowser bool `yaml:"open_browser"`
}

// LoggingConfig controls the logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn and error.
	Level string `yaml:"level"`

	// Development switches to the human-readable console encoder.
	Development bool `yaml:"development"`
}

// Default returns a Config with the defaults of the demo model.
func Default() *Config {
	return &Config{
		Run: RunConfig{
			Duration:     10,
			DT:           1e-4,
			Seed:         -1,
			Contexts:     1,
			ReportPeriod: 10 * time.Second,
		},
		Results: ResultsConfig{
			Dir: "results",
		},
		Recording: RecordingConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds a Config from the defaults, the YAML file at path (if path is
// not empty), the .env file in the working directory (if any) and the
// environment.
func Load(path string) (*Config, error) {
	c := Default()

	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}

		c = fileConfig
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	if err := c.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	return c, nil
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return c, nil
}

// ApplyEnv overrides settings from environment variables, looked up with
// lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error

	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}

	float := func(name string, dst *float64) {
		if v, ok := lookup(EnvPrefix + name); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, envErr(name, v, err))
				return
			}
			*dst = f
		}
	}

	integer := func(name string, dst *int64) {
		if v, ok := lookup(EnvPrefix + name); ok {
			i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				errs = append(errs, envErr(name, v, err))
				return
			}
			*dst = i
		}
	}

	boolean := func(name string, dst *bool) {
		if v, ok := lookup(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, envErr(name, v, err))
				return
			}
			*dst = b
		}
	}

	float("DURATION", &c.Run.Duration)
	float("DT", &c.Run.DT)
	integer("SEED", &c.Run.Seed)
	boolean("REPORT", &c.Run.Report)
	str("RESULTS_DIR", &c.Results.Dir)
	boolean("RECORDING", &c.Recording.Enabled)
	str("RECORDING_PATH", &c.Recording.Path)
	boolean("MONITOR", &c.Monitor.Enabled)
	str("LOG_LEVEL", &c.Logging.Level)

	var port, contexts int64 = int64(c.Monitor.Port), int64(c.Run.Contexts)
	integer("MONITOR_PORT", &port)
	integer("CONTEXTS", &contexts)
	c.Monitor.Port = int(port)
	c.Run.Contexts = int(contexts)

	if v, ok := lookup(EnvPrefix + "REPORT_PERIOD"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, envErr("REPORT_PERIOD", v, err))
		} else {
			c.Run.ReportPeriod = d
		}
	}

	return errors.Join(errs...)
}

func envErr(name, value string, err error) error {
	return fmt.Errorf("%w: %s%s=%q: %w", ErrInvalid, EnvPrefix, name, value, err)
}

// Validate checks that the configuration can drive a run.
func (c *Config) Validate() error {
	if math.IsNaN(c.Run.Duration) || math.IsInf(c.Run.Duration, 0) ||
		c.Run.Duration < 0 {
		return fmt.Errorf("%w: duration must be non-negative, got %g",
			ErrInvalid, c.Run.Duration)
	}

	if !(c.Run.DT > 0) || math.IsInf(c.Run.DT, 0) {
		return fmt.Errorf("%w: dt must be positive, got %g", ErrInvalid, c.Run.DT)
	}

	if c.Run.Seed > math.MaxUint32 {
		return fmt.Errorf("%w: seed must fit in 32 bits, got %d",
			ErrInvalid, c.Run.Seed)
	}

	if c.Run.Contexts < 1 {
		return fmt.Errorf("%w: contexts must be at least 1, got %d",
			ErrInvalid, c.Run.Contexts)
	}

	if c.Run.ReportPeriod < 0 {
		return fmt.Errorf("%w: report_period must be non-negative, got %v",
			ErrInvalid, c.Run.ReportPeriod)
	}

	if c.Monitor.Port < 0 || c.Monitor.Port > 65535 {
		return fmt.Errorf("%w: invalid monitor port %d", ErrInvalid, c.Monitor.Port)
	}

	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: log level: %w", ErrInvalid, err)
	}

	return nil
}

// Seeded tells if the run uses a fixed seed.
func (c RunConfig) Seeded() bool {
	return c.Seed >= 0
}

// NewLogger builds the logger described by the configuration.
func (c LoggingConfig) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: log level: %w", ErrInvalid, err)
	}

	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}

	zc.Level = zap.NewAtomicLevelAt(level)

	return zc.Build()
}
