package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"sailperf/internal/derive"
	"sailperf/internal/merge"
	"sailperf/internal/polar"
	"sailperf/internal/sample"
)

// EnvPrefix namespaces the environment overrides (SAILPERF_LOG_LEVEL, ...).
const EnvPrefix = "SAILPERF"

type Config struct {
	Log     LogConfig     `yaml:"log"`
	Decode  DecodeConfig  `yaml:"decode"`
	Merge   MergeConfig   `yaml:"merge"`
	Dataset DatasetConfig `yaml:"dataset"`
	Polar   PolarConfig   `yaml:"polar"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

type DecodeConfig struct {
	VerifyChecksum bool `yaml:"verify_checksum"`
}

type MergeConfig struct {
	// AngleMode is "linear" or "shortest".
	AngleMode string `yaml:"angle_mode"`
}

type WindowConfig struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

type DatasetConfig struct {
	ExcludeEngine bool           `yaml:"exclude_engine"`
	EngineWindows []WindowConfig `yaml:"engine_windows"`
	RaceStart     string         `yaml:"race_start"`
	RaceEnd       string         `yaml:"race_end"`
	// Track is a GPX or FIT travel log merged by nearest time.
	Track          string        `yaml:"track"`
	TrackTolerance time.Duration `yaml:"track_tolerance"`
}

type PolarConfig struct {
	TWABinWidth float64 `yaml:"twa_bin_width"`
	AWSBinWidth int     `yaml:"aws_bin_width"`
	ByTack      bool    `yaml:"by_tack"`
}

type MetricsConfig struct {
	// Textfile, when set, receives the run's metrics in Prometheus text format.
	Textfile string `yaml:"textfile"`
}

type envOverrides struct {
	LogLevel        string `envconfig:"LOG_LEVEL"`
	LogFormat       string `envconfig:"LOG_FORMAT"`
	MetricsTextfile string `envconfig:"METRICS_TEXTFILE"`
	Track           string `envconfig:"TRACK"`
}

// Load reads an optional .env file, the YAML file at path (skipped when path
// is empty) and SAILPERF_* environment overrides, then applies defaults and
// validates.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %q: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %q: %w", path, err)
		}
	}

	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return Config{}, fmt.Errorf("environment: %w", err)
	}
	applyEnv(&cfg, env)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file or environment is set.
func Default() Config {
	var cfg Config
	applyDefaults(&cfg)
	return cfg
}

func applyEnv(cfg *Config, env envOverrides) {
	if env.LogLevel != "" {
		cfg.Log.Level = env.LogLevel
	}
	if env.LogFormat != "" {
		cfg.Log.Format = env.LogFormat
	}
	if env.MetricsTextfile != "" {
		cfg.Metrics.Textfile = env.MetricsTextfile
	}
	if env.Track != "" {
		cfg.Dataset.Track = env.Track
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Merge.AngleMode == "" {
		cfg.Merge.AngleMode = string(merge.AngleLinear)
	}
	if cfg.Dataset.TrackTolerance == 0 {
		cfg.Dataset.TrackTolerance = derive.DefaultTrackTolerance
	}
	if cfg.Polar.TWABinWidth == 0 {
		cfg.Polar.TWABinWidth = polar.DefaultTWABinWidth
	}
}

// Validate checks values that defaults cannot repair.
func (c Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error (got %q)", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json (got %q)", c.Log.Format)
	}
	if _, err := merge.ParseAngleMode(c.Merge.AngleMode); err != nil {
		return fmt.Errorf("merge.angle_mode: %w", err)
	}
	if _, err := c.Dataset.Windows(); err != nil {
		return err
	}
	if _, _, err := c.Dataset.Race(); err != nil {
		return err
	}
	if c.Dataset.TrackTolerance < 0 {
		return fmt.Errorf("dataset.track_tolerance must be >= 0")
	}
	if c.Polar.TWABinWidth <= 0 {
		return fmt.Errorf("polar.twa_bin_width must be > 0")
	}
	if c.Polar.AWSBinWidth < 0 {
		return fmt.Errorf("polar.aws_bin_width must be >= 0")
	}
	return nil
}

// Windows returns the engine windows to exclude: none when exclusion is off,
// the configured list when one is given, the built-in list otherwise.
func (d DatasetConfig) Windows() ([]derive.Window, error) {
	if !d.ExcludeEngine {
		return nil, nil
	}
	if len(d.EngineWindows) == 0 {
		return derive.DefaultEngineWindows, nil
	}
	out := make([]derive.Window, 0, len(d.EngineWindows))
	for i, w := range d.EngineWindows {
		start, err := sample.ParseTime(w.Start)
		if err != nil {
			return nil, fmt.Errorf("dataset.engine_windows[%d].start: %w", i, err)
		}
		end, err := sample.ParseTime(w.End)
		if err != nil {
			return nil, fmt.Errorf("dataset.engine_windows[%d].end: %w", i, err)
		}
		if end.Before(start) {
			return nil, fmt.Errorf("dataset.engine_windows[%d].end must not be before start", i)
		}
		out = append(out, derive.Window{Start: start, End: end})
	}
	return out, nil
}

// Race parses the race bounds. Unset bounds are zero times.
func (d DatasetConfig) Race() (start, end time.Time, err error) {
	if d.RaceStart != "" {
		if start, err = sample.ParseTime(d.RaceStart); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("dataset.race_start: %w", err)
		}
	}
	if d.RaceEnd != "" {
		if end, err = sample.ParseTime(d.RaceEnd); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("dataset.race_end: %w", err)
		}
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("dataset.race_end must not be before dataset.race_start")
	}
	return start, end, nil
}

// DeriveOptions builds the deriver options; the track is loaded by the caller.
func (c Config) DeriveOptions() (derive.Options, error) {
	windows, err := c.Dataset.Windows()
	if err != nil {
		return derive.Options{}, err
	}
	start, end, err := c.Dataset.Race()
	if err != nil {
		return derive.Options{}, err
	}
	return derive.Options{
		Exclude:        windows,
		RaceStart:      start,
		RaceEnd:        end,
		TrackTolerance: c.Dataset.TrackTolerance,
	}, nil
}

func (c Config) MergeOptions() merge.Options {
	mode, _ := merge.ParseAngleMode(c.Merge.AngleMode)
	return merge.Options{Angles: mode}
}

func (c Config) PolarOptions() polar.Options {
	return polar.Options{
		TWABinWidth: c.Polar.TWABinWidth,
		ByTack:      c.Polar.ByTack,
		AWSBinWidth: c.Polar.AWSBinWidth,
	}
}
