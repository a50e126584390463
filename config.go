package chainrun

import (
	"fmt"
	"strconv"
	"time"

	"github.com/mstoykov/envconfig"
	"github.com/spf13/afero"
	"gopkg.in/guregu/null.v3"
	"gopkg.in/yaml.v3"
)

// NullDuration is a nullable time.Duration, in the same vein as the nullable
// types provided by package gopkg.in/guregu/null.v3.
type NullDuration struct {
	Duration time.Duration
	Valid    bool
}

// NullDurationFrom returns a new valid NullDuration from a time.Duration.
func NullDurationFrom(d time.Duration) NullDuration {
	return NullDuration{d, true}
}

// NewNullDuration is a simple helper constructor function.
func NewNullDuration(d time.Duration, valid bool) NullDuration {
	return NullDuration{d, valid}
}

// ParseDuration parses a Go duration string. Plain numbers are
// milliseconds.
func ParseDuration(s string) (time.Duration, error) {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(f * float64(time.Millisecond)), nil
	}
	return time.ParseDuration(s)
}

// UnmarshalText converts text data to a valid NullDuration.
func (d *NullDuration) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*d = NullDuration{}
		return nil
	}
	v, err := ParseDuration(string(data))
	if err != nil {
		return err
	}
	*d = NullDuration{v, true}
	return nil
}

// String satisfies fmt.Stringer.
func (d NullDuration) String() string {
	if !d.Valid {
		return "null"
	}
	return d.Duration.String()
}

// Config holds the run settings. Every field is nullable so that layers
// can be merged with Apply.
type Config struct {
	Timeout           NullDuration `json:"timeout" envconfig:"CHAINRUN_TIMEOUT"`
	PollInterval      NullDuration `json:"pollInterval" envconfig:"CHAINRUN_POLL_INTERVAL"`
	PollBackoff       null.Float   `json:"pollBackoff" envconfig:"CHAINRUN_POLL_BACKOFF"`
	MaxPollInterval   NullDuration `json:"maxPollInterval" envconfig:"CHAINRUN_MAX_POLL_INTERVAL"`
	KeystrokeDelay    NullDuration `json:"keystrokeDelay" envconfig:"CHAINRUN_KEYSTROKE_DELAY"`
	BaseURL           null.String  `json:"baseURL" envconfig:"CHAINRUN_BASE_URL"`
	ViewportWidth     null.Int     `json:"viewportWidth" envconfig:"CHAINRUN_VIEWPORT_WIDTH"`
	ViewportHeight    null.Int     `json:"viewportHeight" envconfig:"CHAINRUN_VIEWPORT_HEIGHT"`
	Reporter          null.String  `json:"reporter" envconfig:"CHAINRUN_REPORTER"`
	Parallel          null.Int     `json:"parallel" envconfig:"CHAINRUN_PARALLEL"`
	Headless          null.Bool    `json:"headless" envconfig:"CHAINRUN_HEADLESS"`
	RemoteURL         null.String  `json:"remoteURL" envconfig:"CHAINRUN_REMOTE_URL"`
	SnapshotDir       null.String  `json:"snapshotDir" envconfig:"CHAINRUN_SNAPSHOT_DIR"`
	SnapshotThreshold null.Float   `json:"snapshotThreshold" envconfig:"CHAINRUN_SNAPSHOT_THRESHOLD"`
}

// DefaultConfig returns the built-in defaults. None of the values are
// marked valid, so any other layer overrides them.
func DefaultConfig() Config {
	return Config{
		Timeout:           NewNullDuration(4*time.Second, false),
		PollInterval:      NewNullDuration(50*time.Millisecond, false),
		PollBackoff:       null.NewFloat(1, false),
		MaxPollInterval:   NewNullDuration(time.Second, false),
		KeystrokeDelay:    NewNullDuration(10*time.Millisecond, false),
		BaseURL:           null.NewString("", false),
		ViewportWidth:     null.NewInt(1000, false),
		ViewportHeight:    null.NewInt(660, false),
		Reporter:          null.NewString("spec", false),
		Parallel:          null.NewInt(1, false),
		Headless:          null.NewBool(true, false),
		RemoteURL:         null.NewString("", false),
		SnapshotDir:       null.NewString("snapshots", false),
		SnapshotThreshold: null.NewFloat(0.1, false),
	}
}

// Apply saves the valid values of cfg in the receiver.
//
//nolint:cyclop
func (c Config) Apply(cfg Config) Config {
	if cfg.Timeout.Valid {
		c.Timeout = cfg.Timeout
	}
	if cfg.PollInterval.Valid {
		c.PollInterval = cfg.PollInterval
	}
	if cfg.PollBackoff.Valid {
		c.PollBackoff = cfg.PollBackoff
	}
	if cfg.MaxPollInterval.Valid {
		c.MaxPollInterval = cfg.MaxPollInterval
	}
	if cfg.KeystrokeDelay.Valid {
		c.KeystrokeDelay = cfg.KeystrokeDelay
	}
	if cfg.BaseURL.Valid {
		c.BaseURL = cfg.BaseURL
	}
	if cfg.ViewportWidth.Valid {
		c.ViewportWidth = cfg.ViewportWidth
	}
	if cfg.ViewportHeight.Valid {
		c.ViewportHeight = cfg.ViewportHeight
	}
	if cfg.Reporter.Valid {
		c.Reporter = cfg.Reporter
	}
	if cfg.Parallel.Valid {
		c.Parallel = cfg.Parallel
	}
	if cfg.Headless.Valid {
		c.Headless = cfg.Headless
	}
	if cfg.RemoteURL.Valid {
		c.RemoteURL = cfg.RemoteURL
	}
	if cfg.SnapshotDir.Valid {
		c.SnapshotDir = cfg.SnapshotDir
	}
	if cfg.SnapshotThreshold.Valid {
		c.SnapshotThreshold = cfg.SnapshotThreshold
	}
	return c
}

// Validate checks the merged config for values the runner cannot use.
func (c Config) Validate() error {
	switch {
	case c.Timeout.Duration <= 0:
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout.Duration)
	case c.PollInterval.Duration <= 0:
		return fmt.Errorf("pollInterval must be positive, got %s", c.PollInterval.Duration)
	case c.PollBackoff.Float64 < 1:
		return fmt.Errorf("pollBackoff must be at least 1, got %g", c.PollBackoff.Float64)
	case c.Parallel.Int64 < 1:
		return fmt.Errorf("parallel must be at least 1, got %d", c.Parallel.Int64)
	case c.ViewportWidth.Int64 <= 0 || c.ViewportHeight.Int64 <= 0:
		return fmt.Errorf("invalid viewport %dx%d", c.ViewportWidth.Int64, c.ViewportHeight.Int64)
	case c.SnapshotThreshold.Float64 < 0 || c.SnapshotThreshold.Float64 > 1:
		return fmt.Errorf("snapshotThreshold must be within [0, 1], got %g", c.SnapshotThreshold.Float64)
	}
	switch c.Reporter.String {
	case "spec", "json":
	default:
		return fmt.Errorf("unknown reporter %q", c.Reporter.String)
	}
	return nil
}

// Poller returns the poller configured by c.
func (c Config) Poller() Poller {
	return Poller{
		Interval:    c.PollInterval.Duration,
		Backoff:     c.PollBackoff.Float64,
		MaxInterval: c.MaxPollInterval.Duration,
		Timeout:     c.Timeout.Duration,
	}
}

// fileConfig is the YAML form of Config.
type fileConfig struct {
	Timeout           *string  `yaml:"timeout"`
	PollInterval      *string  `yaml:"pollInterval"`
	PollBackoff       *float64 `yaml:"pollBackoff"`
	MaxPollInterval   *string  `yaml:"maxPollInterval"`
	KeystrokeDelay    *string  `yaml:"keystrokeDelay"`
	BaseURL           *string  `yaml:"baseURL"`
	ViewportWidth     *int64   `yaml:"viewportWidth"`
	ViewportHeight    *int64   `yaml:"viewportHeight"`
	Reporter          *string  `yaml:"reporter"`
	Parallel          *int64   `yaml:"parallel"`
	Headless          *bool    `yaml:"headless"`
	RemoteURL         *string  `yaml:"remoteURL"`
	SnapshotDir       *string  `yaml:"snapshotDir"`
	SnapshotThreshold *float64 `yaml:"snapshotThreshold"`
}

// ParseConfig decodes a YAML config document.
func ParseConfig(data []byte) (Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, err
	}
	var (
		c   Config
		err error
	)
	durations := []struct {
		s *string
		d *NullDuration
	}{
		{fc.Timeout, &c.Timeout},
		{fc.PollInterval, &c.PollInterval},
		{fc.MaxPollInterval, &c.MaxPollInterval},
		{fc.KeystrokeDelay, &c.KeystrokeDelay},
	}
	for _, d := range durations {
		if d.s == nil {
			continue
		}
		if err = d.d.UnmarshalText([]byte(*d.s)); err != nil {
			return Config{}, err
		}
	}
	c.PollBackoff = null.FloatFromPtr(fc.PollBackoff)
	c.BaseURL = null.StringFromPtr(fc.BaseURL)
	c.ViewportWidth = null.IntFromPtr(fc.ViewportWidth)
	c.ViewportHeight = null.IntFromPtr(fc.ViewportHeight)
	c.Reporter = null.StringFromPtr(fc.Reporter)
	c.Parallel = null.IntFromPtr(fc.Parallel)
	c.Headless = null.BoolFromPtr(fc.Headless)
	c.RemoteURL = null.StringFromPtr(fc.RemoteURL)
	c.SnapshotDir = null.StringFromPtr(fc.SnapshotDir)
	c.SnapshotThreshold = null.FloatFromPtr(fc.SnapshotThreshold)
	return c, nil
}

// ReadConfigFile reads a YAML config file from fs.
func ReadConfigFile(fs afero.Fs, path string) (Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Config{}, fmt.Errorf("couldn't read config file %q: %w", path, err)
	}
	c, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("couldn't parse config file %q: %w", path, err)
	}
	return c, nil
}

// ReadEnvConfig reads the CHAINRUN_* variables through lookup.
func ReadEnvConfig(lookup func(string) (string, bool)) (Config, error) {
	var c Config
	if err := envconfig.Process("", &c, lookup); err != nil {
		return Config{}, err
	}
	return c, nil
}
