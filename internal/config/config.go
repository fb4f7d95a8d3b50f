package config

import (
	"errors"
	"fmt"
	"go-teethagent/internal/heartbeat"
	"gopkg.in/yaml.v3"
	"net/url"
	"os"
	"regexp"
	"time"
)

const DefaultPort = 9999

type Config struct {
	API       APIConfig       `yaml:"api"`
	Listen    AddressConfig   `yaml:"listen"`
	Advertise AddressConfig   `yaml:"advertise"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Modes     ModesConfig     `yaml:"modes"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type APIConfig struct {
	URL string `yaml:"url"`
}

// AddressConfig is a host/port pair. An empty host is filled in when the agent is built.
type AddressConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type HeartbeatConfig struct {
	InitialDelay   time.Duration `yaml:"-"`
	MaxDelay       time.Duration `yaml:"-"`
	RequestTimeout time.Duration `yaml:"-"`

	InitialDelayRaw   string `yaml:"initial_delay"`
	MaxDelayRaw       string `yaml:"max_delay"`
	RequestTimeoutRaw string `yaml:"request_timeout"`

	BackoffFactor float64 `yaml:"backoff_factor"`
	MinJitter     float64 `yaml:"min_jitter"`
	MaxJitter     float64 `yaml:"max_jitter"`
}

type ModesConfig struct {
	ImageCacheDir string `yaml:"image_cache_dir"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	hb := heartbeat.DefaultConfig()
	return &Config{
		Listen:    AddressConfig{Port: DefaultPort},
		Advertise: AddressConfig{Port: DefaultPort},
		Heartbeat: HeartbeatConfig{
			InitialDelay:   hb.InitialDelay,
			MaxDelay:       hb.MaxDelay,
			RequestTimeout: hb.RequestTimeout,
			BackoffFactor:  hb.BackoffFactor,
			MinJitter:      hb.MinJitter,
			MaxJitter:      hb.MaxJitter,
		},
		Modes:   ModesConfig{ImageCacheDir: "/var/cache/teeth/images"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads a YAML configuration file on top of the defaults. ${VAR} references are
// replaced with the environment value before parsing. The result is not validated, since
// overrides may still fill in or replace values; call Validate once they are applied.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg.Heartbeat); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with the variable's value, or nothing when it is unset.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func parseDurations(hb *HeartbeatConfig) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"initial_delay", hb.InitialDelayRaw, &hb.InitialDelay},
		{"max_delay", hb.MaxDelayRaw, &hb.MaxDelay},
		{"request_timeout", hb.RequestTimeoutRaw, &hb.RequestTimeout},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

// Overrides holds values given on the command line or through the environment. Nil fields
// leave the configuration untouched.
type Overrides struct {
	APIURL        *string
	ListenHost    *string
	ListenPort    *int
	AdvertiseHost *string
	AdvertisePort *int
	ImageCacheDir *string
	LogLevel      *string
	PrettyLogs    *bool
}

// Apply copies every set override into c.
func (c *Config) Apply(o Overrides) {
	setString(&c.API.URL, o.APIURL)
	setString(&c.Listen.Host, o.ListenHost)
	setInt(&c.Listen.Port, o.ListenPort)
	setString(&c.Advertise.Host, o.AdvertiseHost)
	setInt(&c.Advertise.Port, o.AdvertisePort)
	setString(&c.Modes.ImageCacheDir, o.ImageCacheDir)
	setString(&c.Logging.Level, o.LogLevel)
	if o.PrettyLogs != nil {
		c.Logging.Pretty = *o.PrettyLogs
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

// Validate returns the first problem found in the configuration.
func (c *Config) Validate() error {
	if c.API.URL == "" {
		return errors.New("api.url is required")
	}
	u, err := url.Parse(c.API.URL)
	if err != nil {
		return fmt.Errorf("api.url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api.url scheme %q must be http or https", u.Scheme)
	}
	if err := validPort("listen.port", c.Listen.Port); err != nil {
		return err
	}
	if err := validPort("advertise.port", c.Advertise.Port); err != nil {
		return err
	}

	hb := c.Heartbeat
	if hb.InitialDelay <= 0 {
		return errors.New("heartbeat.initial_delay must be positive")
	}
	if hb.MaxDelay < hb.InitialDelay {
		return errors.New("heartbeat.max_delay must not be less than heartbeat.initial_delay")
	}
	if hb.BackoffFactor < 1 {
		return errors.New("heartbeat.backoff_factor must be at least 1")
	}
	if hb.MinJitter < 0 || hb.MaxJitter < hb.MinJitter || hb.MaxJitter > 1 {
		return fmt.Errorf("heartbeat jitter range [%v, %v] must lie within [0, 1]", hb.MinJitter, hb.MaxJitter)
	}
	if hb.RequestTimeout <= 0 {
		return errors.New("heartbeat.request_timeout must be positive")
	}

	if c.Modes.ImageCacheDir == "" {
		return errors.New("modes.image_cache_dir is required")
	}
	return nil
}

func validPort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s %d out of range", name, port)
	}
	return nil
}

func (c *Config) HeartbeatConfig() heartbeat.Config {
	return heartbeat.Config{
		InitialDelay:   c.Heartbeat.InitialDelay,
		MaxDelay:       c.Heartbeat.MaxDelay,
		BackoffFactor:  c.Heartbeat.BackoffFactor,
		MinJitter:      c.Heartbeat.MinJitter,
		MaxJitter:      c.Heartbeat.MaxJitter,
		RequestTimeout: c.Heartbeat.RequestTimeout,
	}
}
