package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "TTLKV_"

type Config struct {
	// Network is "tcp" or "unix".
	Network string `yaml:"network"`
	Addr    string `yaml:"addr"`
	// HTTPAddr enables the HTTP surface when set.
	HTTPAddr     string        `yaml:"http_addr"`
	// MaxConns of 0 accepts any number of connections.
	MaxConns     int           `yaml:"max_conns"`
	MaxLineBytes int           `yaml:"max_line_bytes"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	ReusePort    bool          `yaml:"reuse_port"`

	Shards int `yaml:"shards"`
	// SweepInterval of 0 leaves expiry purely lazy.
	SweepInterval time.Duration `yaml:"sweep_interval"`
	SweepChunk    int           `yaml:"sweep_chunk"`

	LogFile      string `yaml:"log_file"`
	LogVerbosity int    `yaml:"log_verbosity"`
}

func Default() Config {
	return Config{
		Network:      "tcp",
		Addr:         "127.0.0.1:8080",
		MaxConns:     1024,
		MaxLineBytes: 64 * 1024,
		IdleTimeout:  5 * time.Minute,
		Shards:       16,
		SweepChunk:   1000,
	}
}

// Load returns the defaults overlaid with the YAML file at path (if any) and
// then with TTLKV_* environment variables.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from variables returned by getenv. Unset or empty
// variables leave the field alone.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	var errs []error
	str := func(name string, dst *string) {
		if v := getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v := getenv(EnvPrefix + name); v != "" {
			n, err := cast.ToIntE(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v := getenv(EnvPrefix + name); v != "" {
			d, err := cast.ToDurationE(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}
	flag := func(name string, dst *bool) {
		if v := getenv(EnvPrefix + name); v != "" {
			b, err := cast.ToBoolE(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}

	str("NETWORK", &c.Network)
	str("ADDR", &c.Addr)
	str("HTTP_ADDR", &c.HTTPAddr)
	num("MAX_CONNS", &c.MaxConns)
	num("MAX_LINE_BYTES", &c.MaxLineBytes)
	dur("IDLE_TIMEOUT", &c.IdleTimeout)
	flag("REUSE_PORT", &c.ReusePort)
	num("SHARDS", &c.Shards)
	dur("SWEEP_INTERVAL", &c.SweepInterval)
	num("SWEEP_CHUNK", &c.SweepChunk)
	str("LOG_FILE", &c.LogFile)
	num("LOG_VERBOSITY", &c.LogVerbosity)

	return errors.Join(errs...)
}

func (c Config) Validate() error {
	var errs []error
	if c.Network != "tcp" && c.Network != "unix" {
		errs = append(errs, fmt.Errorf("network must be tcp or unix, got %q", c.Network))
	}
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must be set"))
	}
	if c.MaxConns < 0 {
		errs = append(errs, fmt.Errorf("max_conns must not be negative, got %d", c.MaxConns))
	}
	if c.MaxLineBytes < 16 {
		errs = append(errs, fmt.Errorf("max_line_bytes must be at least 16, got %d", c.MaxLineBytes))
	}
	if c.IdleTimeout < 0 {
		errs = append(errs, fmt.Errorf("idle_timeout must not be negative, got %s", c.IdleTimeout))
	}
	if c.Shards <= 0 {
		errs = append(errs, fmt.Errorf("shards must be positive, got %d", c.Shards))
	}
	if c.SweepInterval < 0 {
		errs = append(errs, fmt.Errorf("sweep_interval must not be negative, got %s", c.SweepInterval))
	}
	if c.SweepInterval > 0 && c.SweepChunk < 0 {
		errs = append(errs, fmt.Errorf("sweep_chunk must not be negative, got %d", c.SweepChunk))
	}
	return errors.Join(errs...)
}
