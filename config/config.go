// Package config resolves scanner settings from defaults, an optional YAML
// file, SIGSCAN_* environment variables and command line flags, in that
// order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"sigscan/process"
	"sigscan/search"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	AppName   = "sigscan"
	EnvPrefix = "SIGSCAN"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Output struct {
	// INI is the key-value offsets file; empty disables it
	INI       string `mapstructure:"ini"`
	Constants string `mapstructure:"constants"`
	Package   string `mapstructure:"package"`
}

type Config struct {
	WindowSize   uint   `mapstructure:"window_size"`
	PageSize     uint   `mapstructure:"page_size"`
	Parallelism  int    `mapstructure:"parallelism"`
	PointerWidth int    `mapstructure:"pointer_width"`
	TargetsFile  string `mapstructure:"targets_file"`
	Module       string `mapstructure:"module"`
	Output       Output `mapstructure:"output"`
	Debug        bool   `mapstructure:"debug"`
}

// DefaultConfig returns the settings used when nothing overrides them.
func DefaultConfig() *Config {
	return &Config{
		WindowSize:   search.DefaultWindowSize,
		PageSize:     search.DefaultPageSize,
		Parallelism:  1,
		PointerWidth: 8,
		Output: Output{
			INI:     "offsets.ini",
			Package: "offsets",
		},
	}
}

// LoadOptions selects the sources Load merges over the defaults.
type LoadOptions struct {
	// ConfigFilePath must exist when set
	ConfigFilePath string
	// Flags are bound by key; only flags the user changed take effect
	Flags map[string]*pflag.Flag
}

// Load merges every source and validates the result.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("window_size", defaults.WindowSize)
	v.SetDefault("page_size", defaults.PageSize)
	v.SetDefault("parallelism", defaults.Parallelism)
	v.SetDefault("pointer_width", defaults.PointerWidth)
	v.SetDefault("targets_file", defaults.TargetsFile)
	v.SetDefault("module", defaults.Module)
	v.SetDefault("output.ini", defaults.Output.INI)
	v.SetDefault("output.constants", defaults.Output.Constants)
	v.SetDefault("output.package", defaults.Output.Package)
	v.SetDefault("debug", defaults.Debug)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFilePath != "" {
		if _, err := os.Stat(opts.ConfigFilePath); err != nil {
			return nil, fmt.Errorf("config file not found: %w", err)
		}
		v.SetConfigFile(opts.ConfigFilePath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	for key, flag := range opts.Flags {
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.WindowSize == 0 {
		return fmt.Errorf("%w: window_size must be positive", ErrInvalidConfig)
	}
	if c.PageSize == 0 {
		return fmt.Errorf("%w: page_size must be positive", ErrInvalidConfig)
	}
	if c.PointerWidth != 4 && c.PointerWidth != 8 {
		return fmt.Errorf("%w: pointer_width %d, want 4 or 8", ErrInvalidConfig, c.PointerWidth)
	}
	if c.Parallelism < 0 {
		return fmt.Errorf("%w: parallelism %d", ErrInvalidConfig, c.Parallelism)
	}
	return nil
}

// SearchOptions converts the window settings for the matcher.
func (c *Config) SearchOptions() []search.Option {
	return []search.Option{
		search.WithWindowSize(process.ProcessMemorySize(c.WindowSize)),
		search.WithPageSize(process.ProcessMemorySize(c.PageSize)),
	}
}
