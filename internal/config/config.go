// Package config loads phpsrv settings from defaults, a YAML file and
// PHPSRV_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment variable overrides
const EnvPrefix = "PHPSRV"

// Config holds every setting
type Config struct {
	Runtime  RuntimeConfig  `mapstructure:"runtime"`
	Server   ServerConfig   `mapstructure:"server"`
	Projects ProjectsConfig `mapstructure:"projects"`
	Log      LogConfig      `mapstructure:"log"`
}

// RuntimeConfig locates PHP executables
type RuntimeConfig struct {
	Dir            string `mapstructure:"dir"`
	DefaultVersion string `mapstructure:"default_version"`
}

// ServerConfig holds development server defaults
type ServerConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	GracePeriod time.Duration `mapstructure:"grace_period"`
	StopTimeout time.Duration `mapstructure:"stop_timeout"`
}

// ProjectsConfig locates managed projects
type ProjectsConfig struct {
	Dir string `mapstructure:"dir"`
}

// LogConfig configures the logger
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// DefaultPath returns $HOME/.phpsrv/config.yaml
func DefaultPath() string {
	return filepath.Join(homeDir(), ".phpsrv", "config.yaml")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

func setDefaults(v *viper.Viper) {
	home := homeDir()
	v.SetDefault("runtime.dir", filepath.Join(home, ".phpsrv", "runtimes"))
	v.SetDefault("runtime.default_version", "system")
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.grace_period", 500*time.Millisecond)
	v.SetDefault("server.stop_timeout", 10*time.Second)
	v.SetDefault("projects.dir", filepath.Join(home, "phpsrv-projects"))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", true)
}

// Default returns the built-in settings
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	// defaults always decode
	_ = v.Unmarshal(cfg)
	return cfg
}

// Load reads the config file at path (DefaultPath when empty) over the
// defaults and applies environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		path = DefaultPath()
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.GracePeriod < 0 {
		return fmt.Errorf("server.grace_period must not be negative")
	}
	if c.Server.StopTimeout <= 0 {
		return fmt.Errorf("server.stop_timeout must be positive")
	}
	return nil
}

// Save writes cfg as YAML to path, creating parent directories
func Save(cfg *Config, path string) error {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.Set("runtime.dir", cfg.Runtime.Dir)
	v.Set("runtime.default_version", cfg.Runtime.DefaultVersion)
	v.Set("server.host", cfg.Server.Host)
	v.Set("server.port", cfg.Server.Port)
	v.Set("server.grace_period", cfg.Server.GracePeriod.String())
	v.Set("server.stop_timeout", cfg.Server.StopTimeout.String())
	v.Set("projects.dir", cfg.Projects.Dir)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.development", cfg.Log.Development)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}
