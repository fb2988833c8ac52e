// Package config provides configuration management for melodi using Viper
// for loading from files, environment variables, and command-line flags.
//
// Values come from .melodi.yml, MELODI_ prefixed environment variables and
// flags bound by the CLI. Load applies defaults and validates the result.
package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/melodi/internal/logging"
)

// Config is the full runtime configuration
type Config struct {
	App       AppConfig       `yaml:"app" mapstructure:"app"`
	Templates TemplatesConfig `yaml:"templates" mapstructure:"templates"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Watch     WatchConfig     `yaml:"watch" mapstructure:"watch"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	// TargetFiles are CLI arguments, not read from the config file.
	TargetFiles []string `yaml:"-" mapstructure:"-"`
}

// AppConfig selects the page, manifest and mount target
type AppConfig struct {
	Page             string `yaml:"page" mapstructure:"page"`
	Manifest         string `yaml:"manifest" mapstructure:"manifest"`
	Target           string `yaml:"target" mapstructure:"target"`
	RawInterpolation bool   `yaml:"raw_interpolation" mapstructure:"raw_interpolation"`
}

// TemplatesConfig controls where URL templates are loaded from. An empty Dir
// fetches over HTTP.
type TemplatesConfig struct {
	Dir     string        `yaml:"dir" mapstructure:"dir"`
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// StoreConfig controls store persistence
type StoreConfig struct {
	Persist string `yaml:"persist" mapstructure:"persist"`
}

type ServerConfig struct {
	Host           string   `yaml:"host" mapstructure:"host"`
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

type WatchConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	Paths    []string      `yaml:"paths" mapstructure:"paths"`
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Defaults
const (
	DefaultPage     = "index.html"
	DefaultManifest = "melodi.yaml"
	DefaultHost     = "localhost"
	DefaultPort     = 8080
	DefaultDebounce = 100 * time.Millisecond
)

// EnvPrefix prefixes environment overrides, e.g. MELODI_SERVER_PORT.
const EnvPrefix = "MELODI"

// Bind enables MELODI_ environment overrides on v
func Bind(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
}

// Load reads the global viper instance
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom unmarshals v, applies defaults for unset values and validates.
func LoadFrom(v *viper.Viper) (*Config, error) {
	config, err := Decode(v)
	if err != nil {
		return nil, err
	}

	result := Validate(config)
	if result.HasErrors() {
		return nil, fmt.Errorf("invalid configuration: %w", &result.Errors[0])
	}
	return config, nil
}

// Decode unmarshals v and applies defaults without validating. A nil v reads
// the global instance.
func Decode(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.GetViper()
	}
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}
	applyDefaults(v, &config)
	return &config, nil
}

func applyDefaults(v *viper.Viper, config *Config) {
	if config.App.Page == "" {
		config.App.Page = DefaultPage
	}
	if config.App.Manifest == "" {
		config.App.Manifest = DefaultManifest
	}

	if config.Server.Host == "" {
		config.Server.Host = DefaultHost
	}
	if !v.IsSet("server.port") {
		config.Server.Port = DefaultPort
	}
	// Handle allowed origins set via viper (workaround for viper slice handling)
	if v.IsSet("server.allowed_origins") && len(config.Server.AllowedOrigins) == 0 {
		config.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}
	if len(config.Server.AllowedOrigins) == 0 {
		config.Server.AllowedOrigins = []string{
			fmt.Sprintf("http://localhost:%d", config.Server.Port),
			fmt.Sprintf("http://127.0.0.1:%d", config.Server.Port),
		}
	}

	if v.IsSet("watch.paths") && len(config.Watch.Paths) == 0 {
		config.Watch.Paths = v.GetStringSlice("watch.paths")
	}
	if len(config.Watch.Paths) == 0 {
		config.Watch.Paths = []string{"."}
	}
	if !v.IsSet("watch.debounce") {
		config.Watch.Debounce = DefaultDebounce
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}
}

// Logger builds the logger the log section describes
func (c *Config) Logger(out io.Writer) logging.Logger {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: c.Log.Format,
		Output: out,
	})
}

// Address returns host:port for the live server
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
