package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(v *viper.Viper)
		expectError string
		check       func(t *testing.T, c *Config)
	}{
		{
			name:  "defaults",
			setup: func(*viper.Viper) {},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, DefaultPage, c.App.Page)
				assert.Equal(t, DefaultManifest, c.App.Manifest)
				assert.Equal(t, "localhost:8080", c.Address())
				assert.Equal(t, []string{"http://localhost:8080", "http://127.0.0.1:8080"}, c.Server.AllowedOrigins)
				assert.Equal(t, []string{"."}, c.Watch.Paths)
				assert.Equal(t, DefaultDebounce, c.Watch.Debounce)
				assert.Equal(t, "info", c.Log.Level)
				assert.Equal(t, "text", c.Log.Format)
			},
		},
		{
			name: "explicit values",
			setup: func(v *viper.Viper) {
				v.Set("app.page", "site/page.html")
				v.Set("app.target", "#app")
				v.Set("app.raw_interpolation", true)
				v.Set("server.port", 0)
				v.Set("server.allowed_origins", []string{"https://example.com"})
				v.Set("watch.paths", []string{"site", "components"})
				v.Set("watch.debounce", "250ms")
				v.Set("templates.timeout", "2s")
				v.Set("store.persist", "state/store.yaml")
			},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "site/page.html", c.App.Page)
				assert.Equal(t, "#app", c.App.Target)
				assert.True(t, c.App.RawInterpolation)
				assert.Equal(t, 0, c.Server.Port)
				assert.Equal(t, []string{"https://example.com"}, c.Server.AllowedOrigins)
				assert.Equal(t, []string{"site", "components"}, c.Watch.Paths)
				assert.Equal(t, 250*time.Millisecond, c.Watch.Debounce)
				assert.Equal(t, 2*time.Second, c.Templates.Timeout)
				assert.Equal(t, "state/store.yaml", c.Store.Persist)
			},
		},
		{
			name:        "invalid port type",
			setup:       func(v *viper.Viper) { v.Set("server.port", "invalid_port") },
			expectError: "",
		},
		{
			name:        "port out of range",
			setup:       func(v *viper.Viper) { v.Set("server.port", 70000) },
			expectError: "server.port",
		},
		{
			name:        "traversal in page",
			setup:       func(v *viper.Viper) { v.Set("app.page", "../../etc/passwd") },
			expectError: "app.page",
		},
		{
			name:        "unsupported persist extension",
			setup:       func(v *viper.Viper) { v.Set("store.persist", "state.json") },
			expectError: "store.persist",
		},
		{
			name:        "unknown log format",
			setup:       func(v *viper.Viper) { v.Set("log.format", "xml") },
			expectError: "log.format",
		},
		{
			name:        "relative base url",
			setup:       func(v *viper.Viper) { v.Set("templates.base_url", "/templates") },
			expectError: "templates.base_url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			tt.setup(v)

			config, err := LoadFrom(v)
			if tt.check == nil {
				require.Error(t, err)
				assert.Nil(t, config)
				assert.Contains(t, err.Error(), tt.expectError)
				return
			}
			require.NoError(t, err)
			tt.check(t, config)
		})
	}
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".melodi.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  manifest: app.yaml
server:
  port: 3000
log:
  level: debug
`), 0o644))

	t.Setenv("MELODI_SERVER_PORT", "4000")

	v := viper.New()
	v.SetConfigFile(path)
	Bind(v)
	require.NoError(t, v.ReadInConfig())

	config, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, "app.yaml", config.App.Manifest)
	assert.Equal(t, 4000, config.Server.Port)
	assert.Equal(t, "debug", config.Log.Level)
}

func TestDecodeSkipsValidation(t *testing.T) {
	v := viper.New()
	v.Set("server.port", 70000)
	v.Set("log.format", "xml")

	config, err := Decode(v)
	require.NoError(t, err)
	assert.Equal(t, 70000, config.Server.Port)
	assert.Equal(t, DefaultManifest, config.App.Manifest)

	result := Validate(config)
	assert.Len(t, result.Errors, 2)

	_, err = LoadFrom(v)
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestValidateWarnings(t *testing.T) {
	config := &Config{
		App:       AppConfig{Manifest: "components.toml"},
		Templates: TemplatesConfig{Dir: "templates", BaseURL: "http://localhost/t/"},
		Server:    ServerConfig{Host: "localhost", Port: 80, AllowedOrigins: []string{"*"}},
	}
	result := Validate(config)
	assert.True(t, result.Valid)
	assert.False(t, result.HasErrors())
	assert.Len(t, result.Warnings, 4)
	assert.Contains(t, result.String(), "Validation warnings")
}

func TestValidateHostname(t *testing.T) {
	for _, host := range []string{"localhost", "0.0.0.0", "::1", "example.com", "my-host"} {
		assert.NoError(t, validateHostname(host), host)
	}
	for _, host := range []string{"bad;host", "-leading", "a b", "$(whoami)"} {
		assert.Error(t, validateHostname(host), host)
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	c := &Config{Log: LogConfig{Level: "warn", Format: "json"}}
	logger := c.Logger(&buf)
	logger.Info(context.Background(), "hidden")
	logger.Warn(context.Background(), nil, "shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}
