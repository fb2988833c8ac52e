package config

import (
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/conneroisu/melodi/internal/logging"
	"github.com/conneroisu/melodi/internal/store"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("Validation errors:\n")
		for _, err := range vr.Errors {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", err.Field, err.Message))
			for _, suggestion := range err.Suggestions {
				builder.WriteString(fmt.Sprintf("      hint: %s\n", suggestion))
			}
		}
	}

	if len(vr.Warnings) > 0 {
		builder.WriteString("Validation warnings:\n")
		for _, warning := range vr.Warnings {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", warning.Field, warning.Message))
			for _, suggestion := range warning.Suggestions {
				builder.WriteString(fmt.Sprintf("      hint: %s\n", suggestion))
			}
		}
	}

	return builder.String()
}

func (vr *ValidationResult) fail(field string, value interface{}, message string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: message, Suggestions: suggestions})
}

func (vr *ValidationResult) warn(field string, value interface{}, message string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: message, Suggestions: suggestions})
}

// Validate checks every section and collects errors and warnings
func Validate(config *Config) *ValidationResult {
	result := &ValidationResult{
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	validateAppConfig(&config.App, result)
	validateTemplatesConfig(&config.Templates, result)
	validateStoreConfig(&config.Store, result)
	validateServerConfig(&config.Server, result)
	validateWatchConfig(&config.Watch, result)
	validateLogConfig(&config.Log, result)

	result.Valid = !result.HasErrors()
	return result
}

func validateAppConfig(config *AppConfig, result *ValidationResult) {
	for field, path := range map[string]string{"app.page": config.Page, "app.manifest": config.Manifest} {
		if path == "" {
			continue
		}
		if err := validatePath(path); err != nil {
			result.fail(field, path, err.Error(), "Use a path relative to the project directory")
		}
	}
	if config.Manifest != "" {
		switch strings.ToLower(filepath.Ext(config.Manifest)) {
		case ".yaml", ".yml":
		default:
			result.warn("app.manifest", config.Manifest, "manifest is not a .yaml or .yml file")
		}
	}
}

func validateTemplatesConfig(config *TemplatesConfig, result *ValidationResult) {
	if config.Dir != "" {
		if err := validatePath(config.Dir); err != nil {
			result.fail("templates.dir", config.Dir, err.Error())
		}
		if config.BaseURL != "" {
			result.warn("templates.base_url", config.BaseURL, "ignored because templates.dir is set")
		}
	}
	if config.BaseURL != "" {
		u, err := url.Parse(config.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			result.fail("templates.base_url", config.BaseURL, "must be an absolute http or https URL",
				"Example: http://localhost:3000/templates/")
		}
	}
	if config.Timeout < 0 {
		result.fail("templates.timeout", config.Timeout, "timeout cannot be negative")
	}
}

func validateStoreConfig(config *StoreConfig, result *ValidationResult) {
	if config.Persist == "" {
		return
	}
	if err := validatePath(config.Persist); err != nil {
		result.fail("store.persist", config.Persist, err.Error())
		return
	}
	if _, err := store.CodecFor(config.Persist); err != nil {
		result.fail("store.persist", config.Persist, err.Error(),
			"Use a .yaml, .yml, .msgpack or .mp file")
	}
}

func validateServerConfig(config *ServerConfig, result *ValidationResult) {
	// Port 0 lets the system assign a port, which tests rely on
	if config.Port < 0 || config.Port > 65535 {
		result.fail("server.port", config.Port, fmt.Sprintf("port %d is not in valid range 0-65535", config.Port),
			"Use a port between 1024-65535 for non-privileged access",
			"Port 0 allows system to assign an available port",
		)
	} else if config.Port > 0 && config.Port < 1024 {
		result.warn("server.port", config.Port, "port below 1024 requires elevated privileges",
			"Consider using a port above 1024 for development")
	}

	if config.Host != "" {
		if err := validateHostname(config.Host); err != nil {
			result.fail("server.host", config.Host, err.Error(),
				"Use 'localhost' for local development",
				"Use '0.0.0.0' to bind to all interfaces",
			)
		}
	}

	for _, origin := range config.AllowedOrigins {
		if origin == "*" {
			result.warn("server.allowed_origins", origin, "wildcard origin accepts websocket connections from any site")
			continue
		}
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			result.fail("server.allowed_origins", origin, "origin must be scheme://host[:port]")
		}
	}
}

func validateWatchConfig(config *WatchConfig, result *ValidationResult) {
	for _, path := range config.Paths {
		if err := validatePath(path); err != nil {
			result.fail("watch.paths", path, err.Error())
		}
	}
	if config.Debounce < 0 {
		result.fail("watch.debounce", config.Debounce, "debounce cannot be negative")
	}
}

func validateLogConfig(config *LogConfig, result *ValidationResult) {
	if config.Level != "" {
		if _, err := logging.ParseLevel(config.Level); err != nil {
			result.fail("log.level", config.Level, err.Error(), "Use debug, info, warn or error")
		}
	}
	switch config.Format {
	case "", "text", "json":
	default:
		result.fail("log.format", config.Format, fmt.Sprintf("unknown log format %q", config.Format),
			"Use text or json")
	}
}

// validatePath validates a file path for security
func validatePath(path string) error {
	cleanPath := filepath.Clean(path)

	// Reject path traversal attempts
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}

var hostnameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

func validateHostname(host string) error {
	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
	for _, char := range dangerousChars {
		if strings.Contains(host, char) {
			return fmt.Errorf("contains dangerous character: %s", char)
		}
	}

	if net.ParseIP(host) != nil || host == "localhost" {
		return nil
	}

	if !hostnameRegex.MatchString(host) {
		return fmt.Errorf("invalid hostname format")
	}

	return nil
}
