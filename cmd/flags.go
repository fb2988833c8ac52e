package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/melodi/internal/config"
)

// StandardFlags provides consistent flag definitions across commands
type StandardFlags struct {
	// Server flags
	Port  int    `flag:"port,p" desc:"Port to serve on" default:"8080"`
	Host  string `flag:"host" desc:"Host to bind to" default:"localhost"`
	Watch bool   `flag:"watch,w" desc:"Reload pages when sources change" default:"false"`

	// App flags
	Manifest string `flag:"manifest,m" desc:"Component manifest" default:""`
	Target   string `flag:"target,t" desc:"Selector of the mount root" default:""`
	Raw      bool   `flag:"raw" desc:"Interpolate without HTML escaping" default:"false"`

	// Output flags
	Format string `flag:"format,f" desc:"Output format" default:"table"`
}

// Bindings from flag names to configuration keys
var (
	serverBindings = map[string]string{"port": "server.port", "host": "server.host", "watch": "watch.enabled"}
	appBindings    = map[string]string{"manifest": "app.manifest", "target": "app.target", "raw": "app.raw_interpolation"}
)

// AddStandardFlags adds standard flags to a command
func AddStandardFlags(cmd *cobra.Command, flagTypes ...string) *StandardFlags {
	flags := &StandardFlags{}

	for _, flagType := range flagTypes {
		switch flagType {
		case "server":
			addServerFlags(cmd, flags)
		case "app":
			addAppFlags(cmd, flags)
		case "manifest":
			cmd.Flags().StringVarP(&flags.Manifest, "manifest", "m", "", "Component manifest (default melodi.yaml)")
		case "output":
			addOutputFlags(cmd, flags)
		}
	}

	return flags
}

func addServerFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().IntVarP(&flags.Port, "port", "p", config.DefaultPort, "Port to serve on")
	cmd.Flags().StringVar(&flags.Host, "host", config.DefaultHost, "Host to bind to")
	cmd.Flags().BoolVarP(&flags.Watch, "watch", "w", false, "Reload pages when sources change")
	AddFlagValidation(cmd, "port", ValidatePort)
}

func addAppFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().StringVarP(&flags.Manifest, "manifest", "m", "", "Component manifest (default melodi.yaml)")
	cmd.Flags().StringVarP(&flags.Target, "target", "t", "", "Selector of the mount root (default body)")
	cmd.Flags().BoolVar(&flags.Raw, "raw", false, "Interpolate without HTML escaping")
}

func addOutputFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().StringVarP(&flags.Format, "format", "f", "table", "Output format (table|json|yaml)")
	AddFlagValidation(cmd, "format", func(format string) error {
		return ValidateFormatWithSuggestion(format, []string{"table", "json", "yaml"})
	})
}

// SetViperBindings binds flags to configuration keys. Only flags the command
// defines are bound, so a shared key is never bound to another command's
// flag.
func SetViperBindings(cmd *cobra.Command, bindings map[string]string) error {
	for flagName, configKey := range bindings {
		flag := cmd.Flags().Lookup(flagName)
		if flag == nil {
			continue
		}
		if err := viper.BindPFlag(configKey, flag); err != nil {
			return fmt.Errorf("bind --%s: %w", flagName, err)
		}
	}
	return nil
}

// AddFlagValidation adds validation for a specific flag
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		return
	}

	flag.Value = &validatingValue{
		Value:     flag.Value,
		validator: validator,
	}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.Value.Set(val)
}

// ValidatePort is a flag validator for ports
func ValidatePort(portStr string) error {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port number: %s", portStr)
	}

	if port < 0 || port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", port)
	}

	return nil
}

// ValidateFormatWithSuggestion rejects unknown formats and suggests the
// closest one by prefix.
func ValidateFormatWithSuggestion(format string, valid []string) error {
	lower := strings.ToLower(format)
	for _, v := range valid {
		if lower == v {
			return nil
		}
	}
	for _, v := range valid {
		if lower != "" && (strings.HasPrefix(v, lower) || strings.HasPrefix(lower, v)) {
			return fmt.Errorf("invalid format %q, did you mean %q?", format, v)
		}
	}
	return fmt.Errorf("invalid format %q, must be one of: %s", format, strings.Join(valid, ", "))
}
