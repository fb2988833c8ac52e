// Package cmd provides the command-line interface for melodi with
// configuration management supporting multiple configuration sources.
//
// Configuration System:
//
//	The CLI reads configuration from several sources with clear precedence:
//	1. Command-line flags (--port, --manifest, etc.) - highest priority
//	2. Individual environment variables (MELODI_SERVER_PORT, etc.)
//	3. The config file named by --config or MELODI_CONFIG_FILE
//	4. .melodi.yml in the working directory - lowest priority
//
// Environment Variables:
//
//	MELODI_CONFIG_FILE: Path to custom configuration file
//	MELODI_SERVER_PORT: Override server port
//	MELODI_APP_MANIFEST: Override the manifest path
//	And more following the MELODI_<SECTION>_<OPTION> pattern
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/melodi/internal/config"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "melodi",
	Short: "Mount and serve declarative HTML components without a browser",
	Long: `melodi mounts custom elements declared in a YAML manifest into an HTML page,
evaluates their templates and directives, and serves the result with live
event handling over a websocket.

Quick Start:
  melodi render index.html        Mount the page and print the document
  melodi serve --watch            Start the live server with reload
  melodi list                     List declared components
  melodi validate                 Check the manifest and configuration`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is .melodi.yml, can also use MELODI_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")
}

// initConfig selects the config file and enables MELODI_ environment
// overrides. A missing default file is not an error.
func initConfig() {
	v := viper.GetViper()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("MELODI_CONFIG_FILE"); envConfigFile != "" {
		v.SetConfigFile(envConfigFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".melodi")
	}
	config.Bind(v)

	if err := v.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", v.ConfigFileUsed())
	}
}

// loadConfig binds the running command's flags and loads the configuration
func loadConfig(cmd *cobra.Command, bindings map[string]string) (*config.Config, error) {
	all := map[string]string{"log-level": "log.level", "log-format": "log.format"}
	for flag, key := range bindings {
		all[flag] = key
	}
	if err := SetViperBindings(cmd, all); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}
