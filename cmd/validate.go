package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conneroisu/melodi/internal/config"
	"github.com/conneroisu/melodi/internal/errors"
	"github.com/conneroisu/melodi/internal/renderer"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the manifest and configuration for errors",
	Long: `Validate the configuration and the component manifest:

- Every expression in templates, steps and store actions must parse
- Event handlers should name declared methods
- Dispatch steps must name declared store actions
- Route tags must be declared components
- Components must not depend on each other in a cycle

Exits non-zero when any error is found. Warnings are printed but do not fail.

Examples:
  melodi validate                  # Validate melodi.yaml
  melodi validate -m site.yaml     # Validate another manifest
  melodi validate --format json    # Machine-readable output`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

var (
	validateFlags  *StandardFlags
	validateFormat string
)

func init() {
	rootCmd.AddCommand(validateCmd)

	validateFlags = AddStandardFlags(validateCmd, "manifest")
	validateCmd.Flags().StringVarP(&validateFormat, "format", "f", "text", "Output format (text|json)")
	AddFlagValidation(validateCmd, "format", func(format string) error {
		return ValidateFormatWithSuggestion(format, []string{"text", "json"})
	})
}

// validationReport is the JSON form of a validation run
type validationReport struct {
	Valid  bool          `json:"valid"`
	Errors []issueReport `json:"errors"`
	Warns  []issueReport `json:"warnings"`
}

type issueReport struct {
	Source     string `json:"source"`
	Component  string `json:"component,omitempty"`
	Field      string `json:"field,omitempty"`
	Expression string `json:"expression,omitempty"`
	Message    string `json:"message"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	if err := SetViperBindings(cmd, map[string]string{"manifest": "app.manifest"}); err != nil {
		return err
	}
	// Unmarshal without config.Load so an invalid configuration is reported
	// alongside manifest problems instead of stopping the run.
	cfg, err := config.Decode(nil)
	if err != nil {
		return err
	}

	report := validationReport{Errors: []issueReport{}, Warns: []issueReport{}}
	result := config.Validate(cfg)
	for _, e := range result.Errors {
		report.Errors = append(report.Errors, issueReport{Source: "config", Field: e.Field, Message: e.Message})
	}
	for _, w := range result.Warnings {
		report.Warns = append(report.Warns, issueReport{Source: "config", Field: w.Field, Message: w.Message})
	}

	src := &renderer.Source{Manifest: cfg.App.Manifest}
	m, err := src.LoadManifest()
	if err != nil {
		report.Errors = append(report.Errors, issueReport{Source: cfg.App.Manifest, Message: err.Error()})
	} else {
		for _, issue := range m.Validate().Issues() {
			entry := issueReport{
				Source:     cfg.App.Manifest,
				Component:  issue.Component,
				Field:      issue.Field,
				Expression: issue.Expression,
				Message:    issue.Message,
			}
			if issue.Severity == errors.ErrorSeverityError {
				report.Errors = append(report.Errors, entry)
			} else {
				report.Warns = append(report.Warns, entry)
			}
		}
	}
	report.Valid = len(report.Errors) == 0

	out := cmd.OutOrStdout()
	if validateFormat == "json" {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(report); err != nil {
			return err
		}
	} else {
		printIssues(cmd, "error", report.Errors)
		printIssues(cmd, "warning", report.Warns)
		if report.Valid {
			fmt.Fprintf(out, "%s is valid (%d warning(s))\n", cfg.App.Manifest, len(report.Warns))
		}
	}

	if !report.Valid {
		return fmt.Errorf("validation failed: %d error(s)", len(report.Errors))
	}
	return nil
}

func printIssues(cmd *cobra.Command, severity string, issues []issueReport) {
	for _, issue := range issues {
		where := []string{issue.Source}
		if issue.Component != "" {
			where = append(where, issue.Component)
		}
		if issue.Field != "" {
			where = append(where, issue.Field)
		}
		line := fmt.Sprintf("%s: %s: %s", strings.Join(where, ": "), severity, issue.Message)
		if issue.Expression != "" {
			line += fmt.Sprintf(" (in %q)", issue.Expression)
		}
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
}
