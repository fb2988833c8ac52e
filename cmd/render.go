package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/conneroisu/melodi/internal/renderer"
)

var renderCmd = &cobra.Command{
	Use:     "render [page.html]",
	Aliases: []string{"r"},
	Short:   "Mount a page and print the resulting document",
	Long: `Mount every declared component in a page, run pending updates and print
the document. The page defaults to app.page (index.html).

Examples:
  melodi render                          # Render index.html with melodi.yaml
  melodi render about.html -m site.yaml  # Render another page and manifest
  melodi render --target '#app'          # Mount only inside #app
  melodi render --out dist/index.html    # Write to a file`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRender,
}

var (
	renderFlags *StandardFlags
	renderOut   string
)

func init() {
	rootCmd.AddCommand(renderCmd)

	renderFlags = AddStandardFlags(renderCmd, "app")
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "", "Write the document to a file instead of stdout")
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, appBindings)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		cfg.App.Page = args[0]
		cfg.TargetFiles = args
	}
	logger := cfg.Logger(cmd.ErrOrStderr())

	src, err := renderer.FromConfig(cfg, logger)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if renderOut != "" {
		f, err := os.Create(renderOut)
		if err != nil {
			return fmt.Errorf("create %s: %w", renderOut, err)
		}
		defer f.Close()
		out = f
	}

	if err := src.Render(cmd.Context(), out); err != nil {
		return fmt.Errorf("render %s: %w", cfg.App.Page, err)
	}
	if renderOut == "" {
		fmt.Fprintln(out)
	}
	return nil
}
