package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/melodi/internal/renderer"
	"github.com/conneroisu/melodi/internal/server"
)

var serveCmd = &cobra.Command{
	Use:     "serve [page.html]",
	Aliases: []string{"s"},
	Short:   "Start the live server",
	Long: `Start the live server. Every page load mounts a fresh copy of the
application; the page forwards clicks and input over a websocket and receives
the re-rendered body.

Examples:
  melodi serve                     # Serve index.html on localhost:8080
  melodi serve --watch             # Reload pages when pages or manifests change
  melodi serve -p 3000 about.html  # Serve another page on another port`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

var serveFlags *StandardFlags

// shutdownTimeout bounds graceful shutdown after a signal
const shutdownTimeout = 5 * time.Second

func init() {
	rootCmd.AddCommand(serveCmd)

	serveFlags = AddStandardFlags(serveCmd, "server", "app")
}

func runServe(cmd *cobra.Command, args []string) error {
	bindings := map[string]string{}
	for k, v := range serverBindings {
		bindings[k] = v
	}
	for k, v := range appBindings {
		bindings[k] = v
	}
	cfg, err := loadConfig(cmd, bindings)
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
	srv, err := server.New(cfg, src, logger)
	if err != nil {
		return err
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()
	fmt.Fprintf(cmd.ErrOrStderr(), "Serving %s at http://%s\n", cfg.App.Page, cfg.Address())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
