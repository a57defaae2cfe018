package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/scscodes/flsd/internal/app"
	"github.com/scscodes/flsd/internal/config"
	"github.com/scscodes/flsd/internal/infrastructure"
)

// closeTimeout bounds the flush of telemetry and the ledger on exit.
const closeTimeout = 5 * time.Second

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configFile string
	root       string
	logLevel   string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:     "flsd",
		Short:   "Batch CSV ingestion pipeline with upload API and dashboard",
		Version: config.AppVersion,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "path to a YAML config file")
	flags.StringVar(&opts.root, "root", "", "project root holding the data directory")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newServeCommand(opts),
		newRunCommand(opts),
		newNightlyCommand(opts),
		newProcessCommand(opts),
	)

	return rootCmd
}

// environment is everything a subcommand needs once flags are parsed.
type environment struct {
	cfg    *config.Config
	logger *slog.Logger
	app    *app.Application
	closer io.Closer
}

// setup loads configuration, applies flag overrides and builds the application.
func setup(cmd *cobra.Command, opts *globalOptions) (*environment, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}
	if opts.root != "" {
		cfg.Paths.Root = opts.root
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}

	paths, err := cfg.ResolvePaths()
	if err != nil {
		return nil, err
	}
	if !filepath.IsAbs(cfg.Logging.FilePath) {
		cfg.Logging.FilePath = filepath.Join(paths.RootDir, cfg.Logging.FilePath)
	}

	// Logs go to stderr so command results on stdout stay machine readable.
	logger, logCloser, err := infrastructure.NewLogger(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	paths.LogPathResolution(logger)

	application, err := app.New(cfg, logger)
	if err != nil {
		logCloser.Close()
		return nil, err
	}

	return &environment{
		cfg:    cfg,
		logger: logger,
		app:    application,
		closer: logCloser,
	}, nil
}

// Close releases the application and the log file.
func (e *environment) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	if err := e.app.Close(ctx); err != nil {
		e.logger.Error("shutdown failed", slog.String("error", err.Error()))
	}
	e.closer.Close()
}

// printJSON writes v to the command output as indented JSON.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}
	return nil
}
