// Package main provides the meltano-pipelines binary entry point.
// meltano-pipelines is an adapter that runs declaratively configured Meltano
// ELT pipelines and relays their logs and status to an orchestration
// platform.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/archdotdev/dagster-meltano-pipelines/component"
	"github.com/archdotdev/dagster-meltano-pipelines/config"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "meltano-pipelines"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries the state shared by all subcommands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	document string
}

func rootCmd() *cobra.Command {
	a := &app{}
	var logLevel string

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Run declaratively configured Meltano pipelines",
		Long: `meltano-pipelines translates a declarative pipeline document into
Meltano CLI invocations and relays run logs and status back to the
orchestration platform.

Pipelines are declared in a YAML document (pipelines.yaml by default):
extractor, loader, optional mappers, plugin configuration, environment
variables, schedule and tags. The Meltano project itself stays untouched;
all configuration is injected through the environment.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(logLevel)
		},
	}

	cmd.PersistentFlags().StringVarP(&a.document, "document", "f", "", "Pipeline document path (default: pipelines.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(runCmd(a))
	cmd.AddCommand(validateCmd(a))
	cmd.AddCommand(listCmd(a))
	cmd.AddCommand(serveCmd(a))
	cmd.AddCommand(scaffoldCmd(a))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

// setup loads the adapter config and configures logging. A --log-level flag
// beats the configured level.
func (a *app) setup(logLevel string) error {
	bootstrap := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.NewLoader(bootstrap).Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg

	if logLevel == "" {
		logLevel = cfg.Log.Level
	}
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(a.logger)

	if a.document == "" {
		a.document = component.DefaultDocumentName
	}

	return nil
}
