// Package scaffold bootstraps a new pipeline component: a starter pipeline
// document, a freshly initialised Meltano project, and a logging.yaml that
// switches Meltano's console output to the JSON format the runner parses.
package scaffold

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/archdotdev/dagster-meltano-pipelines/component"
)

// Options parameterise Scaffold.
type Options struct {
	// Dir is the target directory for the pipeline document.
	Dir string

	// ProjectDir is where the Meltano project is created. Relative paths
	// resolve against Dir. Defaults to "project".
	ProjectDir string

	// MeltanoExecutable is the binary used for `meltano init`.
	// Defaults to "meltano".
	MeltanoExecutable string

	Logger *slog.Logger
}

// Scaffold creates the component skeleton. It refuses to overwrite an
// existing pipeline document.
func Scaffold(ctx context.Context, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	projectDir := opts.ProjectDir
	if projectDir == "" {
		projectDir = "project"
	}
	absProject := projectDir
	if !filepath.IsAbs(absProject) {
		absProject = filepath.Join(opts.Dir, projectDir)
	}

	executable := opts.MeltanoExecutable
	if executable == "" {
		executable = "meltano"
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return fmt.Errorf("create component dir: %w", err)
	}

	docPath := filepath.Join(opts.Dir, component.DefaultDocumentName)
	if _, err := os.Stat(docPath); err == nil {
		return fmt.Errorf("%s already exists", docPath)
	}

	if err := writeDocument(docPath, projectDir); err != nil {
		return err
	}
	logger.Info("wrote pipeline document", slog.String("path", docPath))

	if err := meltanoInit(ctx, executable, absProject); err != nil {
		return err
	}
	logger.Info("initialised meltano project", slog.String("path", absProject))

	if err := writeLoggingConfig(filepath.Join(absProject, "logging.yaml")); err != nil {
		return err
	}

	return nil
}

// writeDocument writes a starter document pointing at the project with an
// empty pipeline list.
func writeDocument(path, projectDir string) error {
	doc := map[string]any{
		"project":   projectDir,
		"pipelines": []any{},
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode pipeline document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode pipeline document: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write pipeline document: %w", err)
	}
	return nil
}

// meltanoInit shells out to `meltano init <dir>`.
func meltanoInit(ctx context.Context, executable, dir string) error {
	cmd := exec.CommandContext(ctx, executable, "init", dir)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("meltano init %s: %w\n%s", dir, err, out.String())
	}
	return nil
}

// writeLoggingConfig writes the Meltano logging config that routes all logs
// through a JSON console handler on stderr, which the runner's log relay
// expects.
func writeLoggingConfig(path string) error {
	cfg := map[string]any{
		"version":                  1,
		"disable_existing_loggers": false,
		"formatters": map[string]any{
			"json": map[string]any{
				"()": "meltano.core.logging.json_formatter",
			},
		},
		"handlers": map[string]any{
			"console": map[string]any{
				"class":     "logging.StreamHandler",
				"level":     "DEBUG",
				"formatter": "json",
				"stream":    "ext://sys.stderr",
			},
		},
		"loggers": map[string]any{
			"meltano.core.block.extract_load":    map[string]any{"level": "INFO"},
			"meltano.core.plugin.singer.catalog": map[string]any{"level": "INFO"},
			"smart_open":                         map[string]any{"level": "INFO"},
			"botocore":                           map[string]any{"level": "INFO"},
		},
		"root": map[string]any{
			"level":    "DEBUG",
			"handlers": []string{"console"},
		},
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode logging config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode logging config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write logging config: %w", err)
	}
	return nil
}
