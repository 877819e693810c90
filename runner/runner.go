// Package runner translates declared pipelines into meltano run invocations:
// it builds the subprocess environment (plugin settings, Meltano instance
// config, Git SSH keys), spawns the Meltano CLI inside the project directory,
// relays its JSON log output, and reports exit status.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"

	"github.com/archdotdev/dagster-meltano-pipelines/component"
	"github.com/archdotdev/dagster-meltano-pipelines/events"
	"github.com/archdotdev/dagster-meltano-pipelines/project"
)

// DefaultExecutable is the Meltano CLI looked up on PATH when no explicit
// executable is configured.
const DefaultExecutable = "meltano"

// Runner executes pipelines against one Meltano project.
type Runner struct {
	// Project is the Meltano project runs execute in.
	Project *project.Project

	// Executable overrides the meltano binary. Defaults to DefaultExecutable.
	Executable string

	// Logger receives relayed Meltano output and runner diagnostics.
	// Defaults to slog.Default().
	Logger *slog.Logger

	// Events receives run lifecycle events. Nil disables event relay.
	Events *events.Publisher

	// Metrics receives run counters. Nil disables metrics.
	Metrics *Metrics

	// Timeout bounds a single run. Zero means no limit beyond ctx.
	Timeout time.Duration
}

// RunResult describes one finished (or failed) pipeline run.
type RunResult struct {
	RunID      string
	PipelineID string

	StartedAt   time.Time
	CompletedAt time.Time

	// ExitCode is the Meltano process exit code; 0 on success.
	ExitCode int

	// DurationSeconds is Meltano's own reported run duration, when its
	// "Run completed" event carried one.
	DurationSeconds *float64

	// ErrorLogs are the error lines collected from run output.
	ErrorLogs []string

	// Failure holds structured details from an "Extractor failed" /
	// "Loader failed" / "Mappers failed" event, when one was seen.
	Failure map[string]any
}

// Run executes the pipeline and blocks until the subprocess exits. A non-zero
// exit returns both the result and a *PipelineError. The passed flags must
// already be validated.
func (r *Runner) Run(ctx context.Context, p *component.Pipeline, flags RunFlags) (*RunResult, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("pipeline", p.ID))

	runID := flags.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger = logger.With(slog.String("run_id", runID))

	if root, ok := os.LookupEnv("MELTANO_PROJECT_ROOT"); ok {
		logger.Warn("dropping MELTANO_PROJECT_ROOT from environment to honor the configured project directory",
			slog.String("value", root),
			slog.String("project_dir", r.Project.Dir))
	}

	keys, err := CollectSSHKeys(logger, p)
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: collect ssh keys: %w", p.ID, err)
	}
	sshConfig, sshCleanup, err := SetupSSH(keys)
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", p.ID, err)
	}
	defer sshCleanup()
	if sshConfig != "" {
		logger.Info("configured git ssh authentication", slog.Int("keys", len(keys)))
	}

	env, err := BuildEnv(p, EnvOptions{SSHConfigPath: sshConfig, Flags: flags})
	if err != nil {
		return nil, err
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	executable := r.Executable
	if executable == "" {
		executable = DefaultExecutable
	}

	argv := flags.Command(executable, runID, p.StateSuffix)
	argv = append(argv, p.Extractor.Name)
	for _, m := range p.Mappers {
		argv = append(argv, m.Name)
	}
	argv = append(argv, p.Loader.Name)

	logger.Info("running pipeline",
		slog.String("extractor", p.Extractor.Name),
		slog.String("loader", p.Loader.Name))

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = r.Project.Dir
	cmd.Env = flattenEnv(env)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: stdout pipe: %w", p.ID, err)
	}
	cmd.Stderr = cmd.Stdout

	result := &RunResult{
		RunID:      runID,
		PipelineID: p.ID,
		StartedAt:  time.Now(),
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("pipeline %s: start %s: %w", p.ID, executable, err)
	}

	r.Metrics.runStarted(p.ID)
	r.Events.RunStarted(events.RunStartedEvent{
		RunID:      runID,
		PipelineID: p.ID,
		Extractor:  p.Extractor.Name,
		Loader:     p.Loader.Name,
		StartedAt:  result.StartedAt,
	})

	output, outErr := ProcessOutput(stdout, logger, func(line LogLine) {
		r.Events.RunLog(events.RunLogEvent{
			RunID:      runID,
			PipelineID: p.ID,
			Level:      line.Level,
			Event:      line.Event,
			Fields:     line.Fields,
		})
	})

	waitErr := cmd.Wait()
	result.CompletedAt = time.Now()
	result.DurationSeconds = output.DurationSeconds
	result.ErrorLogs = output.ErrorLogs
	result.Failure = output.Failure

	if outErr != nil {
		logger.Warn("meltano output relay interrupted", slog.String("error", outErr.Error()))
	}

	wallSeconds := result.CompletedAt.Sub(result.StartedAt).Seconds()

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			result.ErrorLogs = append(result.ErrorLogs, fmt.Sprintf("run aborted: %v", ctxErr))
		}

		r.Metrics.runFinished(p.ID, wallSeconds, true, len(result.ErrorLogs))
		r.Events.RunFailed(events.RunFailedEvent{
			RunID:       runID,
			PipelineID:  p.ID,
			ExitCode:    result.ExitCode,
			ErrorLogs:   result.ErrorLogs,
			CompletedAt: result.CompletedAt,
		})

		return result, &PipelineError{
			PipelineID: p.ID,
			ExitCode:   result.ExitCode,
			ErrorLogs:  result.ErrorLogs,
		}
	}

	r.Metrics.runFinished(p.ID, wallSeconds, false, len(result.ErrorLogs))
	r.Events.RunCompleted(events.RunCompletedEvent{
		RunID:           runID,
		PipelineID:      p.ID,
		DurationSeconds: result.DurationSeconds,
		CompletedAt:     result.CompletedAt,
	})

	logger.Info("pipeline completed", slog.Float64("wall_seconds", wallSeconds))
	return result, nil
}
