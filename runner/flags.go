package runner

import (
	"fmt"
)

// StateStrategy controls how Meltano reconciles incremental state after a run.
type StateStrategy string

// State strategies accepted by meltano run --state-strategy.
const (
	StateStrategyAuto      StateStrategy = "auto"
	StateStrategyMerge     StateStrategy = "merge"
	StateStrategyOverwrite StateStrategy = "overwrite"
)

// RunFlags are the per-invocation knobs of a pipeline run. The zero value is
// a plain incremental run.
type RunFlags struct {
	// RunID identifies the run. When empty the runner generates one.
	RunID string

	// FullRefresh ignores existing state and re-extracts everything.
	FullRefresh bool

	// RefreshCatalog rebuilds the stream catalog before running.
	RefreshCatalog bool

	// StateStrategy selects the state update strategy. Empty and
	// StateStrategyAuto are equivalent and emit no flag.
	StateStrategy StateStrategy

	// LogLevel overrides the Meltano CLI log level for this run.
	LogLevel string

	// SelectFilter narrows the extracted streams without editing the
	// pipeline's select rules. Injected via the extractor's
	// __SELECT_FILTER environment variable.
	SelectFilter []string
}

// Validate rejects unknown state strategies and log levels before anything is
// executed.
func (f *RunFlags) Validate() error {
	switch f.StateStrategy {
	case "", StateStrategyAuto, StateStrategyMerge, StateStrategyOverwrite:
	default:
		return fmt.Errorf("invalid state strategy %q", f.StateStrategy)
	}

	switch f.LogLevel {
	case "", "debug", "info", "warning", "error", "critical":
	default:
		return fmt.Errorf("invalid log level %q", f.LogLevel)
	}

	return nil
}

// Command builds the meltano run argv for these flags, without the trailing
// plugin names. Flag order follows the Meltano CLI: global flags before the
// run subcommand, run flags after it.
func (f *RunFlags) Command(executable, runID, stateSuffix string) []string {
	command := []string{executable}

	if f.LogLevel != "" {
		command = append(command, "--log-level="+f.LogLevel)
	}

	command = append(command, "run", "--run-id="+runID)

	if stateSuffix != "" {
		command = append(command, "--state-id-suffix="+stateSuffix)
	}
	if f.FullRefresh {
		command = append(command, "--full-refresh")
	}
	if f.RefreshCatalog {
		command = append(command, "--refresh-catalog")
	}
	if f.StateStrategy != "" && f.StateStrategy != StateStrategyAuto {
		command = append(command, "--state-strategy="+string(f.StateStrategy))
	}

	return command
}
