package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/archdotdev/dagster-meltano-pipelines/runner"
)

func runCmd(a *app) *cobra.Command {
	var flags struct {
		runID          string
		fullRefresh    bool
		refreshCatalog bool
		stateStrategy  string
		logLevel       string
		selectFilter   []string
	}

	cmd := &cobra.Command{
		Use:   "run <pipeline-id>",
		Short: "Run a declared pipeline once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, proj, err := a.loadComponent()
			if err != nil {
				return err
			}

			pipeline := c.Pipeline(args[0])
			if pipeline == nil {
				return fmt.Errorf("pipeline %q not declared in %s", args[0], a.document)
			}

			runFlags := runner.RunFlags{
				RunID:          flags.runID,
				FullRefresh:    flags.fullRefresh,
				RefreshCatalog: flags.refreshCatalog,
				StateStrategy:  runner.StateStrategy(flags.stateStrategy),
				LogLevel:       flags.logLevel,
				SelectFilter:   flags.selectFilter,
			}
			if err := runFlags.Validate(); err != nil {
				return err
			}

			r := &runner.Runner{
				Project:    proj,
				Executable: a.cfg.Meltano.Executable,
				Logger:     a.logger,
				Timeout:    a.cfg.Meltano.RunTimeout,
			}

			result, err := r.Run(cmd.Context(), pipeline, runFlags)
			if err != nil {
				return err
			}

			if result.DurationSeconds != nil {
				fmt.Printf("Pipeline %s completed in %.1fs (run %s)\n",
					result.PipelineID, *result.DurationSeconds, result.RunID)
			} else {
				fmt.Printf("Pipeline %s completed (run %s)\n", result.PipelineID, result.RunID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.runID, "run-id", "", "Run ID (generated when empty)")
	cmd.Flags().BoolVar(&flags.fullRefresh, "full-refresh", false, "Ignore existing state and re-extract everything")
	cmd.Flags().BoolVar(&flags.refreshCatalog, "refresh-catalog", false, "Rebuild the stream catalog before running")
	cmd.Flags().StringVar(&flags.stateStrategy, "state-strategy", "", "State update strategy (auto, merge, overwrite)")
	cmd.Flags().StringVar(&flags.logLevel, "meltano-log-level", "", "Meltano CLI log level for this run")
	cmd.Flags().StringSliceVar(&flags.selectFilter, "select-filter", nil, "Narrow extracted streams (repeatable)")

	return cmd
}
