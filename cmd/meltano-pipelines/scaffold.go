package main

import (
	"github.com/spf13/cobra"

	"github.com/archdotdev/dagster-meltano-pipelines/scaffold"
)

func scaffoldCmd(a *app) *cobra.Command {
	var projectDir string

	cmd := &cobra.Command{
		Use:   "scaffold [dir]",
		Short: "Create a starter pipeline document and Meltano project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			return scaffold.Scaffold(cmd.Context(), scaffold.Options{
				Dir:               dir,
				ProjectDir:        projectDir,
				MeltanoExecutable: a.cfg.Meltano.Executable,
				Logger:            a.logger,
			})
		},
	}

	cmd.Flags().StringVar(&projectDir, "project-dir", "", "Meltano project directory (default: <dir>/project)")
	return cmd
}
