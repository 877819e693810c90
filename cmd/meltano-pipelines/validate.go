package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func validateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the pipeline document against the Meltano project",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, proj, err := a.loadComponent()
			if err != nil {
				return err
			}

			orphans, err := proj.OrphanLocks()
			if err != nil {
				return err
			}
			for _, lock := range orphans {
				fmt.Printf("warning: lock file %s is not referenced by meltano.yml\n", lock)
			}

			fmt.Printf("%s: %d pipeline(s) OK against project %s\n",
				a.document, len(c.Pipelines), proj.Dir)
			return nil
		},
	}
}
