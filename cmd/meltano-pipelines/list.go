package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/archdotdev/dagster-meltano-pipelines/project"
)

func listCmd(a *app) *cobra.Command {
	var showPlugins bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List declared pipelines",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, proj, err := a.loadComponent()
			if err != nil {
				return err
			}

			if showPlugins {
				fmt.Printf("extractors: %s\n", strings.Join(proj.Extractors(), ", "))
				fmt.Printf("loaders:    %s\n", strings.Join(proj.Loaders(), ", "))
				if mappers := proj.Names(project.PluginTypeMappers); len(mappers) > 0 {
					fmt.Printf("mappers:    %s\n", strings.Join(mappers, ", "))
				}
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tEXTRACTOR\tLOADER\tSCHEDULE\tTAGS")
			for i := range c.Pipelines {
				p := &c.Pipelines[i]
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					p.ID, p.Extractor.Name, p.Loader.Name,
					orDash(p.Schedule), formatTags(c.EffectiveTags(p)))
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&showPlugins, "plugins", false, "List the project's plugins instead of pipelines")
	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatTags(tags map[string]string) string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+tags[k])
	}
	return strings.Join(parts, ",")
}
