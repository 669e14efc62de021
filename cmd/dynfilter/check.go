package main

import (
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/dynfilter/filter"
	"github.com/alfredjeanlab/dynfilter/internal/catalog"
	"github.com/alfredjeanlab/dynfilter/internal/client"
	"github.com/alfredjeanlab/dynfilter/internal/store/postgres"
)

var checkCmd = &cobra.Command{
	Use:               "check <filters.toml>",
	Short:             "Compile a filter declarations file without starting a server",
	GroupID:           "system",
	Args:              cobra.ExactArgs(1),
	PersistentPreRunE: skipClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Declarations only reference the collection; nothing is queried.
		beads := postgres.NewWithDB(nil).Beads()
		specs, err := catalog.Load(args[0], beadRegistry(beads))
		if err != nil {
			return err
		}
		summaries := summarize(specs)
		if jsonOutput {
			return printJSON(summaries)
		}
		printFilterSummaries(cmd.OutOrStdout(), summaries)
		return nil
	},
}

// summarize describes compiled specs the way the server lists them.
func summarize(specs []*filter.Spec) []client.FilterSummary {
	out := make([]client.FilterSummary, 0, len(specs))
	for _, spec := range specs {
		sum := client.FilterSummary{Name: spec.Name()}
		for _, key := range spec.Keys() {
			f, _ := spec.Field(key)
			opts := f.Options()
			sum.Fields = append(sum.Fields, client.FieldSummary{
				Key:        key,
				Query:      f.RenderOperator(),
				Input:      string(opts.Input.Type()),
				Choices:    opts.Input.Choices(),
				Initial:    opts.Input.Initial(),
				ForceEmpty: opts.ForceEmpty,
			})
		}
		out = append(out, sum)
	}
	return out
}
