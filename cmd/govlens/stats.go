package main

import (
	"github.com/spf13/cobra"

	"github.com/canopy-network/govlens/pkg/analytics"
	"github.com/canopy-network/govlens/pkg/governance"
	"github.com/canopy-network/govlens/pkg/source"
)

func (c *cli) statsCmd() *cobra.Command {
	var chains []string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print category and topic distributions",
		Long:  "Aggregates the given chains together; without --chain every chain of the source is included.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			loader, err := c.openLoader(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = loader.Close() }()

			names := chains
			if len(names) == 0 {
				if names, err = loader.Chains(cmd.Context()); err != nil {
					return err
				}
			}
			parts, err := source.LoadAll(cmd.Context(), loader, names)
			if err != nil {
				return err
			}
			return c.render(analytics.AggregateDataset(governance.Merge(parts...)))
		},
	}
	cmd.Flags().StringSliceVar(&chains, "chain", nil, "Chains to aggregate (repeatable)")
	return cmd
}
