package main

import (
	"github.com/alitto/pond/v2"
	"github.com/spf13/cobra"

	"github.com/canopy-network/govlens/pkg/filter"
)

type validatorsOutput struct {
	Chain             string                    `json:"chain" yaml:"chain"`
	Proposals         int                       `json:"proposals" yaml:"proposals"`
	EligibleProposals int                       `json:"eligible_proposals" yaml:"eligible_proposals"`
	Validators        []filter.ValidatorMetrics `json:"validators" yaml:"validators"`
}

func (c *cli) validatorsCmd() *cobra.Command {
	var chain, specFile, search, pinned string
	cmd := &cobra.Command{
		Use:   "validators",
		Short: "List validators with participation and voting power metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			spec, err := querySpec(specFile, chain)
			if err != nil {
				return err
			}
			if search != "" {
				spec.Search = search
			}
			if pinned != "" {
				spec.PinnedValidator = pinned
			}

			loader, err := c.openLoader(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = loader.Close() }()

			ds, err := loader.Load(cmd.Context(), spec.Chain)
			if err != nil {
				return err
			}
			pool := pond.NewPool(c.cfg.Workers)
			defer pool.StopAndWait()
			res, err := filter.ApplyParallel(cmd.Context(), pool, c.cfg.TallyShards, ds, spec)
			if err != nil {
				return err
			}
			return c.render(validatorsOutput{
				Chain:             res.Chain,
				Proposals:         len(res.Proposals),
				EligibleProposals: res.EligibleProposals,
				Validators:        res.Validators,
			})
		},
	}
	cmd.Flags().StringVar(&chain, "chain", "", "Chain to query (overrides the filter file)")
	cmd.Flags().StringVar(&specFile, "filter", "", "YAML filter file")
	cmd.Flags().StringVar(&search, "search", "", "Case-insensitive moniker search")
	cmd.Flags().StringVar(&pinned, "pin", "", "Validator kept in the output even if filtered out")
	return cmd
}
