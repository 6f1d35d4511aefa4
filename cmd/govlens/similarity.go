package main

import (
	"errors"
	"fmt"

	"github.com/alitto/pond/v2"
	"github.com/spf13/cobra"

	"github.com/canopy-network/govlens/pkg/analytics"
	"github.com/canopy-network/govlens/pkg/filter"
)

type similarityOutput struct {
	Chain     string                      `json:"chain" yaml:"chain"`
	Base      string                      `json:"base" yaml:"base"`
	Options   analytics.SimilarityOptions `json:"options" yaml:"options"`
	Proposals int                         `json:"proposals" yaml:"proposals"`
	Scores    []analytics.PairScore       `json:"scores" yaml:"scores"`
}

type similarityMatrixOutput struct {
	Chain     string                      `json:"chain" yaml:"chain"`
	Options   analytics.SimilarityOptions `json:"options" yaml:"options"`
	Proposals int                         `json:"proposals" yaml:"proposals"`
	Matrix    *analytics.Matrix           `json:"matrix" yaml:"matrix"`
}

var errBaseRequired = errors.New("--base is required unless --matrix is set")

func (c *cli) similarityCmd() *cobra.Command {
	var (
		chain, base, target string
		mode, specFile      string
		recency, abstain    bool
		matrix              bool
		limit               int
	)
	cmd := &cobra.Command{
		Use:   "similarity",
		Short: "Score how closely validators vote like a base validator",
		Long: "Scores every validator that passes the filter against --base (or only --target), " +
			"over the proposals in scope. Scores run from 0 to 1, with a bonus for agreeing on minority outcomes. " +
			"--matrix scores every ordered pair of those validators instead.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if base == "" && !matrix {
				return errBaseRequired
			}
			m, err := analytics.ParseMode(mode)
			if err != nil {
				return err
			}
			opts := analytics.SimilarityOptions{ApplyRecencyWeight: recency, MatchAbstainInSimilarity: abstain, Mode: m}

			spec, err := querySpec(specFile, chain)
			if err != nil {
				return err
			}
			// The base must stay in the result even when it fails a validator filter.
			if base != "" {
				spec.PinnedValidator = base
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
			if _, ok := res.Validator(base); base != "" && !ok {
				return fmt.Errorf("validator %q not found on %s", base, spec.Chain)
			}

			engine := res.Engine()
			votes := res.VoteMaps()
			if matrix {
				ids := make([]string, 0, len(res.Validators))
				for _, v := range res.Validators {
					ids = append(ids, v.ID)
				}
				mx, err := analytics.SimilarityMatrix(cmd.Context(), pool, engine, ids, votes, opts)
				if err != nil {
					return err
				}
				return c.render(similarityMatrixOutput{Chain: res.Chain, Options: opts, Proposals: engine.Proposals(), Matrix: mx})
			}

			out := similarityOutput{Chain: res.Chain, Base: base, Options: opts, Proposals: engine.Proposals()}

			if target != "" {
				if _, ok := res.Validator(target); !ok {
					return fmt.Errorf("validator %q not found on %s", target, spec.Chain)
				}
				r := engine.Compare(votes[base], votes[target], opts)
				out.Scores = []analytics.PairScore{{Base: base, Target: target, Score: r.Score, Compared: r.Compared}}
				return c.render(out)
			}

			scores, err := analytics.RankSimilarValidators(cmd.Context(), pool, engine, base, votes, opts)
			if err != nil {
				return err
			}
			if limit > 0 && len(scores) > limit {
				scores = scores[:limit]
			}
			out.Scores = scores
			return c.render(out)
		},
	}
	cmd.Flags().StringVar(&chain, "chain", "", "Chain to query (overrides the filter file)")
	cmd.Flags().StringVar(&base, "base", "", "Validator the others are compared against")
	cmd.Flags().StringVar(&target, "target", "", "Compare only this validator")
	cmd.Flags().StringVar(&mode, "mode", "common", "Proposal universe: common|base|comprehensive")
	cmd.Flags().BoolVar(&recency, "recency", false, "Weight recent proposals more")
	cmd.Flags().BoolVar(&abstain, "match-abstain", false, "Count matching ABSTAIN votes as agreement")
	cmd.Flags().StringVar(&specFile, "filter", "", "YAML filter file")
	cmd.Flags().BoolVar(&matrix, "matrix", false, "Score every ordered pair of filtered validators")
	cmd.Flags().IntVar(&limit, "limit", 0, "Keep only the top N scores (0 keeps all)")
	return cmd
}
