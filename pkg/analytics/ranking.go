package analytics

import (
	"context"
	"errors"
	"sort"

	"github.com/alitto/pond/v2"
	"github.com/puzpuzpuz/xsync/v4"
)

// PairScore is the similarity of Target relative to Base.
type PairScore struct {
	Base     string  `json:"base" yaml:"base"`
	Target   string  `json:"target" yaml:"target"`
	Score    float64 `json:"score" yaml:"score"`
	Compared int     `json:"compared" yaml:"compared"`
}

// RankSimilarValidators scores base against every other validator in votes,
// one pond task per pair, and returns the pairs by descending score (ties by
// target id). The engine is read-only so tasks share it freely.
func RankSimilarValidators(ctx context.Context, pool pond.Pool, engine *SimilarityEngine, baseID string, votes map[string]VoteMap, opts SimilarityOptions) ([]PairScore, error) {
	base := votes[baseID]
	results := xsync.NewMap[string, PairScore]()

	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()
	for targetID, target := range votes {
		if targetID == baseID {
			continue
		}
		targetID, target := targetID, target
		group.Submit(func() {
			if groupCtx.Err() != nil {
				return
			}
			r := engine.Compare(base, target, opts)
			results.Store(targetID, PairScore{Base: baseID, Target: targetID, Score: r.Score, Compared: r.Compared})
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]PairScore, 0, results.Size())
	results.Range(func(_ string, s PairScore) bool {
		out = append(out, s)
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Target < out[j].Target
	})
	return out, nil
}

// Matrix holds Scores[i][j] = similarity of IDs[j] relative to base IDs[i].
type Matrix struct {
	IDs    []string    `json:"ids" yaml:"ids"`
	Scores [][]float64 `json:"scores" yaml:"scores"`
}

// SimilarityMatrix computes every ordered pair of ids, one pond task per row.
// Rows are written by a single task each, so no synchronisation is needed.
func SimilarityMatrix(ctx context.Context, pool pond.Pool, engine *SimilarityEngine, ids []string, votes map[string]VoteMap, opts SimilarityOptions) (*Matrix, error) {
	m := &Matrix{IDs: append([]string(nil), ids...), Scores: make([][]float64, len(ids))}

	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()
	for i := range ids {
		i := i
		group.Submit(func() {
			if groupCtx.Err() != nil {
				return
			}
			row := make([]float64, len(ids))
			base := votes[ids[i]]
			for j := range ids {
				row[j] = engine.Score(base, votes[ids[j]], opts)
			}
			m.Scores[i] = row
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m, nil
}
