package analytics

import (
	"context"
	"testing"

	"github.com/alitto/pond/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopy-network/govlens/pkg/governance"
)

func rankingFixture() (*SimilarityEngine, map[string]VoteMap) {
	proposals := proposalsAt("1", "2", "3", "4")
	tallies := map[string]PowerTally{
		"1": {Yes: 1, No: 1},
		"2": {Yes: 1, No: 1},
		"3": {Yes: 1, No: 1},
		"4": {Yes: 1, No: 1},
	}
	y, n := governance.OptionYes, governance.OptionNo
	votes := map[string]VoteMap{
		"alpha":   {"1": y, "2": y, "3": y, "4": y},
		"twin":    {"1": y, "2": y, "3": y, "4": y},
		"half":    {"1": y, "2": y, "3": n, "4": n},
		"opposed": {"1": n, "2": n, "3": n, "4": n},
		"echo":    {"1": y, "2": y, "3": n, "4": n},
	}
	return NewSimilarityEngine(proposals, tallies), votes
}

func TestRankSimilarValidators(t *testing.T) {
	engine, votes := rankingFixture()
	pool := pond.NewPool(3)
	defer pool.StopAndWait()

	ranked, err := RankSimilarValidators(context.Background(), pool, engine, "alpha", votes, SimilarityOptions{})
	require.NoError(t, err)
	require.Len(t, ranked, 4)

	targets := make([]string, len(ranked))
	for i, r := range ranked {
		targets[i] = r.Target
		assert.Equal(t, "alpha", r.Base)
		assert.Equal(t, 4, r.Compared)
	}
	assert.Equal(t, []string{"twin", "echo", "half", "opposed"}, targets)
	assert.InDelta(t, 1.0, ranked[0].Score, 1e-12)
	assert.InDelta(t, 0.5, ranked[1].Score, 1e-12)
	assert.Equal(t, 0.0, ranked[3].Score)
}

func TestRankSimilarValidatorsCancelled(t *testing.T) {
	engine, votes := rankingFixture()
	pool := pond.NewPool(1)
	defer pool.StopAndWait()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := RankSimilarValidators(ctx, pool, engine, "alpha", votes, SimilarityOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSimilarityMatrix(t *testing.T) {
	engine, votes := rankingFixture()
	pool := pond.NewPool(2)
	defer pool.StopAndWait()

	ids := []string{"alpha", "half", "opposed"}
	m, err := SimilarityMatrix(context.Background(), pool, engine, ids, votes, SimilarityOptions{Mode: ModeCommon})
	require.NoError(t, err)
	assert.Equal(t, ids, m.IDs)
	require.Len(t, m.Scores, 3)

	for i := range ids {
		assert.InDelta(t, 1.0, m.Scores[i][i], 1e-12)
		for j := range ids {
			assert.Equal(t, m.Scores[i][j], m.Scores[j][i], "common mode is symmetric")
		}
	}
	assert.InDelta(t, 0.5, m.Scores[0][1], 1e-12)
	assert.Equal(t, 0.0, m.Scores[0][2])
}
