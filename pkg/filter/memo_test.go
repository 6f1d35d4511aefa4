package filter

import (
	"context"
	"testing"

	"github.com/alitto/pond/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemo(t *testing.T) {
	ctx := context.Background()
	memo := NewMemo(0)
	ds := fixture()

	first, err := memo.Apply(ctx, ds, Spec{Chain: "osmosis", Categories: []string{"Protocol"}})
	require.NoError(t, err)
	again, err := memo.Apply(ctx, fixture(), Spec{Chain: "osmosis", Categories: []string{"Protocol", "Protocol"}})
	require.NoError(t, err)
	assert.Same(t, first, again, "equivalent spec over equal data hits the cache")
	assert.Equal(t, 1, memo.Len())

	_, err = memo.Apply(ctx, ds, Spec{Chain: "osmosis"})
	require.NoError(t, err)
	assert.Equal(t, 2, memo.Len())

	reloaded := fixture()
	reloaded.Votes = reloaded.Votes[:3]
	changed, err := memo.Apply(ctx, reloaded, Spec{Chain: "osmosis", Categories: []string{"Protocol"}})
	require.NoError(t, err)
	assert.NotSame(t, first, changed)
	assert.Equal(t, 3, memo.Len())

	_, err = memo.Apply(ctx, ds, Spec{})
	assert.ErrorIs(t, err, ErrChainRequired)
	assert.Equal(t, 3, memo.Len())

	memo.Invalidate()
	assert.Equal(t, 0, memo.Len())
}

func TestMemoIsBounded(t *testing.T) {
	ctx := context.Background()
	memo := NewMemo(2)
	ds := fixture()

	protocol, err := memo.Apply(ctx, ds, Spec{Chain: "osmosis", Categories: []string{"Protocol"}})
	require.NoError(t, err)
	for _, search := range []string{"a", "b", "c", "d"} {
		_, err := memo.Apply(ctx, ds, Spec{Chain: "osmosis", Search: search})
		require.NoError(t, err)
		assert.LessOrEqual(t, memo.Len(), 2)
	}
	assert.Equal(t, 2, memo.Len())

	again, err := memo.Apply(ctx, ds, Spec{Chain: "osmosis", Categories: []string{"Protocol"}})
	require.NoError(t, err)
	assert.NotSame(t, protocol, again, "least recently used entry was evicted")
	assert.Equal(t, protocol, again)
}

func TestMemoShardsTallies(t *testing.T) {
	pool := pond.NewPool(2)
	defer pool.StopAndWait()

	memo := NewMemo(0)
	memo.Pool = pool
	memo.Shards = 3

	spec := Spec{Chain: "osmosis", CountNoVoteAsParticipation: true}
	got, err := memo.Apply(context.Background(), fixture(), spec)
	require.NoError(t, err)
	want, err := Apply(fixture(), spec)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ApplyParallel(ctx, pool, 3, fixture(), Spec{Chain: "osmosis", Search: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}
