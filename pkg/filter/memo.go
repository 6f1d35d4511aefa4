package filter

import (
	"context"

	"github.com/alitto/pond/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/canopy-network/govlens/pkg/governance"
)

// DefaultMemoSize bounds a Memo created with a non-positive size.
const DefaultMemoSize = 256

type memoKey struct {
	dataset uint64
	spec    uint64
}

// Memo caches Apply results keyed by dataset fingerprint and spec hash,
// evicting the least recently used entry once full. Results are shared
// between callers and must be treated as read-only.
type Memo struct {
	entries *lru.Cache[memoKey, *Result]

	// Pool and Shards, when set with Shards > 1, shard the tallies of a miss.
	Pool   pond.Pool
	Shards int
}

func NewMemo(size int) *Memo {
	if size <= 0 {
		size = DefaultMemoSize
	}
	// lru.New only fails on a non-positive size.
	entries, _ := lru.New[memoKey, *Result](size)
	return &Memo{entries: entries}
}

// Apply returns the cached result for (ds, spec) or computes and stores it.
// Concurrent misses on the same key may both compute; the last one is kept.
func (m *Memo) Apply(ctx context.Context, ds *governance.Dataset, spec Spec) (*Result, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	key := memoKey{dataset: ds.Fingerprint(), spec: spec.Hash()}
	if r, ok := m.entries.Get(key); ok {
		return r, nil
	}
	var (
		r   *Result
		err error
	)
	if m.Pool != nil && m.Shards > 1 {
		r, err = ApplyParallel(ctx, m.Pool, m.Shards, ds, spec)
	} else {
		r, err = Apply(ds, spec)
	}
	if err != nil {
		return nil, err
	}
	m.entries.Add(key, r)
	return r, nil
}

// Invalidate drops every cached result, e.g. after a reload.
func (m *Memo) Invalidate() { m.entries.Purge() }

func (m *Memo) Len() int { return m.entries.Len() }
