package analytics

import (
	"context"
	"errors"

	"github.com/alitto/pond/v2"
	"github.com/cespare/xxhash/v2"
	"github.com/shopspring/decimal"

	"github.com/canopy-network/govlens/pkg/governance"
)

// PowerTally is the voting power per tallied option of one proposal.
type PowerTally struct {
	Yes     float64 `json:"yes"`
	No      float64 `json:"no"`
	Veto    float64 `json:"veto"`
	Abstain float64 `json:"abstain"`
}

func (t PowerTally) Total() float64 {
	return t.Yes + t.No + t.Veto + t.Abstain
}

// Get returns the bucket for a tallied option and 0 for anything else.
func (t PowerTally) Get(o governance.VoteOption) float64 {
	switch o {
	case governance.OptionYes:
		return t.Yes
	case governance.OptionNo:
		return t.No
	case governance.OptionNoWithVeto:
		return t.Veto
	case governance.OptionAbstain:
		return t.Abstain
	}
	return 0
}

// Share is the fraction of tallied power held by the option; 0 on an empty tally.
func (t PowerTally) Share(o governance.VoteOption) float64 {
	total := t.Total()
	if total == 0 {
		return 0
	}
	return t.Get(o) / total
}

// tallyAccumulator sums power exactly so that iteration order and sharding
// cannot change the float64 result.
type tallyAccumulator struct {
	yes, no, veto, abstain decimal.Decimal
}

func (a *tallyAccumulator) add(o governance.VoteOption, power decimal.Decimal) {
	switch o {
	case governance.OptionYes:
		a.yes = a.yes.Add(power)
	case governance.OptionNo:
		a.no = a.no.Add(power)
	case governance.OptionNoWithVeto:
		a.veto = a.veto.Add(power)
	case governance.OptionAbstain:
		a.abstain = a.abstain.Add(power)
	}
}

func (a *tallyAccumulator) merge(other *tallyAccumulator) {
	a.yes = a.yes.Add(other.yes)
	a.no = a.no.Add(other.no)
	a.veto = a.veto.Add(other.veto)
	a.abstain = a.abstain.Add(other.abstain)
}

func (a *tallyAccumulator) tally() PowerTally {
	return PowerTally{
		Yes:     a.yes.InexactFloat64(),
		No:      a.no.InexactFloat64(),
		Veto:    a.veto.InexactFloat64(),
		Abstain: a.abstain.InexactFloat64(),
	}
}

func accumulate(acc map[string]*tallyAccumulator, v governance.Vote, proposals map[string]struct{}) {
	if _, ok := proposals[v.ProposalID]; !ok {
		return
	}
	if !v.Option.IsTallied() {
		return
	}
	power, ok := governance.ParsePower(v.VotingPower)
	if !ok {
		return
	}
	a, ok := acc[v.ProposalID]
	if !ok {
		a = &tallyAccumulator{}
		acc[v.ProposalID] = a
	}
	a.add(v.Option, power)
}

func finalize(acc map[string]*tallyAccumulator, proposals map[string]struct{}) map[string]PowerTally {
	out := make(map[string]PowerTally, len(proposals))
	for id := range proposals {
		if a, ok := acc[id]; ok {
			out[id] = a.tally()
			continue
		}
		out[id] = PowerTally{}
	}
	return out
}

// BuildPowerTallies sums voting power per option for every proposal in the
// set. Votes on other proposals, NO_VOTE and unrecognised options, and votes
// whose power does not parse are skipped. Every proposal of the set gets an
// entry, zero when nothing was tallied.
func BuildPowerTallies(votes []governance.Vote, proposals map[string]struct{}) map[string]PowerTally {
	acc := make(map[string]*tallyAccumulator, len(proposals))
	for _, v := range votes {
		accumulate(acc, v, proposals)
	}
	return finalize(acc, proposals)
}

// BuildPowerTalliesParallel is BuildPowerTallies sharded by proposal across a
// pond group. Each shard owns a disjoint set of proposals, so partial sums need
// no locking and are merged once after the group finishes.
func BuildPowerTalliesParallel(ctx context.Context, pool pond.Pool, votes []governance.Vote, proposals map[string]struct{}, shards int) (map[string]PowerTally, error) {
	if shards <= 1 || len(votes) == 0 {
		return BuildPowerTallies(votes, proposals), nil
	}

	buckets := make([][]governance.Vote, shards)
	for _, v := range votes {
		i := int(xxhash.Sum64String(v.ProposalID) % uint64(shards))
		buckets[i] = append(buckets[i], v)
	}

	partials := make([]map[string]*tallyAccumulator, shards)
	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()
	for i := range buckets {
		i := i
		group.Submit(func() {
			if groupCtx.Err() != nil {
				return
			}
			acc := make(map[string]*tallyAccumulator)
			for _, v := range buckets[i] {
				accumulate(acc, v, proposals)
			}
			partials[i] = acc
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merged := make(map[string]*tallyAccumulator, len(proposals))
	for _, part := range partials {
		for id, a := range part {
			if cur, ok := merged[id]; ok {
				cur.merge(a)
				continue
			}
			merged[id] = a
		}
	}
	return finalize(merged, proposals), nil
}
