package governance

import (
	"sort"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Dataset is the immutable input of one computation pass. Chain is empty for
// a combined dataset spanning several chains. Records must not change once
// Fingerprint has been called.
type Dataset struct {
	Chain      string
	Proposals  []Proposal
	Validators []Validator
	Votes      []Vote

	fpOnce      sync.Once
	fingerprint uint64
}

// LatestVotes keeps one record per (chain, validator, proposal): the latest
// timestamp wins, ties broken by option so the result does not depend on
// input order. Survivors keep the position of the first record of their pair.
func LatestVotes(votes []Vote) []Vote {
	out := make([]Vote, 0, len(votes))
	index := make(map[string]int, len(votes))
	for _, v := range votes {
		pair := v.ProposalKey() + "|" + v.ValidatorID
		i, seen := index[pair]
		if !seen {
			index[pair] = len(out)
			out = append(out, v)
			continue
		}
		cur := out[i]
		if v.Timestamp.After(cur.Timestamp) || (v.Timestamp.Equal(cur.Timestamp) && v.Option > cur.Option) {
			out[i] = v
		}
	}
	return out
}

// GroupByValidator maps validator -> proposal id -> option for single-chain
// votes that were already reduced with LatestVotes.
func GroupByValidator(votes []Vote) map[string]map[string]VoteOption {
	out := make(map[string]map[string]VoteOption)
	for _, v := range votes {
		m, ok := out[v.ValidatorID]
		if !ok {
			m = make(map[string]VoteOption)
			out[v.ValidatorID] = m
		}
		m[v.ProposalID] = v.Option
	}
	return out
}

// Fingerprint is a stable hash of every record field, independent of record
// order. Memoization layers use it to key derived results. It is computed once
// per dataset.
func (d *Dataset) Fingerprint() uint64 {
	d.fpOnce.Do(func() { d.fingerprint = d.hash() })
	return d.fingerprint
}

func (d *Dataset) hash() uint64 {
	lines := make([]string, 0, len(d.Proposals)+len(d.Validators)+len(d.Votes)+1)
	lines = append(lines, "c|"+d.Chain)
	for _, p := range d.Proposals {
		t := p.FinalTally
		lines = append(lines, "p|"+p.Key()+"|"+p.Title+"|"+p.Category+"|"+p.Topic+"|"+
			strconv.FormatBool(p.Passed)+"|"+strconv.FormatInt(p.SubmitTime.UnixNano(), 10)+"|"+
			t.Yes+"|"+t.No+"|"+t.NoWithVeto+"|"+t.Abstain)
	}
	for _, v := range d.Validators {
		lines = append(lines, "v|"+Key(v.ChainID, v.ID)+"|"+v.Moniker+"|"+v.Address)
	}
	for _, v := range d.Votes {
		lines = append(lines, "x|"+v.ProposalKey()+"|"+v.ValidatorID+"|"+v.Option.String()+"|"+
			v.VotingPower+"|"+strconv.FormatInt(v.Timestamp.UnixNano(), 10))
	}
	sort.Strings(lines)

	h := xxhash.New()
	for _, l := range lines {
		_, _ = h.WriteString(l)
		_, _ = h.Write([]byte{'\n'})
	}
	return h.Sum64()
}

// Merge concatenates several chain datasets into one combined dataset.
func Merge(parts ...*Dataset) *Dataset {
	out := &Dataset{}
	for _, p := range parts {
		if p == nil {
			continue
		}
		out.Proposals = append(out.Proposals, p.Proposals...)
		out.Validators = append(out.Validators, p.Validators...)
		out.Votes = append(out.Votes, p.Votes...)
	}
	return out
}
