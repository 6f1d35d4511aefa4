package analytics

import (
	"github.com/shopspring/decimal"

	"github.com/canopy-network/govlens/pkg/governance"
)

// Distribution is the rollup of one category or topic.
type Distribution struct {
	Count                   int                               `json:"count" yaml:"count"`
	PassCount               int                               `json:"passCount" yaml:"passCount"`
	PassRate                float64                           `json:"passRate" yaml:"passRate"`
	VoteDistribution        map[governance.VoteOption]int     `json:"voteDistribution" yaml:"voteDistribution"`
	VotingPowerDistribution map[governance.VoteOption]float64 `json:"votingPowerDistribution" yaml:"votingPowerDistribution"`
}

// CategoryDistribution is the rollup of one proposal category.
type CategoryDistribution struct {
	Distribution `yaml:",inline"`
}

// TopicDistribution is the rollup of one topic and the category owning it.
type TopicDistribution struct {
	Distribution `yaml:",inline"`
	Category     string `json:"category" yaml:"category"`
}

// Distributions is the per-chain (or combined) statistics object served to
// the presentation layer.
type Distributions struct {
	Categories map[string]*CategoryDistribution `json:"categories" yaml:"categories"`
	Topics     map[string]*TopicDistribution    `json:"topics" yaml:"topics"`
}

// bucket accumulates one distribution; power is summed exactly and converted
// when the aggregation finishes.
type bucket struct {
	count     int
	passCount int
	votes     map[governance.VoteOption]int
	power     map[governance.VoteOption]decimal.Decimal
}

func newBucket() *bucket {
	b := &bucket{
		votes: make(map[governance.VoteOption]int, len(governance.KnownOptions)),
		power: make(map[governance.VoteOption]decimal.Decimal, len(governance.KnownOptions)),
	}
	for _, o := range governance.KnownOptions {
		b.votes[o] = 0
		b.power[o] = decimal.Zero
	}
	return b
}

func (b *bucket) addProposal(passed bool) {
	b.count++
	if passed {
		b.passCount++
	}
}

func (b *bucket) addVote(o governance.VoteOption, power decimal.Decimal) {
	b.votes[o]++
	b.power[o] = b.power[o].Add(power)
}

func (b *bucket) distribution() Distribution {
	d := Distribution{
		Count:                   b.count,
		PassCount:               b.passCount,
		PassRate:                PassRate(b.passCount, b.count),
		VoteDistribution:        make(map[governance.VoteOption]int, len(b.votes)),
		VotingPowerDistribution: make(map[governance.VoteOption]float64, len(b.power)),
	}
	for o, n := range b.votes {
		d.VoteDistribution[o] = n
	}
	for o, p := range b.power {
		d.VotingPowerDistribution[o] = p.InexactFloat64()
	}
	return d
}

// PassRate is passCount/count as a percentage, 0 for an empty bucket.
func PassRate(passCount, count int) float64 {
	if count <= 0 {
		return 0
	}
	return float64(passCount) / float64(count) * 100
}

type proposalLabels struct {
	category string
	topic    string
}

// AggregateDistributions rolls proposals and votes up per category and topic.
// Proposals are keyed by (chain, id) so a single call may cover several
// chains. Votes on proposals outside the set are ignored; only the five known
// options are bucketed, and a vote whose power does not parse still counts in
// the vote distribution while adding nothing to the power distribution.
//
// Every step is an exact commutative sum, so the output does not depend on
// input order. A topic seen under several categories is owned by the
// lexicographically smallest one.
func AggregateDistributions(proposals []governance.Proposal, votes []governance.Vote) Distributions {
	categories := make(map[string]*bucket)
	topics := make(map[string]*bucket)
	topicCategory := make(map[string]string)
	labels := make(map[string]proposalLabels, len(proposals))

	for _, p := range proposals {
		key := p.Key()
		if _, dup := labels[key]; dup {
			continue
		}
		category, topic := p.CategoryOrUnknown(), p.TopicOrUnknown()
		labels[key] = proposalLabels{category: category, topic: topic}

		cb, ok := categories[category]
		if !ok {
			cb = newBucket()
			categories[category] = cb
		}
		cb.addProposal(p.Passed)

		tb, ok := topics[topic]
		if !ok {
			tb = newBucket()
			topics[topic] = tb
		}
		tb.addProposal(p.Passed)

		if owner, ok := topicCategory[topic]; !ok || category < owner {
			topicCategory[topic] = category
		}
	}

	for _, v := range votes {
		l, ok := labels[v.ProposalKey()]
		if !ok || !v.Option.IsKnown() {
			continue
		}
		power, ok := governance.ParsePower(v.VotingPower)
		if !ok {
			power = decimal.Zero
		}
		categories[l.category].addVote(v.Option, power)
		topics[l.topic].addVote(v.Option, power)
	}

	out := Distributions{
		Categories: make(map[string]*CategoryDistribution, len(categories)),
		Topics:     make(map[string]*TopicDistribution, len(topics)),
	}
	for name, b := range categories {
		out.Categories[name] = &CategoryDistribution{Distribution: b.distribution()}
	}
	for name, b := range topics {
		out.Topics[name] = &TopicDistribution{Distribution: b.distribution(), Category: topicCategory[name]}
	}
	return out
}

// AggregateDataset is AggregateDistributions over a dataset.
func AggregateDataset(ds *governance.Dataset) Distributions {
	return AggregateDistributions(ds.Proposals, ds.Votes)
}
