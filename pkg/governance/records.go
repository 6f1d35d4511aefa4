package governance

import (
	"time"
)

// UnknownLabel replaces empty category and topic labels.
const UnknownLabel = "Unknown"

// FinalTally is the tally summary published by the chain when voting closed.
// It is informational only; analytics always recompute tallies from votes.
type FinalTally struct {
	Yes        string `json:"yes" yaml:"yes"`
	No         string `json:"no" yaml:"no"`
	NoWithVeto string `json:"no_with_veto" yaml:"no_with_veto"`
	Abstain    string `json:"abstain" yaml:"abstain"`
}

// Proposal is a governance proposal. IDs are unique within one chain only.
type Proposal struct {
	ID         string     `json:"id" yaml:"id"`
	ChainID    string     `json:"chain" yaml:"chain"`
	Title      string     `json:"title" yaml:"title"`
	Category   string     `json:"category" yaml:"category"`
	Topic      string     `json:"topic" yaml:"topic"`
	SubmitTime time.Time  `json:"submit_time" yaml:"submit_time"`
	Passed     bool       `json:"passed" yaml:"passed"`
	FinalTally FinalTally `json:"final_tally" yaml:"final_tally"`
}

// Key is the cross-chain identity of the proposal.
func (p Proposal) Key() string { return Key(p.ChainID, p.ID) }

func (p Proposal) CategoryOrUnknown() string { return orUnknown(p.Category) }

func (p Proposal) TopicOrUnknown() string { return orUnknown(p.Topic) }

// Validator is scoped to a single chain: the same operator on two chains is
// two validators.
type Validator struct {
	ID      string `json:"id" yaml:"id"`
	ChainID string `json:"chain" yaml:"chain"`
	Moniker string `json:"moniker" yaml:"moniker"`
	Address string `json:"address" yaml:"address"`
}

// Vote is one validator's recorded choice on one proposal of the same chain.
// VotingPower keeps the raw value as reported; see ParsePower.
type Vote struct {
	ProposalID  string     `json:"proposal_id" yaml:"proposal_id"`
	ValidatorID string     `json:"validator_id" yaml:"validator_id"`
	ChainID     string     `json:"chain" yaml:"chain"`
	Option      VoteOption `json:"option" yaml:"option"`
	VotingPower string     `json:"voting_power" yaml:"voting_power"`
	Timestamp   time.Time  `json:"timestamp" yaml:"timestamp"`
}

// ProposalKey is the cross-chain identity of the voted proposal.
func (v Vote) ProposalKey() string { return Key(v.ChainID, v.ProposalID) }

// Power returns the parsed voting power as a float; false when unparsable.
func (v Vote) Power() (float64, bool) { return PowerFloat(v.VotingPower) }

// Key joins chain and record id. Chain ids are assumed to be slash free.
func Key(chain, id string) string { return chain + "/" + id }

func orUnknown(s string) string {
	if s == "" {
		return UnknownLabel
	}
	return s
}
