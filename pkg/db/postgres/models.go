package postgres

import "time"

// Proposal is a row of governance_proposals.
type Proposal struct {
	ChainID         string    `gorm:"primaryKey;size:64"`
	ProposalID      string    `gorm:"primaryKey;size:64"`
	Title           string    `gorm:"size:512"`
	Category        string    `gorm:"size:128;index"`
	Topic           string    `gorm:"size:128;index"`
	SubmitTime      time.Time `gorm:"index"`
	Passed          bool
	TallyYes        string    `gorm:"size:64"`
	TallyNo         string    `gorm:"size:64"`
	TallyNoWithVeto string    `gorm:"size:64"`
	TallyAbstain    string    `gorm:"size:64"`
}

func (Proposal) TableName() string { return "governance_proposals" }

// Validator is a row of governance_validators.
type Validator struct {
	ChainID     string `gorm:"primaryKey;size:64"`
	ValidatorID string `gorm:"primaryKey;size:128"`
	Moniker     string `gorm:"size:256"`
	Address     string `gorm:"size:128;index"`
}

func (Validator) TableName() string { return "governance_validators" }

// Vote is a row of governance_votes. Every recorded vote is kept; readers
// pick the latest per validator and proposal.
type Vote struct {
	ID          uint      `gorm:"primaryKey"`
	ChainID     string    `gorm:"size:64;index:ix_votes_chain_proposal"`
	ProposalID  string    `gorm:"size:64;index:ix_votes_chain_proposal"`
	ValidatorID string    `gorm:"size:128;index"`
	Option      string    `gorm:"size:32"`
	VotingPower string    `gorm:"size:64"`
	Timestamp   time.Time `gorm:"index"`
}

func (Vote) TableName() string { return "governance_votes" }
