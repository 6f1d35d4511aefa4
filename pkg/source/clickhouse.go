package source

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/canopy-network/govlens/pkg/governance"
	"github.com/canopy-network/govlens/pkg/retry"
)

// Querier is the part of the ClickHouse client the loader needs.
type Querier interface {
	Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	Close() error
}

type chChain struct {
	ChainID string `ch:"chain_id"`
}

type chProposal struct {
	ChainID         string    `ch:"chain_id"`
	ProposalID      string    `ch:"proposal_id"`
	Title           string    `ch:"title"`
	Category        string    `ch:"category"`
	Topic           string    `ch:"topic"`
	SubmitTime      time.Time `ch:"submit_time"`
	Passed          uint8     `ch:"passed"`
	TallyYes        string    `ch:"tally_yes"`
	TallyNo         string    `ch:"tally_no"`
	TallyNoWithVeto string    `ch:"tally_no_with_veto"`
	TallyAbstain    string    `ch:"tally_abstain"`
}

type chValidator struct {
	ChainID     string `ch:"chain_id"`
	ValidatorID string `ch:"validator_id"`
	Moniker     string `ch:"moniker"`
	Address     string `ch:"address"`
}

type chVote struct {
	ChainID     string    `ch:"chain_id"`
	ProposalID  string    `ch:"proposal_id"`
	ValidatorID string    `ch:"validator_id"`
	Option      string    `ch:"option"`
	VotingPower string    `ch:"voting_power"`
	Timestamp   time.Time `ch:"timestamp"`
}

// Numeric and boolean columns are cast in SQL so that either storage type
// scans into the row structs above.
const (
	chChainsQuery = `
		SELECT DISTINCT chain_id
		FROM governance_proposals
		ORDER BY chain_id
	`
	chProposalsQuery = `
		SELECT
			chain_id,
			toString(proposal_id) AS proposal_id,
			title,
			category,
			topic,
			toDateTime64(submit_time, 3) AS submit_time,
			toUInt8(passed) AS passed,
			toString(tally_yes) AS tally_yes,
			toString(tally_no) AS tally_no,
			toString(tally_no_with_veto) AS tally_no_with_veto,
			toString(tally_abstain) AS tally_abstain
		FROM governance_proposals
		WHERE chain_id = ?
	`
	chValidatorsQuery = `
		SELECT chain_id, validator_id, moniker, address
		FROM governance_validators
		WHERE chain_id = ?
	`
	chVotesQuery = `
		SELECT
			chain_id,
			toString(proposal_id) AS proposal_id,
			validator_id,
			option,
			toString(voting_power) AS voting_power,
			toDateTime64(timestamp, 3) AS timestamp
		FROM governance_votes
		WHERE chain_id = ?
	`
)

// ClickHouseLoader reads the governance_* tables.
type ClickHouseLoader struct {
	logger *zap.Logger
	db     Querier
	retry  retry.Config
}

func NewClickHouseLoader(logger *zap.Logger, db Querier) *ClickHouseLoader {
	return &ClickHouseLoader{logger: logger, db: db, retry: retry.QuickConfig()}
}

func (l *ClickHouseLoader) Chains(ctx context.Context) ([]string, error) {
	var rows []chChain
	err := retry.WithBackoff(ctx, l.retry, l.logger, "clickhouse_chains", func() error {
		rows = rows[:0]
		return l.db.Select(ctx, &rows, chChainsQuery)
	})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ChainID)
	}
	return out, nil
}

func (l *ClickHouseLoader) Load(ctx context.Context, chain string) (*governance.Dataset, error) {
	proposals, err := selectChain[chProposal](ctx, l, "governance_proposals", chProposalsQuery, chain)
	if err != nil {
		return nil, err
	}
	validators, err := selectChain[chValidator](ctx, l, "governance_validators", chValidatorsQuery, chain)
	if err != nil {
		return nil, err
	}
	votes, err := selectChain[chVote](ctx, l, "governance_votes", chVotesQuery, chain)
	if err != nil {
		return nil, err
	}
	if len(proposals) == 0 && len(validators) == 0 && len(votes) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChain, chain)
	}

	ds := &governance.Dataset{
		Chain:      chain,
		Proposals:  make([]governance.Proposal, 0, len(proposals)),
		Validators: make([]governance.Validator, 0, len(validators)),
		Votes:      make([]governance.Vote, 0, len(votes)),
	}
	for _, p := range proposals {
		ds.Proposals = append(ds.Proposals, governance.Proposal{
			ID:         p.ProposalID,
			ChainID:    p.ChainID,
			Title:      p.Title,
			Category:   p.Category,
			Topic:      p.Topic,
			SubmitTime: p.SubmitTime.UTC(),
			Passed:     p.Passed != 0,
			FinalTally: governance.FinalTally{
				Yes:        p.TallyYes,
				No:         p.TallyNo,
				NoWithVeto: p.TallyNoWithVeto,
				Abstain:    p.TallyAbstain,
			},
		})
	}
	for _, v := range validators {
		ds.Validators = append(ds.Validators, governance.Validator{
			ID:      v.ValidatorID,
			ChainID: v.ChainID,
			Moniker: v.Moniker,
			Address: v.Address,
		})
	}
	for _, v := range votes {
		ds.Votes = append(ds.Votes, governance.Vote{
			ProposalID:  v.ProposalID,
			ValidatorID: v.ValidatorID,
			ChainID:     v.ChainID,
			Option:      governance.ParseVoteOption(v.Option),
			VotingPower: v.VotingPower,
			Timestamp:   v.Timestamp.UTC(),
		})
	}

	l.logger.Debug("Loaded chain from ClickHouse",
		zap.String("chain", chain),
		zap.Int("proposals", len(ds.Proposals)),
		zap.Int("validators", len(ds.Validators)),
		zap.Int("votes", len(ds.Votes)))
	return ds, nil
}

// selectChain runs query for chain with retries; a failed attempt's partial
// rows are discarded.
func selectChain[T any](ctx context.Context, l *ClickHouseLoader, table, query, chain string) ([]T, error) {
	var rows []T
	err := retry.WithBackoff(ctx, l.retry, l.logger, "select_"+table, func() error {
		rows = rows[:0]
		return l.db.Select(ctx, &rows, query, chain)
	})
	if err != nil {
		return nil, fmt.Errorf("select %s for %s: %w", table, chain, err)
	}
	return rows, nil
}

func (l *ClickHouseLoader) Close() error { return l.db.Close() }
