package source

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/canopy-network/govlens/pkg/db/postgres"
	"github.com/canopy-network/govlens/pkg/governance"
)

// PostgresLoader reads the governance_* tables through GORM.
type PostgresLoader struct {
	logger *zap.Logger
	client *postgres.Client
}

func NewPostgresLoader(logger *zap.Logger, client *postgres.Client) *PostgresLoader {
	return &PostgresLoader{logger: logger, client: client}
}

func (l *PostgresLoader) Chains(ctx context.Context) ([]string, error) {
	var chains []string
	err := l.client.DB.WithContext(ctx).
		Model(&postgres.Proposal{}).
		Distinct("chain_id").
		Order("chain_id").
		Pluck("chain_id", &chains).Error
	if err != nil {
		return nil, fmt.Errorf("list chains: %w", err)
	}
	return chains, nil
}

func (l *PostgresLoader) Load(ctx context.Context, chain string) (*governance.Dataset, error) {
	db := l.client.DB.WithContext(ctx)

	var proposals []postgres.Proposal
	if err := db.Where("chain_id = ?", chain).Find(&proposals).Error; err != nil {
		return nil, fmt.Errorf("select governance_proposals for %s: %w", chain, err)
	}
	var validators []postgres.Validator
	if err := db.Where("chain_id = ?", chain).Find(&validators).Error; err != nil {
		return nil, fmt.Errorf("select governance_validators for %s: %w", chain, err)
	}
	var votes []postgres.Vote
	if err := db.Where("chain_id = ?", chain).Order("id").Find(&votes).Error; err != nil {
		return nil, fmt.Errorf("select governance_votes for %s: %w", chain, err)
	}
	if len(proposals) == 0 && len(validators) == 0 && len(votes) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChain, chain)
	}

	ds := fromPostgres(chain, proposals, validators, votes)
	l.logger.Debug("Loaded chain from Postgres",
		zap.String("chain", chain),
		zap.Int("proposals", len(ds.Proposals)),
		zap.Int("validators", len(ds.Validators)),
		zap.Int("votes", len(ds.Votes)))
	return ds, nil
}

func (l *PostgresLoader) Close() error { return l.client.Close() }

func fromPostgres(chain string, proposals []postgres.Proposal, validators []postgres.Validator, votes []postgres.Vote) *governance.Dataset {
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
			Passed:     p.Passed,
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
	return ds
}
