package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/canopy-network/govlens/pkg/governance"
)

const (
	proposalsFile  = "proposals"
	validatorsFile = "validators"
	votesFile      = "votes"
)

// FileLoader reads <root>/<chain>/{proposals,validators,votes}.{json,csv}.
// JSON wins when both formats exist; a missing file is an empty record set.
type FileLoader struct {
	logger *zap.Logger
	root   string
}

func NewFileLoader(logger *zap.Logger, root string) *FileLoader {
	return &FileLoader{logger: logger, root: root}
}

func (l *FileLoader) Chains(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return nil, fmt.Errorf("list chains in %s: %w", l.root, err)
	}
	var chains []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if l.hasData(filepath.Join(l.root, e.Name())) {
			chains = append(chains, e.Name())
		}
	}
	sort.Strings(chains)
	return chains, nil
}

func (l *FileLoader) hasData(dir string) bool {
	for _, base := range []string{proposalsFile, validatorsFile, votesFile} {
		if _, ok := pickFile(dir, base); ok {
			return true
		}
	}
	return false
}

func (l *FileLoader) Load(ctx context.Context, chain string) (*governance.Dataset, error) {
	if chain == "" || chain != filepath.Base(chain) || strings.HasPrefix(chain, ".") {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChain, chain)
	}
	dir := filepath.Join(l.root, chain)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChain, chain)
	}

	ds := &governance.Dataset{Chain: chain}
	var err error
	if ds.Proposals, err = readRecords(ctx, dir, proposalsFile, proposalRecord.toProposal); err != nil {
		return nil, err
	}
	if ds.Validators, err = readRecords(ctx, dir, validatorsFile, validatorRecord.toValidator); err != nil {
		return nil, err
	}
	if ds.Votes, err = readRecords(ctx, dir, votesFile, voteRecord.toVote); err != nil {
		return nil, err
	}

	if dropped := withChain(ds); dropped > 0 {
		l.logger.Warn("Dropped records of another chain",
			zap.String("chain", chain),
			zap.Int("dropped", dropped))
	}
	l.logger.Debug("Loaded chain from files",
		zap.String("chain", chain),
		zap.String("dir", dir),
		zap.Int("proposals", len(ds.Proposals)),
		zap.Int("validators", len(ds.Validators)),
		zap.Int("votes", len(ds.Votes)))
	return ds, nil
}

func (l *FileLoader) Close() error { return nil }

// pickFile returns the JSON file of base in dir, else the CSV one.
func pickFile(dir, base string) (string, bool) {
	for _, ext := range []string{".json", ".csv"} {
		path := filepath.Join(dir, base+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// record is a file row before conversion. Scalars may be strings, numbers or
// booleans in JSON, and are always strings in CSV.
type record interface {
	proposalRecord | validatorRecord | voteRecord
}

func readRecords[R record, T any](ctx context.Context, dir, base string, convert func(R) T) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, ok := pickFile(dir, base)
	if !ok {
		return nil, nil
	}

	var rows []R
	var err error
	if strings.HasSuffix(path, ".json") {
		rows, err = readJSON[R](path)
	} else {
		rows, err = readCSV[R](path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	out := make([]T, 0, len(rows))
	for _, r := range rows {
		out = append(out, convert(r))
	}
	return out, nil
}

func readJSON[R record](path string) ([]R, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rows []R
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func readCSV[R record](path string) ([]R, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	columns := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		columns[strings.ToLower(strings.TrimSpace(h))] = i
	}

	var rows []R
	for {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		get := func(name string) flexString {
			if i, ok := columns[name]; ok && i < len(fields) {
				return flexString(strings.TrimSpace(fields[i]))
			}
			return ""
		}
		var row R
		switch p := any(&row).(type) {
		case *proposalRecord:
			*p = proposalRecord{
				ID:         get("id"),
				Chain:      get("chain"),
				Title:      get("title"),
				Category:   get("category"),
				Topic:      get("topic"),
				SubmitTime: get("submit_time"),
				Passed:     get("passed"),
			}
		case *validatorRecord:
			*p = validatorRecord{
				ID:      get("id"),
				Chain:   get("chain"),
				Moniker: get("moniker"),
				Address: get("address"),
			}
		case *voteRecord:
			*p = voteRecord{
				ProposalID:  get("proposal_id"),
				ValidatorID: get("validator_id"),
				Chain:       get("chain"),
				Option:      get("option"),
				VotingPower: get("voting_power"),
				Timestamp:   get("timestamp"),
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// flexString takes any JSON scalar as its literal text; null and composite
// values become "".
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*f = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
	case b[0] == '{' || b[0] == '[':
		*f = ""
	default:
		*f = flexString(b)
	}
	return nil
}

func (f flexString) String() string { return string(f) }

type tallyRecord struct {
	Yes        flexString `json:"yes"`
	No         flexString `json:"no"`
	NoWithVeto flexString `json:"no_with_veto"`
	Abstain    flexString `json:"abstain"`
}

type proposalRecord struct {
	ID         flexString  `json:"id"`
	Chain      flexString  `json:"chain"`
	Title      flexString  `json:"title"`
	Category   flexString  `json:"category"`
	Topic      flexString  `json:"topic"`
	SubmitTime flexString  `json:"submit_time"`
	Passed     flexString  `json:"passed"`
	FinalTally tallyRecord `json:"final_tally"`
}

func (r proposalRecord) toProposal() governance.Proposal {
	return governance.Proposal{
		ID:         r.ID.String(),
		ChainID:    r.Chain.String(),
		Title:      r.Title.String(),
		Category:   r.Category.String(),
		Topic:      r.Topic.String(),
		SubmitTime: parseTime(r.SubmitTime.String()),
		Passed:     parseBool(r.Passed.String()),
		FinalTally: governance.FinalTally{
			Yes:        r.FinalTally.Yes.String(),
			No:         r.FinalTally.No.String(),
			NoWithVeto: r.FinalTally.NoWithVeto.String(),
			Abstain:    r.FinalTally.Abstain.String(),
		},
	}
}

type validatorRecord struct {
	ID      flexString `json:"id"`
	Chain   flexString `json:"chain"`
	Moniker flexString `json:"moniker"`
	Address flexString `json:"address"`
}

func (r validatorRecord) toValidator() governance.Validator {
	return governance.Validator{
		ID:      r.ID.String(),
		ChainID: r.Chain.String(),
		Moniker: r.Moniker.String(),
		Address: r.Address.String(),
	}
}

type voteRecord struct {
	ProposalID  flexString `json:"proposal_id"`
	ValidatorID flexString `json:"validator_id"`
	Chain       flexString `json:"chain"`
	Option      flexString `json:"option"`
	VotingPower flexString `json:"voting_power"`
	Timestamp   flexString `json:"timestamp"`
}

func (r voteRecord) toVote() governance.Vote {
	return governance.Vote{
		ProposalID:  r.ProposalID.String(),
		ValidatorID: r.ValidatorID.String(),
		ChainID:     r.Chain.String(),
		Option:      governance.ParseVoteOption(r.Option.String()),
		VotingPower: r.VotingPower.String(),
		Timestamp:   parseTime(r.Timestamp.String()),
	}
}
