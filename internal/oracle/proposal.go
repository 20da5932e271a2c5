package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/creator-credit/internal/model"
)

// maxProposalChars truncates long proposals.
const maxProposalChars = 32000

// ProposalResult is a scored business proposal.
type ProposalResult struct {
	Score   int    `json:"risk_score"`
	Summary string `json:"report_summary"`
}

// Proposal scores a creator's business proposal.
type Proposal struct {
	caller
	dir string
}

// NewProposal creates a proposal oracle. Proposals not supplied with the
// request are looked up as <dir>/<channel>.txt.
func NewProposal(c Completer, dir string, opts ...Option) *Proposal {
	return &Proposal{caller: newCaller(model.BranchProposal, c, opts), dir: dir}
}

// Score scores text, or the stored proposal for channelID when text is empty.
// It returns nil without error when no proposal exists.
func (o *Proposal) Score(ctx context.Context, channelID, text string) (*ProposalResult, error) {
	if strings.TrimSpace(text) == "" {
		loaded, err := o.load(channelID)
		if err != nil {
			return nil, err
		}
		text = loaded
	}
	if strings.TrimSpace(text) == "" {
		zap.L().Debug("oracle: no business proposal", zap.String("channel_id", channelID))
		return nil, nil
	}
	text = truncate(text, maxProposalChars)

	resp, err := o.call(ctx, proposalPrompt, text, 1024)
	if err != nil {
		return nil, err
	}
	return parseProposal(resp)
}

func (o *Proposal) load(channelID string) (string, error) {
	if o.dir == "" {
		return "", nil
	}
	path := filepath.Join(o.dir, filepath.Base(channelID)+".txt")
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "oracle: read proposal %s", path)
	}
	return string(data), nil
}

// parseProposal extracts the JSON object from the response, tolerating
// surrounding text such as code fences.
func parseProposal(text string) (*ProposalResult, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, &model.ScoringUnavailableError{
			Source: model.BranchProposal,
			Err:    eris.Errorf("oracle: no JSON in response: %s", text),
		}
	}

	var raw struct {
		RiskScore *float64 `json:"risk_score"`
		Summary   string   `json:"report_summary"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, &model.ScoringUnavailableError{
			Source: model.BranchProposal,
			Err:    eris.Wrap(err, "oracle: parse proposal JSON"),
		}
	}
	if raw.RiskScore == nil {
		return nil, &model.ScoringUnavailableError{
			Source: model.BranchProposal,
			Err:    eris.New("oracle: proposal response missing risk_score"),
		}
	}

	score := int(math.Round(*raw.RiskScore))
	return &ProposalResult{
		Score:   min(max(score, 0), 10),
		Summary: raw.Summary,
	}, nil
}
