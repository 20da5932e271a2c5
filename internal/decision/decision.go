// Package decision turns a ScoreReport into a loan decision through a
// pluggable decision oracle.
package decision

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/creator-credit/internal/model"
)

// OracleName labels the decision step in errors.
const OracleName = "decision"

// Oracle answers a serialized payload with the text "[approved, amount]".
type Oracle interface {
	Decide(ctx context.Context, payload []byte) (string, error)
}

var decisionPattern = regexp.MustCompile(`^\[\s*(-?\d+)\s*,\s*(-?\d+)\s*\]$`)

// Aggregator builds the decision payload, asks the oracle and validates its
// answer.
type Aggregator struct {
	oracle Oracle
}

// NewAggregator creates an Aggregator.
func NewAggregator(o Oracle) *Aggregator {
	return &Aggregator{oracle: o}
}

// Decide returns the decision for report. Oracle failures and empty answers
// return *model.ScoringUnavailableError; answers that break the contract
// return *model.DecisionFormatError. Neither is ever turned into a denial.
// A non-positive requested amount is a *model.ValidationError and the oracle
// is not called.
func (a *Aggregator) Decide(ctx context.Context, report model.ScoreReport, requested int64) (model.Decision, error) {
	if requested <= 0 {
		return model.Decision{}, &model.ValidationError{Field: "loan_amount", Reason: "must be a positive integer"}
	}

	payload, err := json.Marshal(BuildPayload(report, requested))
	if err != nil {
		return model.Decision{}, eris.Wrap(err, "decision: marshal payload")
	}

	raw, err := a.oracle.Decide(ctx, payload)
	if err != nil {
		if model.IsScoringUnavailable(err) {
			return model.Decision{}, err
		}
		return model.Decision{}, &model.ScoringUnavailableError{Source: OracleName, Err: err}
	}
	if strings.TrimSpace(raw) == "" {
		return model.Decision{}, &model.ScoringUnavailableError{Source: OracleName, Err: eris.New("decision: empty response")}
	}

	d, err := Parse(raw, requested)
	if err != nil {
		zap.L().Warn("decision: contract violation",
			zap.String("channel_id", report.ChannelID),
			zap.String("raw", raw),
			zap.Error(err),
		)
		return model.Decision{}, err
	}

	zap.L().Info("decision: made",
		zap.String("channel_id", report.ChannelID),
		zap.Bool("approved", d.Approved),
		zap.Int64("approved_amount", d.ApprovedAmount),
		zap.Int64("requested", requested),
	)
	return d, nil
}

// Parse validates an oracle answer of the form "[approved, amount]".
// approved must be 0 or 1, amount must lie in [0, requested], and a denial
// must carry amount 0.
func Parse(raw string, requested int64) (model.Decision, error) {
	m := decisionPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return model.Decision{}, &model.DecisionFormatError{Raw: raw, Reason: "expected [approved, amount]"}
	}

	flag, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return model.Decision{}, &model.DecisionFormatError{Raw: raw, Reason: "approved flag out of range"}
	}
	amount, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return model.Decision{}, &model.DecisionFormatError{Raw: raw, Reason: "amount out of range"}
	}

	switch {
	case flag != 0 && flag != 1:
		return model.Decision{}, &model.DecisionFormatError{Raw: raw, Reason: "approved flag must be 0 or 1"}
	case amount < 0:
		return model.Decision{}, &model.DecisionFormatError{Raw: raw, Reason: "amount must not be negative"}
	case amount > requested:
		return model.Decision{}, &model.DecisionFormatError{Raw: raw, Reason: "amount exceeds requested " + strconv.FormatInt(requested, 10)}
	case flag == 0 && amount != 0:
		return model.Decision{}, &model.DecisionFormatError{Raw: raw, Reason: "denied decision must have amount 0"}
	}

	return model.Decision{Approved: flag == 1, ApprovedAmount: amount}, nil
}
