package decision

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/rotisserie/eris"
)

// RuleOracle is a deterministic Oracle. It blends the sub-scores (missing
// scores count as 10), denies above DenyAbove and otherwise approves the
// requested amount scaled down by the blended risk.
type RuleOracle struct {
	CreditWeight      float64
	BrandSafetyWeight float64
	EngagementWeight  float64
	ProposalWeight    float64
	DenyAbove         float64
}

// NewRuleOracle returns a RuleOracle with the default weights.
func NewRuleOracle() *RuleOracle {
	return &RuleOracle{
		CreditWeight:      0.4,
		BrandSafetyWeight: 0.25,
		EngagementWeight:  0.2,
		ProposalWeight:    0.15,
		DenyAbove:         7,
	}
}

// Decide implements Oracle.
func (r *RuleOracle) Decide(_ context.Context, payload []byte) (string, error) {
	var p Payload
	if err := json.Unmarshal(payload, &p); err != nil {
		return "", eris.Wrap(err, "decision: rules: decode payload")
	}

	risk := r.Risk(p.Scores)
	requested := p.Financial.LoanRequested
	if risk >= r.DenyAbove || requested <= 0 {
		return "[0, 0]", nil
	}

	amount := int64(math.Floor(float64(requested) * (1 - risk/10)))
	if amount <= 0 {
		return "[0, 0]", nil
	}
	return fmt.Sprintf("[1, %d]", min(amount, requested)), nil
}

// Risk is the weighted mean of the sub-scores on the 0-10 scale, rounded to
// two decimals.
func (r *RuleOracle) Risk(s Scores) float64 {
	worst := func(v *int) float64 {
		if v == nil {
			return 10
		}
		return float64(*v)
	}

	total := r.CreditWeight + r.BrandSafetyWeight + r.EngagementWeight + r.ProposalWeight
	if total <= 0 {
		return 10
	}
	sum := r.CreditWeight*worst(s.CreditRisk.Value) +
		r.BrandSafetyWeight*worst(s.BrandSafety.Value) +
		r.EngagementWeight*s.Engagement.Value +
		r.ProposalWeight*worst(s.BusinessProposal.Value)
	return math.Round(sum/total*100) / 100
}
