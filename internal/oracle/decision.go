package oracle

import (
	"context"
)

// Decision asks the language model for the final loan decision. It returns
// the raw answer; parsing and contract checks belong to the caller.
type Decision struct {
	caller
}

// DecisionOracleName labels the decision oracle in logs and metrics.
const DecisionOracleName = "decision"

// NewDecision creates a decision oracle.
func NewDecision(c Completer, opts ...Option) *Decision {
	return &Decision{caller: newCaller(DecisionOracleName, c, opts)}
}

// Decide sends the serialized report and returns the trimmed answer.
func (o *Decision) Decide(ctx context.Context, payload []byte) (string, error) {
	return o.call(ctx, decisionPrompt, string(payload), 32)
}
