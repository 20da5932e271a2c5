package model

import (
	"strings"
	"time"
)

// EvaluationStatus distinguishes a decision from a processing failure.
type EvaluationStatus string

const (
	// StatusDecided means the decision oracle produced a valid decision,
	// approved or denied.
	StatusDecided EvaluationStatus = "decided"
	// StatusFailed means no decision could be made (oracle unavailable or
	// a required branch failed).
	StatusFailed EvaluationStatus = "failed"
	// StatusInvalidDecision means the oracle answered but broke the
	// decision contract. Needs a retry or manual review.
	StatusInvalidDecision EvaluationStatus = "invalid_decision"
)

// Valid reports whether s is a known status.
func (s EvaluationStatus) Valid() bool {
	switch s {
	case StatusDecided, StatusFailed, StatusInvalidDecision:
		return true
	}
	return false
}

// LoanRequest is one evaluation request. ChannelMetrics is optional when a
// channel feed is configured; Proposal is optional.
type LoanRequest struct {
	ChannelID      string               `json:"channel_id"`
	LoanAmount     int64                `json:"loan_amount"`
	BankingData    *BankingData         `json:"banking_data"`
	ChannelMetrics *ChannelMetricsInput `json:"channel_metrics,omitempty"`
	Proposal       string               `json:"proposal,omitempty"`
}

// Validate rejects requests that are missing required financial fields.
func (r *LoanRequest) Validate() error {
	if strings.TrimSpace(r.ChannelID) == "" {
		return &ValidationError{Field: "channel_id", Reason: "is required"}
	}
	if r.LoanAmount <= 0 {
		return &ValidationError{Field: "loan_amount", Reason: "must be a positive integer"}
	}
	if err := r.BankingData.Validate(); err != nil {
		return err
	}
	if r.ChannelMetrics != nil {
		if _, err := r.ChannelMetrics.Metrics(); err != nil {
			return err
		}
	}
	return nil
}

// Evaluation is the persisted record of one evaluation. Decision is set only
// when Status is StatusDecided; Error is set otherwise.
type Evaluation struct {
	ID            string           `json:"id"`
	ChannelID     string           `json:"channel_id"`
	LoanRequested int64            `json:"loan_requested"`
	Status        EvaluationStatus `json:"status"`
	Report        *ScoreReport     `json:"report,omitempty"`
	Decision      *Decision        `json:"decision,omitempty"`
	SpendingLimit *SpendingLimit   `json:"spending_limit,omitempty"`
	Error         string           `json:"error,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// EvaluationFilter narrows ListEvaluations.
type EvaluationFilter struct {
	ChannelID string
	Status    EvaluationStatus
	Limit     int
}
