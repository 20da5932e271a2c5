package model

// Decision is the terminal output of an evaluation. A denied decision always
// carries a zero amount.
type Decision struct {
	Approved       bool  `json:"approved"`
	ApprovedAmount int64 `json:"approved_amount"`
}

// SpendingLimitInterval is the card issuer interval used for approved limits.
const SpendingLimitInterval = "all_time"

// SpendingLimit is the card spending limit an approved decision maps to.
// Amount is in minor currency units.
type SpendingLimit struct {
	Amount   int64  `json:"amount"`
	Interval string `json:"interval"`
}

// SpendingLimit maps the decision onto an issuer spending limit. Returns nil
// for denied decisions.
func (d Decision) SpendingLimit() *SpendingLimit {
	if !d.Approved {
		return nil
	}
	return &SpendingLimit{
		Amount:   d.ApprovedAmount * 100,
		Interval: SpendingLimitInterval,
	}
}
