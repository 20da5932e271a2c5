// Package scorer implements the credit risk and channel quality scorers.
// Both share one polarity: 0 is the best score, 10 the worst.
package scorer

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/creator-credit/internal/config"
)

// DefaultCreditConfig returns a config.CreditConfig with the standard
// 90-day window and weights (sum = 1).
func DefaultCreditConfig() config.CreditConfig {
	return config.CreditConfig{
		WindowDays: 90,

		// Weights (sum = 1).
		NetIncomeWeight:       0.4,
		SalaryFrequencyWeight: 0.3,
		BalanceWeight:         0.2,
		OverdraftWeight:       0.1,

		// Ranges.
		NetIncomeMin:       -5000,
		NetIncomeMax:       5000,
		SalaryFrequencyMax: 2,
		SalaryMonths:       3,
		OverdraftCap:       3,

		// Keywords.
		SalaryKeywords:    []string{"salary"},
		OverdraftKeywords: []string{"overdraft", "fee"},
	}
}

// DefaultChannelConfig returns a config.ChannelConfig with the reference
// "high" values per metric and their weights.
func DefaultChannelConfig() config.ChannelConfig {
	return config.ChannelConfig{
		MaxSubscribers:     1_200_000,
		MaxViewsPerVideo:   800_000,
		MaxEngagementRatio: 0.07,

		SubscribersWeight: 0.4,
		ViewsWeight:       0.4,
		EngagementWeight:  0.2,

		MaxBoost:  1.2,
		SanityMin: 0.8,
		SanityMax: 1.2,
	}
}

// CreditWeightSum returns the sum of the credit component weights.
func CreditWeightSum(c config.CreditConfig) float64 {
	return c.NetIncomeWeight + c.SalaryFrequencyWeight + c.BalanceWeight + c.OverdraftWeight
}

// ChannelWeightSum returns the sum of the channel metric weights.
func ChannelWeightSum(c config.ChannelConfig) float64 {
	return c.SubscribersWeight + c.ViewsWeight + c.EngagementWeight
}

// ValidateCreditConfig checks that a CreditConfig is internally consistent.
func ValidateCreditConfig(c config.CreditConfig) error {
	var errs []string

	if c.WindowDays <= 0 {
		errs = append(errs, "window_days must be > 0")
	}

	weights := []struct {
		name string
		w    float64
	}{
		{"net_income_weight", c.NetIncomeWeight},
		{"salary_frequency_weight", c.SalaryFrequencyWeight},
		{"balance_weight", c.BalanceWeight},
		{"overdraft_weight", c.OverdraftWeight},
	}
	for _, w := range weights {
		if w.w < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", w.name))
		}
	}

	// The composite is read as a [0,1] health ratio, so weights must sum to 1.
	if sum := CreditWeightSum(c); math.Abs(sum-1) > 0.001 {
		errs = append(errs, fmt.Sprintf("weights should sum to 1, got %.3f", sum))
	}

	if c.NetIncomeMax <= c.NetIncomeMin {
		errs = append(errs, "net_income_max must be > net_income_min")
	}
	if c.SalaryFrequencyMax <= 0 {
		errs = append(errs, "salary_frequency_max must be > 0")
	}
	if c.SalaryMonths <= 0 {
		errs = append(errs, "salary_months must be > 0")
	}
	if c.OverdraftCap <= 0 {
		errs = append(errs, "overdraft_cap must be > 0")
	}
	if len(c.SalaryKeywords) == 0 {
		errs = append(errs, "salary_keywords must not be empty")
	}
	if len(c.OverdraftKeywords) == 0 {
		errs = append(errs, "overdraft_keywords must not be empty")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: credit config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ValidateChannelConfig checks that a ChannelConfig is internally consistent.
// Weights need not sum to 1; only their total must be positive.
func ValidateChannelConfig(c config.ChannelConfig) error {
	var errs []string

	refs := []struct {
		name string
		v    float64
	}{
		{"max_subscribers", c.MaxSubscribers},
		{"max_views_per_video", c.MaxViewsPerVideo},
		{"max_engagement_ratio", c.MaxEngagementRatio},
	}
	for _, r := range refs {
		if r.v <= 0 {
			errs = append(errs, fmt.Sprintf("%s must be > 0", r.name))
		}
	}

	weights := []struct {
		name string
		w    float64
	}{
		{"subscribers_weight", c.SubscribersWeight},
		{"views_weight", c.ViewsWeight},
		{"engagement_weight", c.EngagementWeight},
	}
	for _, w := range weights {
		if w.w < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", w.name))
		}
	}
	if ChannelWeightSum(c) <= 0 {
		errs = append(errs, "weight sum must be > 0")
	}

	if c.MaxBoost < 1 {
		errs = append(errs, "max_boost must be >= 1")
	}
	if c.SanityMin <= 0 || c.SanityMax < c.SanityMin {
		errs = append(errs, "sanity range must satisfy 0 < sanity_min <= sanity_max")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: channel config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
