package model

// CreditMetrics explains a credit risk score. Money amounts are in the
// account currency.
type CreditMetrics struct {
	TotalIncome        float64 `json:"total_income"`
	TotalExpenditure   float64 `json:"total_expenditure"`
	NetIncome          float64 `json:"net_income"`
	ExpenditureRatio   float64 `json:"expenditure_ratio"`
	AverageSalary      float64 `json:"average_salary"`
	SalaryCount        int     `json:"salary_count"`
	SalaryFrequency    float64 `json:"salary_frequency"`
	OverdraftCount     int     `json:"overdraft_count"`
	CurrentBalance     float64 `json:"current_balance"`
	WindowTransactions int     `json:"window_transactions"`
}

// Branch names used in ScoreReport.BranchErrors and metrics labels.
const (
	BranchBrandSafety = "brand_safety"
	BranchEngagement  = "engagement"
	BranchProposal    = "business_proposal"
	BranchCredit      = "credit_risk"
)

// ScoreReport is the snapshot of sub-scores handed to the decision step.
// All scores share one polarity: 0 is best, 10 is worst. A nil score means
// the branch could not produce one and must be read as worst case.
type ScoreReport struct {
	ChannelID        string  `json:"channel_id"`
	LoanRequested    int64   `json:"loan_requested"`
	BrandSafety      *int    `json:"brand_safety_score"`
	Engagement       float64 `json:"engagement_score"`
	CreditRisk       int     `json:"credit_risk_score"`
	BusinessProposal *int    `json:"business_proposal_score"`

	ProposalSummary string            `json:"business_proposal_summary,omitempty"`
	CreditMetrics   CreditMetrics     `json:"credit_metrics"`
	ChannelMetrics  ChannelMetrics    `json:"channel_metrics"`
	Trend           []BatchTrend      `json:"engagement_trend,omitempty"`
	BranchErrors    map[string]string `json:"branch_errors,omitempty"`
}

// Degraded reports whether any optional branch failed during collection.
func (r ScoreReport) Degraded() bool {
	return len(r.BranchErrors) > 0
}
