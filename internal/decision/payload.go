package decision

import (
	"github.com/sells-group/creator-credit/internal/model"
)

// Field descriptions sent with every payload. All scores share one polarity.
const (
	descChannel     = "YouTube channel being analyzed for brand safety, engagement and creditworthiness."
	descLoan        = "Requested loan amount. It is the maximum amount that can be approved if the loan is approved."
	descBrandSafety = "Brand safety of the channel's recent uploads. Lower is better (0 = best, 10 = worst). null means the score could not be produced; treat it as worst case."
	descEngagement  = "Internal engagement metric from subscribers, views per video and engagement ratio. Lower is better (0 = best, 10 = worst)."
	descCreditRisk  = "Credit risk score from the last 90 days of banking data. Lower is better (0 = best, 10 = worst)."
	descProposal    = "Viability of the creator's business proposal. Lower is better (0 = best, 10 = worst). null means no proposal was scored; treat it as worst case."
)

// Payload is the JSON document the decision oracle receives.
type Payload struct {
	Channel    ChannelInfo    `json:"channel_information"`
	Financial  FinancialInfo  `json:"financial_analysis"`
	Scores     Scores         `json:"scores"`
	Supporting SupportingData `json:"supporting_data"`
}

// ChannelInfo identifies the channel.
type ChannelInfo struct {
	ChannelID   string `json:"channel_id"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description"`
}

// FinancialInfo carries the requested amount.
type FinancialInfo struct {
	LoanRequested int64  `json:"loan_requested"`
	Description   string `json:"description"`
}

// Scores holds the four sub-scores with their descriptions.
type Scores struct {
	BrandSafety      IntScore   `json:"brand_safety_score"`
	Engagement       FloatScore `json:"engagement_score"`
	CreditRisk       IntScore   `json:"credit_risk_score"`
	BusinessProposal IntScore   `json:"business_proposal_score"`
}

// IntScore is an integer sub-score; Value is null when unavailable.
type IntScore struct {
	Value       *int   `json:"value"`
	Description string `json:"description"`
}

// FloatScore is a continuous sub-score.
type FloatScore struct {
	Value       float64 `json:"value"`
	Description string  `json:"description"`
}

// SupportingData is context for the oracle; it carries no scores of its own.
type SupportingData struct {
	CreditMetrics   model.CreditMetrics  `json:"credit_metrics"`
	ChannelMetrics  model.ChannelMetrics `json:"channel_metrics"`
	EngagementTrend []model.BatchTrend   `json:"engagement_trend,omitempty"`
	ProposalSummary string               `json:"business_proposal_summary,omitempty"`
	Unavailable     map[string]string    `json:"unavailable_scores,omitempty"`
}

// BuildPayload converts a report into the oracle payload.
func BuildPayload(report model.ScoreReport, requested int64) Payload {
	credit := report.CreditRisk
	return Payload{
		Channel: ChannelInfo{
			ChannelID:   report.ChannelID,
			Description: descChannel,
		},
		Financial: FinancialInfo{
			LoanRequested: requested,
			Description:   descLoan,
		},
		Scores: Scores{
			BrandSafety:      IntScore{Value: report.BrandSafety, Description: descBrandSafety},
			Engagement:       FloatScore{Value: report.Engagement, Description: descEngagement},
			CreditRisk:       IntScore{Value: &credit, Description: descCreditRisk},
			BusinessProposal: IntScore{Value: report.BusinessProposal, Description: descProposal},
		},
		Supporting: SupportingData{
			CreditMetrics:   report.CreditMetrics,
			ChannelMetrics:  report.ChannelMetrics,
			EngagementTrend: report.Trend,
			ProposalSummary: report.ProposalSummary,
			Unavailable:     report.BranchErrors,
		},
	}
}
