package scorer

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/sells-group/creator-credit/internal/config"
	"github.com/sells-group/creator-credit/internal/model"
)

// CreditResult is a credit risk score with the metrics it was derived from.
type CreditResult struct {
	Score   int                 `json:"score"`
	Metrics model.CreditMetrics `json:"metrics"`
}

// CreditScorer scores a banking ledger over a trailing window anchored at
// evaluation time.
type CreditScorer struct {
	cfg config.CreditConfig

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewCreditScorer creates a credit scorer. Zero-valued config fields fall
// back to DefaultCreditConfig.
func NewCreditScorer(cfg config.CreditConfig) *CreditScorer {
	def := DefaultCreditConfig()
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = def.WindowDays
	}
	if CreditWeightSum(cfg) == 0 {
		cfg.NetIncomeWeight = def.NetIncomeWeight
		cfg.SalaryFrequencyWeight = def.SalaryFrequencyWeight
		cfg.BalanceWeight = def.BalanceWeight
		cfg.OverdraftWeight = def.OverdraftWeight
	}
	if cfg.NetIncomeMin == 0 && cfg.NetIncomeMax == 0 {
		cfg.NetIncomeMin, cfg.NetIncomeMax = def.NetIncomeMin, def.NetIncomeMax
	}
	if cfg.SalaryFrequencyMax <= 0 {
		cfg.SalaryFrequencyMax = def.SalaryFrequencyMax
	}
	if cfg.SalaryMonths <= 0 {
		cfg.SalaryMonths = def.SalaryMonths
	}
	if cfg.OverdraftCap <= 0 {
		cfg.OverdraftCap = def.OverdraftCap
	}
	if len(cfg.SalaryKeywords) == 0 {
		cfg.SalaryKeywords = def.SalaryKeywords
	}
	if len(cfg.OverdraftKeywords) == 0 {
		cfg.OverdraftKeywords = def.OverdraftKeywords
	}
	return &CreditScorer{cfg: cfg, nowFunc: time.Now}
}

// WithClock returns a copy of the scorer anchored at a fixed clock.
func (s *CreditScorer) WithClock(now func() time.Time) *CreditScorer {
	cp := *s
	cp.nowFunc = now
	return &cp
}

// Evaluate scores an account. A nil account or empty ledger is scored with
// conservative defaults rather than rejected; a missing balance counts as
// overdrawn.
func (s *CreditScorer) Evaluate(acct *model.Account) CreditResult {
	cutoff := s.nowFunc().AddDate(0, 0, -s.cfg.WindowDays)
	fold := cases.Fold()
	salaryKW := foldAll(fold, s.cfg.SalaryKeywords)
	overdraftKW := foldAll(fold, s.cfg.OverdraftKeywords)

	var (
		income, expenditure decimal.Decimal
		salaries            []decimal.Decimal
		overdrafts          int
		inWindow            int
	)

	var txns []model.Transaction
	if acct != nil {
		txns = acct.Transactions
	}

	for _, txn := range txns {
		if txn.Date.Before(cutoff) {
			continue
		}
		inWindow++

		desc := fold.String(txn.Description)
		switch {
		case txn.Value.IsPositive():
			income = income.Add(txn.Value)
			if containsAny(desc, salaryKW) {
				salaries = append(salaries, txn.Value)
			}
		case txn.Value.IsNegative():
			expenditure = expenditure.Add(txn.Value.Abs())
			if containsAny(desc, overdraftKW) {
				overdrafts++
			}
		}
	}

	m := model.CreditMetrics{
		TotalIncome:        income.InexactFloat64(),
		TotalExpenditure:   expenditure.InexactFloat64(),
		NetIncome:          income.Sub(expenditure).InexactFloat64(),
		ExpenditureRatio:   1,
		SalaryCount:        len(salaries),
		SalaryFrequency:    float64(len(salaries)) / s.cfg.SalaryMonths,
		OverdraftCount:     overdrafts,
		WindowTransactions: inWindow,
	}
	if income.IsPositive() {
		m.ExpenditureRatio = expenditure.Div(income).InexactFloat64()
	}
	if len(salaries) > 0 {
		m.AverageSalary = decimal.Sum(salaries[0], salaries[1:]...).
			Div(decimal.NewFromInt(int64(len(salaries)))).InexactFloat64()
	}

	var balanceNorm float64
	if acct != nil && acct.Balance != nil {
		m.CurrentBalance = acct.Balance.InexactFloat64()
		if !acct.Balance.IsNegative() {
			balanceNorm = 1
		}
	}

	netNorm := NormalizeLinear(m.NetIncome, s.cfg.NetIncomeMin, s.cfg.NetIncomeMax)
	freqNorm := NormalizeLinear(m.SalaryFrequency, 0, s.cfg.SalaryFrequencyMax)
	overdraftNorm := 1 - math.Min(float64(overdrafts)/float64(s.cfg.OverdraftCap), 1)

	composite := s.cfg.NetIncomeWeight*netNorm +
		s.cfg.SalaryFrequencyWeight*freqNorm +
		s.cfg.BalanceWeight*balanceNorm +
		s.cfg.OverdraftWeight*overdraftNorm

	score := int(clamp(math.Round((1-composite)*10), 0, 10))

	zap.L().Debug("scorer: credit evaluated",
		zap.Int("score", score),
		zap.Float64("composite", composite),
		zap.Int("window_transactions", inWindow),
		zap.Int("overdrafts", overdrafts),
	)

	return CreditResult{Score: score, Metrics: m}
}

func foldAll(fold cases.Caser, keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			out = append(out, fold.String(kw))
		}
	}
	return out
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
