// Package credit scores borrowers, bounds serviceable loan amounts and
// amortizes debts with level quarterly payments.
package credit

import (
	"math"
	"strings"

	"lifesim/internal/rules"
)

type DebtType string

const (
	DebtMortgage DebtType = "mortgage"
	DebtBusiness DebtType = "business"
	DebtAuto     DebtType = "auto"
	DebtStudent  DebtType = "student"
	DebtConsumer DebtType = "consumer"
)

// Debt is one outstanding loan. Amounts are in current money, InterestRate
// is an annual percentage.
type Debt struct {
	ID                string   `json:"id"`
	Type              DebtType `json:"type"`
	PrincipalAmount   float64  `json:"principal_amount"`
	RemainingAmount   float64  `json:"remaining_amount"`
	InterestRate      float64  `json:"interest_rate"`
	QuarterlyPayment  float64  `json:"quarterly_payment"`
	TermQuarters      int      `json:"term_quarters"`
	RemainingQuarters int      `json:"remaining_quarters"`
}

// TypePolicy bounds lending for one debt type.
type TypePolicy struct {
	MaxPaymentRatio float64 `json:"max_payment_ratio" yaml:"max_payment_ratio"`
	TermMonths      int     `json:"term_months" yaml:"term_months"`
	ServiceLimit    float64 `json:"service_limit" yaml:"service_limit"`
	AnnualRate      float64 `json:"annual_rate" yaml:"annual_rate"`
}

// Policy holds the rating and lending constants.
type Policy struct {
	BaseRating       int                     `json:"base_rating" yaml:"base_rating"`
	MinRating        int                     `json:"min_rating" yaml:"min_rating"`
	MaxRating        int                     `json:"max_rating" yaml:"max_rating"`
	PerDebtPenalty   int                     `json:"per_debt_penalty" yaml:"per_debt_penalty"`
	ServiceThreshold float64                 `json:"service_threshold" yaml:"service_threshold"`
	ServicePenalty   int                     `json:"service_penalty" yaml:"service_penalty"`
	ServiceSlope     float64                 `json:"service_slope" yaml:"service_slope"`
	ServiceMaxExtra  int                     `json:"service_max_extra" yaml:"service_max_extra"`
	HighCash         float64                 `json:"high_cash" yaml:"high_cash"`
	HighCashBonus    int                     `json:"high_cash_bonus" yaml:"high_cash_bonus"`
	LowCash          float64                 `json:"low_cash" yaml:"low_cash"`
	LowCashPenalty   int                     `json:"low_cash_penalty" yaml:"low_cash_penalty"`
	ApprovalRating   int                     `json:"approval_rating" yaml:"approval_rating"`
	Types            map[DebtType]TypePolicy `json:"types" yaml:"types"`
}

func DefaultPolicy() Policy {
	return Policy{
		BaseRating:       70,
		MinRating:        0,
		MaxRating:        100,
		PerDebtPenalty:   5,
		ServiceThreshold: 0.4,
		ServicePenalty:   20,
		ServiceSlope:     50,
		ServiceMaxExtra:  30,
		HighCash:         1_000_000,
		HighCashBonus:    10,
		LowCash:          10_000,
		LowCashPenalty:   10,
		ApprovalRating:   40,
		Types: map[DebtType]TypePolicy{
			DebtMortgage: {MaxPaymentRatio: 0.5, TermMonths: 240, ServiceLimit: 0.5, AnnualRate: 6},
			DebtBusiness: {MaxPaymentRatio: 0.5, TermMonths: 36, ServiceLimit: 0.5, AnnualRate: 10},
			DebtAuto:     {MaxPaymentRatio: 0.35, TermMonths: 48, ServiceLimit: 0.4, AnnualRate: 8},
			DebtStudent:  {MaxPaymentRatio: 0.3, TermMonths: 60, ServiceLimit: 0.4, AnnualRate: 4},
			DebtConsumer: {MaxPaymentRatio: 0.3, TermMonths: 12, ServiceLimit: 0.4, AnnualRate: 18},
		},
	}
}

// ParseDebtType normalizes input; unknown types fall back to consumer, the
// most restrictive product.
func ParseDebtType(raw string) DebtType {
	t := DebtType(strings.ToLower(strings.TrimSpace(raw)))
	switch t {
	case DebtMortgage, DebtBusiness, DebtAuto, DebtStudent, DebtConsumer:
		return t
	default:
		return DebtConsumer
	}
}

// Engine evaluates credit against one Policy.
type Engine struct {
	policy Policy
}

func NewEngine(policy Policy) *Engine {
	def := DefaultPolicy()
	if policy.MaxRating <= policy.MinRating {
		policy.MinRating, policy.MaxRating = def.MinRating, def.MaxRating
	}
	if policy.BaseRating == 0 {
		policy.BaseRating = def.BaseRating
	}
	if policy.ServiceThreshold <= 0 {
		policy.ServiceThreshold = def.ServiceThreshold
	}
	if len(policy.Types) == 0 {
		policy.Types = def.Types
	}
	if _, ok := policy.Types[DebtConsumer]; !ok {
		types := make(map[DebtType]TypePolicy, len(policy.Types)+1)
		for k, v := range policy.Types {
			types[k] = v
		}
		types[DebtConsumer] = def.Types[DebtConsumer]
		policy.Types = types
	}
	return &Engine{policy: policy}
}

func (e *Engine) Policy() Policy { return e.policy }

func (e *Engine) typePolicy(t DebtType) TypePolicy {
	if p, ok := e.policy.Types[t]; ok {
		return p
	}
	return e.policy.Types[DebtConsumer]
}

// Profile is the derived credit snapshot; it is never persisted.
type Profile struct {
	Rating       int     `json:"rating"`
	ActiveDebts  int     `json:"active_debts"`
	MonthlyDebt  float64 `json:"monthly_debt_service"`
	ServiceRatio float64 `json:"service_ratio"`
}

// MonthlyDebtService sums the monthly share of every quarterly payment.
func MonthlyDebtService(debts []Debt) float64 {
	total := 0.0
	for _, d := range active(debts) {
		if p := safe(d.QuarterlyPayment); p > 0 {
			total += p / 3
		}
	}
	return total
}

// serviceRatio returns +Inf when there is debt service but no income.
func serviceRatio(debts []Debt, monthlyIncome float64) float64 {
	service := MonthlyDebtService(debts)
	income := safe(monthlyIncome)
	if income <= 0 {
		if service > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return service / income
}

// Rating scores a borrower inside [MinRating, MaxRating].
func (e *Engine) Rating(debts []Debt, monthlyIncome, cash float64) int {
	return e.Profile(debts, monthlyIncome, cash).Rating
}

func (e *Engine) Profile(debts []Debt, monthlyIncome, cash float64) Profile {
	p := e.policy
	live := active(debts)
	ratio := serviceRatio(live, monthlyIncome)

	score := p.BaseRating - p.PerDebtPenalty*len(live)
	if ratio > p.ServiceThreshold {
		extra := p.ServiceMaxExtra
		if !math.IsInf(ratio, 1) {
			extra = int(math.Min(float64(p.ServiceMaxExtra), math.Round((ratio-p.ServiceThreshold)*p.ServiceSlope)))
		}
		score -= p.ServicePenalty + extra
	}
	cash = safe(cash)
	switch {
	case cash >= p.HighCash:
		score += p.HighCashBonus
	case cash < p.LowCash:
		score -= p.LowCashPenalty
	}
	if score < p.MinRating {
		score = p.MinRating
	}
	if score > p.MaxRating {
		score = p.MaxRating
	}

	reportRatio := ratio
	if math.IsInf(reportRatio, 1) {
		reportRatio = 0
	}
	return Profile{
		Rating:       score,
		ActiveDebts:  len(live),
		MonthlyDebt:  MonthlyDebtService(live),
		ServiceRatio: reportRatio,
	}
}

// MaxLoanAmount is the type's payment ratio of income times its term in
// months, or 0 once existing service already exceeds the type's limit.
func (e *Engine) MaxLoanAmount(monthlyIncome float64, debts []Debt, debtType DebtType) float64 {
	income := safe(monthlyIncome)
	if income <= 0 {
		return 0
	}
	tp := e.typePolicy(debtType)
	if serviceRatio(debts, income) > tp.ServiceLimit {
		return 0
	}
	amount := tp.MaxPaymentRatio * income * float64(tp.TermMonths)
	return safe(math.Max(0, amount))
}

// CanTakeLoan reports whether EvaluateLoan approves the request.
func (e *Engine) CanTakeLoan(amount float64, debtType DebtType, cash, monthlyIncome float64, debts []Debt) bool {
	return e.EvaluateLoan(amount, debtType, cash, monthlyIncome, debts).IsValid
}

// EvaluateLoan checks amount and rating and explains any rejection.
func (e *Engine) EvaluateLoan(amount float64, debtType DebtType, cash, monthlyIncome float64, debts []Debt) rules.Validation {
	amount = safe(amount)
	rating := e.Rating(debts, monthlyIncome, cash)
	maxAmount := e.MaxLoanAmount(monthlyIncome, debts, debtType)
	details := map[string]any{
		"rating":          rating,
		"min_rating":      e.policy.ApprovalRating,
		"max_loan_amount": maxAmount,
		"requested":       amount,
		"debt_type":       string(debtType),
	}
	switch {
	case amount <= 0:
		return rules.Reject(rules.CodeInvalidAmount, "loan amount must be > 0", details)
	case amount > maxAmount:
		return rules.Reject(rules.CodeExceedsCapacity, "loan request exceeds borrowing capacity", details)
	case rating < e.policy.ApprovalRating:
		return rules.Reject(rules.CodeRatingTooLow, "credit rating below approval minimum", details)
	}
	return rules.OK(details)
}

func active(debts []Debt) []Debt {
	out := make([]Debt, 0, len(debts))
	for _, d := range debts {
		if d.RemainingQuarters > 0 && safe(d.RemainingAmount) > 0 {
			out = append(out, d)
		}
	}
	return out
}

func safe(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
