package credit

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"lifesim/internal/randsrc"
	"lifesim/internal/rules"
)

// QuarterlyPayment is the level payment that amortizes principal over
// termQuarters at annualRate percent, compounded quarterly.
func QuarterlyPayment(principal, annualRate float64, termQuarters int) float64 {
	principal = safe(principal)
	if principal <= 0 || termQuarters <= 0 {
		return 0
	}
	r := periodRate(annualRate)
	if r == 0 {
		return principal / float64(termQuarters)
	}
	payment := principal * r / (1 - math.Pow(1+r, -float64(termQuarters)))
	return safe(payment)
}

func periodRate(annualRate float64) float64 {
	annualRate = safe(annualRate)
	if annualRate <= 0 {
		return 0
	}
	return annualRate / 100 / 4
}

// LoanRequest is everything underwriting needs to approve and price a loan.
type LoanRequest struct {
	Type          DebtType `json:"type"`
	Amount        float64  `json:"amount"`
	Cash          float64  `json:"cash"`
	MonthlyIncome float64  `json:"monthly_income"`
	Debts         []Debt   `json:"debts"`
	KeyRate       float64  `json:"key_rate"`
}

// Originate underwrites req and, when approved, returns the new Debt priced
// at the type's spread over the central bank key rate.
func (e *Engine) Originate(rng randsrc.Source, req LoanRequest) (Debt, rules.Validation) {
	req.Type = ParseDebtType(string(req.Type))
	v := e.EvaluateLoan(req.Amount, req.Type, req.Cash, req.MonthlyIncome, req.Debts)
	if !v.IsValid {
		return Debt{}, v
	}
	tp := e.typePolicy(req.Type)
	rate := math.Max(0, tp.AnnualRate+safe(req.KeyRate))
	term := tp.TermMonths / 3
	if term < 1 {
		term = 1
	}
	d := Debt{
		ID:                newID(rng),
		Type:              req.Type,
		PrincipalAmount:   req.Amount,
		RemainingAmount:   req.Amount,
		InterestRate:      rate,
		QuarterlyPayment:  QuarterlyPayment(req.Amount, rate, term),
		TermQuarters:      term,
		RemainingQuarters: term,
	}
	v.Details["interest_rate"] = rate
	v.Details["quarterly_payment"] = d.QuarterlyPayment
	return d, v
}

func newID(rng randsrc.Source) string {
	if rng != nil {
		if id, err := uuid.NewRandomFromReader(rng); err == nil {
			return id.String()
		}
	}
	return uuid.NewString()
}

// Payment records one applied installment.
type Payment struct {
	DebtID    string  `json:"debt_id"`
	Amount    float64 `json:"amount"`
	Interest  float64 `json:"interest"`
	Principal float64 `json:"principal"`
	Remaining float64 `json:"remaining"`
	Settled   bool    `json:"settled"`
}

// Settled reports whether nothing is owed any more.
func (d Debt) Settled() bool {
	return d.RemainingQuarters <= 0 || d.RemainingAmount <= 0.005
}

// ApplyPayment charges one quarterly installment. The final installment
// clears whatever remains so rounding never leaves a tail.
func ApplyPayment(d Debt) (Debt, Payment) {
	if d.Settled() {
		d.RemainingAmount = 0
		d.RemainingQuarters = 0
		return d, Payment{DebtID: d.ID, Settled: true}
	}
	remaining := safe(d.RemainingAmount)
	interest := remaining * periodRate(d.InterestRate)
	amount := safe(d.QuarterlyPayment)
	if amount <= 0 {
		amount = QuarterlyPayment(remaining, d.InterestRate, d.RemainingQuarters)
	}
	principal := amount - interest
	if d.RemainingQuarters == 1 || principal >= remaining {
		principal = remaining
		amount = interest + principal
	}
	if principal < 0 {
		principal = 0
	}

	d.RemainingAmount = remaining - principal
	d.RemainingQuarters--
	if d.RemainingAmount <= 0.005 {
		d.RemainingAmount = 0
		d.RemainingQuarters = 0
	}
	return d, Payment{
		DebtID:    d.ID,
		Amount:    amount,
		Interest:  interest,
		Principal: principal,
		Remaining: d.RemainingAmount,
		Settled:   d.Settled(),
	}
}

// Repay applies an early repayment and re-levels the installment over the
// quarters left. It returns the amount actually applied.
func Repay(d Debt, amount float64) (Debt, float64, error) {
	amount = safe(amount)
	if amount <= 0 {
		return d, 0, fmt.Errorf("repay %s: amount must be > 0", d.ID)
	}
	if d.Settled() {
		return d, 0, fmt.Errorf("repay %s: debt already settled", d.ID)
	}
	applied := math.Min(amount, d.RemainingAmount)
	d.RemainingAmount -= applied
	if d.RemainingAmount <= 0.005 {
		d.RemainingAmount = 0
		d.RemainingQuarters = 0
		d.QuarterlyPayment = 0
		return d, applied, nil
	}
	d.QuarterlyPayment = QuarterlyPayment(d.RemainingAmount, d.InterestRate, d.RemainingQuarters)
	return d, applied, nil
}

// Installment is one row of an amortization table.
type Installment struct {
	Quarter   int     `json:"quarter"`
	Payment   float64 `json:"payment"`
	Interest  float64 `json:"interest"`
	Principal float64 `json:"principal"`
	Balance   float64 `json:"balance"`
}

type Amortization struct {
	Payment       float64       `json:"quarterly_payment"`
	TotalInterest float64       `json:"total_interest"`
	TotalPaid     float64       `json:"total_paid"`
	Rows          []Installment `json:"rows"`
}

// Schedule builds the full table in cents. The last row absorbs the
// rounding drift so the balance ends at exactly zero.
func Schedule(principal, annualRate float64, termQuarters int) Amortization {
	principal = safe(principal)
	if principal <= 0 || termQuarters <= 0 {
		return Amortization{Rows: []Installment{}}
	}
	payment := decimal.NewFromFloat(QuarterlyPayment(principal, annualRate, termQuarters)).Round(2)
	rate := decimal.NewFromFloat(periodRate(annualRate))
	balance := decimal.NewFromFloat(principal).Round(2)

	rows := make([]Installment, 0, termQuarters)
	totalInterest := decimal.Zero
	totalPaid := decimal.Zero
	for q := 1; q <= termQuarters && balance.IsPositive(); q++ {
		interest := balance.Mul(rate).Round(2)
		pay := payment
		princ := pay.Sub(interest)
		if q == termQuarters || princ.GreaterThan(balance) {
			princ = balance
			pay = interest.Add(princ)
		}
		balance = balance.Sub(princ)
		totalInterest = totalInterest.Add(interest)
		totalPaid = totalPaid.Add(pay)
		rows = append(rows, Installment{
			Quarter:   q,
			Payment:   pay.InexactFloat64(),
			Interest:  interest.InexactFloat64(),
			Principal: princ.InexactFloat64(),
			Balance:   balance.InexactFloat64(),
		})
	}
	return Amortization{
		Payment:       payment.InexactFloat64(),
		TotalInterest: totalInterest.InexactFloat64(),
		TotalPaid:     totalPaid.InexactFloat64(),
		Rows:          rows,
	}
}
