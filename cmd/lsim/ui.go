package main

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"golang.org/x/term"

	"lifesim/internal/credit"
	"lifesim/internal/sim"
	"lifesim/internal/threshold"
)

var (
	accent  = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen, color.Bold)
	warn    = color.New(color.FgYellow, color.Bold)
	danger  = color.New(color.FgRed, color.Bold)
	neutral = color.New(color.FgHiWhite)

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14")).MarginTop(1)
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	stdinReader = bufio.NewReader(os.Stdin)
)

func init() {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		color.NoColor = true
	}
}

func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptChoice(label string, options []string, defaultValue string) (string, error) {
	normalized := make(map[string]struct{}, len(options))
	for _, opt := range options {
		normalized[strings.ToLower(strings.TrimSpace(opt))] = struct{}{}
	}
	for {
		fmt.Printf("%s (%s) [%s]: ", label, strings.Join(options, "/"), defaultValue)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.ToLower(strings.TrimSpace(text))
		if text == "" {
			text = strings.ToLower(strings.TrimSpace(defaultValue))
		}
		if _, ok := normalized[text]; ok {
			return text, nil
		}
		printWarn("Invalid option. Please pick one of the listed values.")
	}
}

func promptFloat(label string, floor float64) (float64, error) {
	for {
		text, err := promptRequired(label)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", ""), 64)
		if err != nil {
			printWarn("Enter a valid number.")
			continue
		}
		if v <= floor {
			printWarn(fmt.Sprintf("Value must be > %.2f", floor))
			continue
		}
		return v, nil
	}
}

func printTitle(title string) {
	fmt.Println(titleStyle.Render(title))
}

func printHeader(format string, args ...any) {
	fmt.Println(headerStyle.Render(fmt.Sprintf(format, args...)))
}

func renderPrice(category string, base, price, multiplier float64) {
	printTitle("== INDEXED PRICE ==")
	fmt.Printf("Category:    %s\n", category)
	fmt.Printf("Base price:  %s\n", formatMoney(base))
	fmt.Printf("Multiplier:  %.4f\n", multiplier)
	fmt.Printf("Price now:   %s\n", accent.Sprint(formatMoney(price)))
}

func renderProfile(p credit.Profile, capacity map[credit.DebtType]float64) {
	printTitle("== CREDIT PROFILE ==")
	fmt.Printf("Rating:        %s\n", colorizeRating(p.Rating))
	fmt.Printf("Active debts:  %d\n", p.ActiveDebts)
	fmt.Printf("Monthly debt:  %s\n", formatMoney(p.MonthlyDebt))
	fmt.Printf("Service ratio: %s\n", formatRatio(p.ServiceRatio))
	if len(capacity) == 0 {
		return
	}
	fmt.Println()
	printHeader("%-10s %14s", "TYPE", "MAX LOAN")
	for _, t := range sortedDebtTypes(capacity) {
		fmt.Printf("%-10s %14s\n", t, formatMoney(capacity[t]))
	}
}

func renderLoan(debt credit.Debt, approved bool, code, reason string) {
	printTitle("== LOAN APPLICATION ==")
	if !approved {
		printError(fmt.Sprintf("Rejected (%s): %s", code, reason))
		return
	}
	printSuccess("Approved")
	fmt.Printf("Type:              %s\n", debt.Type)
	fmt.Printf("Principal:         %s\n", formatMoney(debt.PrincipalAmount))
	fmt.Printf("Rate:              %.2f%%\n", debt.InterestRate)
	fmt.Printf("Term:              %d quarters\n", debt.TermQuarters)
	fmt.Printf("Quarterly payment: %s\n", formatMoney(debt.QuarterlyPayment))
}

func renderSchedule(a credit.Amortization) {
	printTitle("== AMORTIZATION ==")
	printHeader("%7s %12s %12s %12s %14s", "QUARTER", "PAYMENT", "INTEREST", "PRINCIPAL", "BALANCE")
	for _, row := range a.Rows {
		fmt.Printf("%7d %12s %12s %12s %14s\n",
			row.Quarter,
			formatMoney(row.Payment),
			formatMoney(row.Interest),
			formatMoney(row.Principal),
			formatMoney(row.Balance),
		)
	}
	fmt.Println()
	fmt.Printf("Total interest: %s\n", formatMoney(a.TotalInterest))
	fmt.Printf("Total paid:     %s\n", formatMoney(a.TotalPaid))
}

func renderThresholds(r threshold.Result) {
	printTitle("== STAT EFFECTS ==")
	fmt.Printf("Work:     %s  efficiency %s\n", yesNo(r.CanWork), formatPercent(r.WorkEfficiency))
	fmt.Printf("Study:    %s  efficiency %s\n", yesNo(r.CanStudy), formatPercent(r.LearningEfficiency))
	fmt.Printf("Business: %s  efficiency %s\n", yesNo(r.CanManageBusiness), formatPercent(r.BusinessEfficiency))
	fmt.Printf("Medical:  %s\n", formatMoney(r.MedicalCost))
	fmt.Printf("Therapy:  %s\n", formatMoney(r.TherapyCost))
	if len(r.Effects) == 0 {
		printSuccess("All stats normal.")
		return
	}
	fmt.Println()
	printHeader("%-13s %6s %-9s %-22s", "STAT", "VALUE", "BAND", "EVENT")
	for _, e := range r.Effects {
		band := e.Band.String()
		switch e.Band {
		case threshold.BandCritical:
			band = danger.Sprintf("%-9s", band)
		case threshold.BandSevere:
			band = warn.Sprintf("%-9s", band)
		default:
			band = fmt.Sprintf("%-9s", band)
		}
		fmt.Printf("%-13s %6.0f %s %-22s\n", e.Stat, e.Value, band, e.Event)
	}
}

func renderReport(r sim.Report) {
	title := fmt.Sprintf("== TICK %d (%d Q%d) ==", r.Tick, r.Year, r.Quarter)
	if r.YearRolled {
		title += "  year closed"
	}
	printTitle(title)

	printHeader("%-12s %9s %9s %9s %9s  %s", "COUNTRY", "INFL", "RATE", "GDP", "UNEMP", "EVENT")
	for _, c := range r.Countries {
		event := mutedStyle.Render("-")
		if c.Triggered != nil {
			event = warn.Sprintf("%s (%dq)", c.Triggered.Type, c.Triggered.Duration)
		} else if c.Drifted {
			event = mutedStyle.Render("drift")
		}
		fmt.Printf("%-12s %8.2f%% %8.2f%% %8.2f%% %8.2f%%  %s\n",
			truncate(c.CountryID, 12), c.Inflation, c.KeyRate, c.GDPGrowth, c.Unemployment, event)
	}

	if len(r.Businesses) > 0 {
		fmt.Println()
		printHeader("%-10s %-8s %12s %12s %10s %12s %14s", "BUSINESS", "STATUS", "INCOME", "EXPENSES", "TAX", "PROFIT", "CASH")
		for _, b := range r.Businesses {
			fmt.Printf("%-10s %-8s %12s %12s %10s %12s %14s\n",
				truncate(b.BusinessID, 10),
				b.Status,
				formatMoney(b.Income),
				formatMoney(b.Expenses),
				formatMoney(b.Tax),
				colorizeMoney(b.Profit),
				formatMoney(b.Cash),
			)
		}
	}

	if len(r.Players) > 0 {
		fmt.Println()
		printHeader("%-16s %10s %10s %12s %14s  %s", "PLAYER", "MEDICAL", "THERAPY", "PAYMENTS", "CASH", "NOTES")
		for _, p := range r.Players {
			paid := 0.0
			for _, pay := range p.Payments {
				paid += pay.Amount
			}
			notes := strings.Join(p.Events, ", ")
			if len(p.SettledDebts) > 0 {
				notes = strings.TrimPrefix(notes+", "+fmt.Sprintf("%d debt(s) settled", len(p.SettledDebts)), ", ")
			}
			fmt.Printf("%-16s %10s %10s %12s %14s  %s\n",
				truncate(p.PlayerID, 16),
				formatMoney(p.MedicalCost),
				formatMoney(p.TherapyCost),
				formatMoney(paid),
				colorizeMoney(p.Cash),
				notes,
			)
		}
	}
}

func renderWorld(w sim.World) {
	printTitle(fmt.Sprintf("== WORLD (tick %d, %d Q%d, seed %d) ==", w.Tick, w.Year, w.Quarter, w.Seed))
	printHeader("%-12s %-10s %9s %9s %9s  %s", "COUNTRY", "ARCHETYPE", "INFL", "RATE", "GDP", "ACTIVE EVENTS")
	for _, c := range w.Countries {
		active := make([]string, 0, len(c.ActiveEvents))
		for _, ev := range c.ActiveEvents {
			active = append(active, ev.String())
		}
		fmt.Printf("%-12s %-10s %8.2f%% %8.2f%% %8.2f%%  %s\n",
			truncate(c.ID, 12), c.Archetype, c.Inflation, c.KeyRate, c.GDPGrowth, strings.Join(active, ", "))
	}

	fmt.Println()
	printHeader("%-16s %-10s %14s %8s", "PLAYER", "COUNTRY", "CASH", "DEBTS")
	for _, p := range w.Players {
		fmt.Printf("%-16s %-10s %14s %8d\n", truncate(p.ID, 16), truncate(p.CountryID, 10), colorizeMoney(p.Cash), len(p.Debts))
	}

	fmt.Println()
	printHeader("%-10s %-20s %-8s %-8s %6s %14s", "BUSINESS", "NAME", "KIND", "STATUS", "STAFF", "CASH")
	for _, b := range w.Businesses {
		kind := "-"
		if b.Line != nil {
			kind = string(b.Line.Kind())
		}
		fmt.Printf("%-10s %-20s %-8s %-8s %6d %14s\n",
			truncate(b.ID, 10), truncate(b.Name, 20), kind, b.Status, len(b.Employees), colorizeMoney(b.Cash))
	}
}

func colorizeRating(rating int) string {
	text := strconv.Itoa(rating)
	switch {
	case rating >= 70:
		return success.Sprint(text)
	case rating >= 40:
		return warn.Sprint(text)
	default:
		return danger.Sprint(text)
	}
}

func colorizeMoney(v float64) string {
	text := formatMoney(v)
	switch {
	case v > 0:
		return success.Sprint(text)
	case v < 0:
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}

func yesNo(ok bool) string {
	if ok {
		return success.Sprint("yes")
	}
	return danger.Sprint("no ")
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100)
}

func formatRatio(v float64) string {
	if math.IsInf(v, 1) {
		return "no income"
	}
	return fmt.Sprintf("%.1f%%", v*100)
}

// formatMoney renders v with thousands separators and two decimals.
func formatMoney(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	cents := int64(math.Round(v * 100))
	return fmt.Sprintf("%s%s.%02d", sign, comma(cents/100), cents%100)
}

func comma(v int64) string {
	s := strconv.FormatInt(v, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
		if len(s) > pre {
			b.WriteByte(',')
		}
	}
	for i := pre; i < len(s); i += 3 {
		b.WriteString(s[i : i+3])
		if i+3 < len(s) {
			b.WriteByte(',')
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func sortedDebtTypes(m map[credit.DebtType]float64) []credit.DebtType {
	out := make([]credit.DebtType, 0, len(m))
	for t := range m {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}
