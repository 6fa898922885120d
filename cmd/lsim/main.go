package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"lifesim/internal/catalog"
	cl "lifesim/internal/cli"
	"lifesim/internal/config"
	"lifesim/internal/credit"
	"lifesim/internal/events"
	"lifesim/internal/inflation"
	"lifesim/internal/randsrc"
	"lifesim/internal/sim"
	"lifesim/internal/store"
	"lifesim/internal/threshold"
)

type options struct {
	cfg     config.CLIConfig
	verbose bool
}

func main() {
	cfg, err := config.LoadCLIFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	opts := &options{cfg: cfg}

	root := &cobra.Command{
		Use:          "lsim",
		Short:        "Life-sim economy toolkit",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.cfg.APIBaseURL, "api", opts.cfg.APIBaseURL, "API base URL for remote commands")
	root.PersistentFlags().StringVar(&opts.cfg.CatalogPath, "catalog", opts.cfg.CatalogPath, "YAML catalog override")
	root.PersistentFlags().StringVar(&opts.cfg.JournalPath, "journal", opts.cfg.JournalPath, "local SQLite journal")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log engine activity to stderr")

	root.AddCommand(
		newPriceCmd(opts),
		newCreditCmd(opts),
		newThresholdsCmd(opts),
		newSimulateCmd(opts),
		newWorldCmd(opts),
		newHistoryCmd(opts),
		newWatchCmd(opts),
		newRemoteCmd(opts),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func (o *options) logger() *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = o.cfg.SlogLevel()
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func (o *options) pipeline() (*sim.Pipeline, error) {
	cat, err := catalog.Load(o.cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	ix, err := inflation.NewIndexer(o.cfg.IndexerSize)
	if err != nil {
		return nil, err
	}
	return sim.NewPipeline(cat, ix), nil
}

// service opens the journal and wraps it in a simulation service. The caller
// closes the returned store.
func (o *options) service(seed int64) (*sim.Service, *store.SQLite, error) {
	p, err := o.pipeline()
	if err != nil {
		return nil, nil, err
	}
	if seed == 0 {
		seed = o.cfg.Seed
	}
	if seed == 0 {
		if seed, err = randsrc.NewSeed(); err != nil {
			return nil, nil, err
		}
	}
	journal, err := store.OpenSQLite(o.cfg.JournalPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open journal: %w", err)
	}
	return sim.NewService(journal, p, seed, o.logger()), journal, nil
}

func (o *options) client() *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(o.cfg.APIBaseURL), "/"))
}

func countryOf(cat *catalog.Catalog, id string) (events.Country, error) {
	countries := cat.SeedCountries()
	if len(countries) == 0 {
		return events.Country{}, fmt.Errorf("catalog has no countries")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return countries[0], nil
	}
	for _, c := range countries {
		if strings.EqualFold(c.ID, id) {
			return c, nil
		}
	}
	return events.Country{}, fmt.Errorf("%w: %s", sim.ErrUnknownCountry, id)
}

func newPriceCmd(opts *options) *cobra.Command {
	var (
		base      float64
		category  string
		countryID string
		fromYear  int
		toYear    int
	)
	cmd := &cobra.Command{
		Use:   "price [base]",
		Short: "Index a base-year price to a later year",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := opts.pipeline()
			if err != nil {
				return err
			}
			if len(args) > 0 {
				if _, err := fmt.Sscan(args[0], &base); err != nil {
					return fmt.Errorf("invalid base price %q", args[0])
				}
			} else if base <= 0 && isInteractive() {
				if base, err = promptFloat("Base price", 0); err != nil {
					return err
				}
			}
			country, err := countryOf(p.Catalog(), countryID)
			if err != nil {
				return err
			}
			if fromYear == 0 {
				fromYear = country.BaseYear
			}
			if toYear == 0 {
				toYear = p.Catalog().StartYear
			}
			cat := inflation.ParseCategory(category)
			econ := country.Economy()
			renderPrice(string(cat), base,
				p.Indexer().Price(base, econ, cat, fromYear, toYear),
				p.Indexer().Multiplier(econ, cat, fromYear, toYear),
			)
			return nil
		},
	}
	cmd.Flags().Float64Var(&base, "base", 0, "base-year price")
	cmd.Flags().StringVar(&category, "category", string(inflation.CategoryDefault), "price category")
	cmd.Flags().StringVar(&countryID, "country", "", "catalog country id")
	cmd.Flags().IntVar(&fromYear, "from", 0, "base year (defaults to the country's)")
	cmd.Flags().IntVar(&toYear, "to", 0, "target year (defaults to the catalog start year)")
	return cmd
}

func newCreditCmd(opts *options) *cobra.Command {
	creditCmd := &cobra.Command{
		Use:   "credit",
		Short: "Credit rating, loans and amortization",
	}
	creditCmd.AddCommand(newCreditRatingCmd(opts))
	creditCmd.AddCommand(newCreditLoanCmd(opts))
	creditCmd.AddCommand(newCreditScheduleCmd())
	return creditCmd
}

func newCreditRatingCmd(opts *options) *cobra.Command {
	var income, cash float64
	cmd := &cobra.Command{
		Use:   "rating",
		Short: "Score a borrower with no open debts",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := opts.pipeline()
			if err != nil {
				return err
			}
			engine := p.Credit()
			capacity := make(map[credit.DebtType]float64)
			for _, t := range []credit.DebtType{credit.DebtMortgage, credit.DebtAuto, credit.DebtStudent, credit.DebtConsumer, credit.DebtBusiness} {
				capacity[t] = engine.MaxLoanAmount(income, nil, t)
			}
			renderProfile(engine.Profile(nil, income, cash), capacity)
			return nil
		},
	}
	cmd.Flags().Float64Var(&income, "income", 0, "monthly income")
	cmd.Flags().Float64Var(&cash, "cash", 0, "cash on hand")
	return cmd
}

func newCreditLoanCmd(opts *options) *cobra.Command {
	var (
		req       credit.LoanRequest
		debtType  string
		countryID string
		seed      int64
	)
	cmd := &cobra.Command{
		Use:   "loan",
		Short: "Apply for a loan priced off a country's key rate",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := opts.pipeline()
			if err != nil {
				return err
			}
			if req.Amount <= 0 && isInteractive() {
				choice, err := promptChoice("Loan type", []string{"mortgage", "auto", "student", "consumer", "business"}, "consumer")
				if err != nil {
					return err
				}
				debtType = choice
				if req.Amount, err = promptFloat("Amount", 0); err != nil {
					return err
				}
			}
			country, err := countryOf(p.Catalog(), countryID)
			if err != nil {
				return err
			}
			req.Type = credit.ParseDebtType(debtType)
			if !cmd.Flags().Changed("key-rate") {
				req.KeyRate = country.KeyRate
			}
			if seed == 0 {
				if seed, err = randsrc.NewSeed(); err != nil {
					return err
				}
			}
			debt, v := p.Credit().Originate(randsrc.New(seed), req)
			renderLoan(debt, v.IsValid, string(v.Code), v.Error)
			if v.IsValid {
				fmt.Println()
				renderSchedule(credit.Schedule(debt.PrincipalAmount, debt.InterestRate, debt.TermQuarters))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&debtType, "type", string(credit.DebtConsumer), "mortgage, auto, student, consumer or business")
	cmd.Flags().Float64Var(&req.Amount, "amount", 0, "principal requested")
	cmd.Flags().Float64Var(&req.Cash, "cash", 0, "cash on hand")
	cmd.Flags().Float64Var(&req.MonthlyIncome, "income", 0, "monthly income")
	cmd.Flags().Float64Var(&req.KeyRate, "key-rate", 0, "central bank key rate (defaults to the country's)")
	cmd.Flags().StringVar(&countryID, "country", "", "catalog country id")
	cmd.Flags().Int64Var(&seed, "seed", 0, "seed for the loan id")
	return cmd
}

func newCreditScheduleCmd() *cobra.Command {
	var (
		principal float64
		rate      float64
		quarters  int
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Print a quarterly amortization table",
		RunE: func(cmd *cobra.Command, args []string) error {
			if principal <= 0 || quarters <= 0 {
				return fmt.Errorf("principal and quarters must be positive")
			}
			renderSchedule(credit.Schedule(principal, rate, quarters))
			return nil
		},
	}
	cmd.Flags().Float64Var(&principal, "principal", 0, "loan principal")
	cmd.Flags().Float64Var(&rate, "rate", 0, "annual interest rate in percent")
	cmd.Flags().IntVar(&quarters, "quarters", 0, "term in quarters")
	return cmd
}

func newThresholdsCmd(opts *options) *cobra.Command {
	stats := threshold.Stats{Health: 100, Sanity: 100, Intelligence: 100, Happiness: 100}
	cmd := &cobra.Command{
		Use:   "thresholds",
		Short: "Show the effects of a set of player stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := opts.pipeline()
			if err != nil {
				return err
			}
			renderThresholds(p.Thresholds().Evaluate(stats))
			return nil
		},
	}
	cmd.Flags().Float64Var(&stats.Health, "health", stats.Health, "health 0-100")
	cmd.Flags().Float64Var(&stats.Sanity, "sanity", stats.Sanity, "sanity 0-100")
	cmd.Flags().Float64Var(&stats.Intelligence, "intelligence", stats.Intelligence, "intelligence 0-100")
	cmd.Flags().Float64Var(&stats.Happiness, "happiness", stats.Happiness, "happiness 0-100")
	return cmd
}

func newSimulateCmd(opts *options) *cobra.Command {
	var (
		ticks int
		seed  int64
		quiet bool
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Advance the local world by a number of quarters",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ticks <= 0 {
				return fmt.Errorf("ticks must be positive")
			}
			svc, journal, err := opts.service(seed)
			if err != nil {
				return err
			}
			defer journal.Close()

			reports, err := svc.Run(cmd.Context(), ticks)
			for _, r := range reports {
				if !quiet {
					renderReport(r)
				}
			}
			if err != nil {
				return err
			}
			w, err := svc.World(cmd.Context())
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Advanced %d quarter(s); world is at %d Q%d (tick %d).", len(reports), w.Year, w.Quarter, w.Tick))
			return nil
		},
	}
	cmd.Flags().IntVarP(&ticks, "ticks", "n", 4, "quarters to simulate")
	cmd.Flags().Int64Var(&seed, "seed", 0, "seed used when the journal is empty")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "only print the summary")
	return cmd
}

func newWorldCmd(opts *options) *cobra.Command {
	var seed int64
	cmd := &cobra.Command{
		Use:   "world",
		Short: "Show the local world snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, journal, err := opts.service(seed)
			if err != nil {
				return err
			}
			defer journal.Close()
			w, err := svc.World(cmd.Context())
			if err != nil {
				return err
			}
			renderWorld(w)
			return nil
		},
	}
	cmd.Flags().Int64Var(&seed, "seed", 0, "seed used when the journal is empty")
	return cmd
}

func newHistoryCmd(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Replay recent tick reports from the local journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			journal, err := store.OpenSQLite(opts.cfg.JournalPath)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer journal.Close()
			reports, err := journal.Reports(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(reports) == 0 {
				printInfo("No ticks recorded yet. Run `lsim simulate` first.")
				return nil
			}
			for i := len(reports) - 1; i >= 0; i-- {
				renderReport(reports[i])
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 4, "number of reports")
	return cmd
}

func newRemoteCmd(opts *options) *cobra.Command {
	remote := &cobra.Command{
		Use:     "remote",
		Short:   "Talk to a running lifesim API",
		Aliases: []string{"r"},
	}

	remote.AddCommand(&cobra.Command{
		Use:   "health",
		Short: "Check the API is up",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := opts.client().Health(ctx); err != nil {
				return err
			}
			printSuccess("API is healthy.")
			return nil
		},
	})

	remote.AddCommand(&cobra.Command{
		Use:   "world",
		Short: "Show the server's world snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			w, err := opts.client().World(ctx)
			if err != nil {
				return err
			}
			renderWorld(w)
			return nil
		},
	})

	remote.AddCommand(&cobra.Command{
		Use:   "tick",
		Short: "Advance the server's world by one quarter",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			r, err := opts.client().Tick(ctx)
			if err != nil {
				return err
			}
			renderReport(r)
			return nil
		},
	})

	var limit int
	reports := &cobra.Command{
		Use:   "reports",
		Short: "List recent tick reports from the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := opts.client().Reports(ctx, limit)
			if err != nil {
				return err
			}
			if len(out) == 0 {
				printWarn("Server has no tick reports yet.")
				return nil
			}
			for i := len(out) - 1; i >= 0; i-- {
				renderReport(out[i])
			}
			return nil
		},
	}
	reports.Flags().IntVar(&limit, "limit", 4, "number of reports")
	remote.AddCommand(reports)

	stats := threshold.Stats{Health: 100, Sanity: 100, Intelligence: 100, Happiness: 100}
	thresholds := &cobra.Command{
		Use:   "thresholds",
		Short: "Evaluate player stats on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			r, err := opts.client().Thresholds(ctx, stats)
			if err != nil {
				return err
			}
			renderThresholds(r)
			return nil
		},
	}
	thresholds.Flags().Float64Var(&stats.Health, "health", stats.Health, "health 0-100")
	thresholds.Flags().Float64Var(&stats.Sanity, "sanity", stats.Sanity, "sanity 0-100")
	thresholds.Flags().Float64Var(&stats.Intelligence, "intelligence", stats.Intelligence, "intelligence 0-100")
	thresholds.Flags().Float64Var(&stats.Happiness, "happiness", stats.Happiness, "happiness 0-100")
	remote.AddCommand(thresholds)

	return remote
}
