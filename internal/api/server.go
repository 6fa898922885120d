package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"lifesim/internal/business"
	"lifesim/internal/catalog"
	"lifesim/internal/config"
	"lifesim/internal/credit"
	"lifesim/internal/events"
	"lifesim/internal/inflation"
	"lifesim/internal/randsrc"
	"lifesim/internal/rules"
	"lifesim/internal/sim"
	"lifesim/internal/threshold"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

var errInvalidInput = errors.New("invalid input")

type Server struct {
	cfg config.APIConfig
	log *slog.Logger
	sim *sim.Service
	mux *chi.Mux
}

func New(cfg config.APIConfig, logger *slog.Logger, simSvc *sim.Service) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg: cfg,
		log: logger,
		sim: simSvc,
		mux: chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/inflation/price", s.handleInflationPrice)

		r.Post("/credit/rating", s.handleCreditRating)
		r.Post("/credit/loan", s.handleCreditLoan)
		r.Post("/credit/schedule", s.handleCreditSchedule)

		r.Post("/business/financials", s.handleBusinessFinancials)
		r.Post("/business/candidates", s.handleBusinessCandidates)
		r.Post("/business/hire", s.handleBusinessHire)
		r.Post("/business/open", s.handleBusinessOpen)

		r.Post("/thresholds", s.handleThresholds)

		r.Get("/world", s.handleWorld)
		r.Get("/world/reports", s.handleWorldReports)
		r.Post("/world/tick", s.handleWorldTick)
	})
}

// economyInput names a stored country or carries an explicit economy.
type economyInput struct {
	CountryID        string    `json:"country_id"`
	Inflation        float64   `json:"inflation"`
	InflationHistory []float64 `json:"inflation_history"`
	HistoryYear      int       `json:"history_year"`
	SalaryModifier   float64   `json:"salary_modifier"`
	CorporateTaxRate float64   `json:"corporate_tax_rate"`
	KeyRate          float64   `json:"key_rate"`
}

func (s *Server) resolveCountry(ctx context.Context, in economyInput) (events.Country, error) {
	id := strings.TrimSpace(in.CountryID)
	if id == "" {
		return events.Country{
			Inflation:        in.Inflation,
			InflationHistory: in.InflationHistory,
			HistoryYear:      in.HistoryYear,
			SalaryModifier:   in.SalaryModifier,
			CorporateTaxRate: in.CorporateTaxRate,
			KeyRate:          in.KeyRate,
		}, nil
	}
	w, err := s.sim.World(ctx)
	if err != nil {
		return events.Country{}, err
	}
	c, ok := w.Country(id)
	if !ok {
		return events.Country{}, fmt.Errorf("%w: %s", sim.ErrUnknownCountry, id)
	}
	return c, nil
}

func (s *Server) handleInflationPrice(w http.ResponseWriter, r *http.Request) {
	var in struct {
		economyInput
		BasePrice   float64 `json:"base_price"`
		Category    string  `json:"category"`
		BaseYear    int     `json:"base_year"`
		CurrentYear int     `json:"current_year"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	country, err := s.resolveCountry(r.Context(), in.economyInput)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	ix := s.sim.Pipeline().Indexer()
	category := inflation.ParseCategory(in.Category)
	econ := country.Economy()
	writeJSON(w, http.StatusOK, map[string]any{
		"category":   category,
		"multiplier": ix.Multiplier(econ, category, in.BaseYear, in.CurrentYear),
		"price":      ix.Price(in.BasePrice, econ, category, in.BaseYear, in.CurrentYear),
	})
}

func (s *Server) handleCreditRating(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Debts         []credit.Debt `json:"debts"`
		MonthlyIncome float64       `json:"monthly_income"`
		Cash          float64       `json:"cash"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	eng := s.sim.Pipeline().Credit()
	capacity := map[credit.DebtType]float64{}
	for t := range eng.Policy().Types {
		capacity[t] = eng.MaxLoanAmount(in.MonthlyIncome, in.Debts, t)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"profile":       eng.Profile(in.Debts, in.MonthlyIncome, in.Cash),
		"max_loan":      capacity,
		"monthly_debts": credit.MonthlyDebtService(in.Debts),
	})
}

func (s *Server) handleCreditLoan(w http.ResponseWriter, r *http.Request) {
	var in struct {
		credit.LoanRequest
		CountryID string `json:"country_id"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req := in.LoanRequest
	if strings.TrimSpace(in.CountryID) != "" {
		country, err := s.resolveCountry(r.Context(), economyInput{CountryID: in.CountryID})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		req.KeyRate = country.KeyRate
	}
	debt, v := s.sim.Pipeline().Credit().Originate(requestRand(r), req)
	if err := v.Err(); err != nil {
		s.log.Info("loan rejected", "err", err, "amount", req.Amount, "request_id", middleware.GetReqID(r.Context()))
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"validation": v})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"validation": v, "debt": debt})
}

func (s *Server) handleCreditSchedule(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Principal    float64 `json:"principal"`
		AnnualRate   float64 `json:"annual_rate"`
		TermQuarters int     `json:"term_quarters"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Principal <= 0 || in.TermQuarters <= 0 || in.AnnualRate < 0 {
		writeDomainError(w, fmt.Errorf("%w: principal and term must be positive, rate non-negative", errInvalidInput))
		return
	}
	writeJSON(w, http.StatusOK, credit.Schedule(in.Principal, in.AnnualRate, in.TermQuarters))
}

func (s *Server) handleBusinessFinancials(w http.ResponseWriter, r *http.Request) {
	var in struct {
		economyInput
		Business         business.Business `json:"business"`
		Active           *bool             `json:"active"`
		Player           *playerInput      `json:"player"`
		MarketMultiplier float64           `json:"market_multiplier"`
		CurrentYear      int               `json:"current_year"`
		Seed             int64             `json:"seed"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	country, err := s.resolveCountry(r.Context(), in.economyInput)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	active := in.Business.Status == business.StatusActive
	if in.Active != nil {
		active = *in.Active
	}
	var rng randsrc.Source
	if in.Seed != 0 {
		rng = randsrc.New(in.Seed)
	}
	fin := s.sim.Pipeline().Business().Calculate(business.Input{
		Business:         in.Business,
		Active:           active,
		Player:           s.ownerOf(in.Player),
		MarketMultiplier: in.MarketMultiplier,
		Economy:          country.Economy(),
		CorporateTaxRate: country.CorporateTaxRate,
		CurrentYear:      in.CurrentYear,
		Rand:             rng,
	})
	writeJSON(w, http.StatusOK, fin)
}

type playerInput struct {
	Skills           []business.Skill `json:"skills"`
	ActsAsAccountant bool             `json:"acts_as_accountant"`
	Stats            *threshold.Stats `json:"stats"`
}

// ownerOf derives the owner's business efficiency from their stats; without
// stats the owner works at full efficiency.
func (s *Server) ownerOf(in *playerInput) *business.Player {
	if in == nil {
		return nil
	}
	p := &business.Player{Skills: in.Skills, ActsAsAccountant: in.ActsAsAccountant, BusinessEfficiency: 1}
	if in.Stats != nil {
		p.BusinessEfficiency = s.sim.Pipeline().Thresholds().Evaluate(*in.Stats).BusinessEfficiency
	}
	return p
}

func (s *Server) handleBusinessCandidates(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Roles []business.Role `json:"roles"`
		Count int             `json:"count"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Count <= 0 || in.Count > 50 {
		in.Count = 5
	}
	candidates := s.sim.Pipeline().Business().GenerateCandidates(requestRand(r), in.Roles, in.Count)
	writeJSON(w, http.StatusOK, map[string]any{"candidates": candidates})
}

func (s *Server) handleBusinessHire(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Business  business.Business  `json:"business"`
		Candidate business.Candidate `json:"candidate"`
		Year      int                `json:"year"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, v := s.sim.Pipeline().Business().Hire(in.Business, in.Candidate, in.Year)
	if !v.IsValid {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"validation": v})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"validation": v, "business": out})
}

// handleBusinessOpen builds a new business from a catalog template in a
// stored country. The business starts in the opening state.
func (s *Server) handleBusinessOpen(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Template  string `json:"template"`
		ID        string `json:"id"`
		OwnerID   string `json:"owner_id"`
		CountryID string `json:"country_id"`
		Year      int    `json:"year"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(in.CountryID) == "" {
		writeDomainError(w, fmt.Errorf("%w: country_id is required", errInvalidInput))
		return
	}
	cat := s.sim.Pipeline().Catalog()
	tmpl, err := cat.Template(strings.TrimSpace(in.Template))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	country, err := s.resolveCountry(r.Context(), economyInput{CountryID: in.CountryID})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	year := in.Year
	if year <= 0 {
		year = cat.StartYear
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = uuid.NewString()
	}
	writeJSON(w, http.StatusCreated, map[string]any{"business": tmpl.Build(id, strings.TrimSpace(in.OwnerID), country.ID, year)})
}

func (s *Server) handleThresholds(w http.ResponseWriter, r *http.Request) {
	var in threshold.Stats
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.sim.Pipeline().Thresholds().Evaluate(in))
}

func (s *Server) handleWorld(w http.ResponseWriter, r *http.Request) {
	world, err := s.sim.World(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, world)
}

func (s *Server) handleWorldReports(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, 500)
	}
	reports, err := s.sim.Reports(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

func (s *Server) handleWorldTick(w http.ResponseWriter, r *http.Request) {
	rep, err := s.sim.RunTick(r.Context())
	if err != nil {
		s.log.Error("tick failed", "err", err, "request_id", middleware.GetReqID(r.Context()))
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// requestRand seeds from the X-Seed header when present so calls can be
// replayed.
func requestRand(r *http.Request) randsrc.Source {
	if raw := strings.TrimSpace(r.Header.Get("X-Seed")); raw != "" {
		if seed, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return randsrc.New(seed)
		}
	}
	seed, err := randsrc.NewSeed()
	if err != nil {
		seed = time.Now().UnixNano()
	}
	return randsrc.New(seed)
}

func writeDomainError(w http.ResponseWriter, err error) {
	var rejection *rules.RejectionError
	switch {
	case errors.As(err, &rejection):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": rejection.Message, "code": rejection.Code})
	case errors.Is(err, errInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, sim.ErrUnknownCountry), errors.Is(err, sim.ErrUnknownPlayer),
		errors.Is(err, sim.ErrUnknownBusiness), errors.Is(err, sim.ErrNoWorld),
		errors.Is(err, catalog.ErrUnknownTemplate):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}
