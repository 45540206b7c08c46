// Package server exposes the payoff calculator and debt tracking over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/iwvelando/payoff/internal/advisor"
	"github.com/iwvelando/payoff/internal/debts"
	"github.com/iwvelando/payoff/internal/store"
	"github.com/iwvelando/payoff/pkg/amortization"
	"github.com/iwvelando/payoff/pkg/output"
	"github.com/iwvelando/payoff/pkg/validation"
	"go.uber.org/zap"
)

type handler struct {
	logger      *zap.Logger
	debts       *debts.Service
	maxBodySize int64
	version     string
}

// NewHandler constructs the HTTP handler serving the schedule and debt API.
// A nil cfg uses the defaults of LoadConfig.
func NewHandler(logger *zap.Logger, svc *debts.Service, cfg *Config, version string) (http.Handler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		var err error
		if cfg, err = LoadConfig(""); err != nil {
			return nil, err
		}
	}

	trimmedVersion := strings.TrimSpace(version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}

	h := &handler{
		logger:      logger,
		debts:       svc,
		maxBodySize: cfg.BodySizeBytes(),
		version:     trimmedVersion,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/schedule", h.handleSchedule)
	mux.HandleFunc("GET /api/version", h.handleVersion)

	if svc != nil {
		mux.HandleFunc("GET /api/users/{user}/debts", h.handleListDebts)
		mux.HandleFunc("POST /api/users/{user}/debts", h.handleCreateDebt)
		mux.HandleFunc("POST /api/users/{user}/debts/import", h.handleImportDebts)
		mux.HandleFunc("GET /api/users/{user}/debts/{id}", h.handleGetDebt)
		mux.HandleFunc("PUT /api/users/{user}/debts/{id}", h.handleUpdateDebt)
		mux.HandleFunc("DELETE /api/users/{user}/debts/{id}", h.handleDeleteDebt)
		mux.HandleFunc("GET /api/users/{user}/debts/{id}/schedule", h.handleDebtSchedule)
		mux.HandleFunc("GET /api/users/{user}/overview", h.handleOverview)
		mux.HandleFunc("POST /api/users/{user}/advice", h.handleAdvice)
	}

	limiter := newRateLimiter(cfg.RateLimit)
	return requestLogger(logger, limiter.middleware(mux)), nil
}

type scheduleRequest struct {
	Principal          float64 `json:"principal"`
	AnnualInterestRate float64 `json:"annualInterestRate"`
	MonthlyPayment     float64 `json:"monthlyPayment"`
	TermMonths         int     `json:"termMonths"`
}

type scheduleResponse struct {
	Input    amortization.Input     `json:"input"`
	Payments []amortization.Payment `json:"payments"`
	Summary  amortization.Summary   `json:"summary"`
	CSV      string                 `json:"csv"`
	Warnings []string               `json:"warnings,omitempty"`
	Duration string                 `json:"duration"`
}

type debtScheduleResponse struct {
	Debt     debts.Debt             `json:"debt"`
	Payments []amortization.Payment `json:"payments"`
	Summary  amortization.Summary   `json:"summary"`
	CSV      string                 `json:"csv"`
}

type importRequest struct {
	Debts []debts.Debt `json:"debts"`
}

type infeasibleResponse struct {
	Error  string      `json:"error"`
	Reason string      `json:"reason"`
	Debt   *debts.Debt `json:"debt,omitempty"`
}

func (h *handler) handleSchedule(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleSchedule"
	start := time.Now()

	var req scheduleRequest
	if !h.decodeBody(w, r, &req, op) {
		return
	}

	in := amortization.Input{
		Principal:          req.Principal,
		AnnualInterestRate: req.AnnualInterestRate,
		MonthlyPayment:     req.MonthlyPayment,
	}
	if in.MonthlyPayment == 0 && req.TermMonths != 0 {
		payment, err := amortization.PaymentForTerm(req.Principal, req.AnnualInterestRate, req.TermMonths)
		if err != nil {
			h.respondInfeasible(w, err, nil, op)
			return
		}
		in.MonthlyPayment = payment
	}

	schedule, err := amortization.Compute(in)
	if err != nil {
		h.respondInfeasible(w, err, nil, op)
		return
	}

	elapsed := time.Since(start)
	response := scheduleResponse{
		Input:    schedule.Input,
		Payments: schedule.Payments,
		Summary:  schedule.Summary(),
		CSV:      output.CsvString(schedule),
		Warnings: validation.LoanWarnings(in),
		Duration: elapsed.String(),
	}

	h.logger.Info("schedule computed",
		zap.String("op", op),
		zap.Int("periods", len(schedule.Payments)),
		zap.Duration("duration", elapsed),
	)

	h.writeJSON(w, http.StatusOK, response)
}

func (h *handler) handleVersion(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

func (h *handler) handleListDebts(w http.ResponseWriter, r *http.Request) {
	list, err := h.debts.List(r.Context(), r.PathValue("user"))
	if err != nil {
		h.respondServiceError(w, err, "server.handleListDebts")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string][]debts.Debt{"debts": list})
}

func (h *handler) handleCreateDebt(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleCreateDebt"

	var debt debts.Debt
	if !h.decodeBody(w, r, &debt, op) {
		return
	}

	created, err := h.debts.Create(r.Context(), r.PathValue("user"), debt)
	if err != nil {
		h.respondServiceError(w, err, op)
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

func (h *handler) handleImportDebts(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleImportDebts"

	var req importRequest
	if !h.decodeBody(w, r, &req, op) {
		return
	}

	imported, err := h.debts.Import(r.Context(), r.PathValue("user"), req.Debts)
	if err != nil {
		h.respondServiceError(w, err, op)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string][]debts.Debt{"debts": imported})
}

func (h *handler) handleGetDebt(w http.ResponseWriter, r *http.Request) {
	debt, err := h.debts.Get(r.Context(), r.PathValue("user"), r.PathValue("id"))
	if err != nil {
		h.respondServiceError(w, err, "server.handleGetDebt")
		return
	}
	h.writeJSON(w, http.StatusOK, debt)
}

func (h *handler) handleUpdateDebt(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleUpdateDebt"

	var debt debts.Debt
	if !h.decodeBody(w, r, &debt, op) {
		return
	}

	updated, err := h.debts.Update(r.Context(), r.PathValue("user"), r.PathValue("id"), debt)
	if err != nil {
		h.respondServiceError(w, err, op)
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

func (h *handler) handleDeleteDebt(w http.ResponseWriter, r *http.Request) {
	if err := h.debts.Delete(r.Context(), r.PathValue("user"), r.PathValue("id")); err != nil {
		h.respondServiceError(w, err, "server.handleDeleteDebt")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handleDebtSchedule(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleDebtSchedule"

	debt, schedule, err := h.debts.Schedule(r.Context(), r.PathValue("user"), r.PathValue("id"))
	switch {
	case errors.Is(err, amortization.ErrInvalidInput),
		errors.Is(err, amortization.ErrPaymentTooLow),
		errors.Is(err, amortization.ErrExceedsMaxTerm):
		h.respondInfeasible(w, err, &debt, op)
		return
	case err != nil:
		h.respondServiceError(w, err, op)
		return
	}

	h.writeJSON(w, http.StatusOK, debtScheduleResponse{
		Debt:     debt,
		Payments: schedule.Payments,
		Summary:  schedule.Summary(),
		CSV:      output.CsvString(schedule),
	})
}

func (h *handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.debts.Overview(r.Context(), r.PathValue("user"))
	if err != nil {
		h.respondServiceError(w, err, "server.handleOverview")
		return
	}
	h.writeJSON(w, http.StatusOK, overview)
}

func (h *handler) handleAdvice(w http.ResponseWriter, r *http.Request) {
	advice, err := h.debts.Advice(r.Context(), r.PathValue("user"))
	if err != nil {
		h.respondServiceError(w, err, "server.handleAdvice")
		return
	}
	h.writeJSON(w, http.StatusOK, advice)
}

// decodeBody reads a JSON request body within the size limit. It writes the
// error response itself and reports whether decoding succeeded.
func (h *handler) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}, op string) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondErrorWithOp(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds limit of %d bytes", h.maxBodySize), op)
			return false
		}
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to decode request: %v", err), op)
		return false
	}
	return true
}

func (h *handler) respondInfeasible(w http.ResponseWriter, err error, debt *debts.Debt, op string) {
	reason := debts.Reason(err)
	h.logger.Info("no schedule for request",
		zap.String("op", op),
		zap.String("reason", reason),
		zap.Error(err),
	)
	h.writeJSON(w, http.StatusUnprocessableEntity, infeasibleResponse{
		Error:  err.Error(),
		Reason: reason,
		Debt:   debt,
	})
}

func (h *handler) respondServiceError(w http.ResponseWriter, err error, op string) {
	var genErr *advisor.GenerationError
	switch {
	case errors.Is(err, store.ErrNotFound):
		h.respondErrorWithOp(w, http.StatusNotFound, err.Error(), op)
	case errors.Is(err, debts.ErrDebtExists):
		h.respondErrorWithOp(w, http.StatusConflict, err.Error(), op)
	case errors.Is(err, debts.ErrInvalidDebt), errors.Is(err, store.ErrInvalidKey):
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
	case errors.As(err, &genErr):
		h.respondErrorWithOp(w, http.StatusBadGateway, err.Error(), op)
	default:
		h.respondErrorWithOp(w, http.StatusInternalServerError, err.Error(), op)
	}
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, status int, msg string, op string) {
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("op", op),
			zap.Int("status", status),
			zap.String("error", msg),
		)
	} else {
		h.logger.Warn("request rejected",
			zap.String("op", op),
			zap.Int("status", status),
			zap.String("error", msg),
		)
	}

	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}
