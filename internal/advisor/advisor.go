// Package advisor produces debt payoff advice from a structured generation
// service. Every response is checked against the Advice schema before it is
// returned.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Payoff strategies an Advice may recommend.
const (
	StrategyAvalanche   = "avalanche"
	StrategySnowball    = "snowball"
	StrategyConsolidate = "consolidate"
	StrategyMaintain    = "maintain"
)

// MaxSteps bounds the number of steps in an Advice.
const MaxSteps = 10

var (
	// ErrInvalidResponse is returned when a generated response does not match the Advice schema.
	ErrInvalidResponse = errors.New("response does not match advice schema")

	// ErrUnavailable is returned when the generation service cannot be reached or refuses the request.
	ErrUnavailable = errors.New("generation service unavailable")
)

// GenerationError records which provider failed.
type GenerationError struct {
	Provider string
	Err      error
}

// Error reports the failing generator and its cause.
func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying cause.
func (e *GenerationError) Unwrap() error {
	return e.Err
}

// DebtSnapshot is one debt as the advisor sees it.
type DebtSnapshot struct {
	Name               string  `json:"name"`
	Kind               string  `json:"kind"`
	Balance            float64 `json:"balance"`
	AnnualInterestRate float64 `json:"annualInterestRate"`
	MonthlyPayment     float64 `json:"monthlyPayment"`
	PayoffMonths       int     `json:"payoffMonths"`
	TotalInterest      float64 `json:"totalInterest"`
	Feasible           bool    `json:"feasible"`
}

// Request is the input to a generation.
type Request struct {
	Debts               []DebtSnapshot `json:"debts"`
	TotalBalance        float64        `json:"totalBalance"`
	TotalMonthlyPayment float64        `json:"totalMonthlyPayment"`
}

// Advice is the validated output of a generation.
type Advice struct {
	Summary  string   `json:"summary"`
	Strategy string   `json:"strategy"`
	Steps    []string `json:"steps"`
	Source   string   `json:"source,omitempty"`
}

// Generator turns a Request into validated Advice.
type Generator interface {
	Generate(ctx context.Context, req Request) (Advice, error)
}

// Validate checks the advice against its schema.
func (a Advice) Validate() error {
	if strings.TrimSpace(a.Summary) == "" {
		return fmt.Errorf("%w: summary is empty", ErrInvalidResponse)
	}
	switch a.Strategy {
	case StrategyAvalanche, StrategySnowball, StrategyConsolidate, StrategyMaintain:
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidResponse, a.Strategy)
	}
	if len(a.Steps) == 0 || len(a.Steps) > MaxSteps {
		return fmt.Errorf("%w: expected 1..%d steps, got %d", ErrInvalidResponse, MaxSteps, len(a.Steps))
	}
	for i, step := range a.Steps {
		if strings.TrimSpace(step) == "" {
			return fmt.Errorf("%w: step %d is empty", ErrInvalidResponse, i+1)
		}
	}
	return nil
}

// Schema returns the JSON schema sent to structured generation services.
func Schema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"summary", "strategy", "steps"},
		"properties": map[string]any{
			"summary": map[string]any{"type": "string"},
			"strategy": map[string]any{
				"type": "string",
				"enum": []string{StrategyAvalanche, StrategySnowball, StrategyConsolidate, StrategyMaintain},
			},
			"steps": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string"},
				"minItems": 1,
				"maxItems": MaxSteps,
			},
		},
	}
}
