package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

var sampleRequest = Request{
	Debts: []DebtSnapshot{
		{Name: "Visa", Kind: "credit_card", Balance: 4000, AnnualInterestRate: 24, MonthlyPayment: 200, PayoffMonths: 25, Feasible: true},
		{Name: "Car", Kind: "loan", Balance: 9000, AnnualInterestRate: 5, MonthlyPayment: 300, PayoffMonths: 33, Feasible: true},
	},
	TotalBalance:        13000,
	TotalMonthlyPayment: 500,
}

func TestAdviceValidate(t *testing.T) {
	tests := []struct {
		name    string
		advice  Advice
		wantErr bool
	}{
		{"Valid", Advice{Summary: "ok", Strategy: StrategySnowball, Steps: []string{"pay"}}, false},
		{"Empty summary", Advice{Summary: " ", Strategy: StrategySnowball, Steps: []string{"pay"}}, true},
		{"Unknown strategy", Advice{Summary: "ok", Strategy: "yolo", Steps: []string{"pay"}}, true},
		{"No steps", Advice{Summary: "ok", Strategy: StrategyMaintain}, true},
		{"Too many steps", Advice{Summary: "ok", Strategy: StrategyMaintain, Steps: make([]string, MaxSteps+1)}, true},
		{"Blank step", Advice{Summary: "ok", Strategy: StrategyMaintain, Steps: []string{"pay", ""}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.advice.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidResponse) {
				t.Errorf("Validate() error = %v, expected ErrInvalidResponse", err)
			}
		})
	}
}

func TestRuleGenerator(t *testing.T) {
	ctx := context.Background()
	g := NewRuleGenerator()

	advice, err := g.Generate(ctx, sampleRequest)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if advice.Strategy != StrategyAvalanche {
		t.Errorf("strategy = %q, expected avalanche for a wide rate spread", advice.Strategy)
	}
	if !strings.Contains(advice.Steps[0], "Visa") {
		t.Errorf("first step should target the highest rate debt, got %q", advice.Steps[0])
	}

	narrow := sampleRequest
	narrow.Debts = []DebtSnapshot{
		{Name: "Big", Balance: 9000, AnnualInterestRate: 6, MonthlyPayment: 300, Feasible: true},
		{Name: "Small", Balance: 500, AnnualInterestRate: 7, MonthlyPayment: 50, Feasible: true},
	}
	advice, err = g.Generate(ctx, narrow)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if advice.Strategy != StrategySnowball || !strings.Contains(advice.Steps[0], "Small") {
		t.Errorf("expected snowball starting with the smallest balance, got %+v", advice)
	}

	advice, err = g.Generate(ctx, Request{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if advice.Strategy != StrategyMaintain {
		t.Errorf("strategy with no debts = %q, expected maintain", advice.Strategy)
	}
}

func TestRuleGeneratorCapsSteps(t *testing.T) {
	req := Request{}
	for i := 0; i < 25; i++ {
		req.Debts = append(req.Debts, DebtSnapshot{Name: "debt", Balance: 100, AnnualInterestRate: 30, MonthlyPayment: 1})
	}
	advice, err := NewRuleGenerator().Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(advice.Steps) > MaxSteps {
		t.Errorf("got %d steps, expected at most %d", len(advice.Steps), MaxSteps)
	}
}

func chatServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization header = %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode chat request: %v", err)
		}
		if req.ResponseFormat.Type != "json_schema" || !req.ResponseFormat.JSONSchema.Strict {
			t.Errorf("unexpected response format: %+v", req.ResponseFormat)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"quota exceeded"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	}))
}

func TestOpenAIGenerator(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		content string
		wantErr error
	}{
		{"Valid advice", http.StatusOK, `{"summary":"Two debts","strategy":"avalanche","steps":["Pay Visa first"]}`, nil},
		{"Schema violation", http.StatusOK, `{"summary":"Two debts","strategy":"lottery","steps":["Buy tickets"]}`, ErrInvalidResponse},
		{"Not JSON", http.StatusOK, `pay the card`, ErrInvalidResponse},
		{"Upstream error", http.StatusTooManyRequests, "", ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := chatServer(t, tt.status, tt.content)
			defer server.Close()

			g := NewOpenAIGenerator(zap.NewNop(), Config{APIURL: server.URL, APIKey: "test-key", Model: "test-model", Timeout: 5 * time.Second})
			advice, err := g.Generate(context.Background(), sampleRequest)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Generate() error = %v", err)
				}
				if advice.Strategy != StrategyAvalanche || advice.Source != "test-model" {
					t.Errorf("unexpected advice: %+v", advice)
				}
				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Generate() error = %v, expected %v", err, tt.wantErr)
			}
			var genErr *GenerationError
			if !errors.As(err, &genErr) || genErr.Provider != "openai" {
				t.Errorf("expected a GenerationError from openai, got %T", err)
			}
		})
	}
}

func TestOpenAIGeneratorRejectsOversizedResponse(t *testing.T) {
	summary := strings.Repeat("a", maxResponseBytes)
	server := chatServer(t, http.StatusOK, `{"summary":"`+summary+`","strategy":"avalanche","steps":["Pay Visa first"]}`)
	defer server.Close()

	g := NewOpenAIGenerator(zap.NewNop(), Config{APIURL: server.URL, APIKey: "test-key", Model: "test-model", Timeout: 5 * time.Second})
	_, err := g.Generate(context.Background(), sampleRequest)
	if !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("Generate() error = %v, expected %v", err, ErrInvalidResponse)
	}
	if !strings.Contains(err.Error(), "exceeds") {
		t.Errorf("error %q should mention the size limit", err)
	}
}

func TestNewSelectsGenerator(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, ok := New(nil, Config{}).(*RuleGenerator); !ok {
		t.Error("New() without API key should return the rule generator")
	}

	server := chatServer(t, http.StatusInternalServerError, "")
	defer server.Close()

	g := New(zap.NewNop(), Config{APIURL: server.URL, APIKey: "test-key"})
	if _, ok := g.(*FallbackGenerator); !ok {
		t.Fatalf("New() with API key returned %T, expected *FallbackGenerator", g)
	}

	advice, err := g.Generate(context.Background(), sampleRequest)
	if err != nil {
		t.Fatalf("Generate() with failing primary error = %v", err)
	}
	if advice.Source != "rules" {
		t.Errorf("advice source = %q, expected rules", advice.Source)
	}
}
