package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// maxResponseBytes bounds how much of an upstream response body is read.
const maxResponseBytes = 1 << 20

const systemPrompt = "You are a personal finance assistant. Given the user's debts, recommend a payoff strategy. " +
	"Answer only with JSON matching the provided schema."

// Config holds connection settings for an OpenAI-compatible chat completions endpoint.
type Config struct {
	APIURL  string        `yaml:"apiURL"`
	APIKey  string        `yaml:"apiKey"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// OpenAIGenerator requests advice from a chat completions endpoint using a
// strict JSON schema response format.
type OpenAIGenerator struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type       string     `json:"type"`
	JSONSchema jsonSchema `json:"json_schema"`
}

type jsonSchema struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewOpenAIGenerator returns a generator for cfg.
func NewOpenAIGenerator(logger *zap.Logger, cfg Config) *OpenAIGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIGenerator{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Generate asks the chat completions endpoint for advice on req.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (Advice, error) {
	start := time.Now()

	prompt, err := json.Marshal(req)
	if err != nil {
		return Advice{}, g.fail(fmt.Errorf("encode request: %w", err))
	}

	body, err := json.Marshal(chatRequest{
		Model: g.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: string(prompt)},
		},
		ResponseFormat: responseFormat{
			Type:       "json_schema",
			JSONSchema: jsonSchema{Name: "debt_advice", Schema: Schema(), Strict: true},
		},
	})
	if err != nil {
		return Advice{}, g.fail(fmt.Errorf("encode chat request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return Advice{}, g.fail(fmt.Errorf("build request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return Advice{}, g.fail(fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return Advice{}, g.fail(fmt.Errorf("%w: read response: %v", ErrUnavailable, err))
	}
	if len(raw) > maxResponseBytes {
		return Advice{}, g.fail(fmt.Errorf("%w: response exceeds %d bytes", ErrInvalidResponse, maxResponseBytes))
	}

	var decoded chatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		if resp.StatusCode != http.StatusOK {
			return Advice{}, g.fail(fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode))
		}
		return Advice{}, g.fail(fmt.Errorf("%w: %v", ErrInvalidResponse, err))
	}
	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if decoded.Error != nil && decoded.Error.Message != "" {
			msg = decoded.Error.Message
		}
		return Advice{}, g.fail(fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, msg))
	}
	if len(decoded.Choices) == 0 {
		return Advice{}, g.fail(fmt.Errorf("%w: no choices returned", ErrInvalidResponse))
	}

	var advice Advice
	content := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &advice); err != nil {
		return Advice{}, g.fail(fmt.Errorf("%w: %v", ErrInvalidResponse, err))
	}
	if err := advice.Validate(); err != nil {
		return Advice{}, g.fail(err)
	}
	advice.Source = g.cfg.Model

	g.logger.Info("advice generated",
		zap.String("op", "advisor.OpenAIGenerator.Generate"),
		zap.String("model", g.cfg.Model),
		zap.String("strategy", advice.Strategy),
		zap.Duration("duration", time.Since(start)),
	)
	return advice, nil
}

func (g *OpenAIGenerator) fail(err error) error {
	g.logger.Warn("advice generation failed",
		zap.String("op", "advisor.OpenAIGenerator.Generate"),
		zap.String("model", g.cfg.Model),
		zap.Error(err),
	)
	return &GenerationError{Provider: "openai", Err: err}
}
