package advisor

import (
	"context"
	"os"
	"time"

	"github.com/iwvelando/payoff/pkg/constants"
	"go.uber.org/zap"
)

// FallbackGenerator tries Primary and answers with Fallback when it fails.
type FallbackGenerator struct {
	Primary  Generator
	Fallback Generator
	logger   *zap.Logger
}

// WithFallback wraps primary so a failed generation is answered by fallback.
func WithFallback(logger *zap.Logger, primary, fallback Generator) *FallbackGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackGenerator{Primary: primary, Fallback: fallback, logger: logger}
}

// Generate tries the primary generator and falls back to the secondary on error.
func (g *FallbackGenerator) Generate(ctx context.Context, req Request) (Advice, error) {
	advice, err := g.Primary.Generate(ctx, req)
	if err == nil {
		return advice, nil
	}
	g.logger.Warn("falling back to rule-based advice",
		zap.String("op", "advisor.FallbackGenerator.Generate"),
		zap.Error(err),
	)
	return g.Fallback.Generate(ctx, req)
}

// Normalize fills unset fields with defaults, taking the API key from the
// environment when the config does not carry one.
func (c *Config) Normalize() {
	if c.APIURL == "" {
		c.APIURL = constants.DefaultAdvisorURL
	}
	if c.Model == "" {
		c.Model = constants.DefaultAdvisorModel
	}
	if c.Timeout <= 0 {
		c.Timeout = constants.DefaultAdvisorTimeoutSeconds * time.Second
	}
	if c.APIKey == "" {
		c.APIKey = os.Getenv(constants.AdvisorAPIKeyEnv)
	}
}

// New returns the rule-based generator when no API key is configured and an
// OpenAI generator backed by the rules otherwise.
func New(logger *zap.Logger, cfg Config) Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Normalize()

	rules := NewRuleGenerator()
	if cfg.APIKey == "" {
		logger.Info("no advisor API key configured, using rule-based advice",
			zap.String("op", "advisor.New"),
		)
		return rules
	}
	return WithFallback(logger, NewOpenAIGenerator(logger, cfg), rules)
}
