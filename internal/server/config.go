package server

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/iwvelando/payoff/internal/advisor"
	"github.com/iwvelando/payoff/internal/config"
	"github.com/iwvelando/payoff/internal/store"
	"github.com/iwvelando/payoff/pkg/constants"
	"gopkg.in/yaml.v3"
)

// Config defines runtime parameters for the HTTP server.
type Config struct {
	Address       string               `yaml:"address"`
	MaxBodySize   string               `yaml:"maxBodySize"`
	RateLimit     RateLimitConfig      `yaml:"rateLimit"`
	Logging       config.LoggingConfig `yaml:"logging"`
	Store         store.Config         `yaml:"store"`
	Advisor       advisor.Config       `yaml:"advisor"`
	bodySizeBytes int64
}

// RateLimitConfig bounds how fast a single client may call the API.
// TrustForwardedFor keys clients on X-Forwarded-For and must only be set
// behind a proxy that overwrites that header.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	Burst             int     `yaml:"burst"`
	TrustForwardedFor bool    `yaml:"trustForwardedFor"`
}

// LoadConfig loads the server configuration from YAML. If the file does not exist,
// defaults are returned without error.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Address:       constants.DefaultServerAddress,
		MaxBodySize:   fmt.Sprintf("%d", constants.DefaultMaxBodySizeBytes),
		bodySizeBytes: constants.DefaultMaxBodySizeBytes,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read server config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse server config: %w", err)
			}
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// BodySizeBytes returns the configured request body limit in bytes.
func (c *Config) BodySizeBytes() int64 {
	return c.bodySizeBytes
}

// SetBodySizeBytes overrides the configured request body limit.
func (c *Config) SetBodySizeBytes(size int64) {
	if size > 0 {
		c.bodySizeBytes = size
		c.MaxBodySize = fmt.Sprintf("%d", size)
	}
}

func (c *Config) normalize() error {
	if c.Address == "" {
		c.Address = constants.DefaultServerAddress
	}
	if c.RateLimit.RequestsPerSecond <= 0 {
		c.RateLimit.RequestsPerSecond = constants.DefaultRequestsPerSecond
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = constants.DefaultBurst
	}
	c.Store.Normalize()
	c.Advisor.Normalize()

	bytes, err := ParseSize(c.MaxBodySize)
	if err != nil {
		return err
	}
	if bytes <= 0 {
		bytes = constants.DefaultMaxBodySizeBytes
	}
	c.bodySizeBytes = bytes
	return nil
}

// ParseSize converts a human-friendly byte string (e.g., "256K", "10M") into bytes.
func ParseSize(value string) (int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return constants.DefaultMaxBodySizeBytes, nil
	}

	upper := strings.ToUpper(trimmed)
	idx := len(upper)
	for idx > 0 && !unicode.IsDigit(rune(upper[idx-1])) {
		idx--
	}
	if idx == 0 {
		return 0, fmt.Errorf("invalid size: %s", value)
	}
	numPart := strings.TrimSpace(upper[:idx])
	unitPart := strings.TrimSpace(upper[idx:])

	n, err := strconv.ParseInt(numPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value %q: %w", value, err)
	}

	var multiplier int64
	switch unitPart {
	case "", "B":
		multiplier = 1
	case "K", "KB":
		multiplier = 1024
	case "M", "MB":
		multiplier = 1024 * 1024
	default:
		return 0, fmt.Errorf("unsupported size unit %q", unitPart)
	}

	result := n * multiplier
	if result < 0 || (n != 0 && result/multiplier != n) {
		return 0, fmt.Errorf("size overflow for value %s", value)
	}
	return result, nil
}
