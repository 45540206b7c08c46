package store

import (
	"context"
	"fmt"

	"github.com/iwvelando/payoff/pkg/constants"
	"go.uber.org/zap"
)

// Config selects and parameterizes a store backend.
type Config struct {
	Backend        string `yaml:"backend"`
	SQLitePath     string `yaml:"sqlitePath"`
	RedisAddr      string `yaml:"redisAddr"`
	RedisPassword  string `yaml:"redisPassword"`
	RedisDB        int    `yaml:"redisDB"`
	RedisKeyPrefix string `yaml:"redisKeyPrefix"`
}

// Normalize fills unset fields with defaults.
func (c *Config) Normalize() {
	if c.Backend == "" {
		c.Backend = constants.StoreBackendMemory
	}
	if c.SQLitePath == "" {
		c.SQLitePath = constants.DefaultSQLitePath
	}
	if c.RedisAddr == "" {
		c.RedisAddr = constants.DefaultRedisAddr
	}
	if c.RedisKeyPrefix == "" {
		c.RedisKeyPrefix = constants.DefaultRedisKeyPrefix
	}
}

// New builds the backend named by cfg.Backend.
func New(ctx context.Context, logger *zap.Logger, cfg Config) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Normalize()

	logger.Info("opening document store",
		zap.String("op", "store.New"),
		zap.String("backend", cfg.Backend),
	)

	switch cfg.Backend {
	case constants.StoreBackendMemory:
		return NewMemoryStore(), nil
	case constants.StoreBackendSQLite:
		s, err := NewSQLiteStore(logger, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case constants.StoreBackendRedis:
		s, err := NewRedisStore(ctx, logger, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisKeyPrefix)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q (expected %s, %s or %s)", cfg.Backend,
			constants.StoreBackendMemory, constants.StoreBackendSQLite, constants.StoreBackendRedis)
	}
}
