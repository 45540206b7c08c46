// Package constants provides shared constants for the payoff application.
package constants

// Financial constants
const (
	// MonthsPerYear is the number of months in a year
	MonthsPerYear = 12

	// PercentageMultiplier is used for percentage conversions
	PercentageMultiplier = 100.0

	// CurrencyPlaces is the number of decimal places used when displaying currency
	CurrencyPlaces = 2

	// MaxAmortizationPeriods bounds a schedule to 40 years of monthly payments.
	MaxAmortizationPeriods = 480
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address for the API
	DefaultServerAddress = ":8080"

	// DefaultMaxBodySizeBytes is the default maximum request body size (256 KB)
	DefaultMaxBodySizeBytes int64 = 256 * 1024

	// DefaultRequestsPerSecond is the default sustained request rate per client
	DefaultRequestsPerSecond = 10.0

	// DefaultBurst is the default number of requests a client may make at once
	DefaultBurst = 20

	// DefaultShutdownTimeoutSeconds bounds graceful shutdown of the HTTP server
	DefaultShutdownTimeoutSeconds = 10
)

// Store backends
const (
	StoreBackendMemory = "memory"
	StoreBackendSQLite = "sqlite"
	StoreBackendRedis  = "redis"

	// DefaultSQLitePath is where the sqlite backend keeps its database file
	DefaultSQLitePath = "./data/payoff.db"

	// DefaultRedisAddr is the default address for the redis backend
	DefaultRedisAddr = "localhost:6379"

	// DefaultRedisKeyPrefix namespaces every key written by the redis backend
	DefaultRedisKeyPrefix = "payoff"
)

// Advisor defaults
const (
	// DefaultAdvisorURL is the OpenAI-compatible chat completions endpoint
	DefaultAdvisorURL = "https://api.openai.com/v1/chat/completions"

	// DefaultAdvisorModel is the model requested when none is configured
	DefaultAdvisorModel = "gpt-4o-mini"

	// DefaultAdvisorTimeoutSeconds bounds a single generation request
	DefaultAdvisorTimeoutSeconds = 30

	// AdvisorAPIKeyEnv is the environment variable holding the advisor API key
	AdvisorAPIKeyEnv = "OPENAI_API_KEY"
)
