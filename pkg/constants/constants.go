// Package constants provides shared constants for the loan-simulator application.
package constants

import "time"

// MonthLayout is the month-granular date format accepted for start dates.
const MonthLayout = "2006-01"

// DateLayout is the full calendar date format accepted in config files.
const DateLayout = "2006-01-02"

// Financial constants
const (
	// MonthsPerYear is the number of months in a year
	MonthsPerYear = 12

	// DecimalPrecision is the precision for currency rounding (2 decimal places)
	DecimalPrecision = 100

	// PercentageMultiplier is used for percentage conversions
	PercentageMultiplier = 100.0

	// MaxAnnualRatePercent is the largest accepted annual interest rate
	MaxAnnualRatePercent = 100.0

	// MaxTermYears is the longest accepted loan term
	MaxTermYears = 100

	// SettlementTolerance is the residual balance below which a loan counts as
	// paid off (half a cent).
	SettlementTolerance = 0.005
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"

	// OutputFormatJSON is the JSON output format
	OutputFormatJSON = "json"

	// OutputFormatYearlyCSV is the per-year CSV output format
	OutputFormatYearlyCSV = "yearly-csv"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// ExampleConfigFile is the example configuration file name
	ExampleConfigFile = "config.yaml.example"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address for the API
	DefaultServerAddress = ":8080"

	// DefaultMaxUploadSizeBytes is the default maximum upload size for YAML configs (256 KB)
	DefaultMaxUploadSizeBytes int64 = 256 * 1024

	// DefaultRateLimitRequests is the number of requests a client may make per window
	DefaultRateLimitRequests = 60

	// DefaultRateLimitWindow is the token bucket refill window
	DefaultRateLimitWindow = time.Minute

	// DefaultCacheTTL is how long a computed comparison stays cached
	DefaultCacheTTL = 10 * time.Minute

	// DefaultCacheMaxEntries bounds the in-memory result cache
	DefaultCacheMaxEntries = 1024
)

// Optimizer defaults
const (
	// DefaultOptimizerTolerance is the bisection stopping width in currency units
	DefaultOptimizerTolerance = 0.01

	// DefaultOptimizerMaxIterations caps the number of bisection steps
	DefaultOptimizerMaxIterations = 50
)
