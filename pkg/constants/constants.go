// Package constants provides shared constants for the emi-calculator application.
package constants

// Financial constants
const (
	// MonthsPerYear is the number of months in a year
	MonthsPerYear = 12

	// DecimalPrecision is the precision for currency rounding (2 decimal places)
	DecimalPrecision = 100

	// PercentageMultiplier is used for percentage conversions
	PercentageMultiplier = 100.0

	// MaxTenureMonths bounds the schedule length (100 years)
	MaxTenureMonths = 1200
)

// Default form values restored on reset.
const (
	DefaultPrincipal              = 100000.0
	DefaultAnnualRatePercent      = 12.0
	DefaultTenureMonths           = 12
	DefaultGSTOnInterestPercent   = 18.0
	DefaultProcessingFee          = 1000.0
	DefaultGSTOnProcessingPercent = 18.0
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"

	// OutputFormatJSON is the JSON output format
	OutputFormatJSON = "json"

	// OutputFormatXLSX is the spreadsheet export format
	OutputFormatXLSX = "xlsx"

	// OutputFormatPDF is the printable export format
	OutputFormatPDF = "pdf"
)

// Presentation defaults
const (
	// DefaultCurrencySymbol is prepended to formatted amounts
	DefaultCurrencySymbol = "₹"

	// DefaultFractionDigits is the number of decimals shown for amounts
	DefaultFractionDigits = 0

	// MaxFractionDigits bounds the configurable display precision
	MaxFractionDigits = 6

	// GroupingIndian groups digits as 1,00,00,000
	GroupingIndian = "indian"

	// GroupingWestern groups digits as 10,000,000
	GroupingWestern = "western"

	// DefaultGrouping is the digit grouping used when none is configured
	DefaultGrouping = GroupingIndian
)

// Theme preference defaults
const (
	// ThemeKeyNamespace is the key prefix under which display themes are stored
	ThemeKeyNamespace = "emiCalculatorTheme"

	// DefaultTheme is used when no preference has been stored
	DefaultTheme = "dark"

	// PreferenceBackendMemory keeps preferences in process memory
	PreferenceBackendMemory = "memory"

	// PreferenceBackendRedis keeps preferences in redis
	PreferenceBackendRedis = "redis"

	// DefaultRedisAddress is the address used for the redis backend when unset
	DefaultRedisAddress = "localhost:6379"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"

	// EnvPrefix is the prefix for environment variable overrides
	EnvPrefix = "EMI"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address
	DefaultServerAddress = ":8080"

	// DefaultMaxRequestSizeBytes is the default maximum request body size (64 KB)
	DefaultMaxRequestSizeBytes int64 = 64 * 1024

	// MinRequestSizeBytes always fits a body carrying the six form fields
	MinRequestSizeBytes int64 = 1024

	// MaxRequestSizeBytes is the largest configurable request body (1 MB)
	MaxRequestSizeBytes int64 = 1024 * 1024
)

// Validation constants
const (
	// RelativeTolerance is the relative tolerance for comparing accumulated totals
	RelativeTolerance = 1e-6

	// CurrencyTolerance is the tolerance for currency comparisons (1 cent)
	CurrencyTolerance = 0.01
)
