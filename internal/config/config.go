// Package config defines the data structures related to configuration and
// includes functions for loading and validating the config.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/iwvelando/emi-calculator/internal/preferences"
	"github.com/iwvelando/emi-calculator/pkg/amortization"
	"github.com/iwvelando/emi-calculator/pkg/constants"
	"github.com/iwvelando/emi-calculator/pkg/format"
	"github.com/iwvelando/emi-calculator/pkg/validation"
)

// Configuration holds all configuration for emi-calculator.
type Configuration struct {
	Logging      LoggingConfig           `yaml:"logging,omitempty"`
	Output       OutputConfig            `yaml:"output,omitempty"`
	Presentation format.Options          `yaml:"presentation,omitempty"`
	Defaults     amortization.Input      `yaml:"defaults,omitempty"`
	Preferences  preferences.StoreConfig `yaml:"preferences,omitempty"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`      // debug, info, warn, error
	Format     string `yaml:"format,omitempty"`     // json, console
	OutputFile string `yaml:"outputFile,omitempty"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty"` // pretty, csv, json, xlsx, pdf
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there. A .env file next to the configuration is loaded
// first so that EMI_* variables in it can override file values.
func LoadConfiguration(configPath string) (*Configuration, error) {
	if err := loadDotEnv(filepath.Join(filepath.Dir(configPath), ".env")); err != nil {
		return nil, err
	}

	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %s", err)
	}

	return unmarshal(v)
}

// LoadConfigurationFromReader loads YAML configuration from r.
func LoadConfigurationFromReader(r io.Reader) (*Configuration, error) {
	v := newViper()
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("error reading config data, %s", err)
	}
	return unmarshal(v)
}

// DefaultConfiguration returns the configuration used when no file is given.
func DefaultConfiguration() *Configuration {
	conf, err := unmarshal(newViper())
	if err != nil {
		// Defaults are static values; decoding them cannot fail.
		panic(err)
	}
	return conf
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yml")
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("output.format", constants.OutputFormatPretty)

	v.SetDefault("presentation.symbol", constants.DefaultCurrencySymbol)
	v.SetDefault("presentation.fractionDigits", constants.DefaultFractionDigits)
	v.SetDefault("presentation.grouping", constants.DefaultGrouping)

	v.SetDefault("defaults.principal", constants.DefaultPrincipal)
	v.SetDefault("defaults.annualRatePercent", constants.DefaultAnnualRatePercent)
	v.SetDefault("defaults.tenureMonths", constants.DefaultTenureMonths)
	v.SetDefault("defaults.gstOnInterestPercent", constants.DefaultGSTOnInterestPercent)
	v.SetDefault("defaults.processingFee", constants.DefaultProcessingFee)
	v.SetDefault("defaults.gstOnProcessingPercent", constants.DefaultGSTOnProcessingPercent)

	v.SetDefault("preferences.backend", constants.PreferenceBackendMemory)
	v.SetDefault("preferences.redisAddress", constants.DefaultRedisAddress)
	v.SetDefault("preferences.redisPassword", "")
	v.SetDefault("preferences.redisDB", 0)
	v.SetDefault("preferences.namespace", constants.ThemeKeyNamespace)
	v.SetDefault("preferences.defaultTheme", constants.DefaultTheme)

	v.SetDefault("logging.level", "")
	v.SetDefault("logging.format", "")
	v.SetDefault("logging.outputFile", "")
	return v
}

func unmarshal(v *viper.Viper) (*Configuration, error) {
	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}
	return &configuration, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error loading env file %s: %w", path, err)
	}
	return nil
}

// ValidateConfiguration performs general validation of the configuration and returns warnings
func (c *Configuration) ValidateConfiguration() []string {
	var warnings []string

	if err := validation.ValidateOutputFormat(c.Output.Format); err != nil {
		warnings = append(warnings, err.Error())
	}
	if err := validation.ValidateGrouping(c.Presentation.Grouping); err != nil {
		warnings = append(warnings, err.Error())
	}
	if c.Presentation.FractionDigits < 0 || c.Presentation.FractionDigits > constants.MaxFractionDigits {
		warnings = append(warnings, fmt.Sprintf("fraction digits %d outside 0-%d will be clamped",
			c.Presentation.FractionDigits, constants.MaxFractionDigits))
	}
	if err := amortization.Validate(c.Defaults); err != nil {
		warnings = append(warnings, fmt.Sprintf("default form values cannot be calculated: %v", err))
	}

	switch c.Preferences.Backend {
	case constants.PreferenceBackendMemory, constants.PreferenceBackendRedis:
	default:
		warnings = append(warnings, fmt.Sprintf("unsupported preference backend %q", c.Preferences.Backend))
	}
	if _, err := preferences.ParseTheme(c.Preferences.DefaultTheme); err != nil {
		warnings = append(warnings, fmt.Sprintf("default theme: %v, using %s", err, constants.DefaultTheme))
	}

	return warnings
}
