package server

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/iwvelando/emi-calculator/internal/config"
	"github.com/iwvelando/emi-calculator/pkg/constants"
	"gopkg.in/yaml.v3"
)

const defaultShutdownTimeout = 10 * time.Second

// Config defines runtime parameters for the HTTP server.
type Config struct {
	Address          string               `yaml:"address"`
	MaxRequestSize   string               `yaml:"maxRequestSize"`
	ShutdownTimeout  time.Duration        `yaml:"shutdownTimeout"`
	Logging          config.LoggingConfig `yaml:"logging"`
	requestSizeBytes int64
}

// DefaultConfig returns the settings used when no server config file exists.
func DefaultConfig() *Config {
	return &Config{
		Address:          constants.DefaultServerAddress,
		MaxRequestSize:   fmt.Sprintf("%d", constants.DefaultMaxRequestSizeBytes),
		ShutdownTimeout:  defaultShutdownTimeout,
		requestSizeBytes: constants.DefaultMaxRequestSizeBytes,
	}
}

// LoadConfig loads the server configuration from YAML. If the file does not exist,
// defaults are returned without error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read server config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse server config: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RequestSizeBytes returns the largest accepted request body in bytes.
func (c *Config) RequestSizeBytes() int64 {
	return c.requestSizeBytes
}

func (c *Config) normalize() error {
	if c.Address == "" {
		c.Address = constants.DefaultServerAddress
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}

	size, err := ParseSize(c.MaxRequestSize)
	if err != nil {
		return err
	}
	size, err = clampRequestSize(size)
	if err != nil {
		return err
	}
	c.requestSizeBytes = size
	c.MaxRequestSize = strconv.FormatInt(size, 10)
	return nil
}

// clampRequestSize keeps the body limit large enough for a calculation
// request and small enough that a body cannot hold much beyond one.
func clampRequestSize(size int64) (int64, error) {
	switch {
	case size <= 0:
		return constants.DefaultMaxRequestSizeBytes, nil
	case size < constants.MinRequestSizeBytes:
		return constants.MinRequestSizeBytes, nil
	case size > constants.MaxRequestSizeBytes:
		return 0, fmt.Errorf("maxRequestSize of %d bytes exceeds the %d byte limit", size, constants.MaxRequestSizeBytes)
	}
	return size, nil
}

var sizeUnits = map[string]int64{
	"":   1,
	"B":  1,
	"K":  1024,
	"KB": 1024,
	"M":  1024 * 1024,
	"MB": 1024 * 1024,
}

// ParseSize converts a byte count with an optional K or M suffix (e.g.,
// "64K", "1M") into bytes. An empty value yields the default limit.
func ParseSize(value string) (int64, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(value))
	if trimmed == "" {
		return constants.DefaultMaxRequestSizeBytes, nil
	}

	digits := strings.TrimRightFunc(trimmed, func(r rune) bool { return !unicode.IsDigit(r) })
	if digits == "" {
		return 0, fmt.Errorf("invalid size: %s", value)
	}
	unit := strings.TrimSpace(trimmed[len(digits):])
	multiplier, ok := sizeUnits[unit]
	if !ok {
		return 0, fmt.Errorf("unsupported size unit %q", unit)
	}

	n, err := strconv.ParseInt(strings.TrimSpace(digits), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value %q: %w", value, err)
	}
	if n > math.MaxInt64/multiplier {
		return 0, fmt.Errorf("size overflow for value %s", value)
	}
	return n * multiplier, nil
}
