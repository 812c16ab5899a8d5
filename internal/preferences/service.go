package preferences

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/iwvelando/emi-calculator/pkg/constants"
)

// DefaultClient is used when a caller does not identify itself.
const DefaultClient = "default"

// Service reads and writes theme preferences under a namespaced key.
type Service struct {
	store        Store
	namespace    string
	defaultTheme Theme
	logger       *zap.Logger
}

// NewService wraps store. An empty namespace uses the calculator's theme
// key and an invalid default theme falls back to dark.
func NewService(logger *zap.Logger, store Store, namespace string, defaultTheme string) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if namespace == "" {
		namespace = constants.ThemeKeyNamespace
	}
	theme, err := ParseTheme(defaultTheme)
	if err != nil {
		theme = Theme(constants.DefaultTheme)
	}
	return &Service{store: store, namespace: namespace, defaultTheme: theme, logger: logger}
}

// Key returns the storage key for a client.
func (s *Service) Key(client string) string {
	client = strings.TrimSpace(client)
	if client == "" {
		client = DefaultClient
	}
	return s.namespace + ":" + client
}

// Theme returns the stored theme for client, or the default when none is
// stored. Unreadable stored values also yield the default.
func (s *Service) Theme(ctx context.Context, client string) (Theme, error) {
	key := s.Key(client)
	value, err := s.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return s.defaultTheme, nil
	}
	if err != nil {
		return "", err
	}

	theme, err := ParseTheme(value)
	if err != nil {
		s.logger.Warn("ignoring stored theme",
			zap.String("op", "preferences.Theme"),
			zap.String("key", key),
			zap.String("value", value),
		)
		return s.defaultTheme, nil
	}
	return theme, nil
}

// SetTheme stores theme for client.
func (s *Service) SetTheme(ctx context.Context, client string, theme Theme) error {
	if _, err := ParseTheme(string(theme)); err != nil {
		return err
	}
	key := s.Key(client)
	if err := s.store.Set(ctx, key, string(theme)); err != nil {
		return err
	}
	s.logger.Debug("stored theme preference",
		zap.String("op", "preferences.SetTheme"),
		zap.String("key", key),
		zap.String("theme", string(theme)),
	)
	return nil
}

// ToggleTheme flips and stores the theme for client.
func (s *Service) ToggleTheme(ctx context.Context, client string) (Theme, error) {
	current, err := s.Theme(ctx, client)
	if err != nil {
		return "", err
	}
	next := current.Toggle()
	if err := s.SetTheme(ctx, client, next); err != nil {
		return "", err
	}
	return next, nil
}
