// Package preferences persists per-client display preferences, kept apart
// from any calculation state.
package preferences

import (
	"errors"
	"fmt"
	"strings"
)

// Theme is a display color scheme.
type Theme string

// Supported themes.
const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ErrInvalidTheme is returned for theme names other than light and dark.
var ErrInvalidTheme = errors.New("invalid theme")

// ParseTheme converts a stored or user-supplied value into a Theme.
func ParseTheme(value string) (Theme, error) {
	switch Theme(strings.ToLower(strings.TrimSpace(value))) {
	case ThemeLight:
		return ThemeLight, nil
	case ThemeDark:
		return ThemeDark, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTheme, value)
}

// Toggle returns the opposite theme.
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// ToggleLabel is the caption for the control that switches away from t.
func (t Theme) ToggleLabel() string {
	if t == ThemeDark {
		return "☀️ Light Mode"
	}
	return "🌙 Dark Mode"
}
