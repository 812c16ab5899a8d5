package preferences

import (
	"context"
	"errors"
	"os"
	"testing"

	"go.uber.org/zap"

	"github.com/iwvelando/emi-calculator/pkg/constants"
)

func TestParseTheme(t *testing.T) {
	tests := []struct {
		input     string
		expected  Theme
		expectErr bool
	}{
		{"dark", ThemeDark, false},
		{"light", ThemeLight, false},
		{" Light ", ThemeLight, false},
		{"DARK", ThemeDark, false},
		{"sepia", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			theme, err := ParseTheme(tt.input)
			if (err != nil) != tt.expectErr {
				t.Fatalf("ParseTheme(%q) error = %v, expectErr %v", tt.input, err, tt.expectErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidTheme) {
				t.Errorf("expected ErrInvalidTheme, got %v", err)
			}
			if theme != tt.expected {
				t.Errorf("ParseTheme(%q) = %q, expected %q", tt.input, theme, tt.expected)
			}
		})
	}
}

func TestThemeToggle(t *testing.T) {
	if ThemeDark.Toggle() != ThemeLight || ThemeLight.Toggle() != ThemeDark {
		t.Error("Toggle() should switch between light and dark")
	}
	if ThemeDark.ToggleLabel() != "☀️ Light Mode" {
		t.Errorf("unexpected dark toggle label %q", ThemeDark.ToggleLabel())
	}
	if ThemeLight.ToggleLabel() != "🌙 Dark Mode" {
		t.Errorf("unexpected light toggle label %q", ThemeLight.ToggleLabel())
	}
}

func TestServiceDefaultsAndToggle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := NewService(zap.NewNop(), store, "", "")

	if key := svc.Key(""); key != constants.ThemeKeyNamespace+":"+DefaultClient {
		t.Errorf("Key(\"\") = %q", key)
	}

	theme, err := svc.Theme(ctx, "alice")
	if err != nil {
		t.Fatalf("Theme() error = %v", err)
	}
	if theme != ThemeDark {
		t.Errorf("expected default dark theme, got %q", theme)
	}

	next, err := svc.ToggleTheme(ctx, "alice")
	if err != nil {
		t.Fatalf("ToggleTheme() error = %v", err)
	}
	if next != ThemeLight {
		t.Errorf("expected light after toggle, got %q", next)
	}

	stored, err := store.Get(ctx, constants.ThemeKeyNamespace+":alice")
	if err != nil || stored != "light" {
		t.Errorf("expected light stored under namespaced key, got %q (%v)", stored, err)
	}

	// Other clients are unaffected.
	other, err := svc.Theme(ctx, "bob")
	if err != nil || other != ThemeDark {
		t.Errorf("expected bob to keep the default theme, got %q (%v)", other, err)
	}
}

func TestServiceIgnoresCorruptValue(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := NewService(nil, store, "test", "light")
	if err := store.Set(ctx, "test:carol", "purple"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	theme, err := svc.Theme(ctx, "carol")
	if err != nil {
		t.Fatalf("Theme() error = %v", err)
	}
	if theme != ThemeLight {
		t.Errorf("expected configured default light, got %q", theme)
	}
}

func TestServiceRejectsInvalidTheme(t *testing.T) {
	svc := NewService(nil, NewMemoryStore(), "", "")
	if err := svc.SetTheme(context.Background(), "dave", Theme("blue")); !errors.Is(err, ErrInvalidTheme) {
		t.Errorf("expected ErrInvalidTheme, got %v", err)
	}
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, error) { return "", errors.New("unavailable") }
func (failingStore) Set(context.Context, string, string) error { return errors.New("unavailable") }

func TestServicePropagatesStoreErrors(t *testing.T) {
	svc := NewService(nil, failingStore{}, "", "")
	if _, err := svc.Theme(context.Background(), "erin"); err == nil {
		t.Error("expected store error from Theme()")
	}
	if _, err := svc.ToggleTheme(context.Background(), "erin"); err == nil {
		t.Error("expected store error from ToggleTheme()")
	}
}

func TestNewStore(t *testing.T) {
	store, err := NewStore(StoreConfig{})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Errorf("expected memory store by default, got %T", store)
	}

	store, err = NewStore(StoreConfig{Backend: constants.PreferenceBackendRedis})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	redisStore, ok := store.(*RedisStore)
	if !ok {
		t.Fatalf("expected redis store, got %T", store)
	}
	_ = redisStore.Close()

	if _, err := NewStore(StoreConfig{Backend: "etcd"}); err == nil {
		t.Error("expected error for unsupported backend")
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("EMI_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("EMI_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	store := NewRedisStore(addr, "", 0)
	defer func() {
		_ = store.Close()
	}()
	if err := store.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	key := "emiCalculatorTheme-test:redis"
	if err := store.Set(ctx, key, "light"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	value, err := store.Get(ctx, key)
	if err != nil || value != "light" {
		t.Errorf("Get() = %q, %v", value, err)
	}
	if _, err := store.Get(ctx, key+"-missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing key, got %v", err)
	}
}
