package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/iwvelando/emi-calculator/internal/preferences"
	"github.com/iwvelando/emi-calculator/pkg/amortization"
	"github.com/iwvelando/emi-calculator/pkg/format"
	"github.com/iwvelando/emi-calculator/pkg/mathutil"
	"github.com/iwvelando/emi-calculator/pkg/output"
	"github.com/iwvelando/emi-calculator/pkg/testutil"
)

var testDefaults = testutil.DefaultInput()

func newTestHandler(opts Options) http.Handler {
	opts.Defaults = testDefaults
	if opts.Display == (format.Options{}) {
		opts.Display = format.DefaultOptions()
	}
	if opts.Version == "" {
		opts.Version = "1.2.3"
	}
	return NewHandler(zap.NewNop(), opts)
}

func performJSON(t *testing.T, handler http.Handler, method, path string, payload interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("failed to encode payload: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v (%s)", err, rr.Body.String())
	}
	if resp.Error == "" {
		t.Fatalf("expected an error message, got %s", rr.Body.String())
	}
	return resp
}

var defaultPayload = map[string]interface{}{
	"principal":         100000,
	"rate":              "12",
	"tenure":            12,
	"gstRate":           18,
	"processingFee":     "1,000",
	"processingGstRate": 18,
}

func TestHandleCalculateSuccess(t *testing.T) {
	handler := newTestHandler(Options{})

	rr := performJSON(t, handler, http.MethodPost, "/api/calculate", defaultPayload, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		MonthlyPayment float64                   `json:"monthlyPayment"`
		Periods        []amortization.Period     `json:"periods"`
		Totals         amortization.Totals       `json:"totals"`
		ColumnTotals   amortization.ColumnTotals `json:"columnTotals"`
		Display        displaySchedule           `json:"display"`
		CSV            string                    `json:"csv"`
		Duration       string                    `json:"duration"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if !mathutil.WithinTolerance(resp.MonthlyPayment, 8884.878867834166, 1e-9) {
		t.Errorf("monthly payment = %v", resp.MonthlyPayment)
	}
	if len(resp.Periods) != 12 || len(resp.Display.Periods) != 12 {
		t.Fatalf("expected 12 periods, got %d raw and %d display", len(resp.Periods), len(resp.Display.Periods))
	}
	if resp.Display.MonthlyPayment != "₹8,885" {
		t.Errorf("display monthly payment = %q", resp.Display.MonthlyPayment)
	}
	if resp.Display.Periods[0].Period != 1 || resp.Display.Periods[0].Fees != "₹1,180" {
		t.Errorf("unexpected first display period %+v", resp.Display.Periods[0])
	}
	if !mathutil.WithinTolerance(resp.ColumnTotals.Tax, resp.Totals.TotalTaxPaid, 1e-6) {
		t.Errorf("column tax %v differs from total tax %v", resp.ColumnTotals.Tax, resp.Totals.TotalTaxPaid)
	}
	if !strings.HasPrefix(resp.CSV, strings.Join(output.CsvHeader, ",")) {
		t.Errorf("CSV does not start with the header: %q", resp.CSV)
	}
	if resp.Duration == "" {
		t.Error("expected duration in response")
	}
}

func TestHandleCalculateErrors(t *testing.T) {
	handler := newTestHandler(Options{})

	withField := func(key string, value interface{}) map[string]interface{} {
		payload := make(map[string]interface{}, len(defaultPayload))
		for k, v := range defaultPayload {
			payload[k] = v
		}
		payload[key] = value
		return payload
	}

	tests := []struct {
		name     string
		payload  interface{}
		status   int
		expected []string
	}{
		{"Malformed number", withField("rate", "abc"), http.StatusBadRequest, []string{"rate"}},
		{"Fractional tenure", withField("tenure", 6.5), http.StatusBadRequest, []string{"tenure"}},
		{"Missing required field", withField("principal", nil), http.StatusBadRequest, []string{"principal"}},
		{"Zero rate", withField("rate", 0), http.StatusUnprocessableEntity, []string{"rate"}},
		{"Negative fee", withField("processingFee", -5), http.StatusUnprocessableEntity, []string{"processingFee"}},
		{"Tenure above the maximum", withField("tenure", 2000000000), http.StatusUnprocessableEntity, []string{"tenure"}},
		{"Rate overflows the payment", withField("rate", 1e300), http.StatusUnprocessableEntity, []string{"rate"}},
		{"Unknown field", withField("colour", "blue"), http.StatusBadRequest, []string{"colour"}},
		{"Wrong type", withField("gstRate", true), http.StatusBadRequest, []string{"gstRate"}},
		{"Not an object", []int{1, 2}, http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := performJSON(t, handler, http.MethodPost, "/api/calculate", tt.payload, nil)
			if rr.Code != tt.status {
				t.Fatalf("expected status %d, got %d: %s", tt.status, rr.Code, rr.Body.String())
			}
			resp := decodeError(t, rr)
			if tt.expected != nil && !reflect.DeepEqual(resp.Fields, tt.expected) {
				t.Errorf("fields = %v, expected %v", resp.Fields, tt.expected)
			}
		})
	}
}

func TestHandleCalculateReportsAllInvalidFields(t *testing.T) {
	handler := newTestHandler(Options{})
	payload := map[string]interface{}{"principal": -1, "rate": 12, "tenure": 0}

	rr := performJSON(t, handler, http.MethodPost, "/api/calculate", payload, nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decodeError(t, rr)
	if !reflect.DeepEqual(resp.Fields, []string{"principal", "tenure"}) {
		t.Errorf("fields = %v", resp.Fields)
	}
}

func TestHandleCalculateEmptyBody(t *testing.T) {
	handler := newTestHandler(Options{})

	req := httptest.NewRequest(http.MethodPost, "/api/calculate", http.NoBody)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	decodeError(t, rr)
}

func TestHandleCalculateTooLarge(t *testing.T) {
	handler := newTestHandler(Options{MaxRequestSize: 64})
	payload := withPadding(defaultPayload, 256)

	rr := performJSON(t, handler, http.MethodPost, "/api/calculate", payload, nil)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status 413, got %d: %s", rr.Code, rr.Body.String())
	}
}

func withPadding(payload map[string]interface{}, n int) map[string]interface{} {
	padded := make(map[string]interface{}, len(payload)+1)
	for k, v := range payload {
		padded[k] = v
	}
	padded["principal"] = strings.Repeat("1", n)
	return padded
}

func TestMethodNotAllowed(t *testing.T) {
	handler := newTestHandler(Options{})

	rr := performJSON(t, handler, http.MethodGet, "/api/calculate", nil, nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rr.Code)
	}
}

func TestHandleDefaults(t *testing.T) {
	handler := newTestHandler(Options{})

	rr := performJSON(t, handler, http.MethodGet, "/api/defaults", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp defaultsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	expected := map[string]string{
		"principal":         "100000",
		"rate":              "12",
		"tenure":            "12",
		"gstRate":           "18",
		"processingFee":     "1000",
		"processingGstRate": "18",
	}
	for field, value := range expected {
		if resp.Values[field] != value {
			t.Errorf("default %s = %q, expected %q", field, resp.Values[field], value)
		}
		if resp.Labels[field] == "" {
			t.Errorf("missing label for %s", field)
		}
	}
	if len(resp.Fields) != len(expected) {
		t.Errorf("expected %d fields, got %v", len(expected), resp.Fields)
	}
}

func TestThemeEndpoints(t *testing.T) {
	handler := newTestHandler(Options{})
	alice := map[string]string{ClientHeader: "alice"}

	decodeTheme := func(rr *httptest.ResponseRecorder) themeResponse {
		t.Helper()
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
		var resp themeResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode theme: %v", err)
		}
		return resp
	}

	resp := decodeTheme(performJSON(t, handler, http.MethodGet, "/api/theme", nil, alice))
	if resp.Theme != preferences.ThemeDark || resp.ToggleLabel != "☀️ Light Mode" {
		t.Fatalf("unexpected initial theme %+v", resp)
	}

	resp = decodeTheme(performJSON(t, handler, http.MethodPost, "/api/theme/toggle", nil, alice))
	if resp.Theme != preferences.ThemeLight || resp.ToggleLabel != "🌙 Dark Mode" {
		t.Fatalf("unexpected toggled theme %+v", resp)
	}

	resp = decodeTheme(performJSON(t, handler, http.MethodGet, "/api/theme?client=alice", nil, nil))
	if resp.Theme != preferences.ThemeLight {
		t.Errorf("query client should see the stored theme, got %q", resp.Theme)
	}

	resp = decodeTheme(performJSON(t, handler, http.MethodGet, "/api/theme", nil, map[string]string{ClientHeader: "bob"}))
	if resp.Theme != preferences.ThemeDark {
		t.Errorf("other clients keep the default theme, got %q", resp.Theme)
	}

	resp = decodeTheme(performJSON(t, handler, http.MethodPut, "/api/theme", map[string]string{"theme": "Dark"}, alice))
	if resp.Theme != preferences.ThemeDark {
		t.Errorf("PUT theme = %q, expected dark", resp.Theme)
	}

	rr := performJSON(t, handler, http.MethodPut, "/api/theme", map[string]string{"theme": "sepia"}, alice)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for invalid theme, got %d", rr.Code)
	}
	decodeError(t, rr)
}

type unavailableStore struct{}

func (unavailableStore) Get(context.Context, string) (string, error) { return "", errors.New("down") }
func (unavailableStore) Set(context.Context, string, string) error { return errors.New("down") }

func TestThemeStoreUnavailable(t *testing.T) {
	prefs := preferences.NewService(zap.NewNop(), unavailableStore{}, "", "")
	handler := newTestHandler(Options{Preferences: prefs})

	for _, tc := range []struct {
		method string
		path   string
		body   interface{}
	}{
		{http.MethodGet, "/api/theme", nil},
		{http.MethodPost, "/api/theme/toggle", nil},
		{http.MethodPut, "/api/theme", map[string]string{"theme": "light"}},
	} {
		rr := performJSON(t, handler, tc.method, tc.path, tc.body, nil)
		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("%s %s: expected status 503, got %d", tc.method, tc.path, rr.Code)
		}
	}
}

func TestHandleExport(t *testing.T) {
	handler := newTestHandler(Options{})

	tests := []struct {
		format      string
		contentType string
		prefix      string
	}{
		{"csv", "text/csv; charset=utf-8", "period,"},
		{"xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "PK"},
		{"pdf", "application/pdf", "%PDF"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			rr := performJSON(t, handler, http.MethodPost, "/api/export/"+tt.format, defaultPayload, nil)
			if rr.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
			}
			if got := rr.Header().Get("Content-Type"); got != tt.contentType {
				t.Errorf("Content-Type = %q, expected %q", got, tt.contentType)
			}
			disposition := rr.Header().Get("Content-Disposition")
			if !strings.Contains(disposition, "emi-schedule-12-months."+tt.format) {
				t.Errorf("unexpected Content-Disposition %q", disposition)
			}
			if !bytes.HasPrefix(rr.Body.Bytes(), []byte(tt.prefix)) {
				t.Errorf("body does not start with %q", tt.prefix)
			}
		})
	}
}

func TestHandleExportErrors(t *testing.T) {
	handler := newTestHandler(Options{})

	rr := performJSON(t, handler, http.MethodPost, "/api/export/docx", defaultPayload, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404 for unknown format, got %d", rr.Code)
	}

	invalid := map[string]interface{}{"principal": 0, "rate": 12, "tenure": 12}
	rr = performJSON(t, handler, http.MethodPost, "/api/export/pdf", invalid, nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected status 422 for invalid input, got %d", rr.Code)
	}
}

func TestHandleVersionAndHealth(t *testing.T) {
	handler := newTestHandler(Options{Version: "  "})

	rr := performJSON(t, handler, http.MethodGet, "/api/version", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var version map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &version); err != nil {
		t.Fatalf("failed to decode version: %v", err)
	}
	// newTestHandler only fills an empty version, blank input falls back to dev.
	if version["version"] != "dev" {
		t.Errorf("version = %q, expected dev", version["version"])
	}

	rr = performJSON(t, handler, http.MethodGet, "/healthz", nil, nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "ok") {
		t.Errorf("unexpected health response %d %s", rr.Code, rr.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	called := false
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	handler := newTestHandler(Options{Metrics: metricsHandler})

	rr := performJSON(t, handler, http.MethodGet, "/metrics", nil, nil)
	if rr.Code != http.StatusOK || !called {
		t.Fatalf("metrics handler not served: status %d", rr.Code)
	}

	rr = performJSON(t, newTestHandler(Options{}), http.MethodGet, "/metrics", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("default metrics handler returned %d", rr.Code)
	}
}

func TestWriteJSONUnencodableValue(t *testing.T) {
	h := &handler{logger: zap.NewNop()}

	rr := httptest.NewRecorder()
	h.writeJSON(rr, http.StatusOK, map[string]float64{"payment": math.Inf(1)})

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
	decodeError(t, rr)
}

func TestCoerceString(t *testing.T) {
	tests := []struct {
		input    interface{}
		expected string
		ok       bool
	}{
		{nil, "", true},
		{" 12 ", " 12 ", true},
		{json.Number("1e5"), "1e5", true},
		{12.5, "12.5", true},
		{int64(7), "7", true},
		{true, "", false},
		{map[string]interface{}{}, "", false},
	}

	for _, tt := range tests {
		got, ok := coerceString(tt.input)
		if got != tt.expected || ok != tt.ok {
			t.Errorf("coerceString(%v) = %q, %v; expected %q, %v", tt.input, got, ok, tt.expected, tt.ok)
		}
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	cfg := DefaultConfig()
	cfg.ShutdownTimeout = time.Second
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, zap.NewNop(), cfg, listener, newTestHandler(Options{}))
	}()

	resp, err := http.Get("http://" + listener.Addr().String() + "/healthz")
	if err != nil {
		cancel()
		t.Fatalf("GET /healthz failed: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}
