package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/iwvelando/emi-calculator/internal/form"
	"github.com/iwvelando/emi-calculator/internal/metrics"
	"github.com/iwvelando/emi-calculator/internal/preferences"
	"github.com/iwvelando/emi-calculator/pkg/amortization"
	"github.com/iwvelando/emi-calculator/pkg/constants"
	"github.com/iwvelando/emi-calculator/pkg/export"
	"github.com/iwvelando/emi-calculator/pkg/format"
	"github.com/iwvelando/emi-calculator/pkg/output"
)

// ClientHeader identifies the client whose theme preference is used.
const ClientHeader = "X-Client-ID"

// Options configures the HTTP handler.
type Options struct {
	MaxRequestSize int64
	Version        string
	Defaults       amortization.Input
	Display        format.Options
	Preferences    *preferences.Service
	// Metrics serves /metrics. Nil uses the default prometheus gatherer.
	Metrics http.Handler
}

type handler struct {
	logger         *zap.Logger
	calc           *amortization.Calculator
	prefs          *preferences.Service
	maxRequestSize int64
	version        string
	defaults       amortization.Input
	display        format.Options
}

// NewHandler constructs the HTTP handler that serves the calculator API.
func NewHandler(logger *zap.Logger, opts Options) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	maxRequestSize := opts.MaxRequestSize
	if maxRequestSize <= 0 {
		maxRequestSize = constants.DefaultMaxRequestSizeBytes
	}

	trimmedVersion := strings.TrimSpace(opts.Version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}

	prefs := opts.Preferences
	if prefs == nil {
		prefs = preferences.NewService(logger, preferences.NewMemoryStore(), "", "")
	}

	metricsHandler := opts.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	h := &handler{
		logger:         logger,
		calc:           amortization.NewCalculator(logger),
		prefs:          prefs,
		maxRequestSize: maxRequestSize,
		version:        trimmedVersion,
		defaults:       opts.Defaults,
		display:        opts.Display.Normalize(),
	}

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/calculate", h.handleCalculate).Methods(http.MethodPost)
	api.HandleFunc("/defaults", h.handleDefaults).Methods(http.MethodGet)

	api.HandleFunc("/theme", h.handleGetTheme).Methods(http.MethodGet)
	api.HandleFunc("/theme", h.handleSetTheme).Methods(http.MethodPut)
	api.HandleFunc("/theme/toggle", h.handleToggleTheme).Methods(http.MethodPost)

	api.HandleFunc("/export/{format:csv|xlsx|pdf}", h.handleExport).Methods(http.MethodPost)
	api.HandleFunc("/version", h.handleVersion).Methods(http.MethodGet)

	r.HandleFunc("/healthz", h.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metricsHandler).Methods(http.MethodGet)

	return r
}

type errorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

type calculateResponse struct {
	output.Document
	Display  displaySchedule `json:"display"`
	CSV      string          `json:"csv"`
	Duration string          `json:"duration"`
}

// displaySchedule carries the same values as the schedule, formatted for
// presentation.
type displaySchedule struct {
	MonthlyPayment  string          `json:"monthlyPayment"`
	TotalAmountPaid string          `json:"totalAmountPaid"`
	TotalInterest   string          `json:"totalInterest"`
	TotalTaxPaid    string          `json:"totalTaxPaid"`
	TotalFeeWithTax string          `json:"totalFeeWithTax"`
	TotalExtraCost  string          `json:"totalExtraCost"`
	Periods         []displayPeriod `json:"periods"`
	ColumnTotals    displayPeriod   `json:"columnTotals"`
}

type displayPeriod struct {
	Period           int    `json:"period,omitempty"`
	RemainingBalance string `json:"remainingBalance,omitempty"`
	Principal        string `json:"principal"`
	Interest         string `json:"interest"`
	Tax              string `json:"tax"`
	Fees             string `json:"fees"`
	TotalPayment     string `json:"totalPayment"`
}

type defaultsResponse struct {
	Fields []string          `json:"fields"`
	Labels map[string]string `json:"labels"`
	Values form.Values       `json:"values"`
}

type themeResponse struct {
	Theme       preferences.Theme `json:"theme"`
	ToggleLabel string            `json:"toggleLabel"`
}

func (h *handler) handleCalculate(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleCalculate"
	start := time.Now()

	schedule, ok := h.calculate(w, r, op)
	if !ok {
		return
	}
	columns := schedule.ColumnTotals()
	elapsed := time.Since(start)

	response := calculateResponse{
		Document: output.Document{Schedule: schedule, ColumnTotals: columns},
		Display:  h.buildDisplay(schedule, columns),
		CSV:      output.CsvString(schedule),
		Duration: elapsed.String(),
	}

	h.logger.Info("schedule computed",
		zap.String("op", op),
		zap.Int("periods", len(schedule.Periods)),
		zap.Duration("duration", elapsed),
	)

	h.writeJSON(w, http.StatusOK, response)
}

func (h *handler) handleExport(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleExport"
	exportFormat := mux.Vars(r)["format"]

	schedule, ok := h.calculate(w, r, op)
	if !ok {
		metrics.IncExport(exportFormat, metrics.ResultInvalid)
		return
	}

	var (
		data        []byte
		contentType string
		err         error
	)
	switch exportFormat {
	case constants.OutputFormatCSV:
		var buf bytes.Buffer
		err = output.CsvFormat(&buf, schedule)
		data = buf.Bytes()
		contentType = "text/csv; charset=utf-8"
	case constants.OutputFormatXLSX:
		data, err = export.BuildScheduleXLSX(schedule)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case constants.OutputFormatPDF:
		data, err = export.BuildSchedulePDF(schedule, h.display)
		contentType = "application/pdf"
	default:
		err = fmt.Errorf("unsupported export format %q", exportFormat)
	}
	if err != nil {
		metrics.IncExport(exportFormat, metrics.ResultError)
		h.respondErrorWithOp(w, http.StatusInternalServerError, fmt.Sprintf("failed to export schedule: %v", err), op)
		return
	}

	metrics.IncExport(exportFormat, metrics.ResultSuccess)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(schedule, exportFormat)))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Warn("failed to write export",
			zap.String("op", op),
			zap.Error(err),
		)
	}
}

func (h *handler) handleDefaults(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, defaultsResponse{
		Fields: form.Fields,
		Labels: form.Labels,
		Values: form.FromInput(h.defaults),
	})
}

func (h *handler) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	theme, err := h.prefs.Theme(r.Context(), clientID(r))
	if err != nil {
		h.respondErrorWithOp(w, http.StatusServiceUnavailable, fmt.Sprintf("failed to load theme: %v", err), "server.handleGetTheme")
		return
	}
	h.writeJSON(w, http.StatusOK, themeResponse{Theme: theme, ToggleLabel: theme.ToggleLabel()})
}

func (h *handler) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleSetTheme"

	payload, ok := h.decodePayload(w, r, op)
	if !ok {
		return
	}
	value, _ := coerceString(payload["theme"])
	theme, err := preferences.ParseTheme(value)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}

	if err := h.prefs.SetTheme(r.Context(), clientID(r), theme); err != nil {
		h.respondErrorWithOp(w, http.StatusServiceUnavailable, fmt.Sprintf("failed to store theme: %v", err), op)
		return
	}
	metrics.IncThemeChange(string(theme))
	h.writeJSON(w, http.StatusOK, themeResponse{Theme: theme, ToggleLabel: theme.ToggleLabel()})
}

func (h *handler) handleToggleTheme(w http.ResponseWriter, r *http.Request) {
	theme, err := h.prefs.ToggleTheme(r.Context(), clientID(r))
	if err != nil {
		h.respondErrorWithOp(w, http.StatusServiceUnavailable, fmt.Sprintf("failed to toggle theme: %v", err), "server.handleToggleTheme")
		return
	}
	metrics.IncThemeChange(string(theme))
	h.writeJSON(w, http.StatusOK, themeResponse{Theme: theme, ToggleLabel: theme.ToggleLabel()})
}

func (h *handler) handleVersion(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// calculate decodes form values from the request and computes their
// schedule. On failure the error response has already been written.
func (h *handler) calculate(w http.ResponseWriter, r *http.Request, op string) (*amortization.Schedule, bool) {
	start := time.Now()

	payload, ok := h.decodePayload(w, r, op)
	if !ok {
		metrics.ObserveCalculation(metrics.ResultInvalid, time.Since(start), 0)
		return nil, false
	}

	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	values := make(form.Values, len(payload))
	var unknown []string
	for _, key := range keys {
		raw := payload[key]
		if !form.IsField(key) {
			unknown = append(unknown, key)
			continue
		}
		text, ok := coerceString(raw)
		if !ok {
			h.respondFields(w, http.StatusBadRequest, fmt.Sprintf("%s: expected a number or string", key), []string{key}, op)
			metrics.ObserveCalculation(metrics.ResultInvalid, time.Since(start), 0)
			return nil, false
		}
		values[key] = text
	}
	if len(unknown) > 0 {
		h.respondFields(w, http.StatusBadRequest, "unknown fields: "+strings.Join(unknown, ", "), unknown, op)
		metrics.ObserveCalculation(metrics.ResultInvalid, time.Since(start), 0)
		return nil, false
	}

	in, err := form.ParseAndValidate(values)
	if err == nil {
		var schedule *amortization.Schedule
		schedule, err = h.calc.Compute(in)
		if err == nil {
			metrics.ObserveCalculation(metrics.ResultSuccess, time.Since(start), len(schedule.Periods))
			return schedule, true
		}
	}
	metrics.ObserveCalculation(metrics.ResultInvalid, time.Since(start), 0)

	var parseErr *form.ParseError
	var inputErr *amortization.InvalidInputError
	switch {
	case errors.As(err, &parseErr):
		h.respondFields(w, http.StatusBadRequest, parseErr.Error(), parseErr.FieldNames(), op)
	case errors.As(err, &inputErr):
		fields := make([]string, 0, len(inputErr.Fields))
		for _, name := range inputErr.FieldNames() {
			fields = append(fields, form.FieldForInput(name))
		}
		h.respondFields(w, http.StatusUnprocessableEntity, inputErr.Error(), fields, op)
	default:
		h.respondErrorWithOp(w, http.StatusInternalServerError, fmt.Sprintf("failed to compute schedule: %v", err), op)
	}
	return nil, false
}

// decodePayload reads a JSON object from the size-limited request body.
func (h *handler) decodePayload(w http.ResponseWriter, r *http.Request, op string) (map[string]interface{}, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxRequestSize)

	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()

	var payload map[string]interface{}
	if err := decoder.Decode(&payload); err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			h.respondErrorWithOp(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request exceeds limit of %d bytes", h.maxRequestSize), op)
		case errors.Is(err, io.EOF):
			h.respondErrorWithOp(w, http.StatusBadRequest, "request body is empty", op)
		default:
			h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to decode request: %v", err), op)
		}
		return nil, false
	}
	if payload == nil {
		payload = make(map[string]interface{})
	}
	return payload, true
}

func (h *handler) buildDisplay(schedule *amortization.Schedule, columns amortization.ColumnTotals) displaySchedule {
	money := func(v float64) string { return format.Currency(v, h.display) }
	totals := schedule.Totals

	periods := make([]displayPeriod, 0, len(schedule.Periods))
	for _, p := range schedule.Periods {
		periods = append(periods, displayPeriod{
			Period:           p.Index,
			RemainingBalance: money(p.RemainingBalance),
			Principal:        money(p.Principal),
			Interest:         money(p.Interest),
			Tax:              money(p.InterestTax),
			Fees:             money(p.Fee + p.FeeTax),
			TotalPayment:     money(p.TotalPayment),
		})
	}

	return displaySchedule{
		MonthlyPayment:  money(schedule.MonthlyPayment),
		TotalAmountPaid: money(totals.TotalAmountPaid),
		TotalInterest:   money(totals.TotalInterest),
		TotalTaxPaid:    money(totals.TotalTaxPaid),
		TotalFeeWithTax: money(totals.TotalFeeWithTax),
		TotalExtraCost:  money(totals.TotalExtraCost),
		Periods:         periods,
		ColumnTotals: displayPeriod{
			Principal:    money(columns.Principal),
			Interest:     money(columns.Interest),
			Tax:          money(columns.Tax),
			Fees:         money(columns.Fee + columns.FeeTax),
			TotalPayment: money(columns.TotalPayment),
		},
	}
}

func clientID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(ClientHeader)); id != "" {
		return id
	}
	return strings.TrimSpace(r.URL.Query().Get("client"))
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, status int, msg string, op string) {
	h.respondFields(w, status, msg, nil, op)
}

func (h *handler) respondFields(w http.ResponseWriter, status int, msg string, fields []string, op string) {
	log := h.logger.Warn
	if status >= http.StatusInternalServerError {
		log = h.logger.Error
	}
	log("request failed",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("error", msg),
		zap.Strings("fields", fields),
	)

	h.writeJSON(w, status, errorResponse{Error: msg, Fields: fields})
}

// writeJSON encodes payload before writing the status so an encoding
// failure can still be reported as a 500.
func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to encode JSON response",
			zap.String("op", "server.writeJSON"),
			zap.Error(err),
		)
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorResponse{Error: "failed to encode response"})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		h.logger.Error("failed to write JSON response",
			zap.String("op", "server.writeJSON"),
			zap.Error(err),
		)
	}
}

// coerceString turns a decoded JSON value into field text. Numbers keep
// their literal form.
func coerceString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", true
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	}
	return "", false
}
