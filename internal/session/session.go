// Package session implements the interactive calculator front end. A
// Session owns every piece of mutable display state; the amortization
// engine only ever sees parsed, validated input.
package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iwvelando/emi-calculator/internal/form"
	"github.com/iwvelando/emi-calculator/internal/metrics"
	"github.com/iwvelando/emi-calculator/internal/preferences"
	"github.com/iwvelando/emi-calculator/pkg/amortization"
	"github.com/iwvelando/emi-calculator/pkg/format"
	"github.com/iwvelando/emi-calculator/pkg/output"
)

// ErrUnknownCommand is returned for input the session does not understand.
var ErrUnknownCommand = errors.New("unknown command")

const helpText = `Commands:
  set <field> <value>   change a field (also: <field>=<value>)
  calc                  calculate the schedule (or press Enter)
  reset                 restore the default values
  theme                 switch between light and dark mode
  show                  print the current values
  help                  print this help
  quit                  leave the calculator
Fields: principal, rate, tenure, gstRate, processingFee, processingGstRate
`

// Options configures a Session.
type Options struct {
	Client   string
	Defaults amortization.Input
	Display  format.Options
}

// Session holds the state of one interactive calculator.
type Session struct {
	logger  *zap.Logger
	calc    *amortization.Calculator
	prefs   *preferences.Service
	out     io.Writer
	client  string
	display format.Options

	defaults amortization.Input
	values   form.Values
	theme    preferences.Theme
	last     *amortization.Schedule
}

// New creates a session showing the default values and the client's stored
// theme.
func New(ctx context.Context, logger *zap.Logger, prefs *preferences.Service, out io.Writer, opts Options) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefs == nil {
		prefs = preferences.NewService(logger, preferences.NewMemoryStore(), "", "")
	}

	theme, err := prefs.Theme(ctx, opts.Client)
	if err != nil {
		return nil, fmt.Errorf("failed to load theme preference: %w", err)
	}

	return &Session{
		logger:   logger,
		calc:     amortization.NewCalculator(logger),
		prefs:    prefs,
		out:      out,
		client:   opts.Client,
		display:  opts.Display.Normalize(),
		defaults: opts.Defaults,
		values:   form.FromInput(opts.Defaults),
		theme:    theme,
	}, nil
}

// Values returns a copy of the current field text.
func (s *Session) Values() form.Values {
	values := make(form.Values, len(s.values))
	for k, v := range s.values {
		values[k] = v
	}
	return values
}

// Theme returns the active theme.
func (s *Session) Theme() preferences.Theme {
	return s.theme
}

// LastSchedule returns the most recently displayed schedule, or nil.
func (s *Session) LastSchedule() *amortization.Schedule {
	return s.last
}

// Set changes one field's text. The previous result stays on screen until
// the next calculation.
func (s *Session) Set(field, value string) error {
	if !form.IsField(field) {
		return fmt.Errorf("%w: no field named %q", ErrUnknownCommand, field)
	}
	s.values[field] = value
	return nil
}

// Calculate parses the fields, computes the schedule and renders it.
func (s *Session) Calculate() error {
	start := time.Now()
	in, err := form.ParseAndValidate(s.values)
	if err != nil {
		metrics.ObserveCalculation(metrics.ResultInvalid, time.Since(start), 0)
		return err
	}

	schedule, err := s.calc.Compute(in)
	if err != nil {
		metrics.ObserveCalculation(metrics.ResultInvalid, time.Since(start), 0)
		return err
	}
	metrics.ObserveCalculation(metrics.ResultSuccess, time.Since(start), len(schedule.Periods))

	s.last = schedule
	return output.PrettyFormat(s.out, schedule, s.display)
}

// Reset restores the default field values and clears the result.
func (s *Session) Reset() {
	s.values = form.FromInput(s.defaults)
	s.last = nil
}

// ToggleTheme switches and persists the theme.
func (s *Session) ToggleTheme(ctx context.Context) error {
	theme, err := s.prefs.ToggleTheme(ctx, s.client)
	if err != nil {
		return fmt.Errorf("failed to store theme preference: %w", err)
	}
	metrics.IncThemeChange(string(theme))
	s.theme = theme
	return nil
}

// Execute runs one line of input. It reports whether the session should end.
func (s *Session) Execute(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if field, value, ok := strings.Cut(line, "="); ok {
		if field = strings.TrimSpace(field); !strings.Contains(field, " ") {
			return false, s.Set(field, strings.TrimSpace(value))
		}
	}

	fields := strings.Fields(line)
	command := ""
	if len(fields) > 0 {
		command = strings.ToLower(fields[0])
	}

	switch command {
	case "", "calc", "calculate":
		return false, s.Calculate()
	case "set":
		if len(fields) < 3 {
			return false, errors.New("usage: set <field> <value>")
		}
		return false, s.Set(fields[1], strings.Join(fields[2:], " "))
	case "reset":
		s.Reset()
		_, err := fmt.Fprintln(s.out, "Values reset to defaults.")
		return false, err
	case "theme":
		if err := s.ToggleTheme(ctx); err != nil {
			return false, err
		}
		_, err := fmt.Fprintf(s.out, "Theme: %s (%s)\n", s.theme, s.theme.ToggleLabel())
		return false, err
	case "show":
		return false, s.show()
	case "help", "?":
		_, err := io.WriteString(s.out, helpText)
		return false, err
	case "quit", "exit", "q":
		return true, nil
	}
	return false, fmt.Errorf("%w: %s", ErrUnknownCommand, command)
}

func (s *Session) show() error {
	for _, field := range form.Fields {
		if _, err := fmt.Fprintf(s.out, "%-26s %s\n", form.Labels[field]+":", s.values[field]); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(s.out, "%-26s %s\n", "Theme:", s.theme)
	return err
}

// Run reads commands from in until it is exhausted or the user quits.
// Command errors are shown to the user and do not end the session.
func (s *Session) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	if _, err := io.WriteString(s.out, "EMI calculator. Type help for commands.\n> "); err != nil {
		return err
	}
	for scanner.Scan() {
		quit, err := s.Execute(ctx, scanner.Text())
		if err != nil {
			s.logger.Debug("command failed",
				zap.String("op", "session.Run"),
				zap.Error(err),
			)
			if _, werr := fmt.Fprintf(s.out, "error: %v\n", err); werr != nil {
				return werr
			}
		}
		if quit {
			return nil
		}
		if _, err := io.WriteString(s.out, "> "); err != nil {
			return err
		}
	}
	return scanner.Err()
}
