package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/iwvelando/emi-calculator/internal/config"
	"github.com/iwvelando/emi-calculator/internal/metrics"
	"github.com/iwvelando/emi-calculator/internal/preferences"
	"github.com/iwvelando/emi-calculator/internal/server"
	"github.com/iwvelando/emi-calculator/internal/session"
	"github.com/iwvelando/emi-calculator/pkg/amortization"
	"github.com/iwvelando/emi-calculator/pkg/constants"
	"github.com/iwvelando/emi-calculator/pkg/export"
	"github.com/iwvelando/emi-calculator/pkg/output"
	"github.com/iwvelando/emi-calculator/pkg/validation"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// initializeLogger creates a zap logger based on configuration and CLI override
func initializeLogger(loggingConfig config.LoggingConfig, logLevelOverride string) (*zap.Logger, error) {
	// Determine log level (CLI override takes precedence)
	level := loggingConfig.Level
	if logLevelOverride != "" {
		level = logLevelOverride
	}
	if level == "" {
		level = "info"
	}

	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn", "warning":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	format := loggingConfig.Format
	if format == "" {
		format = "json"
	}

	var zapConfig zap.Config
	switch format {
	case "console":
		zapConfig = zap.NewDevelopmentConfig()
	case "json":
		zapConfig = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}
	zapConfig.Level = zap.NewAtomicLevelAt(zapLevel)

	// Schedules go to stdout, so logs default to stderr.
	zapConfig.OutputPaths = []string{"stderr"}
	zapConfig.ErrorOutputPaths = []string{"stderr"}

	if loggingConfig.OutputFile != "" {
		if dir := filepath.Dir(loggingConfig.OutputFile); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create log directory %s: %v", dir, err)
			}
		}

		file, err := os.OpenFile(loggingConfig.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %v", loggingConfig.OutputFile, err)
		}
		_ = file.Close()

		zapConfig.OutputPaths = []string{loggingConfig.OutputFile}
		zapConfig.ErrorOutputPaths = []string{loggingConfig.OutputFile}
	}

	return zapConfig.Build()
}

type options struct {
	configLocation       string
	serverConfigLocation string
	outputFormat         string
	logLevel             string
	outFile              string
	interactive          bool
	serve                bool
	showVersion          bool
	client               string

	// Calculation overrides; only flags given on the command line apply.
	input amortization.Input
	set   map[string]bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{set: make(map[string]bool)}

	flags := flag.NewFlagSet("emi-calculator", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&opts.configLocation, "config", constants.DefaultConfigFile, "path to configuration file")
	flags.StringVar(&opts.serverConfigLocation, "server-config", constants.DefaultServerConfigFile, "path to server configuration file")
	flags.StringVar(&opts.outputFormat, "output-format", "", "type of output override: pretty, csv, json, xlsx, pdf")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	flags.StringVar(&opts.outFile, "out", "", "file to write xlsx or pdf output to")
	flags.BoolVar(&opts.interactive, "interactive", false, "run the interactive calculator on stdin")
	flags.BoolVar(&opts.serve, "serve", false, "start the HTTP API")
	flags.BoolVar(&opts.showVersion, "version", false, "print the version and exit")
	flags.StringVar(&opts.client, "client", preferences.DefaultClient, "client id used for the stored theme in interactive mode")

	flags.Float64Var(&opts.input.Principal, "principal", 0, "loan amount")
	flags.Float64Var(&opts.input.AnnualRatePercent, "rate", 0, "annual interest rate in percent")
	flags.IntVar(&opts.input.TenureMonths, "tenure", 0, "tenure in months")
	flags.Float64Var(&opts.input.GSTOnInterestPercent, "gst-rate", 0, "GST on interest in percent")
	flags.Float64Var(&opts.input.ProcessingFee, "processing-fee", 0, "one-time processing fee")
	flags.Float64Var(&opts.input.GSTOnProcessingPercent, "processing-gst-rate", 0, "GST on the processing fee in percent")

	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	flags.Visit(func(f *flag.Flag) {
		opts.set[f.Name] = true
	})
	return opts, nil
}

// calculationInput applies the command line overrides to the configured
// defaults.
func (o *options) calculationInput(defaults amortization.Input) amortization.Input {
	in := defaults
	if o.set["principal"] {
		in.Principal = o.input.Principal
	}
	if o.set["rate"] {
		in.AnnualRatePercent = o.input.AnnualRatePercent
	}
	if o.set["tenure"] {
		in.TenureMonths = o.input.TenureMonths
	}
	if o.set["gst-rate"] {
		in.GSTOnInterestPercent = o.input.GSTOnInterestPercent
	}
	if o.set["processing-fee"] {
		in.ProcessingFee = o.input.ProcessingFee
	}
	if o.set["processing-gst-rate"] {
		in.GSTOnProcessingPercent = o.input.GSTOnProcessingPercent
	}
	return in
}

// loadConfiguration reads the configuration file. A missing file is only
// an error when it was named explicitly.
func loadConfiguration(opts *options) (*config.Configuration, error) {
	if _, err := os.Stat(opts.configLocation); errors.Is(err, fs.ErrNotExist) && !opts.set["config"] {
		return config.DefaultConfiguration(), nil
	}
	return config.LoadConfiguration(opts.configLocation)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "{\"op\": \"main\", \"level\": \"fatal\", \"error\": %q}\n", err.Error())
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	if opts.showVersion {
		_, err := fmt.Fprintln(stdout, version)
		return err
	}

	conf, err := loadConfiguration(opts)
	if err != nil {
		return fmt.Errorf("failed to load configuration at %s: %w", opts.configLocation, err)
	}

	var serverConf *server.Config
	loggingConf := conf.Logging
	if opts.serve {
		serverConf, err = server.LoadConfig(opts.serverConfigLocation)
		if err != nil {
			return err
		}
		if serverConf.Logging != (config.LoggingConfig{}) {
			loggingConf = serverConf.Logging
		}
	}

	logger, err := initializeLogger(loggingConf, opts.logLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	// Determine output format (CLI override takes precedence over config)
	outputFormat := conf.Output.Format
	if opts.outputFormat != "" {
		outputFormat = opts.outputFormat
	}
	if outputFormat == "" {
		outputFormat = constants.OutputFormatPretty
	}
	if err := validation.ValidateOutputFormat(outputFormat); err != nil {
		return err
	}

	for _, warning := range conf.ValidateConfiguration() {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main"),
		)
	}

	store, err := preferences.NewStore(conf.Preferences)
	if err != nil {
		return err
	}
	if closer, ok := store.(io.Closer); ok {
		defer func() {
			_ = closer.Close()
		}()
	}
	prefs := preferences.NewService(logger, store, conf.Preferences.Namespace, conf.Preferences.DefaultTheme)

	defaults := opts.calculationInput(conf.Defaults)

	switch {
	case opts.serve:
		metrics.Init()
		handler := server.NewHandler(logger, server.Options{
			MaxRequestSize: serverConf.RequestSizeBytes(),
			Version:        version,
			Defaults:       defaults,
			Display:        conf.Presentation,
			Preferences:    prefs,
		})
		return server.ListenAndServe(ctx, logger, serverConf, handler)

	case opts.interactive:
		s, err := session.New(ctx, logger, prefs, stdout, session.Options{
			Client:   opts.client,
			Defaults: defaults,
			Display:  conf.Presentation,
		})
		if err != nil {
			return err
		}
		return s.Run(ctx, stdin)
	}

	schedule, err := amortization.NewCalculator(logger).Compute(defaults)
	if err != nil {
		return err
	}
	return writeSchedule(schedule, outputFormat, opts.outFile, conf, stdout, logger)
}

func writeSchedule(schedule *amortization.Schedule, outputFormat, outFile string, conf *config.Configuration, stdout io.Writer, logger *zap.Logger) error {
	switch outputFormat {
	case constants.OutputFormatPretty:
		return output.PrettyFormat(stdout, schedule, conf.Presentation)
	case constants.OutputFormatCSV:
		return output.CsvFormat(stdout, schedule)
	case constants.OutputFormatJSON:
		return output.JSONFormat(stdout, schedule)
	}

	var (
		data []byte
		err  error
	)
	switch outputFormat {
	case constants.OutputFormatXLSX:
		data, err = export.BuildScheduleXLSX(schedule)
	case constants.OutputFormatPDF:
		data, err = export.BuildSchedulePDF(schedule, conf.Presentation)
	default:
		return fmt.Errorf("unsupported output format %q", outputFormat)
	}
	if err != nil {
		return err
	}

	if outFile == "" {
		outFile = export.Filename(schedule, outputFormat)
	}
	if err := os.WriteFile(outFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outFile, err)
	}
	logger.Info("schedule exported",
		zap.String("op", "main"),
		zap.String("format", outputFormat),
		zap.String("file", outFile),
	)
	return nil
}
