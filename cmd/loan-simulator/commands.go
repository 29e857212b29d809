package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iwvelando/loan-simulator/internal/cache"
	"github.com/iwvelando/loan-simulator/internal/config"
	"github.com/iwvelando/loan-simulator/internal/forecast"
	"github.com/iwvelando/loan-simulator/internal/optimizer"
	"github.com/iwvelando/loan-simulator/internal/server"
	"github.com/iwvelando/loan-simulator/pkg/constants"
	"github.com/iwvelando/loan-simulator/pkg/output"
	"github.com/iwvelando/loan-simulator/pkg/validation"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootOptions struct {
	logLevel string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "loan-simulator",
		Short:         "Compare a standard loan amortization against extra-payment strategies",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(
		newCompareCommand(opts),
		newQuickCommand(opts),
		newServeCommand(opts),
		newVersionCommand(),
	)
	return root
}

func newCompareCommand(root *rootOptions) *cobra.Command {
	var (
		configLocation string
		outputFormat   string
		schedule       bool
	)
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare every active scenario in a configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := config.LoadConfiguration(configLocation)
			if err != nil {
				return fmt.Errorf("failed to load configuration at %s: %w", configLocation, err)
			}
			if outputFormat != "" {
				conf.Output.Format = outputFormat
			}
			if schedule {
				conf.Output.Schedule = true
			}
			return runConfiguration(cmd.OutOrStdout(), conf, root.logLevel)
		},
	}
	cmd.Flags().StringVar(&configLocation, "config", constants.DefaultConfigFile, "path to configuration file")
	cmd.Flags().StringVar(&outputFormat, "output-format", "", "type of output override: pretty, csv, yearly-csv, json")
	cmd.Flags().BoolVar(&schedule, "schedule", false, "include the month-by-month schedule")
	return cmd
}

func newQuickCommand(root *rootOptions) *cobra.Command {
	var (
		loan          config.Loan
		extras        config.ExtraPayments
		lumpSumYears  int
		targetMonths  int
		optimizeField string
		outputFormat  string
		schedule      bool
	)
	cmd := &cobra.Command{
		Use:   "quick",
		Short: "Compare one loan against one extra-payment strategy given on the command line",
		RunE: func(cmd *cobra.Command, _ []string) error {
			extras.LumpSumYears = &lumpSumYears
			scenario := config.Scenario{Name: "quick", Active: true, ExtraPayments: extras}
			if targetMonths > 0 {
				scenario.Optimize = &config.OptimizerConfig{Field: optimizeField, TargetPayoffMonths: targetMonths}
				scenario.Optimize.Normalize()
			}
			conf := &config.Configuration{
				Output:    config.OutputConfig{Format: outputFormat, Schedule: schedule},
				Loan:      loan,
				Scenarios: []config.Scenario{scenario},
			}
			return runConfiguration(cmd.OutOrStdout(), conf, root.logLevel)
		},
	}

	flags := cmd.Flags()
	flags.Float64Var(&loan.Principal, "principal", 0, "amount borrowed")
	flags.Float64Var(&loan.AnnualRate, "rate", 0, "nominal annual interest rate in percent")
	flags.IntVar(&loan.TermYears, "term", 0, "loan term in years")
	flags.StringVar(&loan.StartDate, "start", time.Now().Format(constants.DateLayout), "first day of the loan (YYYY-MM-DD or YYYY-MM)")
	flags.StringVar(&extras.Mode, "mode", "", "extra payment mode: monthly, yearly or both (inferred when empty)")
	flags.Float64Var(&extras.ExtraMonthlyAmount, "extra-monthly", 0, "extra amount added to every payment")
	flags.Float64Var(&extras.YearlyLumpSum, "lump-sum", 0, "lump sum paid on each loan anniversary")
	flags.IntVar(&lumpSumYears, "lump-sum-years", 1, "number of anniversaries that receive the lump sum")
	flags.IntVar(&targetMonths, "target-months", 0, "solve for the extra payment that pays the loan off within this many months")
	flags.StringVar(&optimizeField, "optimize-field", config.OptimizerFieldExtraMonthly, "field tuned by --target-months: extraMonthlyAmount or yearlyLumpSum")
	flags.StringVar(&outputFormat, "output-format", constants.OutputFormatPretty, "type of output: pretty, csv, yearly-csv, json")
	flags.BoolVar(&schedule, "schedule", false, "include the month-by-month schedule")
	for _, name := range []string{"principal", "rate", "term"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newServeCommand(root *rootOptions) *cobra.Command {
	var (
		serverConfig string
		address      string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the comparison API over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := server.LoadConfig(serverConfig)
			if err != nil {
				return err
			}
			if address != "" {
				cfg.Address = address
			}

			logger, err := initializeLogger(cfg.Logging, root.logLevel)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer func() {
				_ = logger.Sync()
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, logger, cfg)
		},
	}
	cmd.Flags().StringVar(&serverConfig, "server-config", constants.DefaultServerConfigFile, "path to server configuration file")
	cmd.Flags().StringVar(&address, "address", "", "listen address override")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "loan-simulator %s\n", version)
			return err
		},
	}
}

// runConfiguration validates conf, applies optimizer directives and writes
// the comparisons in the configured output format.
func runConfiguration(out io.Writer, conf *config.Configuration, logLevel string) error {
	logger, err := initializeLogger(conf.Logging, logLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	outputFormat := conf.Output.Format
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
	if err := conf.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	runner, err := optimizer.NewRunner(logger, conf)
	if err != nil {
		return err
	}
	optimizationResult, err := runner.Run()
	if err != nil {
		return fmt.Errorf("failed to optimize scenarios: %w", err)
	}

	results, err := forecast.GetForecast(logger, *conf)
	if err != nil {
		return fmt.Errorf("failed to compute forecast: %w", err)
	}
	optimizationResult.Apply(results)

	switch outputFormat {
	case constants.OutputFormatCSV:
		return output.CsvFormat(out, results)
	case constants.OutputFormatYearlyCSV:
		return output.YearlyCsvFormat(out, results)
	case constants.OutputFormatJSON:
		return output.JSONFormat(out, results, conf.Output.Schedule)
	default:
		return output.PrettyFormat(out, results, conf.Output.Schedule)
	}
}

// newCache builds the result cache for serve.
var newCache = cache.New

// serve runs the API until ctx is cancelled, then drains in-flight requests
// and releases the result cache.
func serve(ctx context.Context, logger *zap.Logger, cfg *server.Config) error {
	results, err := newCache(cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer func() {
		if err := cache.Close(results); err != nil {
			logger.Warn("failed to close result cache",
				zap.String("op", "main.serve"),
				zap.Error(err),
			)
		}
	}()

	handler := server.NewHandlerFromConfig(logger, cfg, version, results)

	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("op", "main.serve"),
			zap.String("address", cfg.Address),
			zap.String("cache", cfg.Cache.Backend),
			zap.Int("rateLimit", cfg.RateLimit.Requests),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down server", zap.String("op", "main.serve"))
	return srv.Shutdown(shutdownCtx)
}
