// Package cmd defines and implements the CLI commands for the watcher executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/homework-watcher/internal/app"
	"github.com/JakeFAU/homework-watcher/internal/config"
	"github.com/JakeFAU/homework-watcher/internal/homework"
	"github.com/JakeFAU/homework-watcher/internal/logging"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
	return app.New(ctx, cfg, logger)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "watcher",
		Short: "Polls the homework review API and reports status changes to Telegram.",
		Long: `watcher checks the Practicum homework review API for status changes,
stores the last known status per homework in Postgres and notifies a Telegram chat
about every transition. Failures are reported once per distinct error text.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Builds the application after flags are parsed but before the subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			logger, err := logging.New(logging.Config{
				Development: cfg.Logging.Development,
				Level:       cfg.Logging.Level,
			})
			if err != nil {
				return err
			}
			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		// Ensures services are shut down gracefully.
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(*app.App); ok {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (environment variables are used when omitted)")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newScheduleCmd())

	return cmd
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application is not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point. A missing required variable or any other startup
// failure is logged at fatal level and exits non-zero.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fatal(err)
	}
}

func fatal(err error) {
	logger, lerr := logging.New(logging.Config{})
	if lerr != nil {
		fmt.Fprintf(os.Stderr, "command execution failed: %v\n", err)
		os.Exit(1)
	}
	var cfgErr *homework.ConfigError
	if errors.As(err, &cfgErr) {
		logger.Fatal("Программа принудительно остановлена.", zap.String("variable", cfgErr.Variable), zap.Error(err))
	}
	logger.Fatal("command execution failed", zap.Error(err))
}
