package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/invoicing/backend/internal/bootstrap"
	"github.com/invoicing/backend/internal/infrastructure/config"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var Version = "dev"

func main() {
	rootCmd := newRootCmd()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "recur",
		Short:         "Recurring invoice engine tools",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override the configured log level")

	rootCmd.AddCommand(runCmd(opts))
	rootCmd.AddCommand(scheduleCmd(opts))
	rootCmd.AddCommand(seedCmd(opts))
	return rootCmd
}

type rootOptions struct {
	logLevel string
}

// load reads configuration and builds the logger shared by every command
func (o *rootOptions) load() (*config.Config, *zap.Logger, error) {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	log, err := bootstrap.NewLogger(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, log, nil
}

// withApp runs fn against a fully wired application and closes it afterwards
func (o *rootOptions) withApp(ctx context.Context, fn func(app *bootstrap.App) error) error {
	cfg, log, err := o.load()
	if err != nil {
		return err
	}
	defer logger.Sync(log)

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close(context.WithoutCancel(ctx))
	return fn(app)
}
