package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/symbiosis/app"
	"github.com/kilianp07/symbiosis/config"
	"github.com/kilianp07/symbiosis/infra/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:          "symbiosis",
	Short:        "Industrial symbiosis exchange optimizer",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (yaml or json)")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// withService loads the configuration, builds the service and runs fn with a
// context canceled on SIGINT or SIGTERM. The Prometheus endpoint is served
// for the duration of fn when configured.
func withService(fn func(ctx context.Context, svc *app.Service) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()

	srvCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := svc.ServeMetrics(srvCtx); err != nil {
			logger.New("main").Errorf("prom server: %v", err)
		}
	}()
	return fn(ctx, svc)
}
