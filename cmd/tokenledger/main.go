package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

// Persistent flags shared by every subcommand.
var (
	configPath string
	logLevel   string
	logFormat  string
)

func main() {
	root := &cobra.Command{
		Use:           "tokenledger",
		Short:         "Token usage and blended LLM cost analytics with pricing reconciliation",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "tokenledger.yaml", "path to config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json (overrides config)")

	root.AddCommand(
		newMonthlyCmd(),
		newDailyCmd(),
		newCoverageCmd(),
		newPricingCmd(),
		newEventsCmd(),
		newHistoryCmd(),
		newBudgetCmd(),
		newCacheCmd(),
		newMCPCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
