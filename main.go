package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"sjsage522/marketcrawler/config"
	"sjsage522/marketcrawler/logger"
)

var version = "dev"

func main() {
	// Load environment variables
	godotenv.Load()

	cfg := config.LoadConfig()
	if err := newRootCommand(cfg).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:     "marketcrawler",
		Short:   "Crawl marketplace listings and extract product records",
		Version: version,
		Long: `marketcrawler walks paginated marketplace listings, extracts product
records from listing cards, falls back to ID mining and detail pages when
cards are missing, and stores the results in SQLite.`,
		Example: `  # Crawl three pages of a 999.md category and store the products
  marketcrawler crawl --url "https://999.md/ro/list/transport/cars" --max-pages 3

  # Queue product URLs for separate consumers
  marketcrawler produce --url "https://www.ebay.com/b/Cell-Phones/9355"
  marketcrawler consume

  # Extract one product page to stdout
  marketcrawler extract "https://999.md/ro/102552121"`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cfg.Validate()
		},
	}

	root.PersistentFlags().StringVar(&cfg.ProfilesFile, "profiles", cfg.ProfilesFile, "YAML file with additional site profiles")
	root.PersistentFlags().StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "SQLite database path")
	root.PersistentFlags().StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Serve Prometheus metrics on this address (e.g. :9090)")
	root.PersistentFlags().DurationVar(&cfg.RequestDelay, "delay", cfg.RequestDelay, "Delay after each listing page and before each detail fetch")

	root.AddCommand(
		newCrawlCommand(cfg),
		newProduceCommand(cfg),
		newConsumeCommand(cfg),
		newExtractCommand(cfg),
		newProductsCommand(cfg),
	)
	return root
}

// initLogging sends logs to stdout unless stdout carries command output
func initLogging(stdoutIsData bool) {
	if !stdoutIsData {
		logger.Init()
		return
	}
	logger.InitWithWriter(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	})
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Default.Info().
				Str("signal", sig.String()).
				Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
