package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"sjsage522/marketcrawler/config"
	"sjsage522/marketcrawler/internal/crawler"
	"sjsage522/marketcrawler/logger"
	"sjsage522/marketcrawler/services/worker"
)

// outputEntry is one record as printed by the crawl and extract commands
type outputEntry struct {
	URL    string                `json:"url"`
	Record crawler.ProductRecord `json:"record"`
}

func newCrawlCommand(cfg *config.Config) *cobra.Command {
	var (
		startURL string
		maxPages int
		output   string
		publish  bool
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl listing pages and store the extracted products",
		RunE: func(cmd *cobra.Command, args []string) error {
			initLogging(output == "-")
			if startURL == "" {
				return fmt.Errorf("--url or START_URL is required")
			}

			ctx, cancel := signalContext()
			defer cancel()

			services, err := initializeServices(ctx, cfg, serviceNeeds{store: true, queue: publish})
			if err != nil {
				return err
			}
			defer services.Cleanup()

			session := crawler.NewSession(services.Fetcher, services.Registry, sessionConfig(cfg), services.Metrics)
			res := session.Run(ctx, startURL, maxPages)

			// the snapshot is persisted even when the crawl was interrupted
			saved := worker.NewPersister(services.Store, cfg.PersistWorkers).SaveAll(cmd.Context(), res)
			if publish {
				worker.NewProducer(services.Store, services.Queue).PublishAll(cmd.Context(), res)
			}

			logger.Default.Info().
				Str("run_id", res.RunID).
				Int("visited", res.Visited).
				Int("failed", res.Failed).
				Int("records", len(res.Records)).
				Int("saved", saved.Saved).
				Bool("interrupted", res.Interrupted).
				Msg("Crawl finished")

			if output != "" {
				return writeResult(output, res)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&startURL, "url", "u", cfg.StartURL, "Listing URL to start from")
	cmd.Flags().IntVarP(&maxPages, "max-pages", "n", cfg.MaxPages, "Maximum number of listing pages to visit")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Also write the records as JSON to this file (- for stdout)")
	cmd.Flags().BoolVar(&publish, "publish", false, "Also publish the product URLs to the Redis stream")
	return cmd
}

func newProduceCommand(cfg *config.Config) *cobra.Command {
	var (
		startURL string
		maxPages int
	)

	cmd := &cobra.Command{
		Use:   "produce",
		Short: "Crawl listing pages and queue product URLs for consumers",
		RunE: func(cmd *cobra.Command, args []string) error {
			initLogging(false)
			if startURL == "" {
				return fmt.Errorf("--url or START_URL is required")
			}

			ctx, cancel := signalContext()
			defer cancel()

			services, err := initializeServices(ctx, cfg, serviceNeeds{store: true, queue: true})
			if err != nil {
				return err
			}
			defer services.Cleanup()

			// consumers fetch the detail pages, so the crawl itself does not
			sc := sessionConfig(cfg)
			sc.DetailBudget = 0

			res := crawler.NewSession(services.Fetcher, services.Registry, sc, services.Metrics).Run(ctx, startURL, maxPages)
			summary := worker.NewProducer(services.Store, services.Queue).PublishAll(cmd.Context(), res)

			logger.Default.Info().
				Str("run_id", res.RunID).
				Int("visited", res.Visited).
				Int("published", summary.Saved).
				Int("skipped", summary.Skipped).
				Msg("Produce finished")
			return nil
		},
	}

	cmd.Flags().StringVarP(&startURL, "url", "u", cfg.StartURL, "Listing URL to start from")
	cmd.Flags().IntVarP(&maxPages, "max-pages", "n", cfg.MaxPages, "Maximum number of listing pages to visit")
	return cmd
}

func newConsumeCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "consume",
		Short: "Extract and store product URLs from the Redis stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			initLogging(false)

			ctx, cancel := signalContext()
			defer cancel()

			services, err := initializeServices(ctx, cfg, serviceNeeds{store: true, queue: true})
			if err != nil {
				return err
			}
			defer services.Cleanup()

			processor := worker.NewProcessor(services.Fetcher, services.Registry, services.Store)
			logger.Default.Info().
				Str("group", cfg.RedisGroup).
				Str("consumer", cfg.RedisConsumer).
				Msg("Starting product consumer")
			return services.Queue.Consume(ctx, processor.Handle)
		},
	}
}

func newExtractCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "extract URL",
		Short: "Extract one product page and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			initLogging(true)

			ctx, cancel := signalContext()
			defer cancel()

			services, err := initializeServices(ctx, cfg, serviceNeeds{})
			if err != nil {
				return err
			}
			defer services.Cleanup()

			url, rec, err := worker.NewProcessor(services.Fetcher, services.Registry, nil).Extract(ctx, args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), outputEntry{URL: url, Record: rec})
		},
	}
}

func newProductsCommand(cfg *config.Config) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "products",
		Short: "List stored products as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			initLogging(true)

			services, err := initializeServices(cmd.Context(), cfg, serviceNeeds{store: true})
			if err != nil {
				return err
			}
			defer services.Cleanup()

			products, err := services.Store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), products)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of products to list (0 for all)")
	return cmd
}

func writeResult(path string, res *crawler.Result) error {
	entries := make([]outputEntry, 0, len(res.Order))
	for _, url := range res.Order {
		entries = append(entries, outputEntry{URL: url, Record: res.Records[url]})
	}

	if path == "-" {
		return writeJSON(os.Stdout, entries)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return writeJSON(f, entries)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
