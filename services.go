package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sjsage522/marketcrawler/config"
	"sjsage522/marketcrawler/internal/crawler"
	"sjsage522/marketcrawler/logger"
	"sjsage522/marketcrawler/services/cache"
	"sjsage522/marketcrawler/services/queue"
	"sjsage522/marketcrawler/services/store"
)

// Services holds all the initialized services
type Services struct {
	Registry *crawler.Registry
	Metrics  *crawler.Metrics
	Fetcher  *crawler.HTTPFetcher
	Store    *store.Store
	Queue    *queue.RedisQueue

	metricsServer *http.Server
}

// serviceNeeds selects the optional services a command uses
type serviceNeeds struct {
	store bool
	queue bool
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		s.metricsServer.Shutdown(ctx)
		cancel()
	}
	if s.Queue != nil {
		s.Queue.Close()
	}
	if s.Store != nil {
		s.Store.Close()
	}
}

// initializeServices initializes the services a command needs
func initializeServices(ctx context.Context, cfg *config.Config, needs serviceNeeds) (*Services, error) {
	log := logger.Default
	services := &Services{}

	registry := crawler.DefaultRegistry()
	if cfg.ProfilesFile != "" {
		if err := registry.LoadProfiles(cfg.ProfilesFile); err != nil {
			return nil, err
		}
		log.Info().Str("file", cfg.ProfilesFile).Int("profiles", len(registry.Profiles())).Msg("Loaded site profiles")
	}
	services.Registry = registry

	services.Metrics = crawler.NewMetrics()
	if cfg.MetricsAddr != "" {
		services.metricsServer = serveMetrics(cfg.MetricsAddr, services.Metrics)
	}

	// Initialize cache service for host blocks
	var cacheService cache.CacheService = cache.NewMemoryCache()
	if cfg.MemcacheAddr != "" {
		mc := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := mc.Ping(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.MemcacheAddr).Msg("Memcache unavailable, keeping host blocks in memory")
		} else {
			cacheService = mc
			log.Info().Str("addr", cfg.MemcacheAddr).Msg("Connected to Memcache")
		}
	}

	services.Fetcher = crawler.NewHTTPFetcher(cfg.RequestTimeout,
		crawler.WithMaxBodyBytes(cfg.MaxBodyBytes),
		crawler.WithBlocklist(cache.NewHostBlocklist(cacheService, cfg.BlockDuration)),
		crawler.WithFetchMetrics(services.Metrics),
	)

	if needs.store {
		st, err := store.Open(cfg.DatabasePath, cfg.KnownURLCache)
		if err != nil {
			services.Cleanup()
			return nil, err
		}
		services.Store = st
		log.Info().Str("path", cfg.DatabasePath).Msg("Opened product store")
	}

	if needs.queue {
		q := queue.NewRedisQueue(queue.Options{
			Addr:      cfg.RedisAddr,
			DB:        cfg.RedisDB,
			Stream:    cfg.RedisStream,
			Group:     cfg.RedisGroup,
			Consumer:  cfg.RedisConsumer,
			MaxLength: cfg.RedisStreamMaxLength,
		})
		if err := q.Ping(ctx); err != nil {
			q.Close()
			services.Cleanup()
			return nil, err
		}
		services.Queue = q
		log.Info().
			Str("addr", cfg.RedisAddr).
			Int("db", cfg.RedisDB).
			Str("stream", cfg.RedisStream).
			Msg("Connected to Redis")
	}

	return services, nil
}

func serveMetrics(addr string, m *crawler.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Default.Info().Str("addr", addr).Msg("Serving metrics")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.LogError("metrics", err, "metrics server stopped")
		}
	}()
	return server
}

func sessionConfig(cfg *config.Config) crawler.SessionConfig {
	return crawler.SessionConfig{
		RequestDelay:      cfg.RequestDelay,
		FallbackThreshold: cfg.FallbackThreshold,
		DetailBudget:      cfg.DetailBudget,
	}
}
