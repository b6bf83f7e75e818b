package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"realestate-scraper/config"
	"realestate-scraper/scraper/c21"
	"realestate-scraper/scraper/fetch"
	"realestate-scraper/services"
	"realestate-scraper/storage"
	"realestate-scraper/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		utils.NewLogger().Error("Invalid configuration: %v", err)
		os.Exit(1)
	}

	runID := uuid.NewString()
	logger := utils.NewLoggerWithOptions(utils.LoggerOptions{
		Level: utils.ParseLevel(cfg.LogLevel),
		JSON:  strings.EqualFold(cfg.LogFormat, "json"),
	}).With("run_id", runID)

	logger.Info("=== Real-estate scraping system starting ===")
	logger.Info("Config: source %s | sitemap %s | limit %d | concurrency %d | fetch %s",
		cfg.SourceName, cfg.SitemapURL, cfg.URLLimit, cfg.MaxConcurrency, cfg.FetchMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink, err := openSink(cfg, logger)
	if err != nil {
		logger.Error("Failed to open storage: %v", err)
		os.Exit(1)
	}
	defer sink.Close()

	opts := fetchOptions(cfg)
	// Site-maps are plain XML and always go over HTTP.
	httpFetcher := fetch.NewHTTPFetcher(opts, logger)
	fetcher, closeFetcher, err := openPageFetcher(cfg, opts, httpFetcher, logger)
	if err != nil {
		logger.Error("Failed to start fetcher: %v", err)
		os.Exit(1)
	}
	defer closeFetcher()

	discoverer := c21.NewDiscoverer(httpFetcher, c21.DiscoverOptions{
		Limit:         cfg.URLLimit,
		RespectRobots: cfg.RespectRobots,
		UserAgent:     cfg.UserAgent,
	}, logger)

	scraper := c21.New(
		c21.Options{
			RunID:       runID,
			SitemapURL:  cfg.SitemapURL,
			Concurrency: cfg.MaxConcurrency,
			MinInterval: ms(cfg.RateLimitMs),
		},
		discoverer,
		fetcher,
		c21.NewExtractor(logger),
		services.NewCleaner(logger, cfg.SourceName, runID),
		sink,
		logger,
	)

	summary, err := scraper.Run(ctx)
	if err != nil {
		logger.Warn("Run ended early: %v", err)
	}

	services.NewInsightService(logger).Print(os.Stdout, summary)
	fmt.Printf("  Done. %d URLs discovered, %d/%d listings saved.\n\n",
		summary.Discovered, summary.Persisted, summary.Dispatched)
}

// openSink builds the configured writers, wrapped in URL de-duplication
// when Redis is configured.
func openSink(cfg *config.Config, logger *utils.Logger) (storage.ListingWriter, error) {
	var writers []storage.ListingWriter

	if cfg.PostgresEnabled {
		pg, err := storage.NewPostgresWriter(cfg.DSN(), cfg.PostgresMigrate, cfg.MaxConcurrency)
		if err != nil {
			logger.Error("Make sure PostgreSQL is reachable at %s:%s", cfg.PostgresHost, cfg.PostgresPort)
			return nil, err
		}
		writers = append(writers, pg)
		logger.Info("Writing listings to PostgreSQL (table: properties)")
	}

	if cfg.CSVOutputPath != "" {
		csvWriter, err := storage.NewCSVWriter(cfg.CSVOutputPath)
		if err != nil {
			closeAll(writers)
			return nil, err
		}
		writers = append(writers, csvWriter)
		logger.Info("Appending listings to %s", cfg.CSVOutputPath)
	}

	var sink storage.ListingWriter = storage.NewMultiWriter(writers...)

	if cfg.RedisAddr != "" {
		seen, err := storage.NewRedisSeenStore(cfg.RedisAddr, time.Duration(cfg.DedupTTLHours)*time.Hour)
		if err != nil {
			closeAll(writers)
			return nil, err
		}
		sink = storage.NewDedupWriter(sink, seen)
		logger.Info("De-duplicating listing URLs through Redis at %s", cfg.RedisAddr)
	}
	return sink, nil
}

func closeAll(writers []storage.ListingWriter) {
	for _, w := range writers {
		_ = w.Close()
	}
}

func fetchOptions(cfg *config.Config) fetch.Options {
	return fetch.Options{
		UserAgent:        cfg.UserAgent,
		ConnectTimeout:   ms(cfg.ConnectTimeoutMs),
		ReadTimeout:      ms(cfg.ReadTimeoutMs),
		MaxRetries:       cfg.MaxRetries,
		RetryBaseDelay:   ms(cfg.RetryBaseDelayMs),
		RetryMaxDelay:    10 * time.Second,
		PolitenessDelay:  ms(cfg.PolitenessDelayMs),
		PolitenessJitter: ms(cfg.PolitenessJitterMs),
		MaxConnsPerHost:  cfg.MaxConcurrency,
	}
}

// openPageFetcher returns the listing page fetcher for FETCH_MODE and its
// cleanup.
func openPageFetcher(cfg *config.Config, opts fetch.Options, httpFetcher *fetch.HTTPFetcher, logger *utils.Logger) (fetch.Fetcher, func(), error) {
	if cfg.FetchMode == "browser" {
		b, err := fetch.NewBrowserFetcher(opts, cfg.ChromeBin, logger)
		if err != nil {
			return nil, nil, err
		}
		return b, func() { _ = b.Close() }, nil
	}
	return httpFetcher, func() {}, nil
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
