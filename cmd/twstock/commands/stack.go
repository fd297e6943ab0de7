package commands

import (
	"context"
	"fmt"

	"github.com/jorseph/tw-stock/internal/cache"
	"github.com/jorseph/tw-stock/internal/contracts"
	"github.com/jorseph/tw-stock/internal/quote"
	"github.com/jorseph/tw-stock/internal/scanner"
	"github.com/jorseph/tw-stock/internal/screening"
	"github.com/jorseph/tw-stock/internal/universe"
	"github.com/jorseph/tw-stock/pkg/config"
	"github.com/jorseph/tw-stock/pkg/database"
	"github.com/jorseph/tw-stock/pkg/httputil"
	"github.com/jorseph/tw-stock/pkg/logger"
	"github.com/jorseph/tw-stock/pkg/redis"
)

// appStack holds the wired application dependencies shared by commands
// ⭐ SSOT: 依賴組裝只在 buildStack
type appStack struct {
	cfg       *config.Config
	log       *logger.Logger
	db        *database.DB
	redis     *redis.Client
	quotes    contracts.QuoteStore
	quoteRepo *quote.Repository
	universe  *universe.Source
	uniRepo   *universe.Repository
	prices    *cache.PriceCache
	bundles   *cache.BundleCache
	runner    *scanner.Runner
}

// buildStack loads config and wires every component a command may need
func buildStack(ctx context.Context) (*appStack, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Scan.Validate(); err != nil {
		return nil, fmt.Errorf("scan config: %w", err)
	}

	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	rds, err := redis.New(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	rcache := redis.NewCache(rds, "twstock")

	httpClient := httputil.New(log, cfg.TWSE.FetchTimeout)
	if rds.Enabled() {
		limiter := redis.NewRateLimiter(rds, "twstock")
		httpClient = httpClient.WithRateLimiter(limiter, redis.TWSERateLimit)
	}

	// Quote path: TWSE remote behind the local observation ledger
	twseClient := quote.NewClient(cfg, httpClient, log)
	remote := quote.NewRemoteStore(twseClient, cfg.TWSE.HistoryMonths, log)
	quoteRepo := quote.NewRepository(db.Pool)
	quotes := quote.NewLedgerStore(quoteRepo, remote, log)

	// Universe path: open-data listing with DB fallback
	uniFetcher := universe.NewFetcher(cfg, httpClient, log)
	uniRepo := universe.NewRepository(db.Pool)
	uniSource := universe.NewSource(uniFetcher, uniRepo, log)

	// Caches
	priceStore := cache.NewRedisPriceStore(rcache, cfg.Scan.PriceCacheTTL)
	prices := cache.New(priceStore, cfg.Scan.PriceCacheTTL, log)
	bundles := cache.NewBundleCache(rcache, cfg.Scan.BundleCacheTTL, log)
	checkpoints := scanner.NewRedisCheckpointStore(rcache, cfg.Scan.ProgressTTL, log)

	// Scan pipeline
	screener := screening.NewScreener(screening.FromScanConfig(cfg.Scan), log)
	ranker := screening.NewRanker(log)
	runner := scanner.New(quotes, uniSource, checkpoints, prices, bundles, screener, ranker, cfg.Scan, log)

	return &appStack{
		cfg:       cfg,
		log:       log,
		db:        db,
		redis:     rds,
		quotes:    quotes,
		quoteRepo: quoteRepo,
		universe:  uniSource,
		uniRepo:   uniRepo,
		prices:    prices,
		bundles:   bundles,
		runner:    runner,
	}, nil
}

// Close releases database and Redis connections
func (s *appStack) Close() {
	if s.db != nil {
		s.db.Close()
	}
	if s.redis != nil {
		s.redis.Close()
	}
}
