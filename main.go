package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"sjsage522/carpriceworker/config"
	"sjsage522/carpriceworker/internal/crawler"
	"sjsage522/carpriceworker/internal/governor"
	"sjsage522/carpriceworker/internal/offer"
	"sjsage522/carpriceworker/internal/pricing"
	"sjsage522/carpriceworker/internal/tracker"
	"sjsage522/carpriceworker/logger"
	"sjsage522/carpriceworker/services/cache"
	"sjsage522/carpriceworker/services/proxy"
	"sjsage522/carpriceworker/services/publisher"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "carpriceworker",
	Short: "carpriceworker collects competitor car rental prices.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.LoadConfig()
		return cfg.Validate()
	},
	SilenceUsage: true,
}

var cfg *config.Config

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()

	// Set up context cancelled on shutdown signals
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Services holds all the initialized services
type Services struct {
	Cache     *cache.ResultCache
	Publisher publisher.Publisher
	Proxies   *proxy.Pool
	Governor  *governor.Governor
	Tracker   *tracker.Tracker
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Cache != nil {
		s.Cache.Wait()
	}
	if s.Publisher != nil {
		s.Publisher.Close()
	}
}

// initializeServices wires the search pipeline. The snapshot publisher is
// only connected when withPublisher is set.
func initializeServices(ctx context.Context, cfg *config.Config, withPublisher bool) (*Services, error) {
	log := logger.Default
	services := &Services{}

	// Result cache backend
	var backend cache.CacheService = cache.NewMemoryCache()
	if cfg.MemcacheAddr != "" {
		mc := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := mc.Ping(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.MemcacheAddr).Msg("Memcache unreachable, using in-process cache")
		} else {
			backend = mc
			logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
		}
	}
	services.Cache = cache.NewResultCache(backend, cfg.CacheTTL, 0)

	// Egress proxies
	var proxies crawler.ProxySource
	if len(cfg.ProxyList) > 0 {
		services.Proxies = proxy.NewPool(cfg.ProxyList)
		if err := services.Proxies.UpdateProxies(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to rank proxies")
		}
		log.Info().Interface("proxy_stats", services.Proxies.Stats()).Msg("Proxy stats")
		proxies = services.Proxies
	}

	// Pricing
	var source pricing.RateSource
	if cfg.FXRateURL != "" {
		source = pricing.NewHTTPRateSource(cfg.FXRateURL)
	}
	normalizer := offer.NewNormalizer(offer.Options{
		FX: pricing.NewFXConverter(source),
		Policy: pricing.AdjustmentPolicy{
			Default: pricing.Adjustment{Pct: cfg.AdjustmentPct, Flat: cfg.AdjustmentOffset},
			Allowed: cfg.AdjustmentOrigins,
		},
		DefaultCurrency: cfg.DefaultCurrency,
	})

	// Governor and chain share one dispatch budget
	services.Governor = governor.New(governor.Options{
		Workers:     cfg.MaxConcurrency,
		MaxAttempts: cfg.MaxRetries,
		Backoff:     cfg.RetryBackoff,
		Budget:      governor.NewRateBudget(cfg.MinDispatchInterval, cfg.RequestsPerSecond),
	})
	chain := crawler.CreateChain(cfg, services.Governor.Budget(), normalizer, proxies)
	logger.LogInfo("main", "Fetch chain: %s (cache ttl %s)", strings.Join(chain.Strategies(), " > "), services.Cache.TTL())

	services.Tracker = tracker.New(tracker.Options{
		Chain:           chain,
		Cache:           services.Cache,
		Governor:        services.Governor,
		DefaultLocale:   cfg.DefaultLocale,
		DefaultCurrency: cfg.DefaultCurrency,
		PickupLead:      cfg.PickupLead,
		PickupTime:      cfg.PickupTime,
		SupplierHint:    cfg.SupplierFilter,
	})

	if !withPublisher {
		return services, nil
	}

	// Snapshot publishers
	redisPublisher := publisher.NewRedisPublisher(
		cfg.RedisAddr,
		cfg.RedisDB,
		cfg.RedisStream,
		cfg.RedisStreamCount,
		cfg.RedisStreamMaxLength,
	)
	if err := redisPublisher.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
		cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)

	var pg publisher.Publisher
	if cfg.PostgresDSN != "" {
		p, err := publisher.NewPostgresPublisher(ctx, cfg.PostgresDSN)
		if err != nil {
			redisPublisher.Close()
			return nil, err
		}
		pg = p
		logger.Info("Connected to Postgres snapshot store")
	}
	services.Publisher = publisher.NewMultiPublisher(redisPublisher, pg)

	return services, nil
}
