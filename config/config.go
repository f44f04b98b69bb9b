package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"sjsage522/carpriceworker/pkg/errors"
)

// Location is a monitored pickup location with optional pre-tokenized search URLs
type Location struct {
	Name string
	URLs []string
}

// Config represents the application configuration
type Config struct {
	// Redis snapshot streams
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Memcache result cache backend; empty means in-process cache
	MemcacheAddr string

	// Postgres snapshot table; empty disables it
	PostgresDSN string

	// Worker
	CrawlInterval time.Duration
	Locations     []Location
	Durations     []int
	PickupLead    time.Duration
	PickupTime    string

	// Governor
	MaxConcurrency      int
	MaxRetries          int
	RetryBackoff        time.Duration
	RequestsPerSecond   float64
	MinDispatchInterval time.Duration
	RequestBudget       time.Duration

	// Cache
	CacheTTL time.Duration

	// Target site
	TargetBaseURL   string
	DefaultLocale   string
	DefaultCurrency string
	SupplierFilter  string
	LandingMarkers  []string

	// Browsers
	ChromePath string
	Headless   bool
	ProxyList  []string

	// Pricing
	FXRateURL         string
	AdjustmentPct     float64
	AdjustmentOffset  float64
	AdjustmentOrigins []string
	MinPriceDay       float64
	MinPriceMonth     float64

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	return &Config{
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		RedisStream:          getEnv("REDIS_STREAM", "carprices"),
		RedisStreamCount:     getEnvInt("REDIS_STREAM_COUNT", 1),
		RedisStreamMaxLength: getEnvInt("REDIS_STREAM_MAX_LENGTH", 10000),
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", ""),
		PostgresDSN:          getEnv("POSTGRES_DSN", ""),
		CrawlInterval:        time.Duration(getEnvInt("CRAWL_INTERVAL_SECONDS", 3600)) * time.Second,
		Locations:            parseLocations(getEnv("LOCATIONS", "Albufeira;Aeroporto de Faro")),
		Durations:            parseInts(getEnv("DURATIONS", "1,2,3,4,5,6,7,14,21,30,60,90")),
		PickupLead:           time.Duration(getEnvInt("PICKUP_LEAD_DAYS", 14)) * 24 * time.Hour,
		PickupTime:           getEnv("PICKUP_TIME", "10:00"),
		MaxConcurrency:       getEnvInt("MAX_CONCURRENCY", 6),
		MaxRetries:           getEnvInt("MAX_RETRIES", 3),
		RetryBackoff:         time.Duration(getEnvInt("RETRY_BACKOFF_MS", 2000)) * time.Millisecond,
		RequestsPerSecond:    getEnvFloat("REQUESTS_PER_SECOND", 1),
		MinDispatchInterval:  time.Duration(getEnvInt("MIN_DISPATCH_INTERVAL_MS", 1500)) * time.Millisecond,
		RequestBudget:        time.Duration(getEnvInt("REQUEST_BUDGET_SECONDS", 120)) * time.Second,
		CacheTTL:             time.Duration(getEnvInt("CACHE_TTL_SECONDS", 300)) * time.Second,
		TargetBaseURL:        strings.TrimRight(getEnv("TARGET_BASE_URL", "https://www.carjet.com"), "/"),
		DefaultLocale:        getEnv("DEFAULT_LOCALE", "pt"),
		DefaultCurrency:      getEnv("DEFAULT_CURRENCY", "EUR"),
		SupplierFilter:       getEnv("SUPPLIER_FILTER", ""),
		LandingMarkers:       parseList(getEnv("LANDING_MARKERS", "")),
		ChromePath:           getEnv("CHROME_PATH", ""),
		Headless:             getEnv("HEADLESS", "true") != "false",
		ProxyList:            parseList(getEnv("PROXY_LIST", "")),
		FXRateURL:            getEnv("FX_RATE_URL", ""),
		AdjustmentPct:        getEnvFloat("ADJUSTMENT_PCT", 0),
		AdjustmentOffset:     getEnvFloat("ADJUSTMENT_OFFSET", 0),
		AdjustmentOrigins:    parseList(getEnv("ADJUSTMENT_ORIGINS", "")),
		MinPriceDay:          getEnvFloat("MIN_PRICE_DAY", 0),
		MinPriceMonth:        getEnvFloat("MIN_PRICE_MONTH", 0),
		Environment:          getEnv("CARPRICE_ENVIRONMENT", "development"),
	}
}

// Validate checks the values a running worker depends on
func (c *Config) Validate() error {
	switch {
	case c.MaxConcurrency < 1:
		return errors.NewConfiguration(fmt.Sprintf("MAX_CONCURRENCY must be positive, got %d", c.MaxConcurrency), nil)
	case c.MaxRetries < 1:
		return errors.NewConfiguration(fmt.Sprintf("MAX_RETRIES must be at least 1, got %d", c.MaxRetries), nil)
	case c.CacheTTL < 0:
		return errors.NewConfiguration("CACHE_TTL_SECONDS must not be negative", nil)
	case c.RequestsPerSecond < 0:
		return errors.NewConfiguration("REQUESTS_PER_SECOND must not be negative", nil)
	case c.RedisStreamCount < 1:
		return errors.NewConfiguration("REDIS_STREAM_COUNT must be positive", nil)
	case len(c.Durations) == 0:
		return errors.NewConfiguration("DURATIONS must list at least one rental length", nil)
	}
	for _, d := range c.Durations {
		if d < 1 {
			return errors.NewConfiguration(fmt.Sprintf("invalid rental duration %d", d), nil)
		}
	}
	for _, loc := range c.Locations {
		if loc.Name == "" {
			return errors.NewConfiguration("LOCATIONS contains an entry without a name", nil)
		}
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvFloat(key string, defaultValue float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func parseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseInts(raw string) []int {
	var out []int
	for _, part := range parseList(raw) {
		if n, err := strconv.Atoi(part); err == nil {
			out = append(out, n)
		}
	}
	return out
}

// parseLocations reads "Name=url|url;Other" entries
func parseLocations(raw string) []Location {
	var out []Location
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, urls, _ := strings.Cut(entry, "=")
		loc := Location{Name: strings.TrimSpace(name)}
		for _, u := range strings.Split(urls, "|") {
			if u = strings.TrimSpace(u); u != "" {
				loc.URLs = append(loc.URLs, u)
			}
		}
		out = append(out, loc)
	}
	return out
}
