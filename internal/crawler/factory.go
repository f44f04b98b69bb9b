package crawler

import (
	"time"

	"sjsage522/carpriceworker/config"
	"sjsage522/carpriceworker/helpers"
	"sjsage522/carpriceworker/internal/governor"
	"sjsage522/carpriceworker/internal/offer"
	"sjsage522/carpriceworker/logger"
)

// CreateStrategies builds the strategies in priority order
func CreateStrategies(cfg *config.Config, budget governor.Budget, proxies ProxySource, detector *LandingDetector) []Strategy {
	httpOpts := HTTPOptions{
		BaseURL: cfg.TargetBaseURL,
		Profile: helpers.DesktopChrome,
		Timeout: 30 * time.Second,
		Proxies: proxies,
		Budget:  budget,
	}
	browserOpts := BrowserOptions{
		BaseURL:  cfg.TargetBaseURL,
		ExecPath: cfg.ChromePath,
		Headless: cfg.Headless,
		Proxies:  proxies,
	}

	// the form replay draws its browser fingerprint at random
	formOpts := httpOpts
	formOpts.Profile = helpers.RandomProfile()

	strategies := []Strategy{
		NewAPIStrategy(httpOpts, detector),
		NewFormStrategy(formOpts),
		NewChromedpStrategy(browserOpts),
		NewRodStrategy(browserOpts),
	}

	logger.Info("Created %d fetch strategies", len(strategies))
	for i, s := range strategies {
		logger.Debug("Strategy %d: %s", i+1, s.Name())
	}
	return strategies
}

// CreateChain wires the default chain for cfg
func CreateChain(cfg *config.Config, budget governor.Budget, normalizer *offer.Normalizer, proxies ProxySource) *Chain {
	detector := NewLandingDetector(cfg.LandingMarkers)
	return NewChain(ChainOptions{
		Strategies:   CreateStrategies(cfg, budget, proxies, detector),
		Normalizer:   normalizer,
		Detector:     detector,
		Budget:       budget,
		Timeout:      cfg.RequestBudget,
		RetryBackoff: cfg.RetryBackoff,
	})
}
