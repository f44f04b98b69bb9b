package crawler

import (
	"context"

	"sjsage522/carpriceworker/helpers"
	"sjsage522/carpriceworker/logger"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// RodStrategy is the second headless engine. It presents a different
// fingerprint and only runs when chromedp produced no records.
type RodStrategy struct {
	opts    BrowserOptions
	profile helpers.Profile
}

// NewRodStrategy creates the stealth browser strategy
func NewRodStrategy(opts BrowserOptions) *RodStrategy {
	return &RodStrategy{opts: opts, profile: helpers.MacSafariLike}
}

func (s *RodStrategy) Name() string { return StrategyRod }

// After implements Gated
func (s *RodStrategy) After() string { return StrategyChromedp }

// Fetch implements Strategy
func (s *RodStrategy) Fetch(ctx context.Context, req Request) (*Page, error) {
	log := logger.ForFetcher(StrategyRod)

	l := launcher.New().
		Context(ctx).
		Headless(s.opts.Headless).
		NoSandbox(true).
		Set("disable-blink-features", "AutomationControlled").
		Set("lang", lang(req.Locale))
	if s.opts.ExecPath != "" {
		l = l.Bin(s.opts.ExecPath)
	}
	if s.opts.Proxies != nil {
		if proxyURL, ok := s.opts.Proxies.Next(); ok {
			l = l.Proxy(proxyURL)
		}
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, browserError(ctx, StrategyRod, err)
	}
	defer l.Cleanup()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, browserError(ctx, StrategyRod, err)
	}
	defer browser.Close()

	page, err := stealth.Page(browser)
	if err != nil {
		return nil, browserError(ctx, StrategyRod, err)
	}
	defer page.Close()

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      s.profile.UserAgent,
		AcceptLanguage: helpers.AcceptLanguage(req.Locale),
		Platform:       "MacIntel",
	}); err != nil {
		return nil, browserError(ctx, StrategyRod, err)
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             s.profile.Width,
		Height:            s.profile.Height,
		DeviceScaleFactor: 2,
	}); err != nil {
		log.Debug().Err(err).Msg("Viewport override failed")
	}

	target, needsForm := navigationTarget(s.opts.BaseURL, req)

	body, err := renderWithRetry(ctx, log, NewLandingDetector(nil).HasResults, func() (string, error) {
		log.Debug().Str("url", target).Bool("form", needsForm).Msg("Navigating")
		return s.render(ctx, page, target, needsForm, req)
	})
	if err != nil {
		return nil, browserError(ctx, StrategyRod, err)
	}

	final := ""
	if info, err := page.Info(); err == nil {
		final = info.URL
	}
	return &Page{URL: target, FinalURL: final, Body: body}, nil
}

// render navigates page to target and returns the settled markup
func (s *RodStrategy) render(ctx context.Context, page *rod.Page, target string, needsForm bool, req Request) (string, error) {
	if err := page.Navigate(target); err != nil {
		return "", err
	}
	if err := page.WaitLoad(); err != nil {
		return "", err
	}
	if err := sleepContext(ctx, s.opts.settle()); err != nil {
		return "", err
	}

	if needsForm {
		if _, err := page.Eval(fillFormScript(req)); err != nil {
			return "", err
		}
		if err := sleepContext(ctx, 2*s.opts.settle()); err != nil {
			return "", err
		}
	}

	if req.SupplierHint != "" {
		if res, err := page.Eval(supplierFilterScript(req.SupplierHint)); err == nil && res.Value.Bool() {
			logger.ForFetcher(StrategyRod).Debug().Str("supplier", req.SupplierHint).Msg("Supplier filter selected")
			_ = sleepContext(ctx, s.opts.settle()/2)
		}
	}

	return page.HTML()
}

// renderWithRetry runs render once more on the same page when the first
// pass fails or returns no result markup.
func renderWithRetry(ctx context.Context, log *logger.Logger, complete func(string) bool, render func() (string, error)) (string, error) {
	body, err := render()
	if ctx.Err() != nil || (err == nil && complete(body)) {
		return body, err
	}

	if err != nil {
		log.Warn().Err(err).Msg("Render failed, reloading in session")
	} else {
		log.Debug().Msg("No result markup yet, reloading in session")
	}
	retryBody, retryErr := render()
	if retryErr != nil {
		if err == nil {
			return body, nil
		}
		return "", retryErr
	}
	return retryBody, nil
}
