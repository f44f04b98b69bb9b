package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"sjsage522/carpriceworker/helpers"
	"sjsage522/carpriceworker/logger"
	"sjsage522/carpriceworker/pkg/errors"

	"github.com/chromedp/chromedp"
)

// BrowserOptions configures the headless strategies
type BrowserOptions struct {
	BaseURL    string
	ExecPath   string
	Headless   bool
	Proxies    ProxySource
	SettleTime time.Duration
}

func (o BrowserOptions) settle() time.Duration {
	if o.SettleTime <= 0 {
		return 4 * time.Second
	}
	return o.SettleTime
}

// navigationTarget returns the tokenized URL when the request has one,
// otherwise the locale home page whose form the browser fills in.
func navigationTarget(baseURL string, req Request) (string, bool) {
	if u := tokenizedURL(req); u != "" {
		return u, false
	}
	if len(req.URLs) > 0 {
		return req.URLs[0], false
	}
	return fmt.Sprintf("%s/%s", strings.TrimRight(baseURL, "/"), lang(req.Locale)), true
}

// fillFormScript submits the booking form in page for req
func fillFormScript(req Request) string {
	values, _ := json.Marshal(map[string]string{
		"pickup":       NormalizeLocation(req.Location),
		"pickup_date":  req.Pickup.Format("02/01/2006"),
		"pickup_time":  req.Pickup.Format("15:04"),
		"dropoff_date": req.Dropoff.Format("02/01/2006"),
		"dropoff_time": req.Dropoff.Format("15:04"),
	})
	return fmt.Sprintf(`(() => {
  const values = %s;
  let form = null;
  for (const [id, value] of Object.entries(values)) {
    const el = document.getElementById(id) || document.querySelector('[name="' + id + '"]');
    if (!el) continue;
    el.value = value;
    el.dispatchEvent(new Event('change', {bubbles: true}));
    form = form || el.form;
  }
  const accept = document.getElementById('onetrust-accept-btn-handler');
  if (accept) accept.click();
  if (!form) return false;
  const submit = form.querySelector('button[type="submit"], input[type="submit"]');
  if (submit) { submit.click(); } else { form.submit(); }
  return true;
})()`, values)
}

// supplierFilterScript clicks the supplier filter matching hint, if the
// page renders one.
func supplierFilterScript(hint string) string {
	quoted, _ := json.Marshal(strings.ToLower(hint))
	return fmt.Sprintf(`(() => {
  const hint = %s;
  const inputs = document.querySelectorAll('input[type="checkbox"][name*="prv"], input[type="checkbox"][name*="supplier"], [data-filter="supplier"] input');
  for (const input of inputs) {
    const label = (input.closest('label') || input.parentElement || input).innerText || '';
    const value = (input.value || '').toLowerCase();
    if (value === hint || label.toLowerCase().includes(hint)) {
      if (!input.checked) input.click();
      return true;
    }
  }
  return false;
})()`, quoted)
}

// ChromedpStrategy renders the results page in headless Chrome
type ChromedpStrategy struct {
	opts    BrowserOptions
	profile helpers.Profile
}

// NewChromedpStrategy creates the first headless strategy
func NewChromedpStrategy(opts BrowserOptions) *ChromedpStrategy {
	return &ChromedpStrategy{opts: opts, profile: helpers.DesktopChrome}
}

func (s *ChromedpStrategy) Name() string { return StrategyChromedp }

// Fetch implements Strategy
func (s *ChromedpStrategy) Fetch(ctx context.Context, req Request) (*Page, error) {
	log := logger.ForFetcher(StrategyChromedp)

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("lang", lang(req.Locale)),
		chromedp.UserAgent(s.profile.UserAgent),
		chromedp.WindowSize(s.profile.Width, s.profile.Height),
	)
	if s.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(s.opts.ExecPath))
	}
	if s.opts.Proxies != nil {
		if proxyURL, ok := s.opts.Proxies.Next(); ok {
			allocOpts = append(allocOpts, chromedp.ProxyServer(proxyURL))
		}
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelTab()

	target, needsForm := navigationTarget(s.opts.BaseURL, req)
	log.Debug().Str("url", target).Bool("form", needsForm).Msg("Navigating")

	actions := []chromedp.Action{
		chromedp.Navigate(target),
		chromedp.Sleep(s.opts.settle()),
	}
	if needsForm {
		var submitted bool
		actions = append(actions,
			chromedp.Evaluate(fillFormScript(req), &submitted),
			chromedp.Sleep(2*s.opts.settle()),
		)
	}
	if err := chromedp.Run(tabCtx, actions...); err != nil {
		return nil, browserError(ctx, StrategyChromedp, err)
	}

	if req.SupplierHint != "" {
		var clicked bool
		if err := chromedp.Run(tabCtx,
			chromedp.Evaluate(supplierFilterScript(req.SupplierHint), &clicked),
		); err != nil {
			log.Debug().Err(err).Msg("Supplier filter script failed")
		} else if clicked {
			log.Debug().Str("supplier", req.SupplierHint).Msg("Supplier filter selected")
			_ = chromedp.Run(tabCtx, chromedp.Sleep(s.opts.settle()/2))
		}
	}

	var body, final string
	if err := chromedp.Run(tabCtx,
		chromedp.Location(&final),
		chromedp.OuterHTML("html", &body, chromedp.ByQuery),
	); err != nil {
		return nil, browserError(ctx, StrategyChromedp, err)
	}

	return &Page{URL: target, FinalURL: final, Body: body}, nil
}

// browserError separates spent budgets from transient browser failures
func browserError(ctx context.Context, component string, err error) error {
	if ctx.Err() != nil {
		return errors.NewBudgetExceeded(component, "browser session aborted", ctx.Err())
	}
	return errors.NewTransient(component, "browser session failed", err)
}
