package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"sjsage522/carpriceworker/helpers"
	"sjsage522/carpriceworker/internal/governor"
	"sjsage522/carpriceworker/pkg/errors"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

// Cookie names the site reads the display locale and currency from
const (
	LocaleCookie   = "idioma"
	CurrencyCookie = "moneda"
)

// ProxySource hands out egress proxies. ok is false when none is available.
type ProxySource interface {
	Next() (proxyURL string, ok bool)
}

// HTTPOptions is shared by the HTTP strategies
type HTTPOptions struct {
	BaseURL string
	Profile helpers.Profile
	Timeout time.Duration
	Proxies ProxySource
	// Budget paces requests a strategy sends beyond the one the chain
	// already acquired for.
	Budget governor.Budget
}

func (o HTTPOptions) withDefaults() HTTPOptions {
	if o.Profile.UserAgent == "" {
		o.Profile = helpers.DesktopChrome
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.Budget == nil {
		o.Budget = governor.NoopBudget{}
	}
	return o
}

// newSession builds a client with a fresh cookie jar primed for req
func newSession(opts HTTPOptions, req Request) (*resty.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.NewConfiguration("failed to create cookie jar", err)
	}
	if base, err := url.Parse(opts.BaseURL); err == nil && base.Host != "" {
		jar.SetCookies(base, []*http.Cookie{
			{Name: LocaleCookie, Value: lang(req.Locale), Path: "/"},
			{Name: CurrencyCookie, Value: currencyOf(req), Path: "/"},
		})
	}

	client := resty.New()
	client.SetCookieJar(jar)
	client.SetTimeout(opts.Timeout)
	client.SetHeaders(helpers.BrowserHeaders(opts.Profile, req.Locale))
	if opts.Proxies != nil {
		if proxyURL, ok := opts.Proxies.Next(); ok {
			client.SetProxy(proxyURL)
		}
	}
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	return client, nil
}

// toPage classifies the response and decodes its body
func toPage(ctx context.Context, component string, resp *resty.Response, err error) (*Page, error) {
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.NewBudgetExceeded(component, "request aborted", ctxErr)
		}
		return nil, errors.NewTransient(component, "request failed", err)
	}

	status := resp.StatusCode()
	switch {
	case status == http.StatusTooManyRequests, status == http.StatusForbidden, status == http.StatusRequestTimeout, status >= 500:
		return nil, errors.NewTransient(component, fmt.Sprintf("HTTP %d", status), nil)
	case status >= 400:
		return nil, errors.NewStructural(component, fmt.Sprintf("HTTP %d", status), nil)
	}

	body, err := helpers.DecodeBody(resp.Body(), resp.Header().Get("Content-Type"))
	if err != nil {
		return nil, errors.NewStructural(component, "undecodable body", err)
	}

	page := &Page{URL: resp.Request.URL, Body: body}
	if resp.RawResponse != nil && resp.RawResponse.Request != nil {
		page.FinalURL = resp.RawResponse.Request.URL.String()
	}
	return page, nil
}
