package crawler

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"sjsage522/carpriceworker/internal/offer"
)

// Request is one quote request against the target site
type Request struct {
	Location     string    `json:"location"`
	Pickup       time.Time `json:"pickup"`
	Dropoff      time.Time `json:"dropoff"`
	Locale       string    `json:"locale"`
	Currency     string    `json:"currency"`
	ForceRefresh bool      `json:"force_refresh"`

	// URLs are pre-tokenized result URLs for this location, if any
	URLs []string `json:"urls,omitempty"`

	// SupplierHint is clicked in the supplier filter when the page offers one
	SupplierHint string `json:"supplier_hint,omitempty"`
}

// Days returns the rental length in whole days, at least 1
func (r Request) Days() int {
	hours := r.Dropoff.Sub(r.Pickup).Hours()
	days := int(math.Ceil(hours/24 - 1e-9))
	if days < 1 {
		return 1
	}
	return days
}

// Key identifies the request for caching. Refresh flags and URLs are not
// part of the identity.
func (r Request) Key() string {
	return fmt.Sprintf("carjet:%s:%s:%s:%s:%s",
		strings.ToLower(strings.Join(strings.Fields(NormalizeLocation(r.Location)), "_")),
		r.Pickup.UTC().Format("200601021504"),
		r.Dropoff.UTC().Format("200601021504"),
		strings.ToLower(r.Locale),
		strings.ToUpper(r.Currency),
	)
}

// Page is a fetched payload
type Page struct {
	URL      string
	FinalURL string
	Body     string
}

// Strategy fetches a results page for a request
type Strategy interface {
	Name() string
	Fetch(ctx context.Context, req Request) (*Page, error)
}

// Applicable is implemented by strategies that only serve some requests
type Applicable interface {
	Applicable(req Request) bool
}

// Gated is implemented by strategies that only run when the named
// strategy ran and yielded no records.
type Gated interface {
	After() string
}

// Outcome of one strategy invocation
type Outcome string

const (
	OutcomeSuccess          Outcome = "success"
	OutcomeEmpty            Outcome = "empty"
	OutcomeTransientFailure Outcome = "transient_failure"
	OutcomePermanentFailure Outcome = "permanent_failure"
)

// Reason explains how a chain run ended
type Reason string

const (
	ReasonOK        Reason = "ok"
	ReasonNoOffers  Reason = "no_offers"
	ReasonAllFailed Reason = "all_failed"
	ReasonTimeout   Reason = "timeout"
)

// FetchAttempt records one strategy invocation
type FetchAttempt struct {
	Strategy string        `json:"strategy"`
	URL      string        `json:"url,omitempty"`
	Outcome  Outcome       `json:"outcome"`
	Records  int           `json:"records"`
	Tries    int           `json:"tries"`
	Elapsed  time.Duration `json:"elapsed"`
	Detail   string        `json:"detail,omitempty"`
	Err      error         `json:"-"`
}

// Result of a chain run. Offers is empty unless Reason is ReasonOK.
type Result struct {
	Offers   []offer.CanonicalOffer `json:"offers"`
	Strategy string                 `json:"strategy,omitempty"`
	Reason   Reason                 `json:"reason"`
	Attempts []FetchAttempt         `json:"attempts"`
	Elapsed  time.Duration          `json:"elapsed"`
}

// OK reports whether the run produced offers
func (r Result) OK() bool {
	return r.Reason == ReasonOK && len(r.Offers) > 0
}
