package tracker

import (
	"context"
	"fmt"
	"time"

	"sjsage522/carpriceworker/internal/crawler"
	"sjsage522/carpriceworker/internal/governor"
	"sjsage522/carpriceworker/internal/offer"
	"sjsage522/carpriceworker/pkg/errors"
)

// Location is a monitored pickup location with optional pre-tokenized URLs
type Location struct {
	Name string   `json:"name"`
	URLs []string `json:"urls,omitempty"`
}

// BulkRequest asks for every location crossed with every duration
type BulkRequest struct {
	Locations    []Location `json:"locations"`
	Durations    []int      `json:"durations"`
	Pickup       time.Time  `json:"pickup,omitempty"`
	SupplierHint string     `json:"supplier_hint,omitempty"`
	ForceRefresh bool       `json:"force_refresh"`
}

// BulkItem is the outcome for one (location, duration) pair
type BulkItem struct {
	Location   string                 `json:"location"`
	Days       int                    `json:"days"`
	Pickup     time.Time              `json:"pickup"`
	OfferCount int                    `json:"offer_count"`
	Offers     []offer.CanonicalOffer `json:"offers"`
	Strategy   string                 `json:"strategy,omitempty"`
	Reason     crawler.Reason         `json:"reason,omitempty"`
	Attempts   int                    `json:"attempts"`
	Fetches    []crawler.FetchAttempt `json:"fetches,omitempty"`
	Elapsed    time.Duration          `json:"elapsed"`
	Failed     bool                   `json:"failed"`
	Error      string                 `json:"error,omitempty"`
}

// BulkResult groups items by location in request order
type BulkResult struct {
	Items    []BulkItem    `json:"items"`
	Started  time.Time     `json:"started"`
	Elapsed  time.Duration `json:"elapsed"`
	Failures int           `json:"failures"`
}

type bulkJob struct {
	index int
	days  int
	req   crawler.Request
}

// Bulk runs every pair on the governor. A failing pair is marked and the
// others still complete.
func (t *Tracker) Bulk(ctx context.Context, in BulkRequest) *BulkResult {
	out := &BulkResult{Started: t.now()}

	var jobs []bulkJob
	for _, loc := range in.Locations {
		for _, days := range in.Durations {
			if days < 1 {
				continue
			}
			req := crawler.Request{
				Location:     loc.Name,
				Pickup:       in.Pickup,
				URLs:         loc.URLs,
				SupplierHint: in.SupplierHint,
				ForceRefresh: in.ForceRefresh,
			}
			if resolved, err := t.Resolve(req); err == nil {
				req = resolved
				req.Dropoff = req.Pickup.AddDate(0, 0, days)
			}
			jobs = append(jobs, bulkJob{index: len(jobs), days: days, req: req})
		}
	}

	// last seen result per job, kept so failed items still report what the chain tried
	last := make([]*SearchResult, len(jobs))

	results := governor.Run(ctx, t.governor, jobs, func(ctx context.Context, job bulkJob) (*SearchResult, error) {
		res, err := t.Search(ctx, job.req)
		if err != nil {
			return nil, err
		}
		last[job.index] = res
		switch res.Reason {
		case crawler.ReasonOK, crawler.ReasonNoOffers:
			return res, nil
		case crawler.ReasonTimeout:
			return nil, errors.NewBudgetExceeded("tracker", "request budget spent", nil)
		default:
			return nil, errors.NewExhausted("tracker", fmt.Sprintf("%s for %s/%dd", res.Reason, res.Location, res.Days))
		}
	})

	for i, r := range results {
		job := r.Item
		item := BulkItem{
			Location: job.req.Location,
			Days:     job.days,
			Pickup:   job.req.Pickup,
			Offers:   []offer.CanonicalOffer{},
			Attempts: r.Attempts,
			Elapsed:  r.Elapsed,
		}
		res := r.Value
		if res == nil {
			res = last[i]
		}
		if res != nil {
			item.Offers = res.Offers
			item.OfferCount = len(res.Offers)
			item.Strategy = res.Strategy
			item.Reason = res.Reason
			item.Fetches = res.Attempts
		}
		if r.Failed() {
			item.Failed = true
			item.Error = r.Err.Error()
			out.Failures++
		}
		out.Items = append(out.Items, item)
	}

	out.Elapsed = t.now().Sub(out.Started)
	t.log.Info().
		Int("items", len(out.Items)).
		Int("failures", out.Failures).
		Dur("elapsed", out.Elapsed).
		Msg("Bulk search done")
	return out
}

// ByLocation splits items per location, keeping request order
func (r *BulkResult) ByLocation() map[string][]BulkItem {
	out := make(map[string][]BulkItem)
	for _, item := range r.Items {
		out[item.Location] = append(out[item.Location], item)
	}
	return out
}
