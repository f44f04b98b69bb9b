package worker

import (
	"context"
	"time"

	"sjsage522/carpriceworker/internal/tracker"
	"sjsage522/carpriceworker/logger"
	"sjsage522/carpriceworker/services/publisher"
)

// Searcher runs a bulk search
type Searcher interface {
	Bulk(ctx context.Context, in tracker.BulkRequest) *tracker.BulkResult
}

// Worker handles the periodic search and publishing process
type Worker struct {
	ctx           context.Context
	searcher      Searcher
	publisher     publisher.Publisher
	job           tracker.BulkRequest
	crawlInterval time.Duration
	environment   string
	log           *logger.Logger
	now           func() time.Time
}

// NewWorker creates a new worker
func NewWorker(
	ctx context.Context,
	searcher Searcher,
	pub publisher.Publisher,
	job tracker.BulkRequest,
	crawlInterval time.Duration,
	environment string,
) *Worker {
	return &Worker{
		ctx:           ctx,
		searcher:      searcher,
		publisher:     pub,
		job:           job,
		crawlInterval: crawlInterval,
		environment:   environment,
		log:           logger.ForWorker(),
		now:           time.Now,
	}
}

// Start runs a cycle every crawl interval until the context is cancelled
func (w *Worker) Start() error {
	for {
		start := time.Now()
		w.RunOnce()
		if w.environment != "production" {
			w.log.Info().Dur("elapsed", time.Since(start)).Msg("Cycle finished")
		}

		select {
		case <-w.ctx.Done():
			return nil
		case <-time.After(w.crawlInterval):
		}
	}
}

// RunOnce searches every configured pair, publishes the offers found and
// then trims the streams.
func (w *Worker) RunOnce() *tracker.BulkResult {
	result := w.searcher.Bulk(w.ctx, w.job)
	capturedAt := w.now()

	published := 0
	for _, item := range result.Items {
		if item.Failed {
			w.log.Warn().
				Str("location", item.Location).
				Int("days", item.Days).
				Int("attempts", item.Attempts).
				Str("error", item.Error).
				Msg("Search failed")
			continue
		}
		if item.OfferCount == 0 {
			w.log.Info().Str("location", item.Location).Int("days", item.Days).Str("reason", string(item.Reason)).Msg("No offers")
			continue
		}

		rows := publisher.RowsFromOffers(item.Location, item.Pickup, item.Days, item.Strategy, capturedAt, item.Offers)
		if err := w.publisher.Publish(w.ctx, rows); err != nil {
			logger.LogError("worker", err, "publish failed for %s/%dd", item.Location, item.Days)
			continue
		}
		published += len(rows)
		w.logSample(item)
	}

	// Trim all streams after publishing
	if err := w.publisher.TrimStreams(w.ctx); err != nil {
		logger.LogError("worker", err, "stream trimming failed")
	}

	w.log.Info().
		Int("items", len(result.Items)).
		Int("failures", result.Failures).
		Int("rows", published).
		Msg("Published snapshots")
	return result
}

// logSample logs the cheapest offer of an item outside production
func (w *Worker) logSample(item tracker.BulkItem) {
	if w.environment == "production" || len(item.Offers) == 0 || !logger.IsDebugEnabled() {
		return
	}
	cheapest := item.Offers[0]
	for _, o := range item.Offers[1:] {
		if o.Price < cheapest.Price {
			cheapest = o
		}
	}
	w.log.Debug().
		Str("location", item.Location).
		Int("days", item.Days).
		Str("car", cheapest.Car).
		Str("supplier", cheapest.Supplier).
		Str("price", cheapest.PriceText).
		Msg("Cheapest offer")
}
