package publisher

import (
	"context"
	stderrors "errors"
	"time"

	"sjsage522/carpriceworker/internal/offer"
	"sjsage522/carpriceworker/pkg/errors"
)

// SnapshotRow is one observed competitor price
type SnapshotRow struct {
	CapturedAt   time.Time `json:"captured_at"`
	Location     string    `json:"location"`
	Pickup       time.Time `json:"pickup"`
	Days         int       `json:"days"`
	Supplier     string    `json:"supplier"`
	Car          string    `json:"car"`
	Category     string    `json:"category"`
	Group        string    `json:"group"`
	Transmission string    `json:"transmission"`
	PriceText    string    `json:"price_text"`
	Price        float64   `json:"price"`
	PricePerDay  float64   `json:"price_per_day"`
	Currency     string    `json:"currency"`
	Link         string    `json:"link,omitempty"`
	Strategy     string    `json:"strategy"`
}

// Publisher represents a snapshot store
type Publisher interface {
	// Publish appends rows to the store
	Publish(ctx context.Context, rows []SnapshotRow) error

	// TrimStreams trims all streams to the configured maximum length
	TrimStreams(ctx context.Context) error

	// Close closes the publisher connection
	Close() error
}

// RowsFromOffers builds snapshot rows for one location and rental length
func RowsFromOffers(location string, pickup time.Time, days int, strategy string, capturedAt time.Time, offers []offer.CanonicalOffer) []SnapshotRow {
	rows := make([]SnapshotRow, 0, len(offers))
	for _, o := range offers {
		rows = append(rows, SnapshotRow{
			CapturedAt:   capturedAt.UTC(),
			Location:     location,
			Pickup:       pickup.UTC(),
			Days:         days,
			Supplier:     o.Supplier,
			Car:          o.Car,
			Category:     o.Category,
			Group:        string(o.Group),
			Transmission: string(o.Transmission),
			PriceText:    o.PriceText,
			Price:        o.Price,
			PricePerDay:  o.PricePerDay,
			Currency:     o.Currency,
			Link:         o.Link,
			Strategy:     strategy,
		})
	}
	return rows
}

// MultiPublisher fans rows out to every publisher
type MultiPublisher struct {
	publishers []Publisher
}

// NewMultiPublisher combines publishers, skipping nil ones
func NewMultiPublisher(publishers ...Publisher) *MultiPublisher {
	m := &MultiPublisher{}
	for _, p := range publishers {
		if p != nil {
			m.publishers = append(m.publishers, p)
		}
	}
	return m
}

// Len returns the number of wrapped publishers
func (m *MultiPublisher) Len() int {
	return len(m.publishers)
}

// Publish sends rows to every publisher. A failing publisher does not
// stop the others.
func (m *MultiPublisher) Publish(ctx context.Context, rows []SnapshotRow) error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.Publish(ctx, rows); err != nil {
			errs = append(errs, err)
		}
	}
	return joinErrors("publish", errs)
}

// TrimStreams implements Publisher
func (m *MultiPublisher) TrimStreams(ctx context.Context) error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.TrimStreams(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return joinErrors("trim", errs)
}

// Close implements Publisher
func (m *MultiPublisher) Close() error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return joinErrors("close", errs)
}

func joinErrors(op string, errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.NewPublisher("multi", op+" failed", stderrors.Join(errs...))
}
