package publisher

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"sjsage522/carpriceworker/internal/offer"
	"sjsage522/carpriceworker/internal/taxonomy"
	"sjsage522/carpriceworker/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockPublisher records published rows
type MockPublisher struct {
	rows   []SnapshotRow
	err    error
	closed bool
}

func (m *MockPublisher) Publish(ctx context.Context, rows []SnapshotRow) error {
	if m.err != nil {
		return m.err
	}
	m.rows = append(m.rows, rows...)
	return nil
}

func (m *MockPublisher) TrimStreams(ctx context.Context) error { return nil }

func (m *MockPublisher) Close() error {
	m.closed = true
	return nil
}

func TestRowsFromOffers(t *testing.T) {
	captured := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	pickup := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	offers := []offer.CanonicalOffer{
		{Car: "Fiat 500", Supplier: "Goldcar", Price: 45.9, PriceText: "45,90 €", PricePerDay: 15.3, Currency: "EUR", Category: "Mini", Group: taxonomy.GroupB2, Transmission: taxonomy.TransmissionManual, Link: "https://www.carjet.com/book/1"},
	}

	rows := RowsFromOffers("Faro", pickup, 3, "form", captured, offers)
	require.Len(t, rows, 1)
	assert.Equal(t, SnapshotRow{
		CapturedAt:   captured,
		Location:     "Faro",
		Pickup:       pickup,
		Days:         3,
		Supplier:     "Goldcar",
		Car:          "Fiat 500",
		Category:     "Mini",
		Group:        "B2",
		Transmission: string(taxonomy.TransmissionManual),
		PriceText:    "45,90 €",
		Price:        45.9,
		PricePerDay:  15.3,
		Currency:     "EUR",
		Link:         "https://www.carjet.com/book/1",
		Strategy:     "form",
	}, rows[0])

	assert.Empty(t, RowsFromOffers("Faro", pickup, 3, "form", captured, nil))
}

func TestMultiPublisherFansOut(t *testing.T) {
	a := &MockPublisher{}
	b := &MockPublisher{err: fmt.Errorf("down")}
	c := &MockPublisher{}
	m := NewMultiPublisher(a, nil, b, c)
	assert.Equal(t, 3, m.Len())

	err := m.Publish(context.Background(), []SnapshotRow{{Location: "Faro"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrorTypePublisher))
	assert.Contains(t, err.Error(), "down")
	assert.Len(t, a.rows, 1)
	assert.Len(t, c.rows, 1, "a failing publisher does not stop the others")

	assert.NoError(t, m.TrimStreams(context.Background()))
	assert.NoError(t, m.Close())
	assert.True(t, a.closed && b.closed && c.closed)
}

func TestBuildInsert(t *testing.T) {
	rows := make([]SnapshotRow, 2)
	query, args := buildInsert(rows)
	assert.Len(t, args, 2*snapshotColumns)
	assert.Contains(t, query, "($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)")
	assert.Contains(t, query, "($16,")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(query), "$30)"))
}

// Requires POSTGRES_DSN pointing at a disposable database
func TestPostgresPublisher(t *testing.T) {
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set, skipping test")
	}
	ctx := context.Background()
	p, err := NewPostgresPublisher(ctx, dsn)
	if err != nil {
		t.Skipf("Postgres is not available: %v", err)
	}
	defer p.Close()

	location := fmt.Sprintf("test-%d", time.Now().UnixNano())
	captured := time.Now().UTC().Truncate(time.Second)
	rows := []SnapshotRow{
		{CapturedAt: captured, Location: location, Pickup: captured, Days: 7, Supplier: "Centauro", Price: 120, PricePerDay: 17.14, Currency: "EUR"},
		{CapturedAt: captured, Location: location, Pickup: captured, Days: 7, Supplier: "Goldcar", Price: 99.5, PricePerDay: 14.21, Currency: "EUR"},
	}
	require.NoError(t, p.Publish(ctx, rows))

	latest, err := p.Latest(ctx, location, 7)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "Goldcar", latest[0].Supplier)
}
