package publisher

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"sjsage522/carpriceworker/logger"
	"sjsage522/carpriceworker/pkg/errors"

	_ "github.com/lib/pq"
)

const (
	snapshotColumns = 15
	insertBatchSize = 50
)

// PostgresPublisher appends snapshot rows to an append-only table
type PostgresPublisher struct {
	db *sql.DB
}

// NewPostgresPublisher opens a connection, waits for the server and runs
// the schema migration.
func NewPostgresPublisher(ctx context.Context, dsn string) (*PostgresPublisher, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.NewPublisher("postgres", "open", err)
	}

	for i := 0; i < 5; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		logger.ForPublisher().Debug().Err(err).Int("try", i+1).Msg("Postgres not ready")
		select {
		case <-ctx.Done():
			db.Close()
			return nil, errors.NewPublisher("postgres", "ping aborted", ctx.Err())
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		db.Close()
		return nil, errors.NewPublisher("postgres", "ping failed after retries", err)
	}

	p := &PostgresPublisher{db: db}
	if err := p.migrate(ctx); err != nil {
		db.Close()
		return nil, errors.NewPublisher("postgres", "migrate", err)
	}
	return p, nil
}

func (p *PostgresPublisher) migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS price_snapshots (
			id             BIGSERIAL PRIMARY KEY,
			captured_at    TIMESTAMPTZ   NOT NULL,
			location       TEXT          NOT NULL,
			pickup         TIMESTAMPTZ   NOT NULL,
			days           INTEGER       NOT NULL,
			supplier       TEXT          NOT NULL DEFAULT '',
			car            TEXT          NOT NULL DEFAULT '',
			category       TEXT          NOT NULL DEFAULT '',
			car_group      VARCHAR(8)    NOT NULL DEFAULT '',
			transmission   VARCHAR(16)   NOT NULL DEFAULT '',
			price_text     TEXT          NOT NULL DEFAULT '',
			price          NUMERIC(10,2) NOT NULL,
			price_per_day  NUMERIC(10,2) NOT NULL,
			currency       VARCHAR(3)    NOT NULL DEFAULT 'EUR',
			link           TEXT          NOT NULL DEFAULT '',
			strategy       VARCHAR(32)   NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_price_snapshots_lookup ON price_snapshots(location, days, captured_at);
		CREATE INDEX IF NOT EXISTS idx_price_snapshots_group  ON price_snapshots(car_group);
	`)
	return err
}

// Publish batch-inserts rows. Nothing is updated or deleted.
func (p *PostgresPublisher) Publish(ctx context.Context, rows []SnapshotRow) error {
	for i := 0; i < len(rows); i += insertBatchSize {
		end := i + insertBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		query, args := buildInsert(rows[i:end])
		if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
			return errors.NewPublisher("postgres", "insert batch", err)
		}
	}
	return nil
}

func buildInsert(batch []SnapshotRow) (string, []interface{}) {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*snapshotColumns)

	for idx, r := range batch {
		base := idx * snapshotColumns
		placeholders := make([]string, snapshotColumns)
		for c := range placeholders {
			placeholders[c] = fmt.Sprintf("$%d", base+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
		valueArgs = append(valueArgs,
			r.CapturedAt, r.Location, r.Pickup, r.Days, r.Supplier, r.Car, r.Category,
			r.Group, r.Transmission, r.PriceText, r.Price, r.PricePerDay, r.Currency, r.Link, r.Strategy)
	}

	query := fmt.Sprintf(`
		INSERT INTO price_snapshots (captured_at, location, pickup, days, supplier, car, category,
			car_group, transmission, price_text, price, price_per_day, currency, link, strategy)
		VALUES %s
	`, strings.Join(valueStrings, ","))
	return query, valueArgs
}

// TrimStreams is a no-op; the table is append-only
func (p *PostgresPublisher) TrimStreams(ctx context.Context) error {
	return nil
}

// Latest returns the newest snapshot rows for location and days
func (p *PostgresPublisher) Latest(ctx context.Context, location string, days int) ([]SnapshotRow, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT captured_at, location, pickup, days, supplier, car, category,
			car_group, transmission, price_text, price, price_per_day, currency, link, strategy
		FROM price_snapshots
		WHERE location = $1 AND days = $2
			AND captured_at = (SELECT MAX(captured_at) FROM price_snapshots WHERE location = $1 AND days = $2)
		ORDER BY price
	`, location, days)
	if err != nil {
		return nil, errors.NewPublisher("postgres", "query latest", err)
	}
	defer rows.Close()

	var out []SnapshotRow
	for rows.Next() {
		var r SnapshotRow
		if err := rows.Scan(
			&r.CapturedAt, &r.Location, &r.Pickup, &r.Days, &r.Supplier, &r.Car, &r.Category,
			&r.Group, &r.Transmission, &r.PriceText, &r.Price, &r.PricePerDay, &r.Currency, &r.Link, &r.Strategy,
		); err != nil {
			return nil, errors.NewPublisher("postgres", "scan row", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the database handle
func (p *PostgresPublisher) Close() error {
	return p.db.Close()
}
