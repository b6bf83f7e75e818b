package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"realestate-scraper/models"
)

// PostgresWriter inserts finished listings into the properties table.
// Every call is an independent INSERT; the table has no uniqueness on url.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection to PostgreSQL, waiting for it to come
// up, and optionally creates the schema.
func NewPostgresWriter(dsn string, migrate bool, maxConns int) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
		db.SetMaxIdleConns(maxConns)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if migrate {
		if err := pw.migrate(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("postgres: migrate: %w", err)
		}
	}
	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS properties (
			id            SERIAL PRIMARY KEY,
			run_id        UUID,
			source        VARCHAR(50)  NOT NULL,
			title         TEXT,
			price         DOUBLE PRECISION,
			address       TEXT,
			surface       DOUBLE PRECISION,
			rooms         INTEGER,
			property_type VARCHAR(20)  NOT NULL DEFAULT 'apartment',
			latitude      DOUBLE PRECISION,
			longitude     DOUBLE PRECISION,
			geohash       VARCHAR(12),
			description   TEXT,
			features      TEXT[]       NOT NULL DEFAULT '{}',
			url           TEXT         NOT NULL,
			listing_type  VARCHAR(10)  NOT NULL,
			scraped_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_properties_url          ON properties(url);
		CREATE INDEX IF NOT EXISTS idx_properties_source       ON properties(source);
		CREATE INDEX IF NOT EXISTS idx_properties_listing_type ON properties(listing_type);
		CREATE INDEX IF NOT EXISTS idx_properties_geohash      ON properties(geohash);
	`)
	return err
}

const insertProperty = `
	INSERT INTO properties (
		run_id, source, title, price, address, surface, rooms, property_type,
		latitude, longitude, geohash, description, features, url, listing_type, scraped_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
`

// Insert writes one listing.
func (pw *PostgresWriter) Insert(ctx context.Context, l *models.Listing) error {
	_, err := pw.db.ExecContext(ctx, insertProperty, insertArgs(l)...)
	if err != nil {
		return fmt.Errorf("postgres: insert %s: %w", l.URL, err)
	}
	return nil
}

// insertArgs maps a listing onto the insert's placeholders. Unknown values
// become NULL.
func insertArgs(l *models.Listing) []interface{} {
	var runID interface{}
	if l.RunID != "" {
		runID = l.RunID
	}
	return []interface{}{
		runID,
		l.Source,
		nullString(l.Title),
		nullFloat(l.Price),
		nullString(l.Address),
		nullFloat(l.SurfaceSqm),
		nullInt(l.Rooms),
		string(l.PropertyType),
		nullFloat(l.Latitude),
		nullFloat(l.Longitude),
		nullString(l.Geohash),
		nullString(l.Description),
		pq.Array(l.Features),
		l.URL,
		string(l.ListingType),
		l.ScrapedAt,
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}
