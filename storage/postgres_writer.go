package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"maps-scraper/models"
	"maps-scraper/utils"
)

// PostgresWriter persists the exported rows of one search query to PostgreSQL.
type PostgresWriter struct {
	db    *sql.DB
	query string
}

// NewPostgresWriter opens a connection to PostgreSQL, retrying the ping with
// retry, runs schema migrations, and returns a writer bound to query.
func NewPostgresWriter(ctx context.Context, dsn, query string, retry utils.RetryConfig) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	if retry.BaseDelay <= 0 {
		retry.BaseDelay = 2 * time.Second
	}
	if err := retry.Do(ctx, "postgres ping", func() error { return db.PingContext(ctx) }); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	pw := &PostgresWriter{db: db, query: query}
	if err := pw.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate(ctx context.Context) error {
	_, err := pw.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS listings (
			id            SERIAL PRIMARY KEY,
			query         TEXT        NOT NULL,
			position      INTEGER     NOT NULL,
			name          TEXT        NOT NULL,
			address       TEXT        NOT NULL,
			phone         TEXT        NOT NULL,
			website       TEXT        NOT NULL,
			email         TEXT        NOT NULL,
			scraped_email TEXT,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_listings_query ON listings(query);
	`)
	return err
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Clear deletes the rows stored for the writer's query by earlier runs.
func (pw *PostgresWriter) Clear() error {
	return pw.clear(context.Background(), pw.db)
}

func (pw *PostgresWriter) clear(ctx context.Context, db execer) error {
	if _, err := db.ExecContext(ctx, "DELETE FROM listings WHERE query = $1", pw.query); err != nil {
		return fmt.Errorf("postgres: clear: %w", err)
	}
	return nil
}

// WriteRecords replaces the rows of the writer's query with records, keeping
// their order in the position column. The replacement is atomic: on any
// failure the previous rows stay in place. An empty records slice clears
// the query's rows.
func (pw *PostgresWriter) WriteRecords(records []models.ListingRecord) error {
	ctx := context.Background()

	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback()

	if err := pw.clear(ctx, tx); err != nil {
		return err
	}

	const batchSize = 50
	for i := 0; i < len(records); i += batchSize {
		end := min(i+batchSize, len(records))
		if err := pw.insertBatch(ctx, tx, i, records[i:end]); err != nil {
			return fmt.Errorf("postgres: insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

const insertColumns = 8

func (pw *PostgresWriter) insertBatch(ctx context.Context, db execer, offset int, batch []models.ListingRecord) error {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*insertColumns)

	for idx, r := range batch {
		base := idx * insertColumns
		valueStrings = append(valueStrings,
			fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
				base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8))
		valueArgs = append(valueArgs,
			pw.query, offset+idx, r.Name, r.Address, r.Phone, r.Website, r.Email, nullable(r.ScrapedEmail))
	}

	query := fmt.Sprintf(`
		INSERT INTO listings (query, position, name, address, phone, website, email, scraped_email)
		VALUES %s
	`, strings.Join(valueStrings, ","))

	_, err := db.ExecContext(ctx, query, valueArgs...)
	return err
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}
