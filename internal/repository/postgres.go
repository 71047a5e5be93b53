package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"mira/internal/model"
)

const postgresSchema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS listings (
	id            BIGINT PRIMARY KEY,
	title         TEXT NOT NULL,
	price         DOUBLE PRECISION NOT NULL,
	location      TEXT NOT NULL DEFAULT '',
	bedrooms      INTEGER NOT NULL DEFAULT 0,
	bathrooms     INTEGER NOT NULL DEFAULT 0,
	size_sqft     DOUBLE PRECISION NOT NULL DEFAULT 0,
	amenities     JSONB NOT NULL DEFAULT '[]',
	property_type TEXT NOT NULL DEFAULT 'Other',
	image_url     TEXT NOT NULL DEFAULT '',
	description   TEXT NOT NULL DEFAULT '',
	embedding     vector NOT NULL
);

CREATE TABLE IF NOT EXISTS search_logs (
	search_id            TEXT PRIMARY KEY,
	query                TEXT NOT NULL,
	intent               JSONB,
	result_count         INTEGER NOT NULL,
	returned_listing_ids BIGINT[],
	fallback             TEXT NOT NULL DEFAULT 'none',
	response_time_ms     INTEGER NOT NULL,
	clicked_listing_id   BIGINT,
	action               TEXT,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// pgListingRow maps the pgvector column alongside the listing fields
type pgListingRow struct {
	model.Listing
	Vector pgvector.Vector `db:"embedding"`
}

func (r *pgListingRow) toListing() model.Listing {
	l := r.Listing
	l.Embedding = r.Vector.Slice()
	return l
}

// PostgresRepository handles database operations
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(dsn string, maxConn, maxIdleConn int) (*PostgresRepository, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(maxConn)
	db.SetMaxIdleConns(maxIdleConn)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{db: db}, nil
}

// EnsureSchema creates the pgvector extension and tables when missing
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// FindAll returns every listing ordered by id
func (r *PostgresRepository) FindAll(ctx context.Context) ([]model.Listing, error) {
	var rows []pgListingRow
	query := `SELECT ` + listingColumns + ` FROM listings ORDER BY id`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to fetch listings: %w", err)
	}
	return pgRowsToListings(rows), nil
}

// FindByID retrieves a single listing by its ID
func (r *PostgresRepository) FindByID(ctx context.Context, id int64) (*model.Listing, error) {
	var row pgListingRow
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`
	err := r.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	l := row.toListing()
	return &l, nil
}

// FindByIDs retrieves the listings among ids that exist
func (r *PostgresRepository) FindByIDs(ctx context.Context, ids []int64) ([]model.Listing, error) {
	if len(ids) == 0 {
		return []model.Listing{}, nil
	}
	var rows []pgListingRow
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = ANY($1) ORDER BY id`
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to fetch listings: %w", err)
	}
	return pgRowsToListings(rows), nil
}

// ReplaceAll swaps the listing pool in one transaction
func (r *PostgresRepository) ReplaceAll(ctx context.Context, listings []model.Listing) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM listings`); err != nil {
		return fmt.Errorf("failed to clear listings: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(insertListingSQL))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := range listings {
		l := &listings[i]
		_, err := stmt.ExecContext(ctx,
			l.ID, l.Title, l.Price, l.Location, l.Bedrooms, l.Bathrooms, l.SizeSqft,
			l.Amenities, string(l.PropertyType), l.ImageURL, l.Description,
			pgvector.NewVector(l.Embedding))
		if err != nil {
			return fmt.Errorf("listing %d: %w", l.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LogSearch logs a processed query
func (r *PostgresRepository) LogSearch(ctx context.Context, entry model.SearchLog) error {
	intent, err := json.Marshal(entry.Intent)
	if err != nil {
		return fmt.Errorf("failed to encode intent: %w", err)
	}

	logQuery := `
		INSERT INTO search_logs (search_id, query, intent, result_count, returned_listing_ids, fallback, response_time_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.db.ExecContext(ctx, logQuery,
		entry.SearchID, entry.Query, intent, entry.ResultCount, pq.Array(entry.ListingIDs),
		string(entry.Fallback), entry.ResponseTimeMs, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to log search: %w", err)
	}
	return nil
}

// LogFeedback logs user feedback/action
func (r *PostgresRepository) LogFeedback(ctx context.Context, searchID string, listingID int64, action string) error {
	query := `
		UPDATE search_logs
		SET clicked_listing_id = $2, action = $3
		WHERE search_id = $1
	`
	_, err := r.db.ExecContext(ctx, query, searchID, listingID, action)
	if err != nil {
		return fmt.Errorf("failed to log feedback: %w", err)
	}
	return nil
}

func pgRowsToListings(rows []pgListingRow) []model.Listing {
	out := make([]model.Listing, len(rows))
	for i := range rows {
		out[i] = rows[i].toListing()
	}
	return out
}
