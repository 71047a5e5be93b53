package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"mira/internal/model"
	"mira/internal/utils"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS listings (
	id            INTEGER PRIMARY KEY,
	title         TEXT NOT NULL,
	price         REAL NOT NULL,
	location      TEXT NOT NULL DEFAULT '',
	bedrooms      INTEGER NOT NULL DEFAULT 0,
	bathrooms     INTEGER NOT NULL DEFAULT 0,
	size_sqft     REAL NOT NULL DEFAULT 0,
	amenities     TEXT NOT NULL DEFAULT '[]',
	property_type TEXT NOT NULL DEFAULT 'Other',
	image_url     TEXT NOT NULL DEFAULT '',
	description   TEXT NOT NULL DEFAULT '',
	embedding     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS search_logs (
	search_id            TEXT PRIMARY KEY,
	query                TEXT NOT NULL,
	intent               TEXT,
	result_count         INTEGER NOT NULL,
	returned_listing_ids TEXT,
	fallback             TEXT NOT NULL DEFAULT 'none',
	response_time_ms     INTEGER NOT NULL,
	clicked_listing_id   INTEGER,
	action               TEXT,
	created_at           TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// sqliteListingRow keeps the embedding as JSON text
type sqliteListingRow struct {
	model.Listing
	Vector string `db:"embedding"`
}

func (r *sqliteListingRow) toListing() (model.Listing, error) {
	l := r.Listing
	if err := json.Unmarshal([]byte(r.Vector), &l.Embedding); err != nil {
		return model.Listing{}, fmt.Errorf("listing %d: bad embedding: %w", l.ID, err)
	}
	return l, nil
}

// SQLiteRepository is a single-file store for local runs and tests
type SQLiteRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewSQLiteRepository opens (creating if needed) the database at path and
// ensures the schema exists. ":memory:" gives a private in-memory database.
func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sqlx.Connect("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One writer; an in-memory database must also stay on a single connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteRepository{db: db, logger: zap.NewNop()}, nil
}

// WithLogger sets the logger used for row-level warnings
func (r *SQLiteRepository) WithLogger(logger *zap.Logger) *SQLiteRepository {
	r.logger = utils.OrNop(logger).With(zap.String("component", "sqlite"))
	return r
}

// Close closes the database
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// FindAll returns every listing ordered by id
func (r *SQLiteRepository) FindAll(ctx context.Context) ([]model.Listing, error) {
	var rows []sqliteListingRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+listingColumns+` FROM listings ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to fetch listings: %w", err)
	}
	return r.rowsToListings(rows), nil
}

// FindByID retrieves a single listing by its ID
func (r *SQLiteRepository) FindByID(ctx context.Context, id int64) (*model.Listing, error) {
	var row sqliteListingRow
	err := r.db.GetContext(ctx, &row, `SELECT `+listingColumns+` FROM listings WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	l := r.rowsToListings([]sqliteListingRow{row})[0]
	return &l, nil
}

// FindByIDs retrieves the listings among ids that exist
func (r *SQLiteRepository) FindByIDs(ctx context.Context, ids []int64) ([]model.Listing, error) {
	if len(ids) == 0 {
		return []model.Listing{}, nil
	}
	query, args, err := sqlx.In(`SELECT `+listingColumns+` FROM listings WHERE id IN (?) ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var rows []sqliteListingRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to fetch listings: %w", err)
	}
	return r.rowsToListings(rows), nil
}

// ReplaceAll swaps the listing pool in one transaction
func (r *SQLiteRepository) ReplaceAll(ctx context.Context, listings []model.Listing) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM listings`); err != nil {
		return fmt.Errorf("failed to clear listings: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, insertListingSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := range listings {
		l := &listings[i]
		vec, err := json.Marshal(l.Embedding)
		if err != nil {
			return fmt.Errorf("listing %d: %w", l.ID, err)
		}
		_, err = stmt.ExecContext(ctx,
			l.ID, l.Title, l.Price, l.Location, l.Bedrooms, l.Bathrooms, l.SizeSqft,
			l.Amenities, string(l.PropertyType), l.ImageURL, l.Description, string(vec))
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
func (r *SQLiteRepository) LogSearch(ctx context.Context, entry model.SearchLog) error {
	intent, err := json.Marshal(entry.Intent)
	if err != nil {
		return fmt.Errorf("failed to encode intent: %w", err)
	}
	ids, err := json.Marshal(entry.ListingIDs)
	if err != nil {
		return fmt.Errorf("failed to encode listing ids: %w", err)
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO search_logs (search_id, query, intent, result_count, returned_listing_ids, fallback, response_time_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.SearchID, entry.Query, string(intent), entry.ResultCount, string(ids),
		string(entry.Fallback), entry.ResponseTimeMs, createdAt)
	if err != nil {
		return fmt.Errorf("failed to log search: %w", err)
	}
	return nil
}

// LogFeedback logs user feedback/action
func (r *SQLiteRepository) LogFeedback(ctx context.Context, searchID string, listingID int64, action string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE search_logs SET clicked_listing_id = ?, action = ? WHERE search_id = ?`,
		listingID, action, searchID)
	if err != nil {
		return fmt.Errorf("failed to log feedback: %w", err)
	}
	return nil
}

// rowsToListings keeps a listing whose embedding cannot be decoded with a nil
// vector, which scores 0 against every query
func (r *SQLiteRepository) rowsToListings(rows []sqliteListingRow) []model.Listing {
	out := make([]model.Listing, len(rows))
	for i := range rows {
		l, err := rows[i].toListing()
		if err != nil {
			r.logger.Warn("dropping malformed embedding", zap.Int64("listing_id", rows[i].ID), zap.Error(err))
			l = rows[i].Listing
			l.Embedding = nil
		}
		out[i] = l
	}
	return out
}
