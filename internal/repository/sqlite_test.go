package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"mira/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "mira.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func sampleListings() []model.Listing {
	return []model.Listing{
		{
			ID: 3, Title: "Modern Loft in Downtown Denver", Price: 620000, Location: "Denver, CO",
			Bedrooms: 2, Bathrooms: 1, SizeSqft: 1300, Amenities: model.JSONArray{"Parking"},
			PropertyType: model.PropertyLoft, Description: "Industrial loft", Embedding: []float32{0.1, 0.2},
		},
		{
			ID: 1, Title: "Spacious 2BHK Apartment in Atlanta", Price: 450000, Location: "Atlanta, GA",
			Bedrooms: 2, Bathrooms: 2, SizeSqft: 1100, Amenities: model.JSONArray{"Gym", "Swimming pool"},
			PropertyType: model.PropertyApartment, ImageURL: "https://img.example/1.jpg",
			Description: "Bright apartment", Embedding: []float32{0.3, 0.4},
		},
		{
			ID: 2, Title: "Cabin", Price: 300000, PropertyType: model.PropertyCabin, Embedding: []float32{0.5, 0.6},
		},
	}
}

func TestSQLiteRepository_ReplaceAndFind(t *testing.T) {
	ctx := context.Background()
	repo := newTestSQLite(t)

	require.NoError(t, repo.ReplaceAll(ctx, sampleListings()))

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{all[0].ID, all[1].ID, all[2].ID})
	assert.Equal(t, model.JSONArray{"Gym", "Swimming pool"}, all[0].Amenities)
	assert.Equal(t, []float32{0.3, 0.4}, all[0].Embedding)
	assert.Equal(t, "https://img.example/1.jpg", all[0].ImageURL)
	assert.Equal(t, model.JSONArray{}, all[1].Amenities)

	one, err := repo.FindByID(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "Modern Loft in Downtown Denver", one.Title)
	assert.Equal(t, model.PropertyLoft, one.PropertyType)

	_, err = repo.FindByID(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)

	some, err := repo.FindByIDs(ctx, []int64{3, 42, 1})
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, int64(1), some[0].ID)
	assert.Equal(t, int64(3), some[1].ID)

	none, err := repo.FindByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteRepository_ReplaceAllSwapsPool(t *testing.T) {
	ctx := context.Background()
	repo := newTestSQLite(t)

	require.NoError(t, repo.ReplaceAll(ctx, sampleListings()))
	require.NoError(t, repo.ReplaceAll(ctx, sampleListings()[:1]))

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, int64(3), all[0].ID)
}

func TestSQLiteRepository_ReplaceAllRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	repo := newTestSQLite(t)
	require.NoError(t, repo.ReplaceAll(ctx, sampleListings()))

	dup := sampleListings()
	dup[1].ID = dup[0].ID
	assert.Error(t, repo.ReplaceAll(ctx, dup))

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3, "failed replace leaves the previous pool intact")
}

func TestSQLiteRepository_SearchLogAndFeedback(t *testing.T) {
	ctx := context.Background()
	repo := newTestSQLite(t)

	entry := model.SearchLog{
		SearchID:       "s-1",
		Query:          "loft in denver",
		Intent:         &model.QueryIntent{QueryType: model.QueryTypeSearch},
		ResultCount:    4,
		ListingIDs:     []int64{3, 1},
		Fallback:       model.FallbackTitle,
		ResponseTimeMs: 120,
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, repo.LogSearch(ctx, entry))
	require.NoError(t, repo.LogFeedback(ctx, "s-1", 3, "click"))

	var row struct {
		Query            string         `db:"query"`
		ResultCount      int            `db:"result_count"`
		ListingIDs       string         `db:"returned_listing_ids"`
		Fallback         string         `db:"fallback"`
		ClickedListingID sql.NullInt64  `db:"clicked_listing_id"`
		Action           sql.NullString `db:"action"`
	}
	err := repo.db.GetContext(ctx, &row, `
		SELECT query, result_count, returned_listing_ids, fallback, clicked_listing_id, action
		FROM search_logs WHERE search_id = ?`, "s-1")
	require.NoError(t, err)

	assert.Equal(t, "loft in denver", row.Query)
	assert.Equal(t, 4, row.ResultCount)
	assert.JSONEq(t, `[3, 1]`, row.ListingIDs)
	assert.Equal(t, "title", row.Fallback)
	assert.Equal(t, sql.NullInt64{Int64: 3, Valid: true}, row.ClickedListingID)
	assert.Equal(t, sql.NullString{String: "click", Valid: true}, row.Action)

	assert.Error(t, repo.LogSearch(ctx, entry), "search ids are unique")
}

func TestSQLiteRepository_MalformedEmbeddingKeepsListing(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.WarnLevel)
	repo := newTestSQLite(t).WithLogger(zap.New(core))

	require.NoError(t, repo.ReplaceAll(ctx, sampleListings()))
	_, err := repo.db.ExecContext(ctx, `UPDATE listings SET embedding = '' WHERE id = 2`)
	require.NoError(t, err)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Cabin", all[1].Title)
	assert.Nil(t, all[1].Embedding)
	assert.Equal(t, []float32{0.3, 0.4}, all[0].Embedding)

	one, err := repo.FindByID(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, one.Embedding)

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, int64(2), logs.All()[0].ContextMap()["listing_id"])
}
