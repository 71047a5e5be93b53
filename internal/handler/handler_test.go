package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mira/internal/config"
	"mira/internal/model"
	"mira/internal/repository"
	"mira/internal/service"
)

type stubStore struct {
	mu       sync.Mutex
	listings []model.Listing
	err      error
	feedback []string
}

func (s *stubStore) FindAll(context.Context) ([]model.Listing, error) {
	if s.err != nil {
		return nil, s.err
	}
	return append([]model.Listing(nil), s.listings...), nil
}

func (s *stubStore) FindByID(_ context.Context, id int64) (*model.Listing, error) {
	if s.err != nil {
		return nil, s.err
	}
	for i := range s.listings {
		if s.listings[i].ID == id {
			l := s.listings[i]
			return &l, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *stubStore) FindByIDs(_ context.Context, ids []int64) ([]model.Listing, error) {
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []model.Listing
	for _, l := range s.listings {
		if want[l.ID] {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *stubStore) LogSearch(context.Context, model.SearchLog) error { return nil }

func (s *stubStore) LogFeedback(_ context.Context, searchID string, listingID int64, action string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedback = append(s.feedback, searchID+"/"+action)
	return nil
}

// stubCompleter answers extraction prompts with a bare search intent
type stubCompleter struct {
	answerErr error
}

func (c *stubCompleter) Complete(_ context.Context, prompt string) (string, error) {
	if strings.Contains(prompt, "Classify the user's query") {
		return `{"queryType": "search", "filters": {}}`, nil
	}
	if c.answerErr != nil {
		return "", c.answerErr
	}
	return "Here are a few homes you might like.", nil
}

type constEmbedder struct{}

func (constEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func stubListing(id int64, title, location string, price float64) model.Listing {
	return model.Listing{
		ID: id, Title: title, Location: location, Price: price,
		Bedrooms: 2, Bathrooms: 1, SizeSqft: 1000,
		PropertyType: model.PropertyHouse,
		Amenities:    model.JSONArray{"Garden"},
		Embedding:    []float32{1, 0},
	}
}

func newRouter(t *testing.T, store *stubStore, completer *stubCompleter) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.RetrievalConfig{
		DisplayLimit:         5,
		FallbackDisplayLimit: 10,
		Oversample:           5,
		FuzzyThreshold:       service.DefaultFuzzyThreshold,
		LocationSample:       10,
		PageLimit:            2,
		MaxPageLimit:         50,
	}
	svc := service.NewSearchService(store,
		service.NewIntentParser(completer, cfg.FallbackDisplayLimit, nil),
		constEmbedder{},
		service.NewResponseComposer(completer, nil),
		cfg, nil)
	t.Cleanup(func() { _ = svc.Close() })

	r := gin.New()
	RegisterRoutes(r, svc)
	return r
}

func defaultStore() *stubStore {
	return &stubStore{listings: []model.Listing{
		stubListing(1, "Family House in Atlanta", "Atlanta, GA", 450000),
		stubListing(2, "Beach House in Miami", "Miami, FL", 900000),
		stubListing(3, "Lake House in Austin", "Austin, TX", 650000),
	}}
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestChatMessage(t *testing.T) {
	r := newRouter(t, defaultStore(), &stubCompleter{})

	w := do(r, http.MethodPost, "/api/v1/chat/message", `{"message": "a house with a garden"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Success bool               `json:"success"`
		Data    model.ChatResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "Here are a few homes you might like.", body.Data.Response)
	assert.Equal(t, model.QueryTypeSearch, body.Data.QueryType)
	assert.Len(t, body.Data.Properties, 3)
	assert.NotEmpty(t, body.Data.SearchID)
}

func TestChatMessage_Errors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		store     *stubStore
		completer *stubCompleter
		status    int
	}{
		{name: "missing message", body: `{}`, status: http.StatusBadRequest},
		{name: "wrong type", body: `{"message": 42}`, status: http.StatusBadRequest},
		{name: "blank message", body: `{"message": "   "}`, status: http.StatusBadRequest},
		{name: "malformed json", body: `{"message":`, status: http.StatusBadRequest},
		{
			name:      "generation failure",
			body:      `{"message": "a house"}`,
			completer: &stubCompleter{answerErr: errors.New("upstream down")},
			status:    http.StatusBadGateway,
		},
		{
			name:   "store failure",
			body:   `{"message": "a house"}`,
			store:  &stubStore{err: errors.New("connection refused")},
			status: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, completer := tt.store, tt.completer
			if store == nil {
				store = defaultStore()
			}
			if completer == nil {
				completer = &stubCompleter{}
			}
			w := do(newRouter(t, store, completer), http.MethodPost, "/api/v1/chat/message", tt.body)
			assert.Equal(t, tt.status, w.Code)
			body := decode(t, w)
			assert.Equal(t, false, body["success"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestChatFilter(t *testing.T) {
	r := newRouter(t, defaultStore(), &stubCompleter{})

	w := do(r, http.MethodPost, "/api/v1/chat/filter", `{"location": "miami"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp model.FilterResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, int64(2), resp.Data[0].ID)

	w = do(r, http.MethodPost, "/api/v1/chat/filter", `{"sortBy": "price_asc", "limit": 2}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, []int64{1, 3}, []int64{resp.Data[0].ID, resp.Data[1].ID})

	w = do(r, http.MethodPost, "/api/v1/chat/filter", `{"sortBy": "random"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProperties(t *testing.T) {
	r := newRouter(t, defaultStore(), &stubCompleter{})

	t.Run("list uses the default page size", func(t *testing.T) {
		w := do(r, http.MethodGet, "/api/v1/properties", "")
		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Data       []model.Listing  `json:"data"`
			Pagination model.Pagination `json:"pagination"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Len(t, body.Data, 2)
		assert.Equal(t, model.Pagination{Page: 1, Limit: 2, Total: 3, Pages: 2}, body.Pagination)
	})

	t.Run("list rejects a non-numeric page", func(t *testing.T) {
		w := do(r, http.MethodGet, "/api/v1/properties?page=two", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("get", func(t *testing.T) {
		w := do(r, http.MethodGet, "/api/v1/properties/3", "")
		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Data model.Listing `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "Lake House in Austin", body.Data.Title)
	})

	t.Run("get unknown id", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/v1/properties/99", "").Code)
		assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/v1/properties/abc", "").Code)
	})

	t.Run("compare", func(t *testing.T) {
		w := do(r, http.MethodPost, "/api/v1/properties/compare", `{"ids": [3, 1, 42]}`)
		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Data []model.Listing `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Len(t, body.Data, 2)

		assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/v1/properties/compare", `{"ids": []}`).Code)
		assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/v1/properties/compare", `{}`).Code)
	})

	t.Run("metadata", func(t *testing.T) {
		w := do(r, http.MethodGet, "/api/v1/filters/metadata", "")
		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Data model.FilterMetadata `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Len(t, body.Data.Locations, 3)
	})
}

func TestFeedback(t *testing.T) {
	store := defaultStore()
	r := newRouter(t, store, &stubCompleter{})

	w := do(r, http.MethodPost, "/api/v1/feedback", `{"search_id": "abc", "listing_id": 2, "action": "contact"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{"abc/contact"}, store.feedback)

	tests := map[string]string{
		"unknown action":     `{"search_id": "abc", "listing_id": 2, "action": "like"}`,
		"missing listing id": `{"search_id": "abc", "action": "click"}`,
		"missing search id":  `{"listing_id": 2, "action": "click"}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/v1/feedback", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, false, decode(t, w)["success"])
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{service.ErrEmptyQuery, http.StatusBadRequest},
		{service.ErrListingNotFound, http.StatusNotFound},
		{service.ErrEmbedding, http.StatusBadGateway},
		{service.ErrGeneration, http.StatusBadGateway},
		{service.ErrStore, http.StatusInternalServerError},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, statusFor(tt.err), tt.err.Error())
	}
}
