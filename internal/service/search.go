package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mira/internal/config"
	"mira/internal/model"
	"mira/internal/repository"
	"mira/internal/utils"
)

// SearchService is the retrieval orchestrator. It keeps no state between
// requests; the listing pool is re-read from the store on every call.
type SearchService struct {
	store     repository.ListingStore
	searchLog repository.SearchLogger
	intent    *IntentParser
	embedder  Embedder
	engine    SimilarityEngine
	ranker    *Ranker
	composer  *ResponseComposer
	keywords  *KeywordIndex
	cfg       config.RetrievalConfig
	logger    *zap.Logger
}

// NewSearchService creates a new search service. When store also implements
// repository.SearchLogger, processed queries are logged asynchronously.
func NewSearchService(
	store repository.ListingStore,
	intentParser *IntentParser,
	embedder Embedder,
	composer *ResponseComposer,
	cfg config.RetrievalConfig,
	logger *zap.Logger,
) *SearchService {
	s := &SearchService{
		store:    store,
		intent:   intentParser,
		embedder: embedder,
		engine:   NewBruteForceEngine(),
		ranker:   NewRanker(),
		composer: composer,
		keywords: NewKeywordIndex(),
		cfg:      cfg,
		logger:   utils.OrNop(logger).With(zap.String("component", "search")),
	}
	if sl, ok := store.(repository.SearchLogger); ok {
		s.searchLog = sl
	}
	return s
}

// WithSimilarityEngine swaps the brute-force scan for another engine
func (s *SearchService) WithSimilarityEngine(engine SimilarityEngine) *SearchService {
	s.engine = engine
	return s
}

// Close releases the keyword index
func (s *SearchService) Close() error {
	return s.keywords.Close()
}

// ProcessQuery runs the full pipeline for one natural language query:
// classify, retrieve, filter with staged fallbacks, cap, then compose the answer.
func (s *SearchService) ProcessQuery(ctx context.Context, text string) (*model.ChatResponse, error) {
	start := time.Now()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyQuery
	}

	pool, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	// Extraction and embedding depend only on the query text
	var (
		intent   *model.QueryIntent
		queryVec []float32
		embedErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		intent = s.intent.Parse(gctx, text)
		return nil
	})
	g.Go(func() error {
		queryVec, embedErr = s.embed(gctx, text)
		return nil
	})
	_ = g.Wait()

	resp := &model.ChatResponse{
		SearchID:  uuid.NewString(),
		QueryType: intent.QueryType,
		Fallback:  model.FallbackNone,
		Intent:    intent,
	}
	compose := ComposeInput{Query: text, QueryType: intent.QueryType}

	var displayed []model.Listing
	switch {
	case intent.QueryType == model.QueryTypeInformational:
		stats := ComputePoolStats(pool, s.cfg.LocationSample)
		compose.Stats = &stats
		resp.TotalMatches = len(pool)

	case intent.Filters.SortBy != nil:
		matched := FilterListings(pool, &intent.Filters, s.cfg.FuzzyThreshold)
		sorted := s.ranker.Sort(matched, *intent.Filters.SortBy)
		limit := s.cfg.DisplayLimit
		if intent.Filters.Limit != nil {
			limit = *intent.Filters.Limit
		}
		displayed = truncate(sorted, limit)
		resp.TotalMatches = len(matched)

	default:
		if embedErr != nil {
			return nil, embedErr
		}
		var matched []model.Listing
		matched, resp.Fallback = s.retrieve(text, queryVec, pool, &intent.Filters)
		limit := s.cfg.DisplayLimit
		if resp.Fallback != model.FallbackNone {
			limit = s.cfg.FallbackDisplayLimit
		}
		displayed = truncate(matched, limit)
		resp.TotalMatches = len(matched)
	}

	compose.Listings = displayed
	compose.TotalMatches = resp.TotalMatches
	answer, err := s.composer.Compose(ctx, compose)
	if err != nil {
		return nil, err
	}

	resp.Response = answer
	resp.Properties = model.StripEmbeddings(displayed)
	resp.Took = time.Since(start).Milliseconds()

	s.logger.Info("query processed",
		zap.String("search_id", resp.SearchID),
		zap.String("query_type", string(resp.QueryType)),
		zap.String("fallback", string(resp.Fallback)),
		zap.Int("total_matches", resp.TotalMatches),
		zap.Int("returned", len(resp.Properties)),
		zap.Int64("took_ms", resp.Took))

	s.logSearch(text, resp)
	return resp, nil
}

// retrieve runs semantic retrieval, the constraint filter and both fallbacks.
// The returned stage is the last one executed.
func (s *SearchService) retrieve(text string, queryVec []float32, pool []model.Listing, f *model.SearchFilters) ([]model.Listing, model.FallbackStage) {
	k := s.cfg.DisplayLimit * s.cfg.Oversample
	scored := s.engine.TopK(queryVec, pool, k)
	candidates := make([]model.Listing, len(scored))
	for i := range scored {
		candidates[i] = scored[i].Listing
	}

	matched := FilterListings(candidates, f, s.cfg.FuzzyThreshold)
	stage := model.FallbackNone
	if len(matched) > 0 {
		return matched, stage
	}

	if f.PropertyType != nil {
		stage = model.FallbackTitle
		relaxed := f.WithoutPropertyType()
		matched = FilterListings(TitleCandidates(pool, text), &relaxed, s.cfg.FuzzyThreshold)
		s.logger.Debug("title fallback", zap.Int("matched", len(matched)))
		if len(matched) > 0 {
			return matched, stage
		}
	}

	if f.HasConstraints() {
		stage = model.FallbackFullPool
		matched = FilterListings(pool, f, s.cfg.FuzzyThreshold)
		s.logger.Debug("full pool fallback", zap.Int("matched", len(matched)))
	}
	return matched, stage
}

func (s *SearchService) embed(ctx context.Context, text string) ([]float32, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("%w: no embedder configured", ErrEmbedding)
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	return vec, nil
}

// logSearch writes the search log in the background; failures are only logged
func (s *SearchService) logSearch(text string, resp *model.ChatResponse) {
	if s.searchLog == nil {
		return
	}

	ids := make([]int64, len(resp.Properties))
	for i := range resp.Properties {
		ids[i] = resp.Properties[i].ID
	}
	entry := model.SearchLog{
		SearchID:       resp.SearchID,
		Query:          text,
		Intent:         resp.Intent,
		ResultCount:    resp.TotalMatches,
		ListingIDs:     ids,
		Fallback:       resp.Fallback,
		ResponseTimeMs: int(resp.Took),
		CreatedAt:      time.Now().UTC(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.searchLog.LogSearch(ctx, entry); err != nil {
			s.logger.Warn("failed to log search", zap.String("search_id", entry.SearchID), zap.Error(err))
		}
	}()
}

// FilterByStructuredCriteria filters the whole pool without semantic retrieval.
// Property type matches exactly (ignoring case); keyword and amenities narrow further.
func (s *SearchService) FilterByStructuredCriteria(ctx context.Context, c model.FilterCriteria) ([]model.Listing, error) {
	pool, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	filters := c.SearchFilters.WithoutPropertyType()
	var wantType string
	if c.PropertyType != nil {
		wantType = strings.TrimSpace(*c.PropertyType)
	}

	keyword := strings.TrimSpace(c.Keyword)
	var keywordHits map[int64]struct{}
	if keyword != "" {
		keywordHits, err = s.keywords.Match(pool, keyword)
		if err != nil {
			// Substring matching below still applies
			s.logger.Warn("keyword index unavailable", zap.Error(err))
		}
	}

	out := make([]model.Listing, 0)
	for i := range pool {
		l := &pool[i]
		if !MatchesFilters(l, &filters, s.cfg.FuzzyThreshold) {
			continue
		}
		if wantType != "" && !strings.EqualFold(string(l.PropertyType), wantType) {
			continue
		}
		if keyword != "" {
			if _, hit := keywordHits[l.ID]; !hit && !containsKeyword(l, keyword) {
				continue
			}
		}
		if !MatchesAmenities(l, c.Amenities) {
			continue
		}
		out = append(out, *l)
	}

	if c.SortBy != nil {
		out = s.ranker.Sort(out, *c.SortBy)
	}
	if c.Limit != nil && *c.Limit > 0 {
		out = truncate(out, *c.Limit)
	}
	return model.StripEmbeddings(out), nil
}

// GetListing retrieves a single listing by ID
func (s *SearchService) GetListing(ctx context.Context, id int64) (*model.Listing, error) {
	l, err := s.store.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrListingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	l.Embedding = nil
	return l, nil
}

// ListListings returns one page of the pool. Page is 1-based; limit is bounded by MaxPageLimit.
func (s *SearchService) ListListings(ctx context.Context, page, limit int) (*model.ListingPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = s.cfg.PageLimit
	}
	limit = min(limit, s.cfg.MaxPageLimit)

	pool, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	from := min((page-1)*limit, len(pool))
	to := min(from+limit, len(pool))
	return &model.ListingPage{
		Listings: model.StripEmbeddings(pool[from:to]),
		Pagination: model.Pagination{
			Page:  page,
			Limit: limit,
			Total: len(pool),
			Pages: int(math.Ceil(float64(len(pool)) / float64(limit))),
		},
	}, nil
}

// Compare returns the listings among ids that exist, ordered by id
func (s *SearchService) Compare(ctx context.Context, ids []int64) ([]model.Listing, error) {
	if len(ids) == 0 {
		return []model.Listing{}, nil
	}
	listings, err := s.store.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	return model.StripEmbeddings(listings), nil
}

// FilterMetadata lists the distinct values a structured filter UI can offer
func (s *SearchService) FilterMetadata(ctx context.Context) (*model.FilterMetadata, error) {
	pool, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	meta := &model.FilterMetadata{
		Locations:     []string{},
		PropertyTypes: []model.PropertyType{},
		Bedrooms:      []int{},
		Bathrooms:     []int{},
	}
	locations := make(map[string]struct{})
	types := make(map[model.PropertyType]struct{})
	beds := make(map[int]struct{})
	baths := make(map[int]struct{})

	for i := range pool {
		l := &pool[i]
		if _, ok := locations[l.Location]; !ok && l.Location != "" {
			locations[l.Location] = struct{}{}
			meta.Locations = append(meta.Locations, l.Location)
		}
		if _, ok := types[l.PropertyType]; !ok && l.PropertyType != "" {
			types[l.PropertyType] = struct{}{}
			meta.PropertyTypes = append(meta.PropertyTypes, l.PropertyType)
		}
		if _, ok := beds[l.Bedrooms]; !ok {
			beds[l.Bedrooms] = struct{}{}
			meta.Bedrooms = append(meta.Bedrooms, l.Bedrooms)
		}
		if _, ok := baths[l.Bathrooms]; !ok {
			baths[l.Bathrooms] = struct{}{}
			meta.Bathrooms = append(meta.Bathrooms, l.Bathrooms)
		}
		if i == 0 || l.Price < meta.PriceRange.Min {
			meta.PriceRange.Min = l.Price
		}
		if i == 0 || l.Price > meta.PriceRange.Max {
			meta.PriceRange.Max = l.Price
		}
	}

	sort.Strings(meta.Locations)
	sort.Slice(meta.PropertyTypes, func(i, j int) bool { return meta.PropertyTypes[i] < meta.PropertyTypes[j] })
	sort.Ints(meta.Bedrooms)
	sort.Ints(meta.Bathrooms)
	return meta, nil
}

// LogFeedback logs user feedback/action
func (s *SearchService) LogFeedback(ctx context.Context, searchID string, listingID int64, action string) error {
	if s.searchLog == nil {
		return nil
	}
	return s.searchLog.LogFeedback(ctx, searchID, listingID, action)
}

func truncate(listings []model.Listing, limit int) []model.Listing {
	if limit >= 0 && len(listings) > limit {
		return listings[:limit]
	}
	return listings
}
