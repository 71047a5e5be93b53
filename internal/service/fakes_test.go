package service

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"mira/internal/config"
	"mira/internal/model"
	"mira/internal/repository"
)

// hashEmbedder is a deterministic bag-of-words embedder: each lowercased token
// increments one hashed dimension, then the vector is L2-normalised.
type hashEmbedder struct {
	dim   int
	err   error
	mu    sync.Mutex
	calls int
}

func newHashEmbedder() *hashEmbedder {
	return &hashEmbedder{dim: 256}
}

func (e *hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	return hashVector(text, e.dim), nil
}

func (e *hashEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func hashVector(text string, dim int) []float32 {
	vec := make([]float32, dim)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[h.Sum32()%uint32(dim)]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

// scriptedCompleter answers extraction prompts from a per-query table and
// every other prompt with a fixed answer.
type scriptedCompleter struct {
	mu         sync.Mutex
	intents    map[string]string
	answer     string
	extractErr error
	answerErr  error
	prompts    []string
}

func newScriptedCompleter() *scriptedCompleter {
	return &scriptedCompleter{intents: map[string]string{}, answer: "Here is what I found."}
}

func (c *scriptedCompleter) Complete(_ context.Context, prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, prompt)

	if strings.Contains(prompt, "Classify the user's query") {
		if c.extractErr != nil {
			return "", c.extractErr
		}
		idx := strings.LastIndex(prompt, "Query: ")
		q, err := strconv.Unquote(strings.TrimSpace(prompt[idx+len("Query: "):]))
		if err != nil {
			return "", err
		}
		if js, ok := c.intents[q]; ok {
			return js, nil
		}
		return `{"queryType": "search", "filters": {}}`, nil
	}

	if c.answerErr != nil {
		return "", c.answerErr
	}
	return c.answer, nil
}

// answerPrompts returns every non-extraction prompt seen so far
func (c *scriptedCompleter) answerPrompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, p := range c.prompts {
		if !strings.Contains(p, "Classify the user's query") {
			out = append(out, p)
		}
	}
	return out
}

// memStore is an in-memory ListingStore and SearchLogger
type memStore struct {
	listings []model.Listing
	err      error

	mu       sync.Mutex
	logs     []model.SearchLog
	feedback []string
}

func (s *memStore) FindAll(context.Context) ([]model.Listing, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]model.Listing, len(s.listings))
	copy(out, s.listings)
	return out, nil
}

func (s *memStore) FindByID(_ context.Context, id int64) (*model.Listing, error) {
	if s.err != nil {
		return nil, s.err
	}
	for _, l := range s.listings {
		if l.ID == id {
			return &l, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memStore) FindByIDs(_ context.Context, ids []int64) ([]model.Listing, error) {
	if s.err != nil {
		return nil, s.err
	}
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
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) LogSearch(_ context.Context, entry model.SearchLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	return nil
}

func (s *memStore) LogFeedback(_ context.Context, searchID string, listingID int64, action string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedback = append(s.feedback, searchID+"/"+strconv.FormatInt(listingID, 10)+"/"+action)
	return nil
}

func (s *memStore) searchLogs() []model.SearchLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.SearchLog(nil), s.logs...)
}

var errBoom = errors.New("boom")

func listing(id int64, title, location string, price float64, beds, baths int, size float64, pt model.PropertyType, desc string, amenities ...string) model.Listing {
	l := model.Listing{
		ID: id, Title: title, Location: location, Price: price,
		Bedrooms: beds, Bathrooms: baths, SizeSqft: size,
		PropertyType: pt, Description: desc, Amenities: amenities,
	}
	l.Embedding = hashVector(title+" "+location+" "+string(pt), 256)
	return l
}

func testPool() []model.Listing {
	return []model.Listing{
		listing(1, "Spacious 2BHK Apartment in Atlanta", "Atlanta, GA", 450000, 2, 2, 1100, model.PropertyApartment,
			"Bright apartment close to the park", "Gym", "Swimming pool"),
		listing(2, "Luxury Penthouse with Strip Views", "Las Vegas, NV", 2500000, 3, 3, 3200, model.PropertyPenthouse,
			"Top floor penthouse overlooking the Strip", "Pool", "Concierge", "Gym"),
		listing(3, "Modern Loft in Downtown Denver", "Denver, CO", 620000, 2, 1, 1300, model.PropertyLoft,
			"Industrial loft with exposed brick", "Parking"),
		listing(4, "Sprawling Estate with Vineyard", "Austin, TX", 4800000, 6, 5, 8000, model.PropertyEstate,
			"Private estate with a working vineyard and guest house", "Pool", "Garden", "Garage"),
		listing(5, "Cozy Studio near Midtown", "Atlanta, GA", 210000, 1, 1, 500, model.PropertyStudio,
			"Compact studio for city living", "Laundry"),
		listing(6, "Brooklyn Brownstone with Garden", "Brooklyn, NY", 1850000, 4, 3, 2800, model.PropertyBrownstone,
			"Classic brownstone with a private garden", "Garden", "Fireplace"),
		listing(7, "Family House in Suburban Atlanta", "Atlanta, GA", 750000, 3, 2, 2200, model.PropertyHouse,
			"Quiet street with a large backyard", "Garage", "Backyard"),
		listing(8, "Beachfront Villa in Miami", "Miami, FL", 3200000, 5, 4, 4500, model.PropertyVilla,
			"Villa steps from the ocean", "Pool", "Ocean view"),
		listing(9, "Downtown Condo in Miami", "Miami, FL", 890000, 3, 2, 1500, model.PropertyCondo,
			"High-rise condo with bay views", "Gym", "Pool", "Balcony"),
		listing(10, "Mountain Cabin Retreat", "Aspen, CO", 980000, 3, 2, 1800, model.PropertyCabin,
			"Secluded cabin near the slopes", "Fireplace"),
	}
}

func testRetrievalConfig() config.RetrievalConfig {
	return config.RetrievalConfig{
		DisplayLimit:         5,
		FallbackDisplayLimit: 10,
		Oversample:           5,
		FuzzyThreshold:       DefaultFuzzyThreshold,
		LocationSample:       10,
		PageLimit:            10,
		MaxPageLimit:         100,
	}
}

type fixture struct {
	svc       *SearchService
	store     *memStore
	completer *scriptedCompleter
	embedder  *hashEmbedder
}

func newFixture(cfg config.RetrievalConfig) *fixture {
	store := &memStore{listings: testPool()}
	completer := newScriptedCompleter()
	embedder := newHashEmbedder()
	svc := NewSearchService(
		store,
		NewIntentParser(completer, cfg.FallbackDisplayLimit, nil),
		embedder,
		NewResponseComposer(completer, nil),
		cfg,
		nil,
	)
	return &fixture{svc: svc, store: store, completer: completer, embedder: embedder}
}

func ids(listings []model.Listing) []int64 {
	out := make([]int64, len(listings))
	for i, l := range listings {
		out[i] = l.ID
	}
	return out
}
