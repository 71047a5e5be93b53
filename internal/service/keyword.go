package service

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"mira/internal/model"
)

// KeywordIndex is an in-memory bleve index over listing text used by the
// structured filter path. It is rebuilt whenever the pool it was built from changes.
type KeywordIndex struct {
	mu    sync.Mutex
	index bleve.Index
	sig   poolSignature
}

// poolSignature identifies a pool by its size and indexed content
type poolSignature struct {
	size int
	hash uint64
}

func signatureOf(pool []model.Listing) poolSignature {
	h := fnv.New64a()
	for i := range pool {
		l := &pool[i]
		// NUL separators keep field boundaries distinct
		fmt.Fprintf(h, "%d\x00%s\x00%s\x00%s\x00%s\x00", l.ID, l.Title, l.Description, l.Location, l.PropertyType)
	}
	return poolSignature{size: len(pool), hash: h.Sum64()}
}

// NewKeywordIndex creates an empty keyword index
func NewKeywordIndex() *KeywordIndex {
	return &KeywordIndex{}
}

func newListingMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	text := bleve.NewTextFieldMapping()
	// Standard analyzer: lowercase + tokenize, no stemming
	text.Analyzer = standard.Name
	for _, field := range []string{"title", "description", "location", "property_type"} {
		docMapping.AddFieldMappingsAt(field, text)
	}
	im.DefaultMapping = docMapping
	return im
}

// Match returns the ids of pool listings whose text matches every term of keyword
func (k *KeywordIndex) Match(pool []model.Listing, keyword string) (map[int64]struct{}, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.ensure(pool); err != nil {
		return nil, err
	}

	q := bleve.NewMatchQuery(keyword)
	q.SetOperator(blevequery.MatchQueryOperatorAnd)
	req := bleve.NewSearchRequest(q)
	req.Size = max(len(pool), 1)

	res, err := k.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}

	ids := make(map[int64]struct{}, len(res.Hits))
	for _, hit := range res.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		ids[id] = struct{}{}
	}
	return ids, nil
}

// ensure (re)builds the index for pool. Callers hold k.mu.
func (k *KeywordIndex) ensure(pool []model.Listing) error {
	sig := signatureOf(pool)
	if k.index != nil && k.sig == sig {
		return nil
	}
	if k.index != nil {
		_ = k.index.Close()
		k.index = nil
	}

	index, err := bleve.NewMemOnly(newListingMapping())
	if err != nil {
		return fmt.Errorf("failed to create keyword index: %w", err)
	}

	batch := index.NewBatch()
	for i := range pool {
		l := &pool[i]
		doc := map[string]interface{}{
			"title":         l.Title,
			"description":   l.Description,
			"location":      l.Location,
			"property_type": string(l.PropertyType),
		}
		if err := batch.Index(strconv.FormatInt(l.ID, 10), doc); err != nil {
			_ = index.Close()
			return fmt.Errorf("failed to index listing %d: %w", l.ID, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		_ = index.Close()
		return fmt.Errorf("failed to build keyword index: %w", err)
	}

	k.index = index
	k.sig = sig
	return nil
}

// Close releases the index
func (k *KeywordIndex) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.index == nil {
		return nil
	}
	err := k.index.Close()
	k.index = nil
	return err
}

// containsKeyword is the substring check the keyword filter also accepts
func containsKeyword(l *model.Listing, keyword string) bool {
	kw := strings.ToLower(keyword)
	return strings.Contains(strings.ToLower(l.Title), kw) ||
		strings.Contains(strings.ToLower(l.Description), kw) ||
		strings.Contains(strings.ToLower(l.Location), kw)
}
