package service

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"mira/internal/utils"
)

// ErrCacheMiss indicates a cache miss
var ErrCacheMiss = errors.New("cache miss")

// EmbeddingCache stores query embeddings keyed by text
type EmbeddingCache interface {
	Get(ctx context.Context, key string) ([]float32, error)
	Set(ctx context.Context, key string, value []float32) error
}

// CachedEmbedder decorates an Embedder with a cache. Cache failures are logged
// and bypassed so a broken cache never fails a query.
type CachedEmbedder struct {
	next   Embedder
	cache  EmbeddingCache
	logger *zap.Logger
}

// NewCachedEmbedder wraps next with cache
func NewCachedEmbedder(next Embedder, cache EmbeddingCache, logger *zap.Logger) *CachedEmbedder {
	return &CachedEmbedder{
		next:   next,
		cache:  cache,
		logger: utils.OrNop(logger).With(zap.String("component", "embed_cache")),
	}
}

// Embed returns the cached vector for text or computes and stores it
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)

	vec, err := e.cache.Get(ctx, key)
	switch {
	case err == nil:
		return vec, nil
	case !errors.Is(err, ErrCacheMiss):
		e.logger.Warn("embedding cache read failed", zap.Error(err))
	}

	vec, err = e.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := e.cache.Set(ctx, key, vec); err != nil {
		e.logger.Warn("embedding cache write failed", zap.Error(err))
	}
	return vec, nil
}

// cacheKey hashes the trimmed text so keys have a bounded length
func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}

// LRUEmbeddingCache is an in-process LRU cache
type LRUEmbeddingCache struct {
	capacity int
	items    map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
}

type lruEntry struct {
	key   string
	value []float32
}

// NewLRUEmbeddingCache creates a cache holding at most capacity vectors
func NewLRUEmbeddingCache(capacity int) *LRUEmbeddingCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &LRUEmbeddingCache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the cached vector or ErrCacheMiss
func (c *LRUEmbeddingCache) Get(_ context.Context, key string) ([]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	c.lru.MoveToFront(elem)
	return slices.Clone(elem.Value.(*lruEntry).value), nil
}

// Set stores value, evicting the least recently used entry at capacity
func (c *LRUEmbeddingCache) Set(_ context.Context, key string, value []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*lruEntry).value = slices.Clone(value)
		return nil
	}

	c.items[key] = c.lru.PushFront(&lruEntry{key: key, value: slices.Clone(value)})
	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.items, oldest.Value.(*lruEntry).key)
	}
	return nil
}

// Len returns the number of cached vectors
func (c *LRUEmbeddingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// RedisEmbeddingCache shares query embeddings between server instances
type RedisEmbeddingCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisEmbeddingCache creates a cache on an existing redis client
func NewRedisEmbeddingCache(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisEmbeddingCache {
	if prefix == "" {
		prefix = "mira:emb:"
	}
	return &RedisEmbeddingCache{client: client, prefix: prefix, ttl: ttl}
}

// DialRedis connects to redis and verifies the connection
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// Get retrieves a vector from redis
func (c *RedisEmbeddingCache) Get(ctx context.Context, key string) ([]float32, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var vec []float32
	if err := json.Unmarshal(val, &vec); err != nil {
		return nil, fmt.Errorf("decode cached embedding: %w", err)
	}
	return vec, nil
}

// Set stores a vector in redis with the configured TTL
func (c *RedisEmbeddingCache) Set(ctx context.Context, key string, value []float32) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode embedding: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
