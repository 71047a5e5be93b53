package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mira/internal/config"
	"mira/internal/utils"
)

// NewAIClientFromConfig returns the completion/embedding backend named by cfg.LLM.Provider
func NewAIClientFromConfig(cfg *config.Config, logger *zap.Logger) (AIClient, error) {
	switch cfg.LLM.Provider {
	case config.LLMProviderLangChain:
		return NewLangChainClient(&cfg.OpenAI, logger)
	case config.LLMProviderOpenAI:
		return NewOpenAIClient(&cfg.OpenAI, logger), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}

// NewQueryEmbedder wraps next with the configured embedding cache. Redis is
// used when an address is set and reachable; otherwise an in-process LRU.
// The returned func releases the redis connection.
func NewQueryEmbedder(ctx context.Context, next Embedder, cfg config.CacheConfig, logger *zap.Logger) (*CachedEmbedder, func() error) {
	logger = utils.OrNop(logger)
	noop := func() error { return nil }

	if cfg.RedisAddr != "" {
		client, err := DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err == nil {
			logger.Info("embedding cache: redis", zap.String("addr", cfg.RedisAddr))
			ttl := time.Duration(cfg.TTLSeconds) * time.Second
			return NewCachedEmbedder(next, NewRedisEmbeddingCache(client, cfg.RedisPrefix, ttl), logger), client.Close
		}
		logger.Warn("redis unavailable, using in-process cache", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}

	logger.Info("embedding cache: lru", zap.Int("size", cfg.LRUSize))
	return NewCachedEmbedder(next, NewLRUEmbeddingCache(cfg.LRUSize), logger), noop
}
