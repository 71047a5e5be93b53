package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"mira/internal/config"
	"mira/internal/utils"
)

// LangChainClient implements AIClient on top of langchaingo's OpenAI backend
type LangChainClient struct {
	llm      llms.Model
	embedder embeddings.Embedder
	cfg      *config.OpenAIConfig
	logger   *zap.Logger
}

// NewLangChainClient builds the chat model and embedder from the OpenAI config
func NewLangChainClient(cfg *config.OpenAIConfig, logger *zap.Logger) (*LangChainClient, error) {
	token := cfg.APIKey
	if token == "" {
		// local OpenAI-compatible servers accept any token
		token = "none"
	}

	client, err := openai.New(
		openai.WithBaseURL(cfg.APIBase),
		openai.WithToken(token),
		openai.WithModel(cfg.ChatModel),
		openai.WithEmbeddingModel(cfg.EmbeddingModel),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create langchain openai client: %w", err)
	}

	opts := []embeddings.Option{embeddings.WithStripNewLines(true)}
	if cfg.BatchSize > 0 {
		opts = append(opts, embeddings.WithBatchSize(cfg.BatchSize))
	}
	embedder, err := embeddings.NewEmbedder(client, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create langchain embedder: %w", err)
	}

	return newLangChainClient(client, embedder, cfg, logger), nil
}

func newLangChainClient(llm llms.Model, embedder embeddings.Embedder, cfg *config.OpenAIConfig, logger *zap.Logger) *LangChainClient {
	return &LangChainClient{
		llm:      llm,
		embedder: embedder,
		cfg:      cfg,
		logger:   utils.OrNop(logger).With(zap.String("component", "langchain")),
	}
}

// IsEnabled reports whether a model is configured
func (c *LangChainClient) IsEnabled() bool {
	return c.llm != nil && c.embedder != nil
}

// Complete generates a completion for a single prompt
func (c *LangChainClient) Complete(ctx context.Context, prompt string) (string, error) {
	opts := []llms.CallOption{llms.WithTemperature(c.cfg.ChatTemperature)}
	if c.cfg.ChatMaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(c.cfg.ChatMaxTokens))
	}

	text, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt, opts...)
	if err != nil {
		c.logger.Error("completion failed", zap.Error(err))
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Embed embeds a query text
func (c *LangChainClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := c.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("empty embedding returned for input")
	}
	return vec, nil
}

// EmbedBatch embeds documents, preserving input order
func (c *LangChainClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	vecs, err := c.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		c.logger.Error("batch embedding failed", zap.Int("count", len(texts)), zap.Error(err))
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d inputs", len(vecs), len(texts))
	}
	return vecs, nil
}
