package service

import (
	"context"
)

// Completer sends a single prompt to a language model and returns its text
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Embedder turns text into a fixed-length vector. Identical text must yield
// vectors whose cosine similarity is 1.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// BatchEmbedder embeds many texts in one call, preserving input order
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// AIClient is the interface for AI service providers
type AIClient interface {
	Completer
	Embedder
	BatchEmbedder

	// IsEnabled returns whether the AI client is configured and ready
	IsEnabled() bool
}

// Ensure both backends implement AIClient
var (
	_ AIClient = (*OpenAIClient)(nil)
	_ AIClient = (*LangChainClient)(nil)
)
