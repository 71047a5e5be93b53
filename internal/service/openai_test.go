package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mira/internal/config"
)

// fakeOpenAI serves /chat/completions and /embeddings like an OpenAI-compatible API
type fakeOpenAI struct {
	mu          sync.Mutex
	chatReqs    []ChatCompletionRequest
	embedInputs [][]string
	status      int
}

func (f *fakeOpenAI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer test-key" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if f.status != 0 {
		http.Error(w, `{"error": "overloaded"}`, f.status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/chat/completions":
		var req ChatCompletionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.chatReqs = append(f.chatReqs, req)
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"id": "c1", "model": "gpt-test", "choices": [{"index": 0, "message": {"role": "assistant", "content": "  hello there \n"}, "finish_reason": "stop"}], "usage": {"total_tokens": 12}}`))

	case "/embeddings":
		var req EmbeddingRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.embedInputs = append(f.embedInputs, req.Input)
		f.mu.Unlock()

		resp := EmbeddingResponse{Model: req.Model}
		// Reverse order to check that index is honoured
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
			}{Embedding: []float32{float32(len(req.Input[i])), 1}, Index: i})
		}
		_ = json.NewEncoder(w).Encode(resp)

	default:
		http.NotFound(w, r)
	}
}

func newTestOpenAIClient(t *testing.T, fake *fakeOpenAI) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	return NewOpenAIClient(&config.OpenAIConfig{
		APIKey:          "test-key",
		APIBase:         srv.URL,
		ChatModel:       "gpt-test",
		ChatTemperature: 0.2,
		ChatMaxTokens:   256,
		EmbeddingModel:  "embed-test",
		BatchSize:       2,
		Timeout:         5,
		Enabled:         true,
	}, nil)
}

func TestOpenAIClient_Complete(t *testing.T) {
	fake := &fakeOpenAI{}
	client := newTestOpenAIClient(t, fake)

	text, err := client.Complete(context.Background(), "say hello")
	require.NoError(t, err)
	assert.Equal(t, "hello there", text)

	require.Len(t, fake.chatReqs, 1)
	req := fake.chatReqs[0]
	assert.Equal(t, "gpt-test", req.Model)
	assert.Equal(t, 0.2, req.Temperature)
	assert.Equal(t, 256, req.MaxTokens)
	assert.Equal(t, []ChatMessage{{Role: "user", Content: "say hello"}}, req.Messages)
}

func TestOpenAIClient_EmbedBatch(t *testing.T) {
	fake := &fakeOpenAI{}
	client := newTestOpenAIClient(t, fake)

	vecs, err := client.EmbedBatch(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 1}, {2, 1}, {3, 1}}, vecs)
	assert.Equal(t, [][]string{{"a", "bb"}, {"ccc"}}, fake.embedInputs)

	vec, err := client.Embed(context.Background(), "dddd")
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 1}, vec)
}

func TestOpenAIClient_Errors(t *testing.T) {
	t.Run("non-200 status", func(t *testing.T) {
		client := newTestOpenAIClient(t, &fakeOpenAI{status: http.StatusServiceUnavailable})
		_, err := client.Complete(context.Background(), "hi")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "503")
	})

	t.Run("disabled", func(t *testing.T) {
		client := NewOpenAIClient(&config.OpenAIConfig{Timeout: 1}, nil)
		assert.False(t, client.IsEnabled())
		_, err := client.Complete(context.Background(), "hi")
		assert.Error(t, err)
		_, err = client.Embed(context.Background(), "hi")
		assert.Error(t, err)
	})
}
