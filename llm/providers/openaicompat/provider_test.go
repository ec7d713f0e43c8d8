package openaicompat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BaSui01/docflow/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(baseURL string) *Provider {
	return New(Config{
		ProviderName:  "test-compat",
		APIKey:        "test-key",
		BaseURL:       baseURL,
		DefaultModel:  "test-model",
		FallbackModel: "fallback-model",
		Timeout:       5 * time.Second,
	}, nil)
}

func TestCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "chatcmpl-123",
			"model": "test-model",
			"created": 1700000000,
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "hello there"}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 3, "total_tokens": 13}
		}`)
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	resp, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "chatcmpl-123", resp.ID)
	assert.Equal(t, "test-compat", resp.Provider)
	assert.Equal(t, "hello there", resp.Text())
	assert.Equal(t, 13, resp.Usage.TotalTokens)
	assert.Equal(t, time.Unix(1700000000, 0), resp.CreatedAt)
}

func TestCompletionErrorMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error": {"message": "rate limit exceeded", "type": "rate_limit_error"}}`)
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	_, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.Error(t, err)

	llmErr, ok := err.(*llm.Error)
	require.True(t, ok, "expected *llm.Error, got %T", err)
	assert.Equal(t, llm.ErrRateLimited, llmErr.Code)
	assert.True(t, llmErr.Retryable)
	assert.Equal(t, "test-compat", llmErr.Provider)
}

func TestStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		chunks := []string{
			`{"id":"s1","model":"test-model","choices":[{"index":0,"delta":{"role":"assistant","content":"Hel"}}]}`,
			`{"id":"s1","model":"test-model","choices":[{"index":0,"delta":{"content":"lo"}}]}`,
			`{"id":"s1","model":"test-model","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
		}
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	ch, err := p.Stream(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)

	var text string
	var finish string
	for chunk := range ch {
		require.Nil(t, chunk.Err)
		text += chunk.Delta.Content
		if chunk.FinishReason != "" {
			finish = chunk.FinishReason
		}
	}
	assert.Equal(t, "Hello", text)
	assert.Equal(t, "stop", finish)
}

func TestStreamUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error": {"message": "overloaded"}}`)
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	_, err := p.Stream(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.Error(t, err)

	llmErr, ok := err.(*llm.Error)
	require.True(t, ok)
	assert.Equal(t, llm.ErrUpstreamError, llmErr.Code)
	assert.True(t, llmErr.Retryable)
}

func TestStreamContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"id\":\"s1\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"a\"}}]}\n\n")
		flusher.Flush()
		// 保持连接直到客户端取消
		<-r.Context().Done()
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	ch, err := p.Stream(ctx, &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)

	first := <-ch
	assert.Equal(t, "a", first.Delta.Content)
	cancel()

	// 取消后通道应在有限时间内关闭
	deadline := time.After(3 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream channel not closed after context cancel")
		}
	}
}

func TestHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		fmt.Fprint(w, `{"data": []}`)
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	status, err := p.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
}

func TestDefaultModelSelection(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotModel = body.Model
		fmt.Fprint(w, `{"id":"x","choices":[{"index":0,"message":{"role":"assistant","content":"ok"}}]}`)
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	_, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "test-model", gotModel)

	_, err = p.Completion(context.Background(), &llm.ChatRequest{
		Model:    "override-model",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "override-model", gotModel)
}
