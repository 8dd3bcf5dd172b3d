package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pestma/internal/config"
)

func TestOpenAICall(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": `{"diagnosis":"rust"}`}},
			},
		})
	}))
	defer srv.Close()

	c := &OpenAIChatClient{BaseURL: srv.URL + "/v1", APIKey: "sk-test", Model: "gpt-4o-mini"}
	out, err := c.CallWithPayload(context.Background(), ChatPayload{
		System:      "sys",
		User:        "describe",
		Temperature: 0.05,
		MaxTokens:   500,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"diagnosis":"rust"}`, out)

	assert.Equal(t, "gpt-4o-mini", got["model"])
	assert.InDelta(t, 0.05, got["temperature"].(float64), 1e-9)
	assert.EqualValues(t, 500, got["max_tokens"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
}

func TestOpenAIVisionContentParts(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": "ok"}}},
		})
	}))
	defer srv.Close()

	c := &OpenAIChatClient{BaseURL: srv.URL, Model: "m"}
	_, err := c.CallWithPayload(context.Background(), ChatPayload{
		User:   "look at this",
		Images: []ImagePayload{{MIME: "image/png", Bytes: []byte{1, 2, 3}}},
	})
	require.NoError(t, err)

	msgs := got["messages"].([]any)
	content := msgs[len(msgs)-1].(map[string]any)["content"].([]any)
	require.Len(t, content, 2)
	assert.Equal(t, "text", content[0].(map[string]any)["type"])
	part := content[1].(map[string]any)
	assert.Equal(t, "image_url", part["type"])
	uri := part["image_url"].(map[string]any)["url"].(string)
	assert.Contains(t, uri, "data:image/png;base64,")
}

func TestOpenAIErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "rate limited"},
		})
	}))
	defer srv.Close()

	c := &OpenAIChatClient{BaseURL: srv.URL, Model: "m"}
	_, err := c.CallWithPayload(context.Background(), ChatPayload{User: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestOpenAITimeoutReturnsCtxErr(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	c := &OpenAIChatClient{BaseURL: srv.URL, Model: "m"}
	_, err := c.CallWithPayload(ctx, ChatPayload{User: "hi"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOpenAIEndpointNormalization(t *testing.T) {
	cases := map[string]string{
		"http://host/v1":                  "http://host/v1/chat/completions",
		"http://host/v1/":                 "http://host/v1/chat/completions",
		"http://host/v1/chat/completions": "http://host/v1/chat/completions",
		"":                                "https://api.openai.com/v1/chat/completions",
	}
	for base, want := range cases {
		c := &OpenAIChatClient{BaseURL: base}
		assert.Equal(t, want, c.endpoint(), base)
	}
}

func TestOllamaCall(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{"response": `{"diagnosis":"mildew"}`})
	}))
	defer srv.Close()

	c := &OllamaClient{BaseURL: srv.URL, Model: "qwen2.5:7b"}
	out, err := c.CallWithPayload(context.Background(), ChatPayload{
		System:      "sys",
		User:        "describe",
		Temperature: 0.2,
		MaxTokens:   400,
		Images:      []ImagePayload{{Bytes: []byte{9}}},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"diagnosis":"mildew"}`, out)

	assert.Equal(t, false, got["stream"])
	assert.Equal(t, "sys", got["system"])
	opts := got["options"].(map[string]any)
	assert.InDelta(t, 0.2, opts["temperature"].(float64), 1e-9)
	assert.EqualValues(t, 400, opts["num_predict"])
	assert.Len(t, got["images"].([]any), 1)
}

func TestOllamaErrorField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "model not found"})
	}))
	defer srv.Close()

	c := &OllamaClient{BaseURL: srv.URL, Model: "absent"}
	_, err := c.CallWithPayload(context.Background(), ChatPayload{User: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Contains(t, err.Error(), "model not found")
}

func TestFromConfig(t *testing.T) {
	p, err := FromConfig("diagnoser", config.ModelConfig{
		Provider:       "ollama",
		BaseURL:        "http://localhost:11434",
		Model:          "llama3.2-vision:11b",
		SupportsVision: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "diagnoser:llama3.2-vision:11b", p.ID())
	assert.True(t, p.SupportsVision())
	assert.True(t, p.Enabled())

	_, err = FromConfig("advisor", config.ModelConfig{Provider: "smoke-signals", Model: "m"})
	assert.Error(t, err)
}
