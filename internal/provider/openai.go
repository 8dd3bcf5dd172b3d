package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"pestma/internal/logger"
)

// OpenAIChatClient talks to any OpenAI-compatible /v1/chat/completions
// endpoint (OpenAI, DeepSeek, Qwen, vLLM, ...). One attempt per call: the
// pipeline never retries a stage, so neither does the client.
type OpenAIChatClient struct {
	BaseURL      string
	APIKey       string
	Model        string
	ExtraHeaders map[string]string

	// HTTPClient is swappable for tests; timeout comes from the caller's ctx.
	HTTPClient *http.Client
}

func (c *OpenAIChatClient) CallWithPayload(ctx context.Context, payload ChatPayload) (string, error) {
	url := c.endpoint()

	messages := make([]map[string]any, 0, 2)
	if payload.System != "" {
		messages = append(messages, map[string]any{"role": "system", "content": payload.System})
	}
	messages = append(messages, map[string]any{"role": "user", "content": userContent(payload)})

	body := map[string]any{
		"model":       c.Model,
		"messages":    messages,
		"temperature": payload.Temperature,
	}
	if payload.MaxTokens > 0 {
		body["max_tokens"] = payload.MaxTokens
	}
	b, _ := json.Marshal(body)

	logger.Debugf("model request: POST %s model=%s auth=%s images=%d", url, c.Model, maskKey(c.APIKey), len(payload.Images))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	for k, v := range c.ExtraHeaders {
		req.Header.Set(k, v)
	}

	httpc := c.HTTPClient
	if httpc == nil {
		httpc = http.DefaultClient
	}
	resp, err := httpc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var eresp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&eresp)
		msg := strings.TrimSpace(eresp.Error.Message)
		if msg == "" {
			msg = resp.Status
		}
		return "", fmt.Errorf("%w: status=%d: %s", ErrTransport, resp.StatusCode, msg)
	}

	var r struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if len(r.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", ErrTransport)
	}
	return r.Choices[0].Message.Content, nil
}

// endpoint normalizes BaseURL so a configured ".../chat/completions" does not
// end up doubled.
func (c *OpenAIChatClient) endpoint() string {
	url := strings.TrimRight(c.BaseURL, "/")
	if url == "" {
		url = "https://api.openai.com/v1"
	}
	url = strings.TrimSuffix(url, "/chat/completions")
	return url + "/chat/completions"
}

// userContent builds either a plain string or vision content parts.
func userContent(payload ChatPayload) any {
	if len(payload.Images) == 0 {
		return payload.User
	}
	parts := []map[string]any{{"type": "text", "text": payload.User}}
	for _, img := range payload.Images {
		uri := img.DataURI()
		if uri == "" {
			continue
		}
		parts = append(parts, map[string]any{
			"type":      "image_url",
			"image_url": map[string]any{"url": uri},
		})
	}
	return parts
}

func maskKey(key string) string {
	if key == "" {
		return "none"
	}
	if len(key) > 4 {
		return "****" + key[len(key)-4:]
	}
	return "****"
}
