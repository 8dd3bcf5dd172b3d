package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// OllamaClient drives a local ollama daemon through /api/generate.
type OllamaClient struct {
	BaseURL string
	Model   string

	HTTPClient *http.Client
}

func (c *OllamaClient) CallWithPayload(ctx context.Context, payload ChatPayload) (string, error) {
	url := strings.TrimRight(c.BaseURL, "/")
	if url == "" {
		url = "http://localhost:11434"
	}
	url += "/api/generate"

	body := map[string]any{
		"model":  c.Model,
		"prompt": payload.User,
		"system": payload.System,
		"stream": false,
		"options": map[string]any{
			"temperature": payload.Temperature,
		},
	}
	if payload.MaxTokens > 0 {
		body["options"].(map[string]any)["num_predict"] = payload.MaxTokens
	}
	if len(payload.Images) > 0 {
		images := make([]string, 0, len(payload.Images))
		for _, img := range payload.Images {
			if len(img.Bytes) == 0 {
				continue
			}
			images = append(images, base64.StdEncoding.EncodeToString(img.Bytes))
		}
		if len(images) > 0 {
			body["images"] = images
		}
	}
	b, _ := json.Marshal(body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")

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
		return "", fmt.Errorf("%w: status=%d", ErrTransport, resp.StatusCode)
	}
	var r struct {
		Response string `json:"response"`
		Error    string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if r.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrTransport, r.Error)
	}
	return r.Response, nil
}
