package provider

import (
	"context"
	"encoding/base64"
	"errors"
)

// ErrTransport wraps any failure to obtain a completion from the endpoint.
// Timeouts surface as context.DeadlineExceeded from the call itself.
var ErrTransport = errors.New("model transport error")

type ImagePayload struct {
	// MIME defaults to image/jpeg when empty.
	MIME  string
	Bytes []byte
}

func (p ImagePayload) DataURI() string {
	if len(p.Bytes) == 0 {
		return ""
	}
	mime := p.MIME
	if mime == "" {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(p.Bytes)
}

type ChatPayload struct {
	System      string
	User        string
	Images      []ImagePayload
	Temperature float64
	MaxTokens   int
}

// ModelProvider is the single outward boundary of the pipeline core: one
// prompt in, raw text out, no guarantee about the shape of that text.
type ModelProvider interface {
	ID() string
	Enabled() bool
	SupportsVision() bool

	Call(ctx context.Context, payload ChatPayload) (string, error)
}
