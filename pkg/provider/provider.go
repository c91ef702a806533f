// Package provider defines the inference client interface and the Bedrock
// (Anthropic Messages) payload and result types.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
)

const (
	// AnthropicVersion is the protocol tag Bedrock requires on Claude payloads.
	AnthropicVersion = "bedrock-2023-05-31"

	// DefaultModelID is the Claude 3 Haiku model served by Bedrock.
	DefaultModelID = "anthropic.claude-3-haiku-20240307-v1:0"

	// DefaultRegion is the region the function calls Bedrock in.
	DefaultRegion = "us-east-1"

	// ContentTypeJSON is used for both the request body and the accept header.
	ContentTypeJSON = "application/json"
)

// ErrNoContent is returned when the model reply has an empty content list.
var ErrNoContent = errors.New("model response contained no content")

// Message is one entry of the payload's messages list.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Payload is the request body sent to the model. It is built fresh per call.
// MaxTokens is forwarded exactly as the caller wrote it.
type Payload struct {
	AnthropicVersion string      `json:"anthropic_version"`
	MaxTokens        json.Number `json:"max_tokens"`
	Temperature      float64     `json:"temperature"`
	Messages         []Message   `json:"messages"`
}

// NewPayload builds a single-turn user payload.
func NewPayload(prompt string, maxTokens json.Number, temperature float64) Payload {
	return Payload{
		AnthropicVersion: AnthropicVersion,
		MaxTokens:        maxTokens,
		Temperature:      temperature,
		Messages:         []Message{{Role: "user", Content: prompt}},
	}
}

// ContentBlock is one element of the reply's content list.
type ContentBlock struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text"`
}

// Result is the decoded model reply.
type Result struct {
	ID         string          `json:"id,omitempty"`
	Model      string          `json:"model,omitempty"`
	StopReason string          `json:"stop_reason,omitempty"`
	Content    []ContentBlock  `json:"content"`
	Usage      json.RawMessage `json:"usage,omitempty"`
}

// Text returns the text of the first content element.
func (r Result) Text() (string, error) {
	if len(r.Content) == 0 {
		return "", ErrNoContent
	}
	return r.Content[0].Text, nil
}

// InputTokens and OutputTokens read the usage counters. A usage value that is
// not an object counts as zero.
func (r Result) InputTokens() float64  { return usageCount(r.Usage, "input_tokens") }
func (r Result) OutputTokens() float64 { return usageCount(r.Usage, "output_tokens") }

func usageCount(raw json.RawMessage, key string) float64 {
	if len(raw) == 0 {
		return 0
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var usage map[string]any
	if err := dec.Decode(&usage); err != nil {
		return 0
	}
	n, ok := usage[key].(json.Number)
	if !ok {
		return 0
	}
	f, _ := n.Float64()
	return f
}

// Invoker is the capability the handler needs from the remote service.
//
// Implementations return a *ServiceError when the service itself reports a
// failure; any other error is treated as unexpected.
type Invoker interface {
	// ModelID returns the fixed model identifier the invoker targets.
	ModelID() string

	// Invoke sends the payload and decodes the reply. It blocks until the
	// transport returns.
	Invoke(ctx context.Context, payload Payload) (Result, error)
}
