// Package llm wraps the generative-text service behind a fixed request/response
// contract. Responses are plain text; callers parse them through the response
// processor, which treats the payload as untrusted.
package llm

import "context"

// Request describes one generative-service call.
type Request struct {
	Model        string  // Model identifier
	Instructions string  // System instruction text
	Input        string  // User text, built deterministically by the calling skill
	Temperature  float64 // Sampling temperature
	MaxTokens    int     // Output token budget
}

// Usage reports token consumption for one call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the raw service reply.
type Response struct {
	Text  string `json:"text"`
	Usage Usage  `json:"usage"`
}

// Client is the generative-service interface skills call through.
type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}
