package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"
)

// Provider identifies a generative-service vendor.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderGoogleAI  Provider = "googleai"
	ProviderAnthropic Provider = "anthropic"
	ProviderOllama    Provider = "ollama"
)

// Options configures a LangchainClient.
type Options struct {
	Provider          Provider
	APIKey            string
	BaseURL           string        // For Ollama-style self-hosted endpoints
	Model             string        // Default model when a request leaves Model empty
	RequestsPerSecond float64       // 0 disables client-side rate limiting
	Timeout           time.Duration // Per-request deadline; 0 disables it
}

// LangchainClient implements Client on top of langchaingo model abstractions.
type LangchainClient struct {
	model   llms.Model
	options Options
	limiter *rate.Limiter
}

// NewLangchainClient builds a client for the configured provider.
func NewLangchainClient(ctx context.Context, options Options) (*LangchainClient, error) {
	var model llms.Model
	var err error

	log.Debug().
		Str("provider", string(options.Provider)).
		Str("model", options.Model).
		Msg("creating llm client")

	switch options.Provider {
	case ProviderOpenAI:
		opts := []openai.Option{openai.WithToken(options.APIKey)}
		if options.Model != "" {
			opts = append(opts, openai.WithModel(options.Model))
		}
		if options.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(options.BaseURL))
		}
		model, err = openai.New(opts...)
	case ProviderGoogleAI:
		opts := []googleai.Option{googleai.WithAPIKey(options.APIKey)}
		if options.Model != "" {
			opts = append(opts, googleai.WithDefaultModel(options.Model))
		}
		model, err = googleai.New(ctx, opts...)
	case ProviderAnthropic:
		opts := []anthropic.Option{anthropic.WithToken(options.APIKey)}
		if options.Model != "" {
			opts = append(opts, anthropic.WithModel(options.Model))
		}
		model, err = anthropic.New(opts...)
	case ProviderOllama:
		serverURL := options.BaseURL
		if serverURL == "" {
			serverURL = "http://localhost:11434"
		}
		model, err = ollama.New(ollama.WithServerURL(serverURL), ollama.WithModel(options.Model))
	default:
		return nil, fmt.Errorf("unsupported provider: %s", options.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create model for provider %s: %w", options.Provider, err)
	}

	var limiter *rate.Limiter
	if options.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(options.RequestsPerSecond), 1)
	}

	return &LangchainClient{
		model:   model,
		options: options,
		limiter: limiter,
	}, nil
}

// Generate performs one blocking generative-service call. A configured
// Timeout bounds the call; the rate limiter waits outside that window so a
// queued request does not eat into its own deadline.
func (c *LangchainClient) Generate(ctx context.Context, req Request) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	if c.options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.options.Timeout)
		defer cancel()
	}

	messages := []llms.MessageContent{}
	if req.Instructions != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.Instructions))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, req.Input))

	callOptions := []llms.CallOption{
		llms.WithTemperature(req.Temperature),
	}
	if req.MaxTokens > 0 {
		callOptions = append(callOptions, llms.WithMaxTokens(req.MaxTokens))
	}
	if req.Model != "" {
		callOptions = append(callOptions, llms.WithModel(req.Model))
	}

	resp, err := c.model.GenerateContent(ctx, messages, callOptions...)
	if err != nil {
		return nil, fmt.Errorf("llm call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("llm returned no choices")
	}

	choice := resp.Choices[0]
	usage := usageFromGenerationInfo(choice.GenerationInfo, req.Input, choice.Content)

	log.Debug().
		Str("model", req.Model).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Msg("llm call completed")

	return &Response{Text: choice.Content, Usage: usage}, nil
}

// usageFromGenerationInfo pulls token counts out of the provider-specific
// GenerationInfo map. Key names differ per vendor; a rough len/4 estimate
// covers providers that report nothing.
func usageFromGenerationInfo(info map[string]any, input, output string) Usage {
	usage := Usage{
		PromptTokens:     intFromInfo(info, "PromptTokens", "input_tokens", "prompt_tokens"),
		CompletionTokens: intFromInfo(info, "CompletionTokens", "output_tokens", "completion_tokens"),
		TotalTokens:      intFromInfo(info, "TotalTokens", "total_tokens"),
	}

	if usage.PromptTokens == 0 && usage.CompletionTokens == 0 {
		usage.PromptTokens = len(input) / 4
		usage.CompletionTokens = len(output) / 4
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}

	return usage
}

func intFromInfo(info map[string]any, keys ...string) int {
	for _, key := range keys {
		switch v := info[key].(type) {
		case int:
			return v
		case int32:
			return int(v)
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}
