package skill

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/docufill/internal/llm"
	"github.com/docufill/internal/logging"
	"github.com/docufill/internal/retry"
)

// Runner executes skills against the generative service with a shared retry
// policy. The policy wraps only the external call; parsing never retries.
type Runner struct {
	client llm.Client
	policy retry.Policy
	logger zerolog.Logger
}

// NewRunner builds a Runner around a client and retry policy.
func NewRunner(client llm.Client, policy retry.Policy) *Runner {
	return &Runner{
		client: client,
		policy: policy,
		logger: logging.Component("skill"),
	}
}

// Execute runs one skill invocation end to end: prompt build, retried
// service call, parse/normalize. Transport failures after retries and parse
// failures both resolve to the skill's documented fallback output; the only
// error Execute returns is an input contract violation from BuildPrompt.
func (r *Runner) Execute(ctx context.Context, s Skill, input any) (Result, error) {
	config := s.Config()

	prompt, err := s.BuildPrompt(input)
	if err != nil {
		return Result{}, fmt.Errorf("skill %s: %w", config.Name, err)
	}

	var resp *llm.Response
	retryResult := retry.Do(ctx, r.policy, r.logger, func() error {
		var callErr error
		resp, callErr = r.client.Generate(ctx, llm.Request{
			Model:        config.Model,
			Instructions: config.Instructions,
			Input:        prompt,
			Temperature:  config.Temperature,
			MaxTokens:    config.MaxTokens,
		})
		return callErr
	})

	result := Result{Attempts: retryResult.Attempts}

	if !retryResult.Success {
		r.logger.Warn().
			Str("skill", config.Name).
			Int("attempts", retryResult.Attempts).
			Err(retryResult.LastError).
			Msg("service call exhausted retries, using fallback")

		result.Output = s.Fallback(input)
		result.UsedFallback = true
		result.FallbackReason = fmt.Sprintf("service call failed: %v", retryResult.LastError)
		return result, nil
	}

	result.Usage = resp.Usage

	output, err := s.Parse(resp.Text)
	if err != nil {
		r.logger.Warn().
			Str("skill", config.Name).
			Err(err).
			Msg("response parse failed, using fallback")

		result.Output = s.Fallback(input)
		result.UsedFallback = true
		result.FallbackReason = fmt.Sprintf("parse failed: %v", err)
		return result, nil
	}

	result.Output = output
	return result, nil
}
