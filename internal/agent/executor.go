// Package agent records every skill execution as a persisted task: agents
// are registered by skill name on first use, a task row is created before
// the call, and the terminal output, token counts, and cost are appended
// exactly once when the call finishes.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/docufill/internal/logging"
	"github.com/docufill/internal/pricing"
	"github.com/docufill/internal/skill"
	"github.com/docufill/internal/store"
	"github.com/docufill/pkg/models"
)

// Execution is one finished skill run: the normalized result plus the
// finalized task row as read back from the store.
type Execution struct {
	Result skill.Result
	Task   *models.Task
}

// Executor runs skills through the registry and books every run into the
// agent/task tables.
type Executor struct {
	registry *skill.Registry
	store    store.AgentStore
	rates    pricing.Table
	logger   zerolog.Logger
}

// NewExecutor builds an Executor. The rate table prices token usage per
// model; unknown models book at zero cost.
func NewExecutor(registry *skill.Registry, st store.AgentStore, rates pricing.Table) *Executor {
	return &Executor{
		registry: registry,
		store:    st,
		rates:    rates,
		logger:   logging.Component("agent"),
	}
}

// Execute runs the named skill with input and persists the run. Fallback
// outputs are valid results and complete the task; only input contract
// violations and persistence failures surface as errors, and a contract
// violation still finalizes the task as failed.
func (e *Executor) Execute(ctx context.Context, skillName string, input any) (*Execution, error) {
	s, err := e.registry.Get(skillName)
	if err != nil {
		return nil, err
	}
	config := s.Config()

	agent, err := e.store.GetOrCreateAgent(ctx, config.Name, string(config.Category), config.Model)
	if err != nil {
		return nil, fmt.Errorf("register agent %s: %w", config.Name, err)
	}

	inputJSON, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encode task input: %w", err)
	}

	task := &models.Task{
		ID:        uuid.NewString(),
		AgentID:   agent.ID,
		TaskType:  config.Name,
		Input:     string(inputJSON),
		Status:    models.TaskProcessing,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.store.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	result, err := e.registry.Dispatch(ctx, skillName, input)
	if err != nil {
		if failErr := e.store.FailTask(ctx, task.ID, err.Error(), store.TaskUsage{}); failErr != nil {
			e.logger.Error().Err(failErr).Str("task_id", task.ID).Msg("failed to finalize failed task")
		}
		return nil, err
	}

	usage := store.TaskUsage{
		PromptTokens:     result.Usage.PromptTokens,
		CompletionTokens: result.Usage.CompletionTokens,
		TotalTokens:      result.Usage.TotalTokens,
		CostUSD:          e.rates.Cost(config.Model, result.Usage.PromptTokens, result.Usage.CompletionTokens),
	}

	outputJSON, err := json.Marshal(result.Output)
	if err != nil {
		return nil, fmt.Errorf("encode task output: %w", err)
	}
	if err := e.store.CompleteTask(ctx, task.ID, string(outputJSON), usage); err != nil {
		return nil, fmt.Errorf("complete task: %w", err)
	}

	final, err := e.store.GetTask(ctx, task.ID)
	if err != nil {
		return nil, fmt.Errorf("read back task: %w", err)
	}

	e.logger.Debug().
		Str("skill", config.Name).
		Str("task_id", task.ID).
		Int("attempts", result.Attempts).
		Bool("fallback", result.UsedFallback).
		Int("total_tokens", usage.TotalTokens).
		Float64("cost_usd", usage.CostUSD).
		Msg("skill execution recorded")

	return &Execution{Result: result, Task: final}, nil
}
