package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/docufill/internal/agent"
	"github.com/docufill/internal/config"
	"github.com/docufill/internal/consistency"
	"github.com/docufill/internal/conversation"
	"github.com/docufill/internal/extraction"
	"github.com/docufill/internal/knowledge"
	"github.com/docufill/internal/llm"
	"github.com/docufill/internal/logging"
	"github.com/docufill/internal/pipeline"
	"github.com/docufill/internal/pricing"
	"github.com/docufill/internal/retry"
	"github.com/docufill/internal/skill"
	"github.com/docufill/internal/skill/catalog"
	"github.com/docufill/internal/store"
)

// app holds the wired services every command works with.
type app struct {
	cfg      *config.Config
	store    *store.Postgres
	executor *agent.Executor
	kg       *knowledge.Service
	pipeline *pipeline.Pipeline
	engine   *consistency.Engine
	machine  *conversation.Machine
}

// newApp loads configuration and wires the full service graph: store, LLM
// client, skill registry, executor, and the domain services on top.
func newApp(c *cli.Context) (*app, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logging.Setup(c.Bool("pretty"))

	st, err := store.Open(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := st.EnsureSchema(c.Context); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to prepare schema: %w", err)
	}

	client, err := llm.NewLangchainClient(c.Context, llm.Options{
		Provider:          llm.Provider(cfg.General.Provider),
		APIKey:            cfg.LLM.APIKey,
		BaseURL:           cfg.LLM.BaseURL,
		Model:             cfg.General.Model,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		Timeout:           cfg.LLM.Timeout,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to build LLM client: %w", err)
	}

	policy := retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxDelay:    cfg.Retry.MaxDelay,
		Multiplier:  cfg.Retry.Multiplier,
	}

	registry := skill.NewRegistry(skill.NewRunner(client, policy))
	catalog.RegisterAll(registry, catalog.Options{
		Model:       cfg.General.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	})

	rates := pricing.DefaultTable()
	if len(cfg.Pricing) > 0 {
		override := pricing.Table{}
		for model, rate := range cfg.Pricing {
			override[model] = pricing.Rate{
				PromptPer1K:     rate.PromptPer1K,
				CompletionPer1K: rate.CompletionPer1K,
			}
		}
		rates = rates.Merge(override)
	}

	executor := agent.NewExecutor(registry, st, rates)
	kg := knowledge.NewService(st, executor)

	return &app{
		cfg:      cfg,
		store:    st,
		executor: executor,
		kg:       kg,
		pipeline: pipeline.New(extraction.NewFileExtractor(), executor, st, kg),
		engine:   consistency.NewEngine(st, executor),
		machine:  conversation.NewMachine(st, kg),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// withApp wraps a command action with app setup and teardown.
func withApp(action func(ctx context.Context, c *cli.Context, a *app) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		a, err := newApp(c)
		if err != nil {
			return err
		}
		defer a.Close()
		return action(c.Context, c, a)
	}
}
