// Package skill defines the uniform contract around one generative-service
// call: fixed configuration, a deterministic prompt builder, a strict parser,
// and a documented safe-fallback output. A single generic runner executes
// every skill; there is no per-skill class hierarchy.
package skill

import (
	"fmt"

	"github.com/docufill/internal/llm"
)

// Category groups skills by what they do with the model output.
type Category string

const (
	CategoryExtractor   Category = "extractor"
	CategoryValidator   Category = "validator"
	CategoryAnalyzer    Category = "analyzer"
	CategoryRecommender Category = "recommender"
)

// Config is the fixed configuration of one skill.
type Config struct {
	Name         string   `json:"name"`
	Category     Category `json:"category"`
	Model        string   `json:"model"`
	Instructions string   `json:"instructions"`
	Temperature  float64  `json:"temperature"`
	MaxTokens    int      `json:"max_tokens"`
}

// Skill is one configured wrapper around a single generative-service call.
// BuildPrompt rejects invalid caller input (raised, never defaulted); Parse
// treats the raw response as untrusted and returns a normalized value; and
// Fallback returns the documented safe output used when the call or the
// parse fails.
type Skill interface {
	Config() Config
	BuildPrompt(input any) (string, error)
	Parse(raw string) (any, error)
	Fallback(input any) any
}

// typedSkill adapts strongly-typed prompt/parse/fallback functions to the
// Skill interface.
type typedSkill[I any, O any] struct {
	config   Config
	prompt   func(I) (string, error)
	parse    func(string) (O, error)
	fallback func(I) O
}

// New builds a Skill from typed components.
func New[I any, O any](
	config Config,
	prompt func(I) (string, error),
	parse func(string) (O, error),
	fallback func(I) O,
) Skill {
	return &typedSkill[I, O]{
		config:   config,
		prompt:   prompt,
		parse:    parse,
		fallback: fallback,
	}
}

func (s *typedSkill[I, O]) Config() Config {
	return s.config
}

func (s *typedSkill[I, O]) BuildPrompt(input any) (string, error) {
	typed, ok := input.(I)
	if !ok {
		return "", fmt.Errorf("skill %s: invalid input type %T", s.config.Name, input)
	}
	return s.prompt(typed)
}

func (s *typedSkill[I, O]) Parse(raw string) (any, error) {
	return s.parse(raw)
}

func (s *typedSkill[I, O]) Fallback(input any) any {
	var typed I
	if cast, ok := input.(I); ok {
		typed = cast
	}
	return s.fallback(typed)
}

// Result describes one skill execution.
type Result struct {
	Output         any       `json:"output"`
	Usage          llm.Usage `json:"usage"`
	Attempts       int       `json:"attempts"`
	UsedFallback   bool      `json:"used_fallback"`
	FallbackReason string    `json:"fallback_reason,omitempty"`
}
