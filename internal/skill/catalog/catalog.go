// Package catalog declares the concrete skills: their configuration, prompt
// builders, response schemas, normalization, and safe fallbacks.
package catalog

import (
	"github.com/docufill/internal/skill"
)

// Skill names, used for registry dispatch and agent registration.
const (
	PlaceholderExtractor  = "placeholder_extractor"
	EntityExtractor       = "entity_extractor"
	DocumentClassifier    = "document_classifier"
	FieldValidator        = "field_validator"
	ValueFormatter        = "value_formatter"
	ConflictDetector      = "conflict_detector"
	CrossDocumentAnalyzer = "cross_document_analyzer"
	RelationshipDetector  = "relationship_detector"
	HealthScorer          = "health_scorer"
	SuggestionRecommender = "suggestion_recommender"
	SearchTranslator      = "search_translator"
)

// Options configures the catalog as a whole.
type Options struct {
	Model       string  // Model identifier shared by every skill
	Temperature float64 // Sampling temperature override; zero keeps per-skill defaults
	MaxTokens   int     // Output token budget
}

// temperature resolves a skill's sampling temperature: the configured
// override when set, otherwise the skill's own default.
func temperature(opts Options, fallback float64) float64 {
	if opts.Temperature > 0 {
		return opts.Temperature
	}
	return fallback
}

// RegisterAll registers every skill in the catalog.
func RegisterAll(registry *skill.Registry, opts Options) {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4096
	}

	registry.Register(NewPlaceholderExtractor(opts))
	registry.Register(NewEntityExtractor(opts))
	registry.Register(NewDocumentClassifier(opts))
	registry.Register(NewFieldValidator(opts))
	registry.Register(NewValueFormatter(opts))
	registry.Register(NewConflictDetector(opts))
	registry.Register(NewCrossDocumentAnalyzer(opts))
	registry.Register(NewRelationshipDetector(opts))
	registry.Register(NewHealthScorer(opts))
	registry.Register(NewSuggestionRecommender(opts))
	registry.Register(NewSearchTranslator(opts))
}
