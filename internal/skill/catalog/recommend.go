package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/docufill/internal/llm"
	"github.com/docufill/internal/skill"
	"github.com/docufill/pkg/models"
)

// RecommendInput is the caller input for value recommendation.
type RecommendInput struct {
	FieldName  string           `json:"fieldName"`
	FieldType  models.FieldType `json:"fieldType"`
	Candidates []Candidate      `json:"candidates"`
}

// Candidate is one knowledge-graph candidate offered for reranking.
type Candidate struct {
	Value      string  `json:"value"`
	EntityType string  `json:"entityType"`
	Confidence float64 `json:"confidence"`
	UsageCount int     `json:"usageCount"`
}

// ValueSuggestion is one normalized recommended value.
type ValueSuggestion struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// NewSuggestionRecommender builds the reranking skill used by entity
// suggestions. Fallback: empty list, which leaves the usage-ranked
// candidates in place.
func NewSuggestionRecommender(opts Options) skill.Skill {
	config := skill.Config{
		Name:     SuggestionRecommender,
		Category: skill.CategoryRecommender,
		Model:    opts.Model,
		Instructions: "You rank candidate values for a document field by fit. " +
			"Respond with a JSON array only.",
		Temperature: temperature(opts, 0.3),
		MaxTokens:   opts.MaxTokens,
	}

	return skill.New(config, buildRecommendPrompt, parseValueSuggestions,
		func(RecommendInput) []ValueSuggestion { return []ValueSuggestion{} })
}

func buildRecommendPrompt(input RecommendInput) (string, error) {
	if strings.TrimSpace(input.FieldName) == "" {
		return "", errors.New("field name is required")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Rank the candidate values below for the field %q of type %q, best first.\n",
		input.FieldName, input.FieldType)
	b.WriteString("Return a JSON array of objects with keys: value, confidence (0-1), reasoning.\n\n")
	b.WriteString("CANDIDATES:\n")
	for _, c := range input.Candidates {
		fmt.Fprintf(&b, "- %s (type %s, confidence %.2f, used %d times)\n",
			c.Value, c.EntityType, c.Confidence, c.UsageCount)
	}
	return b.String(), nil
}

func parseValueSuggestions(raw string) ([]ValueSuggestion, error) {
	var items []struct {
		Value      string  `json:"value"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	}
	if _, err := llm.ProcessResponse(raw, &items); err != nil {
		return nil, err
	}

	suggestions := []ValueSuggestion{}
	for _, item := range items {
		if strings.TrimSpace(item.Value) == "" {
			continue
		}
		suggestions = append(suggestions, ValueSuggestion{
			Value:      item.Value,
			Confidence: skill.Clamp01(item.Confidence),
			Reasoning:  item.Reasoning,
		})
	}
	return suggestions, nil
}

// SearchInput is the caller input for search translation.
type SearchInput struct {
	Query string `json:"query"`
}

// SearchFilter is the normalized entity-search filter. MatchNone marks the
// fallback filter that matches no entities.
type SearchFilter struct {
	EntityType    string  `json:"entityType,omitempty"`
	ValueContains string  `json:"valueContains,omitempty"`
	MinConfidence float64 `json:"minConfidence,omitempty"`
	MatchNone     bool    `json:"matchNone,omitempty"`
}

// NewSearchTranslator builds the English-to-filter skill. Fallback: a
// match-nothing filter.
func NewSearchTranslator(opts Options) skill.Skill {
	config := skill.Config{
		Name:     SearchTranslator,
		Category: skill.CategoryRecommender,
		Model:    opts.Model,
		Instructions: "You translate a natural-language query over stored entities into a " +
			"structured filter. Respond with a single JSON object only.",
		Temperature: temperature(opts, 0.0),
		MaxTokens:   opts.MaxTokens,
	}

	return skill.New(config, buildSearchPrompt, parseSearchFilter,
		func(SearchInput) SearchFilter { return SearchFilter{MatchNone: true} })
}

func buildSearchPrompt(input SearchInput) (string, error) {
	if strings.TrimSpace(input.Query) == "" {
		return "", errors.New("query is required")
	}

	return fmt.Sprintf(
		"Translate this query over stored document entities into a filter: %q\n"+
			"Return a JSON object with optional keys: entityType (snake_case), "+
			"valueContains (substring), minConfidence (0-1). Omit keys the query does not constrain.",
		input.Query,
	), nil
}

func parseSearchFilter(raw string) (SearchFilter, error) {
	var resp struct {
		EntityType    string  `json:"entityType"`
		ValueContains string  `json:"valueContains"`
		MinConfidence float64 `json:"minConfidence"`
	}
	if _, err := llm.ProcessResponse(raw, &resp); err != nil {
		return SearchFilter{}, err
	}

	return SearchFilter{
		EntityType:    strings.TrimSpace(resp.EntityType),
		ValueContains: strings.TrimSpace(resp.ValueContains),
		MinConfidence: skill.Clamp01(resp.MinConfidence),
	}, nil
}
