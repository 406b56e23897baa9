// Package knowledge maintains the deduplicated entity graph built from the
// user's documents and answers: at most one row per (type, value) pair, with
// confidence and usage bookkeeping handled by the store's atomic upsert.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/docufill/internal/agent"
	"github.com/docufill/internal/logging"
	"github.com/docufill/internal/skill"
	"github.com/docufill/internal/skill/catalog"
	"github.com/docufill/internal/store"
	"github.com/docufill/pkg/models"
)

// maxSuggestions caps the suggestion list per field.
const maxSuggestions = 5

// Dispatcher executes a named skill and records the run. agent.Executor is
// the production implementation.
type Dispatcher interface {
	Execute(ctx context.Context, skillName string, input any) (*agent.Execution, error)
}

// Suggestion is one proposed value for a placeholder.
type Suggestion struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// Service wraps the entity store with graph-level operations. The dispatcher
// is optional; without it, searches and suggestions skip their generative
// steps and fall back to deterministic store queries.
type Service struct {
	entities   store.EntityStore
	dispatcher Dispatcher
	logger     zerolog.Logger
}

// NewService builds a Service. dispatcher may be nil.
func NewService(entities store.EntityStore, dispatcher Dispatcher) *Service {
	return &Service{
		entities:   entities,
		dispatcher: dispatcher,
		logger:     logging.Component("knowledge"),
	}
}

// Add upserts one entity. Type and value are required; confidence is clamped
// to [0, 1]. Re-adding an existing (type, value) pair merges by max
// confidence and bumps the usage count.
func (s *Service) Add(ctx context.Context, entity *models.KnowledgeEntity) (*models.KnowledgeEntity, error) {
	entity.EntityType = strings.TrimSpace(entity.EntityType)
	entity.EntityValue = strings.TrimSpace(entity.EntityValue)
	if entity.EntityType == "" || entity.EntityValue == "" {
		return nil, errors.New("entity type and value are required")
	}
	entity.Confidence = skill.Clamp01(entity.Confidence)

	return s.entities.UpsertEntity(ctx, entity)
}

// Ingest upserts the entities extracted from one document, tagging each with
// its source. Entities that fail to persist are skipped, not fatal; the
// survivors are returned.
func (s *Service) Ingest(ctx context.Context, documentID string, documentType *string, extracted []catalog.ExtractedEntity) ([]*models.KnowledgeEntity, error) {
	if documentID == "" {
		return nil, errors.New("document id is required")
	}

	stored := make([]*models.KnowledgeEntity, 0, len(extracted))
	for _, e := range extracted {
		entity, err := s.Add(ctx, &models.KnowledgeEntity{
			EntityType:    e.EntityType,
			EntityValue:   e.EntityValue,
			SourceDocID:   &documentID,
			SourceDocType: documentType,
			Confidence:    e.Confidence,
		})
		if err != nil {
			s.logger.Warn().Err(err).
				Str("document_id", documentID).
				Str("entity_type", e.EntityType).
				Msg("entity skipped during ingest")
			continue
		}
		stored = append(stored, entity)
	}

	s.logger.Debug().
		Str("document_id", documentID).
		Int("extracted", len(extracted)).
		Int("stored", len(stored)).
		Msg("document entities ingested")
	return stored, nil
}

// RecordUsage marks a value as actually used in a filled document. Known
// entities keep their confidence and only gain a usage tick; a value typed by
// the user that was never extracted enters the graph at confidence 1.0.
func (s *Service) RecordUsage(ctx context.Context, entityType, entityValue string) error {
	entityType = strings.TrimSpace(entityType)
	entityValue = strings.TrimSpace(entityValue)
	if entityType == "" || entityValue == "" {
		return errors.New("entity type and value are required")
	}

	_, err := s.entities.IncrementUsage(ctx, entityType, entityValue)
	if errors.Is(err, store.ErrNotFound) {
		_, err = s.Add(ctx, &models.KnowledgeEntity{
			EntityType:  entityType,
			EntityValue: entityValue,
			Confidence:  1.0,
		})
	}
	return err
}

// Search runs a natural-language query over stored entities. The query is
// translated into a structured filter by the search skill; when the
// translation falls back it matches nothing rather than everything.
func (s *Service) Search(ctx context.Context, query string, limit, offset int) ([]*models.KnowledgeEntity, int, error) {
	if strings.TrimSpace(query) == "" {
		return nil, 0, errors.New("query is required")
	}
	if s.dispatcher == nil {
		// Without the generative layer the raw query is a value substring.
		return s.entities.SearchEntities(ctx, store.EntitySearch{Term: query, Limit: limit, Offset: offset})
	}

	exec, err := s.dispatcher.Execute(ctx, catalog.SearchTranslator, catalog.SearchInput{Query: query})
	if err != nil {
		return nil, 0, fmt.Errorf("translate search query: %w", err)
	}
	filter, ok := exec.Result.Output.(catalog.SearchFilter)
	if !ok {
		return nil, 0, fmt.Errorf("unexpected search translation output %T", exec.Result.Output)
	}
	if filter.MatchNone {
		return []*models.KnowledgeEntity{}, 0, nil
	}

	// The confidence floor rides along in the store query so the page and the
	// total count agree.
	return s.entities.SearchEntities(ctx, store.EntitySearch{
		EntityType:    filter.EntityType,
		Term:          filter.ValueContains,
		MinConfidence: filter.MinConfidence,
		Limit:         limit,
		Offset:        offset,
	})
}

// Suggestions proposes values for an unfilled placeholder: up to five graph
// candidates matched on the field name and type, optionally reranked by the
// recommender skill. Values are deduplicated and ordered by confidence
// descending; a reranker failure leaves the usage-ranked candidates intact.
func (s *Service) Suggestions(ctx context.Context, p *models.Placeholder) ([]Suggestion, error) {
	if p == nil {
		return nil, errors.New("placeholder is required")
	}

	candidates, err := s.entities.CandidatesForField(ctx, p.FieldName, string(p.FieldType), maxSuggestions)
	if err != nil {
		return nil, fmt.Errorf("load candidates for %s: %w", p.FieldName, err)
	}
	if len(candidates) == 0 {
		return []Suggestion{}, nil
	}

	suggestions := s.rerank(ctx, p, candidates)
	if suggestions == nil {
		suggestions = make([]Suggestion, 0, len(candidates))
		for _, c := range candidates {
			suggestions = append(suggestions, Suggestion{
				Value:      c.EntityValue,
				Confidence: c.Confidence,
				Source:     "knowledge_graph",
			})
		}
	}

	return normalizeSuggestions(suggestions), nil
}

// rerank asks the recommender skill to reorder candidates. Returns nil when
// no reranking happened, leaving the caller on the store ordering.
func (s *Service) rerank(ctx context.Context, p *models.Placeholder, candidates []*models.KnowledgeEntity) []Suggestion {
	if s.dispatcher == nil {
		return nil
	}

	input := catalog.RecommendInput{
		FieldName:  p.FieldName,
		FieldType:  p.FieldType,
		Candidates: make([]catalog.Candidate, 0, len(candidates)),
	}
	for _, c := range candidates {
		input.Candidates = append(input.Candidates, catalog.Candidate{
			Value:      c.EntityValue,
			EntityType: c.EntityType,
			Confidence: c.Confidence,
			UsageCount: c.UsageCount,
		})
	}

	exec, err := s.dispatcher.Execute(ctx, catalog.SuggestionRecommender, input)
	if err != nil {
		s.logger.Warn().Err(err).Str("field", p.FieldName).Msg("suggestion rerank failed")
		return nil
	}
	ranked, ok := exec.Result.Output.([]catalog.ValueSuggestion)
	if !ok || len(ranked) == 0 {
		return nil
	}

	// Only known candidate values survive reranking; the model cannot invent
	// new ones here.
	known := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		known[c.EntityValue] = true
	}

	suggestions := make([]Suggestion, 0, len(ranked))
	for _, r := range ranked {
		if !known[r.Value] {
			continue
		}
		suggestions = append(suggestions, Suggestion{
			Value:      r.Value,
			Confidence: r.Confidence,
			Source:     "knowledge_graph",
			Reasoning:  r.Reasoning,
		})
	}
	if len(suggestions) == 0 {
		return nil
	}
	return suggestions
}

// normalizeSuggestions deduplicates by value keeping the highest confidence,
// sorts by confidence descending, and caps the list.
func normalizeSuggestions(suggestions []Suggestion) []Suggestion {
	best := make(map[string]Suggestion, len(suggestions))
	for _, s := range suggestions {
		if existing, ok := best[s.Value]; !ok || s.Confidence > existing.Confidence {
			best[s.Value] = s
		}
	}

	out := make([]Suggestion, 0, len(best))
	for _, s := range best {
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Value < out[j].Value
	})

	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}
