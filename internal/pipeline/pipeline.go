// Package pipeline orchestrates document analysis: extract text, classify,
// find placeholders, harvest entities into the knowledge graph, and attach
// value suggestions. Skill fallbacks degrade individual steps without
// aborting the document.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/docufill/internal/agent"
	"github.com/docufill/internal/extraction"
	"github.com/docufill/internal/knowledge"
	"github.com/docufill/internal/logging"
	"github.com/docufill/internal/skill/catalog"
	"github.com/docufill/internal/store"
	"github.com/docufill/pkg/models"
)

// Dispatcher executes a named skill and records the run.
type Dispatcher interface {
	Execute(ctx context.Context, skillName string, input any) (*agent.Execution, error)
}

// Analysis summarizes one processed document.
type Analysis struct {
	Document     *models.Document      `json:"document"`
	Placeholders []*models.Placeholder `json:"placeholders"`
	EntityCount  int                   `json:"entity_count"`
}

// Pipeline wires the extractor, the skills, and the stores together.
type Pipeline struct {
	extractor  extraction.TextExtractor
	dispatcher Dispatcher
	store      store.Store
	knowledge  *knowledge.Service
	logger     zerolog.Logger
}

// New builds a Pipeline.
func New(extractor extraction.TextExtractor, dispatcher Dispatcher, st store.Store, kg *knowledge.Service) *Pipeline {
	return &Pipeline{
		extractor:  extractor,
		dispatcher: dispatcher,
		store:      st,
		knowledge:  kg,
		logger:     logging.Component("pipeline"),
	}
}

// Analyze processes one document file end to end and returns the persisted
// document with its placeholders. Extraction failures abort; classification
// and extraction skills degrade to their fallbacks.
func (p *Pipeline) Analyze(ctx context.Context, path, userID string) (*Analysis, error) {
	text, err := p.extractor.ExtractText(path)
	if err != nil {
		return nil, err
	}

	doc := &models.Document{
		ID:        uuid.NewString(),
		UserID:    userID,
		FileName:  filepath.Base(path),
		Status:    models.DocumentAnalyzing,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := p.store.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	classification := p.classify(ctx, text)
	if classification.DocumentType != "" {
		doc.DocumentType = &classification.DocumentType
		doc.ClassificationConfidence = &classification.Confidence
	}

	placeholders, err := p.extractPlaceholders(ctx, doc.ID, text)
	if err != nil {
		return nil, err
	}
	if len(placeholders) > 0 {
		if err := p.store.CreatePlaceholders(ctx, placeholders); err != nil {
			return nil, fmt.Errorf("persist placeholders: %w", err)
		}
	}

	entityCount := p.harvestEntities(ctx, doc, text)
	p.suggestValues(ctx, placeholders)

	doc.Status = models.DocumentReady
	doc.UpdatedAt = time.Now().UTC()
	if err := p.store.UpdateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("finalize document: %w", err)
	}

	p.logger.Info().
		Str("document_id", doc.ID).
		Str("file", doc.FileName).
		Int("placeholders", len(placeholders)).
		Int("entities", entityCount).
		Msg("document analyzed")

	return &Analysis{Document: doc, Placeholders: placeholders, EntityCount: entityCount}, nil
}

// ValidateDocument checks every filled placeholder with the validator skill
// and canonicalizes valid values with the formatter. Flagged placeholders
// keep their raw value.
func (p *Pipeline) ValidateDocument(ctx context.Context, documentID string) ([]*models.Placeholder, error) {
	if _, err := p.store.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	placeholders, err := p.store.ListPlaceholders(ctx, documentID)
	if err != nil {
		return nil, err
	}

	flagged := []*models.Placeholder{}
	for _, ph := range placeholders {
		if !ph.Filled() {
			continue
		}

		result, err := p.validate(ctx, ph)
		if err != nil {
			return nil, err
		}

		if !result.Valid {
			ph.ValidationStatus = models.ValidationFlagged
			flagged = append(flagged, ph)
		} else {
			ph.ValidationStatus = models.ValidationValidated
			if formatted := p.format(ctx, ph); formatted != "" && formatted != *ph.FilledValue {
				ph.FilledValue = &formatted
			}
		}

		ph.UpdatedAt = time.Now().UTC()
		if err := p.store.UpdatePlaceholder(ctx, ph); err != nil {
			return nil, fmt.Errorf("update placeholder %s: %w", ph.ID, err)
		}
	}
	return flagged, nil
}

func (p *Pipeline) classify(ctx context.Context, text string) catalog.Classification {
	exec, err := p.dispatcher.Execute(ctx, catalog.DocumentClassifier, catalog.ClassifyInput{DocumentText: text})
	if err != nil {
		p.logger.Warn().Err(err).Msg("classification unavailable")
		return catalog.Classification{}
	}
	classification, ok := exec.Result.Output.(catalog.Classification)
	if !ok {
		return catalog.Classification{}
	}
	return classification
}

func (p *Pipeline) extractPlaceholders(ctx context.Context, documentID, text string) ([]*models.Placeholder, error) {
	exec, err := p.dispatcher.Execute(ctx, catalog.PlaceholderExtractor, catalog.ExtractInput{DocumentText: text})
	if err != nil {
		return nil, fmt.Errorf("extract placeholders: %w", err)
	}
	extracted, ok := exec.Result.Output.([]catalog.ExtractedPlaceholder)
	if !ok {
		return nil, errors.New("unexpected placeholder extraction output")
	}

	placeholders := make([]*models.Placeholder, 0, len(extracted))
	now := time.Now().UTC()
	for _, e := range extracted {
		placeholders = append(placeholders, &models.Placeholder{
			ID:               uuid.NewString(),
			DocumentID:       documentID,
			FieldName:        e.FieldName,
			FieldType:        e.FieldType,
			OriginalText:     e.OriginalText,
			Position:         e.Position,
			ValidationStatus: models.ValidationPending,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
	}
	return placeholders, nil
}

func (p *Pipeline) harvestEntities(ctx context.Context, doc *models.Document, text string) int {
	docType := ""
	if doc.DocumentType != nil {
		docType = *doc.DocumentType
	}

	exec, err := p.dispatcher.Execute(ctx, catalog.EntityExtractor, catalog.EntityInput{
		DocumentText: text,
		DocumentType: docType,
	})
	if err != nil {
		p.logger.Warn().Err(err).Str("document_id", doc.ID).Msg("entity extraction unavailable")
		return 0
	}
	extracted, ok := exec.Result.Output.([]catalog.ExtractedEntity)
	if !ok || len(extracted) == 0 {
		return 0
	}

	stored, err := p.knowledge.Ingest(ctx, doc.ID, doc.DocumentType, extracted)
	if err != nil {
		p.logger.Warn().Err(err).Str("document_id", doc.ID).Msg("entity ingest failed")
		return 0
	}
	return len(stored)
}

// suggestValues attaches the top knowledge-graph suggestion to each
// placeholder. Best effort per field.
func (p *Pipeline) suggestValues(ctx context.Context, placeholders []*models.Placeholder) {
	source := "knowledge_graph"
	for _, ph := range placeholders {
		suggestions, err := p.knowledge.Suggestions(ctx, ph)
		if err != nil || len(suggestions) == 0 {
			continue
		}

		top := suggestions[0]
		ph.SuggestedValue = &top.Value
		ph.SuggestionSource = &source
		ph.SuggestionConfidence = &top.Confidence
		if err := p.store.UpdatePlaceholder(ctx, ph); err != nil {
			p.logger.Warn().Err(err).Str("field", ph.FieldName).Msg("suggestion not persisted")
		}
	}
}

func (p *Pipeline) validate(ctx context.Context, ph *models.Placeholder) (catalog.ValidationResult, error) {
	exec, err := p.dispatcher.Execute(ctx, catalog.FieldValidator, catalog.ValidateInput{
		FieldName: ph.FieldName,
		FieldType: ph.FieldType,
		Value:     *ph.FilledValue,
	})
	if err != nil {
		return catalog.ValidationResult{}, fmt.Errorf("validate %s: %w", ph.FieldName, err)
	}
	result, ok := exec.Result.Output.(catalog.ValidationResult)
	if !ok {
		return catalog.ValidationResult{}, errors.New("unexpected validation output")
	}
	return result, nil
}

// format canonicalizes a valid value. Returns empty when formatting is
// unavailable or unchanged.
func (p *Pipeline) format(ctx context.Context, ph *models.Placeholder) string {
	exec, err := p.dispatcher.Execute(ctx, catalog.ValueFormatter, catalog.FormatInput{
		FieldType: ph.FieldType,
		Value:     *ph.FilledValue,
	})
	if err != nil {
		p.logger.Warn().Err(err).Str("field", ph.FieldName).Msg("formatting unavailable")
		return ""
	}
	result, ok := exec.Result.Output.(catalog.FormatResult)
	if !ok || !result.Changed {
		return ""
	}
	return result.FormattedValue
}
