package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/docufill/internal/llm"
	"github.com/docufill/internal/skill"
	"github.com/docufill/pkg/models"
)

// ExtractInput is the caller input for placeholder extraction.
type ExtractInput struct {
	DocumentText string `json:"documentText"`
}

// ExtractedPlaceholder is one fillable field found in a document.
type ExtractedPlaceholder struct {
	FieldName         string           `json:"fieldName"`
	FieldType         models.FieldType `json:"fieldType"`
	OriginalText      string           `json:"originalText"`
	Position          int              `json:"position"`
	SuggestedQuestion string           `json:"suggestedQuestion"`
}

// NewPlaceholderExtractor builds the placeholder-extraction skill. Fallback:
// empty placeholder list.
func NewPlaceholderExtractor(opts Options) skill.Skill {
	config := skill.Config{
		Name:     PlaceholderExtractor,
		Category: skill.CategoryExtractor,
		Model:    opts.Model,
		Instructions: "You extract fillable fields from legal documents. " +
			"Respond with a JSON array only, no commentary.",
		Temperature: temperature(opts, 0.1),
		MaxTokens:   opts.MaxTokens,
	}

	return skill.New(config, buildExtractPrompt, parseExtractedPlaceholders,
		func(ExtractInput) []ExtractedPlaceholder { return []ExtractedPlaceholder{} })
}

func buildExtractPrompt(input ExtractInput) (string, error) {
	if strings.TrimSpace(input.DocumentText) == "" {
		return "", errors.New("document text is required")
	}

	var b strings.Builder
	b.WriteString("Find every fillable placeholder in the document below: bracket markers like [COMPANY_NAME], ")
	b.WriteString("underscore blanks, and obvious unfilled fields.\n")
	b.WriteString("Return a JSON array of objects with keys: fieldName (snake_case), ")
	b.WriteString("fieldType (text|date|currency|number|email|address), originalText (the exact marker), ")
	b.WriteString("position (1-indexed order of appearance), suggestedQuestion (how to ask the user for this value).\n\n")
	b.WriteString("DOCUMENT:\n")
	b.WriteString(input.DocumentText)
	return b.String(), nil
}

// parseExtractedPlaceholders validates the response array. Items missing a
// field name or original text are filtered out; field types are coerced;
// positions are reassigned sequentially after filtering so ordering stays
// stable and 1-indexed.
func parseExtractedPlaceholders(raw string) ([]ExtractedPlaceholder, error) {
	var items []struct {
		FieldName         string  `json:"fieldName"`
		FieldType         string  `json:"fieldType"`
		OriginalText      string  `json:"originalText"`
		Position          float64 `json:"position"`
		SuggestedQuestion string  `json:"suggestedQuestion"`
	}
	if _, err := llm.ProcessResponse(raw, &items); err != nil {
		return nil, err
	}

	var placeholders []ExtractedPlaceholder
	for _, item := range items {
		if strings.TrimSpace(item.FieldName) == "" || strings.TrimSpace(item.OriginalText) == "" {
			continue
		}
		placeholders = append(placeholders, ExtractedPlaceholder{
			FieldName:         strings.TrimSpace(item.FieldName),
			FieldType:         skill.CoerceFieldType(item.FieldType),
			OriginalText:      item.OriginalText,
			Position:          int(item.Position),
			SuggestedQuestion: item.SuggestedQuestion,
		})
	}

	sort.SliceStable(placeholders, func(i, j int) bool {
		return placeholders[i].Position < placeholders[j].Position
	})
	for i := range placeholders {
		placeholders[i].Position = i + 1
	}

	if placeholders == nil {
		placeholders = []ExtractedPlaceholder{}
	}
	return placeholders, nil
}

// EntityInput is the caller input for entity extraction.
type EntityInput struct {
	DocumentText string `json:"documentText"`
	DocumentType string `json:"documentType,omitempty"`
}

// ExtractedEntity is one (type, value) fact destined for the knowledge graph.
type ExtractedEntity struct {
	EntityType  string  `json:"entityType"`
	EntityValue string  `json:"entityValue"`
	Confidence  float64 `json:"confidence"`
}

// NewEntityExtractor builds the entity-extraction skill that populates the
// knowledge graph. Fallback: empty entity list.
func NewEntityExtractor(opts Options) skill.Skill {
	config := skill.Config{
		Name:     EntityExtractor,
		Category: skill.CategoryExtractor,
		Model:    opts.Model,
		Instructions: "You extract factual entities (companies, people, dates, amounts, " +
			"addresses, emails) from legal documents. Respond with a JSON array only.",
		Temperature: temperature(opts, 0.1),
		MaxTokens:   opts.MaxTokens,
	}

	return skill.New(config, buildEntityPrompt, parseExtractedEntities,
		func(EntityInput) []ExtractedEntity { return []ExtractedEntity{} })
}

func buildEntityPrompt(input EntityInput) (string, error) {
	if strings.TrimSpace(input.DocumentText) == "" {
		return "", errors.New("document text is required")
	}

	var b strings.Builder
	b.WriteString("Extract the concrete factual entities present in the document below.\n")
	b.WriteString("Return a JSON array of objects with keys: entityType (snake_case, e.g. company_name, ")
	b.WriteString("party_name, effective_date, payment_amount, address, email), entityValue (the exact value), ")
	b.WriteString("confidence (0 to 1).\n")
	if input.DocumentType != "" {
		fmt.Fprintf(&b, "The document was classified as: %s\n", input.DocumentType)
	}
	b.WriteString("\nDOCUMENT:\n")
	b.WriteString(input.DocumentText)
	return b.String(), nil
}

func parseExtractedEntities(raw string) ([]ExtractedEntity, error) {
	var items []struct {
		EntityType  string  `json:"entityType"`
		EntityValue string  `json:"entityValue"`
		Confidence  float64 `json:"confidence"`
	}
	if _, err := llm.ProcessResponse(raw, &items); err != nil {
		return nil, err
	}

	var entities []ExtractedEntity
	for _, item := range items {
		if strings.TrimSpace(item.EntityType) == "" || strings.TrimSpace(item.EntityValue) == "" {
			continue
		}
		entities = append(entities, ExtractedEntity{
			EntityType:  strings.TrimSpace(item.EntityType),
			EntityValue: strings.TrimSpace(item.EntityValue),
			Confidence:  skill.Clamp01(item.Confidence),
		})
	}

	if entities == nil {
		entities = []ExtractedEntity{}
	}
	return entities, nil
}
