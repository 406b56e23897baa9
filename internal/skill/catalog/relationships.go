package catalog

import (
	"errors"
	"strings"

	"github.com/docufill/internal/llm"
	"github.com/docufill/internal/skill"
	"github.com/docufill/pkg/models"
)

// RelationshipInput is the caller input for relationship detection.
type RelationshipInput struct {
	Documents []DocumentSummary `json:"documents"`
}

// DocumentSummary is one document's identity plus the knowledge-graph
// entities extracted from it.
type DocumentSummary struct {
	DocumentID   string   `json:"documentId"`
	DocumentType string   `json:"documentType,omitempty"`
	Entities     []string `json:"entities"` // "type: value" strings
}

// RelationshipFinding is one normalized document-to-document relationship.
type RelationshipFinding struct {
	SourceDocumentID  string                  `json:"sourceDocumentId"`
	RelatedDocumentID string                  `json:"relatedDocumentId"`
	Type              models.RelationshipType `json:"relationshipType"`
	Strength          float64                 `json:"strength"`
	SharedEntities    []string                `json:"sharedEntities"`
	Description       string                  `json:"description"`
}

// PropagationSuggestion proposes carrying a value from one document into a
// related one. AutoApply is a hard rule enforced at parse time: true only
// when confidence exceeds 0.9 and the field is non-critical.
type PropagationSuggestion struct {
	DocumentID string  `json:"documentId"`
	FieldName  string  `json:"fieldName"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Critical   bool    `json:"critical"`
	AutoApply  bool    `json:"autoApply"`
}

// RelationshipAnalysis is the relationship skill's normalized output.
type RelationshipAnalysis struct {
	Relationships []RelationshipFinding   `json:"relationships"`
	Suggestions   []PropagationSuggestion `json:"suggestions"`
}

// NewRelationshipDetector builds the relationship skill. Fallback: empty
// relationship and suggestion lists.
func NewRelationshipDetector(opts Options) skill.Skill {
	config := skill.Config{
		Name:     RelationshipDetector,
		Category: skill.CategoryAnalyzer,
		Model:    opts.Model,
		Instructions: "You infer relationships between documents from their shared entities. " +
			"Respond with a single JSON object only.",
		Temperature: temperature(opts, 0.2),
		MaxTokens:   opts.MaxTokens,
	}

	return skill.New(config, buildRelationshipPrompt, parseRelationshipAnalysis,
		func(RelationshipInput) RelationshipAnalysis {
			return RelationshipAnalysis{
				Relationships: []RelationshipFinding{},
				Suggestions:   []PropagationSuggestion{},
			}
		})
}

func buildRelationshipPrompt(input RelationshipInput) (string, error) {
	if len(input.Documents) < 2 {
		return "", errors.New("at least two documents are required")
	}

	var b strings.Builder
	b.WriteString("Infer relationships between the documents below from their shared entities ")
	b.WriteString("(same parties, related transactions, dependencies).\n")
	b.WriteString("Return a JSON object with keys:\n")
	b.WriteString("relationships: array of {sourceDocumentId, relatedDocumentId, relationshipType ")
	b.WriteString("(same_party|related_transaction|dependent|complementary|conflicting), strength (0-1), ")
	b.WriteString("sharedEntities, description};\n")
	b.WriteString("suggestions: array of {documentId, fieldName, value, confidence (0-1), ")
	b.WriteString("critical (true when the field is legally significant)}.\n\n")
	for _, doc := range input.Documents {
		b.WriteString("DOCUMENT " + doc.DocumentID)
		if doc.DocumentType != "" {
			b.WriteString(" (" + doc.DocumentType + ")")
		}
		b.WriteString(":\n")
		for _, entity := range doc.Entities {
			b.WriteString("- " + entity + "\n")
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

// parseRelationshipAnalysis validates the relationship shape. Relationships
// missing either document id are filtered out; types are coerced; strengths
// and confidences are clamped; autoApply is derived, never trusted.
func parseRelationshipAnalysis(raw string) (RelationshipAnalysis, error) {
	var resp struct {
		Relationships []struct {
			SourceDocumentID  string   `json:"sourceDocumentId"`
			RelatedDocumentID string   `json:"relatedDocumentId"`
			RelationshipType  string   `json:"relationshipType"`
			Strength          float64  `json:"strength"`
			SharedEntities    []string `json:"sharedEntities"`
			Description       string   `json:"description"`
		} `json:"relationships"`
		Suggestions []struct {
			DocumentID string  `json:"documentId"`
			FieldName  string  `json:"fieldName"`
			Value      string  `json:"value"`
			Confidence float64 `json:"confidence"`
			Critical   bool    `json:"critical"`
		} `json:"suggestions"`
	}
	if _, err := llm.ProcessResponse(raw, &resp); err != nil {
		return RelationshipAnalysis{}, err
	}

	relationships := []RelationshipFinding{}
	for _, r := range resp.Relationships {
		if r.SourceDocumentID == "" || r.RelatedDocumentID == "" {
			continue
		}
		relationships = append(relationships, RelationshipFinding{
			SourceDocumentID:  r.SourceDocumentID,
			RelatedDocumentID: r.RelatedDocumentID,
			Type:              skill.CoerceRelationshipType(r.RelationshipType),
			Strength:          skill.Clamp01(r.Strength),
			SharedEntities:    r.SharedEntities,
			Description:       r.Description,
		})
	}

	suggestions := []PropagationSuggestion{}
	for _, s := range resp.Suggestions {
		if s.DocumentID == "" || s.FieldName == "" {
			continue
		}
		confidence := skill.Clamp01(s.Confidence)
		suggestions = append(suggestions, PropagationSuggestion{
			DocumentID: s.DocumentID,
			FieldName:  s.FieldName,
			Value:      s.Value,
			Confidence: confidence,
			Critical:   s.Critical,
			AutoApply:  confidence > 0.9 && !s.Critical,
		})
	}

	return RelationshipAnalysis{Relationships: relationships, Suggestions: suggestions}, nil
}
