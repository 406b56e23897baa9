package catalog

import (
	"errors"
	"strings"

	"github.com/docufill/internal/llm"
	"github.com/docufill/internal/skill"
	"github.com/docufill/pkg/models"
)

// FieldValue is one filled field passed to conflict analysis.
type FieldValue struct {
	FieldName string `json:"fieldName"`
	Value     string `json:"value"`
}

// ConflictInput is the caller input for single-document conflict detection.
type ConflictInput struct {
	DocumentID string       `json:"documentId"`
	Fields     []FieldValue `json:"fields"`
}

// DetectedConflict is one normalized inconsistency.
type DetectedConflict struct {
	Type        models.ConflictType `json:"type"`
	Severity    models.Severity     `json:"severity"`
	Fields      []string            `json:"fields"`
	Values      []string            `json:"values,omitempty"`
	Description string              `json:"description"`
	Suggestion  string              `json:"suggestion"`
}

// ConflictAnalysis is the conflict skills' normalized output. ConflictCount
// is always recomputed from the filtered conflict list, and HasConflicts is
// derived from it, never trusted from the response.
type ConflictAnalysis struct {
	Conflicts        []DetectedConflict `json:"conflicts"`
	ConflictCount    int                `json:"conflictCount"`
	HasConflicts     bool               `json:"hasConflicts"`
	ConsistencyScore int                `json:"consistencyScore"`
}

// fallbackConflictAnalysis is the documented safe output for both conflict
// skills: zero conflicts and a neutral consistency score of 50.
func fallbackConflictAnalysis() ConflictAnalysis {
	return ConflictAnalysis{
		Conflicts:        []DetectedConflict{},
		ConflictCount:    0,
		HasConflicts:     false,
		ConsistencyScore: 50,
	}
}

// NewConflictDetector builds the single-document conflict skill: contradictory
// values, illogical date ordering, inconsistent formatting.
func NewConflictDetector(opts Options) skill.Skill {
	config := skill.Config{
		Name:     ConflictDetector,
		Category: skill.CategoryAnalyzer,
		Model:    opts.Model,
		Instructions: "You find internal inconsistencies in a legal document's filled fields. " +
			"Respond with a single JSON object only.",
		Temperature: temperature(opts, 0.2),
		MaxTokens:   opts.MaxTokens,
	}

	return skill.New(config, buildConflictPrompt,
		func(raw string) (ConflictAnalysis, error) {
			return parseConflictAnalysis(raw, models.ConflictInternal)
		},
		func(ConflictInput) ConflictAnalysis { return fallbackConflictAnalysis() })
}

func buildConflictPrompt(input ConflictInput) (string, error) {
	if strings.TrimSpace(input.DocumentID) == "" {
		return "", errors.New("document id is required")
	}

	var b strings.Builder
	b.WriteString("Analyze the filled fields of one document for internal conflicts: ")
	b.WriteString("contradictory values, dates in illogical order, inconsistent formatting of the same fact.\n")
	b.WriteString("Return a JSON object with keys: conflicts (array of {type, severity, fields, values, ")
	b.WriteString("description, suggestion}), conflictCount, hasConflicts, consistencyScore (0-100).\n")
	b.WriteString("Severity is critical, warning, or info.\n\nFIELDS:\n")
	writeFieldValues(&b, input.Fields)
	return b.String(), nil
}

// CrossDocumentInput is the caller input for cross-document analysis.
type CrossDocumentInput struct {
	UserID    string           `json:"userId"`
	Documents []DocumentFields `json:"documents"`
}

// DocumentFields is one document's filled fields for cross-document analysis.
type DocumentFields struct {
	DocumentID   string       `json:"documentId"`
	DocumentType string       `json:"documentType,omitempty"`
	Fields       []FieldValue `json:"fields"`
}

// NewCrossDocumentAnalyzer builds the cross-document conflict skill: the same
// field differing in value across a user's documents.
func NewCrossDocumentAnalyzer(opts Options) skill.Skill {
	config := skill.Config{
		Name:     CrossDocumentAnalyzer,
		Category: skill.CategoryAnalyzer,
		Model:    opts.Model,
		Instructions: "You compare a user's documents and find fields whose values disagree across them. " +
			"Respond with a single JSON object only.",
		Temperature: temperature(opts, 0.2),
		MaxTokens:   opts.MaxTokens,
	}

	return skill.New(config, buildCrossDocumentPrompt,
		func(raw string) (ConflictAnalysis, error) {
			return parseConflictAnalysis(raw, models.ConflictCrossDocument)
		},
		func(CrossDocumentInput) ConflictAnalysis { return fallbackConflictAnalysis() })
}

func buildCrossDocumentPrompt(input CrossDocumentInput) (string, error) {
	if len(input.Documents) < 2 {
		return "", errors.New("at least two documents are required")
	}

	var b strings.Builder
	b.WriteString("Compare the documents below. Report fields that should agree but differ in value ")
	b.WriteString("(party names, addresses, dates, amounts).\n")
	b.WriteString("Return a JSON object with keys: conflicts (array of {type, severity, fields, values, ")
	b.WriteString("description, suggestion}), conflictCount, hasConflicts, consistencyScore (0-100).\n\n")
	for _, doc := range input.Documents {
		b.WriteString("DOCUMENT " + doc.DocumentID)
		if doc.DocumentType != "" {
			b.WriteString(" (" + doc.DocumentType + ")")
		}
		b.WriteString(":\n")
		writeFieldValues(&b, doc.Fields)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// parseConflictAnalysis validates the shared conflict shape. Conflicts
// missing a description are filtered out; severities and types are coerced;
// the count and flag are recomputed post-filter.
func parseConflictAnalysis(raw string, defaultType models.ConflictType) (ConflictAnalysis, error) {
	var resp struct {
		Conflicts []struct {
			Type        string   `json:"type"`
			Severity    string   `json:"severity"`
			Fields      []string `json:"fields"`
			Values      []string `json:"values"`
			Description string   `json:"description"`
			Suggestion  string   `json:"suggestion"`
		} `json:"conflicts"`
		ConsistencyScore *float64 `json:"consistencyScore"`
	}
	if _, err := llm.ProcessResponse(raw, &resp); err != nil {
		return ConflictAnalysis{}, err
	}
	if resp.ConsistencyScore == nil {
		return ConflictAnalysis{}, errors.New("missing required field consistencyScore")
	}

	conflicts := []DetectedConflict{}
	for _, c := range resp.Conflicts {
		if strings.TrimSpace(c.Description) == "" {
			continue
		}
		conflictType := skill.CoerceConflictType(c.Type)
		if c.Type == "" {
			conflictType = defaultType
		}
		conflicts = append(conflicts, DetectedConflict{
			Type:        conflictType,
			Severity:    skill.CoerceSeverity(c.Severity),
			Fields:      c.Fields,
			Values:      c.Values,
			Description: c.Description,
			Suggestion:  c.Suggestion,
		})
	}

	return ConflictAnalysis{
		Conflicts:        conflicts,
		ConflictCount:    len(conflicts),
		HasConflicts:     len(conflicts) > 0,
		ConsistencyScore: skill.ClampScore(*resp.ConsistencyScore),
	}, nil
}

func writeFieldValues(b *strings.Builder, fields []FieldValue) {
	for _, f := range fields {
		b.WriteString("- " + f.FieldName + ": " + f.Value + "\n")
	}
}
