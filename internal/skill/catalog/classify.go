package catalog

import (
	"errors"
	"strings"

	"github.com/docufill/internal/llm"
	"github.com/docufill/internal/skill"
)

// ClassifyInput is the caller input for document classification.
type ClassifyInput struct {
	DocumentText string `json:"documentText"`
}

// Classification is the classifier's normalized output.
type Classification struct {
	DocumentType string  `json:"documentType"`
	Confidence   float64 `json:"confidence"`
	Reasoning    string  `json:"reasoning"`
}

// NewDocumentClassifier builds the classification skill. Fallback:
// documentType "unknown" with zero confidence.
func NewDocumentClassifier(opts Options) skill.Skill {
	config := skill.Config{
		Name:     DocumentClassifier,
		Category: skill.CategoryAnalyzer,
		Model:    opts.Model,
		Instructions: "You classify legal documents by type. " +
			"Respond with a single JSON object only.",
		Temperature: temperature(opts, 0.1),
		MaxTokens:   opts.MaxTokens,
	}

	return skill.New(config, buildClassifyPrompt, parseClassification,
		func(ClassifyInput) Classification {
			return Classification{DocumentType: "unknown", Confidence: 0}
		})
}

func buildClassifyPrompt(input ClassifyInput) (string, error) {
	if strings.TrimSpace(input.DocumentText) == "" {
		return "", errors.New("document text is required")
	}

	var b strings.Builder
	b.WriteString("Classify the legal document below. Common types: nda, service_agreement, ")
	b.WriteString("employment_contract, lease_agreement, purchase_agreement, loan_agreement, other.\n")
	b.WriteString("Return a JSON object with keys: documentType (snake_case), confidence (0 to 1), ")
	b.WriteString("reasoning (one sentence).\n\n")
	b.WriteString("DOCUMENT:\n")
	b.WriteString(input.DocumentText)
	return b.String(), nil
}

func parseClassification(raw string) (Classification, error) {
	var resp struct {
		DocumentType *string `json:"documentType"`
		Confidence   float64 `json:"confidence"`
		Reasoning    string  `json:"reasoning"`
	}
	if _, err := llm.ProcessResponse(raw, &resp); err != nil {
		return Classification{}, err
	}
	if resp.DocumentType == nil || strings.TrimSpace(*resp.DocumentType) == "" {
		return Classification{}, errors.New("missing required field documentType")
	}

	return Classification{
		DocumentType: strings.TrimSpace(*resp.DocumentType),
		Confidence:   skill.Clamp01(resp.Confidence),
		Reasoning:    resp.Reasoning,
	}, nil
}
