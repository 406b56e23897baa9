package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/docufill/internal/llm"
	"github.com/docufill/internal/skill"
	"github.com/docufill/pkg/models"
)

// HealthInput is the caller input for health scoring.
type HealthInput struct {
	DocumentID     string `json:"documentId"`
	DocumentType   string `json:"documentType,omitempty"`
	TotalFields    int    `json:"totalFields"`
	FilledFields   int    `json:"filledFields"`
	CriticalIssues int    `json:"criticalIssues"`
	Warnings       int    `json:"warnings"`
	InfoIssues     int    `json:"infoIssues"`
	ConflictCount  int    `json:"conflictCount"`
}

// HealthReport is the health skill's normalized output. All four scores are
// integers in [0, 100]; Status falls back to the score-derived bucket when
// the response's label is missing or invalid.
type HealthReport struct {
	OverallScore    int                 `json:"overallScore"`
	Completeness    int                 `json:"completeness"`
	Consistency     int                 `json:"consistency"`
	RiskLevel       int                 `json:"riskLevel"`
	Issues          []string            `json:"issues"`
	Recommendations []string            `json:"recommendations"`
	Status          models.HealthStatus `json:"status"`
}

// NewHealthScorer builds the health-scoring skill. Fallback: all scores 0,
// status critical.
func NewHealthScorer(opts Options) skill.Skill {
	config := skill.Config{
		Name:     HealthScorer,
		Category: skill.CategoryAnalyzer,
		Model:    opts.Model,
		Instructions: "You assess how ready a legal document is for use. " +
			"Respond with a single JSON object only.",
		Temperature: temperature(opts, 0.2),
		MaxTokens:   opts.MaxTokens,
	}

	return skill.New(config, buildHealthPrompt, parseHealthReport,
		func(HealthInput) HealthReport {
			return HealthReport{
				Issues:          []string{},
				Recommendations: []string{},
				Status:          models.HealthCritical,
			}
		})
}

func buildHealthPrompt(input HealthInput) (string, error) {
	if strings.TrimSpace(input.DocumentID) == "" {
		return "", errors.New("document id is required")
	}

	var b strings.Builder
	b.WriteString("Assess the readiness of a document given these facts:\n")
	fmt.Fprintf(&b, "- fields filled: %d of %d\n", input.FilledFields, input.TotalFields)
	fmt.Fprintf(&b, "- critical issues: %d, warnings: %d, info issues: %d\n",
		input.CriticalIssues, input.Warnings, input.InfoIssues)
	fmt.Fprintf(&b, "- cross-document conflicts: %d\n", input.ConflictCount)
	if input.DocumentType != "" {
		fmt.Fprintf(&b, "- document type: %s\n", input.DocumentType)
	}
	b.WriteString("Return a JSON object with keys: overallScore, completeness, consistency, riskLevel ")
	b.WriteString("(all integers 0-100), issues (array of strings), recommendations (array of strings), ")
	b.WriteString("status (excellent|good|fair|needs_attention|critical).")
	return b.String(), nil
}

func parseHealthReport(raw string) (HealthReport, error) {
	var resp struct {
		OverallScore    *float64 `json:"overallScore"`
		Completeness    *float64 `json:"completeness"`
		Consistency     *float64 `json:"consistency"`
		RiskLevel       *float64 `json:"riskLevel"`
		Issues          []string `json:"issues"`
		Recommendations []string `json:"recommendations"`
		Status          string   `json:"status"`
	}
	if _, err := llm.ProcessResponse(raw, &resp); err != nil {
		return HealthReport{}, err
	}
	if resp.OverallScore == nil || resp.Completeness == nil ||
		resp.Consistency == nil || resp.RiskLevel == nil {
		return HealthReport{}, errors.New("missing required score field")
	}

	overall := skill.ClampScore(*resp.OverallScore)

	issues := resp.Issues
	if issues == nil {
		issues = []string{}
	}
	recommendations := resp.Recommendations
	if recommendations == nil {
		recommendations = []string{}
	}

	return HealthReport{
		OverallScore:    overall,
		Completeness:    skill.ClampScore(*resp.Completeness),
		Consistency:     skill.ClampScore(*resp.Consistency),
		RiskLevel:       skill.ClampScore(*resp.RiskLevel),
		Issues:          issues,
		Recommendations: recommendations,
		Status:          skill.CoerceHealthStatus(resp.Status, overall),
	}, nil
}
