// Package consistency checks documents for conflicts, infers relationships
// between them, and computes the composite health score. The score math is
// deterministic; skills contribute only the conflict findings and the
// narrative issues and recommendations.
package consistency

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/docufill/internal/agent"
	"github.com/docufill/internal/logging"
	"github.com/docufill/internal/skill/catalog"
	"github.com/docufill/internal/store"
	"github.com/docufill/pkg/models"
)

// Dispatcher executes a named skill and records the run.
type Dispatcher interface {
	Execute(ctx context.Context, skillName string, input any) (*agent.Execution, error)
}

// Tally counts the facts the health score is computed from.
type Tally struct {
	TotalFields  int
	FilledFields int
	Critical     int
	Warnings     int
	Info         int
	Conflicts    int
}

// Scores is the deterministic health breakdown. All values are integers in
// [0, 100].
type Scores struct {
	Completeness int                 `json:"completeness"`
	Consistency  int                 `json:"consistency"`
	Risk         int                 `json:"risk"`
	Overall      int                 `json:"overall"`
	Status       models.HealthStatus `json:"status"`
}

// ComputeScores derives the health breakdown from a tally.
// Completeness is filled/total scaled to 100 (an empty document counts as
// complete). Consistency starts at 100 and deducts 20 per critical issue,
// 5 per warning, 1 per info. Risk adds 30 per critical issue, 10 per
// warning, 15 per conflict, capped at 100. Overall weighs completeness 40%,
// consistency 35%, and risk-inverse 25%, rounded and clamped.
func ComputeScores(t Tally) Scores {
	completeness := 100
	if t.TotalFields > 0 {
		completeness = int(math.Round(float64(t.FilledFields) / float64(t.TotalFields) * 100))
	}

	consistency := 100 - 20*t.Critical - 5*t.Warnings - t.Info
	if consistency < 0 {
		consistency = 0
	}

	risk := 30*t.Critical + 10*t.Warnings + 15*t.Conflicts
	if risk > 100 {
		risk = 100
	}

	overall := int(math.Round(
		0.40*float64(completeness) + 0.35*float64(consistency) + 0.25*float64(100-risk)))
	if overall < 0 {
		overall = 0
	}
	if overall > 100 {
		overall = 100
	}

	return Scores{
		Completeness: completeness,
		Consistency:  consistency,
		Risk:         risk,
		Overall:      overall,
		Status:       models.HealthStatusForScore(overall),
	}
}

// Health is the full per-document readiness report. Conflicts are the
// document's open conflict records.
type Health struct {
	DocumentID      string            `json:"document_id"`
	Scores          Scores            `json:"scores"`
	Conflicts       []models.Conflict `json:"conflicts"`
	Issues          []string          `json:"issues"`
	Recommendations []string          `json:"recommendations"`
}

// RelationshipReport pairs the inferred document relationships with the value
// propagations they suggest.
type RelationshipReport struct {
	Relationships []models.Relationship           `json:"relationships"`
	Suggestions   []catalog.PropagationSuggestion `json:"suggestions"`
}

// Engine runs the consistency checks against the store and the skill
// dispatcher.
type Engine struct {
	store      store.Store
	dispatcher Dispatcher
	logger     zerolog.Logger
}

// NewEngine builds an Engine.
func NewEngine(st store.Store, dispatcher Dispatcher) *Engine {
	return &Engine{
		store:      st,
		dispatcher: dispatcher,
		logger:     logging.Component("consistency"),
	}
}

// CheckDocument finds internal conflicts in one document's filled fields.
// Documents with fewer than two filled fields cannot conflict with
// themselves and report a clean analysis without a service call.
func (e *Engine) CheckDocument(ctx context.Context, documentID string) (catalog.ConflictAnalysis, error) {
	if _, err := e.store.GetDocument(ctx, documentID); err != nil {
		return catalog.ConflictAnalysis{}, err
	}

	fields, err := e.filledFields(ctx, documentID)
	if err != nil {
		return catalog.ConflictAnalysis{}, err
	}
	if len(fields) < 2 {
		return cleanAnalysis(), nil
	}

	exec, err := e.dispatcher.Execute(ctx, catalog.ConflictDetector, catalog.ConflictInput{
		DocumentID: documentID,
		Fields:     fields,
	})
	if err != nil {
		return catalog.ConflictAnalysis{}, err
	}
	return conflictOutput(exec)
}

// CheckAcrossDocuments finds fields whose values disagree across a user's
// documents. Fewer than two documents with filled fields reports a clean
// analysis without a service call.
func (e *Engine) CheckAcrossDocuments(ctx context.Context, userID string) (catalog.ConflictAnalysis, error) {
	docs, err := e.documentFields(ctx, userID)
	if err != nil {
		return catalog.ConflictAnalysis{}, err
	}
	if len(docs) < 2 {
		return cleanAnalysis(), nil
	}

	exec, err := e.dispatcher.Execute(ctx, catalog.CrossDocumentAnalyzer, catalog.CrossDocumentInput{
		UserID:    userID,
		Documents: docs,
	})
	if err != nil {
		return catalog.ConflictAnalysis{}, err
	}
	return conflictOutput(exec)
}

// DetectRelationships infers connections between a user's documents from the
// values they share. Fewer than two candidate documents yields an empty
// report without a service call.
func (e *Engine) DetectRelationships(ctx context.Context, userID string) (RelationshipReport, error) {
	empty := RelationshipReport{
		Relationships: []models.Relationship{},
		Suggestions:   []catalog.PropagationSuggestion{},
	}

	docs, err := e.documentFields(ctx, userID)
	if err != nil {
		return empty, err
	}
	if len(docs) < 2 {
		return empty, nil
	}

	summaries := make([]catalog.DocumentSummary, 0, len(docs))
	for _, d := range docs {
		entities := make([]string, 0, len(d.Fields))
		for _, f := range d.Fields {
			entities = append(entities, f.FieldName+": "+f.Value)
		}
		summaries = append(summaries, catalog.DocumentSummary{
			DocumentID:   d.DocumentID,
			DocumentType: d.DocumentType,
			Entities:     entities,
		})
	}

	exec, err := e.dispatcher.Execute(ctx, catalog.RelationshipDetector, catalog.RelationshipInput{
		Documents: summaries,
	})
	if err != nil {
		return empty, err
	}

	analysis, ok := exec.Result.Output.(catalog.RelationshipAnalysis)
	if !ok {
		return empty, fmt.Errorf("unexpected relationship output %T", exec.Result.Output)
	}

	report := RelationshipReport{
		Relationships: make([]models.Relationship, 0, len(analysis.Relationships)),
		Suggestions:   analysis.Suggestions,
	}
	for _, r := range analysis.Relationships {
		report.Relationships = append(report.Relationships, models.Relationship{
			SourceDocumentID:  r.SourceDocumentID,
			RelatedDocumentID: r.RelatedDocumentID,
			Type:              r.Type,
			Strength:          r.Strength,
			SharedEntities:    r.SharedEntities,
			Description:       r.Description,
		})
	}
	return report, nil
}

// HealthReport computes the readiness report for one document. The scores
// come from the deterministic tally; the health skill contributes only the
// narrative issues and recommendations, and its failure degrades to a
// generated summary rather than an error.
func (e *Engine) HealthReport(ctx context.Context, documentID string) (*Health, error) {
	doc, err := e.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	placeholders, err := e.store.ListPlaceholders(ctx, documentID)
	if err != nil {
		return nil, err
	}

	analysis, err := e.CheckDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	tally := Tally{
		TotalFields: len(placeholders),
		Conflicts:   analysis.ConflictCount,
	}
	for _, p := range placeholders {
		if p.Filled() {
			tally.FilledFields++
		}
	}
	for _, c := range analysis.Conflicts {
		switch c.Severity {
		case models.SeverityCritical:
			tally.Critical++
		case models.SeverityWarning:
			tally.Warnings++
		default:
			tally.Info++
		}
	}

	scores := ComputeScores(tally)
	health := &Health{
		DocumentID: documentID,
		Scores:     scores,
		Conflicts:  conflictRecords(documentID, analysis.Conflicts),
	}
	health.Issues, health.Recommendations = e.narrative(ctx, doc, tally, scores)

	e.logger.Debug().
		Str("document_id", documentID).
		Int("overall", scores.Overall).
		Str("status", string(scores.Status)).
		Int("conflicts", tally.Conflicts).
		Msg("health report computed")
	return health, nil
}

// narrative asks the health skill for issues and recommendations; on any
// failure it falls back to a generated summary of the tally.
func (e *Engine) narrative(ctx context.Context, doc *models.Document, tally Tally, scores Scores) ([]string, []string) {
	docType := ""
	if doc.DocumentType != nil {
		docType = *doc.DocumentType
	}

	exec, err := e.dispatcher.Execute(ctx, catalog.HealthScorer, catalog.HealthInput{
		DocumentID:     doc.ID,
		DocumentType:   docType,
		TotalFields:    tally.TotalFields,
		FilledFields:   tally.FilledFields,
		CriticalIssues: tally.Critical,
		Warnings:       tally.Warnings,
		InfoIssues:     tally.Info,
		ConflictCount:  tally.Conflicts,
	})
	if err == nil {
		if report, ok := exec.Result.Output.(catalog.HealthReport); ok && !exec.Result.UsedFallback {
			return report.Issues, report.Recommendations
		}
	} else {
		e.logger.Warn().Err(err).Str("document_id", doc.ID).Msg("health narrative unavailable")
	}

	issues := []string{}
	recommendations := []string{}
	if unfilled := tally.TotalFields - tally.FilledFields; unfilled > 0 {
		issues = append(issues, fmt.Sprintf("%d of %d fields are unfilled", unfilled, tally.TotalFields))
		recommendations = append(recommendations, "fill the remaining fields")
	}
	if tally.Conflicts > 0 {
		issues = append(issues, fmt.Sprintf("%d conflicts detected", tally.Conflicts))
		recommendations = append(recommendations, "resolve the detected conflicts")
	}
	return issues, recommendations
}

// filledFields returns the (name, value) pairs of a document's filled
// placeholders, in position order.
func (e *Engine) filledFields(ctx context.Context, documentID string) ([]catalog.FieldValue, error) {
	placeholders, err := e.store.ListPlaceholders(ctx, documentID)
	if err != nil {
		return nil, err
	}

	fields := make([]catalog.FieldValue, 0, len(placeholders))
	for _, p := range placeholders {
		if !p.Filled() {
			continue
		}
		fields = append(fields, catalog.FieldValue{FieldName: p.FieldName, Value: *p.FilledValue})
	}
	return fields, nil
}

// documentFields returns every user document that has at least one filled
// field.
func (e *Engine) documentFields(ctx context.Context, userID string) ([]catalog.DocumentFields, error) {
	docs, err := e.store.ListDocumentsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]catalog.DocumentFields, 0, len(docs))
	for _, doc := range docs {
		fields, err := e.filledFields(ctx, doc.ID)
		if err != nil {
			return nil, err
		}
		if len(fields) == 0 {
			continue
		}
		docType := ""
		if doc.DocumentType != nil {
			docType = *doc.DocumentType
		}
		out = append(out, catalog.DocumentFields{
			DocumentID:   doc.ID,
			DocumentType: docType,
			Fields:       fields,
		})
	}
	return out, nil
}

// conflictRecords turns skill findings into conflict records, all starting
// open.
func conflictRecords(documentID string, detected []catalog.DetectedConflict) []models.Conflict {
	conflicts := make([]models.Conflict, 0, len(detected))
	for _, c := range detected {
		conflicts = append(conflicts, models.Conflict{
			DocumentID:  documentID,
			Type:        c.Type,
			Severity:    c.Severity,
			Fields:      c.Fields,
			Values:      c.Values,
			Description: c.Description,
			Suggestion:  c.Suggestion,
			Status:      models.ConflictOpen,
		})
	}
	return conflicts
}

func cleanAnalysis() catalog.ConflictAnalysis {
	return catalog.ConflictAnalysis{
		Conflicts:        []catalog.DetectedConflict{},
		ConsistencyScore: 100,
	}
}

func conflictOutput(exec *agent.Execution) (catalog.ConflictAnalysis, error) {
	analysis, ok := exec.Result.Output.(catalog.ConflictAnalysis)
	if !ok {
		return catalog.ConflictAnalysis{}, fmt.Errorf("unexpected conflict output %T", exec.Result.Output)
	}
	return analysis, nil
}
