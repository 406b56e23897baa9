package skill

import (
	"math"

	"github.com/docufill/pkg/models"
)

// Normalization helpers applied uniformly across every skill schema.

// Clamp01 clamps a confidence-like value to [0, 1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ClampScore rounds a score-like value and clamps it to [0, 100].
func ClampScore(v float64) int {
	score := int(math.Round(v))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// CoerceSeverity maps unknown severities to info.
func CoerceSeverity(raw string) models.Severity {
	switch models.Severity(raw) {
	case models.SeverityCritical, models.SeverityWarning, models.SeverityInfo:
		return models.Severity(raw)
	default:
		return models.SeverityInfo
	}
}

// CoerceRelationshipType maps unknown relationship types to
// related_transaction.
func CoerceRelationshipType(raw string) models.RelationshipType {
	t := models.RelationshipType(raw)
	if models.ValidRelationshipType(t) {
		return t
	}
	return models.RelRelatedTransaction
}

// CoerceFieldType maps unknown field types to text.
func CoerceFieldType(raw string) models.FieldType {
	t := models.FieldType(raw)
	if models.ValidFieldType(t) {
		return t
	}
	return models.FieldText
}

// CoerceConflictType maps unknown conflict types to internal.
func CoerceConflictType(raw string) models.ConflictType {
	switch models.ConflictType(raw) {
	case models.ConflictInternal, models.ConflictCrossDocument,
		models.ConflictValidation, models.ConflictLogical:
		return models.ConflictType(raw)
	default:
		return models.ConflictInternal
	}
}

// CoerceHealthStatus returns the response's status label when valid,
// otherwise the bucket derived from the overall score.
func CoerceHealthStatus(raw string, overallScore int) models.HealthStatus {
	switch models.HealthStatus(raw) {
	case models.HealthExcellent, models.HealthGood, models.HealthFair,
		models.HealthNeedsAttention, models.HealthCritical:
		return models.HealthStatus(raw)
	default:
		return models.HealthStatusForScore(overallScore)
	}
}
