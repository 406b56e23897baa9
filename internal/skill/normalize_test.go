package skill

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/docufill/pkg/models"
)

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-0.5))
	assert.Equal(t, 0.42, Clamp01(0.42))
	assert.Equal(t, 1.0, Clamp01(1.7))
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0, ClampScore(-12))
	assert.Equal(t, 73, ClampScore(72.6))
	assert.Equal(t, 100, ClampScore(140))
}

func TestCoerceSeverity(t *testing.T) {
	assert.Equal(t, models.SeverityCritical, CoerceSeverity("critical"))
	assert.Equal(t, models.SeverityInfo, CoerceSeverity("catastrophic"))
	assert.Equal(t, models.SeverityInfo, CoerceSeverity(""))
}

func TestCoerceRelationshipType(t *testing.T) {
	assert.Equal(t, models.RelSameParty, CoerceRelationshipType("same_party"))
	assert.Equal(t, models.RelRelatedTransaction, CoerceRelationshipType("bizarre"))
}

func TestCoerceFieldType(t *testing.T) {
	assert.Equal(t, models.FieldDate, CoerceFieldType("date"))
	assert.Equal(t, models.FieldText, CoerceFieldType("timestamp"))
}

func TestCoerceHealthStatus(t *testing.T) {
	assert.Equal(t, models.HealthGood, CoerceHealthStatus("good", 10))
	// Invalid labels derive the bucket from the score.
	assert.Equal(t, models.HealthExcellent, CoerceHealthStatus("amazing", 95))
	assert.Equal(t, models.HealthCritical, CoerceHealthStatus("", 20))
	assert.Equal(t, models.HealthNeedsAttention, CoerceHealthStatus("", 40))
}
