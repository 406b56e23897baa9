package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docufill/internal/skill"
	"github.com/docufill/pkg/models"
)

func testOpts() Options {
	return Options{Model: "test-model", MaxTokens: 1024}
}

func TestRegisterAll_ElevenSkills(t *testing.T) {
	registry := skill.NewRegistry(nil)
	RegisterAll(registry, testOpts())
	assert.Len(t, registry.Names(), 11)
}

func TestRegisterAll_TemperatureOverride(t *testing.T) {
	registry := skill.NewRegistry(nil)
	RegisterAll(registry, Options{Model: "test-model", Temperature: 0.7})

	for _, name := range registry.Names() {
		s, err := registry.Get(name)
		require.NoError(t, err)
		assert.Equal(t, 0.7, s.Config().Temperature, name)
	}
}

func TestRegisterAll_PerSkillTemperatureDefaults(t *testing.T) {
	registry := skill.NewRegistry(nil)
	RegisterAll(registry, testOpts())

	validator, err := registry.Get(FieldValidator)
	require.NoError(t, err)
	assert.Equal(t, 0.0, validator.Config().Temperature)

	recommender, err := registry.Get(SuggestionRecommender)
	require.NoError(t, err)
	assert.Equal(t, 0.3, recommender.Config().Temperature)
}

func TestParseExtractedPlaceholders_FiltersAndRenumbers(t *testing.T) {
	raw := `[
		{"fieldName": "client_name", "fieldType": "text", "originalText": "[CLIENT_NAME]", "position": 2, "suggestedQuestion": "Who is the client?"},
		{"fieldName": "", "fieldType": "text", "originalText": "[BROKEN]", "position": 1},
		{"fieldName": "start_date", "fieldType": "datetime", "originalText": "[START_DATE]", "position": 1, "suggestedQuestion": "When does it start?"}
	]`

	placeholders, err := parseExtractedPlaceholders(raw)
	require.NoError(t, err)

	require.Len(t, placeholders, 2)
	// Ordered by response position, renumbered 1-indexed after filtering.
	assert.Equal(t, "start_date", placeholders[0].FieldName)
	assert.Equal(t, 1, placeholders[0].Position)
	assert.Equal(t, "client_name", placeholders[1].FieldName)
	assert.Equal(t, 2, placeholders[1].Position)
	// Unknown field type coerced to text.
	assert.Equal(t, models.FieldText, placeholders[0].FieldType)
}

func TestParseExtractedEntities_ClampsConfidence(t *testing.T) {
	raw := `[
		{"entityType": "company_name", "entityValue": "Acme Corp", "confidence": 1.4},
		{"entityType": "payment_amount", "entityValue": "", "confidence": 0.9}
	]`

	entities, err := parseExtractedEntities(raw)
	require.NoError(t, err)

	require.Len(t, entities, 1)
	assert.Equal(t, 1.0, entities[0].Confidence)
}

func TestParseClassification_RequiresDocumentType(t *testing.T) {
	_, err := parseClassification(`{"confidence": 0.8}`)
	assert.Error(t, err)

	c, err := parseClassification(`{"documentType": "nda", "confidence": -0.3, "reasoning": "mutual secrecy terms"}`)
	require.NoError(t, err)
	assert.Equal(t, "nda", c.DocumentType)
	assert.Equal(t, 0.0, c.Confidence)
}

func TestParseValidationResult_RequiresValid(t *testing.T) {
	_, err := parseValidationResult(`{"issues": []}`)
	assert.Error(t, err)

	v, err := parseValidationResult(`{"valid": false, "issues": ["not a date"], "normalizedValue": ""}`)
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, []string{"not a date"}, v.Issues)
}

func TestParseConflictAnalysis_RecomputesCounts(t *testing.T) {
	// The response lies about the count and includes an invalid entry.
	raw := `{
		"conflicts": [
			{"type": "internal", "severity": "urgent", "fields": ["end_date"], "description": "End date precedes start date", "suggestion": "Swap the dates"},
			{"type": "internal", "severity": "critical", "fields": ["x"], "description": ""}
		],
		"conflictCount": 7,
		"hasConflicts": false,
		"consistencyScore": 133.4
	}`

	analysis, err := parseConflictAnalysis(raw, models.ConflictInternal)
	require.NoError(t, err)

	assert.Equal(t, 1, analysis.ConflictCount)
	assert.Len(t, analysis.Conflicts, analysis.ConflictCount)
	assert.True(t, analysis.HasConflicts)
	assert.Equal(t, 100, analysis.ConsistencyScore)
	// Unknown severity coerced to info.
	assert.Equal(t, models.SeverityInfo, analysis.Conflicts[0].Severity)
}

func TestParseConflictAnalysis_EmptyConflicts(t *testing.T) {
	analysis, err := parseConflictAnalysis(`{"conflicts": [], "consistencyScore": 90}`, models.ConflictCrossDocument)
	require.NoError(t, err)

	assert.Equal(t, 0, analysis.ConflictCount)
	assert.False(t, analysis.HasConflicts)
}

func TestParseConflictAnalysis_MissingScoreFails(t *testing.T) {
	_, err := parseConflictAnalysis(`{"conflicts": []}`, models.ConflictInternal)
	assert.Error(t, err)
}

func TestParseRelationshipAnalysis_AutoApplyRule(t *testing.T) {
	raw := `{
		"relationships": [
			{"sourceDocumentId": "d1", "relatedDocumentId": "d2", "relationshipType": "same_party", "strength": 1.8, "sharedEntities": ["Acme Corp"], "description": "Both name Acme Corp"},
			{"sourceDocumentId": "", "relatedDocumentId": "d2", "relationshipType": "dependent", "strength": 0.5}
		],
		"suggestions": [
			{"documentId": "d2", "fieldName": "company_address", "value": "12 Main St", "confidence": 0.95, "critical": false},
			{"documentId": "d2", "fieldName": "liability_cap", "value": "$1M", "confidence": 0.99, "critical": true},
			{"documentId": "d2", "fieldName": "company_name", "value": "Acme Corp", "confidence": 0.85, "critical": false}
		]
	}`

	analysis, err := parseRelationshipAnalysis(raw)
	require.NoError(t, err)

	require.Len(t, analysis.Relationships, 1)
	assert.Equal(t, 1.0, analysis.Relationships[0].Strength)

	require.Len(t, analysis.Suggestions, 3)
	assert.True(t, analysis.Suggestions[0].AutoApply)  // confidence > 0.9, non-critical
	assert.False(t, analysis.Suggestions[1].AutoApply) // critical field never auto-applies
	assert.False(t, analysis.Suggestions[2].AutoApply) // confidence below threshold
}

func TestParseRelationshipAnalysis_UnknownTypeCoerced(t *testing.T) {
	raw := `{"relationships": [{"sourceDocumentId": "a", "relatedDocumentId": "b", "relationshipType": "cousins", "strength": 0.4}], "suggestions": []}`

	analysis, err := parseRelationshipAnalysis(raw)
	require.NoError(t, err)
	assert.Equal(t, models.RelRelatedTransaction, analysis.Relationships[0].Type)
}

func TestParseHealthReport_ScoresAreClampedInts(t *testing.T) {
	raw := `{
		"overallScore": 87.6,
		"completeness": 120,
		"consistency": -3,
		"riskLevel": 15,
		"issues": ["two placeholders unfilled"],
		"recommendations": ["fill the remaining fields"],
		"status": "pretty-good"
	}`

	report, err := parseHealthReport(raw)
	require.NoError(t, err)

	assert.Equal(t, 88, report.OverallScore)
	assert.Equal(t, 100, report.Completeness)
	assert.Equal(t, 0, report.Consistency)
	// Invalid status label derives the bucket from the overall score.
	assert.Equal(t, models.HealthGood, report.Status)
}

func TestParseHealthReport_MissingScoreFails(t *testing.T) {
	_, err := parseHealthReport(`{"overallScore": 80, "completeness": 70, "consistency": 90}`)
	assert.Error(t, err)
}

func TestParseValueSuggestions_FiltersEmptyValues(t *testing.T) {
	raw := `[
		{"value": "Acme Corp", "confidence": 0.9, "reasoning": "most used company name"},
		{"value": "", "confidence": 0.8}
	]`

	suggestions, err := parseValueSuggestions(raw)
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "Acme Corp", suggestions[0].Value)
}

func TestParseSearchFilter(t *testing.T) {
	filter, err := parseSearchFilter(`{"entityType": "company_name", "valueContains": "acme", "minConfidence": 2}`)
	require.NoError(t, err)

	assert.Equal(t, "company_name", filter.EntityType)
	assert.Equal(t, 1.0, filter.MinConfidence)
	assert.False(t, filter.MatchNone)
}

func TestBuildPrompts_InputContract(t *testing.T) {
	_, err := buildExtractPrompt(ExtractInput{})
	assert.Error(t, err)

	_, err = buildConflictPrompt(ConflictInput{})
	assert.Error(t, err)

	_, err = buildCrossDocumentPrompt(CrossDocumentInput{Documents: []DocumentFields{{DocumentID: "only-one"}}})
	assert.Error(t, err)

	_, err = buildRelationshipPrompt(RelationshipInput{})
	assert.Error(t, err)

	_, err = buildHealthPrompt(HealthInput{})
	assert.Error(t, err)

	_, err = buildSearchPrompt(SearchInput{Query: "  "})
	assert.Error(t, err)
}

func TestFallbacks(t *testing.T) {
	opts := testOpts()

	out := NewConflictDetector(opts).Fallback(ConflictInput{})
	analysis, ok := out.(ConflictAnalysis)
	require.True(t, ok)
	assert.Equal(t, 50, analysis.ConsistencyScore)
	assert.Zero(t, analysis.ConflictCount)

	hOut := NewHealthScorer(opts).Fallback(HealthInput{})
	report, ok := hOut.(HealthReport)
	require.True(t, ok)
	assert.Zero(t, report.OverallScore)
	assert.Equal(t, models.HealthCritical, report.Status)

	sOut := NewSearchTranslator(opts).Fallback(SearchInput{})
	filter, ok := sOut.(SearchFilter)
	require.True(t, ok)
	assert.True(t, filter.MatchNone)

	fOut := NewValueFormatter(opts).Fallback(FormatInput{Value: "unchanged"})
	format, ok := fOut.(FormatResult)
	require.True(t, ok)
	assert.Equal(t, "unchanged", format.FormattedValue)
	assert.False(t, format.Changed)
}
