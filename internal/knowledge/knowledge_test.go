package knowledge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docufill/internal/agent"
	"github.com/docufill/internal/skill"
	"github.com/docufill/internal/skill/catalog"
	"github.com/docufill/internal/store"
	"github.com/docufill/pkg/models"
)

// fakeDispatcher returns a canned output per skill name.
type fakeDispatcher struct {
	outputs map[string]any
	errs    map[string]error
	calls   []string
}

func (d *fakeDispatcher) Execute(_ context.Context, skillName string, _ any) (*agent.Execution, error) {
	d.calls = append(d.calls, skillName)
	if err, ok := d.errs[skillName]; ok {
		return nil, err
	}
	return &agent.Execution{Result: skill.Result{Output: d.outputs[skillName]}}, nil
}

func seedEntity(t *testing.T, svc *Service, entityType, value string, confidence float64, usages int) {
	t.Helper()
	for i := 0; i < usages; i++ {
		_, err := svc.Add(context.Background(), &models.KnowledgeEntity{
			EntityType:  entityType,
			EntityValue: value,
			Confidence:  confidence,
		})
		require.NoError(t, err)
	}
}

func TestAdd_ValidatesAndClamps(t *testing.T) {
	svc := NewService(store.NewMemory(), nil)

	_, err := svc.Add(context.Background(), &models.KnowledgeEntity{EntityType: " ", EntityValue: "x"})
	assert.Error(t, err)

	entity, err := svc.Add(context.Background(), &models.KnowledgeEntity{
		EntityType:  "company_name",
		EntityValue: "Acme Corp",
		Confidence:  1.8,
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, entity.Confidence)
	assert.Equal(t, 1, entity.UsageCount)
}

func TestIngest_TagsSourceAndSkipsInvalid(t *testing.T) {
	svc := NewService(store.NewMemory(), nil)
	docType := "nda"

	stored, err := svc.Ingest(context.Background(), "doc-1", &docType, []catalog.ExtractedEntity{
		{EntityType: "company_name", EntityValue: "Acme Corp", Confidence: 0.9},
		{EntityType: "", EntityValue: "orphan", Confidence: 0.5},
	})
	require.NoError(t, err)

	require.Len(t, stored, 1)
	require.NotNil(t, stored[0].SourceDocID)
	assert.Equal(t, "doc-1", *stored[0].SourceDocID)
	require.NotNil(t, stored[0].SourceDocType)
	assert.Equal(t, "nda", *stored[0].SourceDocType)
}

func TestRecordUsage_SelfHealingInsert(t *testing.T) {
	st := store.NewMemory()
	svc := NewService(st, nil)

	// The value was never extracted; recording usage creates it at full
	// confidence.
	require.NoError(t, svc.RecordUsage(context.Background(), "client_name", "Jane Smith"))

	entity, err := st.FindEntity(context.Background(), "client_name", "Jane Smith")
	require.NoError(t, err)
	assert.Equal(t, 1.0, entity.Confidence)
	assert.Equal(t, 1, entity.UsageCount)

	require.NoError(t, svc.RecordUsage(context.Background(), "client_name", "Jane Smith"))
	entity, err = st.FindEntity(context.Background(), "client_name", "Jane Smith")
	require.NoError(t, err)
	assert.Equal(t, 2, entity.UsageCount)
}

func TestRecordUsage_KeepsExtractedConfidence(t *testing.T) {
	st := store.NewMemory()
	svc := NewService(st, nil)

	seedEntity(t, svc, "company_name", "Acme Corp", 0.6, 1)

	require.NoError(t, svc.RecordUsage(context.Background(), "company_name", "Acme Corp"))

	entity, err := st.FindEntity(context.Background(), "company_name", "Acme Corp")
	require.NoError(t, err)
	// Reusing a value is not evidence about it; only the counter moves.
	assert.Equal(t, 0.6, entity.Confidence)
	assert.Equal(t, 2, entity.UsageCount)
}

func TestSearch_UsesTranslatedFilter(t *testing.T) {
	st := store.NewMemory()
	dispatcher := &fakeDispatcher{outputs: map[string]any{
		catalog.SearchTranslator: catalog.SearchFilter{EntityType: "company_name", MinConfidence: 0.8},
	}}
	svc := NewService(st, dispatcher)

	seedEntity(t, svc, "company_name", "Acme Corp", 0.95, 1)
	seedEntity(t, svc, "company_name", "Shady LLC", 0.4, 1)
	seedEntity(t, svc, "client_name", "Jane Smith", 0.9, 1)

	entities, total, err := svc.Search(context.Background(), "companies we trust", 10, 0)
	require.NoError(t, err)

	// The confidence floor applies before counting, so total matches the page.
	assert.Equal(t, 1, total)
	require.Len(t, entities, 1)
	assert.Equal(t, "Acme Corp", entities[0].EntityValue)
}

func TestSearch_FallbackMatchesNothing(t *testing.T) {
	st := store.NewMemory()
	dispatcher := &fakeDispatcher{outputs: map[string]any{
		catalog.SearchTranslator: catalog.SearchFilter{MatchNone: true},
	}}
	svc := NewService(st, dispatcher)
	seedEntity(t, svc, "company_name", "Acme Corp", 0.9, 1)

	entities, total, err := svc.Search(context.Background(), "anything", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, entities)
	assert.Zero(t, total)
}

func TestSuggestions_StoreOrderWithoutReranker(t *testing.T) {
	st := store.NewMemory()
	svc := NewService(st, nil)

	seedEntity(t, svc, "company_name", "Acme Corp", 0.9, 3)
	seedEntity(t, svc, "company_name", "Beta Inc", 0.7, 1)

	p := &models.Placeholder{FieldName: "company_name", FieldType: models.FieldText}
	suggestions, err := svc.Suggestions(context.Background(), p)
	require.NoError(t, err)

	require.Len(t, suggestions, 2)
	assert.Equal(t, "Acme Corp", suggestions[0].Value)
	assert.Equal(t, "knowledge_graph", suggestions[0].Source)
}

func TestSuggestions_RerankerCannotInventValues(t *testing.T) {
	st := store.NewMemory()
	dispatcher := &fakeDispatcher{outputs: map[string]any{
		catalog.SuggestionRecommender: []catalog.ValueSuggestion{
			{Value: "Beta Inc", Confidence: 0.95, Reasoning: "matches the counterparty"},
			{Value: "Invented Co", Confidence: 0.99},
		},
	}}
	svc := NewService(st, dispatcher)

	seedEntity(t, svc, "company_name", "Acme Corp", 0.9, 3)
	seedEntity(t, svc, "company_name", "Beta Inc", 0.7, 1)

	p := &models.Placeholder{FieldName: "company_name", FieldType: models.FieldText}
	suggestions, err := svc.Suggestions(context.Background(), p)
	require.NoError(t, err)

	require.Len(t, suggestions, 1)
	assert.Equal(t, "Beta Inc", suggestions[0].Value)
	assert.Equal(t, "matches the counterparty", suggestions[0].Reasoning)
}

func TestSuggestions_RerankerFailureKeepsCandidates(t *testing.T) {
	st := store.NewMemory()
	dispatcher := &fakeDispatcher{errs: map[string]error{
		catalog.SuggestionRecommender: errors.New("dispatch failed"),
	}}
	svc := NewService(st, dispatcher)

	seedEntity(t, svc, "company_name", "Acme Corp", 0.9, 1)

	p := &models.Placeholder{FieldName: "company_name", FieldType: models.FieldText}
	suggestions, err := svc.Suggestions(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "Acme Corp", suggestions[0].Value)
}

func TestSuggestions_EmptyGraph(t *testing.T) {
	svc := NewService(store.NewMemory(), nil)

	p := &models.Placeholder{FieldName: "company_name", FieldType: models.FieldText}
	suggestions, err := svc.Suggestions(context.Background(), p)
	require.NoError(t, err)
	assert.Empty(t, suggestions)
}

func TestNormalizeSuggestions_DedupeAndCap(t *testing.T) {
	in := []Suggestion{
		{Value: "A", Confidence: 0.5},
		{Value: "A", Confidence: 0.9},
		{Value: "B", Confidence: 0.8},
		{Value: "C", Confidence: 0.7},
		{Value: "D", Confidence: 0.6},
		{Value: "E", Confidence: 0.5},
		{Value: "F", Confidence: 0.4},
	}

	out := normalizeSuggestions(in)
	require.Len(t, out, 5)
	assert.Equal(t, "A", out[0].Value)
	assert.Equal(t, 0.9, out[0].Confidence)
	assert.Equal(t, "B", out[1].Value)
}
