package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docufill/pkg/models"
)

func TestUpsertEntity_MergesDuplicates(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	first, err := s.UpsertEntity(ctx, &models.KnowledgeEntity{
		EntityType:  "company_name",
		EntityValue: "Acme Corp",
		Confidence:  0.6,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, first.UsageCount)

	second, err := s.UpsertEntity(ctx, &models.KnowledgeEntity{
		EntityType:  "company_name",
		EntityValue: "Acme Corp",
		Confidence:  0.9,
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 0.9, second.Confidence)
	assert.Equal(t, 2, second.UsageCount)
}

func TestUpsertEntity_LowerConfidenceKeepsMax(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	_, err := s.UpsertEntity(ctx, &models.KnowledgeEntity{
		EntityType: "email", EntityValue: "legal@acme.com", Confidence: 0.9,
	})
	require.NoError(t, err)

	merged, err := s.UpsertEntity(ctx, &models.KnowledgeEntity{
		EntityType: "email", EntityValue: "legal@acme.com", Confidence: 0.4,
	})
	require.NoError(t, err)

	assert.Equal(t, 0.9, merged.Confidence)
	assert.Equal(t, 2, merged.UsageCount)
}

func TestUpsertEntity_DistinctValuesStayDistinct(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	a, err := s.UpsertEntity(ctx, &models.KnowledgeEntity{
		EntityType: "company_name", EntityValue: "Acme Corp", Confidence: 0.8,
	})
	require.NoError(t, err)

	b, err := s.UpsertEntity(ctx, &models.KnowledgeEntity{
		EntityType: "company_name", EntityValue: "Globex Inc", Confidence: 0.8,
	})
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)

	_, total, err := s.SearchEntities(ctx, EntitySearch{EntityType: "company_name"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestSearchEntities_SubstringAndOrdering(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.UpsertEntity(ctx, &models.KnowledgeEntity{
			EntityType: "company_name", EntityValue: "Acme Corp", Confidence: 0.8,
		})
		require.NoError(t, err)
	}
	_, err := s.UpsertEntity(ctx, &models.KnowledgeEntity{
		EntityType: "company_name", EntityValue: "Acme Holdings", Confidence: 0.8,
	})
	require.NoError(t, err)

	page, total, err := s.SearchEntities(ctx, EntitySearch{Term: "acme", Limit: 10})
	require.NoError(t, err)

	assert.Equal(t, 2, total)
	require.Len(t, page, 2)
	// Acme Corp has usage 3, Acme Holdings 1
	assert.Equal(t, "Acme Corp", page[0].EntityValue)
}

func TestIncrementUsage_LeavesConfidenceAlone(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	_, err := s.UpsertEntity(ctx, &models.KnowledgeEntity{
		EntityType: "company_name", EntityValue: "Acme Corp", Confidence: 0.6,
	})
	require.NoError(t, err)

	bumped, err := s.IncrementUsage(ctx, "company_name", "Acme Corp")
	require.NoError(t, err)
	assert.Equal(t, 0.6, bumped.Confidence)
	assert.Equal(t, 2, bumped.UsageCount)

	_, err = s.IncrementUsage(ctx, "company_name", "Globex Inc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearchEntities_ConfidenceFloorCountsConsistently(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	_, err := s.UpsertEntity(ctx, &models.KnowledgeEntity{
		EntityType: "company_name", EntityValue: "Acme Corp", Confidence: 0.95,
	})
	require.NoError(t, err)
	_, err = s.UpsertEntity(ctx, &models.KnowledgeEntity{
		EntityType: "company_name", EntityValue: "Shady LLC", Confidence: 0.4,
	})
	require.NoError(t, err)

	page, total, err := s.SearchEntities(ctx, EntitySearch{
		EntityType:    "company_name",
		MinConfidence: 0.8,
		Limit:         10,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, total)
	require.Len(t, page, 1)
	assert.Equal(t, "Acme Corp", page[0].EntityValue)
}

func TestSearchEntities_Pagination(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	values := []string{"Acme", "Globex", "Initech", "Umbrella"}
	for _, v := range values {
		_, err := s.UpsertEntity(ctx, &models.KnowledgeEntity{
			EntityType: "company_name", EntityValue: v, Confidence: 0.5,
		})
		require.NoError(t, err)
	}

	page, total, err := s.SearchEntities(ctx, EntitySearch{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, page, 2)
}

func TestCandidatesForField_LooseTypeMatch(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	_, err := s.UpsertEntity(ctx, &models.KnowledgeEntity{
		EntityType: "company_name", EntityValue: "Acme Corp", Confidence: 0.9,
	})
	require.NoError(t, err)
	_, err = s.UpsertEntity(ctx, &models.KnowledgeEntity{
		EntityType: "effective_date", EntityValue: "2026-01-01", Confidence: 0.9,
	})
	require.NoError(t, err)

	// Field name "company" is a substring of entity type "company_name".
	matches, err := s.CandidatesForField(ctx, "company", "text", 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Acme Corp", matches[0].EntityValue)

	// Field type "date" matches "effective_date".
	matches, err = s.CandidatesForField(ctx, "start", "date", 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "2026-01-01", matches[0].EntityValue)
}

func TestConversation_OptimisticConcurrency(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	doc := &models.Document{ID: uuid.NewString(), UserID: "u1", Status: models.DocumentReady}
	require.NoError(t, s.CreateDocument(ctx, doc))

	conv := &models.Conversation{
		ID:         uuid.NewString(),
		DocumentID: doc.ID,
		UserID:     "u1",
		Status:     models.ConversationActive,
	}
	require.NoError(t, s.CreateConversation(ctx, conv))
	require.Equal(t, 1, conv.Version)

	// First writer wins and bumps the version.
	fresh, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	fresh.FilledFields = 1
	require.NoError(t, s.UpdateConversation(ctx, fresh))
	assert.Equal(t, 2, fresh.Version)

	// A writer holding the stale version loses.
	stale := &models.Conversation{ID: conv.ID, Status: models.ConversationActive, Version: 1}
	err = s.UpdateConversation(ctx, stale)
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestGetDocument_NotFound(t *testing.T) {
	s := NewMemory()
	_, err := s.GetDocument(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTask_Lifecycle(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	agent, err := s.GetOrCreateAgent(ctx, "placeholder_extractor", "extractor", "gemini-1.5-flash")
	require.NoError(t, err)

	again, err := s.GetOrCreateAgent(ctx, "placeholder_extractor", "extractor", "gemini-1.5-flash")
	require.NoError(t, err)
	assert.Equal(t, agent.ID, again.ID)

	task := &models.Task{
		ID:       uuid.NewString(),
		AgentID:  agent.ID,
		TaskType: "extract_placeholders",
		Input:    `{"documentId":"d1"}`,
		Status:   models.TaskProcessing,
	}
	require.NoError(t, s.CreateTask(ctx, task))

	usage := TaskUsage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150, CostUSD: 0.001}
	require.NoError(t, s.CompleteTask(ctx, task.ID, `{"ok":true}`, usage))

	// Terminal records cannot be completed or failed again.
	assert.Error(t, s.CompleteTask(ctx, task.ID, `{}`, usage))
	assert.Error(t, s.FailTask(ctx, task.ID, "late failure", usage))

	stored, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskCompleted, stored.Status)
	require.NotNil(t, stored.Output)
	assert.Equal(t, 150, stored.TotalTokens)
	assert.NotNil(t, stored.CompletedAt)
}
