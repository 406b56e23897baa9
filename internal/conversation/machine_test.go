package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docufill/internal/knowledge"
	"github.com/docufill/internal/store"
	"github.com/docufill/pkg/models"
)

func seedDocument(t *testing.T, st store.Store, id string, fields ...models.Placeholder) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, st.CreateDocument(ctx, &models.Document{
		ID: id, UserID: "user-1", FileName: id + ".txt", Status: models.DocumentReady,
	}))

	placeholders := make([]*models.Placeholder, 0, len(fields))
	for i := range fields {
		p := fields[i]
		p.ID = id + "-" + p.FieldName
		p.DocumentID = id
		p.ValidationStatus = models.ValidationPending
		p.CreatedAt = time.Now()
		p.UpdatedAt = time.Now()
		placeholders = append(placeholders, &p)
	}
	require.NoError(t, st.CreatePlaceholders(ctx, placeholders))
}

func threeFieldDocument(t *testing.T, st store.Store) {
	seedDocument(t, st, "doc-1",
		models.Placeholder{FieldName: "client_name", FieldType: models.FieldText, OriginalText: "[CLIENT_NAME]", Position: 1},
		models.Placeholder{FieldName: "start_date", FieldType: models.FieldDate, OriginalText: "[START_DATE]", Position: 2},
		models.Placeholder{FieldName: "monthly_fee", FieldType: models.FieldCurrency, OriginalText: "[MONTHLY_FEE]", Position: 3},
	)
}

func TestStart_PointsAtLowestPosition(t *testing.T) {
	st := store.NewMemory()
	machine := NewMachine(st, nil)
	threeFieldDocument(t, st)

	prompt, err := machine.Start(context.Background(), "doc-1", "user-1")
	require.NoError(t, err)

	require.NotNil(t, prompt.Placeholder)
	assert.Equal(t, "client_name", prompt.Placeholder.FieldName)
	assert.Equal(t, 1, prompt.Placeholder.Position)
	assert.Equal(t, "What is the client name?", prompt.Question)
	assert.Equal(t, "Jane Smith", prompt.Example)
	assert.Equal(t, 3, prompt.FieldsRemaining)

	doc, err := st.GetDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, models.DocumentFilling, doc.Status)
}

func TestStart_MissingDocument(t *testing.T) {
	machine := NewMachine(store.NewMemory(), nil)

	_, err := machine.Start(context.Background(), "nope", "user-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStart_NothingToFill(t *testing.T) {
	st := store.NewMemory()
	machine := NewMachine(st, nil)
	value := "filled"
	seedDocument(t, st, "doc-1",
		models.Placeholder{FieldName: "client_name", FieldType: models.FieldText, OriginalText: "[X]", Position: 1, FilledValue: &value},
	)

	_, err := machine.Start(context.Background(), "doc-1", "user-1")
	assert.ErrorIs(t, err, ErrNoPlaceholders)
}

func TestSendMessage_ThreeFieldFlow(t *testing.T) {
	st := store.NewMemory()
	machine := NewMachine(st, knowledge.NewService(st, nil))
	threeFieldDocument(t, st)
	ctx := context.Background()

	start, err := machine.Start(ctx, "doc-1", "user-1")
	require.NoError(t, err)

	second, err := machine.SendMessage(ctx, start.ConversationID, "Jane Smith")
	require.NoError(t, err)
	require.NotNil(t, second.Placeholder)
	assert.Equal(t, 2, second.Placeholder.Position)
	assert.Equal(t, "January 15, 2026", second.Example)

	doc, err := st.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 33, doc.CompletionPercentage)

	third, err := machine.SendMessage(ctx, start.ConversationID, "March 1, 2026")
	require.NoError(t, err)
	assert.Equal(t, 3, third.Placeholder.Position)
	assert.Equal(t, "$5,000.00", third.Example)

	done, err := machine.SendMessage(ctx, start.ConversationID, "$2,500.00")
	require.NoError(t, err)
	assert.True(t, done.Completed)
	assert.Nil(t, done.Placeholder)

	doc, err = st.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, models.DocumentCompleted, doc.Status)
	assert.Equal(t, 100, doc.CompletionPercentage)

	conv, err := st.GetConversation(ctx, start.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, models.ConversationCompleted, conv.Status)
	assert.Nil(t, conv.CurrentPlaceholderID)
	assert.Equal(t, 3, conv.FilledFields)

	// Filled values entered the knowledge graph.
	entity, err := st.FindEntity(ctx, "client_name", "Jane Smith")
	require.NoError(t, err)
	assert.Equal(t, 1.0, entity.Confidence)
}

func TestSendMessage_CompletedConversationRejects(t *testing.T) {
	st := store.NewMemory()
	machine := NewMachine(st, nil)
	seedDocument(t, st, "doc-1",
		models.Placeholder{FieldName: "client_name", FieldType: models.FieldText, OriginalText: "[X]", Position: 1},
	)
	ctx := context.Background()

	start, err := machine.Start(ctx, "doc-1", "user-1")
	require.NoError(t, err)

	_, err = machine.SendMessage(ctx, start.ConversationID, "Jane Smith")
	require.NoError(t, err)

	_, err = machine.SendMessage(ctx, start.ConversationID, "again")
	assert.ErrorIs(t, err, ErrNotActive)
}

func TestSendMessage_EmptyText(t *testing.T) {
	machine := NewMachine(store.NewMemory(), nil)

	_, err := machine.SendMessage(context.Background(), "conv-1", "   ")
	assert.Error(t, err)
}

func TestSendMessage_UnknownConversation(t *testing.T) {
	machine := NewMachine(store.NewMemory(), nil)

	_, err := machine.SendMessage(context.Background(), "nope", "hello")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestComplete_ForceTerminates(t *testing.T) {
	st := store.NewMemory()
	machine := NewMachine(st, nil)
	threeFieldDocument(t, st)
	ctx := context.Background()

	start, err := machine.Start(ctx, "doc-1", "user-1")
	require.NoError(t, err)

	require.NoError(t, machine.Complete(ctx, start.ConversationID))

	doc, err := st.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, models.DocumentCompleted, doc.Status)

	conv, err := st.GetConversation(ctx, start.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, models.ConversationCompleted, conv.Status)

	// Completing twice is a state violation.
	assert.ErrorIs(t, machine.Complete(ctx, start.ConversationID), ErrNotActive)
}

func TestExampleFor(t *testing.T) {
	assert.Equal(t, "jane.smith@acme.com", exampleFor("contact_email", models.FieldText))
	assert.Equal(t, "January 15, 2026", exampleFor("effective_date", models.FieldText))
	assert.Equal(t, "$5,000.00", exampleFor("salary", models.FieldText))
	assert.Equal(t, "123 Main Street, Springfield, IL 62704", exampleFor("office", models.FieldAddress))
	assert.Equal(t, "Acme Corporation", exampleFor("company_name", models.FieldText))
	assert.Equal(t, "Jane Smith", exampleFor("party_one", models.FieldText))
	assert.Equal(t, "42", exampleFor("headcount", models.FieldNumber))
	assert.Equal(t, "the exact text to insert", exampleFor("notes", models.FieldText))
}
