// Package conversation walks a user through a document's unfilled
// placeholders one at a time, strictly in ascending position order. State
// lives in a versioned conversation row; concurrent updates to the same
// conversation lose with a version conflict instead of silently overwriting
// the pointer.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/docufill/internal/knowledge"
	"github.com/docufill/internal/logging"
	"github.com/docufill/internal/store"
	"github.com/docufill/pkg/models"
)

var (
	// ErrNoPlaceholders is returned by Start when the document has nothing
	// left to fill.
	ErrNoPlaceholders = errors.New("no placeholders to fill")
	// ErrNotActive is returned when a message arrives for a conversation
	// that already completed or paused.
	ErrNotActive = errors.New("conversation is not active")
)

// Prompt is what the machine asks the user next. Completed marks the
// terminal prompt, after which the conversation accepts no more messages.
type Prompt struct {
	ConversationID  string                 `json:"conversation_id"`
	Placeholder     *models.Placeholder    `json:"placeholder,omitempty"`
	Question        string                 `json:"question,omitempty"`
	Example         string                 `json:"example,omitempty"`
	Suggestions     []knowledge.Suggestion `json:"suggestions,omitempty"`
	FieldsRemaining int                    `json:"fields_remaining"`
	Completed       bool                   `json:"completed"`
}

// Machine drives conversations against the store. The knowledge service is
// optional; when present, filled values feed the entity graph and prompts
// carry value suggestions.
type Machine struct {
	store     store.Store
	knowledge *knowledge.Service
	logger    zerolog.Logger
}

// NewMachine builds a Machine. kg may be nil.
func NewMachine(st store.Store, kg *knowledge.Service) *Machine {
	return &Machine{
		store:     st,
		knowledge: kg,
		logger:    logging.Component("conversation"),
	}
}

// Start opens a conversation on a document, pointing at the lowest-position
// unfilled placeholder. Fails when the document does not exist or has zero
// unfilled placeholders.
func (m *Machine) Start(ctx context.Context, documentID, userID string) (*Prompt, error) {
	doc, err := m.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	placeholders, err := m.store.ListPlaceholders(ctx, documentID)
	if err != nil {
		return nil, err
	}

	current := firstUnfilled(placeholders)
	if current == nil {
		return nil, fmt.Errorf("document %s: %w", documentID, ErrNoPlaceholders)
	}

	conv := &models.Conversation{
		ID:                   uuid.NewString(),
		DocumentID:           documentID,
		UserID:               userID,
		Status:               models.ConversationActive,
		CurrentPlaceholderID: &current.ID,
		TotalFields:          len(placeholders),
		FilledFields:         len(placeholders) - countUnfilled(placeholders),
	}
	if err := m.store.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	doc.Status = models.DocumentFilling
	doc.UpdatedAt = time.Now().UTC()
	if err := m.store.UpdateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("mark document filling: %w", err)
	}

	m.logger.Debug().
		Str("conversation_id", conv.ID).
		Str("document_id", documentID).
		Int("total_fields", conv.TotalFields).
		Msg("conversation started")
	return m.prompt(ctx, conv, current, countUnfilled(placeholders)), nil
}

// SendMessage fills the current placeholder with the raw message text,
// recomputes the document's completion percentage, and advances the pointer
// to the next unfilled placeholder by position, or completes the
// conversation when none remain.
func (m *Machine) SendMessage(ctx context.Context, conversationID, text string) (*Prompt, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("message text is required")
	}

	conv, err := m.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.Status != models.ConversationActive {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, ErrNotActive)
	}
	if conv.CurrentPlaceholderID == nil {
		return nil, fmt.Errorf("conversation %s has no current placeholder", conversationID)
	}

	current, err := m.store.GetPlaceholder(ctx, *conv.CurrentPlaceholderID)
	if err != nil {
		return nil, err
	}

	current.FilledValue = &text
	current.UpdatedAt = time.Now().UTC()
	if err := m.store.UpdatePlaceholder(ctx, current); err != nil {
		return nil, fmt.Errorf("fill placeholder %s: %w", current.ID, err)
	}
	m.recordUsage(ctx, current.FieldName, text)

	placeholders, err := m.store.ListPlaceholders(ctx, conv.DocumentID)
	if err != nil {
		return nil, err
	}
	unfilled := countUnfilled(placeholders)
	filled := len(placeholders) - unfilled

	doc, err := m.store.GetDocument(ctx, conv.DocumentID)
	if err != nil {
		return nil, err
	}
	doc.CompletionPercentage = completionPercentage(filled, len(placeholders))
	doc.UpdatedAt = time.Now().UTC()

	conv.FilledFields = filled
	next := firstUnfilled(placeholders)
	if next == nil {
		conv.Status = models.ConversationCompleted
		conv.CurrentPlaceholderID = nil
		doc.Status = models.DocumentCompleted
		doc.CompletionPercentage = 100
	} else {
		conv.CurrentPlaceholderID = &next.ID
	}

	if err := m.store.UpdateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("advance conversation: %w", err)
	}
	if err := m.store.UpdateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("update document completion: %w", err)
	}

	if next == nil {
		m.logger.Debug().Str("conversation_id", conv.ID).Msg("conversation completed")
		return &Prompt{ConversationID: conv.ID, Completed: true}, nil
	}
	return m.prompt(ctx, conv, next, unfilled), nil
}

// Complete force-terminates an active conversation and marks the document
// completed regardless of remaining placeholders.
func (m *Machine) Complete(ctx context.Context, conversationID string) error {
	conv, err := m.store.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv.Status != models.ConversationActive {
		return fmt.Errorf("conversation %s: %w", conversationID, ErrNotActive)
	}

	conv.Status = models.ConversationCompleted
	conv.CurrentPlaceholderID = nil
	if err := m.store.UpdateConversation(ctx, conv); err != nil {
		return fmt.Errorf("terminate conversation: %w", err)
	}

	doc, err := m.store.GetDocument(ctx, conv.DocumentID)
	if err != nil {
		return err
	}
	doc.Status = models.DocumentCompleted
	doc.UpdatedAt = time.Now().UTC()
	if err := m.store.UpdateDocument(ctx, doc); err != nil {
		return fmt.Errorf("mark document completed: %w", err)
	}

	m.logger.Debug().Str("conversation_id", conversationID).Msg("conversation force-terminated")
	return nil
}

func (m *Machine) prompt(ctx context.Context, conv *models.Conversation, p *models.Placeholder, remaining int) *Prompt {
	prompt := &Prompt{
		ConversationID:  conv.ID,
		Placeholder:     p,
		Question:        questionFor(p),
		Example:         exampleFor(p.FieldName, p.FieldType),
		FieldsRemaining: remaining,
	}

	if m.knowledge != nil {
		suggestions, err := m.knowledge.Suggestions(ctx, p)
		if err != nil {
			m.logger.Warn().Err(err).Str("field", p.FieldName).Msg("suggestions unavailable")
		} else {
			prompt.Suggestions = suggestions
		}
	}
	return prompt
}

// recordUsage feeds a filled value back into the knowledge graph.
// Best effort; a graph failure never blocks the fill.
func (m *Machine) recordUsage(ctx context.Context, fieldName, value string) {
	if m.knowledge == nil {
		return
	}
	if err := m.knowledge.RecordUsage(ctx, fieldName, value); err != nil {
		m.logger.Warn().Err(err).Str("field", fieldName).Msg("usage not recorded")
	}
}

// questionFor turns a snake_case field name into the templated prompt
// question.
func questionFor(p *models.Placeholder) string {
	label := strings.ReplaceAll(p.FieldName, "_", " ")
	return fmt.Sprintf("What is the %s?", label)
}

// exampleFor picks a field-specific example string from the field's name and
// type.
func exampleFor(fieldName string, fieldType models.FieldType) string {
	name := strings.ToLower(fieldName)

	switch {
	case fieldType == models.FieldEmail || strings.Contains(name, "email"):
		return "jane.smith@acme.com"
	case fieldType == models.FieldDate || strings.Contains(name, "date"):
		return "January 15, 2026"
	case fieldType == models.FieldCurrency ||
		strings.Contains(name, "amount") || strings.Contains(name, "salary") ||
		strings.Contains(name, "fee") || strings.Contains(name, "price"):
		return "$5,000.00"
	case fieldType == models.FieldNumber:
		return "42"
	case fieldType == models.FieldAddress || strings.Contains(name, "address"):
		return "123 Main Street, Springfield, IL 62704"
	case strings.Contains(name, "company") || strings.Contains(name, "corporation") ||
		strings.Contains(name, "employer"):
		return "Acme Corporation"
	case strings.Contains(name, "name") || strings.Contains(name, "party") ||
		strings.Contains(name, "client"):
		return "Jane Smith"
	default:
		return "the exact text to insert"
	}
}

func firstUnfilled(placeholders []*models.Placeholder) *models.Placeholder {
	for _, p := range placeholders {
		if !p.Filled() {
			return p
		}
	}
	return nil
}

func countUnfilled(placeholders []*models.Placeholder) int {
	n := 0
	for _, p := range placeholders {
		if !p.Filled() {
			n++
		}
	}
	return n
}

func completionPercentage(filled, total int) int {
	if total == 0 {
		return 100
	}
	return int(math.Round(float64(filled) / float64(total) * 100))
}
