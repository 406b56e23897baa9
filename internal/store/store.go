// Package store persists documents, placeholders, knowledge-graph entities,
// agent tasks, and conversations. The Postgres implementation is the
// production path; the in-memory implementation backs tests.
package store

import (
	"context"
	"errors"

	"github.com/docufill/pkg/models"
)

var (
	// ErrNotFound is returned when a requested row does not exist. Callers
	// map this to a 404-class outcome.
	ErrNotFound = errors.New("store: not found")
	// ErrVersionConflict is returned when an optimistic update lost the race
	// against a concurrent writer.
	ErrVersionConflict = errors.New("store: version conflict")
)

// EntitySearch filters a knowledge-graph search. Term is matched as a
// case-insensitive substring of the entity value; MinConfidence drops
// lower-confidence rows from both the page and the total count.
type EntitySearch struct {
	EntityType    string
	Term          string
	MinConfidence float64
	Limit         int
	Offset        int
}

// DocumentStore persists documents.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	UpdateDocument(ctx context.Context, doc *models.Document) error
	ListDocumentsByUser(ctx context.Context, userID string) ([]*models.Document, error)
}

// PlaceholderStore persists placeholders. Listings are ordered by ascending
// position.
type PlaceholderStore interface {
	CreatePlaceholders(ctx context.Context, placeholders []*models.Placeholder) error
	GetPlaceholder(ctx context.Context, id string) (*models.Placeholder, error)
	ListPlaceholders(ctx context.Context, documentID string) ([]*models.Placeholder, error)
	UpdatePlaceholder(ctx context.Context, placeholder *models.Placeholder) error
}

// EntityStore persists knowledge-graph entities.
type EntityStore interface {
	// UpsertEntity inserts the entity or, when the (type, value) pair already
	// exists, merges: confidence = max(old, new), usage_count += 1,
	// last_updated = now. The check-then-write is a single atomic unit.
	UpsertEntity(ctx context.Context, entity *models.KnowledgeEntity) (*models.KnowledgeEntity, error)
	// IncrementUsage bumps usage_count and last_updated for an existing
	// (type, value) pair, leaving its confidence untouched. Returns
	// ErrNotFound when the pair is not in the graph.
	IncrementUsage(ctx context.Context, entityType, entityValue string) (*models.KnowledgeEntity, error)
	FindEntity(ctx context.Context, entityType, entityValue string) (*models.KnowledgeEntity, error)
	// SearchEntities returns one page ordered by usage count desc then
	// recency desc, plus the total match count.
	SearchEntities(ctx context.Context, search EntitySearch) ([]*models.KnowledgeEntity, int, error)
	// CandidatesForField returns entities whose type loosely matches the
	// field name or field type (substring either direction), ordered by
	// usage count desc then confidence desc.
	CandidatesForField(ctx context.Context, fieldName, fieldType string, limit int) ([]*models.KnowledgeEntity, error)
}

// AgentStore persists skill identities and their task records.
type AgentStore interface {
	// GetOrCreateAgent registers an agent by name on first use; repeated
	// calls return the existing row.
	GetOrCreateAgent(ctx context.Context, name, category, model string) (*models.Agent, error)
	CreateTask(ctx context.Context, task *models.Task) error
	// CompleteTask appends the terminal output/usage/cost fields and flips
	// status to completed.
	CompleteTask(ctx context.Context, id, output string, usage TaskUsage) error
	// FailTask appends the error text and flips status to failed.
	FailTask(ctx context.Context, id, errorText string, usage TaskUsage) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
}

// TaskUsage carries the terminal accounting fields of a task.
type TaskUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	CostUSD          float64
}

// ConversationStore persists conversations with optimistic concurrency:
// UpdateConversation succeeds only when the caller holds the current version.
type ConversationStore interface {
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	// UpdateConversation writes conv if conv.Version matches the stored row,
	// incrementing the version; otherwise returns ErrVersionConflict.
	UpdateConversation(ctx context.Context, conv *models.Conversation) error
}

// Store aggregates every persistence concern the system needs.
type Store interface {
	DocumentStore
	PlaceholderStore
	EntityStore
	AgentStore
	ConversationStore
}
