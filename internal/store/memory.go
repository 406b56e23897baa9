package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docufill/pkg/models"
)

// Memory is an in-memory Store with the same semantics as the Postgres
// implementation. It backs tests and local development without a database.
type Memory struct {
	mu            sync.Mutex
	documents     map[string]*models.Document
	placeholders  map[string]*models.Placeholder
	entities      map[string]*models.KnowledgeEntity // keyed by type\x00value
	agents        map[string]*models.Agent           // keyed by name
	tasks         map[string]*models.Task
	conversations map[string]*models.Conversation
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		documents:     make(map[string]*models.Document),
		placeholders:  make(map[string]*models.Placeholder),
		entities:      make(map[string]*models.KnowledgeEntity),
		agents:        make(map[string]*models.Agent),
		tasks:         make(map[string]*models.Task),
		conversations: make(map[string]*models.Conversation),
	}
}

func entityKey(entityType, entityValue string) string {
	return entityType + "\x00" + entityValue
}

func (s *Memory) CreateDocument(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	copied := *doc
	s.documents[doc.ID] = &copied
	return nil
}

func (s *Memory) GetDocument(_ context.Context, id string) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	copied := *doc
	return &copied, nil
}

func (s *Memory) UpdateDocument(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.documents[doc.ID]
	if !ok {
		return fmt.Errorf("document %s: %w", doc.ID, ErrNotFound)
	}

	stored.Status = doc.Status
	stored.DocumentType = doc.DocumentType
	stored.ClassificationConfidence = doc.ClassificationConfidence
	stored.CompletionPercentage = doc.CompletionPercentage
	stored.Metadata = doc.Metadata
	stored.UpdatedAt = time.Now()
	return nil
}

func (s *Memory) ListDocumentsByUser(_ context.Context, userID string) ([]*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var docs []*models.Document
	for _, doc := range s.documents {
		if doc.UserID == userID {
			copied := *doc
			docs = append(docs, &copied)
		}
	}

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	return docs, nil
}

func (s *Memory) CreatePlaceholders(_ context.Context, placeholders []*models.Placeholder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, p := range placeholders {
		p.CreatedAt = now
		p.UpdatedAt = now
		copied := *p
		s.placeholders[p.ID] = &copied
	}
	return nil
}

func (s *Memory) GetPlaceholder(_ context.Context, id string) (*models.Placeholder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.placeholders[id]
	if !ok {
		return nil, fmt.Errorf("placeholder %s: %w", id, ErrNotFound)
	}
	copied := *p
	return &copied, nil
}

func (s *Memory) ListPlaceholders(_ context.Context, documentID string) ([]*models.Placeholder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var placeholders []*models.Placeholder
	for _, p := range s.placeholders {
		if p.DocumentID == documentID {
			copied := *p
			placeholders = append(placeholders, &copied)
		}
	}

	sort.Slice(placeholders, func(i, j int) bool {
		return placeholders[i].Position < placeholders[j].Position
	})
	return placeholders, nil
}

func (s *Memory) UpdatePlaceholder(_ context.Context, p *models.Placeholder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.placeholders[p.ID]
	if !ok {
		return fmt.Errorf("placeholder %s: %w", p.ID, ErrNotFound)
	}

	stored.FilledValue = p.FilledValue
	stored.SuggestedValue = p.SuggestedValue
	stored.SuggestionSource = p.SuggestionSource
	stored.SuggestionConfidence = p.SuggestionConfidence
	stored.ValidationStatus = p.ValidationStatus
	stored.UpdatedAt = time.Now()
	return nil
}

func (s *Memory) UpsertEntity(_ context.Context, entity *models.KnowledgeEntity) (*models.KnowledgeEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := entityKey(entity.EntityType, entity.EntityValue)
	now := time.Now()

	if existing, ok := s.entities[key]; ok {
		if entity.Confidence > existing.Confidence {
			existing.Confidence = entity.Confidence
		}
		existing.UsageCount++
		existing.LastUpdatedAt = now
		copied := *existing
		return &copied, nil
	}

	stored := *entity
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	stored.UsageCount = 1
	stored.FirstSeenAt = now
	stored.LastUpdatedAt = now
	s.entities[key] = &stored

	copied := stored
	return &copied, nil
}

func (s *Memory) IncrementUsage(_ context.Context, entityType, entityValue string) (*models.KnowledgeEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entity, ok := s.entities[entityKey(entityType, entityValue)]
	if !ok {
		return nil, fmt.Errorf("entity (%s, %s): %w", entityType, entityValue, ErrNotFound)
	}

	entity.UsageCount++
	entity.LastUpdatedAt = time.Now()
	copied := *entity
	return &copied, nil
}

func (s *Memory) FindEntity(_ context.Context, entityType, entityValue string) (*models.KnowledgeEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entity, ok := s.entities[entityKey(entityType, entityValue)]
	if !ok {
		return nil, fmt.Errorf("entity (%s, %s): %w", entityType, entityValue, ErrNotFound)
	}
	copied := *entity
	return &copied, nil
}

func (s *Memory) SearchEntities(_ context.Context, search EntitySearch) ([]*models.KnowledgeEntity, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matches []*models.KnowledgeEntity
	term := strings.ToLower(search.Term)
	for _, entity := range s.entities {
		if search.EntityType != "" && entity.EntityType != search.EntityType {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(entity.EntityValue), term) {
			continue
		}
		if search.MinConfidence > 0 && entity.Confidence < search.MinConfidence {
			continue
		}
		copied := *entity
		matches = append(matches, &copied)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].UsageCount != matches[j].UsageCount {
			return matches[i].UsageCount > matches[j].UsageCount
		}
		return matches[i].LastUpdatedAt.After(matches[j].LastUpdatedAt)
	})

	total := len(matches)

	offset := search.Offset
	if offset > total {
		offset = total
	}
	limit := search.Limit
	if limit <= 0 {
		limit = 50
	}
	end := offset + limit
	if end > total {
		end = total
	}

	return matches[offset:end], total, nil
}

func (s *Memory) CandidatesForField(_ context.Context, fieldName, fieldType string, limit int) ([]*models.KnowledgeEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 10
	}

	name := strings.ToLower(fieldName)
	typ := strings.ToLower(fieldType)

	var matches []*models.KnowledgeEntity
	for _, entity := range s.entities {
		entityType := strings.ToLower(entity.EntityType)
		if looseMatch(entityType, name) || looseMatch(entityType, typ) {
			copied := *entity
			matches = append(matches, &copied)
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].UsageCount != matches[j].UsageCount {
			return matches[i].UsageCount > matches[j].UsageCount
		}
		return matches[i].Confidence > matches[j].Confidence
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// looseMatch reports whether either string contains the other.
func looseMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func (s *Memory) GetOrCreateAgent(_ context.Context, name, category, model string) (*models.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.agents[name]; ok {
		copied := *existing
		return &copied, nil
	}

	agent := &models.Agent{
		ID:        uuid.NewString(),
		Name:      name,
		Category:  category,
		Model:     model,
		CreatedAt: time.Now(),
	}
	s.agents[name] = agent

	copied := *agent
	return &copied, nil
}

func (s *Memory) CreateTask(_ context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task.CreatedAt = time.Now()
	copied := *task
	s.tasks[task.ID] = &copied
	return nil
}

func (s *Memory) CompleteTask(_ context.Context, id, output string, usage TaskUsage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok || task.Status != models.TaskProcessing {
		return fmt.Errorf("task %s not in processing state: %w", id, ErrNotFound)
	}

	now := time.Now()
	task.Output = &output
	task.Status = models.TaskCompleted
	task.PromptTokens = usage.PromptTokens
	task.CompletionTokens = usage.CompletionTokens
	task.TotalTokens = usage.TotalTokens
	task.CostUSD = usage.CostUSD
	task.CompletedAt = &now
	return nil
}

func (s *Memory) FailTask(_ context.Context, id, errorText string, usage TaskUsage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok || task.Status != models.TaskProcessing {
		return fmt.Errorf("task %s not in processing state: %w", id, ErrNotFound)
	}

	now := time.Now()
	task.ErrorText = &errorText
	task.Status = models.TaskFailed
	task.PromptTokens = usage.PromptTokens
	task.CompletionTokens = usage.CompletionTokens
	task.TotalTokens = usage.TotalTokens
	task.CostUSD = usage.CostUSD
	task.CompletedAt = &now
	return nil
}

func (s *Memory) GetTask(_ context.Context, id string) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	copied := *task
	return &copied, nil
}

func (s *Memory) CreateConversation(_ context.Context, conv *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	conv.Version = 1
	conv.CreatedAt = now
	conv.UpdatedAt = now
	copied := *conv
	s.conversations[conv.ID] = &copied
	return nil
}

func (s *Memory) GetConversation(_ context.Context, id string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	copied := *conv
	return &copied, nil
}

func (s *Memory) UpdateConversation(_ context.Context, conv *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.conversations[conv.ID]
	if !ok {
		return fmt.Errorf("conversation %s: %w", conv.ID, ErrNotFound)
	}
	if stored.Version != conv.Version {
		return fmt.Errorf("conversation %s: %w", conv.ID, ErrVersionConflict)
	}

	stored.Status = conv.Status
	stored.CurrentPlaceholderID = conv.CurrentPlaceholderID
	stored.TotalFields = conv.TotalFields
	stored.FilledFields = conv.FilledFields
	stored.Version++
	stored.UpdatedAt = time.Now()

	conv.Version = stored.Version
	return nil
}
