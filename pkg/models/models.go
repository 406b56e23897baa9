package models

import (
	"time"
)

// Document lifecycle states

type DocumentStatus string

const (
	DocumentUploaded  DocumentStatus = "uploaded"
	DocumentAnalyzing DocumentStatus = "analyzing"
	DocumentReady     DocumentStatus = "ready"
	DocumentFilling   DocumentStatus = "filling"
	DocumentCompleted DocumentStatus = "completed"
)

// Document represents one uploaded legal document.
type Document struct {
	ID                       string         `json:"id" db:"id"`
	UserID                   string         `json:"user_id" db:"user_id"`
	FileName                 string         `json:"file_name" db:"file_name"`
	Status                   DocumentStatus `json:"status" db:"status"`
	DocumentType             *string        `json:"document_type,omitempty" db:"document_type"`
	ClassificationConfidence *float64       `json:"classification_confidence,omitempty" db:"classification_confidence"`
	CompletionPercentage     int            `json:"completion_percentage" db:"completion_percentage"`
	Metadata                 string         `json:"metadata,omitempty" db:"metadata"` // Free-form JSON blob
	CreatedAt                time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt                time.Time      `json:"updated_at" db:"updated_at"`
}

// Placeholder field types

type FieldType string

const (
	FieldText     FieldType = "text"
	FieldDate     FieldType = "date"
	FieldCurrency FieldType = "currency"
	FieldNumber   FieldType = "number"
	FieldEmail    FieldType = "email"
	FieldAddress  FieldType = "address"
)

// ValidFieldType reports whether t is one of the declared field types.
func ValidFieldType(t FieldType) bool {
	switch t {
	case FieldText, FieldDate, FieldCurrency, FieldNumber, FieldEmail, FieldAddress:
		return true
	}
	return false
}

type ValidationStatus string

const (
	ValidationPending   ValidationStatus = "pending"
	ValidationValidated ValidationStatus = "validated"
	ValidationFlagged   ValidationStatus = "flagged"
)

// Placeholder is a fillable field detected in a document. Position is
// 1-indexed and defines the fill order.
type Placeholder struct {
	ID                   string           `json:"id" db:"id"`
	DocumentID           string           `json:"document_id" db:"document_id"`
	FieldName            string           `json:"field_name" db:"field_name"`
	FieldType            FieldType        `json:"field_type" db:"field_type"`
	OriginalText         string           `json:"original_text" db:"original_text"`
	Position             int              `json:"position" db:"position"`
	FilledValue          *string          `json:"filled_value,omitempty" db:"filled_value"`
	SuggestedValue       *string          `json:"suggested_value,omitempty" db:"suggested_value"`
	SuggestionSource     *string          `json:"suggestion_source,omitempty" db:"suggestion_source"`
	SuggestionConfidence *float64         `json:"suggestion_confidence,omitempty" db:"suggestion_confidence"`
	ValidationStatus     ValidationStatus `json:"validation_status" db:"validation_status"`
	CreatedAt            time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at" db:"updated_at"`
}

// Filled reports whether the placeholder has a value.
func (p *Placeholder) Filled() bool {
	return p.FilledValue != nil && *p.FilledValue != ""
}

// KnowledgeEntity is a deduplicated (type, value) fact extracted from the
// user's documents. At most one row exists per exact (EntityType, EntityValue)
// pair; collisions merge by max confidence and usage_count += 1.
type KnowledgeEntity struct {
	ID             string    `json:"id" db:"id"`
	EntityType     string    `json:"entity_type" db:"entity_type"`
	EntityValue    string    `json:"entity_value" db:"entity_value"`
	SourceDocID    *string   `json:"source_document_id,omitempty" db:"source_document_id"`
	SourceDocType  *string   `json:"source_document_type,omitempty" db:"source_document_type"`
	Confidence     float64   `json:"confidence" db:"confidence"`
	UsageCount     int       `json:"usage_count" db:"usage_count"`
	FirstSeenAt    time.Time `json:"first_seen_at" db:"first_seen_at"`
	LastUpdatedAt  time.Time `json:"last_updated_at" db:"last_updated_at"`
}

// Relationship types between documents

type RelationshipType string

const (
	RelSameParty          RelationshipType = "same_party"
	RelRelatedTransaction RelationshipType = "related_transaction"
	RelDependent          RelationshipType = "dependent"
	RelComplementary      RelationshipType = "complementary"
	RelConflicting        RelationshipType = "conflicting"
)

// ValidRelationshipType reports whether t is one of the declared types.
func ValidRelationshipType(t RelationshipType) bool {
	switch t {
	case RelSameParty, RelRelatedTransaction, RelDependent, RelComplementary, RelConflicting:
		return true
	}
	return false
}

// Relationship is an inferred connection between two documents based on
// shared knowledge-graph entities.
type Relationship struct {
	SourceDocumentID  string           `json:"source_document_id"`
	RelatedDocumentID string           `json:"related_document_id"`
	Type              RelationshipType `json:"relationship_type"`
	Strength          float64          `json:"strength"` // 0..1
	SharedEntities    []string         `json:"shared_entities"`
	Description       string           `json:"description"`
}

// Conflict taxonomy

type ConflictType string

const (
	ConflictInternal      ConflictType = "internal"
	ConflictCrossDocument ConflictType = "cross_document"
	ConflictValidation    ConflictType = "validation"
	ConflictLogical       ConflictType = "logical"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

type ConflictStatus string

const (
	ConflictOpen         ConflictStatus = "open"
	ConflictAcknowledged ConflictStatus = "acknowledged"
	ConflictResolved     ConflictStatus = "resolved"
)

// Conflict is a detected inconsistency within or across documents.
type Conflict struct {
	DocumentID  string         `json:"document_id"`
	Type        ConflictType   `json:"type"`
	Severity    Severity       `json:"severity"`
	Fields      []string       `json:"fields"`
	Values      []string       `json:"values,omitempty"`
	Description string         `json:"description"`
	Suggestion  string         `json:"suggestion"`
	Status      ConflictStatus `json:"status"`
}

// Task lifecycle

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// Agent is the persisted identity of one skill, registered on first use.
type Agent struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Category  string    `json:"category" db:"category"`
	Model     string    `json:"model" db:"model"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Task is the persisted record of one skill execution. Input is write-once;
// output, error, token counts, and status are appended exactly once when the
// execution finishes.
type Task struct {
	ID               string     `json:"id" db:"id"`
	AgentID          string     `json:"agent_id" db:"agent_id"`
	TaskType         string     `json:"task_type" db:"task_type"`
	Input            string     `json:"input" db:"input"`   // JSON payload
	Output           *string    `json:"output,omitempty" db:"output"` // JSON payload, nil until completed
	Status           TaskStatus `json:"status" db:"status"`
	PromptTokens     int        `json:"prompt_tokens" db:"prompt_tokens"`
	CompletionTokens int        `json:"completion_tokens" db:"completion_tokens"`
	TotalTokens      int        `json:"total_tokens" db:"total_tokens"`
	CostUSD          float64    `json:"cost_usd" db:"cost_usd"`
	ErrorText        *string    `json:"error_text,omitempty" db:"error_text"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// Conversation lifecycle

type ConversationStatus string

const (
	ConversationActive    ConversationStatus = "active"
	ConversationCompleted ConversationStatus = "completed"
	ConversationPaused    ConversationStatus = "paused"
)

// Conversation drives a user through unfilled placeholders one at a time.
// Version is checked-and-incremented on every update so concurrent writers
// cannot silently overwrite each other's pointer advancement.
type Conversation struct {
	ID                   string             `json:"id" db:"id"`
	DocumentID           string             `json:"document_id" db:"document_id"`
	UserID               string             `json:"user_id" db:"user_id"`
	Status               ConversationStatus `json:"status" db:"status"`
	CurrentPlaceholderID *string            `json:"current_placeholder_id,omitempty" db:"current_placeholder_id"`
	TotalFields          int                `json:"total_fields" db:"total_fields"`
	FilledFields         int                `json:"filled_fields" db:"filled_fields"`
	Version              int                `json:"version" db:"version"`
	CreatedAt            time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at" db:"updated_at"`
}

// HealthStatus buckets for the composite readiness score.

type HealthStatus string

const (
	HealthExcellent      HealthStatus = "excellent"
	HealthGood           HealthStatus = "good"
	HealthFair           HealthStatus = "fair"
	HealthNeedsAttention HealthStatus = "needs_attention"
	HealthCritical       HealthStatus = "critical"
)

// HealthStatusForScore maps an overall 0-100 score to its bucket.
func HealthStatusForScore(score int) HealthStatus {
	switch {
	case score >= 90:
		return HealthExcellent
	case score >= 75:
		return HealthGood
	case score >= 60:
		return HealthFair
	case score >= 40:
		return HealthNeedsAttention
	default:
		return HealthCritical
	}
}
