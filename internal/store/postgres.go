package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/docufill/pkg/models"
)

// Postgres implements Store on a Postgres database.
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an existing database handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Open connects to Postgres using the given URL, falling back to the
// DATABASE_URL environment variable.
func Open(databaseURL string) (*Postgres, error) {
	if databaseURL == "" {
		databaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if databaseURL == "" {
		return nil, errors.New("no database URL configured")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &Postgres{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Postgres) Close() error {
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	file_name TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'uploaded',
	document_type TEXT,
	classification_confidence DOUBLE PRECISION,
	completion_percentage INTEGER NOT NULL DEFAULT 0,
	metadata TEXT NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS placeholders (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	field_name TEXT NOT NULL,
	field_type TEXT NOT NULL DEFAULT 'text',
	original_text TEXT NOT NULL DEFAULT '',
	position INTEGER NOT NULL,
	filled_value TEXT,
	suggested_value TEXT,
	suggestion_source TEXT,
	suggestion_confidence DOUBLE PRECISION,
	validation_status TEXT NOT NULL DEFAULT 'pending',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_placeholders_document ON placeholders(document_id, position);

CREATE TABLE IF NOT EXISTS knowledge_entities (
	id TEXT PRIMARY KEY,
	entity_type TEXT NOT NULL,
	entity_value TEXT NOT NULL,
	source_document_id TEXT,
	source_document_type TEXT,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	usage_count INTEGER NOT NULL DEFAULT 1,
	first_seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (entity_type, entity_value)
);

CREATE TABLE IF NOT EXISTS agents (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	category TEXT NOT NULL DEFAULT '',
	model TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS agent_tasks (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL REFERENCES agents(id),
	task_type TEXT NOT NULL,
	input TEXT NOT NULL DEFAULT '{}',
	output TEXT,
	status TEXT NOT NULL DEFAULT 'pending',
	prompt_tokens INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	total_tokens INTEGER NOT NULL DEFAULT 0,
	cost_usd DOUBLE PRECISION NOT NULL DEFAULT 0,
	error_text TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	completed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	user_id TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',
	current_placeholder_id TEXT,
	total_fields INTEGER NOT NULL DEFAULT 0,
	filled_fields INTEGER NOT NULL DEFAULT 0,
	version INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// EnsureSchema creates the tables if they do not exist.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	log.Debug().Msg("database schema ensured")
	return nil
}

// CreateDocument inserts a new document row.
func (s *Postgres) CreateDocument(ctx context.Context, doc *models.Document) error {
	query := `
	INSERT INTO documents (
		id, user_id, file_name, status, document_type, classification_confidence,
		completion_percentage, metadata, created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW()
	) RETURNING created_at, updated_at
	`

	err := s.db.QueryRowContext(
		ctx, query,
		doc.ID, doc.UserID, doc.FileName, doc.Status, doc.DocumentType,
		doc.ClassificationConfidence, doc.CompletionPercentage, nullableJSON(doc.Metadata),
	).Scan(&doc.CreatedAt, &doc.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}

	return nil
}

// GetDocument retrieves a document by ID.
func (s *Postgres) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	query := `
	SELECT id, user_id, file_name, status, document_type, classification_confidence,
	       completion_percentage, metadata, created_at, updated_at
	FROM documents
	WHERE id = $1
	`

	doc := &models.Document{}
	var docType sql.NullString
	var confidence sql.NullFloat64

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&doc.ID, &doc.UserID, &doc.FileName, &doc.Status, &docType, &confidence,
		&doc.CompletionPercentage, &doc.Metadata, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	if docType.Valid {
		doc.DocumentType = &docType.String
	}
	if confidence.Valid {
		doc.ClassificationConfidence = &confidence.Float64
	}

	return doc, nil
}

// UpdateDocument writes the mutable document fields.
func (s *Postgres) UpdateDocument(ctx context.Context, doc *models.Document) error {
	query := `
	UPDATE documents
	SET status = $2, document_type = $3, classification_confidence = $4,
	    completion_percentage = $5, metadata = $6, updated_at = NOW()
	WHERE id = $1
	`

	result, err := s.db.ExecContext(
		ctx, query,
		doc.ID, doc.Status, doc.DocumentType, doc.ClassificationConfidence,
		doc.CompletionPercentage, nullableJSON(doc.Metadata),
	)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("document %s: %w", doc.ID, ErrNotFound)
	}

	return nil
}

// ListDocumentsByUser returns all of a user's documents, newest first.
func (s *Postgres) ListDocumentsByUser(ctx context.Context, userID string) ([]*models.Document, error) {
	query := `
	SELECT id, user_id, file_name, status, document_type, classification_confidence,
	       completion_percentage, metadata, created_at, updated_at
	FROM documents
	WHERE user_id = $1
	ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc := &models.Document{}
		var docType sql.NullString
		var confidence sql.NullFloat64

		if err := rows.Scan(
			&doc.ID, &doc.UserID, &doc.FileName, &doc.Status, &docType, &confidence,
			&doc.CompletionPercentage, &doc.Metadata, &doc.CreatedAt, &doc.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}

		if docType.Valid {
			doc.DocumentType = &docType.String
		}
		if confidence.Valid {
			doc.ClassificationConfidence = &confidence.Float64
		}
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

// CreatePlaceholders bulk-inserts the placeholders detected in one document.
func (s *Postgres) CreatePlaceholders(ctx context.Context, placeholders []*models.Placeholder) error {
	if len(placeholders) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `
	INSERT INTO placeholders (
		id, document_id, field_name, field_type, original_text, position,
		filled_value, suggested_value, suggestion_source, suggestion_confidence,
		validation_status, created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW()
	)
	`

	for _, p := range placeholders {
		if _, err := tx.ExecContext(
			ctx, query,
			p.ID, p.DocumentID, p.FieldName, p.FieldType, p.OriginalText, p.Position,
			p.FilledValue, p.SuggestedValue, p.SuggestionSource, p.SuggestionConfidence,
			p.ValidationStatus,
		); err != nil {
			return fmt.Errorf("failed to insert placeholder %s: %w", p.FieldName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit placeholders: %w", err)
	}

	return nil
}

// GetPlaceholder retrieves a placeholder by ID.
func (s *Postgres) GetPlaceholder(ctx context.Context, id string) (*models.Placeholder, error) {
	query := placeholderSelect + ` WHERE id = $1`

	row := s.db.QueryRowContext(ctx, query, id)
	p, err := scanPlaceholder(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("placeholder %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get placeholder: %w", err)
	}

	return p, nil
}

// ListPlaceholders returns a document's placeholders ordered by position.
func (s *Postgres) ListPlaceholders(ctx context.Context, documentID string) ([]*models.Placeholder, error) {
	query := placeholderSelect + ` WHERE document_id = $1 ORDER BY position ASC`

	rows, err := s.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list placeholders: %w", err)
	}
	defer rows.Close()

	var placeholders []*models.Placeholder
	for rows.Next() {
		p, err := scanPlaceholder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan placeholder: %w", err)
		}
		placeholders = append(placeholders, p)
	}

	return placeholders, rows.Err()
}

// UpdatePlaceholder writes the mutable placeholder fields.
func (s *Postgres) UpdatePlaceholder(ctx context.Context, p *models.Placeholder) error {
	query := `
	UPDATE placeholders
	SET filled_value = $2, suggested_value = $3, suggestion_source = $4,
	    suggestion_confidence = $5, validation_status = $6, updated_at = NOW()
	WHERE id = $1
	`

	result, err := s.db.ExecContext(
		ctx, query,
		p.ID, p.FilledValue, p.SuggestedValue, p.SuggestionSource,
		p.SuggestionConfidence, p.ValidationStatus,
	)
	if err != nil {
		return fmt.Errorf("failed to update placeholder: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("placeholder %s: %w", p.ID, ErrNotFound)
	}

	return nil
}

const placeholderSelect = `
	SELECT id, document_id, field_name, field_type, original_text, position,
	       filled_value, suggested_value, suggestion_source, suggestion_confidence,
	       validation_status, created_at, updated_at
	FROM placeholders`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPlaceholder(row rowScanner) (*models.Placeholder, error) {
	p := &models.Placeholder{}
	var filled, suggested, source sql.NullString
	var confidence sql.NullFloat64

	err := row.Scan(
		&p.ID, &p.DocumentID, &p.FieldName, &p.FieldType, &p.OriginalText, &p.Position,
		&filled, &suggested, &source, &confidence,
		&p.ValidationStatus, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if filled.Valid {
		p.FilledValue = &filled.String
	}
	if suggested.Valid {
		p.SuggestedValue = &suggested.String
	}
	if source.Valid {
		p.SuggestionSource = &source.String
	}
	if confidence.Valid {
		p.SuggestionConfidence = &confidence.Float64
	}

	return p, nil
}

func nullableJSON(s string) string {
	if strings.TrimSpace(s) == "" {
		return "{}"
	}
	return s
}
