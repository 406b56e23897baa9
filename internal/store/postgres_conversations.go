package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/docufill/pkg/models"
)

// CreateConversation inserts a new conversation row at version 1.
func (s *Postgres) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	conv.Version = 1

	query := `
	INSERT INTO conversations (
		id, document_id, user_id, status, current_placeholder_id,
		total_fields, filled_fields, version, created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW()
	) RETURNING created_at, updated_at
	`

	err := s.db.QueryRowContext(
		ctx, query,
		conv.ID, conv.DocumentID, conv.UserID, conv.Status, conv.CurrentPlaceholderID,
		conv.TotalFields, conv.FilledFields, conv.Version,
	).Scan(&conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}

	return nil
}

// GetConversation retrieves a conversation by ID.
func (s *Postgres) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	query := `
	SELECT id, document_id, user_id, status, current_placeholder_id,
	       total_fields, filled_fields, version, created_at, updated_at
	FROM conversations
	WHERE id = $1
	`

	conv := &models.Conversation{}
	var current sql.NullString

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&conv.ID, &conv.DocumentID, &conv.UserID, &conv.Status, &current,
		&conv.TotalFields, &conv.FilledFields, &conv.Version, &conv.CreatedAt, &conv.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	if current.Valid {
		conv.CurrentPlaceholderID = &current.String
	}

	return conv, nil
}

// UpdateConversation writes the conversation if the caller holds the current
// version; a stale version returns ErrVersionConflict. On success the stored
// and in-memory versions advance by one.
func (s *Postgres) UpdateConversation(ctx context.Context, conv *models.Conversation) error {
	query := `
	UPDATE conversations
	SET status = $2, current_placeholder_id = $3, total_fields = $4,
	    filled_fields = $5, version = version + 1, updated_at = NOW()
	WHERE id = $1 AND version = $6
	`

	result, err := s.db.ExecContext(
		ctx, query,
		conv.ID, conv.Status, conv.CurrentPlaceholderID,
		conv.TotalFields, conv.FilledFields, conv.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check conversation update: %w", err)
	}
	if rows == 0 {
		// Distinguish a missing row from a lost race.
		if _, getErr := s.GetConversation(ctx, conv.ID); getErr != nil {
			return getErr
		}
		return fmt.Errorf("conversation %s: %w", conv.ID, ErrVersionConflict)
	}

	conv.Version++
	return nil
}
