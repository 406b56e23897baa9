package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/docufill/pkg/models"
)

// UpsertEntity inserts or merges a knowledge-graph entity. The ON CONFLICT
// clause makes the check-then-write a single atomic unit, so concurrent
// writers on the same (type, value) key cannot create duplicates.
func (s *Postgres) UpsertEntity(ctx context.Context, entity *models.KnowledgeEntity) (*models.KnowledgeEntity, error) {
	if entity.ID == "" {
		entity.ID = uuid.NewString()
	}

	query := `
	INSERT INTO knowledge_entities (
		id, entity_type, entity_value, source_document_id, source_document_type,
		confidence, usage_count, first_seen_at, last_updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, 1, NOW(), NOW()
	)
	ON CONFLICT (entity_type, entity_value) DO UPDATE
	SET confidence = GREATEST(knowledge_entities.confidence, EXCLUDED.confidence),
	    usage_count = knowledge_entities.usage_count + 1,
	    last_updated_at = NOW()
	RETURNING id, entity_type, entity_value, source_document_id, source_document_type,
	          confidence, usage_count, first_seen_at, last_updated_at
	`

	row := s.db.QueryRowContext(
		ctx, query,
		entity.ID, entity.EntityType, entity.EntityValue,
		entity.SourceDocID, entity.SourceDocType, entity.Confidence,
	)

	stored, err := scanEntity(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert entity: %w", err)
	}

	log.Debug().
		Str("entity_type", stored.EntityType).
		Int("usage_count", stored.UsageCount).
		Float64("confidence", stored.Confidence).
		Msg("entity upserted")

	return stored, nil
}

// IncrementUsage bumps the usage counter for an existing (type, value) pair.
// Confidence is deliberately left alone: using a value again is not new
// evidence about how sure we are of it.
func (s *Postgres) IncrementUsage(ctx context.Context, entityType, entityValue string) (*models.KnowledgeEntity, error) {
	query := `
	UPDATE knowledge_entities
	SET usage_count = usage_count + 1, last_updated_at = NOW()
	WHERE entity_type = $1 AND entity_value = $2
	RETURNING id, entity_type, entity_value, source_document_id, source_document_type,
	          confidence, usage_count, first_seen_at, last_updated_at
	`

	row := s.db.QueryRowContext(ctx, query, entityType, entityValue)
	entity, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("entity (%s, %s): %w", entityType, entityValue, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to increment entity usage: %w", err)
	}

	log.Debug().
		Str("entity_type", entity.EntityType).
		Int("usage_count", entity.UsageCount).
		Msg("entity usage incremented")

	return entity, nil
}

// FindEntity looks up one entity by exact (type, value).
func (s *Postgres) FindEntity(ctx context.Context, entityType, entityValue string) (*models.KnowledgeEntity, error) {
	query := entitySelect + ` WHERE entity_type = $1 AND entity_value = $2`

	row := s.db.QueryRowContext(ctx, query, entityType, entityValue)
	entity, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("entity (%s, %s): %w", entityType, entityValue, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find entity: %w", err)
	}

	return entity, nil
}

// SearchEntities returns one page of matching entities plus the total count,
// ordered by usage count desc then recency desc.
func (s *Postgres) SearchEntities(ctx context.Context, search EntitySearch) ([]*models.KnowledgeEntity, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}

	if search.EntityType != "" {
		args = append(args, search.EntityType)
		where += fmt.Sprintf(" AND entity_type = $%d", len(args))
	}
	if search.Term != "" {
		args = append(args, "%"+search.Term+"%")
		where += fmt.Sprintf(" AND entity_value ILIKE $%d", len(args))
	}
	if search.MinConfidence > 0 {
		args = append(args, search.MinConfidence)
		where += fmt.Sprintf(" AND confidence >= $%d", len(args))
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM knowledge_entities` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count entities: %w", err)
	}

	limit := search.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, search.Offset)
	query := entitySelect + where + fmt.Sprintf(
		" ORDER BY usage_count DESC, last_updated_at DESC LIMIT $%d OFFSET $%d",
		len(args)-1, len(args),
	)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search entities: %w", err)
	}
	defer rows.Close()

	var entities []*models.KnowledgeEntity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan entity: %w", err)
		}
		entities = append(entities, entity)
	}

	return entities, total, rows.Err()
}

// CandidatesForField returns entities whose type loosely matches the
// placeholder's field name or declared type, substring match either direction.
func (s *Postgres) CandidatesForField(ctx context.Context, fieldName, fieldType string, limit int) ([]*models.KnowledgeEntity, error) {
	if limit <= 0 {
		limit = 10
	}

	query := entitySelect + `
	WHERE entity_type ILIKE '%' || $1 || '%'
	   OR $1 ILIKE '%' || entity_type || '%'
	   OR entity_type ILIKE '%' || $2 || '%'
	   OR $2 ILIKE '%' || entity_type || '%'
	ORDER BY usage_count DESC, confidence DESC
	LIMIT $3
	`

	rows, err := s.db.QueryContext(ctx, query, fieldName, fieldType, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to match entities for field: %w", err)
	}
	defer rows.Close()

	var entities []*models.KnowledgeEntity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		entities = append(entities, entity)
	}

	return entities, rows.Err()
}

const entitySelect = `
	SELECT id, entity_type, entity_value, source_document_id, source_document_type,
	       confidence, usage_count, first_seen_at, last_updated_at
	FROM knowledge_entities`

func scanEntity(row rowScanner) (*models.KnowledgeEntity, error) {
	entity := &models.KnowledgeEntity{}
	var sourceDocID, sourceDocType sql.NullString

	err := row.Scan(
		&entity.ID, &entity.EntityType, &entity.EntityValue, &sourceDocID, &sourceDocType,
		&entity.Confidence, &entity.UsageCount, &entity.FirstSeenAt, &entity.LastUpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if sourceDocID.Valid {
		entity.SourceDocID = &sourceDocID.String
	}
	if sourceDocType.Valid {
		entity.SourceDocType = &sourceDocType.String
	}

	return entity, nil
}
