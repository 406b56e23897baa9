package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/docufill/pkg/models"
)

// GetOrCreateAgent registers a skill identity by name on first use. The
// insert is idempotent: a concurrent registration of the same name resolves
// to the existing row.
func (s *Postgres) GetOrCreateAgent(ctx context.Context, name, category, model string) (*models.Agent, error) {
	query := `
	INSERT INTO agents (id, name, category, model, created_at)
	VALUES ($1, $2, $3, $4, NOW())
	ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
	RETURNING id, name, category, model, created_at
	`

	agent := &models.Agent{}
	err := s.db.QueryRowContext(ctx, query, uuid.NewString(), name, category, model).Scan(
		&agent.ID, &agent.Name, &agent.Category, &agent.Model, &agent.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create agent %s: %w", name, err)
	}

	return agent, nil
}

// CreateTask inserts a new task record.
func (s *Postgres) CreateTask(ctx context.Context, task *models.Task) error {
	query := `
	INSERT INTO agent_tasks (id, agent_id, task_type, input, status, created_at)
	VALUES ($1, $2, $3, $4, $5, NOW())
	RETURNING created_at
	`

	err := s.db.QueryRowContext(
		ctx, query,
		task.ID, task.AgentID, task.TaskType, task.Input, task.Status,
	).Scan(&task.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	return nil
}

// CompleteTask appends the terminal output and accounting fields. Only a
// task still in processing can be completed.
func (s *Postgres) CompleteTask(ctx context.Context, id, output string, usage TaskUsage) error {
	query := `
	UPDATE agent_tasks
	SET output = $2, status = $3, prompt_tokens = $4, completion_tokens = $5,
	    total_tokens = $6, cost_usd = $7, completed_at = NOW()
	WHERE id = $1 AND status = $8
	`

	result, err := s.db.ExecContext(
		ctx, query,
		id, output, models.TaskCompleted,
		usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens, usage.CostUSD,
		models.TaskProcessing,
	)
	if err != nil {
		return fmt.Errorf("failed to complete task: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check task update: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task %s not in processing state: %w", id, ErrNotFound)
	}

	return nil
}

// FailTask appends the error text. Only a task still in processing can fail.
func (s *Postgres) FailTask(ctx context.Context, id, errorText string, usage TaskUsage) error {
	query := `
	UPDATE agent_tasks
	SET error_text = $2, status = $3, prompt_tokens = $4, completion_tokens = $5,
	    total_tokens = $6, cost_usd = $7, completed_at = NOW()
	WHERE id = $1 AND status = $8
	`

	result, err := s.db.ExecContext(
		ctx, query,
		id, errorText, models.TaskFailed,
		usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens, usage.CostUSD,
		models.TaskProcessing,
	)
	if err != nil {
		return fmt.Errorf("failed to fail task: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check task update: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task %s not in processing state: %w", id, ErrNotFound)
	}

	return nil
}

// GetTask retrieves one task record.
func (s *Postgres) GetTask(ctx context.Context, id string) (*models.Task, error) {
	query := `
	SELECT id, agent_id, task_type, input, output, status, prompt_tokens,
	       completion_tokens, total_tokens, cost_usd, error_text, created_at, completed_at
	FROM agent_tasks
	WHERE id = $1
	`

	task := &models.Task{}
	var output, errorText sql.NullString
	var completedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&task.ID, &task.AgentID, &task.TaskType, &task.Input, &output, &task.Status,
		&task.PromptTokens, &task.CompletionTokens, &task.TotalTokens, &task.CostUSD,
		&errorText, &task.CreatedAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	if output.Valid {
		task.Output = &output.String
	}
	if errorText.Valid {
		task.ErrorText = &errorText.String
	}
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}

	return task, nil
}
