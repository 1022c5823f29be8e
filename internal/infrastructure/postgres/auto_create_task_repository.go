package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/Gatepass-api/internal/domain"
	"github.com/jhoicas/Gatepass-api/internal/domain/entity"
	"github.com/jhoicas/Gatepass-api/internal/domain/repository"
)

var _ repository.AutoCreateTaskRepository = (*AutoCreateTaskRepo)(nil)

const taskColumns = `id, parent_type, parent_id, direction, company_id, status, attempts, last_error, record_id, created_at, updated_at`

// AutoCreateTaskRepo tareas de creación automática. La idempotencia la da el UNIQUE
// (parent_type, parent_id, direction).
type AutoCreateTaskRepo struct {
	q Querier
}

// NewAutoCreateTaskRepository construye el adaptador. Pasar pool o tx (Querier).
func NewAutoCreateTaskRepository(q Querier) *AutoCreateTaskRepo {
	return &AutoCreateTaskRepo{q: q}
}

// Claim inserta la tarea con ON CONFLICT DO NOTHING; claimed=false si la clave ya existía.
func (r *AutoCreateTaskRepo) Claim(ctx context.Context, task *entity.AutoCreateTask) (bool, error) {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.Status == "" {
		task.Status = entity.TaskPending
	}
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
	query := `
		INSERT INTO auto_create_tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (parent_type, parent_id, direction) DO NOTHING`
	tag, err := r.q.Exec(ctx, query,
		task.ID, string(task.ParentType), task.ParentID, string(task.Direction), task.CompanyID,
		task.Status, task.Attempts, nullIfEmpty(task.LastError), nullIfEmpty(task.RecordID),
		task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("claim auto-create task: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetByID nil, nil si no existe.
func (r *AutoCreateTaskRepo) GetByID(ctx context.Context, id string) (*entity.AutoCreateTask, error) {
	task, err := scanTask(r.q.QueryRow(ctx, `SELECT `+taskColumns+` FROM auto_create_tasks WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get auto-create task: %w", err)
	}
	return task, nil
}

// RecordAttempt guarda el número de intentos y el último error.
func (r *AutoCreateTaskRepo) RecordAttempt(ctx context.Context, id string, attempts int, lastErr string) error {
	return r.exec(ctx, `UPDATE auto_create_tasks SET attempts = $2, last_error = $3, updated_at = now() WHERE id = $1`,
		id, attempts, nullIfEmpty(lastErr))
}

// MarkDone cierra la tarea con el pase creado ("" si no hizo falta crear).
func (r *AutoCreateTaskRepo) MarkDone(ctx context.Context, id, recordID string) error {
	return r.exec(ctx, `UPDATE auto_create_tasks SET status = $2, record_id = $3, updated_at = now() WHERE id = $1`,
		id, entity.TaskDone, nullIfEmpty(recordID))
}

// MarkFailed escala la tarea: no se vuelve a intentar.
func (r *AutoCreateTaskRepo) MarkFailed(ctx context.Context, id string, attempts int, lastErr string) error {
	return r.exec(ctx, `UPDATE auto_create_tasks SET status = $2, attempts = $3, last_error = $4, updated_at = now() WHERE id = $1`,
		id, entity.TaskFailed, attempts, nullIfEmpty(lastErr))
}

// ListByStatus tareas en el estado dado, las más antiguas primero.
func (r *AutoCreateTaskRepo) ListByStatus(ctx context.Context, status string, limit int) ([]*entity.AutoCreateTask, error) {
	query := `SELECT ` + taskColumns + ` FROM auto_create_tasks WHERE status = $1 ORDER BY created_at`
	args := []any{status}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list auto-create tasks: %w", err)
	}
	defer rows.Close()
	list := make([]*entity.AutoCreateTask, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan auto-create task: %w", err)
		}
		list = append(list, task)
	}
	return list, rows.Err()
}

func (r *AutoCreateTaskRepo) exec(ctx context.Context, query string, args ...any) error {
	tag, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update auto-create task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanTask(row pgx.Row) (*entity.AutoCreateTask, error) {
	var t entity.AutoCreateTask
	var parentType, direction string
	var lastErr, recordID *string
	err := row.Scan(&t.ID, &parentType, &t.ParentID, &direction, &t.CompanyID, &t.Status, &t.Attempts,
		&lastErr, &recordID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.ParentType = entity.DocumentType(parentType)
	t.Direction = entity.Direction(direction)
	t.LastError = derefStr(lastErr)
	t.RecordID = derefStr(recordID)
	return &t, nil
}
