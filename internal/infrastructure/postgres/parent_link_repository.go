package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/Gatepass-api/internal/domain/entity"
	"github.com/jhoicas/Gatepass-api/internal/domain/repository"
)

var _ repository.ParentLinkRepository = (*ParentLinkRepo)(nil)

// ParentLinkRepo índice documento origen -> pase dueño.
type ParentLinkRepo struct {
	q Querier
}

// NewParentLinkRepository construye el adaptador. Pasar pool o tx (Querier).
func NewParentLinkRepository(q Querier) *ParentLinkRepo {
	return &ParentLinkRepo{q: q}
}

// Get devuelve el pase dueño o "" si no hay vínculo.
func (r *ParentLinkRepo) Get(ctx context.Context, parent entity.DocumentRef) (string, error) {
	var recordID string
	err := r.q.QueryRow(ctx,
		`SELECT record_id FROM parent_links WHERE parent_type = $1 AND parent_id = $2`,
		string(parent.Type), parent.ID,
	).Scan(&recordID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("get parent link: %w", err)
	}
	return recordID, nil
}

// Set inserta o reemplaza el dueño.
func (r *ParentLinkRepo) Set(ctx context.Context, parent entity.DocumentRef, recordID string) error {
	query := `
		INSERT INTO parent_links (parent_type, parent_id, record_id, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (parent_type, parent_id)
		DO UPDATE SET record_id = EXCLUDED.record_id, updated_at = now()`
	if _, err := r.q.Exec(ctx, query, string(parent.Type), parent.ID, recordID); err != nil {
		return fmt.Errorf("set parent link: %w", err)
	}
	return nil
}

// Clear borra el vínculo.
func (r *ParentLinkRepo) Clear(ctx context.Context, parent entity.DocumentRef) error {
	_, err := r.q.Exec(ctx, `DELETE FROM parent_links WHERE parent_type = $1 AND parent_id = $2`, string(parent.Type), parent.ID)
	if err != nil {
		return fmt.Errorf("clear parent link: %w", err)
	}
	return nil
}

// ClearIfOwner borra el vínculo solo si el dueño es recordID.
func (r *ParentLinkRepo) ClearIfOwner(ctx context.Context, parent entity.DocumentRef, recordID string) (bool, error) {
	tag, err := r.q.Exec(ctx,
		`DELETE FROM parent_links WHERE parent_type = $1 AND parent_id = $2 AND record_id = $3`,
		string(parent.Type), parent.ID, recordID,
	)
	if err != nil {
		return false, fmt.Errorf("clear parent link: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
