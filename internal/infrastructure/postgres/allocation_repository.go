package postgres

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Gatepass-api/internal/domain/entity"
	"github.com/jhoicas/Gatepass-api/internal/domain/repository"
)

var _ repository.AllocationRepository = (*AllocationRepo)(nil)

// AllocationRepo libro de asignación: no hay tabla de saldos, la asignación es una suma sobre
// las líneas de los pases vivos. El bloqueo es un advisory lock de transacción por clave.
type AllocationRepo struct {
	q Querier
}

// NewAllocationRepository construye el adaptador. Debe recibir una tx: el lock vive hasta Commit o Rollback.
func NewAllocationRepository(q Querier) *AllocationRepo {
	return &AllocationRepo{q: q}
}

// Lock toma pg_advisory_xact_lock sobre el hash de la clave.
func (r *AllocationRepo) Lock(ctx context.Context, key repository.AllocationKey) error {
	if _, err := r.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key.String()); err != nil {
		return fmt.Errorf("allocation lock %s: %w", key.String(), err)
	}
	return nil
}

// SumConfirmed suma confirmada del ítem en pases con los estados dados, sin excludeRecordID.
func (r *AllocationRepo) SumConfirmed(ctx context.Context, key repository.AllocationKey, statuses []entity.RecordStatus, excludeRecordID string) (decimal.Decimal, error) {
	args := []any{key.ItemCode, string(key.Direction), statusStrings(statuses), excludeRecordID, key.ParentID}
	scope := `r.return_transfer_id = $5`
	if !key.ReturnFlow {
		scope = `r.parent_type = $6 AND r.parent_id = $5`
		args = append(args, string(key.ParentType))
	}
	query := `
		SELECT COALESCE(SUM(l.confirmed_qty), 0)
		FROM movement_record_lines l
		JOIN movement_records r ON r.id = l.record_id
		WHERE l.item_code = $1
		  AND r.direction = $2
		  AND r.status = ANY($3)
		  AND r.id <> $4
		  AND ` + scope
	var total decimal.Decimal
	err := r.q.QueryRow(ctx, query, args...).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum confirmed %s: %w", key.String(), err)
	}
	return total, nil
}
