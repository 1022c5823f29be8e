package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/Gatepass-api/internal/application/gatepass"
	"github.com/jhoicas/Gatepass-api/internal/domain/repository"
)

var _ gatepass.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// Run inicia una transacción, ejecuta fn con repos atados a la tx y hace Commit o Rollback.
// Los advisory locks del libro de asignación son de transacción y se liberan con ella.
func (r *TxRunner) Run(ctx context.Context, fn func(
	recordRepo repository.MovementRecordRepository,
	allocRepo repository.AllocationRepository,
	linkRepo repository.ParentLinkRepository,
) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	recordRepo := NewMovementRecordRepository(tx)
	allocRepo := NewAllocationRepository(tx)
	linkRepo := NewParentLinkRepository(tx)

	if err := fn(recordRepo, allocRepo, linkRepo); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
