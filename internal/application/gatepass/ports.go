package gatepass

import (
	"context"

	"github.com/jhoicas/Gatepass-api/internal/domain/entity"
	"github.com/jhoicas/Gatepass-api/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción de BD, pasando repositorios atados a esa tx.
// Los bloqueos del libro de asignación se liberan con el Commit o Rollback.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		recordRepo repository.MovementRecordRepository,
		allocRepo repository.AllocationRepository,
		linkRepo repository.ParentLinkRepository,
	) error) error
}

// DocumentAdapter puerto hacia el sistema de documentos origen (ERP). Las lecturas devuelven
// domain.ErrNotFound si el documento no existe y domain.ErrAdapterUnavailable si el sistema falla.
type DocumentAdapter interface {
	GetSnapshot(ctx context.Context, ref entity.DocumentRef) (*entity.ParentDocumentSnapshot, error)
	GetRequiredQuantities(ctx context.Context, ref entity.DocumentRef) (map[string]entity.RequiredQuantity, error)
	GetComplianceSnapshot(ctx context.Context, ref entity.DocumentRef) (*entity.ComplianceSnapshot, error)
	GetDocumentStatus(ctx context.Context, ref entity.DocumentRef) (entity.DocumentStatus, error)
	// UpdateReference escribe (o limpia con nil) el pase dueño en el documento origen.
	UpdateReference(ctx context.Context, ref entity.DocumentRef, recordID *string) error
	// CreateReceipt materializa el documento de recepción a partir de un pase confirmado.
	CreateReceipt(ctx context.Context, rec *entity.MovementRecord) (entity.DocumentRef, error)
}

// AutoCreateQueue cola de creación automática. Enqueue no bloquea.
type AutoCreateQueue interface {
	Enqueue(ctx context.Context, task *entity.AutoCreateTask) error
}

// Observer métricas del caso de uso. Puede ser nil.
type Observer interface {
	GuardFailed(kind string)
	Transition(status entity.RecordStatus)
	AutoCreate(outcome string)
}

type nopObserver struct{}

func (nopObserver) GuardFailed(string)             {}
func (nopObserver) Transition(entity.RecordStatus) {}
func (nopObserver) AutoCreate(string)              {}
