package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Gatepass-api/internal/domain/entity"
)

// RecordFilter filtros de listado de pases.
type RecordFilter struct {
	CompanyID  string
	Direction  entity.Direction
	Statuses   []entity.RecordStatus
	ParentType entity.DocumentType
	ParentID   string
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// MovementRecordRepository puerto de persistencia para pases de portería (cabecera + líneas).
// GetByID y GetForUpdate devuelven nil, nil si no existe.
type MovementRecordRepository interface {
	Create(ctx context.Context, rec *entity.MovementRecord) error
	Update(ctx context.Context, rec *entity.MovementRecord) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*entity.MovementRecord, error)
	GetForUpdate(ctx context.Context, id string) (*entity.MovementRecord, error)
	List(ctx context.Context, f RecordFilter) ([]*entity.MovementRecord, error)
	ListByParent(ctx context.Context, parent entity.DocumentRef) ([]*entity.MovementRecord, error)
	// ListReturnReferences registros de entrada cuyo ReturnLink apunta al registro o al traslado dado.
	ListReturnReferences(ctx context.Context, outboundRecordID, outboundTransferID string) ([]*entity.MovementRecord, error)
	// FindDraftReturn borrador de entrada que espera la devolución del traslado de salida.
	FindDraftReturn(ctx context.Context, outboundTransferID string) (*entity.MovementRecord, error)
}

// AllocationKey alcance del bloqueo y de la suma del libro de asignación.
// ReturnFlow: el alcance es el traslado de salida que se revierte (return_transfer_id), no el origen.
type AllocationKey struct {
	ParentType entity.DocumentType
	ParentID   string
	ItemCode   string
	Direction  entity.Direction
	ReturnFlow bool
}

// String clave estable para locks.
func (k AllocationKey) String() string {
	s := string(k.ParentType) + "|" + k.ParentID + "|" + k.ItemCode + "|" + string(k.Direction)
	if k.ReturnFlow {
		s += "|return"
	}
	return s
}

// AllocationRepository libro de asignación: la asignación es una consulta sobre registros vivos.
type AllocationRepository interface {
	// Lock toma un bloqueo exclusivo sobre la clave hasta el fin de la transacción.
	Lock(ctx context.Context, key AllocationKey) error
	// SumConfirmed suma lo confirmado en registros con esos estados, excluyendo excludeRecordID.
	SumConfirmed(ctx context.Context, key AllocationKey, statuses []entity.RecordStatus, excludeRecordID string) (decimal.Decimal, error)
}

// ParentLinkRepository índice documento origen -> pase "dueño". Solo se escribe junto a transiciones.
type ParentLinkRepository interface {
	Get(ctx context.Context, parent entity.DocumentRef) (string, error)
	Set(ctx context.Context, parent entity.DocumentRef, recordID string) error
	Clear(ctx context.Context, parent entity.DocumentRef) error
	// ClearIfOwner limpia solo si el dueño es recordID; indica si limpió.
	ClearIfOwner(ctx context.Context, parent entity.DocumentRef, recordID string) (bool, error)
}

// AutoCreateTaskRepository tareas de creación automática con clave de idempotencia.
type AutoCreateTaskRepository interface {
	// Claim inserta la tarea si la clave no existe. claimed=false si ya estaba registrada.
	Claim(ctx context.Context, task *entity.AutoCreateTask) (claimed bool, err error)
	GetByID(ctx context.Context, id string) (*entity.AutoCreateTask, error)
	RecordAttempt(ctx context.Context, id string, attempts int, lastErr string) error
	MarkDone(ctx context.Context, id, recordID string) error
	MarkFailed(ctx context.Context, id string, attempts int, lastErr string) error
	ListByStatus(ctx context.Context, status string, limit int) ([]*entity.AutoCreateTask, error)
}
