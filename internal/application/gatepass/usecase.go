package gatepass

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jhoicas/Gatepass-api/internal/domain"
	"github.com/jhoicas/Gatepass-api/internal/domain/compliance"
	"github.com/jhoicas/Gatepass-api/internal/domain/entity"
	"github.com/jhoicas/Gatepass-api/internal/domain/repository"
	"github.com/jhoicas/Gatepass-api/pkg/logger"
)

// Options parámetros de negocio del caso de uso.
type Options struct {
	Compliance            compliance.Policy
	DiscrepancyEditWindow time.Duration
	AutoCreateTypes       []entity.DocumentType
	Now                   func() time.Time
}

// UseCase máquina de estados de pases de portería: comandos de operador, eventos de documentos
// origen y creación automática. Toda transición corre en una transacción (TxRunner) y consulta el
// libro de asignación y la compuerta de cumplimiento antes de confirmar.
type UseCase struct {
	txRunner   TxRunner
	recordRepo repository.MovementRecordRepository
	taskRepo   repository.AutoCreateTaskRepository
	adapter    DocumentAdapter
	queue      AutoCreateQueue
	observer   Observer
	log        *logger.Logger
	opts       Options
}

// NewUseCase construye el caso de uso. recordRepo se usa para lecturas fuera de transacción.
func NewUseCase(
	txRunner TxRunner,
	recordRepo repository.MovementRecordRepository,
	taskRepo repository.AutoCreateTaskRepository,
	adapter DocumentAdapter,
	queue AutoCreateQueue,
	observer Observer,
	log *logger.Logger,
	opts Options,
) *UseCase {
	if observer == nil {
		observer = nopObserver{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DiscrepancyEditWindow == 0 {
		opts.DiscrepancyEditWindow = 24 * time.Hour
	}
	return &UseCase{
		txRunner:   txRunner,
		recordRepo: recordRepo,
		taskRepo:   taskRepo,
		adapter:    adapter,
		queue:      queue,
		observer:   observer,
		log:        log.Named("gatepass"),
		opts:       opts,
	}
}

// SetQueue conecta la cola después de construirla (la cola necesita al caso de uso como handler).
func (uc *UseCase) SetQueue(q AutoCreateQueue) {
	uc.queue = q
}

func (uc *UseCase) now() time.Time {
	return uc.opts.Now().UTC()
}

// loadOwned lee un pase fuera de transacción y valida la empresa.
func (uc *UseCase) loadOwned(ctx context.Context, id, companyID string) (*entity.MovementRecord, error) {
	rec, err := uc.recordRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, domain.ErrNotFound
	}
	if companyID != "" && rec.CompanyID != companyID {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

// lockOwned lee con FOR UPDATE dentro de la transacción y valida la empresa.
func lockOwned(ctx context.Context, recordRepo repository.MovementRecordRepository, id, companyID string) (*entity.MovementRecord, error) {
	rec, err := recordRepo.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil || (companyID != "" && rec.CompanyID != companyID) {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

// snapshot lee el documento origen; los errores de transporte se normalizan a ErrAdapterUnavailable.
func (uc *UseCase) snapshot(ctx context.Context, ref entity.DocumentRef) (*entity.ParentDocumentSnapshot, error) {
	snap, err := uc.adapter.GetSnapshot(ctx, ref)
	if err != nil {
		return nil, adapterErr(err)
	}
	if snap == nil {
		return nil, domain.ErrNotFound
	}
	return snap, nil
}

func adapterErr(err error) error {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrAdapterUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrAdapterUnavailable, err)
}

// propagateReference escribe la referencia en el documento origen después del commit.
// Un fallo no revierte la transición: el índice local es la fuente de verdad.
func (uc *UseCase) propagateReference(ctx context.Context, parent entity.DocumentRef, recordID *string) {
	if parent.IsZero() {
		return
	}
	if err := uc.adapter.UpdateReference(ctx, parent, recordID); err != nil {
		ev := uc.log.Warn().Err(err).Str("parent_type", string(parent.Type)).Str("parent_id", parent.ID)
		if recordID != nil {
			ev = ev.Str("record_id", *recordID)
		}
		ev.Msg("no se pudo propagar la referencia al documento origen")
	}
}

// observeGuard registra la guarda fallida en métricas.
func (uc *UseCase) observeGuard(err error) {
	if ge, ok := domain.AsGuardError(err); ok {
		uc.observer.GuardFailed(string(ge.Kind))
	}
}
