package gatepass

import (
	"context"
	"errors"
	"fmt"

	"github.com/jhoicas/Gatepass-api/internal/domain"
	"github.com/jhoicas/Gatepass-api/internal/domain/entity"
	"github.com/jhoicas/Gatepass-api/internal/domain/repository"
)

// ParentEvent evento del sistema de documentos sobre un documento origen.
type ParentEvent struct {
	Ref       entity.DocumentRef
	CompanyID string
	IsReturn  bool // traslado que devuelve material de otro traslado de salida
}

// CascadeSummary resultado de la limpieza por anulación o borrado de un documento origen.
type CascadeSummary struct {
	Cancelled int `json:"cancelled"`
	Deleted   int `json:"deleted"`
	Detached  int `json:"detached"`
}

// OnParentSubmitted registra la tarea de creación automática y la encola. Nunca crea el pase en
// línea: el commit del documento origen no espera al libro ni a la compuerta.
// Devuelve nil, nil si el tipo no se crea automáticamente o si la tarea ya existía.
func (uc *UseCase) OnParentSubmitted(ctx context.Context, ev ParentEvent) (*entity.AutoCreateTask, error) {
	if !ev.Ref.Type.Valid() || ev.Ref.ID == "" {
		return nil, domain.ErrInvalidInput
	}
	if !uc.autoCreates(ev.Ref.Type) {
		return nil, nil
	}
	now := uc.now()
	task := &entity.AutoCreateTask{
		ParentType: ev.Ref.Type,
		ParentID:   ev.Ref.ID,
		Direction:  ev.direction(),
		CompanyID:  ev.CompanyID,
		Status:     entity.TaskPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	claimed, err := uc.taskRepo.Claim(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("error claiming auto-create task: %w", err)
	}
	if !claimed {
		uc.log.Debug().Str("key", task.Key()).Msg("tarea de creación automática ya registrada")
		uc.observer.AutoCreate("duplicate")
		return nil, nil
	}
	if uc.queue == nil {
		return task, nil
	}
	if err := uc.queue.Enqueue(ctx, task); err != nil {
		uc.EscalateAutoCreate(ctx, task, 0, err)
		return task, nil
	}
	uc.observer.AutoCreate("enqueued")
	return task, nil
}

func (ev ParentEvent) direction() entity.Direction {
	if ev.IsReturn && ev.Ref.Type == entity.DocStockTransfer {
		return entity.DirectionInbound
	}
	return ev.Ref.Type.DefaultDirection()
}

func (uc *UseCase) autoCreates(t entity.DocumentType) bool {
	for _, a := range uc.opts.AutoCreateTypes {
		if a == t {
			return true
		}
	}
	return false
}

// OnParentCancelled anula o elimina los pases creados automáticamente para el documento y deja sin
// documento origen a los manuales. Los vínculos de devolución hacia un traslado anulado se limpian.
func (uc *UseCase) OnParentCancelled(ctx context.Context, ev ParentEvent) (CascadeSummary, error) {
	return uc.cascadeParent(ctx, ev, true)
}

// OnParentDeleted solo limpia referencias; no cambia estados.
func (uc *UseCase) OnParentDeleted(ctx context.Context, ev ParentEvent) (CascadeSummary, error) {
	return uc.cascadeParent(ctx, ev, false)
}

func (uc *UseCase) cascadeParent(ctx context.Context, ev ParentEvent, cancel bool) (CascadeSummary, error) {
	var sum CascadeSummary
	if ev.Ref.IsZero() || !ev.Ref.Type.Valid() {
		return sum, domain.ErrInvalidInput
	}
	now := uc.now()
	err := uc.txRunner.Run(ctx, func(
		recordRepo repository.MovementRecordRepository,
		_ repository.AllocationRepository,
		linkRepo repository.ParentLinkRepository,
	) error {
		sum = CascadeSummary{}
		records, err := recordRepo.ListByParent(ctx, ev.Ref)
		if err != nil {
			return err
		}
		for _, r := range records {
			rec, err := recordRepo.GetForUpdate(ctx, r.ID)
			if err != nil {
				return err
			}
			if rec == nil || (ev.CompanyID != "" && rec.CompanyID != ev.CompanyID) {
				continue
			}
			if cancel && rec.Origin == entity.OriginAuto {
				switch {
				case rec.Status == entity.StatusDraft:
					if err := detachReturnReferences(ctx, recordRepo, rec.ID, "", now); err != nil {
						return err
					}
					if err := recordRepo.Delete(ctx, rec.ID); err != nil {
						return err
					}
					sum.Deleted++
					continue
				case rec.Status == entity.StatusSubmitted && rec.Receipt == nil:
					if _, err := cancelInTx(ctx, recordRepo, linkRepo, rec, now); err != nil {
						return err
					}
					sum.Cancelled++
					continue
				}
			}
			if rec.ParentID == "" {
				continue
			}
			rec.ParentID = ""
			rec.UpdatedAt = now
			if err := recordRepo.Update(ctx, rec); err != nil {
				return err
			}
			sum.Detached++
		}
		if ev.Ref.Type == entity.DocStockTransfer {
			if err := detachReturnReferences(ctx, recordRepo, "", ev.Ref.ID, now); err != nil {
				return err
			}
		}
		return linkRepo.Clear(ctx, ev.Ref)
	})
	if err != nil {
		return CascadeSummary{}, err
	}
	uc.log.Info().Str("parent_type", string(ev.Ref.Type)).Str("parent_id", ev.Ref.ID).Bool("cancelled", cancel).
		Int("anulados", sum.Cancelled).Int("eliminados", sum.Deleted).Int("desvinculados", sum.Detached).
		Msg("limpieza por documento origen")
	return sum, nil
}

// ReceiptEvent evento de un documento de recepción aguas abajo.
type ReceiptEvent struct {
	RecordID  string
	CompanyID string
	Receipt   entity.DocumentRef
}

// OnReceiptSubmitted Submitted -> Receipted. Idempotente ante la misma recepción.
func (uc *UseCase) OnReceiptSubmitted(ctx context.Context, ev ReceiptEvent) (*entity.MovementRecord, error) {
	if ev.RecordID == "" || ev.Receipt.IsZero() {
		return nil, domain.ErrInvalidInput
	}
	var out *entity.MovementRecord
	var transitioned bool
	err := uc.txRunner.Run(ctx, func(
		recordRepo repository.MovementRecordRepository,
		_ repository.AllocationRepository,
		_ repository.ParentLinkRepository,
	) error {
		rec, err := lockOwned(ctx, recordRepo, ev.RecordID, ev.CompanyID)
		if err != nil {
			return err
		}
		if rec.Receipt != nil && rec.Receipt.ID != ev.Receipt.ID {
			return fmt.Errorf("%w: el pase ya tiene la recepción %s", domain.ErrConflict, rec.Receipt.ID)
		}
		receipt := ev.Receipt
		rec.Receipt = &receipt
		switch rec.Status {
		case entity.StatusSubmitted:
			if err := rec.TransitionTo(entity.StatusReceipted, uc.now()); err != nil {
				return err
			}
			transitioned = true
		case entity.StatusReceipted:
			rec.UpdatedAt = uc.now()
		default:
			return domain.ErrInvalidTransition
		}
		if err := recordRepo.Update(ctx, rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	if transitioned {
		uc.observer.Transition(entity.StatusReceipted)
		uc.log.Info().Str("record_id", out.ID).Str("receipt_id", ev.Receipt.ID).Msg("pase recibido")
	}
	return out, nil
}

// OnReceiptCancelled quita el vínculo con la recepción anulada. El pase sigue en Receipted.
func (uc *UseCase) OnReceiptCancelled(ctx context.Context, ev ReceiptEvent) (*entity.MovementRecord, error) {
	if ev.RecordID == "" || ev.Receipt.IsZero() {
		return nil, domain.ErrInvalidInput
	}
	var out *entity.MovementRecord
	err := uc.txRunner.Run(ctx, func(
		recordRepo repository.MovementRecordRepository,
		_ repository.AllocationRepository,
		_ repository.ParentLinkRepository,
	) error {
		rec, err := lockOwned(ctx, recordRepo, ev.RecordID, ev.CompanyID)
		if err != nil {
			return err
		}
		out = rec
		if rec.Receipt == nil || rec.Receipt.ID != ev.Receipt.ID {
			return nil
		}
		rec.Receipt = nil
		rec.UpdatedAt = uc.now()
		return recordRepo.Update(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateDownstreamReceipt crea en el ERP la recepción de un pase de entrada confirmado y guarda el vínculo.
// La transición a Receipted llega después con el evento de recepción confirmada.
func (uc *UseCase) CreateDownstreamReceipt(ctx context.Context, cmd TransitionCommand) (entity.DocumentRef, error) {
	rec, err := uc.loadOwned(ctx, cmd.RecordID, cmd.CompanyID)
	if err != nil {
		return entity.DocumentRef{}, err
	}
	if err := receiptAllowed(rec); err != nil {
		return entity.DocumentRef{}, err
	}
	ref, err := uc.adapter.CreateReceipt(ctx, rec)
	if err != nil {
		return entity.DocumentRef{}, adapterErr(err)
	}
	err = uc.txRunner.Run(ctx, func(
		recordRepo repository.MovementRecordRepository,
		_ repository.AllocationRepository,
		_ repository.ParentLinkRepository,
	) error {
		locked, err := lockOwned(ctx, recordRepo, cmd.RecordID, cmd.CompanyID)
		if err != nil {
			return err
		}
		if err := receiptAllowed(locked); err != nil {
			return err
		}
		locked.Receipt = &ref
		locked.UpdatedAt = uc.now()
		return recordRepo.Update(ctx, locked)
	})
	if err != nil {
		uc.log.Warn().Err(err).Str("record_id", cmd.RecordID).Str("receipt_id", ref.ID).
			Msg("recepción creada en el ERP sin vínculo en el pase")
		return entity.DocumentRef{}, err
	}
	uc.log.Info().Str("record_id", cmd.RecordID).Str("receipt_id", ref.ID).Str("user_id", cmd.UserID).Msg("recepción creada")
	return ref, nil
}

func receiptAllowed(rec *entity.MovementRecord) error {
	if rec.Direction != entity.DirectionInbound {
		return fmt.Errorf("%w: solo los pases de entrada generan recepción", domain.ErrInvalidInput)
	}
	if rec.Status != entity.StatusSubmitted && rec.Status != entity.StatusReceipted {
		return domain.ErrInvalidTransition
	}
	if rec.Receipt != nil {
		return fmt.Errorf("%w: el pase ya tiene la recepción %s", domain.ErrConflict, rec.Receipt.ID)
	}
	return nil
}

// ListFailedTasks tareas escaladas para revisión del operador.
func (uc *UseCase) ListFailedTasks(ctx context.Context, limit int) ([]*entity.AutoCreateTask, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return uc.taskRepo.ListByStatus(ctx, entity.TaskFailed, limit)
}

// RequeuePending vuelve a encolar las tareas PENDING (arranque tras una caída). Devuelve cuántas encoló.
func (uc *UseCase) RequeuePending(ctx context.Context, limit int) (int, error) {
	if uc.queue == nil {
		return 0, nil
	}
	tasks, err := uc.taskRepo.ListByStatus(ctx, entity.TaskPending, limit)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, task := range tasks {
		if err := uc.queue.Enqueue(ctx, task); err != nil {
			uc.log.Warn().Err(err).Str("key", task.Key()).Msg("no se pudo reencolar la tarea")
			break
		}
		n++
	}
	return n, nil
}

// isGone el documento ya no existe en el ERP.
func isGone(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
