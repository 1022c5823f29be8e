package gatepass

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Gatepass-api/internal/domain/entity"
	"github.com/jhoicas/Gatepass-api/internal/domain/repository"
)

// systemUser autor de los pases creados por la cola.
const systemUser = "system"

// ProcessAutoCreate ejecuta una tarea de la cola. attempt empieza en 1. Un error devuelto significa
// que la cola puede reintentar; los documentos que ya no aplican terminan la tarea sin pase.
func (uc *UseCase) ProcessAutoCreate(ctx context.Context, task *entity.AutoCreateTask, attempt int) error {
	current, err := uc.taskRepo.GetByID(ctx, task.ID)
	if err != nil {
		return fmt.Errorf("error loading auto-create task: %w", err)
	}
	if current != nil && current.Status != entity.TaskPending {
		return nil
	}

	rec, err := uc.autoCreate(ctx, task)
	if err != nil {
		if rerr := uc.taskRepo.RecordAttempt(ctx, task.ID, attempt, err.Error()); rerr != nil {
			uc.log.Warn().Err(rerr).Str("task_id", task.ID).Msg("no se pudo registrar el intento")
		}
		uc.log.Warn().Err(err).Str("key", task.Key()).Int("attempt", attempt).Msg("creación automática fallida")
		return err
	}

	recordID := ""
	if rec != nil {
		recordID = rec.ID
	}
	if err := uc.taskRepo.MarkDone(ctx, task.ID, recordID); err != nil {
		return fmt.Errorf("error marking auto-create task done: %w", err)
	}
	if rec == nil {
		uc.observer.AutoCreate("skipped")
		return nil
	}
	uc.observer.AutoCreate("created")
	uc.log.Info().Str("key", task.Key()).Str("record_id", rec.ID).Msg("pase creado automáticamente")
	return nil
}

// EscalateAutoCreate marca la tarea como fallida y deja la entrada visible para el operador.
func (uc *UseCase) EscalateAutoCreate(ctx context.Context, task *entity.AutoCreateTask, attempts int, cause error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := uc.taskRepo.MarkFailed(ctx, task.ID, attempts, msg); err != nil {
		uc.log.Error().Err(err).Str("task_id", task.ID).Msg("no se pudo marcar la tarea como fallida")
	}
	uc.observer.AutoCreate("escalated")
	uc.log.Error().Err(cause).Str("task_id", task.ID).Str("key", task.Key()).Int("attempts", attempts).
		Msg("auto-create escalated")
}

// autoCreate crea el borrador AUTO del documento. Devuelve nil, nil si no corresponde crear nada.
func (uc *UseCase) autoCreate(ctx context.Context, task *entity.AutoCreateTask) (*entity.MovementRecord, error) {
	ref := entity.DocumentRef{Type: task.ParentType, ID: task.ParentID}
	snap, err := uc.snapshot(ctx, ref)
	if err != nil {
		if isGone(err) {
			return nil, nil
		}
		return nil, err
	}
	if snap.Status != entity.DocumentSubmitted {
		return nil, nil
	}
	// Los traslados internos entre bodegas no cruzan la portería.
	if snap.Type == entity.DocStockTransfer && snap.TransferKind == entity.TransferMaterial && !snap.External && !snap.IsReturn {
		return nil, nil
	}
	if snap.IsReturn && snap.ReturnAgainst != "" {
		attached, err := uc.attachDraftReturn(ctx, snap)
		if err != nil || attached != nil {
			return attached, err
		}
	}

	existing, err := uc.recordRepo.ListByParent(ctx, ref)
	if err != nil {
		return nil, err
	}
	for _, r := range existing {
		if r.Origin == entity.OriginAuto && r.Direction == snap.Direction() && r.Status != entity.StatusCancelled {
			return r, nil
		}
	}

	now := uc.now()
	rec := &entity.MovementRecord{
		ID:            uuid.New().String(),
		CompanyID:     firstNonEmpty(snap.CompanyID, task.CompanyID),
		Direction:     snap.Direction(),
		ParentType:    ref.Type,
		ParentID:      ref.ID,
		Status:        entity.StatusDraft,
		Origin:        entity.OriginAuto,
		Party:         snap.Party,
		VehicleNumber: snap.VehicleNumber,
		Discrepancy:   entity.Discrepancy{LostQty: decimal.Zero, DamagedQty: decimal.Zero},
		RecordDate:    now,
		CreatedBy:     systemUser,
		CreatedAt:     now,
		UpdatedAt:     now,
		Lines:         linesFromSnapshot(snap),
	}
	if snap.IsReturn && snap.ReturnAgainst != "" {
		rec.ReturnLink = &entity.ReturnLink{OutboundTransferID: snap.ReturnAgainst}
	}
	scope, err := uc.resolveScope(ctx, rec)
	if err != nil {
		return nil, err
	}

	var created bool
	err = uc.txRunner.Run(ctx, func(
		recordRepo repository.MovementRecordRepository,
		allocRepo repository.AllocationRepository,
		linkRepo repository.ParentLinkRepository,
	) error {
		if err := clampToAvailable(ctx, allocRepo, scope, rec); err != nil {
			return err
		}
		rec.Lines = dropEmptyLines(rec)
		if len(rec.Lines) == 0 {
			return nil
		}
		rec.RecalculateAmounts()
		if err := recordRepo.Create(ctx, rec); err != nil {
			return err
		}
		created = true
		return linkRepo.Set(ctx, ref, rec.ID)
	})
	if err != nil {
		return nil, err
	}
	if !created {
		uc.log.Info().Str("parent_id", ref.ID).Msg("documento sin cantidades pendientes, no se crea pase")
		return nil, nil
	}
	uc.propagateReference(ctx, ref, &rec.ID)
	return rec, nil
}

// attachDraftReturn adopta el borrador de devolución manual que esperaba este documento de retorno.
func (uc *UseCase) attachDraftReturn(ctx context.Context, snap *entity.ParentDocumentSnapshot) (*entity.MovementRecord, error) {
	draft, err := uc.recordRepo.FindDraftReturn(ctx, snap.ReturnAgainst)
	if err != nil || draft == nil {
		return nil, err
	}
	ref := snap.Ref()
	var out *entity.MovementRecord
	err = uc.txRunner.Run(ctx, func(
		recordRepo repository.MovementRecordRepository,
		_ repository.AllocationRepository,
		linkRepo repository.ParentLinkRepository,
	) error {
		locked, err := recordRepo.GetForUpdate(ctx, draft.ID)
		if err != nil {
			return err
		}
		if locked == nil || locked.Status != entity.StatusDraft || transferOf(locked.ReturnLink) != snap.ReturnAgainst {
			return nil
		}
		locked.ParentType = ref.Type
		locked.ParentID = ref.ID
		locked.UpdatedAt = uc.now()
		if err := recordRepo.Update(ctx, locked); err != nil {
			return err
		}
		out = locked
		return linkRepo.Set(ctx, ref, locked.ID)
	})
	if err != nil || out == nil {
		return nil, err
	}
	uc.propagateReference(ctx, ref, &out.ID)
	return out, nil
}

// dropEmptyLines quita las líneas sin cantidad pendiente, salvo las abiertas.
func dropEmptyLines(rec *entity.MovementRecord) []entity.ItemAllocation {
	out := rec.Lines[:0]
	for _, l := range rec.Lines {
		if l.ConfirmedQty.IsPositive() || l.OpenEnded {
			out = append(out, l)
		}
	}
	return out
}
