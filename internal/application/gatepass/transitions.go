package gatepass

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jhoicas/Gatepass-api/internal/domain"
	"github.com/jhoicas/Gatepass-api/internal/domain/compliance"
	"github.com/jhoicas/Gatepass-api/internal/domain/entity"
	"github.com/jhoicas/Gatepass-api/internal/domain/repository"
)

// TransitionCommand comando de transición sobre un pase.
type TransitionCommand struct {
	RecordID  string
	CompanyID string
	UserID    string
}

// Submit Draft -> Submitted. Guardas, en orden: campos obligatorios, cantidades, discrepancia,
// estado del documento origen, libro de asignación (salidas y devoluciones) y compuerta de
// cumplimiento (salidas contra documentos de venta). Cualquier fallo aborta sin escribir nada.
func (uc *UseCase) Submit(ctx context.Context, cmd TransitionCommand) (*entity.MovementRecord, error) {
	rec, err := uc.loadOwned(ctx, cmd.RecordID, cmd.CompanyID)
	if err != nil {
		return nil, err
	}
	if rec.Status != entity.StatusDraft {
		return nil, domain.ErrInvalidTransition
	}
	parent := rec.Parent()
	if parent.IsZero() {
		return nil, domain.NewMissingField("parent_document")
	}

	// Lecturas del adaptador fuera de la transacción: estado del origen, vigencia del traslado
	// revertido, cantidades requeridas y soportes de cumplimiento.
	parentStatus, err := uc.adapter.GetDocumentStatus(ctx, parent)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: documento origen %s", domain.ErrDanglingReference, parent.ID)
		}
		return nil, adapterErr(err)
	}
	staleTransfer, err := uc.isStaleTransfer(ctx, rec.ReturnLink)
	if err != nil {
		return nil, err
	}
	working := rec.Clone()
	if staleTransfer {
		working.ReturnLink.OutboundTransferID = ""
		if working.ReturnLink.IsZero() {
			working.ReturnLink = nil
		}
	}
	scope, err := uc.resolveScope(ctx, working)
	if err != nil {
		return nil, err
	}
	var gate *compliance.Result
	if compliance.Applies(rec.Direction, rec.ParentType) {
		res, err := uc.evaluateCompliance(ctx, rec)
		if err != nil {
			return nil, err
		}
		gate = &res
	}

	var out *entity.MovementRecord
	var owner bool
	err = uc.txRunner.Run(ctx, func(
		recordRepo repository.MovementRecordRepository,
		allocRepo repository.AllocationRepository,
		linkRepo repository.ParentLinkRepository,
	) error {
		locked, err := lockOwned(ctx, recordRepo, cmd.RecordID, cmd.CompanyID)
		if err != nil {
			return err
		}
		if locked.Status != entity.StatusDraft {
			return domain.ErrInvalidTransition
		}
		if !sameScope(locked, rec) {
			return fmt.Errorf("%w: el pase cambió de documento origen", domain.ErrConflict)
		}
		if staleTransfer && locked.ReturnLink != nil {
			locked.ReturnLink.OutboundTransferID = ""
			if locked.ReturnLink.IsZero() {
				locked.ReturnLink = nil
			}
		}
		if err := refreshReturnRecord(ctx, recordRepo, locked); err != nil {
			return err
		}

		if err := checkHeader(locked); err != nil {
			return err
		}
		if err := checkQuantities(locked); err != nil {
			return err
		}
		if err := locked.ValidateDiscrepancy(); err != nil {
			return err
		}
		switch parentStatus {
		case entity.DocumentSubmitted:
		case entity.DocumentCancelled:
			return fmt.Errorf("%w: documento origen anulado", domain.ErrDanglingReference)
		default:
			return fmt.Errorf("%w: documento origen en estado %s", domain.ErrInvalidTransition, parentStatus)
		}
		if err := reserveRecord(ctx, allocRepo, scope, locked); err != nil {
			return err
		}
		if gate != nil && !gate.Passed {
			return &domain.GuardError{Kind: domain.GuardComplianceBlocked, Missing: gate.Missing}
		}

		if err := locked.TransitionTo(entity.StatusSubmitted, uc.now()); err != nil {
			return err
		}
		locked.RecalculateAmounts()
		if err := recordRepo.Update(ctx, locked); err != nil {
			return err
		}
		if locked.Origin == entity.OriginAuto || locked.IsReturnFlow() {
			if err := linkRepo.Set(ctx, parent, locked.ID); err != nil {
				return err
			}
			owner = true
		}
		out = locked
		return nil
	})
	if err != nil {
		uc.observeGuard(err)
		uc.log.Debug().Err(err).Str("record_id", cmd.RecordID).Msg("confirmación rechazada")
		return nil, err
	}
	uc.observer.Transition(entity.StatusSubmitted)
	if owner {
		uc.propagateReference(ctx, parent, &out.ID)
	}
	uc.log.Info().Str("record_id", out.ID).Str("user_id", cmd.UserID).Str("parent_id", parent.ID).Msg("pase confirmado")
	return out, nil
}

// isStaleTransfer el traslado de salida del ReturnLink ya no existe o fue anulado.
func (uc *UseCase) isStaleTransfer(ctx context.Context, link *entity.ReturnLink) (bool, error) {
	if link == nil || link.OutboundTransferID == "" {
		return false, nil
	}
	status, err := uc.adapter.GetDocumentStatus(ctx, entity.DocumentRef{Type: entity.DocStockTransfer, ID: link.OutboundTransferID})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return true, nil
		}
		return false, adapterErr(err)
	}
	return status != entity.DocumentSubmitted, nil
}

// refreshReturnRecord un ReturnLink a un pase de salida que ya no está confirmado se trata como ausente.
func refreshReturnRecord(ctx context.Context, recordRepo repository.MovementRecordRepository, rec *entity.MovementRecord) error {
	if rec.ReturnLink == nil || rec.ReturnLink.OutboundRecordID == "" {
		return nil
	}
	target, err := recordRepo.GetByID(ctx, rec.ReturnLink.OutboundRecordID)
	if err != nil {
		return err
	}
	if target == nil || target.Direction != entity.DirectionOutbound ||
		(target.Status != entity.StatusSubmitted && target.Status != entity.StatusReceipted) {
		rec.ReturnLink.OutboundRecordID = ""
		if rec.ReturnLink.IsZero() {
			rec.ReturnLink = nil
		}
	}
	return nil
}

func checkHeader(rec *entity.MovementRecord) error {
	if len(rec.Lines) == 0 {
		return domain.NewMissingField("lines")
	}
	if rec.OpenEnded {
		return nil
	}
	if strings.TrimSpace(rec.VehicleNumber) == "" {
		return domain.NewMissingField("vehicle_number")
	}
	if strings.TrimSpace(rec.DriverName) == "" {
		return domain.NewMissingField("driver_name")
	}
	return nil
}

// checkQuantities salidas: toda línea con cantidad positiva. Entradas: al menos una.
func checkQuantities(rec *entity.MovementRecord) error {
	anyPositive := false
	for _, l := range rec.Lines {
		if l.ConfirmedQty.IsNegative() {
			return domain.ErrInvalidInput
		}
		if l.ConfirmedQty.IsPositive() {
			anyPositive = true
		} else if rec.Direction == entity.DirectionOutbound {
			return &domain.GuardError{Kind: domain.GuardMissingField, Field: "confirmed_qty", ItemCode: l.ItemCode}
		}
	}
	if !anyPositive {
		return domain.NewMissingField("confirmed_qty")
	}
	return nil
}

// Cancel Draft/Submitted -> Cancelled. El cambio de estado libera la cantidad en el libro.
// Bloqueado mientras exista una recepción vinculada.
func (uc *UseCase) Cancel(ctx context.Context, cmd TransitionCommand) (*entity.MovementRecord, error) {
	var out *entity.MovementRecord
	var cleared bool
	err := uc.txRunner.Run(ctx, func(
		recordRepo repository.MovementRecordRepository,
		_ repository.AllocationRepository,
		linkRepo repository.ParentLinkRepository,
	) error {
		rec, err := lockOwned(ctx, recordRepo, cmd.RecordID, cmd.CompanyID)
		if err != nil {
			return err
		}
		if cleared, err = cancelInTx(ctx, recordRepo, linkRepo, rec, uc.now()); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.observer.Transition(entity.StatusCancelled)
	if cleared {
		uc.propagateReference(ctx, out.Parent(), nil)
	}
	uc.log.Info().Str("record_id", out.ID).Str("user_id", cmd.UserID).Msg("pase anulado")
	return out, nil
}

// cancelInTx anula el pase, limpia el índice del documento origen si era el dueño y anula los
// ReturnLink que lo apuntan (sin cascada). Devuelve si se limpió el índice.
func cancelInTx(
	ctx context.Context,
	recordRepo repository.MovementRecordRepository,
	linkRepo repository.ParentLinkRepository,
	rec *entity.MovementRecord,
	now time.Time,
) (bool, error) {
	if rec.Receipt != nil {
		return false, fmt.Errorf("%w: el pase tiene la recepción %s vinculada", domain.ErrConflict, rec.Receipt.ID)
	}
	if err := rec.TransitionTo(entity.StatusCancelled, now); err != nil {
		return false, err
	}
	if err := recordRepo.Update(ctx, rec); err != nil {
		return false, err
	}
	cleared := false
	if rec.ParentID != "" {
		var err error
		if cleared, err = linkRepo.ClearIfOwner(ctx, rec.Parent(), rec.ID); err != nil {
			return false, err
		}
	}
	if err := detachReturnReferences(ctx, recordRepo, rec.ID, "", now); err != nil {
		return false, err
	}
	return cleared, nil
}

// detachReturnReferences anula el vínculo en los pases de entrada que apuntan al registro o
// al traslado dado. Los pases referentes siguen vigentes.
func detachReturnReferences(ctx context.Context, recordRepo repository.MovementRecordRepository, outboundRecordID, outboundTransferID string, now time.Time) error {
	refs, err := recordRepo.ListReturnReferences(ctx, outboundRecordID, outboundTransferID)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		if ref.ReturnLink == nil {
			continue
		}
		if outboundRecordID != "" && ref.ReturnLink.OutboundRecordID == outboundRecordID {
			ref.ReturnLink.OutboundRecordID = ""
		}
		if outboundTransferID != "" && ref.ReturnLink.OutboundTransferID == outboundTransferID {
			ref.ReturnLink.OutboundTransferID = ""
		}
		if ref.ReturnLink.IsZero() {
			ref.ReturnLink = nil
		}
		ref.UpdatedAt = now
		if err := recordRepo.Update(ctx, ref); err != nil {
			return err
		}
	}
	return nil
}
