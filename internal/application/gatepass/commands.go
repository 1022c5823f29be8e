package gatepass

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Gatepass-api/internal/domain"
	"github.com/jhoicas/Gatepass-api/internal/domain/compliance"
	"github.com/jhoicas/Gatepass-api/internal/domain/entity"
	"github.com/jhoicas/Gatepass-api/internal/domain/repository"
)

// LineInput línea solicitada por el operador.
type LineInput struct {
	ItemCode     string
	ConfirmedQty decimal.Decimal
	UnitRate     *decimal.Decimal
}

// CreateCommand alta manual de un pase. Sin líneas, se precargan desde el documento origen con lo
// pendiente por despachar.
type CreateCommand struct {
	CompanyID     string
	UserID        string
	ParentType    entity.DocumentType
	ParentID      string
	Direction     entity.Direction // opcional; INBOUND sobre un traslado de salida = devolución manual
	ReturnOf      string           // opcional: registro de salida que se revierte
	VehicleNumber string
	DriverName    string
	DriverContact string
	OpenEnded     bool
	RecordDate    *time.Time
	Lines         []LineInput
}

// Create crea un pase en borrador. Las líneas de salida (y de devoluciones) pasan por el libro de
// asignación en la misma transacción que las persiste.
func (uc *UseCase) Create(ctx context.Context, cmd CreateCommand) (*entity.MovementRecord, error) {
	if !cmd.ParentType.Valid() || strings.TrimSpace(cmd.ParentID) == "" || cmd.CompanyID == "" {
		return nil, domain.ErrInvalidInput
	}
	if cmd.Direction != "" && !cmd.Direction.Valid() {
		return nil, domain.ErrInvalidInput
	}
	parent := entity.DocumentRef{Type: cmd.ParentType, ID: strings.TrimSpace(cmd.ParentID)}
	snap, err := uc.snapshot(ctx, parent)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: documento origen %s %s", domain.ErrDanglingReference, parent.Type, parent.ID)
		}
		return nil, err
	}
	if snap.Status != entity.DocumentSubmitted {
		return nil, fmt.Errorf("%w: documento origen en estado %s", domain.ErrConflict, snap.Status)
	}
	if snap.CompanyID != "" && snap.CompanyID != cmd.CompanyID {
		return nil, domain.ErrForbidden
	}

	now := uc.now()
	rec := &entity.MovementRecord{
		ID:            uuid.New().String(),
		CompanyID:     cmd.CompanyID,
		Direction:     snap.Direction(),
		ParentType:    parent.Type,
		ParentID:      parent.ID,
		Status:        entity.StatusDraft,
		Origin:        entity.OriginManual,
		Party:         snap.Party,
		VehicleNumber: firstNonEmpty(cmd.VehicleNumber, snap.VehicleNumber),
		DriverName:    strings.TrimSpace(cmd.DriverName),
		DriverContact: normalizeContact(cmd.DriverContact),
		OpenEnded:     cmd.OpenEnded,
		Discrepancy:   entity.Discrepancy{LostQty: decimal.Zero, DamagedQty: decimal.Zero},
		RecordDate:    now,
		CreatedBy:     cmd.UserID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if cmd.RecordDate != nil {
		rec.RecordDate = cmd.RecordDate.UTC()
	}
	if snap.IsReturn && snap.ReturnAgainst != "" {
		rec.ReturnLink = &entity.ReturnLink{OutboundTransferID: snap.ReturnAgainst}
	}
	if cmd.Direction != "" && cmd.Direction != rec.Direction {
		// Solo un traslado de salida admite una entrada: la devolución manual de ese traslado.
		if parent.Type != entity.DocStockTransfer || snap.IsReturn || cmd.Direction != entity.DirectionInbound {
			return nil, domain.ErrInvalidInput
		}
		rec.Direction = entity.DirectionInbound
		rec.ReturnLink = &entity.ReturnLink{OutboundTransferID: snap.ID}
	}
	if cmd.ReturnOf != "" {
		if rec.Direction != entity.DirectionInbound {
			return nil, domain.ErrInvalidInput
		}
		link, err := uc.resolveReturnTarget(ctx, cmd.CompanyID, cmd.ReturnOf, transferOf(rec.ReturnLink))
		if err != nil {
			return nil, err
		}
		rec.ReturnLink = link
	}

	prefill := len(cmd.Lines) == 0
	if prefill {
		rec.Lines = linesFromSnapshot(snap)
	} else {
		for _, in := range cmd.Lines {
			line, err := lineFromInput(snap, in)
			if err != nil {
				return nil, err
			}
			rec.Lines = append(rec.Lines, line)
		}
	}

	scope, err := uc.resolveScope(ctx, rec)
	if err != nil {
		return nil, err
	}

	err = uc.txRunner.Run(ctx, func(
		recordRepo repository.MovementRecordRepository,
		allocRepo repository.AllocationRepository,
		_ repository.ParentLinkRepository,
	) error {
		if prefill {
			if err := clampToAvailable(ctx, allocRepo, scope, rec); err != nil {
				return err
			}
		} else if err := reserveRecord(ctx, allocRepo, scope, rec); err != nil {
			return err
		}
		rec.RecalculateAmounts()
		return recordRepo.Create(ctx, rec)
	})
	if err != nil {
		uc.observeGuard(err)
		return nil, err
	}
	uc.log.Info().Str("record_id", rec.ID).Str("parent_type", string(parent.Type)).Str("parent_id", parent.ID).
		Str("direction", string(rec.Direction)).Msg("pase de portería creado")
	return rec, nil
}

// TransportCommand datos de transporte del pase.
type TransportCommand struct {
	RecordID      string
	CompanyID     string
	VehicleNumber *string
	DriverName    *string
	DriverContact *string
}

// UpdateTransport actualiza vehículo y conductor (solo borrador).
func (uc *UseCase) UpdateTransport(ctx context.Context, cmd TransportCommand) (*entity.MovementRecord, error) {
	return uc.mutateDraft(ctx, cmd.RecordID, cmd.CompanyID, func(_ context.Context, _ repository.AllocationRepository, _ *allocationScope, rec *entity.MovementRecord) error {
		if cmd.VehicleNumber != nil {
			rec.VehicleNumber = strings.TrimSpace(*cmd.VehicleNumber)
		}
		if cmd.DriverName != nil {
			rec.DriverName = strings.TrimSpace(*cmd.DriverName)
		}
		if cmd.DriverContact != nil {
			rec.DriverContact = normalizeContact(*cmd.DriverContact)
		}
		return nil
	}, nil)
}

// AddLineCommand agrega una línea.
type AddLineCommand struct {
	RecordID  string
	CompanyID string
	Line      LineInput
}

// AddLine agrega una línea tomada del documento origen y la reserva en el libro.
func (uc *UseCase) AddLine(ctx context.Context, cmd AddLineCommand) (*entity.MovementRecord, error) {
	rec, err := uc.loadOwned(ctx, cmd.RecordID, cmd.CompanyID)
	if err != nil {
		return nil, err
	}
	if err := rec.CanModify(); err != nil {
		return nil, err
	}
	snap, err := uc.itemSource(ctx, rec)
	if err != nil {
		return nil, err
	}
	line, err := lineFromInput(snap, cmd.Line)
	if err != nil {
		return nil, err
	}
	return uc.mutateDraft(ctx, cmd.RecordID, cmd.CompanyID, func(ctx context.Context, allocRepo repository.AllocationRepository, scope *allocationScope, locked *entity.MovementRecord) error {
		locked.Lines = append(locked.Lines, line)
		return reserveLineItem(ctx, allocRepo, scope, locked, line.ItemCode)
	}, rec)
}

// SetLineQuantityCommand cambia la cantidad confirmada de una línea.
type SetLineQuantityCommand struct {
	RecordID     string
	CompanyID    string
	LineID       string
	ConfirmedQty decimal.Decimal
}

// SetLineQuantity actualiza la cantidad confirmada y la vuelve a pasar por el libro de asignación.
func (uc *UseCase) SetLineQuantity(ctx context.Context, cmd SetLineQuantityCommand) (*entity.MovementRecord, error) {
	if cmd.ConfirmedQty.IsNegative() {
		return nil, domain.ErrInvalidInput
	}
	rec, err := uc.loadOwned(ctx, cmd.RecordID, cmd.CompanyID)
	if err != nil {
		return nil, err
	}
	return uc.mutateDraft(ctx, cmd.RecordID, cmd.CompanyID, func(ctx context.Context, allocRepo repository.AllocationRepository, scope *allocationScope, locked *entity.MovementRecord) error {
		line, ok := locked.Line(cmd.LineID)
		if !ok {
			return domain.ErrNotFound
		}
		line.ConfirmedQty = cmd.ConfirmedQty
		return reserveLineItem(ctx, allocRepo, scope, locked, line.ItemCode)
	}, rec)
}

// RemoveLineCommand elimina una línea.
type RemoveLineCommand struct {
	RecordID  string
	CompanyID string
	LineID    string
}

// RemoveLine quita una línea del borrador.
func (uc *UseCase) RemoveLine(ctx context.Context, cmd RemoveLineCommand) (*entity.MovementRecord, error) {
	return uc.mutateDraft(ctx, cmd.RecordID, cmd.CompanyID, func(_ context.Context, _ repository.AllocationRepository, _ *allocationScope, rec *entity.MovementRecord) error {
		for i := range rec.Lines {
			if rec.Lines[i].ID == cmd.LineID {
				rec.Lines = append(rec.Lines[:i], rec.Lines[i+1:]...)
				return nil
			}
		}
		return domain.ErrNotFound
	}, nil)
}

// DiscrepancyCommand faltantes/daños registrados en portería.
type DiscrepancyCommand struct {
	RecordID       string
	CompanyID      string
	HasDiscrepancy bool
	LostQty        decimal.Decimal
	DamagedQty     decimal.Decimal
	Notes          *string
}

// SetDiscrepancy editable en borrador y, tras confirmar, durante la ventana configurada.
// Desmarcar la discrepancia limpia cantidades y notas.
func (uc *UseCase) SetDiscrepancy(ctx context.Context, cmd DiscrepancyCommand) (*entity.MovementRecord, error) {
	var out *entity.MovementRecord
	err := uc.txRunner.Run(ctx, func(
		recordRepo repository.MovementRecordRepository,
		_ repository.AllocationRepository,
		_ repository.ParentLinkRepository,
	) error {
		rec, err := lockOwned(ctx, recordRepo, cmd.RecordID, cmd.CompanyID)
		if err != nil {
			return err
		}
		if !uc.discrepancyEditable(rec) {
			return domain.ErrInvalidTransition
		}
		notes := cmd.Notes
		if notes != nil && strings.TrimSpace(*notes) == "" {
			notes = nil
		}
		rec.ApplyDiscrepancy(cmd.HasDiscrepancy, cmd.LostQty, cmd.DamagedQty, notes)
		if err := rec.ValidateDiscrepancy(); err != nil {
			return err
		}
		rec.UpdatedAt = uc.now()
		if err := recordRepo.Update(ctx, rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		uc.observeGuard(err)
		return nil, err
	}
	return out, nil
}

func (uc *UseCase) discrepancyEditable(rec *entity.MovementRecord) bool {
	switch rec.Status {
	case entity.StatusDraft:
		return true
	case entity.StatusSubmitted:
		return rec.SubmittedAt != nil && uc.now().Sub(*rec.SubmittedAt) <= uc.opts.DiscrepancyEditWindow
	}
	return false
}

// ReturnLinkCommand vincula (o desvincula, con ambos vacíos) una entrada con la salida que revierte.
type ReturnLinkCommand struct {
	RecordID           string
	CompanyID          string
	OutboundRecordID   string
	OutboundTransferID string
}

// SetReturnLink validación estricta: el destino debe ser una salida confirmada vigente.
func (uc *UseCase) SetReturnLink(ctx context.Context, cmd ReturnLinkCommand) (*entity.MovementRecord, error) {
	rec, err := uc.loadOwned(ctx, cmd.RecordID, cmd.CompanyID)
	if err != nil {
		return nil, err
	}
	if rec.Direction != entity.DirectionInbound {
		return nil, domain.ErrInvalidInput
	}
	var link *entity.ReturnLink
	if cmd.OutboundRecordID != "" || cmd.OutboundTransferID != "" {
		link, err = uc.resolveReturnTarget(ctx, cmd.CompanyID, cmd.OutboundRecordID, cmd.OutboundTransferID)
		if err != nil {
			return nil, err
		}
	}
	return uc.mutateDraft(ctx, cmd.RecordID, cmd.CompanyID, func(_ context.Context, _ repository.AllocationRepository, _ *allocationScope, locked *entity.MovementRecord) error {
		locked.ReturnLink = link
		return nil
	}, nil)
}

// resolveReturnTarget valida el destino de un ReturnLink (registro de salida y/o traslado de salida).
func (uc *UseCase) resolveReturnTarget(ctx context.Context, companyID, outboundRecordID, outboundTransferID string) (*entity.ReturnLink, error) {
	link := &entity.ReturnLink{OutboundTransferID: outboundTransferID}
	if outboundRecordID != "" {
		target, err := uc.recordRepo.GetByID(ctx, outboundRecordID)
		if err != nil {
			return nil, err
		}
		if target == nil || target.CompanyID != companyID || target.Direction != entity.DirectionOutbound ||
			(target.Status != entity.StatusSubmitted && target.Status != entity.StatusReceipted) {
			return nil, fmt.Errorf("%w: pase de salida %s", domain.ErrDanglingReference, outboundRecordID)
		}
		link.OutboundRecordID = target.ID
		if link.OutboundTransferID == "" && target.ParentType == entity.DocStockTransfer {
			link.OutboundTransferID = target.ParentID
		}
	}
	if link.OutboundTransferID != "" {
		snap, err := uc.snapshot(ctx, entity.DocumentRef{Type: entity.DocStockTransfer, ID: link.OutboundTransferID})
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("%w: traslado %s", domain.ErrDanglingReference, link.OutboundTransferID)
			}
			return nil, err
		}
		if snap.Status != entity.DocumentSubmitted || snap.IsReturn {
			return nil, fmt.Errorf("%w: traslado %s no es una salida vigente", domain.ErrDanglingReference, link.OutboundTransferID)
		}
	}
	return link, nil
}

// DeleteCommand borrado físico de un borrador.
type DeleteCommand struct {
	RecordID  string
	CompanyID string
}

// Delete elimina un borrador y limpia las referencias hacia él. Nunca toca pases confirmados.
func (uc *UseCase) Delete(ctx context.Context, cmd DeleteCommand) error {
	var parent entity.DocumentRef
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
		if rec.Status != entity.StatusDraft {
			return domain.ErrInvalidTransition
		}
		parent = rec.Parent()
		if !parent.IsZero() {
			if cleared, err = linkRepo.ClearIfOwner(ctx, parent, rec.ID); err != nil {
				return err
			}
		}
		if err := detachReturnReferences(ctx, recordRepo, rec.ID, "", uc.now()); err != nil {
			return err
		}
		return recordRepo.Delete(ctx, rec.ID)
	})
	if err != nil {
		return err
	}
	if cleared {
		uc.propagateReference(ctx, parent, nil)
	}
	return nil
}

// Get devuelve un pase de la empresa.
func (uc *UseCase) Get(ctx context.Context, id, companyID string) (*entity.MovementRecord, error) {
	return uc.loadOwned(ctx, id, companyID)
}

// List lista pases con filtros.
func (uc *UseCase) List(ctx context.Context, f repository.RecordFilter) ([]*entity.MovementRecord, error) {
	if f.CompanyID == "" {
		return nil, domain.ErrInvalidInput
	}
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	return uc.recordRepo.List(ctx, f)
}

// Compliance evaluación visible de la compuerta para un pase (no bloquea nada por sí misma).
func (uc *UseCase) Compliance(ctx context.Context, id, companyID string) (compliance.Result, error) {
	rec, err := uc.loadOwned(ctx, id, companyID)
	if err != nil {
		return compliance.Result{}, err
	}
	return uc.evaluateCompliance(ctx, rec)
}

func (uc *UseCase) evaluateCompliance(ctx context.Context, rec *entity.MovementRecord) (compliance.Result, error) {
	if !compliance.Applies(rec.Direction, rec.ParentType) || rec.ParentID == "" {
		return compliance.NotApplicable(), nil
	}
	snap, err := uc.adapter.GetComplianceSnapshot(ctx, rec.Parent())
	if err != nil {
		return compliance.Result{}, adapterErr(err)
	}
	return uc.opts.Compliance.Evaluate(rec.ParentType, *snap), nil
}

// mutateDraft patrón común: bloquea el pase, exige borrador, aplica fn, recalcula y guarda.
// Si read no es nil se usa para resolver el alcance del libro antes de abrir la transacción.
func (uc *UseCase) mutateDraft(
	ctx context.Context,
	id, companyID string,
	fn func(ctx context.Context, allocRepo repository.AllocationRepository, scope *allocationScope, rec *entity.MovementRecord) error,
	read *entity.MovementRecord,
) (*entity.MovementRecord, error) {
	var scope *allocationScope
	if read != nil {
		var err error
		if scope, err = uc.resolveScope(ctx, read); err != nil {
			return nil, err
		}
	}
	var out *entity.MovementRecord
	err := uc.txRunner.Run(ctx, func(
		recordRepo repository.MovementRecordRepository,
		allocRepo repository.AllocationRepository,
		_ repository.ParentLinkRepository,
	) error {
		rec, err := lockOwned(ctx, recordRepo, id, companyID)
		if err != nil {
			return err
		}
		if err := rec.CanModify(); err != nil {
			return err
		}
		if read != nil && !sameScope(read, rec) {
			return fmt.Errorf("%w: el pase cambió de documento origen", domain.ErrConflict)
		}
		if err := fn(ctx, allocRepo, scope, rec); err != nil {
			return err
		}
		rec.RecalculateAmounts()
		rec.UpdatedAt = uc.now()
		if err := recordRepo.Update(ctx, rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		uc.observeGuard(err)
		return nil, err
	}
	return out, nil
}

// reserveLineItem reserva el total confirmado del ítem en el pase.
func reserveLineItem(
	ctx context.Context,
	allocRepo repository.AllocationRepository,
	scope *allocationScope,
	rec *entity.MovementRecord,
	itemCode string,
) error {
	if scope == nil {
		return nil
	}
	open := false
	for _, l := range rec.Lines {
		if l.ItemCode == itemCode && l.OpenEnded {
			open = true
		}
	}
	_, err := reserveItem(ctx, allocRepo, scope, rec.ID, itemCode, rec.ConfirmedByItem()[itemCode], open)
	return err
}

func sameScope(a, b *entity.MovementRecord) bool {
	return a.ParentType == b.ParentType && a.ParentID == b.ParentID && a.Direction == b.Direction &&
		transferOf(a.ReturnLink) == transferOf(b.ReturnLink)
}

func transferOf(l *entity.ReturnLink) string {
	if l == nil {
		return ""
	}
	return l.OutboundTransferID
}

// itemSource documento del que salen los ítems: el traslado de salida en devoluciones, si no el origen.
func (uc *UseCase) itemSource(ctx context.Context, rec *entity.MovementRecord) (*entity.ParentDocumentSnapshot, error) {
	ref := rec.Parent()
	if rec.IsReturnFlow() {
		ref = entity.DocumentRef{Type: entity.DocStockTransfer, ID: rec.ReturnLink.OutboundTransferID}
	}
	if ref.IsZero() {
		return nil, fmt.Errorf("%w: el pase no tiene documento origen", domain.ErrDanglingReference)
	}
	snap, err := uc.snapshot(ctx, ref)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: documento origen %s", domain.ErrDanglingReference, ref.ID)
		}
		return nil, err
	}
	return snap, nil
}

// linesFromSnapshot una línea por ítem del documento, confirmada por lo requerido.
func linesFromSnapshot(snap *entity.ParentDocumentSnapshot) []entity.ItemAllocation {
	lines := make([]entity.ItemAllocation, 0, len(snap.Items))
	for _, it := range snap.Items {
		lines = append(lines, entity.ItemAllocation{
			ID:            uuid.New().String(),
			ItemCode:      it.ItemCode,
			ItemName:      it.ItemName,
			UOM:           it.UOM,
			ParentItemRef: it.ParentItemRef,
			RequiredQty:   it.RequiredQty,
			ConfirmedQty:  it.RequiredQty,
			UnitRate:      it.Rate,
			OpenEnded:     it.OpenEnded,
		})
	}
	return lines
}

func lineFromInput(snap *entity.ParentDocumentSnapshot, in LineInput) (entity.ItemAllocation, error) {
	if strings.TrimSpace(in.ItemCode) == "" || in.ConfirmedQty.IsNegative() {
		return entity.ItemAllocation{}, domain.ErrInvalidInput
	}
	it, ok := snap.Item(strings.TrimSpace(in.ItemCode))
	if !ok {
		return entity.ItemAllocation{}, fmt.Errorf("%w: el ítem %s no está en el documento origen", domain.ErrInvalidInput, in.ItemCode)
	}
	rate := it.Rate
	if in.UnitRate != nil {
		if in.UnitRate.IsNegative() {
			return entity.ItemAllocation{}, domain.ErrInvalidInput
		}
		rate = *in.UnitRate
	}
	return entity.ItemAllocation{
		ID:            uuid.New().String(),
		ItemCode:      it.ItemCode,
		ItemName:      it.ItemName,
		UOM:           it.UOM,
		ParentItemRef: it.ParentItemRef,
		RequiredQty:   it.RequiredQty,
		ConfirmedQty:  in.ConfirmedQty,
		UnitRate:      rate,
		OpenEnded:     it.OpenEnded,
	}, nil
}

// clampToAvailable recorta las cantidades precargadas a lo pendiente en el libro, ítem por ítem
// en orden, repartiendo entre líneas del mismo ítem.
func clampToAvailable(ctx context.Context, allocRepo repository.AllocationRepository, scope *allocationScope, rec *entity.MovementRecord) error {
	if scope == nil {
		return nil
	}
	byItem := make(map[string][]int)
	for i, l := range rec.Lines {
		byItem[l.ItemCode] = append(byItem[l.ItemCode], i)
	}
	items := make([]string, 0, len(byItem))
	for item := range byItem {
		items = append(items, item)
	}
	sort.Strings(items)

	for _, item := range items {
		avail, open, err := availableFor(ctx, allocRepo, scope, rec.ID, item)
		if err != nil {
			return err
		}
		for _, idx := range byItem[item] {
			line := &rec.Lines[idx]
			if open || line.OpenEnded {
				continue
			}
			if line.ConfirmedQty.GreaterThan(avail) {
				line.ConfirmedQty = avail
			}
			avail = avail.Sub(line.ConfirmedQty)
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// normalizeContact quita espacios y guiones del teléfono del conductor.
func normalizeContact(s string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer(" ", "", "-", "").Replace(s)
	if s == "+" {
		return ""
	}
	return s
}
