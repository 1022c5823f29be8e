package gatepass

import (
	"context"
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Gatepass-api/internal/domain"
	"github.com/jhoicas/Gatepass-api/internal/domain/entity"
	"github.com/jhoicas/Gatepass-api/internal/domain/ledger"
	"github.com/jhoicas/Gatepass-api/internal/domain/repository"
)

// allocationScope alcance del libro de asignación para un pase.
// Salidas: el documento origen. Devoluciones: el traslado de salida revertido, con la cantidad
// requerida tomada de lo confirmado por las salidas emparejadas.
type allocationScope struct {
	parent     entity.DocumentRef
	direction  entity.Direction
	returnFlow bool
	required   map[string]entity.RequiredQuantity
}

func (s *allocationScope) key(itemCode string) repository.AllocationKey {
	return repository.AllocationKey{
		ParentType: s.parent.Type,
		ParentID:   s.parent.ID,
		ItemCode:   itemCode,
		Direction:  s.direction,
		ReturnFlow: s.returnFlow,
	}
}

// resolveScope lee del adaptador las cantidades requeridas (fuera de la transacción).
// Devuelve nil si el pase no está acotado por el libro (entradas que no son devoluciones).
func (uc *UseCase) resolveScope(ctx context.Context, rec *entity.MovementRecord) (*allocationScope, error) {
	switch {
	case rec.Direction == entity.DirectionOutbound:
		if rec.ParentID == "" {
			return nil, nil
		}
		required, err := uc.adapter.GetRequiredQuantities(ctx, rec.Parent())
		if err != nil {
			return nil, adapterErr(err)
		}
		return &allocationScope{parent: rec.Parent(), direction: entity.DirectionOutbound, required: required}, nil
	case rec.IsReturnFlow():
		transfer := entity.DocumentRef{Type: entity.DocStockTransfer, ID: rec.ReturnLink.OutboundTransferID}
		required, err := uc.adapter.GetRequiredQuantities(ctx, transfer)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, adapterErr(err)
		}
		if required == nil {
			required = map[string]entity.RequiredQuantity{}
		}
		return &allocationScope{parent: transfer, direction: entity.DirectionInbound, returnFlow: true, required: required}, nil
	}
	return nil, nil
}

// requiredFor cantidad requerida del ítem. En devoluciones, lo confirmado por las salidas del
// traslado; si no hay salidas confirmadas se usa el traslado mismo.
func requiredFor(ctx context.Context, allocRepo repository.AllocationRepository, scope *allocationScope, itemCode string) (entity.RequiredQuantity, error) {
	rq := scope.required[itemCode]
	if !scope.returnFlow {
		return rq, nil
	}
	paired, err := allocRepo.SumConfirmed(ctx, repository.AllocationKey{
		ParentType: entity.DocStockTransfer,
		ParentID:   scope.parent.ID,
		ItemCode:   itemCode,
		Direction:  entity.DirectionOutbound,
	}, entity.CommittedStatuses, "")
	if err != nil {
		return rq, err
	}
	if paired.IsPositive() {
		return entity.RequiredQuantity{Qty: paired, OpenEnded: rq.OpenEnded}, nil
	}
	return rq, nil
}

// reserveRecord bloquea cada ítem del pase (en orden) y verifica que lo confirmado por este registro
// más lo de los demás registros vivos no supere lo requerido. Debe llamarse dentro de la transacción
// que persiste el pase. Solo los ítems de contrato de tarifa del documento origen quedan sin tope;
// el flujo abierto del pase solo exime vehículo y conductor.
func reserveRecord(ctx context.Context, allocRepo repository.AllocationRepository, scope *allocationScope, rec *entity.MovementRecord) error {
	if scope == nil {
		return nil
	}
	requested := rec.ConfirmedByItem()
	openLines := make(map[string]bool)
	for _, l := range rec.Lines {
		if l.OpenEnded {
			openLines[l.ItemCode] = true
		}
	}
	items := make([]string, 0, len(requested))
	for item := range requested {
		items = append(items, item)
	}
	sort.Strings(items)

	for _, item := range items {
		if _, err := reserveItem(ctx, allocRepo, scope, rec.ID, item, requested[item], openLines[item]); err != nil {
			return err
		}
	}
	return nil
}

// reserveItem reserva un ítem: lock, relectura de la suma y comparación.
func reserveItem(
	ctx context.Context,
	allocRepo repository.AllocationRepository,
	scope *allocationScope,
	recordID, itemCode string,
	qty decimal.Decimal,
	openEnded bool,
) (decimal.Decimal, error) {
	key := scope.key(itemCode)
	if err := allocRepo.Lock(ctx, key); err != nil {
		return decimal.Zero, err
	}
	others, err := allocRepo.SumConfirmed(ctx, key, entity.LiveStatuses, recordID)
	if err != nil {
		return decimal.Zero, err
	}
	rq, err := requiredFor(ctx, allocRepo, scope, itemCode)
	if err != nil {
		return decimal.Zero, err
	}
	res := ledger.Check(rq.Qty, others, qty, openEnded || rq.OpenEnded)
	if !res.OK {
		return decimal.Zero, domain.NewOverAllocation(itemCode, qty, res.Available)
	}
	return res.RemainingAfter, nil
}

// availableFor pendiente de un ítem para un registro (para precargar cantidades). Toma el lock.
func availableFor(ctx context.Context, allocRepo repository.AllocationRepository, scope *allocationScope, recordID, itemCode string) (decimal.Decimal, bool, error) {
	key := scope.key(itemCode)
	if err := allocRepo.Lock(ctx, key); err != nil {
		return decimal.Zero, false, err
	}
	others, err := allocRepo.SumConfirmed(ctx, key, entity.LiveStatuses, recordID)
	if err != nil {
		return decimal.Zero, false, err
	}
	rq, err := requiredFor(ctx, allocRepo, scope, itemCode)
	if err != nil {
		return decimal.Zero, false, err
	}
	return ledger.Remaining(rq.Qty, others), rq.OpenEnded, nil
}
