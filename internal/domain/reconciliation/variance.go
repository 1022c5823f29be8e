package reconciliation

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Gatepass-api/internal/domain/entity"
	"github.com/jhoicas/Gatepass-api/internal/domain/ledger"
)

// Indicadores de resumen.
const (
	IndicatorGreen  = "green"
	IndicatorOrange = "orange"
	IndicatorRed    = "red"
)

// Input conjunto de trabajo ya acotado por ventana de tiempo.
type Input struct {
	Records []*entity.MovementRecord
	Parents map[entity.DocumentRef]*entity.ParentDocumentSnapshot
	// PairedOutbound registros de salida por traslado de salida revertido (ID del traslado).
	PairedOutbound map[string][]*entity.MovementRecord
}

// VarianceRow diferencia por (documento origen, ítem, dirección).
type VarianceRow struct {
	Parent          entity.DocumentRef
	ItemCode        string
	ItemName        string
	UOM             string
	Direction       entity.Direction
	ReturnFlow      bool
	RequiredQty     decimal.Decimal
	ConfirmedQty    decimal.Decimal
	Variance        decimal.Decimal
	OpenEnded       bool
	HasDiscrepancy  bool
	ParentAvailable bool
	RecordIDs       []string
}

type rowKey struct {
	parent     entity.DocumentRef
	itemCode   string
	direction  entity.Direction
	returnFlow bool
}

type flowKey struct {
	parent     entity.DocumentRef
	direction  entity.Direction
	returnFlow bool
}

// Variance función pura: variance = Σ confirmada (registros confirmados) - requerida.
// Cada documento origen con al menos un registro confirmado aporta una fila por cada uno de sus
// ítems, aunque ningún registro lo haya movido. En devoluciones de traslados la cantidad requerida
// es lo confirmado por los registros de salida emparejados. Los ítems abiertos no generan
// diferencia; si el documento origen no está disponible la fila se marca y no se calcula diferencia.
func Variance(in Input) []VarianceRow {
	rows := make(map[rowKey]*VarianceRow)
	var order []rowKey
	ensure := func(k rowKey, name, uom string) *VarianceRow {
		if row, ok := rows[k]; ok {
			return row
		}
		row := &VarianceRow{
			Parent:       k.parent,
			ItemCode:     k.itemCode,
			ItemName:     name,
			UOM:          uom,
			Direction:    k.direction,
			ReturnFlow:   k.returnFlow,
			ConfirmedQty: decimal.Zero,
		}
		rows[k] = row
		order = append(order, k)
		return row
	}

	flows := make(map[flowKey]bool)
	var flowOrder []flowKey

	for _, rec := range in.Records {
		if !isCommitted(rec.Status) {
			continue
		}
		parent, returnFlow, ok := reconciliationParent(rec)
		if !ok {
			continue
		}
		fk := flowKey{parent: parent, direction: rec.Direction, returnFlow: returnFlow}
		if !flows[fk] {
			flows[fk] = true
			flowOrder = append(flowOrder, fk)
		}
		seen := make(map[rowKey]bool)
		for _, line := range rec.Lines {
			k := rowKey{parent: parent, itemCode: line.ItemCode, direction: rec.Direction, returnFlow: returnFlow}
			row := ensure(k, line.ItemName, line.UOM)
			row.ConfirmedQty = row.ConfirmedQty.Add(line.ConfirmedQty)
			row.OpenEnded = row.OpenEnded || line.OpenEnded
			if rec.Discrepancy.HasDiscrepancy {
				row.HasDiscrepancy = true
			}
			if !seen[k] {
				row.RecordIDs = append(row.RecordIDs, rec.ID)
				seen[k] = true
			}
		}
	}

	for _, fk := range flowOrder {
		for _, it := range expectedItems(in, fk) {
			row := ensure(rowKey{parent: fk.parent, itemCode: it.ItemCode, direction: fk.direction, returnFlow: fk.returnFlow},
				it.ItemName, it.UOM)
			if row.ItemName == "" {
				row.ItemName = it.ItemName
			}
		}
	}

	out := make([]VarianceRow, 0, len(order))
	for _, k := range order {
		row := rows[k]
		required, available := requiredFor(in, k)
		row.ParentAvailable = available
		row.RequiredQty = required.Qty
		row.OpenEnded = row.OpenEnded || required.OpenEnded
		if available && !row.OpenEnded {
			row.Variance = ledger.Round(row.ConfirmedQty.Sub(row.RequiredQty))
		} else {
			row.Variance = decimal.Zero
		}
		if row.Variance.Abs().GreaterThan(ledger.Epsilon) {
			row.HasDiscrepancy = true
		}
		out = append(out, *row)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Parent.Type != b.Parent.Type {
			return a.Parent.Type < b.Parent.Type
		}
		if a.Parent.ID != b.Parent.ID {
			return a.Parent.ID < b.Parent.ID
		}
		if a.ItemCode != b.ItemCode {
			return a.ItemCode < b.ItemCode
		}
		return a.Direction < b.Direction
	})
	return out
}

func reconciliationParent(rec *entity.MovementRecord) (entity.DocumentRef, bool, bool) {
	if rec.IsReturnFlow() {
		return entity.DocumentRef{Type: entity.DocStockTransfer, ID: rec.ReturnLink.OutboundTransferID}, true, true
	}
	if rec.ParentID == "" {
		return entity.DocumentRef{}, false, false
	}
	return rec.Parent(), false, true
}

// expectedItems ítems que el documento origen espera mover. Para devoluciones son los ítems
// confirmados por las salidas emparejadas.
func expectedItems(in Input, fk flowKey) []entity.ParentItem {
	if fk.returnFlow {
		if paired := in.PairedOutbound[fk.parent.ID]; len(paired) > 0 {
			var items []entity.ParentItem
			for _, rec := range paired {
				if rec.Direction != entity.DirectionOutbound || !isCommitted(rec.Status) {
					continue
				}
				for _, l := range rec.Lines {
					items = append(items, entity.ParentItem{ItemCode: l.ItemCode, ItemName: l.ItemName, UOM: l.UOM})
				}
			}
			return items
		}
	}
	snap, ok := in.Parents[fk.parent]
	if !ok || snap == nil {
		return nil
	}
	return snap.Items
}

func requiredFor(in Input, k rowKey) (entity.RequiredQuantity, bool) {
	if k.returnFlow {
		if paired := in.PairedOutbound[k.parent.ID]; len(paired) > 0 {
			qty := decimal.Zero
			for _, rec := range paired {
				if rec.Direction != entity.DirectionOutbound || !isCommitted(rec.Status) {
					continue
				}
				qty = qty.Add(rec.ConfirmedByItem()[k.itemCode])
			}
			return entity.RequiredQuantity{Qty: qty}, true
		}
	}
	snap, ok := in.Parents[k.parent]
	if !ok || snap == nil {
		return entity.RequiredQuantity{Qty: decimal.Zero}, false
	}
	rq, ok := snap.RequiredQuantities()[k.itemCode]
	if !ok {
		return entity.RequiredQuantity{Qty: decimal.Zero}, true
	}
	return rq, true
}

func isCommitted(s entity.RecordStatus) bool {
	for _, c := range entity.CommittedStatuses {
		if s == c {
			return true
		}
	}
	return false
}

// VarianceSummary totales del informe de conciliación.
type VarianceSummary struct {
	Rows           int
	TotalRequired  decimal.Decimal
	TotalConfirmed decimal.Decimal
	TotalVariance  decimal.Decimal
	Discrepancies  int
	Indicator      string
}

// Summarize totales e indicador (rojo si la diferencia total no es cero).
func Summarize(rows []VarianceRow) VarianceSummary {
	s := VarianceSummary{
		Rows:           len(rows),
		TotalRequired:  decimal.Zero,
		TotalConfirmed: decimal.Zero,
		TotalVariance:  decimal.Zero,
	}
	for _, r := range rows {
		s.TotalRequired = s.TotalRequired.Add(r.RequiredQty)
		s.TotalConfirmed = s.TotalConfirmed.Add(r.ConfirmedQty)
		s.TotalVariance = s.TotalVariance.Add(r.Variance)
		if r.HasDiscrepancy {
			s.Discrepancies++
		}
	}
	s.Indicator = IndicatorGreen
	if s.TotalVariance.Abs().GreaterThan(ledger.Epsilon) {
		s.Indicator = IndicatorRed
	}
	return s
}
