package reconciliation_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Gatepass-api/internal/domain/compliance"
	"github.com/jhoicas/Gatepass-api/internal/domain/entity"
	"github.com/jhoicas/Gatepass-api/internal/domain/reconciliation"
)

func qty(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func record(id string, dir entity.Direction, parent entity.DocumentRef, status entity.RecordStatus, lines ...entity.ItemAllocation) *entity.MovementRecord {
	return &entity.MovementRecord{
		ID:         id,
		Direction:  dir,
		ParentType: parent.Type,
		ParentID:   parent.ID,
		Status:     status,
		RecordDate: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		Lines:      lines,
	}
}

func line(item string, confirmed int64) entity.ItemAllocation {
	return entity.ItemAllocation{ItemCode: item, UOM: "Nos", ConfirmedQty: qty(confirmed)}
}

var so = entity.DocumentRef{Type: entity.DocSalesInvoice, ID: "SINV-001"}

func parentWith(ref entity.DocumentRef, items ...entity.ParentItem) *entity.ParentDocumentSnapshot {
	return &entity.ParentDocumentSnapshot{Type: ref.Type, ID: ref.ID, Status: entity.DocumentSubmitted, Items: items}
}

func TestVariance_SumaRegistrosConfirmadosContraRequerido(t *testing.T) {
	in := reconciliation.Input{
		Records: []*entity.MovementRecord{
			record("A", entity.DirectionOutbound, so, entity.StatusSubmitted, line("X", 60)),
			record("B", entity.DirectionOutbound, so, entity.StatusReceipted, line("X", 30)),
			record("C", entity.DirectionOutbound, so, entity.StatusCancelled, line("X", 40)),
			record("D", entity.DirectionOutbound, so, entity.StatusDraft, line("X", 10)),
		},
		Parents: map[entity.DocumentRef]*entity.ParentDocumentSnapshot{
			so: parentWith(so, entity.ParentItem{ItemCode: "X", RequiredQty: qty(100)}),
		},
	}
	rows := reconciliation.Variance(in)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].ConfirmedQty.Equal(qty(90)))
	assert.True(t, rows[0].Variance.Equal(qty(-10)))
	assert.True(t, rows[0].HasDiscrepancy)
	assert.Equal(t, []string{"A", "B"}, rows[0].RecordIDs)
}

func TestVariance_SinDiferenciaNiBanderaNoHayDiscrepancia(t *testing.T) {
	in := reconciliation.Input{
		Records: []*entity.MovementRecord{record("A", entity.DirectionOutbound, so, entity.StatusSubmitted, line("X", 100))},
		Parents: map[entity.DocumentRef]*entity.ParentDocumentSnapshot{
			so: parentWith(so, entity.ParentItem{ItemCode: "X", RequiredQty: qty(100)}),
		},
	}
	rows := reconciliation.Variance(in)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].HasDiscrepancy)

	in.Records[0].Discrepancy.HasDiscrepancy = true
	rows = reconciliation.Variance(in)
	assert.True(t, rows[0].HasDiscrepancy, "la bandera del registro marca la fila")
}

func TestVariance_ItemSinMovimientoFiguraConFaltanteTotal(t *testing.T) {
	po := entity.DocumentRef{Type: entity.DocPurchaseOrder, ID: "PO-9"}
	in := reconciliation.Input{
		Records: []*entity.MovementRecord{
			record("A", entity.DirectionOutbound, so, entity.StatusSubmitted, line("X", 100)),
			record("B", entity.DirectionInbound, po, entity.StatusDraft, line("Z", 1)),
		},
		Parents: map[entity.DocumentRef]*entity.ParentDocumentSnapshot{
			so: parentWith(so,
				entity.ParentItem{ItemCode: "X", RequiredQty: qty(100)},
				entity.ParentItem{ItemCode: "Y", ItemName: "Arandela", UOM: "Nos", RequiredQty: qty(40)},
				entity.ParentItem{ItemCode: "W", OpenEnded: true},
			),
			po: parentWith(po, entity.ParentItem{ItemCode: "Z", RequiredQty: qty(3)}),
		},
	}
	rows := reconciliation.Variance(in)
	require.Len(t, rows, 3, "el documento sin registros confirmados no aporta filas")

	byItem := make(map[string]reconciliation.VarianceRow)
	for _, r := range rows {
		byItem[r.ItemCode] = r
	}
	y := byItem["Y"]
	assert.Equal(t, "Arandela", y.ItemName)
	assert.Equal(t, entity.DirectionOutbound, y.Direction)
	assert.True(t, y.ConfirmedQty.IsZero())
	assert.True(t, y.Variance.Equal(qty(-40)))
	assert.True(t, y.HasDiscrepancy)
	assert.Empty(t, y.RecordIDs)

	assert.True(t, byItem["X"].Variance.IsZero())
	assert.True(t, byItem["W"].Variance.IsZero())
	assert.True(t, byItem["W"].OpenEnded)

	sum := reconciliation.Summarize(rows)
	assert.True(t, sum.TotalVariance.Equal(qty(-40)))
	assert.Equal(t, reconciliation.IndicatorRed, sum.Indicator)
}

func TestVariance_ItemAbiertoNoGeneraDiferencia(t *testing.T) {
	in := reconciliation.Input{
		Records: []*entity.MovementRecord{record("A", entity.DirectionOutbound, so, entity.StatusSubmitted, line("X", 500))},
		Parents: map[entity.DocumentRef]*entity.ParentDocumentSnapshot{
			so: parentWith(so, entity.ParentItem{ItemCode: "X", OpenEnded: true}),
		},
	}
	rows := reconciliation.Variance(in)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Variance.IsZero())
	assert.True(t, rows[0].OpenEnded)
}

func TestVariance_DocumentoOrigenNoDisponible(t *testing.T) {
	in := reconciliation.Input{
		Records: []*entity.MovementRecord{record("A", entity.DirectionOutbound, so, entity.StatusSubmitted, line("X", 5))},
	}
	rows := reconciliation.Variance(in)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].ParentAvailable)
	assert.True(t, rows[0].Variance.IsZero())
}

func TestVariance_DevolucionContraSalidasEmparejadas(t *testing.T) {
	transfer := entity.DocumentRef{Type: entity.DocStockTransfer, ID: "STE-OUT-1"}
	ret := record("R", entity.DirectionInbound, entity.DocumentRef{Type: entity.DocStockTransfer, ID: "STE-RET-1"},
		entity.StatusSubmitted, line("X", 18))
	ret.ReturnLink = &entity.ReturnLink{OutboundTransferID: transfer.ID}

	in := reconciliation.Input{
		Records: []*entity.MovementRecord{ret},
		PairedOutbound: map[string][]*entity.MovementRecord{
			transfer.ID: {
				record("O1", entity.DirectionOutbound, transfer, entity.StatusSubmitted, line("X", 12)),
				record("O2", entity.DirectionOutbound, transfer, entity.StatusSubmitted, line("X", 8)),
				record("O3", entity.DirectionOutbound, transfer, entity.StatusCancelled, line("X", 50)),
			},
		},
	}
	rows := reconciliation.Variance(in)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].ReturnFlow)
	assert.Equal(t, transfer, rows[0].Parent)
	assert.True(t, rows[0].RequiredQty.Equal(qty(20)))
	assert.True(t, rows[0].Variance.Equal(qty(-2)))
}

func TestSummarize_Indicador(t *testing.T) {
	s := reconciliation.Summarize([]reconciliation.VarianceRow{
		{RequiredQty: qty(10), ConfirmedQty: qty(10), Variance: decimal.Zero},
	})
	assert.Equal(t, reconciliation.IndicatorGreen, s.Indicator)

	s = reconciliation.Summarize([]reconciliation.VarianceRow{
		{RequiredQty: qty(10), ConfirmedQty: qty(8), Variance: qty(-2), HasDiscrepancy: true},
		{RequiredQty: qty(5), ConfirmedQty: qty(5), Variance: decimal.Zero},
	})
	assert.Equal(t, reconciliation.IndicatorRed, s.Indicator)
	assert.Equal(t, 1, s.Discrepancies)
	assert.True(t, s.TotalRequired.Equal(qty(15)))
}

func TestPendingAging_MotivosYColores(t *testing.T) {
	now := time.Date(2026, 3, 12, 15, 0, 0, 0, time.UTC)
	inbound := record("IN-1", entity.DirectionInbound, entity.DocumentRef{Type: entity.DocPurchaseOrder, ID: "PO-1"}, entity.StatusSubmitted, line("X", 1))
	inbound.RecordDate = time.Date(2026, 3, 12, 8, 0, 0, 0, time.UTC)
	receipted := record("IN-2", entity.DirectionInbound, entity.DocumentRef{Type: entity.DocPurchaseOrder, ID: "PO-1"}, entity.StatusSubmitted, line("X", 1))
	receipted.Receipt = &entity.DocumentRef{Type: "PURCHASE_RECEIPT", ID: "PR-1"}
	blocked := record("OUT-1", entity.DirectionOutbound, so, entity.StatusDraft, line("X", 1))
	blocked.RecordDate = time.Date(2026, 3, 11, 23, 0, 0, 0, time.UTC)
	draft := record("OUT-2", entity.DirectionOutbound, so, entity.StatusDraft, line("X", 1))

	rows, sum := reconciliation.PendingAging(reconciliation.PendingInput{
		Records: []*entity.MovementRecord{inbound, receipted, blocked, draft},
		Compliance: map[string]compliance.Result{
			"OUT-1": {Passed: false, Status: compliance.StatusPending},
			"OUT-2": {Passed: true, Status: compliance.StatusNotRequired},
		},
		Now: now,
	})

	require.Len(t, rows, 3)
	assert.Equal(t, "IN-1", rows[0].RecordID)
	assert.Equal(t, reconciliation.ReasonAwaitingReceipt, rows[0].Reason)
	assert.Equal(t, reconciliation.IndicatorGreen, rows[0].AgingColor)

	assert.Equal(t, "OUT-1", rows[1].RecordID)
	assert.Equal(t, reconciliation.ReasonCompliancePending, rows[1].Reason)
	assert.Equal(t, 1, rows[1].AgingDays)
	assert.Equal(t, reconciliation.IndicatorOrange, rows[1].AgingColor)

	assert.Equal(t, reconciliation.ReasonAwaitingSubmission, rows[2].Reason)
	assert.Equal(t, reconciliation.IndicatorRed, rows[2].AgingColor)

	assert.Equal(t, reconciliation.PendingSummary{Total: 3, InboundAwaitingReceipt: 1, OutboundAwaitingSubmission: 2, CompliancePending: 1}, sum)
}

func TestDailyRegister_AgrupaPorDia(t *testing.T) {
	a := record("A", entity.DirectionOutbound, so, entity.StatusSubmitted, line("X", 2), line("Y", 3))
	b := record("B", entity.DirectionInbound, entity.DocumentRef{Type: entity.DocPurchaseOrder, ID: "PO-1"}, entity.StatusReceipted, line("Z", 1))
	b.RecordDate = a.RecordDate.Add(24 * time.Hour)
	c := record("C", entity.DirectionInbound, so, entity.StatusDraft, line("Z", 1))

	days := reconciliation.DailyRegister([]*entity.MovementRecord{a, b, c})
	require.Len(t, days, 2)
	assert.Equal(t, "2026-03-11", days[0].Date)
	assert.Equal(t, 1, days[0].Inbound)
	assert.Equal(t, "2026-03-10", days[1].Date)
	assert.Equal(t, 1, days[1].Outbound)
	assert.Equal(t, "X (2 Nos), Y (3 Nos)", days[1].Entries[0].MaterialSummary)
	assert.True(t, days[1].Entries[0].TotalQty.Equal(qty(5)))
}
