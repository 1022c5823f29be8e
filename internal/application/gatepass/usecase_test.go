package gatepass

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Gatepass-api/internal/domain"
	"github.com/jhoicas/Gatepass-api/internal/domain/compliance"
	"github.com/jhoicas/Gatepass-api/internal/domain/entity"
)

func TestCreate_PrecargaLineasRecortadasAlPendiente(t *testing.T) {
	f := newFixture(t)
	ref := f.adapter.put(doc(entity.DocSalesInvoice, "SINV-1", item("ITEM-1", 10), item("ITEM-2", 4)))
	f.mustCreateSubmitted(t, ref, 3)

	rec, err := f.uc.Create(context.Background(), CreateCommand{
		CompanyID:  companyID,
		UserID:     "operador-1",
		ParentType: ref.Type,
		ParentID:   ref.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusDraft, rec.Status)
	assert.Equal(t, entity.DirectionOutbound, rec.Direction)
	require.Len(t, rec.Lines, 2)
	assert.True(t, rec.Lines[0].ConfirmedQty.Equal(qty(7)), "ITEM-1 debe quedar en lo pendiente")
	assert.True(t, rec.Lines[1].ConfirmedQty.Equal(qty(4)))
	assert.True(t, rec.Lines[0].Amount.Equal(qty(70)))
	assert.Equal(t, 1, rec.Lines[0].Position)
}

func TestCreate_DocumentoNoConfirmadoRechazado(t *testing.T) {
	f := newFixture(t)
	ref := f.adapter.put(doc(entity.DocSalesInvoice, "SINV-1", item("ITEM-1", 10)))
	f.adapter.setStatus(ref, entity.DocumentDraft)

	_, err := f.create(ref, 5)
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = f.create(entity.DocumentRef{Type: entity.DocSalesInvoice, ID: "NO-EXISTE"}, 1)
	assert.ErrorIs(t, err, domain.ErrDanglingReference)
}

func TestCreate_OtraEmpresaProhibida(t *testing.T) {
	f := newFixture(t)
	d := doc(entity.DocSalesInvoice, "SINV-1", item("ITEM-1", 10))
	d.CompanyID = "empresa-2"
	ref := f.adapter.put(d)

	_, err := f.create(ref, 5)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestLedger_SobreasignacionIndicaDisponible(t *testing.T) {
	f := newFixture(t)
	ref := f.adapter.put(doc(entity.DocSalesInvoice, "SINV-1", item("ITEM-1", 10)))
	f.mustCreateSubmitted(t, ref, 6)

	_, err := f.create(ref, 5)
	ge := requireGuard(t, err, domain.GuardAllocationExceeded)
	assert.ErrorIs(t, err, domain.ErrOverAllocation)
	assert.Equal(t, "ITEM-1", ge.ItemCode)
	assert.True(t, ge.Available.Equal(qty(4)))
	assert.True(t, ge.Requested.Equal(qty(5)))

	_, err = f.create(ref, 4)
	assert.NoError(t, err)
}

func TestLedger_LineasDelMismoItemSeSuman(t *testing.T) {
	f := newFixture(t)
	ref := f.adapter.put(doc(entity.DocSalesInvoice, "SINV-1", item("ITEM-1", 10)))

	_, err := f.create(ref, 6, 5)
	requireGuard(t, err, domain.GuardAllocationExceeded)

	rec, err := f.create(ref, 6, 4)
	require.NoError(t, err)
	assert.True(t, rec.TotalConfirmed().Equal(qty(10)))
}

func TestLedger_CreacionesConcurrentesNoExcedenRequerido(t *testing.T) {
	f := newFixture(t)
	ref := f.adapter.put(doc(entity.DocSalesInvoice, "SINV-1", item("ITEM-1", 10)))

	var wg sync.WaitGroup
	var mu sync.Mutex
	var created []*entity.MovementRecord
	overAllocated := 0
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := f.create(ref, 4)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if _, ok := domain.AsGuardError(err); ok {
					overAllocated++
				}
				return
			}
			created = append(created, rec)
		}()
	}
	wg.Wait()

	assert.Len(t, created, 2)
	assert.Equal(t, 3, overAllocated)
	for _, rec := range created {
		_, err := f.submit(rec.ID)
		require.NoError(t, err)
	}
	list, err := f.uc.List(context.Background(), listFilter(ref))
	require.NoError(t, err)
	total := qty(0)
	for _, rec := range list {
		total = total.Add(rec.TotalConfirmed())
	}
	assert.True(t, total.LessThanOrEqual(qty(10)))
}

func TestLedger_SubmitConcurrentesSobreBorradoresEditados(t *testing.T) {
	f := newFixture(t)
	ref := f.adapter.put(doc(entity.DocSalesInvoice, "SINV-1", item("ITEM-1", 10)))
	a, err := f.create(ref, 4)
	require.NoError(t, err)
	b, err := f.create(ref, 4)
	require.NoError(t, err)

	// B intenta subir su línea a 7 mientras ambos confirman.
	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); _, _ = f.submit(a.ID) }()
	go func() { defer wg.Done(); _, _ = f.submit(b.ID) }()
	go func() {
		defer wg.Done()
		_, _ = f.uc.SetLineQuantity(context.Background(), SetLineQuantityCommand{
			RecordID: b.ID, CompanyID: companyID, LineID: b.Lines[0].ID, ConfirmedQty: qty(7),
		})
	}()
	wg.Wait()

	list, err := f.uc.List(context.Background(), listFilter(ref))
	require.NoError(t, err)
	total := qty(0)
	for _, rec := range list {
		if rec.Status != entity.StatusCancelled {
			total = total.Add(rec.TotalConfirmed())
		}
	}
	assert.True(t, total.LessThanOrEqual(qty(10)), "total %s", total)
}

func TestCancel_LiberaCantidadEnElLibro(t *testing.T) {
	f := newFixture(t)
	ref := f.adapter.put(doc(entity.DocSalesInvoice, "SINV-1", item("ITEM-1", 10)))
	a := f.mustCreateSubmitted(t, ref, 10)

	_, err := f.create(ref, 5)
	ge := requireGuard(t, err, domain.GuardAllocationExceeded)
	assert.True(t, ge.Available.IsZero())

	cancelled, err := f.uc.Cancel(context.Background(), TransitionCommand{RecordID: a.ID, CompanyID: companyID})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	b, err := f.create(ref, 10)
	require.NoError(t, err)
	_, err = f.submit(b.ID)
	assert.NoError(t, err)

	_, err = f.uc.Cancel(context.Background(), TransitionCommand{RecordID: a.ID, CompanyID: companyID})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestSetLineQuantity_PasaPorElLibro(t *testing.T) {
	f := newFixture(t)
	ref := f.adapter.put(doc(entity.DocSalesInvoice, "SINV-1", item("ITEM-1", 10)))
	a, err := f.create(ref, 5)
	require.NoError(t, err)
	_, err = f.create(ref, 5)
	require.NoError(t, err)

	_, err = f.uc.SetLineQuantity(context.Background(), SetLineQuantityCommand{
		RecordID: a.ID, CompanyID: companyID, LineID: a.Lines[0].ID, ConfirmedQty: qty(6),
	})
	requireGuard(t, err, domain.GuardAllocationExceeded)

	updated, err := f.uc.SetLineQuantity(context.Background(), SetLineQuantityCommand{
		RecordID: a.ID, CompanyID: companyID, LineID: a.Lines[0].ID, ConfirmedQty: qty(2),
	})
	require.NoError(t, err)
	assert.True(t, updated.Lines[0].Amount.Equal(qty(20)))

	got, err := f.uc.Get(context.Background(), a.ID, companyID)
	require.NoError(t, err)
	assert.True(t, got.Lines[0].ConfirmedQty.Equal(qty(2)))
}

func TestAddRemoveLine_SoloEnBorrador(t *testing.T) {
	f := newFixture(t)
	ref := f.adapter.put(doc(entity.DocSalesInvoice, "SINV-1", item("ITEM-1", 10), item("ITEM-2", 3)))
	rec, err := f.create(ref, 5)
	require.NoError(t, err)

	rec, err = f.uc.AddLine(context.Background(), AddLineCommand{
		RecordID: rec.ID, CompanyID: companyID, Line: LineInput{ItemCode: "ITEM-2", ConfirmedQty: qty(3)},
	})
	require.NoError(t, err)
	require.Len(t, rec.Lines, 2)
	assert.Equal(t, 2, rec.Lines[1].Position)

	_, err = f.uc.AddLine(context.Background(), AddLineCommand{
		RecordID: rec.ID, CompanyID: companyID, Line: LineInput{ItemCode: "ITEM-9", ConfirmedQty: qty(1)},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	rec, err = f.uc.RemoveLine(context.Background(), RemoveLineCommand{RecordID: rec.ID, CompanyID: companyID, LineID: rec.Lines[1].ID})
	require.NoError(t, err)
	assert.Len(t, rec.Lines, 1)

	_, err = f.submit(rec.ID)
	require.NoError(t, err)
	_, err = f.uc.AddLine(context.Background(), AddLineCommand{
		RecordID: rec.ID, CompanyID: companyID, Line: LineInput{ItemCode: "ITEM-2", ConfirmedQty: qty(1)},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestSubmit_CamposObligatorios(t *testing.T) {
	f := newFixture(t)
	ref := f.adapter.put(doc(entity.DocSalesInvoice, "SINV-1", item("ITEM-1", 10)))
	rec, err := f.uc.Create(context.Background(), CreateCommand{
		CompanyID: companyID, ParentType: ref.Type, ParentID: ref.ID,
		Lines: []LineInput{{ItemCode: "ITEM-1", ConfirmedQty: qty(2)}},
	})
	require.NoError(t, err)

	_, err = f.submit(rec.ID)
	ge := requireGuard(t, err, domain.GuardMissingField)
	assert.Equal(t, "vehicle_number", ge.Field)
	assert.ErrorIs(t, err, domain.ErrMissingRequiredField)

	vehicle := "XYZ987"
	_, err = f.uc.UpdateTransport(context.Background(), TransportCommand{RecordID: rec.ID, CompanyID: companyID, VehicleNumber: &vehicle})
	require.NoError(t, err)
	_, err = f.submit(rec.ID)
	ge = requireGuard(t, err, domain.GuardMissingField)
	assert.Equal(t, "driver_name", ge.Field)

	driver, contact := "Ana", "+57 300-123 4567"
	updated, err := f.uc.UpdateTransport(context.Background(), TransportCommand{RecordID: rec.ID, CompanyID: companyID, DriverName: &driver, DriverContact: &contact})
	require.NoError(t, err)
	assert.Equal(t, "+573001234567", updated.DriverContact)

	submitted, err := f.submit(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusSubmitted, submitted.Status)
	require.NotNil(t, submitted.SubmittedAt)
}

func TestSubmit_SalidaConLineaEnCeroRechazada(t *testing.T) {
	f := newFixture(t)
	ref := f.adapter.put(doc(entity.DocSalesInvoice, "SINV-1", item("ITEM-1", 10)))
	rec, err := f.create(ref, 5, 0)
	require.NoError(t, err)

	_, err = f.submit(rec.ID)
	ge := requireGuard(t, err, domain.GuardMissingField)
	assert.Equal(t, "confirmed_qty", ge.Field)
}

func TestSubmit_DocumentoOrigenAnulado(t *testing.T) {
	f := newFixture(t)
	ref := f.adapter.put(doc(entity.DocSalesInvoice, "SINV-1", item("ITEM-1", 10)))
	rec, err := f.create(ref, 5)
	require.NoError(t, err)
	f.adapter.setStatus(ref, entity.DocumentCancelled)

	_, err = f.submit(rec.ID)
	assert.ErrorIs(t, err, domain.ErrDanglingReference)

	got, err := f.uc.Get(context.Background(), rec.ID, companyID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusDraft, got.Status)
}

func TestSubmit_AdaptadorCaido(t *testing.T) {
	f := newFixture(t)
	ref := f.adapter.put(doc(entity.DocSalesInvoice, "SINV-1", item("ITEM-1", 10)))
	rec, err := f.create(ref, 5)
	require.NoError(t, err)
	f.adapter.setDown(true)

	_, err = f.submit(rec.ID)
	assert.ErrorIs(t, err, domain.ErrAdapterUnavailable)
}

func TestSubmit_CompuertaBloqueaYLuegoPermite(t *testing.T) {
	f := newFixture(t)
	d := doc(entity.DocSalesInvoice, "SINV-1", item("ITEM-1", 10))
	d.DocumentValue = qty(100000)
	ref := f.adapter.put(d)
	rec, err := f.create(ref, 10)
	require.NoError(t, err)

	res, err := f.uc.Compliance(context.Background(), rec.ID, companyID)
	require.NoError(t, err)
	assert.Equal(t, compliance.StatusPending, res.Status)

	_, err = f.submit(rec.ID)
	ge := requireGuard(t, err, domain.GuardComplianceBlocked)
	assert.ErrorIs(t, err, domain.ErrComplianceBlocked)
	assert.Equal(t, []string{compliance.ArtifactEInvoice, compliance.ArtifactEWayBill}, ge.Missing)

	got, err := f.uc.Get(context.Background(), rec.ID, companyID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusDraft, got.Status, "un bloqueo no deja estado parcial")

	f.adapter.setCompliance(ref, &entity.ComplianceSnapshot{
		InvoiceApprovalState: "Generated",
		WayBillApprovalState: "Manually Generated",
		DocumentValue:        qty(100000),
	})
	res, err = f.uc.Compliance(context.Background(), rec.ID, companyID)
	require.NoError(t, err)
	assert.Equal(t, compliance.StatusReady, res.Status)

	submitted, err := f.submit(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusSubmitted, submitted.Status)
}

func TestCompliance_DebajoDelUmbralYEntradasNoAplica(t *testing.T) {
	f := newFixture(t)
	ref := f.adapter.put(doc(entity.DocDeliveryNote, "DN-1", item("ITEM-1", 10)))
	rec, err := f.create(ref, 10)
	require.NoError(t, err)

	res, err := f.uc.Compliance(context.Background(), rec.ID, companyID)
	require.NoError(t, err)
	assert.Equal(t, compliance.StatusNotRequired, res.Status)

	po := f.adapter.put(doc(entity.DocPurchaseOrder, "PO-1", item("ITEM-1", 10)))
	in, err := f.create(po, 10)
	require.NoError(t, err)
	res, err = f.uc.Compliance(context.Background(), in.ID, companyID)
	require.NoError(t, err)
	assert.Equal(t, compliance.StatusNotApplicable, res.Status)
}

func TestOpenEnded_SinTopeDeCantidad(t *testing.T) {
	f := newFixture(t)
	it := item("ITEM-1", 5)
	it.OpenEnded = true
	ref := f.adapter.put(doc(entity.DocSalesInvoice, "SINV-1", it))

	rec, err := f.create(ref, 500)
	require.NoError(t, err)
	_, err = f.submit(rec.ID)
	require.NoError(t, err)

	_, err = f.create(ref, 500)
	assert.NoError(t, err)
}

func TestFlujoAbierto_SoloEximeTransporte(t *testing.T) {
	f := newFixture(t)
	ref := f.adapter.put(doc(entity.DocSalesInvoice, "SINV-1", item("ITEM-1", 100)))
	openCmd := func(q int64) CreateCommand {
		return CreateCommand{
			CompanyID:  companyID,
			UserID:     "operador-1",
			ParentType: ref.Type,
			ParentID:   ref.ID,
			OpenEnded:  true,
			Lines:      []LineInput{{ItemCode: "ITEM-1", ConfirmedQty: qty(q)}},
		}
	}

	_, err := f.uc.Create(context.Background(), openCmd(500))
	ge := requireGuard(t, err, domain.GuardAllocationExceeded)
	assert.True(t, ge.Available.Equal(qty(100)))

	rec, err := f.uc.Create(context.Background(), openCmd(80))
	require.NoError(t, err)
	_, err = f.uc.SetLineQuantity(context.Background(), SetLineQuantityCommand{
		RecordID: rec.ID, CompanyID: companyID, LineID: rec.Lines[0].ID, ConfirmedQty: qty(500),
	})
	requireGuard(t, err, domain.GuardAllocationExceeded)

	// sin vehículo ni conductor: el flujo abierto los exime
	submitted, err := f.submit(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusSubmitted, submitted.Status)
	assert.True(t, submitted.TotalConfirmed().Equal(qty(80)))
}

func TestEntradaDeCompra_NoAcotadaPorElLibro(t *testing.T) {
	f := newFixture(t)
	ref := f.adapter.put(doc(entity.DocPurchaseOrder, "PO-1", item("ITEM-1", 10)))
	rec, err := f.create(ref, 12)
	require.NoError(t, err)
	assert.Equal(t, entity.DirectionInbound, rec.Direction)
	_, err = f.submit(rec.ID)
	assert.NoError(t, err)
}

func TestSetDiscrepancy_DesmarcarLimpiaYLimites(t *testing.T) {
	f := newFixture(t)
	ref := f.adapter.put(doc(entity.DocPurchaseOrder, "PO-1", item("ITEM-1", 10)))
	rec, err := f.create(ref, 10)
	require.NoError(t, err)

	notes := "caja golpeada"
	got, err := f.uc.SetDiscrepancy(context.Background(), DiscrepancyCommand{
		RecordID: rec.ID, CompanyID: companyID, HasDiscrepancy: true, LostQty: qty(2), DamagedQty: qty(3), Notes: &notes,
	})
	require.NoError(t, err)
	assert.True(t, got.Discrepancy.HasDiscrepancy)
	assert.True(t, got.Discrepancy.DamagedQty.Equal(qty(3)))

	_, err = f.uc.SetDiscrepancy(context.Background(), DiscrepancyCommand{
		RecordID: rec.ID, CompanyID: companyID, HasDiscrepancy: true, LostQty: qty(8), DamagedQty: qty(3),
	})
	requireGuard(t, err, domain.GuardDiscrepancyOutOfBounds)

	got, err = f.uc.SetDiscrepancy(context.Background(), DiscrepancyCommand{
		RecordID: rec.ID, CompanyID: companyID, HasDiscrepancy: false, LostQty: qty(2), Notes: &notes,
	})
	require.NoError(t, err)
	assert.False(t, got.Discrepancy.HasDiscrepancy)
	assert.True(t, got.Discrepancy.LostQty.IsZero())
	assert.True(t, got.Discrepancy.DamagedQty.IsZero())
	assert.Nil(t, got.Discrepancy.Notes)
}

func TestSetDiscrepancy_VentanaTrasConfirmar(t *testing.T) {
	f := newFixture(t)
	ref := f.adapter.put(doc(entity.DocPurchaseOrder, "PO-1", item("ITEM-1", 10)))
	rec := f.mustCreateSubmitted(t, ref, 10)

	f.now = f.now.Add(2 * time.Hour)
	_, err := f.uc.SetDiscrepancy(context.Background(), DiscrepancyCommand{
		RecordID: rec.ID, CompanyID: companyID, HasDiscrepancy: true, LostQty: qty(1),
	})
	require.NoError(t, err)

	f.now = f.now.Add(23 * time.Hour)
	_, err = f.uc.SetDiscrepancy(context.Background(), DiscrepancyCommand{
		RecordID: rec.ID, CompanyID: companyID, HasDiscrepancy: false,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestReturnFlow_AcotadoPorLaSalidaEmparejada(t *testing.T) {
	f := newFixture(t)
	out := doc(entity.DocStockTransfer, "STE-OUT-1", item("ITEM-1", 10))
	out.TransferKind = entity.TransferSendToSubcontract
	ref := f.adapter.put(out)
	f.mustCreateSubmitted(t, ref, 6)

	ret := CreateCommand{
		CompanyID: companyID, ParentType: ref.Type, ParentID: ref.ID, Direction: entity.DirectionInbound,
		VehicleNumber: "ABC123", DriverName: "Pedro",
		Lines: []LineInput{{ItemCode: "ITEM-1", ConfirmedQty: qty(7)}},
	}
	_, err := f.uc.Create(context.Background(), ret)
	ge := requireGuard(t, err, domain.GuardAllocationExceeded)
	assert.True(t, ge.Available.Equal(qty(6)))

	ret.Lines[0].ConfirmedQty = qty(6)
	rec, err := f.uc.Create(context.Background(), ret)
	require.NoError(t, err)
	assert.True(t, rec.IsReturnFlow())
	assert.Equal(t, entity.DirectionInbound, rec.Direction)

	submitted, err := f.submit(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, ref.ID, submitted.ReturnLink.OutboundTransferID)
}

func TestReturnFlow_TrasladoAnuladoSeTrataComoAusente(t *testing.T) {
	f := newFixture(t)
	out := doc(entity.DocStockTransfer, "STE-OUT-1", item("ITEM-1", 10))
	out.TransferKind = entity.TransferSendToSubcontract
	outRef := f.adapter.put(out)
	ret := doc(entity.DocStockTransfer, "STE-RET-1", item("ITEM-1", 4))
	ret.IsReturn = true
	ret.ReturnAgainst = outRef.ID
	retRef := f.adapter.put(ret)

	rec, err := f.create(retRef, 4)
	require.NoError(t, err)
	require.NotNil(t, rec.ReturnLink)
	assert.Equal(t, outRef.ID, rec.ReturnLink.OutboundTransferID)

	f.adapter.setStatus(outRef, entity.DocumentCancelled)
	submitted, err := f.submit(rec.ID)
	require.NoError(t, err, "un vínculo obsoleto no bloquea la confirmación")
	assert.Nil(t, submitted.ReturnLink)
	assert.Equal(t, entity.StatusSubmitted, submitted.Status)
}

func TestSetReturnLink_ValidacionEstricta(t *testing.T) {
	f := newFixture(t)
	po := f.adapter.put(doc(entity.DocPurchaseOrder, "PO-1", item("ITEM-1", 10)))
	in, err := f.create(po, 3)
	require.NoError(t, err)

	_, err = f.uc.SetReturnLink(context.Background(), ReturnLinkCommand{RecordID: in.ID, CompanyID: companyID, OutboundRecordID: "no-existe"})
	assert.ErrorIs(t, err, domain.ErrDanglingReference)

	sinv := f.adapter.put(doc(entity.DocSalesInvoice, "SINV-1", item("ITEM-1", 10)))
	draftOut, err := f.create(sinv, 2)
	require.NoError(t, err)
	_, err = f.uc.SetReturnLink(context.Background(), ReturnLinkCommand{RecordID: in.ID, CompanyID: companyID, OutboundRecordID: draftOut.ID})
	assert.ErrorIs(t, err, domain.ErrDanglingReference, "un borrador no es destino válido")

	_, err = f.submit(draftOut.ID)
	require.NoError(t, err)
	linked, err := f.uc.SetReturnLink(context.Background(), ReturnLinkCommand{RecordID: in.ID, CompanyID: companyID, OutboundRecordID: draftOut.ID})
	require.NoError(t, err)
	assert.Equal(t, draftOut.ID, linked.ReturnLink.OutboundRecordID)

	_, err = f.uc.SetReturnLink(context.Background(), ReturnLinkCommand{RecordID: draftOut.ID, CompanyID: companyID, OutboundRecordID: draftOut.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCancel_SalidaLimpiaVinculosDeDevolucion(t *testing.T) {
	f := newFixture(t)
	sinv := f.adapter.put(doc(entity.DocSalesInvoice, "SINV-1", item("ITEM-1", 10)))
	out := f.mustCreateSubmitted(t, sinv, 5)
	po := f.adapter.put(doc(entity.DocPurchaseOrder, "PO-1", item("ITEM-1", 10)))
	in, err := f.create(po, 2)
	require.NoError(t, err)
	_, err = f.uc.SetReturnLink(context.Background(), ReturnLinkCommand{RecordID: in.ID, CompanyID: companyID, OutboundRecordID: out.ID})
	require.NoError(t, err)

	_, err = f.uc.Cancel(context.Background(), TransitionCommand{RecordID: out.ID, CompanyID: companyID})
	require.NoError(t, err)

	got, err := f.uc.Get(context.Background(), in.ID, companyID)
	require.NoError(t, err)
	assert.Nil(t, got.ReturnLink)
	assert.Equal(t, entity.StatusDraft, got.Status, "la entrada referente sigue vigente")
}

func TestDelete_SoloBorradores(t *testing.T) {
	f := newFixture(t)
	ref := f.adapter.put(doc(entity.DocSalesInvoice, "SINV-1", item("ITEM-1", 10)))
	draft, err := f.create(ref, 2)
	require.NoError(t, err)
	submitted := f.mustCreateSubmitted(t, ref, 3)

	require.NoError(t, f.uc.Delete(context.Background(), DeleteCommand{RecordID: draft.ID, CompanyID: companyID}))
	_, err = f.uc.Get(context.Background(), draft.ID, companyID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = f.uc.Delete(context.Background(), DeleteCommand{RecordID: submitted.ID, CompanyID: companyID})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestGet_OtraEmpresaNoVe(t *testing.T) {
	f := newFixture(t)
	ref := f.adapter.put(doc(entity.DocSalesInvoice, "SINV-1", item("ITEM-1", 10)))
	rec, err := f.create(ref, 2)
	require.NoError(t, err)

	_, err = f.uc.Get(context.Background(), rec.ID, "empresa-2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
