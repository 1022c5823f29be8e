package http_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Gatepass-api/internal/application/gatepass"
	"github.com/jhoicas/Gatepass-api/internal/application/reporting"
	"github.com/jhoicas/Gatepass-api/internal/domain/compliance"
	"github.com/jhoicas/Gatepass-api/internal/domain/entity"
	"github.com/jhoicas/Gatepass-api/internal/infrastructure/erp"
	"github.com/jhoicas/Gatepass-api/internal/infrastructure/memory"
	"github.com/jhoicas/Gatepass-api/internal/infrastructure/metrics"
	"github.com/jhoicas/Gatepass-api/internal/infrastructure/pdf"
	apphttp "github.com/jhoicas/Gatepass-api/internal/interfaces/http"
	"github.com/jhoicas/Gatepass-api/pkg/logger"
)

// erpStub ERP mínimo: documentos por ruta, referencias escritas y un interruptor de caída.
type erpStub struct {
	mu       sync.Mutex
	docs     map[string]string
	comp     map[string]string
	refs     map[string]*string
	down     bool
	receipts int
}

func newERPStub() *erpStub {
	return &erpStub{docs: map[string]string{}, comp: map[string]string{}, refs: map[string]*string{}}
}

func (s *erpStub) putDoc(path string, grandTotal int, items string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := path[strings.LastIndex(path, "/")+1:]
	s.docs[path] = fmt.Sprintf(`{"id":%q,"status":"SUBMITTED","company":%q,"party":"Cliente Uno","grand_total":%d,"items":[%s]}`,
		id, testCompanyID, grandTotal, items)
}

func (s *erpStub) setDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

func (s *erpStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/purchase-receipts":
		s.receipts++
		_, _ = fmt.Fprintf(w, `{"id":"PR-%d"}`, s.receipts)
	case r.Method == http.MethodPut && strings.HasSuffix(r.URL.Path, "/gate-pass"):
		var body struct {
			GatePass *string `json:"gate_pass"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.refs[strings.TrimSuffix(r.URL.Path, "/gate-pass")] = body.GatePass
		w.WriteHeader(http.StatusNoContent)
	case strings.HasSuffix(r.URL.Path, "/compliance"):
		if c, ok := s.comp[strings.TrimSuffix(r.URL.Path, "/compliance")]; ok {
			_, _ = io.WriteString(w, c)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	default:
		if d, ok := s.docs[r.URL.Path]; ok {
			_, _ = io.WriteString(w, d)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}
}

type testServer struct {
	app     *fiber.App
	erp     *erpStub
	metrics *metrics.Collector
}

func newTestServer(t *testing.T, threshold int64) *testServer {
	t.Helper()
	stub := newERPStub()
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	log := logger.Nop()
	client := erp.NewClient(erp.ClientConfig{BaseURL: srv.URL, Timeout: time.Second, MaxFailures: 100, OpenInterval: time.Minute}, log)
	registry := erp.NewRegistry(client, erp.DefaultSources(client)...)
	store := memory.NewStore()
	collector := metrics.New()
	policy := compliance.Policy{Threshold: decimal.NewFromInt(threshold)}

	uc := gatepass.NewUseCase(store, store.Records(), store.Tasks(), registry, nil, collector, log, gatepass.Options{
		Compliance:      policy,
		AutoCreateTypes: []entity.DocumentType{entity.DocStockTransfer},
	})
	reportUC := reporting.NewUseCase(store.Records(), registry, policy, log, nil)

	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		GatePassUC:  uc,
		ReportingUC: reportUC,
		SlipUC:      gatepass.NewSlipUseCase(uc, pdf.NewMarotoPDFGenerator("Bodega de pruebas")),
		Metrics:     collector.Handler(),
		JWTSecret:   testJWTSecret,
		JWTIssuer:   testIssuer,
	})
	return &testServer{app: app, erp: stub, metrics: collector}
}

// call lanza la petición con el rol dado y decodifica el cuerpo JSON en out (si no es nil).
func (s *testServer) call(t *testing.T, role, method, path string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", tokenForRole(t, role))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, out), "cuerpo: %s", raw)
	}
	return resp.StatusCode
}

type recordBody struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Direction string `json:"direction"`
	Receipt   *struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"receipt"`
	Lines []struct {
		ID           string `json:"id"`
		ItemCode     string `json:"item_code"`
		ConfirmedQty string `json:"confirmed_qty"`
	} `json:"lines"`
}

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

func createSales(qty int) map[string]any {
	return map[string]any{
		"parent_type":    "SALES_INVOICE",
		"parent_id":      "SINV-1",
		"vehicle_number": "ABC123",
		"driver_name":    "Pedro Pérez",
		"lines":          []map[string]any{{"item_code": "ITEM-1", "confirmed_qty": qty}},
	}
}

const salesItems = `{"item_code":"ITEM-1","item_name":"Material 1","uom":"UND","qty":10,"rate":"10"}`

func TestGatePass_CrearYConfirmar(t *testing.T) {
	s := newTestServer(t, 0)
	s.erp.putDoc("/sales-invoices/SINV-1", 100, salesItems)

	var rec recordBody
	require.Equal(t, http.StatusCreated, s.call(t, "operador", http.MethodPost, "/api/gate-passes", createSales(6), &rec))
	assert.Equal(t, "DRAFT", rec.Status)
	assert.Equal(t, "OUTBOUND", rec.Direction)
	require.Len(t, rec.Lines, 1)
	assert.Equal(t, "6", rec.Lines[0].ConfirmedQty)

	var submitted recordBody
	require.Equal(t, http.StatusOK, s.call(t, "operador", http.MethodPost, "/api/gate-passes/"+rec.ID+"/submit", nil, &submitted))
	assert.Equal(t, "SUBMITTED", submitted.Status)

	s.erp.mu.Lock()
	owner := s.erp.refs["/sales-invoices/SINV-1"]
	s.erp.mu.Unlock()
	require.NotNil(t, owner, "la referencia debe propagarse al documento origen")
	assert.Equal(t, rec.ID, *owner)

	var list struct {
		Items []recordBody `json:"items"`
	}
	require.Equal(t, http.StatusOK, s.call(t, "supervisor", http.MethodGet, "/api/gate-passes?status=submitted&parent_id=SINV-1", nil, &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, rec.ID, list.Items[0].ID)
}

func TestGatePass_SobreasignacionDevuelveDetalle(t *testing.T) {
	s := newTestServer(t, 0)
	s.erp.putDoc("/sales-invoices/SINV-1", 100, salesItems)
	require.Equal(t, http.StatusCreated, s.call(t, "operador", http.MethodPost, "/api/gate-passes", createSales(6), nil))

	var body errorBody
	status := s.call(t, "operador", http.MethodPost, "/api/gate-passes", createSales(5), &body)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "ALLOCATION_EXCEEDED", body.Code)
	assert.Equal(t, "ITEM-1", body.Details["item_code"])
	assert.Equal(t, "4", body.Details["available"])
	assert.Equal(t, "5", body.Details["requested"])
}

func TestGatePass_CumplimientoBloqueaConfirmacion(t *testing.T) {
	s := newTestServer(t, 50000)
	s.erp.putDoc("/sales-invoices/SINV-1", 60000, salesItems)
	s.erp.comp["/sales-invoices/SINV-1"] = `{"einvoice_status":"Pending","ewaybill_status":"","grand_total":60000}`

	var rec recordBody
	require.Equal(t, http.StatusCreated, s.call(t, "operador", http.MethodPost, "/api/gate-passes", createSales(2), &rec))

	var comp struct {
		Required bool     `json:"required"`
		Passed   bool     `json:"passed"`
		Missing  []string `json:"missing"`
	}
	require.Equal(t, http.StatusOK, s.call(t, "operador", http.MethodGet, "/api/gate-passes/"+rec.ID+"/compliance", nil, &comp))
	assert.True(t, comp.Required)
	assert.False(t, comp.Passed)
	assert.Len(t, comp.Missing, 2)

	var body errorBody
	assert.Equal(t, http.StatusConflict, s.call(t, "operador", http.MethodPost, "/api/gate-passes/"+rec.ID+"/submit", nil, &body))
	assert.Equal(t, "COMPLIANCE_BLOCKED", body.Code)
	assert.Len(t, body.Details["missing"], 2)
	assert.Contains(t, readMetrics(t, s), `gatepass_guard_failures_total{kind="COMPLIANCE_BLOCKED"} 1`)
}

func TestGatePass_ComprobantePDF(t *testing.T) {
	s := newTestServer(t, 0)
	s.erp.putDoc("/sales-invoices/SINV-1", 100, salesItems)

	var rec recordBody
	require.Equal(t, http.StatusCreated, s.call(t, "operador", http.MethodPost, "/api/gate-passes", createSales(3), &rec))

	var body errorBody
	assert.Equal(t, http.StatusBadRequest, s.call(t, "operador", http.MethodGet, "/api/gate-passes/"+rec.ID+"/pdf", nil, &body))
	assert.Equal(t, "VALIDATION", body.Code)

	require.Equal(t, http.StatusOK, s.call(t, "operador", http.MethodPost, "/api/gate-passes/"+rec.ID+"/submit", nil, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/gate-passes/"+rec.ID+"/pdf", nil)
	req.Header.Set("Authorization", tokenForRole(t, "operador"))
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "pase_OUTBOUND_"+rec.ID+".pdf")
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("%PDF")))
}

func TestGatePass_ERPCaidoDevuelve503(t *testing.T) {
	s := newTestServer(t, 0)
	s.erp.setDown(true)

	var body errorBody
	assert.Equal(t, http.StatusServiceUnavailable, s.call(t, "operador", http.MethodPost, "/api/gate-passes", createSales(1), &body))
	assert.Equal(t, "ADAPTER_UNAVAILABLE", body.Code)
}

func TestGatePass_DocumentoInexistenteYRegistroInexistente(t *testing.T) {
	s := newTestServer(t, 0)

	var body errorBody
	assert.Equal(t, http.StatusUnprocessableEntity, s.call(t, "operador", http.MethodPost, "/api/gate-passes", createSales(1), &body))
	assert.Equal(t, "DANGLING_REFERENCE", body.Code)

	assert.Equal(t, http.StatusNotFound, s.call(t, "operador", http.MethodGet, "/api/gate-passes/no-existe", nil, &body))
	assert.Equal(t, "NOT_FOUND", body.Code)

	assert.Equal(t, http.StatusBadRequest, s.call(t, "operador", http.MethodPost, "/api/gate-passes", map[string]any{"parent_id": "X"}, &body))
}

func TestGatePass_EditarYEliminarBorrador(t *testing.T) {
	s := newTestServer(t, 0)
	s.erp.putDoc("/sales-invoices/SINV-1", 100, salesItems)

	var rec recordBody
	require.Equal(t, http.StatusCreated, s.call(t, "operador", http.MethodPost, "/api/gate-passes", createSales(3), &rec))

	var updated recordBody
	require.Equal(t, http.StatusOK, s.call(t, "operador", http.MethodPut,
		"/api/gate-passes/"+rec.ID+"/lines/"+rec.Lines[0].ID, map[string]any{"confirmed_qty": "8"}, &updated))
	assert.Equal(t, "8", updated.Lines[0].ConfirmedQty)

	require.Equal(t, http.StatusOK, s.call(t, "operador", http.MethodPatch,
		"/api/gate-passes/"+rec.ID+"/transport", map[string]any{"vehicle_number": "XYZ987"}, nil))

	assert.Equal(t, http.StatusNoContent, s.call(t, "operador", http.MethodDelete, "/api/gate-passes/"+rec.ID, nil, nil))
	assert.Equal(t, http.StatusNotFound, s.call(t, "operador", http.MethodGet, "/api/gate-passes/"+rec.ID, nil, nil))
}

func TestGatePass_RecepcionYEventoDeRecepcion(t *testing.T) {
	s := newTestServer(t, 0)
	s.erp.putDoc("/purchase-orders/PO-1", 100, `{"item_code":"ITEM-9","uom":"KG","qty":20,"rate":"5"}`)

	var rec recordBody
	require.Equal(t, http.StatusCreated, s.call(t, "operador", http.MethodPost, "/api/gate-passes", map[string]any{
		"parent_type": "purchase_order", "parent_id": "PO-1", "vehicle_number": "TRK1", "driver_name": "Ana",
	}, &rec))
	assert.Equal(t, "INBOUND", rec.Direction)
	require.Equal(t, http.StatusOK, s.call(t, "operador", http.MethodPost, "/api/gate-passes/"+rec.ID+"/submit", nil, nil))

	var ref entity.DocumentRef
	require.Equal(t, http.StatusCreated, s.call(t, "operador", http.MethodPost, "/api/gate-passes/"+rec.ID+"/receipt", nil, &ref))
	assert.Equal(t, entity.DocumentRef{Type: entity.DocPurchaseReceipt, ID: "PR-1"}, ref)

	var body errorBody
	assert.Equal(t, http.StatusConflict, s.call(t, "operador", http.MethodPost, "/api/gate-passes/"+rec.ID+"/receipt", nil, &body))

	var receipted recordBody
	require.Equal(t, http.StatusOK, s.call(t, "integracion", http.MethodPost, "/api/events/receipt-submitted",
		map[string]any{"record_id": rec.ID, "receipt_id": "PR-1"}, &receipted))
	assert.Equal(t, "RECEIPTED", receipted.Status)
	require.NotNil(t, receipted.Receipt)
	assert.Equal(t, "PR-1", receipted.Receipt.ID)
}

func TestEventos_RolRestringido(t *testing.T) {
	s := newTestServer(t, 0)
	ev := map[string]any{"parent_type": "SALES_INVOICE", "parent_id": "SINV-1"}

	assert.Equal(t, http.StatusForbidden, s.call(t, "operador", http.MethodPost, "/api/events/parent-cancelled", ev, nil))

	var out struct {
		Queued bool `json:"queued"`
	}
	require.Equal(t, http.StatusAccepted, s.call(t, "integracion", http.MethodPost, "/api/events/parent-submitted", ev, &out))
	assert.False(t, out.Queued, "las facturas de venta no se crean automáticamente")

	assert.Equal(t, http.StatusForbidden, s.call(t, "integracion", http.MethodGet, "/api/gate-passes", nil, nil))
	assert.Equal(t, http.StatusForbidden, s.call(t, "operador", http.MethodGet, "/api/auto-create/failed", nil, nil))
	assert.Equal(t, http.StatusOK, s.call(t, "supervisor", http.MethodGet, "/api/auto-create/failed", nil, nil))
}

func TestEventos_AnulacionDelOrigenAnulaAutomaticosYDesvinculaManuales(t *testing.T) {
	s := newTestServer(t, 0)
	s.erp.putDoc("/sales-invoices/SINV-1", 100, salesItems)

	var rec recordBody
	require.Equal(t, http.StatusCreated, s.call(t, "operador", http.MethodPost, "/api/gate-passes", createSales(2), &rec))

	var sum gatepass.CascadeSummary
	require.Equal(t, http.StatusOK, s.call(t, "integracion", http.MethodPost, "/api/events/parent-cancelled",
		map[string]any{"parent_type": "SALES_INVOICE", "parent_id": "SINV-1"}, &sum))
	assert.Equal(t, 1, sum.Detached)

	var after struct {
		ParentID string `json:"parent_id"`
	}
	require.Equal(t, http.StatusOK, s.call(t, "operador", http.MethodGet, "/api/gate-passes/"+rec.ID, nil, &after))
	assert.Empty(t, after.ParentID)
}

func TestInformes_LibroDiarioYConciliacion(t *testing.T) {
	s := newTestServer(t, 0)
	s.erp.putDoc("/sales-invoices/SINV-1", 100, salesItems)

	var rec recordBody
	require.Equal(t, http.StatusCreated, s.call(t, "operador", http.MethodPost, "/api/gate-passes", createSales(4), &rec))
	require.Equal(t, http.StatusOK, s.call(t, "operador", http.MethodPost, "/api/gate-passes/"+rec.ID+"/submit", nil, nil))

	var days []struct {
		Outbound int `json:"outbound"`
		Entries  []struct {
			RecordID string `json:"record_id"`
		} `json:"entries"`
	}
	require.Equal(t, http.StatusOK, s.call(t, "supervisor", http.MethodGet, "/api/reports/register", nil, &days))
	require.Len(t, days, 1)
	assert.Equal(t, 1, days[0].Outbound)
	assert.Equal(t, rec.ID, days[0].Entries[0].RecordID)

	var variance struct {
		Rows []struct {
			ItemCode string `json:"item_code"`
			Variance string `json:"variance"`
		} `json:"rows"`
	}
	require.Equal(t, http.StatusOK, s.call(t, "supervisor", http.MethodGet, "/api/reports/variance", nil, &variance))
	require.Len(t, variance.Rows, 1)
	assert.Equal(t, "ITEM-1", variance.Rows[0].ItemCode)
	assert.Equal(t, "-6", variance.Rows[0].Variance)

	var body errorBody
	assert.Equal(t, http.StatusBadRequest, s.call(t, "supervisor", http.MethodGet, "/api/reports/pending?from=ayer", nil, &body))
}

func TestMetricas_Expuestas(t *testing.T) {
	s := newTestServer(t, 0)
	s.erp.putDoc("/sales-invoices/SINV-1", 100, salesItems)

	var rec recordBody
	require.Equal(t, http.StatusCreated, s.call(t, "operador", http.MethodPost, "/api/gate-passes", createSales(1), &rec))
	require.Equal(t, http.StatusOK, s.call(t, "operador", http.MethodPost, "/api/gate-passes/"+rec.ID+"/submit", nil, nil))

	assert.Contains(t, readMetrics(t, s), `gatepass_transitions_total{status="SUBMITTED"} 1`)
}

func readMetrics(t *testing.T, s *testServer) string {
	t.Helper()
	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(raw)
}
