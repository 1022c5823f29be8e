package erp

import (
	"context"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Gatepass-api/internal/domain/entity"
)

// Source capacidad de un tipo de documento origen en el ERP.
type Source interface {
	Type() entity.DocumentType
	Snapshot(ctx context.Context, id string) (*entity.ParentDocumentSnapshot, error)
	UpdateReference(ctx context.Context, id string, recordID *string) error
}

// ComplianceSource tipos con soportes regulatorios (factura electrónica, guía de transporte).
type ComplianceSource interface {
	Compliance(ctx context.Context, id string) (*entity.ComplianceSnapshot, error)
}

type documentItem struct {
	ItemCode      string          `json:"item_code"`
	ItemName      string          `json:"item_name"`
	UOM           string          `json:"uom"`
	ParentItemRef string          `json:"parent_item_ref"`
	Qty           decimal.Decimal `json:"qty"`
	Rate          decimal.Decimal `json:"rate"`
	OpenEnded     bool            `json:"open_ended"`
}

type documentPayload struct {
	ID            string          `json:"id"`
	Status        string          `json:"status"`
	Company       string          `json:"company"`
	Party         string          `json:"party"`
	VehicleNumber string          `json:"vehicle_number"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	Items         []documentItem  `json:"items"`
	TransferKind  string          `json:"transfer_kind"`
	External      bool            `json:"external"`
	IsReturn      bool            `json:"is_return"`
	ReturnAgainst string          `json:"return_against"`
}

type compliancePayload struct {
	EInvoiceStatus  string          `json:"einvoice_status"`
	IRN             string          `json:"irn"`
	EWayBillStatus  string          `json:"ewaybill_status"`
	EWayBill        string          `json:"ewaybill"`
	ThresholdAmount decimal.Decimal `json:"threshold_amount"`
	GrandTotal      decimal.Decimal `json:"grand_total"`
}

type referencePayload struct {
	GatePass  *string   `json:"gate_pass"`
	UpdatedAt time.Time `json:"updated_at"`
}

// documentSource lectura y escritura de referencia sobre /{resource}/{id}.
type documentSource struct {
	client   *Client
	docType  entity.DocumentType
	resource string
}

// NewDocumentSource fuente genérica de un tipo de documento.
func NewDocumentSource(client *Client, docType entity.DocumentType, resource string) Source {
	return &documentSource{client: client, docType: docType, resource: resource}
}

func (s *documentSource) Type() entity.DocumentType { return s.docType }

func (s *documentSource) path(id string, suffix string) string {
	return "/" + s.resource + "/" + url.PathEscape(id) + suffix
}

func (s *documentSource) Snapshot(ctx context.Context, id string) (*entity.ParentDocumentSnapshot, error) {
	var p documentPayload
	if err := s.client.do(ctx, "GET", s.path(id, ""), nil, &p); err != nil {
		return nil, err
	}
	snap := &entity.ParentDocumentSnapshot{
		Type:          s.docType,
		ID:            p.ID,
		Status:        documentStatus(p.Status),
		CompanyID:     p.Company,
		Party:         p.Party,
		VehicleNumber: p.VehicleNumber,
		DocumentValue: p.GrandTotal,
		TransferKind:  entity.TransferKind(p.TransferKind),
		External:      p.External,
		IsReturn:      p.IsReturn,
		ReturnAgainst: p.ReturnAgainst,
	}
	if snap.ID == "" {
		snap.ID = id
	}
	for _, it := range p.Items {
		snap.Items = append(snap.Items, entity.ParentItem{
			ItemCode:      it.ItemCode,
			ItemName:      it.ItemName,
			UOM:           it.UOM,
			ParentItemRef: it.ParentItemRef,
			RequiredQty:   it.Qty,
			Rate:          it.Rate,
			OpenEnded:     it.OpenEnded,
		})
	}
	return snap, nil
}

func (s *documentSource) UpdateReference(ctx context.Context, id string, recordID *string) error {
	return s.client.do(ctx, "PUT", s.path(id, "/gate-pass"), referencePayload{GatePass: recordID, UpdatedAt: time.Now().UTC()}, nil)
}

// salesSource documentos de venta: además exponen el estado de cumplimiento.
type salesSource struct {
	*documentSource
}

// NewSalesSource fuente para factura de venta y remisión.
func NewSalesSource(client *Client, docType entity.DocumentType, resource string) Source {
	return &salesSource{documentSource: &documentSource{client: client, docType: docType, resource: resource}}
}

func (s *salesSource) Compliance(ctx context.Context, id string) (*entity.ComplianceSnapshot, error) {
	var p compliancePayload
	if err := s.client.do(ctx, "GET", s.path(id, "/compliance"), nil, &p); err != nil {
		return nil, err
	}
	return &entity.ComplianceSnapshot{
		InvoiceApprovalState: p.EInvoiceStatus,
		InvoiceReference:     p.IRN,
		WayBillApprovalState: p.EWayBillStatus,
		WayBillNumber:        p.EWayBill,
		ThresholdValue:       p.ThresholdAmount,
		DocumentValue:        p.GrandTotal,
	}, nil
}

func documentStatus(s string) entity.DocumentStatus {
	switch s {
	case "SUBMITTED", "Submitted", "1":
		return entity.DocumentSubmitted
	case "CANCELLED", "Cancelled", "2":
		return entity.DocumentCancelled
	default:
		return entity.DocumentDraft
	}
}

// DefaultSources una fuente por tipo de documento soportado.
func DefaultSources(client *Client) []Source {
	return []Source{
		NewDocumentSource(client, entity.DocPurchaseOrder, "purchase-orders"),
		NewDocumentSource(client, entity.DocSubcontractingOrder, "subcontracting-orders"),
		NewSalesSource(client, entity.DocSalesInvoice, "sales-invoices"),
		NewSalesSource(client, entity.DocDeliveryNote, "delivery-notes"),
		NewDocumentSource(client, entity.DocStockTransfer, "stock-entries"),
	}
}
