package entity

import (
	"github.com/shopspring/decimal"
)

// DocumentType tipo de documento origen en el sistema externo (ERP).
type DocumentType string

// Tipos de documento origen soportados.
const (
	DocPurchaseOrder       DocumentType = "PURCHASE_ORDER"
	DocSubcontractingOrder DocumentType = "SUBCONTRACTING_ORDER"
	DocSalesInvoice        DocumentType = "SALES_INVOICE"
	DocDeliveryNote        DocumentType = "DELIVERY_NOTE"
	DocStockTransfer       DocumentType = "STOCK_TRANSFER"
)

// DocPurchaseReceipt recepción aguas abajo generada desde un pase de entrada. No es documento origen.
const DocPurchaseReceipt DocumentType = "PURCHASE_RECEIPT"

// DocumentTypes lista completa, en el orden en que se registran en el adaptador.
var DocumentTypes = []DocumentType{
	DocPurchaseOrder, DocSubcontractingOrder, DocSalesInvoice, DocDeliveryNote, DocStockTransfer,
}

// Valid indica si el tipo es conocido.
func (t DocumentType) Valid() bool {
	for _, d := range DocumentTypes {
		if d == t {
			return true
		}
	}
	return false
}

// IsSales indica documentos de venta (sujetos a la compuerta de cumplimiento).
func (t DocumentType) IsSales() bool {
	return t == DocSalesInvoice || t == DocDeliveryNote
}

// DefaultDirection dirección natural del documento. Los traslados dependen de su clase.
func (t DocumentType) DefaultDirection() Direction {
	switch t {
	case DocPurchaseOrder, DocSubcontractingOrder:
		return DirectionInbound
	default:
		return DirectionOutbound
	}
}

// DocumentStatus estado del documento origen.
type DocumentStatus string

const (
	DocumentDraft     DocumentStatus = "DRAFT"
	DocumentSubmitted DocumentStatus = "SUBMITTED"
	DocumentCancelled DocumentStatus = "CANCELLED"
)

// TransferKind clase de traslado de inventario.
type TransferKind string

const (
	TransferMaterial          TransferKind = "MATERIAL_TRANSFER"
	TransferSendToSubcontract TransferKind = "SEND_TO_SUBCONTRACTOR"
)

// DocumentRef referencia a un documento externo.
type DocumentRef struct {
	Type DocumentType `json:"type"`
	ID   string       `json:"id"`
}

// IsZero indica referencia vacía.
func (r DocumentRef) IsZero() bool { return r.ID == "" }

// ParentItem línea del documento origen.
type ParentItem struct {
	ItemCode      string
	ItemName      string
	UOM           string
	ParentItemRef string
	RequiredQty   decimal.Decimal
	Rate          decimal.Decimal
	OpenEnded     bool // contrato de tarifa: sin tope de cantidad
}

// ParentDocumentSnapshot proyección de solo lectura del documento origen.
type ParentDocumentSnapshot struct {
	Type          DocumentType
	ID            string
	Status        DocumentStatus
	CompanyID     string
	Party         string
	VehicleNumber string
	DocumentValue decimal.Decimal
	Items         []ParentItem

	// Solo traslados.
	TransferKind  TransferKind
	External      bool
	IsReturn      bool
	ReturnAgainst string
}

// Ref devuelve la referencia del documento.
func (s *ParentDocumentSnapshot) Ref() DocumentRef {
	return DocumentRef{Type: s.Type, ID: s.ID}
}

// Direction dirección del registro que genera este documento.
func (s *ParentDocumentSnapshot) Direction() Direction {
	if s.Type == DocStockTransfer && s.IsReturn {
		return DirectionInbound
	}
	return s.Type.DefaultDirection()
}

// RequiredQuantities agrupa la cantidad requerida por ítem. Un ítem es abierto si
// cualquiera de sus líneas lo es.
func (s *ParentDocumentSnapshot) RequiredQuantities() map[string]RequiredQuantity {
	out := make(map[string]RequiredQuantity, len(s.Items))
	for _, it := range s.Items {
		rq := out[it.ItemCode]
		rq.Qty = rq.Qty.Add(it.RequiredQty)
		rq.OpenEnded = rq.OpenEnded || it.OpenEnded
		out[it.ItemCode] = rq
	}
	return out
}

// Item busca la primera línea con ese código.
func (s *ParentDocumentSnapshot) Item(itemCode string) (ParentItem, bool) {
	for _, it := range s.Items {
		if it.ItemCode == itemCode {
			return it, true
		}
	}
	return ParentItem{}, false
}

// RequiredQuantity cantidad requerida por el documento origen para un ítem.
type RequiredQuantity struct {
	Qty       decimal.Decimal
	OpenEnded bool
}

// ComplianceSnapshot soportes regulatorios del documento origen (factura electrónica y guía de transporte).
type ComplianceSnapshot struct {
	InvoiceApprovalState string
	InvoiceReference     string
	WayBillApprovalState string
	WayBillNumber        string
	ThresholdValue       decimal.Decimal
	DocumentValue        decimal.Decimal
}
