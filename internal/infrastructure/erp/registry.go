package erp

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Gatepass-api/internal/application/gatepass"
	"github.com/jhoicas/Gatepass-api/internal/application/reporting"
	"github.com/jhoicas/Gatepass-api/internal/domain"
	"github.com/jhoicas/Gatepass-api/internal/domain/entity"
)

var (
	_ gatepass.DocumentAdapter = (*Registry)(nil)
	_ reporting.SnapshotSource = (*Registry)(nil)
)

// Registry adaptador de documentos origen: elige la fuente por tipo de documento.
type Registry struct {
	client  *Client
	sources map[entity.DocumentType]Source
}

// NewRegistry registra las fuentes; una fuente posterior del mismo tipo reemplaza a la anterior.
func NewRegistry(client *Client, sources ...Source) *Registry {
	r := &Registry{client: client, sources: make(map[entity.DocumentType]Source, len(sources))}
	for _, s := range sources {
		r.sources[s.Type()] = s
	}
	return r
}

func (r *Registry) source(t entity.DocumentType) (Source, error) {
	s, ok := r.sources[t]
	if !ok {
		return nil, fmt.Errorf("%w: tipo de documento %s sin fuente registrada", domain.ErrInvalidInput, t)
	}
	return s, nil
}

// GetSnapshot proyección completa del documento.
func (r *Registry) GetSnapshot(ctx context.Context, ref entity.DocumentRef) (*entity.ParentDocumentSnapshot, error) {
	s, err := r.source(ref.Type)
	if err != nil {
		return nil, err
	}
	return s.Snapshot(ctx, ref.ID)
}

// GetRequiredQuantities cantidad requerida por ítem.
func (r *Registry) GetRequiredQuantities(ctx context.Context, ref entity.DocumentRef) (map[string]entity.RequiredQuantity, error) {
	snap, err := r.GetSnapshot(ctx, ref)
	if err != nil {
		return nil, err
	}
	return snap.RequiredQuantities(), nil
}

// GetComplianceSnapshot estado de los soportes. Los tipos sin cumplimiento devuelven solo el valor del documento.
func (r *Registry) GetComplianceSnapshot(ctx context.Context, ref entity.DocumentRef) (*entity.ComplianceSnapshot, error) {
	s, err := r.source(ref.Type)
	if err != nil {
		return nil, err
	}
	if cs, ok := s.(ComplianceSource); ok {
		return cs.Compliance(ctx, ref.ID)
	}
	snap, err := s.Snapshot(ctx, ref.ID)
	if err != nil {
		return nil, err
	}
	return &entity.ComplianceSnapshot{DocumentValue: snap.DocumentValue, ThresholdValue: decimal.Zero}, nil
}

// GetDocumentStatus estado del documento.
func (r *Registry) GetDocumentStatus(ctx context.Context, ref entity.DocumentRef) (entity.DocumentStatus, error) {
	snap, err := r.GetSnapshot(ctx, ref)
	if err != nil {
		return "", err
	}
	return snap.Status, nil
}

// UpdateReference escribe o limpia el pase dueño en el documento.
func (r *Registry) UpdateReference(ctx context.Context, ref entity.DocumentRef, recordID *string) error {
	s, err := r.source(ref.Type)
	if err != nil {
		return err
	}
	return s.UpdateReference(ctx, ref.ID, recordID)
}

type receiptLine struct {
	ItemCode      string          `json:"item_code"`
	UOM           string          `json:"uom"`
	ParentItemRef string          `json:"parent_item_ref,omitempty"`
	Qty           decimal.Decimal `json:"qty"`
	Rate          decimal.Decimal `json:"rate"`
}

type receiptRequest struct {
	GatePass      string          `json:"gate_pass"`
	Company       string          `json:"company"`
	AgainstType   string          `json:"against_type"`
	AgainstID     string          `json:"against_id"`
	Party         string          `json:"party"`
	VehicleNumber string          `json:"vehicle_number"`
	PostingDate   string          `json:"posting_date"`
	LostQty       decimal.Decimal `json:"lost_qty"`
	DamagedQty    decimal.Decimal `json:"damaged_qty"`
	Items         []receiptLine   `json:"items"`
}

type receiptResponse struct {
	ID string `json:"id"`
}

// CreateReceipt crea la recepción de compra a partir del pase de entrada.
func (r *Registry) CreateReceipt(ctx context.Context, rec *entity.MovementRecord) (entity.DocumentRef, error) {
	req := receiptRequest{
		GatePass:      rec.ID,
		Company:       rec.CompanyID,
		AgainstType:   string(rec.ParentType),
		AgainstID:     rec.ParentID,
		Party:         rec.Party,
		VehicleNumber: rec.VehicleNumber,
		PostingDate:   rec.RecordDate.Format("2006-01-02"),
		LostQty:       rec.Discrepancy.LostQty,
		DamagedQty:    rec.Discrepancy.DamagedQty,
	}
	for _, l := range rec.Lines {
		req.Items = append(req.Items, receiptLine{
			ItemCode: l.ItemCode, UOM: l.UOM, ParentItemRef: l.ParentItemRef, Qty: l.ConfirmedQty, Rate: l.UnitRate,
		})
	}
	var out receiptResponse
	if err := r.client.do(ctx, "POST", "/purchase-receipts", req, &out); err != nil {
		return entity.DocumentRef{}, err
	}
	if out.ID == "" {
		return entity.DocumentRef{}, fmt.Errorf("erp: recepción creada sin id")
	}
	return entity.DocumentRef{Type: entity.DocPurchaseReceipt, ID: out.ID}, nil
}
