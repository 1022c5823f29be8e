package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Gatepass-api/internal/domain"
	"github.com/jhoicas/Gatepass-api/internal/domain/entity"
	"github.com/jhoicas/Gatepass-api/internal/domain/repository"
)

var _ repository.MovementRecordRepository = (*MovementRecordRepo)(nil)

const recordColumns = `
	id, company_id, direction, parent_type, parent_id, status, origin, party,
	vehicle_number, driver_name, driver_contact, open_ended,
	has_discrepancy, lost_qty, damaged_qty, discrepancy_notes,
	return_outbound_record_id, return_transfer_id, receipt_type, receipt_id,
	record_date, submitted_at, cancelled_at, created_by, created_at, updated_at`

// MovementRecordRepo pases de portería sobre PostgreSQL (usable con pool o tx).
type MovementRecordRepo struct {
	q Querier
}

// NewMovementRecordRepository construye el adaptador. Pasar pool o tx (Querier).
func NewMovementRecordRepository(q Querier) *MovementRecordRepo {
	return &MovementRecordRepo{q: q}
}

// Create persiste la cabecera y sus líneas.
func (r *MovementRecordRepo) Create(ctx context.Context, rec *entity.MovementRecord) error {
	query := `
		INSERT INTO movement_records (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
		        $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)`
	_, err := r.q.Exec(ctx, query, recordArgs(rec)...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("movement record %s: %w", rec.ID, domain.ErrDuplicate)
		}
		return fmt.Errorf("insert movement record: %w", err)
	}
	return r.insertLines(ctx, rec)
}

// Update reescribe cabecera y líneas.
func (r *MovementRecordRepo) Update(ctx context.Context, rec *entity.MovementRecord) error {
	query := `
		UPDATE movement_records
		SET company_id = $2, direction = $3, parent_type = $4, parent_id = $5, status = $6,
		    origin = $7, party = $8, vehicle_number = $9, driver_name = $10, driver_contact = $11,
		    open_ended = $12, has_discrepancy = $13, lost_qty = $14, damaged_qty = $15,
		    discrepancy_notes = $16, return_outbound_record_id = $17, return_transfer_id = $18,
		    receipt_type = $19, receipt_id = $20, record_date = $21, submitted_at = $22,
		    cancelled_at = $23, created_by = $24, created_at = $25, updated_at = $26
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query, recordArgs(rec)...)
	if err != nil {
		return fmt.Errorf("update movement record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	if _, err := r.q.Exec(ctx, `DELETE FROM movement_record_lines WHERE record_id = $1`, rec.ID); err != nil {
		return fmt.Errorf("delete movement record lines: %w", err)
	}
	return r.insertLines(ctx, rec)
}

// Delete borra el pase; las líneas caen por ON DELETE CASCADE.
func (r *MovementRecordRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM movement_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete movement record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID obtiene un pase con sus líneas. nil, nil si no existe.
func (r *MovementRecordRepo) GetByID(ctx context.Context, id string) (*entity.MovementRecord, error) {
	return r.getOne(ctx, `SELECT `+recordColumns+` FROM movement_records WHERE id = $1`, id)
}

// GetForUpdate igual que GetByID pero bloquea la fila (SELECT FOR UPDATE).
func (r *MovementRecordRepo) GetForUpdate(ctx context.Context, id string) (*entity.MovementRecord, error) {
	return r.getOne(ctx, `SELECT `+recordColumns+` FROM movement_records WHERE id = $1 FOR UPDATE`, id)
}

func (r *MovementRecordRepo) getOne(ctx context.Context, query, id string) (*entity.MovementRecord, error) {
	rec, err := scanRecord(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get movement record: %w", err)
	}
	if err := r.loadLines(ctx, []*entity.MovementRecord{rec}); err != nil {
		return nil, err
	}
	return rec, nil
}

// List lista pases con filtros, del más reciente al más antiguo.
func (r *MovementRecordRepo) List(ctx context.Context, f repository.RecordFilter) ([]*entity.MovementRecord, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.CompanyID != "" {
		add("company_id = $%d", f.CompanyID)
	}
	if f.Direction != "" {
		add("direction = $%d", string(f.Direction))
	}
	if f.ParentType != "" {
		add("parent_type = $%d", string(f.ParentType))
	}
	if f.ParentID != "" {
		add("parent_id = $%d", f.ParentID)
	}
	if len(f.Statuses) > 0 {
		add("status = ANY($%d)", statusStrings(f.Statuses))
	}
	if f.From != nil {
		add("record_date >= $%d", *f.From)
	}
	if f.To != nil {
		add("record_date < $%d", *f.To)
	}
	query := `SELECT ` + recordColumns + ` FROM movement_records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY record_date DESC, created_at DESC, id DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return r.queryRecords(ctx, query, args...)
}

// ListByParent pases (de cualquier estado) del documento origen.
func (r *MovementRecordRepo) ListByParent(ctx context.Context, parent entity.DocumentRef) ([]*entity.MovementRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM movement_records
		WHERE parent_type = $1 AND parent_id = $2
		ORDER BY record_date DESC, created_at DESC, id DESC`
	return r.queryRecords(ctx, query, string(parent.Type), parent.ID)
}

// ListReturnReferences entradas cuyo vínculo de devolución apunta al registro o al traslado.
func (r *MovementRecordRepo) ListReturnReferences(ctx context.Context, outboundRecordID, outboundTransferID string) ([]*entity.MovementRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM movement_records
		WHERE direction = 'INBOUND'
		  AND (($1 <> '' AND return_outbound_record_id = $1) OR ($2 <> '' AND return_transfer_id = $2))
		ORDER BY record_date DESC, created_at DESC, id DESC`
	return r.queryRecords(ctx, query, outboundRecordID, outboundTransferID)
}

// FindDraftReturn borrador de entrada más antiguo que espera la devolución del traslado.
func (r *MovementRecordRepo) FindDraftReturn(ctx context.Context, outboundTransferID string) (*entity.MovementRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM movement_records
		WHERE status = 'DRAFT' AND direction = 'INBOUND'
		  AND parent_type = $1 AND parent_id = $2 AND return_transfer_id = $2
		ORDER BY record_date ASC, created_at ASC, id ASC
		LIMIT 1`
	list, err := r.queryRecords(ctx, query, string(entity.DocStockTransfer), outboundTransferID)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return list[0], nil
}

func (r *MovementRecordRepo) queryRecords(ctx context.Context, query string, args ...any) ([]*entity.MovementRecord, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list movement records: %w", err)
	}
	defer rows.Close()
	list := make([]*entity.MovementRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movement record: %w", err)
		}
		list = append(list, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	if err := r.loadLines(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

func (r *MovementRecordRepo) insertLines(ctx context.Context, rec *entity.MovementRecord) error {
	query := `
		INSERT INTO movement_record_lines (id, record_id, position, item_code, item_name, uom, parent_item_ref,
		                                   required_qty, confirmed_qty, unit_rate, amount, open_ended)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	for _, l := range rec.Lines {
		_, err := r.q.Exec(ctx, query,
			l.ID, rec.ID, l.Position, l.ItemCode, nullIfEmpty(l.ItemName), nullIfEmpty(l.UOM), nullIfEmpty(l.ParentItemRef),
			l.RequiredQty, l.ConfirmedQty, l.UnitRate, l.Amount, l.OpenEnded,
		)
		if err != nil {
			return fmt.Errorf("insert movement record line: %w", err)
		}
	}
	return nil
}

// loadLines carga las líneas de todos los pases en una sola consulta.
func (r *MovementRecordRepo) loadLines(ctx context.Context, list []*entity.MovementRecord) error {
	if len(list) == 0 {
		return nil
	}
	byID := make(map[string]*entity.MovementRecord, len(list))
	ids := make([]string, 0, len(list))
	for _, rec := range list {
		byID[rec.ID] = rec
		ids = append(ids, rec.ID)
	}
	query := `
		SELECT id, record_id, position, item_code, item_name, uom, parent_item_ref,
		       required_qty, confirmed_qty, unit_rate, amount, open_ended
		FROM movement_record_lines WHERE record_id = ANY($1)
		ORDER BY record_id, position`
	rows, err := r.q.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("list movement record lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l entity.ItemAllocation
		var recordID string
		var name, uom, parentRef *string
		if err := rows.Scan(
			&l.ID, &recordID, &l.Position, &l.ItemCode, &name, &uom, &parentRef,
			&l.RequiredQty, &l.ConfirmedQty, &l.UnitRate, &l.Amount, &l.OpenEnded,
		); err != nil {
			return fmt.Errorf("scan movement record line: %w", err)
		}
		l.ItemName, l.UOM, l.ParentItemRef = derefStr(name), derefStr(uom), derefStr(parentRef)
		if rec, ok := byID[recordID]; ok {
			rec.Lines = append(rec.Lines, l)
		}
	}
	return rows.Err()
}

func recordArgs(rec *entity.MovementRecord) []any {
	var returnRecord, returnTransfer, receiptType, receiptID *string
	if rec.ReturnLink != nil {
		returnRecord = nullIfEmpty(rec.ReturnLink.OutboundRecordID)
		returnTransfer = nullIfEmpty(rec.ReturnLink.OutboundTransferID)
	}
	if rec.Receipt != nil {
		t := string(rec.Receipt.Type)
		receiptType, receiptID = &t, &rec.Receipt.ID
	}
	return []any{
		rec.ID, rec.CompanyID, string(rec.Direction), string(rec.ParentType), nullIfEmpty(rec.ParentID),
		string(rec.Status), string(rec.Origin), nullIfEmpty(rec.Party),
		nullIfEmpty(rec.VehicleNumber), nullIfEmpty(rec.DriverName), nullIfEmpty(rec.DriverContact), rec.OpenEnded,
		rec.Discrepancy.HasDiscrepancy, rec.Discrepancy.LostQty, rec.Discrepancy.DamagedQty, rec.Discrepancy.Notes,
		returnRecord, returnTransfer, receiptType, receiptID,
		rec.RecordDate, rec.SubmittedAt, rec.CancelledAt, nullIfEmpty(rec.CreatedBy), rec.CreatedAt, rec.UpdatedAt,
	}
}

func scanRecord(row pgx.Row) (*entity.MovementRecord, error) {
	var rec entity.MovementRecord
	var direction, parentType, status, origin string
	var parentID, party, vehicle, driver, contact, createdBy *string
	var returnRecord, returnTransfer, receiptType, receiptID *string
	var lost, damaged decimal.Decimal
	var submittedAt, cancelledAt *time.Time
	err := row.Scan(
		&rec.ID, &rec.CompanyID, &direction, &parentType, &parentID, &status, &origin, &party,
		&vehicle, &driver, &contact, &rec.OpenEnded,
		&rec.Discrepancy.HasDiscrepancy, &lost, &damaged, &rec.Discrepancy.Notes,
		&returnRecord, &returnTransfer, &receiptType, &receiptID,
		&rec.RecordDate, &submittedAt, &cancelledAt, &createdBy, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Direction = entity.Direction(direction)
	rec.ParentType = entity.DocumentType(parentType)
	rec.Status = entity.RecordStatus(status)
	rec.Origin = entity.Origin(origin)
	rec.ParentID = derefStr(parentID)
	rec.Party = derefStr(party)
	rec.VehicleNumber = derefStr(vehicle)
	rec.DriverName = derefStr(driver)
	rec.DriverContact = derefStr(contact)
	rec.CreatedBy = derefStr(createdBy)
	rec.Discrepancy.LostQty, rec.Discrepancy.DamagedQty = lost, damaged
	rec.SubmittedAt, rec.CancelledAt = submittedAt, cancelledAt
	if returnRecord != nil || returnTransfer != nil {
		rec.ReturnLink = &entity.ReturnLink{OutboundRecordID: derefStr(returnRecord), OutboundTransferID: derefStr(returnTransfer)}
	}
	if receiptID != nil {
		rec.Receipt = &entity.DocumentRef{Type: entity.DocumentType(derefStr(receiptType)), ID: *receiptID}
	}
	rec.RecordDate = rec.RecordDate.UTC()
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return &rec, nil
}

func statusStrings(list []entity.RecordStatus) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = string(s)
	}
	return out
}
