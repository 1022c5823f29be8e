package gatepass

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Gatepass-api/internal/domain"
	"github.com/jhoicas/Gatepass-api/internal/domain/compliance"
	"github.com/jhoicas/Gatepass-api/internal/domain/entity"
	"github.com/jhoicas/Gatepass-api/internal/domain/repository"
	"github.com/jhoicas/Gatepass-api/internal/infrastructure/memory"
	"github.com/jhoicas/Gatepass-api/pkg/logger"
)

const companyID = "empresa-1"

type fakeAdapter struct {
	mu         sync.Mutex
	docs       map[entity.DocumentRef]*entity.ParentDocumentSnapshot
	comp       map[entity.DocumentRef]*entity.ComplianceSnapshot
	refs       map[entity.DocumentRef]string
	down       bool
	updateErr  error
	receiptSeq int
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		docs: make(map[entity.DocumentRef]*entity.ParentDocumentSnapshot),
		comp: make(map[entity.DocumentRef]*entity.ComplianceSnapshot),
		refs: make(map[entity.DocumentRef]string),
	}
}

func (f *fakeAdapter) put(s *entity.ParentDocumentSnapshot) entity.DocumentRef {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[s.Ref()] = s
	return s.Ref()
}

func (f *fakeAdapter) setStatus(ref entity.DocumentRef, st entity.DocumentStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[ref].Status = st
}

func (f *fakeAdapter) setCompliance(ref entity.DocumentRef, c *entity.ComplianceSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comp[ref] = c
}

func (f *fakeAdapter) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

func (f *fakeAdapter) reference(ref entity.DocumentRef) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refs[ref]
}

func (f *fakeAdapter) lookup(ref entity.DocumentRef) (*entity.ParentDocumentSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errors.New("connection refused")
	}
	s, ok := f.docs[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *s
	c.Items = append([]entity.ParentItem(nil), s.Items...)
	return &c, nil
}

func (f *fakeAdapter) GetSnapshot(_ context.Context, ref entity.DocumentRef) (*entity.ParentDocumentSnapshot, error) {
	return f.lookup(ref)
}

func (f *fakeAdapter) GetRequiredQuantities(_ context.Context, ref entity.DocumentRef) (map[string]entity.RequiredQuantity, error) {
	s, err := f.lookup(ref)
	if err != nil {
		return nil, err
	}
	return s.RequiredQuantities(), nil
}

func (f *fakeAdapter) GetComplianceSnapshot(_ context.Context, ref entity.DocumentRef) (*entity.ComplianceSnapshot, error) {
	s, err := f.lookup(ref)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.comp[ref]; ok {
		cp := *c
		return &cp, nil
	}
	return &entity.ComplianceSnapshot{DocumentValue: s.DocumentValue}, nil
}

func (f *fakeAdapter) GetDocumentStatus(_ context.Context, ref entity.DocumentRef) (entity.DocumentStatus, error) {
	s, err := f.lookup(ref)
	if err != nil {
		return "", err
	}
	return s.Status, nil
}

func (f *fakeAdapter) UpdateReference(_ context.Context, ref entity.DocumentRef, recordID *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	if recordID == nil {
		delete(f.refs, ref)
		return nil
	}
	f.refs[ref] = *recordID
	return nil
}

func (f *fakeAdapter) CreateReceipt(_ context.Context, _ *entity.MovementRecord) (entity.DocumentRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return entity.DocumentRef{}, errors.New("connection refused")
	}
	f.receiptSeq++
	return entity.DocumentRef{Type: entity.DocPurchaseReceipt, ID: fmt.Sprintf("REC-%d", f.receiptSeq)}, nil
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []*entity.AutoCreateTask
	err   error
}

func (q *fakeQueue) Enqueue(_ context.Context, task *entity.AutoCreateTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task)
	return nil
}

// lockedBuffer buffer de logs seguro entre goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fixture struct {
	uc      *UseCase
	store   *memory.Store
	adapter *fakeAdapter
	queue   *fakeQueue
	logs    *lockedBuffer
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   memory.NewStore(),
		adapter: newFakeAdapter(),
		queue:   &fakeQueue{},
		logs:    &lockedBuffer{},
		now:     time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}
	f.uc = NewUseCase(
		f.store,
		f.store.Records(),
		f.store.Tasks(),
		f.adapter,
		f.queue,
		nil,
		logger.NewWithWriter(f.logs, "debug"),
		Options{
			Compliance:            compliance.Policy{Threshold: decimal.NewFromInt(50000)},
			DiscrepancyEditWindow: 24 * time.Hour,
			AutoCreateTypes:       []entity.DocumentType{entity.DocStockTransfer},
			Now:                   func() time.Time { return f.now },
		},
	)
	return f
}

func item(code string, qty int64) entity.ParentItem {
	return entity.ParentItem{
		ItemCode:    code,
		ItemName:    "Material " + code,
		UOM:         "UND",
		RequiredQty: decimal.NewFromInt(qty),
		Rate:        decimal.NewFromInt(10),
	}
}

func doc(t entity.DocumentType, id string, items ...entity.ParentItem) *entity.ParentDocumentSnapshot {
	return &entity.ParentDocumentSnapshot{
		Type:          t,
		ID:            id,
		Status:        entity.DocumentSubmitted,
		CompanyID:     companyID,
		Party:         "Cliente Uno",
		DocumentValue: decimal.NewFromInt(1000),
		Items:         items,
	}
}

func qty(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// create crea un pase con una línea ITEM-1 por cada cantidad dada.
func (f *fixture) create(ref entity.DocumentRef, quantities ...int64) (*entity.MovementRecord, error) {
	lines := make([]LineInput, 0, len(quantities))
	for _, q := range quantities {
		lines = append(lines, LineInput{ItemCode: "ITEM-1", ConfirmedQty: qty(q)})
	}
	return f.uc.Create(context.Background(), CreateCommand{
		CompanyID:     companyID,
		UserID:        "operador-1",
		ParentType:    ref.Type,
		ParentID:      ref.ID,
		VehicleNumber: "ABC123",
		DriverName:    "Pedro Pérez",
		Lines:         lines,
	})
}

func (f *fixture) submit(id string) (*entity.MovementRecord, error) {
	return f.uc.Submit(context.Background(), TransitionCommand{RecordID: id, CompanyID: companyID, UserID: "operador-1"})
}

func (f *fixture) mustCreateSubmitted(t *testing.T, ref entity.DocumentRef, q int64) *entity.MovementRecord {
	t.Helper()
	rec, err := f.create(ref, q)
	require.NoError(t, err)
	rec, err = f.submit(rec.ID)
	require.NoError(t, err)
	return rec
}

func requireGuard(t *testing.T, err error, kind domain.GuardKind) *domain.GuardError {
	t.Helper()
	require.Error(t, err)
	ge, ok := domain.AsGuardError(err)
	require.True(t, ok, "se esperaba GuardError, llegó %v", err)
	require.Equal(t, kind, ge.Kind)
	return ge
}

func listFilter(ref entity.DocumentRef) repository.RecordFilter {
	return repository.RecordFilter{CompanyID: companyID, ParentType: ref.Type, ParentID: ref.ID}
}
