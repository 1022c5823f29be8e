package reporting

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/Gatepass-api/internal/domain"
	"github.com/jhoicas/Gatepass-api/internal/domain/compliance"
	"github.com/jhoicas/Gatepass-api/internal/domain/entity"
	"github.com/jhoicas/Gatepass-api/internal/domain/reconciliation"
	"github.com/jhoicas/Gatepass-api/internal/domain/repository"
	"github.com/jhoicas/Gatepass-api/pkg/logger"
)

const (
	defaultWindow = 30 * 24 * time.Hour
	maxRecords    = 5000
	fetchLimit    = 8
)

// SnapshotSource lecturas del sistema de documentos origen que usan los informes.
type SnapshotSource interface {
	GetSnapshot(ctx context.Context, ref entity.DocumentRef) (*entity.ParentDocumentSnapshot, error)
	GetComplianceSnapshot(ctx context.Context, ref entity.DocumentRef) (*entity.ComplianceSnapshot, error)
}

// Query ventana y filtros de un informe. To nil: fin del día actual; From nil: 30 días antes de To.
type Query struct {
	CompanyID string
	Direction entity.Direction
	From      *time.Time
	To        *time.Time
}

// UseCase informes de portería. Son lecturas sin bloqueo: un documento origen que no se puede
// leer se trata como ausente y no hace fallar el informe.
type UseCase struct {
	recordRepo repository.MovementRecordRepository
	source     SnapshotSource
	policy     compliance.Policy
	log        *logger.Logger
	now        func() time.Time
}

// NewUseCase construye el caso de uso de informes.
func NewUseCase(recordRepo repository.MovementRecordRepository, source SnapshotSource, policy compliance.Policy, log *logger.Logger, now func() time.Time) *UseCase {
	if now == nil {
		now = time.Now
	}
	return &UseCase{recordRepo: recordRepo, source: source, policy: policy, log: log.Named("reporting"), now: now}
}

// PendingReport resultado de pendientes.
type PendingReport struct {
	Rows    []reconciliation.PendingRow
	Summary reconciliation.PendingSummary
}

// Pending borradores sin confirmar y entradas sin recepción, con antigüedad y estado de cumplimiento.
func (uc *UseCase) Pending(ctx context.Context, q Query) (*PendingReport, error) {
	records, err := uc.load(ctx, q, entity.StatusDraft, entity.StatusSubmitted)
	if err != nil {
		return nil, err
	}

	results := make(map[string]compliance.Result)
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchLimit)
	for _, rec := range records {
		if rec.Status != entity.StatusDraft || rec.ParentID == "" || !compliance.Applies(rec.Direction, rec.ParentType) {
			continue
		}
		rec := rec
		g.Go(func() error {
			snap, err := uc.source.GetComplianceSnapshot(gctx, rec.Parent())
			if err != nil {
				uc.warnAbsent(rec.Parent(), err)
				return nil
			}
			res := uc.policy.Evaluate(rec.ParentType, *snap)
			mu.Lock()
			results[rec.ID] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rows, sum := reconciliation.PendingAging(reconciliation.PendingInput{
		Records:    records,
		Compliance: results,
		Now:        uc.now().UTC(),
	})
	return &PendingReport{Rows: rows, Summary: sum}, nil
}

// Register libro diario de entradas y salidas confirmadas.
func (uc *UseCase) Register(ctx context.Context, q Query) ([]reconciliation.RegisterDay, error) {
	records, err := uc.load(ctx, q, entity.CommittedStatuses...)
	if err != nil {
		return nil, err
	}
	return reconciliation.DailyRegister(records), nil
}

// VarianceReport filas de conciliación y totales.
type VarianceReport struct {
	Rows    []reconciliation.VarianceRow
	Summary reconciliation.VarianceSummary
}

// Variance conciliación por documento origen e ítem contra los documentos leídos en paralelo.
func (uc *UseCase) Variance(ctx context.Context, q Query) (*VarianceReport, error) {
	records, err := uc.load(ctx, q, entity.CommittedStatuses...)
	if err != nil {
		return nil, err
	}

	refs := make(map[entity.DocumentRef]struct{})
	transfers := make(map[string]struct{})
	for _, rec := range records {
		if rec.IsReturnFlow() {
			transfers[rec.ReturnLink.OutboundTransferID] = struct{}{}
			refs[entity.DocumentRef{Type: entity.DocStockTransfer, ID: rec.ReturnLink.OutboundTransferID}] = struct{}{}
			continue
		}
		if rec.ParentID != "" {
			refs[rec.Parent()] = struct{}{}
		}
	}

	parents := make(map[entity.DocumentRef]*entity.ParentDocumentSnapshot, len(refs))
	paired := make(map[string][]*entity.MovementRecord, len(transfers))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchLimit)
	for ref := range refs {
		ref := ref
		g.Go(func() error {
			snap, err := uc.source.GetSnapshot(gctx, ref)
			if err != nil {
				uc.warnAbsent(ref, err)
				return nil
			}
			mu.Lock()
			parents[ref] = snap
			mu.Unlock()
			return nil
		})
	}
	for id := range transfers {
		id := id
		g.Go(func() error {
			outs, err := uc.recordRepo.ListByParent(gctx, entity.DocumentRef{Type: entity.DocStockTransfer, ID: id})
			if err != nil {
				return err
			}
			mu.Lock()
			paired[id] = outs
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rows := reconciliation.Variance(reconciliation.Input{Records: records, Parents: parents, PairedOutbound: paired})
	return &VarianceReport{Rows: rows, Summary: reconciliation.Summarize(rows)}, nil
}

func (uc *UseCase) load(ctx context.Context, q Query, statuses ...entity.RecordStatus) ([]*entity.MovementRecord, error) {
	if q.CompanyID == "" {
		return nil, domain.ErrInvalidInput
	}
	now := uc.now().UTC()
	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	if q.To != nil {
		to = q.To.UTC()
	}
	from := to.Add(-defaultWindow)
	if q.From != nil {
		from = q.From.UTC()
	}
	if !from.Before(to) {
		return nil, domain.ErrInvalidInput
	}
	return uc.recordRepo.List(ctx, repository.RecordFilter{
		CompanyID: q.CompanyID,
		Direction: q.Direction,
		Statuses:  statuses,
		From:      &from,
		To:        &to,
		Limit:     maxRecords,
	})
}

func (uc *UseCase) warnAbsent(ref entity.DocumentRef, err error) {
	ev := uc.log.Warn()
	if errors.Is(err, domain.ErrNotFound) {
		ev = uc.log.Debug()
	}
	ev.Err(err).Str("parent_type", string(ref.Type)).Str("parent_id", ref.ID).Msg("documento origen no disponible para el informe")
}
