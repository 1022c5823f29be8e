package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Gatepass-api/internal/domain"
	"github.com/jhoicas/Gatepass-api/internal/domain/entity"
	"github.com/jhoicas/Gatepass-api/internal/domain/repository"
)

var (
	_ repository.MovementRecordRepository = (*recordRepo)(nil)
	_ repository.AllocationRepository     = (*allocationRepo)(nil)
	_ repository.ParentLinkRepository     = (*linkRepo)(nil)
	_ repository.AutoCreateTaskRepository = (*taskRepo)(nil)
)

type recordRepo struct{ b *binding }

func (r *recordRepo) Create(_ context.Context, rec *entity.MovementRecord) error {
	return r.b.write(func(st *state) error {
		if _, ok := st.records[rec.ID]; ok {
			return domain.ErrDuplicate
		}
		st.records[rec.ID] = rec.Clone()
		return nil
	})
}

func (r *recordRepo) Update(_ context.Context, rec *entity.MovementRecord) error {
	return r.b.write(func(st *state) error {
		if _, ok := st.records[rec.ID]; !ok {
			return domain.ErrNotFound
		}
		st.records[rec.ID] = rec.Clone()
		return nil
	})
}

func (r *recordRepo) Delete(_ context.Context, id string) error {
	return r.b.write(func(st *state) error {
		if _, ok := st.records[id]; !ok {
			return domain.ErrNotFound
		}
		delete(st.records, id)
		return nil
	})
}

func (r *recordRepo) GetByID(_ context.Context, id string) (*entity.MovementRecord, error) {
	var out *entity.MovementRecord
	err := r.b.read(func(st *state) error {
		out = st.records[id].Clone()
		return nil
	})
	return out, err
}

func (r *recordRepo) GetForUpdate(ctx context.Context, id string) (*entity.MovementRecord, error) {
	return r.GetByID(ctx, id)
}

func (r *recordRepo) List(_ context.Context, f repository.RecordFilter) ([]*entity.MovementRecord, error) {
	var out []*entity.MovementRecord
	err := r.b.read(func(st *state) error {
		out = filterRecords(st, func(rec *entity.MovementRecord) bool { return matches(rec, f) })
		return nil
	})
	if err != nil {
		return nil, err
	}
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []*entity.MovementRecord{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *recordRepo) ListByParent(_ context.Context, parent entity.DocumentRef) ([]*entity.MovementRecord, error) {
	var out []*entity.MovementRecord
	err := r.b.read(func(st *state) error {
		out = filterRecords(st, func(rec *entity.MovementRecord) bool {
			return rec.ParentType == parent.Type && rec.ParentID == parent.ID
		})
		return nil
	})
	return out, err
}

func (r *recordRepo) ListReturnReferences(_ context.Context, outboundRecordID, outboundTransferID string) ([]*entity.MovementRecord, error) {
	var out []*entity.MovementRecord
	err := r.b.read(func(st *state) error {
		out = filterRecords(st, func(rec *entity.MovementRecord) bool {
			if rec.Direction != entity.DirectionInbound || rec.ReturnLink == nil {
				return false
			}
			return (outboundRecordID != "" && rec.ReturnLink.OutboundRecordID == outboundRecordID) ||
				(outboundTransferID != "" && rec.ReturnLink.OutboundTransferID == outboundTransferID)
		})
		return nil
	})
	return out, err
}

func (r *recordRepo) FindDraftReturn(_ context.Context, outboundTransferID string) (*entity.MovementRecord, error) {
	var out *entity.MovementRecord
	err := r.b.read(func(st *state) error {
		found := filterRecords(st, func(rec *entity.MovementRecord) bool {
			return rec.Status == entity.StatusDraft && rec.Direction == entity.DirectionInbound &&
				rec.ParentType == entity.DocStockTransfer && rec.ParentID == outboundTransferID &&
				rec.ReturnLink != nil && rec.ReturnLink.OutboundTransferID == outboundTransferID
		})
		if len(found) > 0 {
			// el más antiguo
			out = found[len(found)-1]
		}
		return nil
	})
	return out, err
}

// filterRecords copia los registros que cumplen keep, del más reciente al más antiguo.
func filterRecords(st *state, keep func(*entity.MovementRecord) bool) []*entity.MovementRecord {
	out := make([]*entity.MovementRecord, 0)
	for _, rec := range st.records {
		if keep(rec) {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RecordDate.Equal(out[j].RecordDate) {
			return out[i].RecordDate.After(out[j].RecordDate)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func matches(rec *entity.MovementRecord, f repository.RecordFilter) bool {
	if f.CompanyID != "" && rec.CompanyID != f.CompanyID {
		return false
	}
	if f.Direction != "" && rec.Direction != f.Direction {
		return false
	}
	if f.ParentType != "" && rec.ParentType != f.ParentType {
		return false
	}
	if f.ParentID != "" && rec.ParentID != f.ParentID {
		return false
	}
	if len(f.Statuses) > 0 && !hasStatus(f.Statuses, rec.Status) {
		return false
	}
	if f.From != nil && rec.RecordDate.Before(*f.From) {
		return false
	}
	if f.To != nil && !rec.RecordDate.Before(*f.To) {
		return false
	}
	return true
}

func hasStatus(list []entity.RecordStatus, s entity.RecordStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type allocationRepo struct{ b *binding }

// Lock no hace nada: Run ya tiene el mutex del almacén.
func (a *allocationRepo) Lock(context.Context, repository.AllocationKey) error { return nil }

func (a *allocationRepo) SumConfirmed(_ context.Context, key repository.AllocationKey, statuses []entity.RecordStatus, excludeRecordID string) (decimal.Decimal, error) {
	total := decimal.Zero
	err := a.b.read(func(st *state) error {
		for _, rec := range st.records {
			if rec.ID == excludeRecordID || !hasStatus(statuses, rec.Status) || !inScope(rec, key) {
				continue
			}
			for _, l := range rec.Lines {
				if l.ItemCode == key.ItemCode {
					total = total.Add(l.ConfirmedQty)
				}
			}
		}
		return nil
	})
	return total, err
}

func inScope(rec *entity.MovementRecord, key repository.AllocationKey) bool {
	if rec.Direction != key.Direction {
		return false
	}
	if key.ReturnFlow {
		return rec.IsReturnFlow() && rec.ReturnLink.OutboundTransferID == key.ParentID
	}
	return rec.ParentType == key.ParentType && rec.ParentID == key.ParentID
}

type linkRepo struct{ b *binding }

func (l *linkRepo) Get(_ context.Context, parent entity.DocumentRef) (string, error) {
	var id string
	err := l.b.read(func(st *state) error {
		id = st.links[parent]
		return nil
	})
	return id, err
}

func (l *linkRepo) Set(_ context.Context, parent entity.DocumentRef, recordID string) error {
	return l.b.write(func(st *state) error {
		st.links[parent] = recordID
		return nil
	})
}

func (l *linkRepo) Clear(_ context.Context, parent entity.DocumentRef) error {
	return l.b.write(func(st *state) error {
		delete(st.links, parent)
		return nil
	})
}

func (l *linkRepo) ClearIfOwner(_ context.Context, parent entity.DocumentRef, recordID string) (bool, error) {
	cleared := false
	err := l.b.write(func(st *state) error {
		if st.links[parent] == recordID {
			delete(st.links, parent)
			cleared = true
		}
		return nil
	})
	return cleared, err
}

type taskRepo struct{ b *binding }

func (t *taskRepo) Claim(_ context.Context, task *entity.AutoCreateTask) (bool, error) {
	claimed := false
	err := t.b.write(func(st *state) error {
		for _, existing := range st.tasks {
			if existing.Key() == task.Key() {
				return nil
			}
		}
		if task.ID == "" {
			task.ID = uuid.New().String()
		}
		if task.Status == "" {
			task.Status = entity.TaskPending
		}
		c := *task
		st.tasks[task.ID] = &c
		claimed = true
		return nil
	})
	return claimed, err
}

func (t *taskRepo) GetByID(_ context.Context, id string) (*entity.AutoCreateTask, error) {
	var out *entity.AutoCreateTask
	err := t.b.read(func(st *state) error {
		if task, ok := st.tasks[id]; ok {
			c := *task
			out = &c
		}
		return nil
	})
	return out, err
}

func (t *taskRepo) update(id string, fn func(task *entity.AutoCreateTask)) error {
	return t.b.write(func(st *state) error {
		task, ok := st.tasks[id]
		if !ok {
			return domain.ErrNotFound
		}
		fn(task)
		return nil
	})
}

func (t *taskRepo) RecordAttempt(_ context.Context, id string, attempts int, lastErr string) error {
	return t.update(id, func(task *entity.AutoCreateTask) {
		task.Attempts = attempts
		task.LastError = lastErr
	})
}

func (t *taskRepo) MarkDone(_ context.Context, id, recordID string) error {
	return t.update(id, func(task *entity.AutoCreateTask) {
		task.Status = entity.TaskDone
		task.RecordID = recordID
	})
}

func (t *taskRepo) MarkFailed(_ context.Context, id string, attempts int, lastErr string) error {
	return t.update(id, func(task *entity.AutoCreateTask) {
		task.Status = entity.TaskFailed
		task.Attempts = attempts
		task.LastError = lastErr
	})
}

func (t *taskRepo) ListByStatus(_ context.Context, status string, limit int) ([]*entity.AutoCreateTask, error) {
	var out []*entity.AutoCreateTask
	err := t.b.read(func(st *state) error {
		for _, task := range st.tasks {
			if task.Status == status {
				c := *task
				out = append(out, &c)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}
