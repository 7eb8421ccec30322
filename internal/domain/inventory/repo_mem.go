package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pharmadesk/pharmadesk/internal/platform/db"
	"github.com/pharmadesk/pharmadesk/pkg/datex"
	"github.com/pharmadesk/pharmadesk/pkg/pagination"
)

type memRepo struct {
	mu        sync.RWMutex
	medicines map[uuid.UUID]*Medicine
	batches   map[uuid.UUID]*Batch
	movements []*StockMovement
	now       func() time.Time
}

// NewMemRepo returns a process-local Repository.
func NewMemRepo() Repository {
	return &memRepo{
		medicines: make(map[uuid.UUID]*Medicine),
		batches:   make(map[uuid.UUID]*Batch),
		now:       time.Now,
	}
}

// undo registers fn to run under the repo lock if the surrounding
// transaction fails.
func (r *memRepo) undo(ctx context.Context, fn func()) {
	db.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		fn()
	})
}

func (r *memRepo) Create(ctx context.Context, m *Medicine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.skuTaken(m.SKU, uuid.Nil) {
		return fmt.Errorf("%w: sku %s already exists", db.ErrConflict, m.SKU)
	}
	m.ID = uuid.New()
	m.CreatedAt = r.now().UTC()
	m.UpdatedAt = m.CreatedAt
	r.medicines[m.ID] = copyMedicine(m)
	id := m.ID
	r.undo(ctx, func() { delete(r.medicines, id) })
	return nil
}

func (r *memRepo) skuTaken(sku string, except uuid.UUID) bool {
	for id, existing := range r.medicines {
		if id != except && strings.EqualFold(existing.SKU, sku) {
			return true
		}
	}
	return false
}

func (r *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Medicine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.medicines[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return copyMedicine(m), nil
}

func (r *memRepo) Update(_ context.Context, m *Medicine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.medicines[m.ID]
	if !ok {
		return db.ErrNotFound
	}
	if r.skuTaken(m.SKU, m.ID) {
		return fmt.Errorf("%w: sku %s already exists", db.ErrConflict, m.SKU)
	}
	m.StockQty = existing.StockQty
	m.CreatedAt = existing.CreatedAt
	m.UpdatedAt = r.now().UTC()
	r.medicines[m.ID] = copyMedicine(m)
	return nil
}

func (r *memRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.medicines[id]; !ok {
		return db.ErrNotFound
	}
	delete(r.medicines, id)
	for bid, b := range r.batches {
		if b.MedicineID == id {
			delete(r.batches, bid)
		}
	}
	kept := r.movements[:0]
	for _, mv := range r.movements {
		if mv.MedicineID != id {
			kept = append(kept, mv)
		}
	}
	r.movements = kept
	return nil
}

func (r *memRepo) Search(_ context.Context, params map[string]string, limit, offset int) ([]*Medicine, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q := strings.ToLower(params["q"])
	var matched []*Medicine
	for _, m := range r.medicines {
		if c := params["category"]; c != "" && m.Category != c {
			continue
		}
		if a := params["active"]; a != "" && m.Active != (a == "true") {
			continue
		}
		if params["low_stock"] == "true" && !m.IsLowStock() {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(m.Name+"\x00"+m.SKU+"\x00"+m.GenericName), q) {
			continue
		}
		matched = append(matched, copyMedicine(m))
	}
	sortMedicines(matched, params["sort"])

	start, end := pagination.Window(len(matched), limit, offset)
	return matched[start:end], len(matched), nil
}

func (r *memRepo) LowStock(_ context.Context) ([]*Medicine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Medicine
	for _, m := range r.medicines {
		if m.Active && m.IsLowStock() {
			out = append(out, copyMedicine(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := out[i].StockQty-out[i].ReorderLevel, out[j].StockQty-out[j].ReorderLevel
		if di != dj {
			return di < dj
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *memRepo) ChangeStock(ctx context.Context, id uuid.UUID, delta int) (*Medicine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.medicines[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	if m.StockQty+delta < 0 {
		return nil, ErrInsufficientStock
	}
	m.StockQty += delta
	m.UpdatedAt = r.now().UTC()
	r.undo(ctx, func() {
		if m, ok := r.medicines[id]; ok {
			m.StockQty -= delta
		}
	})
	return copyMedicine(m), nil
}

func (r *memRepo) AddBatch(ctx context.Context, b *Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.medicines[b.MedicineID]; !ok {
		return fmt.Errorf("%w: medicine %s does not exist", db.ErrConflict, b.MedicineID)
	}
	for _, existing := range r.batches {
		if existing.MedicineID == b.MedicineID && existing.BatchNumber == b.BatchNumber {
			return fmt.Errorf("%w: batch %s already exists", db.ErrConflict, b.BatchNumber)
		}
	}
	b.ID = uuid.New()
	b.CreatedAt = r.now().UTC()
	cp := *b
	r.batches[b.ID] = &cp
	id := b.ID
	r.undo(ctx, func() { delete(r.batches, id) })
	return nil
}

func (r *memRepo) ListBatches(_ context.Context, medicineID uuid.UUID) ([]*Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Batch
	for _, b := range r.batches {
		if b.MedicineID == medicineID {
			cp := *b
			out = append(out, &cp)
		}
	}
	return byExpiry(out), nil
}

func (r *memRepo) LockBatches(ctx context.Context, medicineID uuid.UUID) ([]*Batch, error) {
	return r.ListBatches(ctx, medicineID)
}

func (r *memRepo) SetBatchRemaining(ctx context.Context, batchID uuid.UUID, remaining int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[batchID]
	if !ok {
		return db.ErrNotFound
	}
	if remaining < 0 || remaining > b.Quantity {
		return fmt.Errorf("batch %s: remaining %d outside [0, %d]", b.BatchNumber, remaining, b.Quantity)
	}
	prev := b.Remaining
	b.Remaining = remaining
	r.undo(ctx, func() { b.Remaining = prev })
	return nil
}

func (r *memRepo) ExpiringBatches(_ context.Context, before datex.Date) ([]*ExpiringBatch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*ExpiringBatch
	for _, b := range r.batches {
		if b.Remaining <= 0 || b.ExpiryDate.After(before) {
			continue
		}
		m := r.medicines[b.MedicineID]
		out = append(out, &ExpiringBatch{Batch: *b, MedicineName: m.Name, SKU: m.SKU})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExpiryDate.Equal(out[j].ExpiryDate) {
			return out[i].ExpiryDate.Before(out[j].ExpiryDate)
		}
		return out[i].MedicineName < out[j].MedicineName
	})
	return out, nil
}

func (r *memRepo) AddMovement(ctx context.Context, mv *StockMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	mv.ID = uuid.New()
	mv.CreatedAt = r.now().UTC()
	cp := *mv
	r.movements = append(r.movements, &cp)
	id := mv.ID
	r.undo(ctx, func() {
		for i, m := range r.movements {
			if m.ID == id {
				r.movements = append(r.movements[:i], r.movements[i+1:]...)
				return
			}
		}
	})
	return nil
}

func (r *memRepo) ListMovements(_ context.Context, medicineID uuid.UUID, limit, offset int) ([]*StockMovement, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*StockMovement
	// newest first
	for i := len(r.movements) - 1; i >= 0; i-- {
		if mv := r.movements[i]; mv.MedicineID == medicineID {
			cp := *mv
			out = append(out, &cp)
		}
	}
	start, end := pagination.Window(len(out), limit, offset)
	return out[start:end], len(out), nil
}

func copyMedicine(m *Medicine) *Medicine {
	cp := *m
	cp.Batches = nil
	return &cp
}

func sortMedicines(items []*Medicine, key string) {
	desc := strings.HasPrefix(key, "-")
	var less func(a, b *Medicine) bool
	switch strings.TrimPrefix(key, "-") {
	case "stock":
		less = func(a, b *Medicine) bool { return a.StockQty < b.StockQty }
	case "price":
		less = func(a, b *Medicine) bool { return a.UnitPrice.LessThan(b.UnitPrice) }
	case "created":
		less = func(a, b *Medicine) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case "name":
		less = func(a, b *Medicine) bool { return a.Name < b.Name }
	default:
		desc = false
		less = func(a, b *Medicine) bool { return a.Name < b.Name }
	}
	sort.SliceStable(items, func(i, j int) bool {
		if desc {
			return less(items[j], items[i])
		}
		return less(items[i], items[j])
	})
}
