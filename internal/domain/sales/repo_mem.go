package sales

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pharmadesk/pharmadesk/internal/platform/db"
	"github.com/pharmadesk/pharmadesk/pkg/codes"
	"github.com/pharmadesk/pharmadesk/pkg/datex"
	"github.com/pharmadesk/pharmadesk/pkg/pagination"
)

type memRepo struct {
	mu    sync.RWMutex
	sales map[uuid.UUID]*Sale
	now   func() time.Time
}

// NewMemRepo returns a process-local Repository.
func NewMemRepo() Repository {
	return &memRepo{sales: make(map[uuid.UUID]*Sale), now: time.Now}
}

func (r *memRepo) Create(ctx context.Context, s *Sale) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s.ID = uuid.New()
	s.CreatedAt = r.now().UTC()
	s.UpdatedAt = s.CreatedAt
	for i, it := range s.Items {
		it.ID = uuid.New()
		it.SaleID = s.ID
		it.Position = i + 1
	}
	r.sales[s.ID] = copySale(s)
	id := s.ID
	db.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.sales, id)
	})
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Sale, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sales[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return copySale(s), nil
}

func (r *memRepo) Search(_ context.Context, params map[string]string, limit, offset int) ([]*Sale, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	from, to, err := dateRange(params)
	if err != nil {
		return nil, 0, err
	}
	var matched []*Sale
	for _, s := range r.sales {
		if v := params["patient_id"]; v != "" && (s.PatientID == nil || s.PatientID.String() != v) {
			continue
		}
		if v := params["payment_method"]; v != "" && s.PaymentMethod != v {
			continue
		}
		if v := params["status"]; v != "" && s.Status != v {
			continue
		}
		if !from.IsZero() && s.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !s.CreatedAt.Before(to) {
			continue
		}
		matched = append(matched, copySale(s))
	}
	sortSales(matched, params["sort"])

	start, end := pagination.Window(len(matched), limit, offset)
	return matched[start:end], len(matched), nil
}

// dateRange reads "from" and "to" as inclusive calendar days.
func dateRange(params map[string]string) (from, to time.Time, err error) {
	if v := params["from"]; v != "" {
		d, err := datex.Parse(v)
		if err != nil {
			return from, to, err
		}
		from = d.Time
	}
	if v := params["to"]; v != "" {
		d, err := datex.Parse(v)
		if err != nil {
			return from, to, err
		}
		to = d.AddDays(1).Time
	}
	return from, to, nil
}

func (r *memRepo) Transition(ctx context.Context, id uuid.UUID, from, to string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sales[id]
	if !ok {
		return db.ErrNotFound
	}
	if s.Status != from {
		return fmt.Errorf("%w: sale is %s", ErrStatusChanged, s.Status)
	}
	s.Status = to
	s.UpdatedAt = r.now().UTC()
	db.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		s.Status = from
	})
	return nil
}

func (r *memRepo) Summary(_ context.Context, from, to time.Time) (DaySummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := DaySummary{Revenue: decimal.Zero}
	for _, s := range r.sales {
		if s.Status != codes.SaleCompleted || s.CreatedAt.Before(from) || !s.CreatedAt.Before(to) {
			continue
		}
		out.Count++
		out.Revenue = out.Revenue.Add(s.Payable)
	}
	return out, nil
}

func copySale(s *Sale) *Sale {
	cp := *s
	cp.Items = make([]*SaleItem, len(s.Items))
	for i, it := range s.Items {
		itemCopy := *it
		cp.Items[i] = &itemCopy
	}
	if s.PatientID != nil {
		id := *s.PatientID
		cp.PatientID = &id
	}
	return &cp
}

func sortSales(items []*Sale, key string) {
	desc := true
	less := func(a, b *Sale) bool { return a.CreatedAt.Before(b.CreatedAt) }
	k := strings.TrimSpace(key)
	switch strings.TrimPrefix(k, "-") {
	case "created":
		desc = strings.HasPrefix(k, "-")
	case "payable":
		desc = strings.HasPrefix(k, "-")
		less = func(a, b *Sale) bool { return a.Payable.LessThan(b.Payable) }
	}
	sort.SliceStable(items, func(i, j int) bool {
		if desc {
			return less(items[j], items[i])
		}
		return less(items[i], items[j])
	})
}
