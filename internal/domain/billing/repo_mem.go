package billing

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

type invoiceMemRepo struct {
	mu       sync.RWMutex
	invoices map[uuid.UUID]*Invoice
	counters map[string]int
	now      func() time.Time
}

// NewInvoiceMemRepo returns a process-local InvoiceRepository.
func NewInvoiceMemRepo() InvoiceRepository {
	return &invoiceMemRepo{
		invoices: make(map[uuid.UUID]*Invoice),
		counters: make(map[string]int),
		now:      time.Now,
	}
}

func (r *invoiceMemRepo) NextNumber(_ context.Context, day datex.Date) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := day.String()
	r.counters[key]++
	return formatNumber(day, r.counters[key]), nil
}

func (r *invoiceMemRepo) Create(_ context.Context, inv *Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.invoices {
		if existing.InvoiceNumber == inv.InvoiceNumber {
			return fmt.Errorf("%w: invoice number %s already exists", db.ErrConflict, inv.InvoiceNumber)
		}
	}

	inv.ID = uuid.New()
	inv.CreatedAt = r.now().UTC()
	inv.UpdatedAt = inv.CreatedAt
	for i, l := range inv.Lines {
		l.ID = uuid.New()
		l.InvoiceID = inv.ID
		l.Position = i + 1
	}
	r.invoices[inv.ID] = copyInvoice(inv)
	return nil
}

func (r *invoiceMemRepo) GetByID(_ context.Context, id uuid.UUID) (*Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inv, ok := r.invoices[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return copyInvoice(inv), nil
}

func (r *invoiceMemRepo) GetBySale(_ context.Context, saleID uuid.UUID) (*Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, inv := range r.invoices {
		if inv.SaleID != nil && *inv.SaleID == saleID {
			return copyInvoice(inv), nil
		}
	}
	return nil, db.ErrNotFound
}

func (r *invoiceMemRepo) Search(_ context.Context, params map[string]string, limit, offset int) ([]*Invoice, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	from, to, err := dateRange(params)
	if err != nil {
		return nil, 0, err
	}
	var matched []*Invoice
	for _, inv := range r.invoices {
		if !containsAny(params["q"], inv.InvoiceNumber, inv.Notes) {
			continue
		}
		if v := params["status"]; v != "" && inv.Status != v {
			continue
		}
		if v := params["patient_id"]; v != "" && optionalID(inv.PatientID) != v {
			continue
		}
		if v := params["sale_id"]; v != "" && optionalID(inv.SaleID) != v {
			continue
		}
		if !from.IsZero() && inv.IssuedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !inv.IssuedAt.Before(to) {
			continue
		}
		matched = append(matched, copyInvoice(inv))
	}
	sortInvoices(matched, params["sort"])

	start, end := pagination.Window(len(matched), limit, offset)
	return matched[start:end], len(matched), nil
}

func (r *invoiceMemRepo) SetStatus(_ context.Context, id uuid.UUID, status string, paidAt *time.Time, unless []string) (*Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	for _, refused := range unless {
		if inv.Status == refused {
			return nil, fmt.Errorf("%w: invoice is %s", ErrStatusChanged, inv.Status)
		}
	}
	inv.Status = status
	if paidAt != nil {
		t := paidAt.UTC()
		inv.PaidAt = &t
	}
	inv.UpdatedAt = r.now().UTC()
	return copyInvoice(inv), nil
}

func copyInvoice(inv *Invoice) *Invoice {
	cp := *inv
	cp.Lines = make([]*InvoiceLine, len(inv.Lines))
	for i, l := range inv.Lines {
		lineCopy := *l
		cp.Lines[i] = &lineCopy
	}
	if inv.PatientID != nil {
		id := *inv.PatientID
		cp.PatientID = &id
	}
	if inv.SaleID != nil {
		id := *inv.SaleID
		cp.SaleID = &id
	}
	if inv.DueDate != nil {
		d := *inv.DueDate
		cp.DueDate = &d
	}
	if inv.PaidAt != nil {
		t := *inv.PaidAt
		cp.PaidAt = &t
	}
	return &cp
}

func sortInvoices(items []*Invoice, key string) {
	desc := true
	less := func(a, b *Invoice) bool { return a.IssuedAt.Before(b.IssuedAt) }
	k := strings.TrimSpace(key)
	switch strings.TrimPrefix(k, "-") {
	case "issued":
		desc = strings.HasPrefix(k, "-")
	case "total":
		desc = strings.HasPrefix(k, "-")
		less = func(a, b *Invoice) bool { return a.GrandTotal.LessThan(b.GrandTotal) }
	case "number":
		desc = strings.HasPrefix(k, "-")
		less = func(a, b *Invoice) bool { return a.InvoiceNumber < b.InvoiceNumber }
	}
	sort.SliceStable(items, func(i, j int) bool {
		if desc {
			return less(items[j], items[i])
		}
		return less(items[i], items[j])
	})
}

type planMemRepo struct {
	mu    sync.RWMutex
	plans map[uuid.UUID]*Plan
	now   func() time.Time
}

// NewPlanMemRepo returns a process-local PlanRepository.
func NewPlanMemRepo() PlanRepository {
	return &planMemRepo{plans: make(map[uuid.UUID]*Plan), now: time.Now}
}

func (r *planMemRepo) codeTaken(code string, except uuid.UUID) bool {
	for id, p := range r.plans {
		if id != except && strings.EqualFold(p.Code, code) {
			return true
		}
	}
	return false
}

func (r *planMemRepo) Create(_ context.Context, p *Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.codeTaken(p.Code, uuid.Nil) {
		return fmt.Errorf("%w: plan code %s already exists", db.ErrConflict, p.Code)
	}
	p.ID = uuid.New()
	p.CreatedAt = r.now().UTC()
	p.UpdatedAt = p.CreatedAt
	r.plans[p.ID] = copyPlan(p)
	return nil
}

func (r *planMemRepo) GetByID(_ context.Context, id uuid.UUID) (*Plan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plans[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return copyPlan(p), nil
}

func (r *planMemRepo) Update(_ context.Context, p *Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.plans[p.ID]
	if !ok {
		return db.ErrNotFound
	}
	if r.codeTaken(p.Code, p.ID) {
		return fmt.Errorf("%w: plan code %s already exists", db.ErrConflict, p.Code)
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = r.now().UTC()
	r.plans[p.ID] = copyPlan(p)
	return nil
}

func (r *planMemRepo) Search(_ context.Context, params map[string]string, limit, offset int) ([]*Plan, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*Plan
	for _, p := range r.plans {
		if !containsAny(params["q"], p.Code, p.Name) {
			continue
		}
		if v := params["interval"]; v != "" && p.Interval != v {
			continue
		}
		if v := params["active"]; v != "" && p.Active != (v == "true") {
			continue
		}
		matched = append(matched, copyPlan(p))
	}

	desc := false
	less := func(a, b *Plan) bool { return a.Price.LessThan(b.Price) }
	k := strings.TrimSpace(params["sort"])
	switch strings.TrimPrefix(k, "-") {
	case "price":
		desc = strings.HasPrefix(k, "-")
	case "name":
		desc = strings.HasPrefix(k, "-")
		less = func(a, b *Plan) bool { return a.Name < b.Name }
	case "created":
		desc = strings.HasPrefix(k, "-")
		less = func(a, b *Plan) bool { return a.CreatedAt.Before(b.CreatedAt) }
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if desc {
			return less(matched[j], matched[i])
		}
		return less(matched[i], matched[j])
	})

	start, end := pagination.Window(len(matched), limit, offset)
	return matched[start:end], len(matched), nil
}

func copyPlan(p *Plan) *Plan {
	cp := *p
	cp.Features = append([]string{}, p.Features...)
	return &cp
}

type paymentMemRepo struct {
	mu       sync.RWMutex
	payments []*Payment
	now      func() time.Time
}

// NewPaymentMemRepo returns a process-local PaymentRepository.
func NewPaymentMemRepo() PaymentRepository {
	return &paymentMemRepo{now: time.Now}
}

func (r *paymentMemRepo) Create(_ context.Context, p *Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = uuid.New()
	p.CreatedAt = r.now().UTC()
	cp := *p
	r.payments = append(r.payments, &cp)
	return nil
}

// Search returns newest attempts first.
func (r *paymentMemRepo) Search(_ context.Context, params map[string]string, limit, offset int) ([]*Payment, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*Payment
	for i := len(r.payments) - 1; i >= 0; i-- {
		p := r.payments[i]
		if v := params["plan_id"]; v != "" && p.PlanID.String() != v {
			continue
		}
		if v := params["provider"]; v != "" && p.Provider != v {
			continue
		}
		if v := params["success"]; v != "" && p.Success != (v == "true") {
			continue
		}
		cp := *p
		matched = append(matched, &cp)
	}
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

func containsAny(q string, fields ...string) bool {
	if q == "" {
		return true
	}
	q = strings.ToLower(q)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}
