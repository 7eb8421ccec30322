package prescription

import (
	"context"
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
	mu    sync.RWMutex
	items map[uuid.UUID]*Prescription
	now   func() time.Time
}

// NewMemRepo returns a process-local Repository.
func NewMemRepo() Repository {
	return &memRepo{items: make(map[uuid.UUID]*Prescription), now: time.Now}
}

func (r *memRepo) Create(_ context.Context, p *Prescription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = uuid.New()
	p.CreatedAt = r.now().UTC()
	p.UpdatedAt = p.CreatedAt
	numberMedicines(p)
	r.items[p.ID] = copyPrescription(p)
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Prescription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return copyPrescription(p), nil
}

func (r *memRepo) Update(_ context.Context, p *Prescription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.items[p.ID]
	if !ok {
		return db.ErrNotFound
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = r.now().UTC()
	numberMedicines(p)
	r.items[p.ID] = copyPrescription(p)
	return nil
}

func (r *memRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return db.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *memRepo) Search(_ context.Context, params map[string]string, limit, offset int) ([]*Prescription, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var from, to time.Time
	if v := params["from"]; v != "" {
		d, err := datex.Parse(v)
		if err != nil {
			return nil, 0, err
		}
		from = d.Time
	}
	if v := params["to"]; v != "" {
		d, err := datex.Parse(v)
		if err != nil {
			return nil, 0, err
		}
		to = d.AddDays(1).Time
	}
	q := strings.ToLower(params["q"])

	var matched []*Prescription
	for _, p := range r.items {
		if v := params["patient_id"]; v != "" && p.PatientID.String() != v {
			continue
		}
		if v := params["doctor_id"]; v != "" && p.DoctorID.String() != v {
			continue
		}
		if v := params["status"]; v != "" && p.Status != v {
			continue
		}
		if !from.IsZero() && p.IssuedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !p.IssuedAt.Before(to) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(p.Diagnosis), q) && !strings.Contains(strings.ToLower(p.Advice), q) {
			continue
		}
		matched = append(matched, copyPrescription(p))
	}
	sortPrescriptions(matched, params["sort"])

	start, end := pagination.Window(len(matched), limit, offset)
	return matched[start:end], len(matched), nil
}

func (r *memRepo) SetStatus(_ context.Context, id uuid.UUID, status string) (*Prescription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	p.Status = status
	p.UpdatedAt = r.now().UTC()
	return copyPrescription(p), nil
}

func numberMedicines(p *Prescription) {
	for i, m := range p.Medicines {
		m.ID = uuid.New()
		m.PrescriptionID = p.ID
		m.Position = i + 1
	}
}

func copyPrescription(p *Prescription) *Prescription {
	cp := *p
	cp.Medicines = make([]*Medicine, len(p.Medicines))
	for i, m := range p.Medicines {
		cp.Medicines[i] = medicineCopy(m)
	}
	if p.AppointmentID != nil {
		id := *p.AppointmentID
		cp.AppointmentID = &id
	}
	if p.NextRefillDate != nil {
		d := *p.NextRefillDate
		cp.NextRefillDate = &d
	}
	return &cp
}

// sortPrescriptions defaults to newest issue first.
func sortPrescriptions(items []*Prescription, key string) {
	k := strings.TrimSpace(key)
	desc := true
	less := func(a, b *Prescription) bool { return a.IssuedAt.Before(b.IssuedAt) }
	switch strings.TrimPrefix(k, "-") {
	case "issued":
		desc = strings.HasPrefix(k, "-")
	case "created":
		desc = strings.HasPrefix(k, "-")
		less = func(a, b *Prescription) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case "refill":
		desc = strings.HasPrefix(k, "-")
		less = func(a, b *Prescription) bool { return refillTime(a).Before(refillTime(b)) }
	}
	sort.SliceStable(items, func(i, j int) bool {
		if desc {
			return less(items[j], items[i])
		}
		return less(items[i], items[j])
	})
}

func refillTime(p *Prescription) time.Time {
	if p.NextRefillDate == nil {
		return time.Time{}
	}
	return p.NextRefillDate.Time
}
