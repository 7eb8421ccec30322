package scheduling

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pharmadesk/pharmadesk/internal/platform/db"
	"github.com/pharmadesk/pharmadesk/pkg/codes"
	"github.com/pharmadesk/pharmadesk/pkg/datex"
	"github.com/pharmadesk/pharmadesk/pkg/pagination"
)

type memRepo struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*Appointment
	now   func() time.Time
}

// NewMemRepo returns a process-local Repository.
func NewMemRepo() Repository {
	return &memRepo{items: make(map[uuid.UUID]*Appointment), now: time.Now}
}

func (r *memRepo) Create(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.ID = uuid.New()
	a.CreatedAt = r.now().UTC()
	a.UpdatedAt = a.CreatedAt
	r.items[a.ID] = copyAppointment(a)
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.items[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return copyAppointment(a), nil
}

func (r *memRepo) Update(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.items[a.ID]
	if !ok {
		return db.ErrNotFound
	}
	a.CreatedAt = existing.CreatedAt
	a.UpdatedAt = r.now().UTC()
	r.items[a.ID] = copyAppointment(a)
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

func (r *memRepo) Search(_ context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error) {
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

	var matched []*Appointment
	for _, a := range r.items {
		if v := params["patient_id"]; v != "" && a.PatientID.String() != v {
			continue
		}
		if v := params["doctor_id"]; v != "" && a.DoctorID.String() != v {
			continue
		}
		if v := params["clinic_id"]; v != "" && (a.ClinicID == nil || a.ClinicID.String() != v) {
			continue
		}
		if v := params["status"]; v != "" && a.Status != v {
			continue
		}
		if !from.IsZero() && a.ScheduledAt.Before(from) {
			continue
		}
		if !to.IsZero() && !a.ScheduledAt.Before(to) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(a.Reason), q) && !strings.Contains(strings.ToLower(a.Notes), q) {
			continue
		}
		matched = append(matched, copyAppointment(a))
	}
	sortAppointments(matched, params["sort"])

	start, end := pagination.Window(len(matched), limit, offset)
	return matched[start:end], len(matched), nil
}

func (r *memRepo) SetStatus(_ context.Context, id uuid.UUID, status string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	a.Status = status
	a.UpdatedAt = r.now().UTC()
	return copyAppointment(a), nil
}

func (r *memRepo) ListForDoctor(_ context.Context, doctorID uuid.UUID, from, to time.Time) ([]*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Appointment
	for _, a := range r.items {
		if a.DoctorID != doctorID || !inRange(a, from, to) {
			continue
		}
		out = append(out, copyAppointment(a))
	}
	sortAppointments(out, "scheduled")
	return out, nil
}

func (r *memRepo) CountBetween(_ context.Context, from, to time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, a := range r.items {
		if inRange(a, from, to) {
			n++
		}
	}
	return n, nil
}

func inRange(a *Appointment, from, to time.Time) bool {
	return a.Status != codes.AppointmentCancelled &&
		!a.ScheduledAt.Before(from) && a.ScheduledAt.Before(to)
}

func copyAppointment(a *Appointment) *Appointment {
	cp := *a
	if a.ClinicID != nil {
		id := *a.ClinicID
		cp.ClinicID = &id
	}
	return &cp
}

func sortAppointments(items []*Appointment, key string) {
	k := strings.TrimSpace(key)
	desc := strings.HasPrefix(k, "-")
	less := func(a, b *Appointment) bool { return a.ScheduledAt.Before(b.ScheduledAt) }
	if strings.TrimPrefix(k, "-") == "created" {
		less = func(a, b *Appointment) bool { return a.CreatedAt.Before(b.CreatedAt) }
	}
	sort.SliceStable(items, func(i, j int) bool {
		if desc {
			return less(items[j], items[i])
		}
		return less(items[i], items[j])
	})
}
