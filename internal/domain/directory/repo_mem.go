package directory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pharmadesk/pharmadesk/internal/platform/db"
	"github.com/pharmadesk/pharmadesk/pkg/pagination"
)

type doctorMemRepo struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*Doctor
}

// NewDoctorMemRepo returns a process-local DoctorRepository.
func NewDoctorMemRepo() DoctorRepository {
	return &doctorMemRepo{items: make(map[uuid.UUID]*Doctor)}
}

func (m *doctorMemRepo) Create(_ context.Context, d *Doctor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.ID = uuid.New()
	d.CreatedAt = time.Now().UTC()
	d.UpdatedAt = d.CreatedAt
	m.items[d.ID] = copyDoctor(d)
	return nil
}

func (m *doctorMemRepo) GetByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.items[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return copyDoctor(d), nil
}

func (m *doctorMemRepo) Update(_ context.Context, d *Doctor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.items[d.ID]
	if !ok {
		return db.ErrNotFound
	}
	d.CreatedAt = existing.CreatedAt
	d.UpdatedAt = time.Now().UTC()
	m.items[d.ID] = copyDoctor(d)
	return nil
}

func (m *doctorMemRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *doctorMemRepo) Search(_ context.Context, params map[string]string, limit, offset int) ([]*Doctor, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*Doctor
	for _, d := range m.items {
		if v := params["clinic_id"]; v != "" && (d.ClinicID == nil || d.ClinicID.String() != v) {
			continue
		}
		if v := params["specialty"]; v != "" && d.Specialty != v {
			continue
		}
		if v := params["active"]; v != "" && d.Active != (v == "true") {
			continue
		}
		if !containsAny(params["q"], d.Name, d.Specialty, d.Phone) {
			continue
		}
		matched = append(matched, copyDoctor(d))
	}
	sortByName(len(matched), params["sort"],
		func(i int) string { return matched[i].Name },
		func(i int) time.Time { return matched[i].CreatedAt },
		func(i, j int) { matched[i], matched[j] = matched[j], matched[i] })

	start, end := pagination.Window(len(matched), limit, offset)
	return matched[start:end], len(matched), nil
}

func copyDoctor(d *Doctor) *Doctor {
	cp := *d
	if d.ClinicID != nil {
		id := *d.ClinicID
		cp.ClinicID = &id
	}
	return &cp
}

type clinicMemRepo struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*Clinic
}

// NewClinicMemRepo returns a process-local ClinicRepository.
func NewClinicMemRepo() ClinicRepository {
	return &clinicMemRepo{items: make(map[uuid.UUID]*Clinic)}
}

func (m *clinicMemRepo) Create(_ context.Context, c *Clinic) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = uuid.New()
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	m.items[c.ID] = &cp
	return nil
}

func (m *clinicMemRepo) GetByID(_ context.Context, id uuid.UUID) (*Clinic, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.items[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *clinicMemRepo) Update(_ context.Context, c *Clinic) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.items[c.ID]
	if !ok {
		return db.ErrNotFound
	}
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	cp := *c
	m.items[c.ID] = &cp
	return nil
}

func (m *clinicMemRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *clinicMemRepo) Search(_ context.Context, params map[string]string, limit, offset int) ([]*Clinic, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*Clinic
	for _, c := range m.items {
		if v := params["active"]; v != "" && c.Active != (v == "true") {
			continue
		}
		if !containsAny(params["q"], c.Name, c.Address, c.Phone) {
			continue
		}
		cp := *c
		matched = append(matched, &cp)
	}
	sortByName(len(matched), params["sort"],
		func(i int) string { return matched[i].Name },
		func(i int) time.Time { return matched[i].CreatedAt },
		func(i, j int) { matched[i], matched[j] = matched[j], matched[i] })

	start, end := pagination.Window(len(matched), limit, offset)
	return matched[start:end], len(matched), nil
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

type sorter struct {
	n    int
	less func(i, j int) bool
	swap func(i, j int)
}

func (s sorter) Len() int           { return s.n }
func (s sorter) Less(i, j int) bool { return s.less(i, j) }
func (s sorter) Swap(i, j int)      { s.swap(i, j) }

// sortByName orders by name (default) or creation time, "-" for descending.
func sortByName(n int, key string, name func(int) string, created func(int) time.Time, swap func(i, j int)) {
	desc := strings.HasPrefix(key, "-")
	less := func(i, j int) bool { return strings.ToLower(name(i)) < strings.ToLower(name(j)) }
	switch strings.TrimPrefix(key, "-") {
	case "created":
		less = func(i, j int) bool { return created(i).Before(created(j)) }
	case "name":
	default:
		desc = false
	}
	cmp := less
	if desc {
		cmp = func(i, j int) bool { return less(j, i) }
	}
	sort.Stable(sorter{n: n, less: cmp, swap: swap})
}
