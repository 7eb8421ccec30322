package patient

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pharmadesk/pharmadesk/internal/platform/db"
	"github.com/pharmadesk/pharmadesk/pkg/pagination"
)

type memRepo struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*Patient
}

// NewMemRepo returns a process-local Repository.
func NewMemRepo() Repository {
	return &memRepo{items: make(map[uuid.UUID]*Patient)}
}

func (m *memRepo) Create(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.items {
		if existing.PatientCode == p.PatientCode {
			return fmt.Errorf("%w: patient_code %s already exists", db.ErrConflict, p.PatientCode)
		}
	}
	p.ID = uuid.New()
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.items[p.ID] = &cp
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.items[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memRepo) Update(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.items[p.ID]
	if !ok {
		return db.ErrNotFound
	}
	p.PatientCode = existing.PatientCode
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	cp := *p
	m.items[p.ID] = &cp
	return nil
}

func (m *memRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memRepo) Search(_ context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q := strings.ToLower(params["q"])
	var matched []*Patient
	for _, p := range m.items {
		if g := params["gender"]; g != "" && p.Gender != g {
			continue
		}
		if q != "" && !containsAny(q, p.FullName, p.Phone, p.PatientCode, p.Email) {
			continue
		}
		cp := *p
		matched = append(matched, &cp)
	}
	sortPatients(matched, params["sort"])

	start, end := pagination.Window(len(matched), limit, offset)
	return matched[start:end], len(matched), nil
}

func (m *memRepo) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items), nil
}

func containsAny(needle string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

func sortPatients(items []*Patient, key string) {
	var less func(a, b *Patient) bool
	switch strings.TrimPrefix(key, "-") {
	case "name":
		less = func(a, b *Patient) bool { return a.FullName < b.FullName }
	default:
		// newest first unless "created" is requested explicitly
		if key != "created" {
			key = "-created"
		}
		less = func(a, b *Patient) bool { return a.CreatedAt.Before(b.CreatedAt) }
	}
	desc := strings.HasPrefix(key, "-")
	sort.SliceStable(items, func(i, j int) bool {
		if desc {
			return less(items[j], items[i])
		}
		return less(items[i], items[j])
	})
}
