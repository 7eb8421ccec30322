package directory

import (
	"context"

	"github.com/google/uuid"
)

// DoctorRepository persists doctors. Search understands "q" (name,
// specialty, phone), "clinic_id", "specialty", "active" and "sort" (name,
// created).
type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Doctor, int, error)
}

// ClinicRepository persists clinics. Search understands "q" (name, address,
// phone), "active" and "sort" (name, created).
type ClinicRepository interface {
	Create(ctx context.Context, c *Clinic) error
	GetByID(ctx context.Context, id uuid.UUID) (*Clinic, error)
	Update(ctx context.Context, c *Clinic) error
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Clinic, int, error)
}
