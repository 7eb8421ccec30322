package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) (*Appointment, error)
	// ListForDoctor returns non-cancelled appointments starting in [from, to).
	ListForDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*Appointment, error)
	// CountBetween counts non-cancelled appointments starting in [from, to).
	CountBetween(ctx context.Context, from, to time.Time) (int, error)
}
