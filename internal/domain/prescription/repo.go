package prescription

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create and Update write the medicines too. Callers run them in a
	// transaction.
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	Update(ctx context.Context, p *Prescription) error
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Prescription, int, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) (*Prescription, error)
}
