package sales

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrStatusChanged reports a lost race on a status transition.
var ErrStatusChanged = errors.New("sale status changed")

// Repository persists sales together with their items.
//
// Search understands "patient_id", "payment_method", "status", "from" and
// "to" (YYYY-MM-DD, inclusive) and "sort" (created, payable).
type Repository interface {
	Create(ctx context.Context, s *Sale) error
	GetByID(ctx context.Context, id uuid.UUID) (*Sale, error)
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Sale, int, error)
	// Transition moves the sale from status from to status to. It returns
	// ErrStatusChanged when the sale exists but is no longer in from.
	Transition(ctx context.Context, id uuid.UUID, from, to string) error
	// Summary totals completed sales created in [from, to).
	Summary(ctx context.Context, from, to time.Time) (DaySummary, error)
}
