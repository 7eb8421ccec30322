package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pharmadesk/pharmadesk/pkg/datex"
)

// ErrStatusChanged reports that an invoice was in a refused status when a
// guarded change ran.
var ErrStatusChanged = errors.New("invoice status changed")

// InvoiceRepository persists invoices with their lines.
//
// Search understands "q" (number and notes), "status", "patient_id",
// "sale_id", "from" and "to" on issued_at and "sort" (issued, total, number).
type InvoiceRepository interface {
	// NextNumber reserves the next sequence value for day and formats it as
	// INV-YYYYMMDD-NNNN.
	NextNumber(ctx context.Context, day datex.Date) (string, error)
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	// GetBySale returns the invoice raised for a sale, or db.ErrNotFound.
	GetBySale(ctx context.Context, saleID uuid.UUID) (*Invoice, error)
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Invoice, int, error)
	// SetStatus refuses the move with ErrStatusChanged when the stored status
	// is one of unless.
	SetStatus(ctx context.Context, id uuid.UUID, status string, paidAt *time.Time, unless []string) (*Invoice, error)
}

// PlanRepository persists subscription plans.
//
// Search understands "q" (code and name), "interval", "active" and "sort"
// (price, name, created).
type PlanRepository interface {
	Create(ctx context.Context, p *Plan) error
	GetByID(ctx context.Context, id uuid.UUID) (*Plan, error)
	Update(ctx context.Context, p *Plan) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Plan, int, error)
}

// PaymentRepository stores checkout attempts. Search understands
// "plan_id", "provider" and "success".
type PaymentRepository interface {
	Create(ctx context.Context, p *Payment) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Payment, int, error)
}

func formatNumber(day datex.Date, seq int) string {
	return fmt.Sprintf("INV-%s-%04d", day.Format("20060102"), seq)
}
