package inventory

import (
	"context"

	"github.com/google/uuid"

	"github.com/pharmadesk/pharmadesk/pkg/datex"
)

// Repository defines the persistence interface for medicines, their
// batches and the stock ledger.
//
// Search understands "q" (name, sku, generic name), "category", "active",
// "low_stock" and "sort" (name, stock, price, created; "-" for descending).
type Repository interface {
	Create(ctx context.Context, m *Medicine) error
	GetByID(ctx context.Context, id uuid.UUID) (*Medicine, error)
	Update(ctx context.Context, m *Medicine) error
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Medicine, int, error)
	LowStock(ctx context.Context) ([]*Medicine, error)

	// ChangeStock adds delta to stock_qty atomically and returns the updated
	// medicine. It fails with ErrInsufficientStock instead of going negative.
	ChangeStock(ctx context.Context, id uuid.UUID, delta int) (*Medicine, error)

	AddBatch(ctx context.Context, b *Batch) error
	ListBatches(ctx context.Context, medicineID uuid.UUID) ([]*Batch, error)
	// LockBatches is ListBatches holding row locks until the transaction ends.
	LockBatches(ctx context.Context, medicineID uuid.UUID) ([]*Batch, error)
	SetBatchRemaining(ctx context.Context, batchID uuid.UUID, remaining int) error
	ExpiringBatches(ctx context.Context, before datex.Date) ([]*ExpiringBatch, error)

	AddMovement(ctx context.Context, mv *StockMovement) error
	ListMovements(ctx context.Context, medicineID uuid.UUID, limit, offset int) ([]*StockMovement, int, error)
}
