package inventory

import (
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pharmadesk/pharmadesk/pkg/datex"
)

// ErrInsufficientStock is returned when a write would take stock below zero.
var ErrInsufficientStock = errors.New("insufficient stock")

// Medicine maps to the medicines table.
type Medicine struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	SKU          string          `db:"sku" json:"sku"`
	Name         string          `db:"name" json:"name"`
	GenericName  string          `db:"generic_name" json:"generic_name,omitempty"`
	Category     string          `db:"category" json:"category,omitempty"`
	Unit         string          `db:"unit" json:"unit"`
	UnitPrice    decimal.Decimal `db:"unit_price" json:"unit_price"`
	StockQty     int             `db:"stock_qty" json:"stock_qty"`
	ReorderLevel int             `db:"reorder_level" json:"reorder_level"`
	Active       bool            `db:"active" json:"active"`
	Batches      []*Batch        `db:"-" json:"batches,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// IsLowStock reports stock at or below the reorder level.
func (m *Medicine) IsLowStock() bool {
	return m.StockQty <= m.ReorderLevel
}

// Batch maps to the medicine_batches table. 0 <= Remaining <= Quantity.
type Batch struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	MedicineID    uuid.UUID       `db:"medicine_id" json:"medicine_id"`
	BatchNumber   string          `db:"batch_number" json:"batch_number"`
	ExpiryDate    datex.Date      `db:"expiry_date" json:"expiry_date"`
	Quantity      int             `db:"quantity" json:"quantity"`
	Remaining     int             `db:"remaining" json:"remaining"`
	PurchasePrice decimal.Decimal `db:"purchase_price" json:"purchase_price"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// ExpiringBatch is a batch joined with its medicine for expiry reports.
type ExpiringBatch struct {
	Batch
	MedicineName string `json:"medicine_name"`
	SKU          string `json:"sku"`
	Expired      bool   `json:"expired"`
	DaysLeft     int    `json:"days_left"`
}

// StockMovement maps to the stock_movements table. Quantity is signed:
// negative for out-movements.
type StockMovement struct {
	ID         uuid.UUID `db:"id" json:"id"`
	MedicineID uuid.UUID `db:"medicine_id" json:"medicine_id"`
	Type       string    `db:"type" json:"type"`
	Quantity   int       `db:"quantity" json:"quantity"`
	Reason     string    `db:"reason" json:"reason,omitempty"`
	Reference  string    `db:"reference" json:"reference,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// StockAdjustment is a manual stock change. Quantity is always positive;
// Type decides the direction.
type StockAdjustment struct {
	Type     string `json:"type"`
	Quantity int    `json:"quantity"`
	Reason   string `json:"reason"`
}

// BatchChange is one batch's share of a stock change.
type BatchChange struct {
	BatchID   uuid.UUID
	Delta     int
	Remaining int
}

// byExpiry returns batches ordered first-expiry-first, ties by creation.
func byExpiry(batches []*Batch) []*Batch {
	sorted := make([]*Batch, len(batches))
	copy(sorted, batches)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].ExpiryDate.Equal(sorted[j].ExpiryDate) {
			return sorted[i].ExpiryDate.Before(sorted[j].ExpiryDate)
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	return sorted
}

// PlanFEFO draws qty units from batches, earliest expiry first. Units the
// batches cannot cover are returned as uncovered; stock recorded without a
// batch is drawn that way.
func PlanFEFO(batches []*Batch, qty int) (changes []BatchChange, uncovered int) {
	left := qty
	for _, b := range byExpiry(batches) {
		if left == 0 {
			break
		}
		if b.Remaining <= 0 {
			continue
		}
		take := min(b.Remaining, left)
		changes = append(changes, BatchChange{BatchID: b.ID, Delta: -take, Remaining: b.Remaining - take})
		left -= take
	}
	return changes, left
}

// PlanRestore returns qty units to batches with room, earliest expiry first,
// never lifting a batch above its original quantity.
func PlanRestore(batches []*Batch, qty int) (changes []BatchChange, uncovered int) {
	left := qty
	for _, b := range byExpiry(batches) {
		if left == 0 {
			break
		}
		room := b.Quantity - b.Remaining
		if room <= 0 {
			continue
		}
		put := min(room, left)
		changes = append(changes, BatchChange{BatchID: b.ID, Delta: put, Remaining: b.Remaining + put})
		left -= put
	}
	return changes, left
}

var csvHeader = []string{"sku", "name", "generic_name", "category", "unit", "unit_price", "stock_qty", "reorder_level", "active"}

func (m *Medicine) csvRow() []string {
	return []string{
		m.SKU, m.Name, m.GenericName, m.Category, m.Unit,
		m.UnitPrice.StringFixed(2), strconv.Itoa(m.StockQty), strconv.Itoa(m.ReorderLevel),
		strconv.FormatBool(m.Active),
	}
}
