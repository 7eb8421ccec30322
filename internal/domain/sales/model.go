package sales

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pharmadesk/pharmadesk/internal/calc/pricing"
)

// Sale maps to the sales table.
type Sale struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	PatientID      *uuid.UUID      `db:"patient_id" json:"patient_id,omitempty"`
	PaymentMethod  string          `db:"payment_method" json:"payment_method"`
	Items          []*SaleItem     `db:"-" json:"items"`
	Subtotal       decimal.Decimal `db:"subtotal" json:"subtotal"`
	TotalDiscount  decimal.Decimal `db:"total_discount" json:"total_discount"`
	GrandTotal     decimal.Decimal `db:"grand_total" json:"grand_total"`
	GlobalDiscount decimal.Decimal `db:"global_discount" json:"global_discount"`
	Payable        decimal.Decimal `db:"payable" json:"payable"`
	Status         string          `db:"status" json:"status"`
	Notes          string          `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// SaleItem maps to the sale_items table.
type SaleItem struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	SaleID     uuid.UUID       `db:"sale_id" json:"sale_id"`
	Position   int             `db:"position" json:"position"`
	MedicineID uuid.UUID       `db:"medicine_id" json:"medicine_id"`
	Name       string          `db:"name" json:"name"`
	Quantity   int             `db:"quantity" json:"quantity"`
	UnitPrice  decimal.Decimal `db:"unit_price" json:"unit_price"`
	Discount   decimal.Decimal `db:"discount" json:"discount"`
	LineTotal  decimal.Decimal `db:"line_total" json:"line_total"`
}

func (i *SaleItem) line() pricing.Line {
	return pricing.Line{Quantity: i.Quantity, UnitPrice: i.UnitPrice, Discount: i.Discount}
}

// SaleInput is the POS cart submitted by the client.
type SaleInput struct {
	PatientID      *uuid.UUID      `json:"patient_id"`
	PaymentMethod  string          `json:"payment_method"`
	GlobalDiscount decimal.Decimal `json:"global_discount"`
	Notes          string          `json:"notes"`
	Items          []ItemInput     `json:"items"`
}

// ItemInput is one cart line. Name and UnitPrice default to the medicine's
// catalog values when omitted.
type ItemInput struct {
	MedicineID uuid.UUID        `json:"medicine_id"`
	Name       string           `json:"name"`
	Quantity   int              `json:"quantity"`
	UnitPrice  *decimal.Decimal `json:"unit_price"`
	Discount   decimal.Decimal  `json:"discount"`
}

// VoidInput selects the final status of a reversed sale.
type VoidInput struct {
	Refund bool   `json:"refund"`
	Reason string `json:"reason"`
}

// DaySummary is the dashboard view of completed sales over a period.
type DaySummary struct {
	Count   int             `json:"count"`
	Revenue decimal.Decimal `json:"revenue"`
}

var csvHeader = []string{
	"id", "created_at", "patient_id", "payment_method", "items",
	"subtotal", "total_discount", "grand_total", "global_discount", "payable", "status",
}

func (s *Sale) csvRow() []string {
	patient := ""
	if s.PatientID != nil {
		patient = s.PatientID.String()
	}
	return []string{
		s.ID.String(), s.CreatedAt.UTC().Format(time.RFC3339), patient, s.PaymentMethod,
		strconv.Itoa(len(s.Items)),
		s.Subtotal.StringFixed(2), s.TotalDiscount.StringFixed(2), s.GrandTotal.StringFixed(2),
		s.GlobalDiscount.StringFixed(2), s.Payable.StringFixed(2), s.Status,
	}
}
