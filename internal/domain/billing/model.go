package billing

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pharmadesk/pharmadesk/internal/calc/pricing"
	"github.com/pharmadesk/pharmadesk/pkg/datex"
)

// Invoice is a numbered bill, either typed in or derived from a sale.
type Invoice struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	InvoiceNumber string          `db:"invoice_number" json:"invoice_number"`
	PatientID     *uuid.UUID      `db:"patient_id" json:"patient_id,omitempty"`
	SaleID        *uuid.UUID      `db:"sale_id" json:"sale_id,omitempty"`
	Lines         []*InvoiceLine  `json:"lines"`
	Subtotal      decimal.Decimal `db:"subtotal" json:"subtotal"`
	TotalDiscount decimal.Decimal `db:"total_discount" json:"total_discount"`
	GrandTotal    decimal.Decimal `db:"grand_total" json:"grand_total"`
	Status        string          `db:"status" json:"status"`
	IssuedAt      time.Time       `db:"issued_at" json:"issued_at"`
	DueDate       *datex.Date     `db:"due_date" json:"due_date,omitempty"`
	PaidAt        *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
	Notes         string          `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

type InvoiceLine struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	InvoiceID   uuid.UUID       `db:"invoice_id" json:"-"`
	Position    int             `db:"position" json:"position"`
	Description string          `db:"description" json:"description"`
	Quantity    int             `db:"quantity" json:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unit_price"`
	Discount    decimal.Decimal `db:"discount" json:"discount"`
	LineTotal   decimal.Decimal `db:"line_total" json:"line_total"`
}

func (l *InvoiceLine) line() pricing.Line {
	return pricing.Line{Quantity: l.Quantity, UnitPrice: l.UnitPrice, Discount: l.Discount}
}

// StatusUpdate is the body of PATCH /invoices/:id/status.
type StatusUpdate struct {
	Status string `json:"status"`
}

// InvoiceInput is the body of POST /invoices.
type InvoiceInput struct {
	PatientID *uuid.UUID  `json:"patient_id"`
	Status    string      `json:"status"`
	DueDate   *datex.Date `json:"due_date"`
	Notes     string      `json:"notes"`
	Lines     []LineInput `json:"lines"`
}

type LineInput struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
}

// PlanInput is the body of POST and PUT /plans. Active is ignored on create.
type PlanInput struct {
	Code     string          `json:"code"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
	Interval string          `json:"interval"`
	Features []string        `json:"features"`
	Active   *bool           `json:"active"`
}

// Plan is a subscription tier sold to clinics.
type Plan struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	Code      string          `db:"code" json:"code"`
	Name      string          `db:"name" json:"name"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Currency  string          `db:"currency" json:"currency"`
	Interval  string          `db:"interval" json:"interval"`
	Features  []string        `db:"features" json:"features"`
	Active    bool            `db:"active" json:"active"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// Payment records one checkout attempt, successful or not.
type Payment struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	PlanID        uuid.UUID       `db:"plan_id" json:"plan_id"`
	Provider      string          `db:"provider" json:"provider"`
	Method        string          `db:"method" json:"method"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Currency      string          `db:"currency" json:"currency"`
	Success       bool            `db:"success" json:"success"`
	TransactionID string          `db:"transaction_id" json:"transaction_id,omitempty"`
	ErrorCode     string          `db:"error_code" json:"error_code,omitempty"`
	Error         string          `db:"error" json:"error,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// CheckoutInput is the body of POST /plans/:id/checkout.
type CheckoutInput struct {
	Method string `json:"method"`
}

// PaymentResult is what a checkout reports back to the caller.
type PaymentResult struct {
	Success       bool      `json:"success"`
	PaymentID     uuid.UUID `json:"payment_id"`
	Provider      string    `json:"provider,omitempty"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Error         string    `json:"error,omitempty"`
	ErrorCode     string    `json:"error_code,omitempty"`
}

var invoiceCSVHeader = []string{
	"invoice_number", "status", "issued_at", "due_date", "paid_at",
	"subtotal", "total_discount", "grand_total", "lines", "patient_id", "sale_id",
}

func invoiceCSVRow(inv *Invoice) []string {
	paid := ""
	if inv.PaidAt != nil {
		paid = inv.PaidAt.UTC().Format(time.RFC3339)
	}
	due := ""
	if inv.DueDate != nil {
		due = inv.DueDate.String()
	}
	return []string{
		inv.InvoiceNumber,
		inv.Status,
		inv.IssuedAt.UTC().Format(time.RFC3339),
		due,
		paid,
		inv.Subtotal.StringFixed(2),
		inv.TotalDiscount.StringFixed(2),
		inv.GrandTotal.StringFixed(2),
		strconv.Itoa(len(inv.Lines)),
		optionalID(inv.PatientID),
		optionalID(inv.SaleID),
	}
}

func optionalID(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
