package codes

// Value sets shared across PharmaDesk domains.

// Gender values for patients.
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

// AppointmentStatus values. Any value may be set directly.
const (
	AppointmentScheduled = "scheduled"
	AppointmentConfirmed = "confirmed"
	AppointmentCancelled = "cancelled"
	AppointmentCompleted = "completed"
)

// PrescriptionStatus values.
const (
	PrescriptionActive    = "active"
	PrescriptionCompleted = "completed"
	PrescriptionCancelled = "cancelled"
)

// SaleStatus values.
const (
	SaleCompleted = "completed"
	SaleRefunded  = "refunded"
	SaleVoid      = "void"
)

// InvoiceStatus values.
const (
	InvoiceDraft     = "draft"
	InvoicePending   = "pending"
	InvoicePaid      = "paid"
	InvoiceOverdue   = "overdue"
	InvoiceCancelled = "cancelled"
)

// Stock movement types. Out-movements reduce stock.
const (
	MovementPurchase      = "purchase"
	MovementSale          = "sale"
	MovementAdjustmentIn  = "adjustment_in"
	MovementAdjustmentOut = "adjustment_out"
	MovementExpired       = "expired"
	MovementReturn        = "return"
)

// Payment methods accepted at the POS and at checkout.
const (
	PayCash       = "cash"
	PayCard       = "card"
	PayBkash      = "bkash"
	PayNagad      = "nagad"
	PayRocket     = "rocket"
	PaySSLCommerz = "sslcommerz"
	PayStripe     = "stripe"
)

// Plan billing intervals.
const (
	IntervalMonthly = "monthly"
	IntervalYearly  = "yearly"
)

var (
	Genders              = set(GenderMale, GenderFemale, GenderOther)
	AppointmentStatuses  = set(AppointmentScheduled, AppointmentConfirmed, AppointmentCancelled, AppointmentCompleted)
	PrescriptionStatuses = set(PrescriptionActive, PrescriptionCompleted, PrescriptionCancelled)
	SaleStatuses         = set(SaleCompleted, SaleRefunded, SaleVoid)
	InvoiceStatuses      = set(InvoiceDraft, InvoicePending, InvoicePaid, InvoiceOverdue, InvoiceCancelled)
	MovementTypes        = set(MovementPurchase, MovementSale, MovementAdjustmentIn, MovementAdjustmentOut, MovementExpired, MovementReturn)
	SaleMethods          = set(PayCash, PayCard, PayBkash, PayNagad, PayRocket)
	Intervals            = set(IntervalMonthly, IntervalYearly)
	BloodGroups          = set("A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-")
)

// IsOutMovement reports whether a movement type reduces stock.
func IsOutMovement(t string) bool {
	switch t {
	case MovementSale, MovementAdjustmentOut, MovementExpired:
		return true
	}
	return false
}

func set(values ...string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}
