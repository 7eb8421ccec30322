package prescription

import (
	"time"

	"github.com/google/uuid"

	"github.com/pharmadesk/pharmadesk/internal/calc/dosage"
	"github.com/pharmadesk/pharmadesk/pkg/datex"
)

// Prescription is a doctor's order for one patient. NextRefillDate follows
// the longest medicine duration.
type Prescription struct {
	ID             uuid.UUID   `db:"id" json:"id"`
	PatientID      uuid.UUID   `db:"patient_id" json:"patient_id"`
	DoctorID       uuid.UUID   `db:"doctor_id" json:"doctor_id"`
	AppointmentID  *uuid.UUID  `db:"appointment_id" json:"appointment_id,omitempty"`
	Diagnosis      string      `db:"diagnosis" json:"diagnosis,omitempty"`
	Advice         string      `db:"advice" json:"advice,omitempty"`
	Status         string      `db:"status" json:"status"`
	IssuedAt       time.Time   `db:"issued_at" json:"issued_at"`
	NextRefillDate *datex.Date `db:"next_refill_date" json:"next_refill_date,omitempty"`
	Medicines      []*Medicine `json:"medicines"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updated_at"`
}

// Medicine is one prescribed line. Dose, frequency and duration are free
// text; TotalQuantity and DurationDays are derived from them.
type Medicine struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PrescriptionID uuid.UUID  `db:"prescription_id" json:"-"`
	Position       int        `db:"position" json:"position"`
	MedicineID     *uuid.UUID `db:"medicine_id" json:"medicine_id,omitempty"`
	Name           string     `db:"name" json:"name"`
	Dose           string     `db:"dose" json:"dose"`
	Frequency      string     `db:"frequency" json:"frequency"`
	Duration       string     `db:"duration" json:"duration,omitempty"`
	Instructions   string     `db:"instructions" json:"instructions,omitempty"`
	TotalQuantity  int        `db:"total_quantity" json:"total_quantity"`
	DurationDays   int        `db:"duration_days" json:"duration_days"`
}

// StatusUpdate is the body of PATCH /prescriptions/:id/status.
type StatusUpdate struct {
	Status string `json:"status"`
}

// CalculateInput is the body of POST /prescriptions/calculate.
type CalculateInput struct {
	Dose      string `json:"dose"`
	Frequency string `json:"frequency"`
	Duration  string `json:"duration"`
}

// Calculation is the derived view of one medicine line.
type Calculation struct {
	Dose          float64          `json:"dose"`
	Frequency     dosage.Frequency `json:"frequency"`
	DurationDays  int              `json:"duration_days"`
	TotalQuantity int              `json:"total_quantity"`
	RefillDate    datex.Date       `json:"refill_date"`
}

func medicineCopy(m *Medicine) *Medicine {
	cp := *m
	if m.MedicineID != nil {
		id := *m.MedicineID
		cp.MedicineID = &id
	}
	return &cp
}
