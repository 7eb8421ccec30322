package scheduling

import (
	"time"

	"github.com/google/uuid"

	"github.com/pharmadesk/pharmadesk/pkg/codes"
)

// Appointment is a patient visit booked with a doctor.
type Appointment struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	PatientID       uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID        uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	ClinicID        *uuid.UUID `db:"clinic_id" json:"clinic_id,omitempty"`
	ScheduledAt     time.Time  `db:"scheduled_at" json:"scheduled_at"`
	DurationMinutes int        `db:"duration_minutes" json:"duration_minutes"`
	Reason          string     `db:"reason" json:"reason,omitempty"`
	Notes           string     `db:"notes" json:"notes,omitempty"`
	Status          string     `db:"status" json:"status"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// StatusUpdate is the body of PATCH /appointments/:id/status.
type StatusUpdate struct {
	Status string `json:"status"`
}

// Slot is one cell of a doctor's daily grid.
type Slot struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
}

// Availability is the response of GET /doctors/:id/availability.
type Availability struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	Date     string    `json:"date"`
	Slots    []Slot    `json:"slots"`
	Free     int       `json:"free"`
}

// BuildSlots cuts [start, end) into slot-sized cells. A trailing partial
// cell is dropped. A cell is unavailable when a non-cancelled appointment
// starts inside it.
func BuildSlots(start, end time.Time, slot time.Duration, booked []*Appointment) []Slot {
	if slot <= 0 || !end.After(start) {
		return []Slot{}
	}
	slots := make([]Slot, 0, int(end.Sub(start)/slot))
	for t := start; !t.Add(slot).After(end); t = t.Add(slot) {
		slots = append(slots, Slot{Start: t, End: t.Add(slot), Available: true})
	}
	for _, a := range booked {
		if a.Status == codes.AppointmentCancelled || a.ScheduledAt.Before(start) {
			continue
		}
		i := int(a.ScheduledAt.Sub(start) / slot)
		if i < len(slots) {
			slots[i].Available = false
		}
	}
	return slots
}

func countFree(slots []Slot) int {
	n := 0
	for _, s := range slots {
		if s.Available {
			n++
		}
	}
	return n
}
