package directory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pharmadesk/pharmadesk/pkg/datex"
)

// Default working hours for doctors without a schedule.
const (
	DefaultWorkStart   = "09:00"
	DefaultWorkEnd     = "17:00"
	DefaultSlotMinutes = 30
)

const clockLayout = "15:04"

// Clinic maps to the clinics table.
type Clinic struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Address   string    `db:"address" json:"address,omitempty"`
	Phone     string    `db:"phone" json:"phone,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Doctor maps to the doctors table. WorkStart and WorkEnd are "HH:MM".
type Doctor struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	Name            string          `db:"name" json:"name"`
	Specialty       string          `db:"specialty" json:"specialty,omitempty"`
	Phone           string          `db:"phone" json:"phone,omitempty"`
	Email           string          `db:"email" json:"email,omitempty"`
	ClinicID        *uuid.UUID      `db:"clinic_id" json:"clinic_id,omitempty"`
	ConsultationFee decimal.Decimal `db:"consultation_fee" json:"consultation_fee"`
	WorkStart       string          `db:"work_start" json:"work_start"`
	WorkEnd         string          `db:"work_end" json:"work_end"`
	SlotMinutes     int             `db:"slot_minutes" json:"slot_minutes"`
	Active          bool            `db:"active" json:"active"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// Shift returns the doctor's working window on day in loc, falling back to
// the default hours for blank fields.
func (d *Doctor) Shift(day datex.Date, loc *time.Location) (start, end time.Time, slot time.Duration, err error) {
	ws, we, mins := d.WorkStart, d.WorkEnd, d.SlotMinutes
	if ws == "" {
		ws = DefaultWorkStart
	}
	if we == "" {
		we = DefaultWorkEnd
	}
	if mins <= 0 {
		mins = DefaultSlotMinutes
	}
	s, err := time.Parse(clockLayout, ws)
	if err != nil {
		return start, end, 0, fmt.Errorf("work_start %q: %w", ws, err)
	}
	e, err := time.Parse(clockLayout, we)
	if err != nil {
		return start, end, 0, fmt.Errorf("work_end %q: %w", we, err)
	}
	y, m, dd := day.Date()
	start = time.Date(y, m, dd, s.Hour(), s.Minute(), 0, 0, loc)
	end = time.Date(y, m, dd, e.Hour(), e.Minute(), 0, 0, loc)
	return start, end, time.Duration(mins) * time.Minute, nil
}
