package patient

import (
	"time"

	"github.com/google/uuid"

	"github.com/pharmadesk/pharmadesk/pkg/datex"
)

// Patient maps to the patients table.
type Patient struct {
	ID          uuid.UUID   `db:"id" json:"id"`
	PatientCode string      `db:"patient_code" json:"patient_code"`
	FullName    string      `db:"full_name" json:"full_name"`
	Phone       string      `db:"phone" json:"phone"`
	Email       string      `db:"email" json:"email,omitempty"`
	DateOfBirth *datex.Date `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Gender      string      `db:"gender" json:"gender,omitempty"`
	BloodGroup  string      `db:"blood_group" json:"blood_group,omitempty"`
	Address     string      `db:"address" json:"address,omitempty"`
	Notes       string      `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}

// Age returns whole years at the given day, or -1 without a birth date.
func (p *Patient) Age(on time.Time) int {
	if p.DateOfBirth == nil || p.DateOfBirth.IsZero() {
		return -1
	}
	dob := p.DateOfBirth.Time
	years := on.Year() - dob.Year()
	if on.Month() < dob.Month() || (on.Month() == dob.Month() && on.Day() < dob.Day()) {
		years--
	}
	return years
}

var csvHeader = []string{"patient_code", "full_name", "phone", "email", "date_of_birth", "gender", "blood_group", "address", "created_at"}

func (p *Patient) csvRow() []string {
	dob := ""
	if p.DateOfBirth != nil {
		dob = p.DateOfBirth.String()
	}
	return []string{
		p.PatientCode, p.FullName, p.Phone, p.Email, dob,
		p.Gender, p.BloodGroup, p.Address, p.CreatedAt.UTC().Format(time.RFC3339),
	}
}
