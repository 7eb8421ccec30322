package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pharmadesk/pharmadesk/internal/platform/db"
	"github.com/pharmadesk/pharmadesk/internal/platform/validation"
)

const (
	minSlotMinutes = 5
	maxSlotMinutes = 240
)

// Service manages the doctor and clinic directory.
type Service struct {
	doctors DoctorRepository
	clinics ClinicRepository
}

func NewService(doctors DoctorRepository, clinics ClinicRepository) *Service {
	return &Service{doctors: doctors, clinics: clinics}
}

// -- Doctor --

// CreateDoctor adds an active doctor.
func (s *Service) CreateDoctor(ctx context.Context, d *Doctor) error {
	normalizeDoctor(d)
	d.Active = true
	if err := s.validateDoctor(ctx, d); err != nil {
		return err
	}
	return s.doctors.Create(ctx, d)
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

// UpdateDoctor replaces the doctor. A nil active keeps the stored flag.
func (s *Service) UpdateDoctor(ctx context.Context, d *Doctor, active *bool) error {
	normalizeDoctor(d)
	if err := s.validateDoctor(ctx, d); err != nil {
		return err
	}
	if active != nil {
		d.Active = *active
	} else {
		cur, err := s.doctors.GetByID(ctx, d.ID)
		if err != nil {
			return err
		}
		d.Active = cur.Active
	}
	return s.doctors.Update(ctx, d)
}

func (s *Service) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	return s.doctors.Delete(ctx, id)
}

func (s *Service) SearchDoctors(ctx context.Context, params map[string]string, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.Search(ctx, params, limit, offset)
}

func (s *Service) validateDoctor(ctx context.Context, d *Doctor) error {
	errs := validation.Errors{}
	errs.Required("name", d.Name)
	errs.Phone("phone", d.Phone)
	errs.Email("email", d.Email)
	if d.ConsultationFee.IsNegative() {
		errs.Add("consultation_fee", "must not be negative")
	}
	start, err1 := time.Parse(clockLayout, d.WorkStart)
	if err1 != nil {
		errs.Add("work_start", "must be HH:MM")
	}
	end, err2 := time.Parse(clockLayout, d.WorkEnd)
	if err2 != nil {
		errs.Add("work_end", "must be HH:MM")
	}
	if err1 == nil && err2 == nil && !end.After(start) {
		errs.Add("work_end", "must be after work_start")
	}
	if d.SlotMinutes < minSlotMinutes || d.SlotMinutes > maxSlotMinutes {
		errs.Addf("slot_minutes", "must be between %d and %d", minSlotMinutes, maxSlotMinutes)
	}
	if d.ClinicID != nil {
		if _, err := s.clinics.GetByID(ctx, *d.ClinicID); err != nil {
			if !errors.Is(err, db.ErrNotFound) {
				return fmt.Errorf("lookup clinic: %w", err)
			}
			errs.Add("clinic_id", "clinic not found")
		}
	}
	return errs.Err()
}

func normalizeDoctor(d *Doctor) {
	d.Name = strings.TrimSpace(d.Name)
	d.Specialty = strings.TrimSpace(d.Specialty)
	d.Phone = strings.TrimSpace(d.Phone)
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
	d.WorkStart = strings.TrimSpace(d.WorkStart)
	d.WorkEnd = strings.TrimSpace(d.WorkEnd)
	if d.WorkStart == "" {
		d.WorkStart = DefaultWorkStart
	}
	if d.WorkEnd == "" {
		d.WorkEnd = DefaultWorkEnd
	}
	if d.SlotMinutes == 0 {
		d.SlotMinutes = DefaultSlotMinutes
	}
}

// -- Clinic --

func (s *Service) CreateClinic(ctx context.Context, c *Clinic) error {
	normalizeClinic(c)
	c.Active = true
	if err := validateClinic(c); err != nil {
		return err
	}
	return s.clinics.Create(ctx, c)
}

func (s *Service) GetClinic(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	return s.clinics.GetByID(ctx, id)
}

func (s *Service) UpdateClinic(ctx context.Context, c *Clinic, active *bool) error {
	normalizeClinic(c)
	if err := validateClinic(c); err != nil {
		return err
	}
	if active != nil {
		c.Active = *active
	} else {
		cur, err := s.clinics.GetByID(ctx, c.ID)
		if err != nil {
			return err
		}
		c.Active = cur.Active
	}
	return s.clinics.Update(ctx, c)
}

func (s *Service) DeleteClinic(ctx context.Context, id uuid.UUID) error {
	return s.clinics.Delete(ctx, id)
}

func (s *Service) SearchClinics(ctx context.Context, params map[string]string, limit, offset int) ([]*Clinic, int, error) {
	return s.clinics.Search(ctx, params, limit, offset)
}

func validateClinic(c *Clinic) error {
	errs := validation.Errors{}
	errs.Required("name", c.Name)
	errs.Phone("phone", c.Phone)
	return errs.Err()
}

func normalizeClinic(c *Clinic) {
	c.Name = strings.TrimSpace(c.Name)
	c.Address = strings.TrimSpace(c.Address)
	c.Phone = strings.TrimSpace(c.Phone)
}
