package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pharmadesk/pharmadesk/internal/domain/directory"
	"github.com/pharmadesk/pharmadesk/internal/domain/patient"
	"github.com/pharmadesk/pharmadesk/internal/platform/cache"
	"github.com/pharmadesk/pharmadesk/internal/platform/db"
	"github.com/pharmadesk/pharmadesk/internal/platform/validation"
	"github.com/pharmadesk/pharmadesk/internal/platform/websocket"
	"github.com/pharmadesk/pharmadesk/pkg/codes"
	"github.com/pharmadesk/pharmadesk/pkg/datex"
)

const (
	availabilityTTL = time.Minute
	minDuration     = 5
	maxDuration     = 480
)

// Doctors resolves the doctor whose hours shape the slot grid.
type Doctors interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*directory.Doctor, error)
}

// Patients checks that a booking refers to a known patient.
type Patients interface {
	Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type Options struct {
	Patients Patients
	Events   websocket.Publisher
	// Cache holds computed availability grids. Nil disables caching.
	Cache cache.Store
	// Location interprets doctors' working hours. Defaults to UTC.
	Location *time.Location
}

type Service struct {
	repo     Repository
	doctors  Doctors
	patients Patients
	events   websocket.Publisher
	cache    cache.Store
	loc      *time.Location
}

func NewService(repo Repository, doctors Doctors, opts Options) *Service {
	if opts.Events == nil {
		opts.Events = websocket.Discard{}
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Service{
		repo:     repo,
		doctors:  doctors,
		patients: opts.Patients,
		events:   opts.Events,
		cache:    opts.Cache,
		loc:      opts.Location,
	}
}

func (s *Service) Create(ctx context.Context, a *Appointment) error {
	if err := s.prepare(ctx, a); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return err
	}
	s.changed(ctx, "created", a)
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// Update replaces the appointment. Both the old and the new day are
// invalidated when the visit moves.
func (s *Service) Update(ctx context.Context, a *Appointment) error {
	old, err := s.repo.GetByID(ctx, a.ID)
	if err != nil {
		return err
	}
	if err := s.prepare(ctx, a); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return err
	}
	s.invalidate(ctx, old)
	s.changed(ctx, "updated", a)
	return nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.changed(ctx, "deleted", a)
	return nil
}

func (s *Service) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error) {
	if err := validateParams(params); err != nil {
		return nil, 0, err
	}
	return s.repo.Search(ctx, params, limit, offset)
}

// SetStatus moves an appointment to any known status. Transitions are not
// restricted.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status string) (*Appointment, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	errs := validation.Errors{}
	errs.Required("status", status)
	errs.OneOf("status", status, codes.AppointmentStatuses)
	if err := errs.Err(); err != nil {
		return nil, err
	}
	a, err := s.repo.SetStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	s.changed(ctx, "status", a)
	return a, nil
}

// Availability returns the doctor's slot grid for day. Grids are cached per
// doctor and day for a minute and dropped whenever an appointment on that
// day changes.
func (s *Service) Availability(ctx context.Context, doctorID uuid.UUID, day datex.Date) ([]Slot, error) {
	key := s.availabilityKey(ctx, doctorID, day)
	if s.cache != nil {
		var slots []Slot
		hit, err := cache.GetJSON(ctx, s.cache, key, &slots)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("read availability cache")
		}
		if hit {
			return slots, nil
		}
	}

	doc, err := s.doctors.GetDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	start, end, slot, err := doc.Shift(day, s.loc)
	if err != nil {
		return nil, fmt.Errorf("doctor %s working hours: %w", doctorID, err)
	}
	booked, err := s.repo.ListForDoctor(ctx, doctorID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	slots := BuildSlots(start, end, slot, booked)

	if s.cache != nil {
		if err := cache.SetJSON(ctx, s.cache, key, slots, availabilityTTL); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("write availability cache")
		}
	}
	return slots, nil
}

// CountOn counts the non-cancelled appointments of a calendar day.
func (s *Service) CountOn(ctx context.Context, day datex.Date) (int, error) {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, s.loc)
	return s.repo.CountBetween(ctx, from, from.AddDate(0, 0, 1))
}

// Today returns the calendar day in the service location.
func (s *Service) Today() datex.Date {
	return datex.Of(time.Now().In(s.loc))
}

// prepare normalizes a and validates its references.
func (s *Service) prepare(ctx context.Context, a *Appointment) error {
	a.Reason = strings.TrimSpace(a.Reason)
	a.Notes = strings.TrimSpace(a.Notes)
	a.Status = strings.ToLower(strings.TrimSpace(a.Status))
	if a.Status == "" {
		a.Status = codes.AppointmentScheduled
	}

	errs := validation.Errors{}
	errs.OneOf("status", a.Status, codes.AppointmentStatuses)
	if a.ScheduledAt.IsZero() {
		errs.Add("scheduled_at", "is required")
	}
	if a.PatientID == uuid.Nil {
		errs.Add("patient_id", "is required")
	} else if s.patients != nil {
		if _, err := s.patients.Get(ctx, a.PatientID); err != nil {
			if !errors.Is(err, db.ErrNotFound) {
				return fmt.Errorf("lookup patient: %w", err)
			}
			errs.Add("patient_id", "patient not found")
		}
	}

	var doc *directory.Doctor
	if a.DoctorID == uuid.Nil {
		errs.Add("doctor_id", "is required")
	} else {
		d, err := s.doctors.GetDoctor(ctx, a.DoctorID)
		switch {
		case errors.Is(err, db.ErrNotFound):
			errs.Add("doctor_id", "doctor not found")
		case err != nil:
			return fmt.Errorf("lookup doctor: %w", err)
		default:
			doc = d
		}
	}

	if a.DurationMinutes == 0 {
		a.DurationMinutes = directory.DefaultSlotMinutes
		if doc != nil && doc.SlotMinutes > 0 {
			a.DurationMinutes = doc.SlotMinutes
		}
	}
	if a.DurationMinutes < minDuration || a.DurationMinutes > maxDuration {
		errs.Addf("duration_minutes", "must be between %d and %d", minDuration, maxDuration)
	}
	if a.ClinicID == nil && doc != nil && doc.ClinicID != nil {
		id := *doc.ClinicID
		a.ClinicID = &id
	}
	return errs.Err()
}

func (s *Service) availabilityKey(ctx context.Context, doctorID uuid.UUID, day datex.Date) string {
	return cache.Key("availability", db.ClinicFromContext(ctx), doctorID.String(), day.String())
}

func (s *Service) invalidate(ctx context.Context, a *Appointment) {
	if s.cache == nil {
		return
	}
	key := s.availabilityKey(ctx, a.DoctorID, datex.Of(a.ScheduledAt.In(s.loc)))
	if err := s.cache.Delete(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("invalidate availability")
	}
}

// changed drops the cached grid for a's day and notifies subscribers.
func (s *Service) changed(ctx context.Context, action string, a *Appointment) {
	s.invalidate(ctx, a)

	ev, err := websocket.NewEvent(websocket.TopicAppointmentUpdated, db.ClinicFromContext(ctx), map[string]interface{}{
		"action":         action,
		"appointment_id": a.ID,
		"doctor_id":      a.DoctorID,
		"patient_id":     a.PatientID,
		"scheduled_at":   a.ScheduledAt,
		"status":         a.Status,
	})
	if err == nil {
		err = s.events.Publish(ctx, ev)
	}
	if err != nil {
		log.Warn().Err(err).Str("appointment_id", a.ID.String()).Msg("publish appointment event")
	}
}

func validateParams(params map[string]string) error {
	errs := validation.Errors{}
	for _, k := range []string{"from", "to"} {
		if v := params[k]; v != "" {
			if _, err := datex.Parse(v); err != nil {
				errs.Add(k, "must be YYYY-MM-DD")
			}
		}
	}
	for _, k := range []string{"patient_id", "doctor_id", "clinic_id"} {
		if v := params[k]; v != "" {
			if _, err := uuid.Parse(v); err != nil {
				errs.Add(k, "must be a UUID")
			}
		}
	}
	errs.OneOf("status", params["status"], codes.AppointmentStatuses)
	return errs.Err()
}
