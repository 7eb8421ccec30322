package prescription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pharmadesk/pharmadesk/internal/calc/dosage"
	"github.com/pharmadesk/pharmadesk/internal/domain/directory"
	"github.com/pharmadesk/pharmadesk/internal/domain/inventory"
	"github.com/pharmadesk/pharmadesk/internal/domain/patient"
	"github.com/pharmadesk/pharmadesk/internal/platform/db"
	"github.com/pharmadesk/pharmadesk/internal/platform/validation"
	"github.com/pharmadesk/pharmadesk/pkg/codes"
	"github.com/pharmadesk/pharmadesk/pkg/datex"
)

type Doctors interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*directory.Doctor, error)
}

type Patients interface {
	Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

// Medicines links prescribed lines to the inventory catalog.
type Medicines interface {
	Find(ctx context.Context, id uuid.UUID) (*inventory.Medicine, error)
}

type Options struct {
	Patients  Patients
	Medicines Medicines
	// ClinicName heads printed prescriptions.
	ClinicName string
}

type Service struct {
	repo      Repository
	doctors   Doctors
	tx        db.Transactor
	patients  Patients
	medicines Medicines
	clinic    string
	now       func() time.Time
}

func NewService(repo Repository, doctors Doctors, tx db.Transactor, opts Options) *Service {
	if tx == nil {
		tx = db.NoopTransactor{}
	}
	if opts.ClinicName == "" {
		opts.ClinicName = "PharmaDesk"
	}
	return &Service{
		repo:      repo,
		doctors:   doctors,
		tx:        tx,
		patients:  opts.Patients,
		medicines: opts.Medicines,
		clinic:    opts.ClinicName,
		now:       time.Now,
	}
}

func (s *Service) Create(ctx context.Context, p *Prescription) error {
	if err := s.prepare(ctx, p); err != nil {
		return err
	}
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, p)
	})
	if err != nil {
		return err
	}
	log.Info().
		Str("prescription_id", p.ID.String()).
		Str("patient_id", p.PatientID.String()).
		Int("medicines", len(p.Medicines)).
		Msg("prescription issued")
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return s.repo.GetByID(ctx, id)
}

// Update replaces the prescription and its medicine lines. A zero
// issued_at keeps the original issue time.
func (s *Service) Update(ctx context.Context, p *Prescription) error {
	existing, err := s.repo.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	if p.IssuedAt.IsZero() {
		p.IssuedAt = existing.IssuedAt
	}
	if err := s.prepare(ctx, p); err != nil {
		return err
	}
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.repo.Update(ctx, p)
	})
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Prescription, int, error) {
	if err := validateParams(params); err != nil {
		return nil, 0, err
	}
	return s.repo.Search(ctx, params, limit, offset)
}

// ListByPatient returns a patient's prescriptions, newest first.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	return s.repo.Search(ctx, map[string]string{"patient_id": patientID.String()}, limit, offset)
}

func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status string) (*Prescription, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	errs := validation.Errors{}
	errs.Required("status", status)
	errs.OneOf("status", status, codes.PrescriptionStatuses)
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return s.repo.SetStatus(ctx, id, status)
}

// Calculate derives quantity and refill date for a single line issued
// today. Unreadable text is reported against its field.
func (s *Service) Calculate(in CalculateInput) (*Calculation, error) {
	errs := validation.Errors{}
	errs.Required("dose", in.Dose)
	errs.Required("frequency", in.Frequency)
	errs.Required("duration", in.Duration)
	if err := errs.Err(); err != nil {
		return nil, err
	}
	res, err := dosage.Calculate(in.Dose, in.Frequency, in.Duration, s.now())
	if err != nil {
		return nil, parseFailure(err, func(f string) string { return f })
	}
	return &Calculation{
		Dose:          res.Dose,
		Frequency:     res.Frequency,
		DurationDays:  res.DurationDays,
		TotalQuantity: res.TotalQuantity,
		RefillDate:    datex.Of(res.RefillDate),
	}, nil
}

// Print renders the prescription as plain text.
func (s *Service) Print(ctx context.Context, id uuid.UUID) (string, *Prescription, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", nil, err
	}
	hdr := PrintHeader{Clinic: s.clinic, Doctor: p.DoctorID.String(), Patient: p.PatientID.String()}
	if d, err := s.doctors.GetDoctor(ctx, p.DoctorID); err == nil {
		hdr.Doctor = d.Name
		hdr.Specialty = d.Specialty
	} else if !errors.Is(err, db.ErrNotFound) {
		return "", nil, fmt.Errorf("lookup doctor: %w", err)
	}
	if s.patients != nil {
		if pt, err := s.patients.Get(ctx, p.PatientID); err == nil {
			hdr.Patient = pt.FullName
			hdr.PatientCode = pt.PatientCode
		} else if !errors.Is(err, db.ErrNotFound) {
			return "", nil, fmt.Errorf("lookup patient: %w", err)
		}
	}
	return Render(p, hdr), p, nil
}

// prepare normalizes p, checks its references and derives quantities.
func (s *Service) prepare(ctx context.Context, p *Prescription) error {
	p.Diagnosis = strings.TrimSpace(p.Diagnosis)
	p.Advice = strings.TrimSpace(p.Advice)
	p.Status = strings.ToLower(strings.TrimSpace(p.Status))
	if p.Status == "" {
		p.Status = codes.PrescriptionActive
	}
	if p.IssuedAt.IsZero() {
		p.IssuedAt = s.now().UTC()
	}

	errs := validation.Errors{}
	errs.OneOf("status", p.Status, codes.PrescriptionStatuses)
	if err := s.checkPatient(ctx, errs, p.PatientID); err != nil {
		return err
	}
	if err := s.checkDoctor(ctx, errs, p.DoctorID); err != nil {
		return err
	}
	if len(p.Medicines) == 0 {
		errs.Add("medicines", "at least one medicine is required")
	}

	durations := make([]string, 0, len(p.Medicines))
	for i, m := range p.Medicines {
		if err := s.prepareMedicine(ctx, errs, i, m, p.IssuedAt); err != nil {
			return err
		}
		durations = append(durations, m.Duration)
	}
	if err := errs.Err(); err != nil {
		return err
	}

	refill, ok, err := dosage.NextRefillDate(durations, p.IssuedAt)
	if err != nil {
		return parseFailure(err, func(string) string { return "medicines" })
	}
	p.NextRefillDate = nil
	if ok {
		d := datex.Of(refill)
		p.NextRefillDate = &d
	}
	return nil
}

// prepareMedicine fills in catalog names and derived quantities. A blank
// duration is allowed and yields no quantity and no refill contribution.
func (s *Service) prepareMedicine(ctx context.Context, errs validation.Errors, i int, m *Medicine, issued time.Time) error {
	field := func(name string) string { return validation.Field("medicines", i, name) }
	m.Name = strings.TrimSpace(m.Name)
	m.Dose = strings.TrimSpace(m.Dose)
	m.Frequency = strings.TrimSpace(m.Frequency)
	m.Duration = strings.TrimSpace(m.Duration)
	m.Instructions = strings.TrimSpace(m.Instructions)
	m.TotalQuantity, m.DurationDays = 0, 0

	if m.MedicineID != nil && s.medicines != nil {
		med, err := s.medicines.Find(ctx, *m.MedicineID)
		switch {
		case errors.Is(err, db.ErrNotFound):
			errs.Add(field("medicine_id"), "medicine not found")
		case err != nil:
			return fmt.Errorf("lookup medicine: %w", err)
		case m.Name == "":
			m.Name = med.Name
		}
	}
	errs.Required(field("name"), m.Name)
	errs.Required(field("dose"), m.Dose)
	errs.Required(field("frequency"), m.Frequency)
	if m.Dose == "" || m.Frequency == "" {
		return nil
	}

	if m.Duration == "" {
		if _, err := dosage.ParseDose(m.Dose); err != nil {
			addParseError(errs, err, field)
		}
		if _, err := dosage.ParseFrequency(m.Frequency); err != nil {
			addParseError(errs, err, field)
		}
		return nil
	}
	res, err := dosage.Calculate(m.Dose, m.Frequency, m.Duration, issued)
	if err != nil {
		addParseError(errs, err, field)
		return nil
	}
	m.TotalQuantity = res.TotalQuantity
	m.DurationDays = res.DurationDays
	return nil
}

func (s *Service) checkPatient(ctx context.Context, errs validation.Errors, id uuid.UUID) error {
	if id == uuid.Nil {
		errs.Add("patient_id", "is required")
		return nil
	}
	if s.patients == nil {
		return nil
	}
	if _, err := s.patients.Get(ctx, id); err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("lookup patient: %w", err)
		}
		errs.Add("patient_id", "patient not found")
	}
	return nil
}

func (s *Service) checkDoctor(ctx context.Context, errs validation.Errors, id uuid.UUID) error {
	if id == uuid.Nil {
		errs.Add("doctor_id", "is required")
		return nil
	}
	if _, err := s.doctors.GetDoctor(ctx, id); err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("lookup doctor: %w", err)
		}
		errs.Add("doctor_id", "doctor not found")
	}
	return nil
}

func addParseError(errs validation.Errors, err error, field func(string) string) {
	var pe *dosage.ParseError
	if errors.As(err, &pe) {
		errs.Add(field(pe.Field), fmt.Sprintf("cannot read %q: %s", pe.Input, pe.Reason))
		return
	}
	errs.Add(field("dose"), err.Error())
}

// parseFailure turns a dosage error into validation errors, or passes
// other errors through.
func parseFailure(err error, field func(string) string) error {
	if !errors.Is(err, dosage.ErrUnparseable) {
		return err
	}
	errs := validation.Errors{}
	addParseError(errs, err, field)
	return errs
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
	for _, k := range []string{"patient_id", "doctor_id"} {
		if v := params[k]; v != "" {
			if _, err := uuid.Parse(v); err != nil {
				errs.Add(k, "must be a UUID")
			}
		}
	}
	errs.OneOf("status", params["status"], codes.PrescriptionStatuses)
	return errs.Err()
}
