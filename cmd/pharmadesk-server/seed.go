package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pharmadesk/pharmadesk/internal/domain/billing"
	"github.com/pharmadesk/pharmadesk/internal/domain/directory"
	"github.com/pharmadesk/pharmadesk/internal/domain/inventory"
	"github.com/pharmadesk/pharmadesk/internal/domain/patient"
	"github.com/pharmadesk/pharmadesk/internal/platform/db"
	"github.com/pharmadesk/pharmadesk/internal/seed"
)

type seedReport struct {
	Clinics   int
	Doctors   int
	Patients  int
	Medicines int
	Plans     int
	Skipped   int
}

func (r seedReport) String() string {
	return fmt.Sprintf("seeded %d clinic(s), %d doctor(s), %d patient(s), %d medicine(s), %d plan(s); %d already present",
		r.Clinics, r.Doctors, r.Patients, r.Medicines, r.Plans, r.Skipped)
}

// applySeed loads the sample catalog through the services so every record
// passes normal validation. Medicines and plans already present (same SKU or
// code) are skipped; clinics, doctors and patients are only added to an
// empty store. medicines replaces the built-in list when not empty.
func applySeed(ctx context.Context, a *app, medicines []seed.Medicine) (seedReport, error) {
	var r seedReport

	if err := seedDirectory(ctx, a, &r); err != nil {
		return r, err
	}
	if err := seedPatients(ctx, a, &r); err != nil {
		return r, err
	}

	if len(medicines) == 0 {
		medicines = seed.Medicines()
	}
	for _, m := range medicines {
		med := &inventory.Medicine{
			SKU:          m.SKU,
			Name:         m.Name,
			GenericName:  m.GenericName,
			Category:     m.Category,
			Unit:         m.Unit,
			UnitPrice:    m.UnitPrice,
			StockQty:     m.Stock,
			ReorderLevel: m.ReorderLevel,
			Active:       true,
		}
		switch err := a.inventory.Create(ctx, med); {
		case err == nil:
			r.Medicines++
		case errors.Is(err, db.ErrConflict):
			r.Skipped++
		default:
			return r, fmt.Errorf("seed medicine %s: %w", m.SKU, err)
		}
	}

	for _, p := range seed.Plans() {
		_, err := a.billing.CreatePlan(ctx, billing.PlanInput{
			Code:     p.Code,
			Name:     p.Name,
			Price:    p.Price,
			Interval: p.Interval,
			Features: p.Features,
		})
		switch {
		case err == nil:
			r.Plans++
		case errors.Is(err, db.ErrConflict):
			r.Skipped++
		default:
			return r, fmt.Errorf("seed plan %s: %w", p.Code, err)
		}
	}

	log.Info().
		Str("clinic", db.ClinicFromContext(ctx)).
		Int("medicines", r.Medicines).
		Int("patients", r.Patients).
		Int("skipped", r.Skipped).
		Msg("seed applied")
	return r, nil
}

func seedDirectory(ctx context.Context, a *app, r *seedReport) error {
	_, total, err := a.directory.SearchClinics(ctx, nil, 1, 0)
	if err != nil {
		return fmt.Errorf("seed clinics: %w", err)
	}
	if total > 0 {
		r.Skipped += len(seed.Clinics()) + len(seed.Doctors())
		return nil
	}

	ids := make([]uuid.UUID, 0, len(seed.Clinics()))
	for _, c := range seed.Clinics() {
		clinic := &directory.Clinic{Name: c.Name, Address: c.Address, Phone: c.Phone, Active: true}
		if err := a.directory.CreateClinic(ctx, clinic); err != nil {
			return fmt.Errorf("seed clinic %s: %w", c.Name, err)
		}
		ids = append(ids, clinic.ID)
		r.Clinics++
	}

	for _, d := range seed.Doctors() {
		clinicID := ids[d.Clinic]
		doc := &directory.Doctor{
			Name:            d.Name,
			Specialty:       d.Specialty,
			Phone:           d.Phone,
			ClinicID:        &clinicID,
			ConsultationFee: d.Fee,
			WorkStart:       d.WorkStart,
			WorkEnd:         d.WorkEnd,
			SlotMinutes:     d.SlotMinutes,
			Active:          true,
		}
		if err := a.directory.CreateDoctor(ctx, doc); err != nil {
			return fmt.Errorf("seed doctor %s: %w", d.Name, err)
		}
		r.Doctors++
	}
	return nil
}

func seedPatients(ctx context.Context, a *app, r *seedReport) error {
	n, err := a.patients.Count(ctx)
	if err != nil {
		return fmt.Errorf("seed patients: %w", err)
	}
	if n > 0 {
		r.Skipped += len(seed.Patients())
		return nil
	}
	for _, p := range seed.Patients() {
		pt := &patient.Patient{
			FullName:   p.FullName,
			Phone:      p.Phone,
			Gender:     p.Gender,
			BloodGroup: p.BloodGroup,
			Address:    p.Address,
		}
		if err := a.patients.Create(ctx, pt); err != nil {
			return fmt.Errorf("seed patient %s: %w", p.FullName, err)
		}
		r.Patients++
	}
	return nil
}
