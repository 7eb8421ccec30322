package prescription

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pharmadesk/pharmadesk/internal/platform/db"
)

type repoPG struct {
	pool db.Querier
}

func NewRepo(pool db.Querier) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const prescriptionColumns = `id, patient_id, doctor_id, appointment_id, diagnosis, advice, status,
	issued_at, next_refill_date, created_at, updated_at`

const medicineColumns = `id, prescription_id, position, medicine_id, name, dose, frequency,
	duration, instructions, total_quantity, duration_days`

var searchFilters = map[string]db.Filter{
	"q":          {Type: db.FilterText, Columns: []string{"diagnosis", "advice"}},
	"patient_id": {Type: db.FilterExact, Columns: []string{"patient_id"}},
	"doctor_id":  {Type: db.FilterExact, Columns: []string{"doctor_id"}},
	"status":     {Type: db.FilterExact, Columns: []string{"status"}},
	"from":       {Type: db.FilterDateFrom, Columns: []string{"issued_at"}},
	"to":         {Type: db.FilterDateTo, Columns: []string{"issued_at"}},
}

var sortColumns = map[string]string{
	"issued":  "issued_at",
	"refill":  "next_refill_date",
	"created": "created_at",
}

func (r *repoPG) Create(ctx context.Context, p *Prescription) error {
	p.ID = uuid.New()
	q := r.conn(ctx)
	err := q.QueryRow(ctx, `
		INSERT INTO prescriptions (
			id, patient_id, doctor_id, appointment_id, diagnosis, advice, status,
			issued_at, next_refill_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		p.ID, p.PatientID, p.DoctorID, p.AppointmentID, p.Diagnosis, p.Advice, p.Status,
		p.IssuedAt, p.NextRefillDate,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return db.MapError(err)
	}
	return insertMedicines(ctx, q, p)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := scanPrescription(r.conn(ctx).QueryRow(ctx,
		`SELECT `+prescriptionColumns+` FROM prescriptions WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadMedicines(ctx, []*Prescription{p}); err != nil {
		return nil, err
	}
	return p, nil
}

// Update rewrites the header and replaces every medicine line.
func (r *repoPG) Update(ctx context.Context, p *Prescription) error {
	q := r.conn(ctx)
	err := q.QueryRow(ctx, `
		UPDATE prescriptions SET
			patient_id = $2, doctor_id = $3, appointment_id = $4, diagnosis = $5,
			advice = $6, status = $7, issued_at = $8, next_refill_date = $9,
			updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		p.ID, p.PatientID, p.DoctorID, p.AppointmentID, p.Diagnosis,
		p.Advice, p.Status, p.IssuedAt, p.NextRefillDate,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return db.MapError(err)
	}
	if _, err := q.Exec(ctx, `DELETE FROM prescription_medicines WHERE prescription_id = $1`, p.ID); err != nil {
		return db.MapError(err)
	}
	return insertMedicines(ctx, q, p)
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM prescriptions WHERE id = $1`, id)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Prescription, int, error) {
	q := db.NewSearchQuery("prescriptions", prescriptionColumns)
	q.ApplyParams(params, searchFilters)
	q.ApplySort(params["sort"], "issued_at DESC", sortColumns)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, q.CountSQL(), q.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, q.DataSQL(limit, offset), q.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	var items []*Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		items = append(items, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := r.loadMedicines(ctx, items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repoPG) SetStatus(ctx context.Context, id uuid.UUID, status string) (*Prescription, error) {
	p, err := scanPrescription(r.conn(ctx).QueryRow(ctx, `
		UPDATE prescriptions SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+prescriptionColumns, id, status))
	if err != nil {
		return nil, err
	}
	if err := r.loadMedicines(ctx, []*Prescription{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func insertMedicines(ctx context.Context, q db.Querier, p *Prescription) error {
	for i, m := range p.Medicines {
		m.ID = uuid.New()
		m.PrescriptionID = p.ID
		m.Position = i + 1
		_, err := q.Exec(ctx, `
			INSERT INTO prescription_medicines (`+medicineColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			m.ID, m.PrescriptionID, m.Position, m.MedicineID, m.Name, m.Dose, m.Frequency,
			m.Duration, m.Instructions, m.TotalQuantity, m.DurationDays,
		)
		if err != nil {
			return db.MapError(err)
		}
	}
	return nil
}

// loadMedicines attaches medicine lines to every prescription in one query.
func (r *repoPG) loadMedicines(ctx context.Context, list []*Prescription) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(list))
	byID := make(map[uuid.UUID]*Prescription, len(list))
	for i, p := range list {
		ids[i] = p.ID
		byID[p.ID] = p
		p.Medicines = []*Medicine{}
	}

	rows, err := r.conn(ctx).Query(ctx, `SELECT `+medicineColumns+` FROM prescription_medicines
		WHERE prescription_id = ANY($1) ORDER BY prescription_id, position`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var m Medicine
		if err := rows.Scan(
			&m.ID, &m.PrescriptionID, &m.Position, &m.MedicineID, &m.Name, &m.Dose, &m.Frequency,
			&m.Duration, &m.Instructions, &m.TotalQuantity, &m.DurationDays,
		); err != nil {
			return err
		}
		if p, ok := byID[m.PrescriptionID]; ok {
			p.Medicines = append(p.Medicines, &m)
		}
	}
	return rows.Err()
}

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(
		&p.ID, &p.PatientID, &p.DoctorID, &p.AppointmentID, &p.Diagnosis, &p.Advice, &p.Status,
		&p.IssuedAt, &p.NextRefillDate, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, db.MapError(err)
	}
	return &p, nil
}
