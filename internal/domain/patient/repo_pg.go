package patient

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pharmadesk/pharmadesk/internal/platform/db"
)

type patientRepoPG struct {
	pool db.Querier
}

func NewRepo(pool db.Querier) Repository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const patientColumns = `id, patient_code, full_name, phone, email, date_of_birth,
	gender, blood_group, address, notes, created_at, updated_at`

var patientFilters = map[string]db.Filter{
	"q":      {Type: db.FilterText, Columns: []string{"full_name", "phone", "patient_code", "email"}},
	"gender": {Type: db.FilterExact, Columns: []string{"gender"}},
}

var patientSorts = map[string]string{
	"name":    "full_name",
	"created": "created_at",
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (
			id, patient_code, full_name, phone, email, date_of_birth,
			gender, blood_group, address, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		p.ID, p.PatientCode, p.FullName, p.Phone, p.Email, p.DateOfBirth,
		p.Gender, p.BloodGroup, p.Address, p.Notes,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return db.MapError(err)
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientColumns+` FROM patients WHERE id = $1`, id))
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patients SET
			full_name = $2, phone = $3, email = $4, date_of_birth = $5,
			gender = $6, blood_group = $7, address = $8, notes = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING patient_code, created_at, updated_at`,
		p.ID, p.FullName, p.Phone, p.Email, p.DateOfBirth,
		p.Gender, p.BloodGroup, p.Address, p.Notes,
	).Scan(&p.PatientCode, &p.CreatedAt, &p.UpdatedAt)
	return db.MapError(err)
}

func (r *patientRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *patientRepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error) {
	q := db.NewSearchQuery("patients", patientColumns)
	q.ApplyParams(params, patientFilters)
	q.ApplySort(params["sort"], "created_at DESC", patientSorts)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, q.CountSQL(), q.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, q.DataSQL(limit, offset), q.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *patientRepoPG) Count(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&n)
	return n, err
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.PatientCode, &p.FullName, &p.Phone, &p.Email, &p.DateOfBirth,
		&p.Gender, &p.BloodGroup, &p.Address, &p.Notes, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, db.MapError(err)
	}
	return &p, nil
}
