package directory

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pharmadesk/pharmadesk/internal/platform/db"
)

// -- Doctor --

type doctorRepoPG struct {
	pool db.Querier
}

func NewDoctorRepo(pool db.Querier) DoctorRepository {
	return &doctorRepoPG{pool: pool}
}

func (r *doctorRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const doctorColumns = `id, name, specialty, phone, email, clinic_id, consultation_fee,
	work_start, work_end, slot_minutes, active, created_at, updated_at`

var doctorFilters = map[string]db.Filter{
	"q":         {Type: db.FilterText, Columns: []string{"name", "specialty", "phone"}},
	"clinic_id": {Type: db.FilterExact, Columns: []string{"clinic_id"}},
	"specialty": {Type: db.FilterExact, Columns: []string{"specialty"}},
	"active":    {Type: db.FilterBool, Columns: []string{"active"}},
}

var directorySorts = map[string]string{
	"name":    "name",
	"created": "created_at",
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctors (
			id, name, specialty, phone, email, clinic_id, consultation_fee,
			work_start, work_end, slot_minutes, active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`,
		d.ID, d.Name, d.Specialty, d.Phone, d.Email, d.ClinicID, d.ConsultationFee,
		d.WorkStart, d.WorkEnd, d.SlotMinutes, d.Active,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	return db.MapError(err)
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorColumns+` FROM doctors WHERE id = $1`, id))
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE doctors SET
			name = $2, specialty = $3, phone = $4, email = $5, clinic_id = $6,
			consultation_fee = $7, work_start = $8, work_end = $9, slot_minutes = $10,
			active = $11, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		d.ID, d.Name, d.Specialty, d.Phone, d.Email, d.ClinicID,
		d.ConsultationFee, d.WorkStart, d.WorkEnd, d.SlotMinutes, d.Active,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	return db.MapError(err)
}

func (r *doctorRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	return deleteByID(ctx, r.conn(ctx), "doctors", id)
}

func (r *doctorRepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Doctor, int, error) {
	q := db.NewSearchQuery("doctors", doctorColumns)
	q.ApplyParams(params, doctorFilters)
	q.ApplySort(params["sort"], "name ASC", directorySorts)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, q.CountSQL(), q.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, q.DataSQL(limit, offset), q.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(
		&d.ID, &d.Name, &d.Specialty, &d.Phone, &d.Email, &d.ClinicID, &d.ConsultationFee,
		&d.WorkStart, &d.WorkEnd, &d.SlotMinutes, &d.Active, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, db.MapError(err)
	}
	return &d, nil
}

// -- Clinic --

type clinicRepoPG struct {
	pool db.Querier
}

func NewClinicRepo(pool db.Querier) ClinicRepository {
	return &clinicRepoPG{pool: pool}
}

func (r *clinicRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const clinicColumns = `id, name, address, phone, active, created_at, updated_at`

var clinicFilters = map[string]db.Filter{
	"q":      {Type: db.FilterText, Columns: []string{"name", "address", "phone"}},
	"active": {Type: db.FilterBool, Columns: []string{"active"}},
}

func (r *clinicRepoPG) Create(ctx context.Context, c *Clinic) error {
	c.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO clinics (id, name, address, phone, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		c.ID, c.Name, c.Address, c.Phone, c.Active,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	return db.MapError(err)
}

func (r *clinicRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	return scanClinic(r.conn(ctx).QueryRow(ctx, `SELECT `+clinicColumns+` FROM clinics WHERE id = $1`, id))
}

func (r *clinicRepoPG) Update(ctx context.Context, c *Clinic) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE clinics SET name = $2, address = $3, phone = $4, active = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		c.ID, c.Name, c.Address, c.Phone, c.Active,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	return db.MapError(err)
}

func (r *clinicRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	return deleteByID(ctx, r.conn(ctx), "clinics", id)
}

func (r *clinicRepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Clinic, int, error) {
	q := db.NewSearchQuery("clinics", clinicColumns)
	q.ApplyParams(params, clinicFilters)
	q.ApplySort(params["sort"], "name ASC", directorySorts)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, q.CountSQL(), q.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, q.DataSQL(limit, offset), q.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Clinic
	for rows.Next() {
		c, err := scanClinic(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, rows.Err()
}

func scanClinic(row pgx.Row) (*Clinic, error) {
	var c Clinic
	if err := row.Scan(&c.ID, &c.Name, &c.Address, &c.Phone, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, db.MapError(err)
	}
	return &c, nil
}

// deleteByID removes one row; table is always a package constant.
func deleteByID(ctx context.Context, q db.Querier, table string, id uuid.UUID) error {
	tag, err := q.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}
