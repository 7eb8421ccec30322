package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pharmadesk/pharmadesk/internal/platform/db"
	"github.com/pharmadesk/pharmadesk/pkg/codes"
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

const appointmentColumns = `id, patient_id, doctor_id, clinic_id, scheduled_at, duration_minutes,
	reason, notes, status, created_at, updated_at`

var searchFilters = map[string]db.Filter{
	"q":          {Type: db.FilterText, Columns: []string{"reason", "notes"}},
	"patient_id": {Type: db.FilterExact, Columns: []string{"patient_id"}},
	"doctor_id":  {Type: db.FilterExact, Columns: []string{"doctor_id"}},
	"clinic_id":  {Type: db.FilterExact, Columns: []string{"clinic_id"}},
	"status":     {Type: db.FilterExact, Columns: []string{"status"}},
	"from":       {Type: db.FilterDateFrom, Columns: []string{"scheduled_at"}},
	"to":         {Type: db.FilterDateTo, Columns: []string{"scheduled_at"}},
}

var sortColumns = map[string]string{
	"scheduled": "scheduled_at",
	"created":   "created_at",
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (
			id, patient_id, doctor_id, clinic_id, scheduled_at, duration_minutes,
			reason, notes, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.DoctorID, a.ClinicID, a.ScheduledAt, a.DurationMinutes,
		a.Reason, a.Notes, a.Status,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return db.MapError(err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE appointments SET
			patient_id = $2, doctor_id = $3, clinic_id = $4, scheduled_at = $5,
			duration_minutes = $6, reason = $7, notes = $8, status = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.DoctorID, a.ClinicID, a.ScheduledAt,
		a.DurationMinutes, a.Reason, a.Notes, a.Status,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return db.MapError(err)
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error) {
	q := db.NewSearchQuery("appointments", appointmentColumns)
	q.ApplyParams(params, searchFilters)
	q.ApplySort(params["sort"], "scheduled_at ASC", sortColumns)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, q.CountSQL(), q.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, q.DataSQL(limit, offset), q.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collect(rows)
	return items, total, err
}

func (r *repoPG) SetStatus(ctx context.Context, id uuid.UUID, status string) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx, `
		UPDATE appointments SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+appointmentColumns, id, status))
}

func (r *repoPG) ListForDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE doctor_id = $1 AND scheduled_at >= $2 AND scheduled_at < $3 AND status <> $4
		ORDER BY scheduled_at`,
		doctorID, from, to, codes.AppointmentCancelled)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *repoPG) CountBetween(ctx context.Context, from, to time.Time) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE scheduled_at >= $1 AND scheduled_at < $2 AND status <> $3`,
		from, to, codes.AppointmentCancelled).Scan(&n)
	return n, err
}

func collect(rows pgx.Rows) ([]*Appointment, error) {
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID, &a.PatientID, &a.DoctorID, &a.ClinicID, &a.ScheduledAt, &a.DurationMinutes,
		&a.Reason, &a.Notes, &a.Status, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, db.MapError(err)
	}
	return &a, nil
}
