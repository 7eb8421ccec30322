package directory

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"

	"github.com/pharmadesk/pharmadesk/internal/platform/db"
)

var doctorCols = []string{
	"id", "name", "specialty", "phone", "email", "clinic_id", "consultation_fee",
	"work_start", "work_end", "slot_minutes", "active", "created_at", "updated_at",
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func TestDoctorRepoPG_GetByID(t *testing.T) {
	mock := newMock(t)
	id := uuid.New()
	clinic := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT .* FROM doctors WHERE id = \\$1").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(doctorCols).
			AddRow(id, "Dr. A", "ENT", "", "", &clinic, decimal.NewFromInt(600), "10:00", "14:00", 20, true, now, now))

	d, err := NewDoctorRepo(mock).GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if d.ClinicID == nil || *d.ClinicID != clinic || d.SlotMinutes != 20 {
		t.Errorf("unexpected doctor %+v", d)
	}
}

func TestDoctorRepoPG_Create_UnknownClinic(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("INSERT INTO doctors").
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "doctors_clinic_id_fkey"})

	err := NewDoctorRepo(mock).Create(context.Background(), &Doctor{Name: "Dr. B"})
	if !errors.Is(err, db.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestDoctorRepoPG_Search(t *testing.T) {
	mock := newMock(t)
	where := "WHERE 1=1 AND active = $1::boolean AND (name ILIKE $2 OR specialty ILIKE $2 OR phone ILIKE $2)"

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM doctors " + where)).
		WithArgs("true", "%ent%").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta(where + " ORDER BY created_at DESC LIMIT $3 OFFSET $4")).
		WithArgs("true", "%ent%", 10, 0).
		WillReturnRows(pgxmock.NewRows(doctorCols))

	items, total, err := NewDoctorRepo(mock).Search(context.Background(),
		map[string]string{"active": "true", "q": "ent", "sort": "-created"}, 10, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if total != 0 || len(items) != 0 {
		t.Errorf("expected empty result")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestClinicRepoPG_UpdateMissing(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("UPDATE clinics SET").WillReturnError(pgx.ErrNoRows)

	err := NewClinicRepo(mock).Update(context.Background(), &Clinic{ID: uuid.New(), Name: "X"})
	if !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClinicRepoPG_Delete(t *testing.T) {
	mock := newMock(t)
	id := uuid.New()
	mock.ExpectExec("DELETE FROM clinics WHERE id = \\$1").WithArgs(id).WillReturnResult(pgxmock.NewResult("DELETE", 1))

	if err := NewClinicRepo(mock).Delete(context.Background(), id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}
