package patient

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pharmadesk/pharmadesk/internal/platform/db"
	"github.com/pharmadesk/pharmadesk/internal/platform/validation"
	"github.com/pharmadesk/pharmadesk/pkg/datex"
)

func newTestService() *Service {
	svc := NewService(NewMemRepo())
	svc.now = func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) }
	return svc
}

func validPatient() *Patient {
	dob := datex.MustParse("1985-07-01")
	return &Patient{
		FullName:    "Rahima Begum",
		Phone:       "+880 1711-000000",
		Email:       "Rahima@Example.com",
		DateOfBirth: &dob,
		Gender:      "Female",
		BloodGroup:  "b+",
	}
}

func TestService_Create(t *testing.T) {
	svc := newTestService()
	p := validPatient()

	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("expected ID to be assigned")
	}
	if !strings.HasPrefix(p.PatientCode, "PT-240315-") || len(p.PatientCode) != 16 {
		t.Errorf("unexpected patient code %q", p.PatientCode)
	}
	if p.Email != "rahima@example.com" || p.Gender != "female" || p.BloodGroup != "B+" {
		t.Errorf("expected normalized fields, got %+v", p)
	}
}

func TestService_Create_Validation(t *testing.T) {
	svc := newTestService()
	future := datex.MustParse("2030-01-01")
	p := &Patient{
		Phone:       "12ab",
		Email:       "not-an-email",
		Gender:      "unknown",
		BloodGroup:  "C+",
		DateOfBirth: &future,
	}

	err := svc.Create(context.Background(), p)
	ve, ok := validation.As(err)
	if !ok {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, field := range []string{"full_name", "phone", "email", "gender", "blood_group", "date_of_birth"} {
		if !ve.Has(field) {
			t.Errorf("expected error on %s, got %v", field, ve)
		}
	}
}

func TestService_Create_DuplicateCode(t *testing.T) {
	svc := newTestService()
	a := validPatient()
	a.PatientCode = "PT-1"
	if err := svc.Create(context.Background(), a); err != nil {
		t.Fatalf("Create: %v", err)
	}

	b := validPatient()
	b.PatientCode = "PT-1"
	if err := svc.Create(context.Background(), b); !errors.Is(err, db.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestService_UpdateKeepsCode(t *testing.T) {
	svc := newTestService()
	p := validPatient()
	_ = svc.Create(context.Background(), p)
	code := p.PatientCode

	upd := &Patient{ID: p.ID, PatientCode: "HACKED", FullName: "Rahima Khatun", Phone: "01711000000"}
	if err := svc.Update(context.Background(), upd); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, _ := svc.Get(context.Background(), p.ID)
	if got.FullName != "Rahima Khatun" {
		t.Errorf("expected updated name, got %s", got.FullName)
	}
	if got.PatientCode != code {
		t.Errorf("patient code changed from %s to %s", code, got.PatientCode)
	}
}

func TestService_GetAndDelete_NotFound(t *testing.T) {
	svc := newTestService()
	p := validPatient()
	_ = svc.Create(context.Background(), p)

	if err := svc.Delete(context.Background(), p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(context.Background(), p.ID); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := svc.Delete(context.Background(), p.ID); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestService_Search(t *testing.T) {
	svc := newTestService()
	for _, name := range []string{"Karim Uddin", "Rahim Mia", "Karima Akter"} {
		p := validPatient()
		p.FullName = name
		if strings.HasPrefix(name, "Karim ") || name == "Rahim Mia" {
			p.Gender = "male"
		}
		if err := svc.Create(context.Background(), p); err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
	}

	items, total, err := svc.Search(context.Background(), map[string]string{"q": "karim", "sort": "name"}, 10, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if total != 2 || items[0].FullName != "Karim Uddin" || items[1].FullName != "Karima Akter" {
		t.Fatalf("unexpected search result total=%d %v", total, items)
	}

	items, total, _ = svc.Search(context.Background(), map[string]string{"gender": "male", "sort": "-name"}, 1, 0)
	if total != 2 || len(items) != 1 || items[0].FullName != "Rahim Mia" {
		t.Fatalf("unexpected gender filter result total=%d %v", total, items)
	}

	n, _ := svc.Count(context.Background())
	if n != 3 {
		t.Errorf("expected count 3, got %d", n)
	}
}

func TestPatient_Age(t *testing.T) {
	dob := datex.MustParse("2000-03-16")
	p := &Patient{DateOfBirth: &dob}

	if got := p.Age(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)); got != 23 {
		t.Errorf("expected 23 the day before the birthday, got %d", got)
	}
	if got := p.Age(time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC)); got != 24 {
		t.Errorf("expected 24 on the birthday, got %d", got)
	}
	if got := (&Patient{}).Age(time.Now()); got != -1 {
		t.Errorf("expected -1 without birth date, got %d", got)
	}
}
