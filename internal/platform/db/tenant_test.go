package db

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestExtractClinicID_FromHeader(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(ClinicHeader, "dhanmondi")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	id := extractClinicID(c, "default")
	if id != "dhanmondi" {
		t.Errorf("expected dhanmondi, got %s", id)
	}
}

func TestExtractClinicID_FromQuery(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?clinic_id=uttara", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	id := extractClinicID(c, "default")
	if id != "uttara" {
		t.Errorf("expected uttara, got %s", id)
	}
}

func TestExtractClinicID_Default(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	id := extractClinicID(c, "default")
	if id != "default" {
		t.Errorf("expected default, got %s", id)
	}
}

func TestExtractClinicID_HeaderPriorityOverQuery(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?clinic_id=query_clinic", nil)
	req.Header.Set(ClinicHeader, "header_clinic")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	id := extractClinicID(c, "default")
	if id != "header_clinic" {
		t.Errorf("expected header_clinic (header has priority over query), got %s", id)
	}
}

func TestValidClinicID(t *testing.T) {
	valid := []string{"abc", "clinic_1", "dhaka_central_2", "A1B2"}
	for _, v := range valid {
		if !ValidClinicID(v) {
			t.Errorf("expected %s to be valid", v)
		}
	}

	invalid := []string{"a-b", "a.b", "a b", "'; DROP TABLE", "a/b", ""}
	for _, v := range invalid {
		if ValidClinicID(v) {
			t.Errorf("expected %s to be invalid", v)
		}
	}
}

func TestSchemaName(t *testing.T) {
	if got := SchemaName("uttara"); got != "clinic_uttara" {
		t.Errorf("expected clinic_uttara, got %s", got)
	}
}

func TestClinicMiddleware_WithoutPool(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(ClinicHeader, "banani")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen string
	h := ClinicMiddleware(nil, "default")(func(c echo.Context) error {
		seen = ClinicFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen != "banani" {
		t.Errorf("expected banani in context, got %q", seen)
	}
	if c.Get("clinic_id") != "banani" {
		t.Errorf("expected clinic_id on echo context, got %v", c.Get("clinic_id"))
	}
}

func TestClinicMiddleware_InvalidID(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(ClinicHeader, "bad-id;")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := ClinicMiddleware(nil, "default")(func(c echo.Context) error {
		t.Fatal("handler should not run")
		return nil
	})
	err := h(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400 HTTPError, got %v", err)
	}
}

func TestConnFromContext_Nil(t *testing.T) {
	conn := ConnFromContext(context.Background())
	if conn != nil {
		t.Error("expected nil conn from empty context")
	}
}

func TestClinicFromContext(t *testing.T) {
	ctx := WithClinic(context.Background(), "test_clinic")
	if id := ClinicFromContext(ctx); id != "test_clinic" {
		t.Errorf("expected test_clinic, got %s", id)
	}

	if empty := ClinicFromContext(context.Background()); empty != "" {
		t.Errorf("expected empty string, got %s", empty)
	}
}

func TestCreateClinicSchema_InvalidID(t *testing.T) {
	err := CreateClinicSchema(context.Background(), nil, "invalid-id!", "")
	if err == nil {
		t.Error("expected error for invalid clinic ID")
	}
}
