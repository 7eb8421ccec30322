package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/pharmadesk/pharmadesk/pkg/datex"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc, _ := newTestService()
	return NewHandler(svc), echo.New()
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError, got %v", err)
	}
	return he.Code
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestHandler_Create(t *testing.T) {
	h, e := newTestHandler()

	body := `{"sku":"NAP-500","name":"Napa 500","unit":"tablet","unit_price":1.2,"stock_qty":10,"reorder_level":2,"active":true}`
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/v1/medicines", body), rec)

	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var m Medicine
	json.Unmarshal(rec.Body.Bytes(), &m)
	if m.StockQty != 10 || m.UnitPrice.String() != "1.2" {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_Create_Validation(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(jsonRequest(http.MethodPost, "/", `{"unit_price":-1}`), httptest.NewRecorder())

	if code := statusOf(t, h.Create(c)); code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", code)
	}
}

func TestHandler_Get_InvalidID(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("nope")

	if code := statusOf(t, h.Get(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_Get_NotFound(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("6f1c2b9e-3a55-4c1b-9d7e-0a4f5e6b7c8d")

	if code := statusOf(t, h.Get(c)); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestHandler_AdjustStock(t *testing.T) {
	h, e := newTestHandler()
	m := createMedicine(t, h.svc, validMedicine())

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/", `{"type":"adjustment_out","quantity":8,"reason":"damaged"}`), rec)
	c.SetParamNames("id")
	c.SetParamValues(m.ID.String())

	if err := h.AdjustStock(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"stock_qty":42`) {
		t.Errorf("expected stock 42, got %s", rec.Body.String())
	}

	c = e.NewContext(jsonRequest(http.MethodPost, "/", `{"type":"adjustment_out","quantity":100}`), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(m.ID.String())
	if code := statusOf(t, h.AdjustStock(c)); code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for oversell, got %d", code)
	}
}

func TestHandler_AddBatch(t *testing.T) {
	h, e := newTestHandler()
	m := createMedicine(t, h.svc, validMedicine())

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/", `{"batch_number":"L1","expiry_date":"2025-05-31","quantity":10,"purchase_price":0.8}`), rec)
	c.SetParamNames("id")
	c.SetParamValues(m.ID.String())

	if err := h.AddBatch(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated || !strings.Contains(rec.Body.String(), `"expiry_date":"2025-05-31"`) {
		t.Errorf("unexpected response %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(m.ID.String())
	if err := h.ListBatches(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"batch_number":"L1"`) {
		t.Errorf("expected batch in list, got %s", rec.Body.String())
	}
}

func TestHandler_List(t *testing.T) {
	h, e := newTestHandler()
	createMedicine(t, h.svc, validMedicine())
	low := validMedicine()
	low.SKU, low.StockQty = "LOW-1", 1
	createMedicine(t, h.svc, low)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/medicines?low_stock=true&limit=5", nil), rec)
	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Data  []Medicine `json:"data"`
		Total int        `json:"total"`
		Limit int        `json:"limit"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 || resp.Limit != 5 || resp.Data[0].SKU != "LOW-1" {
		t.Errorf("unexpected list %s", rec.Body.String())
	}
}

func TestHandler_Expiring(t *testing.T) {
	h, e := newTestHandler()
	m := validMedicine()
	m.StockQty = 0
	m.Batches = []*Batch{{BatchNumber: "X", ExpiryDate: datex.MustParse("2024-04-01"), Quantity: 3}}
	createMedicine(t, h.svc, m)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/medicines/expiring?days=20", nil), rec)
	if err := h.Expiring(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"days_left":17`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/?days=soon", nil), httptest.NewRecorder())
	if code := statusOf(t, h.Expiring(c)); code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", code)
	}
}

func TestHandler_Export(t *testing.T) {
	h, e := newTestHandler()
	createMedicine(t, h.svc, validMedicine())

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/medicines/export.csv", nil), rec)
	if err := h.Export(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("expected text/csv, got %q", ct)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "NAP-500,Napa 500,Paracetamol") {
		t.Errorf("unexpected csv %q", rec.Body.String())
	}
}

func TestHandler_Delete(t *testing.T) {
	h, e := newTestHandler()
	m := createMedicine(t, h.svc, validMedicine())

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(m.ID.String())
	if err := h.Delete(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if _, err := h.svc.Find(context.Background(), m.ID); err == nil {
		t.Error("expected medicine to be gone")
	}
}

func TestHandler_ActiveOmittedFromBody(t *testing.T) {
	h, e := newTestHandler()

	rec := httptest.NewRecorder()
	body := `{"sku":"CEF-3","name":"Cef-3","unit_price":30,"stock_qty":12}`
	if err := h.Create(e.NewContext(jsonRequest(http.MethodPost, "/api/v1/medicines", body), rec)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	var created Medicine
	json.Unmarshal(rec.Body.Bytes(), &created)
	if !created.Active {
		t.Fatalf("expected medicine created without active to be active, got %s", rec.Body.String())
	}

	update := func(body string) Medicine {
		t.Helper()
		rec := httptest.NewRecorder()
		c := e.NewContext(jsonRequest(http.MethodPut, "/", body), rec)
		c.SetParamNames("id")
		c.SetParamValues(created.ID.String())
		if err := h.Update(c); err != nil {
			t.Fatalf("Update: %v", err)
		}
		var m Medicine
		json.Unmarshal(rec.Body.Bytes(), &m)
		return m
	}

	if m := update(`{"sku":"CEF-3","name":"Cef-3 DS","unit_price":32}`); !m.Active || m.Name != "Cef-3 DS" {
		t.Errorf("PUT without active must keep it active, got %+v", m)
	}
	if m := update(`{"sku":"CEF-3","name":"Cef-3 DS","unit_price":32,"active":false}`); m.Active {
		t.Error("PUT with active=false must deactivate")
	}
}
