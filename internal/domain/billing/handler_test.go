package billing

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError, got %v", err)
	}
	return he.Code
}

func jsonRequest(method, body string) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func withID(c echo.Context, id string) echo.Context {
	c.SetParamNames("id")
	c.SetParamValues(id)
	return c
}

func TestHandler_InvoiceLifecycle(t *testing.T) {
	f := newFixture(t)
	h, e := NewHandler(f.svc), echo.New()

	rec := httptest.NewRecorder()
	body := `{"due_date":"2024-05-20","lines":[{"description":"Consultation","quantity":1,"unit_price":"500"}]}`
	if err := h.CreateInvoice(e.NewContext(jsonRequest(http.MethodPost, body), rec)); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var inv Invoice
	if err := json.Unmarshal(rec.Body.Bytes(), &inv); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if inv.DueDate == nil || inv.DueDate.String() != "2024-05-20" {
		t.Errorf("due date not kept: %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	if err := h.PayInvoice(withID(e.NewContext(jsonRequest(http.MethodPost, ""), rec), inv.ID.String())); err != nil {
		t.Fatalf("PayInvoice: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"status":"paid"`) {
		t.Errorf("expected paid invoice, got %s", rec.Body.String())
	}

	err := h.PayInvoice(withID(e.NewContext(jsonRequest(http.MethodPost, ""), httptest.NewRecorder()), inv.ID.String()))
	if code := statusOf(t, err); code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 paying twice, got %d", code)
	}

	rec = httptest.NewRecorder()
	c := withID(e.NewContext(jsonRequest(http.MethodPatch, `{"status":"cancelled"}`), rec), inv.ID.String())
	if err := h.SetInvoiceStatus(c); err != nil {
		t.Fatalf("SetInvoiceStatus: %v", err)
	}

	rec = httptest.NewRecorder()
	if err := h.ExportInvoices(e.NewContext(httptest.NewRequest(http.MethodGet, "/?status=cancelled", nil), rec)); err != nil {
		t.Fatalf("ExportInvoices: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], inv.InvoiceNumber+",cancelled,") {
		t.Errorf("unexpected csv:\n%s", rec.Body.String())
	}
}

func TestHandler_CreateInvoice_Errors(t *testing.T) {
	f := newFixture(t)
	h, e := NewHandler(f.svc), echo.New()

	err := h.CreateInvoice(e.NewContext(jsonRequest(http.MethodPost, `{"lines":[]}`), httptest.NewRecorder()))
	if code := statusOf(t, err); code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", code)
	}
	err = h.CreateInvoice(e.NewContext(jsonRequest(http.MethodPost, `{"lines":`), httptest.NewRecorder()))
	if code := statusOf(t, err); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
	err = h.GetInvoice(withID(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder()), "nope"))
	if code := statusOf(t, err); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
	err = h.InvoiceFromSale(withID(e.NewContext(jsonRequest(http.MethodPost, ""), httptest.NewRecorder()), "8a3c2b1e-0000-4000-8000-000000000000"))
	if code := statusOf(t, err); code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown sale, got %d", code)
	}
}

func TestHandler_PlanCheckout(t *testing.T) {
	f := newFixture(t)
	h, e := NewHandler(f.svc), echo.New()

	rec := httptest.NewRecorder()
	if err := h.CreatePlan(e.NewContext(jsonRequest(http.MethodPost, `{"code":"pro","name":"Pro","price":"10.51","features":["POS"]}`), rec)); err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	var p Plan
	json.Unmarshal(rec.Body.Bytes(), &p)

	rec = httptest.NewRecorder()
	c := withID(e.NewContext(jsonRequest(http.MethodPost, `{"method":"card"}`), rec), p.ID.String())
	if err := h.Checkout(c); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("declines still answer 200, got %d", rec.Code)
	}
	var res PaymentResult
	json.Unmarshal(rec.Body.Bytes(), &res)
	if res.Success || res.ErrorCode != CodeCardDeclined {
		t.Errorf("expected CARD_DECLINED, got %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	if err := h.ListPayments(e.NewContext(httptest.NewRequest(http.MethodGet, "/?success=false", nil), rec)); err != nil {
		t.Fatalf("ListPayments: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("expected one failed payment, got %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	if err := h.DeactivatePlan(withID(e.NewContext(jsonRequest(http.MethodPost, ""), rec), p.ID.String())); err != nil {
		t.Fatalf("DeactivatePlan: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"active":false`) {
		t.Errorf("expected inactive plan, got %s", rec.Body.String())
	}

	err := h.GetPlan(withID(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder()), "8a3c2b1e-0000-4000-8000-000000000000"))
	if code := statusOf(t, err); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
	err = h.ListPlans(e.NewContext(httptest.NewRequest(http.MethodGet, "/?interval=weekly", nil), httptest.NewRecorder()))
	if code := statusOf(t, err); code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", code)
	}
}
