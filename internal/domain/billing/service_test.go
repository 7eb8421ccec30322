package billing

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pharmadesk/pharmadesk/internal/domain/inventory"
	"github.com/pharmadesk/pharmadesk/internal/domain/patient"
	"github.com/pharmadesk/pharmadesk/internal/domain/sales"
	"github.com/pharmadesk/pharmadesk/internal/platform/db"
	"github.com/pharmadesk/pharmadesk/internal/platform/validation"
	"github.com/pharmadesk/pharmadesk/pkg/codes"
	"github.com/pharmadesk/pharmadesk/pkg/datex"
)

var testNow = time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	sales    *sales.Service
	stock    *inventory.Service
	patients *patient.Service
}

func newFixture(t *testing.T, gateways ...PaymentGateway) *fixture {
	t.Helper()
	stock := inventory.NewService(inventory.NewMemRepo(), db.NoopTransactor{}, inventory.Options{})
	patients := patient.NewService(patient.NewMemRepo())
	saleSvc := sales.NewService(sales.NewMemRepo(), stock, db.NoopTransactor{}, sales.Options{Patients: patients})
	svc := NewService(NewInvoiceMemRepo(), NewPlanMemRepo(), NewPaymentMemRepo(), db.NoopTransactor{}, Options{
		Patients: patients,
		Sales:    saleSvc,
		Gateways: gateways,
		Currency: "bdt",
	})
	svc.now = func() time.Time { return testNow }
	return &fixture{svc: svc, sales: saleSvc, stock: stock, patients: patients}
}

func (f *fixture) medicine(t *testing.T, sku, price string) *inventory.Medicine {
	t.Helper()
	m := &inventory.Medicine{SKU: sku, Name: "Med " + sku, Unit: "tablet", UnitPrice: dec(price), StockQty: 50, Active: true}
	if err := f.stock.Create(context.Background(), m); err != nil {
		t.Fatalf("create medicine: %v", err)
	}
	return m
}

func (f *fixture) plan(t *testing.T, code, price string) *Plan {
	t.Helper()
	p, err := f.svc.CreatePlan(context.Background(), PlanInput{Code: code, Name: code + " plan", Price: dec(price)})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	return p
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func hasField(t *testing.T, err error, field string) {
	t.Helper()
	ve, ok := validation.As(err)
	if !ok {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !ve.Has(field) {
		t.Errorf("expected error on %q, got %v", field, ve)
	}
}

func TestService_CreateInvoice_Totals(t *testing.T) {
	f := newFixture(t)
	inv, err := f.svc.CreateInvoice(context.Background(), InvoiceInput{
		Lines: []LineInput{
			{Description: "Consultation", Quantity: 1, UnitPrice: dec("500")},
			{Description: "Dressing", Quantity: 3, UnitPrice: dec("40"), Discount: dec("20")},
		},
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if inv.InvoiceNumber != "INV-20240502-0001" {
		t.Errorf("unexpected number %s", inv.InvoiceNumber)
	}
	if inv.Status != codes.InvoicePending || inv.PaidAt != nil {
		t.Errorf("expected unpaid pending invoice, got %s", inv.Status)
	}
	if !inv.Subtotal.Equal(dec("620")) || !inv.TotalDiscount.Equal(dec("20")) || !inv.GrandTotal.Equal(dec("600")) {
		t.Errorf("unexpected totals %s / %s / %s", inv.Subtotal, inv.TotalDiscount, inv.GrandTotal)
	}
	if !inv.Lines[1].LineTotal.Equal(dec("100")) || inv.Lines[1].Position != 2 {
		t.Errorf("unexpected second line %+v", inv.Lines[1])
	}
}

func TestService_InvoiceNumbers_PerDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := InvoiceInput{Lines: []LineInput{{Description: "Visit", Quantity: 1, UnitPrice: dec("300")}}}

	var numbers []string
	for _, day := range []time.Time{testNow, testNow.Add(time.Hour), testNow.AddDate(0, 0, 1)} {
		day := day
		f.svc.now = func() time.Time { return day }
		inv, err := f.svc.CreateInvoice(ctx, in)
		if err != nil {
			t.Fatalf("CreateInvoice: %v", err)
		}
		numbers = append(numbers, inv.InvoiceNumber)
	}
	want := []string{"INV-20240502-0001", "INV-20240502-0002", "INV-20240503-0001"}
	for i := range want {
		if numbers[i] != want[i] {
			t.Errorf("invoice %d: expected %s, got %s", i, want[i], numbers[i])
		}
	}
}

func TestService_CreateInvoice_Validation(t *testing.T) {
	f := newFixture(t)
	missing := uuid.New()
	past := datex.MustParse("2024-05-01")

	tests := []struct {
		name  string
		in    InvoiceInput
		field string
	}{
		{"no lines", InvoiceInput{}, "lines"},
		{"blank description", InvoiceInput{Lines: []LineInput{{Quantity: 1, UnitPrice: dec("1")}}}, "lines[0].description"},
		{"zero quantity", InvoiceInput{Lines: []LineInput{{Description: "x", UnitPrice: dec("1")}}}, "lines[0].quantity"},
		{"negative price", InvoiceInput{Lines: []LineInput{{Description: "x", Quantity: 1, UnitPrice: dec("-1")}}}, "lines[0].unit_price"},
		{"discount too big", InvoiceInput{Lines: []LineInput{{Description: "x", Quantity: 1, UnitPrice: dec("5"), Discount: dec("6")}}}, "lines[0].discount"},
		{"bad status", InvoiceInput{Status: "sent", Lines: []LineInput{{Description: "x", Quantity: 1}}}, "status"},
		{"unknown patient", InvoiceInput{PatientID: &missing, Lines: []LineInput{{Description: "x", Quantity: 1}}}, "patient_id"},
		{"due in the past", InvoiceInput{DueDate: &past, Lines: []LineInput{{Description: "x", Quantity: 1}}}, "due_date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateInvoice(context.Background(), tt.in)
			hasField(t, err, tt.field)
		})
	}
}

func TestService_InvoiceFromSale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.medicine(t, "A", "10")
	b := f.medicine(t, "B", "5")

	sale, err := f.sales.CreateSale(ctx, sales.SaleInput{
		GlobalDiscount: dec("6"),
		Items: []sales.ItemInput{
			{MedicineID: a.ID, Quantity: 2, Discount: dec("0.5")},
			{MedicineID: b.ID, Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}

	inv, err := f.svc.InvoiceFromSale(ctx, sale.ID)
	if err != nil {
		t.Fatalf("InvoiceFromSale: %v", err)
	}
	if !inv.GrandTotal.Equal(sale.Payable) {
		t.Errorf("invoice total %s should equal sale payable %s", inv.GrandTotal, sale.Payable)
	}
	if !inv.Subtotal.Equal(dec("25")) || !inv.TotalDiscount.Equal(dec("6.5")) {
		t.Errorf("unexpected totals %s / %s", inv.Subtotal, inv.TotalDiscount)
	}
	if !inv.Lines[1].Discount.Equal(dec("5")) || !inv.Lines[0].Discount.Equal(dec("1.5")) {
		t.Errorf("global discount not spread from the last line: %s, %s", inv.Lines[0].Discount, inv.Lines[1].Discount)
	}
	if inv.Status != codes.InvoicePaid || inv.PaidAt == nil || inv.SaleID == nil || *inv.SaleID != sale.ID {
		t.Errorf("expected paid invoice linked to the sale, got %+v", inv)
	}
	if inv.Lines[0].Description != "Med A" {
		t.Errorf("expected line description from the sale item, got %q", inv.Lines[0].Description)
	}

	if _, err := f.svc.InvoiceFromSale(ctx, sale.ID); !errors.Is(err, db.ErrConflict) {
		t.Errorf("expected conflict for a second invoice, got %v", err)
	}
}

func TestService_InvoiceFromSale_Rejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.medicine(t, "A", "10")
	sale, err := f.sales.CreateSale(ctx, sales.SaleInput{Items: []sales.ItemInput{{MedicineID: a.ID, Quantity: 1}}})
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}
	if _, err := f.sales.Void(ctx, sale.ID, sales.VoidInput{}); err != nil {
		t.Fatalf("Void: %v", err)
	}

	_, err = f.svc.InvoiceFromSale(ctx, sale.ID)
	hasField(t, err, "sale_id")

	if _, err := f.svc.InvoiceFromSale(ctx, uuid.New()); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("expected not found for unknown sale, got %v", err)
	}
}

func TestSpreadDiscount_SkipsFullyDiscountedLines(t *testing.T) {
	lines := []*InvoiceLine{
		{Quantity: 1, UnitPrice: dec("10")},
		{Quantity: 1, UnitPrice: dec("4"), Discount: dec("4")},
	}
	spreadDiscount(lines, dec("3"))
	if !lines[0].Discount.Equal(dec("3")) || !lines[1].Discount.Equal(dec("4")) {
		t.Errorf("unexpected discounts %s, %s", lines[0].Discount, lines[1].Discount)
	}
}

func TestService_MarkPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv, err := f.svc.CreateInvoice(ctx, InvoiceInput{Lines: []LineInput{{Description: "Visit", Quantity: 1, UnitPrice: dec("300")}}})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	paid, err := f.svc.MarkPaid(ctx, inv.ID)
	if err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if paid.Status != codes.InvoicePaid || paid.PaidAt == nil || !paid.PaidAt.Equal(testNow) {
		t.Errorf("expected paid at %s, got %+v", testNow, paid.PaidAt)
	}

	_, err = f.svc.MarkPaid(ctx, inv.ID)
	hasField(t, err, "status")

	other, _ := f.svc.CreateInvoice(ctx, InvoiceInput{Lines: []LineInput{{Description: "Visit", Quantity: 1}}})
	if _, err := f.svc.SetStatus(ctx, other.ID, codes.InvoiceCancelled); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	_, err = f.svc.MarkPaid(ctx, other.ID)
	hasField(t, err, "status")

	if _, err := f.svc.MarkPaid(ctx, uuid.New()); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestService_MarkPaid_ConcurrentSettlesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv, err := f.svc.CreateInvoice(ctx, InvoiceInput{Lines: []LineInput{{Description: "Visit", Quantity: 1, UnitPrice: dec("300")}}})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.MarkPaid(ctx, inv.ID); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("expected one settlement, got %d", wins)
	}
}

func TestInvoiceMemRepo_SetStatusRefused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv, _ := f.svc.CreateInvoice(ctx, InvoiceInput{Lines: []LineInput{{Description: "Visit", Quantity: 1}}})

	repo := f.svc.invoices
	if _, err := repo.SetStatus(ctx, inv.ID, codes.InvoiceCancelled, nil, nil); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	_, err := repo.SetStatus(ctx, inv.ID, codes.InvoicePaid, &testNow, []string{codes.InvoicePaid, codes.InvoiceCancelled})
	if !errors.Is(err, ErrStatusChanged) {
		t.Fatalf("expected ErrStatusChanged, got %v", err)
	}
	got, _ := f.svc.GetInvoice(ctx, inv.ID)
	if got.Status != codes.InvoiceCancelled || got.PaidAt != nil {
		t.Errorf("refused change must leave the invoice alone, got %+v", got)
	}
}

func TestService_SetStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv, _ := f.svc.CreateInvoice(ctx, InvoiceInput{Status: codes.InvoiceDraft, Lines: []LineInput{{Description: "Visit", Quantity: 1}}})

	_, err := f.svc.SetStatus(ctx, inv.ID, "")
	hasField(t, err, "status")
	_, err = f.svc.SetStatus(ctx, inv.ID, "archived")
	hasField(t, err, "status")

	got, err := f.svc.SetStatus(ctx, inv.ID, " Overdue ")
	if err != nil || got.Status != codes.InvoiceOverdue || got.PaidAt != nil {
		t.Fatalf("expected overdue without paid_at, got %+v, %v", got, err)
	}
	got, err = f.svc.SetStatus(ctx, inv.ID, codes.InvoicePaid)
	if err != nil || got.PaidAt == nil {
		t.Fatalf("expected paid_at stamped, got %+v, %v", got, err)
	}
}

func TestService_SearchInvoices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, status := range []string{codes.InvoicePending, codes.InvoicePaid, codes.InvoicePending} {
		if _, err := f.svc.CreateInvoice(ctx, InvoiceInput{Status: status, Lines: []LineInput{{Description: "Visit", Quantity: 1}}}); err != nil {
			t.Fatalf("CreateInvoice: %v", err)
		}
	}

	items, total, err := f.svc.SearchInvoices(ctx, map[string]string{"status": codes.InvoicePending, "sort": "number"}, 10, 0)
	if err != nil {
		t.Fatalf("SearchInvoices: %v", err)
	}
	if total != 2 || items[0].InvoiceNumber != "INV-20240502-0001" || items[1].InvoiceNumber != "INV-20240502-0003" {
		t.Errorf("unexpected pending invoices: %d", total)
	}

	_, _, err = f.svc.SearchInvoices(ctx, map[string]string{"from": "May 1", "sale_id": "x"}, 10, 0)
	hasField(t, err, "from")
	hasField(t, err, "sale_id")
}

func TestService_Plans(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inactive := false
	p, err := f.svc.CreatePlan(ctx, PlanInput{
		Code: " basic ", Name: "Basic", Price: dec("999"), Active: &inactive,
		Features: []string{"POS", " ", "Prescriptions"},
	})
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if p.Code != "BASIC" || p.Currency != "BDT" || p.Interval != codes.IntervalMonthly || !p.Active {
		t.Errorf("unexpected defaults: %+v", p)
	}
	if len(p.Features) != 2 {
		t.Errorf("blank features should be dropped: %v", p.Features)
	}

	if _, err := f.svc.CreatePlan(ctx, PlanInput{Code: "Basic", Name: "Again"}); !errors.Is(err, db.ErrConflict) {
		t.Errorf("expected conflict on duplicate code, got %v", err)
	}

	updated, err := f.svc.UpdatePlan(ctx, p.ID, PlanInput{Code: "BASIC", Name: "Basic+", Price: dec("1099"), Interval: codes.IntervalYearly})
	if err != nil {
		t.Fatalf("UpdatePlan: %v", err)
	}
	if !updated.Active || updated.Interval != codes.IntervalYearly || !updated.CreatedAt.Equal(p.CreatedAt) {
		t.Errorf("update should keep active and created_at: %+v", updated)
	}

	off, err := f.svc.DeactivatePlan(ctx, p.ID)
	if err != nil || off.Active {
		t.Fatalf("DeactivatePlan: %+v, %v", off, err)
	}
	items, total, err := f.svc.SearchPlans(ctx, map[string]string{"active": "true"}, 10, 0)
	if err != nil || total != 0 || len(items) != 0 {
		t.Errorf("expected no active plans, got %d, %v", total, err)
	}
	_, _, err = f.svc.SearchPlans(ctx, map[string]string{"active": "yes"}, 10, 0)
	hasField(t, err, "active")
}

func TestService_CreatePlan_Validation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name  string
		in    PlanInput
		field string
	}{
		{"code", PlanInput{Name: "Basic"}, "code"},
		{"name", PlanInput{Code: "B"}, "name"},
		{"price", PlanInput{Code: "B", Name: "Basic", Price: dec("-1")}, "price"},
		{"currency", PlanInput{Code: "B", Name: "Basic", Currency: "TAKA"}, "currency"},
		{"interval", PlanInput{Code: "B", Name: "Basic", Interval: "weekly"}, "interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreatePlan(context.Background(), tt.in)
			hasField(t, err, tt.field)
		})
	}
}

func TestService_ProcessPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	basic := f.plan(t, "BASIC", "999")
	odd := f.plan(t, "ODD", "10.51")
	poor := f.plan(t, "POOR", "20.52")

	tests := []struct {
		name     string
		plan     *Plan
		method   string
		success  bool
		code     string
		provider string
	}{
		{"bkash", basic, "bKash", true, "", ProviderSSLCommerz},
		{"card", basic, codes.PayCard, true, "", ProviderStripe},
		{"declined", odd, codes.PayStripe, false, CodeCardDeclined, ProviderStripe},
		{"insufficient", poor, codes.PayNagad, false, CodeInsufficientFunds, ProviderSSLCommerz},
		{"cash is not a gateway", basic, codes.PayCash, false, CodeInvalidMethod, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.svc.ProcessPayment(ctx, tt.plan.ID, tt.method)
			if err != nil {
				t.Fatalf("ProcessPayment: %v", err)
			}
			if res.Success != tt.success || res.ErrorCode != tt.code || res.Provider != tt.provider {
				t.Errorf("unexpected result %+v", res)
			}
			if tt.success && res.TransactionID == "" {
				t.Error("missing transaction id")
			}
			if !tt.success && res.Error == "" {
				t.Error("missing error message")
			}
		})
	}

	items, total, err := f.svc.SearchPayments(ctx, map[string]string{"plan_id": basic.ID.String()}, 10, 0)
	if err != nil {
		t.Fatalf("SearchPayments: %v", err)
	}
	if total != 3 || !items[0].Amount.Equal(dec("999")) || items[0].Currency != "BDT" {
		t.Errorf("expected 3 recorded attempts for BASIC, got %d", total)
	}
	_, failed, _ := f.svc.SearchPayments(ctx, map[string]string{"success": "false"}, 10, 0)
	if failed != 3 {
		t.Errorf("expected 3 failed attempts, got %d", failed)
	}
}

func TestService_ProcessPayment_InactivePlan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.plan(t, "OLD", "100")
	if _, err := f.svc.DeactivatePlan(ctx, p.ID); err != nil {
		t.Fatalf("DeactivatePlan: %v", err)
	}

	res, err := f.svc.ProcessPayment(ctx, p.ID, codes.PayCard)
	if err != nil || res.Success || res.ErrorCode != CodePlanInactive {
		t.Errorf("expected PLAN_INACTIVE, got %+v, %v", res, err)
	}
	if _, err := f.svc.ProcessPayment(ctx, uuid.New(), codes.PayCard); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("expected not found for unknown plan, got %v", err)
	}
}

func TestService_ProcessPayment_Timeout(t *testing.T) {
	f := newFixture(t, NewSandbox(ProviderStripe, time.Second, codes.PayCard))
	p := f.plan(t, "PRO", "2500")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	res, err := f.svc.ProcessPayment(ctx, p.ID, codes.PayCard)
	if err != nil {
		t.Fatalf("ProcessPayment: %v", err)
	}
	if res.Success || res.ErrorCode != CodeGatewayTimeout {
		t.Errorf("expected GATEWAY_TIMEOUT, got %+v", res)
	}

	items, total, _ := f.svc.SearchPayments(context.Background(), map[string]string{"provider": ProviderStripe}, 10, 0)
	if total != 1 || items[0].ErrorCode != CodeGatewayTimeout {
		t.Errorf("timed out attempt should be recorded, got %d", total)
	}

	// only stripe is configured here
	res, _ = f.svc.ProcessPayment(context.Background(), p.ID, codes.PayBkash)
	if res.ErrorCode != CodeInvalidMethod {
		t.Errorf("expected INVALID_METHOD without an sslcommerz gateway, got %+v", res)
	}
}

func TestInvoiceCSVRow(t *testing.T) {
	paid := testNow
	due := datex.MustParse("2024-05-10")
	row := invoiceCSVRow(&Invoice{
		InvoiceNumber: "INV-20240502-0001", Status: codes.InvoicePaid, IssuedAt: testNow,
		DueDate: &due, PaidAt: &paid, Subtotal: dec("10"), TotalDiscount: decimal.Zero, GrandTotal: dec("10"),
		Lines: []*InvoiceLine{{}, {}},
	})
	if len(row) != len(invoiceCSVHeader) {
		t.Fatalf("row has %d columns, header %d", len(row), len(invoiceCSVHeader))
	}
	if got := strings.Join(row[:9], ","); got != "INV-20240502-0001,paid,2024-05-02T10:00:00Z,2024-05-10,2024-05-02T10:00:00Z,10.00,0.00,10.00,2" {
		t.Errorf("unexpected row %s", got)
	}
}
