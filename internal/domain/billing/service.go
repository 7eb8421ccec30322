package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/pharmadesk/pharmadesk/internal/calc/pricing"
	"github.com/pharmadesk/pharmadesk/internal/domain/patient"
	"github.com/pharmadesk/pharmadesk/internal/domain/sales"
	"github.com/pharmadesk/pharmadesk/internal/platform/db"
	"github.com/pharmadesk/pharmadesk/internal/platform/metrics"
	"github.com/pharmadesk/pharmadesk/internal/platform/validation"
	"github.com/pharmadesk/pharmadesk/pkg/codes"
	"github.com/pharmadesk/pharmadesk/pkg/datex"
)

const exportLimit = 10000

// Sales resolves the sale behind a from-sale invoice.
type Sales interface {
	Get(ctx context.Context, id uuid.UUID) (*sales.Sale, error)
}

// Patients resolves the optional billed patient.
type Patients interface {
	Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

// Options configures the optional collaborators of a Service.
type Options struct {
	Patients Patients
	Sales    Sales
	// Gateways are looked up by Name(). DefaultGateways(0) is used when empty.
	Gateways []PaymentGateway
	Metrics  *metrics.BusinessMetrics
	Currency string
}

type Service struct {
	invoices InvoiceRepository
	plans    PlanRepository
	payments PaymentRepository
	tx       db.Transactor
	patients Patients
	sales    Sales
	gateways map[string]PaymentGateway
	metrics  *metrics.BusinessMetrics
	currency string
	now      func() time.Time
}

func NewService(invoices InvoiceRepository, plans PlanRepository, payments PaymentRepository, tx db.Transactor, opts Options) *Service {
	if tx == nil {
		tx = db.NoopTransactor{}
	}
	if len(opts.Gateways) == 0 {
		opts.Gateways = DefaultGateways(0)
	}
	if opts.Currency == "" {
		opts.Currency = "BDT"
	}
	gateways := make(map[string]PaymentGateway, len(opts.Gateways))
	for _, g := range opts.Gateways {
		gateways[g.Name()] = g
	}
	return &Service{
		invoices: invoices,
		plans:    plans,
		payments: payments,
		tx:       tx,
		patients: opts.Patients,
		sales:    opts.Sales,
		gateways: gateways,
		metrics:  opts.Metrics,
		currency: strings.ToUpper(opts.Currency),
		now:      time.Now,
	}
}

// -- invoices --

// CreateInvoice prices the lines and stores the invoice under the next
// number of the issue day.
func (s *Service) CreateInvoice(ctx context.Context, in InvoiceInput) (*Invoice, error) {
	inv, err := s.buildInvoice(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *Service) buildInvoice(ctx context.Context, in InvoiceInput) (*Invoice, error) {
	errs := validation.Errors{}
	now := s.now().UTC()

	status := strings.ToLower(strings.TrimSpace(in.Status))
	if status == "" {
		status = codes.InvoicePending
	}
	errs.OneOf("status", status, codes.InvoiceStatuses)

	if in.PatientID != nil && s.patients != nil {
		if _, err := s.patients.Get(ctx, *in.PatientID); err != nil {
			if !errors.Is(err, db.ErrNotFound) {
				return nil, fmt.Errorf("lookup patient: %w", err)
			}
			errs.Add("patient_id", "patient not found")
		}
	}
	if in.DueDate != nil && in.DueDate.Before(datex.Of(now)) {
		errs.Add("due_date", "must not be before the issue date")
	}
	if len(in.Lines) == 0 {
		errs.Add("lines", "at least one line is required")
	}

	inv := &Invoice{
		PatientID: in.PatientID,
		Status:    status,
		IssuedAt:  now,
		DueDate:   in.DueDate,
		Notes:     strings.TrimSpace(in.Notes),
	}
	if status == codes.InvoicePaid {
		inv.PaidAt = &now
	}
	for i, l := range in.Lines {
		line := &InvoiceLine{
			Description: strings.TrimSpace(l.Description),
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Discount:    l.Discount,
		}
		errs.Required(validation.Field("lines", i, "description"), line.Description)
		if err := pricing.ValidateLine(line.line()); err != nil {
			errs.Add(validation.Field("lines", i, lineField(err)), err.Error())
		}
		inv.Lines = append(inv.Lines, line)
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	applyTotals(inv)
	return inv, nil
}

// InvoiceFromSale bills a completed sale. The sale's global discount is
// spread over the lines so the invoice total equals the amount paid.
func (s *Service) InvoiceFromSale(ctx context.Context, saleID uuid.UUID) (*Invoice, error) {
	if s.sales == nil {
		return nil, errors.New("invoice from sale: no sales source configured")
	}
	sale, err := s.sales.Get(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if sale.Status != codes.SaleCompleted {
		return nil, validation.Errors{"sale_id": fmt.Sprintf("sale is %s", sale.Status)}
	}
	existing, err := s.invoices.GetBySale(ctx, saleID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: sale already invoiced as %s", db.ErrConflict, existing.InvoiceNumber)
	case !errors.Is(err, db.ErrNotFound):
		return nil, fmt.Errorf("lookup invoice for sale: %w", err)
	}

	paidAt := sale.CreatedAt.UTC()
	inv := &Invoice{
		PatientID: sale.PatientID,
		SaleID:    &sale.ID,
		Status:    codes.InvoicePaid,
		IssuedAt:  s.now().UTC(),
		PaidAt:    &paidAt,
		Notes:     sale.Notes,
	}
	for _, it := range sale.Items {
		inv.Lines = append(inv.Lines, &InvoiceLine{
			Description: it.Name,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Discount:    it.Discount,
		})
	}
	spreadDiscount(inv.Lines, sale.GlobalDiscount)
	applyTotals(inv)

	if err := s.persist(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *Service) persist(ctx context.Context, inv *Invoice) error {
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		number, err := s.invoices.NextNumber(ctx, datex.Of(inv.IssuedAt))
		if err != nil {
			return fmt.Errorf("next invoice number: %w", err)
		}
		inv.InvoiceNumber = number
		return s.invoices.Create(ctx, inv)
	})
	if err != nil {
		return err
	}
	s.metrics.ObserveInvoice(inv.Status)
	log.Info().
		Str("invoice", inv.InvoiceNumber).
		Str("status", inv.Status).
		Str("grand_total", inv.GrandTotal.StringFixed(2)).
		Msg("invoice created")
	return nil
}

// spreadDiscount adds amount to line discounts starting from the last line,
// never taking a line below zero.
func spreadDiscount(lines []*InvoiceLine, amount decimal.Decimal) {
	for i := len(lines) - 1; i >= 0 && amount.IsPositive(); i-- {
		l := lines[i]
		room := pricing.Gross(l.line()).Sub(l.Discount)
		if !room.IsPositive() {
			continue
		}
		take := decimal.Min(room, amount)
		l.Discount = l.Discount.Add(take)
		amount = amount.Sub(take)
	}
}

func applyTotals(inv *Invoice) {
	lines := make([]pricing.Line, len(inv.Lines))
	for i, l := range inv.Lines {
		l.LineTotal = pricing.Round(pricing.LineTotal(l.line()))
		lines[i] = l.line()
	}
	sum := pricing.Totals(lines)
	inv.Subtotal = pricing.Round(sum.Subtotal)
	inv.TotalDiscount = pricing.Round(sum.TotalDiscount)
	inv.GrandTotal = pricing.Round(sum.GrandTotal)
}

// lineField maps a pricing validation error to the line field it concerns.
func lineField(err error) string {
	switch {
	case errors.Is(err, pricing.ErrInvalidQuantity):
		return "quantity"
	case errors.Is(err, pricing.ErrNegativePrice):
		return "unit_price"
	default:
		return "discount"
	}
}

func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.invoices.GetByID(ctx, id)
}

func (s *Service) SearchInvoices(ctx context.Context, params map[string]string, limit, offset int) ([]*Invoice, int, error) {
	if err := validateInvoiceParams(params); err != nil {
		return nil, 0, err
	}
	return s.invoices.Search(ctx, params, limit, offset)
}

func (s *Service) ExportInvoices(ctx context.Context, params map[string]string) ([]*Invoice, error) {
	if err := validateInvoiceParams(params); err != nil {
		return nil, err
	}
	items, _, err := s.invoices.Search(ctx, params, exportLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("export invoices: %w", err)
	}
	return items, nil
}

func validateInvoiceParams(params map[string]string) error {
	errs := validation.Errors{}
	for _, k := range []string{"from", "to"} {
		if v := params[k]; v != "" {
			if _, err := datex.Parse(v); err != nil {
				errs.Add(k, "must be YYYY-MM-DD")
			}
		}
	}
	for _, k := range []string{"patient_id", "sale_id"} {
		if v := params[k]; v != "" {
			if _, err := uuid.Parse(v); err != nil {
				errs.Add(k, "must be a UUID")
			}
		}
	}
	errs.OneOf("status", params["status"], codes.InvoiceStatuses)
	return errs.Err()
}

// SetStatus moves an invoice to any status. Moving to paid stamps paid_at
// unless it is already set.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status string) (*Invoice, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	errs := validation.Errors{}
	errs.Required("status", status)
	errs.OneOf("status", status, codes.InvoiceStatuses)
	if err := errs.Err(); err != nil {
		return nil, err
	}
	current, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	var paidAt *time.Time
	if status == codes.InvoicePaid && current.PaidAt == nil {
		now := s.now().UTC()
		paidAt = &now
	}
	return s.changeStatus(ctx, id, status, paidAt)
}

// MarkPaid settles a pending, draft or overdue invoice.
func (s *Service) MarkPaid(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	current, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch current.Status {
	case codes.InvoicePaid:
		return nil, validation.Errors{"status": "invoice is already paid"}
	case codes.InvoiceCancelled:
		return nil, validation.Errors{"status": "cancelled invoices cannot be paid"}
	}
	now := s.now().UTC()
	inv, err := s.changeStatus(ctx, id, codes.InvoicePaid, &now, codes.InvoicePaid, codes.InvoiceCancelled)
	if errors.Is(err, ErrStatusChanged) {
		return nil, validation.Errors{"status": "invoice can no longer be paid"}
	}
	return inv, err
}

func (s *Service) changeStatus(ctx context.Context, id uuid.UUID, status string, paidAt *time.Time, unless ...string) (*Invoice, error) {
	inv, err := s.invoices.SetStatus(ctx, id, status, paidAt, unless)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveInvoice(status)
	log.Info().Str("invoice", inv.InvoiceNumber).Str("status", status).Msg("invoice status changed")
	return inv, nil
}

// -- plans --

func (s *Service) CreatePlan(ctx context.Context, in PlanInput) (*Plan, error) {
	p := s.planFrom(in)
	p.Active = true
	if err := validatePlan(p); err != nil {
		return nil, err
	}
	if err := s.plans.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetPlan(ctx context.Context, id uuid.UUID) (*Plan, error) {
	return s.plans.GetByID(ctx, id)
}

// UpdatePlan replaces the plan's fields. Active is kept when omitted.
func (s *Service) UpdatePlan(ctx context.Context, id uuid.UUID, in PlanInput) (*Plan, error) {
	existing, err := s.plans.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p := s.planFrom(in)
	p.ID = id
	p.Active = existing.Active
	if in.Active != nil {
		p.Active = *in.Active
	}
	if err := validatePlan(p); err != nil {
		return nil, err
	}
	if err := s.plans.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// DeactivatePlan hides a plan from checkout. Past payments keep their link.
func (s *Service) DeactivatePlan(ctx context.Context, id uuid.UUID) (*Plan, error) {
	p, err := s.plans.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return p, nil
	}
	p.Active = false
	if err := s.plans.Update(ctx, p); err != nil {
		return nil, err
	}
	log.Info().Str("plan", p.Code).Msg("plan deactivated")
	return p, nil
}

func (s *Service) SearchPlans(ctx context.Context, params map[string]string, limit, offset int) ([]*Plan, int, error) {
	errs := validation.Errors{}
	errs.OneOf("interval", params["interval"], codes.Intervals)
	errs.OneOf("active", params["active"], boolValues)
	if err := errs.Err(); err != nil {
		return nil, 0, err
	}
	return s.plans.Search(ctx, params, limit, offset)
}

var boolValues = map[string]bool{"true": true, "false": true}

func (s *Service) planFrom(in PlanInput) *Plan {
	p := &Plan{
		Code:     strings.ToUpper(strings.TrimSpace(in.Code)),
		Name:     strings.TrimSpace(in.Name),
		Price:    in.Price,
		Currency: strings.ToUpper(strings.TrimSpace(in.Currency)),
		Interval: strings.ToLower(strings.TrimSpace(in.Interval)),
		Features: []string{},
	}
	if p.Currency == "" {
		p.Currency = s.currency
	}
	if p.Interval == "" {
		p.Interval = codes.IntervalMonthly
	}
	for _, f := range in.Features {
		if f = strings.TrimSpace(f); f != "" {
			p.Features = append(p.Features, f)
		}
	}
	return p
}

func validatePlan(p *Plan) error {
	errs := validation.Errors{}
	errs.Required("code", p.Code)
	errs.Required("name", p.Name)
	if p.Price.IsNegative() {
		errs.Add("price", "must not be negative")
	}
	if len(p.Currency) != 3 {
		errs.Add("currency", "must be a 3-letter code")
	}
	errs.OneOf("interval", p.Interval, codes.Intervals)
	return errs.Err()
}

// -- payments --

// ProcessPayment charges the plan's price through the provider that serves
// method. Declines and timeouts come back in the result; every attempt is
// recorded as a Payment even when the caller has gone away.
func (s *Service) ProcessPayment(ctx context.Context, planID uuid.UUID, method string) (*PaymentResult, error) {
	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	method = strings.ToLower(strings.TrimSpace(method))
	pay := &Payment{
		PlanID:   plan.ID,
		Method:   method,
		Amount:   plan.Price,
		Currency: plan.Currency,
	}

	var res ChargeResult
	if !plan.Active {
		res = failure(CodePlanInactive)
	} else if provider, ok := ProviderFor(method); !ok || s.gateways[provider] == nil {
		res = failure(CodeInvalidMethod)
	} else {
		pay.Provider = provider
		res, err = s.gateways[provider].Charge(ctx, ChargeRequest{
			Amount:    plan.Price,
			Currency:  plan.Currency,
			Method:    method,
			Reference: plan.Code,
		})
		if err != nil {
			if res, err = timeoutResult(err); err != nil {
				return nil, err
			}
		}
	}

	pay.Success = res.OK()
	pay.TransactionID = res.TransactionID
	pay.ErrorCode = res.ErrorCode
	pay.Error = res.Message
	if err := s.payments.Create(context.WithoutCancel(ctx), pay); err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}

	label := pay.Provider
	if label == "" {
		label = "none"
	}
	s.metrics.ObservePayment(label, pay.Success)
	log.Info().
		Str("plan", plan.Code).
		Str("provider", label).
		Str("method", method).
		Bool("success", pay.Success).
		Str("error_code", pay.ErrorCode).
		Msg("payment processed")

	return &PaymentResult{
		Success:       pay.Success,
		PaymentID:     pay.ID,
		Provider:      pay.Provider,
		TransactionID: pay.TransactionID,
		Error:         pay.Error,
		ErrorCode:     pay.ErrorCode,
	}, nil
}

func (s *Service) SearchPayments(ctx context.Context, params map[string]string, limit, offset int) ([]*Payment, int, error) {
	errs := validation.Errors{}
	if v := params["plan_id"]; v != "" {
		if _, err := uuid.Parse(v); err != nil {
			errs.Add("plan_id", "must be a UUID")
		}
	}
	errs.OneOf("success", params["success"], boolValues)
	if err := errs.Err(); err != nil {
		return nil, 0, err
	}
	return s.payments.Search(ctx, params, limit, offset)
}
