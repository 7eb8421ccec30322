package sales

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
	"github.com/pharmadesk/pharmadesk/internal/domain/inventory"
	"github.com/pharmadesk/pharmadesk/internal/domain/patient"
	"github.com/pharmadesk/pharmadesk/internal/platform/db"
	"github.com/pharmadesk/pharmadesk/internal/platform/metrics"
	"github.com/pharmadesk/pharmadesk/internal/platform/validation"
	"github.com/pharmadesk/pharmadesk/internal/platform/websocket"
	"github.com/pharmadesk/pharmadesk/pkg/codes"
	"github.com/pharmadesk/pharmadesk/pkg/datex"
)

const exportLimit = 10000

// Stock is the inventory side of a sale.
type Stock interface {
	Find(ctx context.Context, id uuid.UUID) (*inventory.Medicine, error)
	Consume(ctx context.Context, id uuid.UUID, qty int, reference string) error
	Restock(ctx context.Context, id uuid.UUID, qty int, reference string) error
}

// Patients resolves the optional buyer.
type Patients interface {
	Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

// Options configures the optional collaborators of a Service.
type Options struct {
	Patients Patients
	Events   websocket.Publisher
	Metrics  *metrics.BusinessMetrics
	Currency string
	// ClinicName heads printed receipts.
	ClinicName string
	// Location sets calendar-day boundaries for summaries. Defaults to UTC.
	Location *time.Location
}

type Service struct {
	repo     Repository
	stock    Stock
	tx       db.Transactor
	patients Patients
	events   websocket.Publisher
	metrics  *metrics.BusinessMetrics
	currency string
	clinic   string
	loc      *time.Location
	now      func() time.Time
}

func NewService(repo Repository, stock Stock, tx db.Transactor, opts Options) *Service {
	if tx == nil {
		tx = db.NoopTransactor{}
	}
	if opts.Events == nil {
		opts.Events = websocket.Discard{}
	}
	if opts.Currency == "" {
		opts.Currency = "BDT"
	}
	if opts.ClinicName == "" {
		opts.ClinicName = "PharmaDesk"
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Service{
		repo:     repo,
		stock:    stock,
		tx:       tx,
		patients: opts.Patients,
		events:   opts.Events,
		metrics:  opts.Metrics,
		currency: opts.Currency,
		clinic:   opts.ClinicName,
		loc:      opts.Location,
		now:      time.Now,
	}
}

// Quote prices a cart without persisting it or touching stock.
func (s *Service) Quote(ctx context.Context, in SaleInput) (*Sale, error) {
	sale, errs, err := s.build(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return sale, nil
}

// CreateSale prices the cart, then persists the sale and consumes stock for
// every line in one transaction.
func (s *Service) CreateSale(ctx context.Context, in SaleInput) (*Sale, error) {
	sale, err := s.Quote(ctx, in)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, sale); err != nil {
			return err
		}
		for i, it := range sale.Items {
			if err := s.stock.Consume(ctx, it.MedicineID, it.Quantity, sale.ID.String()); err != nil {
				if errors.Is(err, inventory.ErrInsufficientStock) {
					return validation.Errors{validation.Field("items", i, "quantity"): "exceeds available stock"}
				}
				return fmt.Errorf("consume %s: %w", it.MedicineID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	payable, _ := sale.Payable.Float64()
	s.metrics.ObserveSale(sale.PaymentMethod, sale.Status, s.currency, payable)
	s.publish(ctx, sale)
	log.Info().
		Str("sale_id", sale.ID.String()).
		Str("payable", sale.Payable.StringFixed(2)).
		Int("items", len(sale.Items)).
		Msg("sale created")
	return sale, nil
}

func (s *Service) publish(ctx context.Context, sale *Sale) {
	ev, err := websocket.NewEvent(websocket.TopicSaleCreated, db.ClinicFromContext(ctx), map[string]interface{}{
		"sale_id":        sale.ID,
		"payable":        sale.Payable,
		"payment_method": sale.PaymentMethod,
		"items":          len(sale.Items),
	})
	if err == nil {
		err = s.events.Publish(ctx, ev)
	}
	if err != nil {
		log.Warn().Err(err).Str("sale_id", sale.ID.String()).Msg("publish sale event")
	}
}

// build resolves medicines and computes totals. Field problems are collected
// in errs; err is reserved for infrastructure failures.
func (s *Service) build(ctx context.Context, in SaleInput) (*Sale, validation.Errors, error) {
	errs := validation.Errors{}

	method := strings.ToLower(strings.TrimSpace(in.PaymentMethod))
	if method == "" {
		method = codes.PayCash
	}
	errs.OneOf("payment_method", method, codes.SaleMethods)

	if in.PatientID != nil && s.patients != nil {
		if _, err := s.patients.Get(ctx, *in.PatientID); err != nil {
			if !errors.Is(err, db.ErrNotFound) {
				return nil, nil, fmt.Errorf("lookup patient: %w", err)
			}
			errs.Add("patient_id", "patient not found")
		}
	}

	if len(in.Items) == 0 {
		errs.Add("items", "at least one item is required")
	}

	sale := &Sale{
		PatientID:      in.PatientID,
		PaymentMethod:  method,
		GlobalDiscount: in.GlobalDiscount,
		Status:         codes.SaleCompleted,
		Notes:          strings.TrimSpace(in.Notes),
	}

	// wanted sums quantities per medicine so split lines cannot oversell
	wanted := make(map[uuid.UUID]int)
	lines := make([]pricing.Line, 0, len(in.Items))

	for i, item := range in.Items {
		field := func(name string) string { return validation.Field("items", i, name) }

		if item.MedicineID == uuid.Nil {
			errs.Add(field("medicine_id"), "is required")
			continue
		}
		med, err := s.stock.Find(ctx, item.MedicineID)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				errs.Add(field("medicine_id"), "medicine not found")
				continue
			}
			return nil, nil, fmt.Errorf("lookup medicine %s: %w", item.MedicineID, err)
		}
		if !med.Active {
			errs.Add(field("medicine_id"), "medicine is inactive")
		}

		it := &SaleItem{
			MedicineID: med.ID,
			Name:       strings.TrimSpace(item.Name),
			Quantity:   item.Quantity,
			UnitPrice:  med.UnitPrice,
			Discount:   item.Discount,
		}
		if it.Name == "" {
			it.Name = med.Name
		}
		if item.UnitPrice != nil {
			it.UnitPrice = *item.UnitPrice
		}

		if err := pricing.ValidateLine(it.line()); err != nil {
			errs.Add(field(lineField(err)), err.Error())
		} else {
			wanted[med.ID] += it.Quantity
			if wanted[med.ID] > med.StockQty {
				errs.Addf(field("quantity"), "exceeds available stock (%d)", med.StockQty)
			}
		}

		it.LineTotal = pricing.LineTotal(it.line())
		sale.Items = append(sale.Items, it)
		lines = append(lines, it.line())
	}

	sum := pricing.Totals(lines)
	sale.Subtotal = sum.Subtotal
	sale.TotalDiscount = sum.TotalDiscount
	sale.GrandTotal = sum.GrandTotal

	payable, err := pricing.Payable(sum, in.GlobalDiscount)
	switch {
	case errors.Is(err, pricing.ErrNegativeDiscount):
		errs.Add("global_discount", "must not be negative")
	case errors.Is(err, pricing.ErrDiscountExceedsTotal):
		errs.Add("global_discount", "exceeds grand total")
	}
	sale.Payable = pricing.Round(payable)
	return sale, errs, nil
}

// lineField maps a pricing validation error to the item field it concerns.
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

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Sale, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Sale, int, error) {
	if err := validateParams(params); err != nil {
		return nil, 0, err
	}
	return s.repo.Search(ctx, params, limit, offset)
}

func validateParams(params map[string]string) error {
	errs := validation.Errors{}
	for _, k := range []string{"from", "to"} {
		if v := params[k]; v != "" {
			if _, err := datex.Parse(v); err != nil {
				errs.Add(k, "must be YYYY-MM-DD")
			}
		}
	}
	if v := params["patient_id"]; v != "" {
		if _, err := uuid.Parse(v); err != nil {
			errs.Add("patient_id", "must be a UUID")
		}
	}
	errs.OneOf("status", params["status"], codes.SaleStatuses)
	return errs.Err()
}

// Void reverses a completed sale and returns its stock with return
// movements. Refund marks the sale refunded instead of void.
func (s *Service) Void(ctx context.Context, id uuid.UUID, in VoidInput) (*Sale, error) {
	sale, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sale.Status != codes.SaleCompleted {
		return nil, validation.Errors{"status": fmt.Sprintf("sale is already %s", sale.Status)}
	}
	status := codes.SaleVoid
	if in.Refund {
		status = codes.SaleRefunded
	}

	// the conditional transition makes a concurrent void lose before it
	// restocks anything
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Transition(ctx, id, codes.SaleCompleted, status); err != nil {
			return err
		}
		for _, it := range sale.Items {
			if err := s.stock.Restock(ctx, it.MedicineID, it.Quantity, sale.ID.String()); err != nil {
				return fmt.Errorf("restock %s: %w", it.MedicineID, err)
			}
		}
		return nil
	})
	if errors.Is(err, ErrStatusChanged) {
		return nil, validation.Errors{"status": "sale is no longer completed"}
	}
	if err != nil {
		return nil, err
	}

	sale.Status = status
	s.metrics.ObserveSale(sale.PaymentMethod, status, s.currency, 0)
	log.Info().Str("sale_id", id.String()).Str("status", status).Str("reason", in.Reason).Msg("sale reversed")
	return sale, nil
}

// Summary totals completed sales on the calendar day of on, in the
// service's location.
func (s *Service) Summary(ctx context.Context, on time.Time) (DaySummary, error) {
	y, m, d := on.In(s.loc).Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, s.loc)
	return s.repo.Summary(ctx, from, from.AddDate(0, 0, 1))
}

// Today is Summary for the current day.
func (s *Service) Today(ctx context.Context) (DaySummary, error) {
	return s.Summary(ctx, s.now())
}

func (s *Service) Export(ctx context.Context, params map[string]string) ([]*Sale, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}
	items, _, err := s.repo.Search(ctx, params, exportLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("export sales: %w", err)
	}
	return items, nil
}

// Receipt renders the sale as a fixed-width text receipt.
func (s *Service) Receipt(ctx context.Context, id uuid.UUID) (string, error) {
	sale, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return RenderReceipt(sale, s.clinic, s.currency), nil
}

const receiptWidth = 42

// RenderReceipt formats a sale for printing.
func RenderReceipt(sale *Sale, clinic, currency string) string {
	var b strings.Builder
	rule := strings.Repeat("-", receiptWidth) + "\n"

	fmt.Fprintf(&b, "%s\n", center(clinic, receiptWidth))
	fmt.Fprintf(&b, "%s\n", center("SALES RECEIPT", receiptWidth))
	b.WriteString(rule)
	fmt.Fprintf(&b, "Receipt: %s\n", strings.ToUpper(sale.ID.String()[:8]))
	fmt.Fprintf(&b, "Date:    %s\n", sale.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Payment: %s\n", sale.PaymentMethod)
	if sale.Status != codes.SaleCompleted {
		fmt.Fprintf(&b, "Status:  %s\n", strings.ToUpper(sale.Status))
	}
	b.WriteString(rule)

	for _, it := range sale.Items {
		fmt.Fprintf(&b, "%s\n", truncate(it.Name, receiptWidth))
		qty := fmt.Sprintf("  %d x %s", it.Quantity, it.UnitPrice.StringFixed(2))
		b.WriteString(amountLine(qty, it.Quantity, it.UnitPrice))
		if it.Discount.IsPositive() {
			b.WriteString(pad("  discount", "-"+it.Discount.StringFixed(2)))
		}
	}
	b.WriteString(rule)
	b.WriteString(pad("Subtotal", sale.Subtotal.StringFixed(2)))
	b.WriteString(pad("Item discounts", "-"+sale.TotalDiscount.StringFixed(2)))
	b.WriteString(pad("Grand total", sale.GrandTotal.StringFixed(2)))
	if sale.GlobalDiscount.IsPositive() {
		b.WriteString(pad("Discount", "-"+sale.GlobalDiscount.StringFixed(2)))
	}
	b.WriteString(pad("PAYABLE ("+currency+")", sale.Payable.StringFixed(2)))
	b.WriteString(rule)
	fmt.Fprintf(&b, "%s\n", center("Thank you", receiptWidth))
	return b.String()
}

func amountLine(label string, qty int, price decimal.Decimal) string {
	return pad(label, price.Mul(decimal.NewFromInt(int64(qty))).StringFixed(2))
}

func pad(label, amount string) string {
	gap := receiptWidth - len([]rune(label)) - len(amount)
	if gap < 1 {
		gap = 1
	}
	return label + strings.Repeat(" ", gap) + amount + "\n"
}

func center(s string, width int) string {
	n := len([]rune(s))
	if n >= width {
		return s
	}
	return strings.Repeat(" ", (width-n)/2) + s
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "~"
}
