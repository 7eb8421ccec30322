package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pharmadesk/pharmadesk/internal/platform/db"
	"github.com/pharmadesk/pharmadesk/internal/platform/metrics"
	"github.com/pharmadesk/pharmadesk/internal/platform/validation"
	"github.com/pharmadesk/pharmadesk/internal/platform/websocket"
	"github.com/pharmadesk/pharmadesk/pkg/codes"
	"github.com/pharmadesk/pharmadesk/pkg/datex"
)

const (
	exportLimit        = 10000
	defaultExpiryDays  = 30
	maxExpiryDays      = 365
	openingStockReason = "opening stock"
)

// Options configures the optional collaborators of a Service.
type Options struct {
	Events  websocket.Publisher
	Metrics *metrics.BusinessMetrics
	// LowStockAlerts enables stock.low events.
	LowStockAlerts bool
}

type Service struct {
	repo    Repository
	tx      db.Transactor
	events  websocket.Publisher
	metrics *metrics.BusinessMetrics
	alerts  bool
	now     func() time.Time
}

func NewService(repo Repository, tx db.Transactor, opts Options) *Service {
	if tx == nil {
		tx = db.NoopTransactor{}
	}
	if opts.Events == nil {
		opts.Events = websocket.Discard{}
	}
	return &Service{
		repo:    repo,
		tx:      tx,
		events:  opts.Events,
		metrics: opts.Metrics,
		alerts:  opts.LowStockAlerts,
		now:     time.Now,
	}
}

// Create inserts a medicine. StockQty is the opening stock; batches in the
// payload are added as purchases and any opening stock they do not cover
// is recorded as an adjustment. New medicines start active.
func (s *Service) Create(ctx context.Context, m *Medicine) error {
	normalize(m)
	m.Active = true
	errs := s.validate(m)
	if m.StockQty < 0 {
		errs.Add("stock_qty", "must not be negative")
	}
	for i, b := range m.Batches {
		s.validateBatch(errs, "batches", i, b)
	}
	if err := errs.Err(); err != nil {
		return err
	}

	opening := m.StockQty
	batches := m.Batches
	m.StockQty = 0
	m.Batches = nil

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, m); err != nil {
			return err
		}
		covered := 0
		for _, b := range batches {
			if err := s.addBatch(ctx, m.ID, b); err != nil {
				return err
			}
			covered += b.Remaining
			m.Batches = append(m.Batches, b)
		}
		if rest := opening - covered; rest > 0 {
			if _, err := s.move(ctx, m.ID, codes.MovementAdjustmentIn, rest, openingStockReason, ""); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	fresh, err := s.repo.GetByID(ctx, m.ID)
	if err != nil {
		return err
	}
	m.StockQty = fresh.StockQty
	m.UpdatedAt = fresh.UpdatedAt
	return nil
}

// Get returns the medicine with its batches.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Medicine, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Batches, err = s.repo.ListBatches(ctx, id); err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return m, nil
}

// Find returns the medicine without batches.
func (s *Service) Find(ctx context.Context, id uuid.UUID) (*Medicine, error) {
	return s.repo.GetByID(ctx, id)
}

// Update replaces the catalog fields. Stock is left untouched and the stored
// active flag is kept when active is nil.
func (s *Service) Update(ctx context.Context, m *Medicine, active *bool) error {
	normalize(m)
	if err := s.validate(m).Err(); err != nil {
		return err
	}
	if active != nil {
		m.Active = *active
	} else {
		cur, err := s.repo.GetByID(ctx, m.ID)
		if err != nil {
			return err
		}
		m.Active = cur.Active
	}
	return s.repo.Update(ctx, m)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Medicine, int, error) {
	return s.repo.Search(ctx, params, limit, offset)
}

func (s *Service) LowStock(ctx context.Context) ([]*Medicine, error) {
	return s.repo.LowStock(ctx)
}

func (s *Service) CountLowStock(ctx context.Context) (int, error) {
	items, err := s.repo.LowStock(ctx)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// AdjustStock applies a manual movement. Out types draw batches first expiry
// first; in types add stock without touching batches.
func (s *Service) AdjustStock(ctx context.Context, id uuid.UUID, adj StockAdjustment) (*Medicine, error) {
	adj.Type = strings.ToLower(strings.TrimSpace(adj.Type))
	adj.Reason = strings.TrimSpace(adj.Reason)

	errs := validation.Errors{}
	errs.Required("type", adj.Type)
	errs.OneOf("type", adj.Type, codes.MovementTypes)
	if adj.Quantity <= 0 {
		errs.Add("quantity", "must be greater than zero")
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	var med *Medicine
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		med, err = s.move(ctx, id, adj.Type, adj.Quantity, adj.Reason, "")
		return err
	})
	if err != nil {
		return nil, stockError(err)
	}
	if codes.IsOutMovement(adj.Type) {
		s.checkLowStock(ctx, med)
	}
	return med, nil
}

// AddBatch records a received batch as a purchase.
func (s *Service) AddBatch(ctx context.Context, medicineID uuid.UUID, b *Batch) error {
	errs := validation.Errors{}
	s.validateBatch(errs, "", 0, b)
	if err := errs.Err(); err != nil {
		return err
	}
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.addBatch(ctx, medicineID, b)
	})
}

func (s *Service) addBatch(ctx context.Context, medicineID uuid.UUID, b *Batch) error {
	b.MedicineID = medicineID
	if err := s.repo.AddBatch(ctx, b); err != nil {
		return err
	}
	if b.Remaining == 0 {
		return nil
	}
	_, err := s.move(ctx, medicineID, codes.MovementPurchase, b.Remaining, "batch received", b.BatchNumber)
	return err
}

func (s *Service) ListBatches(ctx context.Context, medicineID uuid.UUID) ([]*Batch, error) {
	if _, err := s.repo.GetByID(ctx, medicineID); err != nil {
		return nil, err
	}
	return s.repo.ListBatches(ctx, medicineID)
}

// Consume takes qty units out for a sale and draws batches first expiry first.
func (s *Service) Consume(ctx context.Context, id uuid.UUID, qty int, reference string) error {
	if qty <= 0 {
		return validation.Errors{"quantity": "must be greater than zero"}
	}
	var med *Medicine
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		med, err = s.move(ctx, id, codes.MovementSale, qty, "", reference)
		return err
	})
	if err != nil {
		return err
	}
	s.checkLowStock(ctx, med)
	return nil
}

// Restock puts qty units back after a voided sale.
func (s *Service) Restock(ctx context.Context, id uuid.UUID, qty int, reference string) error {
	if qty <= 0 {
		return validation.Errors{"quantity": "must be greater than zero"}
	}
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		_, err := s.move(ctx, id, codes.MovementReturn, qty, "sale voided", reference)
		return err
	})
}

// move changes stock by qty in the direction of typ, updates batches and
// writes the ledger entry. It must run inside a transaction.
func (s *Service) move(ctx context.Context, id uuid.UUID, typ string, qty int, reason, reference string) (*Medicine, error) {
	out := codes.IsOutMovement(typ)
	delta := qty
	if out {
		delta = -qty
	}
	med, err := s.repo.ChangeStock(ctx, id, delta)
	if err != nil {
		return nil, err
	}

	// purchases arrive with their own batch row
	if typ != codes.MovementPurchase && typ != codes.MovementAdjustmentIn {
		batches, err := s.repo.LockBatches(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("lock batches: %w", err)
		}
		var changes []BatchChange
		if out {
			changes, _ = PlanFEFO(batches, qty)
		} else {
			changes, _ = PlanRestore(batches, qty)
		}
		for _, c := range changes {
			if err := s.repo.SetBatchRemaining(ctx, c.BatchID, c.Remaining); err != nil {
				return nil, fmt.Errorf("update batch %s: %w", c.BatchID, err)
			}
		}
	}

	mv := &StockMovement{MedicineID: id, Type: typ, Quantity: delta, Reason: reason, Reference: reference}
	if err := s.repo.AddMovement(ctx, mv); err != nil {
		return nil, fmt.Errorf("record movement: %w", err)
	}
	return med, nil
}

// checkLowStock publishes stock.low once a write has committed.
func (s *Service) checkLowStock(ctx context.Context, med *Medicine) {
	if med == nil || !s.alerts || !med.IsLowStock() {
		return
	}
	s.metrics.ObserveLowStock()
	ev, err := websocket.NewEvent(websocket.TopicStockLow, db.ClinicFromContext(ctx), map[string]interface{}{
		"medicine_id":   med.ID,
		"sku":           med.SKU,
		"name":          med.Name,
		"stock_qty":     med.StockQty,
		"reorder_level": med.ReorderLevel,
	})
	if err == nil {
		err = s.events.Publish(ctx, ev)
	}
	if err != nil {
		log.Warn().Err(err).Str("medicine_id", med.ID.String()).Msg("publish low stock event")
	}
}

// ExpiringBatches lists batches with stock left that expire within days
// (default 30, at most 365). Already expired batches are included.
func (s *Service) ExpiringBatches(ctx context.Context, days int) ([]*ExpiringBatch, error) {
	if days <= 0 {
		days = defaultExpiryDays
	}
	if days > maxExpiryDays {
		return nil, validation.Errors{"days": fmt.Sprintf("must be at most %d", maxExpiryDays)}
	}
	today := datex.Of(s.now())
	items, err := s.repo.ExpiringBatches(ctx, today.AddDays(days))
	if err != nil {
		return nil, err
	}
	for _, b := range items {
		b.DaysLeft = int(b.ExpiryDate.Sub(today.Time).Hours() / 24)
		b.Expired = b.DaysLeft < 0
	}
	return items, nil
}

func (s *Service) Movements(ctx context.Context, medicineID uuid.UUID, limit, offset int) ([]*StockMovement, int, error) {
	if _, err := s.repo.GetByID(ctx, medicineID); err != nil {
		return nil, 0, err
	}
	return s.repo.ListMovements(ctx, medicineID, limit, offset)
}

func (s *Service) Export(ctx context.Context, params map[string]string) ([]*Medicine, error) {
	items, _, err := s.repo.Search(ctx, params, exportLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("export medicines: %w", err)
	}
	return items, nil
}

func (s *Service) validate(m *Medicine) validation.Errors {
	errs := validation.Errors{}
	errs.Required("sku", m.SKU)
	errs.Required("name", m.Name)
	if m.UnitPrice.IsNegative() {
		errs.Add("unit_price", "must not be negative")
	}
	if m.ReorderLevel < 0 {
		errs.Add("reorder_level", "must not be negative")
	}
	return errs
}

func (s *Service) validateBatch(errs validation.Errors, list string, i int, b *Batch) {
	field := func(name string) string {
		if list == "" {
			return name
		}
		return validation.Field(list, i, name)
	}
	b.BatchNumber = strings.TrimSpace(b.BatchNumber)
	errs.Required(field("batch_number"), b.BatchNumber)
	if b.ExpiryDate.IsZero() {
		errs.Add(field("expiry_date"), "is required")
	}
	if b.Quantity <= 0 {
		errs.Add(field("quantity"), "must be greater than zero")
	}
	if b.Remaining == 0 && b.Quantity > 0 {
		b.Remaining = b.Quantity
	}
	if b.Remaining < 0 || b.Remaining > b.Quantity {
		errs.Add(field("remaining"), "must be between 0 and quantity")
	}
	if b.PurchasePrice.IsNegative() {
		errs.Add(field("purchase_price"), "must not be negative")
	}
}

// stockError turns an insufficient stock failure into a field error.
func stockError(err error) error {
	if errors.Is(err, ErrInsufficientStock) {
		return validation.Errors{"quantity": "exceeds available stock"}
	}
	return err
}

func normalize(m *Medicine) {
	m.SKU = strings.ToUpper(strings.TrimSpace(m.SKU))
	m.Name = strings.TrimSpace(m.Name)
	m.GenericName = strings.TrimSpace(m.GenericName)
	m.Category = strings.TrimSpace(m.Category)
	m.Unit = strings.TrimSpace(m.Unit)
	if m.Unit == "" {
		m.Unit = "pcs"
	}
}
