package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pharmadesk/pharmadesk/internal/platform/db"
	"github.com/pharmadesk/pharmadesk/pkg/datex"
)

const invoiceColumns = `id, invoice_number, patient_id, sale_id, subtotal, total_discount, grand_total,
	status, issued_at, due_date, paid_at, notes, created_at, updated_at`

const lineColumns = `id, invoice_id, position, description, quantity, unit_price, discount, line_total`

const planColumns = `id, code, name, price, currency, interval, features, active, created_at, updated_at`

const paymentColumns = `id, plan_id, provider, method, amount, currency, success, transaction_id,
	error_code, error, created_at`

var invoiceFilters = map[string]db.Filter{
	"q":          {Type: db.FilterText, Columns: []string{"invoice_number", "notes"}},
	"status":     {Type: db.FilterExact, Columns: []string{"status"}},
	"patient_id": {Type: db.FilterExact, Columns: []string{"patient_id"}},
	"sale_id":    {Type: db.FilterExact, Columns: []string{"sale_id"}},
	"from":       {Type: db.FilterDateFrom, Columns: []string{"issued_at"}},
	"to":         {Type: db.FilterDateTo, Columns: []string{"issued_at"}},
}

var invoiceSorts = map[string]string{
	"issued": "issued_at",
	"total":  "grand_total",
	"number": "invoice_number",
}

var planFilters = map[string]db.Filter{
	"q":        {Type: db.FilterText, Columns: []string{"code", "name"}},
	"interval": {Type: db.FilterExact, Columns: []string{"interval"}},
	"active":   {Type: db.FilterBool, Columns: []string{"active"}},
}

var planSorts = map[string]string{
	"price":   "price",
	"name":    "name",
	"created": "created_at",
}

var paymentFilters = map[string]db.Filter{
	"plan_id":  {Type: db.FilterExact, Columns: []string{"plan_id"}},
	"provider": {Type: db.FilterExact, Columns: []string{"provider"}},
	"success":  {Type: db.FilterBool, Columns: []string{"success"}},
}

// -- invoices --

type invoiceRepoPG struct {
	pool db.Querier
}

func NewInvoiceRepo(pool db.Querier) InvoiceRepository {
	return &invoiceRepoPG{pool: pool}
}

func (r *invoiceRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *invoiceRepoPG) NextNumber(ctx context.Context, day datex.Date) (string, error) {
	var seq int
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO invoice_counters (day, last) VALUES ($1, 1)
		ON CONFLICT (day) DO UPDATE SET last = invoice_counters.last + 1
		RETURNING last`, day).Scan(&seq)
	if err != nil {
		return "", db.MapError(err)
	}
	return formatNumber(day, seq), nil
}

// Create inserts the invoice and its lines. Callers run it inside a
// transaction together with NextNumber.
func (r *invoiceRepoPG) Create(ctx context.Context, inv *Invoice) error {
	inv.ID = uuid.New()
	q := r.conn(ctx)
	err := q.QueryRow(ctx, `
		INSERT INTO invoices (
			id, invoice_number, patient_id, sale_id, subtotal, total_discount, grand_total,
			status, issued_at, due_date, paid_at, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`,
		inv.ID, inv.InvoiceNumber, inv.PatientID, inv.SaleID, inv.Subtotal, inv.TotalDiscount,
		inv.GrandTotal, inv.Status, inv.IssuedAt, inv.DueDate, inv.PaidAt, inv.Notes,
	).Scan(&inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return db.MapError(err)
	}

	for i, l := range inv.Lines {
		l.ID = uuid.New()
		l.InvoiceID = inv.ID
		l.Position = i + 1
		_, err := q.Exec(ctx, `
			INSERT INTO invoice_lines (`+lineColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			l.ID, l.InvoiceID, l.Position, l.Description, l.Quantity, l.UnitPrice, l.Discount, l.LineTotal,
		)
		if err != nil {
			return db.MapError(err)
		}
	}
	return nil
}

func (r *invoiceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return r.getOne(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
}

func (r *invoiceRepoPG) GetBySale(ctx context.Context, saleID uuid.UUID) (*Invoice, error) {
	return r.getOne(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE sale_id = $1`, saleID)
}

func (r *invoiceRepoPG) getOne(ctx context.Context, sql string, arg interface{}) (*Invoice, error) {
	inv, err := scanInvoice(r.conn(ctx).QueryRow(ctx, sql, arg))
	if err != nil {
		return nil, err
	}
	if err := r.loadLines(ctx, []*Invoice{inv}); err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *invoiceRepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Invoice, int, error) {
	q := db.NewSearchQuery("invoices", invoiceColumns)
	q.ApplyParams(params, invoiceFilters)
	q.ApplySort(params["sort"], "issued_at DESC", invoiceSorts)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, q.CountSQL(), q.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, q.DataSQL(limit, offset), q.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	var items []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		items = append(items, inv)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if err := r.loadLines(ctx, items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *invoiceRepoPG) SetStatus(ctx context.Context, id uuid.UUID, status string, paidAt *time.Time, unless []string) (*Invoice, error) {
	if unless == nil {
		unless = []string{}
	}
	inv, err := scanInvoice(r.conn(ctx).QueryRow(ctx, `
		UPDATE invoices SET status = $2, paid_at = COALESCE($3, paid_at), updated_at = NOW()
		WHERE id = $1 AND NOT (status = ANY($4))
		RETURNING `+invoiceColumns, id, status, paidAt, unless))
	if errors.Is(err, db.ErrNotFound) && len(unless) > 0 {
		var current string
		if err := r.conn(ctx).QueryRow(ctx, `SELECT status FROM invoices WHERE id = $1`, id).Scan(&current); err != nil {
			return nil, db.MapError(err)
		}
		return nil, fmt.Errorf("%w: invoice is %s", ErrStatusChanged, current)
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadLines(ctx, []*Invoice{inv}); err != nil {
		return nil, err
	}
	return inv, nil
}

// loadLines attaches lines to every invoice in one query.
func (r *invoiceRepoPG) loadLines(ctx context.Context, invoices []*Invoice) error {
	if len(invoices) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(invoices))
	byID := make(map[uuid.UUID]*Invoice, len(invoices))
	for i, inv := range invoices {
		ids[i] = inv.ID
		byID[inv.ID] = inv
		inv.Lines = []*InvoiceLine{}
	}

	rows, err := r.conn(ctx).Query(ctx, `SELECT `+lineColumns+` FROM invoice_lines
		WHERE invoice_id = ANY($1) ORDER BY invoice_id, position`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var l InvoiceLine
		if err := rows.Scan(
			&l.ID, &l.InvoiceID, &l.Position, &l.Description, &l.Quantity,
			&l.UnitPrice, &l.Discount, &l.LineTotal,
		); err != nil {
			return err
		}
		if inv, ok := byID[l.InvoiceID]; ok {
			inv.Lines = append(inv.Lines, &l)
		}
	}
	return rows.Err()
}

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(
		&inv.ID, &inv.InvoiceNumber, &inv.PatientID, &inv.SaleID, &inv.Subtotal, &inv.TotalDiscount,
		&inv.GrandTotal, &inv.Status, &inv.IssuedAt, &inv.DueDate, &inv.PaidAt, &inv.Notes,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, db.MapError(err)
	}
	return &inv, nil
}

// -- plans --

type planRepoPG struct {
	pool db.Querier
}

func NewPlanRepo(pool db.Querier) PlanRepository {
	return &planRepoPG{pool: pool}
}

func (r *planRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *planRepoPG) Create(ctx context.Context, p *Plan) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO subscription_plans (id, code, name, price, currency, interval, features, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		p.ID, p.Code, p.Name, p.Price, p.Currency, p.Interval, p.Features, p.Active,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return db.MapError(err)
}

func (r *planRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Plan, error) {
	return scanPlan(r.conn(ctx).QueryRow(ctx, `SELECT `+planColumns+` FROM subscription_plans WHERE id = $1`, id))
}

func (r *planRepoPG) Update(ctx context.Context, p *Plan) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE subscription_plans SET
			code = $2, name = $3, price = $4, currency = $5, interval = $6,
			features = $7, active = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		p.ID, p.Code, p.Name, p.Price, p.Currency, p.Interval, p.Features, p.Active,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return db.MapError(err)
}

func (r *planRepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Plan, int, error) {
	q := db.NewSearchQuery("subscription_plans", planColumns)
	q.ApplyParams(params, planFilters)
	q.ApplySort(params["sort"], "price ASC", planSorts)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, q.CountSQL(), q.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, q.DataSQL(limit, offset), q.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func scanPlan(row pgx.Row) (*Plan, error) {
	var p Plan
	err := row.Scan(
		&p.ID, &p.Code, &p.Name, &p.Price, &p.Currency, &p.Interval, &p.Features, &p.Active,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, db.MapError(err)
	}
	if p.Features == nil {
		p.Features = []string{}
	}
	return &p, nil
}

// -- payments --

type paymentRepoPG struct {
	pool db.Querier
}

func NewPaymentRepo(pool db.Querier) PaymentRepository {
	return &paymentRepoPG{pool: pool}
}

func (r *paymentRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *paymentRepoPG) Create(ctx context.Context, p *Payment) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO payments (
			id, plan_id, provider, method, amount, currency, success, transaction_id, error_code, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`,
		p.ID, p.PlanID, p.Provider, p.Method, p.Amount, p.Currency, p.Success,
		p.TransactionID, p.ErrorCode, p.Error,
	).Scan(&p.CreatedAt)
	return db.MapError(err)
}

func (r *paymentRepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Payment, int, error) {
	q := db.NewSearchQuery("payments", paymentColumns)
	q.ApplyParams(params, paymentFilters)
	q.OrderBy("created_at DESC")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, q.CountSQL(), q.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, q.DataSQL(limit, offset), q.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(
			&p.ID, &p.PlanID, &p.Provider, &p.Method, &p.Amount, &p.Currency, &p.Success,
			&p.TransactionID, &p.ErrorCode, &p.Error, &p.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		items = append(items, &p)
	}
	return items, total, rows.Err()
}
