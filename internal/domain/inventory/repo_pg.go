package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pharmadesk/pharmadesk/internal/platform/db"
	"github.com/pharmadesk/pharmadesk/pkg/datex"
)

type medicineRepoPG struct {
	pool db.Querier
}

func NewRepo(pool db.Querier) Repository {
	return &medicineRepoPG{pool: pool}
}

func (r *medicineRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const medicineColumns = `id, sku, name, generic_name, category, unit, unit_price,
	stock_qty, reorder_level, active, created_at, updated_at`

const batchColumns = `id, medicine_id, batch_number, expiry_date, quantity, remaining,
	purchase_price, created_at`

var medicineFilters = map[string]db.Filter{
	"q":        {Type: db.FilterText, Columns: []string{"name", "sku", "generic_name"}},
	"category": {Type: db.FilterExact, Columns: []string{"category"}},
	"active":   {Type: db.FilterBool, Columns: []string{"active"}},
}

var medicineSorts = map[string]string{
	"name":    "name",
	"stock":   "stock_qty",
	"price":   "unit_price",
	"created": "created_at",
}

func (r *medicineRepoPG) Create(ctx context.Context, m *Medicine) error {
	m.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medicines (
			id, sku, name, generic_name, category, unit, unit_price,
			stock_qty, reorder_level, active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		m.ID, m.SKU, m.Name, m.GenericName, m.Category, m.Unit, m.UnitPrice,
		m.StockQty, m.ReorderLevel, m.Active,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	return db.MapError(err)
}

func (r *medicineRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Medicine, error) {
	return scanMedicine(r.conn(ctx).QueryRow(ctx, `SELECT `+medicineColumns+` FROM medicines WHERE id = $1`, id))
}

// Update never touches stock_qty; stock only moves through ChangeStock.
func (r *medicineRepoPG) Update(ctx context.Context, m *Medicine) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE medicines SET
			sku = $2, name = $3, generic_name = $4, category = $5, unit = $6,
			unit_price = $7, reorder_level = $8, active = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING stock_qty, created_at, updated_at`,
		m.ID, m.SKU, m.Name, m.GenericName, m.Category, m.Unit,
		m.UnitPrice, m.ReorderLevel, m.Active,
	).Scan(&m.StockQty, &m.CreatedAt, &m.UpdatedAt)
	return db.MapError(err)
}

func (r *medicineRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM medicines WHERE id = $1`, id)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *medicineRepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Medicine, int, error) {
	q := db.NewSearchQuery("medicines", medicineColumns)
	q.ApplyParams(params, medicineFilters)
	if params["low_stock"] == "true" {
		q.Add("stock_qty <= reorder_level")
	}
	q.ApplySort(params["sort"], "name ASC", medicineSorts)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, q.CountSQL(), q.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, q.DataSQL(limit, offset), q.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items, err := collectMedicines(rows)
	return items, total, err
}

func (r *medicineRepoPG) LowStock(ctx context.Context) ([]*Medicine, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+medicineColumns+` FROM medicines
		WHERE active AND stock_qty <= reorder_level
		ORDER BY stock_qty - reorder_level, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMedicines(rows)
}

func (r *medicineRepoPG) ChangeStock(ctx context.Context, id uuid.UUID, delta int) (*Medicine, error) {
	m, err := scanMedicine(r.conn(ctx).QueryRow(ctx, `
		UPDATE medicines SET stock_qty = stock_qty + $2, updated_at = NOW()
		WHERE id = $1 AND stock_qty + $2 >= 0
		RETURNING `+medicineColumns, id, delta))
	if !errors.Is(err, db.ErrNotFound) {
		return m, err
	}

	// no row updated: either the medicine is missing or stock is short
	var stock int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT stock_qty FROM medicines WHERE id = $1`, id).Scan(&stock); err != nil {
		return nil, db.MapError(err)
	}
	return nil, ErrInsufficientStock
}

func (r *medicineRepoPG) AddBatch(ctx context.Context, b *Batch) error {
	b.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medicine_batches (
			id, medicine_id, batch_number, expiry_date, quantity, remaining, purchase_price
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		b.ID, b.MedicineID, b.BatchNumber, b.ExpiryDate, b.Quantity, b.Remaining, b.PurchasePrice,
	).Scan(&b.CreatedAt)
	return db.MapError(err)
}

func (r *medicineRepoPG) ListBatches(ctx context.Context, medicineID uuid.UUID) ([]*Batch, error) {
	return r.queryBatches(ctx, `SELECT `+batchColumns+` FROM medicine_batches
		WHERE medicine_id = $1 ORDER BY expiry_date, created_at`, medicineID)
}

func (r *medicineRepoPG) LockBatches(ctx context.Context, medicineID uuid.UUID) ([]*Batch, error) {
	return r.queryBatches(ctx, `SELECT `+batchColumns+` FROM medicine_batches
		WHERE medicine_id = $1 ORDER BY expiry_date, created_at FOR UPDATE`, medicineID)
}

func (r *medicineRepoPG) queryBatches(ctx context.Context, sql string, medicineID uuid.UUID) ([]*Batch, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, medicineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []*Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

func (r *medicineRepoPG) SetBatchRemaining(ctx context.Context, batchID uuid.UUID, remaining int) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE medicine_batches SET remaining = $2 WHERE id = $1`, batchID, remaining)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *medicineRepoPG) ExpiringBatches(ctx context.Context, before datex.Date) ([]*ExpiringBatch, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT b.id, b.medicine_id, b.batch_number, b.expiry_date, b.quantity, b.remaining,
			b.purchase_price, b.created_at, m.name, m.sku
		FROM medicine_batches b
		JOIN medicines m ON m.id = b.medicine_id
		WHERE b.remaining > 0 AND b.expiry_date <= $1
		ORDER BY b.expiry_date, m.name`, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ExpiringBatch
	for rows.Next() {
		var e ExpiringBatch
		if err := rows.Scan(
			&e.ID, &e.MedicineID, &e.BatchNumber, &e.ExpiryDate, &e.Quantity, &e.Remaining,
			&e.PurchasePrice, &e.CreatedAt, &e.MedicineName, &e.SKU,
		); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (r *medicineRepoPG) AddMovement(ctx context.Context, mv *StockMovement) error {
	mv.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO stock_movements (id, medicine_id, type, quantity, reason, reference)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		mv.ID, mv.MedicineID, mv.Type, mv.Quantity, mv.Reason, mv.Reference,
	).Scan(&mv.CreatedAt)
	return db.MapError(err)
}

func (r *medicineRepoPG) ListMovements(ctx context.Context, medicineID uuid.UUID, limit, offset int) ([]*StockMovement, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM stock_movements WHERE medicine_id = $1`, medicineID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, medicine_id, type, quantity, reason, reference, created_at
		FROM stock_movements WHERE medicine_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, medicineID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*StockMovement
	for rows.Next() {
		var mv StockMovement
		if err := rows.Scan(&mv.ID, &mv.MedicineID, &mv.Type, &mv.Quantity, &mv.Reason, &mv.Reference, &mv.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &mv)
	}
	return out, total, rows.Err()
}

func collectMedicines(rows pgx.Rows) ([]*Medicine, error) {
	var items []*Medicine
	for rows.Next() {
		m, err := scanMedicine(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

func scanMedicine(row pgx.Row) (*Medicine, error) {
	var m Medicine
	err := row.Scan(
		&m.ID, &m.SKU, &m.Name, &m.GenericName, &m.Category, &m.Unit, &m.UnitPrice,
		&m.StockQty, &m.ReorderLevel, &m.Active, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, db.MapError(err)
	}
	return &m, nil
}

func scanBatch(row pgx.Row) (*Batch, error) {
	var b Batch
	err := row.Scan(
		&b.ID, &b.MedicineID, &b.BatchNumber, &b.ExpiryDate, &b.Quantity, &b.Remaining,
		&b.PurchasePrice, &b.CreatedAt,
	)
	if err != nil {
		return nil, db.MapError(err)
	}
	return &b, nil
}
