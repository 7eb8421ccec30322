package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pharmadesk/pharmadesk/internal/platform/db"
	"github.com/pharmadesk/pharmadesk/pkg/codes"
)

type saleRepoPG struct {
	pool db.Querier
}

func NewRepo(pool db.Querier) Repository {
	return &saleRepoPG{pool: pool}
}

func (r *saleRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const saleColumns = `id, patient_id, payment_method, subtotal, total_discount, grand_total,
	global_discount, payable, status, notes, created_at, updated_at`

const itemColumns = `id, sale_id, position, medicine_id, name, quantity, unit_price, discount, line_total`

var saleFilters = map[string]db.Filter{
	"patient_id":     {Type: db.FilterExact, Columns: []string{"patient_id"}},
	"payment_method": {Type: db.FilterExact, Columns: []string{"payment_method"}},
	"status":         {Type: db.FilterExact, Columns: []string{"status"}},
	"from":           {Type: db.FilterDateFrom, Columns: []string{"created_at"}},
	"to":             {Type: db.FilterDateTo, Columns: []string{"created_at"}},
}

var saleSorts = map[string]string{
	"created": "created_at",
	"payable": "payable",
}

// Create inserts the sale and its items. Callers run it inside a transaction.
func (r *saleRepoPG) Create(ctx context.Context, s *Sale) error {
	s.ID = uuid.New()
	q := r.conn(ctx)
	err := q.QueryRow(ctx, `
		INSERT INTO sales (
			id, patient_id, payment_method, subtotal, total_discount, grand_total,
			global_discount, payable, status, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		s.ID, s.PatientID, s.PaymentMethod, s.Subtotal, s.TotalDiscount, s.GrandTotal,
		s.GlobalDiscount, s.Payable, s.Status, s.Notes,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return db.MapError(err)
	}

	for i, it := range s.Items {
		it.ID = uuid.New()
		it.SaleID = s.ID
		it.Position = i + 1
		_, err := q.Exec(ctx, `
			INSERT INTO sale_items (`+itemColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			it.ID, it.SaleID, it.Position, it.MedicineID, it.Name, it.Quantity,
			it.UnitPrice, it.Discount, it.LineTotal,
		)
		if err != nil {
			return db.MapError(err)
		}
	}
	return nil
}

func (r *saleRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Sale, error) {
	s, err := scanSale(r.conn(ctx).QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, []*Sale{s}); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *saleRepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Sale, int, error) {
	q := db.NewSearchQuery("sales", saleColumns)
	q.ApplyParams(params, saleFilters)
	q.ApplySort(params["sort"], "created_at DESC", saleSorts)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, q.CountSQL(), q.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, q.DataSQL(limit, offset), q.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	var items []*Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		items = append(items, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if err := r.loadItems(ctx, items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// loadItems attaches items to every sale in one query.
func (r *saleRepoPG) loadItems(ctx context.Context, sales []*Sale) error {
	if len(sales) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(sales))
	byID := make(map[uuid.UUID]*Sale, len(sales))
	for i, s := range sales {
		ids[i] = s.ID
		byID[s.ID] = s
		s.Items = []*SaleItem{}
	}

	rows, err := r.conn(ctx).Query(ctx, `SELECT `+itemColumns+` FROM sale_items
		WHERE sale_id = ANY($1) ORDER BY sale_id, position`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var it SaleItem
		if err := rows.Scan(
			&it.ID, &it.SaleID, &it.Position, &it.MedicineID, &it.Name, &it.Quantity,
			&it.UnitPrice, &it.Discount, &it.LineTotal,
		); err != nil {
			return err
		}
		if s, ok := byID[it.SaleID]; ok {
			s.Items = append(s.Items, &it)
		}
	}
	return rows.Err()
}

func (r *saleRepoPG) Transition(ctx context.Context, id uuid.UUID, from, to string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE sales SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var current string
	if err := r.conn(ctx).QueryRow(ctx, `SELECT status FROM sales WHERE id = $1`, id).Scan(&current); err != nil {
		return db.MapError(err)
	}
	return fmt.Errorf("%w: sale is %s", ErrStatusChanged, current)
}

func (r *saleRepoPG) Summary(ctx context.Context, from, to time.Time) (DaySummary, error) {
	var out DaySummary
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(payable), 0)
		FROM sales
		WHERE status = $1 AND created_at >= $2 AND created_at < $3`,
		codes.SaleCompleted, from, to,
	).Scan(&out.Count, &out.Revenue)
	if err != nil {
		return DaySummary{}, err
	}
	return out, nil
}

func scanSale(row pgx.Row) (*Sale, error) {
	var s Sale
	err := row.Scan(
		&s.ID, &s.PatientID, &s.PaymentMethod, &s.Subtotal, &s.TotalDiscount, &s.GrandTotal,
		&s.GlobalDiscount, &s.Payable, &s.Status, &s.Notes, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, db.MapError(err)
	}
	return &s, nil
}
