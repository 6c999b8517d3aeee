package order

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmacore/pharmacy/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const orderCols = `id, order_number, patient_id, total_amount, discount_amount, final_amount,
	fulfillment_status, payment_status, notes,
	ordered_at, processed_at, delivered_at, cancelled_at, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OrderNumber, &o.PatientID, &o.TotalAmount, &o.DiscountAmount, &o.FinalAmount,
		&o.FulfillmentStatus, &o.PaymentStatus, &o.Notes,
		&o.OrderedAt, &o.ProcessedAt, &o.DeliveredAt, &o.CancelledAt, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &o, err
}

// Create inserts the order and its items in one transaction so a partial
// order can never be observed.
func (r *repoPG) Create(ctx context.Context, o *Order) error {
	o.ID = uuid.New()
	return db.RunInTx(ctx, r.pool, func(ctx context.Context) error {
		c := r.conn(ctx)
		_, err := c.Exec(ctx, `
			INSERT INTO medicine_orders (id, order_number, patient_id, total_amount, discount_amount, final_amount,
				fulfillment_status, payment_status, notes, ordered_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			o.ID, o.OrderNumber, o.PatientID, o.TotalAmount, o.DiscountAmount, o.FinalAmount,
			o.FulfillmentStatus, o.PaymentStatus, o.Notes, o.OrderedAt)
		if err != nil {
			return err
		}
		for _, it := range o.Items {
			it.ID = uuid.New()
			it.OrderID = o.ID
			_, err := c.Exec(ctx, `
				INSERT INTO medicine_order_items (id, order_id, medication_id, medication_name,
					quantity, unit_price, dosage, frequency, duration, instructions)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
				it.ID, it.OrderID, it.MedicationID, it.MedicationName,
				it.Quantity, it.UnitPrice, it.Dosage, it.Frequency, it.Duration, it.Instructions)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := scanOrder(r.conn(ctx).QueryRow(ctx, `SELECT `+orderCols+` FROM medicine_orders WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	o.Items, err = r.GetItems(ctx, o.ID)
	return o, err
}

func (r *repoPG) GetByNumber(ctx context.Context, orderNumber string) (*Order, error) {
	o, err := scanOrder(r.conn(ctx).QueryRow(ctx, `SELECT `+orderCols+` FROM medicine_orders WHERE order_number = $1`, orderNumber))
	if err != nil {
		return nil, err
	}
	o.Items, err = r.GetItems(ctx, o.ID)
	return o, err
}

func (r *repoPG) Update(ctx context.Context, o *Order) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medicine_orders SET fulfillment_status=$2, notes=$3,
			processed_at=$4, delivered_at=$5, cancelled_at=$6, updated_at=NOW()
		WHERE id = $1`,
		o.ID, o.FulfillmentStatus, o.Notes, o.ProcessedAt, o.DeliveredAt, o.CancelledAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status PaymentStatus) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE medicine_orders SET payment_status=$2, updated_at=NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) list(ctx context.Context, where string, countArgs []interface{}, limit, offset int) ([]*Order, int, error) {
	c := r.conn(ctx)
	var total int
	if err := c.QueryRow(ctx, `SELECT COUNT(*) FROM medicine_orders `+where, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args := append(append([]interface{}{}, countArgs...), limit, offset)
	rows, err := c.Query(ctx, `SELECT `+orderCols+` FROM medicine_orders `+where+
		` ORDER BY ordered_at DESC LIMIT $`+strconv.Itoa(len(countArgs)+1)+` OFFSET $`+strconv.Itoa(len(countArgs)+2), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, o)
	}
	return result, total, rows.Err()
}

func (r *repoPG) ListByStatus(ctx context.Context, status FulfillmentStatus, limit, offset int) ([]*Order, int, error) {
	return r.list(ctx, `WHERE fulfillment_status = $1`, []interface{}{status}, limit, offset)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Order, int, error) {
	return r.list(ctx, `WHERE patient_id = $1`, []interface{}{patientID}, limit, offset)
}

func (r *repoPG) ListPaymentPending(ctx context.Context, limit, offset int) ([]*Order, int, error) {
	return r.list(ctx,
		`WHERE payment_status IN ('PENDING','PARTIALLY_PAID') AND fulfillment_status <> 'CANCELLED'`,
		nil, limit, offset)
}

func (r *repoPG) GetItems(ctx context.Context, orderID uuid.UUID) ([]*OrderItem, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, order_id, medication_id, medication_name, quantity, unit_price,
			dosage, frequency, duration, instructions
		FROM medicine_order_items WHERE order_id = $1 ORDER BY medication_name`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.MedicationID, &it.MedicationName, &it.Quantity, &it.UnitPrice,
			&it.Dosage, &it.Frequency, &it.Duration, &it.Instructions); err != nil {
			return nil, err
		}
		items = append(items, &it)
	}
	return items, rows.Err()
}
