package payment

import (
	"context"
	"errors"

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

const paymentCols = `id, receipt_number, order_id, amount, method,
	card_last4, cheque_number, cheque_date, upi_id, bank_name, transaction_id,
	status, refund_amount, refund_reason, refunded_at,
	gateway_name, gateway_ref, failure_reason, collected_by, idempotency_key,
	payment_date, created_at, updated_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.ReceiptNumber, &p.OrderID, &p.Amount, &p.Method,
		&p.CardLast4, &p.ChequeNumber, &p.ChequeDate, &p.UPIID, &p.BankName, &p.TransactionID,
		&p.Status, &p.RefundAmount, &p.RefundReason, &p.RefundedAt,
		&p.GatewayName, &p.GatewayRef, &p.FailureReason, &p.CollectedBy, &p.IdempotencyKey,
		&p.PaymentDate, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Payment) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO medicine_order_payments (id, receipt_number, order_id, amount, method,
			card_last4, cheque_number, cheque_date, upi_id, bank_name, transaction_id,
			status, refund_amount, gateway_name, gateway_ref, failure_reason,
			collected_by, idempotency_key, payment_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		p.ID, p.ReceiptNumber, p.OrderID, p.Amount, p.Method,
		p.CardLast4, p.ChequeNumber, p.ChequeDate, p.UPIID, p.BankName, p.TransactionID,
		p.Status, p.RefundAmount, p.GatewayName, p.GatewayRef, p.FailureReason,
		p.CollectedBy, p.IdempotencyKey, p.PaymentDate)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return scanPayment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+paymentCols+` FROM medicine_order_payments WHERE id = $1`, id))
}

func (r *repoPG) GetByGatewayRef(ctx context.Context, ref string) (*Payment, error) {
	return scanPayment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+paymentCols+` FROM medicine_order_payments WHERE gateway_ref = $1`, ref))
}

func (r *repoPG) GetByIdempotencyKey(ctx context.Context, orderID uuid.UUID, key string) (*Payment, error) {
	return scanPayment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+paymentCols+` FROM medicine_order_payments WHERE order_id = $1 AND idempotency_key = $2`,
		orderID, key))
}

func (r *repoPG) Update(ctx context.Context, p *Payment) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medicine_order_payments SET receipt_number=$2, status=$3,
			refund_amount=$4, refund_reason=$5, refunded_at=$6,
			failure_reason=$7, collected_by=$8, payment_date=$9, transaction_id=$10, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.ReceiptNumber, p.Status,
		p.RefundAmount, p.RefundReason, p.RefundedAt,
		p.FailureReason, p.CollectedBy, p.PaymentDate, p.TransactionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.RunInTx(ctx, r.pool, fn)
}

func (r *repoPG) LockOrder(ctx context.Context, orderID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`SELECT id FROM medicine_orders WHERE id = $1 FOR UPDATE`, orderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*Payment, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+paymentCols+` FROM medicine_order_payments WHERE order_id = $1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}
