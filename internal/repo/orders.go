package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"eventhub/internal/model"
	"eventhub/internal/shop"
)

const orderSelect = `
	SELECT o.id, o.order_id, o.user_id, o.subtotal, o.discount_code_id, COALESCE(d.code, ''), o.discount_amount,
	       o.total, o.status, o.authority, o.txn_id, o.card_pan, o.paid_at, o.redirect_app, o.created_at, o.updated_at
	FROM orders o LEFT JOIN discount_codes d ON d.id = o.discount_code_id`

func scanOrder(row interface{ Scan(...any) error }) (*model.Order, error) {
	var o model.Order
	err := row.Scan(&o.ID, &o.OrderID, &o.UserID, &o.Subtotal, &o.DiscountCodeID, &o.DiscountCode,
		&o.DiscountAmount, &o.Total, &o.Status, &o.Authority, &o.TxnID, &o.CardPan, &o.PaidAt, &o.RedirectApp,
		&o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}
	return &o, nil
}

func orderItems(ctx context.Context, q querier, orderID int64) ([]model.OrderItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, item_type, item_id, event_id, description, price
		FROM order_items WHERE order_id = $1 ORDER BY id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	defer rows.Close()

	items := make([]model.OrderItem, 0)
	for rows.Next() {
		var oi model.OrderItem
		if err := rows.Scan(&oi.ID, &oi.OrderID, &oi.ItemType, &oi.ItemID, &oi.EventID, &oi.Description, &oi.Price); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, oi)
	}
	return items, rows.Err()
}

// loadOrder reads one order with its items. With lock the order row is held FOR UPDATE.
func loadOrder(ctx context.Context, q querier, where string, lock bool, args ...any) (*model.Order, error) {
	query := orderSelect + ` WHERE ` + where
	if lock {
		query += ` FOR UPDATE OF o`
	}
	o, err := scanOrder(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	if o.Items, err = orderItems(ctx, q, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

func insertOrder(ctx context.Context, tx *sql.Tx, o *model.Order) error {
	o.OrderID = uuid.New().String()
	err := tx.QueryRowContext(ctx, `
		INSERT INTO orders (order_id, user_id, subtotal, discount_code_id, discount_amount, total, status, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, o.OrderID, o.UserID, o.Subtotal, o.DiscountCodeID, o.DiscountAmount, o.Total, o.Status, o.PaidAt).
		Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range o.Items {
		oi := &o.Items[i]
		oi.OrderID = o.ID
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO order_items (order_id, item_type, item_id, event_id, description, price)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, o.ID, oi.ItemType, oi.ItemID, oi.EventID, oi.Description, oi.Price).Scan(&oi.ID); err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}
	return nil
}

func (r *repository) GetOrder(ctx context.Context, userID int64, orderUUID string) (*model.Order, error) {
	return loadOrder(ctx, r.db, `o.order_id = $1 AND o.user_id = $2`, false, orderUUID, userID)
}

func (r *repository) GetOrderByID(ctx context.Context, id int64) (*model.Order, error) {
	return loadOrder(ctx, r.db, `o.id = $1`, false, id)
}

func (r *repository) ListOrders(ctx context.Context, userID int64) ([]model.Order, error) {
	rows, err := r.db.QueryContext(ctx, orderSelect+` WHERE o.user_id = $1 ORDER BY o.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	list := make([]model.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		list = append(list, *o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range list {
		if list[i].Items, err = orderItems(ctx, r.db, list[i].ID); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// CancelOrder cancels an unpaid order that is not part of a payment in progress.
func (r *repository) CancelOrder(ctx context.Context, userID int64, orderUUID string) (*model.Order, error) {
	var o *model.Order
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		o, err = loadOrder(ctx, tx, `o.order_id = $1 AND o.user_id = $2`, true, orderUUID, userID)
		if err != nil {
			return err
		}
		if !shop.CancellableOrder(o.Status) {
			return ErrInvalidOrderState
		}

		var busy bool
		if err := tx.QueryRowContext(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM payment_batch_orders bo JOIN payment_batches b ON b.id = bo.batch_id
				WHERE bo.order_id = $1 AND b.status = $2
			)
		`, o.ID, model.BatchAwaitingGateway).Scan(&busy); err != nil {
			return fmt.Errorf("failed to check batches: %w", err)
		}
		if busy {
			return ErrOrderInBatch
		}
		if err := detachFromBatches(ctx, tx, o.ID); err != nil {
			return err
		}

		if err := releaseTx(ctx, tx, []int64{o.ID}, model.OrderCancelled, shop.OutcomeCancelled); err != nil {
			return err
		}
		o.Status = model.OrderCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// detachFromBatches removes the order from every batch that has not reached a terminal state.
// Batch totals are recomputed and emptied batches are deleted.
func detachFromBatches(ctx context.Context, tx *sql.Tx, orderID int64) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT b.id FROM payment_batches b JOIN payment_batch_orders bo ON bo.batch_id = b.id
		WHERE bo.order_id = $1 AND NOT (b.status = ANY($2))
		FOR UPDATE OF b
	`, orderID, pq.Array([]string{model.BatchPaymentFailed, model.BatchVerified, model.BatchCompleted}))
	if err != nil {
		return fmt.Errorf("failed to find batches: %w", err)
	}
	var batchIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan batch: %w", err)
		}
		batchIDs = append(batchIDs, id)
	}
	rows.Close()

	for _, id := range batchIDs {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM payment_batch_orders WHERE batch_id = $1 AND order_id = $2`, id, orderID); err != nil {
			return fmt.Errorf("failed to detach order: %w", err)
		}
		var left int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM payment_batch_orders WHERE batch_id = $1`, id).Scan(&left); err != nil {
			return fmt.Errorf("failed to count batch orders: %w", err)
		}
		if left == 0 {
			if _, err := tx.ExecContext(ctx, `DELETE FROM payment_batches WHERE id = $1`, id); err != nil {
				return fmt.Errorf("failed to delete batch: %w", err)
			}
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE payment_batches SET status = $2, authority = NULL,
				total = (SELECT COALESCE(SUM(o.total), 0) FROM orders o
				         JOIN payment_batch_orders bo ON bo.order_id = o.id WHERE bo.batch_id = $1)
			WHERE id = $1
		`, id, model.BatchPending); err != nil {
			return fmt.Errorf("failed to recompute batch: %w", err)
		}
	}
	return nil
}
