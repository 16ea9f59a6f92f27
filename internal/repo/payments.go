package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"eventhub/internal/model"
	"eventhub/internal/shop"
)

// PaymentStore backs the payment reconciler.
type PaymentStore interface {
	GetOrder(ctx context.Context, userID int64, orderUUID string) (*model.Order, error)
	GetOrderByID(ctx context.Context, id int64) (*model.Order, error)
	GetUserOrders(ctx context.Context, userID int64, orderUUIDs []string) ([]model.Order, error)
	UnavailableOrderItems(ctx context.Context, orderID int64) ([]UnavailableItem, error)
	OwnedOrderItems(ctx context.Context, userID, orderID int64) ([]UnavailableItem, error)
	SetOrderStatus(ctx context.Context, orderID int64, status string) error
	MarkOrderAwaiting(ctx context.Context, orderID int64, authority string, app *string) error
	ReleaseOrders(ctx context.Context, orderIDs []int64, orderStatus string, outcome shop.Outcome) error
	CompleteOrder(ctx context.Context, orderID int64, txnID, cardPan string, paidAt time.Time) error

	CreateBatch(ctx context.Context, userID int64, orderIDs []int64, total int64, app *string) (*model.PaymentBatch, error)
	GetBatchByID(ctx context.Context, id int64) (*model.PaymentBatch, error)
	MarkBatchAwaiting(ctx context.Context, batchID int64, authority string) error
	FailBatch(ctx context.Context, batchID int64) error
	CompleteBatch(ctx context.Context, batchID int64, txnID, cardPan string, paidAt time.Time) error
	BatchesForOrder(ctx context.Context, orderID int64) ([]model.PaymentBatch, error)

	FindByAuthority(ctx context.Context, authority string) (*model.PaymentBatch, *model.Order, error)
	StaleAwaiting(ctx context.Context, cutoff time.Time) ([]model.PaymentBatch, []model.Order, error)
	DiscardReservedOrder(ctx context.Context, userID, cartItemID, orderID int64) error

	CreatePaymentApp(ctx context.Context, app *model.PaymentApp) (int64, error)
	ListPaymentApps(ctx context.Context) ([]model.PaymentApp, error)
	GetActivePaymentApp(ctx context.Context, slug string) (*model.PaymentApp, error)
}

func (r *repository) GetUserOrders(ctx context.Context, userID int64, orderUUIDs []string) ([]model.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		orderSelect+` WHERE o.user_id = $1 AND o.order_id::text = ANY($2) ORDER BY o.id`, userID, pq.Array(orderUUIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to get orders: %w", err)
	}
	list := make([]model.Order, 0, len(orderUUIDs))
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

// UnavailableOrderItems lists order items whose product or event was deactivated or removed.
func (r *repository) UnavailableOrderItems(ctx context.Context, orderID int64) ([]UnavailableItem, error) {
	items, err := orderItems(ctx, r.db, orderID)
	if err != nil {
		return nil, err
	}
	var gone []UnavailableItem
	for _, oi := range items {
		it, err := getItem(ctx, r.db, oi.ItemType, oi.ItemID, false)
		if err != nil && !errors.Is(err, ErrItemNotFound) {
			return nil, err
		}
		if it == nil || !shop.Available(it) {
			gone = append(gone, UnavailableItem{
				OrderItemID: oi.ID, EventID: oi.EventID, ItemType: oi.ItemType, ObjectID: oi.ItemID,
			})
		}
	}
	return gone, nil
}

// OwnedOrderItems lists order items the user already holds through another purchase.
func (r *repository) OwnedOrderItems(ctx context.Context, userID, orderID int64) ([]UnavailableItem, error) {
	items, err := orderItems(ctx, r.db, orderID)
	if err != nil {
		return nil, err
	}
	var owned []UnavailableItem
	for _, oi := range items {
		ok, err := owns(ctx, r.db, userID, oi.ItemType, oi.ItemID)
		if err != nil {
			return nil, err
		}
		if ok {
			owned = append(owned, UnavailableItem{
				OrderItemID: oi.ID, EventID: oi.EventID, ItemType: oi.ItemType, ObjectID: oi.ItemID,
			})
		}
	}
	return owned, nil
}

func (r *repository) SetOrderStatus(ctx context.Context, orderID int64, status string) error {
	return r.execOne(ctx, ErrOrderNotFound,
		`UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`, orderID, status)
}

func (r *repository) MarkOrderAwaiting(ctx context.Context, orderID int64, authority string, app *string) error {
	return r.execOne(ctx, ErrOrderNotFound, `
		UPDATE orders SET status = $2, authority = $3, redirect_app = $4, updated_at = NOW() WHERE id = $1
	`, orderID, model.OrderAwaitingGateway, authority, app)
}

func (r *repository) ReleaseOrders(ctx context.Context, orderIDs []int64, orderStatus string, outcome shop.Outcome) error {
	if len(orderIDs) == 0 {
		return nil
	}
	return r.withTx(ctx, func(tx *sql.Tx) error {
		return releaseTx(ctx, tx, orderIDs, orderStatus, outcome)
	})
}

// CompleteOrder stores the gateway receipt and finalizes the order. Repeated calls are no-ops.
func (r *repository) CompleteOrder(ctx context.Context, orderID int64, txnID, cardPan string, paidAt time.Time) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE orders SET txn_id = $2, card_pan = $3, paid_at = $4, status = $5, updated_at = NOW()
			WHERE id = $1 AND status <> $6
		`, orderID, txnID, cardPan, paidAt, model.OrderProcessingEnrollment, model.OrderCompleted); err != nil {
			return fmt.Errorf("failed to store payment receipt: %w", err)
		}
		return finalizeTx(ctx, tx, orderID)
	})
}

const batchSelect = `
	SELECT b.id, b.batch_id, b.user_id, b.total, b.status, b.authority, b.txn_id, b.card_pan, b.paid_at,
	       b.redirect_app, b.created_at
	FROM payment_batches b`

func scanBatch(row interface{ Scan(...any) error }) (*model.PaymentBatch, error) {
	var b model.PaymentBatch
	err := row.Scan(&b.ID, &b.BatchID, &b.UserID, &b.Total, &b.Status, &b.Authority, &b.TxnID, &b.CardPan,
		&b.PaidAt, &b.RedirectApp, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan batch: %w", err)
	}
	return &b, nil
}

func batchOrderIDs(ctx context.Context, q querier, batchID int64) ([]int64, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT order_id FROM payment_batch_orders WHERE batch_id = $1 ORDER BY order_id`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get batch orders: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan batch order: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func loadBatch(ctx context.Context, q querier, where string, lock bool, args ...any) (*model.PaymentBatch, error) {
	query := batchSelect + ` WHERE ` + where
	if lock {
		query += ` FOR UPDATE`
	}
	b, err := scanBatch(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	if b.OrderIDs, err = batchOrderIDs(ctx, q, b.ID); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *repository) CreateBatch(ctx context.Context, userID int64, orderIDs []int64, total int64, app *string) (*model.PaymentBatch, error) {
	b := &model.PaymentBatch{
		BatchID: uuid.New().String(), UserID: userID, Total: total, Status: model.BatchPending,
		RedirectApp: app, OrderIDs: orderIDs,
	}
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO payment_batches (batch_id, user_id, total, status, redirect_app)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at
		`, b.BatchID, userID, total, b.Status, app).Scan(&b.ID, &b.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert batch: %w", err)
		}
		for _, id := range orderIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO payment_batch_orders (batch_id, order_id) VALUES ($1, $2)`, b.ID, id); err != nil {
				return fmt.Errorf("failed to link batch order: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *repository) GetBatchByID(ctx context.Context, id int64) (*model.PaymentBatch, error) {
	return loadBatch(ctx, r.db, `b.id = $1`, false, id)
}

// BatchesForOrder lists every batch that ever held the order, newest first.
func (r *repository) BatchesForOrder(ctx context.Context, orderID int64) ([]model.PaymentBatch, error) {
	rows, err := r.db.QueryContext(ctx, batchSelect+`
		JOIN payment_batch_orders bo ON bo.batch_id = b.id
		WHERE bo.order_id = $1 ORDER BY b.id DESC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order batches: %w", err)
	}
	defer rows.Close()

	list := make([]model.PaymentBatch, 0)
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *b)
	}
	return list, rows.Err()
}

// MarkBatchAwaiting records the gateway authority on the batch and on each of its orders.
func (r *repository) MarkBatchAwaiting(ctx context.Context, batchID int64, authority string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		b, err := loadBatch(ctx, tx, `b.id = $1`, true, batchID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE payment_batches SET status = $2, authority = $3 WHERE id = $1`,
			b.ID, model.BatchAwaitingGateway, authority); err != nil {
			return fmt.Errorf("failed to update batch: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE orders SET status = $2, authority = $3, redirect_app = $4, updated_at = NOW() WHERE id = ANY($1)
		`, pq.Array(b.OrderIDs), model.OrderAwaitingGateway, authority, b.RedirectApp); err != nil {
			return fmt.Errorf("failed to update batch orders: %w", err)
		}
		return nil
	})
}

// FailBatch marks the batch failed and releases all of its orders.
func (r *repository) FailBatch(ctx context.Context, batchID int64) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		b, err := loadBatch(ctx, tx, `b.id = $1`, true, batchID)
		if err != nil {
			return err
		}
		if shop.TerminalBatch(b.Status) {
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE payment_batches SET status = $2 WHERE id = $1`, b.ID, model.BatchPaymentFailed); err != nil {
			return fmt.Errorf("failed to fail batch: %w", err)
		}
		return releaseTx(ctx, tx, b.OrderIDs, model.OrderPaymentFailed, shop.OutcomeFailed)
	})
}

// CompleteBatch marks the batch verified, finalizes every order and then marks it completed.
func (r *repository) CompleteBatch(ctx context.Context, batchID int64, txnID, cardPan string, paidAt time.Time) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		b, err := loadBatch(ctx, tx, `b.id = $1`, true, batchID)
		if err != nil {
			return err
		}
		if b.Status == model.BatchCompleted {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE payment_batches SET status = $2, txn_id = $3, card_pan = $4, paid_at = $5 WHERE id = $1
		`, b.ID, model.BatchVerified, txnID, cardPan, paidAt); err != nil {
			return fmt.Errorf("failed to verify batch: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE orders SET txn_id = $2, card_pan = $3, paid_at = $4, status = $5, updated_at = NOW()
			WHERE id = ANY($1) AND status <> $6
		`, pq.Array(b.OrderIDs), txnID, cardPan, paidAt, model.OrderProcessingEnrollment, model.OrderCompleted); err != nil {
			return fmt.Errorf("failed to store batch receipt: %w", err)
		}
		for _, id := range b.OrderIDs {
			if err := finalizeTx(ctx, tx, id); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE payment_batches SET status = $2 WHERE id = $1`, b.ID, model.BatchCompleted); err != nil {
			return fmt.Errorf("failed to complete batch: %w", err)
		}
		return nil
	})
}

// FindByAuthority resolves a gateway authority. Batches take precedence over single orders.
func (r *repository) FindByAuthority(ctx context.Context, authority string) (*model.PaymentBatch, *model.Order, error) {
	b, err := loadBatch(ctx, r.db, `b.authority = $1 ORDER BY b.id DESC LIMIT 1`, false, authority)
	if err == nil {
		return b, nil, nil
	}
	if !errors.Is(err, ErrBatchNotFound) {
		return nil, nil, err
	}
	o, err := loadOrder(ctx, r.db, `o.authority = $1 ORDER BY o.id DESC LIMIT 1`, false, authority)
	if err != nil {
		return nil, nil, err
	}
	return nil, o, nil
}

// StaleAwaiting returns batches and standalone orders stuck at the gateway since before cutoff.
func (r *repository) StaleAwaiting(ctx context.Context, cutoff time.Time) ([]model.PaymentBatch, []model.Order, error) {
	rows, err := r.db.QueryContext(ctx, batchSelect+`
		WHERE b.status = $1 AND b.authority IS NOT NULL AND b.created_at < $2 ORDER BY b.id
	`, model.BatchAwaitingGateway, cutoff)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get stale batches: %w", err)
	}
	batches := make([]model.PaymentBatch, 0)
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			rows.Close()
			return nil, nil, err
		}
		batches = append(batches, *b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	for i := range batches {
		if batches[i].OrderIDs, err = batchOrderIDs(ctx, r.db, batches[i].ID); err != nil {
			return nil, nil, err
		}
	}

	rows, err = r.db.QueryContext(ctx, orderSelect+`
		WHERE o.status = $1 AND o.authority IS NOT NULL AND o.updated_at < $2
		  AND NOT EXISTS (
			SELECT 1 FROM payment_batch_orders bo JOIN payment_batches b ON b.id = bo.batch_id
			WHERE bo.order_id = o.id AND b.authority = o.authority)
		ORDER BY o.id
	`, model.OrderAwaitingGateway, cutoff)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get stale orders: %w", err)
	}
	defer rows.Close()

	orders := make([]model.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, nil, err
		}
		orders = append(orders, *o)
	}
	return batches, orders, rows.Err()
}

// DiscardReservedOrder drops the order reserving a cart item along with that cart item.
// Other items of the order go back to the cart.
func (r *repository) DiscardReservedOrder(ctx context.Context, userID, cartItemID, orderID int64) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		cart, err := lockCart(ctx, tx, userID)
		if err != nil {
			return err
		}
		o, err := loadOrder(ctx, tx, `o.id = $1 AND o.user_id = $2`, true, orderID, userID)
		if err != nil {
			return err
		}
		if !shop.IsUnpaidOrderStatus(o.Status) {
			return ErrInvalidOrderState
		}
		ci, err := scanCartItem(tx.QueryRowContext(ctx, `
			SELECT `+cartItemColumns+` FROM cart_items ci WHERE ci.id = $1 AND ci.cart_id = $2
		`, cartItemID, cart.ID))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrCartItemNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get cart item: %w", err)
		}

		if err := detachFromBatches(ctx, tx, o.ID); err != nil {
			return err
		}
		if err := releaseTx(ctx, tx, []int64{o.ID}, model.OrderCancelled, shop.OutcomeCancelled); err != nil {
			return err
		}
		if ci.ItemType == model.ItemCompetitionTeam {
			if err := releaseRemovedTeam(ctx, tx, ci.ItemID); err != nil {
				return err
			}
		}

		for _, table := range []string{"presentation_enrollments", "solo_registrations"} {
			if _, err := tx.ExecContext(ctx, `
				DELETE FROM `+table+`
				WHERE status <> $2 AND order_item_id IN (SELECT id FROM order_items WHERE order_id = $1)
			`, o.ID, model.EnrollmentCompleted); err != nil {
				return fmt.Errorf("failed to delete placeholders: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE id = $1`, ci.ID); err != nil {
			return fmt.Errorf("failed to delete cart item: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, o.ID); err != nil {
			return fmt.Errorf("failed to delete order: %w", err)
		}
		return dropStaleDiscount(ctx, tx, cart)
	})
}

func (r *repository) CreatePaymentApp(ctx context.Context, app *model.PaymentApp) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO payment_apps (slug, name, is_active) VALUES ($1, $2, $3) RETURNING id
	`, app.Slug, app.Name, app.IsActive).Scan(&id)
	if isUniqueViolation(err) {
		return 0, ErrSlugTaken
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert payment app: %w", err)
	}
	return id, nil
}

func (r *repository) ListPaymentApps(ctx context.Context) ([]model.PaymentApp, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, slug, name, is_active, created_at FROM payment_apps ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment apps: %w", err)
	}
	defer rows.Close()

	list := make([]model.PaymentApp, 0)
	for rows.Next() {
		var a model.PaymentApp
		if err := rows.Scan(&a.ID, &a.Slug, &a.Name, &a.IsActive, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment app: %w", err)
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

func (r *repository) GetActivePaymentApp(ctx context.Context, slug string) (*model.PaymentApp, error) {
	var a model.PaymentApp
	err := r.db.QueryRowContext(ctx, `
		SELECT id, slug, name, is_active, created_at FROM payment_apps WHERE slug = $1 AND is_active
	`, slug).Scan(&a.ID, &a.Slug, &a.Name, &a.IsActive, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentAppNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment app: %w", err)
	}
	return &a, nil
}
