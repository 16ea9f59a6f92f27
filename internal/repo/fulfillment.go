package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"eventhub/internal/model"
	"eventhub/internal/shop"
)

// reserveTx ties a cart item to an order item and opens the pending placeholder for it.
func reserveTx(ctx context.Context, tx *sql.Tx, userID, cartItemID int64, oi model.OrderItem) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE cart_items SET status = $2, reserved_order_id = $3, reserved_order_item_id = $4 WHERE id = $1
	`, cartItemID, model.CartItemReserved, oi.OrderID, oi.ID); err != nil {
		return fmt.Errorf("failed to reserve cart item: %w", err)
	}

	if oi.ItemType == model.ItemCompetitionTeam {
		if _, err := tx.ExecContext(ctx, `
			UPDATE competition_teams SET status = $2, payment_status = $3 WHERE id = $1
		`, oi.ItemID, model.TeamAwaitingPaymentConfirmation, model.PaymentPending); err != nil {
			return fmt.Errorf("failed to mark team awaiting payment: %w", err)
		}
		return nil
	}

	table, column, err := enrollmentTable(oi.ItemType)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO `+table+` AS e (user_id, `+column+`, status, payment_status, order_item_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, `+column+`) DO UPDATE
		SET status = EXCLUDED.status, payment_status = EXCLUDED.payment_status, order_item_id = EXCLUDED.order_item_id
		WHERE e.status <> $6
	`, userID, oi.ItemID, model.EnrollmentPendingPayment, model.PaymentPending, oi.ID, model.EnrollmentCompleted); err != nil {
		return fmt.Errorf("failed to open enrollment placeholder: %w", err)
	}
	return nil
}

// releaseTx moves orders to orderStatus and hands their reservations back.
// Teams return to their pre-checkout state, placeholders are closed, and cart items become owned again.
func releaseTx(ctx context.Context, tx *sql.Tx, orderIDs []int64, orderStatus string, outcome shop.Outcome) error {
	ids := pq.Array(orderIDs)
	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = $2, updated_at = NOW() WHERE id = ANY($1)`, ids, orderStatus); err != nil {
		return fmt.Errorf("failed to update orders: %w", err)
	}

	teamPayment := model.PaymentPending
	if outcome == shop.OutcomeFailed {
		teamPayment = model.PaymentFailed
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE competition_teams t
		SET status = CASE WHEN g.requires_admin_approval THEN $2 ELSE $3 END, payment_status = $4
		FROM group_competitions g, order_items oi
		WHERE g.id = t.group_competition_id AND oi.item_type = $5 AND oi.item_id = t.id
		  AND oi.order_id = ANY($1) AND t.status = $6
	`, ids, shop.ReleasedTeamStatus(true, outcome), shop.ReleasedTeamStatus(false, outcome), teamPayment,
		model.ItemCompetitionTeam, model.TeamAwaitingPaymentConfirmation); err != nil {
		return fmt.Errorf("failed to release teams: %w", err)
	}

	for _, table := range []string{"presentation_enrollments", "solo_registrations"} {
		if _, err := tx.ExecContext(ctx, `
			UPDATE `+table+` SET status = $2, payment_status = $3
			WHERE status = $4 AND order_item_id IN (SELECT id FROM order_items WHERE order_id = ANY($1))
		`, ids, shop.ReleasedEnrollmentStatus(outcome), model.PaymentFailed, model.EnrollmentPendingPayment); err != nil {
			return fmt.Errorf("failed to release %s: %w", table, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE cart_items SET status = $2, reserved_order_id = NULL, reserved_order_item_id = NULL
		WHERE reserved_order_id = ANY($1)
	`, ids, model.CartItemOwned); err != nil {
		return fmt.Errorf("failed to release cart items: %w", err)
	}
	return nil
}

// finalizeTx completes an order. It is a no-op for an order that is already completed.
func finalizeTx(ctx context.Context, tx *sql.Tx, orderID int64) error {
	o, err := loadOrder(ctx, tx, `o.id = $1`, true, orderID)
	if err != nil {
		return err
	}
	if o.Status == model.OrderCompleted {
		return nil
	}
	paymentStatus := shop.FinalPaymentStatus(o.Total)

	for _, oi := range o.Items {
		if oi.ItemType == model.ItemCompetitionTeam {
			if _, err := tx.ExecContext(ctx, `
				UPDATE competition_teams SET status = $2, payment_status = $3 WHERE id = $1
			`, oi.ItemID, model.TeamActive, paymentStatus); err != nil {
				return fmt.Errorf("failed to activate team: %w", err)
			}
			continue
		}
		table, column, err := enrollmentTable(oi.ItemType)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO `+table+` (user_id, `+column+`, status, payment_status, order_item_id)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (user_id, `+column+`) DO UPDATE
			SET status = EXCLUDED.status, payment_status = EXCLUDED.payment_status, order_item_id = EXCLUDED.order_item_id
		`, o.UserID, oi.ItemID, model.EnrollmentCompleted, paymentStatus, oi.ID); err != nil {
			return fmt.Errorf("failed to complete enrollment: %w", err)
		}
	}

	if o.DiscountCodeID != nil && o.DiscountAmount > 0 {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO discount_redemptions (code_id, user_id, order_id) VALUES ($1, $2, $3)
			ON CONFLICT (code_id, user_id, order_id) DO NOTHING
		`, *o.DiscountCodeID, o.UserID, o.ID)
		if err != nil {
			return fmt.Errorf("failed to record redemption: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			if _, err := tx.ExecContext(ctx,
				`UPDATE discount_codes SET times_used = times_used + 1 WHERE id = $1`, *o.DiscountCodeID); err != nil {
				return fmt.Errorf("failed to bump discount usage: %w", err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM cart_items ci USING carts c, order_items oi
		WHERE ci.cart_id = c.id AND c.user_id = $2 AND oi.order_id = $1
		  AND ci.item_type = oi.item_type AND ci.item_id = oi.item_id
	`, o.ID, o.UserID); err != nil {
		return fmt.Errorf("failed to clear purchased cart items: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = $2, paid_at = COALESCE(paid_at, NOW()), updated_at = NOW() WHERE id = $1
	`, o.ID, model.OrderCompleted); err != nil {
		return fmt.Errorf("failed to complete order: %w", err)
	}
	return nil
}
