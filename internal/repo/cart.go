package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"eventhub/internal/model"
	"eventhub/internal/shop"
)

type ShopStore interface {
	GetCart(ctx context.Context, userID int64, eventID *int64) (*model.Cart, error)
	AddCartItem(ctx context.Context, userID int64, itemType string, itemID int64) (*model.CartItem, bool, error)
	GetCartItem(ctx context.Context, userID, cartItemID int64) (*model.CartItem, error)
	DeleteCartItem(ctx context.Context, userID, cartItemID int64) error
	SetCartDiscount(ctx context.Context, userID int64, codeID *int64) error

	GetDiscountByCode(ctx context.Context, code string) (*model.DiscountCode, error)
	GetDiscountByID(ctx context.Context, id int64) (*model.DiscountCode, error)
	CountUserRedemptions(ctx context.Context, codeID, userID int64) (int, error)
	CreateDiscountCode(ctx context.Context, dc *model.DiscountCode) (int64, error)

	Checkout(ctx context.Context, userID int64, now time.Time) (*model.Order, error)
	PartialCheckout(ctx context.Context, userID int64, cartItemIDs []int64, now time.Time) ([]model.Order, error)
	GetOrder(ctx context.Context, userID int64, orderUUID string) (*model.Order, error)
	ListOrders(ctx context.Context, userID int64) ([]model.Order, error)
	CancelOrder(ctx context.Context, userID int64, orderUUID string) (*model.Order, error)
}

const cartItemColumns = `ci.id, ci.cart_id, ci.item_type, ci.item_id, ci.event_id, ci.status,
	ci.reserved_order_id, ci.reserved_order_item_id, ci.added_at`

func scanCartItem(row interface{ Scan(...any) error }) (*model.CartItem, error) {
	var ci model.CartItem
	if err := row.Scan(&ci.ID, &ci.CartID, &ci.ItemType, &ci.ItemID, &ci.EventID, &ci.Status,
		&ci.ReservedOrderID, &ci.ReservedOrderItemID, &ci.AddedAt); err != nil {
		return nil, err
	}
	return &ci, nil
}

func lockCart(ctx context.Context, tx *sql.Tx, userID int64) (*model.Cart, error) {
	c := &model.Cart{UserID: userID}
	err := tx.QueryRowContext(ctx, `
		SELECT id, applied_discount_code_id FROM carts WHERE user_id = $1 FOR UPDATE
	`, userID).Scan(&c.ID, &c.DiscountCodeID)
	if errors.Is(err, sql.ErrNoRows) {
		// accounts created before carts existed get one lazily
		err = tx.QueryRowContext(ctx, `INSERT INTO carts (user_id) VALUES ($1) RETURNING id`, userID).Scan(&c.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock cart: %w", err)
	}
	return c, nil
}

func (r *repository) GetCart(ctx context.Context, userID int64, eventID *int64) (*model.Cart, error) {
	c := &model.Cart{UserID: userID, Items: make([]model.CartItem, 0)}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, applied_discount_code_id FROM carts WHERE user_id = $1`, userID).Scan(&c.ID, &c.DiscountCodeID)
	if errors.Is(err, sql.ErrNoRows) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	var cs conds
	cs.add("ci.cart_id = ?", c.ID)
	if eventID != nil {
		cs.add("ci.event_id = ?", *eventID)
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+cartItemColumns+` FROM cart_items ci`+cs.where()+` ORDER BY ci.added_at`, cs.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		ci, err := scanCartItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		c.Items = append(c.Items, *ci)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range c.Items {
		it, err := getItem(ctx, r.db, c.Items[i].ItemType, c.Items[i].ItemID, false)
		if errors.Is(err, ErrItemNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		c.Items[i].Item = it
	}
	return c, nil
}

// owns reports whether the user already holds a completed enrollment or an active team for the item.
func owns(ctx context.Context, q querier, userID int64, itemType string, itemID int64) (bool, error) {
	var owned bool
	var err error
	switch itemType {
	case model.ItemCompetitionTeam:
		err = q.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM competition_teams WHERE id = $1 AND status = $2)`,
			itemID, model.TeamActive).Scan(&owned)
	default:
		table, column, terr := enrollmentTable(itemType)
		if terr != nil {
			return false, terr
		}
		err = q.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM `+table+` WHERE `+column+` = $1 AND user_id = $2 AND status = $3)`,
			itemID, userID, model.EnrollmentCompleted).Scan(&owned)
	}
	if err != nil {
		return false, fmt.Errorf("failed to check ownership: %w", err)
	}
	return owned, nil
}

func hasUnpaidOrder(ctx context.Context, q querier, userID int64, itemType string, itemID int64) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM order_items oi JOIN orders o ON o.id = oi.order_id
			WHERE o.user_id = $1 AND oi.item_type = $2 AND oi.item_id = $3 AND o.status = ANY($4)
		)
	`, userID, itemType, itemID, pq.Array(model.UnpaidOrderStatuses)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check unpaid orders: %w", err)
	}
	return exists, nil
}

// AddCartItem puts an item in the user's cart. The bool reports whether a new row was created.
func (r *repository) AddCartItem(ctx context.Context, userID int64, itemType string, itemID int64) (*model.CartItem, bool, error) {
	var ci *model.CartItem
	var created bool
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		cart, err := lockCart(ctx, tx, userID)
		if err != nil {
			return err
		}
		it, err := getItem(ctx, tx, itemType, itemID, true)
		if err != nil {
			return err
		}
		if err := shop.CheckAddToCart(it, userID); err != nil {
			return err
		}
		if owned, err := owns(ctx, tx, userID, itemType, itemID); err != nil {
			return err
		} else if owned {
			return ErrAlreadyOwned
		}

		existing, err := scanCartItem(tx.QueryRowContext(ctx, `
			SELECT `+cartItemColumns+` FROM cart_items ci
			WHERE ci.cart_id = $1 AND ci.item_type = $2 AND ci.item_id = $3
		`, cart.ID, itemType, itemID))
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to check cart: %w", err)
		}
		if existing != nil && existing.Status == model.CartItemReserved {
			return ErrReservedByOrder
		}
		if pending, err := hasUnpaidOrder(ctx, tx, userID, itemType, itemID); err != nil {
			return err
		} else if pending {
			return ErrPendingOrder
		}
		if existing != nil {
			existing.Item = it
			ci = existing
			return nil
		}
		if it.Remaining != nil && *it.Remaining <= 0 {
			return ErrCapacityFull
		}

		ci, err = scanCartItem(tx.QueryRowContext(ctx, `
			INSERT INTO cart_items AS ci (cart_id, item_type, item_id, event_id)
			VALUES ($1, $2, $3, $4)
			RETURNING `+cartItemColumns, cart.ID, itemType, itemID, it.EventID))
		if err != nil {
			return fmt.Errorf("failed to insert cart item: %w", err)
		}
		ci.Item = it
		created = true

		if itemType == model.ItemCompetitionTeam && !it.RequiresApproval {
			if _, err := tx.ExecContext(ctx, `
				UPDATE competition_teams SET status = $1, payment_status = $2 WHERE id = $3
			`, model.TeamInCart, model.PaymentPending, itemID); err != nil {
				return fmt.Errorf("failed to update team status: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return ci, created, nil
}

func (r *repository) GetCartItem(ctx context.Context, userID, cartItemID int64) (*model.CartItem, error) {
	ci, err := scanCartItem(r.db.QueryRowContext(ctx, `
		SELECT `+cartItemColumns+` FROM cart_items ci JOIN carts c ON c.id = ci.cart_id
		WHERE ci.id = $1 AND c.user_id = $2
	`, cartItemID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart item: %w", err)
	}
	return ci, nil
}

// DeleteCartItem removes an unreserved cart item and hands a team back to its pre-cart state.
func (r *repository) DeleteCartItem(ctx context.Context, userID, cartItemID int64) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		cart, err := lockCart(ctx, tx, userID)
		if err != nil {
			return err
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

		if ci.ItemType == model.ItemCompetitionTeam {
			if err := releaseRemovedTeam(ctx, tx, ci.ItemID); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE id = $1`, ci.ID); err != nil {
			return fmt.Errorf("failed to delete cart item: %w", err)
		}
		return dropStaleDiscount(ctx, tx, cart)
	})
}

func releaseRemovedTeam(ctx context.Context, tx *sql.Tx, teamID int64) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE competition_teams t
		SET status = CASE WHEN g.requires_admin_approval THEN $2 ELSE $3 END
		FROM group_competitions g
		WHERE g.id = t.group_competition_id AND t.id = $1 AND t.status = ANY($4)
	`, teamID,
		shop.ReleasedTeamStatus(true, shop.OutcomeRemoved),
		shop.ReleasedTeamStatus(false, shop.OutcomeRemoved),
		pq.Array([]string{model.TeamInCart, model.TeamPaymentFailed, model.TeamAwaitingPaymentConfirmation}),
	); err != nil {
		return fmt.Errorf("failed to release team: %w", err)
	}
	return nil
}

// dropStaleDiscount clears the applied code once no remaining cart item is eligible for it.
func dropStaleDiscount(ctx context.Context, tx *sql.Tx, cart *model.Cart) error {
	if cart.DiscountCodeID == nil {
		return nil
	}
	dc, err := getDiscount(ctx, tx, *cart.DiscountCodeID)
	if errors.Is(err, ErrDiscountNotFound) {
		return setCartDiscount(ctx, tx, cart.ID, nil)
	}
	if err != nil {
		return err
	}

	rows, err := tx.QueryContext(ctx, `SELECT item_type, item_id FROM cart_items WHERE cart_id = $1`, cart.ID)
	if err != nil {
		return fmt.Errorf("failed to list cart items: %w", err)
	}
	eligible := false
	for rows.Next() {
		var typ string
		var id int64
		if err := rows.Scan(&typ, &id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan cart item: %w", err)
		}
		if shop.Targets(dc, typ, id) {
			eligible = true
		}
	}
	rows.Close()
	if eligible {
		return nil
	}
	return setCartDiscount(ctx, tx, cart.ID, nil)
}

func setCartDiscount(ctx context.Context, q querier, cartID int64, codeID *int64) error {
	if _, err := q.ExecContext(ctx,
		`UPDATE carts SET applied_discount_code_id = $1 WHERE id = $2`, codeID, cartID); err != nil {
		return fmt.Errorf("failed to set cart discount: %w", err)
	}
	return nil
}

func (r *repository) SetCartDiscount(ctx context.Context, userID int64, codeID *int64) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		cart, err := lockCart(ctx, tx, userID)
		if err != nil {
			return err
		}
		return setCartDiscount(ctx, tx, cart.ID, codeID)
	})
}
