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

// checkoutTeamStatuses are the team states a leader may pay from.
var checkoutTeamStatuses = []string{
	model.TeamInCart, model.TeamPaymentFailed, model.TeamCancelled, model.TeamApprovedAwaitingPayment,
}

func lockOwnedCartItems(ctx context.Context, tx *sql.Tx, cartID int64, only []int64) ([]model.CartItem, error) {
	var c conds
	c.add("ci.cart_id = ?", cartID)
	c.add("ci.status = ?", model.CartItemOwned)
	if only != nil {
		c.add("ci.id = ANY(?)", pq.Array(only))
	}
	rows, err := tx.QueryContext(ctx,
		`SELECT `+cartItemColumns+` FROM cart_items ci`+c.where()+` ORDER BY ci.added_at FOR UPDATE`, c.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to lock cart items: %w", err)
	}
	defer rows.Close()

	items := make([]model.CartItem, 0)
	for rows.Next() {
		ci, err := scanCartItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, *ci)
	}
	return items, rows.Err()
}

// resolveForCheckout locks every item and reports the ones that can no longer be bought.
func resolveForCheckout(ctx context.Context, tx *sql.Tx, items []model.CartItem) error {
	var gone []UnavailableItem
	for i := range items {
		ci := &items[i]
		it, err := getItem(ctx, tx, ci.ItemType, ci.ItemID, true)
		if err != nil && !errors.Is(err, ErrItemNotFound) {
			return err
		}
		if it == nil || !shop.Available(it) ||
			(it.Type == model.ItemCompetitionTeam && !contains(checkoutTeamStatuses, it.TeamStatus)) {
			gone = append(gone, UnavailableItem{
				CartItemID: ci.ID, EventID: ci.EventID, ItemType: ci.ItemType, ObjectID: ci.ItemID,
			})
			continue
		}
		if it.Remaining != nil && *it.Remaining <= 0 {
			return &CapacityError{ItemType: it.Type, ItemID: it.ID}
		}
		ci.Item = it
	}
	if len(gone) > 0 {
		return &UnavailableItemsError{Items: gone}
	}
	return nil
}

// usableDiscount returns the cart's code when it still passes the per-user quota, or nil.
func usableDiscount(ctx context.Context, tx *sql.Tx, cart *model.Cart) (*model.DiscountCode, error) {
	if cart.DiscountCodeID == nil {
		return nil, nil
	}
	dc, err := getDiscount(ctx, tx, *cart.DiscountCodeID)
	if errors.Is(err, ErrDiscountNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	used, err := countRedemptions(ctx, tx, dc.ID, cart.UserID)
	if err != nil {
		return nil, err
	}
	if shop.CheckUserQuota(dc, used) != nil {
		return nil, nil
	}
	return dc, nil
}

func orderItemFor(l shop.Line) model.OrderItem {
	return model.OrderItem{
		ItemType: l.Item.Type, ItemID: l.Item.ID, EventID: l.Item.EventID, Description: l.Item.Title, Price: l.Price,
	}
}

// placeOrder stores o and either finalizes it (zero total) or reserves its cart items.
func placeOrder(ctx context.Context, tx *sql.Tx, o *model.Order, cartItemIDs []int64, now time.Time) error {
	if o.Total == 0 {
		o.Status = model.OrderProcessingEnrollment
		o.PaidAt = &now
	} else {
		o.Status = model.OrderPendingPayment
	}
	if err := insertOrder(ctx, tx, o); err != nil {
		return err
	}
	if o.Total == 0 {
		if err := finalizeTx(ctx, tx, o.ID); err != nil {
			return err
		}
		o.Status = model.OrderCompleted
		return nil
	}
	for i, oi := range o.Items {
		if err := reserveTx(ctx, tx, o.UserID, cartItemIDs[i], oi); err != nil {
			return err
		}
	}
	return nil
}

// Checkout turns every unreserved cart item into one order.
func (r *repository) Checkout(ctx context.Context, userID int64, now time.Time) (*model.Order, error) {
	var order *model.Order
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		cart, err := lockCart(ctx, tx, userID)
		if err != nil {
			return err
		}
		items, err := lockOwnedCartItems(ctx, tx, cart.ID, nil)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrCartEmpty
		}
		if err := resolveForCheckout(ctx, tx, items); err != nil {
			return err
		}

		dc, err := usableDiscount(ctx, tx, cart)
		if err != nil {
			return err
		}
		lines := shop.Lines(items)
		totals := shop.CartTotals(lines, dc, now)

		o := &model.Order{
			UserID:         userID,
			Subtotal:       totals.Subtotal,
			DiscountAmount: totals.Discount,
			Total:          totals.Total,
			Items:          make([]model.OrderItem, 0, len(lines)),
		}
		if totals.Discount > 0 {
			o.DiscountCodeID = &dc.ID
			o.DiscountCode = dc.Code
		}
		cartItemIDs := make([]int64, 0, len(lines))
		for _, l := range lines {
			o.Items = append(o.Items, orderItemFor(l))
			cartItemIDs = append(cartItemIDs, l.CartItemID)
		}

		if err := placeOrder(ctx, tx, o, cartItemIDs, now); err != nil {
			return err
		}
		if err := setCartDiscount(ctx, tx, cart.ID, nil); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// PartialCheckout creates one order per selected payable item. Free items are skipped.
func (r *repository) PartialCheckout(ctx context.Context, userID int64, cartItemIDs []int64, now time.Time) ([]model.Order, error) {
	var orders []model.Order
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		cart, err := lockCart(ctx, tx, userID)
		if err != nil {
			return err
		}
		items, err := lockOwnedCartItems(ctx, tx, cart.ID, cartItemIDs)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrCartItemNotFound
		}
		if err := resolveForCheckout(ctx, tx, items); err != nil {
			return err
		}

		var payable []shop.Line
		for _, l := range shop.Lines(items) {
			if l.Price > 0 {
				payable = append(payable, l)
			}
		}
		if len(payable) == 0 {
			return ErrNothingPayable
		}

		dc, err := usableDiscount(ctx, tx, cart)
		if err != nil {
			return err
		}
		discountUsed := false
		for _, l := range payable {
			off := shop.LineDiscount(l, dc, now)
			o := &model.Order{
				UserID:         userID,
				Subtotal:       l.Price,
				DiscountAmount: off,
				Total:          l.Price - off,
				Items:          []model.OrderItem{orderItemFor(l)},
			}
			if off > 0 {
				o.DiscountCodeID = &dc.ID
				o.DiscountCode = dc.Code
				discountUsed = true
			}
			if err := placeOrder(ctx, tx, o, []int64{l.CartItemID}, now); err != nil {
				return err
			}
			orders = append(orders, *o)
		}

		if discountUsed {
			return setCartDiscount(ctx, tx, cart.ID, nil)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
