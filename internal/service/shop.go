package service

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"

	"eventhub/internal/dto"
	"eventhub/internal/model"
	"eventhub/internal/repo"
	"eventhub/internal/shop"
)

// cartView prices the cart. Totals cover the items that are not reserved by an order yet.
func (s *service) cartView(ctx *ginext.Context, cart *model.Cart) (*dto.CartView, error) {
	var dc *model.DiscountCode
	if cart.DiscountCodeID != nil {
		var err error
		dc, err = s.store.GetDiscountByID(ctx.Request.Context(), *cart.DiscountCodeID)
		if err != nil && !errors.Is(err, repo.ErrDiscountNotFound) {
			return nil, err
		}
	}

	view := &dto.CartView{ID: cart.ID, Items: make([]dto.CartItemView, 0, len(cart.Items))}
	owned := make([]model.CartItem, 0, len(cart.Items))
	for _, ci := range cart.Items {
		v := dto.CartItemView{
			ID:       ci.ID,
			ItemType: ci.ItemType,
			ItemID:   ci.ItemID,
			EventID:  ci.EventID,
			Status:   ci.Status,
			Reserved: ci.Status == model.CartItemReserved,
			OrderID:  ci.ReservedOrderID,
			Item:     ci.Item,
			AddedAt:  ci.AddedAt,
		}
		if ci.Item != nil {
			v.Title = ci.Item.Title
			v.Price = shop.EffectivePrice(ci.Item)
		}
		view.Items = append(view.Items, v)
		if !v.Reserved {
			owned = append(owned, ci)
		}
	}

	totals := shop.CartTotals(shop.Lines(owned), dc, s.now())
	view.Subtotal, view.Discount, view.Total = totals.Subtotal, totals.Discount, totals.Total
	if dc != nil {
		view.DiscountCode = dc.Code
	}
	return view, nil
}

func (s *service) respondCart(ctx *ginext.Context, userID int64, eventID *int64) {
	cart, err := s.store.GetCart(ctx.Request.Context(), userID, eventID)
	if err != nil {
		s.fail(ctx, err, "failed to get cart")
		return
	}
	view, err := s.cartView(ctx, cart)
	if err != nil {
		s.fail(ctx, err, "failed to price cart")
		return
	}
	dto.SuccessResponse(ctx, view)
}

func (s *service) GetCart(ctx *ginext.Context) {
	u, ok := s.currentUser(ctx)
	if !ok {
		return
	}
	eventID, ok := queryInt64(ctx, "event")
	if !ok {
		return
	}
	s.respondCart(ctx, u.ID, eventID)
}

func (s *service) AddCartItem(ctx *ginext.Context) {
	u, ok := s.currentUser(ctx)
	if !ok {
		return
	}
	var req dto.AddCartItemRequest
	if !s.bindJSON(ctx, &req) {
		return
	}
	ci, created, err := s.store.AddCartItem(ctx.Request.Context(), u.ID, req.ItemType, req.ItemID)
	if err != nil {
		s.fail(ctx, err, "failed to add cart item")
		return
	}
	if created {
		s.log.Info().Int64("user_id", u.ID).Str("item_type", req.ItemType).Int64("item_id", req.ItemID).Msg("item added to cart")
		dto.SuccessCreatedResponse(ctx, ci)
		return
	}
	dto.SuccessResponse(ctx, ci)
}

func (s *service) RemoveCartItem(ctx *ginext.Context) {
	u, ok := s.currentUser(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	if err := s.pay.RemoveCartItem(ctx.Request.Context(), u.ID, id); err != nil {
		s.fail(ctx, err, "failed to remove cart item")
		return
	}
	dto.SuccessMessage(ctx, http.StatusOK, "Item removed from cart.")
}

func (s *service) ApplyDiscount(ctx *ginext.Context) {
	u, ok := s.currentUser(ctx)
	if !ok {
		return
	}
	var req dto.ApplyDiscountRequest
	if !s.bindJSON(ctx, &req) {
		return
	}
	rctx := ctx.Request.Context()

	dc, err := s.store.GetDiscountByCode(rctx, shop.NormalizeCode(req.Code))
	if err != nil {
		s.fail(ctx, err, "failed to get discount code")
		return
	}
	cart, err := s.store.GetCart(rctx, u.ID, nil)
	if err != nil {
		s.fail(ctx, err, "failed to get cart")
		return
	}
	owned := make([]model.CartItem, 0, len(cart.Items))
	for _, ci := range cart.Items {
		if ci.Status != model.CartItemReserved {
			owned = append(owned, ci)
		}
	}
	lines := shop.Lines(owned)
	if len(shop.EligibleLines(lines, dc)) == 0 {
		s.fail(ctx, shop.ErrDiscountNotEligible, "")
		return
	}
	used, err := s.store.CountUserRedemptions(rctx, dc.ID, u.ID)
	if err != nil {
		s.fail(ctx, err, "failed to count redemptions")
		return
	}
	if err := shop.CheckUserQuota(dc, used); err != nil {
		s.fail(ctx, err, "")
		return
	}
	if err := shop.ValidateDiscount(dc, shop.CartTotals(lines, nil, s.now()).Subtotal, s.now()); err != nil {
		s.fail(ctx, err, "")
		return
	}

	if err := s.store.SetCartDiscount(rctx, u.ID, &dc.ID); err != nil {
		s.fail(ctx, err, "failed to apply discount")
		return
	}
	cart.DiscountCodeID = &dc.ID
	view, err := s.cartView(ctx, cart)
	if err != nil {
		s.fail(ctx, err, "failed to price cart")
		return
	}
	dto.SuccessResponse(ctx, view)
}

func (s *service) RemoveDiscount(ctx *ginext.Context) {
	u, ok := s.currentUser(ctx)
	if !ok {
		return
	}
	if err := s.store.SetCartDiscount(ctx.Request.Context(), u.ID, nil); err != nil {
		s.fail(ctx, err, "failed to remove discount")
		return
	}
	s.respondCart(ctx, u.ID, nil)
}

func (s *service) Checkout(ctx *ginext.Context) {
	u, ok := s.currentUser(ctx)
	if !ok {
		return
	}
	order, err := s.store.Checkout(ctx.Request.Context(), u.ID, s.now())
	if err != nil {
		s.fail(ctx, err, "failed to check out")
		return
	}
	s.log.Info().Str("order_id", order.OrderID).Int64("total", order.Total).Str("status", order.Status).Msg("order placed")
	dto.SuccessCreatedResponse(ctx, order)
}

func (s *service) PartialCheckout(ctx *ginext.Context) {
	u, ok := s.currentUser(ctx)
	if !ok {
		return
	}
	var req dto.PartialCheckoutRequest
	if !s.bindJSON(ctx, &req) {
		return
	}
	orders, err := s.store.PartialCheckout(ctx.Request.Context(), u.ID, req.CartItemIDs, s.now())
	if err != nil {
		s.fail(ctx, err, "failed to check out selected items")
		return
	}
	s.log.Info().Int64("user_id", u.ID).Int("orders", len(orders)).Msg("partial checkout")
	dto.SuccessCreatedResponse(ctx, orders)
}

func (s *service) ListOrders(ctx *ginext.Context) {
	u, ok := s.currentUser(ctx)
	if !ok {
		return
	}
	orders, err := s.store.ListOrders(ctx.Request.Context(), u.ID)
	if err != nil {
		s.fail(ctx, err, "failed to list orders")
		return
	}
	dto.SuccessResponse(ctx, orders)
}

func orderParam(ctx *ginext.Context) (string, bool) {
	id := ctx.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		dto.FieldIncorrectError(ctx, "id")
		return "", false
	}
	return id, true
}

func (s *service) GetOrder(ctx *ginext.Context) {
	u, ok := s.currentUser(ctx)
	if !ok {
		return
	}
	id, ok := orderParam(ctx)
	if !ok {
		return
	}
	order, err := s.store.GetOrder(ctx.Request.Context(), u.ID, id)
	if err != nil {
		s.fail(ctx, err, "failed to get order")
		return
	}
	dto.SuccessResponse(ctx, order)
}

func (s *service) CancelOrder(ctx *ginext.Context) {
	u, ok := s.currentUser(ctx)
	if !ok {
		return
	}
	id, ok := orderParam(ctx)
	if !ok {
		return
	}
	order, err := s.store.CancelOrder(ctx.Request.Context(), u.ID, id)
	if err != nil {
		s.fail(ctx, err, "failed to cancel order")
		return
	}
	s.log.Info().Str("order_id", order.OrderID).Msg("order cancelled")
	dto.SuccessResponse(ctx, order)
}

func (s *service) PayOrder(ctx *ginext.Context) {
	u, ok := s.currentUser(ctx)
	if !ok {
		return
	}
	id, ok := orderParam(ctx)
	if !ok {
		return
	}
	var req dto.PayRequest
	if !s.bindOptionalJSON(ctx, &req) {
		return
	}
	start, err := s.pay.InitiateOrder(ctx.Request.Context(), u, id, req.App)
	if err != nil {
		s.fail(ctx, err, "failed to start payment")
		return
	}
	dto.SuccessResponse(ctx, start)
}

func (s *service) BatchPay(ctx *ginext.Context) {
	u, ok := s.currentUser(ctx)
	if !ok {
		return
	}
	var req dto.BatchPayRequest
	if !s.bindJSON(ctx, &req) {
		return
	}
	start, err := s.pay.InitiateBatch(ctx.Request.Context(), u, req.OrderIDs, req.App)
	if err != nil {
		s.fail(ctx, err, "failed to start batch payment")
		return
	}
	dto.SuccessResponse(ctx, start)
}

// PaymentCallback is where the gateway sends the user back. It always redirects to the frontend.
func (s *service) PaymentCallback(ctx *ginext.Context) {
	target := s.pay.HandleCallback(ctx.Request.Context(), ctx.Query("Authority"), ctx.Query("Status"))
	ctx.Redirect(http.StatusFound, target)
}

func (s *service) MyRegistrations(ctx *ginext.Context) {
	u, ok := s.currentUser(ctx)
	if !ok {
		return
	}
	eventID, ok := queryInt64(ctx, "event")
	if !ok {
		return
	}
	rctx := ctx.Request.Context()

	var out dto.Registrations
	var err error
	if out.Presentations, err = s.store.ListUserEnrollments(rctx, u.ID, eventID); err != nil {
		s.fail(ctx, err, "failed to list enrollments")
		return
	}
	if out.SoloCompetitions, err = s.store.ListUserSoloRegistrations(rctx, u.ID, eventID); err != nil {
		s.fail(ctx, err, "failed to list solo registrations")
		return
	}
	if out.Teams, err = s.store.ListUserTeams(rctx, u.ID, eventID); err != nil {
		s.fail(ctx, err, "failed to list teams")
		return
	}
	dto.SuccessResponse(ctx, out)
}
