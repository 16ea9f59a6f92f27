package reconciler

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"eventhub/internal/dto"
	"eventhub/internal/model"
	"eventhub/internal/payment/zarinpal"
	"eventhub/internal/repo"
	"eventhub/internal/shop"
)

const (
	reasonInvalidBatch   = "invalid_batch_state"
	reasonInvalidOrder   = "invalid_order_state"
	reasonVerifyFailed   = "verify_failed"
	reasonUserCancelled  = "user_cancelled_or_gateway_nok"
	errInvalidParams     = "invalid_callback_params"
	errOrderNotFound     = "order_not_found"
	gatewayStatusOK      = "OK"
	codeGatewayUnreached = "0"
)

// redirectURL builds FRONTEND_BASE_URL + path with params kept in the given order.
func (r *Reconciler) redirectURL(success bool, params ...string) string {
	path := r.cfg.FailurePath
	if success {
		path = r.cfg.SuccessPath
	}
	var b strings.Builder
	b.WriteString(strings.TrimRight(r.cfg.FrontendBaseURL, "/"))
	b.WriteString(path)
	for i := 0; i+1 < len(params); i += 2 {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(params[i]))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[i+1]))
	}
	return b.String()
}

// withApp appends app=<slug> when the stored redirect app is still active.
func (r *Reconciler) withApp(ctx context.Context, app *string, params []string) []string {
	if app == nil || *app == "" {
		return params
	}
	a, err := r.store.GetActivePaymentApp(ctx, *app)
	if err != nil {
		if !errors.Is(err, repo.ErrPaymentAppNotFound) {
			r.log.Warn().Err(err).Str("app", *app).Msg("failed to resolve payment app")
		}
		return params
	}
	return append(params, "app", a.Slug)
}

// HandleCallback settles the payment the gateway redirected back for and returns the
// frontend URL to send the user to.
func (r *Reconciler) HandleCallback(ctx context.Context, authority, status string) string {
	if authority == "" {
		return r.redirectURL(false, "error", errInvalidParams)
	}
	b, o, err := r.store.FindByAuthority(ctx, authority)
	if err != nil {
		if !errors.Is(err, repo.ErrOrderNotFound) {
			r.log.Error().Err(err).Str("authority", authority).Msg("failed to resolve callback authority")
		}
		return r.redirectURL(false, "error", errOrderNotFound)
	}
	if b != nil {
		return r.batchCallback(ctx, b, authority, status)
	}
	return r.orderCallback(ctx, o, authority, status)
}

func (r *Reconciler) batchCallback(ctx context.Context, b *model.PaymentBatch, authority, status string) string {
	params := []string{"batch_id", b.BatchID}
	fail := func(extra ...string) string {
		return r.redirectURL(false, r.withApp(ctx, b.RedirectApp, append(params, extra...))...)
	}

	switch b.Status {
	case model.BatchCompleted:
		return r.redirectURL(true, r.withApp(ctx, b.RedirectApp, params)...)
	case model.BatchAwaitingGateway, model.BatchPaymentFailed:
	default:
		return fail("reason", reasonInvalidBatch)
	}

	if status != gatewayStatusOK {
		r.failBatch(ctx, b)
		return fail("reason", reasonUserCancelled)
	}
	rc, err := r.gw.Verify(ctx, authority, b.Total)
	if err != nil {
		code, rejected := verifyCode(err)
		if rejected {
			r.failBatch(ctx, b)
		} else {
			r.log.Warn().Err(err).Str("batch_id", b.BatchID).Msg("verify unreachable, leaving batch for the reconciler")
		}
		return fail("reason", reasonVerifyFailed, "code", code)
	}
	if err := r.completeBatch(ctx, b, rc); err != nil {
		return fail("reason", reasonVerifyFailed, "code", strconv.Itoa(rc.Code))
	}
	return r.redirectURL(true, r.withApp(ctx, b.RedirectApp, params)...)
}

func (r *Reconciler) orderCallback(ctx context.Context, o *model.Order, authority, status string) string {
	params := []string{"order_id", o.OrderID}
	fail := func(extra ...string) string {
		return r.redirectURL(false, r.withApp(ctx, o.RedirectApp, append(params, extra...))...)
	}

	switch o.Status {
	case model.OrderCompleted:
		return r.redirectURL(true, r.withApp(ctx, o.RedirectApp, params)...)
	case model.OrderAwaitingGateway, model.OrderPaymentFailed, model.OrderPendingPayment:
	default:
		return fail("reason", reasonInvalidOrder)
	}

	if status != gatewayStatusOK {
		r.failOrder(ctx, o)
		return fail("reason", reasonUserCancelled)
	}
	rc, err := r.gw.Verify(ctx, authority, o.Total)
	if err != nil {
		if _, rejected := verifyCode(err); rejected {
			r.failOrder(ctx, o)
		} else {
			r.log.Warn().Err(err).Str("order_id", o.OrderID).Msg("verify unreachable, leaving order for the reconciler")
		}
		return fail("reason", reasonVerifyFailed)
	}
	if err := r.completeOrder(ctx, o, rc); err != nil {
		return fail("reason", reasonVerifyFailed)
	}
	return r.redirectURL(true, r.withApp(ctx, o.RedirectApp, params)...)
}

// verifyCode returns the gateway code of a rejection. Transport failures are not rejections.
func verifyCode(err error) (string, bool) {
	var gwErr *zarinpal.GatewayError
	if errors.As(err, &gwErr) {
		return strconv.Itoa(gwErr.Code), true
	}
	return codeGatewayUnreached, false
}

func (r *Reconciler) completeBatch(ctx context.Context, b *model.PaymentBatch, rc *zarinpal.Receipt) error {
	if err := r.store.CompleteBatch(ctx, b.ID, rc.RefID, rc.CardPan, r.now()); err != nil {
		r.log.Error().Err(err).Str("batch_id", b.BatchID).Msg("failed to complete batch")
		return err
	}
	r.log.Info().Str("batch_id", b.BatchID).Str("ref_id", rc.RefID).Msg("batch paid")
	r.notifyCompleted(ctx, b.OrderIDs, rc.RefID)
	return nil
}

func (r *Reconciler) completeOrder(ctx context.Context, o *model.Order, rc *zarinpal.Receipt) error {
	if err := r.store.CompleteOrder(ctx, o.ID, rc.RefID, rc.CardPan, r.now()); err != nil {
		r.log.Error().Err(err).Str("order_id", o.OrderID).Msg("failed to complete order")
		return err
	}
	r.log.Info().Str("order_id", o.OrderID).Str("ref_id", rc.RefID).Msg("order paid")
	r.notifyCompleted(ctx, []int64{o.ID}, rc.RefID)
	return nil
}

func (r *Reconciler) failBatch(ctx context.Context, b *model.PaymentBatch) {
	if err := r.store.FailBatch(ctx, b.ID); err != nil {
		r.log.Error().Err(err).Str("batch_id", b.BatchID).Msg("failed to fail batch")
		return
	}
	r.log.Info().Str("batch_id", b.BatchID).Msg("batch payment failed")
	r.notifyFailed(ctx, b.OrderIDs)
}

func (r *Reconciler) failOrder(ctx context.Context, o *model.Order) {
	if err := r.store.ReleaseOrders(ctx, []int64{o.ID}, model.OrderPaymentFailed, shop.OutcomeFailed); err != nil {
		r.log.Error().Err(err).Str("order_id", o.OrderID).Msg("failed to fail order")
		return
	}
	r.log.Info().Str("order_id", o.OrderID).Msg("order payment failed")
	r.notifyFailed(ctx, []int64{o.ID})
}

// VerifyUnverified settles every payment the gateway holds as paid but unverified.
// It returns how many were settled either way.
func (r *Reconciler) VerifyUnverified(ctx context.Context) (int, error) {
	authorities, err := r.gw.Unverified(ctx)
	if err != nil {
		return 0, err
	}
	settled := 0
	for _, a := range authorities {
		if ctx.Err() != nil {
			return settled, ctx.Err()
		}
		b, o, err := r.store.FindByAuthority(ctx, a)
		if errors.Is(err, repo.ErrOrderNotFound) {
			continue
		}
		if err != nil {
			r.log.Error().Err(err).Str("authority", a).Msg("failed to resolve unverified authority")
			continue
		}
		if r.settle(ctx, a, b, o) {
			settled++
		}
	}
	return settled, nil
}

func (r *Reconciler) settle(ctx context.Context, authority string, b *model.PaymentBatch, o *model.Order) bool {
	var amount int64
	switch {
	case b != nil && (b.Status == model.BatchCompleted || b.Status == model.BatchVerified):
		return false
	case b != nil:
		amount = b.Total
	case o.Status == model.OrderCompleted:
		return false
	default:
		amount = o.Total
	}

	rc, err := r.gw.Verify(ctx, authority, amount)
	if err != nil {
		if _, rejected := verifyCode(err); !rejected {
			r.log.Warn().Err(err).Str("authority", authority).Msg("verify unreachable")
			return false
		}
		if b != nil {
			r.failBatch(ctx, b)
		} else {
			r.failOrder(ctx, o)
		}
		return true
	}
	if b != nil {
		return r.completeBatch(ctx, b, rc) == nil
	}
	return r.completeOrder(ctx, o, rc) == nil
}

// SweepStale asks the gateway about payments stuck at the gateway since before StaleAfter.
func (r *Reconciler) SweepStale(ctx context.Context) (int, error) {
	batches, orders, err := r.store.StaleAwaiting(ctx, r.now().Add(-r.cfg.StaleAfter))
	if err != nil {
		return 0, err
	}
	failed := 0
	for i := range batches {
		if r.inquire(ctx, &batches[i], nil) {
			failed++
		}
	}
	for i := range orders {
		if r.inquire(ctx, nil, &orders[i]) {
			failed++
		}
	}
	return failed, nil
}

// inquire fails the payment when the gateway reports it failed. Other states are left alone.
func (r *Reconciler) inquire(ctx context.Context, b *model.PaymentBatch, o *model.Order) bool {
	var authority string
	lc := r.log.With()
	if b != nil {
		authority = deref(b.Authority)
		lc = lc.Str("batch_id", b.BatchID)
	} else {
		authority = deref(o.Authority)
		lc = lc.Str("order_id", o.OrderID)
	}
	if authority == "" {
		return false
	}
	logger := lc.Str("authority", authority).Logger()

	status, err := r.gw.Inquiry(ctx, authority)
	if err != nil {
		logger.Warn().Err(err).Msg("payment inquiry failed")
		return false
	}
	if status != zarinpal.InquiryFailed {
		logger.Info().Str("gateway_status", status).Msg("stale payment left as is")
		return false
	}
	if b != nil {
		r.failBatch(ctx, b)
	} else {
		r.failOrder(ctx, o)
	}
	return true
}

// CheckTimeout re-checks one payment once its delayed timeout message arrives.
// Only store failures are returned so the message is retried.
func (r *Reconciler) CheckTimeout(ctx context.Context, msg dto.PaymentTimeoutMessage) error {
	switch msg.Kind {
	case dto.TimeoutKindBatch:
		b, err := r.store.GetBatchByID(ctx, msg.ID)
		if errors.Is(err, repo.ErrBatchNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if b.Status != model.BatchAwaitingGateway || deref(b.Authority) != msg.Authority {
			return nil
		}
		r.inquire(ctx, b, nil)
	case dto.TimeoutKindOrder:
		o, err := r.store.GetOrderByID(ctx, msg.ID)
		if errors.Is(err, repo.ErrOrderNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if o.Status != model.OrderAwaitingGateway || deref(o.Authority) != msg.Authority {
			return nil
		}
		r.inquire(ctx, nil, o)
	default:
		r.log.Warn().Str("kind", msg.Kind).Msg("unknown payment timeout kind")
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
