package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"eventhub/internal/dto"
	"eventhub/internal/mailer"
	"eventhub/internal/model"
	"eventhub/internal/payment/zarinpal"
	"eventhub/internal/repo"
	"eventhub/internal/shop"
)

var (
	ErrOrderNotPayable       = errors.New("order is not awaiting payment")
	ErrNothingToPay          = errors.New("order total must be positive")
	ErrCallbackNotConfigured = errors.New("payment callback URL is not configured")
	ErrGatewayRejected       = errors.New("payment gateway rejected the request")
	ErrPaymentInProgress     = errors.New("a payment for this item is still being processed")
	ErrNoOrders              = errors.New("no orders selected")
)

// OwnedItemsError lists order items the user already holds elsewhere.
type OwnedItemsError struct {
	Items []repo.UnavailableItem
}

func (e *OwnedItemsError) Error() string {
	return fmt.Sprintf("%d item(s) already owned", len(e.Items))
}

func (e *OwnedItemsError) Unwrap() error { return repo.ErrAlreadyOwned }

type Store interface {
	repo.PaymentStore
	repo.LockStore
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetCartItem(ctx context.Context, userID, cartItemID int64) (*model.CartItem, error)
	DeleteCartItem(ctx context.Context, userID, cartItemID int64) error
}

// Gateway is the part of the Zarinpal client the reconciler drives.
type Gateway interface {
	CallbackConfigured() bool
	RequestPayment(ctx context.Context, pr zarinpal.PaymentRequest) (*zarinpal.PaymentLink, error)
	Verify(ctx context.Context, authority string, amount int64) (*zarinpal.Receipt, error)
	Unverified(ctx context.Context) ([]string, error)
	Inquiry(ctx context.Context, authority string) (string, error)
}

// Publisher schedules a message for delivery after delaySeconds.
type Publisher interface {
	Publish(message []byte, delaySeconds int) error
}

type Config struct {
	FrontendBaseURL string
	SuccessPath     string
	FailurePath     string
	// PaymentTimeout is the delay before a started payment is re-checked.
	PaymentTimeout time.Duration
	StaleAfter     time.Duration
	Interval       time.Duration
	LockTTL        time.Duration
}

func (c *Config) defaults() {
	if c.SuccessPath == "" {
		c.SuccessPath = "/payment/success"
	}
	if c.FailurePath == "" {
		c.FailurePath = "/payment/failure"
	}
	if c.PaymentTimeout <= 0 {
		c.PaymentTimeout = 31 * time.Minute
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 31 * time.Minute
	}
	if c.Interval <= 0 {
		c.Interval = 30 * time.Minute
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 25 * time.Minute
	}
}

type Reconciler struct {
	store Store
	gw    Gateway
	pub   Publisher
	mail  mailer.Mailer
	cfg   Config
	log   *zerolog.Logger
	now   func() time.Time
}

func New(store Store, gw Gateway, pub Publisher, mail mailer.Mailer, cfg Config, log *zerolog.Logger) *Reconciler {
	cfg.defaults()
	return &Reconciler{store: store, gw: gw, pub: pub, mail: mail, cfg: cfg, log: log, now: time.Now}
}

// PaymentStart is what the client needs to send the user to the gateway.
type PaymentStart struct {
	PaymentURL string `json:"payment_url"`
	Authority  string `json:"authority"`
	BatchID    string `json:"batch_id,omitempty"`
}

// InitiateOrder sends one order to the gateway.
func (r *Reconciler) InitiateOrder(ctx context.Context, user *model.User, orderUUID string, app *string) (*PaymentStart, error) {
	o, err := r.store.GetOrder(ctx, user.ID, orderUUID)
	if err != nil {
		return nil, err
	}
	if !shop.Payable(o.Status) {
		return nil, ErrOrderNotPayable
	}
	if o.Total <= 0 {
		return nil, ErrNothingToPay
	}

	owned, err := r.store.OwnedOrderItems(ctx, user.ID, o.ID)
	if err != nil {
		return nil, err
	}
	if len(owned) > 0 {
		return nil, &OwnedItemsError{Items: owned}
	}
	gone, err := r.store.UnavailableOrderItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	if len(gone) > 0 {
		if err := r.store.ReleaseOrders(ctx, []int64{o.ID}, model.OrderCancelled, shop.OutcomeCancelled); err != nil {
			return nil, err
		}
		return nil, &repo.UnavailableItemsError{Items: gone}
	}

	if !r.gw.CallbackConfigured() {
		return nil, ErrCallbackNotConfigured
	}
	link, err := r.gw.RequestPayment(ctx, zarinpal.PaymentRequest{
		Amount: o.Total, Mobile: user.PhoneNumber, Email: user.Email, OrderID: o.OrderID,
	})
	if err != nil {
		if serr := r.store.SetOrderStatus(ctx, o.ID, model.OrderPaymentFailed); serr != nil {
			r.log.Error().Err(serr).Str("order_id", o.OrderID).Msg("failed to mark order payment_failed")
		}
		return nil, gatewayFailure(err)
	}

	if err := r.store.MarkOrderAwaiting(ctx, o.ID, link.Authority, app); err != nil {
		return nil, err
	}
	r.scheduleTimeout(dto.TimeoutKindOrder, o.ID, link.Authority)

	r.log.Info().Str("order_id", o.OrderID).Str("authority", link.Authority).Msg("payment started")
	return &PaymentStart{PaymentURL: link.URL, Authority: link.Authority}, nil
}

// InitiateBatch pays several orders of one user with a single gateway transaction.
func (r *Reconciler) InitiateBatch(ctx context.Context, user *model.User, orderUUIDs []string, app *string) (*PaymentStart, error) {
	uuids := unique(orderUUIDs)
	if len(uuids) == 0 {
		return nil, ErrNoOrders
	}
	orders, err := r.store.GetUserOrders(ctx, user.ID, uuids)
	if err != nil {
		return nil, err
	}
	if len(orders) != len(uuids) {
		return nil, repo.ErrOrderNotFound
	}

	var (
		total int64
		ids   = make([]int64, 0, len(orders))
		owned []repo.UnavailableItem
		gone  []repo.UnavailableItem
	)
	for _, o := range orders {
		if !shop.Payable(o.Status) {
			return nil, ErrOrderNotPayable
		}
		own, err := r.store.OwnedOrderItems(ctx, user.ID, o.ID)
		if err != nil {
			return nil, err
		}
		owned = append(owned, own...)
		g, err := r.store.UnavailableOrderItems(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		gone = append(gone, g...)
		total += o.Total
		ids = append(ids, o.ID)
	}
	if len(owned) > 0 {
		return nil, &OwnedItemsError{Items: owned}
	}
	if len(gone) > 0 {
		return nil, &repo.UnavailableItemsError{Items: gone}
	}
	if total <= 0 {
		return nil, ErrNothingToPay
	}
	if !r.gw.CallbackConfigured() {
		return nil, ErrCallbackNotConfigured
	}

	b, err := r.store.CreateBatch(ctx, user.ID, ids, total, app)
	if err != nil {
		return nil, err
	}
	link, err := r.gw.RequestPayment(ctx, zarinpal.PaymentRequest{
		Amount: total, Mobile: user.PhoneNumber, Email: user.Email, OrderID: b.BatchID,
	})
	if err != nil {
		if ferr := r.store.FailBatch(ctx, b.ID); ferr != nil {
			r.log.Error().Err(ferr).Str("batch_id", b.BatchID).Msg("failed to fail batch")
		}
		return nil, gatewayFailure(err)
	}

	if err := r.store.MarkBatchAwaiting(ctx, b.ID, link.Authority); err != nil {
		return nil, err
	}
	r.scheduleTimeout(dto.TimeoutKindBatch, b.ID, link.Authority)

	r.log.Info().Str("batch_id", b.BatchID).Int("orders", len(ids)).Str("authority", link.Authority).Msg("batch payment started")
	return &PaymentStart{PaymentURL: link.URL, Authority: link.Authority, BatchID: b.BatchID}, nil
}

func gatewayFailure(err error) error {
	var gwErr *zarinpal.GatewayError
	if errors.As(err, &gwErr) {
		return fmt.Errorf("%w: %s", ErrGatewayRejected, gwErr.Message)
	}
	return fmt.Errorf("%w: %v", ErrGatewayRejected, err)
}

func (r *Reconciler) scheduleTimeout(kind string, id int64, authority string) {
	if r.pub == nil {
		return
	}
	body, err := json.Marshal(dto.PaymentTimeoutMessage{
		Kind: kind, ID: id, Authority: authority, ExpireAt: r.now().Add(r.cfg.PaymentTimeout),
	})
	if err != nil {
		r.log.Error().Err(err).Msg("failed to encode payment timeout message")
		return
	}
	if err := r.pub.Publish(body, int(r.cfg.PaymentTimeout.Seconds())); err != nil {
		r.log.Warn().Err(err).Str("kind", kind).Int64("id", id).Msg("failed to schedule payment timeout check")
	}
}

// RemoveCartItem drops a cart item. A reserved item takes its unpaid order with it unless
// the gateway may still settle that order.
func (r *Reconciler) RemoveCartItem(ctx context.Context, userID, cartItemID int64) error {
	ci, err := r.store.GetCartItem(ctx, userID, cartItemID)
	if err != nil {
		return err
	}
	if ci.Status != model.CartItemReserved || ci.ReservedOrderID == nil {
		return r.store.DeleteCartItem(ctx, userID, cartItemID)
	}

	batches, err := r.store.BatchesForOrder(ctx, *ci.ReservedOrderID)
	if err != nil {
		return err
	}
	var authorities []string
	for _, b := range batches {
		if shop.TerminalBatch(b.Status) {
			return r.store.DeleteCartItem(ctx, userID, cartItemID)
		}
		if b.Authority != nil {
			authorities = append(authorities, *b.Authority)
		}
	}
	o, err := r.store.GetOrderByID(ctx, *ci.ReservedOrderID)
	if err != nil {
		return err
	}
	if o.Authority != nil {
		authorities = append(authorities, *o.Authority)
	}

	if len(authorities) > 0 {
		pending, err := r.gw.Unverified(ctx)
		if err != nil {
			r.log.Warn().Err(err).Msg("could not list unverified payments")
			return ErrPaymentInProgress
		}
		for _, a := range authorities {
			if contains(pending, a) {
				return ErrPaymentInProgress
			}
		}
	}
	return r.store.DiscardReservedOrder(ctx, userID, cartItemID, o.ID)
}

func (r *Reconciler) notifyCompleted(ctx context.Context, orderIDs []int64, refID string) {
	if r.mail == nil {
		return
	}
	for _, id := range orderIDs {
		o, u, err := r.orderOwner(ctx, id)
		if err != nil {
			r.log.Warn().Err(err).Int64("order", id).Msg("skipping completion email")
			continue
		}
		items := make([]string, 0, len(o.Items))
		for _, it := range o.Items {
			items = append(items, it.Description)
		}
		r.mail.Send(ctx, mailer.OrderCompleted(u.Email, u.FirstName, o.OrderID, o.Total, items, refID))
	}
}

func (r *Reconciler) notifyFailed(ctx context.Context, orderIDs []int64) {
	if r.mail == nil {
		return
	}
	for _, id := range orderIDs {
		o, u, err := r.orderOwner(ctx, id)
		if err != nil {
			r.log.Warn().Err(err).Int64("order", id).Msg("skipping failure email")
			continue
		}
		r.mail.Send(ctx, mailer.PaymentFailed(u.Email, u.FirstName, o.OrderID))
	}
}

func (r *Reconciler) orderOwner(ctx context.Context, orderID int64) (*model.Order, *model.User, error) {
	o, err := r.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	u, err := r.store.GetUserByID(ctx, o.UserID)
	if err != nil {
		return nil, nil, err
	}
	return o, u, nil
}

func unique(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
