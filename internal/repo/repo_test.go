package repo

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/dbpg"

	"eventhub/internal/model"
	"eventhub/internal/shop"
)

var (
	orderCols = []string{"id", "order_id", "user_id", "subtotal", "discount_code_id", "code", "discount_amount",
		"total", "status", "authority", "txn_id", "card_pan", "paid_at", "redirect_app", "created_at", "updated_at"}
	orderItemCols = []string{"id", "order_id", "item_type", "item_id", "event_id", "description", "price"}
	cartItemCols  = []string{"id", "cart_id", "item_type", "item_id", "event_id", "status",
		"reserved_order_id", "reserved_order_item_id", "added_at"}
	itemCols     = []string{"id", "event_id", "title", "is_paid", "price", "is_active", "event_active", "capacity"}
	discountCols = []string{"id", "code", "is_active", "percentage", "amount", "valid_from", "valid_to",
		"min_order_amount", "max_uses", "times_used", "max_uses_per_user", "target_type", "target_id", "created_at"}
)

func newMockRepo(t *testing.T) (*repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := zerolog.Nop()
	return &repository{db: &dbpg.DB{Master: db}, log: &log}, mock
}

func sqlText(s string) string {
	return regexp.QuoteMeta(s)
}

func orderRow(id int64, status string, subtotal, discount, total int64, codeID any) *sqlmock.Rows {
	now := time.Now()
	code := ""
	if codeID != nil {
		code = "SPRING"
	}
	return sqlmock.NewRows(orderCols).AddRow(id, "0b6f0f0e-5d4c-4a57-8c63-0e2d1f6f9a11", 1, subtotal, codeID, code,
		discount, total, status, nil, nil, nil, nil, nil, now, now)
}

func presentationRow(capacity any) *sqlmock.Rows {
	return sqlmock.NewRows(itemCols).AddRow(3, 1, "Go Workshop", true, 1000, true, true, capacity)
}

func countRow(n int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"count"}).AddRow(n)
}

func existsRow(b bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"exists"}).AddRow(b)
}

func expectLockedOrder(mock sqlmock.Sqlmock, rows *sqlmock.Rows, items *sqlmock.Rows) {
	mock.ExpectQuery(sqlText(`LEFT JOIN discount_codes d ON d.id = o.discount_code_id WHERE o.id = $1 FOR UPDATE OF o`)).
		WithArgs(42).WillReturnRows(rows)
	mock.ExpectQuery(sqlText(`FROM order_items WHERE order_id = $1 ORDER BY id`)).
		WithArgs(42).WillReturnRows(items)
}

func expectReceipt(mock sqlmock.Sqlmock) {
	mock.ExpectExec(sqlText(`UPDATE orders SET txn_id = $2, card_pan = $3, paid_at = $4, status = $5`)).
		WithArgs(42, "TXN-1", "6037-99**-****-1234", sqlmock.AnyArg(), model.OrderProcessingEnrollment, model.OrderCompleted).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func TestCompleteOrderIsNoopWhenCompleted(t *testing.T) {
	r, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(sqlText(`UPDATE orders SET txn_id = $2`)).WillReturnResult(sqlmock.NewResult(0, 0))
	expectLockedOrder(mock, orderRow(42, model.OrderCompleted, 1000, 200, 800, int64(7)),
		sqlmock.NewRows(orderItemCols).AddRow(420, 42, model.ItemPresentation, 3, 1, "Go Workshop", 1000))
	mock.ExpectCommit()

	err := r.CompleteOrder(context.Background(), 42, "TXN-1", "6037-99**-****-1234", time.Now())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteOrderFinalizes(t *testing.T) {
	cases := []struct {
		name     string
		redeemed int64
		bump     bool
	}{
		{name: "first redemption bumps usage", redeemed: 1, bump: true},
		{name: "recorded redemption leaves usage", redeemed: 0, bump: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, mock := newMockRepo(t)

			mock.ExpectBegin()
			expectReceipt(mock)
			expectLockedOrder(mock, orderRow(42, model.OrderProcessingEnrollment, 2000, 200, 1800, int64(7)),
				sqlmock.NewRows(orderItemCols).
					AddRow(420, 42, model.ItemCompetitionTeam, 9, 1, "Rocket - Hackathon", 1000).
					AddRow(421, 42, model.ItemPresentation, 3, 1, "Go Workshop", 1000))
			mock.ExpectExec(sqlText(`UPDATE competition_teams SET status = $2, payment_status = $3 WHERE id = $1`)).
				WithArgs(9, model.TeamActive, model.PaymentPaid).WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectExec(sqlText(`INSERT INTO presentation_enrollments (user_id, presentation_id, status, payment_status, order_item_id)`)).
				WithArgs(1, 3, model.EnrollmentCompleted, model.PaymentPaid, 421).WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectExec(sqlText(`INSERT INTO discount_redemptions`)).
				WithArgs(7, 1, 42).WillReturnResult(sqlmock.NewResult(0, tc.redeemed))
			if tc.bump {
				mock.ExpectExec(sqlText(`UPDATE discount_codes SET times_used = times_used + 1 WHERE id = $1`)).
					WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 1))
			}
			mock.ExpectExec(sqlText(`DELETE FROM cart_items ci USING carts c, order_items oi`)).
				WithArgs(42, 1).WillReturnResult(sqlmock.NewResult(0, 2))
			mock.ExpectExec(sqlText(`UPDATE orders SET status = $2, paid_at = COALESCE(paid_at, NOW())`)).
				WithArgs(42, model.OrderCompleted).WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectCommit()

			err := r.CompleteOrder(context.Background(), 42, "TXN-1", "6037-99**-****-1234", time.Now())
			require.NoError(t, err)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestReleaseOrders(t *testing.T) {
	cases := []struct {
		name        string
		orderStatus string
		outcome     shop.Outcome
		approved    string
		plain       string
		teamPayment string
		enrollment  string
	}{
		{
			name: "failed payment", orderStatus: model.OrderPaymentFailed, outcome: shop.OutcomeFailed,
			approved: model.TeamApprovedAwaitingPayment, plain: model.TeamPaymentFailed,
			teamPayment: model.PaymentFailed, enrollment: model.EnrollmentPaymentFailed,
		},
		{
			name: "cancelled order", orderStatus: model.OrderCancelled, outcome: shop.OutcomeCancelled,
			approved: model.TeamApprovedAwaitingPayment, plain: model.TeamInCart,
			teamPayment: model.PaymentPending, enrollment: model.EnrollmentCancelled,
		},
		{
			name: "item removed from order", orderStatus: model.OrderCancelled, outcome: shop.OutcomeRemoved,
			approved: model.TeamApprovedAwaitingPayment, plain: model.TeamCancelled,
			teamPayment: model.PaymentPending, enrollment: model.EnrollmentCancelled,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, mock := newMockRepo(t)
			ids := "{42,43}"

			mock.ExpectBegin()
			mock.ExpectExec(sqlText(`UPDATE orders SET status = $2, updated_at = NOW() WHERE id = ANY($1)`)).
				WithArgs(ids, tc.orderStatus).WillReturnResult(sqlmock.NewResult(0, 2))
			mock.ExpectExec(sqlText(`SET status = CASE WHEN g.requires_admin_approval THEN $2 ELSE $3 END, payment_status = $4`)).
				WithArgs(ids, tc.approved, tc.plain, tc.teamPayment, model.ItemCompetitionTeam, model.TeamAwaitingPaymentConfirmation).
				WillReturnResult(sqlmock.NewResult(0, 1))
			for _, table := range []string{"presentation_enrollments", "solo_registrations"} {
				mock.ExpectExec(sqlText(`UPDATE `+table+` SET status = $2, payment_status = $3`)).
					WithArgs(ids, tc.enrollment, model.PaymentFailed, model.EnrollmentPendingPayment).
					WillReturnResult(sqlmock.NewResult(0, 1))
			}
			mock.ExpectExec(sqlText(`UPDATE cart_items SET status = $2, reserved_order_id = NULL`)).
				WithArgs(ids, model.CartItemOwned).WillReturnResult(sqlmock.NewResult(0, 3))
			mock.ExpectCommit()

			require.NoError(t, r.ReleaseOrders(context.Background(), []int64{42, 43}, tc.orderStatus, tc.outcome))
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}

	t.Run("no orders", func(t *testing.T) {
		r, mock := newMockRepo(t)
		require.NoError(t, r.ReleaseOrders(context.Background(), nil, model.OrderCancelled, shop.OutcomeCancelled))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func expectCartWithPresentation(mock sqlmock.Sqlmock, capacity any, taken int) {
	mock.ExpectBegin()
	mock.ExpectQuery(sqlText(`SELECT id, applied_discount_code_id FROM carts WHERE user_id = $1 FOR UPDATE`)).
		WithArgs(1).WillReturnRows(sqlmock.NewRows([]string{"id", "applied_discount_code_id"}).AddRow(10, int64(7)))
	mock.ExpectQuery(sqlText(`FROM cart_items ci WHERE ci.cart_id = $1 AND ci.status = $2 ORDER BY ci.added_at FOR UPDATE`)).
		WithArgs(10, model.CartItemOwned).
		WillReturnRows(sqlmock.NewRows(cartItemCols).
			AddRow(5, 10, model.ItemPresentation, 3, 1, model.CartItemOwned, nil, nil, time.Now()))
	mock.ExpectQuery(sqlText(`FROM presentations p JOIN events e ON e.id = p.event_id WHERE p.id = $1 FOR UPDATE OF p`)).
		WithArgs(3).WillReturnRows(presentationRow(capacity))
	mock.ExpectQuery(sqlText(`SELECT COUNT(*) FROM presentation_enrollments`)).
		WithArgs(3).WillReturnRows(countRow(taken))
}

func TestCheckoutZeroTotalCompletesWithoutReserving(t *testing.T) {
	r, mock := newMockRepo(t)
	now := time.Now()

	expectCartWithPresentation(mock, 20, 4)
	mock.ExpectQuery(sqlText(`FROM discount_codes WHERE id = $1`)).
		WithArgs(7).WillReturnRows(sqlmock.NewRows(discountCols).
		AddRow(7, "FREEDAY", true, "100.00", nil, nil, nil, 0, nil, 0, nil, nil, nil, now))
	mock.ExpectQuery(sqlText(`SELECT COUNT(*) FROM discount_redemptions WHERE code_id = $1 AND user_id = $2`)).
		WithArgs(7, 1).WillReturnRows(countRow(0))

	mock.ExpectQuery(sqlText(`INSERT INTO orders`)).
		WithArgs(sqlmock.AnyArg(), 1, 1000, 7, 1000, 0, model.OrderProcessingEnrollment, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(42, now, now))
	mock.ExpectQuery(sqlText(`INSERT INTO order_items`)).
		WithArgs(42, model.ItemPresentation, 3, 1, "Go Workshop", 1000).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(420))

	expectLockedOrder(mock, orderRow(42, model.OrderProcessingEnrollment, 1000, 1000, 0, int64(7)),
		sqlmock.NewRows(orderItemCols).AddRow(420, 42, model.ItemPresentation, 3, 1, "Go Workshop", 1000))
	mock.ExpectExec(sqlText(`INSERT INTO presentation_enrollments`)).
		WithArgs(1, 3, model.EnrollmentCompleted, model.PaymentNotApplicable, 420).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(sqlText(`INSERT INTO discount_redemptions`)).
		WithArgs(7, 1, 42).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(sqlText(`UPDATE discount_codes SET times_used = times_used + 1`)).
		WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(sqlText(`DELETE FROM cart_items ci USING carts c, order_items oi`)).
		WithArgs(42, 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(sqlText(`UPDATE orders SET status = $2, paid_at = COALESCE(paid_at, NOW())`)).
		WithArgs(42, model.OrderCompleted).WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectExec(sqlText(`UPDATE carts SET applied_discount_code_id = $1 WHERE id = $2`)).
		WithArgs(nil, 10).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	o, err := r.Checkout(context.Background(), 1, now)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, model.OrderCompleted, o.Status)
	assert.Equal(t, int64(0), o.Total)
	assert.Equal(t, int64(1000), o.DiscountAmount)
	require.Len(t, o.Items, 1)
	assert.Equal(t, int64(420), o.Items[0].ID)
}

func TestCheckoutRejectsExhaustedCapacity(t *testing.T) {
	r, mock := newMockRepo(t)

	expectCartWithPresentation(mock, 5, 5)
	mock.ExpectRollback()

	_, err := r.Checkout(context.Background(), 1, time.Now())
	var capErr *CapacityError
	require.True(t, errors.As(err, &capErr), "got %v", err)
	assert.Equal(t, model.ItemPresentation, capErr.ItemType)
	assert.Equal(t, int64(3), capErr.ItemID)
	assert.ErrorIs(t, err, ErrCapacityFull)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddCartItemRejects(t *testing.T) {
	cases := []struct {
		name     string
		capacity any
		taken    int
		existing *sqlmock.Rows
		unpaid   *bool
		want     error
	}{
		{
			name: "item reserved by an order", capacity: 20, taken: 1,
			existing: sqlmock.NewRows(cartItemCols).
				AddRow(5, 10, model.ItemPresentation, 3, 1, model.CartItemReserved, int64(40), int64(400), time.Now()),
			want: ErrReservedByOrder,
		},
		{
			name: "item in an unpaid order", capacity: 20, taken: 1,
			existing: sqlmock.NewRows(cartItemCols), unpaid: boolPtr(true),
			want: ErrPendingOrder,
		},
		{
			name: "capacity exhausted", capacity: 5, taken: 5,
			existing: sqlmock.NewRows(cartItemCols), unpaid: boolPtr(false),
			want: ErrCapacityFull,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, mock := newMockRepo(t)

			mock.ExpectBegin()
			mock.ExpectQuery(sqlText(`FROM carts WHERE user_id = $1 FOR UPDATE`)).
				WithArgs(1).WillReturnRows(sqlmock.NewRows([]string{"id", "applied_discount_code_id"}).AddRow(10, nil))
			mock.ExpectQuery(sqlText(`WHERE p.id = $1 FOR UPDATE OF p`)).
				WithArgs(3).WillReturnRows(presentationRow(tc.capacity))
			mock.ExpectQuery(sqlText(`SELECT COUNT(*) FROM presentation_enrollments`)).
				WithArgs(3).WillReturnRows(countRow(tc.taken))
			mock.ExpectQuery(sqlText(`FROM presentation_enrollments WHERE presentation_id = $1 AND user_id = $2`)).
				WithArgs(3, 1, model.EnrollmentCompleted).WillReturnRows(existsRow(false))
			mock.ExpectQuery(sqlText(`WHERE ci.cart_id = $1 AND ci.item_type = $2 AND ci.item_id = $3`)).
				WithArgs(10, model.ItemPresentation, 3).WillReturnRows(tc.existing)
			if tc.unpaid != nil {
				mock.ExpectQuery(sqlText(`SELECT 1 FROM order_items oi JOIN orders o ON o.id = oi.order_id`)).
					WithArgs(1, model.ItemPresentation, 3, sqlmock.AnyArg()).WillReturnRows(existsRow(*tc.unpaid))
			}
			mock.ExpectRollback()

			_, created, err := r.AddCartItem(context.Background(), 1, model.ItemPresentation, 3)
			assert.ErrorIs(t, err, tc.want)
			assert.False(t, created)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCancelOrderDetachesBatches(t *testing.T) {
	r, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(sqlText(`WHERE o.order_id = $1 AND o.user_id = $2 FOR UPDATE OF o`)).
		WithArgs("0b6f0f0e-5d4c-4a57-8c63-0e2d1f6f9a11", 1).
		WillReturnRows(orderRow(42, model.OrderPendingPayment, 1000, 0, 1000, nil))
	mock.ExpectQuery(sqlText(`FROM order_items WHERE order_id = $1`)).
		WithArgs(42).WillReturnRows(sqlmock.NewRows(orderItemCols).
		AddRow(420, 42, model.ItemPresentation, 3, 1, "Go Workshop", 1000))
	mock.ExpectQuery(sqlText(`WHERE bo.order_id = $1 AND b.status = $2`)).
		WithArgs(42, model.BatchAwaitingGateway).WillReturnRows(existsRow(false))

	mock.ExpectQuery(sqlText(`SELECT b.id FROM payment_batches b JOIN payment_batch_orders bo`)).
		WithArgs(42, sqlmock.AnyArg()).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5).AddRow(6))
	// batch 5 held only this order
	mock.ExpectExec(sqlText(`DELETE FROM payment_batch_orders WHERE batch_id = $1 AND order_id = $2`)).
		WithArgs(5, 42).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(sqlText(`SELECT COUNT(*) FROM payment_batch_orders WHERE batch_id = $1`)).
		WithArgs(5).WillReturnRows(countRow(0))
	mock.ExpectExec(sqlText(`DELETE FROM payment_batches WHERE id = $1`)).
		WithArgs(5).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(sqlText(`DELETE FROM payment_batch_orders WHERE batch_id = $1 AND order_id = $2`)).
		WithArgs(6, 42).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(sqlText(`SELECT COUNT(*) FROM payment_batch_orders WHERE batch_id = $1`)).
		WithArgs(6).WillReturnRows(countRow(2))
	mock.ExpectExec(sqlText(`UPDATE payment_batches SET status = $2, authority = NULL`)).
		WithArgs(6, model.BatchPending).WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectExec(sqlText(`UPDATE orders SET status = $2, updated_at = NOW() WHERE id = ANY($1)`)).
		WithArgs("{42}", model.OrderCancelled).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(sqlText(`UPDATE competition_teams t`)).
		WithArgs("{42}", model.TeamApprovedAwaitingPayment, model.TeamInCart, model.PaymentPending,
			model.ItemCompetitionTeam, model.TeamAwaitingPaymentConfirmation).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(sqlText(`UPDATE presentation_enrollments SET status = $2`)).
		WithArgs("{42}", model.EnrollmentCancelled, model.PaymentFailed, model.EnrollmentPendingPayment).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(sqlText(`UPDATE solo_registrations SET status = $2`)).
		WithArgs("{42}", model.EnrollmentCancelled, model.PaymentFailed, model.EnrollmentPendingPayment).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(sqlText(`UPDATE cart_items SET status = $2, reserved_order_id = NULL`)).
		WithArgs("{42}", model.CartItemOwned).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	o, err := r.CancelOrder(context.Background(), 1, "0b6f0f0e-5d4c-4a57-8c63-0e2d1f6f9a11")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, model.OrderCancelled, o.Status)
}

func boolPtr(b bool) *bool { return &b }
