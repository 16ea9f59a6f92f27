package model

import "time"

const (
	CartItemOwned    = "owned"
	CartItemReserved = "reserved"
)

const (
	OrderPendingPayment       = "pending_payment"
	OrderAwaitingGateway      = "awaiting_gateway_redirect"
	OrderPaymentFailed        = "payment_failed"
	OrderProcessingEnrollment = "processing_enrollment"
	OrderCompleted            = "completed"
	OrderCancelled            = "cancelled"
	OrderRefundPending        = "refund_pending"
	OrderRefunded             = "refunded"
)

const (
	BatchPending         = "pending"
	BatchAwaitingGateway = "awaiting_gateway_redirect"
	BatchPaymentFailed   = "payment_failed"
	BatchVerified        = "verified"
	BatchCompleted       = "completed"
)

// UnpaidOrderStatuses block adding the same item to the cart again.
var UnpaidOrderStatuses = []string{OrderPendingPayment, OrderAwaitingGateway, OrderPaymentFailed}

type Cart struct {
	ID             int64      `db:"id" json:"id"`
	UserID         int64      `db:"user_id" json:"user_id"`
	DiscountCodeID *int64     `db:"applied_discount_code_id" json:"-"`
	Items          []CartItem `db:"-" json:"items"`
}

type CartItem struct {
	ID                  int64     `db:"id" json:"id"`
	CartID              int64     `db:"cart_id" json:"-"`
	ItemType            string    `db:"item_type" json:"item_type"`
	ItemID              int64     `db:"item_id" json:"item_id"`
	EventID             int64     `db:"event_id" json:"event_id"`
	Status              string    `db:"status" json:"status"`
	ReservedOrderID     *int64    `db:"reserved_order_id" json:"reserved_order_id,omitempty"`
	ReservedOrderItemID *int64    `db:"reserved_order_item_id" json:"-"`
	Item                *Item     `db:"-" json:"item,omitempty"`
	AddedAt             time.Time `db:"added_at" json:"added_at"`
}

type DiscountCode struct {
	ID             int64      `db:"id" json:"id"`
	Code           string     `db:"code" json:"code"`
	IsActive       bool       `db:"is_active" json:"is_active"`
	Percentage     *Percent   `db:"percentage" json:"percentage,omitempty"`
	Amount         *int64     `db:"amount" json:"amount,omitempty"`
	ValidFrom      *time.Time `db:"valid_from" json:"valid_from,omitempty"`
	ValidTo        *time.Time `db:"valid_to" json:"valid_to,omitempty"`
	MinOrderAmount int64      `db:"min_order_amount" json:"min_order_amount"`
	MaxUses        *int       `db:"max_uses" json:"max_uses,omitempty"`
	TimesUsed      int        `db:"times_used" json:"times_used"`
	MaxUsesPerUser *int       `db:"max_uses_per_user" json:"max_uses_per_user,omitempty"`
	TargetType     *string    `db:"target_type" json:"target_type,omitempty"`
	TargetID       *int64     `db:"target_id" json:"target_id,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

type Order struct {
	ID             int64       `db:"id" json:"-"`
	OrderID        string      `db:"order_id" json:"order_id"`
	UserID         int64       `db:"user_id" json:"user_id"`
	Subtotal       int64       `db:"subtotal" json:"subtotal"`
	DiscountCodeID *int64      `db:"discount_code_id" json:"-"`
	DiscountCode   string      `db:"discount_code" json:"discount_code,omitempty"`
	DiscountAmount int64       `db:"discount_amount" json:"discount_amount"`
	Total          int64       `db:"total" json:"total"`
	Status         string      `db:"status" json:"status"`
	Authority      *string     `db:"authority" json:"authority,omitempty"`
	TxnID          *string     `db:"txn_id" json:"txn_id,omitempty"`
	CardPan        *string     `db:"card_pan" json:"card_pan,omitempty"`
	PaidAt         *time.Time  `db:"paid_at" json:"paid_at,omitempty"`
	RedirectApp    *string     `db:"redirect_app" json:"redirect_app,omitempty"`
	Items          []OrderItem `db:"-" json:"items"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updated_at"`
}

type OrderItem struct {
	ID          int64  `db:"id" json:"id"`
	OrderID     int64  `db:"order_id" json:"-"`
	ItemType    string `db:"item_type" json:"item_type"`
	ItemID      int64  `db:"item_id" json:"item_id"`
	EventID     int64  `db:"event_id" json:"event_id"`
	Description string `db:"description" json:"description"`
	Price       int64  `db:"price" json:"price"`
}

type PaymentBatch struct {
	ID          int64      `db:"id" json:"-"`
	BatchID     string     `db:"batch_id" json:"batch_id"`
	UserID      int64      `db:"user_id" json:"user_id"`
	Total       int64      `db:"total" json:"total"`
	Status      string     `db:"status" json:"status"`
	Authority   *string    `db:"authority" json:"authority,omitempty"`
	TxnID       *string    `db:"txn_id" json:"txn_id,omitempty"`
	CardPan     *string    `db:"card_pan" json:"card_pan,omitempty"`
	PaidAt      *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	RedirectApp *string    `db:"redirect_app" json:"redirect_app,omitempty"`
	OrderIDs    []int64    `db:"-" json:"-"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

type PaymentApp struct {
	ID        int64     `db:"id" json:"id"`
	Slug      string    `db:"slug" json:"slug"`
	Name      string    `db:"name" json:"name"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
