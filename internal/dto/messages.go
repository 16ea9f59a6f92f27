package dto

import "time"

const (
	TimeoutKindOrder = "order"
	TimeoutKindBatch = "batch"
)

// PaymentTimeoutMessage is published with a delay when a payment is sent to the gateway.
// The consumer re-checks the payment once the delay expires.
type PaymentTimeoutMessage struct {
	Kind      string    `json:"kind"`
	ID        int64     `json:"id"`
	Authority string    `json:"authority"`
	ExpireAt  time.Time `json:"expire_at"`
}
