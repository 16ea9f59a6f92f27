package repo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrEmailTaken    = errors.New("email already registered")
	ErrTokenRevoked  = errors.New("token revoked")
	ErrEventNotFound = errors.New("event not found")

	ErrPresentationNotFound = errors.New("presentation not found")
	ErrCompetitionNotFound  = errors.New("competition not found")
	ErrItemNotFound         = errors.New("item not found")
	ErrCapacityFull         = errors.New("full capacity")
	ErrItemNotFree          = errors.New("item requires payment")
	ErrAlreadyEnrolled      = errors.New("already actively enrolled")
	ErrEnrollmentNotFound   = errors.New("enrollment not found")
	ErrRegistrationNotFound = errors.New("registration not found")

	ErrTeamNotFound        = errors.New("team not found")
	ErrTeamNameTaken       = errors.New("team name already taken in this competition")
	ErrMemberInAnotherTeam = errors.New("member already belongs to a team in this competition")
	ErrTeamLocked          = errors.New("team cannot be changed in its current state")
	ErrMembershipNotFound  = errors.New("membership not found")
	ErrGovIDsNotApproved   = errors.New("all member government IDs must be approved first")
	ErrTeamNotReviewable   = errors.New("team is not awaiting admin review")

	ErrCartEmpty         = errors.New("cart is empty")
	ErrCartItemNotFound  = errors.New("cart item not found")
	ErrAlreadyOwned      = errors.New("you already own this item")
	ErrPendingOrder      = errors.New("an unpaid order already contains this item")
	ErrReservedByOrder   = errors.New("item is reserved by an unpaid order")
	ErrDiscountNotFound  = errors.New("discount code not found")
	ErrDiscountCodeTaken = errors.New("discount code already exists")
	ErrNothingPayable    = errors.New("no payable items selected")

	ErrOrderNotFound      = errors.New("order not found")
	ErrInvalidOrderState  = errors.New("order is not in a valid state for this action")
	ErrOrderInBatch       = errors.New("order is part of a payment in progress")
	ErrBatchNotFound      = errors.New("payment batch not found")
	ErrPaymentAppNotFound = errors.New("payment app not found")
	ErrSlugTaken          = errors.New("slug already exists")

	ErrCertificateNotFound = errors.New("certificate not found")
	ErrCertificateExists   = errors.New("certificate already requested")
	ErrNotEnded            = errors.New("certificates are available only after the end date")

	ErrJobNotFound = errors.New("job not found")
	ErrTagNotFound = errors.New("tag not found")
	ErrTagTaken    = errors.New("tag already exists")
)

// UnavailableItem identifies an entry that can no longer be bought.
type UnavailableItem struct {
	CartItemID  int64  `json:"cart_item_id,omitempty"`
	OrderItemID int64  `json:"order_item_id,omitempty"`
	EventID     int64  `json:"event_id"`
	ItemType    string `json:"item_type"`
	ObjectID    int64  `json:"object_id"`
}

type UnavailableItemsError struct {
	Items []UnavailableItem
}

func (e *UnavailableItemsError) Error() string {
	parts := make([]string, 0, len(e.Items))
	for _, it := range e.Items {
		parts = append(parts, fmt.Sprintf("%s:%d", it.ItemType, it.ObjectID))
	}
	return "unavailable items: " + strings.Join(parts, ", ")
}

// CapacityError names the item whose capacity was exhausted during checkout.
type CapacityError struct {
	ItemType string
	ItemID   int64
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s %d is at full capacity", e.ItemType, e.ItemID)
}

func (e *CapacityError) Unwrap() error { return ErrCapacityFull }

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}
