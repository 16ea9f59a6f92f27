package shop

import (
	"errors"

	"eventhub/internal/model"
)

var (
	ErrItemUnavailable = errors.New("item is not available")
	ErrItemFree        = errors.New("item is free, use direct enrollment")
	ErrNotTeamLeader   = errors.New("only the team leader can pay for the team")
	ErrTeamNotApproved = errors.New("team is not approved for payment")
	ErrTeamNotPayable  = errors.New("team is not in a payable state")
	ErrUnknownItemType = errors.New("unknown item type")
)

func ValidItemType(t string) bool {
	switch t {
	case model.ItemPresentation, model.ItemSoloCompetition, model.ItemCompetitionTeam:
		return true
	}
	return false
}

// Available reports whether the item and its event are both active.
func Available(it *model.Item) bool {
	return it.Active && it.EventActive
}

func EffectivePrice(it *model.Item) int64 {
	if !it.IsPaid || it.Price <= 0 {
		return 0
	}
	return it.Price
}

func IsFree(it *model.Item) bool {
	return EffectivePrice(it) == 0
}

// CheckAddToCart applies the item-level rules for putting an item into a user's cart.
// Ownership and pending-order checks need storage and live in the repository.
func CheckAddToCart(it *model.Item, userID int64) error {
	if !Available(it) {
		return ErrItemUnavailable
	}
	if IsFree(it) {
		return ErrItemFree
	}
	if it.Type != model.ItemCompetitionTeam {
		return nil
	}
	if it.LeaderID != userID {
		return ErrNotTeamLeader
	}
	if it.RequiresApproval {
		if it.TeamStatus != model.TeamApprovedAwaitingPayment {
			return ErrTeamNotApproved
		}
		return nil
	}
	switch it.TeamStatus {
	case model.TeamInCart, model.TeamPaymentFailed, model.TeamCancelled:
		return nil
	}
	return ErrTeamNotPayable
}

// Remaining returns capacity minus taken, floored at zero. A nil capacity means unlimited.
func Remaining(capacity *int, taken int) *int {
	if capacity == nil {
		return nil
	}
	left := *capacity - taken
	if left < 0 {
		left = 0
	}
	return &left
}

func HasRoom(capacity *int, taken int) bool {
	return capacity == nil || taken < *capacity
}
