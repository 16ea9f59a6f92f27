package shop

import "eventhub/internal/model"

// Outcome tells why reserved items are handed back to the cart.
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeCancelled
	OutcomeRemoved
)

// ReleasedTeamStatus is where a team in awaiting_payment_confirmation goes when its order does not complete.
func ReleasedTeamStatus(requiresApproval bool, outcome Outcome) string {
	if requiresApproval {
		return model.TeamApprovedAwaitingPayment
	}
	switch outcome {
	case OutcomeFailed:
		return model.TeamPaymentFailed
	case OutcomeCancelled:
		return model.TeamInCart
	default:
		return model.TeamCancelled
	}
}

func ReleasedEnrollmentStatus(outcome Outcome) string {
	if outcome == OutcomeFailed {
		return model.EnrollmentPaymentFailed
	}
	return model.EnrollmentCancelled
}

// FinalPaymentStatus is written to enrollments and teams when their order completes.
func FinalPaymentStatus(orderTotal int64) string {
	if orderTotal > 0 {
		return model.PaymentPaid
	}
	return model.PaymentNotApplicable
}

// InitialTeamState is the status pair of a freshly registered team.
func InitialTeamState(gc *model.GroupCompetition) (status, paymentStatus string) {
	paymentStatus = model.PaymentPending
	if gc.IsFree() {
		paymentStatus = model.PaymentNotApplicable
	}
	switch {
	case gc.RequiresAdminApproval:
		return model.TeamPendingAdminVerification, paymentStatus
	case gc.IsFree():
		return model.TeamActive, paymentStatus
	default:
		return model.TeamInCart, paymentStatus
	}
}

// ApprovedTeamState is the status pair after an admin approves a team.
func ApprovedTeamState(gc *model.GroupCompetition) (status, paymentStatus string) {
	if gc.IsFree() {
		return model.TeamActive, model.PaymentNotApplicable
	}
	return model.TeamApprovedAwaitingPayment, model.PaymentPending
}

func InitialGovIDStatus(gc *model.GroupCompetition) string {
	if gc.RequiresAdminApproval {
		return model.GovIDMissing
	}
	return model.GovIDNotRequired
}

func IsLiveTeamStatus(status string) bool {
	for _, s := range model.LiveTeamStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func IsUnpaidOrderStatus(status string) bool {
	for _, s := range model.UnpaidOrderStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Payable reports whether an order may be sent to the gateway.
func Payable(status string) bool {
	return status == model.OrderPendingPayment || status == model.OrderPaymentFailed
}

func CancellableOrder(status string) bool {
	return status == model.OrderPendingPayment || status == model.OrderPaymentFailed
}

// TerminalBatch reports whether a batch no longer holds its orders.
func TerminalBatch(status string) bool {
	switch status {
	case model.BatchPaymentFailed, model.BatchVerified, model.BatchCompleted:
		return true
	}
	return false
}
