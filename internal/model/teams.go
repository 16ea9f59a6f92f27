package model

import "time"

const (
	TeamPendingAdminVerification    = "pending_admin_verification"
	TeamRejectedByAdmin             = "rejected_by_admin"
	TeamApprovedAwaitingPayment     = "approved_awaiting_payment"
	TeamInCart                      = "in_cart"
	TeamAwaitingPaymentConfirmation = "awaiting_payment_confirmation"
	TeamPaymentFailed               = "payment_failed"
	TeamActive                      = "active"
	TeamCancelled                   = "cancelled"
)

const (
	GovIDNotRequired = "not_required"
	GovIDMissing     = "missing"
	GovIDPending     = "pending"
	GovIDApproved    = "approved"
	GovIDRejected    = "rejected"
)

// LiveTeamStatuses occupy a slot of a group competition.
var LiveTeamStatuses = []string{
	TeamActive,
	TeamApprovedAwaitingPayment,
	TeamAwaitingPaymentConfirmation,
	TeamPendingAdminVerification,
}

type CompetitionTeam struct {
	ID                 int64            `db:"id" json:"id"`
	Name               string           `db:"name" json:"name"`
	LeaderID           int64            `db:"leader_id" json:"leader_id"`
	GroupCompetitionID int64            `db:"group_competition_id" json:"group_competition_id"`
	CompetitionTitle   string           `db:"competition_title" json:"competition_title,omitempty"`
	EventID            int64            `db:"event_id" json:"event_id"`
	Status             string           `db:"status" json:"status"`
	PaymentStatus      string           `db:"payment_status" json:"payment_status"`
	IsApprovedByAdmin  bool             `db:"is_approved_by_admin" json:"is_approved_by_admin"`
	AdminRemarks       string           `db:"admin_remarks" json:"admin_remarks,omitempty"`
	Role               string           `db:"-" json:"role,omitempty"`
	Members            []TeamMembership `db:"-" json:"members,omitempty"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
}

type TeamMembership struct {
	ID                 int64     `db:"id" json:"id"`
	TeamID             int64     `db:"team_id" json:"team_id"`
	UserID             int64     `db:"user_id" json:"user_id"`
	UserEmail          string    `db:"user_email" json:"user_email"`
	FullName           string    `db:"full_name" json:"full_name"`
	GovernmentIDURL    *string   `db:"government_id_url" json:"government_id_url,omitempty"`
	GovernmentIDStatus string    `db:"government_id_status" json:"government_id_status"`
	JoinedAt           time.Time `db:"joined_at" json:"joined_at"`
}
