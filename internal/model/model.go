package model

import "time"

const (
	PaymentPending       = "pending"
	PaymentPaid          = "paid"
	PaymentNotApplicable = "not_applicable"
	PaymentFailed        = "failed"
)

const (
	EnrollmentPendingPayment = "pending_payment"
	EnrollmentCompleted      = "completed_or_free"
	EnrollmentPaymentFailed  = "payment_failed"
	EnrollmentCancelled      = "cancelled"
)

const (
	ItemPresentation    = "presentation"
	ItemSoloCompetition = "solo_competition"
	ItemCompetitionTeam = "competition_team"
)

type User struct {
	ID                    int64      `db:"id" json:"id"`
	Email                 string     `db:"email" json:"email"`
	PasswordHash          string     `db:"password_hash" json:"-"`
	FirstName             string     `db:"first_name" json:"first_name"`
	LastName              string     `db:"last_name" json:"last_name"`
	PhoneNumber           string     `db:"phone_number" json:"phone_number"`
	IsActive              bool       `db:"is_active" json:"is_active"`
	IsStaff               bool       `db:"is_staff" json:"is_staff"`
	VerificationCode      *string    `db:"email_verification_code" json:"-"`
	VerificationExpiresAt *time.Time `db:"email_verification_expires_at" json:"-"`
	DateJoined            time.Time  `db:"date_joined" json:"date_joined"`
}

// Item is a purchasable catalog entry resolved for cart and order rules.
type Item struct {
	Type             string `json:"type"`
	ID               int64  `json:"id"`
	EventID          int64  `json:"event_id"`
	Title            string `json:"title"`
	IsPaid           bool   `json:"is_paid"`
	Price            int64  `json:"price"`
	Active           bool   `json:"active"`
	EventActive      bool   `json:"event_active"`
	LeaderID         int64  `json:"leader_id,omitempty"`
	TeamStatus       string `json:"team_status,omitempty"`
	RequiresApproval bool   `json:"requires_approval,omitempty"`
	Remaining        *int   `json:"remaining_capacity,omitempty"`
}

type PresentationEnrollment struct {
	ID                int64     `db:"id" json:"id"`
	UserID            int64     `db:"user_id" json:"user_id"`
	PresentationID    int64     `db:"presentation_id" json:"presentation_id"`
	PresentationTitle string    `db:"presentation_title" json:"presentation_title,omitempty"`
	EventID           int64     `db:"event_id" json:"event_id"`
	Status            string    `db:"status" json:"status"`
	PaymentStatus     string    `db:"payment_status" json:"payment_status"`
	OrderItemID       *int64    `db:"order_item_id" json:"order_item_id,omitempty"`
	EndTime           time.Time `db:"end_time" json:"end_time"`
	EnrolledAt        time.Time `db:"enrolled_at" json:"enrolled_at"`
}

type SoloRegistration struct {
	ID                int64     `db:"id" json:"id"`
	UserID            int64     `db:"user_id" json:"user_id"`
	SoloCompetitionID int64     `db:"solo_competition_id" json:"solo_competition_id"`
	CompetitionTitle  string    `db:"competition_title" json:"competition_title,omitempty"`
	EventID           int64     `db:"event_id" json:"event_id"`
	Status            string    `db:"status" json:"status"`
	PaymentStatus     string    `db:"payment_status" json:"payment_status"`
	OrderItemID       *int64    `db:"order_item_id" json:"order_item_id,omitempty"`
	EventEndDate      time.Time `db:"event_end_date" json:"event_end_date"`
	RegisteredAt      time.Time `db:"registered_at" json:"registered_at"`
}
