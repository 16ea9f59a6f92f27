package model

import "time"

const (
	CertificatePresentation = "presentation"
	CertificateCompetition  = "competition"

	RegistrationSolo  = "solo"
	RegistrationGroup = "group"
)

type Certificate struct {
	ID                int64     `db:"id" json:"id"`
	EnrollmentID      int64     `db:"enrollment_id" json:"enrollment_id"`
	UserID            int64     `db:"user_id" json:"-"`
	NameOnCertificate string    `db:"name_on_certificate" json:"name_on_certificate"`
	IsVerified        bool      `db:"is_verified" json:"is_verified"`
	VerificationID    string    `db:"verification_id" json:"verification_id"`
	PresentationTitle string    `db:"presentation_title" json:"presentation_title"`
	PresentationType  string    `db:"presentation_type" json:"presentation_type"`
	EventTitle        string    `db:"event_title" json:"event_title"`
	EventEndDate      time.Time `db:"event_end_date" json:"event_end_date"`
	RequestedAt       time.Time `db:"requested_at" json:"requested_at"`
}

type CompetitionCertificate struct {
	ID                 int64     `db:"id" json:"id"`
	RegistrationType   string    `db:"registration_type" json:"registration_type"`
	SoloRegistrationID *int64    `db:"solo_registration_id" json:"solo_registration_id,omitempty"`
	TeamID             *int64    `db:"team_id" json:"team_id,omitempty"`
	NameOnCertificate  string    `db:"name_on_certificate" json:"name_on_certificate"`
	Ranking            *int      `db:"ranking" json:"ranking,omitempty"`
	IsVerified         bool      `db:"is_verified" json:"is_verified"`
	VerificationID     string    `db:"verification_id" json:"verification_id"`
	CompetitionTitle   string    `db:"competition_title" json:"competition_title"`
	EventTitle         string    `db:"event_title" json:"event_title"`
	EventEndDate       time.Time `db:"event_end_date" json:"event_end_date"`
	TeamMembers        []string  `db:"-" json:"team_members,omitempty"`
	RequestedAt        time.Time `db:"requested_at" json:"requested_at"`
}

// EligibleCertificate is an enrollment, registration or team that may request a certificate.
type EligibleCertificate struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	EventTitle      string    `json:"event_title"`
	EndedAt         time.Time `json:"ended_at"`
	CompetitionID   int64     `json:"competition_id,omitempty"`
	TeamName        string    `json:"team_name,omitempty"`
	AlreadyIssued   bool      `json:"already_requested"`
	CertificateName string    `json:"certificate_name,omitempty"`
}
