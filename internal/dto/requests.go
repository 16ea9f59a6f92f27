package dto

import (
	"time"

	"eventhub/internal/model"
)

type RegisterRequest struct {
	Email           string `json:"email" validate:"required,email,max=254"`
	Password        string `json:"password" validate:"required,min=8,max=128"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	FirstName       string `json:"first_name" validate:"required,max=150"`
	LastName        string `json:"last_name" validate:"required,max=150"`
	PhoneNumber     string `json:"phone_number" validate:"phone"`
}

type VerifyEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type TokenRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

type ProfileRequest struct {
	FirstName   *string `json:"first_name" validate:"omitempty,max=150"`
	LastName    *string `json:"last_name" validate:"omitempty,max=150"`
	PhoneNumber *string `json:"phone_number" validate:"omitempty,phone"`
}

type ChangePasswordRequest struct {
	OldPassword        string `json:"old_password" validate:"required"`
	NewPassword        string `json:"new_password" validate:"required,min=8,max=128"`
	NewPasswordConfirm string `json:"new_password_confirm" validate:"required,eqfield=NewPassword"`
}

type CreateEventRequest struct {
	Title       string    `json:"title" validate:"required,max=255"`
	Description string    `json:"description"`
	StartDate   time.Time `json:"start_date" validate:"required"`
	EndDate     time.Time `json:"end_date" validate:"required,gtfield=StartDate"`
	IsActive    bool      `json:"is_active"`
	LandingURL  string    `json:"landing_url" validate:"omitempty,url"`
}

type CreatePresentationRequest struct {
	EventID      int64     `json:"event_id" validate:"required,positive"`
	Title        string    `json:"title" validate:"required,max=255"`
	Description  string    `json:"description"`
	Type         string    `json:"type" validate:"required,oneof=course talk workshop"`
	Level        string    `json:"level" validate:"required,oneof=beginner intermediate advanced"`
	IsOnline     bool      `json:"is_online"`
	Location     string    `json:"location" validate:"max=255"`
	OnlineLink   string    `json:"online_link" validate:"omitempty,url"`
	StartTime    time.Time `json:"start_time" validate:"required"`
	EndTime      time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
	IsPaid       bool      `json:"is_paid"`
	Price        int64     `json:"price" validate:"gte=0"`
	Capacity     *int      `json:"capacity" validate:"omitempty,gte=0"`
	IsActive     bool      `json:"is_active"`
	Requirements string    `json:"requirements"`
}

type CompetitionFields struct {
	EventID       int64     `json:"event_id" validate:"required,positive"`
	Title         string    `json:"title" validate:"required,max=255"`
	Description   string    `json:"description"`
	StartDatetime time.Time `json:"start_datetime" validate:"required"`
	EndDatetime   time.Time `json:"end_datetime" validate:"required,gtfield=StartDatetime"`
	Rules         string    `json:"rules"`
	IsPaid        bool      `json:"is_paid"`
	PrizeDetails  string    `json:"prize_details"`
	IsActive      bool      `json:"is_active"`
}

type CreateSoloCompetitionRequest struct {
	CompetitionFields
	PricePerParticipant int64 `json:"price_per_participant" validate:"gte=0"`
	MaxParticipants     *int  `json:"max_participants" validate:"omitempty,gte=0"`
}

type CreateGroupCompetitionRequest struct {
	CompetitionFields
	PricePerGroup                  int64  `json:"price_per_group" validate:"gte=0"`
	MinGroupSize                   int    `json:"min_group_size" validate:"required,gte=1"`
	MaxGroupSize                   int    `json:"max_group_size" validate:"required,gtefield=MinGroupSize"`
	MaxTeams                       *int   `json:"max_teams" validate:"omitempty,gte=0"`
	RequiresAdminApproval          bool   `json:"requires_admin_approval"`
	MemberVerificationInstructions string `json:"member_verification_instructions"`
}

type SetActiveRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

type RegisterTeamRequest struct {
	Name         string   `json:"name" validate:"required,max=255"`
	MemberEmails []string `json:"member_emails" validate:"dive,email"`
}

type ReviewRequest struct {
	Remarks string `json:"remarks" validate:"max=2000"`
}

type AddCartItemRequest struct {
	ItemType string `json:"item_type" validate:"required,itemtype"`
	ItemID   int64  `json:"item_id" validate:"required,positive"`
}

type ApplyDiscountRequest struct {
	Code string `json:"code" validate:"required,max=50"`
}

type PartialCheckoutRequest struct {
	CartItemIDs []int64 `json:"cart_item_ids" validate:"required,min=1"`
}

type PayRequest struct {
	App *string `json:"app" validate:"omitempty,slug"`
}

type BatchPayRequest struct {
	OrderIDs []string `json:"order_ids" validate:"required,min=1,dive,uuid4"`
	App      *string  `json:"app" validate:"omitempty,slug"`
}

type CreateDiscountCodeRequest struct {
	Code           string         `json:"code" validate:"required,max=50"`
	IsActive       bool           `json:"is_active"`
	Percentage     *model.Percent `json:"percentage" validate:"omitempty,gt=0,lte=10000"`
	Amount         *int64         `json:"amount" validate:"omitempty,gte=1"`
	ValidFrom      *time.Time     `json:"valid_from"`
	ValidTo        *time.Time     `json:"valid_to"`
	MinOrderAmount int64          `json:"min_order_amount" validate:"gte=0"`
	MaxUses        *int           `json:"max_uses" validate:"omitempty,gte=1"`
	MaxUsesPerUser *int           `json:"max_uses_per_user" validate:"omitempty,gte=1"`
	TargetType     *string        `json:"target_type" validate:"omitempty,itemtype"`
	TargetID       *int64         `json:"target_id" validate:"omitempty,positive"`
}

type CreatePaymentAppRequest struct {
	Slug     string `json:"slug" validate:"required,slug,max=50"`
	Name     string `json:"name" validate:"required,max=100"`
	IsActive *bool  `json:"is_active"`
}

type CertificateNameRequest struct {
	NameOnCertificate string `json:"name_on_certificate" validate:"required,max=255"`
}

type SoloCertificateRequest struct {
	RegistrationID    int64  `json:"registration_id" validate:"required,positive"`
	NameOnCertificate string `json:"name_on_certificate" validate:"required,max=255"`
}

type VerifyCertificateRequest struct {
	Ranking *int `json:"ranking" validate:"omitempty,gte=1"`
}

type CreateTagRequest struct {
	Name  string `json:"name" validate:"required,max=50"`
	Color string `json:"color" validate:"required,hexcolor"`
}

type CreateJobRequest struct {
	Title           string  `json:"title" validate:"required,max=255"`
	Excerpt         string  `json:"excerpt" validate:"required,max=500"`
	Description     string  `json:"description" validate:"required"`
	CompanyURL      string  `json:"company_url" validate:"omitempty,url"`
	ResumeURL       string  `json:"resume_url" validate:"omitempty,url"`
	CompanyImageURL string  `json:"company_image" validate:"omitempty,url"`
	IsActive        *bool   `json:"is_active"`
	TagIDs          []int64 `json:"tag_ids"`
}
