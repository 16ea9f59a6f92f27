package model

import "time"

type Event struct {
	ID          int64     `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description,omitempty"`
	StartDate   time.Time `db:"start_date" json:"start_date"`
	EndDate     time.Time `db:"end_date" json:"end_date"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	LandingURL  string    `db:"landing_url" json:"landing_url,omitempty"`
	ManagerID   *int64    `db:"manager_id" json:"manager_id,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

const (
	PresentationCourse   = "course"
	PresentationTalk     = "talk"
	PresentationWorkshop = "workshop"

	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
)

type Presentation struct {
	ID                int64     `db:"id" json:"id"`
	EventID           int64     `db:"event_id" json:"event_id"`
	Title             string    `db:"title" json:"title"`
	Description       string    `db:"description" json:"description,omitempty"`
	Type              string    `db:"type" json:"type"`
	Level             string    `db:"level" json:"level"`
	IsOnline          bool      `db:"is_online" json:"is_online"`
	Location          string    `db:"location" json:"location,omitempty"`
	OnlineLink        string    `db:"online_link" json:"online_link,omitempty"`
	StartTime         time.Time `db:"start_time" json:"start_time"`
	EndTime           time.Time `db:"end_time" json:"end_time"`
	IsPaid            bool      `db:"is_paid" json:"is_paid"`
	Price             int64     `db:"price" json:"price"`
	Capacity          *int      `db:"capacity" json:"capacity"`
	RemainingCapacity *int      `db:"-" json:"remaining_capacity"`
	IsActive          bool      `db:"is_active" json:"is_active"`
	Requirements      string    `db:"requirements" json:"requirements,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// CompetitionInfo holds the fields shared by solo and group competitions.
type CompetitionInfo struct {
	EventID       int64     `db:"event_id" json:"event_id"`
	Title         string    `db:"title" json:"title"`
	Description   string    `db:"description" json:"description,omitempty"`
	StartDatetime time.Time `db:"start_datetime" json:"start_datetime"`
	EndDatetime   time.Time `db:"end_datetime" json:"end_datetime"`
	Rules         string    `db:"rules" json:"rules,omitempty"`
	IsPaid        bool      `db:"is_paid" json:"is_paid"`
	PrizeDetails  string    `db:"prize_details" json:"prize_details,omitempty"`
	IsActive      bool      `db:"is_active" json:"is_active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

type SoloCompetition struct {
	ID int64 `db:"id" json:"id"`
	CompetitionInfo
	PricePerParticipant int64 `db:"price_per_participant" json:"price_per_participant"`
	MaxParticipants     *int  `db:"max_participants" json:"max_participants"`
	RemainingCapacity   *int  `db:"-" json:"remaining_capacity"`
}

// GroupCompetition with RequiresAdminApproval set is a verified competition.
type GroupCompetition struct {
	ID int64 `db:"id" json:"id"`
	CompetitionInfo
	PricePerGroup                  int64  `db:"price_per_group" json:"price_per_group"`
	MinGroupSize                   int    `db:"min_group_size" json:"min_group_size"`
	MaxGroupSize                   int    `db:"max_group_size" json:"max_group_size"`
	MaxTeams                       *int   `db:"max_teams" json:"max_teams"`
	RemainingCapacity              *int   `db:"-" json:"remaining_capacity"`
	RequiresAdminApproval          bool   `db:"requires_admin_approval" json:"requires_admin_approval"`
	MemberVerificationInstructions string `db:"member_verification_instructions" json:"member_verification_instructions,omitempty"`
}

func (g *GroupCompetition) IsFree() bool {
	return !g.IsPaid || g.PricePerGroup <= 0
}

// EventDetail is an event with its active offerings.
type EventDetail struct {
	Event
	Presentations     []Presentation     `json:"presentations"`
	SoloCompetitions  []SoloCompetition  `json:"solo_competitions"`
	GroupCompetitions []GroupCompetition `json:"group_competitions"`
}
