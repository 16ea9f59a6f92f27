package dto

import (
	"time"

	"eventhub/internal/model"
)

type TokenPairResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type AccessResponse struct {
	Access string `json:"access"`
}

type CartItemView struct {
	ID       int64       `json:"id"`
	ItemType string      `json:"item_type"`
	ItemID   int64       `json:"item_id"`
	EventID  int64       `json:"event_id"`
	Title    string      `json:"title"`
	Price    int64       `json:"price"`
	Status   string      `json:"status"`
	Reserved bool        `json:"is_reserved"`
	OrderID  *int64      `json:"reserved_order,omitempty"`
	Item     *model.Item `json:"item,omitempty"`
	AddedAt  time.Time   `json:"added_at"`
}

type CartView struct {
	ID           int64          `json:"id"`
	Items        []CartItemView `json:"items"`
	DiscountCode string         `json:"discount_code,omitempty"`
	Subtotal     int64          `json:"subtotal"`
	Discount     int64          `json:"discount_amount"`
	Total        int64          `json:"total"`
}

type EnrollmentResult struct {
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}

// Registrations groups everything a user is signed up for.
type Registrations struct {
	Presentations    []model.PresentationEnrollment `json:"presentations"`
	SoloCompetitions []model.SoloRegistration       `json:"solo_competitions"`
	Teams            []model.CompetitionTeam        `json:"teams"`
}

type CertificateView struct {
	Kind        string `json:"kind"`
	Certificate any    `json:"certificate"`
	DownloadURL string `json:"download_url"`
}
