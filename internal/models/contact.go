package models

import (
	"time"

	"github.com/google/uuid"
)

// SourceContact is a customer row read from the operational contact view.
// The sync engine never writes it.
type SourceContact struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	Email            string     `json:"email" db:"email"`
	FirstName        *string    `json:"first_name" db:"first_name"`
	LastName         *string    `json:"last_name" db:"last_name"`
	Mobile           *string    `json:"mobile" db:"mobile"`
	Landline         *string    `json:"landline" db:"landline"`
	AddressLine1     *string    `json:"address_line1" db:"address_line1"`
	AddressLine2     *string    `json:"address_line2" db:"address_line2"`
	Suburb           *string    `json:"suburb" db:"suburb"`
	State            *string    `json:"state" db:"state"`
	Postcode         *string    `json:"postcode" db:"postcode"`
	Country          *string    `json:"country" db:"country"`
	CustomerSegment  *string    `json:"customer_segment" db:"customer_segment"`
	LeadScore        *int       `json:"lead_score" db:"lead_score"`
	TotalOrders      *int       `json:"total_orders" db:"total_orders"`
	TotalSpent       *float64   `json:"total_spent" db:"total_spent"`
	LastOrderDate    *time.Time `json:"last_order_date" db:"last_order_date"`
	LastEventName    *string    `json:"last_event_name" db:"last_event_name"`
	PreferredVenue   *string    `json:"preferred_venue" db:"preferred_venue"`
	MarketingOptIn   *bool      `json:"marketing_opt_in" db:"marketing_opt_in"`
	CustomerSince    *time.Time `json:"customer_since" db:"customer_since"`
	CustomerSegments []string   `json:"customer_segments" db:"customer_segments"`
}

// Segment is a list in the marketing system. Alias holds the catalog slug.
type Segment struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Alias string `json:"alias,omitempty"`
}
