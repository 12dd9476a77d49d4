package domain

import (
	"time"

	"gopkg.in/guregu/null.v4"
)

type SessionStatus string

const (
	SessionOpen   SessionStatus = "open"
	SessionClosed SessionStatus = "closed"
)

// ParkingSession is one vehicle's stay, from check-in to check-out,
// bound to exactly one spot. Receipt is the external identifier.
// ExitTime and Fee are set together when the session closes and never
// change afterwards.
type ParkingSession struct {
	ID        int           `json:"id"`
	Receipt   string        `json:"receipt"`
	Plate     string        `json:"plate"`
	Brand     string        `json:"brand"`
	Model     string        `json:"model"`
	Color     string        `json:"color"`
	ClientID  int           `json:"-"`
	SpotID    int           `json:"-"`
	EntryTime time.Time     `json:"entry_time"`
	ExitTime  null.Time     `json:"exit_time"`
	Fee       null.Float    `json:"fee"`
	Status    SessionStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`

	// Filled by joins for API responses, not stored on the row.
	ClientTaxID string `json:"client_tax_id,omitempty"`
	SpotCode    string `json:"spot_code,omitempty"`
}

type CheckInDTO struct {
	Plate       string `json:"plate" binding:"required,min=4,max=10"`
	Brand       string `json:"brand" binding:"required,max=45"`
	Model       string `json:"model" binding:"required,max=45"`
	Color       string `json:"color" binding:"required,max=45"`
	ClientTaxID string `json:"client_tax_id" binding:"required,min=11,max=14"`
}

type SessionFilterDTO struct {
	ClientTaxID string `form:"clientTaxId"`
	Page        int    `form:"page"`
	Size        int    `form:"size"`
}

type SessionPage struct {
	Content       []ParkingSession `json:"content"`
	Page          int              `json:"page"`
	Size          int              `json:"size"`
	TotalElements int64            `json:"total_elements"`
	TotalPages    int              `json:"total_pages"`
}
