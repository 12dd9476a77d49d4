package domain

import "time"

type SpotStatus string

const (
	SpotFree     SpotStatus = "free"
	SpotOccupied SpotStatus = "occupied"
)

// Spot is a physical parking space. Status is occupied exactly while
// one open session references the spot.
type Spot struct {
	ID        int        `json:"id"`
	Code      string     `json:"code"`
	Status    SpotStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type SpotCreateDTO struct {
	Code string `json:"code" binding:"required,min=4,max=10"`
}
