package domain

import "time"

// Client owns vehicles that park at the facility, identified
// externally by tax id.
type Client struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	TaxID     string    `json:"tax_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ClientCreateDTO struct {
	Name  string `json:"name" binding:"required,min=3,max=100"`
	TaxID string `json:"tax_id" binding:"required,min=11,max=14"`
}

type ClientPage struct {
	Content       []Client `json:"content"`
	Page          int      `json:"page"`
	Size          int      `json:"size"`
	TotalElements int64    `json:"total_elements"`
	TotalPages    int      `json:"total_pages"`
}
