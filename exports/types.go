package exports

import (
	"context"
	"time"
)

const (
	DefaultPerPage = 25
	MaxPerPage     = 500
)

type CustomerExport struct {
	ID              string     `json:"id"`
	CustomerID      int64      `json:"customer_id"`
	ExportType      string     `json:"export_type"`
	Category        string     `json:"category"`
	Status          string     `json:"status"`
	City            string     `json:"city"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	StatusChangedAt *time.Time `json:"status_changed_at,omitempty"`
}

type Page struct {
	Items   []CustomerExport `json:"items"`
	Page    int              `json:"page"`
	PerPage int              `json:"per_page"`
	Total   int              `json:"total"`
	HasNext bool             `json:"has_next"`
}

// Lister is implemented by stores that can list filtered exports.
type Lister interface {
	List(ctx context.Context, req Request) (Page, error)
}

// Normalize clamps pagination to [1, max] using the given defaults.
func (r Request) Normalize(defaultPerPage int, maxPerPage int) Request {
	if defaultPerPage <= 0 {
		defaultPerPage = DefaultPerPage
	}
	if maxPerPage <= 0 {
		maxPerPage = MaxPerPage
	}
	if r.Page <= 0 {
		r.Page = 1
	}
	if r.PerPage <= 0 {
		r.PerPage = defaultPerPage
	}
	if r.PerPage > maxPerPage {
		r.PerPage = maxPerPage
	}
	return r
}

func (r Request) Offset() int {
	if r.Page <= 1 {
		return 0
	}
	return (r.Page - 1) * r.PerPage
}
