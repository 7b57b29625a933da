package model

import "math"

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *Meta     `json:"meta,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type Meta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// Page is a 1-based page request.
type Page struct {
	Number int
	Limit  int
	Sort   string
	Desc   bool
}

func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	// Keeps Offset within int64 for any page number a client sends.
	if maxPage := math.MaxInt/p.Limit - 1; p.Number > maxPage {
		p.Number = maxPage
	}
	return p
}

func (p Page) Offset() int {
	p = p.Normalize()
	return (p.Number - 1) * p.Limit
}

func (p Page) Meta(total int) *Meta {
	p = p.Normalize()
	pages := 0
	if total > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return &Meta{Page: p.Number, Limit: p.Limit, Total: total, TotalPages: pages}
}
