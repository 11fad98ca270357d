package domain

import "github.com/shopspring/decimal"

type Product struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Slug        string          `json:"slug,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image,omitempty"`
	Description string          `json:"description,omitempty"`
	Stock       int             `json:"stock,omitempty"`
	Category    *Category       `json:"category,omitempty"`
}
