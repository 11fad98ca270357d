package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ShippingInfo is the contact and delivery block submitted with every order.
type ShippingInfo struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	City     string `json:"city"`
}

// AddressOverride replaces the profile address for a single order.
type AddressOverride struct {
	Address string `json:"address"`
	City    string `json:"city"`
}

type OrderItemInput struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// OrderRequest is posted to the order creation endpoint. Prices are never sent.
type OrderRequest struct {
	Items      []OrderItemInput `json:"items"`
	UseLoyalty bool             `json:"use_loyalty"`
	ShippingInfo
}

type OrderConfirmation struct {
	Message             string `json:"message"`
	OrderID             string `json:"order_id"`
	Total               string `json:"total"`
	PointsEarnedPending string `json:"points_earned_pending"`
}

type OrderItem struct {
	Title    string          `json:"title"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Total    decimal.Decimal `json:"total"`
	Image    string          `json:"image,omitempty"`
}

type Order struct {
	ID          string          `json:"id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ClientName  string          `json:"client_name"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	Email       string          `json:"email"`
	Phone       string          `json:"phone"`
	Address     string          `json:"address"`
	City        string          `json:"city"`
	Items       []OrderItem     `json:"items"`
}

// Quote is the derived checkout preview; the backend stays authoritative.
type Quote struct {
	Subtotal          decimal.Decimal `json:"subtotal"`
	ShippingFlatFee   decimal.Decimal `json:"shipping_flat_fee"`
	LoyaltyAvailable  bool            `json:"loyalty_available"`
	LoyaltyRedeemable decimal.Decimal `json:"loyalty_redeemable"`
	LoyaltyDeduction  decimal.Decimal `json:"loyalty_deduction"`
	Total             decimal.Decimal `json:"total"`
	PointsToEarn      decimal.Decimal `json:"points_to_earn"`
	EarnsPoints       bool            `json:"earns_points"`
}
