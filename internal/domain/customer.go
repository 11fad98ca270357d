package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// GuestScope is the cart scope used when nobody is signed in.
const GuestScope = "guest"

// User is the authenticated profile as returned by the backend.
type User struct {
	ID            string          `json:"id"`
	FirstName     string          `json:"first_name"`
	LastName      string          `json:"last_name"`
	Email         string          `json:"email"`
	Phone         string          `json:"phone"`
	Address       string          `json:"address"`
	City          string          `json:"city"`
	LoyaltyPoints decimal.Decimal `json:"loyalty_points"`
	IsAdmin       bool            `json:"is_admin"`
}

// FullName joins first and last name the way orders expect it.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Identity is either a guest (User == nil) or an authenticated user.
type Identity struct {
	User *User `json:"user,omitempty"`
}

// Guest returns the anonymous identity.
func Guest() Identity {
	return Identity{}
}

// Authenticated wraps a user profile.
func Authenticated(u User) Identity {
	return Identity{User: &u}
}

func (i Identity) IsGuest() bool {
	return i.User == nil
}

// CartScope is the suffix of the persisted cart key for this identity.
func (i Identity) CartScope() string {
	if i.User == nil || i.User.ID == "" {
		return GuestScope
	}
	return i.User.ID
}

// LoyaltyBalance returns the spendable points, zero for guests.
func (i Identity) LoyaltyBalance() decimal.Decimal {
	if i.User == nil {
		return decimal.Zero
	}
	return i.User.LoyaltyPoints
}

// Tokens is the credential pair issued on login or registration.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// ProfileFields carries the editable profile attributes.
type ProfileFields struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
	City      string `json:"city,omitempty"`
}

// Registration is the payload of the signup endpoint.
type Registration struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	City      string `json:"city"`
}
