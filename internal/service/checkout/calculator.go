// Package checkout derives the checkout preview from the active cart and
// identity, and submits orders.
package checkout

import (
	"bahri-storefront/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	// DefaultShippingFee is the flat delivery charge added to every order.
	DefaultShippingFee = decimal.RequireFromString("7.00")
	// EarnRate is the share of the subtotal credited as loyalty points.
	EarnRate = decimal.RequireFromString("0.05")
)

// Calculator computes quotes. The zero value charges DefaultShippingFee.
type Calculator struct {
	shippingFee decimal.Decimal
	set         bool
}

func NewCalculator(shippingFee decimal.Decimal) Calculator {
	if shippingFee.IsNegative() {
		shippingFee = decimal.Zero
	}
	return Calculator{shippingFee: shippingFee, set: true}
}

func (c Calculator) ShippingFee() decimal.Decimal {
	if !c.set {
		return DefaultShippingFee
	}
	return c.shippingFee
}

// Quote is pure: the backend applies the same rules when it creates the
// order and its figures win.
func (c Calculator) Quote(subtotal decimal.Decimal, id domain.Identity, useLoyalty bool) domain.Quote {
	if subtotal.IsNegative() {
		subtotal = decimal.Zero
	}
	subtotal = subtotal.Round(2)
	fee := c.ShippingFee()

	points := id.LoyaltyBalance()
	available := !id.IsGuest() && points.IsPositive()

	redeemable := decimal.Zero
	if available && useLoyalty {
		redeemable = decimal.Min(points, subtotal)
	}

	return domain.Quote{
		Subtotal:          subtotal,
		ShippingFlatFee:   fee,
		LoyaltyAvailable:  available,
		LoyaltyRedeemable: redeemable,
		LoyaltyDeduction:  redeemable,
		Total:             subtotal.Add(fee).Sub(redeemable),
		PointsToEarn:      subtotal.Mul(EarnRate).Round(2),
		EarnsPoints:       !id.IsGuest(),
	}
}
