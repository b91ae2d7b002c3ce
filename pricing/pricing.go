// Package pricing holds the money arithmetic for orders: subtotals, coupon
// discounts, totals and the commission/payout split. Amounts are float64 at
// the edges and decimal inside, rounded half-up to two places.
package pricing

import (
	"food-marketplace-api/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Round2 rounds to the cent, half away from zero
func Round2(x float64) float64 {
	return decimal.NewFromFloat(x).Round(2).InexactFloat64()
}

// Line is the priced part of an order line
type Line struct {
	Price    float64
	Quantity int
}

func Subtotal(lines []Line) float64 {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(decimal.NewFromFloat(l.Price).Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return sum.Round(2).InexactFloat64()
}

// Discount is the outcome of applying one coupon rule to an amount
type Discount struct {
	Amount         float64
	DeliveryAmount float64
}

// CouponDiscount computes the discount a coupon grants on orderAmount.
// maxDiscount nil means uncapped; free delivery waives up to value of the fee.
func CouponDiscount(kind models.CouponType, value float64, maxDiscount *float64, orderAmount float64) Discount {
	var d Discount
	switch kind {
	case models.CouponPercentage:
		amount := decimal.NewFromFloat(orderAmount).Mul(decimal.NewFromFloat(value)).Div(hundred)
		if maxDiscount != nil && *maxDiscount > 0 {
			amount = decimal.Min(amount, decimal.NewFromFloat(*maxDiscount))
		}
		d.Amount = amount.Round(2).InexactFloat64()
	case models.CouponFixed:
		d.Amount = decimal.Min(decimal.NewFromFloat(value), decimal.NewFromFloat(orderAmount)).Round(2).InexactFloat64()
	case models.CouponFreeDelivery:
		d.DeliveryAmount = Round2(value)
	}
	return d
}

// Breakdown is every input to an order total
type Breakdown struct {
	Subtotal         float64
	Discount         float64
	DeliveryFee      float64
	DeliveryDiscount float64
	GiftCardUsed     float64
}

// Payable is the amount due before any gift card is applied
func (b Breakdown) Payable() float64 {
	fee := decimal.NewFromFloat(b.DeliveryFee)
	waived := decimal.Min(decimal.NewFromFloat(b.DeliveryDiscount), fee)
	payable := decimal.NewFromFloat(b.Subtotal).
		Sub(decimal.NewFromFloat(b.Discount)).
		Add(fee).
		Sub(waived)
	if payable.IsNegative() {
		return 0
	}
	return payable.Round(2).InexactFloat64()
}

// Total is the payable amount less the gift card, never below zero
func Total(b Breakdown) float64 {
	total := decimal.NewFromFloat(b.Payable()).Sub(decimal.NewFromFloat(b.GiftCardUsed))
	if total.IsNegative() {
		return 0
	}
	return total.Round(2).InexactFloat64()
}

// Split is the commission and restaurant payout derived from an order total
type Split struct {
	Rate       float64
	Commission float64
	Payout     float64
}

// Commission derives the platform cut at rate percent and the remainder owed to the restaurant
func Commission(total, rate float64) Split {
	t := decimal.NewFromFloat(total)
	commission := t.Mul(decimal.NewFromFloat(rate)).Div(hundred).Round(2)
	return Split{
		Rate:       rate,
		Commission: commission.InexactFloat64(),
		Payout:     t.Sub(commission).Round(2).InexactFloat64(),
	}
}

// Apply writes the split onto an order's commission and payout records
func (s Split) Apply(o *models.Order) {
	o.Commission.Rate = s.Rate
	o.Commission.Amount = s.Commission
	o.RestaurantPayout.Amount = s.Payout
}
