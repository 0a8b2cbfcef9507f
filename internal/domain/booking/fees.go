package booking

import (
	"github.com/shopspring/decimal"

	"github.com/rigshare/service-booking/pkg/domain"
)

// DefaultPlatformFeeRate is 1.5% of the rental subtotal.
var DefaultPlatformFeeRate = decimal.RequireFromString("0.015")

// FeeBreakdown is the monetary snapshot stored on a booking.
type FeeBreakdown struct {
	RentalCost        decimal.Decimal `json:"rental_cost"`
	DeliveryFee       decimal.Decimal `json:"delivery_fee"`
	BondAmount        decimal.Decimal `json:"bond_amount"`
	RentalSubtotal    decimal.Decimal `json:"rental_subtotal"`
	PlatformFeeRate   decimal.Decimal `json:"platform_fee_rate"`
	PlatformFee       decimal.Decimal `json:"platform_fee"`
	OwnerPayoutAmount decimal.Decimal `json:"owner_payout_amount"`
	TotalCharged      decimal.Decimal `json:"total_charged"`
}

// FeeCalculator derives a FeeBreakdown at a fixed platform fee rate.
// It has no state beyond the rate, so booking creation, analytics and payout
// reconciliation get identical results from the same inputs.
type FeeCalculator struct {
	rate decimal.Decimal
}

// NewFeeCalculator creates a FeeCalculator. The rate must be in [0, 1).
func NewFeeCalculator(rate decimal.Decimal) (*FeeCalculator, error) {
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, domain.NewValidationError("platform fee rate must be between 0 and 1")
	}
	return &FeeCalculator{rate: rate}, nil
}

// Rate returns the configured platform fee rate.
func (c *FeeCalculator) Rate() decimal.Decimal { return c.rate }

// Calculate computes the breakdown. Every step is rounded to cents, half up.
//
//	subtotal = round(rentalCost + deliveryFee)
//	fee      = round(subtotal * rate)
//	payout   = round(subtotal - fee)
//	total    = round(subtotal + fee + bond)
func (c *FeeCalculator) Calculate(rentalCost, deliveryFee, bondAmount decimal.Decimal) (FeeBreakdown, error) {
	if rentalCost.IsNegative() || deliveryFee.IsNegative() || bondAmount.IsNegative() {
		return FeeBreakdown{}, domain.NewValidationError("fee inputs must not be negative")
	}

	bond := roundMoney(bondAmount)
	subtotal := roundMoney(rentalCost.Add(deliveryFee))
	fee := roundMoney(subtotal.Mul(c.rate))

	return FeeBreakdown{
		RentalCost:        rentalCost,
		DeliveryFee:       deliveryFee,
		BondAmount:        bond,
		RentalSubtotal:    subtotal,
		PlatformFeeRate:   c.rate,
		PlatformFee:       fee,
		OwnerPayoutAmount: roundMoney(subtotal.Sub(fee)),
		TotalCharged:      roundMoney(subtotal.Add(fee).Add(bond)),
	}, nil
}

// roundMoney rounds to 2 places. decimal.Round rounds half away from zero,
// which is half up for the non-negative amounts accepted here.
func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
