// internal/services/pricing.go
package services

import (
	"github.com/shopspring/decimal"
)

// PricingCalculator prices a distribution request by track count.
type PricingCalculator struct {
	unitPrice decimal.Decimal
}

func NewPricingCalculator(unitPrice decimal.Decimal) *PricingCalculator {
	return &PricingCalculator{unitPrice: unitPrice.Round(2)}
}

func (p *PricingCalculator) UnitPrice() decimal.Decimal {
	return p.unitPrice
}

// Total is trackCount × unit price at scale 2. Zero tracks cost zero.
func (p *PricingCalculator) Total(trackCount int) decimal.Decimal {
	if trackCount <= 0 {
		return decimal.Zero.Round(2)
	}
	return p.unitPrice.Mul(decimal.NewFromInt(int64(trackCount))).Round(2)
}
