package models

import (
	"github.com/shopspring/decimal"
)

// Pure costing arithmetic. Every figure is rounded half-up to 2 fractional digits
// at the end of a formula, never in the middle of one.

var hundred = decimal.NewFromInt(100)

// Round2 rounds half-up to 2 decimals (amounts in the ledger are never negative).
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// WeightedAverageCost is the CUMP after receiving recvQty units at recvPrice
// on top of oldQty units valued at oldAvg.
func WeightedAverageCost(oldQty, oldAvg, recvQty, recvPrice decimal.Decimal) decimal.Decimal {
	totalQty := oldQty.Add(recvQty)
	if totalQty.IsZero() {
		return recvPrice
	}
	if recvQty.IsZero() {
		return oldAvg
	}
	totalCost := oldQty.Mul(oldAvg).Add(recvQty.Mul(recvPrice))
	return Round2(totalCost.Div(totalQty))
}

func TotalValue(qty, avgCost decimal.Decimal) decimal.Decimal {
	return Round2(qty.Mul(avgCost))
}

// RemainingQty never goes negative, even for over-received lines.
func RemainingQty(ordered, received decimal.Decimal) decimal.Decimal {
	remaining := ordered.Sub(received)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

func sumReceipt(items []PurchaseItem) (ordered, received decimal.Decimal) {
	for _, item := range items {
		ordered = ordered.Add(item.QuantityOrdered)
		received = received.Add(item.QuantityReceived)
	}
	return ordered, received
}

// DerivePurchaseStatus compares total received against total ordered.
// Over-receipt clamps to RECEIVED; callers report it through IsOverReceived.
func DerivePurchaseStatus(items []PurchaseItem) PurchaseStatus {
	ordered, received := sumReceipt(items)
	if received.IsZero() {
		return PurchaseStatusDraft
	}
	if received.GreaterThanOrEqual(ordered) {
		return PurchaseStatusReceived
	}
	return PurchaseStatusPartial
}

// IsOverReceived reports any line, or the purchase as a whole, received beyond what was ordered.
func IsOverReceived(items []PurchaseItem) bool {
	for _, item := range items {
		if item.QuantityReceived.GreaterThan(item.QuantityOrdered) {
			return true
		}
	}
	ordered, received := sumReceipt(items)
	return received.GreaterThan(ordered)
}

// RequiredQuantity is what one BOM line needs for plannedQty units, waste included.
func RequiredQuantity(line BomItem, plannedQty decimal.Decimal) decimal.Decimal {
	return Round2(line.QuantityPerUnit.Mul(line.WasteFactor).Mul(plannedQty))
}

// SuggestedPrice is the price giving marginFraction of margin on totalCost,
// rounded up to the whole currency unit.
func SuggestedPrice(totalCost, marginFraction decimal.Decimal) decimal.Decimal {
	divisor := decimal.NewFromInt(1).Sub(marginFraction)
	if !divisor.IsPositive() {
		return decimal.Zero
	}
	return totalCost.Div(divisor).Ceil()
}

// MarginPercent is margin as a percentage of sellingPrice; zero when there is no price.
func MarginPercent(margin, sellingPrice decimal.Decimal) decimal.Decimal {
	if !sellingPrice.IsPositive() {
		return decimal.Zero
	}
	return Round2(margin.Div(sellingPrice).Mul(hundred))
}
