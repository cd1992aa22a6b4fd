// Package pricing spreads a cart-level discount over its line items.
//
// The discounted grand total is distributed proportionally to each line's
// total; every line but the last is rounded to cents and the last line takes
// whatever is left, so the adjusted lines always add up to the grand total.
package pricing

import (
	"github.com/shopspring/decimal"

	"storepos/m/domain"
)

// Allocation is the result of distributing a discount over a cart.
type Allocation struct {
	Items       []domain.LineItem `json:"items"`
	TotalBefore decimal.Decimal   `json:"total_before"`
	Discount    decimal.Decimal   `json:"discount"`
	FinalTotal  decimal.Decimal   `json:"final_total"`
}

// LineItemFor builds a cart line priced at unitPrice.
func LineItemFor(productID, quantity int64, unitPrice decimal.Decimal) domain.LineItem {
	return domain.LineItem{
		ProductID:  productID,
		Quantity:   quantity,
		UnitPrice:  unitPrice,
		TotalPrice: unitPrice.Mul(decimal.NewFromInt(quantity)),
	}
}

// Allocate returns the cart with discount applied proportionally to each line.
// A discount larger than the cart total clamps the final total to zero.
func Allocate(items []domain.LineItem, discount decimal.Decimal) Allocation {
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if len(items) == 0 {
		return Allocation{Items: []domain.LineItem{}, TotalBefore: decimal.Zero, Discount: discount, FinalTotal: decimal.Zero}
	}

	totalBefore := decimal.Zero
	for _, item := range items {
		totalBefore = totalBefore.Add(item.TotalPrice)
	}
	finalTotal := decimal.Max(decimal.Zero, totalBefore.Sub(discount))
	scale := totalBefore.IsPositive() && discount.IsPositive()

	adjusted := make([]domain.LineItem, len(items))
	remaining := finalTotal
	last := len(items) - 1
	for i, item := range items {
		var lineTotal decimal.Decimal
		if i < last {
			lineTotal = item.TotalPrice
			if scale {
				// total × (final / before), multiplied first to keep precision.
				lineTotal = item.TotalPrice.Mul(finalTotal).Div(totalBefore)
			}
			lineTotal = lineTotal.Round(2)
			remaining = remaining.Sub(lineTotal)
		} else {
			lineTotal = remaining.Round(2)
		}

		unit := decimal.Zero
		if item.Quantity > 0 {
			unit = lineTotal.Div(decimal.NewFromInt(item.Quantity))
		}
		adjusted[i] = domain.LineItem{
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			UnitPrice:  unit,
			TotalPrice: lineTotal,
		}
	}

	return Allocation{
		Items:       adjusted,
		TotalBefore: totalBefore,
		Discount:    discount,
		FinalTotal:  finalTotal,
	}
}
