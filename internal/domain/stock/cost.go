package stock

import "github.com/shopspring/decimal"

// AverageCost считает новую средневзвешенную себестоимость:
// (cq*cc + iq*ic) / (cq + iq).
// Отрицательный остаток (Odoo может отдать его временно) считается нулём.
func AverageCost(currentQty, currentCost, incomingQty, incomingCost decimal.Decimal) (decimal.Decimal, error) {
	if !incomingQty.IsPositive() || !incomingCost.IsPositive() {
		return decimal.Zero, ErrInvalidCostInput
	}
	if currentQty.IsNegative() {
		currentQty = decimal.Zero
	}
	num := currentQty.Mul(currentCost).Add(incomingQty.Mul(incomingCost))
	return num.Div(currentQty.Add(incomingQty)), nil
}
