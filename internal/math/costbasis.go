package math

// ComputeAvgCost blends a purchase of qty units for cost into an existing
// average. When the resulting holding is not positive the previous average
// is kept, so a zero-quantity buy never divides by zero.
func ComputeAvgCost(prevAvg, held, cost, qty Decimal) (Decimal, error) {
	newHeld := held.Add(qty)
	if !newHeld.IsPositive() {
		return prevAvg, nil
	}
	return prevAvg.Mul(held).Add(cost).Div(newHeld)
}

// ComputeRealizedPnL values a sale of qty units at avgCost against its proceeds.
func ComputeRealizedPnL(proceeds, avgCost, qty Decimal) Decimal {
	return proceeds.Sub(avgCost.Mul(qty))
}

// ComputeUnrealizedPnL marks a holding to price.
func ComputeUnrealizedPnL(price, avgCost, held Decimal) Decimal {
	return price.Mul(held).Sub(avgCost.Mul(held))
}

// ComputePrice returns eth/tok. ok is false when tok is not positive.
func ComputePrice(eth, tok Decimal) (price Decimal, ok bool, err error) {
	if !tok.IsPositive() {
		return Decimal{}, false, nil
	}
	price, err = eth.Div(tok)
	if err != nil {
		return Decimal{}, false, err
	}
	return price, true, nil
}
