// Package pnl derives capital and total return figures from an adjusted
// lot and an externally supplied market price. Stateless pure functions;
// all arithmetic is exact decimal.
package pnl

import (
	"github.com/shopspring/decimal"

	"alpaca-tracker/internal/errors"
	"alpaca-tracker/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Breakdown is the full P&L decomposition for one position.
type Breakdown struct {
	Symbol           string          `json:"symbol"`
	CurrentPrice     decimal.Decimal `json:"current_price"`
	MarketValue      decimal.Decimal `json:"market_value"`
	OriginalCost     decimal.Decimal `json:"original_cost"`
	AdjustedCost     decimal.Decimal `json:"adjusted_cost"`
	CapitalPnL       decimal.Decimal `json:"capital_pnl"`
	DividendIncome   decimal.Decimal `json:"dividend_income"`
	TotalPnL         decimal.Decimal `json:"total_pnl"`
	TotalReturnPct   decimal.Decimal `json:"total_return_pct"`
	CapitalReturnPct decimal.Decimal `json:"capital_return_pct"`
	DividendYieldPct decimal.Decimal `json:"dividend_yield_pct"`
}

// Calculate derives the P&L breakdown for an adjusted lot.
//
// The total return percentage uses the original, pre-adjustment investment
// as denominator so returns stay comparable across split events. A zero
// original investment makes the return undefined and is reported as an
// error, never a silent zero.
func Calculate(adj models.AdjustedLot, originalQty, originalBasis, currentPrice decimal.Decimal) (Breakdown, error) {
	return FromOriginalCost(adj, originalQty.Mul(originalBasis), currentPrice)
}

// FromOriginalCost is Calculate with the original investment already
// aggregated, for portfolio-level figures spanning several lots.
func FromOriginalCost(adj models.AdjustedLot, originalCost, currentPrice decimal.Decimal) (Breakdown, error) {
	if !currentPrice.IsPositive() {
		return Breakdown{}, errors.NewTradeError(adj.Symbol, "", "current price must be positive")
	}

	if !originalCost.IsPositive() {
		return Breakdown{}, errors.Wrapf(errors.ErrUndefinedReturn, "symbol %s", adj.Symbol)
	}

	adjustedCost := adj.TotalCost()
	marketValue := adj.Quantity.Mul(currentPrice)
	capital := marketValue.Sub(adjustedCost)
	total := capital.Add(adj.DividendIncome)

	b := Breakdown{
		Symbol:         adj.Symbol,
		CurrentPrice:   currentPrice,
		MarketValue:    marketValue,
		OriginalCost:   originalCost,
		AdjustedCost:   adjustedCost,
		CapitalPnL:     capital,
		DividendIncome: adj.DividendIncome,
		TotalPnL:       total,
		TotalReturnPct: total.Div(originalCost).Mul(hundred),
	}
	// Secondary metrics mirror the primary guard but degrade to zero:
	// a fully returned capital basis is legitimate, not an error.
	if adjustedCost.IsPositive() {
		b.CapitalReturnPct = capital.Div(adjustedCost).Mul(hundred)
	}
	b.DividendYieldPct = adj.DividendIncome.Div(originalCost).Mul(hundred)
	return b, nil
}

// CapitalPnL returns (current price - adjusted basis) x adjusted quantity.
func CapitalPnL(adj models.AdjustedLot, currentPrice decimal.Decimal) decimal.Decimal {
	return currentPrice.Sub(adj.CostBasis).Mul(adj.Quantity)
}

// TotalPnL returns the capital P&L plus accumulated dividend income.
func TotalPnL(adj models.AdjustedLot, currentPrice decimal.Decimal) decimal.Decimal {
	return CapitalPnL(adj, currentPrice).Add(adj.DividendIncome)
}
