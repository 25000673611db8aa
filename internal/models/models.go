// Package models provides domain models for position tracking and
// corporate-action adjustment.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ActionType represents the type of a corporate action.
type ActionType string

const (
	ActionStockSplit      ActionType = "stock_split"
	ActionReverseSplit    ActionType = "reverse_split"
	ActionCashDividend    ActionType = "cash_dividend"
	ActionSpecialDividend ActionType = "special_dividend"
	ActionStockDividend   ActionType = "stock_dividend"
)

// IsRatioType returns true for action types that carry a split ratio.
func (t ActionType) IsRatioType() bool {
	switch t {
	case ActionStockSplit, ActionReverseSplit, ActionStockDividend:
		return true
	}
	return false
}

// IsCashType returns true for action types that carry a per-share cash amount.
func (t ActionType) IsCashType() bool {
	switch t {
	case ActionCashDividend, ActionSpecialDividend:
		return true
	}
	return false
}

// Valid returns true if the action type is a known variant.
func (t ActionType) Valid() bool {
	return t.IsRatioType() || t.IsCashType()
}

// OrderSide represents the side of a trade.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// CorporateAction represents a single corporate action event. Exactly one of
// the ratio pair or the cash amount is populated, matching the type. Actions
// are immutable once recorded; corrections are issued as inverse actions.
type CorporateAction struct {
	ID               string          `json:"id"`
	Symbol           string          `json:"symbol"`
	Type             ActionType      `json:"type"`
	AnnouncementDate time.Time       `json:"announcement_date"`
	ExDate           time.Time       `json:"ex_date"`
	RecordDate       time.Time       `json:"record_date,omitempty"`
	PaymentDate      time.Time       `json:"payment_date,omitempty"`
	RatioNum         int64           `json:"ratio_num,omitempty"`
	RatioDen         int64           `json:"ratio_den,omitempty"`
	CashAmount       decimal.Decimal `json:"cash_amount"`
	ReturnOfCapital  bool            `json:"return_of_capital,omitempty"`
	Sequence         uint64          `json:"sequence"`
	Notes            string          `json:"notes,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// EffectiveOn reports whether the action has taken effect on the given date.
func (a *CorporateAction) EffectiveOn(date time.Time) bool {
	return !a.ExDate.After(date)
}

// Lot represents a discrete unit of ownership originating from one trade.
// OpenQuantity is kept in original (pre-adjustment) share units so that
// every derived figure stays recomputable from the event log.
type Lot struct {
	ID                string          `json:"id" csv:"id"`
	Symbol            string          `json:"symbol" csv:"symbol"`
	AcquisitionDate   time.Time       `json:"acquisition_date" csv:"-"`
	OriginalQuantity  decimal.Decimal `json:"original_quantity" csv:"original_quantity"`
	OriginalCostBasis decimal.Decimal `json:"original_cost_basis" csv:"original_cost_basis"`
	OpenQuantity      decimal.Decimal `json:"open_quantity" csv:"open_quantity"`
	TradeID           string          `json:"trade_id" csv:"trade_id"`
	Closed            bool            `json:"closed" csv:"closed"`
	ClosedAt          time.Time       `json:"closed_at,omitempty" csv:"-"`
	// AppliedActionIDs is the audit record of the last replay: which
	// actions were folded in and in what order. Derived, recomputed by the
	// tracker, never hand-edited.
	AppliedActionIDs []string `json:"applied_action_ids,omitempty" csv:"-"`
}

// AdjustedLot is the result of replaying a lot's applicable corporate actions.
// Derived data, never hand-edited and never persisted directly.
type AdjustedLot struct {
	LotID            string          `json:"lot_id"`
	Symbol           string          `json:"symbol"`
	Quantity         decimal.Decimal `json:"quantity"`
	CostBasis        decimal.Decimal `json:"cost_basis"`
	DividendIncome   decimal.Decimal `json:"dividend_income"`
	CashInLieu       decimal.Decimal `json:"cash_in_lieu"`
	AppliedActionIDs []string        `json:"applied_action_ids"`
}

// TotalCost returns quantity times per-share cost basis.
func (l *AdjustedLot) TotalCost() decimal.Decimal {
	return l.Quantity.Mul(l.CostBasis)
}

// TradeEvent represents one execution in the append-only trade log.
type TradeEvent struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Side      OrderSide       `json:"side"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
	OrderID   string          `json:"order_id,omitempty"`
}

// PositionView is the adjusted view of a symbol's open lots.
type PositionView struct {
	Symbol         string          `json:"symbol"`
	Quantity       decimal.Decimal `json:"quantity"`
	CostBasis      decimal.Decimal `json:"cost_basis"`
	TotalCost      decimal.Decimal `json:"total_cost"`
	DividendIncome decimal.Decimal `json:"dividend_income"`
	RealizedPnL    decimal.Decimal `json:"realized_pnl"`
	OpenLots       int             `json:"open_lots"`
	ActionsApplied int             `json:"actions_applied"`
	FirstAcquired  time.Time       `json:"first_acquired,omitempty"`
	OriginalCost   decimal.Decimal `json:"original_cost"`
}

// SymbolSummary is one row of a portfolio summary.
type SymbolSummary struct {
	Symbol         string          `json:"symbol"`
	Quantity       decimal.Decimal `json:"quantity"`
	CostBasis      decimal.Decimal `json:"cost_basis"`
	CurrentPrice   decimal.Decimal `json:"current_price"`
	MarketValue    decimal.Decimal `json:"market_value"`
	DividendIncome decimal.Decimal `json:"dividend_income"`
	CapitalPnL     decimal.Decimal `json:"capital_pnl"`
	TotalPnL       decimal.Decimal `json:"total_pnl"`
	TotalReturnPct decimal.Decimal `json:"total_return_pct"`
}

// PortfolioSummary aggregates adjusted metrics across all open lots.
type PortfolioSummary struct {
	Positions      []SymbolSummary `json:"positions"`
	TotalValue     decimal.Decimal `json:"total_value"`
	TotalCost      decimal.Decimal `json:"total_cost"`
	TotalDividends decimal.Decimal `json:"total_dividends"`
	TotalPnL       decimal.Decimal `json:"total_pnl"`
	TotalRealized  decimal.Decimal `json:"total_realized"`
	GeneratedAt    time.Time       `json:"generated_at"`
}
