package models

import (
	"time"

	"github.com/shopspring/decimal"

	"alpaca-tracker/internal/errors"
)

// NewStockSplit constructs a forward split action (e.g. 4:1 means quantity
// multiplies by four and per-share basis divides by four).
func NewStockSplit(symbol string, announced, exDate time.Time, num, den int64) (*CorporateAction, error) {
	a := &CorporateAction{
		Symbol:           symbol,
		Type:             ActionStockSplit,
		AnnouncementDate: announced,
		ExDate:           exDate,
		RatioNum:         num,
		RatioDen:         den,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// NewReverseSplit constructs a reverse split action (e.g. 1:10).
func NewReverseSplit(symbol string, announced, exDate time.Time, num, den int64) (*CorporateAction, error) {
	a := &CorporateAction{
		Symbol:           symbol,
		Type:             ActionReverseSplit,
		AnnouncementDate: announced,
		ExDate:           exDate,
		RatioNum:         num,
		RatioDen:         den,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// NewCashDividend constructs an ordinary cash dividend action.
func NewCashDividend(symbol string, announced, exDate time.Time, amount decimal.Decimal) (*CorporateAction, error) {
	a := &CorporateAction{
		Symbol:           symbol,
		Type:             ActionCashDividend,
		AnnouncementDate: announced,
		ExDate:           exDate,
		CashAmount:       amount,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// NewSpecialDividend constructs a special dividend action. When
// returnOfCapital is set, the engine reduces the cost basis by the cash
// amount instead of leaving it untouched.
func NewSpecialDividend(symbol string, announced, exDate time.Time, amount decimal.Decimal, returnOfCapital bool) (*CorporateAction, error) {
	a := &CorporateAction{
		Symbol:           symbol,
		Type:             ActionSpecialDividend,
		AnnouncementDate: announced,
		ExDate:           exDate,
		CashAmount:       amount,
		ReturnOfCapital:  returnOfCapital,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// NewStockDividend constructs a stock dividend action. A rate of 5% is
// expressed as the ratio 21:20, i.e. (1 + rate):1 scaled to integers.
func NewStockDividend(symbol string, announced, exDate time.Time, num, den int64) (*CorporateAction, error) {
	a := &CorporateAction{
		Symbol:           symbol,
		Type:             ActionStockDividend,
		AnnouncementDate: announced,
		ExDate:           exDate,
		RatioNum:         num,
		RatioDen:         den,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Validate checks the per-variant field invariant: exactly one of the ratio
// pair or the cash amount is populated, matching the declared type, and the
// ex-date does not precede the announcement date.
func (a *CorporateAction) Validate() error {
	if a.Symbol == "" {
		return errors.NewActionError(a.Symbol, string(a.Type), "symbol is required")
	}
	if !a.Type.Valid() {
		return errors.NewActionError(a.Symbol, string(a.Type), "unknown action type")
	}
	if a.ExDate.IsZero() {
		return errors.NewActionError(a.Symbol, string(a.Type), "ex-date is required")
	}
	if !a.AnnouncementDate.IsZero() && a.ExDate.Before(a.AnnouncementDate) {
		return errors.NewActionError(a.Symbol, string(a.Type), "ex-date precedes announcement date")
	}

	switch {
	case a.Type.IsRatioType():
		if a.RatioNum <= 0 || a.RatioDen <= 0 {
			return errors.NewActionError(a.Symbol, string(a.Type), "ratio numerator and denominator must be positive")
		}
		if !a.CashAmount.IsZero() {
			return errors.NewActionError(a.Symbol, string(a.Type), "cash amount must not be set on a ratio action")
		}
		switch a.Type {
		case ActionStockSplit, ActionStockDividend:
			if a.RatioNum <= a.RatioDen {
				return errors.NewActionError(a.Symbol, string(a.Type), "ratio must increase share count")
			}
		case ActionReverseSplit:
			if a.RatioNum >= a.RatioDen {
				return errors.NewActionError(a.Symbol, string(a.Type), "ratio must decrease share count")
			}
		}
	case a.Type.IsCashType():
		if a.RatioNum != 0 || a.RatioDen != 0 {
			return errors.NewActionError(a.Symbol, string(a.Type), "ratio must not be set on a cash action")
		}
		if !a.CashAmount.IsPositive() {
			return errors.NewActionError(a.Symbol, string(a.Type), "cash amount must be positive")
		}
	}
	return nil
}
