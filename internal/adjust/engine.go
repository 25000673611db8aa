// Package adjust implements the corporate-action adjustment engine.
//
// The engine is a pure function over a lot and its applicable action
// history: it replays splits, reverse splits, stock dividends and cash
// dividends in canonical (ex-date, sequence) order and produces the
// adjusted quantity, per-share cost basis and accumulated dividend income.
// Replay always starts from the lot's recorded figures, never from a
// previous adjustment, so applying the same action set twice yields the
// same output as applying it once.
package adjust

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"alpaca-tracker/internal/errors"
	"alpaca-tracker/internal/models"
)

// Options controls replay behavior.
type Options struct {
	// AsOf bounds the replay: actions with a later ex-date are not yet
	// effective. Zero means no bound.
	AsOf time.Time
	// Strict rejects an out-of-order action sequence with
	// ErrOutOfOrderReplay instead of re-sorting it. The default policy is
	// the defensive re-sort.
	Strict bool
}

// Apply replays all applicable actions over the lot and returns the
// adjusted result. Actions whose ex-date precedes the lot's acquisition
// date are skipped: the position did not exist yet.
func Apply(lot models.Lot, actions []models.CorporateAction, opts Options) (models.AdjustedLot, error) {
	result := models.AdjustedLot{
		LotID:          lot.ID,
		Symbol:         lot.Symbol,
		Quantity:       lot.OpenQuantity,
		CostBasis:      lot.OriginalCostBasis,
		DividendIncome: decimal.Zero,
		CashInLieu:     decimal.Zero,
	}

	if lot.OpenQuantity.IsNegative() {
		return models.AdjustedLot{}, errors.NewTradeError(lot.Symbol, "", "lot open quantity is negative")
	}

	ordered, err := canonicalize(actions, opts.Strict)
	if err != nil {
		return models.AdjustedLot{}, err
	}

	for i := range ordered {
		a := &ordered[i]
		// Malformed actions should never get past the registry; the
		// engine re-validates anyway.
		if err := a.Validate(); err != nil {
			return models.AdjustedLot{}, err
		}
		if a.Symbol != lot.Symbol {
			return models.AdjustedLot{}, errors.NewActionError(a.Symbol, string(a.Type), "action symbol does not match lot")
		}
		if a.ExDate.Before(lot.AcquisitionDate) {
			continue
		}
		if !opts.AsOf.IsZero() && !a.EffectiveOn(opts.AsOf) {
			continue
		}

		switch {
		case a.Type.IsRatioType():
			applySplit(&result, a)
		case a.Type.IsCashType():
			applyDividend(&result, a)
		}
		result.AppliedActionIDs = append(result.AppliedActionIDs, a.ID)
	}

	return result, nil
}

// applySplit multiplies quantity by the ratio and divides the per-share
// basis by it, keeping total cost invariant up to rounding. A reverse
// split that leaves a fractional share settles the remainder as
// cash-in-lieu at the post-split basis and floors the quantity.
func applySplit(r *models.AdjustedLot, a *models.CorporateAction) {
	num := decimal.NewFromInt(a.RatioNum)
	den := decimal.NewFromInt(a.RatioDen)

	r.Quantity = r.Quantity.Mul(num).Div(den)
	r.CostBasis = r.CostBasis.Mul(den).Div(num)

	if a.Type == models.ActionReverseSplit {
		whole := r.Quantity.Floor()
		fraction := r.Quantity.Sub(whole)
		if fraction.IsPositive() {
			inLieu := fraction.Mul(r.CostBasis)
			r.CashInLieu = r.CashInLieu.Add(inLieu)
			r.DividendIncome = r.DividendIncome.Add(inLieu)
			r.Quantity = whole
		}
	}
}

// applyDividend accrues cash income on the quantity held as of the
// ex-date. Ordinary cash dividends leave the basis untouched; a special
// dividend flagged as return of capital reduces it, floored at zero.
func applyDividend(r *models.AdjustedLot, a *models.CorporateAction) {
	r.DividendIncome = r.DividendIncome.Add(a.CashAmount.Mul(r.Quantity))

	if a.Type == models.ActionSpecialDividend && a.ReturnOfCapital {
		r.CostBasis = r.CostBasis.Sub(a.CashAmount)
		if r.CostBasis.IsNegative() {
			r.CostBasis = decimal.Zero
		}
	}
}

// canonicalize returns the actions in canonical (ex-date, sequence) order.
// In strict mode an unsorted input is rejected; otherwise it is re-sorted
// defensively without mutating the caller's slice.
func canonicalize(actions []models.CorporateAction, strict bool) ([]models.CorporateAction, error) {
	if isCanonical(actions) {
		return actions, nil
	}
	if strict {
		return nil, errors.ErrOutOfOrderReplay
	}
	ordered := make([]models.CorporateAction, len(actions))
	copy(ordered, actions)
	sort.SliceStable(ordered, func(i, j int) bool {
		return less(&ordered[i], &ordered[j])
	})
	return ordered, nil
}

func isCanonical(actions []models.CorporateAction) bool {
	for i := 1; i < len(actions); i++ {
		if less(&actions[i], &actions[i-1]) {
			return false
		}
	}
	return true
}

func less(a, b *models.CorporateAction) bool {
	if a.ExDate.Equal(b.ExDate) {
		return a.Sequence < b.Sequence
	}
	return a.ExDate.Before(b.ExDate)
}

// RoundDisplay rounds a full-precision value for display using banker's
// rounding (round half to even).
func RoundDisplay(d decimal.Decimal, digits int32) decimal.Decimal {
	return d.RoundBank(digits)
}
