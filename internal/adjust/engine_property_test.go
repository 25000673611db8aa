package adjust

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"

	"alpaca-tracker/internal/models"
)

// tolerance absorbs the fixed-precision rounding of non-terminating
// divisions (e.g. a 3:1 split basis).
var tolerance = decimal.New(1, -8)

func propLot(qty, basis int64) models.Lot {
	return models.Lot{
		ID:                "lot-prop",
		Symbol:            "TEST",
		AcquisitionDate:   time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC),
		OriginalQuantity:  decimal.NewFromInt(qty),
		OriginalCostBasis: decimal.NewFromInt(basis),
		OpenQuantity:      decimal.NewFromInt(qty),
	}
}

func propSplit(num, den int64, day int, seq uint64) models.CorporateAction {
	typ := models.ActionStockSplit
	if num < den {
		typ = models.ActionReverseSplit
	}
	return models.CorporateAction{
		ID:       "TEST-split-" + decimal.NewFromInt(int64(seq)).String(),
		Symbol:   "TEST",
		Type:     typ,
		ExDate:   time.Date(2020, time.June, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day),
		RatioNum: num,
		RatioDen: den,
		Sequence: seq,
	}
}

// Property: replay is idempotent. Replay always starts from the lot's
// recorded figures, so applying the same action history twice yields the
// same result as applying it once.
func TestProperty_ReplayIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	properties := gopter.NewProperties(parameters)

	properties.Property("applying the same history twice equals applying it once", prop.ForAll(
		func(qty, basis, num int64) bool {
			lot := propLot(qty, basis)
			actions := []models.CorporateAction{propSplit(num, 1, 0, 1)}

			first, err := Apply(lot, actions, Options{})
			if err != nil {
				t.Logf("first apply failed: %v", err)
				return false
			}
			second, err := Apply(lot, actions, Options{})
			if err != nil {
				t.Logf("second apply failed: %v", err)
				return false
			}
			return first.Quantity.Equal(second.Quantity) &&
				first.CostBasis.Equal(second.CostBasis) &&
				first.DividendIncome.Equal(second.DividendIncome)
		},
		gen.Int64Range(1, 10000),
		gen.Int64Range(1, 5000),
		gen.Int64Range(2, 20),
	))

	properties.TestingRun(t)
}

// Property: a forward split conserves total cost. Quantity times per-share
// basis is invariant up to division rounding.
func TestProperty_SplitConservesTotalCost(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	properties := gopter.NewProperties(parameters)

	properties.Property("quantity x basis is invariant under a forward split", prop.ForAll(
		func(qty, basis, num, den int64) bool {
			if num <= den {
				num = den + num // force a forward ratio
			}
			lot := propLot(qty, basis)
			before := lot.OpenQuantity.Mul(lot.OriginalCostBasis)

			adj, err := Apply(lot, []models.CorporateAction{propSplit(num, den, 0, 1)}, Options{})
			if err != nil {
				t.Logf("apply failed: %v", err)
				return false
			}
			diff := adj.TotalCost().Sub(before).Abs()
			if diff.GreaterThan(tolerance.Mul(before)) {
				t.Logf("total cost drifted: before=%s after=%s", before, adj.TotalCost())
				return false
			}
			return true
		},
		gen.Int64Range(1, 10000),
		gen.Int64Range(1, 5000),
		gen.Int64Range(2, 20),
		gen.Int64Range(1, 10),
	))

	properties.TestingRun(t)
}

// Property: insertion order does not matter. The engine replays in
// canonical (ex-date, sequence) order regardless of slice order.
func TestProperty_InsertionOrderIndependent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	properties := gopter.NewProperties(parameters)

	properties.Property("shuffled action slice produces the canonical result", prop.ForAll(
		func(qty, basis, numA, numB int64) bool {
			lot := propLot(qty, basis)
			a := propSplit(numA, 1, 0, 1)
			b := propSplit(numB, 1, 30, 2)

			canonical, err := Apply(lot, []models.CorporateAction{a, b}, Options{})
			if err != nil {
				t.Logf("canonical apply failed: %v", err)
				return false
			}
			reversed, err := Apply(lot, []models.CorporateAction{b, a}, Options{})
			if err != nil {
				t.Logf("reversed apply failed: %v", err)
				return false
			}
			return canonical.Quantity.Equal(reversed.Quantity) &&
				canonical.CostBasis.Equal(reversed.CostBasis)
		},
		gen.Int64Range(1, 10000),
		gen.Int64Range(1, 5000),
		gen.Int64Range(2, 20),
		gen.Int64Range(2, 20),
	))

	properties.TestingRun(t)
}

// Property: sequential forward splits compose multiplicatively. Applying
// n1:1 then n2:1 equals applying (n1*n2):1 once.
func TestProperty_SplitsCompose(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	properties := gopter.NewProperties(parameters)

	properties.Property("sequential splits equal the combined ratio", prop.ForAll(
		func(qty, basis, n1, n2 int64) bool {
			lot := propLot(qty, basis)
			sequential := []models.CorporateAction{
				propSplit(n1, 1, 0, 1),
				propSplit(n2, 1, 30, 2),
			}
			combined := []models.CorporateAction{propSplit(n1*n2, 1, 30, 1)}

			seq, err := Apply(lot, sequential, Options{})
			if err != nil {
				t.Logf("sequential apply failed: %v", err)
				return false
			}
			comb, err := Apply(lot, combined, Options{})
			if err != nil {
				t.Logf("combined apply failed: %v", err)
				return false
			}
			if !seq.Quantity.Equal(comb.Quantity) {
				t.Logf("quantity mismatch: %s vs %s", seq.Quantity, comb.Quantity)
				return false
			}
			if seq.CostBasis.Sub(comb.CostBasis).Abs().GreaterThan(tolerance) {
				t.Logf("basis mismatch: %s vs %s", seq.CostBasis, comb.CostBasis)
				return false
			}
			return true
		},
		gen.Int64Range(1, 10000),
		gen.Int64Range(1, 5000),
		gen.Int64Range(2, 10),
		gen.Int64Range(2, 10),
	))

	properties.TestingRun(t)
}
