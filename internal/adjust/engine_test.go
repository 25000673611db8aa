package adjust

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"alpaca-tracker/internal/errors"
	"alpaca-tracker/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testLot(qty, basis string, acquired time.Time) models.Lot {
	return models.Lot{
		ID:                "lot-1",
		Symbol:            "AAPL",
		AcquisitionDate:   acquired,
		OriginalQuantity:  dec(qty),
		OriginalCostBasis: dec(basis),
		OpenQuantity:      dec(qty),
	}
}

func split(symbol string, exDate time.Time, num, den int64, seq uint64) models.CorporateAction {
	typ := models.ActionStockSplit
	if num < den {
		typ = models.ActionReverseSplit
	}
	return models.CorporateAction{
		ID:       symbol + "-split",
		Symbol:   symbol,
		Type:     typ,
		ExDate:   exDate,
		RatioNum: num,
		RatioDen: den,
		Sequence: seq,
	}
}

func dividend(symbol string, exDate time.Time, amount string, seq uint64) models.CorporateAction {
	return models.CorporateAction{
		ID:         symbol + "-div",
		Symbol:     symbol,
		Type:       models.ActionCashDividend,
		ExDate:     exDate,
		CashAmount: dec(amount),
		Sequence:   seq,
	}
}

func TestApplyStockSplit(t *testing.T) {
	lot := testLot("100", "400", date(2020, time.January, 15))
	actions := []models.CorporateAction{
		split("AAPL", date(2020, time.August, 31), 4, 1, 1),
	}

	adj, err := Apply(lot, actions, Options{})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if !adj.Quantity.Equal(dec("400")) {
		t.Errorf("quantity = %s, want 400", adj.Quantity)
	}
	if !adj.CostBasis.Equal(dec("100")) {
		t.Errorf("cost basis = %s, want 100", adj.CostBasis)
	}
	if !adj.TotalCost().Equal(dec("40000")) {
		t.Errorf("total cost = %s, want 40000 (invariant under split)", adj.TotalCost())
	}
	if len(adj.AppliedActionIDs) != 1 {
		t.Errorf("applied %d actions, want 1", len(adj.AppliedActionIDs))
	}
}

func TestApplyDividendAfterSplit(t *testing.T) {
	lot := testLot("100", "400", date(2020, time.January, 15))
	actions := []models.CorporateAction{
		split("AAPL", date(2020, time.August, 31), 4, 1, 1),
		dividend("AAPL", date(2022, time.November, 4), "0.24", 2),
	}

	adj, err := Apply(lot, actions, Options{})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	// Dividend accrues on the 400 shares held as of its ex-date.
	if !adj.DividendIncome.Equal(dec("96")) {
		t.Errorf("dividend income = %s, want 96", adj.DividendIncome)
	}
	if !adj.CostBasis.Equal(dec("100")) {
		t.Errorf("cost basis = %s, want 100 (ordinary dividend leaves basis)", adj.CostBasis)
	}
}

func TestSequentialSplitsCompose(t *testing.T) {
	lot := testLot("100", "400", date(2020, time.January, 15))
	sequential := []models.CorporateAction{
		split("AAPL", date(2020, time.June, 1), 5, 1, 1),
		split("AAPL", date(2021, time.June, 1), 3, 1, 2),
	}
	combined := []models.CorporateAction{
		split("AAPL", date(2021, time.June, 1), 15, 1, 1),
	}

	seq, err := Apply(lot, sequential, Options{})
	if err != nil {
		t.Fatalf("Apply sequential failed: %v", err)
	}
	comb, err := Apply(lot, combined, Options{})
	if err != nil {
		t.Fatalf("Apply combined failed: %v", err)
	}

	if !seq.Quantity.Equal(comb.Quantity) {
		t.Errorf("quantity %s != %s", seq.Quantity, comb.Quantity)
	}
	if seq.CostBasis.Sub(comb.CostBasis).Abs().GreaterThan(dec("0.0000000001")) {
		t.Errorf("cost basis %s != %s", seq.CostBasis, comb.CostBasis)
	}
}

func TestActionBeforeAcquisitionSkipped(t *testing.T) {
	lot := testLot("100", "400", date(2021, time.January, 15))
	actions := []models.CorporateAction{
		split("AAPL", date(2020, time.August, 31), 4, 1, 1),
	}

	adj, err := Apply(lot, actions, Options{})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if !adj.Quantity.Equal(dec("100")) {
		t.Errorf("quantity = %s, want 100 (position did not exist at ex-date)", adj.Quantity)
	}
	if len(adj.AppliedActionIDs) != 0 {
		t.Errorf("applied %d actions, want 0", len(adj.AppliedActionIDs))
	}
}

func TestAsOfBoundsReplay(t *testing.T) {
	lot := testLot("100", "400", date(2020, time.January, 15))
	actions := []models.CorporateAction{
		split("AAPL", date(2020, time.August, 31), 4, 1, 1),
		dividend("AAPL", date(2022, time.November, 4), "0.24", 2),
	}

	adj, err := Apply(lot, actions, Options{AsOf: date(2021, time.January, 1)})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if !adj.Quantity.Equal(dec("400")) {
		t.Errorf("quantity = %s, want 400", adj.Quantity)
	}
	if !adj.DividendIncome.IsZero() {
		t.Errorf("dividend income = %s, want 0 (not yet effective)", adj.DividendIncome)
	}
}

func TestReverseSplitCashInLieu(t *testing.T) {
	lot := testLot("105", "10", date(2020, time.January, 15))
	actions := []models.CorporateAction{
		split("XYZ", date(2020, time.June, 1), 1, 10, 1),
	}
	lot.Symbol = "XYZ"

	adj, err := Apply(lot, actions, Options{})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	// 105 shares 1:10 leaves 10.5; the half share settles as cash at the
	// post-split basis of $100.
	if !adj.Quantity.Equal(dec("10")) {
		t.Errorf("quantity = %s, want 10", adj.Quantity)
	}
	if !adj.CostBasis.Equal(dec("100")) {
		t.Errorf("cost basis = %s, want 100", adj.CostBasis)
	}
	if !adj.CashInLieu.Equal(dec("50")) {
		t.Errorf("cash in lieu = %s, want 50", adj.CashInLieu)
	}
	if !adj.DividendIncome.Equal(dec("50")) {
		t.Errorf("dividend income = %s, want 50 (cash in lieu settles as income)", adj.DividendIncome)
	}
}

func TestStockDividend(t *testing.T) {
	lot := testLot("100", "400", date(2020, time.January, 15))
	actions := []models.CorporateAction{
		{
			ID:       "AAPL-stockdiv",
			Symbol:   "AAPL",
			Type:     models.ActionStockDividend,
			ExDate:   date(2020, time.June, 1),
			RatioNum: 21,
			RatioDen: 20,
			Sequence: 1,
		},
	}

	adj, err := Apply(lot, actions, Options{})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if !adj.Quantity.Equal(dec("105")) {
		t.Errorf("quantity = %s, want 105 (5%% stock dividend)", adj.Quantity)
	}
	if adj.TotalCost().Sub(dec("40000")).Abs().GreaterThan(dec("0.0000000001")) {
		t.Errorf("total cost = %s, want 40000", adj.TotalCost())
	}
}

func TestSpecialDividendReturnOfCapital(t *testing.T) {
	lot := testLot("100", "400", date(2020, time.January, 15))
	actions := []models.CorporateAction{
		{
			ID:              "AAPL-special",
			Symbol:          "AAPL",
			Type:            models.ActionSpecialDividend,
			ExDate:          date(2020, time.June, 1),
			CashAmount:      dec("3"),
			ReturnOfCapital: true,
			Sequence:        1,
		},
	}

	adj, err := Apply(lot, actions, Options{})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if !adj.DividendIncome.Equal(dec("300")) {
		t.Errorf("dividend income = %s, want 300", adj.DividendIncome)
	}
	if !adj.CostBasis.Equal(dec("397")) {
		t.Errorf("cost basis = %s, want 397 (reduced by return of capital)", adj.CostBasis)
	}
}

func TestReturnOfCapitalFloorsBasisAtZero(t *testing.T) {
	lot := testLot("100", "2", date(2020, time.January, 15))
	actions := []models.CorporateAction{
		{
			ID:              "AAPL-special",
			Symbol:          "AAPL",
			Type:            models.ActionSpecialDividend,
			ExDate:          date(2020, time.June, 1),
			CashAmount:      dec("5"),
			ReturnOfCapital: true,
			Sequence:        1,
		},
	}

	adj, err := Apply(lot, actions, Options{})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if !adj.CostBasis.IsZero() {
		t.Errorf("cost basis = %s, want 0 (floored)", adj.CostBasis)
	}
}

func TestSpecialDividendWithoutFlagLeavesBasis(t *testing.T) {
	lot := testLot("100", "400", date(2020, time.January, 15))
	actions := []models.CorporateAction{
		{
			ID:         "AAPL-special",
			Symbol:     "AAPL",
			Type:       models.ActionSpecialDividend,
			ExDate:     date(2020, time.June, 1),
			CashAmount: dec("3"),
			Sequence:   1,
		},
	}

	adj, err := Apply(lot, actions, Options{})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if !adj.CostBasis.Equal(dec("400")) {
		t.Errorf("cost basis = %s, want 400 (untouched without return-of-capital flag)", adj.CostBasis)
	}
}

func TestStrictRejectsOutOfOrder(t *testing.T) {
	lot := testLot("100", "400", date(2020, time.January, 15))
	actions := []models.CorporateAction{
		dividend("AAPL", date(2022, time.November, 4), "0.24", 2),
		split("AAPL", date(2020, time.August, 31), 4, 1, 1),
	}

	_, err := Apply(lot, actions, Options{Strict: true})
	if !errors.Is(err, errors.ErrOutOfOrderReplay) {
		t.Fatalf("err = %v, want ErrOutOfOrderReplay", err)
	}
}

func TestDefensiveResortMatchesCanonical(t *testing.T) {
	lot := testLot("100", "400", date(2020, time.January, 15))
	canonical := []models.CorporateAction{
		split("AAPL", date(2020, time.August, 31), 4, 1, 1),
		dividend("AAPL", date(2022, time.November, 4), "0.24", 2),
	}
	shuffled := []models.CorporateAction{canonical[1], canonical[0]}

	want, err := Apply(lot, canonical, Options{})
	if err != nil {
		t.Fatalf("Apply canonical failed: %v", err)
	}
	got, err := Apply(lot, shuffled, Options{})
	if err != nil {
		t.Fatalf("Apply shuffled failed: %v", err)
	}

	if !got.Quantity.Equal(want.Quantity) || !got.CostBasis.Equal(want.CostBasis) ||
		!got.DividendIncome.Equal(want.DividendIncome) {
		t.Errorf("shuffled result %+v != canonical %+v", got, want)
	}
	// Caller's slice must not be reordered.
	if !shuffled[0].Type.IsCashType() {
		t.Error("defensive re-sort mutated the caller's slice")
	}
}

func TestSymbolMismatchRejected(t *testing.T) {
	lot := testLot("100", "400", date(2020, time.January, 15))
	actions := []models.CorporateAction{
		split("MSFT", date(2020, time.August, 31), 4, 1, 1),
	}

	_, err := Apply(lot, actions, Options{})
	if !errors.Is(err, errors.ErrInvalidAction) {
		t.Fatalf("err = %v, want ErrInvalidAction", err)
	}
}

func TestMalformedActionRejected(t *testing.T) {
	lot := testLot("100", "400", date(2020, time.January, 15))
	actions := []models.CorporateAction{
		{
			ID:       "AAPL-bad",
			Symbol:   "AAPL",
			Type:     models.ActionStockSplit,
			ExDate:   date(2020, time.August, 31),
			RatioNum: 1,
			RatioDen: 4, // decreases share count, not a forward split
			Sequence: 1,
		},
	}

	_, err := Apply(lot, actions, Options{})
	if !errors.Is(err, errors.ErrInvalidAction) {
		t.Fatalf("err = %v, want ErrInvalidAction", err)
	}
}

func TestSameExDateTieBreakBySequence(t *testing.T) {
	lot := testLot("100", "400", date(2020, time.January, 15))
	exDate := date(2020, time.June, 1)
	// Split recorded first, dividend second, same ex-date: the dividend
	// must see the post-split quantity.
	actions := []models.CorporateAction{
		split("AAPL", exDate, 4, 1, 1),
		dividend("AAPL", exDate, "1", 2),
	}

	adj, err := Apply(lot, actions, Options{})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if !adj.DividendIncome.Equal(dec("400")) {
		t.Errorf("dividend income = %s, want 400 (accrues after same-day split)", adj.DividendIncome)
	}
}

func TestRoundDisplayBankers(t *testing.T) {
	cases := []struct {
		in     string
		digits int32
		want   string
	}{
		{"2.5", 0, "2"},
		{"3.5", 0, "4"},
		{"0.125", 2, "0.12"},
		{"0.135", 2, "0.14"},
	}
	for _, c := range cases {
		got := RoundDisplay(dec(c.in), c.digits)
		if !got.Equal(dec(c.want)) {
			t.Errorf("RoundDisplay(%s, %d) = %s, want %s", c.in, c.digits, got, c.want)
		}
	}
}
