package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestConstructors(t *testing.T) {
	exDate := date(2020, time.August, 31)

	split, err := NewStockSplit("AAPL", time.Time{}, exDate, 4, 1)
	if err != nil {
		t.Fatalf("NewStockSplit failed: %v", err)
	}
	if split.RatioNum != 4 || split.RatioDen != 1 {
		t.Errorf("split ratio = %d:%d, want 4:1", split.RatioNum, split.RatioDen)
	}

	reverse, err := NewReverseSplit("XYZ", time.Time{}, exDate, 1, 10)
	if err != nil {
		t.Fatalf("NewReverseSplit failed: %v", err)
	}
	if reverse.RatioNum != 1 || reverse.RatioDen != 10 {
		t.Errorf("reverse ratio = %d:%d, want 1:10", reverse.RatioNum, reverse.RatioDen)
	}

	div, err := NewCashDividend("AAPL", time.Time{}, exDate, decimal.NewFromFloat(0.24))
	if err != nil {
		t.Fatalf("NewCashDividend failed: %v", err)
	}
	if !div.Type.IsCashType() {
		t.Error("cash dividend not a cash type")
	}

	special, err := NewSpecialDividend("MSFT", time.Time{}, exDate, decimal.NewFromInt(3), true)
	if err != nil {
		t.Fatalf("NewSpecialDividend failed: %v", err)
	}
	if !special.ReturnOfCapital {
		t.Error("return-of-capital flag lost")
	}

	stockDiv, err := NewStockDividend("AAPL", time.Time{}, exDate, 21, 20)
	if err != nil {
		t.Fatalf("NewStockDividend failed: %v", err)
	}
	if !stockDiv.Type.IsRatioType() {
		t.Error("stock dividend not a ratio type")
	}
}

func TestConstructorsReject(t *testing.T) {
	exDate := date(2020, time.August, 31)

	if _, err := NewStockSplit("AAPL", time.Time{}, exDate, 1, 4); err == nil {
		t.Error("forward split accepted with decreasing ratio")
	}
	if _, err := NewReverseSplit("AAPL", time.Time{}, exDate, 4, 1); err == nil {
		t.Error("reverse split accepted with increasing ratio")
	}
	if _, err := NewCashDividend("AAPL", time.Time{}, exDate, decimal.Zero); err == nil {
		t.Error("zero dividend accepted")
	}
	if _, err := NewCashDividend("AAPL", time.Time{}, exDate, decimal.NewFromInt(-1)); err == nil {
		t.Error("negative dividend accepted")
	}
	if _, err := NewStockSplit("", time.Time{}, exDate, 4, 1); err == nil {
		t.Error("empty symbol accepted")
	}
	if _, err := NewStockSplit("AAPL", date(2021, time.January, 1), date(2020, time.January, 1), 4, 1); err == nil {
		t.Error("ex-date before announcement accepted")
	}
}

func TestEffectiveOn(t *testing.T) {
	a, err := NewStockSplit("AAPL", time.Time{}, date(2020, time.August, 31), 4, 1)
	if err != nil {
		t.Fatalf("NewStockSplit failed: %v", err)
	}

	if a.EffectiveOn(date(2020, time.August, 30)) {
		t.Error("effective before ex-date")
	}
	if !a.EffectiveOn(date(2020, time.August, 31)) {
		t.Error("not effective on ex-date")
	}
	if !a.EffectiveOn(date(2021, time.January, 1)) {
		t.Error("not effective after ex-date")
	}
}
