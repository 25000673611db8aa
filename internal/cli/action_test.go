package cli

import (
	"testing"
	"time"

	"alpaca-tracker/internal/models"
)

func TestParseRatio(t *testing.T) {
	num, den, err := parseRatio("4:1")
	if err != nil {
		t.Fatalf("parseRatio failed: %v", err)
	}
	if num != 4 || den != 1 {
		t.Errorf("parsed %d:%d, want 4:1", num, den)
	}

	if _, _, err := parseRatio("four to one"); err == nil {
		t.Error("garbage ratio accepted")
	}
	if _, _, err := parseRatio(""); err == nil {
		t.Error("empty ratio accepted")
	}
}

func TestActionAddReturnOfCapitalDefault(t *testing.T) {
	app := newTestApp()
	app.Config.Tracking.ReturnOfCapitalDefault = true

	cmd := newActionAddCmd(app)
	flag := cmd.Flags().Lookup("return-of-capital")
	if flag == nil {
		t.Fatal("return-of-capital flag missing")
	}
	if flag.DefValue != "true" {
		t.Errorf("flag default = %s, want the configured policy (true)", flag.DefValue)
	}

	app.Config.Tracking.ReturnOfCapitalDefault = false
	flag = newActionAddCmd(app).Flags().Lookup("return-of-capital")
	if flag.DefValue != "false" {
		t.Errorf("flag default = %s, want false", flag.DefValue)
	}
}

func TestBuildAction(t *testing.T) {
	exDate := time.Date(2020, time.August, 31, 0, 0, 0, 0, time.UTC)

	a, err := buildAction("AAPL", models.ActionStockSplit, "4:1", "", time.Time{}, exDate, false)
	if err != nil {
		t.Fatalf("buildAction split failed: %v", err)
	}
	if a.RatioNum != 4 || a.RatioDen != 1 {
		t.Errorf("ratio = %d:%d, want 4:1", a.RatioNum, a.RatioDen)
	}

	d, err := buildAction("AAPL", models.ActionCashDividend, "", "0.24", time.Time{}, exDate, false)
	if err != nil {
		t.Fatalf("buildAction dividend failed: %v", err)
	}
	if d.CashAmount.String() != "0.24" {
		t.Errorf("amount = %s, want 0.24", d.CashAmount)
	}

	s, err := buildAction("MSFT", models.ActionSpecialDividend, "", "3", time.Time{}, exDate, true)
	if err != nil {
		t.Fatalf("buildAction special failed: %v", err)
	}
	if !s.ReturnOfCapital {
		t.Error("return-of-capital flag dropped")
	}

	if _, err := buildAction("AAPL", "merger", "", "", time.Time{}, exDate, false); err == nil {
		t.Error("unknown action type accepted")
	}
	if _, err := buildAction("AAPL", models.ActionStockSplit, "bad", "", time.Time{}, exDate, false); err == nil {
		t.Error("bad ratio accepted")
	}
	if _, err := buildAction("AAPL", models.ActionCashDividend, "", "lots", time.Time{}, exDate, false); err == nil {
		t.Error("bad amount accepted")
	}
}
