package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"alpaca-tracker/internal/config"
	"alpaca-tracker/internal/models"
	"alpaca-tracker/internal/registry"
	"alpaca-tracker/internal/tracker"
)

func newTestApp() *App {
	reg := registry.New()
	return &App{
		Config:   config.Default(),
		Registry: reg,
		Tracker:  tracker.New(reg),
	}
}

func TestPositionShowRoundsHalfEven(t *testing.T) {
	app := newTestApp()

	qty, _ := decimal.NewFromString("0.1234565")
	_, err := app.Tracker.RecordTrade(context.Background(), "XYZ", models.OrderSideBuy,
		qty, decimal.NewFromInt(1), time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("buy failed: %v", err)
	}

	cmd := newPositionShowCmd(app)
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs([]string{"XYZ"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("position show failed: %v", err)
	}

	out := buf.String()
	// Half-to-even at six digits: the trailing 5 rounds toward the even 6,
	// not away from zero.
	if !strings.Contains(out, "0.123456") {
		t.Errorf("output missing banker's-rounded quantity:\n%s", out)
	}
	if strings.Contains(out, "0.123457") {
		t.Errorf("quantity rounded half away from zero:\n%s", out)
	}
}
