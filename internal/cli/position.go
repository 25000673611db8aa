package cli

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"alpaca-tracker/internal/adjust"
	"alpaca-tracker/internal/broker"
	"alpaca-tracker/pkg/utils"
)

// addPositionCommands registers position and portfolio query commands.
func addPositionCommands(rootCmd *cobra.Command, app *App) {
	positionCmd := &cobra.Command{
		Use:   "position",
		Short: "Adjusted position views",
	}
	positionCmd.AddCommand(newPositionShowCmd(app))
	positionCmd.AddCommand(newPositionReconcileCmd(app))
	rootCmd.AddCommand(positionCmd)

	portfolioCmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Portfolio-level figures",
	}
	portfolioCmd.AddCommand(newPortfolioSummaryCmd(app))
	rootCmd.AddCommand(portfolioCmd)
}

func newPositionShowCmd(app *App) *cobra.Command {
	var price string

	cmd := &cobra.Command{
		Use:   "show SYMBOL",
		Short: "Show the adjusted position for a symbol",
		Long: `Show the adjusted position for a symbol: quantity, per-share cost basis
and dividend income after replaying all applicable corporate actions.

With --price the full P&L breakdown is included.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			symbol := args[0]

			view, err := app.Tracker.Position(cmd.Context(), symbol)
			if err != nil {
				return err
			}

			digits := app.Config.Tracking.DisplayDigits

			if price == "" {
				if output.IsJSON() {
					return output.JSON(view)
				}
				output.Bold("%s", symbol)
				output.Printf("  Quantity:        %s\n", utils.FormatQuantity(adjust.RoundDisplay(view.Quantity, digits)))
				output.Printf("  Cost basis:      %s\n", utils.FormatUSD(view.CostBasis))
				output.Printf("  Total cost:      %s\n", utils.FormatUSD(view.TotalCost))
				output.Printf("  Dividend income: %s\n", utils.FormatUSD(view.DividendIncome))
				output.Printf("  Realized P&L:    %s\n", utils.FormatPnL(view.RealizedPnL))
				output.Printf("  Open lots:       %d\n", view.OpenLots)
				output.Printf("  Actions applied: %d\n", view.ActionsApplied)
				if !view.FirstAcquired.IsZero() {
					output.Dim("  First acquired:  %s", view.FirstAcquired.Format(dateLayout))
				}
				return nil
			}

			p, err := decimal.NewFromString(price)
			if err != nil {
				return fmt.Errorf("invalid --price %q", price)
			}
			breakdown, err := app.Tracker.Breakdown(cmd.Context(), symbol, p)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(breakdown)
			}
			output.Bold("%s @ %s", symbol, utils.FormatUSD(p))
			output.Printf("  Quantity:        %s\n", utils.FormatQuantity(adjust.RoundDisplay(view.Quantity, digits)))
			output.Printf("  Market value:    %s\n", utils.FormatUSD(breakdown.MarketValue))
			output.Printf("  Original cost:   %s\n", utils.FormatUSD(breakdown.OriginalCost))
			output.Printf("  Adjusted cost:   %s\n", utils.FormatUSD(breakdown.AdjustedCost))
			output.Printf("  Capital P&L:     %s\n", utils.FormatPnL(breakdown.CapitalPnL))
			output.Printf("  Dividend income: %s\n", utils.FormatUSD(breakdown.DividendIncome))
			output.Printf("  Total P&L:       %s\n", utils.FormatPnL(breakdown.TotalPnL))
			output.Printf("  Total return:    %s\n", utils.FormatPercent(adjust.RoundDisplay(breakdown.TotalReturnPct, 2)))
			return nil
		},
	}

	cmd.Flags().StringVar(&price, "price", "", "current market price for the P&L breakdown")
	return cmd
}

func newPositionReconcileCmd(app *App) *cobra.Command {
	var brokerQty string

	cmd := &cobra.Command{
		Use:   "reconcile SYMBOL",
		Short: "Compare tracked quantity against the broker's figure",
		Long: `Compare the tracked adjusted quantity against the broker-reported one.
The broker figure validates the tracked state; it never overwrites it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			symbol := args[0]

			qty, err := decimal.NewFromString(brokerQty)
			if err != nil {
				return fmt.Errorf("invalid --broker-qty %q", brokerQty)
			}
			authority := broker.NewStaticSource()
			authority.SetQuantity(symbol, qty)

			report, err := app.Tracker.Reconcile(cmd.Context(), symbol, authority)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(report)
			}
			output.Printf("  Tracked:  %s\n", utils.FormatQuantity(report.TrackedQty))
			output.Printf("  Broker:   %s\n", utils.FormatQuantity(report.AuthoritiveQty))
			output.Printf("  Drift:    %s\n", report.Drift.String())
			if report.WithinTolerance {
				output.Success("Within tolerance")
			} else {
				output.Warning("Drift exceeds tolerance, investigate the event log")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&brokerQty, "broker-qty", "", "broker-reported quantity")
	cmd.MarkFlagRequired("broker-qty")
	return cmd
}

func newPortfolioSummaryCmd(app *App) *cobra.Command {
	var priceArgs []string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Aggregate adjusted metrics across all symbols",
		Long: `Aggregate adjusted metrics across all symbols. Market prices are supplied
externally with repeated --price SYMBOL=PRICE flags; symbols without a
price are listed without market value or P&L.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			prices := make(map[string]decimal.Decimal, len(priceArgs))
			for _, pa := range priceArgs {
				parts := strings.SplitN(pa, "=", 2)
				if len(parts) != 2 {
					return fmt.Errorf("invalid --price %q: use SYMBOL=PRICE", pa)
				}
				p, err := decimal.NewFromString(parts[1])
				if err != nil {
					return fmt.Errorf("invalid price in %q", pa)
				}
				prices[parts[0]] = p
			}

			summary, err := app.Tracker.PortfolioSummary(cmd.Context(), prices)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(summary)
			}
			if len(summary.Positions) == 0 {
				output.Info("No open positions")
				return nil
			}

			output.Bold("%-8s %14s %12s %14s %14s %10s", "SYMBOL", "QTY", "BASIS", "VALUE", "TOTAL P&L", "RETURN")
			for _, row := range summary.Positions {
				ret := ""
				value := ""
				pnlStr := ""
				if row.CurrentPrice.IsPositive() {
					ret = utils.FormatPercent(adjust.RoundDisplay(row.TotalReturnPct, 2))
					value = utils.FormatUSD(row.MarketValue)
					pnlStr = utils.FormatPnL(row.TotalPnL)
				}
				output.Printf("%-8s %14s %12s %14s %14s %10s\n",
					row.Symbol,
					utils.FormatQuantity(row.Quantity),
					utils.FormatUSD(row.CostBasis),
					value, pnlStr, ret)
			}
			output.Println()
			output.Printf("  Total cost:      %s\n", utils.FormatUSD(summary.TotalCost))
			output.Printf("  Total value:     %s\n", utils.FormatUSD(summary.TotalValue))
			output.Printf("  Total dividends: %s\n", utils.FormatUSD(summary.TotalDividends))
			output.Printf("  Unrealized P&L:  %s\n", utils.FormatPnL(summary.TotalPnL))
			output.Printf("  Realized P&L:    %s\n", utils.FormatPnL(summary.TotalRealized))
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&priceArgs, "price", nil, "market price as SYMBOL=PRICE, repeatable")
	return cmd
}
