package cli

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"alpaca-tracker/internal/models"
	"alpaca-tracker/pkg/utils"
)

// addTradeCommands registers trade recording commands.
func addTradeCommands(rootCmd *cobra.Command, app *App) {
	tradeCmd := &cobra.Command{
		Use:   "trade",
		Short: "Trade recording",
	}

	tradeCmd.AddCommand(newTradeSideCmd(app, models.OrderSideBuy))
	tradeCmd.AddCommand(newTradeSideCmd(app, models.OrderSideSell))
	tradeCmd.AddCommand(newTradeListCmd(app))

	rootCmd.AddCommand(tradeCmd)
}

func newTradeSideCmd(app *App, side models.OrderSide) *cobra.Command {
	var at string

	use := "buy"
	short := "Record a buy execution, opening a new lot"
	if side == models.OrderSideSell {
		use = "sell"
		short = "Record a sell execution, consuming open lots FIFO"
	}

	cmd := &cobra.Command{
		Use:   use + " SYMBOL QUANTITY PRICE",
		Short: short,
		Long: short + `.

Sell quantities are expressed in current, post-adjustment share terms:
after a 4:1 split of a 100-share lot, selling 400 closes the lot.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			symbol := args[0]

			quantity, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid quantity %q", args[1])
			}
			price, err := decimal.NewFromString(args[2])
			if err != nil {
				return fmt.Errorf("invalid price %q", args[2])
			}

			var ts time.Time
			if at != "" {
				ts, err = time.Parse(dateLayout, at)
				if err != nil {
					return fmt.Errorf("invalid --at %q: use YYYY-MM-DD", at)
				}
			}

			tradeID, err := app.Tracker.RecordTrade(cmd.Context(), symbol, side, quantity, price, ts)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]string{
					"trade_id": tradeID,
					"symbol":   symbol,
					"side":     string(side),
					"quantity": quantity.String(),
					"price":    price.String(),
				})
			}
			output.Success("%s %s %s @ %s", side, utils.FormatQuantity(quantity), symbol, utils.FormatUSD(price))
			output.Dim("Trade ID: %s", tradeID)
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "execution date (YYYY-MM-DD), default now")
	return cmd
}

func newTradeListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list [SYMBOL]",
		Short: "List the trade event log",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			trades := app.Tracker.Trades()
			if len(args) == 1 {
				filtered := trades[:0]
				for _, tr := range trades {
					if tr.Symbol == args[0] {
						filtered = append(filtered, tr)
					}
				}
				trades = filtered
			}

			if output.IsJSON() {
				return output.JSON(trades)
			}
			if len(trades) == 0 {
				output.Info("No trades recorded")
				return nil
			}
			for _, tr := range trades {
				output.Printf("  %s  %-4s %-6s %12s @ %s\n",
					tr.Timestamp.Format(dateLayout), tr.Side, tr.Symbol,
					utils.FormatQuantity(tr.Quantity), utils.FormatUSD(tr.Price))
			}
			return nil
		},
	}
}
