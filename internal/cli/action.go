package cli

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"alpaca-tracker/internal/models"
	"alpaca-tracker/internal/registry"
)

const dateLayout = "2006-01-02"

// addActionCommands registers corporate-action management commands.
func addActionCommands(rootCmd *cobra.Command, app *App) {
	actionCmd := &cobra.Command{
		Use:   "action",
		Short: "Corporate action management",
	}

	actionCmd.AddCommand(newActionAddCmd(app))
	actionCmd.AddCommand(newActionListCmd(app))
	actionCmd.AddCommand(newActionReverseCmd(app))

	rootCmd.AddCommand(actionCmd)
}

func newActionAddCmd(app *App) *cobra.Command {
	var (
		actionType      string
		ratio           string
		amount          string
		exDate          string
		announced       string
		returnOfCapital bool
		notes           string
	)

	cmd := &cobra.Command{
		Use:   "add SYMBOL",
		Short: "Record a corporate action",
		Long: `Record a corporate action for a symbol.

Splits and stock dividends take a --ratio in new:old form, e.g. a 4:1
forward split is --ratio 4:1 and a 1-for-10 reverse split is --ratio 1:10.
Cash and special dividends take a per-share --amount.

Examples:
  tracker action add AAPL --type stock_split --ratio 4:1 --ex-date 2020-08-31
  tracker action add AAPL --type cash_dividend --amount 0.24 --ex-date 2022-11-04
  tracker action add MSFT --type special_dividend --amount 3.00 --ex-date 2004-11-15 --return-of-capital`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			symbol := args[0]

			ex, err := time.Parse(dateLayout, exDate)
			if err != nil {
				return fmt.Errorf("invalid --ex-date %q: use YYYY-MM-DD", exDate)
			}
			var ann time.Time
			if announced != "" {
				ann, err = time.Parse(dateLayout, announced)
				if err != nil {
					return fmt.Errorf("invalid --announced %q: use YYYY-MM-DD", announced)
				}
			}

			action, err := buildAction(symbol, models.ActionType(actionType), ratio, amount, ann, ex, returnOfCapital)
			if err != nil {
				return err
			}
			action.Notes = notes

			id, err := app.Tracker.RegisterAction(cmd.Context(), action)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(action)
			}
			output.Success("Corporate action recorded: %s", id)
			printAction(output, *action)
			return nil
		},
	}

	cmd.Flags().StringVar(&actionType, "type", "", "action type: stock_split, reverse_split, cash_dividend, special_dividend, stock_dividend")
	cmd.Flags().StringVar(&ratio, "ratio", "", "split ratio as new:old, e.g. 4:1")
	cmd.Flags().StringVar(&amount, "amount", "", "per-share cash amount, e.g. 0.24")
	cmd.Flags().StringVar(&exDate, "ex-date", "", "ex-date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&announced, "announced", "", "announcement date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&returnOfCapital, "return-of-capital", app.Config.Tracking.ReturnOfCapitalDefault,
		"special dividend reduces cost basis")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form note")
	cmd.MarkFlagRequired("type")
	cmd.MarkFlagRequired("ex-date")

	return cmd
}

// buildAction dispatches to the typed constructors.
func buildAction(symbol string, actionType models.ActionType, ratio, amount string, announced, exDate time.Time, roc bool) (*models.CorporateAction, error) {
	switch actionType {
	case models.ActionStockSplit, models.ActionReverseSplit, models.ActionStockDividend:
		num, den, err := parseRatio(ratio)
		if err != nil {
			return nil, err
		}
		switch actionType {
		case models.ActionStockSplit:
			return models.NewStockSplit(symbol, announced, exDate, num, den)
		case models.ActionReverseSplit:
			return models.NewReverseSplit(symbol, announced, exDate, num, den)
		default:
			return models.NewStockDividend(symbol, announced, exDate, num, den)
		}
	case models.ActionCashDividend, models.ActionSpecialDividend:
		amt, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("invalid --amount %q", amount)
		}
		if actionType == models.ActionCashDividend {
			return models.NewCashDividend(symbol, announced, exDate, amt)
		}
		return models.NewSpecialDividend(symbol, announced, exDate, amt, roc)
	default:
		return nil, fmt.Errorf("unknown action type %q", actionType)
	}
}

// parseRatio parses "new:old" into its integer parts.
func parseRatio(s string) (int64, int64, error) {
	var num, den int64
	if _, err := fmt.Sscanf(s, "%d:%d", &num, &den); err != nil {
		return 0, 0, fmt.Errorf("invalid --ratio %q: use new:old, e.g. 4:1", s)
	}
	return num, den, nil
}

func newActionListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list [SYMBOL]",
		Short: "List recorded corporate actions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			var actions []models.CorporateAction
			if len(args) == 1 {
				actions = app.Registry.ActionsFor(args[0])
			} else {
				actions = app.Registry.All()
			}

			if output.IsJSON() {
				return output.JSON(actions)
			}
			if len(actions) == 0 {
				output.Info("No corporate actions recorded")
				return nil
			}
			for _, a := range actions {
				printAction(output, a)
			}
			return nil
		},
	}
}

func newActionReverseCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reverse ACTION_ID",
		Short: "Record the inverse of a ratio action",
		Long: `Recorded actions are immutable. A mistaken split or stock dividend is
corrected by recording its inverse, which cancels the effect on replay.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			original, err := app.Registry.Get(args[0])
			if err != nil {
				return err
			}
			inverse, err := registry.Inverse(original)
			if err != nil {
				return err
			}
			id, err := app.Tracker.RegisterAction(cmd.Context(), inverse)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(inverse)
			}
			output.Success("Reversal recorded: %s", id)
			printAction(output, *inverse)
			return nil
		},
	}
}

func printAction(output *Output, a models.CorporateAction) {
	detail := ""
	switch {
	case a.Type.IsRatioType():
		detail = fmt.Sprintf("%d:%d", a.RatioNum, a.RatioDen)
	case a.Type.IsCashType():
		detail = "$" + a.CashAmount.String() + "/share"
		if a.ReturnOfCapital {
			detail += " (return of capital)"
		}
	}
	output.Printf("  %-36s %-16s %-14s ex %s\n", a.ID, a.Type, detail, a.ExDate.Format(dateLayout))
	if a.Notes != "" {
		output.Dim("    %s", a.Notes)
	}
}
