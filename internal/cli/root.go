package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"alpaca-tracker/internal/config"
	"alpaca-tracker/internal/logging"
	"alpaca-tracker/internal/registry"
	"alpaca-tracker/internal/store"
	"alpaca-tracker/internal/tracker"

	"github.com/shopspring/decimal"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-06-01"
)

// App holds the application dependencies.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Registry *registry.Registry
	Store    store.DataStore
	Tracker  *tracker.Tracker
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: registry.New(),
	}

	opts := []tracker.Option{tracker.WithLogger(logger)}
	if tol, err := decimal.NewFromString(cfg.Tracking.ReconcileTolerance); err == nil {
		opts = append(opts, tracker.WithReconcileTolerance(tol))
	}

	dataStore, err := store.NewSQLiteStore(cfg.Store.DBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize store, state will not persist")
	} else {
		app.Store = dataStore
		opts = append(opts, tracker.WithStore(dataStore))
	}

	app.Tracker = tracker.New(app.Registry, opts...)

	rootCmd := &cobra.Command{
		Use:   "tracker",
		Short: "Position and P&L tracker with corporate-action adjustment",
		Long: `Tracker keeps holdings and realized/unrealized performance numerically
correct across stock splits, reverse splits and dividend events.

Trades and corporate actions enter an append-only event log; adjusted
quantities, cost bases and dividend income are replayed deterministically
on demand.

Use 'tracker help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			if app.Store != nil {
				return app.Tracker.LoadFromStore(cmd.Context())
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/alpaca-tracker)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	addActionCommands(rootCmd, app)
	addTradeCommands(rootCmd, app)
	addPositionCommands(rootCmd, app)
	addSnapshotCommands(rootCmd, app)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("Tracker v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			output.Bold("Tracking")
			output.Printf("  Display digits:     %d\n", app.Config.Tracking.DisplayDigits)
			output.Printf("  RoC default:        %v\n", app.Config.Tracking.ReturnOfCapitalDefault)
			output.Printf("  Reconcile tol:      %s\n", app.Config.Tracking.ReconcileTolerance)
			output.Bold("Store")
			output.Printf("  Database:           %s\n", app.Config.Store.DBPath)
			output.Printf("  Snapshot:           %s\n", app.Config.Store.SnapshotPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	return cmd
}
