// Package tracker owns the set of lots per symbol and drives the
// adjustment engine and P&L calculator over them.
//
// All mutation is append-only at the event level: trades and corporate
// actions enter the log, derived figures (adjusted quantities, cost bases,
// dividend income, realized P&L) are cache-like and recomputed lazily when
// a symbol is marked stale. Mutations for a symbol are serialized through
// a per-symbol critical section; operations on different symbols proceed
// concurrently. Snapshot export/import takes exclusive access to the full
// state for its duration.
package tracker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"alpaca-tracker/internal/adjust"
	"alpaca-tracker/internal/broker"
	"alpaca-tracker/internal/errors"
	"alpaca-tracker/internal/logging"
	"alpaca-tracker/internal/models"
	"alpaca-tracker/internal/pnl"
	"alpaca-tracker/internal/registry"
	"alpaca-tracker/internal/store"
)

// Tracker records trades and corporate actions and serves adjusted
// position and portfolio views.
type Tracker struct {
	registry *registry.Registry
	store    store.DataStore
	logger   zerolog.Logger

	tolerance decimal.Decimal

	// global excludes snapshot export/import from all per-symbol work;
	// symbol-scoped operations hold it for read.
	global  sync.RWMutex
	symbols *keyedMutex

	// mu guards the maps below. Lot slice contents are owned by the
	// holder of the corresponding symbol lock.
	mu       sync.RWMutex
	lots     map[string][]*models.Lot
	trades   []models.TradeEvent
	realized map[string]decimal.Decimal
	stale    map[string]bool
	cache    map[string]models.PositionView
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithStore attaches a persistence gateway; every recorded trade, action
// and lot update is written through.
func WithStore(ds store.DataStore) Option {
	return func(t *Tracker) { t.store = ds }
}

// WithLogger attaches a logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// WithReconcileTolerance sets the acceptable quantity drift for Reconcile.
func WithReconcileTolerance(tol decimal.Decimal) Option {
	return func(t *Tracker) { t.tolerance = tol }
}

// New creates a tracker over the given action registry.
func New(reg *registry.Registry, opts ...Option) *Tracker {
	t := &Tracker{
		registry:  reg,
		logger:    zerolog.Nop(),
		tolerance: decimal.New(1, -6),
		symbols:   newKeyedMutex(),
		lots:      make(map[string][]*models.Lot),
		realized:  make(map[string]decimal.Decimal),
		stale:     make(map[string]bool),
		cache:     make(map[string]models.PositionView),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RecordTrade records a buy or sell execution. A buy opens a new lot; a
// sell consumes open lots first-in-first-out in current (adjusted) share
// terms. The call is all-or-nothing: a rejected trade leaves no partial
// state behind.
func (t *Tracker) RecordTrade(ctx context.Context, symbol string, side models.OrderSide, quantity, price decimal.Decimal, ts time.Time) (string, error) {
	if symbol == "" {
		return "", errors.NewTradeError(symbol, string(side), "symbol is required")
	}
	if !quantity.IsPositive() {
		return "", errors.NewTradeError(symbol, string(side), "quantity must be positive")
	}
	if !price.IsPositive() {
		return "", errors.NewTradeError(symbol, string(side), "price must be positive")
	}
	if side != models.OrderSideBuy && side != models.OrderSideSell {
		return "", errors.NewTradeError(symbol, string(side), "unknown side")
	}
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	t.global.RLock()
	defer t.global.RUnlock()
	t.symbols.Lock(symbol)
	defer t.symbols.Unlock(symbol)

	trade := models.TradeEvent{
		ID:        ulid.Make().String(),
		Symbol:    symbol,
		Side:      side,
		Quantity:  quantity,
		Price:     price,
		Timestamp: ts,
	}

	var touched []*models.Lot
	switch side {
	case models.OrderSideBuy:
		lot := &models.Lot{
			ID:                ulid.Make().String(),
			Symbol:            symbol,
			AcquisitionDate:   ts,
			OriginalQuantity:  quantity,
			OriginalCostBasis: price,
			OpenQuantity:      quantity,
			TradeID:           trade.ID,
		}
		t.mu.Lock()
		t.lots[symbol] = append(t.lots[symbol], lot)
		sortLots(t.lots[symbol])
		t.mu.Unlock()
		touched = append(touched, lot)

	case models.OrderSideSell:
		t.mu.RLock()
		open := openLots(t.lots[symbol])
		t.mu.RUnlock()

		actions := t.registry.ActionsFor(symbol)
		gain, changed, err := consumeFIFO(open, actions, quantity, price, ts)
		if err != nil {
			return "", err
		}
		t.mu.Lock()
		t.realized[symbol] = t.realized[symbol].Add(gain)
		t.mu.Unlock()
		touched = changed
	}

	t.mu.Lock()
	t.trades = append(t.trades, trade)
	t.stale[symbol] = true
	t.mu.Unlock()

	if t.store != nil {
		if err := t.store.SaveTrade(ctx, &trade); err != nil {
			return "", errors.Wrap(err, "persisting trade")
		}
		for _, lot := range touched {
			if err := t.store.SaveLot(ctx, lot); err != nil {
				return "", errors.Wrap(err, "persisting lot")
			}
		}
	}

	logging.LogTrade(logging.WithSymbol(t.logger, symbol), trade.ID, symbol,
		string(side), quantity.String(), price.String())
	return trade.ID, nil
}

// RegisterAction forwards the action to the registry and marks the
// symbol's lots stale so the next query recomputes.
func (t *Tracker) RegisterAction(ctx context.Context, action *models.CorporateAction) (string, error) {
	t.global.RLock()
	defer t.global.RUnlock()
	if action == nil {
		return "", errors.NewActionError("", "", "nil action")
	}
	t.symbols.Lock(action.Symbol)
	defer t.symbols.Unlock(action.Symbol)

	id, err := t.registry.Add(action)
	if err != nil {
		return "", err
	}

	t.mu.Lock()
	t.stale[action.Symbol] = true
	t.mu.Unlock()

	if t.store != nil {
		if err := t.store.SaveAction(ctx, action); err != nil {
			return "", errors.Wrap(err, "persisting action")
		}
	}

	logging.LogAction(t.logger, id, action.Symbol, string(action.Type), action.ExDate)
	return id, nil
}

// Position returns the adjusted view of a symbol, recomputing it if a
// trade or action arrived since the last query.
func (t *Tracker) Position(ctx context.Context, symbol string) (models.PositionView, error) {
	t.global.RLock()
	defer t.global.RUnlock()
	t.symbols.Lock(symbol)
	defer t.symbols.Unlock(symbol)
	return t.positionLocked(ctx, symbol)
}

// positionLocked computes or serves the cached position view. Caller must
// hold the symbol lock.
func (t *Tracker) positionLocked(ctx context.Context, symbol string) (models.PositionView, error) {
	t.mu.RLock()
	lots := t.lots[symbol]
	isStale := t.stale[symbol]
	view, cached := t.cache[symbol]
	realized := t.realized[symbol]
	t.mu.RUnlock()

	if len(lots) == 0 {
		return models.PositionView{}, errors.Wrapf(errors.ErrPositionNotFound, "symbol %s", symbol)
	}
	if cached && !isStale {
		return view, nil
	}

	actions := t.registry.ActionsFor(symbol)

	view = models.PositionView{Symbol: symbol, RealizedPnL: realized}
	totalCost := decimal.Zero
	applied := make(map[string]struct{})
	var persist []*models.Lot

	for _, lot := range lots {
		if lot.Closed {
			continue
		}
		adj, err := adjust.Apply(*lot, actions, adjust.Options{})
		if err != nil {
			return models.PositionView{}, err
		}
		lot.AppliedActionIDs = adj.AppliedActionIDs
		persist = append(persist, lot)

		view.Quantity = view.Quantity.Add(adj.Quantity)
		totalCost = totalCost.Add(adj.TotalCost())
		view.DividendIncome = view.DividendIncome.Add(adj.DividendIncome)
		view.OriginalCost = view.OriginalCost.Add(lot.OpenQuantity.Mul(lot.OriginalCostBasis))
		view.OpenLots++
		for _, id := range adj.AppliedActionIDs {
			applied[id] = struct{}{}
		}
		if view.FirstAcquired.IsZero() || lot.AcquisitionDate.Before(view.FirstAcquired) {
			view.FirstAcquired = lot.AcquisitionDate
		}
	}

	view.TotalCost = totalCost
	if view.Quantity.IsPositive() {
		view.CostBasis = totalCost.Div(view.Quantity)
	}
	view.ActionsApplied = len(applied)

	t.mu.Lock()
	t.cache[symbol] = view
	t.stale[symbol] = false
	t.mu.Unlock()

	if t.store != nil {
		for _, lot := range persist {
			if err := t.store.SaveLot(ctx, lot); err != nil {
				return models.PositionView{}, errors.Wrap(err, "persisting lot audit")
			}
		}
	}
	return view, nil
}

// Breakdown returns the human-readable P&L decomposition for one symbol at
// the supplied market price.
func (t *Tracker) Breakdown(ctx context.Context, symbol string, currentPrice decimal.Decimal) (pnl.Breakdown, error) {
	view, err := t.Position(ctx, symbol)
	if err != nil {
		return pnl.Breakdown{}, err
	}
	agg := models.AdjustedLot{
		Symbol:         symbol,
		Quantity:       view.Quantity,
		CostBasis:      view.CostBasis,
		DividendIncome: view.DividendIncome,
	}
	return pnl.FromOriginalCost(agg, view.OriginalCost, currentPrice)
}

// PortfolioSummary aggregates adjusted metrics across all symbols using
// the externally supplied current prices. Symbols without a price are
// included with zero market value and no P&L figures.
func (t *Tracker) PortfolioSummary(ctx context.Context, prices map[string]decimal.Decimal) (models.PortfolioSummary, error) {
	t.mu.RLock()
	symbols := make([]string, 0, len(t.lots))
	for s := range t.lots {
		symbols = append(symbols, s)
	}
	t.mu.RUnlock()
	sort.Strings(symbols)

	summary := models.PortfolioSummary{GeneratedAt: time.Now().UTC()}
	for _, symbol := range symbols {
		view, err := t.Position(ctx, symbol)
		if err != nil {
			if errors.Is(err, errors.ErrPositionNotFound) {
				continue
			}
			return models.PortfolioSummary{}, err
		}
		summary.TotalRealized = summary.TotalRealized.Add(view.RealizedPnL)
		summary.TotalDividends = summary.TotalDividends.Add(view.DividendIncome)
		if !view.Quantity.IsPositive() {
			continue
		}

		row := models.SymbolSummary{
			Symbol:         symbol,
			Quantity:       view.Quantity,
			CostBasis:      view.CostBasis,
			DividendIncome: view.DividendIncome,
		}
		if price, ok := prices[symbol]; ok {
			agg := models.AdjustedLot{
				Symbol:         symbol,
				Quantity:       view.Quantity,
				CostBasis:      view.CostBasis,
				DividendIncome: view.DividendIncome,
			}
			b, err := pnl.FromOriginalCost(agg, view.OriginalCost, price)
			if err != nil {
				return models.PortfolioSummary{}, err
			}
			row.CurrentPrice = price
			row.MarketValue = b.MarketValue
			row.CapitalPnL = b.CapitalPnL
			row.TotalPnL = b.TotalPnL
			row.TotalReturnPct = b.TotalReturnPct
			summary.TotalValue = summary.TotalValue.Add(b.MarketValue)
			summary.TotalPnL = summary.TotalPnL.Add(b.TotalPnL)
		}
		summary.TotalCost = summary.TotalCost.Add(view.TotalCost)
		summary.Positions = append(summary.Positions, row)
	}
	return summary, nil
}

// ReconcileReport compares the tracked quantity against the broker's.
type ReconcileReport struct {
	Symbol          string          `json:"symbol"`
	TrackedQty      decimal.Decimal `json:"tracked_qty"`
	AuthoritiveQty  decimal.Decimal `json:"authoritative_qty"`
	Drift           decimal.Decimal `json:"drift"`
	WithinTolerance bool            `json:"within_tolerance"`
}

// Reconcile validates the tracked adjusted quantity against the broker's
// authoritative figure. The broker number is used only for validation,
// never to overwrite tracked state.
func (t *Tracker) Reconcile(ctx context.Context, symbol string, authority broker.PositionAuthority) (ReconcileReport, error) {
	view, err := t.Position(ctx, symbol)
	if err != nil {
		return ReconcileReport{}, err
	}
	authQty, err := authority.GetQuantity(ctx, symbol)
	if err != nil {
		return ReconcileReport{}, err
	}
	drift := view.Quantity.Sub(authQty)
	return ReconcileReport{
		Symbol:          symbol,
		TrackedQty:      view.Quantity,
		AuthoritiveQty:  authQty,
		Drift:           drift,
		WithinTolerance: drift.Abs().LessThanOrEqual(t.tolerance),
	}, nil
}

// Trades returns a copy of the trade event log, oldest first.
func (t *Tracker) Trades() []models.TradeEvent {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]models.TradeEvent, len(t.trades))
	copy(out, t.trades)
	return out
}

// Lots returns a copy of every lot across symbols, symbols sorted
// alphabetically, lots in FIFO order within a symbol. Lot contents are
// owned by the symbol-lock holders, so the copy excludes all per-symbol
// work for its duration, like snapshot export.
func (t *Tracker) Lots() []models.Lot {
	t.global.Lock()
	defer t.global.Unlock()

	t.mu.RLock()
	defer t.mu.RUnlock()

	symbols := make([]string, 0, len(t.lots))
	for s := range t.lots {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	var out []models.Lot
	for _, s := range symbols {
		for _, lot := range t.lots[s] {
			out = append(out, *lot)
		}
	}
	return out
}

// sortLots keeps a symbol's lots in FIFO order.
func sortLots(lots []*models.Lot) {
	sort.SliceStable(lots, func(i, j int) bool {
		if lots[i].AcquisitionDate.Equal(lots[j].AcquisitionDate) {
			return lots[i].ID < lots[j].ID
		}
		return lots[i].AcquisitionDate.Before(lots[j].AcquisitionDate)
	})
}

// openLots filters to lots that still hold shares.
func openLots(lots []*models.Lot) []*models.Lot {
	var open []*models.Lot
	for _, l := range lots {
		if !l.Closed && l.OpenQuantity.IsPositive() {
			open = append(open, l)
		}
	}
	return open
}

// consumeFIFO sells quantity (in current, adjusted share terms) against the
// open lots in acquisition order. Returns the realized gain and the lots it
// changed. Validates the full quantity is available before touching
// anything, so a rejected sell mutates nothing.
func consumeFIFO(open []*models.Lot, actions []models.CorporateAction, quantity, price decimal.Decimal, ts time.Time) (decimal.Decimal, []*models.Lot, error) {
	type adjusted struct {
		lot *models.Lot
		adj models.AdjustedLot
	}
	var views []adjusted
	available := decimal.Zero
	for _, lot := range open {
		adj, err := adjust.Apply(*lot, actions, adjust.Options{AsOf: ts})
		if err != nil {
			return decimal.Zero, nil, err
		}
		views = append(views, adjusted{lot: lot, adj: adj})
		available = available.Add(adj.Quantity)
	}
	if quantity.GreaterThan(available) {
		symbol := ""
		if len(open) > 0 {
			symbol = open[0].Symbol
		}
		return decimal.Zero, nil, errors.NewTradeError(symbol, string(models.OrderSideSell),
			"sell quantity "+quantity.String()+" exceeds held "+available.String())
	}

	gain := decimal.Zero
	remaining := quantity
	var changed []*models.Lot
	for _, v := range views {
		if remaining.IsZero() {
			break
		}
		take := decimal.Min(remaining, v.adj.Quantity)
		gain = gain.Add(price.Sub(v.adj.CostBasis).Mul(take))

		if take.Equal(v.adj.Quantity) {
			v.lot.OpenQuantity = decimal.Zero
			v.lot.Closed = true
			v.lot.ClosedAt = ts
		} else {
			// Convert the sold adjusted shares back to original share
			// units so the lot stays replayable from its event origin.
			consumedOriginal := take.Mul(v.lot.OpenQuantity).Div(v.adj.Quantity)
			v.lot.OpenQuantity = v.lot.OpenQuantity.Sub(consumedOriginal)
		}
		changed = append(changed, v.lot)
		remaining = remaining.Sub(take)
	}
	return gain, changed, nil
}
