package tracker

import (
	"context"
	"io"
	"sort"

	"github.com/shopspring/decimal"

	"alpaca-tracker/internal/errors"
	"alpaca-tracker/internal/logging"
	"alpaca-tracker/internal/models"
	"alpaca-tracker/internal/registry"
	"alpaca-tracker/internal/store"
)

// ExportSnapshot writes a full snapshot of the tracked state. The export
// holds exclusive access to the state for its duration, so the snapshot is
// point-in-time consistent.
func (t *Tracker) ExportSnapshot(ctx context.Context, w io.Writer) error {
	t.global.Lock()
	defer t.global.Unlock()

	snap := &store.Snapshot{
		Actions: t.registry.All(),
	}

	t.mu.RLock()
	symbols := make([]string, 0, len(t.lots))
	for s := range t.lots {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	for _, s := range symbols {
		for _, lot := range t.lots[s] {
			snap.Lots = append(snap.Lots, *lot)
		}
	}
	snap.Trades = append(snap.Trades, t.trades...)
	t.mu.RUnlock()

	if err := store.WriteSnapshot(w, snap); err != nil {
		return errors.Wrap(err, "writing snapshot")
	}
	logging.LogSnapshot(t.logger, "export", len(snap.Actions), len(snap.Lots), len(snap.Trades))
	return nil
}

// ImportSnapshot replaces the full in-memory state with the snapshot
// contents and, when a store is attached, rewrites the persisted state
// atomically. Fails with ErrCorruptSnapshot on schema mismatch or broken
// referential integrity without touching current state.
func (t *Tracker) ImportSnapshot(ctx context.Context, r io.Reader) error {
	snap, err := store.ReadSnapshot(r)
	if err != nil {
		return err
	}

	t.global.Lock()
	defer t.global.Unlock()

	if err := t.registry.Load(snap.Actions); err != nil {
		return errors.NewSnapshotError("actions", "registry rejected imported actions", err)
	}

	realized, err := replayRealized(snap.Trades, t.registry)
	if err != nil {
		return errors.NewSnapshotError("trades", "event log replay failed", err)
	}

	lots := make(map[string][]*models.Lot)
	for i := range snap.Lots {
		lot := snap.Lots[i]
		lots[lot.Symbol] = append(lots[lot.Symbol], &lot)
	}
	for _, ls := range lots {
		sortLots(ls)
	}

	t.mu.Lock()
	t.lots = lots
	t.trades = append([]models.TradeEvent(nil), snap.Trades...)
	t.realized = realized
	t.stale = make(map[string]bool)
	t.cache = make(map[string]models.PositionView)
	for s := range lots {
		t.stale[s] = true
	}
	t.mu.Unlock()

	if t.store != nil {
		if err := t.store.ReplaceAll(ctx, snap); err != nil {
			return errors.Wrap(err, "persisting imported state")
		}
	}

	logging.LogSnapshot(t.logger, "import", len(snap.Actions), len(snap.Lots), len(snap.Trades))
	return nil
}

// LoadFromStore rebuilds the in-memory state from the attached store,
// used at startup.
func (t *Tracker) LoadFromStore(ctx context.Context) error {
	if t.store == nil {
		return nil
	}

	t.global.Lock()
	defer t.global.Unlock()

	actions, err := t.store.LoadActions(ctx)
	if err != nil {
		return errors.Wrap(err, "loading actions")
	}
	if len(actions) > 0 {
		if err := t.registry.Load(actions); err != nil {
			return err
		}
	}

	lotList, err := t.store.LoadLots(ctx)
	if err != nil {
		return errors.Wrap(err, "loading lots")
	}
	trades, err := t.store.LoadTrades(ctx)
	if err != nil {
		return errors.Wrap(err, "loading trades")
	}

	realized, err := replayRealized(trades, t.registry)
	if err != nil {
		return errors.Wrap(err, "replaying trade log")
	}

	lots := make(map[string][]*models.Lot)
	for i := range lotList {
		lot := lotList[i]
		lots[lot.Symbol] = append(lots[lot.Symbol], &lot)
	}
	for _, ls := range lots {
		sortLots(ls)
	}

	t.mu.Lock()
	t.lots = lots
	t.trades = trades
	t.realized = realized
	t.stale = make(map[string]bool)
	t.cache = make(map[string]models.PositionView)
	for s := range lots {
		t.stale[s] = true
	}
	t.mu.Unlock()
	return nil
}

// replayRealized reruns the trade event log against scratch lots to
// recompute realized P&L per symbol. Derived state is always recomputable
// from the event log; this is the recompute.
func replayRealized(trades []models.TradeEvent, reg *registry.Registry) (map[string]decimal.Decimal, error) {
	ordered := append([]models.TradeEvent(nil), trades...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Timestamp.Equal(ordered[j].Timestamp) {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	scratch := make(map[string][]*models.Lot)
	realized := make(map[string]decimal.Decimal)
	for i := range ordered {
		tr := &ordered[i]
		switch tr.Side {
		case models.OrderSideBuy:
			scratch[tr.Symbol] = append(scratch[tr.Symbol], &models.Lot{
				ID:                tr.ID,
				Symbol:            tr.Symbol,
				AcquisitionDate:   tr.Timestamp,
				OriginalQuantity:  tr.Quantity,
				OriginalCostBasis: tr.Price,
				OpenQuantity:      tr.Quantity,
				TradeID:           tr.ID,
			})
		case models.OrderSideSell:
			gain, _, err := consumeFIFO(openLots(scratch[tr.Symbol]), reg.ActionsFor(tr.Symbol),
				tr.Quantity, tr.Price, tr.Timestamp)
			if err != nil {
				return nil, err
			}
			realized[tr.Symbol] = realized[tr.Symbol].Add(gain)
		}
	}
	return realized, nil
}
