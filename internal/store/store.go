// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"alpaca-tracker/internal/models"
)

// DataStore defines the interface for durable persistence of the event log
// (corporate actions, trades) and the lot table.
type DataStore interface {
	// Corporate actions
	SaveAction(ctx context.Context, action *models.CorporateAction) error
	LoadActions(ctx context.Context) ([]models.CorporateAction, error)

	// Lots
	SaveLot(ctx context.Context, lot *models.Lot) error
	LoadLots(ctx context.Context) ([]models.Lot, error)

	// Trade events
	SaveTrade(ctx context.Context, trade *models.TradeEvent) error
	LoadTrades(ctx context.Context) ([]models.TradeEvent, error)

	// ReplaceAll atomically replaces the full persisted state, used by
	// snapshot import.
	ReplaceAll(ctx context.Context, snap *Snapshot) error

	// Lifecycle
	Close() error
}
