// Package broker defines the narrow seams to the external brokerage
// collaborators. The tracking engine never talks to a brokerage API
// directly; it only consumes current prices and, for reconciliation,
// the broker's authoritative position quantities.
package broker

import (
	"context"

	"github.com/shopspring/decimal"

	"alpaca-tracker/internal/errors"
)

// PriceSource supplies the current market price per symbol. Implementations
// must return a positive price or an error.
type PriceSource interface {
	GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// PositionAuthority supplies the broker-reported position quantity, used
// only for reconciliation, never as the source of truth for adjusted
// figures.
type PositionAuthority interface {
	GetQuantity(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// StaticSource is an in-memory PriceSource and PositionAuthority backed by
// fixed maps. Used by the CLI and in tests.
type StaticSource struct {
	Prices     map[string]decimal.Decimal
	Quantities map[string]decimal.Decimal
}

// NewStaticSource creates a StaticSource with empty maps.
func NewStaticSource() *StaticSource {
	return &StaticSource{
		Prices:     make(map[string]decimal.Decimal),
		Quantities: make(map[string]decimal.Decimal),
	}
}

// SetPrice sets the current price for a symbol.
func (s *StaticSource) SetPrice(symbol string, price decimal.Decimal) {
	s.Prices[symbol] = price
}

// SetQuantity sets the authoritative quantity for a symbol.
func (s *StaticSource) SetQuantity(symbol string, qty decimal.Decimal) {
	s.Quantities[symbol] = qty
}

// GetPrice returns the configured price for the symbol.
func (s *StaticSource) GetPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	price, ok := s.Prices[symbol]
	if !ok {
		return decimal.Zero, errors.Wrapf(errors.ErrPositionNotFound, "no price for %s", symbol)
	}
	if !price.IsPositive() {
		return decimal.Zero, errors.NewTradeError(symbol, "", "price must be positive")
	}
	return price, nil
}

// GetQuantity returns the configured authoritative quantity for the symbol.
func (s *StaticSource) GetQuantity(_ context.Context, symbol string) (decimal.Decimal, error) {
	qty, ok := s.Quantities[symbol]
	if !ok {
		return decimal.Zero, errors.Wrapf(errors.ErrPositionNotFound, "no broker quantity for %s", symbol)
	}
	return qty, nil
}
