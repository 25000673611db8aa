// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInvalidAction    = errors.New("invalid corporate action")
	ErrInvalidTrade     = errors.New("invalid trade")
	ErrOutOfOrderReplay = errors.New("action sequence out of canonical order")
	ErrUndefinedReturn  = errors.New("return undefined for zero original investment")
	ErrCorruptSnapshot  = errors.New("corrupt snapshot")
	ErrPositionNotFound = errors.New("position not found")
	ErrActionNotFound   = errors.New("action not found")
	ErrStoreClosed      = errors.New("store is closed")
)

// ActionError represents a validation failure on a corporate action.
type ActionError struct {
	Symbol string
	Type   string
	Reason string
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("invalid action [%s %s]: %s", e.Symbol, e.Type, e.Reason)
}

func (e *ActionError) Unwrap() error {
	return ErrInvalidAction
}

// NewActionError creates a new ActionError.
func NewActionError(symbol, actionType, reason string) *ActionError {
	return &ActionError{
		Symbol: symbol,
		Type:   actionType,
		Reason: reason,
	}
}

// TradeError represents a rejected trade.
type TradeError struct {
	Symbol string
	Side   string
	Reason string
}

func (e *TradeError) Error() string {
	return fmt.Sprintf("invalid trade [%s %s]: %s", e.Side, e.Symbol, e.Reason)
}

func (e *TradeError) Unwrap() error {
	return ErrInvalidTrade
}

// NewTradeError creates a new TradeError.
func NewTradeError(symbol, side, reason string) *TradeError {
	return &TradeError{
		Symbol: symbol,
		Side:   side,
		Reason: reason,
	}
}

// SnapshotError represents a persistence round-trip integrity failure.
type SnapshotError struct {
	Field  string
	Reason string
	Err    error
}

func (e *SnapshotError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corrupt snapshot [%s]: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("corrupt snapshot [%s]: %s", e.Field, e.Reason)
}

func (e *SnapshotError) Unwrap() error {
	return ErrCorruptSnapshot
}

// NewSnapshotError creates a new SnapshotError.
func NewSnapshotError(field, reason string, err error) *SnapshotError {
	return &SnapshotError{
		Field:  field,
		Reason: reason,
		Err:    err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
