// Package registry stores corporate-action records keyed by symbol.
//
// The registry is the single source of the canonical replay order: actions
// for a symbol sort by (ex-date, sequence number) ascending, and the
// sequence number is a registry-wide monotonic counter assigned on insert,
// so the ordering is total. Records are immutable once added; a correction
// is issued as a new action with inverse effect, never an in-place edit.
package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"alpaca-tracker/internal/errors"
	"alpaca-tracker/internal/models"
)

// Registry holds corporate-action records keyed by symbol.
type Registry struct {
	mu      sync.RWMutex
	actions map[string][]models.CorporateAction // symbol -> actions, canonical order
	byID    map[string]models.CorporateAction
	seq     uint64
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		actions: make(map[string][]models.CorporateAction),
		byID:    make(map[string]models.CorporateAction),
	}
}

// Add validates and records a corporate action, assigning its sequence
// number and stable identifier. Returns the identifier.
func (r *Registry) Add(action *models.CorporateAction) (string, error) {
	if action == nil {
		return "", errors.NewActionError("", "", "nil action")
	}
	if err := action.Validate(); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	stored := *action
	stored.Sequence = r.seq
	stored.ID = actionID(&stored)
	stored.CreatedAt = time.Now().UTC()

	r.insertLocked(stored)

	// Reflect assigned identity back to the caller's copy.
	action.Sequence = stored.Sequence
	action.ID = stored.ID
	action.CreatedAt = stored.CreatedAt

	return stored.ID, nil
}

// insertLocked stores an action and keeps the symbol's slice in canonical
// order. Callers must hold the write lock.
func (r *Registry) insertLocked(a models.CorporateAction) {
	r.actions[a.Symbol] = append(r.actions[a.Symbol], a)
	sortCanonical(r.actions[a.Symbol])
	r.byID[a.ID] = a
}

// ActionsFor returns a copy of all actions for a symbol in canonical
// (ex-date, sequence) order.
func (r *Registry) ActionsFor(symbol string) []models.CorporateAction {
	r.mu.RLock()
	defer r.mu.RUnlock()

	actions, ok := r.actions[symbol]
	if !ok {
		return nil
	}
	out := make([]models.CorporateAction, len(actions))
	copy(out, actions)
	return out
}

// Get returns the action with the given identifier.
func (r *Registry) Get(id string) (models.CorporateAction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return models.CorporateAction{}, errors.Wrapf(errors.ErrActionNotFound, "id %s", id)
	}
	return a, nil
}

// Symbols returns all symbols with at least one recorded action.
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	symbols := make([]string, 0, len(r.actions))
	for s := range r.actions {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// All returns every recorded action across symbols in canonical order per
// symbol, symbols sorted alphabetically. Used by the persistence gateway.
func (r *Registry) All() []models.CorporateAction {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.CorporateAction
	symbols := make([]string, 0, len(r.actions))
	for s := range r.actions {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	for _, s := range symbols {
		out = append(out, r.actions[s]...)
	}
	return out
}

// Len returns the total number of recorded actions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Load replaces the registry contents with previously exported actions,
// preserving their identifiers and sequence numbers. Every action is
// re-validated; the internal counter resumes past the highest sequence.
func (r *Registry) Load(actions []models.CorporateAction) error {
	for i := range actions {
		if err := actions[i].Validate(); err != nil {
			return err
		}
		if actions[i].ID == "" || actions[i].Sequence == 0 {
			return errors.NewActionError(actions[i].Symbol, string(actions[i].Type), "missing identity on imported action")
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.actions = make(map[string][]models.CorporateAction)
	r.byID = make(map[string]models.CorporateAction)
	r.seq = 0
	for _, a := range actions {
		if _, dup := r.byID[a.ID]; dup {
			return errors.NewActionError(a.Symbol, string(a.Type), fmt.Sprintf("duplicate action id %s", a.ID))
		}
		r.insertLocked(a)
		if a.Sequence > r.seq {
			r.seq = a.Sequence
		}
	}
	return nil
}

// Inverse constructs the action that reverses the given one: the reversal
// workflow for corrections, since recorded actions are immutable.
func Inverse(a models.CorporateAction) (*models.CorporateAction, error) {
	inv := models.CorporateAction{
		Symbol:           a.Symbol,
		AnnouncementDate: a.AnnouncementDate,
		ExDate:           a.ExDate,
		Notes:            fmt.Sprintf("reversal of %s", a.ID),
	}
	switch a.Type {
	case models.ActionStockSplit, models.ActionStockDividend:
		inv.Type = models.ActionReverseSplit
		inv.RatioNum = a.RatioDen
		inv.RatioDen = a.RatioNum
	case models.ActionReverseSplit:
		inv.Type = models.ActionStockSplit
		inv.RatioNum = a.RatioDen
		inv.RatioDen = a.RatioNum
	default:
		return nil, errors.NewActionError(a.Symbol, string(a.Type), "cash actions cannot be reversed by ratio; issue a negative adjustment upstream")
	}
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	return &inv, nil
}

// sortCanonical sorts actions by (ex-date, sequence) ascending.
func sortCanonical(actions []models.CorporateAction) {
	sort.SliceStable(actions, func(i, j int) bool {
		if actions[i].ExDate.Equal(actions[j].ExDate) {
			return actions[i].Sequence < actions[j].Sequence
		}
		return actions[i].ExDate.Before(actions[j].ExDate)
	})
}

// actionID builds the stable identifier for a newly recorded action.
func actionID(a *models.CorporateAction) string {
	return fmt.Sprintf("%s-%s-%s-%04d", a.Symbol, a.Type, a.ExDate.Format("20060102"), a.Sequence)
}
