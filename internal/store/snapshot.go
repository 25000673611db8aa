package store

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"alpaca-tracker/internal/errors"
	"alpaca-tracker/internal/models"
)

// SchemaVersion is the current snapshot and database schema version.
// Bump on any incompatible layout change; import rejects newer versions.
const SchemaVersion = 1

// Snapshot is a full, self-contained export of the tracked state: every
// corporate action, every lot (open and closed) and the trade event log.
// The round trip through Write/Read is lossless for all entity fields.
type Snapshot struct {
	SchemaVersion int                      `json:"schema_version"`
	ExportedAt    time.Time                `json:"exported_at"`
	Actions       []models.CorporateAction `json:"actions"`
	Lots          []models.Lot             `json:"lots"`
	Trades        []models.TradeEvent      `json:"trades"`
}

// Validate checks schema compatibility and referential integrity: every
// action referenced by a lot's audit list must be present, and every lot
// must trace back to a recorded trade.
func (s *Snapshot) Validate() error {
	if s.SchemaVersion <= 0 || s.SchemaVersion > SchemaVersion {
		return errors.NewSnapshotError("schema_version",
			fmt.Sprintf("unsupported version %d (current %d)", s.SchemaVersion, SchemaVersion), nil)
	}

	actionIDs := make(map[string]struct{}, len(s.Actions))
	for i := range s.Actions {
		a := &s.Actions[i]
		if err := a.Validate(); err != nil {
			return errors.NewSnapshotError("actions", "invalid action record", err)
		}
		if a.ID == "" {
			return errors.NewSnapshotError("actions", "action missing identifier", nil)
		}
		if _, dup := actionIDs[a.ID]; dup {
			return errors.NewSnapshotError("actions", "duplicate action id "+a.ID, nil)
		}
		actionIDs[a.ID] = struct{}{}
	}

	tradeIDs := make(map[string]struct{}, len(s.Trades))
	for i := range s.Trades {
		t := &s.Trades[i]
		if t.ID == "" {
			return errors.NewSnapshotError("trades", "trade missing identifier", nil)
		}
		if !t.Quantity.IsPositive() || !t.Price.IsPositive() {
			return errors.NewSnapshotError("trades", "non-positive quantity or price on trade "+t.ID, nil)
		}
		tradeIDs[t.ID] = struct{}{}
	}

	for i := range s.Lots {
		l := &s.Lots[i]
		if l.ID == "" {
			return errors.NewSnapshotError("lots", "lot missing identifier", nil)
		}
		if l.OpenQuantity.IsNegative() || !l.OriginalQuantity.IsPositive() {
			return errors.NewSnapshotError("lots", "invalid quantities on lot "+l.ID, nil)
		}
		if l.OpenQuantity.GreaterThan(l.OriginalQuantity) {
			return errors.NewSnapshotError("lots", "open quantity exceeds original on lot "+l.ID, nil)
		}
		if l.TradeID != "" {
			if _, ok := tradeIDs[l.TradeID]; !ok {
				return errors.NewSnapshotError("lots",
					fmt.Sprintf("lot %s references missing trade %s", l.ID, l.TradeID), nil)
			}
		}
		for _, id := range l.AppliedActionIDs {
			if _, ok := actionIDs[id]; !ok {
				return errors.NewSnapshotError("lots",
					fmt.Sprintf("lot %s references missing action %s", l.ID, id), nil)
			}
		}
	}
	return nil
}

// WriteSnapshot serializes the snapshot as indented JSON.
func WriteSnapshot(w io.Writer, snap *Snapshot) error {
	snap.SchemaVersion = SchemaVersion
	if snap.ExportedAt.IsZero() {
		snap.ExportedAt = time.Now().UTC()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

// ReadSnapshot parses and validates a snapshot. A malformed document or a
// broken referential-integrity invariant is reported as ErrCorruptSnapshot.
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	var snap Snapshot
	dec := json.NewDecoder(r)
	if err := dec.Decode(&snap); err != nil {
		return nil, errors.NewSnapshotError("document", "malformed JSON", err)
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return &snap, nil
}
