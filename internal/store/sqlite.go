package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"alpaca-tracker/internal/errors"
	"alpaca-tracker/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// initSchema creates all required tables and records the schema version.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	-- Corporate action records: immutable once inserted
	CREATE TABLE IF NOT EXISTS actions (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		type TEXT NOT NULL,
		announcement_date DATETIME,
		ex_date DATETIME NOT NULL,
		record_date DATETIME,
		payment_date DATETIME,
		ratio_num INTEGER NOT NULL DEFAULT 0,
		ratio_den INTEGER NOT NULL DEFAULT 0,
		cash_amount TEXT NOT NULL DEFAULT '0',
		return_of_capital INTEGER NOT NULL DEFAULT 0,
		sequence INTEGER NOT NULL,
		notes TEXT,
		created_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_actions_symbol ON actions(symbol, ex_date, sequence);

	-- Lot table: append-only except for open_quantity/closed updates
	CREATE TABLE IF NOT EXISTS lots (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		acquisition_date DATETIME NOT NULL,
		original_quantity TEXT NOT NULL,
		original_cost_basis TEXT NOT NULL,
		open_quantity TEXT NOT NULL,
		trade_id TEXT NOT NULL,
		closed INTEGER NOT NULL DEFAULT 0,
		closed_at DATETIME,
		applied_action_ids TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_lots_symbol ON lots(symbol, acquisition_date);

	-- Append-only trade event log
	CREATE TABLE IF NOT EXISTS trade_events (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity TEXT NOT NULL,
		price TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		order_id TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trade_events(symbol, timestamp);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	_, err := s.db.Exec(
		`INSERT INTO meta (key, value) VALUES ('schema_version', ?)
		 ON CONFLICT(key) DO NOTHING`,
		strconv.Itoa(SchemaVersion),
	)
	return err
}

// SchemaVersionStored returns the schema version recorded in the database.
func (s *SQLiteStore) SchemaVersionStored(ctx context.Context) (int, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&v)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(v)
}

// SaveAction persists a corporate action record.
func (s *SQLiteStore) SaveAction(ctx context.Context, a *models.CorporateAction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO actions (id, symbol, type, announcement_date, ex_date, record_date,
			payment_date, ratio_num, ratio_den, cash_amount, return_of_capital,
			sequence, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Symbol, string(a.Type), nullableTime(a.AnnouncementDate), a.ExDate,
		nullableTime(a.RecordDate), nullableTime(a.PaymentDate),
		a.RatioNum, a.RatioDen, a.CashAmount.String(), boolToInt(a.ReturnOfCapital),
		a.Sequence, a.Notes, nullableTime(a.CreatedAt),
	)
	return err
}

// LoadActions loads every corporate action, canonical order per symbol.
func (s *SQLiteStore) LoadActions(ctx context.Context) ([]models.CorporateAction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, type, announcement_date, ex_date, record_date, payment_date,
			ratio_num, ratio_den, cash_amount, return_of_capital, sequence, notes, created_at
		FROM actions ORDER BY symbol, ex_date, sequence`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []models.CorporateAction
	for rows.Next() {
		var a models.CorporateAction
		var announcement, record, payment, created sql.NullTime
		var cash, typ string
		var roc int
		if err := rows.Scan(&a.ID, &a.Symbol, &typ, &announcement, &a.ExDate, &record,
			&payment, &a.RatioNum, &a.RatioDen, &cash, &roc, &a.Sequence, &a.Notes, &created); err != nil {
			return nil, err
		}
		a.Type = models.ActionType(typ)
		a.AnnouncementDate = announcement.Time
		a.RecordDate = record.Time
		a.PaymentDate = payment.Time
		a.CreatedAt = created.Time
		a.ReturnOfCapital = roc != 0
		if a.CashAmount, err = decimal.NewFromString(cash); err != nil {
			return nil, fmt.Errorf("decoding cash amount for %s: %w", a.ID, err)
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// SaveLot inserts or updates a lot. Open quantity and closed status are the
// only fields that change after creation.
func (s *SQLiteStore) SaveLot(ctx context.Context, l *models.Lot) error {
	applied, err := json.Marshal(l.AppliedActionIDs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO lots (id, symbol, acquisition_date, original_quantity,
			original_cost_basis, open_quantity, trade_id, closed, closed_at, applied_action_ids)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			open_quantity = excluded.open_quantity,
			closed = excluded.closed,
			closed_at = excluded.closed_at,
			applied_action_ids = excluded.applied_action_ids`,
		l.ID, l.Symbol, l.AcquisitionDate, l.OriginalQuantity.String(),
		l.OriginalCostBasis.String(), l.OpenQuantity.String(), l.TradeID,
		boolToInt(l.Closed), nullableTime(l.ClosedAt), string(applied),
	)
	return err
}

// LoadLots loads every lot, open and closed.
func (s *SQLiteStore) LoadLots(ctx context.Context) ([]models.Lot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, acquisition_date, original_quantity, original_cost_basis,
			open_quantity, trade_id, closed, closed_at, applied_action_ids
		FROM lots ORDER BY symbol, acquisition_date, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lots []models.Lot
	for rows.Next() {
		var l models.Lot
		var origQty, origBasis, openQty string
		var closed int
		var closedAt sql.NullTime
		var applied sql.NullString
		if err := rows.Scan(&l.ID, &l.Symbol, &l.AcquisitionDate, &origQty, &origBasis,
			&openQty, &l.TradeID, &closed, &closedAt, &applied); err != nil {
			return nil, err
		}
		l.Closed = closed != 0
		l.ClosedAt = closedAt.Time
		if l.OriginalQuantity, err = decimal.NewFromString(origQty); err != nil {
			return nil, fmt.Errorf("decoding quantity for lot %s: %w", l.ID, err)
		}
		if l.OriginalCostBasis, err = decimal.NewFromString(origBasis); err != nil {
			return nil, fmt.Errorf("decoding cost basis for lot %s: %w", l.ID, err)
		}
		if l.OpenQuantity, err = decimal.NewFromString(openQty); err != nil {
			return nil, fmt.Errorf("decoding open quantity for lot %s: %w", l.ID, err)
		}
		if applied.Valid && applied.String != "" {
			if err := json.Unmarshal([]byte(applied.String), &l.AppliedActionIDs); err != nil {
				return nil, fmt.Errorf("decoding applied actions for lot %s: %w", l.ID, err)
			}
		}
		lots = append(lots, l)
	}
	return lots, rows.Err()
}

// SaveTrade appends a trade event.
func (s *SQLiteStore) SaveTrade(ctx context.Context, t *models.TradeEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trade_events (id, symbol, side, quantity, price, timestamp, order_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Symbol, string(t.Side), t.Quantity.String(), t.Price.String(),
		t.Timestamp, t.OrderID,
	)
	return err
}

// LoadTrades loads the full trade event log in chronological order.
func (s *SQLiteStore) LoadTrades(ctx context.Context) ([]models.TradeEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, side, quantity, price, timestamp, order_id
		FROM trade_events ORDER BY timestamp, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []models.TradeEvent
	for rows.Next() {
		var t models.TradeEvent
		var side, qty, price string
		var orderID sql.NullString
		if err := rows.Scan(&t.ID, &t.Symbol, &side, &qty, &price, &t.Timestamp, &orderID); err != nil {
			return nil, err
		}
		t.Side = models.OrderSide(side)
		t.OrderID = orderID.String
		if t.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("decoding quantity for trade %s: %w", t.ID, err)
		}
		if t.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("decoding price for trade %s: %w", t.ID, err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// ReplaceAll atomically replaces the persisted state with the snapshot
// contents. Used by snapshot import; the snapshot must already be validated.
func (s *SQLiteStore) ReplaceAll(ctx context.Context, snap *Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"actions", "lots", "trade_events"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}

	for i := range snap.Actions {
		a := &snap.Actions[i]
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO actions (id, symbol, type, announcement_date, ex_date, record_date,
				payment_date, ratio_num, ratio_den, cash_amount, return_of_capital,
				sequence, notes, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.Symbol, string(a.Type), nullableTime(a.AnnouncementDate), a.ExDate,
			nullableTime(a.RecordDate), nullableTime(a.PaymentDate),
			a.RatioNum, a.RatioDen, a.CashAmount.String(), boolToInt(a.ReturnOfCapital),
			a.Sequence, a.Notes, nullableTime(a.CreatedAt)); err != nil {
			return err
		}
	}
	for i := range snap.Lots {
		l := &snap.Lots[i]
		applied, err := json.Marshal(l.AppliedActionIDs)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO lots (id, symbol, acquisition_date, original_quantity,
				original_cost_basis, open_quantity, trade_id, closed, closed_at, applied_action_ids)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			l.ID, l.Symbol, l.AcquisitionDate, l.OriginalQuantity.String(),
			l.OriginalCostBasis.String(), l.OpenQuantity.String(), l.TradeID,
			boolToInt(l.Closed), nullableTime(l.ClosedAt), string(applied)); err != nil {
			return err
		}
	}
	for i := range snap.Trades {
		t := &snap.Trades[i]
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO trade_events (id, symbol, side, quantity, price, timestamp, order_id)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.Symbol, string(t.Side), t.Quantity.String(), t.Price.String(),
			t.Timestamp, t.OrderID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return errors.ErrStoreClosed
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
