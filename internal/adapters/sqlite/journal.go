package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gridbot/internal/domain"
	"gridbot/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Journal implements the ports.OrderJournal interface using SQLite.
// It is an audit trail only: the engine never reads it back into live state.
type Journal struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite journal.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewJournal creates a new SQLite journal instance.
func NewJournal(cfg Config) (*Journal, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite journal")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/gridbot.db"
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}

	// WAL mode for better concurrency between the engine loops
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}

	// SQLite handles concurrency internally; the Go driver benefits from a
	// single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	j := &Journal{db: db, logger: cfg.Logger}

	if err := j.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize journal schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Order journal initialized", map[string]interface{}{"path": dbPath})

	return j, nil
}

func (j *Journal) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS orders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		purpose TEXT NOT NULL,
		price REAL NOT NULL,
		quantity REAL NOT NULL,
		placed_at TIMESTAMP NOT NULL,
		filled_at TIMESTAMP DEFAULT NULL,
		canceled_at TIMESTAMP DEFAULT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_orders_order_id ON orders (order_id);
	CREATE INDEX IF NOT EXISTS idx_orders_symbol_placed_at ON orders (symbol, placed_at);
	`
	if _, err := j.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db != nil {
		j.logger.Info(context.Background(), "Closing order journal")
		return j.db.Close()
	}
	return nil
}

// RecordPlacement saves an acknowledged order and returns its row ID.
func (j *Journal) RecordPlacement(ctx context.Context, entry *ports.JournalEntry) (int64, error) {
	const query = `
	INSERT INTO orders (order_id, symbol, side, purpose, price, quantity, placed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	result, err := j.db.ExecContext(ctx, query,
		entry.OrderID, entry.Symbol, string(entry.Side), entry.Purpose, entry.Price, entry.Quantity, entry.PlacedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert journal entry for order %d: %w: %w", entry.OrderID, ports.ErrQueryFailed, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for order %d: %w", entry.OrderID, err)
	}
	entry.ID = id
	j.logger.Debug(ctx, "Journal entry created", map[string]interface{}{"journalID": id, "orderID": entry.OrderID, "purpose": entry.Purpose})
	return id, nil
}

// RecordFill marks an order as gone from the open-order list.
func (j *Journal) RecordFill(ctx context.Context, orderID int64, detectedAt time.Time) error {
	const query = `UPDATE orders SET filled_at = ? WHERE order_id = ? AND filled_at IS NULL AND canceled_at IS NULL`
	if _, err := j.db.ExecContext(ctx, query, detectedAt, orderID); err != nil {
		return fmt.Errorf("failed to record fill for order %d: %w: %w", orderID, ports.ErrQueryFailed, err)
	}
	return nil
}

// RecordCancel marks an order as cancelled by the engine.
func (j *Journal) RecordCancel(ctx context.Context, orderID int64, canceledAt time.Time) error {
	const query = `UPDATE orders SET canceled_at = ? WHERE order_id = ? AND canceled_at IS NULL`
	if _, err := j.db.ExecContext(ctx, query, canceledAt, orderID); err != nil {
		return fmt.Errorf("failed to record cancel for order %d: %w: %w", orderID, ports.ErrQueryFailed, err)
	}
	return nil
}

// FindRecentBySymbol returns the most recent entries for a symbol.
func (j *Journal) FindRecentBySymbol(ctx context.Context, symbol string, limit int) ([]*ports.JournalEntry, error) {
	const query = `
	SELECT id, order_id, symbol, side, purpose, price, quantity, placed_at, filled_at, canceled_at
	FROM orders WHERE symbol = ? ORDER BY placed_at DESC LIMIT ?`

	rows, err := j.db.QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal for %s: %w: %w", symbol, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	var entries []*ports.JournalEntry
	for rows.Next() {
		var e ports.JournalEntry
		var side string
		var filledAt, canceledAt sql.NullTime
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Symbol, &side, &e.Purpose, &e.Price, &e.Quantity, &e.PlacedAt, &filledAt, &canceledAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		e.Side = domain.OrderSide(side)
		if filledAt.Valid {
			t := filledAt.Time
			e.FilledAt = &t
		}
		if canceledAt.Valid {
			t := canceledAt.Time
			e.CanceledAt = &t
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// CountFillsToday counts fills detected today for a symbol.
func (j *Journal) CountFillsToday(ctx context.Context, symbol string) (int, error) {
	const query = `
	SELECT COUNT(*) FROM orders
	WHERE symbol = ? AND filled_at IS NOT NULL AND filled_at >= ?`

	startOfDay := time.Now().UTC().Truncate(24 * time.Hour)
	var count int
	if err := j.db.QueryRowContext(ctx, query, symbol, startOfDay).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count fills for %s: %w: %w", symbol, ports.ErrQueryFailed, err)
	}
	return count, nil
}
