package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"optionScalpBot/internal/domain"
	"optionScalpBot/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Journal persists exit events to SQLite. It implements ports.ExitReporter,
// so the exit tracker can hand it every firing without caring about storage.
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
		dbPath = "./data/option_scalp_bot.db" // Default path
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000") // WAL mode for better concurrency
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
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
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Exit journal ready", map[string]interface{}{"path": dbPath})
	return j, nil
}

func (j *Journal) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS exit_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		reason TEXT NOT NULL,
		price REAL NOT NULL,
		entry_price REAL NOT NULL,
		high_water_mark REAL NOT NULL,
		fraction REAL NOT NULL,
		elapsed_seconds REAL NOT NULL,
		final INTEGER NOT NULL,
		fired_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_exit_events_symbol_fired_at ON exit_events (symbol, fired_at);
	`
	if _, err := j.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db != nil {
		j.logger.Info(context.Background(), "Closing exit journal")
		return j.db.Close()
	}
	return nil
}

// ExitFired records one exit firing. Persistence failures are logged, never
// propagated: the exit engine must keep running even if the journal is sick.
func (j *Journal) ExitFired(ctx context.Context, event *domain.ExitEvent) {
	if _, err := j.RecordExit(ctx, event); err != nil {
		j.logger.Error(ctx, err, "Failed to journal exit event", map[string]interface{}{"symbol": event.Symbol, "reason": string(event.Reason)})
	}
}

// RecordExit saves an exit event and returns its assigned ID.
func (j *Journal) RecordExit(ctx context.Context, event *domain.ExitEvent) (int64, error) {
	const query = `
	INSERT INTO exit_events (symbol, reason, price, entry_price, high_water_mark, fraction, elapsed_seconds, final, fired_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := j.db.ExecContext(ctx, query,
		event.Symbol, string(event.Reason), event.Price, event.EntryPrice,
		event.HighWaterMark, event.Fraction, event.Elapsed.Seconds(), event.Final, event.FiredAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert exit event for %s: %w: %w", event.Symbol, ports.ErrQueryFailed, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for exit event %s: %w", event.Symbol, err)
	}
	event.ID = id
	j.logger.Debug(ctx, "Exit event journaled", map[string]interface{}{"id": id, "symbol": event.Symbol, "reason": string(event.Reason)})
	return id, nil
}

// FindBySymbol retrieves journaled exits for a contract, newest first.
func (j *Journal) FindBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.ExitEvent, error) {
	const query = `
	SELECT id, symbol, reason, price, entry_price, high_water_mark, fraction, elapsed_seconds, final, fired_at
	FROM exit_events
	WHERE symbol = ?
	ORDER BY fired_at DESC, id DESC
	LIMIT ?`

	if limit <= 0 {
		limit = 100
	}
	rows, err := j.db.QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query exit events for %s: %w: %w", symbol, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	var events []*domain.ExitEvent
	for rows.Next() {
		var (
			e       domain.ExitEvent
			reason  string
			elapsed float64
		)
		if err := rows.Scan(&e.ID, &e.Symbol, &reason, &e.Price, &e.EntryPrice,
			&e.HighWaterMark, &e.Fraction, &elapsed, &e.Final, &e.FiredAt); err != nil {
			return nil, fmt.Errorf("failed to scan exit event row: %w", err)
		}
		e.Reason = domain.CloseReason(reason)
		e.Elapsed = time.Duration(elapsed * float64(time.Second))
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating exit event rows: %w", err)
	}
	return events, nil
}
