package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cryptoDipBot/internal/domain"
	"cryptoDipBot/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements ports.PositionRepository using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/dip_bot.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Open database connection
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000") // WAL mode for better concurrency
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Set connection pool settings (important for SQLite)
	db.SetMaxOpenConns(1) // SQLite handles concurrency internally, but Go driver benefits from limiting connections
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
// NOTE: This is a basic approach. A proper migration tool is recommended for production.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS positions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		entry_price REAL NOT NULL,
		amount REAL NOT NULL,
		entry_time TIMESTAMP NOT NULL,
		entry_tier INTEGER NOT NULL,
		status TEXT NOT NULL,
		exit_price REAL DEFAULT NULL,
		exit_time TIMESTAMP DEFAULT NULL,
		profit REAL DEFAULT NULL,
		exit_reason TEXT DEFAULT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_positions_symbol_status ON positions (symbol, status);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// Create saves a new position and returns its assigned ID.
func (r *Repository) Create(ctx context.Context, pos *domain.Position) (int64, error) {
	const query = `
	INSERT INTO positions (symbol, entry_price, amount, entry_time, entry_tier, status)
	VALUES (?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		pos.Symbol, pos.EntryPrice, pos.Amount, pos.EntryTime, pos.EntryTier, pos.Status)
	if err != nil {
		return 0, fmt.Errorf("failed to insert position for symbol %s: %w", pos.Symbol, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for position %s: %w", pos.Symbol, err)
	}
	pos.ID = id
	r.logger.Debug(ctx, "Position created", map[string]interface{}{"positionID": id, "symbol": pos.Symbol})
	return id, nil
}

// Update modifies an existing position based on its ID.
func (r *Repository) Update(ctx context.Context, pos *domain.Position) error {
	const query = `
	UPDATE positions
	SET entry_price = ?, amount = ?, entry_time = ?, entry_tier = ?,
	    status = ?, exit_price = ?, exit_time = ?, profit = ?, exit_reason = ?
	WHERE id = ?`

	var exitTime sql.NullTime
	if !pos.ExitTime.IsZero() {
		exitTime = sql.NullTime{Time: pos.ExitTime, Valid: true}
	}
	var exitReason sql.NullString
	if pos.ExitReason != "" {
		exitReason = sql.NullString{String: string(pos.ExitReason), Valid: true}
	}

	result, err := r.db.ExecContext(ctx, query,
		pos.EntryPrice, pos.Amount, pos.EntryTime, pos.EntryTier,
		pos.Status, pos.ExitPrice, exitTime, pos.Profit, exitReason,
		pos.ID)
	if err != nil {
		return fmt.Errorf("failed to update position ID %d: %w", pos.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for update position ID %d: %w", pos.ID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("position ID %d not found for update: %w", pos.ID, ports.ErrNotFound)
	}
	r.logger.Debug(ctx, "Position updated", map[string]interface{}{"positionID": pos.ID, "symbol": pos.Symbol, "status": pos.Status})
	return nil
}

// FindOpenPositions retrieves all currently open positions.
func (r *Repository) FindOpenPositions(ctx context.Context) ([]*domain.Position, error) {
	const query = `
	SELECT id, symbol, entry_price, amount, entry_time, entry_tier, status,
	       COALESCE(exit_price, 0), exit_time, COALESCE(profit, 0), exit_reason
	FROM positions
	WHERE status = ?
	ORDER BY entry_time ASC`

	rows, err := r.db.QueryContext(ctx, query, domain.StatusOpen)
	if err != nil {
		return nil, fmt.Errorf("failed to query open positions: %w", err)
	}
	defer rows.Close()

	positions := make([]*domain.Position, 0)
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position during FindOpenPositions: %w", err)
		}
		positions = append(positions, pos)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating open position rows: %w", err)
	}
	return positions, nil
}

// FindOpenBySymbol retrieves the currently open position for a given symbol, if any.
func (r *Repository) FindOpenBySymbol(ctx context.Context, symbol string) (*domain.Position, error) {
	const query = `
	SELECT id, symbol, entry_price, amount, entry_time, entry_tier, status,
	       COALESCE(exit_price, 0), exit_time, COALESCE(profit, 0), exit_reason
	FROM positions
	WHERE symbol = ? AND status = ?`

	row := r.db.QueryRowContext(ctx, query, symbol, domain.StatusOpen)
	pos, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug(ctx, "No open position found for symbol", map[string]interface{}{"symbol": symbol})
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query open position for symbol %s: %w", symbol, err)
	}
	return pos, nil
}

// FindAll retrieves all positions, ordered by entry time descending.
func (r *Repository) FindAll(ctx context.Context) ([]*domain.Position, error) {
	const query = `
	SELECT id, symbol, entry_price, amount, entry_time, entry_tier, status,
	       COALESCE(exit_price, 0), exit_time, COALESCE(profit, 0), exit_reason
	FROM positions
	ORDER BY entry_time DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query all positions: %w", err)
	}
	defer rows.Close()

	positions := make([]*domain.Position, 0)
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position during FindAll: %w", err)
		}
		positions = append(positions, pos)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating position rows: %w", err)
	}
	return positions, nil
}

// GetTotalProfit calculates the sum of profit for all closed positions.
func (r *Repository) GetTotalProfit(ctx context.Context) (float64, error) {
	const query = `SELECT COALESCE(SUM(profit), 0) FROM positions WHERE status = ?`
	var totalProfit float64
	err := r.db.QueryRowContext(ctx, query, domain.StatusClosed).Scan(&totalProfit)
	if err != nil {
		return 0, fmt.Errorf("failed to calculate total profit: %w", err)
	}
	return totalProfit, nil
}

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanPosition scans a row into a domain.Position struct.
func scanPosition(s scanner) (*domain.Position, error) {
	p := &domain.Position{}
	var exitTime sql.NullTime
	var exitReason sql.NullString
	var status string
	err := s.Scan(
		&p.ID, &p.Symbol, &p.EntryPrice, &p.Amount, &p.EntryTime, &p.EntryTier,
		&status, &p.ExitPrice, &exitTime, &p.Profit, &exitReason)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	if exitTime.Valid {
		p.ExitTime = exitTime.Time
	}
	if exitReason.Valid {
		p.ExitReason = domain.ExitReason(exitReason.String)
	}
	p.Status = domain.PositionStatus(status)
	return p, nil
}
