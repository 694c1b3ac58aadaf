package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pairsniper/internal/domain"
	"pairsniper/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Archive implements the ports.TradeArchive interface using SQLite.
// The ledger file is the source of truth for live state; this database
// only accumulates history for later analysis.
type Archive struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite archive.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewArchive creates a new SQLite archive instance.
func NewArchive(cfg Config) (*Archive, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite archive")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/trade_history.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite archive initialization failed")
		return nil, err
	}

	// Open database connection
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000") // WAL mode for better concurrency
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite archive initialization failed")
		return nil, err
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite archive initialization failed")
		return nil, err
	}

	// Set connection pool settings (important for SQLite)
	db.SetMaxOpenConns(1) // SQLite handles concurrency internally, but Go driver benefits from limiting connections
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	archive := &Archive{db: db, logger: cfg.Logger}

	if err := archive.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite archive initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Trade archive ready", map[string]interface{}{"path": dbPath})

	return archive, nil
}

// initializeSchema creates tables if they don't exist.
func (a *Archive) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS sales (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		token TEXT NOT NULL,
		symbol TEXT NOT NULL,
		reason TEXT NOT NULL,
		percentage REAL NOT NULL,
		tokens_sold REAL NOT NULL,
		proceeds_bnb REAL NOT NULL,
		gas_bnb REAL NOT NULL,
		tx_hash TEXT NOT NULL,
		executed_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS closed_trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		token TEXT NOT NULL,
		symbol TEXT NOT NULL,
		investment_bnb REAL NOT NULL,
		net_proceeds_bnb REAL NOT NULL,
		net_profit_bnb REAL NOT NULL,
		entry_time TIMESTAMP NOT NULL,
		exit_time TIMESTAMP NOT NULL,
		exit_reason TEXT NOT NULL,
		sale_count INTEGER NOT NULL,
		win INTEGER NOT NULL
	);
	-- Add indexes for common lookups
	CREATE INDEX IF NOT EXISTS idx_sales_token ON sales (token, executed_at);
	CREATE INDEX IF NOT EXISTS idx_closed_trades_exit_time ON closed_trades (exit_time);
	`
	_, err := a.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (a *Archive) Close() error {
	if a.db != nil {
		a.logger.Info(context.Background(), "Closing trade archive")
		return a.db.Close()
	}
	return nil
}

// RecordSale appends one executed sale.
func (a *Archive) RecordSale(ctx context.Context, token domain.Address, symbol string, sale *domain.SaleRecord) error {
	const query = `
	INSERT INTO sales (token, symbol, reason, percentage, tokens_sold, proceeds_bnb, gas_bnb, tx_hash, executed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := a.db.ExecContext(ctx, query,
		string(token), symbol, string(sale.Reason), sale.Percentage,
		sale.TokensSold, sale.Proceeds, sale.GasCost, sale.TxHash, sale.Time)
	if err != nil {
		return fmt.Errorf("failed to insert sale for %s: %w", symbol, err)
	}
	a.logger.Debug(ctx, "Sale archived", map[string]interface{}{"token": string(token), "reason": string(sale.Reason)})
	return nil
}

// RecordClose appends the closing summary of a position and returns its
// assigned ID.
func (a *Archive) RecordClose(ctx context.Context, trade *domain.ClosedTrade) (int64, error) {
	const query = `
	INSERT INTO closed_trades (token, symbol, investment_bnb, net_proceeds_bnb, net_profit_bnb,
	                           entry_time, exit_time, exit_reason, sale_count, win)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	win := 0
	if trade.Win {
		win = 1
	}
	result, err := a.db.ExecContext(ctx, query,
		string(trade.Token), trade.Symbol, trade.Investment, trade.NetProceeds, trade.NetProfit,
		trade.EntryTime, trade.ExitTime, string(trade.ExitReason), trade.SaleCount, win)
	if err != nil {
		return 0, fmt.Errorf("failed to insert closed trade for %s: %w", trade.Symbol, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for closed trade %s: %w", trade.Symbol, err)
	}
	trade.ID = id // Update the domain object with the ID
	a.logger.Debug(ctx, "Closed trade archived", map[string]interface{}{"tradeID": id, "symbol": trade.Symbol, "netProfit": trade.NetProfit})
	return id, nil
}

// RecentCloses retrieves the most recent closed trades, newest first.
func (a *Archive) RecentCloses(ctx context.Context, limit int) ([]*domain.ClosedTrade, error) {
	const query = `
	SELECT id, token, symbol, investment_bnb, net_proceeds_bnb, net_profit_bnb,
	       entry_time, exit_time, exit_reason, sale_count, win
	FROM closed_trades
	ORDER BY exit_time DESC LIMIT ?`

	rows, err := a.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query closed trades: %w", err)
	}
	defer rows.Close()

	trades := make([]*domain.ClosedTrade, 0)
	for rows.Next() {
		trade, err := scanClosedTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan closed trade: %w", err)
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating closed trade rows: %w", err)
	}
	return trades, nil
}

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanClosedTrade scans a row into a domain.ClosedTrade struct.
func scanClosedTrade(s scanner) (*domain.ClosedTrade, error) {
	t := &domain.ClosedTrade{}
	var token, reason string
	var win int
	err := s.Scan(
		&t.ID, &token, &t.Symbol, &t.Investment, &t.NetProceeds, &t.NetProfit,
		&t.EntryTime, &t.ExitTime, &reason, &t.SaleCount, &win)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	t.Token = domain.Address(token)
	t.ExitReason = domain.SellReason(reason)
	t.Win = win == 1
	return t, nil
}

var _ ports.TradeArchive = (*Archive)(nil)
