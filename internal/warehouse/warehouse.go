// Package warehouse abstracts the external tabular data warehouse. The
// pipeline treats "execute this statement" as a capability it invokes; the
// Postgres implementation below is the production connector (WRDS serves
// its tables over Postgres).
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"sync"

	// Postgres driver for database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"wrdsquery/internal/config"
	"wrdsquery/internal/types"
)

// Conn is the warehouse connection contract. Implementations never assume
// a pre-established connection; Execute must be safe to call before
// Connect and report the condition through the result's Err field.
type Conn interface {
	Connect(ctx context.Context) error
	Connected() bool
	Execute(ctx context.Context, sqlText string) (*types.QueryResult, error)
	Close() error
}

// Postgres connects to a Postgres-backed warehouse via the pgx stdlib
// driver.
type Postgres struct {
	cfg    config.WarehouseConfig
	logger *zap.Logger

	mu        sync.Mutex
	db        *sql.DB
	connected bool
}

// NewPostgres builds an unconnected warehouse handle.
func NewPostgres(cfg config.WarehouseConfig, logger *zap.Logger) *Postgres {
	return &Postgres{cfg: cfg, logger: logger.Named("warehouse")}
}

// NewPostgresFromDB wraps an existing database handle, marking it
// connected. Used by tests and by callers that manage their own pool.
func NewPostgresFromDB(db *sql.DB, logger *zap.Logger) *Postgres {
	return &Postgres{db: db, connected: true, logger: logger.Named("warehouse")}
}

// Connect opens and pings the warehouse connection.
func (p *Postgres) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.connected {
		return nil
	}
	if p.cfg.Username == "" || p.cfg.Password == "" {
		return fmt.Errorf("warehouse credentials not configured")
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(p.cfg.Username),
		url.QueryEscape(p.cfg.Password),
		p.cfg.Host, p.cfg.Port, p.cfg.Database, p.cfg.SSLMode)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open warehouse connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to reach warehouse: %w", err)
	}

	p.db = db
	p.connected = true
	p.logger.Info("connected to warehouse",
		zap.String("host", p.cfg.Host),
		zap.String("database", p.cfg.Database))
	return nil
}

// Connected reports whether Execute can reach the warehouse.
func (p *Postgres) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Execute runs a statement and scans every row into a generic record. A
// missing connection or a rejected statement yields an empty result with
// Err set, never a raised fault.
func (p *Postgres) Execute(ctx context.Context, sqlText string) (*types.QueryResult, error) {
	p.mu.Lock()
	db, connected := p.db, p.connected
	p.mu.Unlock()

	if !connected || db == nil {
		p.logger.Error("execute called without warehouse connection")
		return types.FailedResult(sqlText, "not connected to warehouse"), nil
	}

	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		p.logger.Error("warehouse rejected statement", zap.Error(err))
		return types.FailedResult(sqlText, err.Error()), nil
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return types.FailedResult(sqlText, err.Error()), nil
	}

	result := &types.QueryResult{SQL: sqlText, Columns: columns}
	values := make([]interface{}, len(columns))
	ptrs := make([]interface{}, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			p.logger.Error("failed to scan warehouse row", zap.Error(err))
			return types.FailedResult(sqlText, err.Error()), nil
		}
		record := make(types.Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				record[col] = string(b)
			} else {
				record[col] = values[i]
			}
		}
		result.Rows = append(result.Rows, record)
	}
	if err := rows.Err(); err != nil {
		p.logger.Error("error iterating warehouse rows", zap.Error(err))
		return types.FailedResult(sqlText, err.Error()), nil
	}

	result.RowCount = len(result.Rows)
	p.logger.Info("statement executed", zap.Int("rows", result.RowCount))
	return result, nil
}

// Close releases the connection.
func (p *Postgres) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = false
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}
