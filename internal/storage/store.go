// Package storage persists query provenance and typed result rows to a
// SQLite store and mirrors raw results to flat CSV exports. Rows are never
// updated; retention is an out-of-band concern.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"wrdsquery/internal/types"
)

// Store owns the structured store and the export directory.
type Store struct {
	db        *sql.DB
	dbPath    string
	exportDir string
	logger    *zap.Logger
}

// Open initializes the SQLite database at path and ensures the export
// directory exists.
func Open(dbPath, exportDir string, logger *zap.Logger) (*Store, error) {
	if dir := filepath.Dir(dbPath); dbPath != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	if exportDir != "" {
		if err := os.MkdirAll(exportDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create export directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logger.Debug("failed to set sqlite busy_timeout", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logger.Debug("failed to set sqlite journal_mode=WAL", zap.Error(err))
	}

	s := &Store{db: db, dbPath: dbPath, exportDir: exportDir, logger: logger.Named("storage")}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("store ready", zap.String("path", dbPath))
	return s, nil
}

// initialize creates the provenance table and the three fixed result
// shapes.
func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS queries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query_text TEXT,
		timestamp TEXT,
		user_query TEXT,
		enriched_query TEXT
	);

	CREATE TABLE IF NOT EXISTS stock_prices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query_id INTEGER,
		date TEXT,
		ticker TEXT,
		price REAL,
		return_value REAL,
		volume INTEGER,
		FOREIGN KEY (query_id) REFERENCES queries(id)
	);
	CREATE INDEX IF NOT EXISTS idx_stock_prices_query ON stock_prices(query_id);

	CREATE TABLE IF NOT EXISTS fundamentals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query_id INTEGER,
		fiscal_year INTEGER,
		ticker TEXT,
		total_assets REAL,
		total_liabilities REAL,
		net_sales REAL,
		net_income REAL,
		FOREIGN KEY (query_id) REFERENCES queries(id)
	);
	CREATE INDEX IF NOT EXISTS idx_fundamentals_query ON fundamentals(query_id);

	CREATE TABLE IF NOT EXISTS analyst_estimates (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query_id INTEGER,
		ticker TEXT,
		forecast_date TEXT,
		mean_estimate REAL,
		median_estimate REAL,
		num_estimates INTEGER,
		FOREIGN KEY (query_id) REFERENCES queries(id)
	);
	CREATE INDEX IF NOT EXISTS idx_analyst_estimates_query ON analyst_estimates(query_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// SaveQuery writes one provenance record and returns its surrogate key.
// Identical arguments always yield a fresh key; there is no deduplication.
func (s *Store) SaveQuery(sqlText, userQuery, enrichedQuery string) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO queries (query_text, timestamp, user_query, enriched_query) VALUES (?, ?, ?, ?)",
		sqlText, time.Now().Format(time.RFC3339), userQuery, enrichedQuery)
	if err != nil {
		return 0, fmt.Errorf("failed to save query: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read query id: %w", err)
	}
	s.logger.Debug("saved provenance record", zap.Int64("query_id", id))
	return id, nil
}

// SaveRows inserts result rows into the category's fixed shape, tagged
// with the originating query's key. Unrecognized categories are dropped
// silently; there is no generic schema path.
func (s *Store) SaveRows(category types.Category, rows []types.Row, queryID int64) error {
	var stmt string
	var bind func(types.Row) []interface{}

	switch category {
	case types.CategoryStockPrices:
		stmt = "INSERT INTO stock_prices (query_id, date, ticker, price, return_value, volume) VALUES (?, ?, ?, ?, ?, ?)"
		bind = func(r types.Row) []interface{} {
			return []interface{}{queryID, rowString(r, "date"), rowString(r, "ticker"),
				rowFloat(r, "prc"), rowFloat(r, "ret"), rowInt(r, "vol")}
		}
	case types.CategoryFundamentals:
		stmt = "INSERT INTO fundamentals (query_id, fiscal_year, ticker, total_assets, total_liabilities, net_sales, net_income) VALUES (?, ?, ?, ?, ?, ?, ?)"
		bind = func(r types.Row) []interface{} {
			return []interface{}{queryID, rowInt(r, "fyear"), rowString(r, "ticker"),
				rowFloat(r, "at"), rowFloat(r, "lt"), rowFloat(r, "sale"), rowFloat(r, "ni")}
		}
	case types.CategoryAnalystEstimates:
		stmt = "INSERT INTO analyst_estimates (query_id, ticker, forecast_date, mean_estimate, median_estimate, num_estimates) VALUES (?, ?, ?, ?, ?, ?)"
		bind = func(r types.Row) []interface{} {
			return []interface{}{queryID, rowString(r, "ticker"), rowString(r, "fpedats"),
				rowFloat(r, "meanest"), rowFloat(r, "medest"), rowInt(r, "numest")}
		}
	default:
		s.logger.Warn("dropping rows for unrecognized category", zap.String("category", string(category)))
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin insert: %w", err)
	}
	for _, row := range rows {
		if _, err := tx.Exec(stmt, bind(row)...); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert %s row: %w", category, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit inserts: %w", err)
	}

	s.logger.Debug("saved result rows",
		zap.String("category", string(category)),
		zap.Int("rows", len(rows)),
		zap.Int64("query_id", queryID))
	return nil
}

// QueryByID looks up one provenance record.
func (s *Store) QueryByID(id int64) (*types.QueryRecord, error) {
	var rec types.QueryRecord
	err := s.db.QueryRow(
		"SELECT id, query_text, timestamp, user_query, enriched_query FROM queries WHERE id = ?", id).
		Scan(&rec.ID, &rec.SQL, &rec.Timestamp, &rec.UserQuery, &rec.EnrichedQuery)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load query %d: %w", id, err)
	}
	return &rec, nil
}

// RowsByQueryID returns the persisted rows for one run and category.
func (s *Store) RowsByQueryID(category types.Category, queryID int64) ([]types.Row, error) {
	switch category {
	case types.CategoryStockPrices, types.CategoryFundamentals, types.CategoryAnalystEstimates:
	default:
		return nil, nil
	}

	rows, err := s.db.Query(
		fmt.Sprintf("SELECT * FROM %s WHERE query_id = ?", category), queryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s rows: %w", category, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []types.Row
	values := make([]interface{}, len(columns))
	ptrs := make([]interface{}, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		record := make(types.Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				record[col] = string(b)
			} else {
				record[col] = values[i]
			}
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

// Path returns the database file location for data-location reporting.
func (s *Store) Path() string { return s.dbPath }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

func rowString(r types.Row, key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format("2006-01-02")
	default:
		return fmt.Sprintf("%v", v)
	}
}

func rowFloat(r types.Row, key string) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}

func rowInt(r types.Row, key string) int64 {
	switch v := r[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}
