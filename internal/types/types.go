// Package types provides shared type definitions used across wrdsquery packages.
// This package exists to break import cycles between the pipeline, the bus
// agents, and the persistence layer. Types here are foundational data
// structures with no complex dependencies.
package types

import "fmt"

// Row is a single result record keyed by column name.
type Row map[string]interface{}

// DateRange bounds a request in time. Empty strings mean an open bound.
// Dates are ISO (YYYY-MM-DD), matching the warehouse convention.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Empty reports whether neither bound is set.
func (d DateRange) Empty() bool {
	return d.Start == "" && d.End == ""
}

// Intent is the structured extraction of a natural-language data request.
// It is produced once per request, by the semantic parser or by the
// deterministic fallback extractor, and consumed exactly once to build SQL.
type Intent struct {
	Tables    []string  `json:"tables"`
	Tickers   []string  `json:"tickers"`
	DateRange DateRange `json:"date_range"`
	Metrics   []string  `json:"metrics"`
	Filters   []string  `json:"filters"`
	Grouping  []string  `json:"grouping"`
	Sorting   []string  `json:"sorting"`
	Limit     int       `json:"limit"`
}

// JoinKey names the column pair linking two tables.
type JoinKey struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// TableInfo describes one warehouse table. Loaded once at catalog
// construction and read-only for the lifetime of the process.
type TableInfo struct {
	Name        string             `json:"-"`
	Description string             `json:"description"`
	Fields      map[string]string  `json:"fields"`
	PrimaryKeys []string           `json:"primary_keys"`
	LinkingInfo map[string]JoinKey `json:"linking_info"`
}

// QueryResult is the outcome of one warehouse execution. Err carries the
// failure text when the statement could not run; a legitimately empty
// result has RowCount == 0 and an empty Err.
type QueryResult struct {
	SQL      string
	Columns  []string
	Rows     []Row
	RowCount int
	Err      string
}

// EmptyResult returns a result with no rows for the given statement.
func EmptyResult(sqlText string) *QueryResult {
	return &QueryResult{SQL: sqlText}
}

// FailedResult returns an empty result tagged with the failure text.
func FailedResult(sqlText, errText string) *QueryResult {
	return &QueryResult{SQL: sqlText, Err: errText}
}

// Verdict is the validator's judgement of a result set.
type Verdict struct {
	Valid       bool     `json:"valid"`
	Issues      []string `json:"issues"`
	Explanation string   `json:"explanation"`
	Err         string   `json:"error"`
}

// Category selects one of the fixed relational shapes in the store.
type Category string

const (
	CategoryStockPrices      Category = "stock_prices"
	CategoryFundamentals     Category = "fundamentals"
	CategoryAnalystEstimates Category = "analyst_estimates"
)

// QueryRecord is the persisted provenance row for one accepted run.
type QueryRecord struct {
	ID            int64
	SQL           string
	Timestamp     string
	UserQuery     string
	EnrichedQuery string
}

// DataLocation tells the caller where a run's output landed.
type DataLocation struct {
	CSVPath      string
	DatabasePath string
	QueryID      int64
}

// Response is the unified answer returned to the caller.
type Response struct {
	Success     bool
	SQL         string
	Explanation string
	RowCount    int
	Columns     []string
	Sample      []Row
	Location    *DataLocation
	Error       string
}

// ErrorResponse builds a failed response.
func ErrorResponse(format string, args ...interface{}) *Response {
	return &Response{Error: fmt.Sprintf(format, args...)}
}
