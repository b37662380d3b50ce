package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"wrdsquery/internal/types"
)

// DetectCategory infers which fixed result shape a result set belongs to
// from its column names. An empty category means the rows fit none of the
// known shapes and will not be persisted row-wise.
func DetectCategory(columns []string) types.Category {
	set := make(map[string]bool, len(columns))
	for _, c := range columns {
		set[strings.ToLower(c)] = true
	}
	switch {
	case set["prc"] || set["ret"]:
		return types.CategoryStockPrices
	case set["fyear"] || set["at"] || set["ni"]:
		return types.CategoryFundamentals
	case set["meanest"] || set["fpedats"]:
		return types.CategoryAnalystEstimates
	}
	return ""
}

// ExportCSV writes the raw result rows to the export directory as
// <category>_<ticker>_<timestamp>.csv and returns the file path. Column
// order follows the result set; values render with fmt semantics.
func (s *Store) ExportCSV(category types.Category, columns []string, rows []types.Row, ticker string) (string, error) {
	if s.exportDir == "" {
		return "", fmt.Errorf("no export directory configured")
	}
	if category == "" {
		category = "results"
	}
	if ticker == "" {
		ticker = "ALL"
	}

	name := fmt.Sprintf("%s_%s_%s.csv", category, ticker, time.Now().Format("20060102_150405"))
	path := filepath.Join(s.exportDir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		return "", fmt.Errorf("failed to write header: %w", err)
	}
	record := make([]string, len(columns))
	for _, row := range rows {
		for i, col := range columns {
			record[i] = cellString(row[col])
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("failed to write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to flush export: %w", err)
	}

	s.logger.Info("exported results",
		zap.String("path", path),
		zap.Int("rows", len(rows)))
	return path, nil
}

func cellString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case time.Time:
		return val.Format("2006-01-02")
	case float64:
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
