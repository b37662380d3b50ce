// Package catalog is the in-memory knowledge base of warehouse table
// metadata. It is loaded once at construction, preferring a persisted JSON
// snapshot and degrading to a built-in catalog, and is read-only afterward.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"wrdsquery/internal/llm"
	"wrdsquery/internal/types"
)

// Catalog answers "which tables are relevant to this text" and "describe
// this table".
type Catalog struct {
	tables map[string]types.TableInfo
	names  []string // sorted, for deterministic prompts
	client llm.Client
	logger *zap.Logger
}

// Load builds a catalog from the JSON snapshot at path. Absence or parse
// failure of the snapshot falls back to the built-in catalog; Load never
// fails.
func Load(path string, client llm.Client, logger *zap.Logger) *Catalog {
	c := &Catalog{
		client: client,
		logger: logger.Named("catalog"),
	}

	if tables, err := loadSnapshot(path); err == nil {
		c.tables = tables
		c.logger.Info("loaded schema snapshot",
			zap.String("path", path),
			zap.Int("tables", len(tables)))
	} else {
		c.tables = builtinTables()
		c.logger.Warn("schema snapshot unavailable, using built-in catalog",
			zap.String("path", path),
			zap.Error(err))
	}

	c.names = make([]string, 0, len(c.tables))
	for name := range c.tables {
		c.names = append(c.names, name)
	}
	sort.Strings(c.names)
	return c
}

func loadSnapshot(path string) (map[string]types.TableInfo, error) {
	if path == "" {
		return nil, fmt.Errorf("no snapshot path configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var raw map[string]types.TableInfo
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("snapshot contains no tables")
	}

	for name, info := range raw {
		info.Name = name
		raw[name] = info
	}
	return raw, nil
}

// AllTables returns every known table name, sorted.
func (c *Catalog) AllTables() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// TableInfo describes one table. The second return is false for unknown
// names.
func (c *Catalog) TableInfo(name string) (types.TableInfo, bool) {
	info, ok := c.tables[name]
	return info, ok
}

// TablesInfo collects metadata for the given names, skipping unknown ones.
func (c *Catalog) TablesInfo(names []string) map[string]types.TableInfo {
	out := make(map[string]types.TableInfo, len(names))
	for _, name := range names {
		if info, ok := c.tables[name]; ok {
			out[name] = info
		} else {
			c.logger.Warn("table not found in schema", zap.String("table", name))
		}
	}
	return out
}

const relevantTablesSystemPrompt = `You are an expert in financial databases, particularly WRDS (Wharton Research Data Services).
Your task is to identify which tables are relevant to a natural language query, using the available table information provided.
Respond with a comma-separated list of table names only, e.g. "crsp.dsf, comp.funda". Do not include any other text.`

// RelevantTables asks the completion service which known tables apply to
// the request text. Names the service invents are discarded; if the call
// fails the entire catalog is returned so downstream stages can still work.
func (c *Catalog) RelevantTables(ctx context.Context, text string) []string {
	var sb strings.Builder
	sb.WriteString("Natural language query: ")
	sb.WriteString(text)
	sb.WriteString("\n\nAvailable tables and their descriptions:\n")
	for _, name := range c.names {
		info := c.tables[name]
		fmt.Fprintf(&sb, "\nTable: %s\nDescription: %s\nPrimary keys: %s\n",
			name, info.Description, strings.Join(info.PrimaryKeys, ", "))
	}
	sb.WriteString("\nList only the table names relevant to answering this query.")

	response, err := c.client.CompleteWithSystem(ctx, relevantTablesSystemPrompt, sb.String())
	if err != nil {
		c.logger.Error("relevant-table selection failed, returning all tables", zap.Error(err))
		return c.AllTables()
	}

	var relevant []string
	for _, part := range strings.Split(response, ",") {
		name := strings.TrimSpace(part)
		if _, ok := c.tables[name]; ok {
			relevant = append(relevant, name)
		} else if name != "" {
			c.logger.Warn("discarding unknown table from selection", zap.String("table", name))
		}
	}

	if len(relevant) == 0 {
		c.logger.Warn("selection yielded no known tables, returning all tables")
		return c.AllTables()
	}

	c.logger.Info("identified relevant tables", zap.Strings("tables", relevant))
	return relevant
}
