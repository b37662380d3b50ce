// Package query turns a natural-language request plus schema context into
// an executable statement, executes it against the warehouse, and applies
// deterministic post-generation corrections for known schema pitfalls.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"wrdsquery/internal/llm"
	"wrdsquery/internal/types"
	"wrdsquery/internal/warehouse"
)

// Builder owns intent parsing, SQL construction, and execution. It is
// stateless with respect to a given run except for the snapshot cache,
// which keeps each run's result keyed by run id for the convenience
// "give me the results" accessor.
type Builder struct {
	client llm.Client
	wh     warehouse.Conn
	logger *zap.Logger

	mu        sync.Mutex
	snapshots map[string]Snapshot
	lastID    string
}

// Snapshot is the cached outcome of one run.
type Snapshot struct {
	RunID       string
	Result      *types.QueryResult
	SQL         string
	Explanation string
	Text        string
	CSVPath     string
}

// NewBuilder wires the builder to its completion service and warehouse.
func NewBuilder(client llm.Client, wh warehouse.Conn, logger *zap.Logger) *Builder {
	return &Builder{
		client:    client,
		wh:        wh,
		logger:    logger.Named("query"),
		snapshots: make(map[string]Snapshot),
	}
}

// Execute sanitizes and corrects the statement, then runs it against the
// warehouse. A missing connection yields an empty result with Err set and
// a logged error; nothing is raised to the caller.
func (b *Builder) Execute(ctx context.Context, sqlText string) *types.QueryResult {
	cleaned := ApplyCorrections(Sanitize(sqlText))

	if b.wh == nil || !b.wh.Connected() {
		b.logger.Error("not connected to warehouse")
		return types.FailedResult(cleaned, "not connected to warehouse")
	}

	b.logger.Info("executing statement", zap.String("sql", cleaned))
	result, err := b.wh.Execute(ctx, cleaned)
	if err != nil {
		// The warehouse contract reports statement failures in-band; an
		// error here is a connector defect, absorbed the same way.
		b.logger.Error("warehouse execution failed", zap.Error(err))
		return types.FailedResult(cleaned, err.Error())
	}
	return result
}

const generateSQLSystemPrompt = `You are a SQL expert specializing in the WRDS (Wharton Research Data Services) database.
Generate a SQL query answering the user's request, using the table information provided.

Important notes for the WRDS database:
1. When joining tables, use the appropriate join conditions from the linking information.
2. Filter dates using the YYYY-MM-DD format.
3. Use company tickers with their exact spelling.
4. For tables like crsp.dsenames and crsp.msenames, use column names exactly as they appear in the schema.
5. The column for name end date is 'nameendt' (not 'nameenddt').

Provide your response in the following format:
` + "```sql\n<your SQL query here>\n```" + `

Explanation:
<your explanation of the query here>`

// GenerateSQL asks the completion service for a free-form statement plus
// explanation, given resolved table metadata. This is the model-generated
// variant; the deterministic template in BuildSQL is the primary path.
func (b *Builder) GenerateSQL(ctx context.Context, text string, tables map[string]types.TableInfo) (sqlText, explanation string, err error) {
	tablesJSON, err := json.MarshalIndent(tables, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("failed to encode table context: %w", err)
	}

	prompt := fmt.Sprintf("Request: %s\n\nRelevant table information:\n%s", text, tablesJSON)
	response, err := b.client.CompleteWithSystem(ctx, generateSQLSystemPrompt, prompt)
	if err != nil {
		return "", "", fmt.Errorf("sql generation failed: %w", err)
	}

	sqlText, explanation = extractSQLAndExplanation(response)
	if sqlText == "" {
		return "", "", fmt.Errorf("no sql found in generation response")
	}
	return ApplyCorrections(sqlText), explanation, nil
}

// extractSQLAndExplanation pulls the statement and explanation out of a
// generation response, accepting both fenced and labeled formats.
func extractSQLAndExplanation(response string) (sqlText, explanation string) {
	if idx := strings.Index(response, "```sql"); idx != -1 {
		rest := response[idx+len("```sql"):]
		if end := strings.Index(rest, "```"); end != -1 {
			sqlText = strings.TrimSpace(rest[:end])
		}
	} else if idx := strings.Index(response, "SQL QUERY:"); idx != -1 {
		rest := response[idx+len("SQL QUERY:"):]
		if end := strings.Index(rest, "EXPLANATION:"); end != -1 {
			sqlText = strings.TrimSpace(rest[:end])
		} else {
			sqlText = strings.TrimSpace(rest)
		}
	}

	for _, label := range []string{"Explanation:", "EXPLANATION:"} {
		if idx := strings.Index(response, label); idx != -1 {
			explanation = strings.TrimSpace(response[idx+len(label):])
			break
		}
	}
	return sqlText, explanation
}

// Remember caches a run's snapshot. Last write wins for the convenience
// accessor; snapshots remain retrievable by run id.
func (b *Builder) Remember(snap Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshots[snap.RunID] = snap
	b.lastID = snap.RunID
}

// Results returns the snapshot cached for the given run id.
func (b *Builder) Results(runID string) (Snapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap, ok := b.snapshots[runID]
	return snap, ok
}

// LastResults returns the most recently cached snapshot. With overlapping
// in-flight runs this races by design; callers that care use Results with
// an explicit run id.
func (b *Builder) LastResults() (Snapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lastID == "" {
		return Snapshot{}, false
	}
	snap, ok := b.snapshots[b.lastID]
	return snap, ok
}
