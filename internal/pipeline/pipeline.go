// Package pipeline drives one request through the full lifecycle: table
// identification, statement construction, execution, validation, and
// persistence. The orchestrator owns the iteration budget and the wall
// clock budget; every stage failure degrades to a structured error
// response rather than a panic or a hang.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wrdsquery/internal/catalog"
	"wrdsquery/internal/query"
	"wrdsquery/internal/storage"
	"wrdsquery/internal/types"
	"wrdsquery/internal/validate"
)

// State names the lifecycle phases a run moves through.
type State string

const (
	StateReceived         State = "RECEIVED"
	StateTablesIdentified State = "TABLES_IDENTIFIED"
	StateQueryBuilt       State = "QUERY_BUILT"
	StateExecuted         State = "EXECUTED"
	StateValidated        State = "VALIDATED"
	StatePersisted        State = "PERSISTED"
	StateReturned         State = "RETURNED"
	StateFailed           State = "FAILED"
)

// Orchestrator composes the pipeline stages. It holds no per-run state;
// everything about a run lives on the stack of Run.
type Orchestrator struct {
	catalog   *catalog.Catalog
	builder   *query.Builder
	validator *validate.Validator
	store     *storage.Store
	logger    *zap.Logger

	maxIterations int
	budget        time.Duration
}

// New wires an orchestrator. maxIterations bounds validation retries and
// budget bounds wall time per run.
func New(cat *catalog.Catalog, builder *query.Builder, validator *validate.Validator, store *storage.Store, maxIterations int, budget time.Duration, logger *zap.Logger) *Orchestrator {
	if maxIterations <= 0 {
		maxIterations = 20
	}
	if budget <= 0 {
		budget = 60 * time.Second
	}
	return &Orchestrator{
		catalog:       cat,
		builder:       builder,
		validator:     validator,
		store:         store,
		logger:        logger.Named("pipeline"),
		maxIterations: maxIterations,
		budget:        budget,
	}
}

// Run processes one natural-language request end to end and always
// returns a response; failures are reported in-band via Success=false.
func (o *Orchestrator) Run(ctx context.Context, text string) *types.Response {
	runID := uuid.NewString()
	log := o.logger.With(zap.String("run_id", runID))

	ctx, cancel := context.WithTimeout(ctx, o.budget)
	defer cancel()

	log.Info("request received", zap.String("state", string(StateReceived)), zap.String("text", text))

	tableNames := o.catalog.RelevantTables(ctx, text)
	tables := o.catalog.TablesInfo(tableNames)
	if len(tables) == 0 {
		log.Error("no usable table metadata", zap.String("state", string(StateFailed)))
		return types.ErrorResponse("no usable table metadata for request")
	}
	log.Info("tables identified",
		zap.String("state", string(StateTablesIdentified)),
		zap.Strings("tables", tableNames))

	intent := o.builder.ParseIntent(ctx, text)
	enriched := query.EnrichedText(intent)

	var (
		result      *types.QueryResult
		verdict     types.Verdict
		sqlText     string
		explanation string
	)

	// Bounded rebuild loop: an invalid verdict feeds its issues back into
	// the next construction attempt until the iteration or time budget
	// runs out.
	request := text
	for attempt := 1; attempt <= o.maxIterations; attempt++ {
		if err := ctx.Err(); err != nil {
			log.Warn("budget exhausted", zap.Int("attempt", attempt), zap.Error(err))
			break
		}

		sqlText, explanation = o.buildStatement(ctx, request, intent, tables)
		log.Info("statement built",
			zap.String("state", string(StateQueryBuilt)),
			zap.Int("attempt", attempt),
			zap.String("sql", sqlText))

		result = o.builder.Execute(ctx, sqlText)
		log.Info("statement executed",
			zap.String("state", string(StateExecuted)),
			zap.Int("rows", result.RowCount),
			zap.String("error", result.Err))

		verdict = o.validator.Validate(ctx, text, enriched, result.SQL, result)
		log.Info("result validated",
			zap.String("state", string(StateValidated)),
			zap.Bool("valid", verdict.Valid))
		if verdict.Valid {
			break
		}

		// Steer the next attempt with the reported issues.
		if len(verdict.Issues) > 0 {
			request = fmt.Sprintf("%s\n\nThe previous attempt had these problems: %s",
				text, strings.Join(verdict.Issues, "; "))
		}
	}

	if result == nil {
		return types.ErrorResponse("run budget exhausted before execution")
	}
	if !verdict.Valid {
		reason := verdict.Err
		if reason == "" && len(verdict.Issues) > 0 {
			reason = strings.Join(verdict.Issues, "; ")
		}
		if reason == "" {
			reason = "result failed validation"
		}
		log.Error("run failed validation",
			zap.String("state", string(StateFailed)),
			zap.String("reason", reason))
		return &types.Response{SQL: result.SQL, Explanation: explanation, Error: reason}
	}

	location := o.persist(text, enriched, result, intent, log)

	o.builder.Remember(query.Snapshot{
		RunID:       runID,
		Result:      result,
		SQL:         result.SQL,
		Explanation: explanation,
		Text:        text,
		CSVPath:     location.CSVPath,
	})

	sample := result.Rows
	if len(sample) > 5 {
		sample = sample[:5]
	}
	log.Info("run complete",
		zap.String("state", string(StateReturned)),
		zap.Int("rows", result.RowCount))
	return &types.Response{
		Success:     true,
		SQL:         result.SQL,
		Explanation: explanation,
		RowCount:    result.RowCount,
		Columns:     result.Columns,
		Sample:      sample,
		Location:    location,
	}
}

// buildStatement prefers model generation and degrades to the
// deterministic template over the parsed intent.
func (o *Orchestrator) buildStatement(ctx context.Context, text string, intent types.Intent, tables map[string]types.TableInfo) (sqlText, explanation string) {
	sqlText, explanation, err := o.builder.GenerateSQL(ctx, text, tables)
	if err == nil {
		return sqlText, explanation
	}
	o.logger.Warn("model generation unavailable, using deterministic template", zap.Error(err))
	return o.builder.BuildSQL(intent, tables), "constructed deterministically from parsed intent"
}

// persist records provenance and, when the result fits a known category,
// the typed rows and a CSV export. Persistence failures are logged and
// reported through the returned location, never raised.
func (o *Orchestrator) persist(text, enriched string, result *types.QueryResult, intent types.Intent, log *zap.Logger) *types.DataLocation {
	location := &types.DataLocation{}
	if o.store == nil {
		return location
	}

	queryID, err := o.store.SaveQuery(result.SQL, text, enriched)
	if err != nil {
		log.Error("failed to persist provenance", zap.Error(err))
		return location
	}
	location.QueryID = queryID
	location.DatabasePath = o.store.Path()

	category := storage.DetectCategory(result.Columns)
	if category == "" {
		log.Warn("result matches no persisted category, skipping row persistence",
			zap.Strings("columns", result.Columns))
	} else if err := o.store.SaveRows(category, result.Rows, queryID); err != nil {
		log.Error("failed to persist rows", zap.Error(err))
	}

	ticker := "ALL"
	if len(intent.Tickers) > 0 {
		ticker = intent.Tickers[0]
	}
	csvPath, err := o.store.ExportCSV(category, result.Columns, result.Rows, ticker)
	if err != nil {
		log.Error("failed to export results", zap.Error(err))
	} else {
		location.CSVPath = csvPath
	}

	log.Info("results persisted",
		zap.String("state", string(StatePersisted)),
		zap.Int64("query_id", queryID),
		zap.String("csv", location.CSVPath))
	return location
}
