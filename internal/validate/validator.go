// Package validate independently judges whether returned rows (or the
// absence of rows) satisfy the original request. Validator unavailability
// never blocks the pipeline: non-empty results default to valid, empty
// results default to invalid.
package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"wrdsquery/internal/llm"
	"wrdsquery/internal/types"
)

// sampleSize bounds how many rows are shown to the validation service.
const sampleSize = 5

// Validator checks query results against the original request.
type Validator struct {
	client llm.Client
	logger *zap.Logger
}

// New builds a validator.
func New(client llm.Client, logger *zap.Logger) *Validator {
	return &Validator{client: client, logger: logger.Named("validate")}
}

const validateSystemPrompt = `Financial data validator. Check if query results match the user request.

Verify:
1. Requested tickers present
2. Time period matches
3. Required metrics/columns included
4. Data format correct

Return JSON: {"valid": true/false, "issues": ["problems found"], "explanation": "brief reason"}`

const emptySystemPrompt = `Financial data expert. Determine if empty query results are expected.

Check if:
1. The data might not exist (future dates, very specific criteria)
2. The query contains logical contradictions
3. The SQL query is too restrictive

Return JSON: {"valid": true/false, "error": "reason for error (if invalid)", "explanation": "brief reason"}`

// Validate judges the result of one run. Execution failures are invalid
// outright; zero-row results route to empty-result arbitration.
func (v *Validator) Validate(ctx context.Context, userQuery, enrichedQuery, sqlText string, result *types.QueryResult) types.Verdict {
	if result == nil {
		return types.Verdict{Err: "no result to validate"}
	}
	if result.Err != "" {
		return types.Verdict{Err: result.Err, Explanation: "query execution failed"}
	}
	if result.RowCount == 0 {
		return v.validateEmpty(ctx, userQuery, enrichedQuery, sqlText)
	}

	sample := result.Rows
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}
	sampleJSON, err := json.MarshalIndent(sample, "", "  ")
	if err != nil {
		sampleJSON = []byte("[]")
	}

	userMessage := fmt.Sprintf(`Original user query: %s

Enriched query: %s

SQL query: %s

Data columns: %s

Number of rows: %d

Sample data:
%s`,
		userQuery, enrichedQuery, sqlText,
		strings.Join(result.Columns, ", "), result.RowCount, sampleJSON)

	response, err := v.client.CompleteJSON(ctx, validateSystemPrompt, userMessage)
	if err != nil {
		// Optimistic failure mode: the pipeline must not block on
		// validator unavailability when rows came back.
		v.logger.Warn("validation service unavailable, accepting result", zap.Error(err))
		return types.Verdict{Valid: true}
	}

	var verdict types.Verdict
	if err := json.Unmarshal([]byte(response), &verdict); err != nil {
		v.logger.Warn("validation response unparseable, accepting result", zap.Error(err))
		return types.Verdict{Valid: true}
	}

	v.logger.Info("validation verdict",
		zap.Bool("valid", verdict.Valid),
		zap.Strings("issues", verdict.Issues))
	return verdict
}

// validateEmpty arbitrates whether an empty result is expected (future
// dates, narrow filters) or an execution defect. An unexplained empty
// result is treated as more suspicious than an unexplained non-empty one,
// so failures here default to invalid.
func (v *Validator) validateEmpty(ctx context.Context, userQuery, enrichedQuery, sqlText string) types.Verdict {
	userMessage := fmt.Sprintf(`Original user query: %s

Enriched query: %s

SQL query: %s

The query returned no results.`, userQuery, enrichedQuery, sqlText)

	response, err := v.client.CompleteJSON(ctx, emptySystemPrompt, userMessage)
	if err != nil {
		v.logger.Warn("empty-result arbitration unavailable, rejecting result", zap.Error(err))
		return types.Verdict{Err: "no results returned from query and validation failed"}
	}

	var verdict types.Verdict
	if err := json.Unmarshal([]byte(response), &verdict); err != nil {
		v.logger.Warn("empty-result arbitration unparseable, rejecting result", zap.Error(err))
		return types.Verdict{Err: "no results returned from query and validation failed"}
	}

	if !verdict.Valid && verdict.Err == "" {
		verdict.Err = "no results returned from query"
	}

	v.logger.Info("empty-result arbitration",
		zap.Bool("valid", verdict.Valid),
		zap.String("error", verdict.Err))
	return verdict
}
