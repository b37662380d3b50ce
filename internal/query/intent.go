package query

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"wrdsquery/internal/types"
)

const parseIntentSystemPrompt = `You are a financial data expert specialized in the WRDS (Wharton Research Data Services) database.
Your task is to parse natural language queries about financial data and extract key parameters.

For each query, identify and extract the following information in JSON format:
1. tables: which WRDS tables are needed (e.g. crsp.dsf, comp.funda)
2. tickers: company identifiers mentioned (e.g. AAPL, MSFT)
3. date_range: {"start": "YYYY-MM-DD", "end": "YYYY-MM-DD"} bounds for the data
4. metrics: column names requested (e.g. prc, ret)
5. filters: any additional filtering conditions as SQL predicates
6. grouping: columns to group by
7. sorting: columns to order by
8. limit: maximum number of records to return

Return ONLY a valid JSON object with these fields.`

// knownTickers is the fixed vocabulary the fallback extractor scans for.
var knownTickers = []string{"AAPL", "MSFT", "AMZN", "GOOGL", "META", "TSLA", "NVDA"}

// Default column sets per table family, used whenever the parser comes
// back empty.
var (
	priceMetrics       = []string{"date", "ticker", "prc", "ret"}
	fundamentalMetrics = []string{"fyear", "ticker", "at", "lt", "sale", "ni"}
	estimateMetrics    = []string{"ticker", "fpedats", "meanest", "medest", "numest"}
	defaultPriceTable  = "crsp.dsf"
	defaultFundaTable  = "comp.funda"
	defaultEstimateTbl = "ibes.statsum"
	defaultRecordLimit = 100
)

// ParseIntent extracts a structured Intent from the request text. Any
// transport failure or malformed JSON from the completion service routes
// to the deterministic fallback extractor, so the returned intent always
// has non-empty tables and metrics.
func (b *Builder) ParseIntent(ctx context.Context, text string) types.Intent {
	response, err := b.client.CompleteJSON(ctx, parseIntentSystemPrompt, text)
	if err != nil {
		b.logger.Warn("semantic parse unavailable, using fallback extractor", zap.Error(err))
		return fallbackIntent(text)
	}

	var intent types.Intent
	if err := json.Unmarshal([]byte(response), &intent); err != nil {
		b.logger.Warn("semantic parse returned unusable structure, using fallback extractor",
			zap.Error(err))
		return fallbackIntent(text)
	}

	normalizeIntent(&intent)
	return intent
}

// fallbackIntent is the deterministic keyword-based extractor used when
// semantic parsing is unavailable. It scans for known instrument
// identifiers and domain keywords and always yields non-empty tables and
// metrics.
func fallbackIntent(text string) types.Intent {
	lower := strings.ToLower(text)

	intent := types.Intent{Limit: defaultRecordLimit}

	for _, ticker := range knownTickers {
		if strings.Contains(lower, strings.ToLower(ticker)) {
			intent.Tickers = append(intent.Tickers, ticker)
		}
	}

	switch {
	case containsAny(lower, "fundamental", "balance", "sheet", "income", "statement"):
		intent.Tables = []string{defaultFundaTable}
		intent.Metrics = append([]string(nil), fundamentalMetrics...)
	case containsAny(lower, "analyst", "estimate", "forecast", "eps"):
		intent.Tables = []string{defaultEstimateTbl}
		intent.Metrics = append([]string(nil), estimateMetrics...)
	default:
		// Price-style wording, or nothing recognized at all: the price
		// table is the documented default.
		intent.Tables = []string{defaultPriceTable}
		intent.Metrics = append([]string(nil), priceMetrics...)
	}

	if start, end, ok := extractDateRange(text); ok {
		intent.DateRange = types.DateRange{Start: start, End: end}
	}

	return intent
}

// normalizeIntent injects the documented defaults wherever the parser
// returned nothing, preserving the invariant that tables and metrics are
// never both empty.
func normalizeIntent(intent *types.Intent) {
	if len(intent.Tables) == 0 {
		intent.Tables = []string{defaultPriceTable}
	}
	if len(intent.Metrics) == 0 {
		switch {
		case strings.HasPrefix(intent.Tables[0], "comp."):
			intent.Metrics = append([]string(nil), fundamentalMetrics...)
		case strings.HasPrefix(intent.Tables[0], "ibes."):
			intent.Metrics = append([]string(nil), estimateMetrics...)
		default:
			intent.Metrics = append([]string(nil), priceMetrics...)
		}
	}
	if intent.Limit <= 0 {
		intent.Limit = defaultRecordLimit
	}
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// extractDateRange finds the first two ISO dates in the text and treats
// them as inclusive bounds; a single date bounds both ends.
func extractDateRange(text string) (start, end string, ok bool) {
	dates := isoDatePattern.FindAllString(text, 2)
	switch len(dates) {
	case 0:
		return "", "", false
	case 1:
		return dates[0], dates[0], true
	default:
		return dates[0], dates[1], true
	}
}

// EnrichedText renders the resolved intent as a normalized request
// summary, stored alongside the raw request in the provenance record.
func EnrichedText(intent types.Intent) string {
	parts := []string{
		fmt.Sprintf("tables=%s", strings.Join(intent.Tables, ",")),
		fmt.Sprintf("metrics=%s", strings.Join(intent.Metrics, ",")),
	}
	if len(intent.Tickers) > 0 {
		parts = append(parts, fmt.Sprintf("tickers=%s", strings.Join(intent.Tickers, ",")))
	}
	if !intent.DateRange.Empty() {
		parts = append(parts, fmt.Sprintf("range=%s..%s", intent.DateRange.Start, intent.DateRange.End))
	}
	if len(intent.Filters) > 0 {
		parts = append(parts, fmt.Sprintf("filters=%s", strings.Join(intent.Filters, " AND ")))
	}
	parts = append(parts, fmt.Sprintf("limit=%d", intent.Limit))
	return strings.Join(parts, "; ")
}
