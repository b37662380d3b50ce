package query

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"wrdsquery/internal/types"
)

// fakeClient scripts completion responses for tests.
type fakeClient struct {
	response string
	err      error
}

func (f *fakeClient) Complete(ctx context.Context, prompt string) (string, error) {
	return f.response, f.err
}

func (f *fakeClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f.response, f.err
}

func (f *fakeClient) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f.response, f.err
}

func testBuilder(client *fakeClient) *Builder {
	return NewBuilder(client, nil, zap.NewNop())
}

func TestFallbackIntentDefaults(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantTable string
		wantCols  []string
	}{
		{
			name:      "unrecognized text defaults to daily prices",
			text:      "show me something",
			wantTable: "crsp.dsf",
			wantCols:  []string{"date", "ticker", "prc", "ret"},
		},
		{
			name:      "fundamental wording routes to compustat",
			text:      "fundamental data for Apple",
			wantTable: "comp.funda",
			wantCols:  []string{"fyear", "ticker", "at", "lt", "sale", "ni"},
		},
		{
			name:      "analyst wording routes to ibes",
			text:      "analyst estimates for MSFT",
			wantTable: "ibes.statsum",
			wantCols:  []string{"ticker", "fpedats", "meanest", "medest", "numest"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent := fallbackIntent(tt.text)
			if len(intent.Tables) != 1 || intent.Tables[0] != tt.wantTable {
				t.Errorf("tables = %v, want [%s]", intent.Tables, tt.wantTable)
			}
			if diff := cmp.Diff(tt.wantCols, intent.Metrics); diff != "" {
				t.Errorf("metrics mismatch (-want +got):\n%s", diff)
			}
			if intent.Limit != 100 {
				t.Errorf("limit = %d, want 100", intent.Limit)
			}
		})
	}
}

func TestFallbackIntentTickers(t *testing.T) {
	intent := fallbackIntent("daily prices for aapl and MSFT in 2022")
	want := []string{"AAPL", "MSFT"}
	if diff := cmp.Diff(want, intent.Tickers); diff != "" {
		t.Errorf("tickers mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractDateRange(t *testing.T) {
	tests := []struct {
		text       string
		start, end string
		ok         bool
	}{
		{"prices for AAPL", "", "", false},
		{"prices on 2022-01-03", "2022-01-03", "2022-01-03", true},
		{"from 2022-01-03 to 2022-01-07", "2022-01-03", "2022-01-07", true},
	}
	for _, tt := range tests {
		start, end, ok := extractDateRange(tt.text)
		if start != tt.start || end != tt.end || ok != tt.ok {
			t.Errorf("extractDateRange(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.text, start, end, ok, tt.start, tt.end, tt.ok)
		}
	}
}

func TestParseIntentFallsBackOnFailure(t *testing.T) {
	b := testBuilder(&fakeClient{err: context.DeadlineExceeded})
	intent := b.ParseIntent(context.Background(), "daily stock prices for AAPL")
	if len(intent.Tables) == 0 || len(intent.Metrics) == 0 {
		t.Fatalf("fallback intent missing defaults: %+v", intent)
	}
	if intent.Tables[0] != "crsp.dsf" {
		t.Errorf("table = %s, want crsp.dsf", intent.Tables[0])
	}
}

func TestParseIntentFallsBackOnBadJSON(t *testing.T) {
	b := testBuilder(&fakeClient{response: "not json at all"})
	intent := b.ParseIntent(context.Background(), "prices for TSLA")
	if len(intent.Tables) == 0 {
		t.Fatal("fallback intent has no tables")
	}
	if len(intent.Tickers) != 1 || intent.Tickers[0] != "TSLA" {
		t.Errorf("tickers = %v, want [TSLA]", intent.Tickers)
	}
}

func TestParseIntentUsesParsedJSON(t *testing.T) {
	b := testBuilder(&fakeClient{response: `{
		"tables": ["comp.funda"],
		"tickers": ["AAPL"],
		"date_range": {"start": "2020-01-01", "end": "2021-12-31"},
		"metrics": ["fyear", "ni"],
		"limit": 10
	}`})
	intent := b.ParseIntent(context.Background(), "whatever")
	if intent.Tables[0] != "comp.funda" {
		t.Errorf("table = %s, want comp.funda", intent.Tables[0])
	}
	if intent.Limit != 10 {
		t.Errorf("limit = %d, want 10", intent.Limit)
	}
	if intent.DateRange.Start != "2020-01-01" {
		t.Errorf("start = %s", intent.DateRange.Start)
	}
}

func TestBuildSQLDailyPrices(t *testing.T) {
	b := testBuilder(&fakeClient{})
	intent := types.Intent{
		Tables:    []string{"crsp.dsf"},
		Tickers:   []string{"AAPL"},
		DateRange: types.DateRange{Start: "2022-01-03", End: "2022-01-07"},
		Metrics:   []string{"date", "ticker", "prc", "ret"},
		Limit:     100,
	}

	sql := b.BuildSQL(intent, nil)

	for _, want := range []string{
		"SELECT date, ticker, prc, ret",
		"FROM crsp.dsf",
		"ticker IN ('AAPL')",
		"date >= '2022-01-03'",
		"date <= '2022-01-07'",
		"ORDER BY date",
		"LIMIT 100",
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("statement missing %q:\n%s", want, sql)
		}
	}
}

func TestBuildSQLJoinsLinkedTables(t *testing.T) {
	b := testBuilder(&fakeClient{})
	tables := map[string]types.TableInfo{
		"crsp.dsf": {
			LinkingInfo: map[string]types.JoinKey{
				"crsp.dsenames": {From: "permno", To: "permno"},
			},
		},
		"crsp.dsenames": {},
	}
	intent := types.Intent{
		Tables:  []string{"crsp.dsf", "crsp.dsenames"},
		Metrics: []string{"date", "prc"},
		Limit:   50,
	}

	sql := b.BuildSQL(intent, tables)
	if !strings.Contains(sql, "JOIN crsp.dsenames USING (permno)") {
		t.Errorf("expected USING join:\n%s", sql)
	}
}

func TestBuildSQLSkipsUnlinkedTables(t *testing.T) {
	b := testBuilder(&fakeClient{})
	intent := types.Intent{
		Tables:  []string{"crsp.dsf", "ibes.statsum"},
		Metrics: []string{"prc"},
		Limit:   10,
	}

	sql := b.BuildSQL(intent, map[string]types.TableInfo{})
	if strings.Contains(sql, "JOIN") {
		t.Errorf("join emitted without documented link:\n%s", sql)
	}
}

func TestBuildSQLEscapesTickers(t *testing.T) {
	b := testBuilder(&fakeClient{})
	intent := types.Intent{
		Tables:  []string{"crsp.dsf"},
		Tickers: []string{"O'REILLY"},
		Metrics: []string{"prc"},
		Limit:   10,
	}

	sql := b.BuildSQL(intent, nil)
	if !strings.Contains(sql, "'O''REILLY'") {
		t.Errorf("ticker not escaped:\n%s", sql)
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "SELECT 1", "SELECT 1"},
		{"sql fence", "```sql\nSELECT 1\n```", "SELECT 1"},
		{"bare fence", "```\nSELECT 1\n```", "SELECT 1"},
		{"padding", "  SELECT 1  ", "SELECT 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestApplyCorrections(t *testing.T) {
	in := "SELECT ticker FROM crsp.dsenames WHERE NAMEENDDT >= '2022-01-01'"
	got := ApplyCorrections(in)
	if strings.Contains(strings.ToLower(got), "nameenddt") {
		t.Errorf("known-bad column survived correction: %s", got)
	}
	if !strings.Contains(got, "nameendt") {
		t.Errorf("corrected column missing: %s", got)
	}
}

func TestApplyCorrectionsLeavesOtherTablesAlone(t *testing.T) {
	in := "SELECT nameenddt FROM some.other_table"
	if got := ApplyCorrections(in); got != in {
		t.Errorf("statement rewritten without affected table: %s", got)
	}
}

func TestEnrichedText(t *testing.T) {
	intent := types.Intent{
		Tables:    []string{"crsp.dsf"},
		Tickers:   []string{"AAPL"},
		DateRange: types.DateRange{Start: "2022-01-03", End: "2022-01-07"},
		Metrics:   []string{"date", "prc"},
		Limit:     100,
	}
	got := EnrichedText(intent)
	for _, want := range []string{"tables=crsp.dsf", "tickers=AAPL", "range=2022-01-03..2022-01-07", "limit=100"} {
		if !strings.Contains(got, want) {
			t.Errorf("enriched text missing %q: %s", want, got)
		}
	}
}
