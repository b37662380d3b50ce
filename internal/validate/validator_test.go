package validate

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"wrdsquery/internal/types"
)

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

func priceResult(rows int) *types.QueryResult {
	result := &types.QueryResult{
		SQL:      "SELECT date, ticker, prc, ret FROM crsp.dsf",
		Columns:  []string{"date", "ticker", "prc", "ret"},
		RowCount: rows,
	}
	for i := 0; i < rows; i++ {
		result.Rows = append(result.Rows, types.Row{
			"date": "2022-01-03", "ticker": "AAPL", "prc": 182.01, "ret": 0.025,
		})
	}
	return result
}

func TestValidateNilResult(t *testing.T) {
	v := New(&fakeClient{}, zap.NewNop())
	verdict := v.Validate(context.Background(), "q", "", "", nil)
	if verdict.Valid {
		t.Error("nil result judged valid")
	}
	if verdict.Err == "" {
		t.Error("nil result verdict has no error")
	}
}

func TestValidateExecutionFailure(t *testing.T) {
	v := New(&fakeClient{}, zap.NewNop())
	result := types.FailedResult("SELECT 1", "relation does not exist")

	verdict := v.Validate(context.Background(), "q", "", result.SQL, result)
	if verdict.Valid {
		t.Error("failed execution judged valid")
	}
	if verdict.Err != "relation does not exist" {
		t.Errorf("Err = %q, want the execution failure text", verdict.Err)
	}
}

func TestValidateAcceptsVerdict(t *testing.T) {
	v := New(&fakeClient{response: `{"valid": true, "explanation": "matches the request"}`}, zap.NewNop())

	verdict := v.Validate(context.Background(), "AAPL prices", "", "SELECT ...", priceResult(3))
	if !verdict.Valid {
		t.Errorf("verdict = %+v, want valid", verdict)
	}
	if verdict.Explanation != "matches the request" {
		t.Errorf("Explanation = %q", verdict.Explanation)
	}
}

func TestValidateRejectsWithIssues(t *testing.T) {
	v := New(&fakeClient{response: `{"valid": false, "issues": ["wrong ticker"], "explanation": "MSFT requested"}`}, zap.NewNop())

	verdict := v.Validate(context.Background(), "MSFT prices", "", "SELECT ...", priceResult(3))
	if verdict.Valid {
		t.Error("verdict valid despite reported issues")
	}
	if len(verdict.Issues) != 1 || verdict.Issues[0] != "wrong ticker" {
		t.Errorf("Issues = %v", verdict.Issues)
	}
}

func TestValidateOptimisticOnServiceFailure(t *testing.T) {
	v := New(&fakeClient{err: context.DeadlineExceeded}, zap.NewNop())

	verdict := v.Validate(context.Background(), "q", "", "SELECT ...", priceResult(3))
	if !verdict.Valid {
		t.Error("non-empty result rejected when validation service is down")
	}
}

func TestValidateOptimisticOnGarbageResponse(t *testing.T) {
	v := New(&fakeClient{response: "surely not json"}, zap.NewNop())

	verdict := v.Validate(context.Background(), "q", "", "SELECT ...", priceResult(3))
	if !verdict.Valid {
		t.Error("non-empty result rejected on unparseable verdict")
	}
}

func TestValidateEmptyPessimisticOnServiceFailure(t *testing.T) {
	v := New(&fakeClient{err: context.DeadlineExceeded}, zap.NewNop())

	verdict := v.Validate(context.Background(), "q", "", "SELECT ...", priceResult(0))
	if verdict.Valid {
		t.Error("empty result accepted when arbitration is down")
	}
	if verdict.Err == "" {
		t.Error("empty-result rejection has no error text")
	}
}

func TestValidateEmptyExpected(t *testing.T) {
	v := New(&fakeClient{response: `{"valid": true, "explanation": "future dates have no data"}`}, zap.NewNop())

	verdict := v.Validate(context.Background(), "AAPL prices in 2099", "", "SELECT ...", priceResult(0))
	if !verdict.Valid {
		t.Errorf("expected empty result judged invalid: %+v", verdict)
	}
}

func TestValidateEmptyContradiction(t *testing.T) {
	v := New(&fakeClient{response: `{"valid": false, "error": "", "explanation": "contradictory filters"}`}, zap.NewNop())

	verdict := v.Validate(context.Background(), "q", "", "SELECT ...", priceResult(0))
	if verdict.Valid {
		t.Error("contradictory empty result judged valid")
	}
	if verdict.Err == "" {
		t.Error("invalid empty verdict must carry an error text")
	}
}
