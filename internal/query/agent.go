package query

import (
	"context"

	"github.com/google/uuid"

	"wrdsquery/internal/catalog"
	"wrdsquery/internal/types"
)

// AgentName is the builder's address on the bus.
const AgentName = "sql_agent"

// Agent adapts the builder to the message bus for the autonomous mode. A
// raw query is forwarded to the catalog agent for table context; the
// tables-context response comes back here, where the statement is
// generated, executed, and answered to the original sender.
type Agent struct {
	builder *Builder
}

// NewAgent wraps a builder.
func NewAgent(b *Builder) *Agent {
	return &Agent{builder: b}
}

// Name implements bus.Agent.
func (a *Agent) Name() string { return AgentName }

// Process implements bus.Agent.
func (a *Agent) Process(ctx context.Context, msg types.Message) ([]types.Message, error) {
	switch msg.Payload.Kind {
	case types.PayloadRawQuery:
		if msg.Kind != types.MessageRequest {
			return nil, nil
		}
		// Ask the catalog for table context; the response routes back to
		// this agent. Keeping the original sender on the forwarded message
		// lets the catalog record who the execution outcome belongs to.
		return []types.Message{{
			Sender:   msg.Sender,
			Receiver: catalog.AgentName,
			Kind:     types.MessageRequest,
			Payload: types.Payload{
				Kind: types.PayloadRawQuery,
				RawQuery: &types.RawQuery{
					Text:     msg.Payload.RawQuery.Text,
					Callback: AgentName,
				},
			},
		}}, nil

	case types.PayloadTablesContext:
		tc := msg.Payload.TablesContext
		return a.buildAndExecute(ctx, tc.Text, tc.Tables, tc.OriginalSender)

	case types.PayloadExecution:
		// Verdict-annotated execution coming back from the validator:
		// refresh the cached snapshot so result retrieval sees the
		// validated form.
		if msg.Kind != types.MessageResponse {
			return nil, nil
		}
		exec := msg.Payload.Execution
		a.builder.Remember(Snapshot{
			RunID:       exec.RunID,
			Result:      exec.Result,
			SQL:         exec.SQL,
			Explanation: exec.Explanation,
			Text:        exec.Text,
			CSVPath:     exec.CSVPath,
		})
		return nil, nil

	case types.PayloadGetResults:
		req := msg.Payload.GetResults
		var snap Snapshot
		var ok bool
		if req.RunID != "" {
			snap, ok = a.builder.Results(req.RunID)
		} else {
			snap, ok = a.builder.LastResults()
		}
		if !ok {
			snap = Snapshot{}
		}
		return []types.Message{{
			Receiver: msg.Sender,
			Kind:     types.MessageResponse,
			Payload: types.Payload{
				Kind: types.PayloadExecution,
				Execution: &types.Execution{
					RunID:       snap.RunID,
					Result:      snap.Result,
					SQL:         snap.SQL,
					Explanation: snap.Explanation,
					Text:        snap.Text,
					CSVPath:     snap.CSVPath,
				},
			},
		}}, nil
	}

	return nil, nil
}

func (a *Agent) buildAndExecute(ctx context.Context, text string, tables map[string]types.TableInfo, replyTo string) ([]types.Message, error) {
	runID := uuid.NewString()

	sqlText, explanation, err := a.builder.GenerateSQL(ctx, text, tables)
	if err != nil {
		// Model generation unavailable: fall back to the deterministic
		// template over the parsed intent.
		intent := a.builder.ParseIntent(ctx, text)
		sqlText = a.builder.BuildSQL(intent, tables)
		explanation = "constructed deterministically from parsed intent"
	}

	result := a.builder.Execute(ctx, sqlText)

	snap := Snapshot{
		RunID:       runID,
		Result:      result,
		SQL:         result.SQL,
		Explanation: explanation,
		Text:        text,
	}
	a.builder.Remember(snap)

	if replyTo == "" {
		return nil, nil
	}
	return []types.Message{{
		Receiver: replyTo,
		Kind:     types.MessageResponse,
		Payload: types.Payload{
			Kind: types.PayloadExecution,
			Execution: &types.Execution{
				RunID:       runID,
				Result:      result,
				SQL:         result.SQL,
				Explanation: explanation,
				Text:        text,
			},
		},
	}}, nil
}
