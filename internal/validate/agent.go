package validate

import (
	"context"

	"wrdsquery/internal/types"
)

// AgentName is the validator's address on the bus.
const AgentName = "validator_agent"

// Agent adapts the validator to the message bus.
type Agent struct {
	validator *Validator
}

// NewAgent wraps a validator.
func NewAgent(v *Validator) *Agent {
	return &Agent{validator: v}
}

// Name implements bus.Agent.
func (a *Agent) Name() string { return AgentName }

// Process validates execution payloads and answers with a verdict encoded
// as an execution payload whose result Err is set when invalid.
func (a *Agent) Process(ctx context.Context, msg types.Message) ([]types.Message, error) {
	if msg.Payload.Kind != types.PayloadExecution {
		return nil, nil
	}

	exec := msg.Payload.Execution
	verdict := a.validator.Validate(ctx, exec.Text, "", exec.SQL, exec.Result)

	out := *exec
	if !verdict.Valid && out.Result != nil && out.Result.Err == "" {
		result := *out.Result
		result.Err = verdict.Err
		out.Result = &result
	}
	out.Explanation = verdict.Explanation

	return []types.Message{{
		Receiver: msg.Sender,
		Kind:     types.MessageResponse,
		Payload:  types.Payload{Kind: types.PayloadExecution, Execution: &out},
	}}, nil
}
