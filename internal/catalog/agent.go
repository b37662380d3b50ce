package catalog

import (
	"context"

	"wrdsquery/internal/types"
)

// AgentName is the catalog's address on the bus.
const AgentName = "documentation_agent"

// Agent adapts the catalog to the message bus for the autonomous mode.
type Agent struct {
	catalog *Catalog
}

// NewAgent wraps a catalog.
func NewAgent(c *Catalog) *Agent {
	return &Agent{catalog: c}
}

// Name implements bus.Agent.
func (a *Agent) Name() string { return AgentName }

// Process answers raw-query messages with resolved table context and
// table-lookup messages with a single table's metadata. Response messages
// carry no work for the catalog and are dropped.
func (a *Agent) Process(ctx context.Context, msg types.Message) ([]types.Message, error) {
	if msg.Kind != types.MessageRequest {
		return nil, nil
	}

	switch msg.Payload.Kind {
	case types.PayloadRawQuery:
		req := msg.Payload.RawQuery
		relevant := a.catalog.RelevantTables(ctx, req.Text)

		receiver := req.Callback
		if receiver == "" {
			receiver = msg.Sender
		}
		return []types.Message{{
			Receiver: receiver,
			Kind:     types.MessageResponse,
			Payload: types.Payload{
				Kind: types.PayloadTablesContext,
				TablesContext: &types.TablesContext{
					Text:           req.Text,
					Relevant:       relevant,
					Tables:         a.catalog.TablesInfo(relevant),
					OriginalSender: msg.Sender,
				},
			},
		}}, nil

	case types.PayloadTableLookup:
		name := msg.Payload.TableLookup.Name
		detail := &types.TableDetail{Name: name}
		if info, ok := a.catalog.TableInfo(name); ok {
			detail.Info = &info
		}
		return []types.Message{{
			Receiver: msg.Sender,
			Kind:     types.MessageResponse,
			Payload:  types.Payload{Kind: types.PayloadTableDetail, TableDetail: detail},
		}}, nil
	}

	return nil, nil
}
