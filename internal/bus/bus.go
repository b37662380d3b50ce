// Package bus is the message-passing coordination layer between agents.
// Delivery is local and at-most-once: a message lives on the receiver's
// queue until the receiver consumes it, and Send drains the receiver's
// queue to completion before returning. There is no persistence and no
// parallel dispatch; the bus exists for the autonomous queue-polling mode
// and for the unknown-receiver sentinel contract.
package bus

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wrdsquery/internal/types"
)

// Agent is the processing hook every bus participant implements. Process
// consumes one message and may return follow-up messages, which the bus
// routes on the caller's behalf.
type Agent interface {
	Name() string
	Process(ctx context.Context, msg types.Message) ([]types.Message, error)
}

// Bus is a name-based directory of agents with per-agent inbound queues.
type Bus struct {
	mu     sync.Mutex
	agents map[string]Agent
	queues map[string][]types.Message
	logger *zap.Logger
}

// New creates an empty bus.
func New(logger *zap.Logger) *Bus {
	return &Bus{
		agents: make(map[string]Agent),
		queues: make(map[string][]types.Message),
		logger: logger.Named("bus"),
	}
}

// Connect registers an agent under its name, making it addressable.
func (b *Bus) Connect(a Agent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.agents[a.Name()] = a
	b.logger.Info("agent connected", zap.String("agent", a.Name()))
}

// Send delivers a message and synchronously drains the receiver's queue to
// completion, routing any replies the same way. It returns the message ID,
// or the empty string when the receiver is not registered (nothing is
// enqueued in that case); callers must check for the empty sentinel.
func (b *Bus) Send(ctx context.Context, msg types.Message) string {
	id := b.Post(ctx, msg)
	if id == "" {
		return ""
	}
	b.drain(ctx, msg.Receiver)
	return id
}

// Post enqueues a message without processing it, for deferred delivery via
// Run. The empty-string sentinel contract matches Send.
func (b *Bus) Post(ctx context.Context, msg types.Message) string {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	b.mu.Lock()
	_, ok := b.agents[msg.Receiver]
	if ok {
		b.queues[msg.Receiver] = append(b.queues[msg.Receiver], msg)
	}
	b.mu.Unlock()

	if !ok {
		b.logger.Error("cannot send message to unknown agent",
			zap.String("receiver", msg.Receiver),
			zap.String("sender", msg.Sender))
		return ""
	}

	b.logger.Debug("message enqueued",
		zap.String("id", msg.ID),
		zap.String("sender", msg.Sender),
		zap.String("receiver", msg.Receiver),
		zap.String("kind", string(msg.Kind)))
	return msg.ID
}

// drain processes the named agent's queue until it is empty. Replies are
// sent (and therefore drained) recursively, so control returns only when
// no work remains downstream.
func (b *Bus) drain(ctx context.Context, name string) {
	for {
		b.mu.Lock()
		agent, ok := b.agents[name]
		queue := b.queues[name]
		if !ok || len(queue) == 0 {
			b.mu.Unlock()
			return
		}
		msg := queue[0]
		b.queues[name] = queue[1:]
		b.mu.Unlock()

		b.dispatch(ctx, agent, msg)
	}
}

func (b *Bus) dispatch(ctx context.Context, agent Agent, msg types.Message) {
	replies, err := agent.Process(ctx, msg)
	if err != nil {
		b.logger.Error("agent failed to process message",
			zap.String("agent", agent.Name()),
			zap.String("id", msg.ID),
			zap.Error(err))
		return
	}
	for _, reply := range replies {
		if reply.Sender == "" {
			reply.Sender = agent.Name()
		}
		b.Send(ctx, reply)
	}
}

// Pending reports the number of queued messages across all agents.
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, q := range b.queues {
		n += len(q)
	}
	return n
}

// Run polls each agent's queue round-robin until no work remains, the
// iteration budget is spent, or the wall-clock budget expires. This is the
// liveness guard for the queue-only coordination mode: a downstream agent
// that never responds is abandoned when the budget runs out.
func (b *Bus) Run(ctx context.Context, maxIterations int, budget time.Duration) {
	deadline := time.Now().Add(budget)

	for iteration := 0; iteration < maxIterations && time.Now().Before(deadline); iteration++ {
		if ctx.Err() != nil {
			return
		}

		b.mu.Lock()
		names := make([]string, 0, len(b.agents))
		for name := range b.agents {
			names = append(names, name)
		}
		b.mu.Unlock()

		processed := 0
		for _, name := range names {
			b.mu.Lock()
			agent := b.agents[name]
			queue := b.queues[name]
			var msg types.Message
			if len(queue) > 0 {
				msg = queue[0]
				b.queues[name] = queue[1:]
				processed++
			}
			b.mu.Unlock()

			if msg.ID != "" {
				b.dispatch(ctx, agent, msg)
			}
		}

		if processed == 0 {
			time.Sleep(100 * time.Millisecond)
		}
	}
}
