// Package gocommand wires CRM messages into go-command. A Bus owns the
// command registry, mirrors commands into the go-job queue registry and keeps
// the dispatcher subscriptions so they can be released together. Queries
// live on a separate registry that has no queue resolver, since the queue
// only accepts handlers with Execute(ctx, msg) error.
package gocommand

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

// QueueResolverKey names the resolver that mirrors commands into go-job.
const QueueResolverKey = "queue"

// ValidateMessageContract enforces Type() plus optional Validate() contract.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

type Bus struct {
	registry *command.Registry
	queries  *command.Registry
	queue    *jobqueuecommand.Registry

	mu   sync.Mutex
	subs []commanddispatcher.Subscription
}

// NewBus builds a bus over registry, or a fresh registry when nil, with the
// go-job queue resolver installed.
func NewBus(registry *command.Registry) (*Bus, error) {
	if registry == nil {
		registry = command.NewRegistry()
	}
	b := &Bus{
		registry: registry,
		queries:  command.NewRegistry(),
		queue:    jobqueuecommand.NewRegistry(),
	}
	if !registry.HasResolver(QueueResolverKey) {
		if err := registry.AddResolver(QueueResolverKey, jobqueuecommand.QueueResolver(b.queue)); err != nil {
			return nil, fmt.Errorf("gocommand: add queue resolver: %w", err)
		}
	}
	return b, nil
}

func (b *Bus) Registry() *command.Registry {
	if b == nil {
		return nil
	}
	return b.registry
}

func (b *Bus) AddResolver(key string, resolver command.Resolver) error {
	if b == nil || b.registry == nil {
		return fmt.Errorf("gocommand: bus is not configured")
	}
	return b.registry.AddResolver(strings.TrimSpace(key), resolver)
}

// Queued reports whether messageType was mirrored into the queue registry.
// Mirroring happens during Initialize.
func (b *Bus) Queued(messageType string) bool {
	if b == nil || b.queue == nil {
		return false
	}
	_, ok := b.queue.Get(strings.TrimSpace(messageType))
	return ok
}

func (b *Bus) Initialize() error {
	if b == nil || b.registry == nil || b.queries == nil {
		return fmt.Errorf("gocommand: bus is not configured")
	}
	if err := b.registry.Initialize(); err != nil {
		return err
	}
	if err := b.queries.Initialize(); err != nil {
		return fmt.Errorf("gocommand: initialize query registry: %w", err)
	}
	return nil
}

// Len reports how many subscriptions the bus holds.
func (b *Bus) Len() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close releases subscriptions in reverse registration order.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()
	for i := len(subs) - 1; i >= 0; i-- {
		subs[i].Unsubscribe()
	}
}

func (b *Bus) track(sub commanddispatcher.Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
}

// Handle subscribes cmd on the dispatcher and registers it with the bus.
func Handle[T any](b *Bus, cmd command.Commander[T], runnerOpts ...runner.Option) error {
	if b == nil || b.registry == nil {
		return fmt.Errorf("gocommand: bus is not configured")
	}
	if cmd == nil {
		return fmt.Errorf("gocommand: command is required")
	}
	sub := commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
	if err := b.registry.RegisterCommand(cmd); err != nil {
		if sub != nil {
			sub.Unsubscribe()
		}
		return err
	}
	b.track(sub)
	return nil
}

// Serve subscribes qry on the dispatcher and registers it on the query
// registry, keeping it out of the queue.
func Serve[T any, R any](b *Bus, qry command.Querier[T, R], runnerOpts ...runner.Option) error {
	if b == nil || b.queries == nil {
		return fmt.Errorf("gocommand: bus is not configured")
	}
	if qry == nil {
		return fmt.Errorf("gocommand: query is required")
	}
	sub := commanddispatcher.SubscribeQuery(qry, runnerOpts...)
	if err := b.queries.RegisterCommand(qry); err != nil {
		if sub != nil {
			sub.Unsubscribe()
		}
		return err
	}
	b.track(sub)
	return nil
}

// Dispatch validates msg and runs its subscribed command.
func Dispatch[T any](ctx context.Context, msg T) error {
	if err := ValidateMessageContract(msg); err != nil {
		return err
	}
	return commanddispatcher.Dispatch(ctx, msg)
}

// DispatchResult runs a command that stores its outcome through
// command.ResultFromContext and returns that value.
func DispatchResult[T any, R any](ctx context.Context, msg T) (R, error) {
	var zero R
	collector := command.NewResult[R]()
	if err := Dispatch(command.ContextWithResult(ctx, collector), msg); err != nil {
		return zero, err
	}
	value, ok := collector.Load()
	if !ok {
		return zero, fmt.Errorf("gocommand: command stored no result")
	}
	return value, nil
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}
