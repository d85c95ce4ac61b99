package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-crm/exponea"
	"github.com/goliatone/go-crm/jobs"
	"github.com/goliatone/go-crm/result"
	"github.com/goliatone/go-crm/service"
)

type TicketProcessor interface {
	Call(ctx context.Context, data map[string]any) result.Result[bool, service.Failure]
}

type ConsentProcessor interface {
	Call(ctx context.Context, data map[string]any) result.Result[jobs.Handle, service.Failure]
}

type TicketWebhookCommand struct {
	processor TicketProcessor
}

func NewTicketWebhookCommand(processor TicketProcessor) *TicketWebhookCommand {
	return &TicketWebhookCommand{processor: processor}
}

func (c *TicketWebhookCommand) Execute(ctx context.Context, msg TicketWebhookMessage) error {
	if c == nil || c.processor == nil {
		return commandDependencyError("command: ticket webhook processor is required")
	}
	res := c.processor.Call(withDeliveryKey(ctx, msg.DeliveryKey), msg.Data)
	if res.IsFailure() {
		return res.Reason().AsError()
	}
	storeResult(ctx, res.Value())
	return nil
}

type ConsentWebhookCommand struct {
	processor ConsentProcessor
}

func NewConsentWebhookCommand(processor ConsentProcessor) *ConsentWebhookCommand {
	return &ConsentWebhookCommand{processor: processor}
}

func (c *ConsentWebhookCommand) Execute(ctx context.Context, msg ConsentWebhookMessage) error {
	if c == nil || c.processor == nil {
		return commandDependencyError("command: consent webhook processor is required")
	}
	res := c.processor.Call(withDeliveryKey(ctx, msg.DeliveryKey), msg.Data)
	if res.IsFailure() {
		return res.Reason().AsError()
	}
	storeResult(ctx, res.Value())
	return nil
}

func withDeliveryKey(ctx context.Context, key string) context.Context {
	if key = trimmed(key); key != "" {
		return exponea.WithDeliveryKey(ctx, key)
	}
	return ctx
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
