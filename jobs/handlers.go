package jobs

import (
	"context"
	"fmt"
	"strings"

	job "github.com/goliatone/go-job"
)

// NewMassCreateTicketHandler inserts one user ticket per user in the batch.
func NewMassCreateTicketHandler(writer TicketWriter) Handler {
	return HandlerFunc(func(ctx context.Context, msg *job.ExecutionMessage) error {
		if writer == nil {
			return fmt.Errorf("jobs: ticket writer is not configured")
		}
		payload, err := DecodeMassCreateTicket(msg)
		if err != nil {
			return Permanent(err)
		}
		tickets := make([]UserTicket, 0, len(payload.UserIDs))
		for _, userID := range payload.UserIDs {
			tickets = append(tickets, UserTicket{
				UserID:      userID,
				CouponID:    payload.TicketID,
				AdminUserID: payload.AdminUserID,
				Reason:      strings.TrimSpace(payload.Reason),
			})
		}
		return writer.CreateTickets(ctx, tickets)
	})
}

// NewUpdateUserByWebhooksHandler applies receive_news changes. A missing
// event value leaves the user untouched.
func NewUpdateUserByWebhooksHandler(writer ConsentWriter) Handler {
	return HandlerFunc(func(ctx context.Context, msg *job.ExecutionMessage) error {
		if writer == nil {
			return fmt.Errorf("jobs: consent writer is not configured")
		}
		payload, err := DecodeUpdateUser(msg)
		if err != nil {
			return Permanent(err)
		}
		switch payload.EventType {
		case EventTypeReceiveNews:
			if payload.EventValue == nil {
				return nil
			}
			return writer.UpdateReceiveNews(ctx, payload.UserID, *payload.EventValue)
		default:
			return Permanent(fmt.Errorf("jobs: unsupported event_type %q", payload.EventType))
		}
	})
}

// Registry maps job ids to handlers.
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: map[string]Handler{}}
}

// DefaultRegistry registers the CRM job handlers. Both writers are required.
func DefaultRegistry(tickets TicketWriter, consent ConsentWriter) (*Registry, error) {
	if tickets == nil {
		return nil, fmt.Errorf("jobs: ticket writer is required")
	}
	if consent == nil {
		return nil, fmt.Errorf("jobs: consent writer is required")
	}
	registry := NewRegistry()
	if err := registry.Register(JobMassCreateTicket, NewMassCreateTicketHandler(tickets)); err != nil {
		return nil, err
	}
	if err := registry.Register(JobUpdateUserByWebhooks, NewUpdateUserByWebhooksHandler(consent)); err != nil {
		return nil, err
	}
	return registry, nil
}

func (r *Registry) Register(jobID string, handler Handler) error {
	if r == nil {
		return fmt.Errorf("jobs: registry is nil")
	}
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return fmt.Errorf("jobs: job id is required")
	}
	if handler == nil {
		return fmt.Errorf("jobs: handler for %s is required", jobID)
	}
	if r.handlers == nil {
		r.handlers = map[string]Handler{}
	}
	r.handlers[jobID] = handler
	return nil
}

func (r *Registry) Get(jobID string) (Handler, bool) {
	if r == nil {
		return nil, false
	}
	handler, ok := r.handlers[strings.TrimSpace(jobID)]
	return handler, ok
}
