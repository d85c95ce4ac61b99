package jobs

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	job "github.com/goliatone/go-job"
)

// MassCreateTicketPayload grants one coupon ticket to a batch of users.
type MassCreateTicketPayload struct {
	UserIDs     []int64 `mapstructure:"user_ids"`
	TicketID    int64   `mapstructure:"ticket_id"`
	AdminUserID int64   `mapstructure:"admin_user_id"`
	Reason      string  `mapstructure:"reason"`
}

func (p MassCreateTicketPayload) Message(idempotencyKey string) *job.ExecutionMessage {
	ids := append([]int64(nil), p.UserIDs...)
	return &job.ExecutionMessage{
		JobID:          JobMassCreateTicket,
		IdempotencyKey: strings.TrimSpace(idempotencyKey),
		Parameters: map[string]any{
			"user_ids":      ids,
			"ticket_id":     p.TicketID,
			"admin_user_id": p.AdminUserID,
			"reason":        p.Reason,
		},
	}
}

func (p MassCreateTicketPayload) Validate() error {
	if len(p.UserIDs) == 0 {
		return fmt.Errorf("jobs: mass_create_ticket requires user_ids")
	}
	if p.TicketID <= 0 {
		return fmt.Errorf("jobs: mass_create_ticket requires ticket_id")
	}
	if p.AdminUserID <= 0 {
		return fmt.Errorf("jobs: mass_create_ticket requires admin_user_id")
	}
	return nil
}

// UpdateUserPayload applies one webhook-driven change to a user.
// EventValue is nil when the webhook omitted the value.
type UpdateUserPayload struct {
	EventType  string `mapstructure:"event_type"`
	UserID     int64  `mapstructure:"user_id"`
	EventValue *bool  `mapstructure:"event_value"`
}

func (p UpdateUserPayload) Message(idempotencyKey string) *job.ExecutionMessage {
	params := map[string]any{
		"event_type":  p.EventType,
		"user_id":     p.UserID,
		"event_value": nil,
	}
	if p.EventValue != nil {
		params["event_value"] = *p.EventValue
	}
	return &job.ExecutionMessage{
		JobID:          JobUpdateUserByWebhooks,
		IdempotencyKey: strings.TrimSpace(idempotencyKey),
		Parameters:     params,
	}
}

func DecodeMassCreateTicket(msg *job.ExecutionMessage) (MassCreateTicketPayload, error) {
	var out MassCreateTicketPayload
	if err := decodeParameters(msg, JobMassCreateTicket, &out); err != nil {
		return MassCreateTicketPayload{}, err
	}
	if err := out.Validate(); err != nil {
		return MassCreateTicketPayload{}, err
	}
	return out, nil
}

func DecodeUpdateUser(msg *job.ExecutionMessage) (UpdateUserPayload, error) {
	var out UpdateUserPayload
	if err := decodeParameters(msg, JobUpdateUserByWebhooks, &out); err != nil {
		return UpdateUserPayload{}, err
	}
	out.EventType = strings.TrimSpace(out.EventType)
	if out.UserID <= 0 {
		return UpdateUserPayload{}, fmt.Errorf("jobs: update_user_by_webhooks requires user_id")
	}
	return out, nil
}

// decodeParameters tolerates JSON round trips, where numbers come back as
// float64 and lists as []any.
func decodeParameters(msg *job.ExecutionMessage, jobID string, target any) error {
	if msg == nil {
		return fmt.Errorf("jobs: execution message is required")
	}
	if strings.TrimSpace(msg.JobID) != jobID {
		return fmt.Errorf("jobs: expected job %q, got %q", jobID, msg.JobID)
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(msg.Parameters); err != nil {
		return fmt.Errorf("jobs: decode %s parameters: %w", jobID, err)
	}
	return nil
}
