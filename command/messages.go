package command

import "strings"

const (
	TypeTicketWebhook  = "crm.command.webhook.ticket"
	TypeConsentWebhook = "crm.command.webhook.consent"
)

// TicketWebhookMessage carries a raw exponea ticket payload. DeliveryKey
// scopes the job idempotency keys of this delivery.
type TicketWebhookMessage struct {
	Data        map[string]any
	DeliveryKey string
}

func (TicketWebhookMessage) Type() string { return TypeTicketWebhook }

func (m TicketWebhookMessage) Validate() error {
	return validatePayload(m.Data)
}

type ConsentWebhookMessage struct {
	Data        map[string]any
	DeliveryKey string
}

func (ConsentWebhookMessage) Type() string { return TypeConsentWebhook }

func (m ConsentWebhookMessage) Validate() error {
	return validatePayload(m.Data)
}

func validatePayload(data map[string]any) error {
	if data == nil {
		return commandValidationError("data", "payload is required")
	}
	return nil
}

func trimmed(value string) string {
	return strings.TrimSpace(value)
}
