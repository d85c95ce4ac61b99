package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[TicketWebhookMessage]  = (*TicketWebhookCommand)(nil)
	_ gocmd.Commander[ConsentWebhookMessage] = (*ConsentWebhookCommand)(nil)
)
