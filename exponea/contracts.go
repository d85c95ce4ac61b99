package exponea

import (
	"context"
	"strings"
)

const (
	TicketBatchSize = 100

	ActionUpdateConsent = "update_consent"

	CodeTicketNotExist = "ticket_not_exist"
	CodeTicketNotValid = "ticket_not_valid"
)

// AdminDirectory resolves the robot admin recorded on webhook tickets.
type AdminDirectory interface {
	RobotID(ctx context.Context) (int64, error)
}

// CouponCatalog is optional; when set, unknown coupons fail validation.
type CouponCatalog interface {
	CouponExists(ctx context.Context, id int64) (bool, error)
}

type deliveryKey struct{}

// WithDeliveryKey scopes job idempotency keys to one webhook delivery so a
// redelivered webhook does not enqueue twice.
func WithDeliveryKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, deliveryKey{}, strings.TrimSpace(key))
}

func DeliveryKeyFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	key, _ := ctx.Value(deliveryKey{}).(string)
	return key
}

func jobKey(ctx context.Context, suffix string) string {
	base := DeliveryKeyFromContext(ctx)
	if base == "" {
		return ""
	}
	return base + ":" + suffix
}
