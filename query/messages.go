package query

import (
	"strings"

	"github.com/goliatone/go-crm/exports"
)

const (
	TypeListCustomerExports = "crm.query.customer_exports.list"
	TypeGetJob              = "crm.query.jobs.get"
)

type ListCustomerExportsMessage struct {
	Request exports.Request
}

func (ListCustomerExportsMessage) Type() string { return TypeListCustomerExports }

func (m ListCustomerExportsMessage) Validate() error {
	if m.Request.Page < 0 {
		return queryValidationError("page", "page must be >= 0")
	}
	if m.Request.PerPage < 0 {
		return queryValidationError("per_page", "per_page must be >= 0")
	}
	return nil
}

// GetJobMessage looks up an enqueued job by its idempotency key.
type GetJobMessage struct {
	IdempotencyKey string
}

func (GetJobMessage) Type() string { return TypeGetJob }

func (m GetJobMessage) Validate() error {
	if strings.TrimSpace(m.IdempotencyKey) == "" {
		return queryValidationError("idempotency_key", "idempotency key is required")
	}
	return nil
}
