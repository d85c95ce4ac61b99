package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// uuidRecord is a bun model keyed by a text UUID column.
type uuidRecord interface {
	*customerExportRecord | *jobRecord | *userTicketRecord
}

// textIDHandlers builds repository handlers for a record whose primary key is
// a UUID stored as text. lookup names the column used for identifier queries
// and value reads it from a record.
func textIDHandlers[T uuidRecord](
	newRecord func() T,
	id func(T) *string,
	lookup string,
	value func(T) string,
) repository.ModelHandlers[T] {
	var none T
	return repository.ModelHandlers[T]{
		NewRecord: newRecord,
		GetID: func(record T) uuid.UUID {
			if record == none {
				return uuid.Nil
			}
			return parseUUID(*id(record))
		},
		SetID: func(record T, next uuid.UUID) {
			if record == none {
				return
			}
			*id(record) = next.String()
		},
		GetIdentifier: func() string { return lookup },
		GetIdentifierValue: func(record T) string {
			if record == none {
				return ""
			}
			return strings.TrimSpace(value(record))
		},
	}
}

func customerExportHandlers() repository.ModelHandlers[*customerExportRecord] {
	return textIDHandlers(
		func() *customerExportRecord { return &customerExportRecord{} },
		func(r *customerExportRecord) *string { return &r.ID },
		"id",
		func(r *customerExportRecord) string { return r.ID },
	)
}

// jobHandlers look jobs up by idempotency key, which is unique per delivery.
func jobHandlers() repository.ModelHandlers[*jobRecord] {
	return textIDHandlers(
		func() *jobRecord { return &jobRecord{} },
		func(r *jobRecord) *string { return &r.ID },
		"idempotency_key",
		func(r *jobRecord) string { return r.IdempotencyKey },
	)
}

func userTicketHandlers() repository.ModelHandlers[*userTicketRecord] {
	return textIDHandlers(
		func() *userTicketRecord { return &userTicketRecord{} },
		func(r *userTicketRecord) *string { return &r.ID },
		"id",
		func(r *userTicketRecord) string { return r.ID },
	)
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
