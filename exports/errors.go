package exports

import (
	"github.com/goliatone/go-crm/core"
)

func filterBadInput(field string, message string) error {
	return core.BadInputError(message, map[string]any{"field": field})
}
