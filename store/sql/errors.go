package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/goliatone/go-crm/core"
	goerrors "github.com/goliatone/go-errors"
)

func notFound(entity string, key any) error {
	return core.NewError(
		fmt.Sprintf("sqlstore: %s %v not found", entity, key),
		goerrors.CategoryNotFound,
		http.StatusNotFound,
		core.ErrorNotFound,
		map[string]any{"entity": entity, "key": key},
	)
}

// IsNotFound reports whether err is a missing-row error from this package.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrNoRows) {
		return true
	}
	var rich *goerrors.Error
	return goerrors.As(err, &rich) && rich.Category == goerrors.CategoryNotFound
}
