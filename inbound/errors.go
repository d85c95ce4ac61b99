package inbound

import (
	"github.com/goliatone/go-crm/core"
	goerrors "github.com/goliatone/go-errors"
)

func inboundError(
	message string,
	category goerrors.Category,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	return core.NewError(message, category, code, textCode, metadata)
}

func inboundWrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	return core.WrapError(source, category, message, code, textCode, metadata)
}

func inboundBadInput(message string, metadata map[string]any) error {
	return core.BadInputError(message, metadata)
}

func inboundInternal(message string, metadata map[string]any) error {
	return core.InternalError(message, metadata)
}
