package service

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-crm/core"
	goerrors "github.com/goliatone/go-errors"
)

const (
	CodeValidationFailed = "validation_failed"
	// CodeNotImplemented keeps the historical spelling consumers match on.
	CodeNotImplemented = "not_implimented"
	CodeInternal       = "internal_error"
)

type FieldError struct {
	Field   string
	Code    string
	Message string
}

// ValidationErrors is an ordered list of field failures. Order follows the
// declaration order of the validated form.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, item := range v {
		parts = append(parts, item.Field+": "+item.Message)
	}
	return "service: validation failed: " + strings.Join(parts, "; ")
}

// First returns the first field failure in declaration order.
func (v ValidationErrors) First() (FieldError, bool) {
	if len(v) == 0 {
		return FieldError{}, false
	}
	return v[0], true
}

func (v ValidationErrors) Map() map[string]string {
	out := make(map[string]string, len(v))
	for _, item := range v {
		out[item.Field] = item.Message
	}
	return out
}

// Failure is the reason carried by a failed service call. Exactly one of
// Code, Status or Fields describes the reason; Err keeps an underlying cause.
type Failure struct {
	Code   string
	Status int
	Fields ValidationErrors
	Err    error
}

func CodeFailure(code string) Failure {
	return Failure{Code: strings.TrimSpace(code)}
}

func StatusFailure(status int) Failure {
	return Failure{Status: status}
}

func InternalFailure(err error) Failure {
	return Failure{Code: CodeInternal, Err: err}
}

func ValidationFailure(fields ValidationErrors) Failure {
	return Failure{Code: CodeValidationFailed, Fields: fields}
}

func (f Failure) Error() string {
	switch {
	case f.Status != 0 && f.Code == "":
		return fmt.Sprintf("service: failure status %d", f.Status)
	case len(f.Fields) > 0:
		return f.Fields.Error()
	case f.Err != nil:
		return "service: " + f.Code + ": " + f.Err.Error()
	case f.Code != "":
		return "service: " + f.Code
	default:
		return "service: failure"
	}
}

func (f Failure) Unwrap() error { return f.Err }

// AsError converts the failure into the CRM error envelope.
func (f Failure) AsError() *goerrors.Error {
	metadata := map[string]any{}
	if f.Code != "" {
		metadata["failure_code"] = f.Code
	}
	if f.Status != 0 {
		metadata["failure_status"] = f.Status
	}

	if len(f.Fields) > 0 {
		fields := make([]goerrors.FieldError, 0, len(f.Fields))
		for _, item := range f.Fields {
			fields = append(fields, goerrors.FieldError{Field: item.Field, Message: item.Message})
		}
		status := http.StatusUnprocessableEntity
		if f.Status != 0 {
			status = f.Status
		}
		err := core.ValidationError("service: validation failed", fields...).WithCode(status)
		err.WithMetadata(metadata)
		return err
	}

	switch f.Code {
	case CodeNotImplemented:
		return core.NewError("service: action not implemented", goerrors.CategoryOperation,
			http.StatusNotImplemented, core.ErrorNotImplemented, metadata)
	case CodeInternal:
		return core.WrapError(f.Err, goerrors.CategoryInternal, "service: internal failure",
			http.StatusInternalServerError, core.ErrorInternal, metadata)
	}

	if f.Status != 0 {
		category := categoryForStatus(f.Status)
		return core.WrapError(f.Err, category, f.Error(), f.Status, textCodeForStatus(f.Status), metadata)
	}
	return core.WrapError(f.Err, goerrors.CategoryOperation, f.Error(),
		http.StatusUnprocessableEntity, core.ErrorOperationFailed, metadata)
}

// HTTPStatus resolves the status a transport should answer with.
func (f Failure) HTTPStatus() int {
	if f.Status != 0 {
		return f.Status
	}
	return f.AsError().Code
}

func categoryForStatus(status int) goerrors.Category {
	switch status {
	case http.StatusBadRequest:
		return goerrors.CategoryBadInput
	case http.StatusUnauthorized:
		return goerrors.CategoryAuth
	case http.StatusForbidden:
		return goerrors.CategoryAuthz
	case http.StatusNotFound:
		return goerrors.CategoryNotFound
	case http.StatusConflict:
		return goerrors.CategoryConflict
	case http.StatusUnprocessableEntity:
		return goerrors.CategoryValidation
	}
	if status >= 500 {
		return goerrors.CategoryInternal
	}
	return goerrors.CategoryOperation
}

func textCodeForStatus(status int) string {
	switch categoryForStatus(status) {
	case goerrors.CategoryBadInput:
		return core.ErrorBadInput
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return core.ErrorUnauthorized
	case goerrors.CategoryNotFound:
		return core.ErrorNotFound
	case goerrors.CategoryConflict:
		return core.ErrorConflict
	case goerrors.CategoryValidation:
		return core.ErrorValidation
	case goerrors.CategoryInternal:
		return core.ErrorInternal
	default:
		return core.ErrorOperationFailed
	}
}
