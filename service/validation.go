package service

import (
	"context"
	"errors"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-crm/result"
)

type Validator[P any] interface {
	Validate(ctx context.Context, params P) error
}

type ValidatorFunc[P any] func(ctx context.Context, params P) error

func (fn ValidatorFunc[P]) Validate(ctx context.Context, params P) error {
	return fn(ctx, params)
}

type ValidationOption func(*validationSettings)

type validationSettings struct {
	mapFailure func(Failure) Failure
}

// MapValidation translates the default validation failure into a
// service specific one.
func MapValidation(fn func(Failure) Failure) ValidationOption {
	return func(s *validationSettings) {
		if fn != nil {
			s.mapFailure = fn
		}
	}
}

// WithValidation short-circuits with a validation failure before next runs.
// A ValidationErrors result becomes Failure{Code: validation_failed}; any
// other error becomes an internal failure.
func WithValidation[P any, T any](validator Validator[P], opts ...ValidationOption) Middleware[P, T] {
	if validator == nil {
		panic("service: WithValidation requires a validator")
	}
	settings := validationSettings{}
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}
	return func(next Handler[P, T]) Handler[P, T] {
		return func(ctx context.Context, params P) result.Result[T, Failure] {
			err := validator.Validate(ctx, params)
			if err == nil {
				return next(ctx, params)
			}
			var fields ValidationErrors
			if !errors.As(err, &fields) {
				return result.Failure[T](InternalFailure(err))
			}
			failure := ValidationFailure(fields)
			if settings.mapFailure != nil {
				failure = settings.mapFailure(failure)
			}
			return result.Failure[T](failure)
		}
	}
}

// FromOzzo converts ozzo-validation output into ordered ValidationErrors.
// Fields named in order come first, in that order; remaining fields follow
// alphabetically. Internal validation errors are returned unchanged.
func FromOzzo(err error, order ...string) error {
	if err == nil {
		return nil
	}
	var internal validation.InternalError
	if errors.As(err, &internal) {
		return internal.InternalError()
	}
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return err
	}
	if len(errs) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(errs))
	out := make(ValidationErrors, 0, len(errs))
	for _, field := range order {
		if fieldErr, ok := errs[field]; ok && fieldErr != nil {
			out = append(out, toFieldError(field, fieldErr))
			seen[field] = true
		}
	}
	rest := make([]string, 0, len(errs))
	for field, fieldErr := range errs {
		if !seen[field] && fieldErr != nil {
			rest = append(rest, field)
		}
	}
	sort.Strings(rest)
	for _, field := range rest {
		out = append(out, toFieldError(field, errs[field]))
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func toFieldError(field string, err error) FieldError {
	item := FieldError{Field: field, Message: err.Error()}
	var coded validation.Error
	if errors.As(err, &coded) {
		item.Code = coded.Code()
		item.Message = coded.Message()
	}
	return item
}
