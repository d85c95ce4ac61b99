package exponea

import (
	"context"
	"fmt"
	"math"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-viper/mapstructure/v2"
	"github.com/goliatone/go-crm/service"
)

var (
	ticketFormFields  = []string{"coupon_id", "user_ids", "reason"}
	consentFormFields = []string{"action_name", "id", "receive_news"}
)

var (
	errTicketNotExist = validation.NewError(CodeTicketNotExist, "ticket does not exist")
	errTicketNotValid = validation.NewError(CodeTicketNotValid, "ticket is not valid")
	errNotInteger     = validation.NewError("validation_not_integer", "must be an integer")
	errNotPositive    = validation.NewError("validation_not_positive", "must contain positive integers")
	errNotList        = validation.NewError("validation_not_list", "must be a list of user ids")
	errNotString      = validation.NewError("validation_not_string", "must be a string")
	errNotBoolean     = validation.NewError("validation_not_boolean", "must be a boolean")
)

type TicketWebhookForm struct {
	CouponID int64   `mapstructure:"coupon_id"`
	UserIDs  []int64 `mapstructure:"user_ids"`
	Reason   string  `mapstructure:"reason"`
}

type ConsentWebhookForm struct {
	ActionName  string `mapstructure:"action_name"`
	UserID      int64  `mapstructure:"id"`
	ReceiveNews *bool  `mapstructure:"receive_news"`
}

type ticketValidator struct {
	coupons CouponCatalog
}

// Validate checks the payload in form declaration order. The catalog lookup
// only runs for a well-formed coupon id.
func (v ticketValidator) Validate(ctx context.Context, data map[string]any) error {
	values := pick(data, ticketFormFields)
	err := validation.Validate(values, validation.Map(
		validation.Key("coupon_id",
			validation.By(rulePresent(errTicketNotExist)),
			validation.By(ruleInteger(errTicketNotValid, true)),
		),
		validation.Key("user_ids",
			validation.Required,
			validation.By(ruleUserIDs),
		),
		validation.Key("reason",
			validation.Required,
			validation.By(ruleString),
		),
	).AllowExtraKeys())

	var fields service.ValidationErrors
	if converted := service.FromOzzo(err, ticketFormFields...); converted != nil {
		typed, ok := converted.(service.ValidationErrors)
		if !ok {
			return converted
		}
		fields = typed
	}

	if v.coupons != nil && !hasField(fields, "coupon_id") {
		couponID, _ := coerceInt64(values["coupon_id"])
		exists, lookupErr := v.coupons.CouponExists(ctx, couponID)
		if lookupErr != nil {
			return fmt.Errorf("exponea: coupon lookup: %w", lookupErr)
		}
		if !exists {
			fields = append(service.ValidationErrors{{
				Field:   "coupon_id",
				Code:    errTicketNotExist.Code(),
				Message: errTicketNotExist.Message(),
			}}, fields...)
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

type consentValidator struct{}

func (consentValidator) Validate(_ context.Context, data map[string]any) error {
	values := pick(data, consentFormFields)
	err := validation.Validate(values, validation.Map(
		validation.Key("action_name",
			validation.Required,
			validation.By(ruleString),
		),
		validation.Key("id",
			validation.Required,
			validation.By(ruleInteger(errNotInteger, false)),
		),
		validation.Key("receive_news",
			validation.By(ruleBoolean),
		),
	).AllowExtraKeys())
	return service.FromOzzo(err, consentFormFields...)
}

// BindTicketForm coerces a validated payload into its form.
func BindTicketForm(data map[string]any) (TicketWebhookForm, error) {
	var form TicketWebhookForm
	if err := decodeForm(pick(data, ticketFormFields), &form); err != nil {
		return TicketWebhookForm{}, err
	}
	form.Reason = strings.TrimSpace(form.Reason)
	return form, nil
}

// BindConsentForm coerces a validated payload into its form. The action name
// is downcased.
func BindConsentForm(data map[string]any) (ConsentWebhookForm, error) {
	var form ConsentWebhookForm
	if err := decodeForm(pick(data, consentFormFields), &form); err != nil {
		return ConsentWebhookForm{}, err
	}
	form.ActionName = strings.ToLower(strings.TrimSpace(form.ActionName))
	return form, nil
}

func decodeForm(input map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(input); err != nil {
		return fmt.Errorf("exponea: bind form: %w", err)
	}
	return nil
}

// pick copies keys out of data, trimming string values so a blank string
// counts as absent.
func pick(data map[string]any, keys []string) map[string]any {
	out := make(map[string]any, len(keys))
	for _, key := range keys {
		value := data[key]
		if text, ok := value.(string); ok {
			value = strings.TrimSpace(text)
		}
		out[key] = value
	}
	return out
}

func hasField(fields service.ValidationErrors, name string) bool {
	for _, field := range fields {
		if field.Field == name {
			return true
		}
	}
	return false
}

// rulePresent only treats a missing or blank value as absent, so a zero id
// is present and left to the integer rule.
func rulePresent(failure validation.Error) validation.RuleFunc {
	return func(value any) error {
		if isBlank(value) {
			return failure
		}
		return nil
	}
}

func ruleInteger(failure validation.Error, positive bool) validation.RuleFunc {
	return func(value any) error {
		if isBlank(value) {
			return nil
		}
		n, ok := coerceInt64(value)
		if !ok || (positive && n <= 0) {
			return failure
		}
		return nil
	}
}

func ruleUserIDs(value any) error {
	if isBlank(value) {
		return nil
	}
	items, ok := asList(value)
	if !ok {
		return errNotList
	}
	for _, item := range items {
		n, ok := coerceInt64(item)
		if !ok || n <= 0 {
			return errNotPositive
		}
	}
	return nil
}

func ruleString(value any) error {
	if isBlank(value) {
		return nil
	}
	if _, ok := value.(string); !ok {
		return errNotString
	}
	return nil
}

func ruleBoolean(value any) error {
	if value == nil {
		return nil
	}
	var out bool
	if err := mapstructure.WeakDecode(value, &out); err != nil {
		return errNotBoolean
	}
	return nil
}

func asList(value any) ([]any, bool) {
	switch typed := value.(type) {
	case []any:
		return typed, true
	case []int64:
		out := make([]any, 0, len(typed))
		for _, item := range typed {
			out = append(out, item)
		}
		return out, true
	case []int:
		out := make([]any, 0, len(typed))
		for _, item := range typed {
			out = append(out, item)
		}
		return out, true
	case []string:
		out := make([]any, 0, len(typed))
		for _, item := range typed {
			out = append(out, item)
		}
		return out, true
	default:
		return nil, false
	}
}

func coerceInt64(value any) (int64, bool) {
	switch typed := value.(type) {
	case nil, bool:
		return 0, false
	case float64:
		return floatToInt64(typed)
	case float32:
		return floatToInt64(float64(typed))
	case string:
		value = strings.TrimSpace(typed)
	}
	var out int64
	if err := mapstructure.WeakDecode(value, &out); err != nil {
		return 0, false
	}
	return out, true
}

// floatToInt64 accepts whole numbers inside the int64 range. 2^63 itself is
// exactly representable as a float64 but overflows int64.
func floatToInt64(value float64) (int64, bool) {
	if value != math.Trunc(value) || value < math.MinInt64 || value >= math.MaxInt64 {
		return 0, false
	}
	return int64(value), true
}

func isBlank(value any) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}
