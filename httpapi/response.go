package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/goliatone/go-crm/core"
	goerrors "github.com/goliatone/go-errors"
)

type errorBody struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Category string            `json:"category"`
	Code     int               `json:"code"`
	TextCode string            `json:"text_code"`
	Message  string            `json:"message"`
	Fields   map[string]string `json:"fields,omitempty"`
	Metadata map[string]any    `json:"metadata,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	rich := core.MapError(err)
	if rich == nil {
		rich = core.InternalError("", nil)
	}
	payload := errorPayload{
		Category: string(rich.Category),
		Code:     rich.Code,
		TextCode: rich.TextCode,
		Message:  rich.Message,
		Metadata: rich.Metadata,
	}
	if fields := rich.AllValidationErrors(); len(fields) > 0 {
		payload.Fields = make(map[string]string, len(fields))
		for _, field := range fields {
			payload.Fields[field.Field] = field.Message
		}
	}
	if rich.Category == goerrors.CategoryInternal {
		payload.Message = "An unexpected error occurred"
		payload.Metadata = nil
	}
	writeJSON(w, rich.Code, errorBody{Error: payload})
}
