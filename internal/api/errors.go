package api

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// GenericMessage is shown when no server message can be extracted
const GenericMessage = "Something went wrong. Please try again."

// Error is a failed remote call.
// StatusCode is zero for transport failures.
type Error struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ExtractMessage pulls a human-readable message out of an error body.
// TECHNICAL DISCOVERY: The backend sends detail either as a string or as a
// list of validation entries carrying msg, of which the first is used
func ExtractMessage(body []byte) string {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return GenericMessage
	}

	if len(payload.Detail) > 0 {
		var detail string
		if err := json.Unmarshal(payload.Detail, &detail); err == nil && strings.TrimSpace(detail) != "" {
			return detail
		}

		var entries []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(payload.Detail, &entries); err == nil {
			// only the first entry is shown
			for _, e := range entries {
				if strings.TrimSpace(e.Msg) != "" {
					return e.Msg
				}
			}
		}
	}

	if strings.TrimSpace(payload.Message) != "" {
		return payload.Message
	}
	if strings.TrimSpace(payload.Error) != "" {
		return payload.Error
	}
	return GenericMessage
}

// ErrorMessage converts any error into the text surfaced to the user.
// Remote failures keep the extracted server message; local validation errors
// keep their own text; timeouts collapse to GenericMessage.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		if apiErr.Message == "" {
			return GenericMessage
		}
		return apiErr.Message
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return GenericMessage
	}
	return err.Error()
}
