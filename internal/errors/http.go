package errors

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
)

// messageKeys carry a human-readable summary rather than a field error.
var messageKeys = []string{"detail", "error", "message"}

// nonFieldKey is where the backend reports errors not tied to a single field.
const nonFieldKey = "non_field_errors"

// FromResponse maps a non-2xx backend response to an AppError.
// The body is kept verbatim; field errors of the form {"field": ["msg", ...]} are
// collected into Fields, with nested objects flattened to "parent.child".
func FromResponse(status int, body []byte) *AppError {
	appErr := &AppError{
		Code:   codeForStatus(status),
		Status: status,
		Body:   body,
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err == nil && top != nil {
		fields := make(map[string][]string)
		for key, raw := range top {
			if isMessageKey(key) {
				if msg := decodeMessage(raw); msg != "" && appErr.Message == "" {
					appErr.Message = msg
				}
				continue
			}
			collectFields(fields, key, raw)
		}
		if len(fields) > 0 {
			appErr.Fields = fields
		}
	}

	if appErr.Message == "" {
		if msgs := appErr.Fields[nonFieldKey]; len(msgs) > 0 {
			appErr.Message = msgs[0]
		}
	}
	if appErr.Message == "" {
		appErr.Message = defaultMessage(status, appErr.Fields)
	}
	if len(appErr.Fields) == 1 {
		for name := range appErr.Fields {
			if name != nonFieldKey {
				appErr.Field = name
			}
		}
	}
	return appErr
}

// FromTransport maps an error from the HTTP transport (no response received) to an AppError.
func FromTransport(err error) *AppError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, context.Canceled):
		return &AppError{Code: ErrCodeCanceled, Message: "Request was canceled.", Cause: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &AppError{Code: ErrCodeTimeout, Message: "Request timed out. Please try again.", Cause: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &AppError{Code: ErrCodeTimeout, Message: "Request timed out. Please try again.", Cause: err}
	}
	return &AppError{Code: ErrCodeNetwork, Message: "Unable to reach the server.", Cause: err}
}

func codeForStatus(status int) ErrorCode {
	switch {
	case status == http.StatusUnauthorized:
		return ErrCodeUnauthorized
	case status == http.StatusForbidden:
		return ErrCodeForbidden
	case status == http.StatusNotFound:
		return ErrCodeNotFound
	case status == http.StatusConflict:
		return ErrCodeConflict
	case status == http.StatusTooManyRequests:
		return ErrCodeRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return ErrCodeTimeout
	case status >= 400 && status < 500:
		return ErrCodeValidation
	default:
		return ErrCodeInternal
	}
}

func defaultMessage(status int, fields map[string][]string) string {
	if len(fields) > 0 {
		return "Please correct the highlighted fields."
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "Unexpected response from server."
}

func isMessageKey(key string) bool {
	for _, k := range messageKeys {
		if k == key {
			return true
		}
	}
	return false
}

func decodeMessage(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return strings.TrimSpace(list[0])
	}
	return ""
}

func collectFields(dst map[string][]string, key string, raw json.RawMessage) {
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) > 0 {
			dst[key] = list
		}
		return
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s != "" {
			dst[key] = []string{s}
		}
		return
	}
	var nested map[string]json.RawMessage
	if err := json.Unmarshal(raw, &nested); err == nil {
		for k, v := range nested {
			collectFields(dst, key+"."+k, v)
		}
	}
}
