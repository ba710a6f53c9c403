package rest

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

var (
	// AuthExpiredErr is the terminal authentication error: no refresh token,
	// a failed refresh, or a second 401 after the single replay.
	AuthExpiredErr = errors.New("authentication expired")
)

// APIError is the normalised error for every failed request. Status 0
// means the transport failed before a response was received.
type APIError struct {
	Status  int
	Body    any
	Message string
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("network error: %s", e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// StatusOf returns the HTTP status of an APIError in err's chain, or -1.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return -1
}

// IsAuthStatus reports whether err is a 401 or 403 response. Auth errors
// must bubble; they are never absorbed by endpoint probing.
func IsAuthStatus(err error) bool {
	status := StatusOf(err)
	return status == 401 || status == 403
}

func newAPIError(status int, raw []byte) *APIError {
	apiErr := &APIError{Status: status}
	body := string(raw)
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err == nil {
		apiErr.Body = parsed
	} else {
		apiErr.Body = body
	}
	apiErr.Message = messageFromBody(apiErr.Body, status)
	return apiErr
}

// messageFromBody extracts a readable message. Validation bodies
// (field-keyed arrays of messages) are flattened so forms can surface them.
func messageFromBody(body any, status int) string {
	switch v := body.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return fmt.Sprintf("request failed with status %d", status)
		}
		return firstLine(v)
	case map[string]any:
		for _, key := range []string{"detail", "message", "error"} {
			if msg, ok := v[key].(string); ok && msg != "" {
				return msg
			}
		}
		return flattenFieldErrors(v, status)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "; ")
		}
	}
	return fmt.Sprintf("request failed with status %d", status)
}

func flattenFieldErrors(fields map[string]any, status int) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		switch val := fields[key].(type) {
		case string:
			parts = append(parts, fmt.Sprintf("%s: %s", key, val))
		case []any:
			msgs := make([]string, 0, len(val))
			for _, m := range val {
				if s, ok := m.(string); ok {
					msgs = append(msgs, s)
				}
			}
			if len(msgs) > 0 {
				parts = append(parts, fmt.Sprintf("%s: %s", key, strings.Join(msgs, "; ")))
			}
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("request failed with status %d", status)
	}
	return strings.Join(parts, "; ")
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	const maxLen = 200
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}
