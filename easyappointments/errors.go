package easyappointments

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Common errors. Every *Error returned by the client matches exactly one of
// these through errors.Is.
var (
	// ErrAuthentication indicates a rejected or missing API key (401/403)
	ErrAuthentication = errors.New("authentication failed")
	// ErrNotFound indicates the requested resource does not exist (404)
	ErrNotFound = errors.New("resource not found")
	// ErrValidation indicates the request or response payload is invalid
	ErrValidation = errors.New("validation failed")
	// ErrRateLimit indicates the server is throttling requests (429)
	ErrRateLimit = errors.New("rate limit exceeded")
	// ErrServer indicates a server-side failure (5xx)
	ErrServer = errors.New("server error")
	// ErrNetwork indicates the request never produced an HTTP response
	ErrNetwork = errors.New("network error")
	// ErrUsage indicates the client was misused
	ErrUsage = errors.New("invalid client usage")
	// ErrClientClosed is returned for requests made after Close
	ErrClientClosed = errors.New("client is closed")
	// ErrInvalidConfig indicates invalid client configuration
	ErrInvalidConfig = errors.New("invalid easyappointments configuration")
	// ErrUnexpected covers every other failure
	ErrUnexpected = errors.New("unexpected API error")
)

// Kind classifies an Error.
type Kind int

const (
	// KindGeneric is any error not covered by a more specific kind
	KindGeneric Kind = iota
	// KindAuthentication maps 401 and 403
	KindAuthentication
	// KindNotFound maps 404
	KindNotFound
	// KindValidation maps 400 and 422, and local model validation
	KindValidation
	// KindRateLimit maps 429
	KindRateLimit
	// KindServer maps 5xx
	KindServer
	// KindNetwork covers connection failures and timeouts
	KindNetwork
	// KindUsage covers misuse of the client, such as calls after Close
	KindUsage
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindRateLimit:
		return "rate_limit"
	case KindServer:
		return "server"
	case KindNetwork:
		return "network"
	case KindUsage:
		return "usage"
	default:
		return "generic"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindAuthentication:
		return ErrAuthentication
	case KindNotFound:
		return ErrNotFound
	case KindValidation:
		return ErrValidation
	case KindRateLimit:
		return ErrRateLimit
	case KindServer:
		return ErrServer
	case KindNetwork:
		return ErrNetwork
	case KindUsage:
		return ErrUsage
	default:
		return ErrUnexpected
	}
}

// Error is the single error type returned by the client. Usage errors wrap
// ErrClientClosed or ErrInvalidConfig in Err.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	// Fields holds per-field messages for validation errors.
	Fields    map[string][]string
	Body      []byte
	RequestID string
	Err       error
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("easyappointments: ")
	b.WriteString(e.Kind.String())
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.RequestID != "" {
		fmt.Fprintf(&b, " [request %s]", e.RequestID)
	}
	return b.String()
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// IsNotFound checks if the error indicates a not found response
func (e *Error) IsNotFound() bool {
	return e.Kind == KindNotFound
}

// IsUnauthorized checks if the error indicates an authentication failure
func (e *Error) IsUnauthorized() bool {
	return e.Kind == KindAuthentication
}

// Temporary reports whether retrying the request may succeed.
func (e *Error) Temporary() bool {
	switch e.Kind {
	case KindNetwork, KindRateLimit, KindServer:
		return true
	}
	return false
}

// IsTransient reports whether err is worth retrying: network failures, 429
// and 5xx responses.
func IsTransient(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return false
}

// KindOf returns the Kind of err, or KindGeneric if err is not an *Error.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindGeneric
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuthentication
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return KindValidation
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status >= 500:
		return KindServer
	default:
		return KindGeneric
	}
}

// mapError translates a non-2xx response into an *Error.
func mapError(status int, body []byte, requestID string) *Error {
	e := &Error{
		Kind:       kindForStatus(status),
		StatusCode: status,
		Body:       body,
		RequestID:  requestID,
	}

	message, fields := parseErrorBody(body)
	if message == "" {
		message = http.StatusText(status)
		if message == "" {
			message = fmt.Sprintf("HTTP error %d", status)
		}
	}
	e.Message = message
	if e.Kind == KindValidation && len(fields) > 0 {
		e.Fields = fields
	}
	return e
}

// parseErrorBody extracts a message and optional per-field details from an
// error payload. Recognised shapes:
//
//	{"message": "..."}
//	{"error": "..."}
//	{"email": ["taken"], "firstName": "required"}
//	["first problem", "second problem"]
//
// Anything that is not JSON is returned as trimmed text.
func parseErrorBody(body []byte) (string, map[string][]string) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "", nil
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return truncate(trimmed, 200), nil
	}

	switch v := payload.(type) {
	case map[string]any:
		fields := fieldErrors(v)
		if msg, ok := v["message"]; ok && msg != nil {
			return stringify(msg), fields
		}
		if msg, ok := v["error"]; ok && msg != nil {
			return stringify(msg), fields
		}
		if len(fields) > 0 {
			return formatFields(fields), fields
		}
		return trimmed, nil
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, stringify(item))
		}
		return strings.Join(parts, "; "), nil
	case string:
		return v, nil
	default:
		return trimmed, nil
	}
}

// fieldErrors collects {"field": ["msg"]} style details. A nested "errors"
// object is preferred when present.
func fieldErrors(payload map[string]any) map[string][]string {
	if nested, ok := payload["errors"].(map[string]any); ok {
		payload = nested
	}

	fields := make(map[string][]string)
	for key, value := range payload {
		if key == "message" || key == "error" || key == "code" || key == "status" {
			continue
		}
		switch v := value.(type) {
		case []any:
			for _, item := range v {
				fields[key] = append(fields[key], stringify(item))
			}
		case string:
			fields[key] = append(fields[key], v)
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func formatFields(fields map[string][]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(fields[k], ", ")))
	}
	return strings.Join(parts, "; ")
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		b, err := json.Marshal(s)
		if err != nil {
			return fmt.Sprint(s)
		}
		return string(b)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func networkError(err error) *Error {
	return &Error{
		Kind:    KindNetwork,
		Message: err.Error(),
		Err:     err,
	}
}

func validationError(message string, fields map[string][]string) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: message,
		Fields:  fields,
	}
}

func configError(format string, args ...any) *Error {
	return &Error{
		Kind:    KindUsage,
		Message: fmt.Sprintf(format, args...),
		Err:     ErrInvalidConfig,
	}
}

func closedError() *Error {
	return &Error{
		Kind:    KindUsage,
		Message: "request on closed client",
		Err:     ErrClientClosed,
	}
}
