package saltedge

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrMissingCredentials = errors.New("saltedge: app id and secret are required")
	ErrTooManyPages       = errors.New("saltedge: pagination did not terminate")
)

// APIError is returned for any non-2xx response or transport failure.
// StatusCode is zero when the request never produced a response.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Class      string
	Message    string
	Body       string
	Err        error
}

func (e *APIError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("saltedge: %s %s: %v", e.Method, e.Path, e.Err)
	case e.Class != "" || e.Message != "":
		return fmt.Sprintf("saltedge: %s %s: status %d: %s: %s", e.Method, e.Path, e.StatusCode, e.Class, e.Message)
	default:
		return fmt.Sprintf("saltedge: %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, truncate(e.Body, 512))
	}
}

func (e *APIError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is an aggregator 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsUnauthorized reports whether the aggregator rejected our credentials.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) &&
		(apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden)
}

// errorBody accepts both the nested {"error": {...}} shape and the flat
// error_class/error_message shape of older API versions.
type errorBody struct {
	Error *struct {
		Class   string `json:"class"`
		Message string `json:"message"`
	} `json:"error"`
	ErrorClass   string `json:"error_class"`
	ErrorMessage string `json:"error_message"`
}

func newAPIError(method, path string, status int, body []byte) *APIError {
	apiErr := &APIError{Method: method, Path: path, StatusCode: status, Body: string(body)}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return apiErr
	}
	if eb.Error != nil {
		apiErr.Class, apiErr.Message = eb.Error.Class, eb.Error.Message
	} else {
		apiErr.Class, apiErr.Message = eb.ErrorClass, eb.ErrorMessage
	}
	return apiErr
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
