package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// HTTPError is returned for every response with a status code >= 400.
type HTTPError struct {
	StatusCode int
	Status     string
	// Message is extracted from the body's "message" or "error" field, or
	// falls back to the raw body and then to the status text.
	Message string
	Body    []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// MarshalJSON renders the error as the structured "log" object of the
// scripted output contract.
func (e *HTTPError) MarshalJSON() ([]byte, error) {
	out := struct {
		StatusCode int             `json:"statusCode"`
		Message    string          `json:"message"`
		Data       json.RawMessage `json:"data,omitempty"`
	}{
		StatusCode: e.StatusCode,
		Message:    e.Message,
	}

	trimmed := strings.TrimSpace(string(e.Body))
	switch {
	case trimmed == "":
	case json.Valid([]byte(trimmed)):
		out.Data = json.RawMessage(trimmed)
	default:
		quoted, err := json.Marshal(trimmed)
		if err != nil {
			return nil, err
		}
		out.Data = quoted
	}
	return json.Marshal(out)
}

func newHTTPError(resp *http.Response, body []byte) *HTTPError {
	return &HTTPError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Message:    extractMessage(body, resp.StatusCode),
		Body:       body,
	}
}

func extractMessage(body []byte, statusCode int) string {
	var errResp struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil {
		if errResp.Message != "" {
			return errResp.Message
		}
		if errResp.Error != "" {
			return errResp.Error
		}
	}

	if trimmed := strings.TrimSpace(string(body)); trimmed != "" {
		return trimmed
	}
	return http.StatusText(statusCode)
}

// StatusCode returns the HTTP status carried by err, if any.
func StatusCode(err error) (int, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode, true
	}
	return 0, false
}
