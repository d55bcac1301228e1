package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error codes carried in the JSON body of a 401 response.
const (
	CodeTokenExpired = "token.expired"
	CodeTokenInvalid = "token.invalid"
)

var (
	ErrNoToken            = errors.New("no token")
	ErrTokenExpired       = errors.New("access token expired")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrRefreshRequest     = errors.New("failed to refresh tokens")
	ErrRefreshResponse    = errors.New("invalid refresh response")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotSignedIn        = errors.New("not signed in")
)

// StatusError is a non-2xx response from the API.
//
// It matches ErrUnauthorized for every 401 and ErrTokenExpired for a 401
// whose body carries the token.expired code, so callers can use errors.Is.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Code != "" {
		fmt.Fprintf(&b, " (%s)", e.Code)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	return b.String()
}

func (e *StatusError) Is(target error) bool {
	if e.StatusCode != http.StatusUnauthorized {
		return false
	}
	switch target {
	case ErrUnauthorized:
		return true
	case ErrTokenExpired:
		return e.Code == CodeTokenExpired
	default:
		return false
	}
}

// ErrorBody is the JSON shape of an API error response.
type ErrorBody struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// parseErrorBody reads whatever error details a response body carries.
// Bodies that are not JSON yield the zero value.
func parseErrorBody(data []byte) ErrorBody {
	var body ErrorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return ErrorBody{}
	}
	if body.Message == "" {
		body.Message = body.Error
	}
	return body
}

func newStatusError(req *http.Request, statusCode int, data []byte) *StatusError {
	body := parseErrorBody(data)
	e := &StatusError{
		StatusCode: statusCode,
		Code:       body.Code,
		Message:    body.Message,
	}
	if req != nil {
		e.Method = req.Method
		e.URL = req.URL.Redacted()
	}
	return e
}
