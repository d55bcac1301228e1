package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"git.sr.ht/~jakintosh/authclient/pkg/tokens"
)

// HTTPResult captures HTTP response details for test assertions
type HTTPResult struct {
	Code    int
	Error   error
	Headers http.Header
	Body    []byte
}

// Header represents an HTTP header key-value pair
type Header struct {
	Key   string
	Value string
}

// ContentTypeJSON returns a header for JSON content type
func ContentTypeJSON() Header {
	return Header{
		Key:   "Content-Type",
		Value: "application/json",
	}
}

// Bearer returns an Authorization header for an access token
func Bearer(access string) Header {
	return Header{
		Key:   "Authorization",
		Value: "Bearer " + access,
	}
}

// ExpectStatus validates the HTTP status code and fails the test if it doesn't match
func ExpectStatus(
	t *testing.T,
	expected int,
	result HTTPResult,
) {
	t.Helper()
	if result.Error != nil {
		t.Fatalf("request error: %v", result.Error)
	}
	if result.Code != expected {
		t.Fatalf("expected status %d, got %d. Body: %s", expected, result.Code, string(result.Body))
	}
}

// ExpectRedirect validates a redirect response and returns the Location header
func ExpectRedirect(
	t *testing.T,
	result HTTPResult,
) string {
	t.Helper()
	if result.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect (303), got %d. Body: %s", result.Code, string(result.Body))
	}
	location := result.Headers.Get("Location")
	if location == "" {
		t.Fatal("expected Location header in redirect")
	}
	return location
}

// Get performs a GET request and optionally decodes a JSON response
func Get(
	router http.Handler,
	url string,
	response any,
	headers ...Header,
) HTTPResult {
	req := httptest.NewRequest(http.MethodGet, url, nil)
	return serve(router, req, response, headers)
}

// Post performs a POST request and optionally decodes a JSON response
func Post(
	router http.Handler,
	url string,
	body string,
	response any,
	headers ...Header,
) HTTPResult {
	req := httptest.NewRequest(http.MethodPost, url, strings.NewReader(body))
	return serve(router, req, response, headers)
}

func serve(
	router http.Handler,
	req *http.Request,
	response any,
	headers []Header,
) HTTPResult {
	for _, h := range headers {
		req.Header.Add(h.Key, h.Value)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	result := HTTPResult{Code: rec.Code, Headers: rec.Header(), Body: rec.Body.Bytes()}
	if response != nil && rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), response); err != nil {
			result.Error = fmt.Errorf("failed to decode JSON: %v\n%s", err, rec.Body.String())
		}
	}
	return result
}

// PostJSON performs a POST with JSON body
func PostJSON(
	router http.Handler,
	urlPath string,
	body string,
	response any,
	headers ...Header,
) HTTPResult {
	return Post(router, urlPath, body, response, append(headers, ContentTypeJSON())...)
}

// FormURLEncoded returns a header for a urlencoded form body
func FormURLEncoded() Header {
	return Header{
		Key:   "Content-Type",
		Value: "application/x-www-form-urlencoded",
	}
}

// SessionCookies returns a Cookie header carrying a token pair the way a
// browser sends it back
func SessionCookies(pair tokens.Pair) Header {
	return Header{
		Key: "Cookie",
		Value: tokens.AccessTokenName + "=" + pair.Access + "; " +
			tokens.RefreshTokenName + "=" + pair.Refresh,
	}
}

// ResponseCookie returns the named cookie set by a response, if any
func ResponseCookie(result HTTPResult, name string) (*http.Cookie, bool) {
	for _, cookie := range (&http.Response{Header: result.Headers}).Cookies() {
		if cookie.Name == name {
			return cookie, true
		}
	}
	return nil, false
}
