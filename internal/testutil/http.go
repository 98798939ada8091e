package testutil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

// HTTPResult captures HTTP response details for test assertions
type HTTPResult struct {
	Code    int
	Headers http.Header
	Cookies []*http.Cookie
	Body    []byte
}

// ExpectStatus validates the HTTP status code and fails the test if it doesn't match
func ExpectStatus(
	t *testing.T,
	expected int,
	result HTTPResult,
) {
	t.Helper()
	if result.Code != expected {
		t.Fatalf("expected status %d, got %d. Body: %s", expected, result.Code, string(result.Body))
	}
}

// ExpectRedirect validates a redirect response with the given status and
// returns the Location header
func ExpectRedirect(
	t *testing.T,
	expected int,
	result HTTPResult,
) string {
	t.Helper()
	if result.Code != expected {
		t.Fatalf("expected redirect (%d), got %d. Body: %s", expected, result.Code, string(result.Body))
	}
	location := result.Headers.Get("Location")
	if location == "" {
		t.Fatal("expected Location header in redirect")
	}
	return location
}

// Cookie returns the named cookie set by the response, or nil
func (r HTTPResult) Cookie(name string) *http.Cookie {
	for _, c := range r.Cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Get performs a GET request
func Get(
	router http.Handler,
	url string,
) HTTPResult {
	req := httptest.NewRequest(http.MethodGet, url, nil)
	return serve(router, req)
}

// Post performs a POST request
func Post(
	router http.Handler,
	url string,
	body string,
) HTTPResult {
	req := httptest.NewRequest(http.MethodPost, url, strings.NewReader(body))
	return serve(router, req)
}

// CallbackURL builds the callback path carrying code and state, leaving out
// empty values
func CallbackURL(
	code string,
	state string,
) string {
	q := url.Values{}
	if code != "" {
		q.Set("code", code)
	}
	if state != "" {
		q.Set("state", state)
	}
	return "/callback?" + q.Encode()
}

func serve(
	router http.Handler,
	req *http.Request,
) HTTPResult {
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return HTTPResult{
		Code:    res.Code,
		Headers: res.Header(),
		Cookies: res.Result().Cookies(),
		Body:    res.Body.Bytes(),
	}
}
