package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCsrfConfig() CsrfConfig {
	return CsrfConfig{
		CookieName: "hk_csrf",
		HeaderName: "X-CSRF-Token",
		MaxAge:     24 * time.Hour,
	}
}

func csrfHandler(t *testing.T) (http.Handler, *bool) {
	t.Helper()
	reached := false
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	})
	return Csrf(testCsrfConfig(), nil)(next), &reached
}

func csrfCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestCsrfSeedsCookieOnSafeRequest(t *testing.T) {
	h, reached := csrfHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items", nil))

	assert.True(t, *reached)
	cookie := csrfCookie(rec, "hk_csrf")
	require.NotNil(t, cookie, "first visit must seed the csrf cookie")
	assert.NotEmpty(t, cookie.Value)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.False(t, cookie.HttpOnly, "client script must be able to mirror the cookie")
}

func TestCsrfGetNeverChecked(t *testing.T) {
	h, reached := csrfHandler(t)

	// Mismatched header on a GET: still admitted.
	req := httptest.NewRequest(http.MethodGet, "/items", nil)
	req.AddCookie(&http.Cookie{Name: "hk_csrf", Value: "aaa"})
	req.Header.Set("X-CSRF-Token", "bbb")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.True(t, *reached)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCsrfMatchAdmitsAndRotates(t *testing.T) {
	h, reached := csrfHandler(t)

	const token = "matching-token-value"
	req := httptest.NewRequest(http.MethodPost, "/items", nil)
	req.AddCookie(&http.Cookie{Name: "hk_csrf", Value: token})
	req.Header.Set("X-CSRF-Token", token)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.True(t, *reached)
	assert.Equal(t, http.StatusOK, rec.Code)

	rotated := csrfCookie(rec, "hk_csrf")
	require.NotNil(t, rotated, "successful validation must rotate the cookie")
	assert.NotEmpty(t, rotated.Value)
	assert.NotEqual(t, token, rotated.Value)
}

func TestCsrfRejections(t *testing.T) {
	tests := []struct {
		name   string
		cookie string
		header string
	}{
		{"missing header", "aaa", ""},
		{"missing cookie", "", "aaa"},
		{"mismatch", "aaa", "bbb"},
		{"length mismatch", "aaa", "aaaa"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, reached := csrfHandler(t)

			req := httptest.NewRequest(http.MethodDelete, "/items/1", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "hk_csrf", Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set("X-CSRF-Token", tt.header)
			}

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.False(t, *reached, "rejection must short-circuit the chain")
			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.JSONEq(t, `{"error":"invalid csrf token","statusCode":403}`, rec.Body.String())
		})
	}
}

func TestCsrfHealthPathExempt(t *testing.T) {
	h, reached := csrfHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))

	assert.True(t, *reached)
	assert.Equal(t, http.StatusOK, rec.Code)
}
