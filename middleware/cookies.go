package middleware

import (
	"net/http"
	"time"
)

// Cookie names for browser clients carrying tokens via cookies instead of
// the Authorization header.
const (
	AccessTokenCookie  = "hk_access"
	RefreshTokenCookie = "hk_refresh"
)

// SetTokenCookies writes the access and refresh tokens as httpOnly lax
// cookies with lifetimes matching the tokens themselves.
func SetTokenCookies(w http.ResponseWriter, accessToken, refreshToken string, accessTTL, refreshTTL time.Duration, secure bool) {
	http.SetCookie(w, tokenCookie(AccessTokenCookie, accessToken, accessTTL, secure))
	http.SetCookie(w, tokenCookie(RefreshTokenCookie, refreshToken, refreshTTL, secure))
}

// ClearTokenCookies expires both token cookies; called on logout.
func ClearTokenCookies(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, tokenCookie(AccessTokenCookie, "", -time.Second, secure))
	http.SetCookie(w, tokenCookie(RefreshTokenCookie, "", -time.Second, secure))
}

func tokenCookie(name, value string, ttl time.Duration, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
