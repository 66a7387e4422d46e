package middleware

import (
	"encoding/json"
	"net"
	"net/http"
)

// healthPaths bypass rate limiting and CSRF entirely.
var healthPaths = map[string]struct{}{
	"/healthz": {},
	"/livez":   {},
	"/readyz":  {},
}

func isHealthPath(path string) bool {
	_, ok := healthPaths[path]
	return ok
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// clientAddr extracts the client host from RemoteAddr, dropping the port.
// Handles bracketed IPv6 literals; a portless RemoteAddr passes through.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
