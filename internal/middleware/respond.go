package middleware

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/creditgate/creditgate/internal/handler/dto"
)

// Error codes written by the middleware chain.
const (
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeTooManyAttempts = "TOO_MANY_ATTEMPTS"
	CodeTooManyRequests = "TOO_MANY_REQUESTS"
	CodeInternalError   = "INTERNAL_ERROR"
	CodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
)

// ClientIP returns the client address of r without its port.
// chi's RealIP middleware, mounted only when proxies are trusted, has
// already replaced RemoteAddr with the forwarded address.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{Error: message, Code: code})
}
