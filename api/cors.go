package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/handlers"
)

// CORSMiddleware answers browser preflights for the dashboard origin. It wraps
// the router so preflights never reach route matching. Credentials are only
// allowed for a concrete origin, never for "*".
func CORSMiddleware(allowedOrigin string) func(http.Handler) http.Handler {
	allowedOrigin = strings.TrimRight(allowedOrigin, "/")
	opts := []handlers.CORSOption{
		handlers.AllowedOrigins([]string{allowedOrigin}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type", RequestIDHeader}),
		handlers.ExposedHeaders([]string{RequestIDHeader}),
		handlers.OptionStatusCode(http.StatusNoContent),
	}
	if allowedOrigin != "*" {
		opts = append(opts, handlers.AllowCredentials())
	}
	return handlers.CORS(opts...)
}
