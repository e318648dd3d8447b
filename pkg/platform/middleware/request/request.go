// Package request stamps every request with an ID and a single "now".
package request

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"propshare/pkg/requestcontext"
)

// HeaderRequestID is honoured when a proxy already assigned an ID.
const HeaderRequestID = "X-Request-ID"

// Middleware assigns a request ID (reusing a well-formed incoming one) and
// captures the request time so every log line and event in the request agree.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, requestID)

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		ctx = requestcontext.WithTime(ctx, time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}
