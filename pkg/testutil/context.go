package testutil

import (
	"net/http"

	"propshare/pkg/domain"
	"propshare/pkg/requestcontext"
)

// WithCaller stores caller on the request the way the auth middleware does
// for a valid bearer token.
func WithCaller(req *http.Request, caller domain.Address) *http.Request {
	return req.WithContext(requestcontext.WithCaller(req.Context(), caller))
}
