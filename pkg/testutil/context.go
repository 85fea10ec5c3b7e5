package testutil

import (
	"net/http"

	"kontrakpro/pkg/requestcontext"
)

// WithPrincipal attaches an authenticated user to the request, as the bearer
// auth middleware would.
func WithPrincipal(req *http.Request, p requestcontext.AuthPrincipal) *http.Request {
	return req.WithContext(requestcontext.WithPrincipal(req.Context(), p))
}

// WithClientMetadata attaches the client IP and User-Agent the metadata
// middleware would extract.
func WithClientMetadata(req *http.Request, clientIP, userAgent string) *http.Request {
	return req.WithContext(requestcontext.WithClientMetadata(req.Context(), clientIP, userAgent))
}
