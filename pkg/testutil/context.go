package testutil

import (
	"net/http"

	"certtrace/pkg/domain"
	"certtrace/pkg/requestcontext"
)

// WithActor adds an authenticated caller to the request context, as the auth
// middleware would.
func WithActor(req *http.Request, actor domain.Address) *http.Request {
	return req.WithContext(requestcontext.WithActor(req.Context(), actor))
}
