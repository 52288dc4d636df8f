package testutil

import (
	"net/http"

	id "crimewatch/pkg/domain"
	authmw "crimewatch/pkg/platform/middleware/auth"
	"crimewatch/pkg/requestcontext"
)

// WithCaller puts an authenticated caller on the request context, the way
// RequireAuth does after validating a token.
func WithCaller(req *http.Request, submitterID id.SubmitterID, sessionID id.SessionID, roles ...string) *http.Request {
	ctx := requestcontext.WithSubmitterID(req.Context(), submitterID)
	ctx = requestcontext.WithSessionID(ctx, sessionID)
	ctx = requestcontext.WithUserAgent(ctx, req.UserAgent())
	ctx = authmw.WithRoles(ctx, roles)
	return req.WithContext(ctx)
}
