package metadata

import (
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"crimewatch/pkg/requestcontext"
)

// ClientMetadata copies the chi request id and the User-Agent into the
// request context. Mount it after chi's RequestID middleware.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if reqID := chimw.GetReqID(ctx); reqID != "" {
			ctx = requestcontext.WithRequestID(ctx, reqID)
		}
		ctx = requestcontext.WithUserAgent(ctx, r.Header.Get("User-Agent"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
