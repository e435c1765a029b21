package middleware

import (
	"context"
	"net/http"
)

type callerCtxKey struct{}

const headerUserID = "X-User-ID"

// publicPaths are exempt from caller identification.
var publicPaths = map[string]bool{
	"/health": true,
}

// Identity extracts the authenticated caller from the X-User-ID header
// set by the upstream auth gateway (session issuance is out of scope
// here) and stores it in the request context. Requests without an
// identity are rejected except on public paths.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if publicPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		userID := r.Header.Get(headerUserID)
		if userID == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"caller identity required"}`))
			return
		}

		ctx := context.WithValue(r.Context(), callerCtxKey{}, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CallerID returns the authenticated caller's user ID from the context.
// Empty when the request carried no identity.
func CallerID(ctx context.Context) string {
	id, _ := ctx.Value(callerCtxKey{}).(string)
	return id
}
