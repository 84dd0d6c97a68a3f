package http

import (
	"context"
	"net/http"
	"strconv"
)

// userIDHeader carries the authenticated user's identity. Authentication
// itself lives in the reverse proxy; this service trusts the header.
const userIDHeader = "X-User-ID"

type userIDKey struct{}

// withIdentity rejects requests without a usable identity header and puts
// the user ID in the request context for handlers.
func withIdentity(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(userIDHeader)
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			respondJSON(w, http.StatusUnauthorized, errorBody{Error: "missing or invalid " + userIDHeader + " header"})
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey{}, userID)
		next(w, r.WithContext(ctx))
	}
}

func userFrom(ctx context.Context) int64 {
	id, _ := ctx.Value(userIDKey{}).(int64)
	return id
}
