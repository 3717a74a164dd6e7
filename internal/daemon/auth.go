package daemon

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"captioner/internal/api"
)

// authMiddleware requires "Authorization: Bearer <token>" when token is set.
// An empty token leaves the route open.
func authMiddleware(token string, next http.HandlerFunc) http.HandlerFunc {
	if token == "" {
		return next
	}
	expected := []byte(token)
	return func(w http.ResponseWriter, r *http.Request) {
		scheme, presented, ok := strings.Cut(r.Header.Get("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") ||
			subtle.ConstantTimeCompare([]byte(strings.TrimSpace(presented)), expected) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="captioner"`)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "unauthorized"})
			return
		}
		next(w, r)
	}
}
