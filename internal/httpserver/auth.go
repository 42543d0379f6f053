package httpserver

import (
	"context"
	"net/http"
)

type contextKey string

const subjectKey contextKey = "auth-subject"

// requireSubject guards the /api/me routes. The identity proxy in front of
// the service terminates authentication and forwards the verified subject
// in a trusted header; a request without it is unauthenticated.
func (h *handler) requireSubject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject := r.Header.Get(h.subjectHeader)
		if subject == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
			return
		}
		ctx := context.WithValue(r.Context(), subjectKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func subjectFromContext(ctx context.Context) string {
	subject, _ := ctx.Value(subjectKey).(string)
	return subject
}
