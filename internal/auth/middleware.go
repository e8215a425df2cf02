package auth

import (
	"log"
	"net/http"
	"strings"
)

// Middleware authenticates bearer tokens and enforces the route policy.
type Middleware struct {
	secret []byte
	policy Policy
	logger *log.Logger
}

// NewMiddleware constructs the middleware. An empty secret disables it.
func NewMiddleware(secret []byte, policy Policy, logger *log.Logger) *Middleware {
	if len(secret) == 0 {
		return nil
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Middleware{secret: secret, policy: policy, logger: logger}
}

// Wrap applies authentication and the route policy to next.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.policy.IsExempt(r) {
			next.ServeHTTP(w, r)
			return
		}
		required, ok := m.policy.RequiredRole(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		identity, err := ParseToken(bearerToken(r), m.secret)
		if err != nil {
			m.logger.Printf("auth: reject %s %s: %v", r.Method, r.URL.Path, err)
			w.Header().Set("WWW-Authenticate", `Bearer realm="mapping"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if !identity.Role.Allows(required) {
			m.logger.Printf("auth: forbid %s %s: subject=%s role=%s needs=%s", r.Method, r.URL.Path, identity.Subject, identity.Role, required)
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
