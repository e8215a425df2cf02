package auth

import (
	"net/http"
	"strings"
)

const (
	mappingSessionsPath   = "/api/v1/mapping-sessions"
	mappingSessionsPrefix = mappingSessionsPath + "/"
)

// Policy determines required roles by request.
type Policy struct {
	ExemptPaths    map[string]struct{}
	ExemptPrefixes []string
}

// NewDefaultPolicy builds a default policy with exemptions.
func NewDefaultPolicy(exemptPaths []string, exemptPrefixes []string) Policy {
	set := make(map[string]struct{}, len(exemptPaths))
	for _, path := range exemptPaths {
		set[path] = struct{}{}
	}
	return Policy{ExemptPaths: set, ExemptPrefixes: exemptPrefixes}
}

// IsExempt returns true when a request should skip auth/RBAC.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	if _, ok := p.ExemptPaths[r.URL.Path]; ok {
		return true
	}
	for _, prefix := range p.ExemptPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// RequiredRole resolves required role for the request.
//
// Viewers may open sessions, read, filter and export. Edits, window changes
// and saves need an editor.
func (p Policy) RequiredRole(r *http.Request) (Role, bool) {
	if r == nil {
		return "", false
	}
	path := r.URL.Path
	method := r.Method

	switch {
	case path == mappingSessionsPath:
		return RoleViewer, true
	case strings.HasPrefix(path, mappingSessionsPrefix):
		if isReadMethod(method) {
			return RoleViewer, true
		}
		if method == http.MethodDelete {
			return RoleViewer, true
		}
		return RoleEditor, true
	case path == "/api/v1/mapping-fields", path == "/api/v1/facets", path == "/api/v1/mapping-audit":
		return RoleViewer, true
	}

	if strings.HasPrefix(path, "/api/") {
		if isReadMethod(method) {
			return RoleViewer, true
		}
		return RoleEditor, true
	}
	return "", false
}

func isReadMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}
