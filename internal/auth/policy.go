package auth

import (
	"net/http"
	"strings"
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

// RequiredRole resolves required role for the request. Viewers read,
// operators write readings and imports, admins delete.
func (p Policy) RequiredRole(r *http.Request) (Role, bool) {
	if r == nil {
		return "", false
	}
	path := r.URL.Path
	method := r.Method

	switch {
	case strings.HasPrefix(path, "/api/v1/scan/"):
		return RoleOperator, true
	case path == "/api/v1/imports/parse":
		return RoleOperator, true
	case strings.HasPrefix(path, "/api/v1/meters/") && strings.HasSuffix(path, "/import"):
		return RoleOperator, true
	case strings.HasPrefix(path, "/api/v1/meters/") && strings.Contains(path, "/export."):
		return RoleViewer, true
	case path == "/api/v1/meters" || strings.HasPrefix(path, "/api/v1/meters/"):
		switch method {
		case http.MethodGet, http.MethodHead:
			return RoleViewer, true
		case http.MethodDelete:
			return RoleAdmin, true
		default:
			return RoleOperator, true
		}
	case path == "/api/v1/buildings" || strings.HasPrefix(path, "/api/v1/buildings/"),
		path == "/api/v1/units" || strings.HasPrefix(path, "/api/v1/units/"):
		switch method {
		case http.MethodGet, http.MethodHead:
			return RoleViewer, true
		case http.MethodDelete:
			return RoleAdmin, true
		default:
			return RoleOperator, true
		}
	}

	if strings.HasPrefix(path, "/api/") {
		if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
			return RoleViewer, true
		}
		return RoleOperator, true
	}
	return "", false
}
