package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the token payload this service accepts: the organization
// the caller belongs to and their role within it.
type Claims struct {
	OrgID string `json:"org_id"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

var (
	errNoToken  = errors.New("auth: missing bearer token")
	errBadToken = errors.New("auth: invalid token")
)

// Middleware authenticates API requests and enforces the role policy.
type Middleware struct {
	Secret []byte
	Policy Policy
}

// NewMiddleware constructs an auth middleware.
func NewMiddleware(secret []byte, policy Policy) *Middleware {
	return &Middleware{Secret: secret, Policy: policy}
}

// Wrap guards the handler. Exempt paths and routes without a role
// requirement pass through untouched; everything else needs a token
// whose role satisfies the policy, and the verified identity is put on
// the request context for handlers and audit logging.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Policy.IsExempt(r) {
			next.ServeHTTP(w, r)
			return
		}
		required, ok := m.Policy.RequiredRole(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		claims, role, err := m.authenticate(r)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if !role.Allows(required) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		ctx := WithIdentity(r.Context(), claims.OrgID, role, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authenticate verifies the bearer token on the request. HS256 only;
// a token without an organization or with a role we never issue fails
// even when the signature checks out.
func (m *Middleware) authenticate(r *http.Request) (*Claims, Role, error) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return nil, "", errNoToken
	}
	if len(m.Secret) == 0 {
		return nil, "", errors.New("auth: no signing secret configured")
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, "", errBadToken
	}
	if claims.OrgID == "" {
		return nil, "", errBadToken
	}
	role := Role(claims.Role)
	if !role.Known() {
		return nil, "", errBadToken
	}
	if claims.ExpiresAt != nil && time.Now().After(claims.ExpiresAt.Time) {
		return nil, "", errBadToken
	}
	return claims, role, nil
}
