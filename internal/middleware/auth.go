// Package middleware provides the HTTP middleware chain: Supabase JWT
// authentication, role gating, tracing, rate limiting and CORS.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/debtdesk/debtdesk/internal/domain"
	"github.com/debtdesk/debtdesk/internal/errors"
	"github.com/debtdesk/debtdesk/internal/httputil"
	"github.com/debtdesk/debtdesk/internal/logging"
	"github.com/debtdesk/debtdesk/internal/supabase"
)

// Identity is the authenticated caller extracted from a Supabase JWT.
type Identity struct {
	ID    string
	Email string
	// Role is the GoTrue role (usually "authenticated"), not the
	// application profile role.
	Role  string
	Token string
}

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity returns a context carrying the authenticated identity.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// GetIdentity returns the authenticated identity from ctx, or nil.
func GetIdentity(ctx context.Context) *Identity {
	id, ok := ctx.Value(identityKey).(*Identity)
	if !ok {
		return nil
	}
	return id
}

// TokenVerifier validates an access token against the auth provider. The
// Supabase auth client satisfies it.
type TokenVerifier interface {
	GetUser(ctx context.Context, accessToken string) (*supabase.User, error)
}

// SupabaseAuth authenticates requests carrying Supabase-issued JWTs.
// Verification is local HS256 against the project JWT secret when one is
// configured; otherwise (or when local verification fails) the token is
// checked against the auth REST API.
type SupabaseAuth struct {
	jwtSecret string
	verifier  TokenVerifier
	logger    *logging.Logger
	skipPaths map[string]bool
}

// NewSupabaseAuth creates the auth middleware. Requests to skipPaths pass
// through unauthenticated.
func NewSupabaseAuth(jwtSecret string, verifier TokenVerifier, logger *logging.Logger, skipPaths []string) *SupabaseAuth {
	skip := make(map[string]bool)
	for _, p := range skipPaths {
		skip[p] = true
	}
	return &SupabaseAuth{
		jwtSecret: jwtSecret,
		verifier:  verifier,
		logger:    logger,
		skipPaths: skip,
	}
}

// Handler returns the middleware handler.
func (m *SupabaseAuth) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httputil.WriteServiceError(w, errors.Unauthorized("Missing Authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			httputil.WriteServiceError(w, errors.Unauthorized("Invalid Authorization header format"))
			return
		}
		token := parts[1]

		identity, err := m.verify(r.Context(), token)
		if err != nil {
			m.logger.WithContext(r.Context()).WithError(err).Warn("token validation failed")
			httputil.WriteServiceError(w, errors.InvalidToken(err))
			return
		}

		ctx := WithIdentity(r.Context(), identity)
		ctx = logging.WithUserID(ctx, identity.ID)
		ctx = logging.WithRole(ctx, identity.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *SupabaseAuth) verify(ctx context.Context, token string) (*Identity, error) {
	if m.jwtSecret != "" {
		if id, err := m.verifyLocal(token); err == nil {
			return id, nil
		}
	}
	return m.verifyRemote(ctx, token)
}

// verifyLocal checks the HS256 signature against the project JWT secret.
func (m *SupabaseAuth) verifyLocal(token string) (*Identity, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(m.jwtSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("jwt parse: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("jwt invalid")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("jwt missing sub")
	}
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)

	return &Identity{ID: sub, Email: email, Role: role, Token: token}, nil
}

// verifyRemote asks the auth REST API who the token belongs to.
func (m *SupabaseAuth) verifyRemote(ctx context.Context, token string) (*Identity, error) {
	user, err := m.verifier.GetUser(ctx, token)
	if err != nil {
		return nil, err
	}
	return &Identity{ID: user.ID, Email: user.Email, Role: user.Role, Token: token}, nil
}

// RoleSource resolves the application profile for an identity. The
// profiles repository satisfies it.
type RoleSource interface {
	Get(ctx context.Context, id string) (*domain.Profile, error)
}

// RequireAuth rejects requests with no authenticated identity.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetIdentity(r.Context()) == nil {
			httputil.WriteServiceError(w, errors.Unauthorized("authentication required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin gates a handler on the caller's profile having the admin
// role. The gate reads the profiles table, not the JWT, so demotions take
// effect without waiting for token expiry.
func RequireAdmin(roles RoleSource, logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := GetIdentity(r.Context())
			if identity == nil {
				httputil.WriteServiceError(w, errors.Unauthorized("authentication required"))
				return
			}

			profile, err := roles.Get(r.Context(), identity.ID)
			if err != nil {
				logger.WithContext(r.Context()).WithError(err).Warn("role lookup failed")
				httputil.WriteServiceError(w, errors.Forbidden("admin access required"))
				return
			}
			if !profile.IsAdmin() {
				logger.LogSecurityEvent(r.Context(), "admin_access_denied", map[string]interface{}{
					"path": r.URL.Path,
				})
				httputil.WriteServiceError(w, errors.Forbidden("admin access required"))
				return
			}

			next.ServeHTTP(w, r.WithContext(logging.WithRole(r.Context(), profile.Role)))
		})
	}
}
