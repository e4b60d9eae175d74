package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/UnknownOlympus/dispatch/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

var (
	errMissingToken = errors.New("missing bearer token")
	errInvalidToken = errors.New("invalid bearer token")
	errForbidden    = errors.New("role not allowed")
)

// Claims are the bearer token claims issued by the authentication service.
type Claims struct {
	UserID int         `json:"user_id"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

type principalKey struct{}

// Authenticator verifies HS256 bearer tokens and exposes the caller as a models.Principal.
type Authenticator struct {
	log    *slog.Logger
	secret []byte
	parser *jwt.Parser
}

// NewAuthenticator creates an Authenticator for tokens signed with secret.
func NewAuthenticator(log *slog.Logger, secret string) *Authenticator {
	return &Authenticator{
		log:    log,
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

// Verify parses a raw token and returns the principal it carries.
func (a *Authenticator) Verify(raw string) (models.Principal, error) {
	claims := &Claims{}

	_, err := a.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return models.Principal{}, fmt.Errorf("%w: %w", errInvalidToken, err)
	}

	if claims.UserID <= 0 || !claims.Role.Valid() {
		return models.Principal{}, fmt.Errorf("%w: incomplete claims", errInvalidToken)
	}

	return models.Principal{UserID: claims.UserID, Role: claims.Role}, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// principal in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			writeError(a.log, w, r, errMissingToken)
			return
		}

		principal, err := a.Verify(strings.TrimSpace(raw))
		if err != nil {
			writeError(a.log, w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, principal)))
	})
}

// RequireRole lets through principals holding one of roles.
func (a *Authenticator) RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFrom(r.Context())
			if !ok {
				writeError(a.log, w, r, errMissingToken)
				return
			}
			if !slices.Contains(roles, principal.Role) {
				writeError(a.log, w, r, errForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PrincipalFrom returns the authenticated caller stored in ctx.
func PrincipalFrom(ctx context.Context) (models.Principal, bool) {
	principal, ok := ctx.Value(principalKey{}).(models.Principal)
	return principal, ok
}
