package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"coupon-marketplace/internal/domain"
	"coupon-marketplace/internal/domain/model"
	"coupon-marketplace/internal/domain/ports/adapter"
	"coupon-marketplace/internal/infra/logging"

	"github.com/golang-jwt/jwt/v5"
)

// ===== Bearer token primitives =====

var errUnauthenticated = errors.New("missing or invalid bearer token")

type Claims struct {
	Role  model.AccountRole `json:"role"`
	Email string            `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 bearer tokens. Only verification is
// used when serving; Mint exists for the seed tool and tests.
type TokenManager struct {
	secret []byte
	issuer string
}

func NewTokenManager(secret, issuer string) *TokenManager {
	return &TokenManager{secret: []byte(secret), issuer: issuer}
}

func (m *TokenManager) Mint(p adapter.Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role:  p.Role,
		Email: p.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *TokenManager) Verify(raw string) (adapter.Principal, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		return adapter.Principal{}, err
	}
	if claims.Subject == "" {
		return adapter.Principal{}, errUnauthenticated
	}
	if claims.Role != model.AccountRoleMerchant && claims.Role != model.AccountRolePlayer {
		return adapter.Principal{}, errUnauthenticated
	}
	return adapter.Principal{ID: claims.Subject, Email: claims.Email, Role: claims.Role}, nil
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p adapter.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// ContextIdentity reads the principal placed on the request by Authenticate.
type ContextIdentity struct{}

var _ adapter.Identity = ContextIdentity{}

func (ContextIdentity) CurrentUser(ctx context.Context) (adapter.Principal, error) {
	p, ok := ctx.Value(principalKey{}).(adapter.Principal)
	if !ok {
		return adapter.Principal{}, errUnauthenticated
	}
	return p, nil
}

// Authenticate rejects requests without a valid bearer token.
func Authenticate(tokens *TokenManager) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			raw := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
			if raw == "" || raw == h {
				writeUnauthenticated(w)
				return
			}
			p, err := tokens.Verify(raw)
			if err != nil {
				writeUnauthenticated(w)
				return
			}
			ctx := withPrincipal(r.Context(), p)
			ctx = logging.WithActorID(ctx, p.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole answers 403 when the authenticated caller holds another role.
func RequireRole(id adapter.Identity, role model.AccountRole) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := id.CurrentUser(r.Context())
			if err != nil {
				writeUnauthenticated(w)
				return
			}
			if p.Role != role {
				writeError(w, r, nil, domain.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthenticated(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="coupon-marketplace"`)
	writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthenticated", Message: errUnauthenticated.Error()})
}
