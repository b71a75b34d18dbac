// Package auth authenticates API requests with HS256 JWTs issued by the
// account service. The engine only verifies tokens and extracts the owner id.
package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"campaign-engine/internal/common/errors"
	"campaign-engine/internal/common/logging"
)

// Claims carried in engine API tokens.
type Claims struct {
	OwnerID string `json:"owner_id"`
	jwt.RegisteredClaims
}

type Auth struct {
	secret []byte
	logger logging.Logger
}

func New(secret string, logger logging.Logger) *Auth {
	return &Auth{
		secret: []byte(secret),
		logger: logger.WithFields(logging.String("component", "auth")),
	}
}

// IssueToken mints a token for an owner. Used by tests and the local dev CLI;
// production tokens come from the account service sharing the same secret.
func (a *Auth) IssueToken(ownerID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		OwnerID: ownerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ownerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", errors.InternalError("failed to sign token", err)
	}
	return signed, nil
}

// ParseToken verifies the signature and expiry and returns the claims.
func (a *Auth) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.AuthError("unexpected token signing method")
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, errors.AuthError("invalid token")
	}
	if !token.Valid || claims.OwnerID == "" {
		return nil, errors.AuthError("invalid token claims")
	}
	return claims, nil
}

// RequireAuth rejects requests without a valid bearer token and stores the
// owner id on the request context.
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			a.unauthorized(w, "Authentication required")
			return
		}

		claims, err := a.ParseToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			a.unauthorized(w, "Invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), claims.OwnerID)))
	})
}

func (a *Auth) unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error": "` + msg + `"}`))
}

// WithOwner stores the owner id on the context. The key matches what the
// logging adapter reads in WithContext.
func WithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, "owner_id", ownerID)
}

// OwnerID returns the authenticated owner id, or empty when unauthenticated.
func OwnerID(ctx context.Context) string {
	ownerID, _ := ctx.Value("owner_id").(string)
	return ownerID
}
