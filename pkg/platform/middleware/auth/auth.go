// Package auth authenticates callers by bearer token and places the caller
// address in the request context.
package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"certtrace/pkg/domain"
	"certtrace/pkg/requestcontext"
)

// JWTValidator validates a raw bearer token.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// TokenRevocationChecker reports whether a token ID has been revoked.
type TokenRevocationChecker interface {
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// JWTClaims are the claims the middleware needs from a validated token.
type JWTClaims struct {
	Subject string
	JTI     string
}

// rejection is a failed authentication: what the client sees and why.
type rejection struct {
	status int
	code   string
	desc   string
	reason string
	err    error
}

func unauthorized(desc, reason string, err error) *rejection {
	return &rejection{status: http.StatusUnauthorized, code: "unauthorized", desc: desc, reason: reason, err: err}
}

// RequireActor rejects requests without a valid bearer token whose subject is
// a non-null address. revocations may be nil.
func RequireActor(validator JWTValidator, revocations TokenRevocationChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			actor, rej := authenticate(ctx, r.Header.Get("Authorization"), validator, revocations)
			if rej != nil {
				level := slog.LevelWarn
				if rej.status >= http.StatusInternalServerError {
					level = slog.LevelError
				}
				attrs := []any{"reason", rej.reason, "request_id", requestcontext.RequestID(ctx)}
				if rej.err != nil {
					attrs = append(attrs, "error", rej.err)
				}
				logger.Log(ctx, level, "request not authenticated", attrs...)
				writeError(w, rej)
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(ctx, actor)))
		})
	}
}

func authenticate(ctx context.Context, header string, validator JWTValidator, revocations TokenRevocationChecker) (domain.Address, *rejection) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return domain.ZeroAddress, unauthorized("Missing or invalid Authorization header", "missing_token", nil)
	}

	claims, err := validator.ValidateToken(token)
	if err != nil {
		return domain.ZeroAddress, unauthorized("Invalid or expired token", "invalid_token", err)
	}

	actor, err := domain.ParseAddress(claims.Subject)
	if err != nil || actor.IsZero() {
		return domain.ZeroAddress, unauthorized("Token subject must be a non-null address", "bad_subject", err)
	}

	if revocations == nil {
		return actor, nil
	}
	if claims.JTI == "" {
		return domain.ZeroAddress, unauthorized("Invalid or expired token", "missing_jti", nil)
	}
	revoked, err := revocations.IsTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return domain.ZeroAddress, &rejection{
			status: http.StatusInternalServerError,
			code:   "internal_error",
			desc:   "Failed to validate token",
			reason: "revocation_check_failed",
			err:    err,
		}
	}
	if revoked {
		return domain.ZeroAddress, unauthorized("Token has been revoked", "token_revoked", nil)
	}
	return actor, nil
}

func writeError(w http.ResponseWriter, rej *rejection) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rej.status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             rej.code,
		"error_description": rej.desc,
	})
}
