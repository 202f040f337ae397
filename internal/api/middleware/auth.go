package middleware

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/task-hive/taskhive/internal/api/auth"
	"github.com/task-hive/taskhive/internal/models"
	"github.com/task-hive/taskhive/internal/storage"
)

// Context keys for storing request-scoped authentication state.
type contextKey string

const (
	userIDKey   contextKey = "user_id"
	usernameKey contextKey = "username"
	roleKey     contextKey = "global_role"
	claimsKey   contextKey = "claims"
	userKey     contextKey = "user"
)

// jsonUnauthorized writes an unauthorized error response.
func jsonUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    "UNAUTHORIZED",
			"message": "invalid or expired token",
		},
	})
}

// jsonForbidden writes a forbidden error response.
func jsonForbidden(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    "FORBIDDEN",
			"message": "access denied",
		},
	})
}

// jsonNotFound writes a not found error response.
func jsonNotFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    "NOT_FOUND",
			"message": "resource not found",
		},
	})
}

// JWTAuth returns middleware that validates JWT tokens and loads the
// authenticated account. The account is re-read on every request so a
// deleted user or a changed global role takes effect without waiting for
// token expiry.
func JWTAuth(jwtService *auth.JWTService, store storage.Storage) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				jsonUnauthorized(w)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				jsonUnauthorized(w)
				return
			}

			claims, err := jwtService.ValidateToken(parts[1])
			if err != nil {
				log.Printf("JWT auth failed for %s: %v", r.RemoteAddr, err)
				jsonUnauthorized(w)
				return
			}

			user, err := store.Users().GetByID(r.Context(), claims.UserID)
			if err != nil {
				log.Printf("JWT auth: load user %s: %v", claims.UserID, err)
				jsonUnauthorized(w)
				return
			}
			if user == nil {
				jsonUnauthorized(w)
				return
			}

			ctx := WithUser(r.Context(), user)
			ctx = context.WithValue(ctx, claimsKey, claims)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithUser stores the authenticated account and its derived identity
// fields on the context.
func WithUser(ctx context.Context, user *models.User) context.Context {
	ctx = context.WithValue(ctx, userIDKey, user.ID)
	ctx = context.WithValue(ctx, usernameKey, user.Username)
	ctx = context.WithValue(ctx, roleKey, user.Role)
	ctx = context.WithValue(ctx, userKey, user)
	return ctx
}

// GetUserID returns the user ID from context.
func GetUserID(ctx context.Context) string {
	if v := ctx.Value(userIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetUsername returns the username from context.
func GetUsername(ctx context.Context) string {
	if v := ctx.Value(usernameKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetGlobalRole returns the user's platform role from context.
func GetGlobalRole(ctx context.Context) models.GlobalRole {
	if v := ctx.Value(roleKey); v != nil {
		if r, ok := v.(models.GlobalRole); ok {
			return r
		}
	}
	return ""
}

// GetUser returns the authenticated account from context.
func GetUser(ctx context.Context) *models.User {
	if v := ctx.Value(userKey); v != nil {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}

// GetClaims returns the JWT claims from context.
func GetClaims(ctx context.Context) *auth.Claims {
	if v := ctx.Value(claimsKey); v != nil {
		if c, ok := v.(*auth.Claims); ok {
			return c
		}
	}
	return nil
}
