package identity

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Middleware enforces an HMAC-signed bearer token and resolves the actor
// into the request context.
func Middleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				http.Error(w, "auth disabled", http.StatusUnauthorized)
				return
			}
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			tokenString := strings.TrimPrefix(auth, "Bearer ")
			parsed := claims{}
			token, err := jwt.ParseWithClaims(tokenString, &parsed, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			actorID, err := uuid.Parse(parsed.Subject)
			if err != nil {
				http.Error(w, "invalid subject", http.StatusUnauthorized)
				return
			}
			role := Role(parsed.Role)
			switch role {
			case RoleDoctor, RolePatient, RoleAdmin:
			default:
				http.Error(w, "unknown role", http.StatusForbidden)
				return
			}
			ctx := WithActor(r.Context(), Actor{ID: actorID, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects requests whose actor does not hold one of the roles.
func RequireRole(roles ...Role) func(http.Handler) http.Handler {
	allowed := make(map[Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := FromContext(r.Context())
			if !ok {
				http.Error(w, "missing actor", http.StatusUnauthorized)
				return
			}
			if _, ok := allowed[actor.Role]; !ok {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
