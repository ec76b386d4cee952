package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	httpx "github.com/ChayanSD/web-sub001/internal/http"
)

type actorKey struct{}

// GetActor extrae la identidad del operador autenticado ("" si no hay).
func GetActor(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey{}).(string); ok {
		return v
	}
	return ""
}

// RequireOperator exige un Bearer JWT (HS256) firmado con el secret de
// operadores. El subject del token es la identidad del actor que queda
// registrada en el audit trail de cada rotación.
func RequireOperator(secret string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				httpx.WriteError(w, http.StatusServiceUnavailable, "operator_auth_unconfigured",
					"OPERATOR_JWT_SECRET no está configurado")
				return
			}

			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				httpx.WriteError(w, http.StatusUnauthorized, "missing_token", "se requiere Bearer token")
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

			tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !tok.Valid {
				httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "token inválido o vencido")
				return
			}

			sub := ""
			if claims, ok := tok.Claims.(jwt.MapClaims); ok {
				sub, _ = claims.GetSubject()
			}
			if sub == "" {
				httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "token sin subject")
				return
			}

			ctx := context.WithValue(r.Context(), actorKey{}, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
