package rest

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// NewAuthMiddleware проверяет административный токен в заголовке
// Authorization. Синхронизация - операторская операция, обычным
// пользователям она недоступна.
func NewAuthMiddleware(adminToken string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				WriteJSONError(w, http.StatusUnauthorized, "Authentication error: Authorization header is missing")
				return
			}

			token := strings.TrimPrefix(header, "Bearer ")
			if token == header {
				WriteJSONError(w, http.StatusUnauthorized, "Authentication error: Bearer token expected")
				return
			}

			if subtle.ConstantTimeCompare([]byte(token), []byte(adminToken)) != 1 {
				WriteJSONError(w, http.StatusForbidden, "Authentication error: Invalid token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
