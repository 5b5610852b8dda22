package auth

import (
	"fmt"
	"net/http"
	"strings"
)

// Идентификация приходит от портала во входном заголовке: ядро не
// аутентифицирует пользователей, id нужен только для штампов updated_by
// и привязки создателя share-ссылки.

const userHeader = "X-User-Id"

// UserID извлекает идентификатор вызывающего из запроса.
func UserID(r *http.Request) (string, error) {
	if id := strings.TrimSpace(r.Header.Get(userHeader)); id != "" {
		return id, nil
	}

	// Совместимость со старым порталом: Authorization: Bearer <user id>
	authHeader := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
		if token = strings.TrimSpace(token); token != "" {
			return token, nil
		}
	}

	return "", fmt.Errorf("no caller identity header")
}
