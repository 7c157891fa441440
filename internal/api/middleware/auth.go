// auth.go — middleware аутентификации по session-токену.
// Извлекает Bearer token, проверяет подпись и живость сессии,
// помещает пользователя в контекст запроса.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/Rubbisheep/InteractComp-test/internal/api/errors"
	"github.com/Rubbisheep/InteractComp-test/internal/domain/model"
	"github.com/Rubbisheep/InteractComp-test/internal/service"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

// ContextKeyUser — аутентифицированный пользователь в контексте запроса.
const ContextKeyUser contextKey = "auth_user"

// Authenticator — проверка токена. Реализуется service.AuthService.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

// Auth возвращает middleware аутентификации.
// Отсутствующий, повреждённый и просроченный токен неразличимы: 401.
func Auth(auth Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				apierrors.Unauthorized(w, "Требуется заголовок Authorization: Bearer <token>")
				return
			}

			user, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				if errors.Is(err, service.ErrUnauthorized) {
					apierrors.Unauthorized(w, "Недействительный или просроченный токен")
					return
				}
				logger.Error("ошибка проверки токена", "error", err)
				apierrors.InternalError(w, "Внутренняя ошибка сервера")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUser, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken извлекает токен из заголовка Authorization.
// Экспортирован: публичный logout читает заголовок без middleware.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// UserFromContext извлекает пользователя из контекста запроса.
// Возвращает nil, если запрос не прошёл через Auth.
func UserFromContext(ctx context.Context) *model.User {
	user, _ := ctx.Value(ContextKeyUser).(*model.User)
	return user
}
