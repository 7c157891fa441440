// handler.go — общие вспомогательные функции обработчиков API.
// Доменные обработчики (auth, files, tasks, system) делегируют
// бизнес-логику в сервисный слой и отображают его ошибки в HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/Rubbisheep/InteractComp-test/internal/api/errors"
	"github.com/Rubbisheep/InteractComp-test/internal/service"
)

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeServiceError отображает ошибку сервисного слоя в HTTP-ответ.
// Неопознанные ошибки логируются и возвращаются как 500 без деталей.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrInvalidFormat):
		apierrors.InvalidFormat(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, service.ErrUnauthorized):
		apierrors.Unauthorized(w, err.Error())
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, err.Error())
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, err.Error())
	case errors.Is(err, service.ErrResourceExhausted):
		apierrors.ResourceExhausted(w, err.Error())
	case errors.Is(err, service.ErrInvalidState):
		apierrors.InvalidState(w, err.Error())
	default:
		logger.Error("внутренняя ошибка", "error", err)
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}

// decodeJSON разбирает тело запроса в dst.
// Возвращает false и пишет 400, если тело не является валидным JSON.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса: ожидается JSON")
		return false
	}
	return true
}
