// auth.go — обработчики аутентификации: регистрация, вход,
// текущий пользователь, выход и список пользователей.
package handlers

import (
	"log/slog"
	"net/http"

	apierrors "github.com/Rubbisheep/InteractComp-test/internal/api/errors"
	"github.com/Rubbisheep/InteractComp-test/internal/api/middleware"
	"github.com/Rubbisheep/InteractComp-test/internal/domain/model"
	"github.com/Rubbisheep/InteractComp-test/internal/service"
)

// AuthHandler — обработчик endpoints аутентификации.
type AuthHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

// NewAuthHandler создаёт обработчик аутентификации.
func NewAuthHandler(auth *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		logger: logger.With(slog.String("component", "auth_handler")),
	}
}

// registerRequest — тело запроса регистрации.
type registerRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

// loginRequest — тело запроса входа.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse — ответ на успешный вход.
type loginResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// Register — POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.auth.Register(r.Context(), req.Username, req.DisplayName, req.Password)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// Login — POST /auth/login. Возвращает session-токен на 24 часа.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	token, user, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

// Me — GET /auth/me. Возвращает владельца токена.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Logout — POST /auth/logout. Идемпотентен: отсутствующий или уже
// мёртвый токен — тоже успешный выход, поэтому маршрут публичный.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token, ok := middleware.BearerToken(r); ok {
		if err := h.auth.Logout(r.Context(), token); err != nil {
			writeServiceError(w, h.logger, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Сессия завершена"})
}

// ListUsers — GET /users. Список всех пользователей сообщества.
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.auth.ListUsers(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if users == nil {
		users = []*model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}
