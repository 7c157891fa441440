package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/Rubbisheep/InteractComp-test/internal/domain/model"
	"github.com/Rubbisheep/InteractComp-test/internal/repository"
)

// Размер LRU-кэша сессий. Кэш снимает поход в БД на каждый
// аутентифицированный запрос; источником истины остаётся таблица sessions.
const sessionCacheSize = 1024

// cachedSession — запись кэша: кому принадлежит сессия и когда истекает.
type cachedSession struct {
	userID    string
	expiresAt time.Time
}

// AuthService — регистрация, вход, проверка токенов и выход.
// Токен — подписанный HS256 JWT, jti которого указывает на строку
// в таблице sessions. Logout удаляет строку, после чего токен мёртв
// независимо от срока подписи.
type AuthService struct {
	users    repository.UserRepository
	sessions repository.SessionRepository

	secret         []byte
	sessionTTL     time.Duration
	passwordMinLen int

	cache *lru.Cache[string, cachedSession]
	log   *slog.Logger

	// подменяется в тестах
	now func() time.Time
}

// NewAuthService создаёт сервис аутентификации.
func NewAuthService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	secret []byte,
	sessionTTL time.Duration,
	passwordMinLen int,
	log *slog.Logger,
) *AuthService {
	cache, _ := lru.New[string, cachedSession](sessionCacheSize)
	return &AuthService{
		users:          users,
		sessions:       sessions,
		secret:         secret,
		sessionTTL:     sessionTTL,
		passwordMinLen: passwordMinLen,
		cache:          cache,
		log:            log,
		now:            time.Now,
	}
}

// Register регистрирует нового пользователя.
func (s *AuthService) Register(ctx context.Context, username, displayName, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: имя пользователя не задано", ErrValidation)
	}
	if len(password) < s.passwordMinLen {
		return nil, fmt.Errorf("%w: пароль короче %d символов", ErrValidation, s.passwordMinLen)
	}
	if strings.TrimSpace(displayName) == "" {
		displayName = username
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("ошибка хеширования пароля: %w", err)
	}

	user := &model.User{
		UserID:       uuid.NewString(),
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: имя пользователя %q занято", ErrConflict, username)
		}
		return nil, err
	}

	s.log.Info("пользователь зарегистрирован", "user_id", user.UserID, "username", username)
	return user, nil
}

// Login проверяет пароль и выдаёт session-токен на sessionTTL.
// Неверное имя и неверный пароль неразличимы для клиента.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, *model.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, fmt.Errorf("%w: неверное имя пользователя или пароль", ErrUnauthorized)
		}
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, fmt.Errorf("%w: неверное имя пользователя или пароль", ErrUnauthorized)
	}

	now := s.now().UTC()
	session := &model.Session{
		SessionID: uuid.NewString(),
		UserID:    user.UserID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return "", nil, err
	}

	token, err := s.signToken(session)
	if err != nil {
		return "", nil, err
	}

	if err := s.users.TouchLastLogin(ctx, user.UserID, now); err != nil {
		s.log.Warn("не удалось обновить last_login", "user_id", user.UserID, "error", err)
	}
	lastLogin := now
	user.LastLogin = &lastLogin

	s.cache.Add(session.SessionID, cachedSession{userID: user.UserID, expiresAt: session.ExpiresAt})

	s.log.Info("пользователь вошёл", "user_id", user.UserID, "session_id", session.SessionID)
	return token, user, nil
}

// Authenticate проверяет токен и возвращает его владельца.
// Токен жив, пока верна подпись И существует строка сессии.
// Истёкшая сессия удаляется при первом же обращении.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	sessionID, err := s.parseToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, err)
	}

	now := s.now().UTC()

	userID := ""
	if cached, ok := s.cache.Get(sessionID); ok && now.Before(cached.expiresAt) {
		userID = cached.userID
	}

	if userID == "" {
		session, err := s.sessions.GetByID(ctx, sessionID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: сессия не найдена", ErrUnauthorized)
			}
			return nil, err
		}
		if session.IsExpired(now) {
			s.dropSession(ctx, sessionID)
			return nil, fmt.Errorf("%w: сессия истекла", ErrUnauthorized)
		}
		s.cache.Add(sessionID, cachedSession{userID: session.UserID, expiresAt: session.ExpiresAt})
		userID = session.UserID
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// пользователь исчез при живой сессии — сессия больше не валидна
			s.dropSession(ctx, sessionID)
			return nil, fmt.Errorf("%w: пользователь не найден", ErrUnauthorized)
		}
		return nil, err
	}
	return user, nil
}

// Logout завершает сессию токена. Идемпотентен: повторный выход
// и нераспознанный токен — не ошибка, сессии просто уже нет.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	sessionID, err := s.parseToken(token)
	if err != nil {
		s.log.Debug("logout с нераспознанным токеном", "error", err)
		return nil
	}

	s.cache.Remove(sessionID)
	if err := s.sessions.Delete(ctx, sessionID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	s.log.Info("пользователь вышел", "session_id", sessionID)
	return nil
}

// ListUsers возвращает всех зарегистрированных пользователей.
func (s *AuthService) ListUsers(ctx context.Context) ([]*model.User, error) {
	return s.users.List(ctx)
}

// CleanupExpiredSessions удаляет из БД все истёкшие сессии.
// Вызывается по расписанию фоновым сервисом.
func (s *AuthService) CleanupExpiredSessions(ctx context.Context) (int, error) {
	return s.sessions.DeleteExpired(ctx, s.now().UTC())
}

// signToken подписывает JWT: jti — ID сессии, sub — ID пользователя.
func (s *AuthService) signToken(session *model.Session) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        session.SessionID,
		Subject:   session.UserID,
		IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
		ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("ошибка подписи токена: %w", err)
	}
	return signed, nil
}

// parseToken проверяет подпись токена и возвращает ID сессии.
// Срок жизни проверяется не по exp токена, а по строке сессии:
// истёкшая сессия должна быть удалена при первом же обращении.
func (s *AuthService) parseToken(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return "", errors.New("недействительный токен")
	}
	if claims.ID == "" {
		return "", errors.New("токен без идентификатора сессии")
	}
	return claims.ID, nil
}

// dropSession удаляет сессию из кэша и БД, игнорируя отсутствие.
func (s *AuthService) dropSession(ctx context.Context, sessionID string) {
	s.cache.Remove(sessionID)
	if err := s.sessions.Delete(ctx, sessionID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.log.Warn("не удалось удалить истёкшую сессию", "session_id", sessionID, "error", err)
	}
}
