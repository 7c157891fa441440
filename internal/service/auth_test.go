package service

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestAuthService() (*AuthService, *memSessionRepo) {
	sessions := newMemSessionRepo()
	svc := NewAuthService(
		newMemUserRepo(),
		sessions,
		[]byte("test-secret"),
		24*time.Hour,
		6,
		testLogger(),
	)
	return svc, sessions
}

func TestAuthRegisterAndLogin(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "Alice", "секрет123")
	if err != nil {
		t.Fatalf("ошибка регистрации: %v", err)
	}
	if user.UserID == "" {
		t.Error("user_id не присвоен")
	}
	if user.PasswordHash == "секрет123" {
		t.Error("пароль сохранён в открытом виде")
	}

	token, loggedIn, err := svc.Login(ctx, "alice", "секрет123")
	if err != nil {
		t.Fatalf("ошибка входа: %v", err)
	}
	if token == "" {
		t.Fatal("токен пуст")
	}
	if loggedIn.LastLogin == nil {
		t.Error("last_login не обновлён")
	}

	authenticated, err := svc.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("ошибка проверки токена: %v", err)
	}
	if authenticated.UserID != user.UserID {
		t.Errorf("токен указывает на %s, ожидалось %s", authenticated.UserID, user.UserID)
	}
}

func TestAuthRegisterValidation(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "", "X", "секрет123"); !errors.Is(err, ErrValidation) {
		t.Errorf("пустое имя: получено %v, ожидалось ErrValidation", err)
	}
	if _, err := svc.Register(ctx, "bob", "Bob", "123"); !errors.Is(err, ErrValidation) {
		t.Errorf("короткий пароль: получено %v, ожидалось ErrValidation", err)
	}
}

func TestAuthDuplicateUsername(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "Alice", "секрет123"); err != nil {
		t.Fatalf("ошибка регистрации: %v", err)
	}
	if _, err := svc.Register(ctx, "alice", "Вторая", "другой-пароль"); !errors.Is(err, ErrConflict) {
		t.Errorf("повторное имя: получено %v, ожидалось ErrConflict", err)
	}
}

func TestAuthWrongPassword(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "Alice", "секрет123"); err != nil {
		t.Fatalf("ошибка регистрации: %v", err)
	}

	if _, _, err := svc.Login(ctx, "alice", "неверный"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("неверный пароль: получено %v, ожидалось ErrUnauthorized", err)
	}
	if _, _, err := svc.Login(ctx, "nobody", "секрет123"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("неизвестный пользователь: получено %v, ожидалось ErrUnauthorized", err)
	}
}

func TestAuthLogoutKillsToken(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "Alice", "секрет123"); err != nil {
		t.Fatalf("ошибка регистрации: %v", err)
	}
	token, _, err := svc.Login(ctx, "alice", "секрет123")
	if err != nil {
		t.Fatalf("ошибка входа: %v", err)
	}

	if err := svc.Logout(ctx, token); err != nil {
		t.Fatalf("ошибка выхода: %v", err)
	}

	// Подпись токена всё ещё верна, но сессии больше нет
	if _, err := svc.Authenticate(ctx, token); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("токен после logout: получено %v, ожидалось ErrUnauthorized", err)
	}

	// Повторный выход идемпотентен
	if err := svc.Logout(ctx, token); err != nil {
		t.Errorf("повторный выход: %v", err)
	}

	// Нераспознанный токен — тоже успешный no-op
	if err := svc.Logout(ctx, "не-токен"); err != nil {
		t.Errorf("выход с мусорным токеном: %v", err)
	}
}

func TestAuthSessionExpiry(t *testing.T) {
	svc, sessions := newTestAuthService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "Alice", "секрет123"); err != nil {
		t.Fatalf("ошибка регистрации: %v", err)
	}
	token, _, err := svc.Login(ctx, "alice", "секрет123")
	if err != nil {
		t.Fatalf("ошибка входа: %v", err)
	}

	// Сдвигаем часы сервиса за горизонт сессии
	svc.now = func() time.Time { return time.Now().Add(25 * time.Hour) }

	if _, err := svc.Authenticate(ctx, token); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("просроченный токен: получено %v, ожидалось ErrUnauthorized", err)
	}

	// Истёкшая сессия удалена при первом же обращении
	sessions.mu.Lock()
	left := len(sessions.sessions)
	sessions.mu.Unlock()
	if left != 0 {
		t.Errorf("в хранилище осталось %d сессий, ожидалось 0", left)
	}
}

func TestAuthGarbageToken(t *testing.T) {
	svc, _ := newTestAuthService()

	if _, err := svc.Authenticate(context.Background(), "не-jwt-вообще"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("мусорный токен: получено %v, ожидалось ErrUnauthorized", err)
	}
}

func TestAuthCleanupExpiredSessions(t *testing.T) {
	svc, sessions := newTestAuthService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "Alice", "секрет123"); err != nil {
		t.Fatalf("ошибка регистрации: %v", err)
	}
	if _, _, err := svc.Login(ctx, "alice", "секрет123"); err != nil {
		t.Fatalf("ошибка входа: %v", err)
	}
	if _, _, err := svc.Login(ctx, "alice", "секрет123"); err != nil {
		t.Fatalf("ошибка входа: %v", err)
	}

	svc.now = func() time.Time { return time.Now().Add(25 * time.Hour) }

	n, err := svc.CleanupExpiredSessions(ctx)
	if err != nil {
		t.Fatalf("ошибка очистки: %v", err)
	}
	if n != 2 {
		t.Errorf("удалено %d сессий, ожидалось 2", n)
	}

	sessions.mu.Lock()
	left := len(sessions.sessions)
	sessions.mu.Unlock()
	if left != 0 {
		t.Errorf("в хранилище осталось %d сессий", left)
	}
}
