// Пакет model — доменные модели сервиса оценки качества аннотаций.
package model

import "time"

// User — зарегистрированный пользователь платформы.
// Пользователи не удаляются; изменяемое поле — только DisplayName.
type User struct {
	// UserID — UUID пользователя.
	UserID string `json:"user_id"`
	// Username — уникальное имя для входа.
	Username string `json:"username"`
	// DisplayName — отображаемое имя (по умолчанию равно Username).
	DisplayName string `json:"display_name"`
	// PasswordHash — bcrypt-хеш пароля. Наружу не отдаётся.
	PasswordHash string `json:"-"`
	// CreatedAt — время регистрации (UTC).
	CreatedAt time.Time `json:"created_at"`
	// LastLogin — время последнего входа, nil если пользователь не входил.
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// Session — сессия пользователя.
// Bearer-токен клиента — это JWT, в jti которого записан SessionID.
// Несколько одновременных сессий на пользователя допустимы.
type Session struct {
	// SessionID — UUID сессии (jti в токене).
	SessionID string `json:"session_id"`
	// UserID — владелец сессии.
	UserID string `json:"user_id"`
	// IssuedAt — время выдачи.
	IssuedAt time.Time `json:"issued_at"`
	// ExpiresAt — время истечения (24 часа от выдачи).
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired проверяет, истекла ли сессия на момент now.
func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
