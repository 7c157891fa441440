package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Rubbisheep/InteractComp-test/internal/domain/model"
)

// SessionRepository — интерфейс доступа к таблице sessions.
type SessionRepository interface {
	// Create сохраняет новую сессию.
	Create(ctx context.Context, s *model.Session) error
	// GetByID возвращает сессию по UUID.
	GetByID(ctx context.Context, sessionID string) (*model.Session, error)
	// Delete удаляет сессию (logout). Возвращает ErrNotFound, если её нет.
	Delete(ctx context.Context, sessionID string) error
	// DeleteExpired удаляет все сессии с expires_at < now.
	// Возвращает количество удалённых записей.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// sessionRepo — реализация SessionRepository.
type sessionRepo struct {
	db DBTX
}

// NewSessionRepository создаёт репозиторий сессий.
func NewSessionRepository(db DBTX) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) Create(ctx context.Context, s *model.Session) error {
	query := `
		INSERT INTO sessions (session_id, user_id, issued_at, expires_at)
		VALUES ($1, $2, $3, $4)`

	_, err := r.db.Exec(ctx, query, s.SessionID, s.UserID, s.IssuedAt, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("ошибка создания сессии: %w", err)
	}
	return nil
}

func (r *sessionRepo) GetByID(ctx context.Context, sessionID string) (*model.Session, error) {
	query := `
		SELECT session_id, user_id, issued_at, expires_at
		FROM sessions
		WHERE session_id = $1`

	s := &model.Session{}
	err := r.db.QueryRow(ctx, query, sessionID).Scan(
		&s.SessionID, &s.UserID, &s.IssuedAt, &s.ExpiresAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения сессии: %w", err)
	}
	return s, nil
}

func (r *sessionRepo) Delete(ctx context.Context, sessionID string) error {
	query := `DELETE FROM sessions WHERE session_id = $1`

	tag, err := r.db.Exec(ctx, query, sessionID)
	if err != nil {
		return fmt.Errorf("ошибка удаления сессии: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	query := `DELETE FROM sessions WHERE expires_at < $1`

	tag, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("ошибка очистки истёкших сессий: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
