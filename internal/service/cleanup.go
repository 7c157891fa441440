package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// SessionCleaner — фоновая очистка истёкших сессий по расписанию.
// Истёкшие сессии и так удаляются при обращении, но брошенные
// токены без подчистки копились бы в таблице бесконечно.
type SessionCleaner struct {
	auth     *AuthService
	schedule string
	log      *slog.Logger

	cron *cron.Cron
}

// NewSessionCleaner создаёт очиститель с расписанием в формате cron
// (поддерживаются дескрипторы вида @hourly).
func NewSessionCleaner(auth *AuthService, schedule string, log *slog.Logger) *SessionCleaner {
	return &SessionCleaner{
		auth:     auth,
		schedule: schedule,
		log:      log,
	}
}

// Start запускает планировщик очистки.
func (c *SessionCleaner) Start(ctx context.Context) error {
	c.cron = cron.New()

	_, err := c.cron.AddFunc(c.schedule, func() {
		n, err := c.auth.CleanupExpiredSessions(ctx)
		if err != nil {
			c.log.Error("ошибка очистки сессий", "error", err)
			return
		}
		if n > 0 {
			c.log.Info("истёкшие сессии удалены", "count", n)
		}
	})
	if err != nil {
		return fmt.Errorf("некорректное расписание очистки сессий %q: %w", c.schedule, err)
	}

	c.cron.Start()
	c.log.Info("очистка сессий запущена", "schedule", c.schedule)
	return nil
}

// Stop останавливает планировщик, дожидаясь текущего запуска.
func (c *SessionCleaner) Stop() {
	if c.cron == nil {
		return
	}
	<-c.cron.Stop().Done()
	c.log.Info("очистка сессий остановлена")
}
