// Пакет server — HTTP-сервер сервиса с graceful shutdown.
// Без TLS — termination ожидается на внешнем балансировщике.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"github.com/Rubbisheep/InteractComp-test/internal/api/handlers"
	"github.com/Rubbisheep/InteractComp-test/internal/api/middleware"
	"github.com/Rubbisheep/InteractComp-test/internal/config"
)

// Handlers — доменные обработчики, монтируемые на router.
type Handlers struct {
	Health *handlers.HealthHandler
	Auth   *handlers.AuthHandler
	Files  *handlers.FileHandler
	Tasks  *handlers.TaskHandler
	System *handlers.SystemHandler
}

// Server — HTTP-сервер сервиса.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
// authn — middleware аутентификации (service.AuthService).
func New(cfg *config.Config, logger *slog.Logger, h *Handlers, authn middleware.Authenticator) *Server {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	// Публичные маршруты: визитка, probes, метрики, вход и выход.
	// Logout публичный: выход идемпотентен и не требует живой сессии.
	router.Get("/", h.Health.Root)
	router.Get("/health/live", h.Health.HealthLive)
	router.Get("/health/ready", h.Health.HealthReady)
	router.Get("/metrics", h.Health.GetMetrics)
	router.Post("/auth/register", h.Auth.Register)
	router.Post("/auth/login", h.Auth.Login)
	router.Post("/auth/logout", h.Auth.Logout)
	router.Get("/system/status", h.System.Status)

	// Защищённые маршруты: всё остальное требует живой сессии
	router.Group(func(r chi.Router) {
		r.Use(middleware.Auth(authn, logger))

		r.Get("/auth/me", h.Auth.Me)
		r.Get("/users", h.Auth.ListUsers)

		r.Post("/upload", h.Files.Upload)
		r.Get("/files", h.Files.List)
		r.Delete("/files/{fileID}", h.Files.Delete)

		r.Post("/start_test", h.Tasks.Start)
		r.Get("/tasks", h.Tasks.List)
		r.Get("/test/{taskID}", h.Tasks.Get)
		r.Get("/test/{taskID}/download-csv", h.Tasks.DownloadCSV)
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
