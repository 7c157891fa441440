// Точка входа сервиса оценки качества аннотаций.
// Загружает конфигурацию, подключается к PostgreSQL, применяет миграции,
// создаёт сервисный слой (аутентификация, файлы, планировщик, реестр),
// восстанавливает зависшие задачи, запускает фоновую очистку сессий
// и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"crypto/rand"
	"log/slog"
	"os"

	"github.com/Rubbisheep/InteractComp-test/internal/api/handlers"
	"github.com/Rubbisheep/InteractComp-test/internal/config"
	"github.com/Rubbisheep/InteractComp-test/internal/database"
	"github.com/Rubbisheep/InteractComp-test/internal/evaluator"
	"github.com/Rubbisheep/InteractComp-test/internal/repository"
	"github.com/Rubbisheep/InteractComp-test/internal/server"
	"github.com/Rubbisheep/InteractComp-test/internal/service"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Сервис запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.Int("max_concurrent_tasks", cfg.MaxConcurrentTasks),
	)

	if cfg.EvalAPIKey == "" {
		logger.Warn("IC_EVAL_API_KEY не задан — вызовы моделей будут отклоняться провайдером")
	}

	// Секрет подписи токенов: без IC_AUTH_SECRET генерируется случайный,
	// и все сессии умирают при рестарте процесса.
	secret := []byte(cfg.AuthSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			logger.Error("Ошибка генерации секрета", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Warn("IC_AUTH_SECRET не задан, сгенерирован случайный секрет — сессии не переживут рестарт")
	}

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 5. Repositories
	userRepo := repository.NewUserRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	fileRepo := repository.NewFileRepository(pool)
	taskRepo := repository.NewTaskRepository(pool)

	// 6. Клиент панельной оценки
	eval := evaluator.New(evaluator.Config{
		BaseURL:     cfg.EvalBaseURL,
		APIKey:      cfg.EvalAPIKey,
		Models:      cfg.EvalModels,
		GraderModel: cfg.GraderModel,
		Timeout:     cfg.EvalTimeout,
	}, logger)
	logger.Info("Панель моделей настроена",
		slog.Any("models", cfg.EvalModels),
		slog.String("grader", cfg.GraderModel),
	)

	// 7. Services
	authSvc := service.NewAuthService(userRepo, sessionRepo, secret, cfg.SessionTTL, cfg.PasswordMinLen, logger)
	fileSvc := service.NewFileService(fileRepo, taskRepo, logger)
	scheduler := service.NewScheduler(taskRepo, fileSvc, eval, cfg.MaxConcurrentTasks, logger)
	registry := service.NewRegistryService(taskRepo, logger)

	// 8. Восстановление после рестарта: задачи, оставшиеся в running,
	// больше никем не выполняются и не должны занимать слоты
	if err := scheduler.RecoverStale(ctx); err != nil {
		logger.Error("Ошибка восстановления зависших задач", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 9. Фоновая очистка истёкших сессий
	cleaner := service.NewSessionCleaner(authSvc, cfg.SessionCleanupSchedule, logger)
	if err := cleaner.Start(ctx); err != nil {
		logger.Error("Ошибка запуска очистки сессий", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer cleaner.Stop()

	// 10. API handlers
	h := &server.Handlers{
		Health: handlers.NewHealthHandler(database.NewReadinessChecker(pool), cfg.EvalModels),
		Auth:   handlers.NewAuthHandler(authSvc, logger),
		Files:  handlers.NewFileHandler(fileSvc, cfg.MaxUploadSize, logger),
		Tasks:  handlers.NewTaskHandler(scheduler, registry, logger),
		System: handlers.NewSystemHandler(scheduler),
	}

	// 11. HTTP-сервер с graceful shutdown
	srv := server.New(cfg, logger, h, authSvc)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка HTTP-сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 12. Дожидаемся завершения worker'ов планировщика
	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := scheduler.Stop(stopCtx); err != nil {
		logger.Warn("Планировщик остановлен с ошибкой", slog.String("error", err.Error()))
	}

	logger.Info("Сервис остановлен")
}
