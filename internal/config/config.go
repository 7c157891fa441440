// Пакет config — загрузка и валидация конфигурации сервиса
// из переменных окружения (префикс IC_).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Rubbisheep/InteractComp-test/internal/lib/slogpretty"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации сервиса.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text, pretty)
	LogFormat string

	// --- HTTP Server Timeouts ---

	// Таймаут чтения HTTP-сервера (по умолчанию 30s)
	HTTPReadTimeout time.Duration
	// Таймаут записи HTTP-сервера (по умолчанию 60s)
	HTTPWriteTimeout time.Duration
	// Таймаут простоя HTTP-сервера (по умолчанию 120s)
	HTTPIdleTimeout time.Duration
	// Таймаут graceful shutdown (по умолчанию 5s)
	ShutdownTimeout time.Duration

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// --- Аутентификация ---

	// Секрет подписи session-токенов (HS256).
	// Пустое значение — автогенерация, сессии не переживут рестарт.
	AuthSecret string
	// Время жизни сессии (по умолчанию 24h)
	SessionTTL time.Duration
	// Минимальная длина пароля
	PasswordMinLen int
	// Расписание очистки истёкших сессий (формат robfig/cron)
	SessionCleanupSchedule string

	// --- Загрузка файлов ---

	// Максимальный размер загружаемого датасета в байтах (по умолчанию 32 МБ)
	MaxUploadSize int64

	// --- Планировщик ---

	// Потолок одновременно выполняемых задач оценки
	MaxConcurrentTasks int

	// --- Оценка (панель моделей) ---

	// Панель моделей-оценщиков. Количество должно быть нечётным,
	// чтобы правило большинства было однозначным.
	EvalModels []string
	// Модель-грейдер, сверяющая ответ модели со скрытым ответом
	GraderModel string
	// Базовый URL OpenAI-совместимого API
	EvalBaseURL string
	// API-ключ
	EvalAPIKey string
	// Таймаут одного вызова модели
	EvalTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если значения некорректны.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	cfg.Port, err = getEnvInt("IC_PORT", 8000)
	if err != nil {
		return nil, fmt.Errorf("IC_PORT: %w", err)
	}

	logLevel := getEnvDefault("IC_LOG_LEVEL", "info")
	cfg.LogLevel, err = parseLogLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("IC_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("IC_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" && cfg.LogFormat != "pretty" {
		return nil, fmt.Errorf("IC_LOG_FORMAT: недопустимый формат %q, допустимые: json, text, pretty", cfg.LogFormat)
	}

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("IC_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("IC_HTTP_READ_TIMEOUT: %w", err)
	}

	cfg.HTTPWriteTimeout, err = getEnvDuration("IC_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("IC_HTTP_WRITE_TIMEOUT: %w", err)
	}

	cfg.HTTPIdleTimeout, err = getEnvDuration("IC_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("IC_HTTP_IDLE_TIMEOUT: %w", err)
	}

	cfg.ShutdownTimeout, err = getEnvDuration("IC_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("IC_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	cfg.DBHost = getEnvDefault("IC_DB_HOST", "localhost")
	cfg.DBPort, err = getEnvInt("IC_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("IC_DB_PORT: %w", err)
	}
	cfg.DBUser = getEnvDefault("IC_DB_USER", "interactcomp")
	cfg.DBPassword = getEnvDefault("IC_DB_PASSWORD", "")
	cfg.DBName = getEnvDefault("IC_DB_NAME", "interactcomp")
	cfg.DBSSLMode = getEnvDefault("IC_DB_SSLMODE", "disable")

	// --- Аутентификация ---

	cfg.AuthSecret = getEnvDefault("IC_AUTH_SECRET", "")

	cfg.SessionTTL, err = getEnvDuration("IC_SESSION_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("IC_SESSION_TTL: %w", err)
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("IC_SESSION_TTL: значение должно быть > 0")
	}

	cfg.PasswordMinLen, err = getEnvInt("IC_PASSWORD_MIN_LEN", 6)
	if err != nil {
		return nil, fmt.Errorf("IC_PASSWORD_MIN_LEN: %w", err)
	}

	cfg.SessionCleanupSchedule = getEnvDefault("IC_SESSION_CLEANUP_SCHEDULE", "@hourly")

	// --- Загрузка файлов ---

	maxUpload, err := getEnvInt("IC_MAX_UPLOAD_SIZE", 32<<20)
	if err != nil {
		return nil, fmt.Errorf("IC_MAX_UPLOAD_SIZE: %w", err)
	}
	cfg.MaxUploadSize = int64(maxUpload)

	// --- Планировщик ---

	cfg.MaxConcurrentTasks, err = getEnvInt("IC_MAX_CONCURRENT_TASKS", 20)
	if err != nil {
		return nil, fmt.Errorf("IC_MAX_CONCURRENT_TASKS: %w", err)
	}
	if cfg.MaxConcurrentTasks < 1 {
		return nil, fmt.Errorf("IC_MAX_CONCURRENT_TASKS: значение должно быть >= 1")
	}

	// --- Оценка ---

	models := getEnvDefault("IC_EVAL_MODELS", "gpt-5-mini,gpt-5,claude-4-sonnet")
	cfg.EvalModels = splitModels(models)
	if len(cfg.EvalModels) == 0 {
		return nil, fmt.Errorf("IC_EVAL_MODELS: список моделей пуст")
	}
	if len(cfg.EvalModels)%2 == 0 {
		return nil, fmt.Errorf("IC_EVAL_MODELS: количество моделей должно быть нечётным (правило большинства), получено %d", len(cfg.EvalModels))
	}

	cfg.GraderModel = getEnvDefault("IC_GRADER_MODEL", "gpt-4o")
	cfg.EvalBaseURL = getEnvDefault("IC_EVAL_BASE_URL", "https://api.openai.com/v1")
	cfg.EvalAPIKey = getEnvDefault("IC_EVAL_API_KEY", "")

	cfg.EvalTimeout, err = getEnvDuration("IC_EVAL_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("IC_EVAL_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает DSN подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	switch cfg.LogFormat {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	case "pretty":
		handler = slogpretty.NewHandler(os.Stdout, cfg.LogLevel)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// splitModels разбирает список моделей через запятую, отбрасывая пустые элементы.
func splitModels(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
