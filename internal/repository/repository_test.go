package repository

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Rubbisheep/InteractComp-test/internal/config"
	"github.com/Rubbisheep/InteractComp-test/internal/database"
	"github.com/Rubbisheep/InteractComp-test/internal/domain/model"
)

// setupTestDB запускает PostgreSQL контейнер, применяет миграции.
// Возвращает pgxpool.Pool; очистка через t.Cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("interactcomp_test"),
		postgres.WithUsername("interactcomp"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	// Настраиваем env для config.Load()
	os.Setenv("IC_DB_HOST", host)
	os.Setenv("IC_DB_PORT", port.Port())
	os.Setenv("IC_DB_NAME", "interactcomp_test")
	os.Setenv("IC_DB_USER", "interactcomp")
	os.Setenv("IC_DB_PASSWORD", "test-password")
	os.Setenv("IC_DB_SSLMODE", "disable")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return pool
}

// mustCreateUser создаёт пользователя для тестов с FK на users.
func mustCreateUser(t *testing.T, pool *pgxpool.Pool, username string) *model.User {
	t.Helper()

	u := &model.User{
		UserID:       uuid.NewString(),
		Username:     username,
		DisplayName:  username,
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
		CreatedAt:    time.Now().UTC(),
	}
	if err := NewUserRepository(pool).Create(context.Background(), u); err != nil {
		t.Fatalf("Create() пользователя: %v", err)
	}
	return u
}

// --- Тесты UserRepository ---

func TestUserRepository(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewUserRepository(pool)

	user := mustCreateUser(t, pool, "alice")

	// Дубликат имени → ErrConflict
	dup := &model.User{
		UserID:       uuid.NewString(),
		Username:     "alice",
		DisplayName:  "Вторая",
		PasswordHash: "x",
		CreatedAt:    time.Now().UTC(),
	}
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Errorf("дубликат username: получено %v, ожидалось ErrConflict", err)
	}

	got, err := repo.GetByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetByUsername() ошибка: %v", err)
	}
	if got.UserID != user.UserID {
		t.Errorf("UserID = %q, хотели %q", got.UserID, user.UserID)
	}
	if got.LastLogin != nil {
		t.Error("LastLogin нового пользователя должен быть nil")
	}

	// TouchLastLogin
	at := time.Now().UTC().Truncate(time.Millisecond)
	if err := repo.TouchLastLogin(ctx, user.UserID, at); err != nil {
		t.Fatalf("TouchLastLogin() ошибка: %v", err)
	}
	got, err = repo.GetByID(ctx, user.UserID)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if got.LastLogin == nil || !got.LastLogin.Equal(at) {
		t.Errorf("LastLogin = %v, хотели %v", got.LastLogin, at)
	}

	if _, err := repo.GetByID(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Errorf("несуществующий пользователь: получено %v, ожидалось ErrNotFound", err)
	}
}

// --- Тесты SessionRepository ---

func TestSessionRepository(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewSessionRepository(pool)

	user := mustCreateUser(t, pool, "bob")
	now := time.Now().UTC()

	live := &model.Session{
		SessionID: uuid.NewString(),
		UserID:    user.UserID,
		IssuedAt:  now,
		ExpiresAt: now.Add(24 * time.Hour),
	}
	expired := &model.Session{
		SessionID: uuid.NewString(),
		UserID:    user.UserID,
		IssuedAt:  now.Add(-48 * time.Hour),
		ExpiresAt: now.Add(-24 * time.Hour),
	}
	for _, s := range []*model.Session{live, expired} {
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("Create() ошибка: %v", err)
		}
	}

	got, err := repo.GetByID(ctx, live.SessionID)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if got.UserID != user.UserID {
		t.Errorf("UserID = %q, хотели %q", got.UserID, user.UserID)
	}

	// DeleteExpired удаляет только истёкшие
	n, err := repo.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpired() ошибка: %v", err)
	}
	if n != 1 {
		t.Errorf("удалено %d сессий, ожидалась 1", n)
	}
	if _, err := repo.GetByID(ctx, live.SessionID); err != nil {
		t.Errorf("живая сессия удалена: %v", err)
	}

	// Delete
	if err := repo.Delete(ctx, live.SessionID); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if err := repo.Delete(ctx, live.SessionID); !errors.Is(err, ErrNotFound) {
		t.Errorf("повторное удаление: получено %v, ожидалось ErrNotFound", err)
	}
}

// --- Тесты FileRepository ---

func TestFileRepository(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewFileRepository(pool)

	user := mustCreateUser(t, pool, "carol")

	f := &model.FileRecord{
		FileID:      uuid.NewString(),
		OwnerUserID: user.UserID,
		Filename:    "data.jsonl",
		SizeBytes:   123,
		RowCount:    2,
		Rows: []model.AnnotationRow{
			{Question: "q1", Answer: "a1", Context: "c1"},
			{Question: "q2", Answer: "a2"},
		},
		UploadedAt: time.Now().UTC(),
	}
	if err := repo.Create(ctx, f); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	// GetByID возвращает строки датасета из JSONB
	got, err := repo.GetByID(ctx, f.FileID)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if len(got.Rows) != 2 {
		t.Fatalf("Rows содержит %d строк, хотели 2", len(got.Rows))
	}
	if got.Rows[0].Question != "q1" || got.Rows[0].Context != "c1" {
		t.Errorf("первая строка = %+v", got.Rows[0])
	}

	// ListByOwner не загружает строки
	list, err := repo.ListByOwner(ctx, user.UserID)
	if err != nil {
		t.Fatalf("ListByOwner() ошибка: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("список содержит %d файлов, хотели 1", len(list))
	}
	if list[0].Rows != nil {
		t.Error("ListByOwner не должен загружать строки датасета")
	}

	// Delete
	if err := repo.Delete(ctx, f.FileID); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if err := repo.Delete(ctx, f.FileID); !errors.Is(err, ErrNotFound) {
		t.Errorf("повторное удаление: получено %v, ожидалось ErrNotFound", err)
	}
}

// --- Тесты TaskRepository ---

func TestTaskRepository(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewTaskRepository(pool)

	user := mustCreateUser(t, pool, "dave")
	fileID := uuid.NewString()

	task := &model.Task{
		TaskID:           uuid.NewString(),
		OwnerUserID:      user.UserID,
		Username:         user.Username,
		DisplayName:      user.DisplayName,
		Status:           model.StatusRunning,
		InputFileIDs:     []string{fileID},
		EvaluationModels: []string{"m1", "m2", "m3"},
		TotalQuestions:   2,
		CreatedAt:        time.Now().UTC(),
	}
	if err := repo.Create(ctx, task); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	// Запущенная задача ссылается на файл
	ref, err := repo.ExistsRunningReferencing(ctx, fileID)
	if err != nil {
		t.Fatalf("ExistsRunningReferencing() ошибка: %v", err)
	}
	if !ref {
		t.Error("файл должен считаться используемым")
	}

	// UpdateProgress
	task.Progress = 50
	task.QualityFailedCount = 1
	task.QualityFailedRate = 0.5
	task.TotalCost = 0.05
	task.FailedItems = []model.ItemResult{{
		Question:      "q1",
		CorrectAnswer: "a1",
		ModelResults: map[string]model.ModelResult{
			"m1": {Answer: "a1", Correct: true, Cost: 0.01},
		},
		CorrectModelsCount: 2,
	}}
	if err := repo.UpdateProgress(ctx, task); err != nil {
		t.Fatalf("UpdateProgress() ошибка: %v", err)
	}

	got, err := repo.GetByID(ctx, task.TaskID)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if got.Progress != 50 {
		t.Errorf("Progress = %d, хотели 50", got.Progress)
	}
	if len(got.FailedItems) != 1 || got.FailedItems[0].CorrectModelsCount != 2 {
		t.Errorf("FailedItems = %+v", got.FailedItems)
	}
	if len(got.InputFileIDs) != 1 || got.InputFileIDs[0] != fileID {
		t.Errorf("InputFileIDs = %v", got.InputFileIDs)
	}

	// Complete
	completedAt := time.Now().UTC()
	task.CompletedAt = &completedAt
	task.QualityPassedCount = 1
	if err := repo.Complete(ctx, task); err != nil {
		t.Fatalf("Complete() ошибка: %v", err)
	}
	got, err = repo.GetByID(ctx, task.TaskID)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if got.Status != model.StatusCompleted || got.Progress != 100 {
		t.Errorf("после Complete: status=%s progress=%d", got.Status, got.Progress)
	}

	// Завершённая задача больше не блокирует файл
	ref, err = repo.ExistsRunningReferencing(ctx, fileID)
	if err != nil {
		t.Fatalf("ExistsRunningReferencing() ошибка: %v", err)
	}
	if ref {
		t.Error("завершённая задача не должна блокировать файл")
	}
}

func TestTaskRepositoryFailAllRunning(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewTaskRepository(pool)

	user := mustCreateUser(t, pool, "eve")

	running := &model.Task{
		TaskID:           uuid.NewString(),
		OwnerUserID:      user.UserID,
		Username:         user.Username,
		DisplayName:      user.DisplayName,
		Status:           model.StatusRunning,
		InputFileIDs:     []string{uuid.NewString()},
		EvaluationModels: []string{"m1"},
		CreatedAt:        time.Now().UTC(),
	}
	if err := repo.Create(ctx, running); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	n, err := repo.FailAllRunning(ctx, "сервис перезапущен", time.Now().UTC())
	if err != nil {
		t.Fatalf("FailAllRunning() ошибка: %v", err)
	}
	if n != 1 {
		t.Errorf("переведено %d задач, ожидалась 1", n)
	}

	got, err := repo.GetByID(ctx, running.TaskID)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if got.Status != model.StatusFailed || got.Error == "" {
		t.Errorf("после восстановления: status=%s error=%q", got.Status, got.Error)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt должен быть установлен")
	}
}
