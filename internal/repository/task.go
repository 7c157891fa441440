package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Rubbisheep/InteractComp-test/internal/domain/model"
)

// TaskRepository — интерфейс доступа к таблице tasks.
// Задачи никогда не удаляются — методов удаления нет.
type TaskRepository interface {
	// Create сохраняет новую задачу в статусе running.
	Create(ctx context.Context, t *model.Task) error
	// GetByID возвращает задачу со всеми деталями.
	GetByID(ctx context.Context, taskID string) (*model.Task, error)
	// ListByOwner возвращает задачи владельца, новые сверху.
	ListByOwner(ctx context.Context, ownerUserID string) ([]*model.Task, error)
	// ListAll возвращает все задачи сообщества, новые сверху.
	ListAll(ctx context.Context) ([]*model.Task, error)
	// UpdateProgress фиксирует промежуточное состояние после очередного вопроса.
	UpdateProgress(ctx context.Context, t *model.Task) error
	// Complete переводит задачу в completed с итоговыми результатами.
	Complete(ctx context.Context, t *model.Task) error
	// Fail переводит задачу в failed с описанием ошибки.
	Fail(ctx context.Context, taskID, errMsg string, at time.Time) error
	// ExistsRunningReferencing проверяет, ссылается ли на файл хоть одна
	// запущенная задача. Используется при удалении файлов.
	ExistsRunningReferencing(ctx context.Context, fileID string) (bool, error)
	// FailAllRunning переводит все running задачи в failed.
	// Вызывается при старте сервиса: задачи, оставшиеся после падения
	// процесса, уже никем не выполняются. Возвращает количество.
	FailAllRunning(ctx context.Context, errMsg string, at time.Time) (int, error)
}

// taskRepo — реализация TaskRepository.
type taskRepo struct {
	db DBTX
}

// NewTaskRepository создаёт репозиторий задач.
func NewTaskRepository(db DBTX) TaskRepository {
	return &taskRepo{db: db}
}

const taskColumns = `task_id, owner_user_id, username, display_name, status,
	input_file_ids, evaluation_models, progress, total_questions,
	quality_passed_count, quality_failed_count, quality_failed_rate,
	total_cost, failed_items, error, created_at, completed_at`

func (r *taskRepo) Create(ctx context.Context, t *model.Task) error {
	query := `
		INSERT INTO tasks (task_id, owner_user_id, username, display_name, status,
			input_file_ids, evaluation_models, total_questions, failed_items, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	failedItems := t.FailedItems
	if failedItems == nil {
		failedItems = []model.ItemResult{}
	}

	_, err := r.db.Exec(ctx, query,
		t.TaskID, t.OwnerUserID, t.Username, t.DisplayName, t.Status,
		t.InputFileIDs, t.EvaluationModels, t.TotalQuestions, failedItems, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("ошибка создания задачи: %w", err)
	}
	return nil
}

func (r *taskRepo) GetByID(ctx context.Context, taskID string) (*model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE task_id = $1`

	t, err := r.scanTask(r.db.QueryRow(ctx, query, taskID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения задачи: %w", err)
	}
	return t, nil
}

func (r *taskRepo) ListByOwner(ctx context.Context, ownerUserID string) ([]*model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE owner_user_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, ownerUserID)
}

func (r *taskRepo) ListAll(ctx context.Context) ([]*model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks ORDER BY created_at DESC`
	return r.list(ctx, query)
}

func (r *taskRepo) list(ctx context.Context, query string, args ...any) ([]*model.Task, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка задач: %w", err)
	}
	defer rows.Close()

	var result []*model.Task
	for rows.Next() {
		t, err := r.scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования задачи: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (r *taskRepo) UpdateProgress(ctx context.Context, t *model.Task) error {
	query := `
		UPDATE tasks
		SET progress = $2, quality_passed_count = $3, quality_failed_count = $4,
			quality_failed_rate = $5, total_cost = $6, failed_items = $7
		WHERE task_id = $1`

	failedItems := t.FailedItems
	if failedItems == nil {
		failedItems = []model.ItemResult{}
	}

	tag, err := r.db.Exec(ctx, query,
		t.TaskID, t.Progress, t.QualityPassedCount, t.QualityFailedCount,
		t.QualityFailedRate, t.TotalCost, failedItems,
	)
	if err != nil {
		return fmt.Errorf("ошибка обновления прогресса задачи: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *taskRepo) Complete(ctx context.Context, t *model.Task) error {
	query := `
		UPDATE tasks
		SET status = $2, progress = 100, quality_passed_count = $3,
			quality_failed_count = $4, quality_failed_rate = $5,
			total_cost = $6, failed_items = $7, completed_at = $8
		WHERE task_id = $1`

	failedItems := t.FailedItems
	if failedItems == nil {
		failedItems = []model.ItemResult{}
	}

	tag, err := r.db.Exec(ctx, query,
		t.TaskID, model.StatusCompleted, t.QualityPassedCount,
		t.QualityFailedCount, t.QualityFailedRate, t.TotalCost, failedItems, t.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("ошибка завершения задачи: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *taskRepo) Fail(ctx context.Context, taskID, errMsg string, at time.Time) error {
	query := `
		UPDATE tasks
		SET status = $2, error = $3, completed_at = $4
		WHERE task_id = $1`

	tag, err := r.db.Exec(ctx, query, taskID, model.StatusFailed, errMsg, at)
	if err != nil {
		return fmt.Errorf("ошибка перевода задачи в failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *taskRepo) ExistsRunningReferencing(ctx context.Context, fileID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM tasks
			WHERE status = $1 AND $2 = ANY(input_file_ids)
		)`

	var exists bool
	err := r.db.QueryRow(ctx, query, model.StatusRunning, fileID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки ссылок на файл: %w", err)
	}
	return exists, nil
}

func (r *taskRepo) FailAllRunning(ctx context.Context, errMsg string, at time.Time) (int, error) {
	query := `
		UPDATE tasks
		SET status = $1, error = $2, completed_at = $3
		WHERE status = $4`

	tag, err := r.db.Exec(ctx, query, model.StatusFailed, errMsg, at, model.StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("ошибка восстановления зависших задач: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *taskRepo) scanTask(row pgx.Row) (*model.Task, error) {
	t := &model.Task{}
	var errMsg *string
	err := row.Scan(
		&t.TaskID, &t.OwnerUserID, &t.Username, &t.DisplayName, &t.Status,
		&t.InputFileIDs, &t.EvaluationModels, &t.Progress, &t.TotalQuestions,
		&t.QualityPassedCount, &t.QualityFailedCount, &t.QualityFailedRate,
		&t.TotalCost, &t.FailedItems, &errMsg, &t.CreatedAt, &t.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if errMsg != nil {
		t.Error = *errMsg
	}
	return t, nil
}
