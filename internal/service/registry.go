package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Rubbisheep/InteractComp-test/internal/domain/model"
	"github.com/Rubbisheep/InteractComp-test/internal/repository"
)

// RegistryService — реестр задач оценки. Задачи видны всему сообществу:
// любой аутентифицированный пользователь читает любую задачу,
// включая детальные результаты. Права на запись реестр не выдаёт —
// задачи мутирует только планировщик.
type RegistryService struct {
	tasks repository.TaskRepository
	log   *slog.Logger
}

// NewRegistryService создаёт реестр задач.
func NewRegistryService(tasks repository.TaskRepository, log *slog.Logger) *RegistryService {
	return &RegistryService{tasks: tasks, log: log}
}

// Get возвращает задачу со всеми деталями.
func (s *RegistryService) Get(ctx context.Context, taskID string) (*model.Task, error) {
	t, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: задача %s", ErrNotFound, taskID)
		}
		return nil, err
	}
	hideInterimDetails(t)
	return t, nil
}

// hideInterimDetails убирает детали непрошедших вопросов из незавершённой
// задачи: до терминального статуса наружу отдаются только счётчики.
func hideInterimDetails(t *model.Task) {
	if t.Status != model.StatusCompleted {
		t.FailedItems = nil
	}
}

// TaskLists — ответ на запрос списков: свои задачи и задачи сообщества.
type TaskLists struct {
	UserTasks []*model.Task `json:"user_tasks"`
	AllTasks  []*model.Task `json:"all_tasks"`
}

// ListForUser возвращает задачи пользователя и все задачи сообщества,
// оба списка новые сверху.
func (s *RegistryService) ListForUser(ctx context.Context, userID string) (*TaskLists, error) {
	own, err := s.tasks.ListByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	all, err := s.tasks.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	if own == nil {
		own = []*model.Task{}
	}
	if all == nil {
		all = []*model.Task{}
	}
	for _, t := range own {
		hideInterimDetails(t)
	}
	for _, t := range all {
		hideInterimDetails(t)
	}
	return &TaskLists{UserTasks: own, AllTasks: all}, nil
}

// Report возвращает CSV-отчёт по завершённой задаче и имя файла.
func (s *RegistryService) Report(ctx context.Context, taskID string) ([]byte, string, error) {
	t, err := s.Get(ctx, taskID)
	if err != nil {
		return nil, "", err
	}
	if t.Status != model.StatusCompleted {
		return nil, "", fmt.Errorf("%w: отчёт доступен только для завершённых задач", ErrInvalidState)
	}

	data, err := RenderCSV(t)
	if err != nil {
		return nil, "", err
	}

	// Имя файла несёт создателя и время завершения задачи
	stamp := t.CreatedAt
	if t.CompletedAt != nil {
		stamp = *t.CompletedAt
	}
	filename := fmt.Sprintf("evaluation_%s_%s_%s.csv",
		taskCreator(t), t.TaskID, stamp.UTC().Format("20060102_150405"))
	return data, filename, nil
}
