package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Rubbisheep/InteractComp-test/internal/domain/model"
	"github.com/Rubbisheep/InteractComp-test/internal/evaluator"
	"github.com/Rubbisheep/InteractComp-test/internal/repository"
)

// Метрики планировщика.
var (
	metricRunningTasks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "interactcomp_tasks_running",
		Help: "Количество выполняемых задач оценки.",
	})
	metricTasksFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interactcomp_tasks_finished_total",
		Help: "Количество завершённых задач по исходу.",
	}, []string{"status"})
	metricTasksRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interactcomp_tasks_rejected_total",
		Help: "Количество задач, отклонённых из-за отсутствия свободных слотов.",
	})
	metricQuestionsEvaluated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interactcomp_questions_evaluated_total",
		Help: "Количество оценённых вопросов.",
	})
)

// Scheduler — планировщик задач оценки с глобальным потолком
// одновременного выполнения. Допуск сериализован мьютексом:
// проверка свободного слота и его захват — одна критическая секция,
// превышение потолка невозможно ни при каком наплыве запросов.
type Scheduler struct {
	tasks repository.TaskRepository
	files *FileService
	eval  evaluator.Evaluator
	log   *slog.Logger

	maxConcurrent int

	mu      sync.Mutex
	running int

	// baseCtx — жизненный цикл worker'ов: задачи не привязаны
	// к HTTP-запросу, который их запустил.
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	now func() time.Time
}

// NewScheduler создаёт планировщик с потолком maxConcurrent задач.
func NewScheduler(
	tasks repository.TaskRepository,
	files *FileService,
	eval evaluator.Evaluator,
	maxConcurrent int,
	log *slog.Logger,
) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		tasks:         tasks,
		files:         files,
		eval:          eval,
		log:           log,
		maxConcurrent: maxConcurrent,
		baseCtx:       ctx,
		cancel:        cancel,
		now:           time.Now,
	}
}

// RecoverStale переводит в failed задачи, оставшиеся в running
// после падения процесса: их worker'ы не существуют, а слоты
// не должны считаться занятыми. Вызывается один раз при старте.
func (s *Scheduler) RecoverStale(ctx context.Context) error {
	n, err := s.tasks.FailAllRunning(ctx, "сервис перезапущен во время выполнения", s.now().UTC())
	if err != nil {
		return err
	}
	if n > 0 {
		s.log.Warn("зависшие задачи переведены в failed", "count", n)
	}
	return nil
}

// Start запускает задачу оценки по файлам владельца.
// Возвращает ErrResourceExhausted, если все слоты заняты.
func (s *Scheduler) Start(ctx context.Context, owner *model.User, fileIDs []string) (*model.Task, error) {
	if len(fileIDs) == 0 {
		return nil, fmt.Errorf("%w: не указаны файлы датасета", ErrValidation)
	}

	// Загружаем файлы до захвата слота: отказ по чужому или
	// отсутствующему файлу не должен трогать счётчик.
	var rows []model.AnnotationRow
	for _, fileID := range fileIDs {
		f, err := s.files.Get(ctx, owner.UserID, fileID)
		if err != nil {
			return nil, err
		}
		rows = append(rows, f.Rows...)
	}

	if !s.acquireSlot() {
		metricTasksRejected.Inc()
		return nil, fmt.Errorf("%w: выполняется %d из %d задач", ErrResourceExhausted, s.maxConcurrent, s.maxConcurrent)
	}

	task := &model.Task{
		TaskID:           uuid.NewString(),
		OwnerUserID:      owner.UserID,
		Username:         owner.Username,
		DisplayName:      owner.DisplayName,
		Status:           model.StatusRunning,
		InputFileIDs:     fileIDs,
		EvaluationModels: s.eval.Models(),
		TotalQuestions:   len(rows),
		CreatedAt:        s.now().UTC(),
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		s.releaseSlot()
		return nil, err
	}

	// Worker получает собственную копию записи. Вызывающему уходит
	// снимок на момент допуска: после go-вызова его никто не мутирует.
	workerTask := *task
	s.wg.Add(1)
	go s.runTask(&workerTask, rows)

	s.log.Info("задача запущена",
		"task_id", task.TaskID,
		"owner", owner.UserID,
		"files", len(fileIDs),
		"questions", len(rows),
	)
	return task, nil
}

// Status — текущее состояние планировщика.
func (s *Scheduler) Status() model.SystemStatus {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return model.SystemStatus{
		RunningTasks:       running,
		MaxConcurrentTasks: s.maxConcurrent,
		AvailableSlots:     s.maxConcurrent - running,
	}
}

// Stop останавливает планировщик и дожидается завершения worker'ов.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker'ы не завершились до таймаута: %w", ctx.Err())
	}
}

// runTask — worker одной задачи: последовательно прогоняет вопросы
// через панель моделей, фиксируя прогресс после каждого.
func (s *Scheduler) runTask(task *model.Task, rows []model.AnnotationRow) {
	defer s.wg.Done()
	defer s.releaseSlot()

	agg := NewAggregator(len(s.eval.Models()), len(rows))

	for _, row := range rows {
		results, err := s.eval.Evaluate(s.baseCtx, row)
		if err != nil {
			s.failTask(task.TaskID, fmt.Sprintf("оценка прервана: %s", err))
			return
		}

		agg.Ingest(row, results)
		metricQuestionsEvaluated.Inc()

		agg.ApplyTo(task)
		if err := s.tasks.UpdateProgress(s.baseCtx, task); err != nil {
			s.failTask(task.TaskID, fmt.Sprintf("ошибка сохранения прогресса: %s", err))
			return
		}
	}

	agg.ApplyTo(task)
	completedAt := s.now().UTC()
	task.CompletedAt = &completedAt
	task.Status = model.StatusCompleted

	if err := s.tasks.Complete(context.Background(), task); err != nil {
		s.log.Error("не удалось завершить задачу", "task_id", task.TaskID, "error", err)
		metricTasksFinished.WithLabelValues(string(model.StatusFailed)).Inc()
		return
	}

	metricTasksFinished.WithLabelValues(string(model.StatusCompleted)).Inc()
	s.log.Info("задача завершена",
		"task_id", task.TaskID,
		"questions", task.TotalQuestions,
		"quality_failed", task.QualityFailedCount,
		"cost", task.TotalCost,
	)
}

// failTask переводит задачу в failed. Запись идёт в фоновом контексте:
// терминальный переход должен состояться даже при остановке сервиса.
func (s *Scheduler) failTask(taskID, errMsg string) {
	if err := s.tasks.Fail(context.Background(), taskID, errMsg, s.now().UTC()); err != nil {
		s.log.Error("не удалось перевести задачу в failed", "task_id", taskID, "error", err)
	}
	metricTasksFinished.WithLabelValues(string(model.StatusFailed)).Inc()
	s.log.Warn("задача провалена", "task_id", taskID, "reason", errMsg)
}

// acquireSlot захватывает слот выполнения. Проверка и инкремент —
// одна критическая секция.
func (s *Scheduler) acquireSlot() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running >= s.maxConcurrent {
		return false
	}
	s.running++
	metricRunningTasks.Set(float64(s.running))
	return true
}

// releaseSlot освобождает слот при любом исходе задачи.
func (s *Scheduler) releaseSlot() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running--
	metricRunningTasks.Set(float64(s.running))
}
