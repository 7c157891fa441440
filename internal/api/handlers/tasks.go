// tasks.go — обработчики задач оценки: запуск, статус,
// списки сообщества и выгрузка CSV-отчёта.
package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Rubbisheep/InteractComp-test/internal/api/middleware"
	"github.com/Rubbisheep/InteractComp-test/internal/service"
)

// TaskHandler — обработчик endpoints задач.
type TaskHandler struct {
	scheduler *service.Scheduler
	registry  *service.RegistryService
	logger    *slog.Logger
}

// NewTaskHandler создаёт обработчик задач.
func NewTaskHandler(scheduler *service.Scheduler, registry *service.RegistryService, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		scheduler: scheduler,
		registry:  registry,
		logger:    logger.With(slog.String("component", "task_handler")),
	}
}

// startRequest — тело запроса запуска задачи.
type startRequest struct {
	FileIDs []string `json:"file_ids"`
}

// Start — POST /start_test. Запускает оценку по файлам владельца.
// 429, если все слоты планировщика заняты.
func (h *TaskHandler) Start(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	var req startRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	task, err := h.scheduler.Start(r.Context(), user, req.FileIDs)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusAccepted, task)
}

// Get — GET /test/{taskID}. Задача видна любому аутентифицированному
// пользователю, включая детальные результаты.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	task, err := h.registry.Get(r.Context(), taskID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// List — GET /tasks. Свои задачи и задачи сообщества.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	lists, err := h.registry.ListForUser(r.Context(), user.UserID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, lists)
}

// DownloadCSV — GET /test/{taskID}/download-csv.
// Отчёт доступен только для завершённых задач.
func (h *TaskHandler) DownloadCSV(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	data, filename, err := h.registry.Report(r.Context(), taskID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
