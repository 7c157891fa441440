// system.go — обработчик статуса планировщика.
package handlers

import (
	"net/http"

	"github.com/Rubbisheep/InteractComp-test/internal/service"
)

// SystemHandler — обработчик системных endpoints.
type SystemHandler struct {
	scheduler *service.Scheduler
}

// NewSystemHandler создаёт обработчик системных endpoints.
func NewSystemHandler(scheduler *service.Scheduler) *SystemHandler {
	return &SystemHandler{scheduler: scheduler}
}

// Status — GET /system/status. Живое состояние планировщика:
// выполняемые задачи, потолок и свободные слоты.
func (h *SystemHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.scheduler.Status())
}
