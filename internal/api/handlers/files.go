// files.go — обработчики хранилища датасетов: загрузка,
// список и удаление файлов владельца.
package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/Rubbisheep/InteractComp-test/internal/api/errors"
	"github.com/Rubbisheep/InteractComp-test/internal/api/middleware"
	"github.com/Rubbisheep/InteractComp-test/internal/domain/model"
	"github.com/Rubbisheep/InteractComp-test/internal/service"
)

// FileHandler — обработчик endpoints файлов.
type FileHandler struct {
	files         *service.FileService
	maxUploadSize int64
	logger        *slog.Logger
}

// NewFileHandler создаёт обработчик файлов.
func NewFileHandler(files *service.FileService, maxUploadSize int64, logger *slog.Logger) *FileHandler {
	return &FileHandler{
		files:         files,
		maxUploadSize: maxUploadSize,
		logger:        logger.With(slog.String("component", "file_handler")),
	}
}

// Upload — POST /upload. Принимает датасет как multipart-поле file.
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			apierrors.ValidationError(w, "Файл превышает максимально допустимый размер")
			return
		}
		apierrors.ValidationError(w, "Ожидается multipart/form-data с полем file")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "Отсутствует поле file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		apierrors.ValidationError(w, "Не удалось прочитать файл")
		return
	}

	record, err := h.files.Upload(r.Context(), user.UserID, header.Filename, data)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, record)
}

// List — GET /files. Метаданные файлов владельца, новые сверху.
func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	files, err := h.files.List(r.Context(), user.UserID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if files == nil {
		files = []*model.FileRecord{}
	}
	writeJSON(w, http.StatusOK, files)
}

// Delete — DELETE /files/{fileID}. Файл, используемый запущенной
// задачей, удалить нельзя (409).
func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	fileID := chi.URLParam(r, "fileID")

	if err := h.files.Delete(r.Context(), user.UserID, fileID); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Файл удалён"})
}
