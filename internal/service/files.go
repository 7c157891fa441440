package service

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Rubbisheep/InteractComp-test/internal/domain/model"
	"github.com/Rubbisheep/InteractComp-test/internal/repository"
)

// FileService — хранилище датасетов аннотаций.
// Файлы строго приватны: все операции чтения и удаления проверяют владельца.
type FileService struct {
	files repository.FileRepository
	tasks repository.TaskRepository
	log   *slog.Logger

	now func() time.Time
}

// NewFileService создаёт сервис файлов.
func NewFileService(files repository.FileRepository, tasks repository.TaskRepository, log *slog.Logger) *FileService {
	return &FileService{
		files: files,
		tasks: tasks,
		log:   log,
		now:   time.Now,
	}
}

// Upload разбирает загруженный датасет и сохраняет его за владельцем.
// Поддерживаются .jsonl (объект на строку) и .json (массив объектов).
// Каждая строка обязана содержать непустые question и answer.
func (s *FileService) Upload(ctx context.Context, ownerUserID, filename string, data []byte) (*model.FileRecord, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, fmt.Errorf("%w: имя файла не задано", ErrValidation)
	}

	rows, err := parseDataset(filename, data)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: датасет пуст", ErrInvalidFormat)
	}

	record := &model.FileRecord{
		FileID:      uuid.NewString(),
		OwnerUserID: ownerUserID,
		Filename:    filename,
		SizeBytes:   int64(len(data)),
		RowCount:    len(rows),
		Rows:        rows,
		UploadedAt:  s.now().UTC(),
	}

	if err := s.files.Create(ctx, record); err != nil {
		return nil, err
	}

	s.log.Info("датасет загружен",
		"file_id", record.FileID,
		"owner", ownerUserID,
		"filename", filename,
		"rows", record.RowCount,
	)
	return record, nil
}

// List возвращает метаданные файлов владельца, новые сверху.
func (s *FileService) List(ctx context.Context, ownerUserID string) ([]*model.FileRecord, error) {
	return s.files.ListByOwner(ctx, ownerUserID)
}

// Get возвращает файл со строками датасета.
// Чужой файл — ErrForbidden: владение ограничивает и чтение строк.
func (s *FileService) Get(ctx context.Context, ownerUserID, fileID string) (*model.FileRecord, error) {
	f, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: файл %s", ErrNotFound, fileID)
		}
		return nil, err
	}
	if f.OwnerUserID != ownerUserID {
		return nil, fmt.Errorf("%w: файл %s принадлежит другому пользователю", ErrForbidden, fileID)
	}
	return f, nil
}

// Delete удаляет файл владельца. Файл, на который ссылается
// запущенная задача, удалить нельзя.
func (s *FileService) Delete(ctx context.Context, ownerUserID, fileID string) error {
	if _, err := s.Get(ctx, ownerUserID, fileID); err != nil {
		return err
	}

	referenced, err := s.tasks.ExistsRunningReferencing(ctx, fileID)
	if err != nil {
		return err
	}
	if referenced {
		return fmt.Errorf("%w: файл используется запущенной задачей", ErrInvalidState)
	}

	if err := s.files.Delete(ctx, fileID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: файл %s", ErrNotFound, fileID)
		}
		return err
	}

	s.log.Info("датасет удалён", "file_id", fileID, "owner", ownerUserID)
	return nil
}

// parseDataset разбирает содержимое файла в строки аннотаций.
func parseDataset(filename string, data []byte) ([]model.AnnotationRow, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jsonl":
		return parseJSONL(data)
	case ".json":
		return parseJSONArray(data)
	default:
		return nil, fmt.Errorf("%w: поддерживаются только .jsonl и .json", ErrInvalidFormat)
	}
}

// parseJSONL — объект на строку, пустые строки пропускаются.
func parseJSONL(data []byte) ([]model.AnnotationRow, error) {
	var rows []model.AnnotationRow

	scanner := bufio.NewScanner(bytes.NewReader(data))
	// строки датасета бывают длиннее дефолтного буфера
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var row model.AnnotationRow
		if err := json.Unmarshal(line, &row); err != nil {
			return nil, fmt.Errorf("%w: строка %d не является JSON-объектом", ErrInvalidFormat, lineNo)
		}
		if err := validateRow(row, lineNo); err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFormat, err)
	}
	return rows, nil
}

// parseJSONArray — весь файл как JSON-массив объектов.
func parseJSONArray(data []byte) ([]model.AnnotationRow, error) {
	var rows []model.AnnotationRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: файл не является JSON-массивом аннотаций", ErrInvalidFormat)
	}
	for i, row := range rows {
		if err := validateRow(row, i+1); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

func validateRow(row model.AnnotationRow, n int) error {
	if strings.TrimSpace(row.Question) == "" {
		return fmt.Errorf("%w: запись %d без вопроса", ErrInvalidFormat, n)
	}
	if strings.TrimSpace(row.Answer) == "" {
		return fmt.Errorf("%w: запись %d без ответа", ErrInvalidFormat, n)
	}
	return nil
}
