package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Rubbisheep/InteractComp-test/internal/domain/model"
)

// FileRepository — интерфейс доступа к таблице files.
type FileRepository interface {
	// Create сохраняет загруженный датасет вместе со строками.
	Create(ctx context.Context, f *model.FileRecord) error
	// GetByID возвращает файл со строками датасета.
	GetByID(ctx context.Context, fileID string) (*model.FileRecord, error)
	// ListByOwner возвращает метаданные файлов владельца, новые сверху.
	// Строки датасета не загружаются.
	ListByOwner(ctx context.Context, ownerUserID string) ([]*model.FileRecord, error)
	// Delete удаляет файл. Возвращает ErrNotFound, если его нет.
	Delete(ctx context.Context, fileID string) error
}

// fileRepo — реализация FileRepository.
type fileRepo struct {
	db DBTX
}

// NewFileRepository создаёт репозиторий файлов.
func NewFileRepository(db DBTX) FileRepository {
	return &fileRepo{db: db}
}

func (r *fileRepo) Create(ctx context.Context, f *model.FileRecord) error {
	query := `
		INSERT INTO files (file_id, owner_user_id, filename, size_bytes, row_count, rows, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		f.FileID, f.OwnerUserID, f.Filename, f.SizeBytes, f.RowCount, f.Rows, f.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("ошибка сохранения файла: %w", err)
	}
	return nil
}

func (r *fileRepo) GetByID(ctx context.Context, fileID string) (*model.FileRecord, error) {
	query := `
		SELECT file_id, owner_user_id, filename, size_bytes, row_count, rows, uploaded_at
		FROM files
		WHERE file_id = $1`

	f := &model.FileRecord{}
	err := r.db.QueryRow(ctx, query, fileID).Scan(
		&f.FileID, &f.OwnerUserID, &f.Filename, &f.SizeBytes, &f.RowCount, &f.Rows, &f.UploadedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}
	return f, nil
}

func (r *fileRepo) ListByOwner(ctx context.Context, ownerUserID string) ([]*model.FileRecord, error) {
	query := `
		SELECT file_id, owner_user_id, filename, size_bytes, row_count, uploaded_at
		FROM files
		WHERE owner_user_id = $1
		ORDER BY uploaded_at DESC`

	rows, err := r.db.Query(ctx, query, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	defer rows.Close()

	var result []*model.FileRecord
	for rows.Next() {
		f := &model.FileRecord{}
		if err := rows.Scan(
			&f.FileID, &f.OwnerUserID, &f.Filename, &f.SizeBytes, &f.RowCount, &f.UploadedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования файла: %w", err)
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

func (r *fileRepo) Delete(ctx context.Context, fileID string) error {
	query := `DELETE FROM files WHERE file_id = $1`

	tag, err := r.db.Exec(ctx, query, fileID)
	if err != nil {
		return fmt.Errorf("ошибка удаления файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
