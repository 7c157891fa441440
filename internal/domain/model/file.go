package model

import "time"

// AnnotationRow — одна аннотация из загруженного датасета:
// вопрос, скрытый правильный ответ и контекст.
type AnnotationRow struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Context  string `json:"context,omitempty"`
}

// FileRecord — загруженный датасет аннотаций.
// Файлы приватны: читает и удаляет только владелец.
// Единственная мутация — удаление; строки после загрузки неизменяемы.
type FileRecord struct {
	// FileID — UUID файла.
	FileID string `json:"file_id"`
	// OwnerUserID — владелец файла.
	OwnerUserID string `json:"owner_user_id"`
	// Filename — исходное имя файла при загрузке.
	Filename string `json:"filename"`
	// SizeBytes — размер загруженного файла в байтах.
	SizeBytes int64 `json:"size_bytes"`
	// RowCount — количество аннотаций в датасете.
	RowCount int `json:"row_count"`
	// Rows — упорядоченные строки датасета. В списках не отдаются.
	Rows []AnnotationRow `json:"-"`
	// UploadedAt — время загрузки (UTC).
	UploadedAt time.Time `json:"uploaded_at"`
}
