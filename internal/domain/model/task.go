package model

import "time"

// TaskStatus — статус задачи оценки.
// pending существует только как переходное состояние внутри планировщика:
// задача материализуется уже running, клиент видит три статуса.
type TaskStatus string

const (
	// StatusRunning — задача допущена и выполняется.
	StatusRunning TaskStatus = "running"
	// StatusCompleted — все вопросы обработаны, результаты зафиксированы.
	StatusCompleted TaskStatus = "completed"
	// StatusFailed — системная ошибка, задача прервана.
	StatusFailed TaskStatus = "failed"
)

// IsTerminal возвращает true для конечных статусов.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ModelResult — ответ одной модели на один вопрос.
type ModelResult struct {
	// Answer — ответ модели.
	Answer string `json:"answer"`
	// Correct — совпал ли ответ со скрытым правильным ответом.
	Correct bool `json:"correct"`
	// Cost — стоимость вызова модели в долларах.
	Cost float64 `json:"cost"`
}

// ItemResult — детальный результат по вопросу, провалившему проверку качества
// (большинство моделей ответили правильно). Для прошедших вопросов
// детали не сохраняются — в памяти остаётся только сложное подмножество.
type ItemResult struct {
	Question      string                 `json:"question"`
	CorrectAnswer string                 `json:"correct_answer"`
	ModelResults  map[string]ModelResult `json:"model_results"`
	// CorrectModelsCount — сколько моделей ответили правильно.
	CorrectModelsCount int `json:"correct_models_count"`
}

// Task — задача оценки качества аннотаций.
// Задачи никогда не удаляются: это постоянные записи аудита,
// читаемые всеми аутентифицированными пользователями (community visibility).
// Мутирует задачу только её собственный worker и планировщик
// при терминальном переходе.
type Task struct {
	// TaskID — UUID задачи.
	TaskID string `json:"task_id"`
	// OwnerUserID — создатель задачи.
	OwnerUserID string `json:"owner_user_id"`
	// Username, DisplayName — денормализованные поля создателя
	// (для отчётов и списков без обращения к таблице пользователей).
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	// Status — текущий статус (running, completed, failed).
	Status TaskStatus `json:"status"`
	// InputFileIDs — файлы, по которым идёт оценка.
	InputFileIDs []string `json:"file_ids"`
	// EvaluationModels — панель моделей, которой оценивался датасет.
	EvaluationModels []string `json:"evaluation_models"`
	// Progress — процент выполнения, 0-100, монотонно не убывает.
	Progress int `json:"progress"`
	// TotalQuestions — общее количество вопросов в задаче.
	TotalQuestions int `json:"total_questions"`
	// QualityPassedCount — вопросы, устоявшие перед большинством моделей.
	QualityPassedCount int `json:"quality_passed_count"`
	// QualityFailedCount — вопросы, которые большинство моделей отгадало.
	QualityFailedCount int `json:"quality_failed_count"`
	// QualityFailedRate — QualityFailedCount / TotalQuestions (0 при пустом датасете).
	QualityFailedRate float64 `json:"quality_failed_rate"`
	// TotalCost — суммарная стоимость всех вызовов моделей.
	TotalCost float64 `json:"total_cost"`
	// FailedItems — детали только по непрошедшим вопросам, в порядке датасета.
	FailedItems []ItemResult `json:"failed_items,omitempty"`
	// Error — человекочитаемое описание системной ошибки (для failed).
	Error string `json:"error,omitempty"`
	// CreatedAt — время допуска задачи.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt — время терминального перехода.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// SystemStatus — живое представление состояния планировщика.
// Не персистентно, вычисляется на каждый запрос.
type SystemStatus struct {
	RunningTasks       int `json:"running_tasks"`
	MaxConcurrentTasks int `json:"max_concurrent_tasks"`
	AvailableSlots     int `json:"available_slots"`
}
