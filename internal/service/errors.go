// Пакет service — бизнес-логика сервиса оценки качества аннотаций:
// аутентификация, хранилище датасетов, планировщик задач и реестр результатов.
package service

import "errors"

// Ошибки бизнес-логики. Транспортный слой (handlers) отображает их
// в HTTP-коды, сервисы о HTTP ничего не знают.
var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrUnauthorized — токен отсутствует, повреждён или сессия истекла.
	ErrUnauthorized = errors.New("требуется аутентификация")
	// ErrForbidden — ресурс существует, но принадлежит другому пользователю.
	ErrForbidden = errors.New("доступ запрещён")
	// ErrConflict — дублирующийся ресурс (например, занятый username).
	ErrConflict = errors.New("ресурс уже существует")
	// ErrValidation — некорректные параметры запроса.
	ErrValidation = errors.New("ошибка валидации")
	// ErrInvalidFormat — файл не разбирается как датасет аннотаций.
	ErrInvalidFormat = errors.New("некорректный формат датасета")
	// ErrResourceExhausted — потолок одновременных задач достигнут.
	ErrResourceExhausted = errors.New("нет свободных слотов для задачи")
	// ErrInvalidState — операция несовместима с текущим состоянием ресурса
	// (например, удаление файла, на который ссылается запущенная задача).
	ErrInvalidState = errors.New("операция недопустима в текущем состоянии")
)
