package service

import (
	"math"

	"github.com/Rubbisheep/InteractComp-test/internal/domain/model"
)

// MajorityThreshold — минимальное число правильных ответов, при котором
// вопрос считается провалившим проверку качества: строгое большинство
// панели из n моделей. Для нечётного n правило однозначно.
func MajorityThreshold(n int) int {
	return n/2 + 1
}

// Aggregator накапливает результаты оценки одной задачи по мере
// обработки вопросов. Не потокобезопасен: у каждой задачи
// единственный writer — её worker.
type Aggregator struct {
	threshold      int
	totalQuestions int

	processed   int
	passed      int
	failed      int
	totalCost   float64
	failedItems []model.ItemResult
}

// NewAggregator создаёт аккумулятор для задачи из totalQuestions вопросов,
// оцениваемой панелью из panelSize моделей.
func NewAggregator(panelSize, totalQuestions int) *Aggregator {
	return &Aggregator{
		threshold:      MajorityThreshold(panelSize),
		totalQuestions: totalQuestions,
		failedItems:    []model.ItemResult{},
	}
}

// Ingest учитывает результаты панели по очередному вопросу.
// Вопрос проваливает проверку качества, если большинство моделей
// ответило правильно; детали сохраняются только для таких вопросов.
func (a *Aggregator) Ingest(row model.AnnotationRow, results map[string]model.ModelResult) {
	a.processed++

	correct := 0
	for _, r := range results {
		a.totalCost += r.Cost
		if r.Correct {
			correct++
		}
	}

	if correct >= a.threshold {
		a.failed++
		a.failedItems = append(a.failedItems, model.ItemResult{
			Question:           row.Question,
			CorrectAnswer:      row.Answer,
			ModelResults:       results,
			CorrectModelsCount: correct,
		})
	} else {
		a.passed++
	}
}

// Progress — процент обработанных вопросов, округлённый до целого.
func (a *Aggregator) Progress() int {
	if a.totalQuestions == 0 {
		return 100
	}
	return int(math.Round(100 * float64(a.processed) / float64(a.totalQuestions)))
}

// Processed — количество обработанных вопросов.
func (a *Aggregator) Processed() int {
	return a.processed
}

// ApplyTo переносит текущее состояние аккумулятора в задачу.
func (a *Aggregator) ApplyTo(t *model.Task) {
	t.Progress = a.Progress()
	t.QualityPassedCount = a.passed
	t.QualityFailedCount = a.failed
	t.TotalCost = a.totalCost
	t.FailedItems = a.failedItems
	if a.totalQuestions > 0 {
		t.QualityFailedRate = float64(a.failed) / float64(a.totalQuestions)
	} else {
		t.QualityFailedRate = 0
	}
}
