package service

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/Rubbisheep/InteractComp-test/internal/domain/model"
)

// RenderCSV формирует CSV-отчёт по задаче: строка на каждый вопрос,
// проваливший проверку качества, с ответами всех моделей панели,
// стоимостью вопроса и данными создателя задачи.
// Колонки моделей идут в порядке панели задачи.
func RenderCSV(t *model.Task) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"question", "correct_answer"}
	for _, m := range t.EvaluationModels {
		header = append(header, m+"_answer", m+"_correct")
	}
	header = append(header, "correct_models_count", "quality_failed", "cost", "created_by", "created_at")
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("ошибка записи заголовка CSV: %w", err)
	}

	creator := taskCreator(t)
	createdAt := t.CreatedAt.UTC().Format(time.RFC3339)

	for _, item := range t.FailedItems {
		row := []string{item.Question, item.CorrectAnswer}

		cost := 0.0
		for _, m := range t.EvaluationModels {
			r := item.ModelResults[m]
			row = append(row, r.Answer, strconv.FormatBool(r.Correct))
			cost += r.Cost
		}

		// Материализуются только провалившие вопросы,
		// quality_failed в отчёте всегда true.
		row = append(row,
			strconv.Itoa(item.CorrectModelsCount),
			"true",
			strconv.FormatFloat(cost, 'f', -1, 64),
			creator,
			createdAt,
		)
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("ошибка записи строки CSV: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("ошибка формирования CSV: %w", err)
	}
	return buf.Bytes(), nil
}

// taskCreator — отображаемое имя создателя задачи.
func taskCreator(t *model.Task) string {
	if t.DisplayName != "" {
		return t.DisplayName
	}
	return t.Username
}
