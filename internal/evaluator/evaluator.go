// Пакет evaluator — клиент OpenAI-совместимого API для панельной
// оценки аннотаций: каждый вопрос задаётся всем моделям панели,
// ответы сверяются с эталоном моделью-грейдером.
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Rubbisheep/InteractComp-test/internal/domain/model"
)

// Evaluator оценивает один вопрос датасета всей панелью моделей.
type Evaluator interface {
	// Evaluate возвращает результат каждой модели панели по вопросу.
	// Сбой отдельной модели не срывает оценку: её результат
	// записывается как неправильный ответ.
	Evaluate(ctx context.Context, row model.AnnotationRow) (map[string]model.ModelResult, error)
	// Models — панель моделей-оценщиков.
	Models() []string
}

// Config — параметры клиента оценки.
type Config struct {
	// BaseURL — базовый URL OpenAI-совместимого API.
	BaseURL string
	// APIKey — ключ авторизации.
	APIKey string
	// Models — панель моделей-оценщиков.
	Models []string
	// GraderModel — модель, сверяющая ответ с эталоном.
	GraderModel string
	// Timeout — таймаут одного вызова модели.
	Timeout time.Duration
}

// client — реализация Evaluator поверх resty.
type client struct {
	http   *resty.Client
	models []string
	grader string
	log    *slog.Logger
}

// New создаёт клиент панельной оценки.
func New(cfg Config, log *slog.Logger) Evaluator {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetAuthToken(cfg.APIKey).
		SetTimeout(cfg.Timeout).
		SetRetryCount(2).
		SetRetryWaitTime(2 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == 429 || r.StatusCode() >= 500
		})

	return &client{
		http:   httpClient,
		models: cfg.Models,
		grader: cfg.GraderModel,
		log:    log,
	}
}

func (c *client) Models() []string {
	return c.models
}

// Evaluate рассылает вопрос всем моделям панели параллельно.
func (c *client) Evaluate(ctx context.Context, row model.AnnotationRow) (map[string]model.ModelResult, error) {
	results := make(map[string]model.ModelResult, len(c.models))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, m := range c.models {
		wg.Add(1)
		go func(modelName string) {
			defer wg.Done()
			result := c.evaluateModel(ctx, modelName, row)
			mu.Lock()
			results[modelName] = result
			mu.Unlock()
		}(m)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// evaluateModel — полный цикл по одной модели: ответ на вопрос,
// затем сверка с эталоном грейдером.
func (c *client) evaluateModel(ctx context.Context, modelName string, row model.AnnotationRow) model.ModelResult {
	answer, answerCost, err := c.askModel(ctx, modelName, row)
	if err != nil {
		c.log.Warn("модель не ответила", "model", modelName, "error", err)
		return model.ModelResult{Correct: false}
	}

	correct, gradeCost, err := c.grade(ctx, row, answer)
	if err != nil {
		c.log.Warn("грейдер не ответил", "model", c.grader, "error", err)
		return model.ModelResult{Answer: answer, Correct: false, Cost: answerCost}
	}

	return model.ModelResult{
		Answer:  answer,
		Correct: correct,
		Cost:    answerCost + gradeCost,
	}
}

// askModel задаёт модели вопрос датасета.
func (c *client) askModel(ctx context.Context, modelName string, row model.AnnotationRow) (string, float64, error) {
	prompt := "Answer the following question concisely.\n\nQuestion: " + row.Question
	if row.Context != "" {
		prompt += "\n\nContext: " + row.Context
	}

	return c.chatCompletion(ctx, modelName, prompt)
}

// grade сверяет ответ модели со скрытым эталоном.
// Грейдер обязан ответить единственным словом yes или no.
func (c *client) grade(ctx context.Context, row model.AnnotationRow, modelAnswer string) (bool, float64, error) {
	prompt := fmt.Sprintf(
		"You are grading an answer. Question: %s\nReference answer: %s\nCandidate answer: %s\n\n"+
			"Does the candidate answer convey the same meaning as the reference answer? "+
			"Reply with a single word: yes or no.",
		row.Question, row.Answer, modelAnswer,
	)

	verdict, cost, err := c.chatCompletion(ctx, c.grader, prompt)
	if err != nil {
		return false, 0, err
	}

	verdict = strings.ToLower(strings.TrimSpace(strings.Trim(verdict, ".!")))
	return strings.HasPrefix(verdict, "yes"), cost, nil
}

// --- Протокол chat completions ---

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// chatCompletion выполняет один вызов /chat/completions.
func (c *client) chatCompletion(ctx context.Context, modelName, prompt string) (string, float64, error) {
	var out chatResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model:    modelName,
			Messages: []chatMessage{{Role: "user", Content: prompt}},
		}).
		SetResult(&out).
		SetError(&out).
		Post("/chat/completions")
	if err != nil {
		return "", 0, fmt.Errorf("ошибка вызова модели %s: %w", modelName, err)
	}
	if resp.IsError() {
		msg := resp.Status()
		if out.Error != nil {
			msg = out.Error.Message
		}
		return "", 0, fmt.Errorf("модель %s вернула ошибку: %s", modelName, msg)
	}
	if len(out.Choices) == 0 {
		return "", 0, fmt.Errorf("модель %s вернула пустой ответ", modelName)
	}

	cost := tokenCost(modelName, out.Usage.PromptTokens, out.Usage.CompletionTokens)
	return strings.TrimSpace(out.Choices[0].Message.Content), cost, nil
}

// modelPrice — цена за миллион токенов (вход / выход), в долларах.
type modelPrice struct {
	input  float64
	output float64
}

// Прейскурант моделей. Неизвестные модели тарифицируются по defaultPrice.
var (
	prices = map[string]modelPrice{
		"gpt-5":           {input: 1.25, output: 10.0},
		"gpt-5-mini":      {input: 0.25, output: 2.0},
		"gpt-4o":          {input: 2.5, output: 10.0},
		"claude-4-sonnet": {input: 3.0, output: 15.0},
	}
	defaultPrice = modelPrice{input: 1.0, output: 5.0}
)

// tokenCost — стоимость вызова по числу токенов.
func tokenCost(modelName string, promptTokens, completionTokens int) float64 {
	p, ok := prices[modelName]
	if !ok {
		p = defaultPrice
	}
	return (float64(promptTokens)*p.input + float64(completionTokens)*p.output) / 1e6
}
