package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/Rubbisheep/InteractComp-test/internal/domain/model"
	"github.com/Rubbisheep/InteractComp-test/internal/repository"
)

// testLogger — логгер, поглощающий вывод в тестах.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- In-memory репозитории для тестов сервисного слоя ---

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User // по user_id
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*model.User)}
}

func (r *memUserRepo) Create(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == u.Username {
			return repository.ErrConflict
		}
	}
	cp := *u
	r.users[u.UserID] = &cp
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, userID string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memUserRepo) List(_ context.Context) ([]*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*model.User
	for _, u := range r.users {
		cp := *u
		result = append(result, &cp)
	}
	return result, nil
}

func (r *memUserRepo) TouchLastLogin(_ context.Context, userID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.LastLogin = &at
	return nil
}

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*model.Session)}
}

func (r *memSessionRepo) Create(_ context.Context, s *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.sessions[s.SessionID] = &cp
	return nil
}

func (r *memSessionRepo) GetByID(_ context.Context, sessionID string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memSessionRepo) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sessionID]; !ok {
		return repository.ErrNotFound
	}
	delete(r.sessions, sessionID)
	return nil
}

func (r *memSessionRepo) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, s := range r.sessions {
		if now.After(s.ExpiresAt) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

type memFileRepo struct {
	mu    sync.Mutex
	files map[string]*model.FileRecord
}

func newMemFileRepo() *memFileRepo {
	return &memFileRepo{files: make(map[string]*model.FileRecord)}
}

func (r *memFileRepo) Create(_ context.Context, f *model.FileRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *f
	r.files[f.FileID] = &cp
	return nil
}

func (r *memFileRepo) GetByID(_ context.Context, fileID string) (*model.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[fileID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (r *memFileRepo) ListByOwner(_ context.Context, ownerUserID string) ([]*model.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*model.FileRecord
	for _, f := range r.files {
		if f.OwnerUserID == ownerUserID {
			cp := *f
			cp.Rows = nil
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (r *memFileRepo) Delete(_ context.Context, fileID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.files[fileID]; !ok {
		return repository.ErrNotFound
	}
	delete(r.files, fileID)
	return nil
}

type memTaskRepo struct {
	mu    sync.Mutex
	tasks map[string]*model.Task
}

func newMemTaskRepo() *memTaskRepo {
	return &memTaskRepo{tasks: make(map[string]*model.Task)}
}

func (r *memTaskRepo) Create(_ context.Context, t *model.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.tasks[t.TaskID] = &cp
	return nil
}

func (r *memTaskRepo) GetByID(_ context.Context, taskID string) (*model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[taskID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *memTaskRepo) ListByOwner(_ context.Context, ownerUserID string) ([]*model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*model.Task
	for _, t := range r.tasks {
		if t.OwnerUserID == ownerUserID {
			cp := *t
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (r *memTaskRepo) ListAll(_ context.Context) ([]*model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*model.Task
	for _, t := range r.tasks {
		cp := *t
		result = append(result, &cp)
	}
	return result, nil
}

func (r *memTaskRepo) UpdateProgress(_ context.Context, t *model.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tasks[t.TaskID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.Progress = t.Progress
	stored.QualityPassedCount = t.QualityPassedCount
	stored.QualityFailedCount = t.QualityFailedCount
	stored.QualityFailedRate = t.QualityFailedRate
	stored.TotalCost = t.TotalCost
	stored.FailedItems = append([]model.ItemResult(nil), t.FailedItems...)
	return nil
}

func (r *memTaskRepo) Complete(_ context.Context, t *model.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tasks[t.TaskID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.Status = model.StatusCompleted
	stored.Progress = 100
	stored.QualityPassedCount = t.QualityPassedCount
	stored.QualityFailedCount = t.QualityFailedCount
	stored.QualityFailedRate = t.QualityFailedRate
	stored.TotalCost = t.TotalCost
	stored.FailedItems = append([]model.ItemResult(nil), t.FailedItems...)
	stored.CompletedAt = t.CompletedAt
	return nil
}

func (r *memTaskRepo) Fail(_ context.Context, taskID, errMsg string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tasks[taskID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.Status = model.StatusFailed
	stored.Error = errMsg
	stored.CompletedAt = &at
	return nil
}

func (r *memTaskRepo) ExistsRunningReferencing(_ context.Context, fileID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		if t.Status != model.StatusRunning {
			continue
		}
		for _, id := range t.InputFileIDs {
			if id == fileID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (r *memTaskRepo) FailAllRunning(_ context.Context, errMsg string, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.tasks {
		if t.Status == model.StatusRunning {
			t.Status = model.StatusFailed
			t.Error = errMsg
			t.CompletedAt = &at
			n++
		}
	}
	return n, nil
}

// --- Fake evaluator ---

// fakeEvaluator оценивает вопросы по заранее заданной функции.
// release, если задан, блокирует Evaluate до закрытия канала —
// так тесты держат задачи «выполняющимися».
type fakeEvaluator struct {
	models  []string
	release chan struct{}
	// verdict решает, отвечает ли модель правильно
	verdict func(modelName string, row model.AnnotationRow) bool
	// cost — стоимость одного вызова модели
	cost float64
}

func (f *fakeEvaluator) Models() []string {
	return f.models
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, row model.AnnotationRow) (map[string]model.ModelResult, error) {
	if f.release != nil {
		// Закрытый release имеет приоритет над отменой контекста:
		// иначе select выбирает ветку случайно и тест становится гонкой.
		select {
		case <-f.release:
		default:
			select {
			case <-f.release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	results := make(map[string]model.ModelResult, len(f.models))
	for _, m := range f.models {
		correct := false
		if f.verdict != nil {
			correct = f.verdict(m, row)
		}
		results[m] = model.ModelResult{
			Answer:  fmt.Sprintf("ответ %s", m),
			Correct: correct,
			Cost:    f.cost,
		}
	}
	return results, nil
}
