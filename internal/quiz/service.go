package quiz

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/snapquiz/snapquiz-backend/internal/grading"
)

type memTest struct {
	view      TestView
	sourceKey string
	// option id -> correct flag
	correct map[int64]bool
}

type memAttempt struct {
	id        int64
	testID    int64
	userID    int64
	score     float64
	createdAt time.Time
	selected  map[int64]grading.OptionSet // question id -> options
}

// memoryStore is a Store without a database, for handler tests and demos.
// It applies the same scoring rule as SQLStore.
type memoryStore struct {
	mu       sync.RWMutex
	seq      int64
	tests    map[int64]*memTest
	attempts map[int64]*memAttempt
	now      func() time.Time
}

func NewInMemoryStore() Store {
	return &memoryStore{
		tests:    map[int64]*memTest{},
		attempts: map[int64]*memAttempt{},
		now:      time.Now,
	}
}

func (m *memoryStore) nextID() int64 {
	m.seq++
	return m.seq
}

func (m *memoryStore) CreateTest(_ context.Context, userID int64, sourceKey string, g GeneratedTest) (int64, error) {
	if err := g.Validate(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t := &memTest{
		view: TestView{
			ID:          m.nextID(),
			Title:       g.Title,
			UserID:      userID,
			GeneratedAt: m.now().UTC().Truncate(time.Second),
		},
		sourceKey: sourceKey,
		correct:   map[int64]bool{},
	}
	for _, gq := range g.Questions {
		q := QuestionView{
			QuestionID:  m.nextID(),
			Text:        gq.QuestionText,
			McqType:     gq.McqType(),
			Explanation: gq.Explanation,
		}
		for _, o := range gq.Options {
			id := m.nextID()
			q.Options = append(q.Options, OptionView{OptionID: id, Text: o.OptionText})
			t.correct[id] = o.IsCorrect
		}
		t.view.Questions = append(t.view.Questions, q)
	}
	m.tests[t.view.ID] = t
	return t.view.ID, nil
}

func (m *memoryStore) GetTest(_ context.Context, testID, userID int64) (TestView, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tests[testID]
	if !ok || t.view.UserID != userID {
		return TestView{}, fmt.Errorf("test %d: %w", testID, ErrNotFound)
	}
	return t.view, nil
}

func (m *memoryStore) ListTests(_ context.Context, userID int64) ([]TestSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []TestSummary{}
	for _, t := range m.tests {
		if t.view.UserID != userID {
			continue
		}
		out = append(out, TestSummary{
			ID:           t.view.ID,
			Title:        t.view.Title,
			NumQuestions: len(t.view.Questions),
			GeneratedAt:  t.view.GeneratedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memoryStore) DeleteTest(_ context.Context, testID, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tests[testID]
	if !ok || t.view.UserID != userID {
		return fmt.Errorf("test %d: %w", testID, ErrNotFound)
	}
	delete(m.tests, testID)
	for id, a := range m.attempts {
		if a.testID == testID {
			delete(m.attempts, id)
		}
	}
	return nil
}

func (m *memoryStore) CreateAttempt(_ context.Context, testID, userID int64, answers AnswerSelections) (AttemptResult, error) {
	if err := answers.Validate(); err != nil {
		return AttemptResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tests[testID]
	if !ok {
		return AttemptResult{}, fmt.Errorf("test %d: %w", testID, ErrNotFound)
	}

	// validate everything first so a rejected submission leaves no trace
	byID := make(map[int64]QuestionView, len(t.view.Questions))
	for _, q := range t.view.Questions {
		byID[q.QuestionID] = q
	}
	for _, qid := range answers.QuestionIDs() {
		q, ok := byID[qid]
		if !ok {
			return AttemptResult{}, fmt.Errorf("question %d in test %d: %w", qid, testID, ErrNotFound)
		}
		owned := grading.NewOptionSet()
		for _, o := range q.Options {
			owned.Add(o.OptionID)
		}
		for id := range answers.Selected(qid) {
			if !owned.Has(id) {
				return AttemptResult{}, &ValidationError{Field: "answers",
					Msg: fmt.Sprintf("option %d does not belong to question %d", id, qid)}
			}
		}
	}

	a := &memAttempt{
		id:        m.nextID(),
		testID:    testID,
		userID:    userID,
		createdAt: m.now().UTC().Truncate(time.Second),
		selected:  map[int64]grading.OptionSet{},
	}
	scores := make([]float64, 0, len(answers))
	for _, qid := range answers.QuestionIDs() {
		q := byID[qid]
		selected := answers.Selected(qid)
		correct := grading.NewOptionSet()
		for _, o := range q.Options {
			if t.correct[o.OptionID] {
				correct.Add(o.OptionID)
			}
		}
		a.selected[qid] = selected
		scores = append(scores, grading.Score(q.McqType, selected, correct))
	}
	a.score = grading.Aggregate(scores)
	m.attempts[a.id] = a
	return AttemptResult{AttemptID: a.id, Score: a.score}, nil
}

func (m *memoryStore) GetAttempt(_ context.Context, attemptID int64) (AttemptDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return AttemptDetail{}, fmt.Errorf("attempt %d: %w", attemptID, ErrNotFound)
	}
	t, ok := m.tests[a.testID]
	if !ok || len(t.view.Questions) == 0 {
		return AttemptDetail{}, fmt.Errorf("attempt %d has no questions: %w", attemptID, ErrNotFound)
	}
	d := AttemptDetail{
		AttemptID: a.id,
		TestID:    t.view.ID,
		Title:     t.view.Title,
		UserID:    a.userID,
		Score:     a.score,
		CreatedAt: a.createdAt,
	}
	for _, q := range t.view.Questions {
		r := QuestionReview{QuestionID: q.QuestionID, Text: q.Text, Type: q.McqType, Explanation: q.Explanation}
		sel := a.selected[q.QuestionID]
		for _, o := range q.Options {
			r.Options = append(r.Options, OptionReview{
				ID:         o.OptionID,
				Text:       o.Text,
				IsCorrect:  t.correct[o.OptionID],
				IsSelected: sel.Has(o.OptionID),
			})
		}
		r.Score = r.score()
		d.Questions = append(d.Questions, r)
	}
	return d, nil
}

func (m *memoryStore) ListAttempts(_ context.Context, testID, userID int64) ([]AttemptSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []AttemptSummary{}
	for _, a := range m.attempts {
		if a.testID == testID && a.userID == userID {
			out = append(out, AttemptSummary{ID: a.id, CreatedAt: a.createdAt, Score: a.score})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *memoryStore) GetTestMeta(_ context.Context, testID int64) (TestMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tests[testID]
	if !ok {
		return TestMeta{}, fmt.Errorf("test %d: %w", testID, ErrNotFound)
	}
	return TestMeta{ID: t.view.ID, Title: t.view.Title, QuestionCount: len(t.view.Questions)}, nil
}
