package quiz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/snapquiz/snapquiz-backend/internal/grading"
	syncx "github.com/snapquiz/snapquiz-backend/internal/sync"
)

type SQLStore struct {
	db     *sql.DB
	events *syncx.EventRepo
	now    func() time.Time
}

func NewSQLStore(db *sql.DB, events *syncx.EventRepo) *SQLStore {
	if events == nil {
		events = syncx.NewEventRepo(db, "")
	}
	return &SQLStore{db: db, events: events, now: time.Now}
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ---- tests ----

func (s *SQLStore) CreateTest(ctx context.Context, userID int64, sourceKey string, g GeneratedTest) (int64, error) {
	if err := g.Validate(); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, persistErr("begin", err)
	}
	defer tx.Rollback()

	var testID int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO tests (title, user_id, source_key, generated_at) VALUES ($1,$2,$3,$4) RETURNING id`,
		g.Title, userID, sql.NullString{String: sourceKey, Valid: sourceKey != ""}, s.now().Unix()).
		Scan(&testID)
	if err != nil {
		return 0, persistErr("insert test", err)
	}

	for _, q := range g.Questions {
		var questionID int64
		err = tx.QueryRowContext(ctx,
			`INSERT INTO questions (test_id, question_text, mcq_type, explanation_text)
			 VALUES ($1,$2,$3,$4) RETURNING id`,
			testID, q.QuestionText, string(q.McqType()), q.Explanation).
			Scan(&questionID)
		if err != nil {
			return 0, persistErr("insert question", err)
		}
		for _, o := range q.Options {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO options (question_id, option_text, is_correct) VALUES ($1,$2,$3)`,
				questionID, o.OptionText, o.IsCorrect); err != nil {
				return 0, persistErr("insert option", err)
			}
		}
	}

	ev, err := syncx.NewEvent(syncx.TypeTestGenerated, strconv.FormatInt(testID, 10), userID,
		map[string]any{"testId": testID, "userId": userID, "questions": len(g.Questions)})
	if err != nil {
		return 0, persistErr("encode event", err)
	}
	if err := s.events.Append(ctx, tx, ev); err != nil {
		return 0, persistErr("append event", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, persistErr("commit", err)
	}
	return testID, nil
}

func (s *SQLStore) GetTest(ctx context.Context, testID, userID int64) (TestView, error) {
	var t TestView
	var generated int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, user_id, generated_at FROM tests WHERE id=$1 AND user_id=$2`, testID, userID).
		Scan(&t.ID, &t.Title, &t.UserID, &generated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TestView{}, fmt.Errorf("test %d: %w", testID, ErrNotFound)
		}
		return TestView{}, err
	}
	t.GeneratedAt = time.Unix(generated, 0).UTC()

	rows, err := s.db.QueryContext(ctx, `
		SELECT q.id, q.question_text, q.mcq_type, COALESCE(q.explanation_text, ''), o.id, o.option_text
		  FROM questions q
		  JOIN options o ON o.question_id = q.id
		 WHERE q.test_id = $1
		 ORDER BY q.id, o.id`, testID)
	if err != nil {
		return TestView{}, err
	}
	defer rows.Close()

	t.Questions = []QuestionView{}
	for rows.Next() {
		var q QuestionView
		var mcq string
		var o OptionView
		if err := rows.Scan(&q.QuestionID, &q.Text, &mcq, &q.Explanation, &o.OptionID, &o.Text); err != nil {
			return TestView{}, err
		}
		n := len(t.Questions)
		if n == 0 || t.Questions[n-1].QuestionID != q.QuestionID {
			q.McqType = grading.McqType(mcq)
			t.Questions = append(t.Questions, q)
			n++
		}
		t.Questions[n-1].Options = append(t.Questions[n-1].Options, o)
	}
	return t, rows.Err()
}

func (s *SQLStore) ListTests(ctx context.Context, userID int64) ([]TestSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.title, COUNT(q.id), t.generated_at
		  FROM tests t
		  LEFT JOIN questions q ON q.test_id = t.id
		 WHERE t.user_id = $1
		 GROUP BY t.id, t.title, t.generated_at
		 ORDER BY t.generated_at DESC, t.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []TestSummary{}
	for rows.Next() {
		var ts TestSummary
		var generated int64
		if err := rows.Scan(&ts.ID, &ts.Title, &ts.NumQuestions, &generated); err != nil {
			return nil, err
		}
		ts.GeneratedAt = time.Unix(generated, 0).UTC()
		out = append(out, ts)
	}
	return out, rows.Err()
}

// DeleteTest removes the test and, by cascade, its questions, options,
// attempts and answers. Only the owner can delete.
func (s *SQLStore) DeleteTest(ctx context.Context, testID, userID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistErr("begin", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM tests WHERE id=$1 AND user_id=$2`, testID, userID)
	if err != nil {
		return persistErr("delete test", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return persistErr("delete test", err)
	}
	if n == 0 {
		return fmt.Errorf("test %d: %w", testID, ErrNotFound)
	}

	ev, err := syncx.NewEvent(syncx.TypeTestDeleted, strconv.FormatInt(testID, 10), userID,
		map[string]any{"testId": testID, "userId": userID})
	if err != nil {
		return persistErr("encode event", err)
	}
	if err := s.events.Append(ctx, tx, ev); err != nil {
		return persistErr("append event", err)
	}
	if err := tx.Commit(); err != nil {
		return persistErr("commit", err)
	}
	return nil
}

// ---- attempts ----

// CreateAttempt records a submission and its score in one transaction.
// Either the attempt, every answer row and the final score are committed
// together, or nothing is.
func (s *SQLStore) CreateAttempt(ctx context.Context, testID, userID int64, answers AnswerSelections) (AttemptResult, error) {
	if err := answers.Validate(); err != nil {
		return AttemptResult{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return AttemptResult{}, persistErr("begin", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM tests WHERE id=$1`, testID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AttemptResult{}, fmt.Errorf("test %d: %w", testID, ErrNotFound)
		}
		return AttemptResult{}, persistErr("load test", err)
	}

	var attemptID int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO test_attempts (test_id, user_id, score, created_at) VALUES ($1,$2,0,$3) RETURNING id`,
		testID, userID, s.now().Unix()).Scan(&attemptID)
	if err != nil {
		return AttemptResult{}, persistErr("insert attempt", err)
	}

	scores := make([]float64, 0, len(answers))
	for _, qid := range answers.QuestionIDs() {
		var mcq string
		err := tx.QueryRowContext(ctx,
			`SELECT mcq_type FROM questions WHERE id=$1 AND test_id=$2`, qid, testID).Scan(&mcq)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return AttemptResult{}, fmt.Errorf("question %d in test %d: %w", qid, testID, ErrNotFound)
			}
			return AttemptResult{}, persistErr("load question", err)
		}

		selected := answers.Selected(qid)
		for _, optionID := range selected.Sorted() {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO test_answers (attempt_id, question_id, selected_option_id) VALUES ($1,$2,$3)`,
				attemptID, qid, optionID); err != nil {
				return AttemptResult{}, persistErr("insert answer", err)
			}
		}

		correct, err := correctOptions(ctx, tx, qid)
		if err != nil {
			return AttemptResult{}, persistErr("load correct options", err)
		}
		scores = append(scores, grading.Score(grading.McqType(mcq), selected, correct))
	}

	score := grading.Aggregate(scores)
	if _, err := tx.ExecContext(ctx,
		`UPDATE test_attempts SET score=$1 WHERE id=$2`, score, attemptID); err != nil {
		return AttemptResult{}, persistErr("update score", err)
	}

	ev, err := syncx.NewEvent(syncx.TypeAttemptScored, strconv.FormatInt(attemptID, 10), userID,
		map[string]any{"testId": testID, "userId": userID, "score": score})
	if err != nil {
		return AttemptResult{}, persistErr("encode event", err)
	}
	if err := s.events.Append(ctx, tx, ev); err != nil {
		return AttemptResult{}, persistErr("append event", err)
	}

	if err := tx.Commit(); err != nil {
		return AttemptResult{}, persistErr("commit", err)
	}
	return AttemptResult{AttemptID: attemptID, Score: score}, nil
}

func correctOptions(ctx context.Context, q queryer, questionID int64) (grading.OptionSet, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id FROM options WHERE question_id=$1 AND is_correct`, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	set := grading.NewOptionSet()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		set.Add(id)
	}
	return set, rows.Err()
}

// GetAttempt rebuilds the review of an attempt. Per-question scores are
// not stored; they are recomputed here with the same rule the writer used.
func (s *SQLStore) GetAttempt(ctx context.Context, attemptID int64) (AttemptDetail, error) {
	var d AttemptDetail
	var created int64
	err := s.db.QueryRowContext(ctx, `
		SELECT a.id, a.test_id, t.title, a.user_id, a.score, a.created_at
		  FROM test_attempts a
		  JOIN tests t ON t.id = a.test_id
		 WHERE a.id = $1`, attemptID).
		Scan(&d.AttemptID, &d.TestID, &d.Title, &d.UserID, &d.Score, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AttemptDetail{}, fmt.Errorf("attempt %d: %w", attemptID, ErrNotFound)
		}
		return AttemptDetail{}, err
	}
	d.CreatedAt = time.Unix(created, 0).UTC()

	rows, err := s.db.QueryContext(ctx, `
		SELECT q.id, q.question_text, q.mcq_type, COALESCE(q.explanation_text, ''),
		       o.id, o.option_text, o.is_correct,
		       EXISTS (
		         SELECT 1 FROM test_answers ta
		          WHERE ta.attempt_id = $1
		            AND ta.question_id = q.id
		            AND ta.selected_option_id = o.id
		       ) AS is_selected
		  FROM questions q
		  JOIN options o ON o.question_id = q.id
		 WHERE q.test_id = $2
		 ORDER BY q.id, o.id`, attemptID, d.TestID)
	if err != nil {
		return AttemptDetail{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var q QuestionReview
		var mcq string
		var o OptionReview
		if err := rows.Scan(&q.QuestionID, &q.Text, &mcq, &q.Explanation,
			&o.ID, &o.Text, &o.IsCorrect, &o.IsSelected); err != nil {
			return AttemptDetail{}, err
		}
		n := len(d.Questions)
		if n == 0 || d.Questions[n-1].QuestionID != q.QuestionID {
			q.Type = grading.McqType(mcq)
			d.Questions = append(d.Questions, q)
			n++
		}
		d.Questions[n-1].Options = append(d.Questions[n-1].Options, o)
	}
	if err := rows.Err(); err != nil {
		return AttemptDetail{}, err
	}
	if len(d.Questions) == 0 {
		return AttemptDetail{}, fmt.Errorf("attempt %d has no questions: %w", attemptID, ErrNotFound)
	}
	for i := range d.Questions {
		d.Questions[i].Score = d.Questions[i].score()
	}
	return d, nil
}

func (s *SQLStore) ListAttempts(ctx context.Context, testID, userID int64) ([]AttemptSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, score
		  FROM test_attempts
		 WHERE test_id = $1 AND user_id = $2
		 ORDER BY created_at DESC, id DESC`, testID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []AttemptSummary{}
	for rows.Next() {
		var a AttemptSummary
		var created int64
		if err := rows.Scan(&a.ID, &created, &a.Score); err != nil {
			return nil, err
		}
		a.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetTestMeta(ctx context.Context, testID int64) (TestMeta, error) {
	var m TestMeta
	err := s.db.QueryRowContext(ctx, `
		SELECT t.id, t.title, COUNT(q.id)
		  FROM tests t
		  LEFT JOIN questions q ON q.test_id = t.id
		 WHERE t.id = $1
		 GROUP BY t.id, t.title`, testID).
		Scan(&m.ID, &m.Title, &m.QuestionCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TestMeta{}, fmt.Errorf("test %d: %w", testID, ErrNotFound)
		}
		return TestMeta{}, err
	}
	return m, nil
}
