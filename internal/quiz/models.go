package quiz

import (
	"strings"
	"time"

	"github.com/snapquiz/snapquiz-backend/internal/grading"
)

// GeneratedTest is the graph produced by the generation pipeline, before it
// has ids.
type GeneratedTest struct {
	Title     string              `json:"title"`
	Questions []GeneratedQuestion `json:"questions"`
}

type GeneratedQuestion struct {
	QuestionText string            `json:"question_text"`
	Options      []GeneratedOption `json:"options"`
	Explanation  string            `json:"explanation"`
}

type GeneratedOption struct {
	OptionText string `json:"option_text"`
	IsCorrect  bool   `json:"is_correct"`
}

// McqType derives the stored type from how many options are flagged correct.
func (q GeneratedQuestion) McqType() grading.McqType {
	n := 0
	for _, o := range q.Options {
		if o.IsCorrect {
			n++
		}
	}
	if n > 1 {
		return grading.Multiple
	}
	return grading.Single
}

// Validate rejects generator output that could not be scored sensibly.
func (g GeneratedTest) Validate() error {
	if strings.TrimSpace(g.Title) == "" {
		return &ValidationError{Field: "title", Msg: "required"}
	}
	if len(g.Questions) == 0 {
		return &ValidationError{Field: "questions", Msg: "at least one question required"}
	}
	for i, q := range g.Questions {
		field := "questions[" + itoa(i) + "]"
		if strings.TrimSpace(q.QuestionText) == "" {
			return &ValidationError{Field: field, Msg: "question_text required"}
		}
		if len(q.Options) < 2 {
			return &ValidationError{Field: field, Msg: "at least two options required"}
		}
		correct := 0
		for _, o := range q.Options {
			if o.IsCorrect {
				correct++
			}
		}
		if correct == 0 {
			return &ValidationError{Field: field, Msg: "no option flagged correct"}
		}
	}
	return nil
}

// TestView is what a quiz taker sees: no correctness flags.
type TestView struct {
	ID          int64          `json:"id"`
	Title       string         `json:"title"`
	UserID      int64          `json:"user_id"`
	GeneratedAt time.Time      `json:"generated_at"`
	Questions   []QuestionView `json:"questions"`
}

type QuestionView struct {
	QuestionID  int64           `json:"question_id"`
	Text        string          `json:"text"`
	McqType     grading.McqType `json:"mcq_type"`
	Explanation string          `json:"explanation"`
	Options     []OptionView    `json:"options"`
}

type OptionView struct {
	OptionID int64  `json:"option_id"`
	Text     string `json:"text"`
}

type TestSummary struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	NumQuestions int       `json:"num_questions"`
	GeneratedAt  time.Time `json:"generated_at"`
}

type TestMeta struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	QuestionCount int    `json:"questionCount"`
}

// AttemptResult is returned by the attempt writer.
type AttemptResult struct {
	AttemptID int64   `json:"attemptId"`
	Score     float64 `json:"score"`
}

type AttemptSummary struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Score     float64   `json:"score"`
}

// AttemptDetail is the post-submission review of one attempt.
type AttemptDetail struct {
	AttemptID int64            `json:"attemptId"`
	TestID    int64            `json:"id"`
	Title     string           `json:"title"`
	UserID    int64            `json:"-"`
	Score     float64          `json:"score"`
	CreatedAt time.Time        `json:"created_at"`
	Questions []QuestionReview `json:"questions"`
}

type QuestionReview struct {
	QuestionID  int64           `json:"questionId"`
	Text        string          `json:"text"`
	Type        grading.McqType `json:"type"`
	Explanation string          `json:"explanation"`
	Score       float64         `json:"score"`
	Options     []OptionReview  `json:"options"`
}

type OptionReview struct {
	ID         int64  `json:"id"`
	Text       string `json:"text"`
	IsCorrect  bool   `json:"isCorrect"`
	IsSelected bool   `json:"isSelected"`
}

// score recomputes the question's score from its option flags.
func (q QuestionReview) score() float64 {
	selected, correct := grading.NewOptionSet(), grading.NewOptionSet()
	for _, o := range q.Options {
		if o.IsSelected {
			selected.Add(o.ID)
		}
		if o.IsCorrect {
			correct.Add(o.ID)
		}
	}
	return grading.Score(q.Type, selected, correct)
}
