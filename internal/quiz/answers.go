package quiz

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/snapquiz/snapquiz-backend/internal/grading"
)

// AnswerSelections maps a question id to the option ids picked for it. An
// empty list is a question that was seen but left unanswered; it still
// counts toward the aggregate.
type AnswerSelections map[int64][]int64

// ParseAnswers converts the wire form, a JSON object keyed by stringified
// question ids, into typed selections.
func ParseAnswers(raw map[string][]int64) (AnswerSelections, error) {
	out := make(AnswerSelections, len(raw))
	for k, ids := range raw {
		qid, err := strconv.ParseInt(strings.TrimSpace(k), 10, 64)
		if err != nil || qid <= 0 {
			return nil, &ValidationError{Field: "answers", Msg: fmt.Sprintf("question id %q is not a positive integer", k)}
		}
		// "7" and "07" name the same question
		out[qid] = append(out[qid], ids...)
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

func (a AnswerSelections) Validate() error {
	for qid, ids := range a {
		if qid <= 0 {
			return &ValidationError{Field: "answers", Msg: fmt.Sprintf("question id %d is not positive", qid)}
		}
		for _, id := range ids {
			if id <= 0 {
				return &ValidationError{Field: "answers", Msg: fmt.Sprintf("option id %d for question %d is not positive", id, qid)}
			}
		}
	}
	return nil
}

// QuestionIDs returns the answered-for questions in ascending order.
func (a AnswerSelections) QuestionIDs() []int64 {
	out := make([]int64, 0, len(a))
	for qid := range a {
		out = append(out, qid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Selected returns the deduplicated selection for qid.
func (a AnswerSelections) Selected(qid int64) grading.OptionSet {
	return grading.NewOptionSet(a[qid]...)
}
