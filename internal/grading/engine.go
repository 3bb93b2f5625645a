package grading

import (
	"fmt"
	"math"
	"sort"
)

// McqType is the stored question type.
type McqType string

const (
	Single   McqType = "single"
	Multiple McqType = "multiple"
)

func (t McqType) Valid() bool { return t == Single || t == Multiple }

// OptionSet is a set of option ids. Building it from a slice drops
// duplicates, so repeated ids never count twice.
type OptionSet map[int64]struct{}

func NewOptionSet(ids ...int64) OptionSet {
	s := make(OptionSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s OptionSet) Add(id int64) { s[id] = struct{}{} }

func (s OptionSet) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

func (s OptionSet) Len() int { return len(s) }

// Sorted returns the ids in ascending order.
func (s OptionSet) Sorted() []int64 {
	out := make([]int64, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strategy scores a single question. The result is always in [0,1].
type Strategy interface {
	Score(selected, correct OptionSet) float64
}

// Grader routes by question type to the correct Strategy.
type Grader interface {
	Grade(t McqType, selected, correct OptionSet) (float64, error)
}

type defaultGrader struct {
	strategies map[McqType]Strategy
}

func (g *defaultGrader) Grade(t McqType, selected, correct OptionSet) (float64, error) {
	s, ok := g.strategies[t]
	if !ok {
		return 0, fmt.Errorf("grading: unknown question type %q", t)
	}
	return s.Score(selected, correct), nil
}

// NewDefaultGrader installs the single and multiple strategies.
func NewDefaultGrader() Grader {
	return &defaultGrader{
		strategies: map[McqType]Strategy{
			Single:   singleStrategy{},
			Multiple: multipleStrategy{},
		},
	}
}

var std = NewDefaultGrader()

// Score is the scoring rule shared by the attempt writer and the attempt
// reader. Unknown types score 0.
func Score(t McqType, selected, correct OptionSet) float64 {
	v, err := std.Grade(t, selected, correct)
	if err != nil {
		return 0
	}
	return v
}

// Aggregate turns per-question scores into a percentage rounded to two
// decimals. Questions with no selections must still be passed in as 0.
func Aggregate(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	total := 0.0
	for _, s := range scores {
		total += s
	}
	return Round2(total / float64(len(scores)) * 100)
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// --- Strategies ---

// singleStrategy gives credit only for exactly one selection that is correct.
// Picking two options never scores, even when one of them is right.
type singleStrategy struct{}

func (singleStrategy) Score(selected, correct OptionSet) float64 {
	if selected.Len() != 1 {
		return 0
	}
	for id := range selected {
		if correct.Has(id) {
			return 1
		}
	}
	return 0
}

// multipleStrategy: hit/|correct| - miss/|selected|, floored at 0.
// Both denominators are guarded to 1 when empty.
type multipleStrategy struct{}

func (multipleStrategy) Score(selected, correct OptionSet) float64 {
	hit, miss := 0, 0
	for id := range selected {
		if correct.Has(id) {
			hit++
		} else {
			miss++
		}
	}
	nSelected := max(selected.Len(), 1)
	nCorrect := max(correct.Len(), 1)
	v := float64(hit)/float64(nCorrect) - float64(miss)/float64(nSelected)
	return math.Max(v, 0)
}
