package quiz

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseAnswers(t *testing.T) {
	tests := []struct {
		name    string
		raw     map[string][]int64
		want    AnswerSelections
		wantErr bool
	}{
		{name: "numeric keys", raw: map[string][]int64{"3": {7, 8}, "1": {}}, want: AnswerSelections{3: {7, 8}, 1: {}}},
		{name: "padded keys merge", raw: map[string][]int64{"5": {1}, "05": {2}}, want: AnswerSelections{5: {1, 2}}},
		{name: "empty map", raw: map[string][]int64{}, want: AnswerSelections{}},
		{name: "non numeric key", raw: map[string][]int64{"abc": {1}}, wantErr: true},
		{name: "zero key", raw: map[string][]int64{"0": {1}}, wantErr: true},
		{name: "negative option", raw: map[string][]int64{"2": {-1}}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseAnswers(tc.raw)
			if tc.wantErr {
				var ve *ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("got %v, want ValidationError", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for qid, ids := range tc.want {
				g := got[qid]
				if len(g) == 0 && len(ids) == 0 {
					continue
				}
				// merge order of padded keys follows map iteration
				if !reflect.DeepEqual(got.Selected(qid), tc.want.Selected(qid)) {
					t.Fatalf("q%d: got %v, want %v", qid, g, ids)
				}
			}
		})
	}
}

func TestAnswerSelections_QuestionIDsSorted(t *testing.T) {
	a := AnswerSelections{9: nil, 2: nil, 5: nil}
	if got := a.QuestionIDs(); !reflect.DeepEqual(got, []int64{2, 5, 9}) {
		t.Fatalf("got %v", got)
	}
}
