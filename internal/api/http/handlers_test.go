package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	authmw "github.com/snapquiz/snapquiz-backend/internal/auth/middleware"
	"github.com/snapquiz/snapquiz-backend/internal/quiz"
	"github.com/snapquiz/snapquiz-backend/internal/storage"
)

type fakeGenerator struct {
	material string
	count    int
	out      quiz.GeneratedTest
	err      error
}

func (f *fakeGenerator) Generate(_ context.Context, material string, n int) (quiz.GeneratedTest, error) {
	f.material, f.count = material, n
	return f.out, f.err
}

type fixture struct {
	h       http.Handler
	store   quiz.Store
	gen     *fakeGenerator
	blobDir string
	tokens  map[int64]string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	a := authmw.NewAuthService("test-secret", time.Hour)
	dir := t.TempDir()
	blobs, err := storage.NewFSStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{
		store:   quiz.NewInMemoryStore(),
		gen:     &fakeGenerator{out: sampleTest()},
		blobDir: dir,
		tokens:  map[int64]string{},
	}
	for _, uid := range []int64{1, 2} {
		tok, err := a.IssueJWT(uid, "user"+strconv.FormatInt(uid, 10))
		if err != nil {
			t.Fatal(err)
		}
		f.tokens[uid] = tok
	}
	f.h = NewRouter(Deps{
		Store:          f.store,
		Auth:           a,
		Generator:      f.gen,
		Blobs:          blobs,
		MaxUploadBytes: 1 << 10,
	})
	return f
}

func sampleTest() quiz.GeneratedTest {
	return quiz.GeneratedTest{
		Title: "Cells",
		Questions: []quiz.GeneratedQuestion{
			{QuestionText: "Powerhouse?", Options: []quiz.GeneratedOption{
				{OptionText: "Mitochondria", IsCorrect: true}, {OptionText: "Ribosome"},
			}},
			{QuestionText: "Organelles?", Options: []quiz.GeneratedOption{
				{OptionText: "Nucleus", IsCorrect: true}, {OptionText: "Golgi", IsCorrect: true}, {OptionText: "Sugar"},
			}},
		},
	}
}

func (f *fixture) do(t *testing.T, uid int64, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, path, body)
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	if tok, ok := f.tokens[uid]; ok {
		r.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	f.h.ServeHTTP(w, r)
	return w
}

func (f *fixture) doJSON(t *testing.T, uid int64, method, path, body string) *httptest.ResponseRecorder {
	return f.do(t, uid, method, path, strings.NewReader(body), "application/json")
}

// seed creates the sample test for user 1 and returns its view.
func (f *fixture) seed(t *testing.T) quiz.TestView {
	t.Helper()
	id, err := f.store.CreateTest(context.Background(), 1, "", sampleTest())
	if err != nil {
		t.Fatal(err)
	}
	v, err := f.store.GetTest(context.Background(), id, 1)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func answersJSON(testID int64, answers map[int64][]int64) string {
	raw := map[string][]int64{}
	for q, ids := range answers {
		raw[strconv.FormatInt(q, 10)] = ids
	}
	b, _ := json.Marshal(map[string]any{"testId": testID, "answers": raw})
	return string(b)
}

func TestCreateAttemptHandler(t *testing.T) {
	f := newFixture(t)
	v := f.seed(t)
	q0, q1 := v.Questions[0], v.Questions[1]

	tests := []struct {
		name   string
		uid    int64
		body   string
		status int
		score  float64
	}{
		{
			name: "perfect",
			uid:  1,
			body: answersJSON(v.ID, map[int64][]int64{
				q0.QuestionID: {q0.Options[0].OptionID},
				q1.QuestionID: {q1.Options[0].OptionID, q1.Options[1].OptionID},
			}),
			status: http.StatusOK,
			score:  100,
		},
		{
			name: "partial multiple",
			uid:  2,
			body: answersJSON(v.ID, map[int64][]int64{
				q0.QuestionID: {q0.Options[1].OptionID},
				q1.QuestionID: {q1.Options[0].OptionID, q1.Options[2].OptionID},
			}),
			status: http.StatusOK,
			score:  0,
		},
		{
			name:   "empty answers",
			uid:    1,
			body:   answersJSON(v.ID, nil),
			status: http.StatusOK,
			score:  0,
		},
		{name: "anonymous", uid: 0, body: answersJSON(v.ID, nil), status: http.StatusUnauthorized},
		{name: "missing test id", uid: 1, body: `{"answers":{}}`, status: http.StatusBadRequest},
		{name: "missing answers", uid: 1, body: `{"testId":1}`, status: http.StatusBadRequest},
		{name: "non numeric key", uid: 1, body: `{"testId":1,"answers":{"abc":[1]}}`, status: http.StatusBadRequest},
		{name: "negative option", uid: 1, body: answersJSON(v.ID, map[int64][]int64{q0.QuestionID: {-1}}), status: http.StatusBadRequest},
		{name: "unknown test", uid: 1, body: answersJSON(9999, nil), status: http.StatusNotFound},
		{name: "unknown question", uid: 1, body: answersJSON(v.ID, map[int64][]int64{9999: {}}), status: http.StatusNotFound},
		{
			name:   "option from other question",
			uid:    1,
			body:   answersJSON(v.ID, map[int64][]int64{q0.QuestionID: {q1.Options[0].OptionID}}),
			status: http.StatusBadRequest,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := f.doJSON(t, tc.uid, http.MethodPost, "/api/attempts", tc.body)
			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d body=%s", w.Code, tc.status, w.Body)
			}
			if tc.status != http.StatusOK {
				return
			}
			var out struct {
				Success   bool    `json:"success"`
				AttemptID int64   `json:"attemptId"`
				Score     float64 `json:"score"`
			}
			decode(t, w, &out)
			if !out.Success || out.AttemptID <= 0 || out.Score != tc.score {
				t.Fatalf("got %+v, want score %v", out, tc.score)
			}
		})
	}
}

func TestGetAttemptHandler(t *testing.T) {
	f := newFixture(t)
	v := f.seed(t)
	q0 := v.Questions[0]

	w := f.doJSON(t, 1, http.MethodPost, "/api/attempts",
		answersJSON(v.ID, map[int64][]int64{q0.QuestionID: {q0.Options[0].OptionID}}))
	var created struct {
		AttemptID int64 `json:"attemptId"`
	}
	decode(t, w, &created)
	path := "/api/attempts/" + strconv.FormatInt(created.AttemptID, 10)

	w = f.do(t, 1, http.MethodGet, path, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body)
	}
	var d quiz.AttemptDetail
	decode(t, w, &d)
	if d.AttemptID != created.AttemptID || d.TestID != v.ID || d.Score != 50 || len(d.Questions) != 2 {
		t.Fatalf("detail = %+v", d)
	}
	if d.Questions[0].Score != 1 || !d.Questions[0].Options[0].IsSelected || !d.Questions[0].Options[0].IsCorrect {
		t.Fatalf("first question = %+v", d.Questions[0])
	}

	if w := f.do(t, 2, http.MethodGet, path, nil, ""); w.Code != http.StatusNotFound {
		t.Fatalf("other user status = %d", w.Code)
	}
	if w := f.do(t, 1, http.MethodGet, "/api/attempts/9999", nil, ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing status = %d", w.Code)
	}
	if w := f.do(t, 1, http.MethodGet, "/api/attempts/abc", nil, ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id status = %d", w.Code)
	}
}

func TestListTestAttemptsHandler(t *testing.T) {
	f := newFixture(t)
	v := f.seed(t)
	for i := 0; i < 2; i++ {
		if w := f.doJSON(t, 1, http.MethodPost, "/api/attempts", answersJSON(v.ID, nil)); w.Code != http.StatusOK {
			t.Fatalf("create status = %d", w.Code)
		}
	}
	// another user's attempt is not listed
	f.doJSON(t, 2, http.MethodPost, "/api/attempts", answersJSON(v.ID, nil))

	w := f.do(t, 1, http.MethodGet, "/api/attempts/all-test-attempts/"+strconv.FormatInt(v.ID, 10), nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body)
	}
	var out struct {
		Success  bool          `json:"success"`
		Test     quiz.TestMeta `json:"test"`
		Attempts []struct {
			ID        string `json:"id"`
			Completed bool   `json:"completed"`
		} `json:"attempts"`
	}
	decode(t, w, &out)
	if !out.Success || out.Test.Title != "Cells" || out.Test.QuestionCount != 2 || len(out.Attempts) != 2 {
		t.Fatalf("got %+v", out)
	}
	first, _ := strconv.ParseInt(out.Attempts[0].ID, 10, 64)
	second, _ := strconv.ParseInt(out.Attempts[1].ID, 10, 64)
	if first <= second || !out.Attempts[0].Completed {
		t.Fatalf("attempts not newest first: %+v", out.Attempts)
	}

	if w := f.do(t, 1, http.MethodGet, "/api/attempts/all-test-attempts/9999", nil, ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing test status = %d", w.Code)
	}
}

func TestTestHandlers(t *testing.T) {
	f := newFixture(t)
	v := f.seed(t)
	path := "/api/tests/" + strconv.FormatInt(v.ID, 10)

	w := f.do(t, 1, http.MethodGet, "/api/tests", nil, "")
	var list []quiz.TestSummary
	decode(t, w, &list)
	if len(list) != 1 || list[0].NumQuestions != 2 {
		t.Fatalf("list = %+v", list)
	}

	w = f.do(t, 1, http.MethodGet, path, nil, "")
	if w.Code != http.StatusOK || strings.Contains(w.Body.String(), "is_correct") || strings.Contains(w.Body.String(), "isCorrect") {
		t.Fatalf("get status = %d body=%s", w.Code, w.Body)
	}
	if w := f.do(t, 2, http.MethodGet, path, nil, ""); w.Code != http.StatusNotFound {
		t.Fatalf("foreign get status = %d", w.Code)
	}
	if w := f.do(t, 2, http.MethodDelete, path, nil, ""); w.Code != http.StatusNotFound {
		t.Fatalf("foreign delete status = %d", w.Code)
	}
	if w := f.do(t, 1, http.MethodDelete, path, nil, ""); w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	if w := f.do(t, 1, http.MethodGet, path, nil, ""); w.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", w.Code)
	}
}

func multipartBody(t *testing.T, filename, content, count string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write([]byte(content))
	}
	if count != "" {
		_ = mw.WriteField("questionCount", count)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	n := 0
	_ = filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			n++
		}
		return nil
	})
	return n
}

func TestGenerateTestHandler(t *testing.T) {
	f := newFixture(t)

	body, ct := multipartBody(t, "notes.txt", "cells \"make\" energy\n", "7")
	w := f.do(t, 1, http.MethodPost, "/api/tests/generate", body, ct)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", w.Code, w.Body)
	}
	var out struct {
		Success bool  `json:"success"`
		TestID  int64 `json:"testId"`
	}
	decode(t, w, &out)
	if !out.Success || out.TestID <= 0 {
		t.Fatalf("got %+v", out)
	}
	if f.gen.count != 7 || f.gen.material != `cells \"make\" energy\n` {
		t.Fatalf("generator got %d %q", f.gen.count, f.gen.material)
	}
	if _, err := f.store.GetTest(context.Background(), out.TestID, 1); err != nil {
		t.Fatal(err)
	}
	if n := countFiles(t, f.blobDir); n != 1 {
		t.Fatalf("stored files = %d", n)
	}

	body, ct = multipartBody(t, "notes.txt", "x", "")
	f.do(t, 1, http.MethodPost, "/api/tests/generate", body, ct)
	if f.gen.count != 5 {
		t.Fatalf("default count = %d", f.gen.count)
	}
}

func TestGenerateTestHandler_Errors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
		gen      fakeGenerator
		status   int
	}{
		{name: "no file", status: http.StatusBadRequest},
		{name: "pdf", filename: "a.pdf", content: "%PDF", gen: fakeGenerator{out: sampleTest()}, status: http.StatusBadRequest},
		{name: "too large", filename: "a.txt", content: strings.Repeat("a", 2<<10), gen: fakeGenerator{out: sampleTest()}, status: http.StatusRequestEntityTooLarge},
		{name: "bad count", filename: "a.txt", content: "x", gen: fakeGenerator{err: &quiz.ValidationError{Field: "questionCount", Msg: "out of range"}}, status: http.StatusBadRequest},
		{name: "upstream", filename: "a.txt", content: "x", gen: fakeGenerator{err: errors.New("boom")}, status: http.StatusBadGateway},
		{name: "invalid output", filename: "a.txt", content: "x", gen: fakeGenerator{out: quiz.GeneratedTest{Title: "t"}}, status: http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			*f.gen = tc.gen
			body, ct := multipartBody(t, tc.filename, tc.content, "")
			w := f.do(t, 1, http.MethodPost, "/api/tests/generate", body, ct)
			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d body=%s", w.Code, tc.status, w.Body)
			}
			if n := countFiles(t, f.blobDir); n != 0 {
				t.Fatalf("stored files after failure = %d", n)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	for _, p := range []string{"/healthz", "/readyz"} {
		if w := f.do(t, 0, http.MethodGet, p, nil, ""); w.Code != http.StatusOK {
			t.Errorf("%s status = %d", p, w.Code)
		}
	}
	h := ReadyzHandler(failingPinger{})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", w.Code)
	}
}

type failingPinger struct{}

func (failingPinger) PingContext(context.Context) error { return errors.New("down") }
