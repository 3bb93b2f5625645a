package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	authmw "github.com/snapquiz/snapquiz-backend/internal/auth/middleware"
	"github.com/snapquiz/snapquiz-backend/internal/quiz"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type createAttemptReq struct {
	TestID  int64              `json:"testId" validate:"required,gt=0"`
	Answers map[string][]int64 `json:"answers" validate:"required"`
}

// POST /api/attempts
func CreateAttemptHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := authmw.UserIDFromContext(r.Context())
		if !ok {
			writeFail(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		var req createAttemptReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || validate.Struct(req) != nil {
			writeFail(w, http.StatusBadRequest, "invalid input")
			return
		}
		answers, err := quiz.ParseAnswers(req.Answers)
		if err != nil {
			writeStoreError(w, r, "parse answers", err)
			return
		}
		res, err := store.CreateAttempt(r.Context(), req.TestID, uid, answers)
		if err != nil {
			writeStoreError(w, r, "create attempt", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"attemptId": res.AttemptID,
			"score":     res.Score,
		})
	}
}

// GET /api/attempts/{attemptID}; another user's attempt reads as missing.
func GetAttemptHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := authmw.UserIDFromContext(r.Context())
		if !ok {
			writeFail(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		id, ok := pathID(r, "attemptID")
		if !ok {
			writeFail(w, http.StatusBadRequest, "invalid attempt id")
			return
		}
		d, err := store.GetAttempt(r.Context(), id)
		if err != nil {
			writeStoreError(w, r, "get attempt", err)
			return
		}
		if d.UserID != uid {
			writeFail(w, http.StatusNotFound, "not found")
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

type attemptRow struct {
	ID        string    `json:"id"`
	Date      time.Time `json:"date"`
	Score     float64   `json:"score"`
	Completed bool      `json:"completed"`
}

// GET /api/attempts/all-test-attempts/{testID}
func ListTestAttemptsHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := authmw.UserIDFromContext(r.Context())
		if !ok {
			writeFail(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		testID, ok := pathID(r, "testID")
		if !ok {
			writeFail(w, http.StatusBadRequest, "invalid test id")
			return
		}
		meta, err := store.GetTestMeta(r.Context(), testID)
		if err != nil {
			writeStoreError(w, r, "get test meta", err)
			return
		}
		list, err := store.ListAttempts(r.Context(), testID, uid)
		if err != nil {
			writeStoreError(w, r, "list attempts", err)
			return
		}
		rows := make([]attemptRow, 0, len(list))
		for _, a := range list {
			rows = append(rows, attemptRow{
				ID:        strconv.FormatInt(a.ID, 10),
				Date:      a.CreatedAt,
				Score:     a.Score,
				Completed: true,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"test":     meta,
			"attempts": rows,
		})
	}
}
