package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/snapquiz/snapquiz-backend/internal/db"
	"github.com/snapquiz/snapquiz-backend/internal/quiz"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeFail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "message": msg})
}

// writeStoreError maps the quiz error taxonomy onto a status code. Server-side
// failures are logged here and nowhere else.
func writeStoreError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var (
		ve *quiz.ValidationError
		pe *quiz.PersistenceError
	)
	switch {
	case errors.As(err, &ve):
		writeFail(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, quiz.ErrNotFound):
		writeFail(w, http.StatusNotFound, "not found")
	case errors.As(err, &pe) && db.IsConstraintViolation(pe):
		writeFail(w, http.StatusBadRequest, "answer does not match the test")
	default:
		log.Printf("%s %s: %s: %v", r.Method, r.URL.Path, op, err)
		writeFail(w, http.StatusInternalServerError, "internal server error")
	}
}

// pathID reads a positive int64 chi URL parameter.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}
