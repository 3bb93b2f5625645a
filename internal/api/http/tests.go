package http

import (
	"bytes"
	"errors"
	"io"
	"log"
	"net/http"

	authmw "github.com/snapquiz/snapquiz-backend/internal/auth/middleware"
	"github.com/snapquiz/snapquiz-backend/internal/extract"
	"github.com/snapquiz/snapquiz-backend/internal/generate"
	"github.com/snapquiz/snapquiz-backend/internal/quiz"
	"github.com/snapquiz/snapquiz-backend/internal/storage"
)

// GET /api/tests
func ListTestsHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := authmw.UserIDFromContext(r.Context())
		if !ok {
			writeFail(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		list, err := store.ListTests(r.Context(), uid)
		if err != nil {
			writeStoreError(w, r, "list tests", err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// GET /api/tests/{testID}
func GetTestHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := authmw.UserIDFromContext(r.Context())
		if !ok {
			writeFail(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		id, ok := pathID(r, "testID")
		if !ok {
			writeFail(w, http.StatusBadRequest, "invalid test id")
			return
		}
		t, err := store.GetTest(r.Context(), id, uid)
		if err != nil {
			writeStoreError(w, r, "get test", err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

// DELETE /api/tests/{testID}
func DeleteTestHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := authmw.UserIDFromContext(r.Context())
		if !ok {
			writeFail(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		id, ok := pathID(r, "testID")
		if !ok {
			writeFail(w, http.StatusBadRequest, "invalid test id")
			return
		}
		if err := store.DeleteTest(r.Context(), id, uid); err != nil {
			writeStoreError(w, r, "delete test", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "testId": id})
	}
}

// POST /api/tests/generate (multipart: file, questionCount)
func GenerateTestHandler(store quiz.Store, gen generate.Client, blobs storage.BlobStore, maxBytes int64) http.HandlerFunc {
	if maxBytes <= 0 {
		maxBytes = extract.DefaultMaxBytes
	}
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := authmw.UserIDFromContext(r.Context())
		if !ok {
			writeFail(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if gen == nil {
			writeFail(w, http.StatusServiceUnavailable, "test generation is not configured")
			return
		}
		// room for the multipart envelope on top of the file itself
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				writeFail(w, http.StatusRequestEntityTooLarge, "file too large")
				return
			}
			writeFail(w, http.StatusBadRequest, "multipart form required")
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			writeFail(w, http.StatusBadRequest, "no file uploaded")
			return
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			writeFail(w, http.StatusBadRequest, "read upload")
			return
		}

		text, err := extract.Text(hdr.Filename, data, maxBytes)
		switch {
		case errors.Is(err, extract.ErrTooLarge):
			writeFail(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		case err != nil:
			writeFail(w, http.StatusBadRequest, err.Error())
			return
		}

		count := parseIntDefault(r.FormValue("questionCount"), generate.DefaultQuestions)
		g, err := gen.Generate(r.Context(), extract.Escape(text), count)
		if err != nil {
			var ve *quiz.ValidationError
			if errors.As(err, &ve) {
				writeFail(w, http.StatusBadRequest, ve.Error())
				return
			}
			log.Printf("generate test for user %d: %v", uid, err)
			writeFail(w, http.StatusBadGateway, "failed to generate test")
			return
		}

		key := ""
		if blobs != nil {
			key, err = blobs.Put(storage.MaterialKey(hdr.Filename), bytes.NewReader(data))
			if err != nil {
				log.Printf("store material %q: %v", hdr.Filename, err)
				writeFail(w, http.StatusInternalServerError, "failed to store file")
				return
			}
		}
		testID, err := store.CreateTest(r.Context(), uid, key, g)
		if err != nil {
			if key != "" {
				if derr := blobs.Delete(key); derr != nil {
					log.Printf("remove orphaned material %q: %v", key, derr)
				}
			}
			writeStoreError(w, r, "create test", err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"success": true, "testId": testID})
	}
}
