package auth

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	authmw "github.com/snapquiz/snapquiz-backend/internal/auth/middleware"
)

const sessionMaxAge = 30 * 24 * time.Hour

// CookieOptions control the session cookie written on login.
type CookieOptions struct {
	Domain string
	Secure bool
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func RegisterHandler(users *UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in NewUser
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "bad request")
			return
		}
		if err := validate.Struct(in); err != nil {
			writeError(w, http.StatusBadRequest, "all fields are required")
			return
		}
		u, err := users.CreateUser(r.Context(), in)
		switch {
		case errors.Is(err, ErrPasswordTooLong):
			writeError(w, http.StatusBadRequest, err.Error())
			return
		case errors.Is(err, ErrUserExists):
			writeError(w, http.StatusConflict, err.Error())
			return
		case err != nil:
			log.Printf("register %q: %v", in.Username, err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusCreated, u)
	}
}

func LoginHandler(a *authmw.AuthService, users *UserStore, opts CookieOptions) http.HandlerFunc {
	type req struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var in req
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil || validate.Struct(in) != nil {
			writeError(w, http.StatusBadRequest, "username and password required")
			return
		}
		u, err := users.Authenticate(r.Context(), in.Username, in.Password)
		if errors.Is(err, ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		if err != nil {
			log.Printf("login %q: %v", in.Username, err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		tok, err := a.IssueJWT(u.ID, u.Username)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "issue token")
			return
		}
		http.SetCookie(w, sessionCookie(tok, opts, sessionMaxAge))
		writeJSON(w, http.StatusOK, map[string]string{"message": "Logged in", "token": tok})
	}
}

func LogoutHandler(opts CookieOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, sessionCookie("", opts, -1))
		writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
	}
}

// GetUserHandler serves GET /users/{userID}; callers may only read themselves.
func GetUserHandler(users *UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := authmw.UserIDFromContext(r.Context())
		id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
		if !ok || err != nil || id != caller {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		u, err := users.FindByID(r.Context(), id)
		if errors.Is(err, ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		if err != nil {
			log.Printf("get user %d: %v", id, err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

func sessionCookie(value string, opts CookieOptions, maxAge time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     authmw.CookieName,
		Value:    value,
		Path:     "/",
		Domain:   opts.Domain,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if opts.Secure {
		c.SameSite = http.SameSiteNoneMode
	}
	if maxAge < 0 {
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
	} else {
		c.MaxAge = int(maxAge.Seconds())
		c.Expires = time.Now().Add(maxAge)
	}
	return c
}
