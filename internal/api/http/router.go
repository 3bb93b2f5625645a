package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/snapquiz/snapquiz-backend/internal/auth"
	authmw "github.com/snapquiz/snapquiz-backend/internal/auth/middleware"
	"github.com/snapquiz/snapquiz-backend/internal/generate"
	"github.com/snapquiz/snapquiz-backend/internal/quiz"
	"github.com/snapquiz/snapquiz-backend/internal/storage"
)

// Deps is everything the router mounts. Users may be nil to leave the
// /api/auth and /api/users routes out, and Events nil to leave /api/events
// out. Generator may be nil when no API key is configured.
type Deps struct {
	Store          quiz.Store
	Users          *auth.UserStore
	Auth           *authmw.AuthService
	Generator      generate.Client
	Blobs          storage.BlobStore
	Events         EventLister
	DB             Pinger
	Cookie         auth.CookieOptions
	CORSOrigins    []string
	MaxUploadBytes int64
	RequestTimeout time.Duration
}

func NewRouter(d Deps) http.Handler {
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 2 * time.Minute
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(d.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", HealthzHandler())
	r.Get("/readyz", ReadyzHandler(d.DB))

	r.Route("/api", func(ar chi.Router) {
		if d.Users != nil {
			ar.Post("/auth/register", auth.RegisterHandler(d.Users))
			ar.Post("/auth/login", auth.LoginHandler(d.Auth, d.Users, d.Cookie))
			ar.Post("/auth/logout", auth.LogoutHandler(d.Cookie))
		}

		ar.Group(func(pr chi.Router) {
			pr.Use(authmw.JWTMiddleware(d.Auth))

			if d.Users != nil {
				pr.Get("/users/{userID}", auth.GetUserHandler(d.Users))
			}

			pr.Get("/tests", ListTestsHandler(d.Store))
			pr.Post("/tests/generate", GenerateTestHandler(d.Store, d.Generator, d.Blobs, d.MaxUploadBytes))
			pr.Get("/tests/{testID}", GetTestHandler(d.Store))
			pr.Delete("/tests/{testID}", DeleteTestHandler(d.Store))

			pr.Post("/attempts", CreateAttemptHandler(d.Store))
			pr.Get("/attempts/{attemptID}", GetAttemptHandler(d.Store))
			pr.Get("/attempts/all-test-attempts/{testID}", ListTestAttemptsHandler(d.Store))

			if d.Events != nil {
				pr.Get("/events", ListEventsHandler(d.Events))
			}
		})
	})
	return r
}
