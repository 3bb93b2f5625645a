package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/snapquiz/snapquiz-backend/internal/api/http"
	"github.com/snapquiz/snapquiz-backend/internal/auth"
	authmw "github.com/snapquiz/snapquiz-backend/internal/auth/middleware"
	"github.com/snapquiz/snapquiz-backend/internal/config"
	"github.com/snapquiz/snapquiz-backend/internal/db"
	"github.com/snapquiz/snapquiz-backend/internal/generate"
	"github.com/snapquiz/snapquiz-backend/internal/quiz"
	"github.com/snapquiz/snapquiz-backend/internal/storage"
	syncx "github.com/snapquiz/snapquiz-backend/internal/sync"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	defer dbh.Close()

	events := syncx.NewEventRepo(dbh, string(cfg.Mode))
	store := quiz.NewSQLStore(dbh, events)

	bs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	var gen generate.Client
	if cfg.OpenAIAPIKey != "" {
		gen = generate.NewOpenAI(generate.Config{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.OpenAITimeout,
		})
	} else {
		log.Printf("OPENAI_API_KEY not set; test generation disabled")
	}

	r := api.NewRouter(api.Deps{
		Store:     store,
		Users:     auth.NewUserStore(dbh),
		Auth:      authmw.NewAuthService(cfg.JWTSecret, cfg.JWTTTL),
		Generator: gen,
		Blobs:     bs,
		Events:    events,
		DB:        dbh,
		Cookie: auth.CookieOptions{
			Domain: cfg.CookieDomain,
			Secure: cfg.CookieSecure,
		},
		CORSOrigins:    cfg.CORSOrigins(),
		MaxUploadBytes: cfg.MaxUploadBytes,
		RequestTimeout: cfg.OpenAITimeout + 30*time.Second,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down server...")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
	}
}
