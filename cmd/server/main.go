package main

import (
	"log"
	"net/http"

	"nicoarch/internal/config"
	"nicoarch/internal/handlers"
	"nicoarch/internal/middleware"
	"nicoarch/internal/store"

	"github.com/gorilla/mux"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"
)

// CommitSHA is set at build time via ldflags
var CommitSHA = "unknown"

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Println("Error loading .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()
	log.Println("Database connection established")

	client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer client.Close()

	h := handlers.New(st, client, cfg.ContentsDir)
	rateLimiter := middleware.NewRateLimiterMiddleware(rate.Limit(5), 10)

	r := mux.NewRouter()
	r.Use(rateLimiter.Middleware)
	r.HandleFunc("/api/tasks", h.PostTask).Methods(http.MethodPost)
	r.HandleFunc("/api/tasks", h.ListTasks).Methods(http.MethodGet)
	r.HandleFunc("/api/tasks/{id:[0-9]+}", h.GetTask).Methods(http.MethodGet)
	r.HandleFunc("/api/videos", h.ListVideos).Methods(http.MethodGet)
	r.HandleFunc("/feed.xml", h.GetRSSFeed).Methods(http.MethodGet)
	r.HandleFunc("/videos/{filename}", h.ServeVideoFile).Methods(http.MethodGet)

	log.Printf("Starting server on :%s (commit: %s)", cfg.Port, CommitSHA)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal(err)
	}
}
