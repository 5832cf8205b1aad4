package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"

	"nicoarch/internal/config"
	"nicoarch/internal/niconico"
	"nicoarch/internal/store"
	"nicoarch/internal/worker"
	"nicoarch/pkg/tasks"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
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

	for _, dir := range []string{
		filepath.Join(cfg.ContentsDir, "image", "icon"),
		filepath.Join(cfg.ContentsDir, "image", "thumbnail"),
		filepath.Join(cfg.ContentsDir, "video"),
		filepath.Dir(cfg.SessionFile),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("Failed to create %s: %v", dir, err)
		}
	}

	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()
	log.Println("Database connection established")

	nico := niconico.NewClient()
	if err := login(nico, cfg); err != nil {
		log.Fatalf("Failed to log in: %v", err)
	}

	client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer client.Close()

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		asynq.Config{
			// One task runs start-to-finish before the next is dequeued.
			Concurrency: 1,
		},
	)

	mux := asynq.NewServeMux()
	taskHandler := worker.NewTaskHandler(st, nico, client, cfg.ContentsDir)
	mux.HandleFunc(tasks.TypeArchiveVideo, taskHandler.HandleArchiveTask)
	mux.HandleFunc(tasks.TypeRefreshAll, taskHandler.HandleRefreshAllTask)

	log.Printf("nicoarch worker starting (commit: %s)", CommitSHA)
	if err := srv.Run(mux); err != nil {
		log.Fatalf("could not run server: %v", err)
	}
}

// login restores a saved session when possible, falls back to a mail login,
// and persists the session for the next run.
func login(nico *niconico.Client, cfg *config.Config) error {
	ctx := context.Background()

	if data, err := os.ReadFile(cfg.SessionFile); err == nil {
		var saved struct {
			UserSession string `json:"user_session"`
		}
		if err := json.Unmarshal(data, &saved); err == nil && saved.UserSession != "" {
			if err := nico.LoginWithSession(ctx, saved.UserSession); err == nil {
				return nil
			}
			log.Println("Saved session rejected, logging in with mail")
		}
	}

	if err := nico.LoginWithMail(ctx, cfg.NiconicoMail, cfg.NiconicoPassword); err != nil {
		return err
	}
	data, err := json.Marshal(map[string]string{"user_session": nico.UserSession()})
	if err != nil {
		return err
	}
	return os.WriteFile(cfg.SessionFile, data, 0o600)
}
