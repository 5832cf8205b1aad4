package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"nicoarch/internal/store"
	"nicoarch/pkg/tasks"
)

type Handlers struct {
	store       *store.Store
	asynqClient tasks.TaskEnqueuer
	contentsDir string
}

func New(st *store.Store, asynqClient tasks.TaskEnqueuer, contentsDir string) *Handlers {
	return &Handlers{
		store:       st,
		asynqClient: asynqClient,
		contentsDir: contentsDir,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}
