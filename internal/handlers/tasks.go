package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"regexp"
	"strconv"

	"github.com/gorilla/mux"

	"nicoarch/internal/models"
	"nicoarch/pkg/tasks"
)

const maxListLimit = 50

// Watch identifiers look like sm9, so35, nm123 or a bare numeric id.
var watchIDPattern = regexp.MustCompile(`^(?:[a-z]{2})?[0-9]+$`)

type createTaskRequest struct {
	WatchID string `json:"watchId"`
	Kind    string `json:"kind"`
}

// PostTask creates an archival task and hands it to the queue. Kind "new"
// archives a video for the first time; "update" re-syncs an archived one.
func (h *Handlers) PostTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !watchIDPattern.MatchString(req.WatchID) {
		http.Error(w, "Invalid watch id", http.StatusBadRequest)
		return
	}
	if req.Kind == "" {
		req.Kind = models.TaskKindNew
	}
	if req.Kind != models.TaskKindNew && req.Kind != models.TaskKindUpdate {
		http.Error(w, "Kind must be new or update", http.StatusBadRequest)
		return
	}

	_, err := h.store.GetVideoByWatchID(req.WatchID)
	archived := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		log.Printf("Error looking up video %s: %v", req.WatchID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if req.Kind == models.TaskKindNew && archived {
		http.Error(w, "Video is already archived", http.StatusConflict)
		return
	}
	if req.Kind == models.TaskKindUpdate && !archived {
		http.Error(w, "Video is not archived yet", http.StatusNotFound)
		return
	}

	task, err := h.store.CreateTask(req.Kind, req.WatchID)
	if err != nil {
		log.Printf("Error creating task: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	job, err := tasks.NewArchiveVideoTask(task.ID)
	if err != nil {
		log.Printf("Error creating archive task: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if _, err := h.asynqClient.Enqueue(job); err != nil {
		log.Printf("Error enqueuing archive task: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, task)
}

func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid task ID", http.StatusBadRequest)
		return
	}

	task, err := h.store.GetTask(id)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "Task not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("Error getting task %d: %v", id, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func (h *Handlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	taskList, err := h.store.ListTasks(maxListLimit)
	if err != nil {
		log.Printf("Error listing tasks: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, taskList)
}

func (h *Handlers) ListVideos(w http.ResponseWriter, r *http.Request) {
	videos, err := h.store.ListVideos(maxListLimit)
	if err != nil {
		log.Printf("Error listing videos: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, videos)
}
