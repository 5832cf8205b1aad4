package handlers

import (
	"log"
	"net/http"
	"path/filepath"

	"github.com/gorilla/mux"

	"nicoarch/internal/feed"
)

func (h *Handlers) GetRSSFeed(w http.ResponseWriter, r *http.Request) {
	videos, err := h.store.ListVideos(maxListLimit)
	if err != nil {
		log.Printf("Error getting videos: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	rss, err := feed.GenerateRSS(videos, r)
	if err != nil {
		log.Printf("Error generating RSS: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml")
	w.Write([]byte(rss))
}

// ServeVideoFile serves a staged media blob by its content id.
func (h *Handlers) ServeVideoFile(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]

	filePath := filepath.Join(h.contentsDir, "video", filename)
	http.ServeFile(w, r, filePath)
}
