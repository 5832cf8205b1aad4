package feed

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/eduncan911/podcast"
	"nicoarch/internal/models"
)

func getBaseURL(r *http.Request) string {
	if baseURL := os.Getenv("BASE_URL"); baseURL != "" {
		return baseURL
	}

	scheme := r.URL.Scheme
	if scheme == "" {
		scheme = "https"
		if r.Header.Get("X-Forwarded-Proto") != "" {
			scheme = r.Header.Get("X-Forwarded-Proto")
		}
	}

	return fmt.Sprintf("%s://%s", scheme, r.Host)
}

// GenerateRSS renders the most recently archived videos as an RSS feed.
func GenerateRSS(videos []models.Video, r *http.Request) (string, error) {
	baseURL := getBaseURL(r)
	now := time.Now()

	p := podcast.New(
		"nicoarch",
		baseURL+"/feed.xml",
		"Videos archived from niconico.",
		&now, &now,
	)

	for _, video := range videos {
		item := podcast.Item{
			Title:       video.Title,
			Description: video.Description,
			Link:        fmt.Sprintf("%s/videos/%s.mp4", baseURL, video.ContentID),
		}
		if item.Description == "" {
			item.Description = video.ShortDescription
		}
		if item.Description == "" {
			item.Description = video.Title
		}
		pubDate := video.CreatedAt
		item.AddPubDate(&pubDate)
		item.AddEnclosure(fmt.Sprintf("%s/videos/%s.mp4", baseURL, video.ContentID), podcast.MP4, 0)
		if _, err := p.AddItem(item); err != nil {
			return "", err
		}
	}

	return p.String(), nil
}
