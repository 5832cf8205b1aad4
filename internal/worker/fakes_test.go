package worker

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"nicoarch/internal/models"
	"nicoarch/internal/niconico"
)

// fakeStore is an in-memory Store for exercising the orchestrator and the
// sync engine without a database.
type fakeStore struct {
	tasks    map[int64]models.Task
	videos   map[int64]models.Video
	users    map[int64]models.User // keyed by platform user id
	comments []models.Comment

	nextTaskID  int64
	nextVideoID int64
	nextUserID  int64

	insertCommentsErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tasks:  map[int64]models.Task{},
		videos: map[int64]models.Video{},
		users:  map[int64]models.User{},
	}
}

func (f *fakeStore) addTask(kind, watchID string) models.Task {
	task, _ := f.CreateTask(kind, watchID)
	return task
}

func (f *fakeStore) CreateTask(kind string, watchID string) (models.Task, error) {
	f.nextTaskID++
	task := models.Task{
		ID:        f.nextTaskID,
		Kind:      kind,
		WatchID:   watchID,
		Status:    models.StatusQueued,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	f.tasks[task.ID] = task
	return task, nil
}

func (f *fakeStore) GetTask(id int64) (models.Task, error) {
	task, ok := f.tasks[id]
	if !ok {
		return models.Task{}, sql.ErrNoRows
	}
	return task, nil
}

func (f *fakeStore) SetTaskStatus(id int64, status string) error {
	task := f.tasks[id]
	task.Status = status
	f.tasks[id] = task
	return nil
}

func (f *fakeStore) SetTaskVideo(id int64, videoID int64) error {
	task := f.tasks[id]
	task.VideoID = &videoID
	f.tasks[id] = task
	return nil
}

func (f *fakeStore) SetTaskCommentCount(id int64, count int) error {
	task := f.tasks[id]
	task.CommentCount = &count
	f.tasks[id] = task
	return nil
}

func (f *fakeStore) SetTaskFailed(id int64, message string) error {
	task := f.tasks[id]
	task.Status = models.StatusFailed
	task.Error = &message
	f.tasks[id] = task
	return nil
}

func (f *fakeStore) InsertVideo(v models.Video) (models.Video, error) {
	f.nextVideoID++
	v.ID = f.nextVideoID
	v.CreatedAt = time.Now()
	v.UpdatedAt = time.Now()
	f.videos[v.ID] = v
	return v, nil
}

func (f *fakeStore) GetVideoByWatchID(watchID string) (models.Video, error) {
	for _, v := range f.videos {
		if v.WatchID == watchID {
			return v, nil
		}
	}
	return models.Video{}, sql.ErrNoRows
}

func (f *fakeStore) ListVideos(limit int) ([]models.Video, error) {
	videos := []models.Video{}
	for _, v := range f.videos {
		if len(videos) >= limit {
			break
		}
		videos = append(videos, v)
	}
	return videos, nil
}

func (f *fakeStore) UpdateVideoMetadata(v models.Video) error {
	if _, ok := f.videos[v.ID]; !ok {
		return fmt.Errorf("no video %d", v.ID)
	}
	f.videos[v.ID] = v
	return nil
}

func (f *fakeStore) RestoreVideo(v models.Video) error {
	f.videos[v.ID] = v
	return nil
}

func (f *fakeStore) DeleteVideoByTaskID(taskID int64) error {
	for id, v := range f.videos {
		if v.TaskID == taskID {
			delete(f.videos, id)
			// comments cascade with their video
			kept := f.comments[:0]
			for _, c := range f.comments {
				if c.VideoID != id {
					kept = append(kept, c)
				}
			}
			f.comments = kept
		}
	}
	return nil
}

func (f *fakeStore) GetUserByPlatformID(userID int64) (models.User, error) {
	user, ok := f.users[userID]
	if !ok {
		return models.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeStore) UpsertUser(u models.User) (models.User, error) {
	if existing, ok := f.users[u.UserID]; ok {
		existing.Nickname = u.Nickname
		existing.Description = u.Description
		existing.RegisteredVersion = u.RegisteredVersion
		existing.IconURL = u.IconURL
		existing.UpdatedAt = time.Now()
		f.users[u.UserID] = existing
		return existing, nil
	}
	f.nextUserID++
	u.ID = f.nextUserID
	u.CreatedAt = time.Now()
	u.UpdatedAt = time.Now()
	f.users[u.UserID] = u
	return u, nil
}

func (f *fakeStore) InsertComments(comments []models.Comment) error {
	if f.insertCommentsErr != nil {
		return f.insertCommentsErr
	}
	f.comments = append(f.comments, comments...)
	return nil
}

func (f *fakeStore) LatestCommentNo(videoID int64, fork string) (*int, error) {
	var latest *int
	for _, c := range f.comments {
		if c.VideoID != videoID || c.Fork != fork {
			continue
		}
		if latest == nil || c.No > *latest {
			no := c.No
			latest = &no
		}
	}
	return latest, nil
}

func (f *fakeStore) DeleteCommentsSince(videoID int64, since time.Time) error {
	kept := f.comments[:0]
	for _, c := range f.comments {
		if c.VideoID == videoID && !c.CreatedAt.Before(since) {
			continue
		}
		kept = append(kept, c)
	}
	f.comments = kept
	return nil
}

func (f *fakeStore) commentNos(videoID int64, fork string) []int {
	nos := []int{}
	for _, c := range f.comments {
		if c.VideoID == videoID && c.Fork == fork {
			nos = append(nos, c.No)
		}
	}
	return nos
}

func (f *fakeStore) countComments(videoID int64) int {
	count := 0
	for _, c := range f.comments {
		if c.VideoID == videoID {
			count++
		}
	}
	return count
}

// fakePlatform is a scripted Platform implementation.
type fakePlatform struct {
	summary *niconico.VideoSummary
	watch   *niconico.WatchData
	user    *niconico.User
	outputs []niconico.Output

	getComments func(when int64, threadKey string) (*niconico.CommentPage, error)

	commentCalls   int
	threadKeyCalls int
	downloaded     []string
	downloadErr    error
}

func (p *fakePlatform) GetVideo(ctx context.Context, watchID string) (*niconico.VideoSummary, error) {
	return p.summary, nil
}

func (p *fakePlatform) GetWatchData(ctx context.Context, watchID string) (*niconico.WatchData, error) {
	return p.watch, nil
}

func (p *fakePlatform) GetUser(ctx context.Context, userID int64) (*niconico.User, error) {
	return p.user, nil
}

func (p *fakePlatform) GetComments(ctx context.Context, watch *niconico.WatchData, when int64, threadKey string) (*niconico.CommentPage, error) {
	p.commentCalls++
	return p.getComments(when, threadKey)
}

func (p *fakePlatform) GetThreadKey(ctx context.Context, videoID string) (string, error) {
	p.threadKeyCalls++
	return "fresh-thread-key", nil
}

func (p *fakePlatform) ListOutputs(watch *niconico.WatchData) []niconico.Output {
	return p.outputs
}

func (p *fakePlatform) DownloadFile(ctx context.Context, url string, path string) error {
	if p.downloadErr != nil {
		return p.downloadErr
	}
	p.downloaded = append(p.downloaded, path)
	return nil
}

func (p *fakePlatform) UserSession() string {
	return ""
}

// fakeFeed simulates the backward-paginated comment feed: a request with a
// `when` cursor returns the newest pageSize comments posted at or before it,
// oldest first, exactly like the platform.
type fakeFeed struct {
	owner    []niconico.Comment
	main     []niconico.Comment
	easy     []niconico.Comment
	pageSize int
}

// feedComments builds a fork history of count comments numbered 1..count,
// one posted per minute.
func feedComments(fork string, count int, base time.Time) []niconico.Comment {
	comments := make([]niconico.Comment, 0, count)
	for no := 1; no <= count; no++ {
		comments = append(comments, niconico.Comment{
			ID:       fmt.Sprintf("%s-%d", fork, no),
			No:       no,
			Body:     fmt.Sprintf("comment %d", no),
			UserID:   "u1",
			PostedAt: base.Add(time.Duration(no) * time.Minute),
		})
	}
	return comments
}

func (f *fakeFeed) page(when int64, threadKey string) (*niconico.CommentPage, error) {
	threads := []niconico.Thread{}
	if f.owner != nil {
		threads = append(threads, niconico.Thread{ID: "th-owner", Fork: models.ForkOwner, Comments: f.owner})
	}
	if f.easy != nil {
		threads = append(threads, niconico.Thread{ID: "th-easy", Fork: models.ForkEasy, Comments: f.window(f.easy, when)})
	}
	threads = append(threads, niconico.Thread{ID: "th-main", Fork: models.ForkMain, Comments: f.window(f.main, when)})
	return &niconico.CommentPage{Threads: threads}, nil
}

func (f *fakeFeed) window(history []niconico.Comment, when int64) []niconico.Comment {
	var upto []niconico.Comment
	for _, c := range history {
		if c.PostedAt.Unix() <= when {
			upto = append(upto, c)
		}
	}
	if len(upto) > f.pageSize {
		upto = upto[len(upto)-f.pageSize:]
	}
	return upto
}
