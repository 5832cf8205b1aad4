package worker

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"testing"
	"time"

	"nicoarch/internal/models"
	"nicoarch/internal/niconico"
	"nicoarch/internal/test"
	"nicoarch/pkg/tasks"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockExecCommand(t *testing.T, gotArgs *[]string) {
	t.Helper()
	original := execCommand
	t.Cleanup(func() { execCommand = original })
	execCommand = func(ctx context.Context, name string, arg ...string) *exec.Cmd {
		*gotArgs = append([]string{name}, arg...)
		cs := []string{"-test.run=TestHelperProcess", "--", name}
		cs = append(cs, arg...)
		cmd := exec.Command(os.Args[0], cs...)
		cmd.Env = []string{"GO_WANT_HELPER_PROCESS=1"}
		return cmd
	}
}

func archiveJob(t *testing.T, taskID int64) *asynq.Task {
	t.Helper()
	job, err := tasks.NewArchiveVideoTask(taskID)
	require.NoError(t, err)
	return job
}

func testWatchData() *niconico.WatchData {
	return &niconico.WatchData{
		Video: niconico.WatchVideo{
			ID:           "sm100",
			Title:        "test video",
			Description:  "a longer description",
			RegisteredAt: time.Date(2023, 3, 1, 12, 0, 0, 0, time.UTC),
			Duration:     321,
			Count:        niconico.WatchCount{View: 1000, Comment: 10, Mylist: 5, Like: 7},
			Thumbnail:    niconico.WatchThumbnail{URL: "https://img.example/t.jpg", OGP: "https://img.example/ogp.jpg"},
		},
		Owner: &niconico.WatchOwner{ID: 42, Nickname: "alice"},
	}
}

func testPlatform(feed *fakeFeed) *fakePlatform {
	p := &fakePlatform{
		summary: &niconico.VideoSummary{ID: "sm100", Title: "test video", ShortDescription: "short"},
		watch:   testWatchData(),
		user: &niconico.User{
			ID:       42,
			Nickname: "alice",
			Icons:    niconico.UserIcons{Large: "https://img.example/icon-large.jpg"},
		},
		outputs: []niconico.Output{{ID: "video-h264-720p", Label: "720p", IsAvailable: true}},
	}
	if feed != nil {
		p.getComments = feed.page
	}
	return p
}

func TestHandleArchiveTaskNew(t *testing.T) {
	var gotArgs []string
	mockExecCommand(t, &gotArgs)

	base := time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)
	feed := &fakeFeed{
		owner:    feedComments(models.ForkOwner, 1, base),
		main:     feedComments(models.ForkMain, 6, base),
		pageSize: 10,
	}
	st := newFakeStore()
	platform := testPlatform(feed)
	task := st.addTask(models.TaskKindNew, "sm100")
	handler := NewTaskHandler(st, platform, &test.MockTaskEnqueuer{}, "/contents")

	err := handler.HandleArchiveTask(context.Background(), archiveJob(t, task.ID))
	require.NoError(t, err)

	updated, err := st.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, updated.Status)
	require.NotNil(t, updated.CommentCount)
	assert.Equal(t, 7, *updated.CommentCount)

	video, err := st.GetVideoByWatchID("sm100")
	require.NoError(t, err)
	assert.NotEmpty(t, video.ContentID)
	assert.Equal(t, "test video", video.Title)
	assert.Equal(t, "short", video.ShortDescription)
	assert.Equal(t, 1000, video.ViewCount)
	require.NotNil(t, updated.VideoID)
	assert.Equal(t, video.ID, *updated.VideoID)

	owner, err := st.GetUserByPlatformID(42)
	require.NoError(t, err)
	require.NotNil(t, video.OwnerID)
	assert.Equal(t, owner.ID, *video.OwnerID)

	// Icon and thumbnail were staged, in that order.
	require.Len(t, platform.downloaded, 2)
	assert.Equal(t, "/contents/image/icon/"+owner.ContentID+".jpg", platform.downloaded[0])
	assert.Equal(t, "/contents/image/thumbnail/"+video.ContentID+".jpg", platform.downloaded[1])

	// The media blob goes through yt-dlp with the offered rendition.
	require.NotEmpty(t, gotArgs)
	assert.Equal(t, "yt-dlp", gotArgs[0])
	assert.Contains(t, gotArgs, "video-h264-720p")
	assert.Contains(t, gotArgs, "https://www.nicovideo.jp/watch/sm100")

	assert.Equal(t, 6, len(st.commentNos(video.ID, models.ForkMain)))
	assert.Equal(t, 1, len(st.commentNos(video.ID, models.ForkOwner)))
}

func TestHandleArchiveTaskNewVideoNotFound(t *testing.T) {
	st := newFakeStore()
	platform := testPlatform(nil)
	platform.summary = nil
	task := st.addTask(models.TaskKindNew, "sm404")
	handler := NewTaskHandler(st, platform, &test.MockTaskEnqueuer{}, "/contents")

	err := handler.HandleArchiveTask(context.Background(), archiveJob(t, task.ID))
	require.NoError(t, err)

	updated, err := st.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, updated.Status)
	require.NotNil(t, updated.Error)
	assert.Contains(t, *updated.Error, "video not found")
	assert.Empty(t, st.videos)
}

func TestHandleArchiveTaskNewSyncFailureDiscardsVideo(t *testing.T) {
	var gotArgs []string
	mockExecCommand(t, &gotArgs)

	base := time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)
	history := feedComments(models.ForkMain, 8, base)
	calls := 0
	st := newFakeStore()
	platform := testPlatform(nil)
	platform.getComments = func(when int64, threadKey string) (*niconico.CommentPage, error) {
		calls++
		if calls == 1 {
			return &niconico.CommentPage{Threads: []niconico.Thread{
				{ID: "th-main", Fork: models.ForkMain, Comments: history[4:8]},
			}}, nil
		}
		return nil, &niconico.APIError{StatusCode: 500, Message: "broken"}
	}
	task := st.addTask(models.TaskKindNew, "sm100")
	handler := NewTaskHandler(st, platform, &test.MockTaskEnqueuer{}, "/contents")

	err := handler.HandleArchiveTask(context.Background(), archiveJob(t, task.ID))
	require.NoError(t, err)

	updated, err := st.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, updated.Status)

	// The half-archived video and every comment admitted so far are gone.
	assert.Empty(t, st.videos)
	assert.Empty(t, st.comments)
}

func TestHandleArchiveTaskUpdateSyncFailureRestoresSnapshot(t *testing.T) {
	base := time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)
	st := newFakeStore()
	platform := testPlatform(nil)

	archived, err := st.InsertVideo(models.Video{
		WatchID:   "sm100",
		Title:     "old title",
		ViewCount: 10,
		ContentID: "c-100",
	})
	require.NoError(t, err)

	// Comments archived by the earlier run predate this sync.
	seed := []models.Comment{}
	for _, c := range feedComments(models.ForkMain, 3, base) {
		seed = append(seed, models.Comment{CommentID: c.ID, No: c.No, VideoID: archived.ID, Fork: models.ForkMain, CreatedAt: base})
	}
	require.NoError(t, st.InsertComments(seed))

	history := feedComments(models.ForkMain, 6, base)
	calls := 0
	platform.getComments = func(when int64, threadKey string) (*niconico.CommentPage, error) {
		calls++
		if calls == 1 {
			return &niconico.CommentPage{Threads: []niconico.Thread{
				{ID: "th-main", Fork: models.ForkMain, Comments: history[2:6]},
			}}, nil
		}
		return nil, &niconico.APIError{StatusCode: 500, Message: "broken"}
	}
	task := st.addTask(models.TaskKindUpdate, "sm100")
	handler := NewTaskHandler(st, platform, &test.MockTaskEnqueuer{}, "/contents")

	err = handler.HandleArchiveTask(context.Background(), archiveJob(t, task.ID))
	require.NoError(t, err)

	updated, err := st.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, updated.Status)

	// Metadata rolled back to the snapshot, new comments rolled back to the
	// pre-sync archive.
	restored, err := st.GetVideoByWatchID("sm100")
	require.NoError(t, err)
	assert.Equal(t, "old title", restored.Title)
	assert.Equal(t, 10, restored.ViewCount)
	assert.Equal(t, []int{1, 2, 3}, st.commentNos(archived.ID, models.ForkMain))
}

func TestHandleArchiveTaskUpdateFetchFailureKeepsArchive(t *testing.T) {
	st := newFakeStore()
	platform := testPlatform(nil)
	platform.summary = nil

	archived, err := st.InsertVideo(models.Video{WatchID: "sm100", Title: "old title", ContentID: "c-100"})
	require.NoError(t, err)

	task := st.addTask(models.TaskKindUpdate, "sm100")
	handler := NewTaskHandler(st, platform, &test.MockTaskEnqueuer{}, "/contents")

	err = handler.HandleArchiveTask(context.Background(), archiveJob(t, task.ID))
	require.NoError(t, err)

	updated, err := st.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, updated.Status)

	kept, err := st.GetVideoByWatchID("sm100")
	require.NoError(t, err)
	assert.Equal(t, archived.ID, kept.ID)
	assert.Equal(t, "old title", kept.Title)
}

func TestHandleArchiveTaskUpdateSkipsDownloadAndUnchangedIcon(t *testing.T) {
	base := time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)
	st := newFakeStore()
	feed := &fakeFeed{main: feedComments(models.ForkMain, 4, base), pageSize: 10}
	platform := testPlatform(feed)

	// Owner already known with the same icon URL the platform reports now.
	seededOwner, err := st.UpsertUser(models.User{
		UserID:    42,
		Nickname:  "alice",
		IconURL:   "https://img.example/icon-large.jpg",
		ContentID: "user-content-1",
	})
	require.NoError(t, err)

	archived, err := st.InsertVideo(models.Video{WatchID: "sm100", Title: "old title", ContentID: "c-100"})
	require.NoError(t, err)
	seed := []models.Comment{}
	for _, c := range feed.main[:2] {
		seed = append(seed, models.Comment{CommentID: c.ID, No: c.No, VideoID: archived.ID, Fork: models.ForkMain, CreatedAt: base})
	}
	require.NoError(t, st.InsertComments(seed))

	task := st.addTask(models.TaskKindUpdate, "sm100")
	handler := NewTaskHandler(st, platform, &test.MockTaskEnqueuer{}, "/contents")

	err = handler.HandleArchiveTask(context.Background(), archiveJob(t, task.ID))
	require.NoError(t, err)

	updated, err := st.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, updated.Status)

	// Nothing staged on update: no media, no thumbnail, and the icon is
	// untouched because its URL did not change.
	assert.Empty(t, platform.downloaded)

	refreshed, err := st.GetVideoByWatchID("sm100")
	require.NoError(t, err)
	assert.Equal(t, "test video", refreshed.Title)

	owner, err := st.GetUserByPlatformID(42)
	require.NoError(t, err)
	assert.Equal(t, seededOwner.ContentID, owner.ContentID)

	assert.Equal(t, []int{1, 2, 3, 4}, sortedNos(st, archived.ID, models.ForkMain))
}

func TestHandleRefreshAllTask(t *testing.T) {
	st := newFakeStore()
	_, err := st.InsertVideo(models.Video{WatchID: "sm1", ContentID: "c-1"})
	require.NoError(t, err)
	_, err = st.InsertVideo(models.Video{WatchID: "sm2", ContentID: "c-2"})
	require.NoError(t, err)

	enqueuer := &test.MockTaskEnqueuer{}
	handler := NewTaskHandler(st, testPlatform(nil), enqueuer, "/contents")

	job, err := tasks.NewRefreshAllTask()
	require.NoError(t, err)
	require.NoError(t, handler.HandleRefreshAllTask(context.Background(), job))

	require.Len(t, enqueuer.EnqueuedTasks, 2)
	for _, enqueued := range enqueuer.EnqueuedTasks {
		assert.Equal(t, tasks.TypeArchiveVideo, enqueued.Type())
		var payload tasks.ArchiveVideoTaskPayload
		require.NoError(t, json.Unmarshal(enqueued.Payload(), &payload))
		created, err := st.GetTask(payload.TaskID)
		require.NoError(t, err)
		assert.Equal(t, models.TaskKindUpdate, created.Kind)
	}
}

// TestHelperProcess isn't a real test. It's the subprocess stand-in for
// yt-dlp spawned through execCommand.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	os.Exit(0)
}
