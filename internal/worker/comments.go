package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nicoarch/internal/models"
	"nicoarch/internal/niconico"

	"github.com/lib/pq"
	"golang.org/x/time/rate"
)

// ErrCommentFetchExhausted is raised after too many consecutive transient
// comment-page failures. Fatal to the task.
var ErrCommentFetchExhausted = errors.New("comment fetch retries exhausted")

const (
	// Consecutive transient page failures tolerated before giving up.
	transientRetryLimit = 5
	transientRetryWait  = 60 * time.Second

	// Consecutive token refreshes tolerated before giving up. The platform
	// rotates pagination tokens; a refresh that keeps expiring means the
	// crawl is wedged, not catching up.
	tokenRefreshLimit = 5
	tokenRefreshWait  = time.Second
)

// forkState tracks the admission bounds for one paginated fork.
//
// sessionMin is one past the oldest comment admitted so far in this run;
// a page comment is new for this run only while its number is strictly
// below it. nil means no page has been seen yet, which admits the whole
// first page. archivedMax is the newest comment number archived by prior
// runs (incremental mode only); comments at or below it are already stored.
type forkState struct {
	sessionMin  *int
	archivedMax *int
}

// filter returns the comments to admit from one page. Pages are ordered by
// number ascending (oldest first); the scan stops at the first comment this
// run already admitted.
func (f *forkState) filter(comments []niconico.Comment) []niconico.Comment {
	if len(comments) == 0 {
		return nil
	}
	if f.sessionMin == nil {
		min := comments[len(comments)-1].No + 1
		f.sessionMin = &min
	}
	var accepted []niconico.Comment
	for _, c := range comments {
		if c.No >= *f.sessionMin {
			break
		}
		if f.archivedMax != nil && c.No <= *f.archivedMax {
			continue
		}
		accepted = append(accepted, c)
	}
	return accepted
}

// advance moves the session mark down to the oldest comment just admitted.
func (f *forkState) advance(accepted []niconico.Comment) {
	min := accepted[0].No
	f.sessionMin = &min
}

// Seams for tests; pacing and backoff are fixed in production.
var (
	timeSleep = time.Sleep
	pageLimit = rate.Every(time.Second)
)

type commentSyncer struct {
	store Store
	nico  Platform
	pacer *rate.Limiter
}

func newCommentSyncer(store Store, nico Platform) *commentSyncer {
	return &commentSyncer{
		store: store,
		nico:  nico,
		pacer: rate.NewLimiter(pageLimit, 1),
	}
}

// Sync crawls the comment feed backward from the present and persists every
// comment not yet archived, checkpointing the running total to the task
// after every page.
//
// For a new task every fork is crawled to the beginning of history. For an
// update task the crawl additionally stops below each fork's stored
// high-water mark, and the owner fork is never re-synced. In both modes the
// crawl terminates when the main fork first yields nothing new.
func (s *commentSyncer) Sync(ctx context.Context, task models.Task, video models.Video, watch *niconico.WatchData) (int, error) {
	incremental := task.Kind == models.TaskKindUpdate

	main := &forkState{}
	easy := &forkState{}
	if incremental {
		var err error
		if main.archivedMax, err = s.store.LatestCommentNo(video.ID, models.ForkMain); err != nil {
			return 0, fmt.Errorf("failed to load main high-water mark: %w", err)
		}
		if easy.archivedMax, err = s.store.LatestCommentNo(video.ID, models.ForkEasy); err != nil {
			return 0, fmt.Errorf("failed to load easy high-water mark: %w", err)
		}
	}

	when := time.Now().Unix()
	threadKey := ""
	ownerDone := incremental
	total := 0
	failures := 0
	refreshes := 0
	finished := false

	for !finished {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		page, err := s.nico.GetComments(ctx, watch, when, threadKey)
		if errors.Is(err, niconico.ErrTokenExpired) {
			refreshes++
			if refreshes >= tokenRefreshLimit {
				return total, fmt.Errorf("pagination token expired %d times in a row: %w", refreshes, err)
			}
			threadKey, err = s.nico.GetThreadKey(ctx, watch.Video.ID)
			if err != nil {
				return total, fmt.Errorf("failed to refresh thread key: %w", err)
			}
			timeSleep(tokenRefreshWait)
			continue
		}
		var apiErr *niconico.APIError
		if errors.As(err, &apiErr) {
			return total, err
		}
		if err != nil || page == nil || len(page.Threads) == 0 {
			failures++
			if failures >= transientRetryLimit {
				if err != nil {
					return total, fmt.Errorf("%w: %v", ErrCommentFetchExhausted, err)
				}
				return total, ErrCommentFetchExhausted
			}
			timeSleep(transientRetryWait)
			continue
		}
		failures = 0
		refreshes = 0

		sawMain := false
		for _, thread := range page.Threads {
			switch thread.Fork {
			case models.ForkOwner:
				if ownerDone {
					continue
				}
				ownerDone = true
				if err := s.persist(video, thread, thread.Comments); err != nil {
					return total, err
				}
				total += len(thread.Comments)
			case models.ForkEasy:
				accepted := easy.filter(thread.Comments)
				if len(accepted) == 0 {
					continue
				}
				if err := s.persist(video, thread, accepted); err != nil {
					return total, err
				}
				total += len(accepted)
				easy.advance(accepted)
			case models.ForkMain:
				sawMain = true
				accepted := main.filter(thread.Comments)
				if len(accepted) == 0 {
					finished = true
					continue
				}
				if err := s.persist(video, thread, accepted); err != nil {
					return total, err
				}
				total += len(accepted)
				main.advance(accepted)
				when = accepted[0].PostedAt.Unix()
			}
		}
		if !sawMain {
			// Without a main thread the cursor can never move; stop rather
			// than refetch the same page forever.
			finished = true
		}

		if err := s.store.SetTaskCommentCount(task.ID, total); err != nil {
			return total, fmt.Errorf("failed to checkpoint comment count: %w", err)
		}
		if err := s.pacer.Wait(ctx); err != nil {
			return total, err
		}
	}
	return total, nil
}

func (s *commentSyncer) persist(video models.Video, thread niconico.Thread, accepted []niconico.Comment) error {
	if len(accepted) == 0 {
		return nil
	}
	now := time.Now()
	batch := make([]models.Comment, 0, len(accepted))
	for _, c := range accepted {
		commands := pq.StringArray{}
		if c.Commands != nil {
			commands = pq.StringArray(c.Commands)
		}
		batch = append(batch, models.Comment{
			CommentID:   c.ID,
			Body:        c.Body,
			Commands:    commands,
			IsPremium:   c.IsPremium,
			NicoruCount: c.NicoruCount,
			No:          c.No,
			PostedAt:    c.PostedAt,
			Score:       c.Score,
			Source:      c.Source,
			UserID:      c.UserID,
			VposMs:      c.VposMs,
			VideoID:     video.ID,
			ThreadID:    thread.ID,
			Fork:        thread.Fork,
			CreatedAt:   now,
		})
	}
	if err := s.store.InsertComments(batch); err != nil {
		return fmt.Errorf("failed to insert comments: %w", err)
	}
	return nil
}
