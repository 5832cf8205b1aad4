package niconico

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	accountBase = "https://account.nicovideo.jp"
	nvapiBase   = "https://nvapi.nicovideo.jp"
	watchBase   = "https://www.nicovideo.jp"

	frontendID      = "6"
	frontendVersion = "0"
)

// Client is a thin wrapper around the platform's HTTP APIs. One Client is
// created at process start and shared across all tasks.
type Client struct {
	httpClient  *http.Client
	userSession string
}

func NewClient() *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: 60 * time.Second,
		},
	}
}

// UserSession returns the current session cookie value, for persisting
// between process runs.
func (c *Client) UserSession() string {
	return c.userSession
}

// LoginWithMail performs a credential login and captures the session cookie.
func (c *Client) LoginWithMail(ctx context.Context, mail, password string) error {
	form := url.Values{}
	form.Set("mail_tel", mail)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		accountBase+"/login/redirector?site=niconico", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post login form: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	for _, cookie := range c.httpClient.Jar.Cookies(mustParseURL(watchBase)) {
		if cookie.Name == "user_session" {
			c.userSession = cookie.Value
			return nil
		}
	}
	return ErrLoginFailed
}

// LoginWithSession restores a saved session cookie and verifies it is still
// accepted by the platform.
func (c *Client) LoginWithSession(ctx context.Context, session string) error {
	c.userSession = session
	c.httpClient.Jar.SetCookies(mustParseURL(watchBase), []*http.Cookie{
		{Name: "user_session", Value: session, Domain: ".nicovideo.jp", Path: "/"},
	})

	var payload struct {
		Data struct {
			User struct {
				ID int64 `json:"id"`
			} `json:"user"`
		} `json:"data"`
	}
	if err := c.getJSON(ctx, nvapiBase+"/v1/users/me", &payload); err != nil {
		c.userSession = ""
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}
	return nil
}

// GetVideo looks up the public summary of a video. Returns (nil, nil) when
// the platform reports no such video.
func (c *Client) GetVideo(ctx context.Context, watchID string) (*VideoSummary, error) {
	var payload struct {
		Data struct {
			Items []struct {
				Video VideoSummary `json:"video"`
			} `json:"items"`
		} `json:"data"`
	}
	err := c.getJSON(ctx, nvapiBase+"/v1/videos?watchIds="+url.QueryEscape(watchID), &payload)
	if apiErr, ok := asAPIError(err); ok && apiErr.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(payload.Data.Items) == 0 {
		return nil, nil
	}
	return &payload.Data.Items[0].Video, nil
}

// GetWatchData fetches the extended watch-page metadata.
func (c *Client) GetWatchData(ctx context.Context, watchID string) (*WatchData, error) {
	var payload struct {
		Data WatchData `json:"data"`
	}
	u := fmt.Sprintf("%s/api/watch/v3/%s?actionTrackId=nicoarch_0", watchBase, url.PathEscape(watchID))
	if err := c.getJSON(ctx, u, &payload); err != nil {
		return nil, err
	}
	return &payload.Data, nil
}

// GetUser looks up a platform account. Returns (nil, nil) when absent.
func (c *Client) GetUser(ctx context.Context, userID int64) (*User, error) {
	var payload struct {
		Data struct {
			User User `json:"user"`
		} `json:"data"`
	}
	err := c.getJSON(ctx, fmt.Sprintf("%s/v1/users/%d", nvapiBase, userID), &payload)
	if apiErr, ok := asAPIError(err); ok && apiErr.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payload.Data.User, nil
}

// GetComments fetches one page of the comment feed: the most recent comments
// posted at or before the `when` cursor. threadKey is the optional rotating
// pagination token; an expired one yields ErrTokenExpired.
func (c *Client) GetComments(ctx context.Context, watch *WatchData, when int64, threadKey string) (*CommentPage, error) {
	body := struct {
		Params      NvCommentParams `json:"params"`
		ThreadKey   string          `json:"threadKey"`
		Additionals struct {
			When int64 `json:"when"`
		} `json:"additionals"`
	}{
		Params:    watch.Comment.NvComment.Params,
		ThreadKey: threadKey,
	}
	body.Additionals.When = when
	if body.ThreadKey == "" {
		body.ThreadKey = watch.Comment.NvComment.ThreadKey
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimSuffix(watch.Comment.NvComment.Server, "/")+"/v1/threads", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setFrontendHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch comment page: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		Meta struct {
			Status    int    `json:"status"`
			ErrorCode string `json:"errorCode"`
		} `json:"meta"`
		Data CommentPage `json:"data"`
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("comment server returned %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode comment page: %w", err)
	}
	if payload.Meta.ErrorCode == "EXPIRED_TOKEN" {
		return nil, ErrTokenExpired
	}
	if resp.StatusCode != http.StatusOK || payload.Meta.Status != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Code: payload.Meta.ErrorCode, Message: "comment fetch rejected"}
	}
	return &payload.Data, nil
}

// GetThreadKey requests a fresh pagination token for the video.
func (c *Client) GetThreadKey(ctx context.Context, videoID string) (string, error) {
	var payload struct {
		Data struct {
			ThreadKey string `json:"threadKey"`
		} `json:"data"`
	}
	u := nvapiBase + "/v1/comment/keys/thread?videoId=" + url.QueryEscape(videoID)
	if err := c.getJSON(ctx, u, &payload); err != nil {
		return "", err
	}
	return payload.Data.ThreadKey, nil
}

// ListOutputs returns the available media renditions for a watch page, in
// the platform's offered order (best quality first).
func (c *Client) ListOutputs(watch *WatchData) []Output {
	outputs := []Output{}
	for _, v := range watch.Media.Domand.Videos {
		if v.IsAvailable {
			outputs = append(outputs, v)
		}
	}
	return outputs
}

// DownloadFile streams a blob to the given path.
func (c *Client) DownloadFile(ctx context.Context, rawURL string, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Message: "blob download rejected"}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	c.setFrontendHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Message: "request rejected"}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", rawURL, err)
	}
	return nil
}

func (c *Client) setFrontendHeaders(req *http.Request) {
	req.Header.Set("X-Frontend-Id", frontendID)
	req.Header.Set("X-Frontend-Version", frontendVersion)
}

func asAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}
