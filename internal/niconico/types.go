package niconico

import "time"

// VideoSummary is the lightweight record returned by the video lookup API.
type VideoSummary struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	ShortDescription string `json:"shortDescription"`
}

// WatchData is the extended metadata behind a watch page. It carries
// everything the archiver needs: counters, the owner reference, the comment
// endpoint parameters and the offered media outputs.
type WatchData struct {
	Video   WatchVideo   `json:"video"`
	Owner   *WatchOwner  `json:"owner"`
	Comment WatchComment `json:"comment"`
	Media   WatchMedia   `json:"media"`
}

type WatchVideo struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	RegisteredAt time.Time      `json:"registeredAt"`
	Duration     int            `json:"duration"`
	Count        WatchCount     `json:"count"`
	Thumbnail    WatchThumbnail `json:"thumbnail"`
}

type WatchCount struct {
	View    int `json:"view"`
	Comment int `json:"comment"`
	Mylist  int `json:"mylist"`
	Like    int `json:"like"`
}

type WatchThumbnail struct {
	URL string `json:"url"`
	OGP string `json:"ogp"`
}

type WatchOwner struct {
	ID       int64  `json:"id"`
	Nickname string `json:"nickname"`
}

type WatchComment struct {
	NvComment NvComment `json:"nvComment"`
}

// NvComment holds the comment server endpoint and the opaque request params
// the watch page hands out for it.
type NvComment struct {
	Server    string          `json:"server"`
	ThreadKey string          `json:"threadKey"`
	Params    NvCommentParams `json:"params"`
}

type NvCommentParams struct {
	Language string            `json:"language"`
	Targets  []NvCommentTarget `json:"targets"`
}

type NvCommentTarget struct {
	ID   string `json:"id"`
	Fork string `json:"fork"`
}

type WatchMedia struct {
	Domand Domand `json:"domand"`
}

type Domand struct {
	Videos []Output `json:"videos"`
}

// Output is one media rendition offered for a watch page, best quality first.
type Output struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	IsAvailable bool   `json:"isAvailable"`
}

// User is a platform account as returned by the user lookup API.
type User struct {
	ID                int64     `json:"id"`
	Nickname          string    `json:"nickname"`
	Description       string    `json:"description"`
	RegisteredVersion string    `json:"registeredVersion"`
	Icons             UserIcons `json:"icons"`
}

type UserIcons struct {
	Small string `json:"small"`
	Large string `json:"large"`
}

// CommentPage is one page of the backward-paginated comment feed. Within a
// thread, comments are ordered by No ascending (oldest first).
type CommentPage struct {
	Threads []Thread `json:"threads"`
}

type Thread struct {
	ID       string    `json:"id"`
	Fork     string    `json:"fork"`
	Comments []Comment `json:"comments"`
}

type Comment struct {
	ID          string    `json:"id"`
	No          int       `json:"no"`
	VposMs      int       `json:"vposMs"`
	Body        string    `json:"body"`
	Commands    []string  `json:"commands"`
	UserID      string    `json:"userId"`
	IsPremium   bool      `json:"isPremium"`
	Score       int       `json:"score"`
	PostedAt    time.Time `json:"postedAt"`
	NicoruCount int       `json:"nicoruCount"`
	Source      string    `json:"source"`
}
