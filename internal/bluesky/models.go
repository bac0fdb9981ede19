package bluesky

import (
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Author is the profile summary embedded in post views.
type Author struct {
	DID         string `json:"did"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
}

// Name returns the display name, falling back to the handle.
func (a Author) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Handle
}

// PostView holds the parts of app.bsky.feed.defs#postView the gallery uses.
type PostView struct {
	URI         string
	CID         string
	Author      Author
	Text        string
	CreatedAt   time.Time
	IndexedAt   time.Time
	LikeCount   int
	ReplyCount  int
	RepostCount int
	QuoteCount  int
}

// ThreadView is a post with its direct replies.
type ThreadView struct {
	Post PostView
	// HasReplies is false when the response carried no replies collection
	// at all, as opposed to an empty one.
	HasReplies bool
	Replies    []ThreadView
}

func parsePost(r gjson.Result) PostView {
	return PostView{
		URI: r.Get("uri").String(),
		CID: r.Get("cid").String(),
		Author: Author{
			DID:         r.Get("author.did").String(),
			Handle:      r.Get("author.handle").String(),
			DisplayName: r.Get("author.displayName").String(),
			Avatar:      r.Get("author.avatar").String(),
		},
		Text:        r.Get("record.text").String(),
		CreatedAt:   parseTime(r.Get("record.createdAt").String()),
		IndexedAt:   parseTime(r.Get("indexedAt").String()),
		LikeCount:   int(r.Get("likeCount").Int()),
		ReplyCount:  int(r.Get("replyCount").Int()),
		RepostCount: int(r.Get("repostCount").Int()),
		QuoteCount:  int(r.Get("quoteCount").Int()),
	}
}

func parseThread(r gjson.Result) ThreadView {
	view := ThreadView{Post: parsePost(r.Get("post"))}

	replies := r.Get("replies")
	if !replies.IsArray() {
		return view
	}

	view.HasReplies = true
	replies.ForEach(func(_, reply gjson.Result) bool {
		// Blocked and deleted replies have no post.
		if reply.Get("post").Exists() {
			view.Replies = append(view.Replies, parseThread(reply))
		}
		return true
	})
	return view
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// PostURI builds the at:// URI of a post.
func PostURI(handle, postID string) string {
	return "at://" + handle + "/app.bsky.feed.post/" + postID
}

// ThreadURL builds the public web link of a post.
func ThreadURL(handle, postID string) string {
	return "https://bsky.app/profile/" + handle + "/post/" + postID
}

// ProfileURL builds the public web link of a profile.
func ProfileURL(actor string) string {
	return "https://bsky.app/profile/" + actor
}

// RecordKey returns the last segment of an at:// URI.
func RecordKey(uri string) string {
	if i := strings.LastIndex(uri, "/"); i >= 0 {
		return uri[i+1:]
	}
	return uri
}
