package engagement

import (
	"context"
	"sort"
	"time"

	"fotos/internal/bluesky"
	"fotos/internal/logging"
)

// Comment is one reply under a photo's thread.
type Comment struct {
	Author      bluesky.Author `json:"author"`
	AuthorName  string         `json:"authorName"`
	ProfileURL  string         `json:"profileUrl"`
	Text        string         `json:"text"`
	CreatedAt   time.Time      `json:"createdAt"`
	TimeAgo     string         `json:"timeAgo"`
	LikeCount   int            `json:"likeCount"`
	ReplyCount  int            `json:"replyCount"`
	RepostCount int            `json:"repostCount"`
	URL         string         `json:"url"`
}

// CommentThread is the comments panel of a photo. Found is false when the
// photo has no thread; Unavailable is set when the thread exists but could
// not be fetched.
type CommentThread struct {
	Found        bool      `json:"found"`
	Unavailable  bool      `json:"unavailable,omitempty"`
	ThreadURL    string    `json:"threadUrl,omitempty"`
	LikeCount    int       `json:"likeCount"`
	CommentCount int       `json:"commentCount"`
	RepostCount  int       `json:"repostCount"`
	Comments     []Comment `json:"comments"`
}

// Comments fetches the direct replies to a photo's thread, oldest first.
// Replies without text are skipped. It never fails.
func (s *Service) Comments(ctx context.Context, ref string) CommentThread {
	ref = ParseRef(ref)
	empty := CommentThread{Comments: []Comment{}}

	db, err := s.db.Get(ctx)
	if err != nil {
		logging.Warn("Comments for %s unavailable: %v", ref, err)
		empty.Unavailable = true
		return empty
	}

	postID, found, err := s.resolvePostID(ctx, db, ref)
	if err != nil {
		logging.Warn("Resolving post for %s failed: %v", ref, err)
		empty.Unavailable = true
		return empty
	}
	if !found {
		return empty
	}

	result := CommentThread{
		Found:     true,
		ThreadURL: bluesky.ThreadURL(s.handle, postID),
		Comments:  []Comment{},
	}

	thread, err := s.client.GetThread(ctx, bluesky.PostURI(s.handle, postID), 1)
	if err != nil {
		logging.Warn("Fetching comments for %s (post %s) failed: %v", ref, postID, err)
		result.Unavailable = true
		return result
	}

	replies := append([]bluesky.ThreadView(nil), thread.Replies...)
	sort.SliceStable(replies, func(i, j int) bool {
		return replies[i].Post.IndexedAt.Before(replies[j].Post.IndexedAt)
	})

	now := s.now()
	for _, reply := range replies {
		post := reply.Post
		if post.Text == "" {
			continue
		}
		result.Comments = append(result.Comments, Comment{
			Author:      post.Author,
			AuthorName:  post.Author.Name(),
			ProfileURL:  bluesky.ProfileURL(post.Author.DID),
			Text:        post.Text,
			CreatedAt:   post.CreatedAt,
			TimeAgo:     TimeAgo(post.CreatedAt, now),
			LikeCount:   post.LikeCount,
			ReplyCount:  post.ReplyCount,
			RepostCount: post.RepostCount,
			URL:         bluesky.ProfileURL(post.Author.DID) + "/post/" + bluesky.RecordKey(post.URI),
		})
	}

	result.LikeCount = thread.Post.LikeCount
	result.RepostCount = thread.Post.RepostCount
	result.CommentCount = thread.Post.ReplyCount
	if thread.HasReplies {
		result.CommentCount = len(thread.Replies)
	}
	return result
}
