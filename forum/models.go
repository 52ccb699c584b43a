// forum/models.go
package forum

import (
	"time"
)

// Category is a top-level forum section.
type Category struct {
	ID          int64  `json:"category_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Topic is a thread of posts inside a category.
type Topic struct {
	ID           int64     `json:"topic_id"`
	CategoryID   int64     `json:"category_id"`
	CreatorID    int64     `json:"creator_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	Pinned       bool      `json:"is_pinned"`
	Locked       bool      `json:"is_locked"`
	Views        int       `json:"view_count"`
}

// Post is a forum post. ReplyTo is nil for root posts.
type Post struct {
	ID        int64      `json:"post_id"`
	TopicID   int64      `json:"topic_id"`
	UserID    int64      `json:"user_id"`
	Username  string     `json:"username,omitempty"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
	Upvote    int        `json:"upvote"`
	Downvote  int        `json:"downvote"`
	ReplyTo   *int64     `json:"reply_to_post_id"`
}

// Score is the net vote count.
func (p Post) Score() int {
	return p.Upvote - p.Downvote
}

// IsRoot reports whether the post starts a thread.
func (p Post) IsRoot() bool {
	return p.ReplyTo == nil
}

// NewPost is the body of POST /forum/posts.
type NewPost struct {
	TopicID int64  `json:"topic_id"`
	UserID  string `json:"user_id"`
	Content string `json:"content"`
	ReplyTo *int64 `json:"reply_to_post_id"`
}
