package showcase

import "time"

// Post is a showcase entry where users show off their draws.
type Post struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	Images       []string  `json:"images"`
	TagIDs       []string  `json:"tag_ids"`
	Views        int       `json:"views"`
	LikeCount    int       `json:"like_count"`
	CommentCount int       `json:"comment_count"`
	Liked        bool      `json:"liked"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HotScore ranks posts for the "hot" feed.
func (p Post) HotScore() float64 {
	return float64(p.LikeCount*3+p.CommentCount*2) + float64(p.Views)/10
}

// Comment is a reply to a post, optionally nested under another comment.
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	ParentID  string    `json:"parent_id,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Tag groups posts by topic.
type Tag struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// PostSort orders the feed.
type PostSort string

const (
	SortLatest PostSort = "latest"
	SortHot    PostSort = "hot"
)

// PostFilter narrows the feed.
type PostFilter struct {
	TagID    string
	AuthorID string
	Query    string
	Sort     PostSort
}
