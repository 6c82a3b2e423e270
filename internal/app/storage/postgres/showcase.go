package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/page"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/showcase"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/storage"
)

type postRow struct {
	ID           string    `db:"id"`
	UserID       string    `db:"user_id"`
	Title        string    `db:"title"`
	Content      string    `db:"content"`
	Images       []byte    `db:"images"`
	Views        int       `db:"views"`
	LikeCount    int       `db:"like_count"`
	CommentCount int       `db:"comment_count"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r postRow) toDomain() (showcase.Post, error) {
	p := showcase.Post{
		ID:           r.ID,
		UserID:       r.UserID,
		Title:        r.Title,
		Content:      r.Content,
		Views:        r.Views,
		LikeCount:    r.LikeCount,
		CommentCount: r.CommentCount,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if len(r.Images) > 0 {
		if err := json.Unmarshal(r.Images, &p.Images); err != nil {
			return showcase.Post{}, fmt.Errorf("decode images for post %s: %w", r.ID, err)
		}
	}
	return p, nil
}

type commentRow struct {
	ID        string         `db:"id"`
	PostID    string         `db:"post_id"`
	UserID    string         `db:"user_id"`
	ParentID  sql.NullString `db:"parent_id"`
	Content   string         `db:"content"`
	CreatedAt time.Time      `db:"created_at"`
}

func (r commentRow) toDomain() showcase.Comment {
	return showcase.Comment{
		ID:        r.ID,
		PostID:    r.PostID,
		UserID:    r.UserID,
		ParentID:  r.ParentID.String,
		Content:   r.Content,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

type tagRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

const (
	postColumns    = `id, user_id, title, content, images, views, like_count, comment_count, created_at, updated_at`
	commentColumns = `id, post_id, user_id, parent_id, content, created_at`
)

func marshalImages(images []string) ([]byte, error) {
	if images == nil {
		images = []string{}
	}
	return json.Marshal(images)
}

func replacePostTags(ctx context.Context, tx *sqlx.Tx, postID string, tagIDs []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM post_tags WHERE post_id = $1`, postID); err != nil {
		return err
	}
	for _, tagID := range tagIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO post_tags (post_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING
		`, postID, tagID); err != nil {
			return translate("tag", tagID, err)
		}
	}
	return nil
}

// attachTags fills TagIDs for the given posts in a single query.
func (s *Store) attachTags(ctx context.Context, posts []showcase.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]string, len(posts))
	index := make(map[string]int, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
		index[p.ID] = i
	}
	var rows []struct {
		PostID string `db:"post_id"`
		TagID  string `db:"tag_id"`
	}
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT post_id, tag_id FROM post_tags WHERE post_id = ANY($1) ORDER BY tag_id
	`, pq.Array(ids)); err != nil {
		return err
	}
	for _, r := range rows {
		i := index[r.PostID]
		posts[i].TagIDs = append(posts[i].TagIDs, r.TagID)
	}
	return nil
}

// --- Posts ------------------------------------------------------------------

func (s *Store) CreatePost(ctx context.Context, p showcase.Post) (showcase.Post, error) {
	if p.ID == "" {
		p.ID = s.id()
	}
	now := s.now()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.Views, p.LikeCount, p.CommentCount, p.Liked = 0, 0, 0, false

	images, err := marshalImages(p.Images)
	if err != nil {
		return showcase.Post{}, err
	}
	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO posts (id, user_id, title, content, images, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, p.ID, p.UserID, p.Title, p.Content, images, p.CreatedAt, p.UpdatedAt); err != nil {
			return translate("post", p.ID, err)
		}
		return replacePostTags(ctx, tx, p.ID, p.TagIDs)
	})
	if err != nil {
		return showcase.Post{}, err
	}
	return p, nil
}

func (s *Store) UpdatePost(ctx context.Context, p showcase.Post) (showcase.Post, error) {
	images, err := marshalImages(p.Images)
	if err != nil {
		return showcase.Post{}, err
	}
	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE posts SET title = $2, content = $3, images = $4, updated_at = $5 WHERE id = $1
		`, p.ID, p.Title, p.Content, images, s.now())
		if err != nil {
			return translate("post", p.ID, err)
		}
		if err := requireAffected(res, "post", p.ID); err != nil {
			return err
		}
		return replacePostTags(ctx, tx, p.ID, p.TagIDs)
	})
	if err != nil {
		return showcase.Post{}, err
	}
	return s.GetPost(ctx, p.ID)
}

func (s *Store) GetPost(ctx context.Context, id string) (showcase.Post, error) {
	var row postRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id); err != nil {
		return showcase.Post{}, translate("post", id, err)
	}
	p, err := row.toDomain()
	if err != nil {
		return showcase.Post{}, err
	}
	posts := []showcase.Post{p}
	if err := s.attachTags(ctx, posts); err != nil {
		return showcase.Post{}, err
	}
	return posts[0], nil
}

func (s *Store) ListPosts(ctx context.Context, filter showcase.PostFilter, req page.Request) ([]showcase.Post, int, error) {
	req = req.Normalize()
	const where = `
		WHERE ($1 = '' OR id IN (SELECT post_id FROM post_tags WHERE tag_id = $1))
		  AND ($2 = '' OR user_id = $2)
		  AND ($3 = '' OR title ILIKE '%' || $3 || '%' OR content ILIKE '%' || $3 || '%')`
	args := []interface{}{filter.TagID, filter.AuthorID, filter.Query}

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM posts`+where, args...); err != nil {
		return nil, 0, err
	}
	var rows []postRow
	err := s.db.SelectContext(ctx, &rows, `SELECT `+postColumns+` FROM posts`+where+`
		ORDER BY
			CASE WHEN $4 = 'hot' THEN like_count * 3 + comment_count * 2 + views / 10.0 END DESC NULLS LAST,
			created_at DESC
		LIMIT $5 OFFSET $6`, append(args, string(filter.Sort), req.Size, req.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	out := make([]showcase.Post, 0, len(rows))
	for _, r := range rows {
		p, err := r.toDomain()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	if err := s.attachTags(ctx, out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *Store) DeletePost(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return translate("post", id, err)
	}
	return requireAffected(res, "post", id)
}

func (s *Store) IncrementViews(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE posts SET views = views + 1 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res, "post", id)
}

// --- Comments ---------------------------------------------------------------

func (s *Store) CreateComment(ctx context.Context, c showcase.Comment) (showcase.Comment, error) {
	if c.ID == "" {
		c.ID = s.id()
	}
	c.CreatedAt = s.now()

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var postID string
		if err := tx.GetContext(ctx, &postID, `SELECT id FROM posts WHERE id = $1 FOR UPDATE`, c.PostID); err != nil {
			return translate("post", c.PostID, err)
		}
		if c.ParentID != "" {
			var parentPost string
			err := tx.GetContext(ctx, &parentPost, `SELECT post_id FROM comments WHERE id = $1`, c.ParentID)
			if err != nil {
				return translate("comment", c.ParentID, err)
			}
			if parentPost != c.PostID {
				return fmt.Errorf("comment %s: %w", c.ParentID, storage.ErrNotFound)
			}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO comments (id, post_id, user_id, parent_id, content, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, c.ID, c.PostID, c.UserID, nullString(c.ParentID), c.Content, c.CreatedAt); err != nil {
			return translate("comment", c.ID, err)
		}
		_, err := tx.ExecContext(ctx, `UPDATE posts SET comment_count = comment_count + 1 WHERE id = $1`, c.PostID)
		return err
	})
	if err != nil {
		return showcase.Comment{}, err
	}
	return c, nil
}

func (s *Store) GetComment(ctx context.Context, id string) (showcase.Comment, error) {
	var row commentRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id); err != nil {
		return showcase.Comment{}, translate("comment", id, err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListComments(ctx context.Context, postID string, req page.Request) ([]showcase.Comment, int, error) {
	req = req.Normalize()
	var exists bool
	if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM posts WHERE id = $1)`, postID); err != nil {
		return nil, 0, err
	}
	if !exists {
		return nil, 0, fmt.Errorf("post %s: %w", postID, storage.ErrNotFound)
	}

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM comments WHERE post_id = $1`, postID); err != nil {
		return nil, 0, err
	}
	var rows []commentRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+commentColumns+` FROM comments WHERE post_id = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3`, postID, req.Size, req.Offset())
	if err != nil {
		return nil, 0, err
	}
	out := make([]showcase.Comment, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, total, nil
}

func (s *Store) DeleteComment(ctx context.Context, id string) (int, error) {
	var removed int
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var postID string
		if err := tx.GetContext(ctx, &postID, `SELECT post_id FROM comments WHERE id = $1`, id); err != nil {
			return translate("comment", id, err)
		}
		if err := tx.GetContext(ctx, &removed, `
			WITH RECURSIVE subtree AS (
				SELECT id FROM comments WHERE id = $1
				UNION ALL
				SELECT c.id FROM comments c JOIN subtree st ON c.parent_id = st.id
			)
			SELECT COUNT(*) FROM subtree
		`, id); err != nil {
			return err
		}
		// replies go with their parent via ON DELETE CASCADE
		if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE posts SET comment_count = GREATEST(comment_count - $2, 0) WHERE id = $1
		`, postID, removed)
		return err
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// --- Likes ------------------------------------------------------------------

func (s *Store) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	var liked bool
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var locked string
		if err := tx.GetContext(ctx, &locked, `SELECT id FROM posts WHERE id = $1 FOR UPDATE`, postID); err != nil {
			return translate("post", postID, err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2`, postID, userID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		delta := -1
		if n == 0 {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO post_likes (post_id, user_id, created_at) VALUES ($1, $2, $3)
			`, postID, userID, s.now()); err != nil {
				return translate("user", userID, err)
			}
			delta = 1
			liked = true
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE posts SET like_count = GREATEST(like_count + $2, 0) WHERE id = $1
		`, postID, delta)
		return err
	})
	return liked, err
}

func (s *Store) LikedPosts(ctx context.Context, userID string, postIDs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(postIDs))
	if userID == "" || len(postIDs) == 0 {
		return out, nil
	}
	var liked []string
	if err := s.db.SelectContext(ctx, &liked, `
		SELECT post_id FROM post_likes WHERE user_id = $1 AND post_id = ANY($2)
	`, userID, pq.Array(postIDs)); err != nil {
		return nil, err
	}
	for _, id := range liked {
		out[id] = true
	}
	return out, nil
}

// --- Tags -------------------------------------------------------------------

func (s *Store) CreateTag(ctx context.Context, t showcase.Tag) (showcase.Tag, error) {
	if t.ID == "" {
		t.ID = s.id()
	}
	t.CreatedAt = s.now()
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO tags (id, name, created_at) VALUES ($1, $2, $3)
	`, t.ID, t.Name, t.CreatedAt); err != nil {
		return showcase.Tag{}, translate("tag", t.Name, err)
	}
	return t, nil
}

func (s *Store) ListTags(ctx context.Context) ([]showcase.Tag, error) {
	var rows []tagRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT id, name, created_at FROM tags ORDER BY LOWER(name)`); err != nil {
		return nil, err
	}
	return tagsFromRows(rows), nil
}

func (s *Store) GetTags(ctx context.Context, ids []string) ([]showcase.Tag, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []tagRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT id, name, created_at FROM tags WHERE id = ANY($1) ORDER BY LOWER(name)
	`, pq.Array(ids)); err != nil {
		return nil, err
	}
	return tagsFromRows(rows), nil
}

func (s *Store) DeleteTag(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tags WHERE id = $1`, id)
	if err != nil {
		return translate("tag", id, err)
	}
	return requireAffected(res, "tag", id)
}

func tagsFromRows(rows []tagRow) []showcase.Tag {
	out := make([]showcase.Tag, 0, len(rows))
	for _, r := range rows {
		out = append(out, showcase.Tag{ID: r.ID, Name: r.Name, CreatedAt: r.CreatedAt.UTC()})
	}
	return out
}
