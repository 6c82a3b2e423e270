package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/page"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/showcase"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/storage"
)

// ShowcaseStore implementation ------------------------------------------------

func (s *Store) CreatePost(_ context.Context, p showcase.Post) (showcase.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = s.nextIDLocked()
	}
	now := s.timestampLocked()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.Liked = false
	p.Images = cloneStrings(p.Images)
	p.TagIDs = cloneStrings(p.TagIDs)
	s.posts[p.ID] = p
	return clonePost(p), nil
}

func (s *Store) UpdatePost(_ context.Context, p showcase.Post) (showcase.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.posts[p.ID]
	if !ok {
		return showcase.Post{}, notFound("post", p.ID)
	}
	original.Title = p.Title
	original.Content = p.Content
	original.Images = cloneStrings(p.Images)
	original.TagIDs = cloneStrings(p.TagIDs)
	original.UpdatedAt = s.now()
	s.posts[p.ID] = original
	return clonePost(original), nil
}

func (s *Store) GetPost(_ context.Context, id string) (showcase.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[id]
	if !ok {
		return showcase.Post{}, notFound("post", id)
	}
	return clonePost(p), nil
}

func (s *Store) ListPosts(_ context.Context, filter showcase.PostFilter, req page.Request) ([]showcase.Post, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(filter.Query))
	var matched []showcase.Post
	for _, p := range s.posts {
		if filter.AuthorID != "" && p.UserID != filter.AuthorID {
			continue
		}
		if filter.TagID != "" && !containsString(p.TagIDs, filter.TagID) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(p.Title), q) && !strings.Contains(strings.ToLower(p.Content), q) {
			continue
		}
		matched = append(matched, clonePost(p))
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if filter.Sort == showcase.SortHot {
			if sa, sb := a.HotScore(), b.HotScore(); sa != sb {
				return sa > sb
			}
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	res := page.Slice(matched, req)
	return res.Items, res.Total, nil
}

func (s *Store) DeletePost(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[id]; !ok {
		return notFound("post", id)
	}
	delete(s.posts, id)
	delete(s.likes, id)
	for cid, c := range s.comments {
		if c.PostID == id {
			delete(s.comments, cid)
		}
	}
	return nil
}

func (s *Store) IncrementViews(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok {
		return notFound("post", id)
	}
	p.Views++
	s.posts[id] = p
	return nil
}

func (s *Store) CreateComment(_ context.Context, c showcase.Comment) (showcase.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[c.PostID]
	if !ok {
		return showcase.Comment{}, notFound("post", c.PostID)
	}
	if c.ParentID != "" {
		parent, ok := s.comments[c.ParentID]
		if !ok || parent.PostID != c.PostID {
			return showcase.Comment{}, notFound("comment", c.ParentID)
		}
	}
	if c.ID == "" {
		c.ID = s.nextIDLocked()
	}
	c.CreatedAt = s.timestampLocked()
	s.comments[c.ID] = c

	p.CommentCount++
	s.posts[p.ID] = p
	return c, nil
}

func (s *Store) GetComment(_ context.Context, id string) (showcase.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.comments[id]
	if !ok {
		return showcase.Comment{}, notFound("comment", id)
	}
	return c, nil
}

func (s *Store) ListComments(_ context.Context, postID string, req page.Request) ([]showcase.Comment, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.posts[postID]; !ok {
		return nil, 0, notFound("post", postID)
	}
	var matched []showcase.Comment
	for _, c := range s.comments {
		if c.PostID == postID {
			matched = append(matched, c)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.Before(matched[j].CreatedAt) })
	res := page.Slice(matched, req)
	return res.Items, res.Total, nil
}

func (s *Store) DeleteComment(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	root, ok := s.comments[id]
	if !ok {
		return 0, notFound("comment", id)
	}

	// collect the whole reply subtree
	doomed := map[string]struct{}{id: {}}
	for grew := true; grew; {
		grew = false
		for cid, c := range s.comments {
			if _, seen := doomed[cid]; seen {
				continue
			}
			if _, parentDoomed := doomed[c.ParentID]; c.ParentID != "" && parentDoomed {
				doomed[cid] = struct{}{}
				grew = true
			}
		}
	}
	for cid := range doomed {
		delete(s.comments, cid)
	}
	if p, ok := s.posts[root.PostID]; ok {
		p.CommentCount -= len(doomed)
		if p.CommentCount < 0 {
			p.CommentCount = 0
		}
		s.posts[p.ID] = p
	}
	return len(doomed), nil
}

func (s *Store) ToggleLike(_ context.Context, postID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[postID]
	if !ok {
		return false, notFound("post", postID)
	}
	likers, ok := s.likes[postID]
	if !ok {
		likers = make(map[string]struct{})
		s.likes[postID] = likers
	}
	var liked bool
	if _, exists := likers[userID]; exists {
		delete(likers, userID)
		p.LikeCount--
	} else {
		likers[userID] = struct{}{}
		p.LikeCount++
		liked = true
	}
	s.posts[postID] = p
	return liked, nil
}

func (s *Store) LikedPosts(_ context.Context, userID string, postIDs []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]bool, len(postIDs))
	for _, id := range postIDs {
		if _, ok := s.likes[id][userID]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func (s *Store) CreateTag(_ context.Context, t showcase.Tag) (showcase.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.tags {
		if strings.EqualFold(existing.Name, t.Name) {
			return showcase.Tag{}, fmt.Errorf("tag %s: %w", t.Name, storage.ErrConflict)
		}
	}
	if t.ID == "" {
		t.ID = s.nextIDLocked()
	}
	t.CreatedAt = s.timestampLocked()
	s.tags[t.ID] = t
	return t, nil
}

func (s *Store) ListTags(_ context.Context) ([]showcase.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]showcase.Tag, 0, len(s.tags))
	for _, t := range s.tags {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out, nil
}

func (s *Store) GetTags(_ context.Context, ids []string) ([]showcase.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]showcase.Tag, 0, len(ids))
	for _, id := range ids {
		t, ok := s.tags[id]
		if !ok {
			return nil, notFound("tag", id)
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Store) DeleteTag(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tags[id]; !ok {
		return notFound("tag", id)
	}
	delete(s.tags, id)
	for pid, p := range s.posts {
		if containsString(p.TagIDs, id) {
			p.TagIDs = removeString(p.TagIDs, id)
			s.posts[pid] = p
		}
	}
	return nil
}

func clonePost(p showcase.Post) showcase.Post {
	p.Images = cloneStrings(p.Images)
	p.TagIDs = cloneStrings(p.TagIDs)
	return p
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func removeString(list []string, v string) []string {
	out := list[:0:0]
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
