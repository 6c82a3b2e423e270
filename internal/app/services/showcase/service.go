package showcase

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/page"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/showcase"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/user"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/metrics"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/notify"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/storage"
	apperrors "github.com/Aromatic05/CurioBox-sub000/internal/errors"
	"github.com/Aromatic05/CurioBox-sub000/pkg/logger"
)

const (
	maxTitleLen   = 100
	maxContentLen = 5000
	maxCommentLen = 1000
	maxImages     = 9
	maxImageURL   = 512
	maxTagLen     = 30
)

// Notifier delivers events to a user.
type Notifier interface {
	Publish(userID string, ev notify.Event)
}

// Actor is the authenticated caller.
type Actor struct {
	UserID string
	Admin  bool
}

func (a Actor) canModify(ownerID string) bool {
	return a.Admin || (a.UserID != "" && a.UserID == ownerID)
}

// PostInput describes a new post.
type PostInput struct {
	Title   string
	Content string
	Images  []string
	TagIDs  []string
}

// PostPatch carries the optional fields of a post edit.
type PostPatch struct {
	Title   *string
	Content *string
	Images  *[]string
	TagIDs  *[]string
}

// Author is the public face of a post or comment writer.
type Author struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar,omitempty"`
}

// PostView is a post enriched for the feed.
type PostView struct {
	showcase.Post
	Author *Author        `json:"author,omitempty"`
	Tags   []showcase.Tag `json:"tags"`
}

// CommentView is a comment with its author.
type CommentView struct {
	showcase.Comment
	Author *Author `json:"author,omitempty"`
}

// LikeResult reports the state after a like toggle.
type LikeResult struct {
	Liked     bool `json:"liked"`
	LikeCount int  `json:"like_count"`
}

// Service runs the showcase feed.
type Service struct {
	store    storage.ShowcaseStore
	users    storage.UserStore
	notifier Notifier
	log      *logger.Logger
}

// New constructs a showcase service. notifier may be nil.
func New(store storage.ShowcaseStore, users storage.UserStore, notifier Notifier, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("showcase")
	}
	return &Service{store: store, users: users, notifier: notifier, log: log}
}

// --- Posts ------------------------------------------------------------------

// CreatePost publishes a post by actor.
func (s *Service) CreatePost(ctx context.Context, actor Actor, in PostInput) (PostView, error) {
	post := showcase.Post{
		UserID:  actor.UserID,
		Title:   strings.TrimSpace(in.Title),
		Content: strings.TrimSpace(in.Content),
		Images:  in.Images,
		TagIDs:  dedupe(in.TagIDs),
	}
	if err := s.validatePost(ctx, post); err != nil {
		return PostView{}, err
	}
	created, err := s.store.CreatePost(ctx, post)
	if err != nil {
		return PostView{}, storage.Translate("post", "", err)
	}
	metrics.RecordShowcaseEvent("post")
	s.log.WithFields(logrus.Fields{"post_id": created.ID, "user_id": actor.UserID}).Info("post created")
	return s.view(ctx, created, actor.UserID)
}

// GetPost returns a post and counts the view.
func (s *Service) GetPost(ctx context.Context, id, viewerID string) (PostView, error) {
	if err := s.store.IncrementViews(ctx, id); err != nil {
		return PostView{}, storage.Translate("post", id, err)
	}
	post, err := s.store.GetPost(ctx, id)
	if err != nil {
		return PostView{}, storage.Translate("post", id, err)
	}
	return s.view(ctx, post, viewerID)
}

// UpdatePost edits a post. Only its author or an admin may do so.
func (s *Service) UpdatePost(ctx context.Context, actor Actor, id string, patch PostPatch) (PostView, error) {
	post, err := s.store.GetPost(ctx, id)
	if err != nil {
		return PostView{}, storage.Translate("post", id, err)
	}
	if !actor.canModify(post.UserID) {
		return PostView{}, apperrors.Forbidden("only the author can edit this post")
	}
	if patch.Title != nil {
		post.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Content != nil {
		post.Content = strings.TrimSpace(*patch.Content)
	}
	if patch.Images != nil {
		post.Images = *patch.Images
	}
	if patch.TagIDs != nil {
		post.TagIDs = dedupe(*patch.TagIDs)
	}
	if err := s.validatePost(ctx, post); err != nil {
		return PostView{}, err
	}
	updated, err := s.store.UpdatePost(ctx, post)
	if err != nil {
		return PostView{}, storage.Translate("post", id, err)
	}
	return s.view(ctx, updated, actor.UserID)
}

// DeletePost removes a post with its comments and likes.
func (s *Service) DeletePost(ctx context.Context, actor Actor, id string) error {
	post, err := s.store.GetPost(ctx, id)
	if err != nil {
		return storage.Translate("post", id, err)
	}
	if !actor.canModify(post.UserID) {
		return apperrors.Forbidden("only the author can delete this post")
	}
	if err := s.store.DeletePost(ctx, id); err != nil {
		return storage.Translate("post", id, err)
	}
	s.log.WithFields(logrus.Fields{"post_id": id, "actor": actor.UserID}).Info("post deleted")
	return nil
}

// ListPosts pages through the feed.
func (s *Service) ListPosts(ctx context.Context, filter showcase.PostFilter, req page.Request, viewerID string) (page.Result[PostView], error) {
	switch filter.Sort {
	case "":
		filter.Sort = showcase.SortLatest
	case showcase.SortLatest, showcase.SortHot:
	default:
		return page.Result[PostView]{}, apperrors.InvalidFormat("sort", "must be latest or hot")
	}
	filter.Query = strings.TrimSpace(filter.Query)

	posts, total, err := s.store.ListPosts(ctx, filter, req)
	if err != nil {
		return page.Result[PostView]{}, storage.Translate("posts", "", err)
	}
	views, err := s.views(ctx, posts, viewerID)
	if err != nil {
		return page.Result[PostView]{}, err
	}
	return page.NewResult(views, total, req), nil
}

// --- Comments ---------------------------------------------------------------

// CreateComment adds a comment, optionally replying to parentID.
func (s *Service) CreateComment(ctx context.Context, actor Actor, postID, parentID, content string) (CommentView, error) {
	content = strings.TrimSpace(content)
	if n := utf8.RuneCountInString(content); n == 0 || n > maxCommentLen {
		return CommentView{}, apperrors.InvalidFormat("content", fmt.Sprintf("1-%d characters", maxCommentLen))
	}
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return CommentView{}, storage.Translate("post", postID, err)
	}
	var parent showcase.Comment
	if parentID != "" {
		parent, err = s.store.GetComment(ctx, parentID)
		if err != nil || parent.PostID != postID {
			return CommentView{}, apperrors.NotFound("parent comment", parentID)
		}
	}

	created, err := s.store.CreateComment(ctx, showcase.Comment{
		PostID:   postID,
		UserID:   actor.UserID,
		ParentID: parentID,
		Content:  content,
	})
	if err != nil {
		return CommentView{}, storage.Translate("comment", parentID, err)
	}
	metrics.RecordShowcaseEvent("comment")

	payload := map[string]string{"post_id": postID, "comment_id": created.ID, "user_id": actor.UserID}
	if post.UserID != actor.UserID {
		s.notify(post.UserID, notify.EventComment, payload)
	}
	if parentID != "" && parent.UserID != actor.UserID && parent.UserID != post.UserID {
		s.notify(parent.UserID, notify.EventReply, payload)
	}

	authors := s.authors(ctx, []string{actor.UserID})
	return CommentView{Comment: created, Author: authors[actor.UserID]}, nil
}

// ListComments pages through a post's comments, oldest first.
func (s *Service) ListComments(ctx context.Context, postID string, req page.Request) (page.Result[CommentView], error) {
	comments, total, err := s.store.ListComments(ctx, postID, req)
	if err != nil {
		return page.Result[CommentView]{}, storage.Translate("post", postID, err)
	}
	ids := make([]string, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.UserID)
	}
	authors := s.authors(ctx, ids)
	views := make([]CommentView, 0, len(comments))
	for _, c := range comments {
		views = append(views, CommentView{Comment: c, Author: authors[c.UserID]})
	}
	return page.NewResult(views, total, req), nil
}

// DeleteComment removes a comment and its replies.
func (s *Service) DeleteComment(ctx context.Context, actor Actor, id string) (int, error) {
	c, err := s.store.GetComment(ctx, id)
	if err != nil {
		return 0, storage.Translate("comment", id, err)
	}
	if !actor.canModify(c.UserID) {
		return 0, apperrors.Forbidden("only the author can delete this comment")
	}
	removed, err := s.store.DeleteComment(ctx, id)
	if err != nil {
		return 0, storage.Translate("comment", id, err)
	}
	return removed, nil
}

// --- Likes ------------------------------------------------------------------

// ToggleLike likes or unlikes a post for actor.
func (s *Service) ToggleLike(ctx context.Context, actor Actor, postID string) (LikeResult, error) {
	liked, err := s.store.ToggleLike(ctx, postID, actor.UserID)
	if err != nil {
		return LikeResult{}, storage.Translate("post", postID, err)
	}
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return LikeResult{}, storage.Translate("post", postID, err)
	}
	if liked {
		metrics.RecordShowcaseEvent("like")
		if post.UserID != actor.UserID {
			s.notify(post.UserID, notify.EventLike, map[string]string{"post_id": postID, "user_id": actor.UserID})
		}
	}
	return LikeResult{Liked: liked, LikeCount: post.LikeCount}, nil
}

// --- Tags -------------------------------------------------------------------

// ListTags returns every tag by name.
func (s *Service) ListTags(ctx context.Context) ([]showcase.Tag, error) {
	tags, err := s.store.ListTags(ctx)
	if err != nil {
		return nil, storage.Translate("tags", "", err)
	}
	if tags == nil {
		tags = []showcase.Tag{}
	}
	return tags, nil
}

// CreateTag adds a tag; names are unique regardless of case.
func (s *Service) CreateTag(ctx context.Context, name string) (showcase.Tag, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n == 0 || n > maxTagLen {
		return showcase.Tag{}, apperrors.InvalidFormat("name", fmt.Sprintf("1-%d characters", maxTagLen))
	}
	tag, err := s.store.CreateTag(ctx, showcase.Tag{Name: name})
	if err != nil {
		if storage.IsConflict(err) {
			return showcase.Tag{}, apperrors.Conflict("tag already exists")
		}
		return showcase.Tag{}, storage.Translate("tag", name, err)
	}
	return tag, nil
}

// DeleteTag removes a tag and detaches it from posts.
func (s *Service) DeleteTag(ctx context.Context, id string) error {
	return storage.Translate("tag", id, s.store.DeleteTag(ctx, id))
}

// --- helpers ----------------------------------------------------------------

func (s *Service) validatePost(ctx context.Context, p showcase.Post) error {
	if n := utf8.RuneCountInString(p.Title); n == 0 || n > maxTitleLen {
		return apperrors.InvalidFormat("title", fmt.Sprintf("1-%d characters", maxTitleLen))
	}
	if utf8.RuneCountInString(p.Content) > maxContentLen {
		return apperrors.InvalidFormat("content", fmt.Sprintf("at most %d characters", maxContentLen))
	}
	if len(p.Images) > maxImages {
		return apperrors.InvalidFormat("images", fmt.Sprintf("at most %d images", maxImages))
	}
	for _, img := range p.Images {
		if strings.TrimSpace(img) == "" || len(img) > maxImageURL {
			return apperrors.InvalidFormat("images", "invalid image URL")
		}
	}
	if len(p.TagIDs) > 0 {
		tags, err := s.store.GetTags(ctx, p.TagIDs)
		if storage.IsNotFound(err) {
			return apperrors.InvalidFormat("tag_ids", "unknown tag")
		}
		if err != nil {
			return storage.Translate("tags", "", err)
		}
		if len(tags) != len(p.TagIDs) {
			return apperrors.InvalidFormat("tag_ids", "unknown tag")
		}
	}
	return nil
}

func (s *Service) view(ctx context.Context, p showcase.Post, viewerID string) (PostView, error) {
	views, err := s.views(ctx, []showcase.Post{p}, viewerID)
	if err != nil {
		return PostView{}, err
	}
	return views[0], nil
}

func (s *Service) views(ctx context.Context, posts []showcase.Post, viewerID string) ([]PostView, error) {
	postIDs := make([]string, 0, len(posts))
	userIDs := make([]string, 0, len(posts))
	tagSet := make(map[string]struct{})
	for _, p := range posts {
		postIDs = append(postIDs, p.ID)
		userIDs = append(userIDs, p.UserID)
		for _, t := range p.TagIDs {
			tagSet[t] = struct{}{}
		}
	}

	liked := map[string]bool{}
	if viewerID != "" && len(postIDs) > 0 {
		var err error
		if liked, err = s.store.LikedPosts(ctx, viewerID, postIDs); err != nil {
			return nil, storage.Translate("likes", viewerID, err)
		}
	}
	tagIndex := map[string]showcase.Tag{}
	if len(tagSet) > 0 {
		ids := make([]string, 0, len(tagSet))
		for id := range tagSet {
			ids = append(ids, id)
		}
		tags, err := s.store.GetTags(ctx, ids)
		if err != nil && !storage.IsNotFound(err) {
			return nil, storage.Translate("tags", "", err)
		}
		for _, t := range tags {
			tagIndex[t.ID] = t
		}
	}
	authors := s.authors(ctx, userIDs)

	out := make([]PostView, 0, len(posts))
	for _, p := range posts {
		p.Liked = liked[p.ID]
		if p.Images == nil {
			p.Images = []string{}
		}
		if p.TagIDs == nil {
			p.TagIDs = []string{}
		}
		v := PostView{Post: p, Author: authors[p.UserID], Tags: []showcase.Tag{}}
		for _, id := range p.TagIDs {
			if t, ok := tagIndex[id]; ok {
				v.Tags = append(v.Tags, t)
			}
		}
		out = append(out, v)
	}
	return out, nil
}

// authors resolves display info; lookup failures leave the author unset.
func (s *Service) authors(ctx context.Context, ids []string) map[string]*Author {
	out := make(map[string]*Author, len(ids))
	if s.users == nil {
		return out
	}
	for _, id := range ids {
		if _, done := out[id]; done || id == "" {
			continue
		}
		u, err := s.users.GetUser(ctx, id)
		if err != nil {
			out[id] = nil
			continue
		}
		out[id] = authorOf(u)
	}
	return out
}

func authorOf(u user.User) *Author {
	return &Author{ID: u.ID, Nickname: u.Nickname, Avatar: u.Avatar}
}

func (s *Service) notify(userID, kind string, data interface{}) {
	if s.notifier == nil || userID == "" {
		return
	}
	s.notifier.Publish(userID, notify.Event{Type: kind, Data: data})
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
