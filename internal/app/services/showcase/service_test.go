package showcase

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/page"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/showcase"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/user"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/notify"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/storage/memory"
	apperrors "github.com/Aromatic05/CurioBox-sub000/internal/errors"
	"github.com/Aromatic05/CurioBox-sub000/pkg/testutil"
)

type fixture struct {
	svc   *Service
	store *memory.Store
	notes *testutil.Notifications
	alice Actor
	bob   Actor
	admin Actor
	tag   showcase.Tag
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	notes := &testutil.Notifications{}

	mk := func(name string, role user.Role) Actor {
		u, err := store.CreateUser(ctx, user.User{Username: name, Nickname: strings.ToUpper(name), Role: role, Status: user.StatusActive})
		require.NoError(t, err)
		return Actor{UserID: u.ID, Admin: role == user.RoleAdmin}
	}
	f := fixture{
		store: store,
		notes: notes,
		alice: mk("alice", user.RoleUser),
		bob:   mk("bob", user.RoleUser),
		admin: mk("root", user.RoleAdmin),
	}
	f.svc = New(store, store, notes, nil)
	tag, err := f.svc.CreateTag(ctx, "Forest")
	require.NoError(t, err)
	f.tag = tag
	return f
}

func (f fixture) post(t *testing.T, author Actor, title string) PostView {
	t.Helper()
	p, err := f.svc.CreatePost(context.Background(), author, PostInput{Title: title, Content: "look", TagIDs: []string{f.tag.ID}})
	require.NoError(t, err)
	return p
}

func TestCreatePostValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		input PostInput
	}{
		{"empty title", PostInput{Title: "   "}},
		{"long title", PostInput{Title: strings.Repeat("x", maxTitleLen+1)}},
		{"long content", PostInput{Title: "ok", Content: strings.Repeat("x", maxContentLen+1)}},
		{"too many images", PostInput{Title: "ok", Images: make([]string, maxImages+1)}},
		{"blank image", PostInput{Title: "ok", Images: []string{" "}}},
		{"unknown tag", PostInput{Title: "ok", TagIDs: []string{"nope"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreatePost(ctx, f.alice, tc.input)
			require.Error(t, err)
			assert.Equal(t, 400, apperrors.HTTPStatus(err))
		})
	}
}

func TestCreateAndGetPost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.post(t, f.alice, "My first fox")
	require.NotNil(t, created.Author)
	assert.Equal(t, "ALICE", created.Author.Nickname)
	require.Len(t, created.Tags, 1)
	assert.Equal(t, "Forest", created.Tags[0].Name)
	assert.Equal(t, []string{}, created.Images)

	got, err := f.svc.GetPost(ctx, created.ID, f.bob.UserID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Views)
	assert.False(t, got.Liked)

	_, err = f.svc.GetPost(ctx, "missing", "")
	assert.Equal(t, 404, apperrors.HTTPStatus(err))
}

func TestUpdateAndDeleteRequireOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.post(t, f.alice, "Mine")

	title := "Stolen"
	_, err := f.svc.UpdatePost(ctx, f.bob, p.ID, PostPatch{Title: &title})
	assert.Equal(t, 403, apperrors.HTTPStatus(err))
	assert.Equal(t, 403, apperrors.HTTPStatus(f.svc.DeletePost(ctx, f.bob, p.ID)))

	title = "Edited"
	none := []string{}
	updated, err := f.svc.UpdatePost(ctx, f.alice, p.ID, PostPatch{Title: &title, TagIDs: &none})
	require.NoError(t, err)
	assert.Equal(t, "Edited", updated.Title)
	assert.Empty(t, updated.Tags)

	require.NoError(t, f.svc.DeletePost(ctx, f.admin, p.ID))
	_, err = f.svc.GetPost(ctx, p.ID, "")
	assert.Equal(t, 404, apperrors.HTTPStatus(err))
}

func TestListPostsFiltersAndSorts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	quiet := f.post(t, f.alice, "Quiet owl")
	loud := f.post(t, f.bob, "Loud fox")
	_, err := f.svc.CreatePost(ctx, f.bob, PostInput{Title: "Untagged"})
	require.NoError(t, err)
	_, err = f.svc.ToggleLike(ctx, f.alice, loud.ID)
	require.NoError(t, err)

	res, err := f.svc.ListPosts(ctx, showcase.PostFilter{Sort: showcase.SortHot}, page.Request{}, f.alice.UserID)
	require.NoError(t, err)
	require.Equal(t, 3, res.Total)
	assert.Equal(t, loud.ID, res.Items[0].ID)
	assert.True(t, res.Items[0].Liked)

	res, err = f.svc.ListPosts(ctx, showcase.PostFilter{TagID: f.tag.ID}, page.Request{}, "")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)

	res, err = f.svc.ListPosts(ctx, showcase.PostFilter{AuthorID: f.alice.UserID}, page.Request{}, "")
	require.NoError(t, err)
	require.Equal(t, 1, res.Total)
	assert.Equal(t, quiet.ID, res.Items[0].ID)

	res, err = f.svc.ListPosts(ctx, showcase.PostFilter{Query: " owl "}, page.Request{}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)

	_, err = f.svc.ListPosts(ctx, showcase.PostFilter{Sort: "random"}, page.Request{}, "")
	assert.Equal(t, 400, apperrors.HTTPStatus(err))
}

func TestCommentsNotifyAuthors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.post(t, f.alice, "Hidden owl!")

	top, err := f.svc.CreateComment(ctx, f.bob, p.ID, "", "congrats")
	require.NoError(t, err)
	assert.Equal(t, "BOB", top.Author.Nickname)

	// alice replies to bob on her own post: bob hears about the reply only.
	_, err = f.svc.CreateComment(ctx, f.alice, p.ID, top.ID, "thanks")
	require.NoError(t, err)

	assert.Equal(t, []testutil.Notification{
		{UserID: f.alice.UserID, Type: notify.EventComment},
		{UserID: f.bob.UserID, Type: notify.EventReply},
	}, f.notes.All())

	got, err := f.svc.GetPost(ctx, p.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 2, got.CommentCount)
}

func TestCommentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.post(t, f.alice, "One")
	other := f.post(t, f.alice, "Two")
	c, err := f.svc.CreateComment(ctx, f.bob, other.ID, "", "hi")
	require.NoError(t, err)

	_, err = f.svc.CreateComment(ctx, f.bob, p.ID, "", "  ")
	assert.Equal(t, 400, apperrors.HTTPStatus(err))
	_, err = f.svc.CreateComment(ctx, f.bob, p.ID, c.ID, "cross-post reply")
	assert.Equal(t, 404, apperrors.HTTPStatus(err))
	_, err = f.svc.CreateComment(ctx, f.bob, "missing", "", "hello")
	assert.Equal(t, 404, apperrors.HTTPStatus(err))
}

func TestDeleteCommentRemovesReplies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.post(t, f.alice, "Thread")

	root, err := f.svc.CreateComment(ctx, f.bob, p.ID, "", "root")
	require.NoError(t, err)
	reply, err := f.svc.CreateComment(ctx, f.alice, p.ID, root.ID, "reply")
	require.NoError(t, err)
	_, err = f.svc.CreateComment(ctx, f.bob, p.ID, reply.ID, "nested")
	require.NoError(t, err)
	_, err = f.svc.CreateComment(ctx, f.alice, p.ID, "", "sibling")
	require.NoError(t, err)

	_, err = f.svc.DeleteComment(ctx, f.alice, root.ID)
	assert.Equal(t, 403, apperrors.HTTPStatus(err))

	removed, err := f.svc.DeleteComment(ctx, f.bob, root.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	res, err := f.svc.ListComments(ctx, p.ID, page.Request{})
	require.NoError(t, err)
	require.Equal(t, 1, res.Total)
	assert.Equal(t, "sibling", res.Items[0].Content)

	got, err := f.svc.GetPost(ctx, p.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 1, got.CommentCount)
}

func TestToggleLike(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.post(t, f.alice, "Like me")

	res, err := f.svc.ToggleLike(ctx, f.bob, p.ID)
	require.NoError(t, err)
	assert.Equal(t, LikeResult{Liked: true, LikeCount: 1}, res)

	res, err = f.svc.ToggleLike(ctx, f.bob, p.ID)
	require.NoError(t, err)
	assert.Equal(t, LikeResult{Liked: false, LikeCount: 0}, res)

	// self likes count but never notify.
	_, err = f.svc.ToggleLike(ctx, f.alice, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []testutil.Notification{{UserID: f.alice.UserID, Type: notify.EventLike}}, f.notes.All())

	_, err = f.svc.ToggleLike(ctx, f.bob, "missing")
	assert.Equal(t, 404, apperrors.HTTPStatus(err))
}

func TestTags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateTag(ctx, "forest")
	assert.Equal(t, 409, apperrors.HTTPStatus(err))
	_, err = f.svc.CreateTag(ctx, "")
	assert.Equal(t, 400, apperrors.HTTPStatus(err))

	p := f.post(t, f.alice, "Tagged")
	require.NoError(t, f.svc.DeleteTag(ctx, f.tag.ID))

	got, err := f.svc.GetPost(ctx, p.ID, "")
	require.NoError(t, err)
	assert.Empty(t, got.Tags)

	tags, err := f.svc.ListTags(ctx)
	require.NoError(t, err)
	assert.Empty(t, tags)
	assert.Equal(t, 404, apperrors.HTTPStatus(f.svc.DeleteTag(ctx, "missing")))
}
