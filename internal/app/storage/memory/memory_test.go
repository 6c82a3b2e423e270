package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/catalog"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/inventory"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/page"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/showcase"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/user"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/storage"
)

func seedBox(t *testing.T, s *Store, stock int, itemStock ...int) (user.User, catalog.Box, []catalog.Item) {
	t.Helper()
	ctx := context.Background()
	u, err := s.CreateUser(ctx, user.User{Username: "alice", Role: user.RoleUser, Status: user.StatusActive})
	require.NoError(t, err)
	box, err := s.CreateBox(ctx, catalog.Box{Name: "series 1", Price: 5900, Stock: stock, OnSale: true})
	require.NoError(t, err)

	var items []catalog.Item
	var table []catalog.BoxItem
	for i, n := range itemStock {
		item, err := s.CreateItem(ctx, catalog.Item{Name: "figure", Rarity: catalog.RarityCommon, Stock: n})
		require.NoError(t, err)
		items = append(items, item)
		table = append(table, catalog.BoxItem{ItemID: item.ID, Weight: float64(i + 1)})
	}
	require.NoError(t, s.SetBoxItems(ctx, box.ID, table))
	return u, box, items
}

func TestPurchaseDecrementsStock(t *testing.T) {
	s := New()
	u, box, _ := seedBox(t, s, 3, 1)
	ctx := context.Background()

	order, boxes, err := s.Purchase(ctx, inventory.PurchaseParams{UserID: u.ID, BoxID: box.ID, Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(11800), order.Total)
	assert.Len(t, boxes, 2)
	for _, ub := range boxes {
		assert.Equal(t, inventory.BoxUnopened, ub.Status)
		assert.Equal(t, order.ID, ub.OrderID)
	}

	got, err := s.GetBox(ctx, box.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Stock)

	_, _, err = s.Purchase(ctx, inventory.PurchaseParams{UserID: u.ID, BoxID: box.ID, Quantity: 2})
	assert.True(t, errors.Is(err, storage.ErrInsufficientStock))

	got, err = s.GetBox(ctx, box.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Stock, "failed purchase must not touch stock")
}

func TestPurchaseRejectsOffSaleBox(t *testing.T) {
	s := New()
	u, box, _ := seedBox(t, s, 3, 1)
	box.OnSale = false
	_, err := s.UpdateBox(context.Background(), box)
	require.NoError(t, err)

	_, _, err = s.Purchase(context.Background(), inventory.PurchaseParams{UserID: u.ID, BoxID: box.ID, Quantity: 1})
	assert.True(t, errors.Is(err, storage.ErrNotOnSale))
}

func TestOpenBoxDrawsAndDecrementsItem(t *testing.T) {
	s := New()
	u, box, items := seedBox(t, s, 2, 0, 4)
	ctx := context.Background()
	_, boxes, err := s.Purchase(ctx, inventory.PurchaseParams{UserID: u.ID, BoxID: box.ID, Quantity: 1})
	require.NoError(t, err)

	var seen []catalog.DrawEntry
	opened, err := s.OpenBox(ctx, u.ID, boxes[0].ID, func(entries []catalog.DrawEntry) (string, error) {
		seen = entries
		return entries[0].ItemID, nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 1, "sold out items are not offered")
	assert.Equal(t, items[1].ID, opened.ItemID)
	assert.Equal(t, inventory.BoxOpened, opened.Status)

	item, err := s.GetItem(ctx, items[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 3, item.Stock)

	_, err = s.OpenBox(ctx, u.ID, boxes[0].ID, func([]catalog.DrawEntry) (string, error) { return items[1].ID, nil })
	assert.True(t, errors.Is(err, storage.ErrAlreadyOpened))

	coll, err := s.Collection(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []inventory.CollectionEntry{{ItemID: items[1].ID, Count: 1}}, coll)
}

func TestOpenBoxRollsBackOnDrawError(t *testing.T) {
	s := New()
	u, box, _ := seedBox(t, s, 1, 5)
	ctx := context.Background()
	_, boxes, err := s.Purchase(ctx, inventory.PurchaseParams{UserID: u.ID, BoxID: box.ID, Quantity: 1})
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = s.OpenBox(ctx, u.ID, boxes[0].ID, func([]catalog.DrawEntry) (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)

	ub, err := s.GetUserBox(ctx, boxes[0].ID)
	require.NoError(t, err)
	assert.Equal(t, inventory.BoxUnopened, ub.Status)
}

func TestOpenBoxRequiresOwner(t *testing.T) {
	s := New()
	u, box, _ := seedBox(t, s, 1, 5)
	ctx := context.Background()
	_, boxes, err := s.Purchase(ctx, inventory.PurchaseParams{UserID: u.ID, BoxID: box.ID, Quantity: 1})
	require.NoError(t, err)

	_, err = s.OpenBox(ctx, "someone-else", boxes[0].ID, func(e []catalog.DrawEntry) (string, error) { return e[0].ItemID, nil })
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestPurchaseChargesStoredPrice(t *testing.T) {
	s := New()
	u, box, _ := seedBox(t, s, 3, 1)
	ctx := context.Background()
	box.Price = 7500
	_, err := s.UpdateBox(ctx, box)
	require.NoError(t, err)

	order, _, err := s.Purchase(ctx, inventory.PurchaseParams{UserID: u.ID, BoxID: box.ID, Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(7500), order.UnitPrice)
	assert.Equal(t, int64(15000), order.Total)
}

func TestPurchaseUnknownUserIsNotFound(t *testing.T) {
	s := New()
	_, box, _ := seedBox(t, s, 3, 1)

	_, _, err := s.Purchase(context.Background(), inventory.PurchaseParams{UserID: "ghost", BoxID: box.ID, Quantity: 1})
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestOpenBoxRejectsItemOutsideEntries(t *testing.T) {
	s := New()
	u, box, items := seedBox(t, s, 1, 0, 5)
	ctx := context.Background()
	stray, err := s.CreateItem(ctx, catalog.Item{Name: "stray", Rarity: catalog.RarityCommon, Stock: 7})
	require.NoError(t, err)
	_, boxes, err := s.Purchase(ctx, inventory.PurchaseParams{UserID: u.ID, BoxID: box.ID, Quantity: 1})
	require.NoError(t, err)

	for _, pick := range []string{stray.ID, items[0].ID} {
		_, err = s.OpenBox(ctx, u.ID, boxes[0].ID, func([]catalog.DrawEntry) (string, error) { return pick, nil })
		assert.ErrorIs(t, err, storage.ErrNotDrawable)
	}

	got, err := s.GetItem(ctx, stray.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Stock)
	ub, err := s.GetUserBox(ctx, boxes[0].ID)
	require.NoError(t, err)
	assert.Equal(t, inventory.BoxUnopened, ub.Status)
}

func TestConcurrentPurchasesNeverOversell(t *testing.T) {
	s := New()
	u, box, _ := seedBox(t, s, 10, 1)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	sold := 0
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := s.Purchase(ctx, inventory.PurchaseParams{UserID: u.ID, BoxID: box.ID, Quantity: 1}); err == nil {
				mu.Lock()
				sold++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	got, err := s.GetBox(ctx, box.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, sold)
	assert.Equal(t, 0, got.Stock)
}

func TestDeleteItemInUseConflicts(t *testing.T) {
	s := New()
	_, _, items := seedBox(t, s, 1, 5)
	err := s.DeleteItem(context.Background(), items[0].ID)
	assert.True(t, errors.Is(err, storage.ErrConflict))
}

func TestCommentsAndLikes(t *testing.T) {
	s := New()
	ctx := context.Background()
	post, err := s.CreatePost(ctx, showcase.Post{UserID: "1", Title: "my pull", Content: "look"})
	require.NoError(t, err)

	parent, err := s.CreateComment(ctx, showcase.Comment{PostID: post.ID, UserID: "2", Content: "nice"})
	require.NoError(t, err)
	_, err = s.CreateComment(ctx, showcase.Comment{PostID: post.ID, UserID: "1", ParentID: parent.ID, Content: "thanks"})
	require.NoError(t, err)
	_, err = s.CreateComment(ctx, showcase.Comment{PostID: post.ID, UserID: "3", ParentID: "missing", Content: "?"})
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	removed, err := s.DeleteComment(ctx, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	liked, err := s.ToggleLike(ctx, post.ID, "2")
	require.NoError(t, err)
	assert.True(t, liked)
	liked, err = s.ToggleLike(ctx, post.ID, "2")
	require.NoError(t, err)
	assert.False(t, liked)

	got, err := s.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.CommentCount)
	assert.Equal(t, 0, got.LikeCount)
}

func TestListPostsHotOrdering(t *testing.T) {
	s := New()
	ctx := context.Background()
	quiet, err := s.CreatePost(ctx, showcase.Post{UserID: "1", Title: "quiet"})
	require.NoError(t, err)
	loud, err := s.CreatePost(ctx, showcase.Post{UserID: "1", Title: "loud"})
	require.NoError(t, err)
	_, err = s.ToggleLike(ctx, quiet.ID, "9")
	require.NoError(t, err)

	latest, total, err := s.ListPosts(ctx, showcase.PostFilter{Sort: showcase.SortLatest}, page.Request{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, loud.ID, latest[0].ID)

	hot, _, err := s.ListPosts(ctx, showcase.PostFilter{Sort: showcase.SortHot}, page.Request{})
	require.NoError(t, err)
	assert.Equal(t, quiet.ID, hot[0].ID)
}
