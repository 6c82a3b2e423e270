package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/catalog"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/inventory"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/page"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/showcase"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/user"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write violates a uniqueness or
	// reference constraint.
	ErrConflict = errors.New("record conflict")
	// ErrInsufficientStock is returned by transactional stock decrements.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrNotOnSale is returned when purchasing a box that is off the shelf.
	ErrNotOnSale = errors.New("box not on sale")
	// ErrAlreadyOpened is returned when opening a box twice.
	ErrAlreadyOpened = errors.New("box already opened")
	// ErrNotDrawable is returned when a DrawFunc picks an item outside the
	// entries it was given.
	ErrNotDrawable = errors.New("item not drawable")
)

// DrawFunc picks an item from the drawable rows of a probability table. It
// runs inside the OpenBox transaction; returning an error aborts it.
type DrawFunc func(entries []catalog.DrawEntry) (itemID string, err error)

// CheckDrawn verifies that itemID is one of the entries offered to a draw.
func CheckDrawn(boxID, itemID string, entries []catalog.DrawEntry) error {
	for _, e := range entries {
		if e.ItemID == itemID {
			return nil
		}
	}
	return fmt.Errorf("item %q from box %s: %w", itemID, boxID, ErrNotDrawable)
}

// UserStore persists users.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByUsername(ctx context.Context, username string) (user.User, error)
	ListUsers(ctx context.Context, filter user.Filter, req page.Request) ([]user.User, int, error)
	CountUsers(ctx context.Context) (int, error)
}

// CatalogStore persists boxes, items and probability tables.
type CatalogStore interface {
	CreateBox(ctx context.Context, box catalog.Box) (catalog.Box, error)
	UpdateBox(ctx context.Context, box catalog.Box) (catalog.Box, error)
	GetBox(ctx context.Context, id string) (catalog.Box, error)
	ListBoxes(ctx context.Context, filter catalog.BoxFilter, req page.Request) ([]catalog.Box, int, error)
	DeleteBox(ctx context.Context, id string) error

	CreateItem(ctx context.Context, item catalog.Item) (catalog.Item, error)
	UpdateItem(ctx context.Context, item catalog.Item) (catalog.Item, error)
	GetItem(ctx context.Context, id string) (catalog.Item, error)
	GetItems(ctx context.Context, ids []string) (map[string]catalog.Item, error)
	ListItems(ctx context.Context, req page.Request) ([]catalog.Item, int, error)
	DeleteItem(ctx context.Context, id string) error

	SetBoxItems(ctx context.Context, boxID string, table []catalog.BoxItem) error
	ListBoxItems(ctx context.Context, boxID string) ([]catalog.BoxItem, error)
}

// InventoryStore persists orders and warehouse boxes. Purchase and OpenBox
// are atomic.
type InventoryStore interface {
	Purchase(ctx context.Context, params inventory.PurchaseParams) (inventory.Order, []inventory.UserBox, error)
	OpenBox(ctx context.Context, userID, userBoxID string, draw DrawFunc) (inventory.UserBox, error)

	GetUserBox(ctx context.Context, id string) (inventory.UserBox, error)
	ListUserBoxes(ctx context.Context, userID string, status inventory.BoxStatus, req page.Request) ([]inventory.UserBox, int, error)
	Collection(ctx context.Context, userID string) ([]inventory.CollectionEntry, error)

	GetOrder(ctx context.Context, id string) (inventory.Order, error)
	ListOrders(ctx context.Context, filter inventory.OrderFilter, req page.Request) ([]inventory.Order, int, error)
	Stats(ctx context.Context) (inventory.Stats, error)
}

// ShowcaseStore persists posts, comments, likes and tags.
type ShowcaseStore interface {
	CreatePost(ctx context.Context, p showcase.Post) (showcase.Post, error)
	UpdatePost(ctx context.Context, p showcase.Post) (showcase.Post, error)
	GetPost(ctx context.Context, id string) (showcase.Post, error)
	ListPosts(ctx context.Context, filter showcase.PostFilter, req page.Request) ([]showcase.Post, int, error)
	DeletePost(ctx context.Context, id string) error
	IncrementViews(ctx context.Context, id string) error

	CreateComment(ctx context.Context, c showcase.Comment) (showcase.Comment, error)
	GetComment(ctx context.Context, id string) (showcase.Comment, error)
	ListComments(ctx context.Context, postID string, req page.Request) ([]showcase.Comment, int, error)
	DeleteComment(ctx context.Context, id string) (removed int, err error)

	// ToggleLike flips the user's like on a post and reports the new state.
	ToggleLike(ctx context.Context, postID, userID string) (liked bool, err error)
	LikedPosts(ctx context.Context, userID string, postIDs []string) (map[string]bool, error)

	CreateTag(ctx context.Context, t showcase.Tag) (showcase.Tag, error)
	ListTags(ctx context.Context) ([]showcase.Tag, error)
	GetTags(ctx context.Context, ids []string) ([]showcase.Tag, error)
	DeleteTag(ctx context.Context, id string) error
}
