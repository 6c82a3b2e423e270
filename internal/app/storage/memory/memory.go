package memory

import (
	"fmt"
	"sync"
	"time"

	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/catalog"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/inventory"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/showcase"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/user"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
// A single mutex guards every map, so Purchase and OpenBox are atomic.
type Store struct {
	mu     sync.RWMutex
	nextID int64
	now    func() time.Time

	users      map[string]user.User
	usernames  map[string]string
	boxes      map[string]catalog.Box
	items      map[string]catalog.Item
	boxItems   map[string][]catalog.BoxItem
	orders     map[string]inventory.Order
	orderSeq   []string
	userBoxes  map[string]inventory.UserBox
	userBoxSeq []string
	posts      map[string]showcase.Post
	comments   map[string]showcase.Comment
	likes      map[string]map[string]struct{}
	tags       map[string]showcase.Tag
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.CatalogStore = (*Store)(nil)
var _ storage.InventoryStore = (*Store)(nil)
var _ storage.ShowcaseStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:    1,
		now:       func() time.Time { return time.Now().UTC() },
		users:     make(map[string]user.User),
		usernames: make(map[string]string),
		boxes:     make(map[string]catalog.Box),
		items:     make(map[string]catalog.Item),
		boxItems:  make(map[string][]catalog.BoxItem),
		orders:    make(map[string]inventory.Order),
		userBoxes: make(map[string]inventory.UserBox),
		posts:     make(map[string]showcase.Post),
		comments:  make(map[string]showcase.Comment),
		likes:     make(map[string]map[string]struct{}),
		tags:      make(map[string]showcase.Tag),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// timestamp returns a strictly increasing time so ordering by creation is
// stable even when calls land within the same clock tick.
func (s *Store) timestampLocked() time.Time {
	return s.now().Add(time.Duration(s.nextID) * time.Nanosecond)
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
