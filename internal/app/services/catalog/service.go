package catalog

import (
	"context"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Aromatic05/CurioBox-sub000/internal/app/cache"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/catalog"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/page"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/storage"
	apperrors "github.com/Aromatic05/CurioBox-sub000/internal/errors"
	"github.com/Aromatic05/CurioBox-sub000/pkg/logger"
)

const (
	defaultDetailTTL = 5 * time.Minute
	generationKey    = "catalog:generation"
	maxNameLen       = 100
	maxDescLen       = 2000
)

// BoxInput describes a new box.
type BoxInput struct {
	Name        string
	Description string
	CoverImage  string
	Category    string
	Price       int64
	Stock       int
	OnSale      bool
}

// BoxPatch carries the optional fields of a box edit.
type BoxPatch struct {
	Name        *string
	Description *string
	CoverImage  *string
	Category    *string
	Price       *int64
	Stock       *int
	OnSale      *bool
}

// ItemInput describes a new item.
type ItemInput struct {
	Name        string
	Description string
	Image       string
	Rarity      catalog.Rarity
	Stock       int
}

// ItemPatch carries the optional fields of an item edit.
type ItemPatch struct {
	Name        *string
	Description *string
	Image       *string
	Rarity      *catalog.Rarity
	Stock       *int
}

// Service manages boxes, items, and probability tables.
type Service struct {
	store storage.CatalogStore
	cache cache.Cache
	ttl   time.Duration
	log   *logger.Logger
}

// New constructs a catalog service. A nil cache falls back to in-process.
func New(store storage.CatalogStore, c cache.Cache, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("catalog")
	}
	if c == nil {
		c = cache.NewMemory()
	}
	return &Service{store: store, cache: c, ttl: defaultDetailTTL, log: log}
}

// ListBoxes pages through boxes. Non-admins only see boxes on sale.
func (s *Service) ListBoxes(ctx context.Context, filter catalog.BoxFilter, req page.Request, admin bool) (page.Result[catalog.Box], error) {
	switch filter.Sort {
	case "":
		filter.Sort = catalog.SortLatest
	case catalog.SortLatest, catalog.SortPriceAsc, catalog.SortPriceDesc:
	default:
		return page.Result[catalog.Box]{}, apperrors.InvalidFormat("sort", "must be latest, price_asc or price_desc")
	}
	if !admin {
		filter.OnSaleOnly = true
	}
	filter.Query = strings.TrimSpace(filter.Query)

	boxes, total, err := s.store.ListBoxes(ctx, filter, req)
	if err != nil {
		return page.Result[catalog.Box]{}, storage.Translate("boxes", "", err)
	}
	return page.NewResult(boxes, total, req), nil
}

// GetBox returns a box with its probability table. The table is cached;
// the box row and item stock are always read live since purchases and
// opens change them without touching the cache.
func (s *Service) GetBox(ctx context.Context, id string) (catalog.BoxDetail, error) {
	key := s.detailKey(ctx, id)
	if raw, ok, err := s.cache.Get(ctx, key); err != nil {
		s.log.WithError(err).Warn("catalog cache read failed")
	} else if ok {
		var detail catalog.BoxDetail
		if err := json.Unmarshal(raw, &detail); err == nil {
			return s.withLiveStock(ctx, detail)
		}
	}

	detail, err := s.loadDetail(ctx, id)
	if err != nil {
		return catalog.BoxDetail{}, err
	}
	if raw, err := json.Marshal(detail); err == nil {
		if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
			s.log.WithError(err).Warn("catalog cache write failed")
		}
	}
	return detail, nil
}

func (s *Service) loadDetail(ctx context.Context, id string) (catalog.BoxDetail, error) {
	box, err := s.store.GetBox(ctx, id)
	if err != nil {
		return catalog.BoxDetail{}, storage.Translate("box", id, err)
	}
	table, err := s.store.ListBoxItems(ctx, id)
	if err != nil {
		return catalog.BoxDetail{}, storage.Translate("box", id, err)
	}
	ids := make([]string, 0, len(table))
	for _, row := range table {
		ids = append(ids, row.ItemID)
	}
	items, err := s.store.GetItems(ctx, ids)
	if err != nil {
		return catalog.BoxDetail{}, storage.Translate("items", id, err)
	}
	return catalog.BoxDetail{Box: box, Items: catalog.ComputeOdds(items, table)}, nil
}

func (s *Service) withLiveStock(ctx context.Context, detail catalog.BoxDetail) (catalog.BoxDetail, error) {
	id := detail.Box.ID
	box, err := s.store.GetBox(ctx, id)
	if err != nil {
		return catalog.BoxDetail{}, storage.Translate("box", id, err)
	}
	detail.Box = box

	ids := make([]string, 0, len(detail.Items))
	for _, o := range detail.Items {
		ids = append(ids, o.Item.ID)
	}
	items, err := s.store.GetItems(ctx, ids)
	if err != nil {
		return catalog.BoxDetail{}, storage.Translate("items", id, err)
	}
	for i, o := range detail.Items {
		if live, ok := items[o.Item.ID]; ok {
			detail.Items[i].Item.Stock = live.Stock
		}
	}
	return detail, nil
}

// ListItems pages through items.
func (s *Service) ListItems(ctx context.Context, req page.Request) (page.Result[catalog.Item], error) {
	items, total, err := s.store.ListItems(ctx, req)
	if err != nil {
		return page.Result[catalog.Item]{}, storage.Translate("items", "", err)
	}
	return page.NewResult(items, total, req), nil
}

// GetItems resolves item IDs, skipping unknown ones.
func (s *Service) GetItems(ctx context.Context, ids []string) (map[string]catalog.Item, error) {
	items, err := s.store.GetItems(ctx, ids)
	return items, storage.Translate("items", "", err)
}

// --- Admin: boxes -----------------------------------------------------------

// CreateBox adds a box to the catalog.
func (s *Service) CreateBox(ctx context.Context, in BoxInput) (catalog.Box, error) {
	box := catalog.Box{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		CoverImage:  strings.TrimSpace(in.CoverImage),
		Category:    strings.TrimSpace(in.Category),
		Price:       in.Price,
		Stock:       in.Stock,
		OnSale:      in.OnSale,
	}
	if err := validateBox(box); err != nil {
		return catalog.Box{}, err
	}
	created, err := s.store.CreateBox(ctx, box)
	if err != nil {
		return catalog.Box{}, storage.Translate("box", box.Name, err)
	}
	s.log.WithField("box_id", created.ID).Info("box created")
	return created, nil
}

// UpdateBox applies a patch to a box.
func (s *Service) UpdateBox(ctx context.Context, id string, patch BoxPatch) (catalog.Box, error) {
	box, err := s.store.GetBox(ctx, id)
	if err != nil {
		return catalog.Box{}, storage.Translate("box", id, err)
	}
	if patch.Name != nil {
		box.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		box.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.CoverImage != nil {
		box.CoverImage = strings.TrimSpace(*patch.CoverImage)
	}
	if patch.Category != nil {
		box.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.Price != nil {
		box.Price = *patch.Price
	}
	if patch.Stock != nil {
		box.Stock = *patch.Stock
	}
	if patch.OnSale != nil {
		box.OnSale = *patch.OnSale
	}
	if err := validateBox(box); err != nil {
		return catalog.Box{}, err
	}
	updated, err := s.store.UpdateBox(ctx, box)
	if err != nil {
		return catalog.Box{}, storage.Translate("box", id, err)
	}
	s.invalidateBox(ctx, id)
	s.log.WithField("box_id", id).Info("box updated")
	return updated, nil
}

// DeleteBox removes a box that has never been sold.
func (s *Service) DeleteBox(ctx context.Context, id string) error {
	if err := s.store.DeleteBox(ctx, id); err != nil {
		if storage.IsConflict(err) {
			return apperrors.Conflict("box has been sold and cannot be deleted; take it off sale instead")
		}
		return storage.Translate("box", id, err)
	}
	s.invalidateBox(ctx, id)
	s.log.WithField("box_id", id).Info("box deleted")
	return nil
}

// SetBoxItems replaces a box's probability table.
func (s *Service) SetBoxItems(ctx context.Context, boxID string, table []catalog.BoxItem) (catalog.BoxDetail, error) {
	seen := make(map[string]struct{}, len(table))
	for i, row := range table {
		if row.ItemID == "" {
			return catalog.BoxDetail{}, apperrors.InvalidFormat("items", "item_id is required").WithDetails("index", i)
		}
		if !(row.Weight > 0) {
			return catalog.BoxDetail{}, apperrors.InvalidFormat("items", "weight must be positive").WithDetails("item_id", row.ItemID)
		}
		if _, dup := seen[row.ItemID]; dup {
			return catalog.BoxDetail{}, apperrors.InvalidFormat("items", "duplicate item").WithDetails("item_id", row.ItemID)
		}
		seen[row.ItemID] = struct{}{}
		table[i].BoxID = boxID
	}
	if err := s.store.SetBoxItems(ctx, boxID, table); err != nil {
		return catalog.BoxDetail{}, storage.Translate("box or item", boxID, err)
	}
	s.invalidateBox(ctx, boxID)
	s.log.WithFields(map[string]interface{}{"box_id": boxID, "rows": len(table)}).Info("probability table replaced")
	return s.GetBox(ctx, boxID)
}

// --- Admin: items -----------------------------------------------------------

// CreateItem adds an item.
func (s *Service) CreateItem(ctx context.Context, in ItemInput) (catalog.Item, error) {
	item := catalog.Item{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Image:       strings.TrimSpace(in.Image),
		Rarity:      in.Rarity,
		Stock:       in.Stock,
	}
	if item.Rarity == "" {
		item.Rarity = catalog.RarityCommon
	}
	if err := validateItem(item); err != nil {
		return catalog.Item{}, err
	}
	created, err := s.store.CreateItem(ctx, item)
	if err != nil {
		return catalog.Item{}, storage.Translate("item", item.Name, err)
	}
	s.log.WithField("item_id", created.ID).Info("item created")
	return created, nil
}

// UpdateItem applies a patch to an item.
func (s *Service) UpdateItem(ctx context.Context, id string, patch ItemPatch) (catalog.Item, error) {
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return catalog.Item{}, storage.Translate("item", id, err)
	}
	if patch.Name != nil {
		item.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		item.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Image != nil {
		item.Image = strings.TrimSpace(*patch.Image)
	}
	if patch.Rarity != nil {
		item.Rarity = *patch.Rarity
	}
	if patch.Stock != nil {
		item.Stock = *patch.Stock
	}
	if err := validateItem(item); err != nil {
		return catalog.Item{}, err
	}
	updated, err := s.store.UpdateItem(ctx, item)
	if err != nil {
		return catalog.Item{}, storage.Translate("item", id, err)
	}
	s.bumpGeneration(ctx)
	s.log.WithField("item_id", id).Info("item updated")
	return updated, nil
}

// DeleteItem removes an item no box references and nobody has drawn.
func (s *Service) DeleteItem(ctx context.Context, id string) error {
	if err := s.store.DeleteItem(ctx, id); err != nil {
		if storage.IsConflict(err) {
			return apperrors.Conflict("item is referenced by a box or has been drawn")
		}
		return storage.Translate("item", id, err)
	}
	s.bumpGeneration(ctx)
	s.log.WithField("item_id", id).Info("item deleted")
	return nil
}

// --- cache keys -------------------------------------------------------------

// detailKey scopes box entries by a catalog generation so item edits, which
// touch every box that lists the item, invalidate with a single write.
func (s *Service) detailKey(ctx context.Context, boxID string) string {
	gen, ok, err := s.cache.Get(ctx, generationKey)
	if err != nil || !ok {
		return "box:0:" + boxID
	}
	return "box:" + string(gen) + ":" + boxID
}

func (s *Service) invalidateBox(ctx context.Context, boxID string) {
	if err := s.cache.Delete(ctx, s.detailKey(ctx, boxID)); err != nil {
		s.log.WithError(err).Warn("catalog cache invalidation failed")
	}
}

func (s *Service) bumpGeneration(ctx context.Context) {
	if err := s.cache.Set(ctx, generationKey, []byte(uuid.NewString()), 24*time.Hour); err != nil {
		s.log.WithError(err).Warn("catalog cache generation bump failed")
	}
}

func validateBox(b catalog.Box) error {
	if n := utf8.RuneCountInString(b.Name); n == 0 || n > maxNameLen {
		return apperrors.InvalidFormat("name", "1-100 characters")
	}
	if utf8.RuneCountInString(b.Description) > maxDescLen {
		return apperrors.InvalidFormat("description", "at most 2000 characters")
	}
	if b.Price < 0 {
		return apperrors.InvalidFormat("price", "must not be negative")
	}
	if b.Stock < 0 {
		return apperrors.InvalidFormat("stock", "must not be negative")
	}
	return nil
}

func validateItem(it catalog.Item) error {
	if n := utf8.RuneCountInString(it.Name); n == 0 || n > maxNameLen {
		return apperrors.InvalidFormat("name", "1-100 characters")
	}
	if utf8.RuneCountInString(it.Description) > maxDescLen {
		return apperrors.InvalidFormat("description", "at most 2000 characters")
	}
	if !catalog.ValidRarity(it.Rarity) {
		return apperrors.InvalidFormat("rarity", "must be common, rare, epic, legendary or hidden")
	}
	if it.Stock < 0 {
		return apperrors.InvalidFormat("stock", "must not be negative")
	}
	return nil
}
