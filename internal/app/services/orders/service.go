package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/catalog"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/inventory"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/page"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/metrics"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/services/random"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/storage"
	apperrors "github.com/Aromatic05/CurioBox-sub000/internal/errors"
	"github.com/Aromatic05/CurioBox-sub000/pkg/logger"
)

const (
	// MaxQuantity caps the number of boxes in one order.
	MaxQuantity = 10
	// MaxBatchOpen caps the number of boxes opened per request.
	MaxBatchOpen = 10
)

// Drawer picks an entry from a probability table.
type Drawer interface {
	Draw(entries []catalog.DrawEntry) (catalog.DrawEntry, error)
}

// PurchaseResult is an order plus the boxes it put in the warehouse.
type PurchaseResult struct {
	Order inventory.Order     `json:"order"`
	Boxes []inventory.UserBox `json:"boxes"`
}

// OpenResult is an opened warehouse box and the item inside.
type OpenResult struct {
	Box  inventory.UserBox `json:"box"`
	Item catalog.Item      `json:"item"`
}

// WarehouseEntry is a warehouse box enriched for display.
type WarehouseEntry struct {
	inventory.UserBox
	Box  *catalog.Box  `json:"box,omitempty"`
	Item *catalog.Item `json:"item,omitempty"`
}

// CollectionItem is an item a user owns and how many times it was drawn.
type CollectionItem struct {
	Item  catalog.Item `json:"item"`
	Count int          `json:"count"`
}

// Service drives purchase and box opening.
type Service struct {
	catalog   storage.CatalogStore
	inventory storage.InventoryStore
	drawer    Drawer
	log       *logger.Logger
}

// New constructs an order service. A nil drawer uses crypto randomness.
func New(catalogStore storage.CatalogStore, inventoryStore storage.InventoryStore, drawer Drawer, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("orders")
	}
	if drawer == nil {
		drawer = random.New(log)
	}
	return &Service{catalog: catalogStore, inventory: inventoryStore, drawer: drawer, log: log}
}

// Purchase buys quantity boxes for the user in a single transaction.
func (s *Service) Purchase(ctx context.Context, userID, boxID string, quantity int) (PurchaseResult, error) {
	if quantity < 1 || quantity > MaxQuantity {
		return PurchaseResult{}, apperrors.InvalidFormat("quantity", fmt.Sprintf("must be between 1 and %d", MaxQuantity))
	}
	order, boxes, err := s.inventory.Purchase(ctx, inventory.PurchaseParams{
		UserID:   userID,
		BoxID:    boxID,
		Quantity: quantity,
	})
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			metrics.RecordPurchase("not_found", quantity, 0)
			return PurchaseResult{}, storage.Translate("box", boxID, err)
		case errors.Is(err, storage.ErrInsufficientStock):
			metrics.RecordPurchase("insufficient_stock", quantity, 0)
			return PurchaseResult{}, apperrors.InsufficientStock("not enough boxes left").
				WithDetails("requested", quantity)
		case errors.Is(err, storage.ErrNotOnSale):
			metrics.RecordPurchase("not_on_sale", quantity, 0)
			return PurchaseResult{}, apperrors.Validation("box is not on sale")
		}
		metrics.RecordPurchase("error", quantity, 0)
		return PurchaseResult{}, storage.Translate("box", boxID, err)
	}

	metrics.RecordPurchase("success", order.Quantity, order.Total)
	s.log.WithFields(map[string]interface{}{
		"order_id": order.ID,
		"user_id":  userID,
		"box_id":   boxID,
		"quantity": quantity,
	}).Info("order placed")
	return PurchaseResult{Order: order, Boxes: boxes}, nil
}

// Open draws an item for one warehouse box. Drawing, the stock decrement,
// and marking the box opened commit together.
func (s *Service) Open(ctx context.Context, userID, userBoxID string) (OpenResult, error) {
	draw := func(entries []catalog.DrawEntry) (string, error) {
		picked, err := s.drawer.Draw(entries)
		if errors.Is(err, random.ErrNothingToDraw) {
			return "", fmt.Errorf("box for %s: %w", userBoxID, storage.ErrInsufficientStock)
		}
		if err != nil {
			return "", err
		}
		return picked.ItemID, nil
	}

	opened, err := s.inventory.OpenBox(ctx, userID, userBoxID, draw)
	if err != nil {
		metrics.RecordOpen(openFailure(err), "")
		switch {
		case errors.Is(err, storage.ErrInsufficientStock):
			return OpenResult{}, apperrors.InsufficientStock("no items left to draw from this box")
		case errors.Is(err, storage.ErrAlreadyOpened):
			return OpenResult{}, apperrors.Conflict("box already opened")
		}
		return OpenResult{}, storage.Translate("box", userBoxID, err)
	}

	item, err := s.catalog.GetItem(ctx, opened.ItemID)
	if err != nil {
		return OpenResult{}, storage.Translate("item", opened.ItemID, err)
	}
	metrics.RecordOpen("success", string(item.Rarity))
	s.log.WithFields(map[string]interface{}{
		"user_box_id": userBoxID,
		"user_id":     userID,
		"item_id":     item.ID,
		"rarity":      item.Rarity,
	}).Info("box opened")
	return OpenResult{Box: opened, Item: item}, nil
}

func openFailure(err error) string {
	switch {
	case errors.Is(err, storage.ErrInsufficientStock):
		return "empty"
	case errors.Is(err, storage.ErrAlreadyOpened):
		return "already_opened"
	case errors.Is(err, storage.ErrNotFound):
		return "not_found"
	}
	return "error"
}

// OpenMany opens boxes one transaction at a time and stops at the first
// failure. Boxes opened before the failure stay opened; their results are
// returned together with the error.
func (s *Service) OpenMany(ctx context.Context, userID string, userBoxIDs []string) ([]OpenResult, error) {
	if len(userBoxIDs) == 0 {
		return nil, apperrors.Validation("no boxes selected")
	}
	if len(userBoxIDs) > MaxBatchOpen {
		return nil, apperrors.InvalidFormat("ids", fmt.Sprintf("at most %d boxes per request", MaxBatchOpen))
	}
	seen := make(map[string]struct{}, len(userBoxIDs))
	results := make([]OpenResult, 0, len(userBoxIDs))
	for _, id := range userBoxIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		res, err := s.Open(ctx, userID, id)
		if err != nil {
			if se := apperrors.GetServiceError(err); se != nil {
				se.WithDetails("user_box_id", id)
			}
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Warehouse lists a user's boxes, optionally filtered by status.
func (s *Service) Warehouse(ctx context.Context, userID string, status inventory.BoxStatus, req page.Request) (page.Result[WarehouseEntry], error) {
	if status != "" && status != inventory.BoxOpened && status != inventory.BoxUnopened {
		return page.Result[WarehouseEntry]{}, apperrors.InvalidFormat("status", "must be opened or unopened")
	}
	boxes, total, err := s.inventory.ListUserBoxes(ctx, userID, status, req)
	if err != nil {
		return page.Result[WarehouseEntry]{}, storage.Translate("warehouse", userID, err)
	}

	boxIDs := make([]string, 0, len(boxes))
	itemIDs := make([]string, 0, len(boxes))
	for _, ub := range boxes {
		boxIDs = append(boxIDs, ub.BoxID)
		if ub.ItemID != "" {
			itemIDs = append(itemIDs, ub.ItemID)
		}
	}
	boxIndex, err := s.boxes(ctx, boxIDs)
	if err != nil {
		return page.Result[WarehouseEntry]{}, err
	}
	items, err := s.catalog.GetItems(ctx, itemIDs)
	if err != nil {
		return page.Result[WarehouseEntry]{}, storage.Translate("items", "", err)
	}

	entries := make([]WarehouseEntry, 0, len(boxes))
	for _, ub := range boxes {
		entry := WarehouseEntry{UserBox: ub}
		if b, ok := boxIndex[ub.BoxID]; ok {
			entry.Box = &b
		}
		if it, ok := items[ub.ItemID]; ok {
			entry.Item = &it
		}
		entries = append(entries, entry)
	}
	return page.NewResult(entries, total, req), nil
}

// Collection lists the distinct items a user has drawn with counts.
func (s *Service) Collection(ctx context.Context, userID string) ([]CollectionItem, error) {
	counts, err := s.inventory.Collection(ctx, userID)
	if err != nil {
		return nil, storage.Translate("collection", userID, err)
	}
	ids := make([]string, 0, len(counts))
	for _, c := range counts {
		ids = append(ids, c.ItemID)
	}
	items, err := s.catalog.GetItems(ctx, ids)
	if err != nil {
		return nil, storage.Translate("items", "", err)
	}
	out := make([]CollectionItem, 0, len(counts))
	for _, c := range counts {
		item, ok := items[c.ItemID]
		if !ok {
			continue
		}
		out = append(out, CollectionItem{Item: item, Count: c.Count})
	}
	return out, nil
}

// MyOrders pages through the user's orders, newest first.
func (s *Service) MyOrders(ctx context.Context, userID string, req page.Request) (page.Result[inventory.Order], error) {
	return s.ListOrders(ctx, inventory.OrderFilter{UserID: userID}, req)
}

// ListOrders pages through orders for the back office.
func (s *Service) ListOrders(ctx context.Context, filter inventory.OrderFilter, req page.Request) (page.Result[inventory.Order], error) {
	orders, total, err := s.inventory.ListOrders(ctx, filter, req)
	if err != nil {
		return page.Result[inventory.Order]{}, storage.Translate("orders", "", err)
	}
	return page.NewResult(orders, total, req), nil
}

// Stats summarises sales for the back office.
func (s *Service) Stats(ctx context.Context) (inventory.Stats, error) {
	stats, err := s.inventory.Stats(ctx)
	return stats, storage.Translate("stats", "", err)
}

func (s *Service) boxes(ctx context.Context, ids []string) (map[string]catalog.Box, error) {
	out := make(map[string]catalog.Box, len(ids))
	for _, id := range ids {
		if _, ok := out[id]; ok {
			continue
		}
		box, err := s.catalog.GetBox(ctx, id)
		if err != nil {
			if storage.IsNotFound(err) {
				continue
			}
			return nil, storage.Translate("box", id, err)
		}
		out[id] = box
	}
	return out, nil
}
