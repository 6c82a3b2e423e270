package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/catalog"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/inventory"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/page"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/storage"
)

// InventoryStore implementation -----------------------------------------------

func (s *Store) Purchase(_ context.Context, params inventory.PurchaseParams) (inventory.Order, []inventory.UserBox, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[params.UserID]; !ok {
		return inventory.Order{}, nil, notFound("user", params.UserID)
	}
	box, ok := s.boxes[params.BoxID]
	if !ok {
		return inventory.Order{}, nil, notFound("box", params.BoxID)
	}
	if !box.OnSale {
		return inventory.Order{}, nil, fmt.Errorf("box %s: %w", box.ID, storage.ErrNotOnSale)
	}
	if params.Quantity <= 0 || box.Stock < params.Quantity {
		return inventory.Order{}, nil, fmt.Errorf("box %s has %d left: %w", box.ID, box.Stock, storage.ErrInsufficientStock)
	}

	now := s.timestampLocked()
	box.Stock -= params.Quantity
	box.UpdatedAt = now
	s.boxes[box.ID] = box

	order := inventory.Order{
		ID:        s.nextIDLocked(),
		UserID:    params.UserID,
		BoxID:     params.BoxID,
		Quantity:  params.Quantity,
		UnitPrice: box.Price,
		Total:     box.Price * int64(params.Quantity),
		Status:    inventory.OrderCompleted,
		CreatedAt: now,
	}
	s.orders[order.ID] = order
	s.orderSeq = append(s.orderSeq, order.ID)

	boxes := make([]inventory.UserBox, 0, params.Quantity)
	for i := 0; i < params.Quantity; i++ {
		ub := inventory.UserBox{
			ID:          s.nextIDLocked(),
			UserID:      params.UserID,
			BoxID:       params.BoxID,
			OrderID:     order.ID,
			Status:      inventory.BoxUnopened,
			PurchasedAt: now,
		}
		s.userBoxes[ub.ID] = ub
		s.userBoxSeq = append(s.userBoxSeq, ub.ID)
		boxes = append(boxes, ub)
	}
	return order, boxes, nil
}

func (s *Store) OpenBox(_ context.Context, userID, userBoxID string, draw storage.DrawFunc) (inventory.UserBox, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ub, ok := s.userBoxes[userBoxID]
	if !ok || ub.UserID != userID {
		return inventory.UserBox{}, notFound("user box", userBoxID)
	}
	if ub.Status == inventory.BoxOpened {
		return inventory.UserBox{}, fmt.Errorf("user box %s: %w", userBoxID, storage.ErrAlreadyOpened)
	}

	var entries []catalog.DrawEntry
	for _, row := range s.boxItems[ub.BoxID] {
		item, ok := s.items[row.ItemID]
		if !ok || item.Stock <= 0 {
			continue
		}
		entries = append(entries, catalog.DrawEntry{ItemID: row.ItemID, Weight: row.Weight, Stock: item.Stock})
	}

	itemID, err := draw(entries)
	if err != nil {
		return inventory.UserBox{}, err
	}
	if err := storage.CheckDrawn(ub.BoxID, itemID, entries); err != nil {
		return inventory.UserBox{}, err
	}
	item, ok := s.items[itemID]
	if !ok {
		return inventory.UserBox{}, notFound("item", itemID)
	}
	if item.Stock <= 0 {
		return inventory.UserBox{}, fmt.Errorf("item %s: %w", itemID, storage.ErrInsufficientStock)
	}

	now := s.now()
	item.Stock--
	item.UpdatedAt = now
	s.items[itemID] = item

	ub.Status = inventory.BoxOpened
	ub.ItemID = itemID
	ub.OpenedAt = now
	s.userBoxes[ub.ID] = ub
	return ub, nil
}

func (s *Store) GetUserBox(_ context.Context, id string) (inventory.UserBox, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ub, ok := s.userBoxes[id]
	if !ok {
		return inventory.UserBox{}, notFound("user box", id)
	}
	return ub, nil
}

func (s *Store) ListUserBoxes(_ context.Context, userID string, status inventory.BoxStatus, req page.Request) ([]inventory.UserBox, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []inventory.UserBox
	for i := len(s.userBoxSeq) - 1; i >= 0; i-- {
		ub := s.userBoxes[s.userBoxSeq[i]]
		if ub.UserID != userID {
			continue
		}
		if status != "" && ub.Status != status {
			continue
		}
		matched = append(matched, ub)
	}
	res := page.Slice(matched, req)
	return res.Items, res.Total, nil
}

func (s *Store) Collection(_ context.Context, userID string) ([]inventory.CollectionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, ub := range s.userBoxes {
		if ub.UserID == userID && ub.Status == inventory.BoxOpened && ub.ItemID != "" {
			counts[ub.ItemID]++
		}
	}
	out := make([]inventory.CollectionEntry, 0, len(counts))
	for itemID, n := range counts {
		out = append(out, inventory.CollectionEntry{ItemID: itemID, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ItemID < out[j].ItemID
	})
	return out, nil
}

func (s *Store) GetOrder(_ context.Context, id string) (inventory.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return inventory.Order{}, notFound("order", id)
	}
	return order, nil
}

func (s *Store) ListOrders(_ context.Context, filter inventory.OrderFilter, req page.Request) ([]inventory.Order, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []inventory.Order
	for i := len(s.orderSeq) - 1; i >= 0; i-- {
		order := s.orders[s.orderSeq[i]]
		if filter.UserID != "" && order.UserID != filter.UserID {
			continue
		}
		if filter.BoxID != "" && order.BoxID != filter.BoxID {
			continue
		}
		matched = append(matched, order)
	}
	res := page.Slice(matched, req)
	return res.Items, res.Total, nil
}

func (s *Store) Stats(_ context.Context) (inventory.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := inventory.Stats{Users: len(s.users), Orders: len(s.orders)}
	for _, order := range s.orders {
		if order.Status == inventory.OrderCompleted {
			stats.Revenue += order.Total
			stats.BoxesSold += order.Quantity
		}
	}
	for _, ub := range s.userBoxes {
		if ub.Status == inventory.BoxOpened {
			stats.BoxesOpened++
		}
	}
	return stats, nil
}
