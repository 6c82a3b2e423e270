package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/catalog"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/page"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/storage"
)

// CatalogStore implementation -------------------------------------------------

func (s *Store) CreateBox(_ context.Context, box catalog.Box) (catalog.Box, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if box.ID == "" {
		box.ID = s.nextIDLocked()
	} else if _, exists := s.boxes[box.ID]; exists {
		return catalog.Box{}, fmt.Errorf("box %s: %w", box.ID, storage.ErrConflict)
	}
	now := s.timestampLocked()
	box.CreatedAt = now
	box.UpdatedAt = now
	s.boxes[box.ID] = box
	return box, nil
}

func (s *Store) UpdateBox(_ context.Context, box catalog.Box) (catalog.Box, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.boxes[box.ID]
	if !ok {
		return catalog.Box{}, notFound("box", box.ID)
	}
	box.CreatedAt = original.CreatedAt
	box.UpdatedAt = s.now()
	s.boxes[box.ID] = box
	return box, nil
}

func (s *Store) GetBox(_ context.Context, id string) (catalog.Box, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	box, ok := s.boxes[id]
	if !ok {
		return catalog.Box{}, notFound("box", id)
	}
	return box, nil
}

func (s *Store) ListBoxes(_ context.Context, filter catalog.BoxFilter, req page.Request) ([]catalog.Box, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(filter.Query))
	var matched []catalog.Box
	for _, box := range s.boxes {
		if filter.OnSaleOnly && !box.OnSale {
			continue
		}
		if filter.Category != "" && !strings.EqualFold(box.Category, filter.Category) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(box.Name), q) && !strings.Contains(strings.ToLower(box.Description), q) {
			continue
		}
		matched = append(matched, box)
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch filter.Sort {
		case catalog.SortPriceAsc:
			if a.Price != b.Price {
				return a.Price < b.Price
			}
		case catalog.SortPriceDesc:
			if a.Price != b.Price {
				return a.Price > b.Price
			}
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	res := page.Slice(matched, req)
	return res.Items, res.Total, nil
}

func (s *Store) DeleteBox(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.boxes[id]; !ok {
		return notFound("box", id)
	}
	for _, ub := range s.userBoxes {
		if ub.BoxID == id {
			return fmt.Errorf("box %s has been sold: %w", id, storage.ErrConflict)
		}
	}
	delete(s.boxes, id)
	delete(s.boxItems, id)
	return nil
}

func (s *Store) CreateItem(_ context.Context, item catalog.Item) (catalog.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == "" {
		item.ID = s.nextIDLocked()
	} else if _, exists := s.items[item.ID]; exists {
		return catalog.Item{}, fmt.Errorf("item %s: %w", item.ID, storage.ErrConflict)
	}
	now := s.timestampLocked()
	item.CreatedAt = now
	item.UpdatedAt = now
	s.items[item.ID] = item
	return item, nil
}

func (s *Store) UpdateItem(_ context.Context, item catalog.Item) (catalog.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.items[item.ID]
	if !ok {
		return catalog.Item{}, notFound("item", item.ID)
	}
	item.CreatedAt = original.CreatedAt
	item.UpdatedAt = s.now()
	s.items[item.ID] = item
	return item, nil
}

func (s *Store) GetItem(_ context.Context, id string) (catalog.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return catalog.Item{}, notFound("item", id)
	}
	return item, nil
}

func (s *Store) GetItems(_ context.Context, ids []string) (map[string]catalog.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]catalog.Item, len(ids))
	for _, id := range ids {
		if item, ok := s.items[id]; ok {
			out[id] = item
		}
	}
	return out, nil
}

func (s *Store) ListItems(_ context.Context, req page.Request) ([]catalog.Item, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]catalog.Item, 0, len(s.items))
	for _, item := range s.items {
		all = append(all, item)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	res := page.Slice(all, req)
	return res.Items, res.Total, nil
}

func (s *Store) DeleteItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return notFound("item", id)
	}
	for boxID, table := range s.boxItems {
		for _, row := range table {
			if row.ItemID == id {
				return fmt.Errorf("item %s is used by box %s: %w", id, boxID, storage.ErrConflict)
			}
		}
	}
	for _, ub := range s.userBoxes {
		if ub.ItemID == id {
			return fmt.Errorf("item %s has been drawn: %w", id, storage.ErrConflict)
		}
	}
	delete(s.items, id)
	return nil
}

func (s *Store) SetBoxItems(_ context.Context, boxID string, table []catalog.BoxItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.boxes[boxID]; !ok {
		return notFound("box", boxID)
	}
	rows := make([]catalog.BoxItem, 0, len(table))
	for _, row := range table {
		if _, ok := s.items[row.ItemID]; !ok {
			return notFound("item", row.ItemID)
		}
		row.BoxID = boxID
		rows = append(rows, row)
	}
	s.boxItems[boxID] = rows
	return nil
}

func (s *Store) ListBoxItems(_ context.Context, boxID string) ([]catalog.BoxItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.boxes[boxID]; !ok {
		return nil, notFound("box", boxID)
	}
	rows := s.boxItems[boxID]
	out := make([]catalog.BoxItem, len(rows))
	copy(out, rows)
	return out, nil
}
