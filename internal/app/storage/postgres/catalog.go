package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/catalog"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/page"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/storage"
)

type boxRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	CoverImage  string    `db:"cover_image"`
	Category    string    `db:"category"`
	Price       int64     `db:"price"`
	Stock       int       `db:"stock"`
	OnSale      bool      `db:"on_sale"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r boxRow) toDomain() catalog.Box {
	return catalog.Box{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		CoverImage:  r.CoverImage,
		Category:    r.Category,
		Price:       r.Price,
		Stock:       r.Stock,
		OnSale:      r.OnSale,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type itemRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Image       string    `db:"image"`
	Rarity      string    `db:"rarity"`
	Stock       int       `db:"stock"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r itemRow) toDomain() catalog.Item {
	return catalog.Item{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Image:       r.Image,
		Rarity:      catalog.Rarity(r.Rarity),
		Stock:       r.Stock,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type boxItemRow struct {
	BoxID  string  `db:"box_id"`
	ItemID string  `db:"item_id"`
	Weight float64 `db:"weight"`
}

const (
	boxColumns  = `id, name, description, cover_image, category, price, stock, on_sale, created_at, updated_at`
	itemColumns = `id, name, description, image, rarity, stock, created_at, updated_at`
)

// --- Boxes ------------------------------------------------------------------

func (s *Store) CreateBox(ctx context.Context, box catalog.Box) (catalog.Box, error) {
	if box.ID == "" {
		box.ID = s.id()
	}
	now := s.now()
	box.CreatedAt = now
	box.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO boxes (id, name, description, cover_image, category, price, stock, on_sale, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, box.ID, box.Name, box.Description, box.CoverImage, box.Category, box.Price, box.Stock, box.OnSale, box.CreatedAt, box.UpdatedAt)
	if err != nil {
		return catalog.Box{}, translate("box", box.ID, err)
	}
	return box, nil
}

func (s *Store) UpdateBox(ctx context.Context, box catalog.Box) (catalog.Box, error) {
	existing, err := s.GetBox(ctx, box.ID)
	if err != nil {
		return catalog.Box{}, err
	}
	box.CreatedAt = existing.CreatedAt
	box.UpdatedAt = s.now()

	res, err := s.db.ExecContext(ctx, `
		UPDATE boxes
		SET name = $2, description = $3, cover_image = $4, category = $5, price = $6, stock = $7, on_sale = $8, updated_at = $9
		WHERE id = $1
	`, box.ID, box.Name, box.Description, box.CoverImage, box.Category, box.Price, box.Stock, box.OnSale, box.UpdatedAt)
	if err != nil {
		return catalog.Box{}, translate("box", box.ID, err)
	}
	if err := requireAffected(res, "box", box.ID); err != nil {
		return catalog.Box{}, err
	}
	return box, nil
}

func (s *Store) GetBox(ctx context.Context, id string) (catalog.Box, error) {
	var row boxRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+boxColumns+` FROM boxes WHERE id = $1`, id); err != nil {
		return catalog.Box{}, translate("box", id, err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListBoxes(ctx context.Context, filter catalog.BoxFilter, req page.Request) ([]catalog.Box, int, error) {
	req = req.Normalize()
	const where = `
		WHERE ($1 = FALSE OR on_sale)
		  AND ($2 = '' OR LOWER(category) = LOWER($2))
		  AND ($3 = '' OR name ILIKE '%' || $3 || '%' OR description ILIKE '%' || $3 || '%')`
	args := []interface{}{filter.OnSaleOnly, filter.Category, filter.Query}

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM boxes`+where, args...); err != nil {
		return nil, 0, err
	}

	var rows []boxRow
	err := s.db.SelectContext(ctx, &rows, `SELECT `+boxColumns+` FROM boxes`+where+`
		ORDER BY
			CASE WHEN $4 = 'price_asc' THEN price END ASC,
			CASE WHEN $4 = 'price_desc' THEN price END DESC,
			created_at DESC
		LIMIT $5 OFFSET $6`, append(args, string(filter.Sort), req.Size, req.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	out := make([]catalog.Box, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, total, nil
}

func (s *Store) DeleteBox(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM boxes WHERE id = $1`, id)
	if err != nil {
		return translate("box", id, err)
	}
	return requireAffected(res, "box", id)
}

// --- Items ------------------------------------------------------------------

func (s *Store) CreateItem(ctx context.Context, item catalog.Item) (catalog.Item, error) {
	if item.ID == "" {
		item.ID = s.id()
	}
	now := s.now()
	item.CreatedAt = now
	item.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO items (id, name, description, image, rarity, stock, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, item.ID, item.Name, item.Description, item.Image, string(item.Rarity), item.Stock, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return catalog.Item{}, translate("item", item.ID, err)
	}
	return item, nil
}

func (s *Store) UpdateItem(ctx context.Context, item catalog.Item) (catalog.Item, error) {
	existing, err := s.GetItem(ctx, item.ID)
	if err != nil {
		return catalog.Item{}, err
	}
	item.CreatedAt = existing.CreatedAt
	item.UpdatedAt = s.now()

	res, err := s.db.ExecContext(ctx, `
		UPDATE items
		SET name = $2, description = $3, image = $4, rarity = $5, stock = $6, updated_at = $7
		WHERE id = $1
	`, item.ID, item.Name, item.Description, item.Image, string(item.Rarity), item.Stock, item.UpdatedAt)
	if err != nil {
		return catalog.Item{}, translate("item", item.ID, err)
	}
	if err := requireAffected(res, "item", item.ID); err != nil {
		return catalog.Item{}, err
	}
	return item, nil
}

func (s *Store) GetItem(ctx context.Context, id string) (catalog.Item, error) {
	var row itemRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id); err != nil {
		return catalog.Item{}, translate("item", id, err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetItems(ctx context.Context, ids []string) (map[string]catalog.Item, error) {
	out := make(map[string]catalog.Item, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []itemRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+itemColumns+` FROM items WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.ID] = r.toDomain()
	}
	return out, nil
}

func (s *Store) ListItems(ctx context.Context, req page.Request) ([]catalog.Item, int, error) {
	req = req.Normalize()
	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM items`); err != nil {
		return nil, 0, err
	}
	var rows []itemRow
	err := s.db.SelectContext(ctx, &rows, `SELECT `+itemColumns+` FROM items ORDER BY created_at DESC LIMIT $1 OFFSET $2`, req.Size, req.Offset())
	if err != nil {
		return nil, 0, err
	}
	out := make([]catalog.Item, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, total, nil
}

func (s *Store) DeleteItem(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return translate("item", id, err)
	}
	return requireAffected(res, "item", id)
}

// --- Probability tables -----------------------------------------------------

func (s *Store) SetBoxItems(ctx context.Context, boxID string, table []catalog.BoxItem) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var locked string
		if err := tx.GetContext(ctx, &locked, `SELECT id FROM boxes WHERE id = $1 FOR UPDATE`, boxID); err != nil {
			return translate("box", boxID, err)
		}

		ids := make([]string, 0, len(table))
		for _, row := range table {
			ids = append(ids, row.ItemID)
		}
		if len(ids) > 0 {
			var found []string
			if err := tx.SelectContext(ctx, &found, `SELECT id FROM items WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
				return err
			}
			known := make(map[string]struct{}, len(found))
			for _, id := range found {
				known[id] = struct{}{}
			}
			for _, id := range ids {
				if _, ok := known[id]; !ok {
					return fmt.Errorf("item %s: %w", id, storage.ErrNotFound)
				}
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM box_items WHERE box_id = $1`, boxID); err != nil {
			return err
		}
		for _, row := range table {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO box_items (box_id, item_id, weight) VALUES ($1, $2, $3)
			`, boxID, row.ItemID, row.Weight); err != nil {
				return translate("box item", row.ItemID, err)
			}
		}
		return nil
	})
}

func (s *Store) ListBoxItems(ctx context.Context, boxID string) ([]catalog.BoxItem, error) {
	if _, err := s.GetBox(ctx, boxID); err != nil {
		return nil, err
	}
	var rows []boxItemRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT box_id, item_id, weight FROM box_items WHERE box_id = $1 ORDER BY weight DESC, item_id
	`, boxID); err != nil {
		return nil, err
	}
	out := make([]catalog.BoxItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, catalog.BoxItem{BoxID: r.BoxID, ItemID: r.ItemID, Weight: r.Weight})
	}
	return out, nil
}
