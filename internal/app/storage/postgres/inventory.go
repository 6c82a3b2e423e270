package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/catalog"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/inventory"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/page"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/storage"
)

type orderRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	BoxID     string    `db:"box_id"`
	Quantity  int       `db:"quantity"`
	UnitPrice int64     `db:"unit_price"`
	Total     int64     `db:"total"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
}

func (r orderRow) toDomain() inventory.Order {
	return inventory.Order{
		ID:        r.ID,
		UserID:    r.UserID,
		BoxID:     r.BoxID,
		Quantity:  r.Quantity,
		UnitPrice: r.UnitPrice,
		Total:     r.Total,
		Status:    inventory.OrderStatus(r.Status),
		CreatedAt: r.CreatedAt.UTC(),
	}
}

type userBoxRow struct {
	ID          string         `db:"id"`
	UserID      string         `db:"user_id"`
	BoxID       string         `db:"box_id"`
	OrderID     string         `db:"order_id"`
	Status      string         `db:"status"`
	ItemID      sql.NullString `db:"item_id"`
	PurchasedAt time.Time      `db:"purchased_at"`
	OpenedAt    sql.NullTime   `db:"opened_at"`
}

func (r userBoxRow) toDomain() inventory.UserBox {
	ub := inventory.UserBox{
		ID:          r.ID,
		UserID:      r.UserID,
		BoxID:       r.BoxID,
		OrderID:     r.OrderID,
		Status:      inventory.BoxStatus(r.Status),
		ItemID:      r.ItemID.String,
		PurchasedAt: r.PurchasedAt.UTC(),
	}
	if r.OpenedAt.Valid {
		ub.OpenedAt = r.OpenedAt.Time.UTC()
	}
	return ub
}

type drawRow struct {
	ItemID string  `db:"item_id"`
	Weight float64 `db:"weight"`
	Stock  int     `db:"stock"`
}

const (
	orderColumns   = `id, user_id, box_id, quantity, unit_price, total, status, created_at`
	userBoxColumns = `id, user_id, box_id, order_id, status, item_id, purchased_at, opened_at`
)

// --- Purchase / open --------------------------------------------------------

func (s *Store) Purchase(ctx context.Context, params inventory.PurchaseParams) (inventory.Order, []inventory.UserBox, error) {
	var (
		order inventory.Order
		boxes []inventory.UserBox
	)
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var box boxRow
		if err := tx.GetContext(ctx, &box, `SELECT `+boxColumns+` FROM boxes WHERE id = $1 FOR UPDATE`, params.BoxID); err != nil {
			return translate("box", params.BoxID, err)
		}
		if !box.OnSale {
			return fmt.Errorf("box %s: %w", box.ID, storage.ErrNotOnSale)
		}
		if params.Quantity <= 0 || box.Stock < params.Quantity {
			return fmt.Errorf("box %s has %d left: %w", box.ID, box.Stock, storage.ErrInsufficientStock)
		}

		now := s.now()
		if _, err := tx.ExecContext(ctx, `
			UPDATE boxes SET stock = stock - $2, updated_at = $3 WHERE id = $1
		`, box.ID, params.Quantity, now); err != nil {
			return err
		}

		order = inventory.Order{
			ID:        s.id(),
			UserID:    params.UserID,
			BoxID:     params.BoxID,
			Quantity:  params.Quantity,
			UnitPrice: box.Price,
			Total:     box.Price * int64(params.Quantity),
			Status:    inventory.OrderCompleted,
			CreatedAt: now,
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO orders (id, user_id, box_id, quantity, unit_price, total, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, order.ID, order.UserID, order.BoxID, order.Quantity, order.UnitPrice, order.Total, string(order.Status), order.CreatedAt); err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("user %s: %w", params.UserID, storage.ErrNotFound)
			}
			return translate("order", order.ID, err)
		}

		boxes = make([]inventory.UserBox, 0, params.Quantity)
		for i := 0; i < params.Quantity; i++ {
			ub := inventory.UserBox{
				ID:          s.id(),
				UserID:      params.UserID,
				BoxID:       params.BoxID,
				OrderID:     order.ID,
				Status:      inventory.BoxUnopened,
				PurchasedAt: now,
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO user_boxes (id, user_id, box_id, order_id, status, purchased_at)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, ub.ID, ub.UserID, ub.BoxID, ub.OrderID, string(ub.Status), ub.PurchasedAt); err != nil {
				return err
			}
			boxes = append(boxes, ub)
		}
		return nil
	})
	if err != nil {
		return inventory.Order{}, nil, err
	}
	return order, boxes, nil
}

func (s *Store) OpenBox(ctx context.Context, userID, userBoxID string, draw storage.DrawFunc) (inventory.UserBox, error) {
	var opened inventory.UserBox
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var row userBoxRow
		if err := tx.GetContext(ctx, &row, `
			SELECT `+userBoxColumns+` FROM user_boxes WHERE id = $1 AND user_id = $2 FOR UPDATE
		`, userBoxID, userID); err != nil {
			return translate("user box", userBoxID, err)
		}
		if inventory.BoxStatus(row.Status) == inventory.BoxOpened {
			return fmt.Errorf("user box %s: %w", userBoxID, storage.ErrAlreadyOpened)
		}

		var rows []drawRow
		if err := tx.SelectContext(ctx, &rows, `
			SELECT bi.item_id, bi.weight, i.stock
			FROM box_items bi
			JOIN items i ON i.id = bi.item_id
			WHERE bi.box_id = $1 AND i.stock > 0
			ORDER BY bi.item_id
			FOR UPDATE OF i
		`, row.BoxID); err != nil {
			return err
		}
		entries := make([]catalog.DrawEntry, 0, len(rows))
		for _, r := range rows {
			entries = append(entries, catalog.DrawEntry{ItemID: r.ItemID, Weight: r.Weight, Stock: r.Stock})
		}

		itemID, err := draw(entries)
		if err != nil {
			return err
		}
		if err := storage.CheckDrawn(row.BoxID, itemID, entries); err != nil {
			return err
		}

		now := s.now()
		res, err := tx.ExecContext(ctx, `
			UPDATE items SET stock = stock - 1, updated_at = $2 WHERE id = $1 AND stock > 0
		`, itemID, now)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return fmt.Errorf("item %s: %w", itemID, storage.ErrInsufficientStock)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE user_boxes SET status = $2, item_id = $3, opened_at = $4 WHERE id = $1
		`, userBoxID, string(inventory.BoxOpened), itemID, now); err != nil {
			return err
		}

		opened = row.toDomain()
		opened.Status = inventory.BoxOpened
		opened.ItemID = itemID
		opened.OpenedAt = now
		return nil
	})
	if err != nil {
		return inventory.UserBox{}, err
	}
	return opened, nil
}

// --- Warehouse --------------------------------------------------------------

func (s *Store) GetUserBox(ctx context.Context, id string) (inventory.UserBox, error) {
	var row userBoxRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+userBoxColumns+` FROM user_boxes WHERE id = $1`, id); err != nil {
		return inventory.UserBox{}, translate("user box", id, err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListUserBoxes(ctx context.Context, userID string, status inventory.BoxStatus, req page.Request) ([]inventory.UserBox, int, error) {
	req = req.Normalize()
	const where = ` WHERE user_id = $1 AND ($2 = '' OR status = $2)`

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM user_boxes`+where, userID, string(status)); err != nil {
		return nil, 0, err
	}
	var rows []userBoxRow
	err := s.db.SelectContext(ctx, &rows, `SELECT `+userBoxColumns+` FROM user_boxes`+where+`
		ORDER BY purchased_at DESC, id
		LIMIT $3 OFFSET $4`, userID, string(status), req.Size, req.Offset())
	if err != nil {
		return nil, 0, err
	}
	out := make([]inventory.UserBox, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, total, nil
}

func (s *Store) Collection(ctx context.Context, userID string) ([]inventory.CollectionEntry, error) {
	var rows []struct {
		ItemID string `db:"item_id"`
		Count  int    `db:"count"`
	}
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT item_id, COUNT(*) AS count
		FROM user_boxes
		WHERE user_id = $1 AND status = 'opened' AND item_id IS NOT NULL
		GROUP BY item_id
		ORDER BY count DESC, item_id
	`, userID); err != nil {
		return nil, err
	}
	out := make([]inventory.CollectionEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, inventory.CollectionEntry{ItemID: r.ItemID, Count: r.Count})
	}
	return out, nil
}

// --- Orders -----------------------------------------------------------------

func (s *Store) GetOrder(ctx context.Context, id string) (inventory.Order, error) {
	var row orderRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id); err != nil {
		return inventory.Order{}, translate("order", id, err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListOrders(ctx context.Context, filter inventory.OrderFilter, req page.Request) ([]inventory.Order, int, error) {
	req = req.Normalize()
	const where = ` WHERE ($1 = '' OR user_id = $1) AND ($2 = '' OR box_id = $2)`

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM orders`+where, filter.UserID, filter.BoxID); err != nil {
		return nil, 0, err
	}
	var rows []orderRow
	err := s.db.SelectContext(ctx, &rows, `SELECT `+orderColumns+` FROM orders`+where+`
		ORDER BY created_at DESC, id
		LIMIT $3 OFFSET $4`, filter.UserID, filter.BoxID, req.Size, req.Offset())
	if err != nil {
		return nil, 0, err
	}
	out := make([]inventory.Order, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, total, nil
}

func (s *Store) Stats(ctx context.Context) (inventory.Stats, error) {
	var row struct {
		Users       int   `db:"users"`
		Orders      int   `db:"orders"`
		Revenue     int64 `db:"revenue"`
		BoxesSold   int   `db:"boxes_sold"`
		BoxesOpened int   `db:"boxes_opened"`
	}
	err := s.db.GetContext(ctx, &row, `
		SELECT
			(SELECT COUNT(*) FROM users) AS users,
			(SELECT COUNT(*) FROM orders) AS orders,
			(SELECT COALESCE(SUM(total), 0) FROM orders WHERE status = 'completed') AS revenue,
			(SELECT COALESCE(SUM(quantity), 0) FROM orders WHERE status = 'completed') AS boxes_sold,
			(SELECT COUNT(*) FROM user_boxes WHERE status = 'opened') AS boxes_opened
	`)
	if err != nil {
		return inventory.Stats{}, err
	}
	return inventory.Stats{
		Users:       row.Users,
		Orders:      row.Orders,
		Revenue:     row.Revenue,
		BoxesSold:   row.BoxesSold,
		BoxesOpened: row.BoxesOpened,
	}, nil
}
