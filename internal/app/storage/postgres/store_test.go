package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/catalog"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/inventory"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/user"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/storage"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := New(db)
	store.now = func() time.Time { return fixedNow }
	seq := 0
	store.id = func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}
	return store, mock
}

func boxRows(stock int, onSale bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "description", "cover_image", "category", "price", "stock", "on_sale", "created_at", "updated_at"}).
		AddRow("box-1", "Forest Friends", "", "", "animals", int64(1990), stock, onSale, fixedNow, fixedNow)
}

func userBoxRows(status string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "box_id", "order_id", "status", "item_id", "purchased_at", "opened_at"}).
		AddRow("ub-1", "user-1", "box-1", "order-1", status, nil, fixedNow, nil)
}

func TestGetUserNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.GetUser(context.Background(), "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})

	_, err := store.CreateUser(context.Background(), user.User{Username: "alice", PasswordHash: "x", Role: user.RoleUser, Status: user.StatusActive})
	require.ErrorIs(t, err, storage.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseCommits(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM boxes WHERE id = \$1 FOR UPDATE`).WithArgs("box-1").WillReturnRows(boxRows(5, true))
	mock.ExpectExec(`UPDATE boxes SET stock = stock - \$2`).WithArgs("box-1", 2, fixedNow).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO orders`).
		WithArgs("id-1", "user-1", "box-1", 2, int64(1990), int64(3980), "completed", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO user_boxes`).WithArgs("id-2", "user-1", "box-1", "id-1", "unopened", fixedNow).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO user_boxes`).WithArgs("id-3", "user-1", "box-1", "id-1", "unopened", fixedNow).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	order, boxes, err := store.Purchase(context.Background(), inventory.PurchaseParams{UserID: "user-1", BoxID: "box-1", Quantity: 2})
	require.NoError(t, err)
	require.Equal(t, int64(3980), order.Total)
	require.Len(t, boxes, 2)
	require.Equal(t, order.ID, boxes[1].OrderID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseUnknownUserIsNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM boxes WHERE id = \$1 FOR UPDATE`).WithArgs("box-1").WillReturnRows(boxRows(5, true))
	mock.ExpectExec(`UPDATE boxes SET stock = stock - \$2`).WithArgs("box-1", 1, fixedNow).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO orders`).
		WillReturnError(&pq.Error{Code: "23503", Message: "violates foreign key constraint \"orders_user_id_fkey\""})
	mock.ExpectRollback()

	_, _, err := store.Purchase(context.Background(), inventory.PurchaseParams{UserID: "ghost", BoxID: "box-1", Quantity: 1})
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.NotErrorIs(t, err, storage.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseRollsBackOnShortStock(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM boxes WHERE id = \$1 FOR UPDATE`).WithArgs("box-1").WillReturnRows(boxRows(1, true))
	mock.ExpectRollback()

	_, _, err := store.Purchase(context.Background(), inventory.PurchaseParams{UserID: "user-1", BoxID: "box-1", Quantity: 3})
	require.ErrorIs(t, err, storage.ErrInsufficientStock)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseRejectsOffSaleBox(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM boxes WHERE id = \$1 FOR UPDATE`).WithArgs("box-1").WillReturnRows(boxRows(5, false))
	mock.ExpectRollback()

	_, _, err := store.Purchase(context.Background(), inventory.PurchaseParams{UserID: "user-1", BoxID: "box-1", Quantity: 1})
	require.ErrorIs(t, err, storage.ErrNotOnSale)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenBoxDrawsAndCommits(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM user_boxes WHERE id = \$1 AND user_id = \$2 FOR UPDATE`).WithArgs("ub-1", "user-1").WillReturnRows(userBoxRows("unopened"))
	mock.ExpectQuery(`FROM box_items bi`).WithArgs("box-1").WillReturnRows(
		sqlmock.NewRows([]string{"item_id", "weight", "stock"}).
			AddRow("item-a", 0.9, 10).
			AddRow("item-b", 0.1, 1),
	)
	mock.ExpectExec(`UPDATE items SET stock = stock - 1`).WithArgs("item-b", fixedNow).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE user_boxes SET status = \$2`).WithArgs("ub-1", "opened", "item-b", fixedNow).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var seen []catalog.DrawEntry
	ub, err := store.OpenBox(context.Background(), "user-1", "ub-1", func(entries []catalog.DrawEntry) (string, error) {
		seen = entries
		return "item-b", nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 2)
	require.Equal(t, inventory.BoxOpened, ub.Status)
	require.Equal(t, "item-b", ub.ItemID)
	require.Equal(t, fixedNow, ub.OpenedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenBoxAlreadyOpened(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM user_boxes WHERE id = \$1 AND user_id = \$2 FOR UPDATE`).WithArgs("ub-1", "user-1").WillReturnRows(userBoxRows("opened"))
	mock.ExpectRollback()

	_, err := store.OpenBox(context.Background(), "user-1", "ub-1", func([]catalog.DrawEntry) (string, error) {
		t.Fatal("draw must not run for an opened box")
		return "", nil
	})
	require.ErrorIs(t, err, storage.ErrAlreadyOpened)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenBoxRollsBackWhenDrawFails(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM user_boxes WHERE id = \$1 AND user_id = \$2 FOR UPDATE`).WithArgs("ub-1", "user-1").WillReturnRows(userBoxRows("unopened"))
	mock.ExpectQuery(`FROM box_items bi`).WithArgs("box-1").WillReturnRows(sqlmock.NewRows([]string{"item_id", "weight", "stock"}))
	mock.ExpectRollback()

	drawErr := errors.New("nothing to draw")
	_, err := store.OpenBox(context.Background(), "user-1", "ub-1", func(entries []catalog.DrawEntry) (string, error) {
		require.Empty(t, entries)
		return "", drawErr
	})
	require.ErrorIs(t, err, drawErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenBoxRejectsItemOutsideEntries(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM user_boxes WHERE id = \$1 AND user_id = \$2 FOR UPDATE`).WithArgs("ub-1", "user-1").WillReturnRows(userBoxRows("unopened"))
	mock.ExpectQuery(`FROM box_items bi`).WithArgs("box-1").WillReturnRows(
		sqlmock.NewRows([]string{"item_id", "weight", "stock"}).AddRow("item-a", 1.0, 3),
	)
	mock.ExpectRollback()

	_, err := store.OpenBox(context.Background(), "user-1", "ub-1", func([]catalog.DrawEntry) (string, error) {
		return "item-z", nil
	})
	require.ErrorIs(t, err, storage.ErrNotDrawable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteBoxInUseIsConflict(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`DELETE FROM boxes WHERE id = \$1`).WithArgs("box-1").
		WillReturnError(&pq.Error{Code: "23503", Message: "violates foreign key constraint"})

	err := store.DeleteBox(context.Background(), "box-1")
	require.ErrorIs(t, err, storage.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store := New(db)
	ctx := context.Background()

	u, err := store.CreateUser(ctx, user.User{Username: "it_" + uuid.NewString()[:8], PasswordHash: "x", Role: user.RoleUser, Status: user.StatusActive})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	box, err := store.CreateBox(ctx, catalog.Box{Name: "Integration", Price: 500, Stock: 3, OnSale: true})
	if err != nil {
		t.Fatalf("create box: %v", err)
	}
	item, err := store.CreateItem(ctx, catalog.Item{Name: "Token", Rarity: catalog.RarityCommon, Stock: 2})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	if err := store.SetBoxItems(ctx, box.ID, []catalog.BoxItem{{ItemID: item.ID, Weight: 1}}); err != nil {
		t.Fatalf("set box items: %v", err)
	}

	_, boxes, err := store.Purchase(ctx, inventory.PurchaseParams{UserID: u.ID, BoxID: box.ID, Quantity: 1})
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	opened, err := store.OpenBox(ctx, u.ID, boxes[0].ID, func(entries []catalog.DrawEntry) (string, error) {
		return entries[0].ItemID, nil
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if opened.ItemID != item.ID {
		t.Fatalf("expected %s, got %s", item.ID, opened.ItemID)
	}

	got, err := store.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got.Stock != 1 {
		t.Fatalf("expected item stock 1, got %d", got.Stock)
	}
}
