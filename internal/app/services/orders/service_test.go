package orders

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/catalog"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/inventory"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/page"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/user"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/storage/memory"
	apperrors "github.com/Aromatic05/CurioBox-sub000/internal/errors"
	"github.com/Aromatic05/CurioBox-sub000/pkg/testutil"
)

type fixture struct {
	svc   *Service
	store *memory.Store
	user  user.User
	box   catalog.Box
	fox   catalog.Item
	owl   catalog.Item
}

// newFixture seeds a box whose table holds a common fox (weight 9, stock
// foxStock) and a hidden owl (weight 1, stock 1). r picks the draw.
func newFixture(t *testing.T, boxStock, foxStock int, r float64) fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	u, err := store.CreateUser(ctx, user.User{Username: "alice", Role: user.RoleUser, Status: user.StatusActive})
	require.NoError(t, err)
	box, err := store.CreateBox(ctx, catalog.Box{Name: "Forest", Price: 1500, Stock: boxStock, OnSale: true})
	require.NoError(t, err)
	fox, err := store.CreateItem(ctx, catalog.Item{Name: "Fox", Rarity: catalog.RarityCommon, Stock: foxStock})
	require.NoError(t, err)
	owl, err := store.CreateItem(ctx, catalog.Item{Name: "Owl", Rarity: catalog.RarityHidden, Stock: 1})
	require.NoError(t, err)
	require.NoError(t, store.SetBoxItems(ctx, box.ID, []catalog.BoxItem{
		{ItemID: fox.ID, Weight: 9},
		{ItemID: owl.ID, Weight: 1},
	}))

	return fixture{svc: New(store, store, testutil.Drawer(r), nil), store: store, user: u, box: box, fox: fox, owl: owl}
}

func TestPurchaseCreatesOrderAndBoxes(t *testing.T) {
	f := newFixture(t, 5, 10, 0)
	ctx := context.Background()

	res, err := f.svc.Purchase(ctx, f.user.ID, f.box.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(4500), res.Order.Total)
	assert.Len(t, res.Boxes, 3)
	for _, b := range res.Boxes {
		assert.Equal(t, inventory.BoxUnopened, b.Status)
	}

	box, err := f.store.GetBox(ctx, f.box.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, box.Stock)

	_, err = f.svc.Purchase(ctx, f.user.ID, f.box.ID, 3)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInsufficientStock))

	box, err = f.store.GetBox(ctx, f.box.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, box.Stock, "failed purchase must not touch stock")
}

func TestPurchaseValidation(t *testing.T) {
	f := newFixture(t, 5, 10, 0)
	ctx := context.Background()

	for _, q := range []int{0, -1, MaxQuantity + 1} {
		_, err := f.svc.Purchase(ctx, f.user.ID, f.box.ID, q)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidFormat), "quantity %d", q)
	}
	_, err := f.svc.Purchase(ctx, f.user.ID, "missing", 1)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))

	box := f.box
	box.OnSale = false
	_, err = f.store.UpdateBox(ctx, box)
	require.NoError(t, err)
	_, err = f.svc.Purchase(ctx, f.user.ID, f.box.ID, 1)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestPurchaseChargesCurrentPrice(t *testing.T) {
	f := newFixture(t, 5, 10, 0)
	ctx := context.Background()

	box := f.box
	box.Price = 2100
	_, err := f.store.UpdateBox(ctx, box)
	require.NoError(t, err)

	res, err := f.svc.Purchase(ctx, f.user.ID, f.box.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2100), res.Order.UnitPrice)
	assert.Equal(t, int64(4200), res.Order.Total)
}

func TestOpenDrawsAndDecrementsStock(t *testing.T) {
	f := newFixture(t, 5, 10, 0.95)
	ctx := context.Background()
	res, err := f.svc.Purchase(ctx, f.user.ID, f.box.ID, 1)
	require.NoError(t, err)

	opened, err := f.svc.Open(ctx, f.user.ID, res.Boxes[0].ID)
	require.NoError(t, err)
	assert.Equal(t, f.owl.ID, opened.Item.ID)
	assert.Equal(t, inventory.BoxOpened, opened.Box.Status)

	owl, err := f.store.GetItem(ctx, f.owl.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, owl.Stock)

	_, err = f.svc.Open(ctx, f.user.ID, res.Boxes[0].ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))

	collection, err := f.svc.Collection(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, collection, 1)
	assert.Equal(t, f.owl.ID, collection[0].Item.ID)
	assert.Equal(t, 1, collection[0].Count)
}

func TestOpenFallsBackWhenHiddenSoldOut(t *testing.T) {
	f := newFixture(t, 5, 10, 0.95)
	ctx := context.Background()
	res, err := f.svc.Purchase(ctx, f.user.ID, f.box.ID, 2)
	require.NoError(t, err)

	first, err := f.svc.Open(ctx, f.user.ID, res.Boxes[0].ID)
	require.NoError(t, err)
	assert.Equal(t, f.owl.ID, first.Item.ID)

	// owl is gone, so the whole range maps to the fox
	second, err := f.svc.Open(ctx, f.user.ID, res.Boxes[1].ID)
	require.NoError(t, err)
	assert.Equal(t, f.fox.ID, second.Item.ID)
}

func TestOpenEmptyBoxLeavesItUnopened(t *testing.T) {
	f := newFixture(t, 5, 0, 0.95)
	ctx := context.Background()
	res, err := f.svc.Purchase(ctx, f.user.ID, f.box.ID, 2)
	require.NoError(t, err)

	_, err = f.svc.Open(ctx, f.user.ID, res.Boxes[0].ID)
	require.NoError(t, err)

	_, err = f.svc.Open(ctx, f.user.ID, res.Boxes[1].ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInsufficientStock))

	ub, err := f.store.GetUserBox(ctx, res.Boxes[1].ID)
	require.NoError(t, err)
	assert.Equal(t, inventory.BoxUnopened, ub.Status)
}

func TestOpenRequiresOwnership(t *testing.T) {
	f := newFixture(t, 5, 10, 0)
	ctx := context.Background()
	res, err := f.svc.Purchase(ctx, f.user.ID, f.box.ID, 1)
	require.NoError(t, err)

	_, err = f.svc.Open(ctx, "someone-else", res.Boxes[0].ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestOpenManyStopsAtFirstFailure(t *testing.T) {
	f := newFixture(t, 5, 1, 0)
	ctx := context.Background()
	res, err := f.svc.Purchase(ctx, f.user.ID, f.box.ID, 4)
	require.NoError(t, err)

	ids := []string{res.Boxes[0].ID, res.Boxes[1].ID, res.Boxes[2].ID, res.Boxes[3].ID}
	// one fox and one owl in stock: the third open finds nothing
	results, err := f.svc.OpenMany(ctx, f.user.ID, ids)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInsufficientStock))
	assert.Len(t, results, 2)

	wh, err := f.svc.Warehouse(ctx, f.user.ID, inventory.BoxUnopened, page.Request{})
	require.NoError(t, err)
	assert.Equal(t, 2, wh.Total)
	require.NotNil(t, wh.Items[0].Box)
	assert.Equal(t, f.box.Name, wh.Items[0].Box.Name)

	_, err = f.svc.OpenMany(ctx, f.user.ID, nil)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestConcurrentPurchasesNeverOversell(t *testing.T) {
	f := newFixture(t, 7, 10, 0)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	sold := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Purchase(ctx, f.user.ID, f.box.ID, 1); err == nil {
				mu.Lock()
				sold++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 7, sold)

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, stats.BoxesSold)
	assert.Equal(t, int64(7*1500), stats.Revenue)

	mine, err := f.svc.MyOrders(ctx, f.user.ID, page.Request{Size: 5})
	require.NoError(t, err)
	assert.Equal(t, 7, mine.Total)
	assert.Len(t, mine.Items, 5)
}
