package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/catalog"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/inventory"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/page"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/user"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/storage/memory"
	apperrors "github.com/Aromatic05/CurioBox-sub000/internal/errors"
)

func seed(t *testing.T, svc *Service) (catalog.Box, catalog.Item, catalog.Item) {
	t.Helper()
	ctx := context.Background()
	box, err := svc.CreateBox(ctx, BoxInput{Name: "Forest Friends", Category: "animals", Price: 1990, Stock: 10, OnSale: true})
	require.NoError(t, err)
	fox, err := svc.CreateItem(ctx, ItemInput{Name: "Fox", Stock: 5})
	require.NoError(t, err)
	owl, err := svc.CreateItem(ctx, ItemInput{Name: "Owl", Rarity: catalog.RarityHidden, Stock: 1})
	require.NoError(t, err)
	return box, fox, owl
}

func TestBoxDetailOdds(t *testing.T) {
	svc := New(memory.New(), nil, nil)
	box, fox, owl := seed(t, svc)

	detail, err := svc.SetBoxItems(context.Background(), box.ID, []catalog.BoxItem{
		{ItemID: fox.ID, Weight: 3},
		{ItemID: owl.ID, Weight: 1},
	})
	require.NoError(t, err)
	require.Len(t, detail.Items, 2)
	assert.Equal(t, catalog.RarityCommon, fox.Rarity)

	probs := map[string]float64{}
	for _, o := range detail.Items {
		probs[o.Item.ID] = o.Probability
	}
	assert.InDelta(t, 0.75, probs[fox.ID], 1e-9)
	assert.InDelta(t, 0.25, probs[owl.ID], 1e-9)
}

func TestSetBoxItemsValidation(t *testing.T) {
	svc := New(memory.New(), nil, nil)
	box, fox, _ := seed(t, svc)
	ctx := context.Background()

	_, err := svc.SetBoxItems(ctx, box.ID, []catalog.BoxItem{{ItemID: fox.ID, Weight: 0}})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidFormat))

	_, err = svc.SetBoxItems(ctx, box.ID, []catalog.BoxItem{{ItemID: fox.ID, Weight: 1}, {ItemID: fox.ID, Weight: 2}})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidFormat))

	_, err = svc.SetBoxItems(ctx, box.ID, []catalog.BoxItem{{ItemID: "ghost", Weight: 1}})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))

	_, err = svc.SetBoxItems(ctx, "ghost", []catalog.BoxItem{{ItemID: fox.ID, Weight: 1}})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestDetailCacheInvalidation(t *testing.T) {
	svc := New(memory.New(), nil, nil)
	box, fox, _ := seed(t, svc)
	ctx := context.Background()
	_, err := svc.SetBoxItems(ctx, box.ID, []catalog.BoxItem{{ItemID: fox.ID, Weight: 1}})
	require.NoError(t, err)

	before, err := svc.GetBox(ctx, box.ID)
	require.NoError(t, err)
	assert.Equal(t, "Forest Friends", before.Box.Name)

	name := "Forest Friends II"
	_, err = svc.UpdateBox(ctx, box.ID, BoxPatch{Name: &name})
	require.NoError(t, err)
	after, err := svc.GetBox(ctx, box.ID)
	require.NoError(t, err)
	assert.Equal(t, name, after.Box.Name)

	itemName := "Arctic Fox"
	_, err = svc.UpdateItem(ctx, fox.ID, ItemPatch{Name: &itemName})
	require.NoError(t, err)
	after, err = svc.GetBox(ctx, box.ID)
	require.NoError(t, err)
	assert.Equal(t, itemName, after.Items[0].Item.Name)
}

func TestCachedDetailReportsLiveStock(t *testing.T) {
	store := memory.New()
	svc := New(store, nil, nil)
	box, fox, _ := seed(t, svc)
	ctx := context.Background()
	_, err := svc.SetBoxItems(ctx, box.ID, []catalog.BoxItem{{ItemID: fox.ID, Weight: 1}})
	require.NoError(t, err)

	before, err := svc.GetBox(ctx, box.ID)
	require.NoError(t, err)

	buyer, err := store.CreateUser(ctx, user.User{Username: "buyer", Role: user.RoleUser, Status: user.StatusActive})
	require.NoError(t, err)
	_, boxes, err := store.Purchase(ctx, inventory.PurchaseParams{UserID: buyer.ID, BoxID: box.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = store.OpenBox(ctx, buyer.ID, boxes[0].ID, func(e []catalog.DrawEntry) (string, error) { return e[0].ItemID, nil })
	require.NoError(t, err)

	after, err := svc.GetBox(ctx, box.ID)
	require.NoError(t, err)
	assert.Equal(t, before.Box.Stock-1, after.Box.Stock)
	require.Len(t, after.Items, 1)
	assert.Equal(t, before.Items[0].Item.Stock-1, after.Items[0].Item.Stock)
	assert.Equal(t, before.Items[0].Probability, after.Items[0].Probability)
}

func TestListBoxesHidesOffSaleFromShoppers(t *testing.T) {
	svc := New(memory.New(), nil, nil)
	ctx := context.Background()
	_, err := svc.CreateBox(ctx, BoxInput{Name: "Cheap", Price: 100, Stock: 1, OnSale: true})
	require.NoError(t, err)
	_, err = svc.CreateBox(ctx, BoxInput{Name: "Pricey", Price: 900, Stock: 1, OnSale: true})
	require.NoError(t, err)
	_, err = svc.CreateBox(ctx, BoxInput{Name: "Retired", Price: 500, Stock: 1, OnSale: false})
	require.NoError(t, err)

	res, err := svc.ListBoxes(ctx, catalog.BoxFilter{Sort: catalog.SortPriceDesc}, page.Request{}, false)
	require.NoError(t, err)
	require.Equal(t, 2, res.Total)
	assert.Equal(t, "Pricey", res.Items[0].Name)

	res, err = svc.ListBoxes(ctx, catalog.BoxFilter{}, page.Request{}, true)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)

	_, err = svc.ListBoxes(ctx, catalog.BoxFilter{Sort: "random"}, page.Request{}, false)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidFormat))
}

func TestDeleteGuards(t *testing.T) {
	store := memory.New()
	svc := New(store, nil, nil)
	box, fox, owl := seed(t, svc)
	ctx := context.Background()
	_, err := svc.SetBoxItems(ctx, box.ID, []catalog.BoxItem{{ItemID: fox.ID, Weight: 1}})
	require.NoError(t, err)

	err = svc.DeleteItem(ctx, fox.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))
	require.NoError(t, svc.DeleteItem(ctx, owl.ID))

	buyer, err := store.CreateUser(ctx, user.User{Username: "buyer", Role: user.RoleUser, Status: user.StatusActive})
	require.NoError(t, err)
	_, _, err = store.Purchase(ctx, inventory.PurchaseParams{UserID: buyer.ID, BoxID: box.ID, Quantity: 1})
	require.NoError(t, err)
	err = svc.DeleteBox(ctx, box.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))
}

func TestValidation(t *testing.T) {
	svc := New(memory.New(), nil, nil)
	ctx := context.Background()
	_, err := svc.CreateBox(ctx, BoxInput{Name: "", Price: 1})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidFormat))
	_, err = svc.CreateBox(ctx, BoxInput{Name: "x", Price: -1})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidFormat))
	_, err = svc.CreateItem(ctx, ItemInput{Name: "x", Rarity: "mythic"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidFormat))
}
