package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var homeAddress = AddressInput{
	PostalCode: "150-0001",
	Prefecture: "Tokyo",
	City:       "Shibuya",
	Line1:      "2-3-4",
	Name:       "Hanako",
}

func TestAddress_FirstIsDefault(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.address.Create(ctx, userA.UserID, homeAddress)
	require.NoError(t, err)
	assert.True(t, first.IsDefault)

	second, err := f.address.Create(ctx, userA.UserID, homeAddress)
	require.NoError(t, err)
	assert.False(t, second.IsDefault)

	require.NoError(t, f.address.SetDefault(ctx, userA.UserID, second.ID))
	list, err := f.address.List(ctx, userA.UserID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
}

func TestAddress_Validation(t *testing.T) {
	f := newFixture(t)
	in := homeAddress
	in.City = "  "

	_, err := f.address.Create(context.Background(), userA.UserID, in)
	requireKind(t, err, KindInvalidRequest)

	_, err = f.address.Create(context.Background(), 0, homeAddress)
	he := requireKind(t, err, KindUnauthorized)
	assert.Equal(t, 401, he.Status)
}

func TestAddress_OwnerOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.address.Create(ctx, userA.UserID, homeAddress)
	require.NoError(t, err)

	err = f.address.Update(ctx, userB.UserID, a.ID, homeAddress)
	he := requireKind(t, err, KindUnauthorized)
	assert.Equal(t, 403, he.Status)

	err = f.address.Delete(ctx, userA.UserID, a.ID+10)
	requireKind(t, err, KindNotFound)

	updated := homeAddress
	updated.City = "Meguro"
	require.NoError(t, f.address.Update(ctx, userA.UserID, a.ID, updated))
	list, err := f.address.List(ctx, userA.UserID)
	require.NoError(t, err)
	assert.Equal(t, "Meguro", list[0].City)

	require.NoError(t, f.address.Delete(ctx, userA.UserID, a.ID))
}

// 注文後に住所を変えても注文側のコピーは変わらない
func TestAddress_OrderKeepsSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProduct(t, "A", 100, 5)

	a, err := f.address.Create(ctx, userA.UserID, homeAddress)
	require.NoError(t, err)
	order, err := f.orders.PlaceOrder(ctx, userA, single(a.ID, p.ID, 1))
	require.NoError(t, err)

	moved := homeAddress
	moved.City = "Sapporo"
	require.NoError(t, f.address.Update(ctx, userA.UserID, a.ID, moved))
	require.NoError(t, f.address.Delete(ctx, userA.UserID, a.ID))

	got, err := f.orders.GetOrder(ctx, userA, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "Shibuya", got.ShippingAddress.City)
}
