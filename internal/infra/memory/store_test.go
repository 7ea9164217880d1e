package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func seedProduct(t *testing.T, s *Store, price, stock int64) model.Product {
	t.Helper()
	p, err := s.Products().Create(context.Background(), model.Product{Name: "item", Price: price, Stock: stock, IsActive: true})
	require.NoError(t, err)
	return p
}

func TestWithinTx_RollbackOnError(t *testing.T) {
	s := New()
	p := seedProduct(t, s, 100, 5)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(r repo.TxRepos) error {
		ok, err := r.Inventory().ReserveStock(ctx, p.ID, 3)
		require.NoError(t, err)
		require.True(t, ok)
		_, err = r.Orders().Create(ctx, model.Order{UserID: 1, Status: model.OrderStatusPending})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.Products().FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Stock)
	assert.Equal(t, int64(0), got.OrderCount)

	orders, total, err := s.Orders().ListByUserID(ctx, 1, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Zero(t, total)
}

func TestWithinTx_DeadlineDiscardsWork(t *testing.T) {
	s := New()
	p := seedProduct(t, s, 100, 5)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := r.Inventory().ReserveStock(ctx, p.ID, 1); err != nil {
			return err
		}
		<-ctx.Done()
		return nil
	})
	require.ErrorIs(t, err, repo.ErrTxTimeout)

	got, err := s.Products().FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Stock)
}

func TestWithinTx_LockWaitHonoursContext(t *testing.T) {
	s := New()
	hold := make(chan struct{})
	started := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		_ = s.WithinTx(context.Background(), func(r repo.TxRepos) error {
			close(started)
			<-hold
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := s.WithinTx(ctx, func(r repo.TxRepos) error { return nil })
	require.ErrorIs(t, err, repo.ErrTxTimeout)

	close(hold)
	<-done
}

func TestReserveStock_NeverNegativeUnderConcurrency(t *testing.T) {
	s := New()
	p := seedProduct(t, s, 100, 10)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithinTx(ctx, func(r repo.TxRepos) error {
				ok, err := r.Inventory().ReserveStock(ctx, p.ID, 3)
				if err != nil {
					return err
				}
				if !ok {
					return errors.New("insufficient")
				}
				return nil
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	got, err := s.Products().FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, succeeded)
	assert.Equal(t, int64(1), got.Stock)
	assert.Equal(t, int64(3), got.OrderCount)
}

func TestReleaseStock_ReachesSoftDeletedProduct(t *testing.T) {
	s := New()
	p := seedProduct(t, s, 100, 2)
	ctx := context.Background()

	ok, err := s.Inventory().ReserveStock(ctx, p.ID, 2)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, s.Products().SoftDelete(ctx, p.ID))

	_, err = s.Products().FindByID(ctx, p.ID)
	require.ErrorIs(t, err, repo.ErrNotFound)

	require.NoError(t, s.Inventory().ReleaseStock(ctx, p.ID, 2))
	assert.Equal(t, int64(2), s.st.products[p.ID].Stock)
	assert.Equal(t, int64(0), s.st.products[p.ID].OrderCount)
}

func TestOrders_IdempotencyKeyIsUniquePerUser(t *testing.T) {
	s := New()
	ctx := context.Background()
	key := "k-1"

	first, err := s.Orders().Create(ctx, model.Order{UserID: 1, IdempotencyKey: &key})
	require.NoError(t, err)

	_, err = s.Orders().Create(ctx, model.Order{UserID: 1, IdempotencyKey: &key})
	require.ErrorIs(t, err, repo.ErrConflict)

	_, err = s.Orders().Create(ctx, model.Order{UserID: 2, IdempotencyKey: &key})
	require.NoError(t, err)

	got, found, err := s.Orders().FindByIdempotencyKey(ctx, 1, key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, first.ID, got.ID)
}

func TestOrders_UpdateStatusIsCompareAndSet(t *testing.T) {
	s := New()
	ctx := context.Background()
	o, err := s.Orders().Create(ctx, model.Order{UserID: 1, Status: model.OrderStatusPending})
	require.NoError(t, err)

	require.NoError(t, s.Orders().UpdateStatus(ctx, o.ID, model.OrderStatusPending, model.OrderStatusCancelled, model.PaymentStatusPending))
	err = s.Orders().UpdateStatus(ctx, o.ID, model.OrderStatusPending, model.OrderStatusInProcess, model.PaymentStatusPending)
	require.ErrorIs(t, err, repo.ErrConflict)
}

func TestCart_UpsertAndClear(t *testing.T) {
	s := New()
	ctx := context.Background()

	cart, err := s.Carts().GetOrCreateByUserID(ctx, 7)
	require.NoError(t, err)
	again, err := s.Carts().GetOrCreateByUserID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, cart.ID, again.ID)

	items := s.CartItems()
	require.NoError(t, items.UpsertByCartAndProduct(ctx, cart.ID, 1, "", 1, 100))
	require.NoError(t, items.UpsertByCartAndProduct(ctx, cart.ID, 1, "", 2, 100))
	require.NoError(t, items.UpsertByCartAndProduct(ctx, cart.ID, 1, "red", 1, 100))

	list, err := items.ListByCartID(ctx, cart.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(3), list[0].Quantity)
	assert.Equal(t, "red", list[1].Variant)

	owned, err := items.IsOwnedByUser(ctx, list[0].ID, 7)
	require.NoError(t, err)
	assert.True(t, owned)
	owned, err = items.IsOwnedByUser(ctx, list[0].ID, 8)
	require.NoError(t, err)
	assert.False(t, owned)

	require.NoError(t, s.Carts().Clear(ctx, cart.ID))
	list, err = items.ListByCartID(ctx, cart.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAddresses_SetDefaultKeepsOne(t *testing.T) {
	s := New()
	ctx := context.Background()
	addrs := s.Addresses()

	a1, err := addrs.Create(ctx, model.Address{UserID: 1, Name: "a", IsDefault: true})
	require.NoError(t, err)
	a2, err := addrs.Create(ctx, model.Address{UserID: 1, Name: "b"})
	require.NoError(t, err)

	require.NoError(t, addrs.SetDefault(ctx, 1, a2.ID))
	list, err := addrs.ListByUserID(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, a2.ID, list[0].ID)
	assert.True(t, list[0].IsDefault)
	assert.False(t, list[1].IsDefault)

	err = addrs.SetDefault(ctx, 2, a1.ID)
	require.ErrorIs(t, err, repo.ErrNotFound)

	_, err = addrs.IsOwnedByUser(ctx, 999, 1)
	require.ErrorIs(t, err, repo.ErrNotFound)
}

func TestUsers_PutAndFind(t *testing.T) {
	s := New()
	ctx := context.Background()

	u := s.PutUser(model.User{ID: 5, Email: "a@example.com", Role: model.RoleAdmin})
	assert.Equal(t, int64(5), u.ID)

	got, err := s.Users().FindByID(ctx, 5)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.RoleAdmin, got.Role)

	missing, err := s.Users().FindByID(ctx, 6)
	require.NoError(t, err)
	assert.Nil(t, missing)

	next := s.PutUser(model.User{Email: "b@example.com"})
	assert.Equal(t, int64(6), next.ID)
}
