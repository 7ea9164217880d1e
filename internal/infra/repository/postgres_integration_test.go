//go:build integration

package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"marketplace/internal/config"
	"marketplace/internal/domain/model"
	"marketplace/internal/infra/cache"
	"marketplace/internal/infra/db"
	"marketplace/internal/infra/events"
	"marketplace/internal/logger"
	repo "marketplace/internal/repository"
	"marketplace/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

func startPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "app",
				"POSTGRES_PASSWORD": "app",
				"POSTGRES_DB":       "marketplace",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	cfg := config.Config{
		GoEnv:             "test",
		DatabaseURL:       fmt.Sprintf("postgres://app:app@%s:%s/marketplace?sslmode=disable", host, port.Port()),
		DBMaxOpenConns:    10,
		DBMaxIdleConns:    2,
		DBConnMaxLifetime: time.Minute,
	}
	gormDB, err := db.Connect(cfg, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gormDB) })
	require.NoError(t, db.Migrate(gormDB))
	return gormDB
}

type pgFixture struct {
	db       *gorm.DB
	products *ProductGormRepository
	orders   *usecase.OrderUsecase
	status   *usecase.OrderStatusUsecase
}

func newPgFixture(t *testing.T) *pgFixture {
	gormDB := startPostgres(t)
	log := logger.Discard()
	tx := NewTxManagerGorm(gormDB)
	products := NewProductGormRepository(gormDB)
	carts := NewCartGormRepository(gormDB)
	noCache := cache.NoopProductCache{}
	noEvents := events.NoopPublisher{}

	return &pgFixture{
		db:       gormDB,
		products: products,
		orders: usecase.NewOrderUsecase(usecase.OrderDeps{
			Tx:        tx,
			Builder:   usecase.NewOrderBuilder(products, NewAddressGormRepository(gormDB), log),
			Orders:    NewOrderGormRepository(gormDB),
			Items:     NewOrderItemGormRepository(gormDB),
			Carts:     carts,
			CartItems: carts,
			Cache:     noCache,
			Events:    noEvents,
			Log:       log,
		}),
		status: usecase.NewOrderStatusUsecase(tx, noCache, noEvents, log, 0),
	}
}

func (f *pgFixture) seed(t *testing.T, stock int64, userIDs ...int64) (model.Product, map[int64]int64) {
	t.Helper()
	ctx := context.Background()
	p, err := f.products.Create(ctx, model.Product{Name: "Mug", Price: 1000, Stock: stock, IsActive: true})
	require.NoError(t, err)

	addrs := map[int64]int64{}
	for _, uid := range userIDs {
		a, err := NewAddressGormRepository(f.db).Create(ctx, model.Address{
			UserID: uid, PostalCode: "100-0001", Prefecture: "Tokyo", City: "Chiyoda", Line1: "1-1", Name: "Taro",
			CreatedAt: time.Now(), UpdatedAt: time.Now(),
		})
		require.NoError(t, err)
		addrs[uid] = a.ID
	}
	return p, addrs
}

func (f *pgFixture) stock(t *testing.T, id int64) model.Product {
	t.Helper()
	p, err := f.products.FindByID(context.Background(), id)
	require.NoError(t, err)
	return p
}

func placeInput(addrID, productID, qty int64) usecase.PlaceOrderInput {
	return usecase.PlaceOrderInput{
		Source:        model.SingleItem{ProductID: productID, Quantity: qty},
		AddressID:     addrID,
		PaymentMethod: model.PaymentMethodCOD,
	}
}

func TestPostgres_ConcurrentOrdersNeverOversell(t *testing.T) {
	f := newPgFixture(t)
	p, addrs := f.seed(t, 5, 1, 2)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, uid := range []int64{1, 2} {
		wg.Add(1)
		go func(i int, uid int64) {
			defer wg.Done()
			_, errs[i] = f.orders.PlaceOrder(context.Background(), model.Actor{UserID: uid, Role: model.RoleUser}, placeInput(addrs[uid], p.ID, 3))
		}(i, uid)
	}
	wg.Wait()

	var okCount int
	for _, err := range errs {
		if err == nil {
			okCount++
			continue
		}
		he, isHTTP := usecase.AsHTTPError(err)
		require.True(t, isHTTP, "%v", err)
		assert.Equal(t, usecase.KindInsufficientStock, he.Kind)
	}
	assert.Equal(t, 1, okCount)

	got := f.stock(t, p.ID)
	assert.Equal(t, int64(2), got.Stock)
	assert.Equal(t, int64(1), got.OrderCount)
}

func TestPostgres_CancelRestoresStockOnce(t *testing.T) {
	f := newPgFixture(t)
	p, addrs := f.seed(t, 5, 1)
	actor := model.Actor{UserID: 1, Role: model.RoleUser}
	ctx := context.Background()

	out, err := f.orders.PlaceOrder(ctx, actor, placeInput(addrs[1], p.ID, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(3), f.stock(t, p.ID).Stock)

	_, err = f.status.ChangeStatus(ctx, actor, out.ID, model.OrderStatusCancelled)
	require.NoError(t, err)
	_, err = f.status.ChangeStatus(ctx, actor, out.ID, model.OrderStatusCancelled)
	he, ok := usecase.AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, usecase.KindInvalidTransition, he.Kind)

	got := f.stock(t, p.ID)
	assert.Equal(t, int64(5), got.Stock)
	assert.Zero(t, got.OrderCount)

	var audits int64
	require.NoError(t, f.db.Model(&model.AuditLog{}).Where("resource_id = ? AND action = ?", out.ID, model.AuditActionUpdateOrderStatus).Count(&audits).Error)
	assert.Equal(t, int64(1), audits)
}

func TestPostgres_RollbackLeavesNoOrder(t *testing.T) {
	f := newPgFixture(t)
	p, _ := f.seed(t, 5)
	ctx := context.Background()
	boom := errors.New("boom")

	err := NewTxManagerGorm(f.db).WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := r.Inventory().ReserveStock(ctx, p.ID, 4); err != nil {
			return err
		}
		if _, err := r.Orders().Create(ctx, model.Order{UserID: 1, Status: model.OrderStatusPending, PaymentMethod: model.PaymentMethodCOD, PaymentStatus: model.PaymentStatusPending, TotalAmount: 4000}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, int64(5), f.stock(t, p.ID).Stock)
	var orders int64
	require.NoError(t, f.db.Model(&model.Order{}).Count(&orders).Error)
	assert.Zero(t, orders)
}

func TestPostgres_ReserveStockRefusesNegative(t *testing.T) {
	f := newPgFixture(t)
	p, _ := f.seed(t, 2)
	inv := NewInventoryGormRepository(f.db)

	ok, err := inv.ReserveStock(context.Background(), p.ID, 3)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(2), f.stock(t, p.ID).Stock)
}

// ロック待ちがctxの期限を超えたらErrTxTimeout
func TestPostgres_LockWaitTimesOut(t *testing.T) {
	f := newPgFixture(t)
	p, _ := f.seed(t, 2)
	tm := NewTxManagerGorm(f.db)

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- tm.WithinTx(context.Background(), func(r repo.TxRepos) error {
			if _, err := r.Products().FindByIDsForUpdate(context.Background(), []int64{p.ID}); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	err := tm.WithinTx(ctx, func(r repo.TxRepos) error {
		_, err := r.Products().FindByIDsForUpdate(ctx, []int64{p.ID})
		return err
	})
	close(release)
	require.NoError(t, <-done)

	assert.ErrorIs(t, err, repo.ErrTxTimeout)
}

func TestPostgres_IdempotencyKeyUnique(t *testing.T) {
	f := newPgFixture(t)
	p, addrs := f.seed(t, 5, 1)
	actor := model.Actor{UserID: 1, Role: model.RoleUser}
	in := placeInput(addrs[1], p.ID, 1)
	in.IdempotencyKey = "k-1"

	first, err := f.orders.PlaceOrder(context.Background(), actor, in)
	require.NoError(t, err)
	again, err := f.orders.PlaceOrder(context.Background(), actor, in)
	require.NoError(t, err)

	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, int64(4), f.stock(t, p.ID).Stock)
}
