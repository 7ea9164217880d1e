package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"marketplace/internal/domain/model"
	"marketplace/internal/infra/cache"
	"marketplace/internal/infra/memory"
	"marketplace/internal/logger"
	repo "marketplace/internal/repository"

	"github.com/stretchr/testify/require"
)

// 送られたイベントを覚えておくだけ
type recordingPublisher struct {
	mu     sync.Mutex
	events []repo.OrderEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev repo.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Events() []repo.OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]repo.OrderEvent(nil), p.events...)
}

type fixture struct {
	store   *memory.Store
	events  *recordingPublisher
	orders  *OrderUsecase
	status  *OrderStatusUsecase
	admin   *AdminOrderUsecase
	carts   *CartUsecase
	address *AddressUsecase
	product *ProductUsecase
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, nil, DefaultOrderTxTimeout)
}

// wrapがあればストアのトランザクションを包んで使う
func newFixtureWith(t *testing.T, wrap func(s *memory.Store) repo.TransactionManager, timeout time.Duration) *fixture {
	t.Helper()
	s := memory.New()
	var tx repo.TransactionManager = s
	if wrap != nil {
		tx = wrap(s)
	}
	log := logger.Discard()
	events := &recordingPublisher{}
	noCache := cache.NoopProductCache{}

	status := NewOrderStatusUsecase(tx, noCache, events, log, timeout)
	return &fixture{
		store:  s,
		events: events,
		orders: NewOrderUsecase(OrderDeps{
			Tx:        tx,
			Builder:   NewOrderBuilder(s.Products(), s.Addresses(), log),
			Orders:    s.Orders(),
			Items:     s.OrderItems(),
			Carts:     s.Carts(),
			CartItems: s.CartItems(),
			Cache:     noCache,
			Events:    events,
			Log:       log,
			TxTimeout: timeout,
		}),
		status:  status,
		admin:   NewAdminOrderUsecase(s.Orders(), s.OrderItems(), status, log),
		carts:   NewCartUsecase(s.Carts(), s.CartItems(), s.Products(), log),
		address: NewAddressUsecase(s.Addresses(), log),
		product: NewProductUsecase(s.Products(), tx, noCache, log),
	}
}

func (f *fixture) seedProduct(t *testing.T, name string, price, stock int64) model.Product {
	t.Helper()
	p, err := f.store.Products().Create(context.Background(), model.Product{Name: name, Price: price, Stock: stock, IsActive: true})
	require.NoError(t, err)
	return p
}

func (f *fixture) seedAddress(t *testing.T, userID int64) model.Address {
	t.Helper()
	a, err := f.store.Addresses().Create(context.Background(), model.Address{
		UserID:     userID,
		PostalCode: "100-0001",
		Prefecture: "Tokyo",
		City:       "Chiyoda",
		Line1:      "1-1",
		Name:       "Taro",
	})
	require.NoError(t, err)
	return a
}

func (f *fixture) reload(t *testing.T, id int64) model.Product {
	t.Helper()
	ps, err := f.store.Products().FindByIDs(context.Background(), []int64{id})
	require.NoError(t, err)
	require.Len(t, ps, 1)
	return ps[0]
}

func requireKind(t *testing.T, err error, kind ErrorKind) *HTTPError {
	t.Helper()
	require.Error(t, err)
	he, ok := AsHTTPError(err)
	require.True(t, ok, "want HTTPError, got %v", err)
	require.Equal(t, kind, he.Kind, he.Message)
	return he
}

var (
	userA = model.Actor{UserID: 1, Role: model.RoleUser}
	userB = model.Actor{UserID: 2, Role: model.RoleUser}
	admin = model.Actor{UserID: 99, Role: model.RoleAdmin}
)
