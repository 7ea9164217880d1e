package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

// プロセス内だけで完結するストア（STORE=memory、テスト用）。
// ロックはストア全体で1つ。トランザクションはコピーに書いて、成功したら差し替える。
type Store struct {
	sem chan struct{}
	st  *state
	now func() time.Time
}

type state struct {
	seq map[string]int64

	products    map[int64]model.Product
	adjustments []model.InventoryAdjustment
	orders      map[int64]model.Order
	orderItems  map[int64][]model.OrderItem // order_id -> items
	carts       map[int64]model.Cart
	cartItems   map[int64]model.CartItem
	addresses   map[int64]model.Address
	users       map[int64]model.User
	auditLogs   []model.AuditLog
}

func New() *Store {
	return &Store{
		sem: make(chan struct{}, 1),
		st:  newState(),
		now: time.Now,
	}
}

func newState() *state {
	return &state{
		seq:        map[string]int64{},
		products:   map[int64]model.Product{},
		orders:     map[int64]model.Order{},
		orderItems: map[int64][]model.OrderItem{},
		carts:      map[int64]model.Cart{},
		cartItems:  map[int64]model.CartItem{},
		addresses:  map[int64]model.Address{},
		users:      map[int64]model.User{},
	}
}

func (st *state) nextID(table string) int64 {
	st.seq[table]++
	return st.seq[table]
}

func (st *state) clone() *state {
	c := &state{
		seq:         make(map[string]int64, len(st.seq)),
		products:    make(map[int64]model.Product, len(st.products)),
		adjustments: append([]model.InventoryAdjustment(nil), st.adjustments...),
		orders:      make(map[int64]model.Order, len(st.orders)),
		orderItems:  make(map[int64][]model.OrderItem, len(st.orderItems)),
		carts:       make(map[int64]model.Cart, len(st.carts)),
		cartItems:   make(map[int64]model.CartItem, len(st.cartItems)),
		addresses:   make(map[int64]model.Address, len(st.addresses)),
		users:       make(map[int64]model.User, len(st.users)),
		auditLogs:   append([]model.AuditLog(nil), st.auditLogs...),
	}
	for k, v := range st.seq {
		c.seq[k] = v
	}
	for k, v := range st.products {
		c.products[k] = v
	}
	for k, v := range st.orders {
		c.orders[k] = v
	}
	for k, v := range st.orderItems {
		c.orderItems[k] = append([]model.OrderItem(nil), v...)
	}
	for k, v := range st.carts {
		c.carts[k] = v
	}
	for k, v := range st.cartItems {
		c.cartItems[k] = v
	}
	for k, v := range st.addresses {
		c.addresses[k] = v
	}
	for k, v := range st.users {
		c.users[k] = v
	}
	return c
}

// ロック待ちもctxで打ち切る
func (s *Store) lock(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctxErr(ctx.Err())
	}
}

func (s *Store) unlock() {
	<-s.sem
}

// 1操作ずつロックして本体に直接書く
func (s *Store) do(ctx context.Context, fn func(st *state) error) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	return fn(s.st)
}

// トランザクション内（ロックはWithinTxが持っている）
type txHandle struct {
	st *state
}

func (h txHandle) do(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return ctxErr(err)
	}
	return fn(h.st)
}

type handle interface {
	do(ctx context.Context, fn func(st *state) error) error
}

var _ repo.TransactionManager = (*Store)(nil)

// fnが成功し、かつctxの期限内に終わったときだけ反映する。
// 開発・テスト用。ストア全体を1つのロックで直列化し、txごとに全状態をコピーするので本番では使わない。
func (s *Store) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()

	work := s.st.clone()
	h := txHandle{st: work}
	if err := fn(newTxRepos(h, s.now)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return ctxErr(err)
	}
	s.st = work
	return nil
}

func ctxErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", repo.ErrTxTimeout, err)
	}
	return err
}

type txRepos struct {
	products  *productRepo
	inventory *inventoryRepo
	orders    *orderRepo
	items     *orderItemRepo
	carts     *cartRepo
	audit     *auditLogRepo
}

func newTxRepos(h handle, now func() time.Time) *txRepos {
	return &txRepos{
		products:  &productRepo{h: h, now: now},
		inventory: &inventoryRepo{h: h, now: now},
		orders:    &orderRepo{h: h, now: now},
		items:     &orderItemRepo{h: h, now: now},
		carts:     &cartRepo{h: h, now: now},
		audit:     &auditLogRepo{h: h, now: now},
	}
}

func (r *txRepos) Orders() repo.OrderRepository         { return r.orders }
func (r *txRepos) OrderItems() repo.OrderItemRepository { return r.items }
func (r *txRepos) Carts() repo.CartRepository           { return r.carts }
func (r *txRepos) CartItems() repo.CartItemRepository   { return r.carts }
func (r *txRepos) Inventory() repo.InventoryRepository  { return r.inventory }
func (r *txRepos) Products() repo.ProductRepository     { return r.products }
func (r *txRepos) AuditLogs() repo.AuditLogRepository   { return r.audit }

// トランザクション外で使うrepo
func (s *Store) Products() repo.ProductRepository     { return &productRepo{h: s, now: s.now} }
func (s *Store) Inventory() repo.InventoryRepository  { return &inventoryRepo{h: s, now: s.now} }
func (s *Store) Orders() repo.OrderRepository         { return &orderRepo{h: s, now: s.now} }
func (s *Store) OrderItems() repo.OrderItemRepository { return &orderItemRepo{h: s, now: s.now} }
func (s *Store) Carts() repo.CartRepository           { return &cartRepo{h: s, now: s.now} }
func (s *Store) CartItems() repo.CartItemRepository   { return &cartRepo{h: s, now: s.now} }
func (s *Store) Addresses() repo.AddressRepository    { return &addressRepo{h: s, now: s.now} }
func (s *Store) Users() repo.UserRepository           { return &userRepo{h: s} }
func (s *Store) AuditLogs() repo.AuditLogRepository   { return &auditLogRepo{h: s, now: s.now} }

// 認証は外部なので、ユーザーはここから直接入れる
func (s *Store) PutUser(u model.User) model.User {
	_ = s.do(context.Background(), func(st *state) error {
		if u.ID == 0 {
			u.ID = st.nextID("users")
		} else if u.ID > st.seq["users"] {
			st.seq["users"] = u.ID
		}
		now := s.now()
		if u.CreatedAt.IsZero() {
			u.CreatedAt = now
		}
		u.UpdatedAt = now
		st.users[u.ID] = u
		return nil
	})
	return u
}
