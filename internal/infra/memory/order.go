package memory

import (
	"context"
	"sort"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

type orderRepo struct {
	h   handle
	now func() time.Time
}

var _ repo.OrderRepository = (*orderRepo)(nil)

func (r *orderRepo) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	var out model.Order
	err := r.h.do(ctx, func(st *state) error {
		o, ok := st.orders[orderID]
		if !ok {
			return repo.ErrNotFound
		}
		out = o
		return nil
	})
	return out, err
}

func (r *orderRepo) FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error) {
	return r.FindByID(ctx, orderID)
}

func (r *orderRepo) ListByUserID(ctx context.Context, userID int64, p int, limit int) ([]model.Order, int64, error) {
	return r.list(ctx, p, limit, func(o model.Order) bool { return o.UserID == userID })
}

func (r *orderRepo) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	return r.list(ctx, f.Page, f.Limit, func(o model.Order) bool {
		if f.Status != "" && string(o.Status) != f.Status {
			return false
		}
		if f.UserID != nil && o.UserID != *f.UserID {
			return false
		}
		if f.From != nil && o.CreatedAt.Before(*f.From) {
			return false
		}
		if f.To != nil && o.CreatedAt.After(*f.To) {
			return false
		}
		return true
	})
}

// id降順
func (r *orderRepo) list(ctx context.Context, p, limit int, match func(model.Order) bool) ([]model.Order, int64, error) {
	var out []model.Order
	var total int64
	err := r.h.do(ctx, func(st *state) error {
		var hits []model.Order
		for _, o := range st.orders {
			if match(o) {
				hits = append(hits, o)
			}
		}
		sort.Slice(hits, func(i, j int) bool { return hits[i].ID > hits[j].ID })
		total = int64(len(hits))
		out = page(hits, p, limit)
		return nil
	})
	if err != nil {
		return []model.Order{}, 0, err
	}
	return out, total, nil
}

func (r *orderRepo) Create(ctx context.Context, order model.Order) (model.Order, error) {
	err := r.h.do(ctx, func(st *state) error {
		if order.IdempotencyKey != nil {
			for _, o := range st.orders {
				if o.UserID == order.UserID && o.IdempotencyKey != nil && *o.IdempotencyKey == *order.IdempotencyKey {
					return repo.ErrConflict
				}
			}
		}
		order.ID = st.nextID("orders")
		now := r.now()
		order.CreatedAt, order.UpdatedAt = now, now
		st.orders[order.ID] = order
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}
	return order, nil
}

func (r *orderRepo) UpdateStatus(ctx context.Context, orderID int64, from model.OrderStatus, to model.OrderStatus, payment model.PaymentStatus) error {
	return r.h.do(ctx, func(st *state) error {
		o, ok := st.orders[orderID]
		if !ok || o.Status != from {
			return repo.ErrConflict
		}
		o.Status = to
		o.PaymentStatus = payment
		o.UpdatedAt = r.now()
		st.orders[orderID] = o
		return nil
	})
}

func (r *orderRepo) FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error) {
	var out model.Order
	var found bool
	err := r.h.do(ctx, func(st *state) error {
		for _, o := range st.orders {
			if o.UserID == userID && o.IdempotencyKey != nil && *o.IdempotencyKey == key {
				out, found = o, true
				return nil
			}
		}
		return nil
	})
	return out, found, err
}

type orderItemRepo struct {
	h   handle
	now func() time.Time
}

var _ repo.OrderItemRepository = (*orderItemRepo)(nil)

func (r *orderItemRepo) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) ([]model.OrderItem, error) {
	rows := make([]model.OrderItem, len(items))
	copy(rows, items)
	err := r.h.do(ctx, func(st *state) error {
		now := r.now()
		for i := range rows {
			rows[i].ID = st.nextID("order_items")
			rows[i].OrderID = orderID
			rows[i].CreatedAt = now
		}
		st.orderItems[orderID] = append(st.orderItems[orderID], rows...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *orderItemRepo) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	out := []model.OrderItem{}
	err := r.h.do(ctx, func(st *state) error {
		out = append(out, st.orderItems[orderID]...)
		return nil
	})
	if err != nil {
		return []model.OrderItem{}, err
	}
	return out, nil
}
