package memory

import (
	"context"
	"errors"
	"sort"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

// CartとCartItemの両方を扱う
type cartRepo struct {
	h   handle
	now func() time.Time
}

var (
	_ repo.CartRepository     = (*cartRepo)(nil)
	_ repo.CartItemRepository = (*cartRepo)(nil)
)

func findCart(st *state, userID int64) (model.Cart, bool) {
	for _, c := range st.carts {
		if c.UserID == userID {
			return c, true
		}
	}
	return model.Cart{}, false
}

func (r *cartRepo) GetOrCreateByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	var out model.Cart
	err := r.h.do(ctx, func(st *state) error {
		if c, ok := findCart(st, userID); ok {
			out = c
			return nil
		}
		now := r.now()
		out = model.Cart{ID: st.nextID("carts"), UserID: userID, CreatedAt: now, UpdatedAt: now}
		st.carts[out.ID] = out
		return nil
	})
	return out, err
}

func (r *cartRepo) FindByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	var out model.Cart
	err := r.h.do(ctx, func(st *state) error {
		c, ok := findCart(st, userID)
		if !ok {
			return repo.ErrNotFound
		}
		out = c
		return nil
	})
	return out, err
}

func (r *cartRepo) Clear(ctx context.Context, cartID int64) error {
	return r.h.do(ctx, func(st *state) error {
		for id, it := range st.cartItems {
			if it.CartID == cartID {
				delete(st.cartItems, id)
			}
		}
		return nil
	})
}

func (r *cartRepo) ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	out := []model.CartItem{}
	err := r.h.do(ctx, func(st *state) error {
		for _, it := range st.cartItems {
			if it.CartID == cartID {
				out = append(out, it)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return nil
	})
	if err != nil {
		return []model.CartItem{}, err
	}
	return out, nil
}

// 同一商品・同一バリエーションは数量加算
func (r *cartRepo) UpsertByCartAndProduct(ctx context.Context, cartID int64, productID int64, variant string, addQty int64, unitPriceSnapshot int64) error {
	if addQty <= 0 {
		return errors.New("invalid quantity")
	}
	return r.h.do(ctx, func(st *state) error {
		now := r.now()
		for id, it := range st.cartItems {
			if it.CartID == cartID && it.ProductID == productID && it.Variant == variant {
				it.Quantity += addQty
				it.UpdatedAt = now
				st.cartItems[id] = it
				return nil
			}
		}
		id := st.nextID("cart_items")
		st.cartItems[id] = model.CartItem{
			ID:                id,
			CartID:            cartID,
			ProductID:         productID,
			Variant:           variant,
			Quantity:          addQty,
			UnitPriceSnapshot: unitPriceSnapshot,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		return nil
	})
}

func (r *cartRepo) UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error {
	return r.h.do(ctx, func(st *state) error {
		it, ok := st.cartItems[cartItemID]
		if !ok {
			return repo.ErrNotFound
		}
		it.Quantity = qty
		it.UpdatedAt = r.now()
		st.cartItems[cartItemID] = it
		return nil
	})
}

func (r *cartRepo) DeleteByID(ctx context.Context, cartItemID int64) error {
	return r.h.do(ctx, func(st *state) error {
		if _, ok := st.cartItems[cartItemID]; !ok {
			return repo.ErrNotFound
		}
		delete(st.cartItems, cartItemID)
		return nil
	})
}

func (r *cartRepo) FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error) {
	var out model.CartItem
	err := r.h.do(ctx, func(st *state) error {
		it, ok := st.cartItems[cartItemID]
		if !ok {
			return repo.ErrNotFound
		}
		out = it
		return nil
	})
	return out, err
}

func (r *cartRepo) IsOwnedByUser(ctx context.Context, cartItemID int64, userID int64) (bool, error) {
	var owned bool
	err := r.h.do(ctx, func(st *state) error {
		it, ok := st.cartItems[cartItemID]
		if !ok {
			return nil
		}
		c, ok := st.carts[it.CartID]
		owned = ok && c.UserID == userID
		return nil
	})
	return owned, err
}
