package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"

	"gorm.io/gorm"
)

type productRepo struct {
	h   handle
	now func() time.Time
}

var _ repo.ProductRepository = (*productRepo)(nil)

func alive(p model.Product) bool {
	return !p.DeletedAt.Valid
}

func (r *productRepo) ListPublic(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	var out []model.Product
	var total int64
	err := r.h.do(ctx, func(st *state) error {
		s := strings.ToLower(strings.TrimSpace(q.Q))
		var hits []model.Product
		for _, p := range st.products {
			if !alive(p) || !p.IsActive {
				continue
			}
			if s != "" && !strings.Contains(strings.ToLower(p.Name), s) {
				continue
			}
			if q.MinPrice != nil && p.Price < *q.MinPrice {
				continue
			}
			if q.MaxPrice != nil && p.Price > *q.MaxPrice {
				continue
			}
			hits = append(hits, p)
		}
		sortProducts(hits, q.Sort)
		total = int64(len(hits))
		out = page(hits, q.Page, q.Limit)
		return nil
	})
	if err != nil {
		return []model.Product{}, 0, err
	}
	return out, total, nil
}

func sortProducts(ps []model.Product, key string) {
	sort.Slice(ps, func(i, j int) bool {
		a, b := ps[i], ps[j]
		switch key {
		case "price_asc":
			if a.Price != b.Price {
				return a.Price < b.Price
			}
			return a.ID < b.ID
		case "price_desc":
			if a.Price != b.Price {
				return a.Price > b.Price
			}
		case "popular":
			if a.OrderCount != b.OrderCount {
				return a.OrderCount > b.OrderCount
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		}
		return a.ID > b.ID
	})
}

func page[T any](rows []T, p, limit int) []T {
	if p <= 0 {
		p = 1
	}
	if limit <= 0 {
		return append([]T{}, rows...)
	}
	from := (p - 1) * limit
	if from >= len(rows) {
		return []T{}
	}
	to := from + limit
	if to > len(rows) {
		to = len(rows)
	}
	return append([]T{}, rows[from:to]...)
}

func (r *productRepo) FindByID(ctx context.Context, id int64) (model.Product, error) {
	var out model.Product
	err := r.h.do(ctx, func(st *state) error {
		p, ok := st.products[id]
		if !ok || !alive(p) {
			return repo.ErrNotFound
		}
		out = p
		return nil
	})
	return out, err
}

func (r *productRepo) FindByIDs(ctx context.Context, ids []int64) ([]model.Product, error) {
	out := []model.Product{}
	err := r.h.do(ctx, func(st *state) error {
		for _, id := range uniqueSorted(ids) {
			if p, ok := st.products[id]; ok && alive(p) {
				out = append(out, p)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ストア全体をロックしているので通常の読み取りと同じ
func (r *productRepo) FindByIDsForUpdate(ctx context.Context, ids []int64) ([]model.Product, error) {
	return r.FindByIDs(ctx, ids)
}

func (r *productRepo) Create(ctx context.Context, p model.Product) (model.Product, error) {
	err := r.h.do(ctx, func(st *state) error {
		p.ID = st.nextID("products")
		now := r.now()
		p.CreatedAt, p.UpdatedAt = now, now
		st.products[p.ID] = p
		return nil
	})
	if err != nil {
		return model.Product{}, err
	}
	return p, nil
}

func (r *productRepo) Update(ctx context.Context, p model.Product) error {
	return r.h.do(ctx, func(st *state) error {
		cur, ok := st.products[p.ID]
		if !ok || !alive(cur) {
			return repo.ErrNotFound
		}
		cur.Name = p.Name
		cur.Description = p.Description
		cur.Price = p.Price
		cur.IsActive = p.IsActive
		cur.UpdatedAt = r.now()
		st.products[p.ID] = cur
		return nil
	})
}

func (r *productRepo) SoftDelete(ctx context.Context, id int64) error {
	return r.h.do(ctx, func(st *state) error {
		cur, ok := st.products[id]
		if !ok || !alive(cur) {
			return repo.ErrNotFound
		}
		cur.DeletedAt = gorm.DeletedAt{Time: r.now(), Valid: true}
		st.products[id] = cur
		return nil
	})
}

type inventoryRepo struct {
	h   handle
	now func() time.Time
}

var _ repo.InventoryRepository = (*inventoryRepo)(nil)

func (r *inventoryRepo) SetStock(ctx context.Context, productID int64, newStock int64) error {
	return r.h.do(ctx, func(st *state) error {
		p, ok := st.products[productID]
		if !ok || !alive(p) {
			return repo.ErrNotFound
		}
		p.Stock = newStock
		p.UpdatedAt = r.now()
		st.products[productID] = p
		return nil
	})
}

func (r *inventoryRepo) ReserveStock(ctx context.Context, productID int64, qty int64) (bool, error) {
	var ok bool
	err := r.h.do(ctx, func(st *state) error {
		p, found := st.products[productID]
		if !found || !alive(p) || p.Stock < qty {
			return nil
		}
		p.Stock -= qty
		p.OrderCount++
		p.UpdatedAt = r.now()
		st.products[productID] = p
		ok = true
		return nil
	})
	return ok, err
}

// 論理削除済みの商品にも戻す
func (r *inventoryRepo) ReleaseStock(ctx context.Context, productID int64, qty int64) error {
	return r.h.do(ctx, func(st *state) error {
		p, ok := st.products[productID]
		if !ok {
			return repo.ErrNotFound
		}
		p.Stock += qty
		if p.OrderCount > 0 {
			p.OrderCount--
		}
		p.UpdatedAt = r.now()
		st.products[productID] = p
		return nil
	})
}

func (r *inventoryRepo) CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error {
	return r.h.do(ctx, func(st *state) error {
		adj.ID = st.nextID("inventory_adjustments")
		adj.CreatedAt = r.now()
		st.adjustments = append(st.adjustments, adj)
		return nil
	})
}

func uniqueSorted(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
