package usecase

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

// 注文の組み立て（DBにはまだ書かない）。価格はサーバ側の現在価格を使う。
type OrderBuilder struct {
	products  repo.ProductRepository
	addresses repo.AddressRepository
	log       *slog.Logger
}

func NewOrderBuilder(products repo.ProductRepository, addresses repo.AddressRepository, log *slog.Logger) *OrderBuilder {
	return &OrderBuilder{products: products, addresses: addresses, log: log}
}

type BuildOrderInput struct {
	UserID        int64
	Source        model.OrderSource
	AddressID     int64
	PaymentMethod model.PaymentMethod
}

// 注文明細1行分
type OrderLine struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int64  `json:"quantity"`
	Price     int64  `json:"price"`
	Total     int64  `json:"total"`
}

type BuiltOrder struct {
	UserID        int64
	Source        model.OrderSourceKind
	Lines         []OrderLine
	Address       model.Address
	PaymentMethod model.PaymentMethod
	Total         int64
}

// 明細に出てくる商品ID（重複なし）
func (b BuiltOrder) ProductIDs() []int64 {
	seen := make(map[int64]struct{}, len(b.Lines))
	ids := make([]int64, 0, len(b.Lines))
	for _, l := range b.Lines {
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		ids = append(ids, l.ProductID)
	}
	return ids
}

// 商品ごとの要求数量（同じ商品が複数行にあれば合算）
func (b BuiltOrder) RequestedByProduct() map[int64]int64 {
	out := make(map[int64]int64, len(b.Lines))
	for _, l := range b.Lines {
		out[l.ProductID] += l.Quantity
	}
	return out
}

func (b *OrderBuilder) Build(ctx context.Context, in BuildOrderInput) (BuiltOrder, error) {
	if err := validateBuildInput(in); err != nil {
		return BuiltOrder{}, err
	}
	lines := in.Source.Lines()

	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	products, err := b.products.FindByIDs(ctx, ids)
	if err != nil {
		return BuiltOrder{}, classify(ctx, b.log, "build.find_products", err)
	}
	byID := indexProducts(products)

	//商品の存在
	for _, l := range lines {
		p, ok := byID[l.ProductID]
		if !ok || !p.IsActive {
			return BuiltOrder{}, errProductNotFound(l.ProductID)
		}
	}

	//在庫（同じ商品は合算で見る）
	requested := make(map[int64]int64, len(lines))
	for _, l := range lines {
		if requested[l.ProductID] > math.MaxInt64-l.Quantity {
			return BuiltOrder{}, errInvalidRequest("quantity too large")
		}
		requested[l.ProductID] += l.Quantity
		if p := byID[l.ProductID]; p.Stock < requested[l.ProductID] {
			return BuiltOrder{}, errInsufficientStock(p)
		}
	}

	//住所は本人のものだけ
	addr, err := b.addresses.FindByID(ctx, in.AddressID)
	if errors.Is(err, repo.ErrNotFound) {
		return BuiltOrder{}, errInvalidAddress()
	}
	if err != nil {
		return BuiltOrder{}, classify(ctx, b.log, "build.find_address", err)
	}
	if addr.UserID != in.UserID {
		return BuiltOrder{}, errInvalidAddress()
	}

	out := BuiltOrder{
		UserID:        in.UserID,
		Source:        in.Source.Kind(),
		Lines:         make([]OrderLine, 0, len(lines)),
		Address:       addr,
		PaymentMethod: in.PaymentMethod,
	}
	for _, l := range lines {
		p := byID[l.ProductID]
		//金額がint64を超える注文は受けない
		if p.Price > 0 && l.Quantity > math.MaxInt64/p.Price {
			return BuiltOrder{}, errInvalidRequest("order amount too large")
		}
		line := OrderLine{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  l.Quantity,
			Price:     p.Price,
			Total:     p.Price * l.Quantity,
		}
		if out.Total > math.MaxInt64-line.Total {
			return BuiltOrder{}, errInvalidRequest("order amount too large")
		}
		out.Lines = append(out.Lines, line)
		out.Total += line.Total
	}
	return out, nil
}

func validateBuildInput(in BuildOrderInput) error {
	if in.Source == nil {
		return errInvalidRequest("product_id and quantity, or cart_items required")
	}
	lines := in.Source.Lines()
	if len(lines) == 0 {
		if in.Source.Kind() == model.OrderSourceCart {
			return errInvalidRequest("cart is empty")
		}
		return errInvalidRequest("product_id and quantity, or cart_items required")
	}
	for _, l := range lines {
		if l.ProductID <= 0 {
			return errInvalidRequest("invalid product_id")
		}
		if l.Quantity <= 0 {
			return errInvalidRequest("quantity must be >= 1")
		}
	}
	if in.AddressID <= 0 {
		return errInvalidRequest("address_id required")
	}
	if in.PaymentMethod == "" {
		return errInvalidRequest("payment_method required")
	}
	if !in.PaymentMethod.Valid() {
		return errInvalidRequest("invalid payment_method")
	}
	return nil
}

func indexProducts(ps []model.Product) map[int64]model.Product {
	m := make(map[int64]model.Product, len(ps))
	for _, p := range ps {
		m[p.ID] = p
	}
	return m
}
