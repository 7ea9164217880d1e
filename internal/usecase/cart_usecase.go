package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

// /cart の業務ロジック。注文確定時のクリアはOrderUsecase側で行う。
type CartUsecase struct {
	cartRepo     repo.CartRepository
	cartItemRepo repo.CartItemRepository
	productRepo  repo.ProductRepository
	log          *slog.Logger
}

func NewCartUsecase(
	cartRepo repo.CartRepository,
	cartItemRepo repo.CartItemRepository,
	productRepo repo.ProductRepository,
	log *slog.Logger,
) *CartUsecase {
	return &CartUsecase{
		cartRepo:     cartRepo,
		cartItemRepo: cartItemRepo,
		productRepo:  productRepo,
		log:          log,
	}
}

// price は unit_price_snapshot（追加時点の価格）
type CartItemResponse struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Variant   string `json:"variant,omitempty"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
}

type CartResponse struct {
	Items []CartItemResponse `json:"items"`
	Total int64              `json:"total"`
}

type AddCartInput struct {
	ProductID int64
	Variant   string
	Quantity  int64
}

type UpdateCartItemInput struct {
	Quantity int64
}

const maxVariantLen = 100

// カート取得（無ければ作って空を返す）
func (u *CartUsecase) GetCart(ctx context.Context, userID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, errUnauthenticated()
	}

	cart, err := u.cartRepo.GetOrCreateByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, classify(ctx, u.log, "cart.get", err)
	}
	return u.buildCartResponse(ctx, cart.ID)
}

// カートに追加（同一商品・同一バリエーションは数量加算）
func (u *CartUsecase) AddToCart(ctx context.Context, userID int64, in AddCartInput) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, errUnauthenticated()
	}
	if in.ProductID <= 0 {
		return CartResponse{}, errInvalidRequest("invalid product_id")
	}
	if in.Quantity < 1 {
		return CartResponse{}, errInvalidRequest("invalid quantity")
	}
	variant := strings.TrimSpace(in.Variant)
	if len(variant) > maxVariantLen {
		return CartResponse{}, errInvalidRequest("variant too long")
	}

	p, err := u.productRepo.FindByID(ctx, in.ProductID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && !p.IsActive) {
		return CartResponse{}, errProductNotFound(in.ProductID)
	}
	if err != nil {
		return CartResponse{}, classify(ctx, u.log, "cart.find_product", err)
	}

	cart, err := u.cartRepo.GetOrCreateByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, classify(ctx, u.log, "cart.get", err)
	}

	items, err := u.cartItemRepo.ListByCartID(ctx, cart.ID)
	if err != nil {
		return CartResponse{}, classify(ctx, u.log, "cart.list_items", err)
	}

	//同じ商品はバリエーションが違っても在庫は共通
	var existingQty int64
	for _, it := range items {
		if it.ProductID == in.ProductID {
			existingQty += it.Quantity
		}
	}
	if existingQty+in.Quantity > p.Stock {
		return CartResponse{}, errInsufficientStock(p)
	}

	if err := u.cartItemRepo.UpsertByCartAndProduct(ctx, cart.ID, in.ProductID, variant, in.Quantity, p.Price); err != nil {
		return CartResponse{}, classify(ctx, u.log, "cart.upsert", err)
	}
	return u.buildCartResponse(ctx, cart.ID)
}

// 数量変更（所有チェック＋在庫チェック）
func (u *CartUsecase) UpdateCartItem(ctx context.Context, userID int64, cartItemID int64, in UpdateCartItemInput) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, errUnauthenticated()
	}
	if cartItemID <= 0 {
		return CartResponse{}, errInvalidRequest("invalid id")
	}
	if in.Quantity < 1 {
		return CartResponse{}, errInvalidRequest("invalid quantity")
	}

	item, err := u.ownedItem(ctx, userID, cartItemID)
	if err != nil {
		return CartResponse{}, err
	}

	p, err := u.productRepo.FindByID(ctx, item.ProductID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && !p.IsActive) {
		return CartResponse{}, errProductNotFound(item.ProductID)
	}
	if err != nil {
		return CartResponse{}, classify(ctx, u.log, "cart.find_product", err)
	}

	items, err := u.cartItemRepo.ListByCartID(ctx, item.CartID)
	if err != nil {
		return CartResponse{}, classify(ctx, u.log, "cart.list_items", err)
	}
	others := int64(0)
	for _, it := range items {
		if it.ProductID == item.ProductID && it.ID != item.ID {
			others += it.Quantity
		}
	}
	if others+in.Quantity > p.Stock {
		return CartResponse{}, errInsufficientStock(p)
	}

	if err := u.cartItemRepo.UpdateQuantity(ctx, cartItemID, in.Quantity); err != nil {
		return CartResponse{}, classify(ctx, u.log, "cart.update_quantity", err)
	}
	return u.buildCartResponse(ctx, item.CartID)
}

// 明細削除
func (u *CartUsecase) DeleteCartItem(ctx context.Context, userID int64, cartItemID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, errUnauthenticated()
	}
	if cartItemID <= 0 {
		return CartResponse{}, errInvalidRequest("invalid id")
	}

	item, err := u.ownedItem(ctx, userID, cartItemID)
	if err != nil {
		return CartResponse{}, err
	}

	if err := u.cartItemRepo.DeleteByID(ctx, cartItemID); err != nil {
		return CartResponse{}, classify(ctx, u.log, "cart.delete_item", err)
	}
	return u.buildCartResponse(ctx, item.CartID)
}

// 他人の明細は存在しない扱い
func (u *CartUsecase) ownedItem(ctx context.Context, userID, cartItemID int64) (model.CartItem, error) {
	owned, err := u.cartItemRepo.IsOwnedByUser(ctx, cartItemID, userID)
	if err != nil {
		return model.CartItem{}, classify(ctx, u.log, "cart.owned", err)
	}
	if !owned {
		return model.CartItem{}, errNotFound()
	}
	item, err := u.cartItemRepo.FindByID(ctx, cartItemID)
	if err != nil {
		return model.CartItem{}, classify(ctx, u.log, "cart.find_item", err)
	}
	return item, nil
}

// 非公開・削除済みの商品の行は表示しない
func (u *CartUsecase) buildCartResponse(ctx context.Context, cartID int64) (CartResponse, error) {
	items, err := u.cartItemRepo.ListByCartID(ctx, cartID)
	if err != nil {
		return CartResponse{}, classify(ctx, u.log, "cart.list_items", err)
	}

	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	products, err := u.productRepo.FindByIDs(ctx, ids)
	if err != nil {
		return CartResponse{}, classify(ctx, u.log, "cart.find_products", err)
	}
	byID := indexProducts(products)

	resp := CartResponse{Items: make([]CartItemResponse, 0, len(items))}
	for _, it := range items {
		p, ok := byID[it.ProductID]
		if !ok || !p.IsActive {
			continue
		}
		resp.Items = append(resp.Items, CartItemResponse{
			ID:        it.ID,
			ProductID: it.ProductID,
			Name:      p.Name,
			Variant:   it.Variant,
			Price:     it.UnitPriceSnapshot,
			Quantity:  it.Quantity,
		})
		resp.Total += it.UnitPriceSnapshot * it.Quantity
	}
	return resp, nil
}
