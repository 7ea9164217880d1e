package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

type ProductUsecase struct {
	productRepo repo.ProductRepository
	tx          repo.TransactionManager
	cache       repo.ProductCache
	log         *slog.Logger
}

// DI
func NewProductUsecase(
	productRepo repo.ProductRepository,
	tx repo.TransactionManager,
	cache repo.ProductCache,
	log *slog.Logger,
) *ProductUsecase {
	return &ProductUsecase{
		productRepo: productRepo,
		tx:          tx,
		cache:       cache,
		log:         log,
	}
}

// GET /productsの入力DTO
type ListProductsInput struct {
	Page     int
	Limit    int
	Q        string
	MinPrice *int64
	MaxPrice *int64
	Sort     string
}

type ProductListOutput struct {
	Items []model.Product `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

func (u *ProductUsecase) ListPublicProducts(ctx context.Context, in ListProductsInput) (ProductListOutput, error) {
	if in.Page < 1 {
		return ProductListOutput{}, errInvalidRequest("invalid page")
	}
	if in.Limit < 1 || in.Limit > 100 {
		return ProductListOutput{}, errInvalidRequest("invalid limit")
	}
	if len(in.Q) > 100 {
		return ProductListOutput{}, errInvalidRequest("q too long")
	}
	if in.MinPrice != nil && *in.MinPrice < 0 {
		return ProductListOutput{}, errInvalidRequest("min_price must be >= 0")
	}
	if in.MaxPrice != nil && *in.MaxPrice < 0 {
		return ProductListOutput{}, errInvalidRequest("max_price must be >= 0")
	}
	if in.MinPrice != nil && in.MaxPrice != nil && *in.MinPrice > *in.MaxPrice {
		return ProductListOutput{}, errInvalidRequest("min_price must be <= max_price")
	}
	switch in.Sort {
	case "", "new", "price_asc", "price_desc", "popular":
	default:
		return ProductListOutput{}, errInvalidRequest("invalid sort")
	}

	items, total, err := u.productRepo.ListPublic(ctx, repo.ProductListQuery{
		Page:     in.Page,
		Limit:    in.Limit,
		Q:        strings.TrimSpace(in.Q),
		MinPrice: in.MinPrice,
		MaxPrice: in.MaxPrice,
		Sort:     in.Sort,
	})
	if err != nil {
		return ProductListOutput{}, classify(ctx, u.log, "product.list", err)
	}

	return ProductListOutput{
		Items: items,
		Total: total,
		Page:  in.Page,
		Limit: in.Limit,
	}, nil
}

// 詳細はキャッシュ優先。キャッシュが落ちていてもDBから返す。
func (u *ProductUsecase) GetProductDetail(ctx context.Context, productID int64) (model.Product, error) {
	if productID <= 0 {
		return model.Product{}, errInvalidRequest("invalid product id")
	}

	if p, ok, err := u.cache.Get(ctx, productID); err != nil {
		u.log.WarnContext(ctx, "product cache get failed", "product_id", productID, "err", err)
	} else if ok {
		return p, nil
	}

	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && !p.IsActive) {
		return model.Product{}, errProductNotFound(productID)
	}
	if err != nil {
		return model.Product{}, classify(ctx, u.log, "product.find", err)
	}

	if err := u.cache.Set(ctx, p); err != nil {
		u.log.WarnContext(ctx, "product cache set failed", "product_id", productID, "err", err)
	}
	return p, nil
}

// 管理画面から設定できる上限
const (
	maxProductPrice int64 = 1_000_000_000
	maxProductStock int64 = 1_000_000_000
)

type AdminProductInput struct {
	Name        string
	Description string
	Price       int64
	Stock       int64
	IsActive    bool
}

func (in AdminProductInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return errInvalidRequest("name required")
	}
	if in.Price < 0 || in.Price > maxProductPrice {
		return errInvalidRequest("price out of range")
	}
	if in.Stock < 0 || in.Stock > maxProductStock {
		return errInvalidRequest("stock out of range")
	}
	return nil
}

func requireAdmin(actor model.Actor) error {
	if actor.UserID <= 0 {
		return errUnauthenticated()
	}
	if !actor.IsAdmin() {
		return errForbidden()
	}
	return nil
}

func (u *ProductUsecase) AdminCreateProduct(ctx context.Context, actor model.Actor, in AdminProductInput) (model.Product, error) {
	if err := requireAdmin(actor); err != nil {
		return model.Product{}, err
	}
	if err := in.validate(); err != nil {
		return model.Product{}, err
	}

	p, err := u.productRepo.Create(ctx, model.Product{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		IsActive:    in.IsActive,
	})
	if err != nil {
		return model.Product{}, classify(ctx, u.log, "product.create", err)
	}
	return p, nil
}

// 在庫はここでは変えない（AdminUpdateInventoryを使う）。
// 価格を変えても既存注文の明細は注文時の価格のまま。
func (u *ProductUsecase) AdminUpdateProduct(ctx context.Context, actor model.Actor, productID int64, in AdminProductInput) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if productID <= 0 {
		return errInvalidRequest("invalid product id")
	}
	if err := in.validate(); err != nil {
		return err
	}

	err := u.productRepo.Update(ctx, model.Product{
		ID:          productID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price,
		IsActive:    in.IsActive,
	})
	if errors.Is(err, repo.ErrNotFound) {
		return errProductNotFound(productID)
	}
	if err != nil {
		return classify(ctx, u.log, "product.update", err)
	}
	u.invalidate(ctx, productID)
	return nil
}

func (u *ProductUsecase) AdminDeleteProduct(ctx context.Context, actor model.Actor, productID int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if productID <= 0 {
		return errInvalidRequest("invalid product id")
	}

	err := u.productRepo.SoftDelete(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return errProductNotFound(productID)
	}
	if err != nil {
		return classify(ctx, u.log, "product.delete", err)
	}
	u.invalidate(ctx, productID)
	return nil
}

type stockSnapshot struct {
	Stock int64 `json:"stock"`
}

// 在庫の上書き。調整履歴と監査ログも同じトランザクションで残す。
func (u *ProductUsecase) AdminUpdateInventory(ctx context.Context, actor model.Actor, productID int64, newStock int64, reason string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if productID <= 0 {
		return errInvalidRequest("invalid product id")
	}
	if newStock < 0 || newStock > maxProductStock {
		return errInvalidRequest("stock out of range")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return errInvalidRequest("reason required")
	}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//変更前の在庫（ロックして読む）
		locked, err := r.Products().FindByIDsForUpdate(ctx, []int64{productID})
		if err != nil {
			return err
		}
		if len(locked) == 0 {
			return errProductNotFound(productID)
		}
		p := locked[0]

		if err := r.Inventory().SetStock(ctx, productID, newStock); err != nil {
			return err
		}

		if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
			ProductID:   productID,
			AdminUserID: actor.UserID,
			Delta:       newStock - p.Stock,
			Reason:      reason,
		}); err != nil {
			return err
		}

		beforeJSON, _ := json.Marshal(stockSnapshot{Stock: p.Stock})
		afterJSON, _ := json.Marshal(stockSnapshot{Stock: newStock})
		return r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actor.UserID,
			Action:       model.AuditActionUpdateStock,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   productID,
			BeforeJSON:   string(beforeJSON),
			AfterJSON:    string(afterJSON),
			CreatedAt:    time.Now(),
		})
	})
	if err != nil {
		return classify(ctx, u.log, "product.update_inventory", err)
	}

	u.invalidate(ctx, productID)
	return nil
}

func (u *ProductUsecase) invalidate(ctx context.Context, productID int64) {
	if err := u.cache.Invalidate(ctx, productID); err != nil {
		u.log.WarnContext(ctx, "product cache invalidate failed", "product_id", productID, "err", err)
	}
}
