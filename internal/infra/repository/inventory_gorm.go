package repository

import (
	"context"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"

	"gorm.io/gorm"
)

type InventoryGormRepository struct {
	db *gorm.DB
}

func NewInventoryGormRepository(db *gorm.DB) *InventoryGormRepository {
	return &InventoryGormRepository{db: db}
}

var _ repo.InventoryRepository = (*InventoryGormRepository)(nil)

// 在庫の現在値を設定
func (r *InventoryGormRepository) SetStock(ctx context.Context, productID int64, newStock int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ?", productID).
		Update("stock", newStock)

	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 在庫が足りるときだけ減らす（条件付きUPDATEなのでstockは負にならない）
func (r *InventoryGormRepository) ReserveStock(ctx context.Context, productID int64, qty int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ? AND stock >= ?", productID, qty).
		Updates(map[string]interface{}{
			"stock":       gorm.Expr("stock - ?", qty),
			"order_count": gorm.Expr("order_count + 1"),
		})

	if res.Error != nil {
		return false, mapErr(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// 在庫戻し（キャンセル）
func (r *InventoryGormRepository) ReleaseStock(ctx context.Context, productID int64, qty int64) error {
	// 論理削除済みの商品にも戻す
	res := r.db.WithContext(ctx).
		Unscoped().
		Model(&model.Product{}).
		Where("id = ?", productID).
		Updates(map[string]interface{}{
			"stock":       gorm.Expr("stock + ?", qty),
			"order_count": gorm.Expr("GREATEST(order_count - 1, 0)"),
		})

	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 調整履歴作成
func (r *InventoryGormRepository) CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error {
	return mapErr(r.db.WithContext(ctx).Create(&adj).Error)
}
