package repository

import (
	"context"

	"marketplace/internal/domain/model"
)

// 商品詳細の読み取りキャッシュ。在庫の判定には使わない（表示用）。
type ProductCache interface {
	Get(ctx context.Context, productID int64) (model.Product, bool, error)
	Set(ctx context.Context, p model.Product) error
	Invalidate(ctx context.Context, productIDs ...int64) error
}
