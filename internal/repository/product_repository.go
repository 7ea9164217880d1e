package repository

import (
	"context"

	"marketplace/internal/domain/model"
)

// 一覧検索
type ProductListQuery struct {
	Page     int
	Limit    int
	Q        string
	MinPrice *int64
	MaxPrice *int64
	Sort     string
}

// 商品の永続化（保存・取得）だけを約束。
type ProductRepository interface {
	ListPublic(ctx context.Context, q ProductListQuery) ([]model.Product, int64, error)
	FindByID(ctx context.Context, id int64) (model.Product, error)

	// ID昇順で返す。見つからないIDは結果に含まれない。
	FindByIDs(ctx context.Context, ids []int64) ([]model.Product, error)

	// トランザクション内で行ロック（SELECT ... FOR UPDATE）を取って読む。
	// デッドロックを避けるためID昇順でロックする。
	FindByIDsForUpdate(ctx context.Context, ids []int64) ([]model.Product, error)

	Create(ctx context.Context, p model.Product) (model.Product, error)
	Update(ctx context.Context, p model.Product) error
	SoftDelete(ctx context.Context, id int64) error
}
