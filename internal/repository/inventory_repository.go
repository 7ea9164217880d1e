package repository

import (
	"context"

	"marketplace/internal/domain/model"
)

// 在庫(stock)と注文回数(order_count)の台帳
type InventoryRepository interface {
	// 在庫の現在値を設定
	SetStock(ctx context.Context, productID int64, newStock int64) error

	// 在庫が足りるときだけ stock-=qty, order_count+=1。足りなければ false。
	ReserveStock(ctx context.Context, productID int64, qty int64) (bool, error)

	// 在庫戻し（キャンセル）。stock+=qty, order_count-=1（0未満にはしない）
	ReleaseStock(ctx context.Context, productID int64, qty int64) error

	// 調整履歴作成
	CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error
}
