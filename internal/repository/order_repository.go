package repository

import (
	"context"
	"time"

	"marketplace/internal/domain/model"
)

type AdminOrderListFilter struct {
	Page   int
	Limit  int
	Status string
	UserID *int64
	From   *time.Time
	To     *time.Time
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)

	// トランザクション内で注文行をロックして読む（同時キャンセル対策）
	FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error)

	ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error)
	Create(ctx context.Context, order model.Order) (model.Order, error)

	// statusがfromのときだけ更新する。一致しなければ ErrConflict。
	UpdateStatus(ctx context.Context, orderID int64, from model.OrderStatus, to model.OrderStatus, payment model.PaymentStatus) error

	//検索（同じキーなら同じ結果を返す）
	FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error)
	//管理者用の注文一覧
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)
}
