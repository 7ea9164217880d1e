package repository

import (
	"context"
	"time"

	"marketplace/internal/domain/model"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
)

type OrderEventItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
	Price     int64 `json:"price"`
}

// コミット後に外へ流す注文イベント
type OrderEvent struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	OrderID     int64             `json:"order_id"`
	UserID      int64             `json:"user_id"`
	ActorUserID int64             `json:"actor_user_id,omitempty"`
	From        model.OrderStatus `json:"from,omitempty"`
	Status      model.OrderStatus `json:"status"`
	TotalAmount int64             `json:"total_amount,omitempty"`
	Items       []OrderEventItem  `json:"items,omitempty"`
	OccurredAt  time.Time         `json:"occurred_at"`
}

// 失敗しても注文の結果は変えない（呼び出し側でログだけ残す）
type OrderEventPublisher interface {
	Publish(ctx context.Context, ev OrderEvent) error
}
