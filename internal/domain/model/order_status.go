package model

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusInProcess OrderStatus = "IN_PROCESS"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// 許可する遷移（from -> to）。DELIVERED / CANCELLED は終端。
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusInProcess, OrderStatusCancelled},
	OrderStatusInProcess: {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered: {},
	OrderStatusCancelled: {},
}

// 定義済みのstatusか
func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

func (s OrderStatus) IsTerminal() bool {
	next, ok := orderTransitions[s]
	return ok && len(next) == 0
}

// fromからtoへ遷移できるか
func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	for _, n := range orderTransitions[s] {
		if n == to {
			return true
		}
	}
	return false
}
