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

// 注文ステータスの変更。遷移表にない変更は書き込む前に弾く。
type OrderStatusUsecase struct {
	tx        repo.TransactionManager
	cache     repo.ProductCache
	events    repo.OrderEventPublisher
	log       *slog.Logger
	txTimeout time.Duration
}

func NewOrderStatusUsecase(
	tx repo.TransactionManager,
	cache repo.ProductCache,
	events repo.OrderEventPublisher,
	log *slog.Logger,
	txTimeout time.Duration,
) *OrderStatusUsecase {
	if txTimeout <= 0 {
		txTimeout = DefaultOrderTxTimeout
	}
	return &OrderStatusUsecase{tx: tx, cache: cache, events: events, log: log, txTimeout: txTimeout}
}

type statusSnapshot struct {
	Status        model.OrderStatus   `json:"status"`
	PaymentStatus model.PaymentStatus `json:"payment_status"`
}

// 遷移にともなう支払い状態
func nextPaymentStatus(o model.Order, to model.OrderStatus) model.PaymentStatus {
	switch {
	case to == model.OrderStatusDelivered && o.PaymentMethod == model.PaymentMethodCOD && o.PaymentStatus == model.PaymentStatusPending:
		return model.PaymentStatusPaid
	case to == model.OrderStatusCancelled && o.PaymentStatus == model.PaymentStatusPaid:
		return model.PaymentStatusRefunded
	}
	return o.PaymentStatus
}

func ParseOrderStatus(s string) (model.OrderStatus, error) {
	st := model.OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", errInvalidRequest("invalid status")
	}
	return st, nil
}

// CANCELLEDへの変更は在庫戻しと同じトランザクションで行う
func (u *OrderStatusUsecase) ChangeStatus(ctx context.Context, actor model.Actor, orderID int64, to model.OrderStatus) (OrderOutput, error) {
	if actor.UserID <= 0 {
		return OrderOutput{}, errUnauthenticated()
	}
	if orderID <= 0 {
		return OrderOutput{}, errInvalidRequest("invalid id")
	}
	if !to.Valid() {
		return OrderOutput{}, errInvalidRequest("invalid status")
	}

	txCtx, cancel := context.WithTimeout(ctx, u.txTimeout)
	defer cancel()

	var before model.Order
	var after model.Order
	var items []model.OrderItem

	err := u.tx.WithinTx(txCtx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if !actor.CanAccess(o.UserID) {
			return errForbidden()
		}
		if !o.Status.CanTransitionTo(to) {
			return errInvalidTransition(o.Status, to)
		}
		before = o

		items, err = r.OrderItems().ListByOrderID(txCtx, orderID)
		if err != nil {
			return err
		}

		//キャンセルは在庫を明細ごとに戻す（stock+=qty, order_count-=1）
		if to == model.OrderStatusCancelled {
			for _, it := range items {
				if err := r.Inventory().ReleaseStock(txCtx, it.ProductID, it.Quantity); err != nil {
					return err
				}
			}
		}

		payment := nextPaymentStatus(o, to)
		if err := r.Orders().UpdateStatus(txCtx, orderID, o.Status, to, payment); err != nil {
			if errors.Is(err, repo.ErrConflict) {
				return errInvalidTransition(o.Status, to)
			}
			return err
		}

		beforeJSON, _ := json.Marshal(statusSnapshot{Status: o.Status, PaymentStatus: o.PaymentStatus})
		afterJSON, _ := json.Marshal(statusSnapshot{Status: to, PaymentStatus: payment})
		if err := r.AuditLogs().Create(txCtx, model.AuditLog{
			ActorUserID:  actor.UserID,
			Action:       model.AuditActionUpdateOrderStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			BeforeJSON:   string(beforeJSON),
			AfterJSON:    string(afterJSON),
			CreatedAt:    time.Now(),
		}); err != nil {
			return err
		}

		after, err = r.Orders().FindByID(txCtx, orderID)
		return err
	})
	if err != nil {
		if _, ok := AsHTTPError(err); !ok && errors.Is(txCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			u.log.WarnContext(ctx, "status change timed out", "order_id", orderID, "err", err)
			return OrderOutput{}, errTxTimeout()
		}
		return OrderOutput{}, classify(ctx, u.log, "order.change_status", err)
	}

	u.log.InfoContext(ctx, "order status changed",
		"order_id", orderID, "actor_user_id", actor.UserID, "from", before.Status, "to", after.Status)
	u.afterChanged(ctx, actor, before, after, items)

	return toOrderOutput(after, items), nil
}

func (u *OrderStatusUsecase) afterChanged(ctx context.Context, actor model.Actor, before, after model.Order, items []model.OrderItem) {
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if after.Status == model.OrderStatusCancelled {
		ids := make([]int64, 0, len(items))
		for _, it := range items {
			ids = append(ids, it.ProductID)
		}
		if err := u.cache.Invalidate(bg, ids...); err != nil {
			u.log.WarnContext(ctx, "product cache invalidate failed", "order_id", after.ID, "err", err)
		}
	}

	if err := u.events.Publish(bg, repo.OrderEvent{
		Type:        repo.EventOrderStatusChanged,
		OrderID:     after.ID,
		UserID:      after.UserID,
		ActorUserID: actor.UserID,
		From:        before.Status,
		Status:      after.Status,
	}); err != nil {
		u.log.WarnContext(ctx, "order event publish failed", "order_id", after.ID, "type", repo.EventOrderStatusChanged, "err", err)
	}
}
