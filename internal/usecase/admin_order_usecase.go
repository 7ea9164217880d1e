package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

type AdminOrderUsecase struct {
	orders repo.OrderRepository
	items  repo.OrderItemRepository
	status *OrderStatusUsecase
	log    *slog.Logger
}

func NewAdminOrderUsecase(orders repo.OrderRepository, items repo.OrderItemRepository, status *OrderStatusUsecase, log *slog.Logger) *AdminOrderUsecase {
	return &AdminOrderUsecase{orders: orders, items: items, status: status, log: log}
}

type AdminOrderListInput struct {
	Page   int
	Limit  int
	Status string
	UserID *int64
	From   string // RFC3339
	To     string
}

// 注文一覧（絞り込みあり）
func (u *AdminOrderUsecase) List(ctx context.Context, actor model.Actor, in AdminOrderListInput) (OrderListOutput, error) {
	if actor.UserID <= 0 {
		return OrderListOutput{}, errUnauthenticated()
	}
	if !actor.IsAdmin() {
		return OrderListOutput{}, errForbidden()
	}
	// page/limitの最低限チェック
	if in.Page < 1 {
		return OrderListOutput{}, errInvalidRequest("invalid page")
	}
	if in.Limit < 1 || in.Limit > 100 {
		return OrderListOutput{}, errInvalidRequest("invalid limit")
	}

	f := repo.AdminOrderListFilter{Page: in.Page, Limit: in.Limit, UserID: in.UserID}
	if s := strings.TrimSpace(in.Status); s != "" {
		st, err := ParseOrderStatus(s)
		if err != nil {
			return OrderListOutput{}, err
		}
		f.Status = string(st)
	}
	var ok bool
	if f.From, ok = parseDateTimeRFC3339(in.From); !ok {
		return OrderListOutput{}, errInvalidRequest("invalid from")
	}
	if f.To, ok = parseDateTimeRFC3339(in.To); !ok {
		return OrderListOutput{}, errInvalidRequest("invalid to")
	}

	orders, total, err := u.orders.ListAdmin(ctx, f)
	if err != nil {
		return OrderListOutput{}, classify(ctx, u.log, "admin_order.list", err)
	}

	outs := make([]OrderOutput, 0, len(orders))
	for _, o := range orders {
		items, err := u.items.ListByOrderID(ctx, o.ID)
		if err != nil {
			return OrderListOutput{}, classify(ctx, u.log, "admin_order.list_items", err)
		}
		outs = append(outs, toOrderOutput(o, items))
	}
	return OrderListOutput{Items: outs, Total: total, Page: in.Page, Limit: in.Limit}, nil
}

// 管理者のステータス変更（遷移表はユーザーと同じ）
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, actor model.Actor, orderID int64, status string) (OrderOutput, error) {
	if actor.UserID <= 0 {
		return OrderOutput{}, errUnauthenticated()
	}
	if !actor.IsAdmin() {
		return OrderOutput{}, errForbidden()
	}
	to, err := ParseOrderStatus(status)
	if err != nil {
		return OrderOutput{}, err
	}
	return u.status.ChangeStatus(ctx, actor, orderID, to)
}

// 空なら(nil, true)。形式が違えば(nil, false)。
func parseDateTimeRFC3339(s string) (*time.Time, bool) {
	if strings.TrimSpace(s) == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, false
	}
	return &t, true
}
