package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

const (
	DefaultOrderTxTimeout = 15 * time.Second
	publishTimeout        = 3 * time.Second
	maxIdempotencyKeyLen  = 255
)

type OrderUsecase struct {
	tx        repo.TransactionManager
	builder   *OrderBuilder
	orders    repo.OrderRepository
	items     repo.OrderItemRepository
	carts     repo.CartRepository
	cartItems repo.CartItemRepository
	cache     repo.ProductCache
	events    repo.OrderEventPublisher
	log       *slog.Logger
	txTimeout time.Duration
}

type OrderDeps struct {
	Tx        repo.TransactionManager
	Builder   *OrderBuilder
	Orders    repo.OrderRepository
	Items     repo.OrderItemRepository
	Carts     repo.CartRepository
	CartItems repo.CartItemRepository
	Cache     repo.ProductCache
	Events    repo.OrderEventPublisher
	Log       *slog.Logger
	TxTimeout time.Duration
}

func NewOrderUsecase(d OrderDeps) *OrderUsecase {
	if d.TxTimeout <= 0 {
		d.TxTimeout = DefaultOrderTxTimeout
	}
	return &OrderUsecase{
		tx:        d.Tx,
		builder:   d.Builder,
		orders:    d.Orders,
		items:     d.Items,
		carts:     d.Carts,
		cartItems: d.CartItems,
		cache:     d.Cache,
		events:    d.Events,
		log:       d.Log,
		txTimeout: d.TxTimeout,
	}
}

type PlaceOrderInput struct {
	// nilでUseCartならカートの中身から作る
	Source         model.OrderSource
	UseCart        bool
	AddressID      int64
	PaymentMethod  model.PaymentMethod
	TotalAmount    int64
	IdempotencyKey string
}

type OrderItemOutput struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
	Total     int64  `json:"total"`
}

type OrderOutput struct {
	ID              int64                 `json:"id"`
	UserID          int64                 `json:"user_id"`
	Status          model.OrderStatus     `json:"status"`
	PaymentMethod   model.PaymentMethod   `json:"payment_method"`
	PaymentStatus   model.PaymentStatus   `json:"payment_status"`
	Source          model.OrderSourceKind `json:"source"`
	TotalAmount     int64                 `json:"total_amount"`
	AddressID       int64                 `json:"address_id"`
	ShippingAddress model.ShippingAddress `json:"shipping_address"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	Items           []OrderItemOutput     `json:"items"`
}

type OrderListOutput struct {
	Items []OrderOutput `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

// 同じidempotency keyの注文が先に確定していた
var errIdempotentReplay = errors.New("idempotent replay")

// 注文確定。在庫の再確認・注文作成・在庫減算・カートのクリアを1つのトランザクションで行う。
func (u *OrderUsecase) PlaceOrder(ctx context.Context, actor model.Actor, in PlaceOrderInput) (OrderOutput, error) {
	if actor.UserID <= 0 {
		return OrderOutput{}, errUnauthenticated()
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if len(key) > maxIdempotencyKeyLen {
		return OrderOutput{}, errInvalidRequest("invalid idempotency key")
	}
	if in.TotalAmount < 0 {
		return OrderOutput{}, errInvalidRequest("total amount must be >= 0")
	}

	// 同じキーなら同じ結果
	if key != "" {
		if out, found, err := u.findByIdempotencyKey(ctx, actor.UserID, key); err != nil || found {
			return out, err
		}
	}

	src := in.Source
	if src == nil && in.UseCart {
		var err error
		if src, err = u.SourceFromCart(ctx, actor.UserID); err != nil {
			return OrderOutput{}, err
		}
	}

	built, err := u.builder.Build(ctx, BuildOrderInput{
		UserID:        actor.UserID,
		Source:        src,
		AddressID:     in.AddressID,
		PaymentMethod: in.PaymentMethod,
	})
	if err != nil {
		return OrderOutput{}, err
	}

	//金額はサーバ側の合計が正。クライアントの値が来ていて違えば弾く。
	if in.TotalAmount > 0 && in.TotalAmount != built.Total {
		return OrderOutput{}, errInvalidRequest("total amount mismatch")
	}

	created, createdItems, err := u.commit(ctx, built, key)
	if errors.Is(err, errIdempotentReplay) {
		out, found, ferr := u.findByIdempotencyKey(ctx, actor.UserID, key)
		if ferr != nil {
			return OrderOutput{}, ferr
		}
		if found {
			return out, nil
		}
		return OrderOutput{}, newKindError(KindConflict, "idempotency conflict")
	}
	if err != nil {
		return OrderOutput{}, err
	}

	u.log.InfoContext(ctx, "order placed",
		"order_id", created.ID, "user_id", created.UserID, "total_amount", created.TotalAmount, "source", created.Source)
	u.afterPlaced(ctx, created, createdItems)

	return toOrderOutput(created, createdItems), nil
}

func (u *OrderUsecase) commit(ctx context.Context, built BuiltOrder, key string) (model.Order, []model.OrderItem, error) {
	txCtx, cancel := context.WithTimeout(ctx, u.txTimeout)
	defer cancel()

	var created model.Order
	var createdItems []model.OrderItem

	err := u.tx.WithinTx(txCtx, func(r repo.TxRepos) error {
		//ロックを取って読み直す（ここで見た在庫が正）
		locked, err := r.Products().FindByIDsForUpdate(txCtx, built.ProductIDs())
		if err != nil {
			return err
		}
		byID := indexProducts(locked)
		for id, qty := range built.RequestedByProduct() {
			p, ok := byID[id]
			if !ok || !p.IsActive {
				return errProductNotFound(id)
			}
			if p.Stock < qty {
				return errInsufficientStock(p)
			}
		}

		order := model.Order{
			UserID:          built.UserID,
			AddressID:       built.Address.ID,
			ShippingAddress: model.SnapshotAddress(built.Address),
			Status:          model.OrderStatusPending,
			PaymentMethod:   built.PaymentMethod,
			PaymentStatus:   model.PaymentStatusPending,
			Source:          built.Source,
			TotalAmount:     built.Total,
		}
		if key != "" {
			order.IdempotencyKey = &key
		}
		created, err = r.Orders().Create(txCtx, order)
		if err != nil {
			if key != "" && errors.Is(err, repo.ErrConflict) {
				return errIdempotentReplay
			}
			return err
		}

		rows := make([]model.OrderItem, 0, len(built.Lines))
		for _, l := range built.Lines {
			rows = append(rows, model.OrderItem{
				ProductID:           l.ProductID,
				ProductNameSnapshot: l.Name,
				UnitPrice:           l.Price,
				Quantity:            l.Quantity,
				Total:               l.Total,
			})
		}
		createdItems, err = r.OrderItems().CreateBulk(txCtx, created.ID, rows)
		if err != nil {
			return err
		}

		//明細1行ごとに stock-=qty, order_count+=1
		for _, l := range built.Lines {
			ok, err := r.Inventory().ReserveStock(txCtx, l.ProductID, l.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return errInsufficientStock(byID[l.ProductID])
			}
		}

		if built.Source == model.OrderSourceCart {
			cart, err := r.Carts().FindByUserID(txCtx, built.UserID)
			if errors.Is(err, repo.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			if err := r.Carts().Clear(txCtx, cart.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, errIdempotentReplay) {
		return model.Order{}, nil, err
	}
	if err == nil {
		return created, createdItems, nil
	}
	if errors.Is(txCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		u.log.WarnContext(ctx, "order commit timed out", "user_id", built.UserID, "timeout", u.txTimeout.String(), "err", err)
		return model.Order{}, nil, errTxTimeout()
	}
	return model.Order{}, nil, classify(ctx, u.log, "order.commit", err)
}

// コミット後の後始末。失敗しても注文は確定済みなのでログだけ。
func (u *OrderUsecase) afterPlaced(ctx context.Context, o model.Order, items []model.OrderItem) {
	ids := make([]int64, 0, len(items))
	evItems := make([]repo.OrderEventItem, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
		evItems = append(evItems, repo.OrderEventItem{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.UnitPrice})
	}

	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := u.cache.Invalidate(bg, ids...); err != nil {
		u.log.WarnContext(ctx, "product cache invalidate failed", "order_id", o.ID, "err", err)
	}
	if err := u.events.Publish(bg, repo.OrderEvent{
		Type:        repo.EventOrderPlaced,
		OrderID:     o.ID,
		UserID:      o.UserID,
		ActorUserID: o.UserID,
		Status:      o.Status,
		TotalAmount: o.TotalAmount,
		Items:       evItems,
	}); err != nil {
		u.log.WarnContext(ctx, "order event publish failed", "order_id", o.ID, "type", repo.EventOrderPlaced, "err", err)
	}
}

func (u *OrderUsecase) findByIdempotencyKey(ctx context.Context, userID int64, key string) (OrderOutput, bool, error) {
	o, found, err := u.orders.FindByIdempotencyKey(ctx, userID, key)
	if err != nil {
		return OrderOutput{}, false, classify(ctx, u.log, "order.find_idempotency", err)
	}
	if !found {
		return OrderOutput{}, false, nil
	}
	items, err := u.items.ListByOrderID(ctx, o.ID)
	if err != nil {
		return OrderOutput{}, false, classify(ctx, u.log, "order.list_items", err)
	}
	return toOrderOutput(o, items), true, nil
}

// カートの中身を注文の元にする
func (u *OrderUsecase) SourceFromCart(ctx context.Context, userID int64) (model.OrderSource, error) {
	cart, err := u.carts.FindByUserID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, errInvalidRequest("cart is empty")
	}
	if err != nil {
		return nil, classify(ctx, u.log, "order.find_cart", err)
	}
	items, err := u.cartItems.ListByCartID(ctx, cart.ID)
	if err != nil {
		return nil, classify(ctx, u.log, "order.list_cart_items", err)
	}
	if len(items) == 0 {
		return nil, errInvalidRequest("cart is empty")
	}

	lines := make([]model.LineRequest, 0, len(items))
	for _, it := range items {
		lines = append(lines, model.LineRequest{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return model.CartItems{Items: lines}, nil
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, actor model.Actor, page, limit int) (OrderListOutput, error) {
	if actor.UserID <= 0 {
		return OrderListOutput{}, errUnauthenticated()
	}
	if page < 1 {
		return OrderListOutput{}, errInvalidRequest("invalid page")
	}
	if limit < 1 || limit > 100 {
		return OrderListOutput{}, errInvalidRequest("invalid limit")
	}

	orders, total, err := u.orders.ListByUserID(ctx, actor.UserID, page, limit)
	if err != nil {
		return OrderListOutput{}, classify(ctx, u.log, "order.list", err)
	}
	outs, err := u.withItems(ctx, orders)
	if err != nil {
		return OrderListOutput{}, err
	}
	return OrderListOutput{Items: outs, Total: total, Page: page, Limit: limit}, nil
}

// 本人か管理者だけ
func (u *OrderUsecase) GetOrder(ctx context.Context, actor model.Actor, orderID int64) (OrderOutput, error) {
	if actor.UserID <= 0 {
		return OrderOutput{}, errUnauthenticated()
	}
	if orderID <= 0 {
		return OrderOutput{}, errInvalidRequest("invalid id")
	}

	o, err := u.orders.FindByID(ctx, orderID)
	if err != nil {
		return OrderOutput{}, classify(ctx, u.log, "order.find", err)
	}
	if !actor.CanAccess(o.UserID) {
		return OrderOutput{}, errForbidden()
	}

	items, err := u.items.ListByOrderID(ctx, orderID)
	if err != nil {
		return OrderOutput{}, classify(ctx, u.log, "order.list_items", err)
	}
	return toOrderOutput(o, items), nil
}

func (u *OrderUsecase) withItems(ctx context.Context, orders []model.Order) ([]OrderOutput, error) {
	outs := make([]OrderOutput, 0, len(orders))
	for _, o := range orders {
		items, err := u.items.ListByOrderID(ctx, o.ID)
		if err != nil {
			return nil, classify(ctx, u.log, "order.list_items", err)
		}
		outs = append(outs, toOrderOutput(o, items))
	}
	return outs, nil
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ID:        it.ID,
			ProductID: it.ProductID,
			Name:      it.ProductNameSnapshot,
			Price:     it.UnitPrice,
			Quantity:  it.Quantity,
			Total:     it.Total,
		})
	}

	return OrderOutput{
		ID:              o.ID,
		UserID:          o.UserID,
		Status:          o.Status,
		PaymentMethod:   o.PaymentMethod,
		PaymentStatus:   o.PaymentStatus,
		Source:          o.Source,
		TotalAmount:     o.TotalAmount,
		AddressID:       o.AddressID,
		ShippingAddress: o.ShippingAddress,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		Items:           outItems,
	}
}
