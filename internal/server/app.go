package server

import (
	"log/slog"

	"marketplace/internal/config"
	"marketplace/internal/handler"
	repo "marketplace/internal/repository"
	"marketplace/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 保存先（postgres/memory）と外部サービスの実装
type Backends struct {
	Tx        repo.TransactionManager
	Products  repo.ProductRepository
	Orders    repo.OrderRepository
	OrderItem repo.OrderItemRepository
	Carts     repo.CartRepository
	CartItems repo.CartItemRepository
	Addresses repo.AddressRepository
	Users     repo.UserRepository
	AuditLogs repo.AuditLogRepository

	Cache  repo.ProductCache
	Events repo.OrderEventPublisher

	// nilなら/healthzはDBを見ない
	DB handler.Pinger
}

// usecase/handlerを組み立ててルートまで登録したechoを返す
func NewApp(cfg config.Config, log *slog.Logger, b Backends) *echo.Echo {
	status := usecase.NewOrderStatusUsecase(b.Tx, b.Cache, b.Events, log, cfg.OrderTxTimeout)
	orders := usecase.NewOrderUsecase(usecase.OrderDeps{
		Tx:        b.Tx,
		Builder:   usecase.NewOrderBuilder(b.Products, b.Addresses, log),
		Orders:    b.Orders,
		Items:     b.OrderItem,
		Carts:     b.Carts,
		CartItems: b.CartItems,
		Cache:     b.Cache,
		Events:    b.Events,
		Log:       log,
		TxTimeout: cfg.OrderTxTimeout,
	})
	products := usecase.NewProductUsecase(b.Products, b.Tx, b.Cache, log)

	e := New(cfg, log)
	RegisterRoutes(e, cfg, b.Users, log, Handlers{
		Health:       handler.NewHealthHandler(b.DB),
		Product:      handler.NewProductHandler(products),
		AdminProduct: handler.NewAdminProductHandler(products),
		Cart:         handler.NewCartHandler(usecase.NewCartUsecase(b.Carts, b.CartItems, b.Products, log)),
		Address:      handler.NewAddressHandler(usecase.NewAddressUsecase(b.Addresses, log)),
		Order:        handler.NewOrderHandler(orders, status),
		AdminOrder:   handler.NewAdminOrderHandler(usecase.NewAdminOrderUsecase(b.Orders, b.OrderItem, status, log)),
		AdminAudit:   handler.NewAdminAuditLogHandler(usecase.NewAuditLogUsecase(b.AuditLogs, log)),
	})
	return e
}
