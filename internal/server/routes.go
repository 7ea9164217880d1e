package server

import (
	"log/slog"

	"marketplace/internal/config"
	"marketplace/internal/handler"
	"marketplace/internal/middleware"
	repo "marketplace/internal/repository"

	"github.com/labstack/echo/v4"
)

type Handlers struct {
	Health       *handler.HealthHandler
	Product      *handler.ProductHandler
	AdminProduct *handler.AdminProductHandler
	Cart         *handler.CartHandler
	Address      *handler.AddressHandler
	Order        *handler.OrderHandler
	AdminOrder   *handler.AdminOrderHandler
	AdminAudit   *handler.AdminAuditLogHandler
}

// 認証が要るグループは AuthJWT -> TokenVersionGuard (-> AdminRoleGuard) の順
func RegisterRoutes(e *echo.Echo, cfg config.Config, users repo.UserRepository, log *slog.Logger, h Handlers) {
	auth := []echo.MiddlewareFunc{
		middleware.AuthJWT(cfg),
		middleware.TokenVersionGuard(users, log),
	}
	adminAuth := append(append([]echo.MiddlewareFunc{}, auth...), middleware.AdminRoleGuard())

	h.Health.RegisterRoutes(e)
	h.Product.RegisterRoutes(e)
	h.AdminProduct.RegisterRoutes(e, adminAuth...)
	h.Cart.RegisterRoutes(e, auth...)
	h.Address.RegisterRoutes(e, auth...)
	h.Order.RegisterRoutes(e, auth...)
	h.AdminOrder.RegisterRoutes(e, adminAuth...)
	h.AdminAudit.RegisterRoutes(e, adminAuth...)
}
