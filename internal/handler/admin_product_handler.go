package handler

import (
	"net/http"

	"marketplace/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ProductCreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Stock       int64  `json:"stock"`
	IsActive    bool   `json:"is_active"`
}

func (r ProductCreateRequest) input() usecase.AdminProductInput {
	return usecase.AdminProductInput{
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Stock:       r.Stock,
		IsActive:    r.IsActive,
	}
}

// 在庫更新の入力。理由は調整履歴に残る。
type InventoryUpdateRequest struct {
	Stock  int64  `json:"stock"`
	Reason string `json:"reason"`
}

// /admin/products と /admin/inventory をまとめる
type AdminProductHandler struct {
	uc *usecase.ProductUsecase
}

// DI
func NewAdminProductHandler(uc *usecase.ProductUsecase) *AdminProductHandler {
	return &AdminProductHandler{uc: uc}
}

func (h *AdminProductHandler) RegisterRoutes(e *echo.Echo, auth ...echo.MiddlewareFunc) {
	admin := e.Group("/admin", auth...)

	admin.POST("/products", h.createProduct)
	admin.PUT("/products/:id", h.updateProduct)
	admin.DELETE("/products/:id", h.deleteProduct)
	admin.PUT("/inventory/:product_id", h.updateInventory)
}

func (h *AdminProductHandler) createProduct(c echo.Context) error {
	var req ProductCreateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	p, err := h.uc.AdminCreateProduct(c.Request().Context(), actorFrom(c), req.input())
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, p)
}

func (h *AdminProductHandler) updateProduct(c echo.Context) error {
	id, valid := pathID(c, "id")
	if !valid {
		return badRequest(c, "invalid id")
	}

	var req ProductCreateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	if err := h.uc.AdminUpdateProduct(c.Request().Context(), actorFrom(c), id, req.input()); err != nil {
		return writeError(c, err)
	}
	return ok(c, "updated")
}

func (h *AdminProductHandler) deleteProduct(c echo.Context) error {
	id, valid := pathID(c, "id")
	if !valid {
		return badRequest(c, "invalid id")
	}

	if err := h.uc.AdminDeleteProduct(c.Request().Context(), actorFrom(c), id); err != nil {
		return writeError(c, err)
	}
	return ok(c, "deleted")
}

func (h *AdminProductHandler) updateInventory(c echo.Context) error {
	productID, valid := pathID(c, "product_id")
	if !valid {
		return badRequest(c, "invalid product_id")
	}

	var req InventoryUpdateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	if err := h.uc.AdminUpdateInventory(c.Request().Context(), actorFrom(c), productID, req.Stock, req.Reason); err != nil {
		return writeError(c, err)
	}
	return ok(c, "stock updated")
}
