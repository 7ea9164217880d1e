package handler

import (
	"net/http"
	"strconv"

	"marketplace/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /products の公開API（認証なし）
type ProductHandler struct {
	uc *usecase.ProductUsecase
}

// DI
func NewProductHandler(uc *usecase.ProductUsecase) *ProductHandler {
	return &ProductHandler{uc: uc}
}

func (h *ProductHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/products", h.list)
	e.GET("/products/:id", h.detail)
}

func (h *ProductHandler) list(c echo.Context) error {
	page, okPage := queryInt(c, "page", 1)
	if !okPage {
		return badRequest(c, "invalid page")
	}
	limit, okLimit := queryInt(c, "limit", 20)
	if !okLimit {
		return badRequest(c, "invalid limit")
	}

	minPrice, valid := queryInt64Ptr(c, "min_price")
	if !valid {
		return badRequest(c, "invalid min_price")
	}
	maxPrice, valid := queryInt64Ptr(c, "max_price")
	if !valid {
		return badRequest(c, "invalid max_price")
	}

	out, err := h.uc.ListPublicProducts(c.Request().Context(), usecase.ListProductsInput{
		Page:     page,
		Limit:    limit,
		Q:        c.QueryParam("q"),
		MinPrice: minPrice,
		MaxPrice: maxPrice,
		Sort:     c.QueryParam("sort"),
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *ProductHandler) detail(c echo.Context) error {
	id, valid := pathID(c, "id")
	if !valid {
		return badRequest(c, "invalid id")
	}

	p, err := h.uc.GetProductDetail(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, p)
}

func queryInt64Ptr(c echo.Context, name string) (*int64, bool) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, true
	}
	x, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, false
	}
	return &x, true
}
