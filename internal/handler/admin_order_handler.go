package handler

import (
	"net/http"
	"strconv"

	"marketplace/internal/usecase"

	"github.com/labstack/echo/v4"
)

type AdminOrderHandler struct {
	uc *usecase.AdminOrderUsecase
}

func NewAdminOrderHandler(uc *usecase.AdminOrderUsecase) *AdminOrderHandler {
	return &AdminOrderHandler{uc: uc}
}

// authの最後にAdminRoleGuardを入れて渡す
func (h *AdminOrderHandler) RegisterRoutes(e *echo.Echo, auth ...echo.MiddlewareFunc) {
	admin := e.Group("/admin", auth...)

	admin.GET("/orders", h.list)
	admin.PUT("/orders/:id/status", h.updateStatus)
}

func (h *AdminOrderHandler) list(c echo.Context) error {
	page, okPage := queryInt(c, "page", 1)
	if !okPage {
		return badRequest(c, "invalid page")
	}
	limit, okLimit := queryInt(c, "limit", 50)
	if !okLimit {
		return badRequest(c, "invalid limit")
	}

	var userID *int64
	if v := c.QueryParam("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return badRequest(c, "invalid user_id")
		}
		userID = &id
	}

	//from/toの形式チェックはusecase側
	out, err := h.uc.List(c.Request().Context(), actorFrom(c), usecase.AdminOrderListInput{
		Page:   page,
		Limit:  limit,
		Status: c.QueryParam("status"),
		UserID: userID,
		From:   c.QueryParam("from"),
		To:     c.QueryParam("to"),
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *AdminOrderHandler) updateStatus(c echo.Context) error {
	orderID, valid := pathID(c, "id")
	if !valid {
		return badRequest(c, "invalid id")
	}

	var req OrderStatusUpdateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.uc.UpdateStatus(c.Request().Context(), actorFrom(c), orderID, req.Status)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, OrderResponse{Success: true, Order: out})
}
