package handler

import (
	"net/http"
	"strings"

	"marketplace/internal/domain/model"
	"marketplace/internal/usecase"

	"github.com/labstack/echo/v4"
)

const idempotencyHeader = "X-Idempotency-Key"

type OrderHandler struct {
	orders *usecase.OrderUsecase
	status *usecase.OrderStatusUsecase
}

func NewOrderHandler(orders *usecase.OrderUsecase, status *usecase.OrderStatusUsecase) *OrderHandler {
	return &OrderHandler{orders: orders, status: status}
}

// product_id+quantity か cart_items のどちらか。use_cartだけならサーバ側のカートを使う。
type OrderCreateRequest struct {
	ProductID     *int64              `json:"product_id"`
	Quantity      *int64              `json:"quantity"`
	CartItems     []model.LineRequest `json:"cart_items"`
	UseCart       bool                `json:"use_cart"`
	AddressID     int64               `json:"address_id"`
	PaymentMethod string              `json:"payment_method"`
	TotalAmount   int64               `json:"total_amount"`
}

func (r OrderCreateRequest) source() (model.OrderSource, bool) {
	single := r.ProductID != nil || r.Quantity != nil
	switch {
	case single && len(r.CartItems) > 0:
		return nil, false
	case len(r.CartItems) > 0:
		return model.CartItems{Items: r.CartItems}, true
	case single:
		s := model.SingleItem{}
		if r.ProductID != nil {
			s.ProductID = *r.ProductID
		}
		if r.Quantity != nil {
			s.Quantity = *r.Quantity
		}
		return s, true
	}
	return nil, true
}

type OrderStatusUpdateRequest struct {
	Status string `json:"status"`
}

type OrderCreateResponse struct {
	Success bool                `json:"success"`
	OrderID int64               `json:"order_id"`
	Order   usecase.OrderOutput `json:"order"`
}

type OrderResponse struct {
	Success bool                `json:"success"`
	Order   usecase.OrderOutput `json:"order"`
}

func (h *OrderHandler) RegisterRoutes(e *echo.Echo, auth ...echo.MiddlewareFunc) {
	g := e.Group("/orders", auth...)

	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.detail)
	g.PATCH("/:id/status", h.updateStatus)
}

func (h *OrderHandler) create(c echo.Context) error {
	var req OrderCreateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	src, valid := req.source()
	if !valid {
		return badRequest(c, "specify either product_id and quantity or cart_items")
	}

	//二重送信防止キーはヘッダーから受け取る（bodyには入れない）
	out, err := h.orders.PlaceOrder(c.Request().Context(), actorFrom(c), usecase.PlaceOrderInput{
		Source:         src,
		UseCart:        req.UseCart,
		AddressID:      req.AddressID,
		PaymentMethod:  model.PaymentMethod(strings.ToUpper(strings.TrimSpace(req.PaymentMethod))),
		TotalAmount:    req.TotalAmount,
		IdempotencyKey: c.Request().Header.Get(idempotencyHeader),
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, OrderCreateResponse{Success: true, OrderID: out.ID, Order: out})
}

func (h *OrderHandler) list(c echo.Context) error {
	page, okPage := queryInt(c, "page", 1)
	if !okPage {
		return badRequest(c, "invalid page")
	}
	limit, okLimit := queryInt(c, "limit", 20)
	if !okLimit {
		return badRequest(c, "invalid limit")
	}

	out, err := h.orders.ListMyOrders(c.Request().Context(), actorFrom(c), page, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) detail(c echo.Context) error {
	id, valid := pathID(c, "id")
	if !valid {
		return badRequest(c, "invalid id")
	}

	out, err := h.orders.GetOrder(c.Request().Context(), actorFrom(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, OrderResponse{Success: true, Order: out})
}

// 本人か管理者が呼べる。どの遷移ができるかはusecaseの遷移表だけで決まる。
func (h *OrderHandler) updateStatus(c echo.Context) error {
	id, valid := pathID(c, "id")
	if !valid {
		return badRequest(c, "invalid id")
	}

	var req OrderStatusUpdateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	to, err := usecase.ParseOrderStatus(req.Status)
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.status.ChangeStatus(c.Request().Context(), actorFrom(c), id, to)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, OrderResponse{Success: true, Order: out})
}
