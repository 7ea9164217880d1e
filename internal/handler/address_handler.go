package handler

import (
	"net/http"

	"marketplace/internal/usecase"

	"github.com/labstack/echo/v4"
)

type AddressHandler struct {
	uc *usecase.AddressUsecase
}

func NewAddressHandler(uc *usecase.AddressUsecase) *AddressHandler {
	return &AddressHandler{uc: uc}
}

func (h *AddressHandler) RegisterRoutes(e *echo.Echo, auth ...echo.MiddlewareFunc) {
	g := e.Group("/me", auth...)

	g.GET("/addresses", h.List)
	g.POST("/addresses", h.Create)
	g.PATCH("/addresses/:id", h.Update)
	g.DELETE("/addresses/:id", h.Delete)
	g.POST("/addresses/:id/default", h.SetDefault)
}

func (h *AddressHandler) List(c echo.Context) error {
	list, err := h.uc.List(c.Request().Context(), actorFrom(c).UserID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *AddressHandler) Create(c echo.Context) error {
	var req usecase.AddressInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	created, err := h.uc.Create(c.Request().Context(), actorFrom(c).UserID, req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *AddressHandler) Update(c echo.Context) error {
	id, valid := pathID(c, "id")
	if !valid {
		return badRequest(c, "invalid id")
	}

	var req usecase.AddressInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	if err := h.uc.Update(c.Request().Context(), actorFrom(c).UserID, id, req); err != nil {
		return writeError(c, err)
	}
	return ok(c, "updated")
}

func (h *AddressHandler) Delete(c echo.Context) error {
	id, valid := pathID(c, "id")
	if !valid {
		return badRequest(c, "invalid id")
	}

	if err := h.uc.Delete(c.Request().Context(), actorFrom(c).UserID, id); err != nil {
		return writeError(c, err)
	}
	return ok(c, "deleted")
}

func (h *AddressHandler) SetDefault(c echo.Context) error {
	id, valid := pathID(c, "id")
	if !valid {
		return badRequest(c, "invalid id")
	}

	if err := h.uc.SetDefault(c.Request().Context(), actorFrom(c).UserID, id); err != nil {
		return writeError(c, err)
	}
	return ok(c, "updated")
}
