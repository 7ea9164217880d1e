package handler

import (
	"net/http"
	"strconv"

	"marketplace/internal/usecase"

	"github.com/labstack/echo/v4"
)

type AdminAuditLogHandler struct {
	uc *usecase.AuditLogUsecase
}

func NewAdminAuditLogHandler(uc *usecase.AuditLogUsecase) *AdminAuditLogHandler {
	return &AdminAuditLogHandler{uc: uc}
}

func (h *AdminAuditLogHandler) RegisterRoutes(e *echo.Echo, auth ...echo.MiddlewareFunc) {
	admin := e.Group("/admin", auth...)

	admin.GET("/audit-logs", h.list)
}

func (h *AdminAuditLogHandler) list(c echo.Context) error {
	limit, okLimit := queryInt(c, "limit", 50)
	if !okLimit {
		return badRequest(c, "invalid limit")
	}
	offset, okOffset := queryInt(c, "offset", 0)
	if !okOffset {
		return badRequest(c, "invalid offset")
	}
	actorID, okActor := queryID(c, "actor_user_id")
	if !okActor {
		return badRequest(c, "invalid actor_user_id")
	}
	resourceID, okResource := queryID(c, "resource_id")
	if !okResource {
		return badRequest(c, "invalid resource_id")
	}

	out, err := h.uc.List(c.Request().Context(), actorFrom(c), usecase.AuditLogListInput{
		Action:       c.QueryParam("action"),
		ResourceType: c.QueryParam("resource_type"),
		ResourceID:   resourceID,
		ActorUserID:  actorID,
		From:         c.QueryParam("from"),
		To:           c.QueryParam("to"),
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

// 空ならnil
func queryID(c echo.Context, name string) (*int64, bool) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return nil, false
	}
	return &id, true
}
