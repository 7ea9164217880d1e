package handler

import (
	"net/http"
	"strconv"

	"marketplace/internal/domain/model"
	"marketplace/internal/middleware"
	"marketplace/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 失敗時は全部この形
type ErrorResponse struct {
	Success       bool   `json:"success"`
	Error         string `json:"error"`
	Kind          string `json:"kind,omitempty"`
	CurrentStatus string `json:"current_status,omitempty"`
}

type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		return c.JSON(he.Status, ErrorResponse{
			Error:         he.Message,
			Kind:          string(he.Kind),
			CurrentStatus: string(he.CurrentStatus),
		})
	}

	c.Logger().Errorf("unhandled error: %v", err)
	return c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error: "internal error",
		Kind:  string(usecase.KindInternal),
	})
}

func badRequest(c echo.Context, msg string) error {
	return writeError(c, usecase.NewHTTPError(http.StatusBadRequest, msg))
}

func ok(c echo.Context, msg string) error {
	return c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: msg})
}

// middleware.AuthJWTを通っていない場合は空のActor（usecase側で401になる）
func actorFrom(c echo.Context) model.Actor {
	a, _ := middleware.ActorFrom(c)
	return a
}

func pathID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// 空ならdef
func queryInt(c echo.Context, name string, def int) (int, bool) {
	v := c.QueryParam(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
