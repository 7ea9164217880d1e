package middleware

import (
	"marketplace/internal/domain/model"

	"github.com/labstack/echo/v4"
)

// AuthJWTが入れた値からActorを作る。認証されていなければfalse。
func ActorFrom(c echo.Context) (model.Actor, bool) {
	userID, ok := c.Get(CtxUserIDKey).(int64)
	if !ok || userID <= 0 {
		return model.Actor{}, false
	}
	role, ok := c.Get(CtxUserRoleKey).(model.Role)
	if !ok || role == "" {
		return model.Actor{}, false
	}
	return model.Actor{UserID: userID, Role: role}, true
}
