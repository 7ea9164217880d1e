package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// contextに入っているroleがADMINかどうかを確認する。
// 細かい権限チェックはusecase側でもう一度行う。
func AdminRoleGuard() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, ok := ActorFrom(c)
			if !ok {
				return unauthorized(c)
			}

			//USERは拒否、ADMINだけ許可
			if !actor.IsAdmin() {
				return c.JSON(http.StatusForbidden, errorJSON("admin only"))
			}

			return next(c)
		}
	}
}
