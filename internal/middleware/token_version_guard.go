package middleware

import (
	"log/slog"

	repo "marketplace/internal/repository"

	"github.com/labstack/echo/v4"
)

// JWTのtvとDBのtoken_versionが一致するか確認。
// 退会済み・無効化されたユーザーもここで弾く。
func TokenVersionGuard(userRepo repo.UserRepository, log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, ok := c.Get(CtxUserIDKey).(int64)
			if !ok || userID <= 0 {
				return unauthorized(c)
			}

			tv, ok := c.Get(CtxTokenVersionKey).(int)
			if !ok || tv < 0 {
				return unauthorized(c)
			}

			ctx := c.Request().Context()
			user, err := userRepo.FindByID(ctx, userID)
			if err != nil {
				log.ErrorContext(ctx, "token version lookup failed", "user_id", userID, "err", err)
				return unauthorized(c)
			}
			if user == nil || !user.IsActive {
				return unauthorized(c)
			}

			//token_versionが一致しなければ強制ログアウト扱い（401）
			if user.TokenVersion != tv {
				return unauthorized(c)
			}

			//roleはDBの値を正とする
			c.Set(CtxUserRoleKey, user.Role)
			return next(c)
		}
	}
}
