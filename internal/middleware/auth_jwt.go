package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"marketplace/internal/config"
	"marketplace/internal/domain/model"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

const (
	CtxUserIDKey       = "user_id"       // int64
	CtxUserRoleKey     = "user_role"     // model.Role
	CtxTokenVersionKey = "token_version" // int
)

// bearerAuth用のJWT検証ミドルウェア。
// トークンの発行は認証サービス側。ここでは署名とclaimsだけを見る。
func AuthJWT(cfg config.Config) echo.MiddlewareFunc {
	secret := []byte(cfg.JWTSecret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			//Authorizationヘッダを取得
			authz := c.Request().Header.Get("Authorization")
			if authz == "" {
				return unauthorized(c)
			}

			//Bearer形式か確認してtokenを抜く
			parts := strings.SplitN(authz, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				return unauthorized(c)
			}
			rawToken := strings.TrimSpace(parts[1])
			if rawToken == "" {
				return unauthorized(c)
			}

			//JWTをパースして検証する（expもここで見る）
			token, err := jwt.Parse(rawToken, func(t *jwt.Token) (interface{}, error) {
				if t.Method != jwt.SigningMethodHS256 {
					return nil, errors.New("unexpected signing method")
				}
				return secret, nil
			})
			if err != nil || token == nil || !token.Valid {
				return unauthorized(c)
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				return unauthorized(c)
			}

			userID, err := parseUserID(claims["sub"])
			if err != nil || userID <= 0 {
				return unauthorized(c)
			}

			//roleはUSERかADMINだけ
			role, err := parseRole(claims["role"])
			if err != nil {
				return unauthorized(c)
			}

			tv, err := parseInt(claims["tv"])
			if err != nil || tv < 0 {
				return unauthorized(c)
			}

			c.Set(CtxUserIDKey, userID)
			c.Set(CtxUserRoleKey, role)
			c.Set(CtxTokenVersionKey, tv)

			return next(c)
		}
	}
}

// handlerと同じ形のエラーボディ
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Kind    string `json:"kind"`
}

func errorJSON(msg string) errorResponse {
	return errorResponse{Success: false, Error: msg, Kind: "Unauthorized"}
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
}

// user_idをint64に変換する
func parseUserID(v interface{}) (int64, error) {
	switch t := v.(type) {
	case float64:
		return int64(t), nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	default:
		return 0, errors.New("invalid sub")
	}
}

func parseRole(v interface{}) (model.Role, error) {
	s, ok := v.(string)
	if !ok {
		return "", errors.New("invalid role")
	}
	switch r := model.Role(s); r {
	case model.RoleUser, model.RoleAdmin:
		return r, nil
	default:
		return "", errors.New("invalid role")
	}
}

func parseInt(v interface{}) (int, error) {
	switch t := v.(type) {
	case float64:
		return int(t), nil
	case int:
		return t, nil
	case string:
		i64, err := strconv.ParseInt(t, 10, 32)
		if err != nil {
			return 0, err
		}
		return int(i64), nil
	default:
		return 0, errors.New("invalid int")
	}
}
