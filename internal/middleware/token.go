package middleware

import (
	"strconv"
	"time"

	"marketplace/internal/domain/model"

	"github.com/golang-jwt/jwt/v4"
)

// AuthJWTが読める形のアクセストークンを作る（cmd/devtokenとテスト用）
func SignAccessToken(secret string, userID int64, role model.Role, tokenVersion int, now time.Time, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":  strconv.FormatInt(userID, 10),
		"role": string(role),
		"tv":   tokenVersion,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
