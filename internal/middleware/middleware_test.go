package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketplace/internal/config"
	"marketplace/internal/domain/model"
	"marketplace/internal/logger"
	repo "marketplace/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type userRepoMock struct{ mock.Mock }

func (m *userRepoMock) FindByID(ctx context.Context, id int64) (*model.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

var _ repo.UserRepository = (*userRepoMock)(nil)

type actorResponse struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

func makeJWT(t *testing.T, secret string, claims jwt.MapClaims, method jwt.SigningMethod) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

// 認証を通ったactorを返すだけのルート
func newEcho(mw ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.GET("/protected", func(c echo.Context) error {
		a, ok := ActorFrom(c)
		if !ok {
			return c.NoContent(http.StatusTeapot)
		}
		return c.JSON(http.StatusOK, actorResponse{UserID: a.UserID, Role: string(a.Role)})
	}, mw...)
	return e
}

func run(e *echo.Echo, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var r errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&r))
	return r
}

func TestAuthJWT_Rejects(t *testing.T) {
	cfg := config.Config{JWTSecret: testSecret}
	now := time.Now()
	valid := jwt.MapClaims{"sub": "1", "role": "USER", "tv": 0, "exp": now.Add(time.Hour).Unix()}

	with := func(k string, v interface{}) jwt.MapClaims {
		c := jwt.MapClaims{}
		for kk, vv := range valid {
			c[kk] = vv
		}
		if v == nil {
			delete(c, k)
		} else {
			c[k] = v
		}
		return c
	}

	cases := []struct {
		name  string
		authz string
	}{
		{"no header", ""},
		{"bad scheme", "Token abc.def.ghi"},
		{"empty token", "Bearer "},
		{"bad signature", "Bearer " + makeJWT(t, "wrong-secret", valid, jwt.SigningMethodHS256)},
		{"wrong alg", "Bearer " + makeJWT(t, testSecret, valid, jwt.SigningMethodHS512)},
		{"expired", "Bearer " + makeJWT(t, testSecret, with("exp", now.Add(-time.Minute).Unix()), jwt.SigningMethodHS256)},
		{"no sub", "Bearer " + makeJWT(t, testSecret, with("sub", nil), jwt.SigningMethodHS256)},
		{"unknown role", "Bearer " + makeJWT(t, testSecret, with("role", "ROOT"), jwt.SigningMethodHS256)},
		{"negative tv", "Bearer " + makeJWT(t, testSecret, with("tv", -1), jwt.SigningMethodHS256)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := run(newEcho(AuthJWT(cfg)), tc.authz)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			body := decodeError(t, rec)
			assert.False(t, body.Success)
			assert.Equal(t, "unauthorized", body.Error)
			assert.Equal(t, "Unauthorized", body.Kind)
		})
	}
}

func TestAuthJWT_SetsActor(t *testing.T) {
	cfg := config.Config{JWTSecret: testSecret}
	tok, err := SignAccessToken(testSecret, 123, model.RoleAdmin, 7, time.Now(), time.Hour)
	require.NoError(t, err)

	rec := run(newEcho(AuthJWT(cfg)), "Bearer "+tok)
	require.Equal(t, http.StatusOK, rec.Code)

	var body actorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, int64(123), body.UserID)
	assert.Equal(t, "ADMIN", body.Role)
}

func TestTokenVersionGuard(t *testing.T) {
	cfg := config.Config{JWTSecret: testSecret}
	tok, err := SignAccessToken(testSecret, 5, model.RoleUser, 2, time.Now(), time.Hour)
	require.NoError(t, err)

	cases := []struct {
		name string
		user *model.User
		err  error
		want int
	}{
		{"match", &model.User{ID: 5, Role: model.RoleUser, TokenVersion: 2, IsActive: true}, nil, http.StatusOK},
		{"revoked", &model.User{ID: 5, Role: model.RoleUser, TokenVersion: 3, IsActive: true}, nil, http.StatusUnauthorized},
		{"inactive", &model.User{ID: 5, Role: model.RoleUser, TokenVersion: 2}, nil, http.StatusUnauthorized},
		{"missing", nil, nil, http.StatusUnauthorized},
		{"db error", nil, errors.New("boom"), http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			users := new(userRepoMock)
			users.On("FindByID", mock.Anything, int64(5)).Return(tc.user, tc.err).Once()

			rec := run(newEcho(AuthJWT(cfg), TokenVersionGuard(users, logger.Discard())), "Bearer "+tok)
			assert.Equal(t, tc.want, rec.Code)
			users.AssertExpectations(t)
		})
	}
}

// トークンがADMINでもDBでUSERに戻っていれば管理APIは通さない
func TestAdminRoleGuard_UsesStoredRole(t *testing.T) {
	cfg := config.Config{JWTSecret: testSecret}
	tok, err := SignAccessToken(testSecret, 9, model.RoleAdmin, 0, time.Now(), time.Hour)
	require.NoError(t, err)

	users := new(userRepoMock)
	users.On("FindByID", mock.Anything, int64(9)).
		Return(&model.User{ID: 9, Role: model.RoleUser, IsActive: true}, nil).Once()

	e := newEcho(AuthJWT(cfg), TokenVersionGuard(users, logger.Discard()), AdminRoleGuard())
	rec := run(e, "Bearer "+tok)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "admin only", decodeError(t, rec).Error)

	users.On("FindByID", mock.Anything, int64(9)).
		Return(&model.User{ID: 9, Role: model.RoleAdmin, IsActive: true}, nil).Once()
	rec = run(e, "Bearer "+tok)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminRoleGuard_NoActor(t *testing.T) {
	rec := run(newEcho(AdminRoleGuard()), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
