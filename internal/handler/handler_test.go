package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"marketplace/internal/domain/model"
	"marketplace/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordError(t *testing.T, err error) (int, ErrorResponse) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	require.NoError(t, writeError(c, err))
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestWriteError(t *testing.T) {
	code, body := recordError(t, &usecase.HTTPError{
		Status:        http.StatusBadRequest,
		Kind:          usecase.KindInvalidTransition,
		Message:       "cannot change status from CANCELLED to CANCELLED",
		CurrentStatus: model.OrderStatusCancelled,
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, body.Success)
	assert.Equal(t, "InvalidTransition", body.Kind)
	assert.Equal(t, "CANCELLED", body.CurrentStatus)

	code, body = recordError(t, errors.New("pq: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "internal error", body.Error)
	assert.Empty(t, body.CurrentStatus)
}

func TestOrderCreateRequest_Source(t *testing.T) {
	pid, qty := int64(3), int64(2)

	src, valid := OrderCreateRequest{ProductID: &pid, Quantity: &qty}.source()
	require.True(t, valid)
	assert.Equal(t, model.SingleItem{ProductID: 3, Quantity: 2}, src)

	// quantityだけ来てもSingleItem（検証はusecaseで400）
	src, valid = OrderCreateRequest{Quantity: &qty}.source()
	require.True(t, valid)
	assert.Equal(t, model.SingleItem{Quantity: 2}, src)

	items := []model.LineRequest{{ProductID: 1, Quantity: 1}}
	src, valid = OrderCreateRequest{CartItems: items}.source()
	require.True(t, valid)
	assert.Equal(t, model.CartItems{Items: items}, src)

	_, valid = OrderCreateRequest{ProductID: &pid, CartItems: items}.source()
	assert.False(t, valid)

	src, valid = OrderCreateRequest{UseCart: true}.source()
	require.True(t, valid)
	assert.Nil(t, src)
}
