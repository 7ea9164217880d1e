package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

// レスポンスのkindに出す分類
type ErrorKind string

const (
	KindInvalidRequest     ErrorKind = "InvalidRequest"
	KindProductNotFound    ErrorKind = "ProductNotFound"
	KindInsufficientStock  ErrorKind = "InsufficientStock"
	KindInvalidAddress     ErrorKind = "InvalidAddress"
	KindTransactionTimeout ErrorKind = "TransactionTimeout"
	KindInvalidTransition  ErrorKind = "InvalidTransition"
	KindUnauthorized       ErrorKind = "Unauthorized"
	KindNotFound           ErrorKind = "NotFound"
	KindConflict           ErrorKind = "Conflict"
	KindInternal           ErrorKind = "Internal"
)

var kindStatus = map[ErrorKind]int{
	KindInvalidRequest:     http.StatusBadRequest,
	KindProductNotFound:    http.StatusNotFound,
	KindInsufficientStock:  http.StatusBadRequest,
	KindInvalidAddress:     http.StatusBadRequest,
	KindTransactionTimeout: http.StatusInternalServerError,
	KindInvalidTransition:  http.StatusBadRequest,
	KindUnauthorized:       http.StatusForbidden,
	KindNotFound:           http.StatusNotFound,
	KindConflict:           http.StatusConflict,
	KindInternal:           http.StatusInternalServerError,
}

// handlerがこのままJSONにする。Unwrapは持たない（repo側のエラーと混ざらないように）。
type HTTPError struct {
	Status  int
	Kind    ErrorKind
	Message string

	// InvalidTransitionのとき、いまのstatus
	CurrentStatus model.OrderStatus
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// statusからkindを決める（個別のkindが要らないとき）
func NewHTTPError(status int, message string) error {
	kind := KindInternal
	switch status {
	case http.StatusBadRequest:
		kind = KindInvalidRequest
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = KindUnauthorized
	case http.StatusNotFound:
		kind = KindNotFound
	case http.StatusConflict:
		kind = KindConflict
	}
	return &HTTPError{Status: status, Kind: kind, Message: message}
}

func newKindError(kind ErrorKind, message string) *HTTPError {
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &HTTPError{Status: status, Kind: kind, Message: message}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

func errInvalidRequest(message string) error {
	return newKindError(KindInvalidRequest, message)
}

func errProductNotFound(productID int64) error {
	return newKindError(KindProductNotFound, fmt.Sprintf("product %d not found", productID))
}

func errInsufficientStock(p model.Product) error {
	return newKindError(KindInsufficientStock, fmt.Sprintf("insufficient stock for product %d (%s)", p.ID, p.Name))
}

func errInvalidAddress() error {
	return newKindError(KindInvalidAddress, "invalid address")
}

func errTxTimeout() error {
	return newKindError(KindTransactionTimeout, "transaction timeout")
}

func errInvalidTransition(from, to model.OrderStatus) error {
	e := newKindError(KindInvalidTransition, fmt.Sprintf("cannot change status from %s to %s", from, to))
	e.CurrentStatus = from
	return e
}

// 認証情報なし
func errUnauthenticated() error {
	e := newKindError(KindUnauthorized, "unauthorized")
	e.Status = http.StatusUnauthorized
	return e
}

// 本人でも管理者でもない
func errForbidden() error {
	return newKindError(KindUnauthorized, "forbidden")
}

func errNotFound() error {
	return newKindError(KindNotFound, "not found")
}

func errDB() error {
	return newKindError(KindInternal, "db error")
}

// repo/txのエラーをレスポンス用に変換する。HTTPErrorはそのまま。
// 原因はログにだけ残す。
func classify(ctx context.Context, log *slog.Logger, op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsHTTPError(err); ok {
		return err
	}
	if errors.Is(err, repo.ErrTxTimeout) || errors.Is(err, context.DeadlineExceeded) {
		log.WarnContext(ctx, "transaction timeout", "op", op, "err", err)
		return errTxTimeout()
	}
	if errors.Is(err, repo.ErrNotFound) {
		return errNotFound()
	}
	log.ErrorContext(ctx, "db error", "op", op, "err", err)
	return errDB()
}
