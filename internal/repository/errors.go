package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ロック待ちやstatement_timeoutでトランザクションが時間切れ
	ErrTxTimeout = errors.New("transaction timeout")

	// 一意制約違反や、更新対象の状態が変わっていた
	ErrConflict = errors.New("conflict")
)
