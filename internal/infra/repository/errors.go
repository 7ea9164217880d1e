package repository

import (
	"context"
	"errors"
	"fmt"

	repo "marketplace/internal/repository"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// postgresのエラーコード
const (
	pgUniqueViolation  = "23505"
	pgQueryCanceled    = "57014" // statement_timeout
	pgLockNotAvailable = "55P03" // lock_timeout
)

// GORM/pgxのエラーをrepositoryのエラーにそろえる
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repo.ErrNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", repo.ErrTxTimeout, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgQueryCanceled, pgLockNotAvailable:
			return fmt.Errorf("%w: %w", repo.ErrTxTimeout, err)
		case pgUniqueViolation:
			return fmt.Errorf("%w: %w", repo.ErrConflict, err)
		}
	}
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
