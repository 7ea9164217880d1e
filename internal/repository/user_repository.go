package repository

import (
	"context"

	"marketplace/internal/domain/model"
)

// token_versionとroleの確認に使う
type UserRepository interface {
	// 見つからなければ (nil, nil)
	FindByID(ctx context.Context, userID int64) (*model.User, error)
}
