package db

import (
	"marketplace/internal/domain/model"

	"gorm.io/gorm"
)

// テーブル作成（起動時）
func Migrate(gormDB *gorm.DB) error {
	return gormDB.AutoMigrate(
		&model.User{},
		&model.Product{},
		&model.InventoryAdjustment{},
		&model.Address{},
		&model.Cart{},
		&model.CartItem{},
		&model.Order{},
		&model.OrderItem{},
		&model.AuditLog{},
	)
}
