package model

import "time"

// 注文明細。作成後は変更しない（価格は注文時点のもの）。
type OrderItem struct {
	ID                  int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID             int64     `gorm:"not null;index" json:"order_id"`
	ProductID           int64     `gorm:"not null;index" json:"product_id"`
	ProductNameSnapshot string    `gorm:"type:varchar(255);not null" json:"name"`
	UnitPrice           int64     `gorm:"not null" json:"price"`
	Quantity            int64     `gorm:"not null" json:"quantity"`
	Total               int64     `gorm:"not null" json:"total"`
	CreatedAt           time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
