package model

import "time"

// カートの明細
// 追加時点の価格）を必ず保存。Variantは空文字なら指定なし。
type CartItem struct {
	ID                int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CartID            int64     `gorm:"not null;index;uniqueIndex:idx_cart_items_line,priority:1" json:"cart_id"`
	ProductID         int64     `gorm:"not null;index;uniqueIndex:idx_cart_items_line,priority:2" json:"product_id"`
	Variant           string    `gorm:"type:varchar(100);not null;default:'';uniqueIndex:idx_cart_items_line,priority:3" json:"variant"`
	Quantity          int64     `gorm:"not null" json:"quantity"`
	UnitPriceSnapshot int64     `gorm:"not null;column:unit_price_snapshot" json:"unit_price_snapshot"`
	CreatedAt         time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
