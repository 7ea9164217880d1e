package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

type PaymentMethod string

const (
	PaymentMethodCOD          PaymentMethod = "COD"
	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
)

// 受け付ける支払い方法か
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCOD, PaymentMethodCard, PaymentMethodBankTransfer:
		return true
	}
	return false
}

// 注文時点の住所のコピー（住所を後で編集しても注文側は変わらない）
type ShippingAddress struct {
	PostalCode string `gorm:"type:varchar(20);not null" json:"postal_code"`
	Prefecture string `gorm:"type:varchar(100);not null" json:"prefecture"`
	City       string `gorm:"type:varchar(255);not null" json:"city"`
	Line1      string `gorm:"type:varchar(255);not null" json:"line1"`
	Line2      string `gorm:"type:varchar(255)" json:"line2"`
	Name       string `gorm:"type:varchar(255);not null" json:"name"`
	Phone      string `gorm:"type:varchar(30)" json:"phone"`
}

// 注文は削除しない。statusの変更はOrderStatusの遷移表を通す。
type Order struct {
	ID              int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID          int64           `gorm:"not null;index;uniqueIndex:idx_orders_user_idem,priority:1" json:"user_id"`
	AddressID       int64           `gorm:"not null" json:"address_id"`
	ShippingAddress ShippingAddress `gorm:"embedded;embeddedPrefix:ship_" json:"shipping_address"`
	Status          OrderStatus     `gorm:"type:varchar(20);not null;index" json:"status"`
	PaymentMethod   PaymentMethod   `gorm:"type:varchar(20);not null" json:"payment_method"`
	PaymentStatus   PaymentStatus   `gorm:"type:varchar(20);not null" json:"payment_status"`
	Source          OrderSourceKind `gorm:"type:varchar(20);not null" json:"source"`
	TotalAmount     int64           `gorm:"not null" json:"total_amount"`
	IdempotencyKey  *string         `gorm:"type:varchar(255);uniqueIndex:idx_orders_user_idem,priority:2" json:"-"`
	CreatedAt       time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 住所から注文用スナップショットを作る
func SnapshotAddress(a Address) ShippingAddress {
	return ShippingAddress{
		PostalCode: a.PostalCode,
		Prefecture: a.Prefecture,
		City:       a.City,
		Line1:      a.Line1,
		Line2:      a.Line2,
		Name:       a.Name,
		Phone:      a.Phone,
	}
}
