package model

import "time"

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// 認証情報の発行は別サービス。ここではroleとtoken_versionだけを見る。
type User struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Email        string `gorm:"uniqueIndex;not null"`
	Role         Role   `gorm:"type:varchar(20);not null;default:'USER'"`
	TokenVersion int    `gorm:"not null;default:0"`
	IsActive     bool   `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// リクエストしている人（JWTから取り出す）
type Actor struct {
	UserID int64
	Role   Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// 本人か管理者ならOK
func (a Actor) CanAccess(ownerUserID int64) bool {
	if a.UserID <= 0 {
		return false
	}
	return a.IsAdmin() || a.UserID == ownerUserID
}
