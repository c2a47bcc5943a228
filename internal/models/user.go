package models

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// User 表示系統中的用戶
type User struct {
	gorm.Model           // 內嵌 gorm.Model，提供 ID、CreatedAt、UpdatedAt 和 DeletedAt 字段
	Username    string   `gorm:"uniqueIndex;not null" json:"username"` // 用戶名，必須唯一
	DisplayName string   `json:"display_name"`
	Email       string   `json:"email"`
	Password    string   `gorm:"not null" json:"-"`                    // 密碼，json 序列化時會被忽略
	Role        UserRole `gorm:"type:varchar(20);not null" json:"role"` // 用戶角色
}

// UserRole 定義用戶角色的類型
type UserRole string

const (
	RoleAdmin UserRole = "admin" // 客服人員，可存取所有房間
	RoleUser  UserRole = "user"  // 一般用戶，只能存取自己的房間
)

var ErrInvalidRole = errors.New("invalid role")

// ParseRole 將字串轉為 UserRole，未知角色回傳 ErrInvalidRole
func ParseRole(s string) (UserRole, error) {
	switch UserRole(s) {
	case RoleAdmin, RoleUser:
		return UserRole(s), nil
	}
	return "", errors.Wrapf(ErrInvalidRole, "%q", s)
}

func (r UserRole) IsStaff() bool {
	return r == RoleAdmin
}

// Name 優先使用顯示名稱
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}
