package models

import (
	"time"

	"gorm.io/gorm"
)

// UserRole 定义用户角色类型
type UserRole string

const (
	RoleAdmin UserRole = "admin" // 管理员，可以查看主机指标
	RoleUser  UserRole = "user"  // 普通用户，只能查看自己的信息
)

// User 表示系统用户
type User struct {
	ID          uint       `json:"id" gorm:"primarykey,autoIncrement"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty" gorm:"index"`
	Username    string     `json:"username" gorm:"size:100;not null;uniqueIndex"`
	Email       string     `json:"email" gorm:"size:100;not null;uniqueIndex"`
	Password    string     `json:"password,omitempty" gorm:"size:100;not null"` // 只在创建时接收，响应前清空
	Role        UserRole   `json:"role" gorm:"size:20;default:user"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// BeforeCreate 角色为空时设置为普通用户
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}

// IsAdmin 是否为管理员
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Sanitized 返回去掉密码哈希的副本
func (u User) Sanitized() User {
	u.Password = ""
	return u
}
