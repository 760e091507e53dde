package model

import (
	"time"

	"gorm.io/gorm"
)

// 内置角色
const (
	RoleAdmin    = "admin"    // 全部权限
	RoleOperator = "operator" // 服务器命令、寻宝、报表、实时通道
	RoleUser     = "user"     // 个人资料、报表、事件流
)

// 账号状态
const (
	UserDisabled = 0
	UserActive   = 1
)

// User 控制台账号，第一个注册的账号是管理员
type User struct {
	gorm.Model
	Username  string    `gorm:"size:50;not null;uniqueIndex" json:"username"`
	Password  string    `gorm:"size:100;not null" json:"-"`
	Email     string    `gorm:"size:100;uniqueIndex" json:"email"`
	RoleID    uint      `json:"role_id"`
	Role      Role      `gorm:"foreignKey:RoleID" json:"role"`
	LastLogin time.Time `json:"last_login"`
	Status    int       `gorm:"default:1" json:"status"`
}

// IsActive 账号没有被禁用
func (u *User) IsActive() bool {
	return u.Status == UserActive
}

// Role 角色，权限由 casbin 按角色名保存
type Role struct {
	gorm.Model
	Name        string `gorm:"size:50;not null;uniqueIndex" json:"name"`
	Description string `gorm:"size:200" json:"description"`
	Users       []User `gorm:"foreignKey:RoleID" json:"-"`
}

type UserLogin struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type UserRegister struct {
	Username string `json:"username" binding:"required,min=3,max=30"`
	Password string `json:"password" binding:"required,min=6"`
	Email    string `json:"email" binding:"required,email"`
}

// UserUpdate 空字段保持不变
type UserUpdate struct {
	Email    string `json:"email" binding:"omitempty,email"`
	Password string `json:"password" binding:"omitempty,min=6"`
}

// UserRoleChange 修改账号角色
type UserRoleChange struct {
	RoleID uint `json:"role_id" binding:"required"`
}

// UserResponse 返回给前端的账号信息，不含密码
type UserResponse struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	RoleID    uint      `json:"role_id"`
	RoleName  string    `json:"role_name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	LastLogin time.Time `json:"last_login"`
}

func (u *User) ToUserResponse() UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		RoleID:    u.RoleID,
		RoleName:  u.Role.Name,
		Active:    u.IsActive(),
		CreatedAt: u.CreatedAt,
		LastLogin: u.LastLogin,
	}
}
