package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EnvVariable 环境变量持久化记录，key 为主键
type EnvVariable struct {
	Key         string    `gorm:"primaryKey;size:255" json:"key"`
	Value       string    `gorm:"type:text;not null" json:"value"`
	Description *string   `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

// TableName 指定表名
func (EnvVariable) TableName() string {
	return "env_variables"
}

// EnvPatch 部分更新，nil 字段保持不变
type EnvPatch struct {
	Value       *string `json:"value"`
	Description *string `json:"description"`
}

// Empty 未携带任何字段
func (p EnvPatch) Empty() bool {
	return p.Value == nil && p.Description == nil
}

// User 用户账户
type User struct {
	ID             uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	Username       string    `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Email          string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	IsActive       bool      `gorm:"not null" json:"is_active"`
	IsSuperuser    bool      `gorm:"not null" json:"is_superuser"`
	Nickname       *string   `gorm:"size:255" json:"nickname"`
	HashedPassword string    `gorm:"not null" json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

// BeforeCreate 生成 UUID 主键
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// InitSchema 创建缺失的表（幂等）
func InitSchema(db *gorm.DB) error {
	return db.AutoMigrate(&EnvVariable{}, &User{})
}
