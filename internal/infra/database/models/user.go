package models

import (
	"time"
)

type User struct {
	ID           string    `json:"id" gorm:"primaryKey;type:uuid;column:id"`
	Username     string    `json:"username" gorm:"type:text;uniqueIndex;not null;column:username"`
	PasswordHash string    `json:"-" gorm:"type:text;not null;column:password_hash"`
	DisplayName  string    `json:"displayName" gorm:"type:text;not null;column:display_name"`
	Role         string    `json:"role" gorm:"type:text;not null;column:role"`
	IsActive     bool      `json:"isActive" gorm:"not null;default:true;column:is_active"`
	CreatedAt    time.Time `json:"createdAt" gorm:"column:created_at"`
	UpdatedAt    time.Time `json:"updatedAt" gorm:"column:updated_at"`
}
