package model

import "time"

// User is a registered account.
type User struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	Email        string     `json:"email" gorm:"uniqueIndex;size:255;not null"`
	Nickname     string     `json:"nickname" gorm:"size:50;not null"`
	Username     *string    `json:"username,omitempty" gorm:"uniqueIndex;size:30"`
	AvatarURL    *string    `json:"avatarUrl,omitempty" gorm:"column:avatar_url;size:500"`
	Preferences  *string    `json:"preferences,omitempty" gorm:"type:text"`
	PasswordHash string     `json:"-" gorm:"size:500;not null"`
	CreatedAt    time.Time  `json:"createdAt" gorm:"index"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
	IsActive     bool       `json:"isActive" gorm:"index;not null;default:true"`
}

// TableName pins the table name used by the migrations.
func (User) TableName() string {
	return "users"
}
