package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	LoginMinLength = 3
	LoginMaxLength = 32
)

// User is the identity a player plays under. Accounts are provisioned elsewhere;
// TelegramID is set only for players who arrive through the bot.
type User struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Login      string    `gorm:"type:varchar(32);uniqueIndex;not null" json:"login"`
	TelegramID *int64    `gorm:"uniqueIndex" json:"-"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"-"`
}

// BeforeCreate assigns a UUID when the caller did not.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// BeforeSave hook for validation
func (u *User) BeforeSave(tx *gorm.DB) error {
	u.Login = strings.TrimSpace(u.Login)
	if len(u.Login) < LoginMinLength || len(u.Login) > LoginMaxLength {
		return gorm.ErrInvalidData
	}
	return nil
}

// TableName specifies the table name
func (User) TableName() string {
	return "users"
}
