package models

import "github.com/google/uuid"

// DeviceToken registers a push-notification target for a user.
type DeviceToken struct {
	Base
	UserID   uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	Token    string    `gorm:"uniqueIndex;not null" json:"token"`
	Platform string    `gorm:"size:20" json:"platform"` // ios, android, web

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (DeviceToken) TableName() string {
	return "device_tokens"
}
