package models

import "github.com/google/uuid"

// DailyUsage tracks per-user metered actions for plan enforcement.
// One row per (user, day); Day is a UTC date in YYYY-MM-DD form.
type DailyUsage struct {
	Base
	UserID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_usage_user_day" json:"user_id"`
	Day        string    `gorm:"size:10;not null;uniqueIndex:idx_usage_user_day" json:"day"`
	AIRequests int       `gorm:"default:0" json:"ai_requests"`
	Spins      int       `gorm:"default:0" json:"spins"`
}

func (DailyUsage) TableName() string {
	return "daily_usage"
}
