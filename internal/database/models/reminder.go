package models

import "github.com/google/uuid"

// Reminder is a recurring "time to spin the jar" nudge for a jar's members.
type Reminder struct {
	Base
	JarID     uuid.UUID `gorm:"type:uuid;index;not null" json:"jar_id"`
	CronExpr  string    `gorm:"size:100;not null" json:"cron_expr"` // e.g., "0 18 * * 5" (6 PM Fridays)
	IsEnabled bool      `gorm:"default:true;index" json:"is_enabled"`

	// Timing (Unix timestamps, UTC)
	NextRunAt int64  `gorm:"index" json:"next_run_at"`
	LastRunAt *int64 `json:"last_run_at,omitempty"`

	Jar *Jar `gorm:"foreignKey:JarID" json:"-"`
}

func (Reminder) TableName() string {
	return "reminders"
}
