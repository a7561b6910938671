package models

import "github.com/google/uuid"

// Plan names. Limits per plan live in internal/billing.
const (
	PlanFree    = "free"
	PlanPremium = "premium"
)

type User struct {
	Base
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`
	Name         string `json:"name"`
	Plan         string `gorm:"default:'free'" json:"plan"` // free, premium
	IsActive     bool   `gorm:"default:true" json:"is_active"`

	// ActiveJarID is the jar currently in focus for this user. It is a durable
	// pointer, not session state: it must reference a jar the user holds an
	// active membership in, or be null.
	ActiveJarID *uuid.UUID `gorm:"type:uuid;index" json:"active_jar_id,omitempty"`

	// InviteToken gates joining this user's invite-gated jars. A single value
	// per user; regenerating replaces (and thereby invalidates) the old one.
	InviteToken string `gorm:"index" json:"-"`

	// LLMAPIKeyEnc holds the user's own OpenAI key, age-encrypted at rest.
	// Empty means the server key is used.
	LLMAPIKeyEnc string `json:"-"`

	// Relationships
	ActiveJar   *Jar         `gorm:"foreignKey:ActiveJarID" json:"active_jar,omitempty"`
	Memberships []Membership `gorm:"foreignKey:UserID" json:"-"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsPremium() bool {
	return u.Plan == PlanPremium
}
