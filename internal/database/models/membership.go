package models

import (
	"time"

	"github.com/google/uuid"
)

type MembershipRole string

const (
	RoleOwner  MembershipRole = "owner"
	RoleMember MembershipRole = "member"
)

type MembershipStatus string

const (
	MembershipActive  MembershipStatus = "active"
	MembershipLeft    MembershipStatus = "left"
	MembershipRemoved MembershipStatus = "removed"
)

// Membership joins a user to a jar. At most one row per (user, jar) pair,
// enforced by the composite unique index so that concurrent joins cannot
// create duplicates; re-joining reactivates the existing row.
type Membership struct {
	Base
	UserID   uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_membership_user_jar" json:"user_id"`
	JarID    uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_membership_user_jar" json:"jar_id"`
	Role     MembershipRole   `gorm:"type:varchar(20);not null;default:'member'" json:"role"`
	Status   MembershipStatus `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	JoinedAt time.Time        `gorm:"not null" json:"joined_at"`

	// Relationships
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Jar  *Jar  `gorm:"foreignKey:JarID" json:"jar,omitempty"`
}

func (Membership) TableName() string {
	return "memberships"
}

func (m *Membership) IsActive() bool {
	return m.Status == MembershipActive
}
