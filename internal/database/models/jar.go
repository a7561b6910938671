package models

import (
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
)

// Jar is a named container of activity ideas shared by its members.
type Jar struct {
	Base
	Name     string `gorm:"not null" json:"name"`
	Topic    string `json:"topic"`
	Location string `json:"location"`

	// RefCode is the short human-enterable invite code. Unique across all jars.
	RefCode string `gorm:"uniqueIndex;not null" json:"ref_code"`

	// OwnerID is the creating user. Ownership for authorization purposes is
	// carried on the membership row, not here.
	OwnerID uuid.UUID `gorm:"type:uuid;index;not null" json:"owner_id"`

	IsCommunity bool `gorm:"default:false" json:"is_community"`

	// InviteGated jars additionally require the owner's current invite token
	// on join.
	InviteGated bool `gorm:"default:false" json:"invite_gated"`

	// Relationships
	Memberships []Membership `gorm:"foreignKey:JarID" json:"-"`
	Ideas       []Idea       `gorm:"foreignKey:JarID" json:"-"`
	Reminders   []Reminder   `gorm:"foreignKey:JarID" json:"-"`
}

func (Jar) TableName() string {
	return "jars"
}

// refCodeAlphabet omits 0/O/1/I/L to keep codes unambiguous when read aloud.
const refCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const refCodeLength = 6

// NewRefCode generates a random invite code. Uniqueness is enforced by the
// unique index on jars.ref_code; callers retry on a collision.
func NewRefCode() (string, error) {
	code := make([]byte, refCodeLength)
	max := big.NewInt(int64(len(refCodeAlphabet)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = refCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}
