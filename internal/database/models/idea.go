package models

import (
	"time"

	"github.com/google/uuid"
)

type IdeaSource string

const (
	IdeaSourceMember IdeaSource = "member"
	IdeaSourceAI     IdeaSource = "ai"
)

// Idea categories the AI planner classifies prompts into.
const (
	CategoryDateNight = "date_night"
	CategoryFamily    = "family"
	CategoryOutdoors  = "outdoors"
	CategoryFood      = "food"
	CategoryTravel    = "travel"
	CategoryBudget    = "budget"
	CategorySurprise  = "surprise"
)

// Idea is a proposed activity belonging to a jar.
type Idea struct {
	Base
	JarID       uuid.UUID  `gorm:"type:uuid;index;not null" json:"jar_id"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description,omitempty"`
	Category    string     `gorm:"size:50;index" json:"category,omitempty"`
	CostHint    string     `gorm:"size:50" json:"cost_hint,omitempty"` // free, low, medium, high
	Source      IdeaSource `gorm:"type:varchar(20);not null;default:'member'" json:"source"`

	SuggestedByID *uuid.UUID `gorm:"type:uuid" json:"suggested_by_id,omitempty"`

	// PickedAt is set when a spin selects this idea. Unpicked ideas have it null.
	PickedAt   *time.Time `json:"picked_at,omitempty"`
	PickedByID *uuid.UUID `gorm:"type:uuid" json:"picked_by_id,omitempty"`

	// Relationships
	Jar         *Jar  `gorm:"foreignKey:JarID" json:"-"`
	SuggestedBy *User `gorm:"foreignKey:SuggestedByID" json:"-"`
}

func (Idea) TableName() string {
	return "ideas"
}
