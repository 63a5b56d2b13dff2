package models

import (
	"time"

	"gorm.io/gorm"
)

// Team is managed by exactly one user and owns its projects.
type Team struct {
	gorm.Model
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	ManagerID   uint   `gorm:"not null;index" json:"manager_id"`

	// Relations
	Manager  *User     `gorm:"foreignKey:ManagerID" json:"manager,omitempty"`
	Members  []User    `gorm:"many2many:team_members" json:"members,omitempty"`
	Projects []Project `gorm:"foreignKey:TeamID" json:"projects,omitempty"`
}

// TeamMember is the membership association between a team and a user. It is
// independent of task assignment.
type TeamMember struct {
	TeamID    uint      `gorm:"primaryKey" json:"team_id"`
	UserID    uint      `gorm:"primaryKey;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
