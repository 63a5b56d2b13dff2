package models

import "gorm.io/gorm"

type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectCompleted ProjectStatus = "completed"
	ProjectArchived  ProjectStatus = "archived"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectActive, ProjectCompleted, ProjectArchived:
		return true
	}
	return false
}

type Project struct {
	gorm.Model
	Name        string        `gorm:"not null" json:"name"`
	Description string        `json:"description"`
	TeamID      uint          `gorm:"not null;index" json:"team_id"`
	Status      ProjectStatus `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`

	// Relations
	Team  *Team  `gorm:"foreignKey:TeamID" json:"team,omitempty"`
	Tasks []Task `gorm:"foreignKey:ProjectID" json:"tasks,omitempty"`
}
