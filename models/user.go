package models

import (
	"fmt"

	"gorm.io/gorm"
)

// Role is the closed set of user roles. Switches over Role are exhaustive and
// treat anything else as invalid.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleEmployee:
		return true
	}
	return false
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// User represents an account. Role is fixed at creation.
type User struct {
	gorm.Model

	Name         string `gorm:"not null" json:"name"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`
	Role         Role   `gorm:"type:varchar(20);not null;index" json:"role"`

	// Bumped to invalidate outstanding tokens
	TokenVersion int `gorm:"default:0" json:"-"`

	// Relations
	ManagedTeams []Team `gorm:"foreignKey:ManagerID" json:"managed_teams,omitempty"`
	Teams        []Team `gorm:"many2many:team_members" json:"teams,omitempty"`
}

func (u *User) IsAdmin() bool    { return u.Role == RoleAdmin }
func (u *User) IsManager() bool  { return u.Role == RoleManager }
func (u *User) IsEmployee() bool { return u.Role == RoleEmployee }
