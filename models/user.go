package models

import (
	"time"
)

const (
	RoleAdministrator = "administrator"
	RoleUser          = "user"
)

// User owns logged relics. Administrators can read everyone's relics.
type User struct {
	ID             uint `gorm:"primaryKey"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Username       string        `gorm:"size:255;not null;unique"`
	HashedPassword []byte        `gorm:"not null" json:"-"`
	Role           string        `gorm:"size:32;not null;default:user"`
	Relics         []LoggedRelic `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

// IsAdmin reports whether the user has the administrator role.
func (u User) IsAdmin() bool { return u.Role == RoleAdministrator }
