package models

import (
	"gorm.io/gorm"
)

// User owns leads, campaigns and mailboxes. Ownership doubles as the
// workspace boundary: every API query is scoped by user ID.
type User struct {
	gorm.Model
	Name         string `json:"name"`
	Email        string `gorm:"not null;uniqueIndex" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`
	IsActive     bool   `gorm:"default:true" json:"is_active"`
}
