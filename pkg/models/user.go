package models

import "time"

type Role string

const RoleAdmin Role = "admin"

// User is a content author. Users are provisioned by the seed-admin command
// and are only ever referenced by articles and images, never cascaded.
type User struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	Email        string    `json:"email" gorm:"size:255;not null;uniqueIndex"`
	PasswordHash string    `json:"-" gorm:"not null"`
	Name         string    `json:"name" gorm:"size:255;not null"`
	Role         Role      `json:"role" gorm:"size:32;not null"`
	Active       bool      `json:"active" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
