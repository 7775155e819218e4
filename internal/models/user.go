package models

import "time"

// User is the minimal account record posts and ratings reference. Accounts are
// issued elsewhere; tokens carry the id as their subject.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex;not null" json:"username"`
	CreatedAt time.Time `json:"created_at"`
}
