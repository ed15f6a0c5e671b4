package models

import (
	"time"
)

// User is a local snapshot of the profile service's account record.
// Rows are provisioned externally; this service only reads them to join
// usernames into match and play projections.
type User struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	Username  string    `gorm:"index;not null" json:"username"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
