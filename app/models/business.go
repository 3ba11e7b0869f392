package models

import "time"

// Business is the context a generation request runs under.
type Business struct {
	ID        string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	UserID    string    `gorm:"type:varchar(64);not null;index" json:"user_id"`
	Name      string    `gorm:"type:varchar(191);not null" json:"name"`
	Type      string    `gorm:"type:varchar(100)" json:"type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
