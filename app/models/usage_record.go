package models

import "time"

// UsageRecord is one append-only ledger entry for a credit-consuming action.
type UsageRecord struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      string    `gorm:"type:varchar(64);not null;index:idx_usage_records_user_created,priority:1" json:"user_id"`
	BusinessID  string    `gorm:"type:varchar(64);not null;default:''" json:"business_id"`
	Feature     string    `gorm:"type:varchar(50);not null;index" json:"feature"`
	CreditsUsed int       `gorm:"not null" json:"credits_used"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index:idx_usage_records_user_created,priority:2;index" json:"created_at"`
}
